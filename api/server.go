package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/params"
	"ec2emulator/state"
)

const packageName = "api"

// Errors of these types are failures of the emulator itself, not of the request.
var internalErrors = map[errors.ErrorType]bool{
	errors.ErrInternal:      true,
	errors.ErrConfigParse:   true,
	errors.ErrConfigInvalid: true,
	errors.ErrServer:        true,
	errors.ErrSeed:          true,
	errors.ErrIntegrity:     true,
	errors.ErrAWSClient:     true,
}

// Server answers EC2 query protocol requests. Every action runs under the store's
// exclusive lock, so requests are linearizable.
type Server struct {
	dispatcher Dispatcher
	store      *state.Store
	metrics    *Metrics
	log        *zap.Logger
}

// NewServer returns a server dispatching to d. metrics may be nil.
func NewServer(d Dispatcher, store *state.Store, metrics *Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		dispatcher: d,
		store:      store,
		metrics:    metrics,
		log:        logger.With(zap.String("package", packageName)),
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveAction)
	mux.HandleFunc("/healthz", s.serveHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) serveAction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()
	log := s.log.With(zap.String("operation", "serveAction"), zap.String("request_id", requestID))

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		s.writeError(w, log, "", requestID, start, http.StatusMethodNotAllowed,
			errors.API(errors.ErrUnsupportedOperation, "The HTTP method %s is not supported.", r.Method))
		return
	}
	if err := r.ParseForm(); err != nil {
		s.writeError(w, log, "", requestID, start, http.StatusBadRequest,
			errors.API(errors.ErrInvalidParameterValue, "The request body could not be parsed: %v", err))
		return
	}

	p := params.FromValues(r.Form)
	action := p.String("Action")
	log = log.With(zap.String("action", action))
	if action == "" {
		s.writeError(w, log, action, requestID, start, http.StatusBadRequest,
			errors.API("MissingAction", "The request must contain the parameter Action"))
		return
	}
	if !s.dispatcher.Has(action) {
		s.writeError(w, log, action, requestID, start, http.StatusBadRequest,
			errors.API(errors.ErrInvalidAction, "The action %s is not valid for this web service.", action))
		return
	}

	var resp Response
	err := s.store.Update(func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("Action panicked", zap.Any("panic", rec), zap.Stack("stack"))
				err = errors.New(errors.ErrInternal, "An internal error has occurred",
					map[string]interface{}{"action": action}, fmt.Errorf("panic: %v", rec))
			}
		}()
		resp, err = s.dispatcher.Dispatch(action, p)
		return err
	})
	if err != nil {
		status := http.StatusBadRequest
		if ce, ok := errors.As(err); !ok || internalErrors[ce.Type] {
			status = http.StatusInternalServerError
		}
		s.writeError(w, log, action, requestID, start, status, err)
		return
	}

	resp.SetRequestID(requestID)
	var body bytes.Buffer
	if err := encodeResponse(&body, action, resp); err != nil {
		s.writeError(w, log, action, requestID, start, http.StatusInternalServerError,
			errors.New(errors.ErrInternal, "Failed to encode response", nil, err))
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body.Bytes())

	s.record(action, "OK", start)
	log.Debug("Request served", zap.Int("status", http.StatusOK), zap.Duration("duration", time.Since(start)))
}

func (s *Server) writeError(w http.ResponseWriter, log *zap.Logger, action, requestID string, start time.Time, status int, err error) {
	code, message := string(errors.ErrInternal), "An internal error has occurred"
	if ce, ok := errors.As(err); ok {
		if status != http.StatusInternalServerError || ce.Type == errors.ErrInternal {
			code, message = string(ce.Type), ce.Message
		}
	}

	fields := []zap.Field{
		zap.Int("status", status),
		zap.String("code", code),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", fields...)
	} else {
		log.Info("Request rejected", fields...)
	}

	var body bytes.Buffer
	if encErr := encodeError(&body, code, message, requestID); encErr != nil {
		log.Error("Failed to encode error response", zap.Error(encErr))
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body.Bytes())

	s.record(action, code, start)
}

func (s *Server) record(action, code string, start time.Time) {
	if s.metrics == nil {
		return
	}
	if action == "" || !s.dispatcher.Has(action) {
		action = "unknown"
	}
	s.metrics.RecordRequest(action, code, time.Since(start))
}
