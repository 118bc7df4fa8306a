package main

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ec2emulator/api"
	"ec2emulator/backends"
	"ec2emulator/configuration"
	"ec2emulator/errors"
	"ec2emulator/integrityChecker"
	"ec2emulator/logger"
	"ec2emulator/seed"
	"ec2emulator/state"
)

const (
	packageName = "main"
)

// emulator is one wired server process.
type emulator struct {
	config  *configuration.Config
	store   *state.Store
	server  *http.Server
	auditor integrityChecker.Auditor
	logger  *zap.Logger
}

func main() {
	// Initialize logger
	if err := logger.Initialize("info"); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	// Load configuration
	config, err := configuration.Initialize()
	if err != nil {
		zap.L().Error("Failed to load configuration",
			zap.String("package", packageName),
			zap.String("operation", "config_load"),
			zap.Error(err),
		)
		os.Exit(1)
	}
	if config.LogLevel != "info" {
		if err := logger.Initialize(config.LogLevel); err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	logger := logger.For(packageName)

	emu, err := newEmulator(config, zap.L())
	if err != nil {
		logger.Error("Failed to build emulator",
			zap.String("operation", "startup"),
			zap.Error(err),
		)
		os.Exit(1)
	}

	listener, err := net.Listen("tcp", config.ListenAddr)
	if err != nil {
		logger.Error("Failed to listen",
			zap.String("operation", "startup"),
			zap.String("addr", config.ListenAddr),
			zap.Error(err),
		)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received signal, shutting down",
			zap.String("operation", "shutdown"),
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if err := emu.serve(ctx, listener); err != nil {
		logger.Error("Emulator stopped with error",
			zap.String("operation", "serve"),
			zap.Error(err),
		)
		os.Exit(1)
	}
}

// newEmulator wires the store, backends, seed data, API server and integrity checker.
func newEmulator(config *configuration.Config, base *zap.Logger) (*emulator, error) {
	logger := base.With(zap.String("package", packageName))

	store := state.New()
	be := backends.New(store, backends.Settings{
		Region:            config.AWSRegion,
		AccountID:         config.AccountID,
		DefaultMaxResults: config.DefaultMaxResults,
	}, base)

	if config.SeedFile != "" {
		result, err := seed.NewLoader(be, base).LoadFile(config.SeedFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Seed file applied",
			zap.String("operation", "seed"),
			zap.String("path", config.SeedFile),
			zap.Int("resources", len(result)),
		)
	}

	var metrics *api.Metrics
	if config.MetricsEnabled {
		metrics = api.NewMetrics(store)
	}
	registry := api.Routes(be)
	handler := api.NewServer(registry, store, metrics, base).Handler()
	logger.Info("API ready",
		zap.String("operation", "startup"),
		zap.Int("actions", len(registry.Actions())),
		zap.Bool("metrics", config.MetricsEnabled),
	)

	return &emulator{
		config: config,
		store:  store,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		auditor: integrityChecker.NewChecker(store, base),
		logger:  logger,
	}, nil
}

// serve answers requests on listener and runs the integrity loop until ctx is done, then
// shuts the HTTP server down within the configured timeout.
func (e *emulator) serve(ctx context.Context, listener net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.logger.Info("Emulator listening",
			zap.String("operation", "serve"),
			zap.String("addr", listener.Addr().String()),
		)
		if err := e.server.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- errors.New(errors.ErrServer, "HTTP server failed",
				map[string]interface{}{"addr": listener.Addr().String()}, err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		interval := time.Duration(e.config.IntegrityCheckInterval) * time.Second
		if err := e.auditor.RunLoop(ctx, interval); err != nil && ctx.Err() == nil {
			e.logger.Error("Integrity loop failed",
				zap.String("operation", "integrity_loop"),
				zap.Error(err),
			)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errChan:
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Duration(e.config.ShutdownTimeout)*time.Second)
	defer stop()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.New(errors.ErrServer, "graceful shutdown failed", nil, err)
	}
	wg.Wait()

	e.logger.Info("Shutdown complete", zap.String("operation", "shutdown_complete"))
	return serveErr
}
