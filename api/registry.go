// Package api exposes the backends over the EC2 query protocol: form encoded requests
// naming an Action, XML encoded responses.
package api

import (
	"fmt"
	"sort"

	"ec2emulator/params"
)

// Response is implemented by every action response.
type Response interface {
	SetRequestID(id string)
}

// Handler runs one action against decoded request parameters.
type Handler func(p params.Params) (Response, error)

// Dispatcher runs actions by name.
type Dispatcher interface {
	Has(action string) bool
	Dispatch(action string, p params.Params) (Response, error)
}

// Registry maps action names to handlers. It is filled once at startup and read only
// afterwards.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// Register adds h under action. Registering a name twice panics.
func (r *Registry) Register(action string, h Handler) {
	if _, exists := r.handlers[action]; exists {
		panic(fmt.Sprintf("api: action %s registered twice", action))
	}
	r.handlers[action] = h
}

// Has reports whether action is registered.
func (r *Registry) Has(action string) bool {
	_, ok := r.handlers[action]
	return ok
}

// Dispatch runs action. Callers check Has first; an unknown action panics.
func (r *Registry) Dispatch(action string, p params.Params) (Response, error) {
	h, ok := r.handlers[action]
	if !ok {
		panic(fmt.Sprintf("api: dispatch of unregistered action %s", action))
	}
	return h(p)
}

// Actions returns the registered action names, sorted.
func (r *Registry) Actions() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bind adapts a typed backend method to a Handler.
func Bind[T Response](fn func(params.Params) (T, error)) Handler {
	return func(p params.Params) (Response, error) {
		resp, err := fn(p)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
}
