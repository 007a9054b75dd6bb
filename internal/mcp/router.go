package mcp

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Handler serves one JSON-RPC method. The result is marshalled into the
// response; returning an *Error sends that error unchanged.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Router maps method names to handlers.
type Router struct {
	mu     sync.RWMutex
	routes map[string]Handler
	log    *zap.Logger
}

func NewRouter(log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		routes: make(map[string]Handler),
		log:    log,
	}
}

// AddRoute registers a handler. Registering a method twice is an error.
func (r *Router) AddRoute(method string, h Handler) error {
	if method == "" {
		return errors.New("cannot register route with empty method name")
	}
	if h == nil {
		return errors.Newf("route for method %q has no handler", method)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.routes[method]; exists {
		return errors.Newf("route for method %q already registered", method)
	}
	r.routes[method] = h
	r.log.Debug("Registered MCP route", zap.String("method", method))
	return nil
}

// Route runs the handler for method.
func (r *Router) Route(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	r.mu.RLock()
	h, ok := r.routes[method]
	r.mu.RUnlock()

	if !ok {
		return nil, NewError(CodeMethodNotFound, "Method not found: %s", method)
	}
	return h(ctx, params)
}

// Methods lists the registered method names in sorted order.
func (r *Router) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
