package funcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownFunction signals a dispatch miss. The receiver maps it to a 400
// without aborting processing of other event types.
var ErrUnknownFunction = errors.New("unknown function")

// Handler answers one named function call synchronously. The returned value
// is serialized under "result" in the webhook HTTP response.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Registry is the small fixed set of functions the voice assistant may
// invoke mid-call.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	return out
}

// Dispatch routes by name. This is a request/response RPC embedded in the
// webhook channel, not an async event.
func (r *Registry) Dispatch(ctx context.Context, name string, params json.RawMessage) (any, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	return h(ctx, params)
}
