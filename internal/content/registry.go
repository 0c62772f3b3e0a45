package content

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// Registry dispatches to the first registered handler that claims a request.
// Registration order is precedence.
type Registry struct {
	mu       sync.RWMutex
	handlers []Handler
	log      *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{log: log.With("component", "content_registry")}
}

// Register appends h. Nil handlers are ignored.
func (r *Registry) Register(h Handler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
	r.log.Debug("Content handler registered", "topic", h.Topic(), "position", len(r.handlers))
}

// Handlers returns the registered handlers in order.
func (r *Registry) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Handler(nil), r.handlers...)
}

// RouteMessage sends req to the first claiming handler, or returns ErrUnhandled.
func (r *Registry) RouteMessage(ctx context.Context, req Request) (Response, error) {
	for _, h := range r.Handlers() {
		if !h.CanHandle(req) {
			continue
		}
		r.log.DebugContext(ctx, "Routing message", "topic", h.Topic(), "user_id", req.UserID, "message_id", req.MessageID)
		return h.HandleMessage(ctx, req)
	}
	return Response{}, ErrUnhandled
}

// RoutePhoto matches on the caption and skips handlers without photo support.
func (r *Registry) RoutePhoto(ctx context.Context, req Request, photo []byte) (Response, error) {
	for _, h := range r.Handlers() {
		ph, ok := h.(PhotoHandler)
		if !ok || !h.CanHandle(req) {
			continue
		}
		r.log.DebugContext(ctx, "Routing photo", "topic", h.Topic(), "user_id", req.UserID, "bytes", len(photo))
		return ph.HandlePhoto(ctx, req, photo)
	}
	return Response{}, ErrUnhandled
}
