package event

import (
	"sync"

	"github.com/hobbylab/backend/internal/domain/shared"
)

// Router resolves the local handler instances registered for an exact
// (name, version). Registration happens statically at startup from module
// wiring code; nothing is resolved by stringified type names at runtime.
// Ordering among multiple handlers for the same event is unspecified.
type Router struct {
	mu       sync.RWMutex
	handlers map[shared.EventKey][]shared.EventHandler
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{
		handlers: make(map[shared.EventKey][]shared.EventHandler),
	}
}

// Register subscribes a handler to one or more event keys
func (r *Router) Register(handler shared.EventHandler, keys ...shared.EventKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range keys {
		r.handlers[key] = append(r.handlers[key], handler)
	}
}

// Unregister removes a handler from all event keys
func (r *Router) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, handlers := range r.handlers {
		kept := make([]shared.EventHandler, 0, len(handlers))
		for _, h := range handlers {
			if h != handler {
				kept = append(kept, h)
			}
		}
		if len(kept) == 0 {
			delete(r.handlers, key)
		} else {
			r.handlers[key] = kept
		}
	}
}

// Handlers returns the handlers registered for the key. Zero handlers is a
// valid outcome: the message is then processed with no local effect.
func (r *Router) Handlers(key shared.EventKey) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := r.handlers[key]
	result := make([]shared.EventHandler, len(handlers))
	copy(result, handlers)
	return result
}
