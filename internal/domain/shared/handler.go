package shared

import "context"

// EventHandler processes envelopes dispatched from an outbox or received
// from the broker. Handlers registered for the same event must not depend
// on their relative order or on each other's side effects.
type EventHandler interface {
	// HandlerName returns the stable identity used as the inbox dedup key.
	// Renaming a handler makes already-applied events eligible again.
	HandlerName() string
	// Handle applies the event's side effect. A returned error leaves the
	// message pending for a later retry.
	Handle(ctx context.Context, env *Envelope) error
}

// HandlerFunc adapts a function to the EventHandler interface.
type HandlerFunc struct {
	Name string
	Fn   func(ctx context.Context, env *Envelope) error
}

// HandlerName returns the handler identity
func (h HandlerFunc) HandlerName() string {
	return h.Name
}

// Handle invokes the wrapped function
func (h HandlerFunc) Handle(ctx context.Context, env *Envelope) error {
	return h.Fn(ctx, env)
}
