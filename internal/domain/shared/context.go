package shared

import (
	"context"

	"github.com/google/uuid"
)

// Metadata carries the request-scoped identity that ends up on every
// envelope raised during a unit of work. It is threaded explicitly through
// context.Context from the originating request into the outbox writer;
// the event core has no ambient/global request state.
type Metadata struct {
	TenantID      uuid.UUID
	Username      string
	CorrelationID *uuid.UUID
}

type metadataKey struct{}

// WithMetadata returns a context carrying the request metadata.
func WithMetadata(ctx context.Context, md Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, md)
}

// MetadataFrom extracts the request metadata from the context.
// The second return value is false when no metadata was attached.
func MetadataFrom(ctx context.Context) (Metadata, bool) {
	md, ok := ctx.Value(metadataKey{}).(Metadata)
	return md, ok
}
