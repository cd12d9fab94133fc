package shared

import (
	"context"
	"time"
)

// IdempotencyStore is a fast-path duplicate filter in front of the durable
// inbox. A hit means "certainly already applied"; a miss proves nothing, so
// callers still consult the inbox. Losing the store (e.g. Redis flush) only
// costs wasted work, never duplicate effect.
type IdempotencyStore interface {
	// MarkProcessed marks an event as processed with a TTL.
	// Returns true if the event was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if an event has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for the fast-path filter
type IdempotencyConfig struct {
	// TTL is the time-to-live for processed event keys
	TTL time.Duration

	// Enabled determines whether the fast path is consulted at all
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
