package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxAttempts bounds dispatch retries before a message counts as
// exhausted.
const DefaultMaxAttempts = 5

// OutboxMessage is an event staged for dispatch, persisted in the same
// transaction as the business change that raised it. The same shape backs
// both the domain outbox and the integration outbox; they differ only in
// table and in who drains them.
//
// Lifecycle: created pending (ProcessedAt nil, Attempts 0); a dispatcher
// either sets ProcessedAt or increments Attempts. Once Attempts reaches the
// configured maximum the message is exhausted: still pending, never retried,
// surfaced to operators instead of deleted. The core never deletes rows.
type OutboxMessage struct {
	ID            uuid.UUID // equals the envelope's EventID
	Name          string
	Version       int
	TenantID      uuid.UUID
	Username      string
	OccurredAt    time.Time
	CorrelationID *uuid.UUID
	CausationID   *uuid.UUID
	Payload       []byte // serialized envelope
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	Attempts      int
	LastError     string
}

// NewOutboxMessage stages a serialized envelope for dispatch
func NewOutboxMessage(env *Envelope, payload []byte) *OutboxMessage {
	return &OutboxMessage{
		ID:            env.EventID,
		Name:          env.Name,
		Version:       env.Version,
		TenantID:      env.TenantID,
		Username:      env.Username,
		OccurredAt:    env.OccurredAt,
		CorrelationID: env.CorrelationID,
		CausationID:   env.CausationID,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}
}

// Pending reports whether the message still awaits dispatch
func (m *OutboxMessage) Pending() bool {
	return m.ProcessedAt == nil
}

// Exhausted reports whether retries are used up while still unprocessed
func (m *OutboxMessage) Exhausted(maxAttempts int) bool {
	return m.ProcessedAt == nil && m.Attempts >= maxAttempts
}

// MarkProcessed records successful dispatch
func (m *OutboxMessage) MarkProcessed() {
	now := time.Now().UTC()
	m.ProcessedAt = &now
}

// MarkFailed records a failed dispatch attempt
func (m *OutboxMessage) MarkFailed(cause string) {
	m.Attempts++
	m.LastError = cause
}

// Requeue re-arms an exhausted message for another round of retries
func (m *OutboxMessage) Requeue() error {
	if m.ProcessedAt != nil {
		return ErrInvalidState
	}
	m.Attempts = 0
	m.LastError = ""
	return nil
}

// InboxMessage certifies that a handler (or a remote consumer) has already
// applied a given event. The (EventID, Handler) pair is the dedup gate that
// turns at-least-once delivery into at-most-once effect.
type InboxMessage struct {
	EventID     uuid.UUID
	Handler     string
	ProcessedAt time.Time
	Attempts    int
}

// OutboxCounts summarizes the delivery state of an outbox table.
type OutboxCounts struct {
	Pending   int64 `json:"pending"`
	Processed int64 `json:"processed"`
	Exhausted int64 `json:"exhausted"`
}

// OutboxRepository persists staged messages. Save must run on the same
// transaction as the business write; everything else runs on the pool.
// All state transitions are conditional writes against the table, never
// in-memory locks, because competing dispatchers may live in separate
// processes.
type OutboxRepository interface {
	// Save persists one or more messages
	Save(ctx context.Context, msgs ...*OutboxMessage) error
	// ClaimPending leases up to limit unprocessed messages with attempts
	// below maxAttempts, oldest first. The lease is best effort; the inbox
	// unique constraint is the correctness boundary.
	ClaimPending(ctx context.Context, limit, maxAttempts int) ([]*OutboxMessage, error)
	// MarkProcessed sets ProcessedAt if and only if it is still null
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	// MarkFailed increments Attempts and records the failure cause
	MarkFailed(ctx context.Context, id uuid.UUID, cause string) error
	// FindByID retrieves a single message
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxMessage, error)
	// FindExhausted pages through stuck messages for operator inspection
	FindExhausted(ctx context.Context, maxAttempts, page, pageSize int) ([]*OutboxMessage, int64, error)
	// Requeue resets Attempts on an unprocessed message
	Requeue(ctx context.Context, id uuid.UUID) error
	// CountByState returns pending/processed/exhausted totals
	CountByState(ctx context.Context, maxAttempts int) (OutboxCounts, error)
}

// InboxRepository is the durable dedup ledger.
type InboxRepository interface {
	// Seen reports whether (eventID, handler) was already applied
	Seen(ctx context.Context, eventID uuid.UUID, handler string) (bool, error)
	// Record inserts the dedup row, ignoring a duplicate
	Record(ctx context.Context, eventID uuid.UUID, handler string) error
	// Claim inserts the dedup row and reports whether this caller won it.
	// false means the event was already applied by this handler. Bind the
	// repository to the consuming transaction so a handler failure rolls
	// the claim back together with the side effects.
	Claim(ctx context.Context, eventID uuid.UUID, handler string) (bool, error)
}
