package event

import (
	"context"
	"fmt"
	"time"

	"github.com/hobbylab/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxWriter turns buffered domain events into durable outbox rows at
// commit time. Stage runs inside the same GORM transaction as the business
// write, so either the aggregate change and its events are committed
// together or neither is. This is the only place where "code called a
// domain method" becomes "a dispatchable fact".
type OutboxWriter struct {
	factory    *EnvelopeFactory
	serializer *EnvelopeSerializer
	table      string
}

// NewOutboxWriter creates a writer targeting the domain outbox
func NewOutboxWriter(registry *TypeRegistry) *OutboxWriter {
	return &OutboxWriter{
		factory:    NewEnvelopeFactory(registry),
		serializer: NewEnvelopeSerializer(registry),
		table:      TableOutbox,
	}
}

// NewIntegrationOutboxWriter creates a writer targeting the integration
// outbox. Used by translation handlers enqueueing cross-boundary events.
func NewIntegrationOutboxWriter(registry *TypeRegistry) *OutboxWriter {
	return &OutboxWriter{
		factory:    NewEnvelopeFactory(registry),
		serializer: NewEnvelopeSerializer(registry),
		table:      TableIntegrationOutbox,
	}
}

// Stage drains every aggregate's event buffer into outbox rows on the given
// transaction. Buffers are cleared whether or not staging succeeds: a failed
// unit of work is retried from scratch and rebuilds its events, so stale
// entries must not leak into the next attempt. Aggregates without pending
// events add no write overhead. Row insertion order follows buffer order and
// rows within one call get strictly increasing created_at stamps, so one
// aggregate's events keep their sequence through the oldest-first claim even
// on databases that truncate timestamps to microseconds.
func (w *OutboxWriter) Stage(ctx context.Context, tx *gorm.DB, aggregates ...shared.AggregateRoot) error {
	defer func() {
		for _, agg := range aggregates {
			agg.ClearEvents()
		}
	}()

	var msgs []*shared.OutboxMessage

	for _, agg := range aggregates {
		for _, raw := range agg.PendingEvents() {
			env, err := w.factory.Wrap(ctx, raw)
			if err != nil {
				return err
			}
			payload, err := w.serializer.Serialize(env)
			if err != nil {
				return err
			}
			msgs = append(msgs, shared.NewOutboxMessage(env, payload))
		}
	}

	if len(msgs) == 0 {
		return nil
	}

	base := time.Now().UTC()
	for i, msg := range msgs {
		msg.CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
	}

	repo := NewGormOutboxRepository(tx, w.table)
	if err := repo.Save(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to stage events to %s: %w", w.table, err)
	}
	return nil
}

// StageEnvelope persists an already-built envelope, typically one derived
// from another event via WrapCaused.
func (w *OutboxWriter) StageEnvelope(ctx context.Context, tx *gorm.DB, env *shared.Envelope) error {
	payload, err := w.serializer.Serialize(env)
	if err != nil {
		return err
	}

	repo := NewGormOutboxRepository(tx, w.table)
	if err := repo.Save(ctx, shared.NewOutboxMessage(env, payload)); err != nil {
		return fmt.Errorf("failed to stage envelope to %s: %w", w.table, err)
	}
	return nil
}

// Factory exposes the writer's envelope factory for callers that derive
// events from other events.
func (w *OutboxWriter) Factory() *EnvelopeFactory {
	return w.factory
}
