package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hobbylab/backend/internal/domain/shared"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DispatcherConfig holds configuration for the outbox dispatcher
type DispatcherConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
	// LeaseBatches wraps each poll in a transaction so Postgres can lease
	// the batch with FOR UPDATE SKIP LOCKED. Leave off on databases that
	// reject locking clauses; the inbox dedup gate stays authoritative
	// either way.
	LeaseBatches bool
	// Idempotency controls the optional fast-path duplicate filter.
	Idempotency shared.IdempotencyConfig
}

// DefaultDispatcherConfig returns default configuration
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BatchSize:    100,
		PollInterval: 5 * time.Second,
		MaxAttempts:  shared.DefaultMaxAttempts,
		LeaseBatches: true,
		Idempotency:  shared.DefaultIdempotencyConfig(),
	}
}

// Dispatcher drains an outbox table in the background: poll, deserialize,
// route, invoke, record. It guarantees at-most-once handler effect per
// (event id, handler) through the inbox ledger; a crash between a handler's
// side effect and the inbox write can re-execute that handler, which is the
// known gap of write-after-effect ordering.
type Dispatcher struct {
	db         *gorm.DB
	outbox     *GormOutboxRepository
	inbox      *GormInboxRepository
	serializer *EnvelopeSerializer
	router     *Router
	fastPath   shared.IdempotencyStore
	config     DispatcherConfig
	metrics    *Metrics
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// DispatcherOption is a functional option for the dispatcher
type DispatcherOption func(*Dispatcher)

// WithFastPathStore installs the optional idempotency pre-filter. A hit
// skips a handler cheaply; a miss still consults the durable inbox.
func WithFastPathStore(store shared.IdempotencyStore) DispatcherOption {
	return func(d *Dispatcher) {
		d.fastPath = store
	}
}

// WithMetrics installs delivery counters
func WithMetrics(metrics *Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// NewDispatcher creates a dispatcher for the given outbox table
func NewDispatcher(
	db *gorm.DB,
	table string,
	serializer *EnvelopeSerializer,
	router *Router,
	config DispatcherConfig,
	logger *zap.Logger,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		db:         db,
		outbox:     NewGormOutboxRepository(db, table),
		inbox:      NewGormInboxRepository(db),
		serializer: serializer,
		router:     router,
		config:     config,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start begins background polling
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go d.pollLoop(ctx)

	d.logger.Info("outbox dispatcher started",
		zap.Int("batch_size", d.config.BatchSize),
		zap.Duration("poll_interval", d.config.PollInterval),
		zap.Int("max_attempts", d.config.MaxAttempts),
	)
	return nil
}

// Stop shuts down cooperatively: the in-flight message finishes, no new
// poll is scheduled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("outbox dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) pollLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Poll(ctx)
		}
	}
}

// Poll processes one batch. Exposed so tests and the admin surface can
// drive the dispatcher without waiting for the ticker.
//
// Cancellation is honored only between rows. The per-row pipeline runs on a
// detached context: once a handler has been invoked, the inbox record and
// the processed_at transition must land no matter when the stop signal
// arrives, or the side effect would replay on the next start.
func (d *Dispatcher) Poll(ctx context.Context) {
	rowCtx := context.WithoutCancel(ctx)

	if !d.config.LeaseBatches {
		d.processBatch(ctx, rowCtx, d.outbox)
		return
	}

	err := d.db.WithContext(rowCtx).Transaction(func(tx *gorm.DB) error {
		d.processBatch(ctx, rowCtx, d.outbox.WithTx(tx))
		return nil
	})
	if err != nil {
		d.logger.Error("outbox batch transaction failed", zap.Error(err))
	}
}

// processBatch claims and processes pending messages. A single message's
// failure never aborts the batch or the loop; ctx cancellation stops the
// batch at the next row boundary while rowCtx keeps the in-flight row's
// bookkeeping alive.
func (d *Dispatcher) processBatch(ctx, rowCtx context.Context, outbox *GormOutboxRepository) {
	msgs, err := outbox.ClaimPending(rowCtx, d.config.BatchSize, d.config.MaxAttempts)
	if err != nil {
		d.logger.Error("failed to claim pending outbox messages", zap.Error(err))
		return
	}

	for _, msg := range msgs {
		if ctx.Err() != nil {
			return
		}
		d.processMessage(rowCtx, outbox, msg)
	}
}

// processMessage runs the full per-row delivery pipeline:
// deserialize, resolve handlers, dedup-check, invoke, record, transition.
func (d *Dispatcher) processMessage(ctx context.Context, outbox *GormOutboxRepository, msg *shared.OutboxMessage) {
	env, err := d.serializer.Deserialize(msg.Payload)
	if err != nil {
		d.failMessage(ctx, outbox, msg, err)
		return
	}

	var failures []string
	for _, handler := range d.router.Handlers(env.Key()) {
		applied, err := d.alreadyApplied(ctx, env, handler.HandlerName())
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: inbox check: %v", handler.HandlerName(), err))
			continue
		}
		if applied {
			d.metrics.incSkipped(ctx, handler.HandlerName())
			continue
		}

		if err := d.invoke(ctx, handler, env); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", handler.HandlerName(), err))
			continue
		}

		// The inbox row is written only after the handler returned, so a
		// crash in between re-executes this handler on the next pass.
		if err := d.inbox.Record(ctx, env.EventID, handler.HandlerName()); err != nil {
			failures = append(failures, fmt.Sprintf("%s: inbox record: %v", handler.HandlerName(), err))
			continue
		}
		d.markFastPath(ctx, env, handler.HandlerName())
	}

	if len(failures) > 0 {
		d.failMessage(ctx, outbox, msg, fmt.Errorf("%w: %s", shared.ErrHandlerFailure, strings.Join(failures, "; ")))
		return
	}

	if err := outbox.MarkProcessed(ctx, msg.ID); err != nil {
		d.logger.Error("failed to mark outbox message processed",
			zap.String("event_id", msg.ID.String()),
			zap.Error(err),
		)
		return
	}

	d.metrics.incProcessed(ctx, msg.Name)
	d.logger.Debug("outbox message processed",
		zap.String("event_id", msg.ID.String()),
		zap.String("event", msg.Name),
	)
}

// failMessage increments the attempt counter and surfaces exhaustion.
// The message stays in the table either way; this core never deletes.
func (d *Dispatcher) failMessage(ctx context.Context, outbox *GormOutboxRepository, msg *shared.OutboxMessage, cause error) {
	fields := []zap.Field{
		zap.String("event_id", msg.ID.String()),
		zap.String("event", msg.Name),
		zap.Int("version", msg.Version),
		zap.Int("attempts", msg.Attempts+1),
		zap.Error(cause),
	}

	switch {
	case errors.Is(cause, shared.ErrUnknownEventType):
		d.logger.Warn("outbox message has unregistered event type, leaving unprocessed", fields...)
	case errors.Is(cause, shared.ErrSerialization):
		// Distinct from an unknown type: the mapping exists but the stored
		// payload no longer fits it, which is a schema-compatibility bug.
		d.logger.Error("outbox message failed to deserialize against its registered type", fields...)
	default:
		d.logger.Error("outbox message dispatch failed", fields...)
	}

	if err := outbox.MarkFailed(ctx, msg.ID, cause.Error()); err != nil {
		d.logger.Error("failed to record dispatch failure",
			zap.String("event_id", msg.ID.String()),
			zap.Error(err),
		)
		return
	}
	d.metrics.incFailed(ctx, msg.Name)

	if msg.Attempts+1 >= d.config.MaxAttempts {
		d.metrics.incExhausted(ctx, msg.Name)
		d.logger.Warn("outbox message exhausted retries and will not be retried",
			zap.String("event_id", msg.ID.String()),
			zap.String("event", msg.Name),
			zap.Int("attempts", msg.Attempts+1),
			zap.String("last_error", cause.Error()),
		)
	}
}

// alreadyApplied consults the fast path first, then the durable inbox
func (d *Dispatcher) alreadyApplied(ctx context.Context, env *shared.Envelope, handler string) (bool, error) {
	if d.fastPath != nil && d.config.Idempotency.Enabled {
		hit, err := d.fastPath.IsProcessed(ctx, fastPathKey(env, handler))
		if err != nil {
			// The fast path is advisory; fall through to the inbox.
			d.logger.Warn("idempotency fast path unavailable",
				zap.String("event_id", env.EventID.String()),
				zap.Error(err),
			)
		} else if hit {
			return true, nil
		}
	}

	return d.inbox.Seen(ctx, env.EventID, handler)
}

func (d *Dispatcher) markFastPath(ctx context.Context, env *shared.Envelope, handler string) {
	if d.fastPath == nil || !d.config.Idempotency.Enabled {
		return
	}
	if _, err := d.fastPath.MarkProcessed(ctx, fastPathKey(env, handler), d.config.Idempotency.TTL); err != nil {
		d.logger.Warn("failed to mark idempotency fast path",
			zap.String("event_id", env.EventID.String()),
			zap.Error(err),
		)
	}
}

// invoke calls the handler, converting a panic into an error so one
// misbehaving handler cannot take down the loop.
func (d *Dispatcher) invoke(ctx context.Context, handler shared.EventHandler, env *shared.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panicked: %v", shared.ErrHandlerFailure, r)
		}
	}()
	return handler.Handle(ctx, env)
}

func fastPathKey(env *shared.Envelope, handler string) string {
	return env.EventID.String() + ":" + handler
}
