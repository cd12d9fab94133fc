package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hobbylab/backend/internal/domain/shared"
	"github.com/hobbylab/backend/internal/infrastructure/broker"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type txKey struct{}

// ContextWithTx attaches the consuming transaction to the context so
// subscriber handlers can join it. A handler that writes through this
// transaction gets rolled back together with the inbox claim on failure.
func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the consuming transaction, if any
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}

// ConsumerConfig holds configuration for the integration consumer
type ConsumerConfig struct {
	// Identity is the consumer's stable name, the second half of the inbox
	// dedup key. Two deployments with the same identity share one claim.
	Identity string
	// Patterns are the topic patterns to subscribe, e.g. "materials.*.v1".
	Patterns []string
}

// IntegrationConsumer applies broker messages idempotently. For every
// delivery it claims (event id, identity) in the inbox inside a database
// transaction before any handler runs: a lost claim means the message was
// already applied and is discarded; any failure after a won claim rolls
// everything back, claim included, so redelivery retries cleanly. An
// unrecognized event type also rolls back — the message is never silently
// dropped.
type IntegrationConsumer struct {
	db         *gorm.DB
	subscriber broker.Subscriber
	serializer *EnvelopeSerializer
	router     *Router
	config     ConsumerConfig
	metrics    *Metrics
	logger     *zap.Logger

	cancel context.CancelFunc
	sub    broker.Subscription
	wg     sync.WaitGroup
}

// NewIntegrationConsumer creates a consumer
func NewIntegrationConsumer(
	db *gorm.DB,
	subscriber broker.Subscriber,
	serializer *EnvelopeSerializer,
	router *Router,
	config ConsumerConfig,
	logger *zap.Logger,
	metrics *Metrics,
) *IntegrationConsumer {
	return &IntegrationConsumer{
		db:         db,
		subscriber: subscriber,
		serializer: serializer,
		router:     router,
		config:     config,
		metrics:    metrics,
		logger:     logger,
	}
}

// Start subscribes and begins consuming
func (c *IntegrationConsumer) Start(ctx context.Context) error {
	if c.config.Identity == "" {
		return shared.NewConfigurationError("integration consumer requires an identity")
	}
	if len(c.config.Patterns) == 0 {
		return shared.NewConfigurationError("integration consumer requires at least one topic pattern")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	sub, err := c.subscriber.Subscribe(ctx, c.config.Patterns...)
	if err != nil {
		cancel()
		return err
	}
	c.sub = sub

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Info("integration consumer started",
		zap.String("identity", c.config.Identity),
		zap.Strings("patterns", c.config.Patterns),
	)
	return nil
}

// Stop finishes the in-flight message, then closes the subscription
func (c *IntegrationConsumer) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if c.sub != nil {
		if err := c.sub.Close(); err != nil {
			return err
		}
	}
	c.logger.Info("integration consumer stopped")
	return nil
}

func (c *IntegrationConsumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.sub.Messages():
			if !ok {
				return
			}
			c.HandleDelivery(ctx, msg)
		}
	}
}

// HandleDelivery applies one raw broker message. Exposed for tests and for
// transports that deliver through callbacks.
func (c *IntegrationConsumer) HandleDelivery(ctx context.Context, msg broker.Message) {
	eventID, key, err := c.serializer.Peek(msg.Payload)
	if err != nil {
		// Not even an envelope; nothing to claim or retry against.
		c.logger.Error("discarding malformed broker message",
			zap.String("topic", msg.Topic),
			zap.Error(err),
		)
		return
	}

	duplicate := false
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inbox := NewGormInboxRepository(tx)

		won, err := inbox.Claim(ctx, eventID, c.config.Identity)
		if err != nil {
			return fmt.Errorf("inbox claim: %w", err)
		}
		if !won {
			duplicate = true
			return nil
		}

		env, err := c.serializer.Deserialize(msg.Payload)
		if err != nil {
			// Rolls back the claim; the message stays unconsumed for
			// inspection or a later deploy that knows the type.
			return err
		}

		txCtx := ContextWithTx(ctx, tx)
		for _, handler := range c.router.Handlers(env.Key()) {
			if err := c.invoke(txCtx, handler, env); err != nil {
				return fmt.Errorf("%w: %s: %v", shared.ErrHandlerFailure, handler.HandlerName(), err)
			}
		}
		return nil
	})

	switch {
	case err == nil && duplicate:
		c.logger.Debug("duplicate broker delivery discarded",
			zap.String("event_id", eventID.String()),
			zap.String("topic", msg.Topic),
		)
	case err == nil:
		c.metrics.incConsumed(ctx, key.Name)
		c.logger.Debug("broker message applied",
			zap.String("event_id", eventID.String()),
			zap.String("topic", msg.Topic),
		)
	case errors.Is(err, shared.ErrUnknownEventType):
		c.logger.Warn("broker message has unregistered event type, leaving unconsumed",
			zap.String("event_id", eventID.String()),
			zap.String("event", key.String()),
			zap.String("topic", msg.Topic),
		)
	default:
		c.logger.Error("failed to apply broker message, claim rolled back",
			zap.String("event_id", eventID.String()),
			zap.String("topic", msg.Topic),
			zap.Error(err),
		)
	}
}

func (c *IntegrationConsumer) invoke(ctx context.Context, handler shared.EventHandler, env *shared.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, env)
}
