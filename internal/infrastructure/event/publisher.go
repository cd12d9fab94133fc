package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hobbylab/backend/internal/domain/shared"
	"github.com/hobbylab/backend/internal/infrastructure/broker"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PublisherConfig holds configuration for the integration publisher
type PublisherConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
	// DefaultModule names the topic namespace for integration events whose
	// payload type does not declare its own module.
	DefaultModule string
}

// DefaultPublisherConfig returns default configuration
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		BatchSize:     100,
		PollInterval:  5 * time.Second,
		MaxAttempts:   shared.DefaultMaxAttempts,
		DefaultModule: "hobbylab",
	}
}

// IntegrationPublisher drains the integration outbox to the broker. Publish
// failures retry exactly like dispatch failures: attempts increment, the
// row stays, exhaustion is surfaced.
type IntegrationPublisher struct {
	repo     *GormOutboxRepository
	registry *TypeRegistry
	broker   broker.Publisher
	config   PublisherConfig
	metrics  *Metrics
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewIntegrationPublisher creates a publisher over the integration outbox
func NewIntegrationPublisher(
	db *gorm.DB,
	registry *TypeRegistry,
	pub broker.Publisher,
	config PublisherConfig,
	logger *zap.Logger,
	metrics *Metrics,
) *IntegrationPublisher {
	return &IntegrationPublisher{
		repo:     NewGormOutboxRepository(db, TableIntegrationOutbox),
		registry: registry,
		broker:   pub,
		config:   config,
		metrics:  metrics,
		logger:   logger,
	}
}

// Start begins background polling
func (p *IntegrationPublisher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.pollLoop(ctx)

	p.logger.Info("integration publisher started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
	)
	return nil
}

// Stop shuts down cooperatively
func (p *IntegrationPublisher) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("integration publisher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *IntegrationPublisher) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll publishes one batch of pending integration messages
func (p *IntegrationPublisher) Poll(ctx context.Context) {
	msgs, err := p.repo.ClaimPending(ctx, p.config.BatchSize, p.config.MaxAttempts)
	if err != nil {
		p.logger.Error("failed to claim pending integration messages", zap.Error(err))
		return
	}

	for _, msg := range msgs {
		if ctx.Err() != nil {
			return
		}
		p.publishMessage(ctx, msg)
	}
}

func (p *IntegrationPublisher) publishMessage(ctx context.Context, msg *shared.OutboxMessage) {
	topic := p.topicFor(msg)

	if err := p.broker.Publish(ctx, topic, msg.Payload); err != nil {
		p.logger.Error("failed to publish integration message",
			zap.String("event_id", msg.ID.String()),
			zap.String("topic", topic),
			zap.Int("attempts", msg.Attempts+1),
			zap.Error(err),
		)
		if markErr := p.repo.MarkFailed(ctx, msg.ID, fmt.Sprintf("publish to %s: %v", topic, err)); markErr != nil {
			p.logger.Error("failed to record publish failure", zap.Error(markErr))
		}
		if msg.Attempts+1 >= p.config.MaxAttempts {
			p.metrics.incExhausted(ctx, msg.Name)
			p.logger.Warn("integration message exhausted retries",
				zap.String("event_id", msg.ID.String()),
				zap.String("topic", topic),
			)
		}
		return
	}

	if err := p.repo.MarkProcessed(ctx, msg.ID); err != nil {
		p.logger.Error("failed to mark integration message processed",
			zap.String("event_id", msg.ID.String()),
			zap.Error(err),
		)
		return
	}

	p.metrics.incPublished(ctx, topic)
	p.logger.Debug("integration message published",
		zap.String("event_id", msg.ID.String()),
		zap.String("topic", topic),
	)
}

// topicFor derives <module>.<name>.v<version> from the row, using the
// module the payload type declared at registration.
func (p *IntegrationPublisher) topicFor(msg *shared.OutboxMessage) string {
	module, ok := p.registry.Module(msg.Name)
	if !ok {
		module = p.config.DefaultModule
	}
	return broker.Topic(module, msg.Name, msg.Version)
}
