package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker implements Publisher and Subscriber over Redis Pub/Sub.
// PSUBSCRIBE gives native glob-pattern subscriptions, which maps directly
// onto the <module>.*.v<version> topic scheme. The transport itself does
// not redeliver; the consumer-side inbox guard stays in place so swapping
// in a redelivering broker changes nothing above this package.
type RedisBroker struct {
	client *redis.Client
	logger *zap.Logger
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisBroker connects to Redis and verifies the connection
func NewRedisBroker(cfg RedisConfig, logger *zap.Logger) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis broker: %w", err)
	}

	return &RedisBroker{client: client, logger: logger}, nil
}

// NewRedisBrokerWithClient wraps an existing client, useful for tests and
// for sharing a connection pool with other components.
func NewRedisBrokerWithClient(client *redis.Client, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, logger: logger}
}

// Publish sends a payload to a topic
func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe opens a pattern subscription and pumps deliveries into the
// returned channel until Close or context cancellation.
func (b *RedisBroker) Subscribe(ctx context.Context, patterns ...string) (Subscription, error) {
	pubsub := b.client.PSubscribe(ctx, patterns...)

	// Force the subscription handshake so a broken connection surfaces
	// here instead of as a silently empty channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %v: %w", patterns, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		out:    make(chan Message),
	}
	sub.wg.Add(1)
	go sub.pump(ctx)

	b.logger.Info("broker subscription opened", zap.Strings("patterns", patterns))
	return sub, nil
}

// Close closes the underlying client
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	pubsub    *redis.PubSub
	out       chan Message
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (s *redisSubscription) Messages() <-chan Message {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.pubsub.Close()
	})
	s.wg.Wait()
	return err
}

func (s *redisSubscription) pump(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.out)

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case s.out <- Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Interface checks
var (
	_ Publisher  = (*RedisBroker)(nil)
	_ Subscriber = (*RedisBroker)(nil)
)
