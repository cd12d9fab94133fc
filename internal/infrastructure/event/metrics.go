package event

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics exposes delivery counters. Exhausted messages in particular must
// be observable: the dispatcher stops retrying them silently, so the
// counter (plus the admin API) is how operators find out.
type Metrics struct {
	processed metric.Int64Counter
	failed    metric.Int64Counter
	skipped   metric.Int64Counter
	exhausted metric.Int64Counter
	published metric.Int64Counter
	consumed  metric.Int64Counter
}

// NewMetrics creates delivery counters on the given meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.processed, err = meter.Int64Counter("outbox.messages.processed",
		metric.WithDescription("Outbox messages fully dispatched")); err != nil {
		return nil, err
	}
	if m.failed, err = meter.Int64Counter("outbox.messages.failed",
		metric.WithDescription("Failed dispatch attempts")); err != nil {
		return nil, err
	}
	if m.skipped, err = meter.Int64Counter("outbox.handlers.skipped",
		metric.WithDescription("Handler invocations skipped by the inbox dedup gate")); err != nil {
		return nil, err
	}
	if m.exhausted, err = meter.Int64Counter("outbox.messages.exhausted",
		metric.WithDescription("Messages that ran out of retries unprocessed")); err != nil {
		return nil, err
	}
	if m.published, err = meter.Int64Counter("integration.messages.published",
		metric.WithDescription("Integration messages published to the broker")); err != nil {
		return nil, err
	}
	if m.consumed, err = meter.Int64Counter("integration.messages.consumed",
		metric.WithDescription("Broker messages applied by the consumer")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) incProcessed(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("event", name)))
}

func (m *Metrics) incFailed(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("event", name)))
}

func (m *Metrics) incSkipped(ctx context.Context, handler string) {
	if m == nil {
		return
	}
	m.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("handler", handler)))
}

func (m *Metrics) incExhausted(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.exhausted.Add(ctx, 1, metric.WithAttributes(attribute.String("event", name)))
}

func (m *Metrics) incPublished(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	m.published.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *Metrics) incConsumed(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.consumed.Add(ctx, 1, metric.WithAttributes(attribute.String("event", name)))
}
