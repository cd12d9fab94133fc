package shared

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type createdEvent struct{ Seq int }

func (createdEvent) EventName() string { return "material-created" }
func (createdEvent) EventVersion() int { return 1 }

func TestAggregate_EventBufferPreservesOrder(t *testing.T) {
	agg := NewTenantAggregateRoot(uuid.New())

	agg.RaiseEvent(createdEvent{Seq: 1})
	agg.RaiseEvent(priceChanged{})

	events := agg.PendingEvents()
	assert.Len(t, events, 2)
	assert.Equal(t, "material-created", events[0].EventName())
	assert.Equal(t, "material-package-price-changed", events[1].EventName())
}

func TestAggregate_ClearEvents(t *testing.T) {
	agg := NewTenantAggregateRoot(uuid.New())
	agg.RaiseEvent(createdEvent{})

	agg.ClearEvents()

	assert.Empty(t, agg.PendingEvents())
}

func TestMetadata_RoundTrip(t *testing.T) {
	corr := uuid.New()
	md := Metadata{TenantID: uuid.New(), Username: "paintmixer", CorrelationID: &corr}

	ctx := WithMetadata(context.Background(), md)

	got, ok := MetadataFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, md, got)

	_, ok = MetadataFrom(context.Background())
	assert.False(t, ok)
}
