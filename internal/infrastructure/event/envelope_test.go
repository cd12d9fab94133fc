package event

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeFactory_Wrap(t *testing.T) {
	factory := NewEnvelopeFactory(newTestRegistry(t))

	md := testMetadata()
	env, err := factory.Wrap(testContext(md), toolAcquired{ToolID: uuid.New(), Label: "clamp"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, env.EventID)
	assert.Equal(t, "tool-acquired", env.Name)
	assert.Equal(t, 1, env.Version)
	assert.Equal(t, md.TenantID, env.TenantID)
	assert.Equal(t, md.Username, env.Username)
	assert.Equal(t, md.CorrelationID, env.CorrelationID)
	assert.Nil(t, env.CausationID)
	assert.False(t, env.OccurredAt.IsZero())
}

func TestEnvelopeFactory_WrapWithoutMetadata(t *testing.T) {
	factory := NewEnvelopeFactory(newTestRegistry(t))

	// Background jobs have no request metadata; the envelope is still valid.
	env, err := factory.Wrap(context.Background(), toolAcquired{ToolID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, env.TenantID)
	assert.Empty(t, env.Username)
	assert.Nil(t, env.CorrelationID)
}

func TestEnvelopeFactory_WrapUnregistered(t *testing.T) {
	factory := NewEnvelopeFactory(NewTypeRegistry())

	_, err := factory.Wrap(context.Background(), toolAcquired{})
	require.Error(t, err)

	var cfgErr *shared.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestEnvelopeFactory_WrapCaused(t *testing.T) {
	factory := NewEnvelopeFactory(newTestRegistry(t))

	md := testMetadata()
	cause, err := factory.Wrap(testContext(md), toolAcquired{ToolID: uuid.New()})
	require.NoError(t, err)

	// The derived envelope is built in a different context (the dispatcher's),
	// yet inherits identity from the cause, not from that context.
	derived, err := factory.WrapCaused(context.Background(), toolRetired{ToolID: uuid.New()}, cause)
	require.NoError(t, err)

	assert.NotEqual(t, cause.EventID, derived.EventID)
	assert.Equal(t, cause.TenantID, derived.TenantID)
	assert.Equal(t, cause.Username, derived.Username)
	assert.Equal(t, cause.CorrelationID, derived.CorrelationID)
	require.NotNil(t, derived.CausationID)
	assert.Equal(t, cause.EventID, *derived.CausationID)
}
