package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/shared"
)

// EnvelopeFactory builds envelopes around raw payloads. Identity metadata
// (tenant, username, correlation) comes from the request metadata carried
// explicitly in the context; the factory has no ambient state.
type EnvelopeFactory struct {
	registry *TypeRegistry
}

// NewEnvelopeFactory creates a factory backed by the given registry
func NewEnvelopeFactory(registry *TypeRegistry) *EnvelopeFactory {
	return &EnvelopeFactory{registry: registry}
}

// Wrap builds an envelope for a payload raised inside the current unit of
// work. Fails with a ConfigurationError when the payload's (name, version)
// was never registered: an unregistered event could be written but never
// dispatched, which is a wiring bug, not a runtime condition.
func (f *EnvelopeFactory) Wrap(ctx context.Context, payload shared.Event) (*shared.Envelope, error) {
	if !f.registry.Registered(payload) {
		return nil, shared.NewConfigurationError("payload type %T (%s) is not registered", payload, shared.KeyOf(payload))
	}

	md, _ := shared.MetadataFrom(ctx)

	return &shared.Envelope{
		EventID:       uuid.New(),
		Name:          payload.EventName(),
		Version:       payload.EventVersion(),
		OccurredAt:    time.Now().UTC(),
		TenantID:      md.TenantID,
		Username:      md.Username,
		CorrelationID: md.CorrelationID,
		Event:         payload,
	}, nil
}

// WrapCaused builds an envelope for a payload derived from another event,
// typically a domain event being translated into an integration contract.
// The correlation id is inherited so the causal chain stays reconstructable;
// the causation id is the causing event's id.
func (f *EnvelopeFactory) WrapCaused(ctx context.Context, payload shared.Event, cause *shared.Envelope) (*shared.Envelope, error) {
	env, err := f.Wrap(ctx, payload)
	if err != nil {
		return nil, err
	}

	causeID := cause.EventID
	env.TenantID = cause.TenantID
	env.Username = cause.Username
	env.CorrelationID = cause.CorrelationID
	env.CausationID = &causeID

	return env, nil
}
