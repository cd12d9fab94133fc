package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/hobbylab/backend/internal/domain/shared"
)

// envelopeDocument is the JSON wire shape of an envelope. Enum-like fields
// serialize as strings and unknown fields are ignored on receipt, so adding
// variants or fields never breaks already-serialized messages.
type envelopeDocument struct {
	EventID       uuid.UUID       `json:"event_id"`
	Name          string          `json:"name"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	Username      string          `json:"username"`
	CorrelationID *uuid.UUID      `json:"correlation_id,omitempty"`
	CausationID   *uuid.UUID      `json:"causation_id,omitempty"`
	Event         json.RawMessage `json:"event"`
}

// EnvelopeSerializer converts envelopes to and from the transport-neutral
// JSON format, resolving payload types through the registry and upgrading
// old payload versions to the current schema on the way in.
type EnvelopeSerializer struct {
	registry *TypeRegistry
}

// NewEnvelopeSerializer creates a serializer backed by the given registry
func NewEnvelopeSerializer(registry *TypeRegistry) *EnvelopeSerializer {
	return &EnvelopeSerializer{registry: registry}
}

// Serialize renders the envelope as JSON
func (s *EnvelopeSerializer) Serialize(env *shared.Envelope) ([]byte, error) {
	payload, err := json.Marshal(env.Event)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal %s: %v", shared.ErrSerialization, env.Key(), err)
	}

	doc := envelopeDocument{
		EventID:       env.EventID,
		Name:          env.Name,
		Version:       env.Version,
		OccurredAt:    env.OccurredAt,
		TenantID:      env.TenantID,
		Username:      env.Username,
		CorrelationID: env.CorrelationID,
		CausationID:   env.CausationID,
		Event:         payload,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal envelope %s: %v", shared.ErrSerialization, env.EventID, err)
	}
	return data, nil
}

// Deserialize parses an envelope and its typed payload. Payloads stored at
// an older version are upgraded through the registered chain; the returned
// envelope then carries the current version. A (name, version) absent from
// the registry fails with ErrUnknownEventType: callers must leave the
// message unprocessed, never discard it.
func (s *EnvelopeSerializer) Deserialize(data []byte) (*shared.Envelope, error) {
	var doc envelopeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: unmarshal envelope: %v", shared.ErrSerialization, err)
	}

	payload, key, err := s.decodePayload(doc.Name, doc.Version, doc.Event)
	if err != nil {
		return nil, err
	}

	return &shared.Envelope{
		EventID:       doc.EventID,
		Name:          key.Name,
		Version:       key.Version,
		OccurredAt:    doc.OccurredAt,
		TenantID:      doc.TenantID,
		Username:      doc.Username,
		CorrelationID: doc.CorrelationID,
		CausationID:   doc.CausationID,
		Event:         payload,
	}, nil
}

// Peek extracts the envelope identity without resolving the payload type.
// Used by consumers that must claim the inbox row before deciding whether
// the payload is even deserializable.
func (s *EnvelopeSerializer) Peek(data []byte) (uuid.UUID, shared.EventKey, error) {
	var doc envelopeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return uuid.Nil, shared.EventKey{}, fmt.Errorf("%w: unmarshal envelope head: %v", shared.ErrSerialization, err)
	}
	if doc.EventID == uuid.Nil {
		return uuid.Nil, shared.EventKey{}, fmt.Errorf("%w: envelope has no event id", shared.ErrSerialization)
	}
	return doc.EventID, shared.EventKey{Name: doc.Name, Version: doc.Version}, nil
}

// decodePayload resolves the payload type and unmarshals raw into it,
// upgrading old versions when a complete upgrader chain exists.
func (s *EnvelopeSerializer) decodePayload(name string, version int, raw json.RawMessage) (shared.Event, shared.EventKey, error) {
	key := shared.EventKey{Name: name, Version: version}

	cur, known := s.registry.CurrentVersion(name)
	if !known || version > cur {
		return nil, key, fmt.Errorf("%w: %s", shared.ErrUnknownEventType, key)
	}

	if version < cur {
		if path, ok := s.registry.upgradePath(name, version); ok {
			upgraded := []byte(raw)
			var err error
			for i, up := range path {
				if upgraded, err = up(upgraded); err != nil {
					return nil, key, fmt.Errorf("%w: upgrade %s v%d: %v", shared.ErrSerialization, name, version+i, err)
				}
			}
			raw = upgraded
			key = shared.EventKey{Name: name, Version: cur}
		}
		// No complete chain: fall through and try the version as stored.
	}

	t, ok := s.registry.Resolve(key)
	if !ok {
		return nil, key, fmt.Errorf("%w: %s", shared.ErrUnknownEventType, key)
	}

	ptr := reflect.New(t)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return nil, key, fmt.Errorf("%w: unmarshal %s: %v", shared.ErrSerialization, key, err)
	}

	payload, ok := ptr.Elem().Interface().(shared.Event)
	if !ok {
		// Value receiver methods are promoted to the pointer as well.
		payload, ok = ptr.Interface().(shared.Event)
	}
	if !ok {
		return nil, key, fmt.Errorf("%w: %s does not implement Event", shared.ErrSerialization, t)
	}

	return payload, key, nil
}
