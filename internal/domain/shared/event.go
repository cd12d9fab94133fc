package shared

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a domain or integration event payload. Implementations declare
// their stable wire identity through EventName and EventVersion; the pair
// must resolve to exactly one Go type in the type registry.
type Event interface {
	// EventName returns the stable string identifier of the event kind,
	// e.g. "material-created". It never changes once events of this kind
	// have been persisted.
	EventName() string
	// EventVersion returns the schema version of the payload, starting at 1
	// and increasing monotonically per name.
	EventVersion() int
}

// ModuleEvent is an event that crosses context boundaries. The module name
// becomes the first segment of the broker topic, e.g. "materials" in
// "materials.material-created.v1".
type ModuleEvent interface {
	Event
	EventModule() string
}

// EventKey identifies an event schema: the (name, version) pair.
type EventKey struct {
	Name    string
	Version int
}

// KeyOf returns the EventKey for a payload.
func KeyOf(event Event) EventKey {
	return EventKey{Name: event.EventName(), Version: event.EventVersion()}
}

// String renders the key in topic-segment form, e.g. "material-created.v1".
func (k EventKey) String() string {
	return fmt.Sprintf("%s.v%d", k.Name, k.Version)
}

// Envelope wraps an event payload with identity and routing metadata.
// An envelope is never mutated after construction.
type Envelope struct {
	EventID       uuid.UUID
	Name          string
	Version       int
	OccurredAt    time.Time
	TenantID      uuid.UUID
	Username      string
	CorrelationID *uuid.UUID
	CausationID   *uuid.UUID
	Event         Event
}

// Key returns the (name, version) identity of the wrapped payload.
func (e *Envelope) Key() EventKey {
	return EventKey{Name: e.Name, Version: e.Version}
}
