package event

import (
	"reflect"
	"sync"

	"github.com/hobbylab/backend/internal/domain/shared"
)

// Upgrader transforms a payload from one schema version to the next.
// Each upgrader handles a single sequential transition (v -> v+1); the input
// and output are raw JSON payloads.
type Upgrader func(payload []byte) ([]byte, error)

// TypeRegistry is the bidirectional map between a stable (name, version)
// pair and the concrete payload type. It is populated once at process start
// by explicit registration calls from module code; lookups afterwards are
// read-only. Registration problems are ConfigurationErrors and must stop
// the process rather than surface mid-batch.
type TypeRegistry struct {
	mu        sync.RWMutex
	types     map[shared.EventKey]reflect.Type
	keys      map[reflect.Type]shared.EventKey
	current   map[string]int
	modules   map[string]string
	upgraders map[shared.EventKey]Upgrader
}

// NewTypeRegistry creates an empty registry
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types:     make(map[shared.EventKey]reflect.Type),
		keys:      make(map[reflect.Type]shared.EventKey),
		current:   make(map[string]int),
		modules:   make(map[string]string),
		upgraders: make(map[shared.EventKey]Upgrader),
	}
}

// Register indexes payload prototypes by their declared (name, version).
// Registration is append-only and idempotent: re-registering the same type
// under the same key is a no-op, while a duplicate key claimed by a
// different type is a ConfigurationError.
func (r *TypeRegistry) Register(protos ...shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, proto := range protos {
		key := shared.KeyOf(proto)
		if key.Name == "" {
			return shared.NewConfigurationError("payload type %T declares an empty event name", proto)
		}
		if key.Version < 1 {
			return shared.NewConfigurationError("payload type %T declares version %d, must be >= 1", proto, key.Version)
		}

		t := payloadType(proto)
		if existing, ok := r.types[key]; ok {
			if existing != t {
				return shared.NewConfigurationError("%s already registered to %s, cannot remap to %s", key, existing, t)
			}
			continue
		}

		r.types[key] = t
		r.keys[t] = key
		if key.Version > r.current[key.Name] {
			r.current[key.Name] = key.Version
		}
		if me, ok := proto.(shared.ModuleEvent); ok {
			r.modules[key.Name] = me.EventModule()
		}
	}

	return nil
}

// MustRegister is Register for startup wiring; it panics on a
// ConfigurationError because running with a broken registry is worse than
// not running.
func (r *TypeRegistry) MustRegister(protos ...shared.Event) {
	if err := r.Register(protos...); err != nil {
		panic(err)
	}
}

// RegisterUpgrader installs the transform from (name, fromVersion) to the
// next version. The target version's type must already be registered.
func (r *TypeRegistry) RegisterUpgrader(name string, fromVersion int, up Upgrader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := shared.EventKey{Name: name, Version: fromVersion + 1}
	if _, ok := r.types[target]; !ok {
		return shared.NewConfigurationError("upgrader %s v%d->v%d targets an unregistered version", name, fromVersion, fromVersion+1)
	}

	key := shared.EventKey{Name: name, Version: fromVersion}
	if _, ok := r.upgraders[key]; ok {
		return shared.NewConfigurationError("duplicate upgrader for %s", key)
	}
	r.upgraders[key] = up

	return nil
}

// Resolve returns the Go type registered for the key
func (r *TypeRegistry) Resolve(key shared.EventKey) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[key]
	return t, ok
}

// Registered reports whether a payload's (name, version) is known
func (r *TypeRegistry) Registered(event shared.Event) bool {
	_, ok := r.Resolve(shared.KeyOf(event))
	return ok
}

// CurrentVersion returns the newest registered version of a name
func (r *TypeRegistry) CurrentVersion(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.current[name]
	return v, ok
}

// Module returns the publishing module recorded for an event name, used to
// derive broker topics. The second value is false when the event does not
// cross context boundaries.
func (r *TypeRegistry) Module(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// upgradePath returns the sequential upgraders from version up to the
// current version of name, or false when the chain has a gap.
func (r *TypeRegistry) upgradePath(name string, from int) ([]Upgrader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cur := r.current[name]
	path := make([]Upgrader, 0, cur-from)
	for v := from; v < cur; v++ {
		up, ok := r.upgraders[shared.EventKey{Name: name, Version: v}]
		if !ok {
			return nil, false
		}
		path = append(path, up)
	}
	return path, true
}

func payloadType(proto shared.Event) reflect.Type {
	t := reflect.TypeOf(proto)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
