package broker

import (
	"context"
	"fmt"
)

// Message is a raw broker delivery
type Message struct {
	Topic   string
	Payload []byte
}

// Publisher publishes serialized envelopes to a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscription is an active pattern subscription. Messages is closed when
// the subscription shuts down.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Subscriber subscribes to topic patterns, e.g. "materials.*.v1" to receive
// every version-1 event a module publishes without enumerating event names.
type Subscriber interface {
	Subscribe(ctx context.Context, patterns ...string) (Subscription, error)
}

// Topic derives the broker topic for an event: <module>.<name>.v<version>
func Topic(module, name string, version int) string {
	return fmt.Sprintf("%s.%s.v%d", module, name, version)
}

// Pattern derives the subscription pattern matching every event of a module
// at a given version.
func Pattern(module string, version int) string {
	return fmt.Sprintf("%s.*.v%d", module, version)
}
