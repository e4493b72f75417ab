// Package eventbus moves execution events and billing notifications between
// the engine and whoever listens for them.
package eventbus

import (
	"context"

	"github.com/dukex/hesab/pkg/events"
)

// Event is anything the bus can route by type.
type Event interface {
	GetType() events.EventType
}

// EventPublisher is what the engine and the notification steps need. A
// publish failure never fails a run.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber dispatches incoming events to one handler per type.
// Handlers must be registered before Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event, e.g.
// *events.BillingNotification. Returning an error nacks the message.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
