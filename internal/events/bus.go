package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers of its concrete type.
// Unknown event types are dropped.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case CameraCreatedEvent:
		event.Publish(b.dispatcher, e)
	case CameraDisposedEvent:
		event.Publish(b.dispatcher, e)
	case OperationCompletedEvent:
		event.Publish(b.dispatcher, e)
	case CameraErrorEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type named by its parameter and
// returns an unsubscribe function. Unsupported handler types get a no-op.
//
//	unsub := bus.Subscribe(func(e CameraErrorEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(CameraCreatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CameraDisposedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(OperationCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CameraErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
