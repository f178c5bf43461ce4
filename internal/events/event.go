// Package events carries distribution side effects (lead counters, realtime
// notifications) out of the engines so they never fail a mutation.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event with t, or now when t is zero.
func NewBaseEvent(t time.Time) BaseEvent {
	if t.IsZero() {
		t = time.Now()
	}
	return BaseEvent{Timestamp: t}
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to handlers subscribed by event name.
type Bus interface {
	// Publish runs handlers asynchronously; errors are logged only.
	Publish(ctx context.Context, event Event)
	// PublishSync runs handlers in order and returns the first error.
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}
