// Package pubsub provides a generic publish/subscribe event system used to
// stream agent session activity to interested observers (log mirroring,
// tests) without coupling the session loop to them.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	TurnEvent       EventType = "turn"       // an agent produced a message
	ToolCallEvent   EventType = "tool_call"  // an agent invoked a registered tool
	ToolResultEvent EventType = "tool_result"
	TerminatedEvent EventType = "terminated" // the session hit the TERMINATE sentinel
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
