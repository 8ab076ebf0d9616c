// ABOUTME: Stream event types delivered to chat consumers
// ABOUTME: A stream terminates with exactly one of Done or Error

package chat

// EventType indicates the kind of a chat stream event.
type EventType int

const (
	// EventDelta carries one generated text fragment.
	EventDelta EventType = iota
	// EventDone signals natural completion; Text holds the full response.
	EventDone
	// EventError signals generation failure. Fragments already delivered
	// are not retracted, and no assistant message is persisted.
	EventError
)

// Event is one event on a chat stream.
type Event struct {
	Type EventType
	Text string
	Err  error
}
