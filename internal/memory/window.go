// ABOUTME: Bounded per-conversation message buffer used as generation context
// ABOUTME: FIFO eviction at capacity; all mutations on one key are serialized

package memory

import (
	"sync"
)

// Role identifies who authored a buffered message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one buffered conversation turn.
type Message struct {
	Role    Role
	Content string
}

// DefaultCapacity is the number of recent messages retained per conversation.
const DefaultCapacity = 30

// Window holds the recent messages of every active conversation, keyed by
// conversation ID. Each key's buffer is bounded: when an append would
// exceed capacity, the oldest entries are evicted first. A single mutex
// serializes all mutations, which makes appends on one key atomic and
// preserves exact insertion order.
type Window struct {
	mu       sync.RWMutex
	buffers  map[string][]Message
	capacity int
}

// NewWindow creates a Window with the given per-conversation capacity.
// A capacity <= 0 falls back to DefaultCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		buffers:  make(map[string][]Message),
		capacity: capacity,
	}
}

// Append adds messages to a conversation's buffer in the order given,
// evicting the oldest entries if the buffer would exceed capacity.
func (w *Window) Append(conversationID string, msgs ...Message) {
	if len(msgs) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	buf := append(w.buffers[conversationID], msgs...)
	if over := len(buf) - w.capacity; over > 0 {
		buf = buf[over:]
	}
	w.buffers[conversationID] = buf
}

// Get returns a snapshot copy of a conversation's buffer in insertion
// order. The returned slice is safe to retain and iterate independently
// of later appends.
func (w *Window) Get(conversationID string) []Message {
	w.mu.RLock()
	defer w.mu.RUnlock()

	buf := w.buffers[conversationID]
	out := make([]Message, len(buf))
	copy(out, buf)
	return out
}

// Len returns the current buffer length for a conversation.
func (w *Window) Len(conversationID string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.buffers[conversationID])
}

// Clear removes a conversation's buffer entirely. Clearing an absent or
// already-empty key succeeds silently.
func (w *Window) Clear(conversationID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.buffers, conversationID)
}
