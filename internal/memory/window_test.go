// ABOUTME: Tests for the bounded per-conversation message window
// ABOUTME: Covers FIFO eviction, snapshot isolation and idempotent clearing

package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndGet(t *testing.T) {
	w := NewWindow(0)

	w.Append("conv-1",
		Message{Role: RoleUser, Content: "hello"},
		Message{Role: RoleAssistant, Content: "hi, how can I help?"},
	)

	got := w.Get("conv-1")
	require.Len(t, got, 2)
	assert.Equal(t, RoleUser, got[0].Role)
	assert.Equal(t, "hello", got[0].Content)
	assert.Equal(t, RoleAssistant, got[1].Role)
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	w := NewWindow(30)

	for i := 0; i < 35; i++ {
		w.Append("conv-1", Message{Role: RoleUser, Content: fmt.Sprintf("msg-%d", i)})
	}

	got := w.Get("conv-1")
	require.Len(t, got, 30)
	// Oldest five evicted; window holds msg-5 .. msg-34 in order
	assert.Equal(t, "msg-5", got[0].Content)
	assert.Equal(t, "msg-34", got[29].Content)
}

func TestBulkAppendKeepsNewestTail(t *testing.T) {
	w := NewWindow(3)

	msgs := make([]Message, 5)
	for i := range msgs {
		msgs[i] = Message{Role: RoleUser, Content: fmt.Sprintf("msg-%d", i)}
	}
	w.Append("conv-1", msgs...)

	got := w.Get("conv-1")
	require.Len(t, got, 3)
	assert.Equal(t, "msg-2", got[0].Content)
	assert.Equal(t, "msg-4", got[2].Content)
}

func TestConversationsAreIsolated(t *testing.T) {
	w := NewWindow(0)

	w.Append("conv-a", Message{Role: RoleUser, Content: "a"})
	w.Append("conv-b", Message{Role: RoleUser, Content: "b"})

	assert.Equal(t, 1, w.Len("conv-a"))
	assert.Equal(t, 1, w.Len("conv-b"))
	assert.Equal(t, "a", w.Get("conv-a")[0].Content)
	assert.Equal(t, "b", w.Get("conv-b")[0].Content)
}

func TestGetReturnsSnapshot(t *testing.T) {
	w := NewWindow(0)
	w.Append("conv-1", Message{Role: RoleUser, Content: "first"})

	snapshot := w.Get("conv-1")
	w.Append("conv-1", Message{Role: RoleAssistant, Content: "second"})

	// Snapshot is unaffected by the later append
	require.Len(t, snapshot, 1)
	assert.Equal(t, "first", snapshot[0].Content)
	assert.Equal(t, 2, w.Len("conv-1"))
}

func TestClearIsIdempotent(t *testing.T) {
	w := NewWindow(0)
	w.Append("conv-1", Message{Role: RoleUser, Content: "hello"})

	w.Clear("conv-1")
	assert.Equal(t, 0, w.Len("conv-1"))
	assert.Empty(t, w.Get("conv-1"))

	// Clearing again, and clearing a key that never existed, both succeed
	w.Clear("conv-1")
	w.Clear("never-seen")
}

func TestConcurrentAppends(t *testing.T) {
	w := NewWindow(100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				w.Append("conv-1", Message{Role: RoleUser, Content: fmt.Sprintf("w%d-%d", n, j)})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, w.Len("conv-1"))
}
