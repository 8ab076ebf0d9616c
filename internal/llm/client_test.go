// ABOUTME: Tests for the model server HTTP client
// ABOUTME: Covers NDJSON stream decoding, termination rules and structured calls

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var got []StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for stream events")
		}
	}
}

func TestStreamChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])
		assert.Equal(t, true, req["stream"])

		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Hel"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"lo"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	client := New(srv.URL, "test-model")
	events, err := client.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 3)
	assert.Equal(t, StreamEvent{Type: EventDelta, Text: "Hel"}, got[0])
	assert.Equal(t, StreamEvent{Type: EventDelta, Text: "lo"}, got[1])
	assert.Equal(t, EventDone, got[2].Type)
}

func TestStreamChat_ServerErrorChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"par"},"done":false}`)
		fmt.Fprintln(w, `{"error":"model exploded"}`)
	}))
	defer srv.Close()

	client := New(srv.URL, "test-model")
	events, err := client.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, EventDelta, got[0].Type)
	assert.Equal(t, EventError, got[1].Type)
	assert.ErrorContains(t, got[1].Err, "model exploded")
}

func TestStreamChat_TruncatedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Stream ends without a done marker
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"cut"},"done":false}`)
	}))
	defer srv.Close()

	client := New(srv.URL, "test-model")
	events, err := client.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, EventDelta, got[0].Type)
	assert.Equal(t, EventError, got[1].Type)
	assert.ErrorContains(t, got[1].Err, "without completion marker")
}

func TestStreamChat_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL, "test-model")
	_, err := client.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestStreamChat_ConnectionRefused(t *testing.T) {
	client := New("http://127.0.0.1:1", "test-model")
	_, err := client.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
}

func TestChatJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, false, req["stream"])
		assert.NotNil(t, req["format"], "schema must be attached")

		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"{\"primaryEmotion\":\"sad\"}"}}`)
	}))
	defer srv.Close()

	client := New(srv.URL, "test-model")
	raw, err := client.ChatJSON(context.Background(), []Message{{Role: RoleUser, Content: "analyze"}},
		map[string]any{"type": "object"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"primaryEmotion":"sad"}`, raw)
}

func TestChatJSON_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"out of memory"}`)
	}))
	defer srv.Close()

	client := New(srv.URL, "test-model")
	_, err := client.ChatJSON(context.Background(), []Message{{Role: RoleUser, Content: "analyze"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
}
