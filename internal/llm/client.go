// ABOUTME: HTTP client for an Ollama-compatible model server
// ABOUTME: Streaming chat generation plus non-streaming structured-output calls

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Message represents a chat message in the model server's API format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// EventType classifies a StreamEvent.
type EventType int

const (
	// EventDelta carries one incremental text fragment.
	EventDelta EventType = iota
	// EventDone signals natural completion. Terminal.
	EventDone
	// EventError signals generation failure. Terminal.
	EventError
)

// StreamEvent is one event on a generation stream. A stream yields zero
// or more EventDelta events followed by exactly one terminal event,
// either EventDone or EventError, never both.
type StreamEvent struct {
	Type EventType
	Text string
	Err  error
}

// Client communicates with a local model server over HTTP.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates a Client targeting the given base URL and model name.
func New(baseURL, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		// No client timeout: streamed generations are bounded by ctx.
		httpClient: &http.Client{Timeout: 0},
	}
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Format   any       `json:"format,omitempty"`
}

// chatChunk is one NDJSON line of a streamed chat response.
type chatChunk struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error"`
}

// StreamChat sends the messages to the model and returns a channel of
// incremental fragments. The request is issued before returning, so
// connection failures surface as an error, not a stream event. The
// stream stops early when ctx is cancelled; in that case no terminal
// EventDone is emitted.
func (c *Client) StreamChat(ctx context.Context, messages []Message) (<-chan StreamEvent, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("chat: unexpected status %d", resp.StatusCode)
	}

	out := make(chan StreamEvent, 16)
	go c.readStream(ctx, resp.Body, out)
	return out, nil
}

// readStream decodes NDJSON chunks from the response body and forwards
// them as events until completion, error, or cancellation.
func (c *Client) readStream(ctx context.Context, body io.ReadCloser, out chan<- StreamEvent) {
	defer close(out)
	defer body.Close()

	dec := json.NewDecoder(body)
	for {
		var chunk chatChunk
		if err := dec.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				// Server closed without a done marker: treat as error,
				// not silent completion.
				err = errors.New("stream ended without completion marker")
			}
			if ctx.Err() != nil {
				return
			}
			c.emit(ctx, out, StreamEvent{Type: EventError, Err: fmt.Errorf("reading stream: %w", err)})
			return
		}

		if chunk.Error != "" {
			c.emit(ctx, out, StreamEvent{Type: EventError, Err: errors.New(chunk.Error)})
			return
		}

		if chunk.Message.Content != "" {
			if !c.emit(ctx, out, StreamEvent{Type: EventDelta, Text: chunk.Message.Content}) {
				return
			}
		}

		if chunk.Done {
			c.emit(ctx, out, StreamEvent{Type: EventDone})
			return
		}
	}
}

func (c *Client) emit(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// chatResponse is the JSON returned by POST /api/chat (non-streaming).
type chatResponse struct {
	Message Message `json:"message"`
	Error   string  `json:"error"`
}

// ChatJSON sends messages with a JSON schema attached and returns the
// raw structured response content. Used for analyzer calls.
func (c *Client) ChatJSON(ctx context.Context, messages []Message, schema any) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Format:   schema,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat: unexpected status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if result.Error != "" {
		return "", errors.New(result.Error)
	}

	return result.Message.Content, nil
}
