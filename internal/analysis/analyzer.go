// ABOUTME: Analyzer capability interface and its model-backed implementation
// ABOUTME: One synchronous call per analysis; retries are an operator action

package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solacehq/solace/internal/llm"
)

// Analyzer produces an emotion analysis for a span of text. The call is
// synchronous and may fail; it performs no internal retries.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*Result, error)
}

// resultSchema is the JSON schema attached to the structured-output call.
var resultSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"primaryEmotion":         map[string]any{"type": "string"},
		"emotionScore":           map[string]any{"type": "integer"},
		"isNegative":             map[string]any{"type": "boolean"},
		"riskLevel":              map[string]any{"type": "integer"},
		"keywords":               map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"suggestion":             map[string]any{"type": "string"},
		"icon":                   map[string]any{"type": "string"},
		"label":                  map[string]any{"type": "string"},
		"riskDescription":        map[string]any{"type": "string"},
		"improvementSuggestions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required": []string{"primaryEmotion", "emotionScore", "isNegative", "riskLevel", "suggestion"},
}

// ModelClient is what the analyzer needs from the model server.
type ModelClient interface {
	ChatJSON(ctx context.Context, messages []llm.Message, schema any) (string, error)
}

// LLMAnalyzer implements Analyzer with a structured-output model call.
type LLMAnalyzer struct {
	client ModelClient
}

// NewLLMAnalyzer creates an analyzer backed by the given model client.
func NewLLMAnalyzer(client ModelClient) *LLMAnalyzer {
	return &LLMAnalyzer{client: client}
}

// Analyze runs one structured analysis call and decodes the result.
func (a *LLMAnalyzer) Analyze(ctx context.Context, text string) (*Result, error) {
	raw, err := a.client.ChatJSON(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: llm.AnalysisSystemPrompt},
		{Role: llm.RoleUser, Content: "Analyze the emotional state of the following text:\n" + text},
	}, resultSchema)
	if err != nil {
		return nil, fmt.Errorf("analysis call: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("decoding analysis result: %w", err)
	}
	if result.Timestamp == 0 {
		result.Timestamp = time.Now().UnixMilli()
	}
	return &result, nil
}
