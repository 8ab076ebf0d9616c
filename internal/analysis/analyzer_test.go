// ABOUTME: Tests for the model-backed analyzer and the neutral fallback
// ABOUTME: Decoding, timestamp defaulting and error propagation

package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solacehq/solace/internal/llm"
)

type stubModelClient struct {
	raw      string
	err      error
	messages []llm.Message
}

func (c *stubModelClient) ChatJSON(_ context.Context, messages []llm.Message, _ any) (string, error) {
	c.messages = messages
	return c.raw, c.err
}

func TestAnalyze(t *testing.T) {
	client := &stubModelClient{raw: `{
		"primaryEmotion": "anxious",
		"emotionScore": 32,
		"isNegative": true,
		"riskLevel": 1,
		"keywords": ["deadline", "pressure"],
		"suggestion": "break the work into small steps",
		"timestamp": 1700000000000
	}`}
	analyzer := NewLLMAnalyzer(client)

	result, err := analyzer.Analyze(context.Background(), "the deadline is crushing me")
	require.NoError(t, err)

	assert.Equal(t, "anxious", result.PrimaryEmotion)
	assert.Equal(t, 32, result.EmotionScore)
	assert.True(t, result.IsNegative)
	assert.Equal(t, RiskWatch, result.RiskLevel)
	assert.Equal(t, []string{"deadline", "pressure"}, result.Keywords)
	assert.Equal(t, int64(1700000000000), result.Timestamp)

	// Prompt carries the system instruction and the user text
	require.Len(t, client.messages, 2)
	assert.Equal(t, llm.RoleSystem, client.messages[0].Role)
	assert.Contains(t, client.messages[1].Content, "the deadline is crushing me")
}

func TestAnalyze_DefaultsTimestamp(t *testing.T) {
	client := &stubModelClient{raw: `{"primaryEmotion":"calm","emotionScore":70,"isNegative":false,"riskLevel":0,"suggestion":"keep going"}`}
	analyzer := NewLLMAnalyzer(client)

	before := time.Now().UnixMilli()
	result, err := analyzer.Analyze(context.Background(), "a fine day")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Timestamp, before)
}

func TestAnalyze_ClientError(t *testing.T) {
	analyzer := NewLLMAnalyzer(&stubModelClient{err: errors.New("timeout")})

	_, err := analyzer.Analyze(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestAnalyze_MalformedJSON(t *testing.T) {
	analyzer := NewLLMAnalyzer(&stubModelClient{raw: "not json"})

	_, err := analyzer.Analyze(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding analysis result")
}

func TestNeutral(t *testing.T) {
	result := Neutral()

	assert.Equal(t, "neutral", result.PrimaryEmotion)
	assert.Equal(t, 50, result.EmotionScore)
	assert.False(t, result.IsNegative)
	assert.Equal(t, RiskNone, result.RiskLevel)
	assert.Equal(t, "stable, take it slow", result.Suggestion)
	assert.NotNil(t, result.Keywords)
	assert.NotEmpty(t, result.ImprovementSuggestions)
	assert.NotZero(t, result.Timestamp)
}
