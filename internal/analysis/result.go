// ABOUTME: EmotionAnalysisResult value object and the neutral fallback
// ABOUTME: Immutable output of the analyzer capability, serialized into snapshots

package analysis

import (
	"time"
)

// Risk levels carried on a Result. Meaningful only when IsNegative is true.
const (
	RiskNone    = 0
	RiskWatch   = 1
	RiskWarning = 2
	RiskCrisis  = 3
)

// Result describes the affect, risk level and suggestions the analyzer
// produced for a span of user-authored text. It is a value object:
// produced once, never mutated.
type Result struct {
	PrimaryEmotion         string   `json:"primaryEmotion"`
	EmotionScore           int      `json:"emotionScore"` // 0-100
	IsNegative             bool     `json:"isNegative"`
	RiskLevel              int      `json:"riskLevel"` // 0-3, only if IsNegative
	Keywords               []string `json:"keywords"`
	Suggestion             string   `json:"suggestion"`
	Icon                   string   `json:"icon"`
	Label                  string   `json:"label"`
	RiskDescription        string   `json:"riskDescription"`
	ImprovementSuggestions []string `json:"improvementSuggestions"`
	Timestamp              int64    `json:"timestamp"` // unix millis
}

// Neutral returns the fixed graceful-degradation result used whenever
// the analyzer is unavailable or fails.
func Neutral() *Result {
	return &Result{
		PrimaryEmotion:  "neutral",
		EmotionScore:    50,
		IsNegative:      false,
		RiskLevel:       RiskNone,
		Keywords:        []string{},
		Suggestion:      "stable, take it slow",
		Icon:            "😐",
		Label:           "calm",
		RiskDescription: "emotional state is steady, nothing needs special attention",
		ImprovementSuggestions: []string{
			"keep a regular sleep schedule",
			"get some light exercise",
			"talk with a friend",
		},
		Timestamp: time.Now().UnixMilli(),
	}
}
