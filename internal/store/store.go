// ABOUTME: Store types and errors for solace persistence
// ABOUTME: Defines Session, Message, AnalysisTask, DiaryEntry and shared constants

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Session status values. A session only ever moves ACTIVE -> ENDED;
// TTL expiry is swept by an external scheduler, not by this store.
const (
	SessionStatusActive = "ACTIVE"
	SessionStatusEnded  = "ENDED"
)

// Message sender values
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// AnalysisTask status values
const (
	TaskStatusPending    = "PENDING"
	TaskStatusProcessing = "PROCESSING"
	TaskStatusCompleted  = "COMPLETED"
	TaskStatusFailed     = "FAILED"
)

// AnalysisTask trigger types
const (
	TaskTypeAuto   = "AUTO"
	TaskTypeManual = "MANUAL"
	TaskTypeAdmin  = "ADMIN"
	TaskTypeBatch  = "BATCH"
)

// Task priorities, low to urgent
const (
	PriorityLow    = 1
	PriorityNormal = 2
	PriorityHigh   = 3
	PriorityUrgent = 4
)

// Analysis target kinds
const (
	TargetKindMessage = "message"
	TargetKindDiary   = "diary"
)

// DefaultMaxRetryCount is the retry budget assigned to new tasks.
const DefaultMaxRetryCount = 3

// Session is a supportive-conversation session. LastAnalysis holds the
// serialized advisory emotion snapshot written by the analysis worker;
// it is last-write-wins and never used for conversation correctness.
type Session struct {
	ID                int64
	OwnerID           int64
	InitialMessage    string
	Status            string
	MoodAfter         *int
	LastAnalysis      string
	AnalysisUpdatedAt *time.Time
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// Message is a single chat turn within a session. Append-only.
type Message struct {
	ID        int64
	SessionID int64
	Sender    string
	Content   string
	CreatedAt time.Time
}

// AnalysisTask is a unit of asynchronous emotion analysis work.
// Tasks are never deleted; their lifecycle ends at COMPLETED or at
// FAILED with retries exhausted.
type AnalysisTask struct {
	ID            int64
	TargetKind    string
	TargetID      int64
	OwnerID       int64
	Status        string
	TaskType      string
	Priority      int
	RetryCount    int
	MaxRetryCount int
	ErrorMessage  string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CanRetry reports whether an operator may retry this task.
func (t *AnalysisTask) CanRetry() bool {
	return t.Status == TaskStatusFailed && t.RetryCount < t.MaxRetryCount
}

// DiaryEntry is a user journal entry with mood metrics and an advisory
// analysis snapshot. Editing the entry invalidates the snapshot.
type DiaryEntry struct {
	ID                int64
	OwnerID           int64
	EntryDate         string
	Content           string
	MoodScore         int
	DominantEmotion   string
	EmotionTriggers   string
	SleepQuality      int
	StressLevel       int
	Analysis          string
	AnalysisUpdatedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
