// ABOUTME: Diary entry service: journaling with asynchronous emotion analysis
// ABOUTME: Edits invalidate the cached snapshot and force re-analysis

package diary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solacehq/solace/internal/analysis"
	"github.com/solacehq/solace/internal/store"
)

// ErrInvalidMoodScore rejects mood scores outside 1..10.
var ErrInvalidMoodScore = errors.New("mood score must be between 1 and 10")

// ErrInvalidEntryDate rejects entry dates not in YYYY-MM-DD form.
var ErrInvalidEntryDate = errors.New("entry date must be YYYY-MM-DD")

// EntryStore defines what the diary service needs from storage.
type EntryStore interface {
	CreateDiaryEntry(ctx context.Context, entry *store.DiaryEntry) error
	GetDiaryEntry(ctx context.Context, id int64) (*store.DiaryEntry, error)
	GetDiaryEntryByDate(ctx context.Context, ownerID int64, entryDate string) (*store.DiaryEntry, error)
	UpdateDiaryEntry(ctx context.Context, entry *store.DiaryEntry) error
	ListDiaryEntries(ctx context.Context, ownerID int64, limit int) ([]*store.DiaryEntry, error)
}

// TaskSubmitter enqueues background analysis tasks.
type TaskSubmitter interface {
	Create(ctx context.Context, targetKind string, targetID, ownerID int64, taskType string, priority int) (*store.AnalysisTask, error)
}

// Service manages diary entries and their analysis lifecycle.
type Service struct {
	store     EntryStore
	submitter TaskSubmitter
	logger    *slog.Logger
}

// NewService creates a diary Service.
func NewService(entryStore EntryStore, submitter TaskSubmitter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     entryStore,
		submitter: submitter,
		logger:    logger.With("component", "diary"),
	}
}

// Input is the caller-supplied content of a diary entry.
type Input struct {
	EntryDate       string `json:"entryDate"`
	Content         string `json:"content"`
	MoodScore       int    `json:"moodScore"`
	DominantEmotion string `json:"dominantEmotion"`
	EmotionTriggers string `json:"emotionTriggers"`
	SleepQuality    int    `json:"sleepQuality"`
	StressLevel     int    `json:"stressLevel"`
}

func (in *Input) validate() error {
	if in.MoodScore < 1 || in.MoodScore > 10 {
		return ErrInvalidMoodScore
	}
	if _, err := time.Parse("2006-01-02", in.EntryDate); err != nil {
		return ErrInvalidEntryDate
	}
	return nil
}

// CreateEntry persists a new diary entry and fires an automatic analysis
// task for it. One entry per owner per date; the store enforces the
// uniqueness.
func (s *Service) CreateEntry(ctx context.Context, ownerID int64, in *Input) (*store.DiaryEntry, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := &store.DiaryEntry{
		OwnerID:         ownerID,
		EntryDate:       in.EntryDate,
		Content:         in.Content,
		MoodScore:       in.MoodScore,
		DominantEmotion: in.DominantEmotion,
		EmotionTriggers: in.EmotionTriggers,
		SleepQuality:    in.SleepQuality,
		StressLevel:     in.StressLevel,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateDiaryEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("creating diary entry: %w", err)
	}

	s.enqueue(ctx, entry, store.TaskTypeAuto, store.PriorityNormal)
	s.logger.Info("diary entry created", "entry_id", entry.ID, "owner_id", ownerID, "entry_date", entry.EntryDate)
	return entry, nil
}

// UpdateEntry rewrites an entry's content and mood metrics. The cached
// analysis snapshot is cleared by the store update, since it described
// content that no longer exists, and a fresh automatic task is enqueued.
func (s *Service) UpdateEntry(ctx context.Context, entryID int64, in *Input) (*store.DiaryEntry, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	entry, err := s.store.GetDiaryEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	entry.Content = in.Content
	entry.MoodScore = in.MoodScore
	entry.DominantEmotion = in.DominantEmotion
	entry.EmotionTriggers = in.EmotionTriggers
	entry.SleepQuality = in.SleepQuality
	entry.StressLevel = in.StressLevel
	entry.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateDiaryEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("updating diary entry: %w", err)
	}
	entry.Analysis = ""
	entry.AnalysisUpdatedAt = nil

	s.enqueue(ctx, entry, store.TaskTypeAuto, store.PriorityNormal)
	s.logger.Info("diary entry updated", "entry_id", entry.ID)
	return entry, nil
}

// Entry returns a diary entry by ID.
func (s *Service) Entry(ctx context.Context, entryID int64) (*store.DiaryEntry, error) {
	return s.store.GetDiaryEntry(ctx, entryID)
}

// EntryByDate returns the owner's entry for a date.
func (s *Service) EntryByDate(ctx context.Context, ownerID int64, entryDate string) (*store.DiaryEntry, error) {
	return s.store.GetDiaryEntryByDate(ctx, ownerID, entryDate)
}

// List returns an owner's most recent entries. Limits of 0 or below
// default to 30.
func (s *Service) List(ctx context.Context, ownerID int64, limit int) ([]*store.DiaryEntry, error) {
	if limit <= 0 {
		limit = 30
	}
	return s.store.ListDiaryEntries(ctx, ownerID, limit)
}

// Analysis decodes the cached analysis snapshot of an entry. It returns
// nil with no error when no analysis has been written yet.
func (s *Service) Analysis(ctx context.Context, entryID int64) (*analysis.Result, error) {
	entry, err := s.store.GetDiaryEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Analysis == "" {
		return nil, nil
	}

	var result analysis.Result
	if err := json.Unmarshal([]byte(entry.Analysis), &result); err != nil {
		return nil, fmt.Errorf("decoding diary analysis %d: %w", entryID, err)
	}
	return &result, nil
}

// TriggerAnalysis enqueues a new analysis task for an entry. It always
// enqueues regardless of any cached snapshot, so a manual or admin
// trigger is a guaranteed re-analysis.
func (s *Service) TriggerAnalysis(ctx context.Context, entryID int64, taskType string, priority int) (*store.AnalysisTask, error) {
	entry, err := s.store.GetDiaryEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	task, err := s.submitter.Create(ctx, store.TargetKindDiary, entry.ID, entry.OwnerID, taskType, priority)
	if err != nil {
		return nil, fmt.Errorf("enqueuing diary analysis: %w", err)
	}
	s.logger.Info("diary analysis triggered", "entry_id", entryID, "task_id", task.ID, "task_type", taskType)
	return task, nil
}

// BatchTrigger enqueues analysis for many entries at once, one task per
// entry, with per-entry error isolation.
func (s *Service) BatchTrigger(ctx context.Context, entryIDs []int64, priority int) (enqueued int, failures map[int64]string) {
	failures = make(map[int64]string)
	for _, id := range entryIDs {
		entry, err := s.store.GetDiaryEntry(ctx, id)
		if err != nil {
			failures[id] = err.Error()
			continue
		}
		if _, err := s.submitter.Create(ctx, store.TargetKindDiary, entry.ID, entry.OwnerID, store.TaskTypeBatch, priority); err != nil {
			failures[id] = err.Error()
			continue
		}
		enqueued++
	}
	s.logger.Info("batch analysis trigger finished", "requested", len(entryIDs), "enqueued", enqueued, "failed", len(failures))
	return enqueued, failures
}

// enqueue fires an analysis task for an entry, logging instead of
// failing the caller when submission does not go through.
func (s *Service) enqueue(ctx context.Context, entry *store.DiaryEntry, taskType string, priority int) {
	if _, err := s.submitter.Create(ctx, store.TargetKindDiary, entry.ID, entry.OwnerID, taskType, priority); err != nil {
		s.logger.Warn("diary analysis task submission failed", "entry_id", entry.ID, "error", err)
	}
}
