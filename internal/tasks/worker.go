// ABOUTME: Analysis workers that drain the task queue off the chat stream path
// ABOUTME: One analyzer call per claim; results land in advisory snapshots

package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solacehq/solace/internal/analysis"
	"github.com/solacehq/solace/internal/store"
)

// ContentStore defines what a worker needs to load analysis targets and
// write their advisory snapshots.
type ContentStore interface {
	GetMessage(ctx context.Context, id int64) (*store.Message, error)
	GetDiaryEntry(ctx context.Context, id int64) (*store.DiaryEntry, error)
	UpdateSessionAnalysis(ctx context.Context, sessionID int64, analysisJSON string, at time.Time) error
	UpdateDiaryAnalysis(ctx context.Context, entryID int64, analysisJSON string, at time.Time) error
}

// Worker claims tasks and runs the analyzer against their targets.
type Worker struct {
	queue    *Queue
	content  ContentStore
	analyzer analysis.Analyzer
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(queue *Queue, content ContentStore, analyzer analysis.Analyzer, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:    queue,
		content:  content,
		analyzer: analyzer,
		poll:     pollInterval,
		logger:   logger.With("component", "worker"),
	}
}

// Run claims and processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single task.
// Returns true if a task was processed, regardless of its outcome.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	task, err := w.queue.ClaimNext(ctx)
	if err != nil {
		return false, fmt.Errorf("claiming task: %w", err)
	}
	if task == nil {
		return false, nil
	}

	if err := w.Process(ctx, task); err != nil {
		if failErr := w.queue.MarkFailed(ctx, task.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark task failed", "task_id", task.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.queue.MarkCompleted(ctx, task.ID); err != nil {
		return true, fmt.Errorf("completing task %d: %w", task.ID, err)
	}
	return true, nil
}

// Process loads the task's target, calls the analyzer exactly once, and
// writes the serialized result into the target's advisory snapshot.
// The snapshot write is last-write-wins. Any error means the task fails;
// retries happen only through an explicit Retry call.
func (w *Worker) Process(ctx context.Context, task *store.AnalysisTask) error {
	content, write, err := w.resolveTarget(ctx, task)
	if err != nil {
		return err
	}

	result, err := w.analyzer.Analyze(ctx, content)
	if err != nil {
		return fmt.Errorf("analyzer: %w", err)
	}
	if result == nil {
		return errors.New("analyzer returned empty result")
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("serializing result: %w", err)
	}

	if err := write(ctx, string(raw)); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	w.logger.Debug("analysis stored",
		"task_id", task.ID,
		"target_kind", task.TargetKind,
		"target_id", task.TargetID,
		"emotion", result.PrimaryEmotion,
		"risk_level", result.RiskLevel)
	return nil
}

// resolveTarget loads the text to analyze and returns the snapshot
// writer for the owning record.
func (w *Worker) resolveTarget(ctx context.Context, task *store.AnalysisTask) (string, func(context.Context, string) error, error) {
	switch task.TargetKind {
	case store.TargetKindMessage:
		msg, err := w.content.GetMessage(ctx, task.TargetID)
		if err != nil {
			return "", nil, fmt.Errorf("loading message %d: %w", task.TargetID, err)
		}
		write := func(ctx context.Context, raw string) error {
			return w.content.UpdateSessionAnalysis(ctx, msg.SessionID, raw, time.Now().UTC())
		}
		return msg.Content, write, nil

	case store.TargetKindDiary:
		entry, err := w.content.GetDiaryEntry(ctx, task.TargetID)
		if err != nil {
			return "", nil, fmt.Errorf("loading diary entry %d: %w", task.TargetID, err)
		}
		write := func(ctx context.Context, raw string) error {
			return w.content.UpdateDiaryAnalysis(ctx, entry.ID, raw, time.Now().UTC())
		}
		return diaryContext(entry), write, nil

	default:
		return "", nil, fmt.Errorf("unknown target kind %q", task.TargetKind)
	}
}

// diaryContext assembles the analyzer input from a diary entry's mood
// metrics and content.
func diaryContext(entry *store.DiaryEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "mood score: %d/10\n", entry.MoodScore)
	if entry.DominantEmotion != "" {
		fmt.Fprintf(&b, "dominant emotion: %s\n", entry.DominantEmotion)
	}
	if entry.EmotionTriggers != "" {
		fmt.Fprintf(&b, "emotion triggers: %s\n", entry.EmotionTriggers)
	}
	if entry.SleepQuality > 0 {
		fmt.Fprintf(&b, "sleep quality: %d/5\n", entry.SleepQuality)
	}
	if entry.StressLevel > 0 {
		fmt.Fprintf(&b, "stress level: %d/5\n", entry.StressLevel)
	}
	b.WriteString("diary content: ")
	b.WriteString(entry.Content)
	return b.String()
}

// Pool runs a fixed number of workers concurrently.
type Pool struct {
	workers []*Worker
}

// NewPool creates size workers sharing the same collaborators.
// Size values below 1 are treated as 1.
func NewPool(size int, queue *Queue, content ContentStore, analyzer analysis.Analyzer, pollInterval time.Duration, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	workers := make([]*Worker, size)
	for i := range workers {
		workers[i] = NewWorker(queue, content, analyzer, pollInterval, logger)
	}
	return &Pool{workers: workers}
}

// Run starts all workers and blocks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		w := w
		g.Go(func() error {
			w.Run(ctx)
			return nil
		})
	}
	return g.Wait()
}
