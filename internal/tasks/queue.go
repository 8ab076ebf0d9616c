// ABOUTME: AnalysisTaskQueue service with a guarded, retry-capable state machine
// ABOUTME: Transitions re-check the precondition at write time; retries are explicit

package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/solacehq/solace/internal/store"
)

// Reasons an InvalidStateError carries. Callers branch on these to tell
// an exhausted task apart from one in the wrong status.
const (
	ReasonRetriesExhausted = "retries exhausted"
	ReasonWrongStatus      = "status does not allow this transition"
)

// InvalidStateError reports a rejected task state transition.
type InvalidStateError struct {
	TaskID int64
	Op     string
	Status string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("task %d: cannot %s (status %s): %s", e.TaskID, e.Op, e.Status, e.Reason)
}

// TaskStore defines what the queue needs from storage.
type TaskStore interface {
	CreateTask(ctx context.Context, task *store.AnalysisTask) error
	GetTask(ctx context.Context, id int64) (*store.AnalysisTask, error)
	MarkTaskProcessing(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkTaskCompleted(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkTaskFailed(ctx context.Context, id int64, errorMessage string, at time.Time) error
	ResetTaskForRetry(ctx context.Context, id int64, at time.Time) (bool, error)
	NextPendingTask(ctx context.Context) (*store.AnalysisTask, error)
	TaskCountsByStatus(ctx context.Context) (map[string]int64, error)
	TaskCountsByType(ctx context.Context) (map[string]int64, error)
	CountRetryableTasks(ctx context.Context) (int64, error)
}

// Queue manages analysis task lifecycle on top of durable task records.
type Queue struct {
	store  TaskStore
	logger *slog.Logger
}

// NewQueue creates a Queue.
func NewQueue(taskStore TaskStore, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		store:  taskStore,
		logger: logger.With("component", "tasks"),
	}
}

// Create enqueues a new PENDING task for the given target.
// A priority of 0 defaults to normal.
func (q *Queue) Create(ctx context.Context, targetKind string, targetID, ownerID int64, taskType string, priority int) (*store.AnalysisTask, error) {
	switch targetKind {
	case store.TargetKindMessage, store.TargetKindDiary:
	default:
		return nil, fmt.Errorf("unknown target kind %q", targetKind)
	}
	switch taskType {
	case store.TaskTypeAuto, store.TaskTypeManual, store.TaskTypeAdmin, store.TaskTypeBatch:
	default:
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}
	if priority == 0 {
		priority = store.PriorityNormal
	}
	if priority < store.PriorityLow || priority > store.PriorityUrgent {
		return nil, fmt.Errorf("priority %d out of range", priority)
	}

	now := time.Now().UTC()
	task := &store.AnalysisTask{
		TargetKind:    targetKind,
		TargetID:      targetID,
		OwnerID:       ownerID,
		Status:        store.TaskStatusPending,
		TaskType:      taskType,
		Priority:      priority,
		RetryCount:    0,
		MaxRetryCount: store.DefaultMaxRetryCount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := q.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	q.logger.Debug("task created",
		"task_id", task.ID,
		"target_kind", targetKind,
		"target_id", targetID,
		"task_type", taskType,
		"priority", priority)
	return task, nil
}

// MarkProcessing transitions a PENDING or FAILED task to PROCESSING.
// The guard lives in the store's conditioned UPDATE, so two concurrent
// claimers cannot both succeed.
func (q *Queue) MarkProcessing(ctx context.Context, id int64) error {
	ok, err := q.store.MarkTaskProcessing(ctx, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return q.rejection(ctx, id, "mark processing")
	}
	return nil
}

// MarkCompleted transitions a PROCESSING task to COMPLETED.
func (q *Queue) MarkCompleted(ctx context.Context, id int64) error {
	ok, err := q.store.MarkTaskCompleted(ctx, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return q.rejection(ctx, id, "mark completed")
	}
	return nil
}

// MarkFailed records a failure message and bumps the retry counter.
func (q *Queue) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	if err := q.store.MarkTaskFailed(ctx, id, errorMessage, time.Now().UTC()); err != nil {
		return err
	}
	q.logger.Warn("task failed", "task_id", id, "error", errorMessage)
	return nil
}

// Retry resets a retryable FAILED task back to PENDING. The retry
// counter is preserved so the budget cannot be laundered. Non-retryable
// tasks are rejected with an InvalidStateError naming whether the
// budget is exhausted or the status is simply wrong.
func (q *Queue) Retry(ctx context.Context, id int64) error {
	task, err := q.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if !task.CanRetry() {
		return retryRejection(task)
	}

	ok, err := q.store.ResetTaskForRetry(ctx, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		// Lost a race since the read above; re-derive the reason.
		task, err := q.store.GetTask(ctx, id)
		if err != nil {
			return err
		}
		return retryRejection(task)
	}

	q.logger.Info("task reset for retry", "task_id", id, "retry_count", task.RetryCount)
	return nil
}

func retryRejection(task *store.AnalysisTask) *InvalidStateError {
	reason := ReasonWrongStatus
	if task.Status == store.TaskStatusFailed && task.RetryCount >= task.MaxRetryCount {
		reason = ReasonRetriesExhausted
	}
	return &InvalidStateError{
		TaskID: task.ID,
		Op:     "retry",
		Status: task.Status,
		Reason: reason,
	}
}

// rejection builds the InvalidStateError for a guarded update that
// matched zero rows.
func (q *Queue) rejection(ctx context.Context, id int64, op string) error {
	task, err := q.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	return &InvalidStateError{
		TaskID: task.ID,
		Op:     op,
		Status: task.Status,
		Reason: ReasonWrongStatus,
	}
}

// BatchRetryFailure records one task that could not be retried.
type BatchRetryFailure struct {
	TaskID int64  `json:"taskId"`
	Reason string `json:"reason"`
}

// BatchRetryResult summarizes a batch retry.
type BatchRetryResult struct {
	Total     int                 `json:"total"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Failures  []BatchRetryFailure `json:"failures,omitempty"`
}

// BatchRetry retries each task independently. One failure never rolls
// back or aborts the others.
func (q *Queue) BatchRetry(ctx context.Context, ids []int64) *BatchRetryResult {
	result := &BatchRetryResult{Total: len(ids)}
	for _, id := range ids {
		if err := q.Retry(ctx, id); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, BatchRetryFailure{
				TaskID: id,
				Reason: err.Error(),
			})
			q.logger.Warn("batch retry item failed", "task_id", id, "error", err)
			continue
		}
		result.Succeeded++
	}
	q.logger.Info("batch retry finished",
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", result.Failed)
	return result
}

// Statistics summarizes queue state.
type Statistics struct {
	Total     int64            `json:"total"`
	ByStatus  map[string]int64 `json:"byStatus"`
	ByType    map[string]int64 `json:"byType"`
	Retryable int64            `json:"retryable"`
}

// Statistics returns counts grouped by status and by type, plus the
// number of currently retryable tasks.
func (q *Queue) Statistics(ctx context.Context) (*Statistics, error) {
	byStatus, err := q.store.TaskCountsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	byType, err := q.store.TaskCountsByType(ctx)
	if err != nil {
		return nil, err
	}
	retryable, err := q.store.CountRetryableTasks(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, n := range byStatus {
		total += n
	}
	return &Statistics{
		Total:     total,
		ByStatus:  byStatus,
		ByType:    byType,
		Retryable: retryable,
	}, nil
}

// ClaimNext atomically claims the next PENDING task for processing, or
// returns nil when the queue is empty. Losing a claim race to another
// worker just moves on to the next candidate.
func (q *Queue) ClaimNext(ctx context.Context) (*store.AnalysisTask, error) {
	for {
		task, err := q.store.NextPendingTask(ctx)
		if err != nil {
			return nil, err
		}
		if task == nil {
			return nil, nil
		}

		ok, err := q.store.MarkTaskProcessing(ctx, task.ID, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		if ok {
			task.Status = store.TaskStatusProcessing
			return task, nil
		}
	}
}
