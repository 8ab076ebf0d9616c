// ABOUTME: Analysis task persistence with guarded status transitions
// ABOUTME: Conditioned UPDATEs re-check the precondition status at write time

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateTask inserts a new PENDING task and fills in its generated ID.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *AnalysisTask) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_tasks
			(target_kind, target_id, owner_id, status, task_type, priority,
			 retry_count, max_retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TargetKind, task.TargetID, task.OwnerID, task.Status,
		task.TaskType, task.Priority, task.RetryCount, task.MaxRetryCount,
		task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading task id: %w", err)
	}
	task.ID = id
	return nil
}

// GetTask returns the task with the given ID, or ErrNotFound.
func (s *SQLiteStore) GetTask(ctx context.Context, id int64) (*AnalysisTask, error) {
	row := s.db.QueryRowContext(ctx, taskSelect+` WHERE id = ?`, id)
	return scanTask(row)
}

const taskSelect = `
	SELECT id, target_kind, target_id, owner_id, status, task_type, priority,
	       retry_count, max_retry_count, COALESCE(error_message, ''),
	       started_at, completed_at, created_at, updated_at
	FROM analysis_tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*AnalysisTask, error) {
	var task AnalysisTask
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&task.ID, &task.TargetKind, &task.TargetID, &task.OwnerID,
		&task.Status, &task.TaskType, &task.Priority,
		&task.RetryCount, &task.MaxRetryCount, &task.ErrorMessage,
		&startedAt, &completedAt, &task.CreatedAt, &task.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	if startedAt.Valid {
		t := startedAt.Time
		task.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}
	return &task, nil
}

// MarkTaskProcessing transitions PENDING/FAILED -> PROCESSING.
// Returns false if the task was not in an eligible status; the condition
// is evaluated inside the UPDATE so concurrent claimers cannot both win.
func (s *SQLiteStore) MarkTaskProcessing(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_tasks
		SET status = ?, started_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		TaskStatusProcessing, at, at, id, TaskStatusPending, TaskStatusFailed)
	if err != nil {
		return false, fmt.Errorf("marking task processing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkTaskCompleted transitions PROCESSING -> COMPLETED.
// Returns false if the task was not PROCESSING.
func (s *SQLiteStore) MarkTaskCompleted(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_tasks
		SET status = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		TaskStatusCompleted, at, at, id, TaskStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("marking task completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkTaskFailed records a failure and increments the retry counter.
func (s *SQLiteStore) MarkTaskFailed(ctx context.Context, id int64, errorMessage string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_tasks
		SET status = ?, error_message = ?, retry_count = retry_count + 1, updated_at = ?
		WHERE id = ?`,
		TaskStatusFailed, errorMessage, at, id)
	if err != nil {
		return fmt.Errorf("marking task failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetTaskForRetry moves a retryable FAILED task back to PENDING,
// clearing error and timing fields. The retry counter is preserved.
// Returns false if the task is not currently retryable.
func (s *SQLiteStore) ResetTaskForRetry(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_tasks
		SET status = ?, error_message = NULL, started_at = NULL,
		    completed_at = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND retry_count < max_retry_count`,
		TaskStatusPending, at, id, TaskStatusFailed)
	if err != nil {
		return false, fmt.Errorf("resetting task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// NextPendingTask returns the highest-priority, oldest PENDING task,
// or nil if the queue is empty. Claiming is a separate guarded step.
func (s *SQLiteStore) NextPendingTask(ctx context.Context) (*AnalysisTask, error) {
	row := s.db.QueryRowContext(ctx, taskSelect+`
		WHERE status = ?
		ORDER BY priority DESC, created_at ASC, id ASC
		LIMIT 1`, TaskStatusPending)

	task, err := scanTask(row)
	if err == ErrNotFound {
		return nil, nil
	}
	return task, err
}

// TaskCountsByStatus returns the number of tasks per status.
func (s *SQLiteStore) TaskCountsByStatus(ctx context.Context) (map[string]int64, error) {
	return s.taskCounts(ctx, `SELECT status, COUNT(*) FROM analysis_tasks GROUP BY status`)
}

// TaskCountsByType returns the number of tasks per trigger type.
func (s *SQLiteStore) TaskCountsByType(ctx context.Context) (map[string]int64, error) {
	return s.taskCounts(ctx, `SELECT task_type, COUNT(*) FROM analysis_tasks GROUP BY task_type`)
}

func (s *SQLiteStore) taskCounts(ctx context.Context, query string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("counting tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scanning task count: %w", err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// CountRetryableTasks returns how many tasks are FAILED with retry budget left.
func (s *SQLiteStore) CountRetryableTasks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM analysis_tasks
		WHERE status = ? AND retry_count < max_retry_count`,
		TaskStatusFailed).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting retryable tasks: %w", err)
	}
	return n, nil
}
