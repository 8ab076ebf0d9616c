// ABOUTME: Diary entry persistence including the advisory analysis snapshot
// ABOUTME: Snapshot writes are last-write-wins; edits clear the snapshot

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateDiaryEntry inserts a new diary entry and fills in its generated ID.
func (s *SQLiteStore) CreateDiaryEntry(ctx context.Context, entry *DiaryEntry) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO diary_entries
			(owner_id, entry_date, content, mood_score, dominant_emotion,
			 emotion_triggers, sleep_quality, stress_level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.OwnerID, entry.EntryDate, entry.Content, entry.MoodScore,
		entry.DominantEmotion, entry.EmotionTriggers, entry.SleepQuality,
		entry.StressLevel, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting diary entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading diary entry id: %w", err)
	}
	entry.ID = id
	return nil
}

// GetDiaryEntry returns the diary entry with the given ID, or ErrNotFound.
func (s *SQLiteStore) GetDiaryEntry(ctx context.Context, id int64) (*DiaryEntry, error) {
	row := s.db.QueryRowContext(ctx, diarySelect+` WHERE id = ?`, id)
	return scanDiaryEntry(row)
}

// GetDiaryEntryByDate returns the owner's entry for a date, or ErrNotFound.
func (s *SQLiteStore) GetDiaryEntryByDate(ctx context.Context, ownerID int64, entryDate string) (*DiaryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		diarySelect+` WHERE owner_id = ? AND entry_date = ?`, ownerID, entryDate)
	return scanDiaryEntry(row)
}

const diarySelect = `
	SELECT id, owner_id, entry_date, content, mood_score, dominant_emotion,
	       emotion_triggers, sleep_quality, stress_level,
	       COALESCE(analysis, ''), analysis_updated_at, created_at, updated_at
	FROM diary_entries`

func scanDiaryEntry(row rowScanner) (*DiaryEntry, error) {
	var entry DiaryEntry
	var analysisAt sql.NullTime
	err := row.Scan(&entry.ID, &entry.OwnerID, &entry.EntryDate, &entry.Content,
		&entry.MoodScore, &entry.DominantEmotion, &entry.EmotionTriggers,
		&entry.SleepQuality, &entry.StressLevel, &entry.Analysis,
		&analysisAt, &entry.CreatedAt, &entry.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning diary entry: %w", err)
	}

	if analysisAt.Valid {
		t := analysisAt.Time
		entry.AnalysisUpdatedAt = &t
	}
	return &entry, nil
}

// UpdateDiaryEntry rewrites the entry content and mood metrics and clears
// the analysis snapshot, since the content it described no longer exists.
func (s *SQLiteStore) UpdateDiaryEntry(ctx context.Context, entry *DiaryEntry) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE diary_entries
		SET content = ?, mood_score = ?, dominant_emotion = ?,
		    emotion_triggers = ?, sleep_quality = ?, stress_level = ?,
		    analysis = NULL, analysis_updated_at = NULL, updated_at = ?
		WHERE id = ?`,
		entry.Content, entry.MoodScore, entry.DominantEmotion,
		entry.EmotionTriggers, entry.SleepQuality, entry.StressLevel,
		entry.UpdatedAt, entry.ID)
	if err != nil {
		return fmt.Errorf("updating diary entry: %w", err)
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

// UpdateDiaryAnalysis writes the advisory analysis snapshot for an entry.
func (s *SQLiteStore) UpdateDiaryAnalysis(ctx context.Context, id int64, analysisJSON string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE diary_entries
		SET analysis = ?, analysis_updated_at = ?
		WHERE id = ?`, analysisJSON, at, id)
	if err != nil {
		return fmt.Errorf("updating diary analysis: %w", err)
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

// ListDiaryEntries returns an owner's entries, most recent date first.
func (s *SQLiteStore) ListDiaryEntries(ctx context.Context, ownerID int64, limit int) ([]*DiaryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		diarySelect+` WHERE owner_id = ? ORDER BY entry_date DESC LIMIT ?`,
		ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying diary entries: %w", err)
	}
	defer rows.Close()

	var entries []*DiaryEntry
	for rows.Next() {
		entry, err := scanDiaryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
