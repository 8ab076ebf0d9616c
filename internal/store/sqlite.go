// ABOUTME: SQLite implementation of solace persistence using modernc.org/sqlite
// ABOUTME: Session and message operations with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore provides session, message, task and diary persistence.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for concurrent readers alongside the single writer
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id INTEGER NOT NULL,
			initial_message TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			mood_after INTEGER,
			last_analysis TEXT,
			analysis_updated_at DATETIME,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,

			CHECK (status IN ('ACTIVE', 'ENDED'))
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_id);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,

			FOREIGN KEY (session_id) REFERENCES sessions(id),
			CHECK (sender IN ('user', 'assistant'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session
			ON messages(session_id, id);

		CREATE TABLE IF NOT EXISTS analysis_tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			target_kind TEXT NOT NULL,
			target_id INTEGER NOT NULL,
			owner_id INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			task_type TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 2,
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_retry_count INTEGER NOT NULL DEFAULT 3,
			error_message TEXT,
			started_at DATETIME,
			completed_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,

			CHECK (target_kind IN ('message', 'diary')),
			CHECK (status IN ('PENDING', 'PROCESSING', 'COMPLETED', 'FAILED')),
			CHECK (task_type IN ('AUTO', 'MANUAL', 'ADMIN', 'BATCH')),
			CHECK (priority BETWEEN 1 AND 4)
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_status ON analysis_tasks(status);
		CREATE INDEX IF NOT EXISTS idx_tasks_claim
			ON analysis_tasks(status, priority DESC, created_at);

		CREATE TABLE IF NOT EXISTS diary_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id INTEGER NOT NULL,
			entry_date TEXT NOT NULL,
			content TEXT NOT NULL,
			mood_score INTEGER NOT NULL DEFAULT 0,
			dominant_emotion TEXT NOT NULL DEFAULT '',
			emotion_triggers TEXT NOT NULL DEFAULT '',
			sleep_quality INTEGER NOT NULL DEFAULT 0,
			stress_level INTEGER NOT NULL DEFAULT 0,
			analysis TEXT,
			analysis_updated_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_diary_owner_date
			ON diary_entries(owner_id, entry_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateSession inserts a new session and fills in its generated ID.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (owner_id, initial_message, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		session.OwnerID, session.InitialMessage, session.Status,
		session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading session id: %w", err)
	}
	session.ID = id
	return nil
}

// GetSession returns the session with the given ID, or ErrNotFound.
func (s *SQLiteStore) GetSession(ctx context.Context, id int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, initial_message, status, mood_after,
		       COALESCE(last_analysis, ''), analysis_updated_at, created_at, expires_at
		FROM sessions WHERE id = ?`, id)

	var session Session
	var moodAfter sql.NullInt64
	var analysisAt sql.NullTime
	err := row.Scan(&session.ID, &session.OwnerID, &session.InitialMessage,
		&session.Status, &moodAfter, &session.LastAnalysis, &analysisAt,
		&session.CreatedAt, &session.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if moodAfter.Valid {
		v := int(moodAfter.Int64)
		session.MoodAfter = &v
	}
	if analysisAt.Valid {
		t := analysisAt.Time
		session.AnalysisUpdatedAt = &t
	}
	return &session, nil
}

// EndSession marks a session ENDED and records the closing mood.
// Ending an already-ended session is a no-op that still succeeds.
func (s *SQLiteStore) EndSession(ctx context.Context, id int64, moodAfter *int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, mood_after = COALESCE(?, mood_after)
		WHERE id = ?`,
		SessionStatusEnded, moodAfterValue(moodAfter), id)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
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

func moodAfterValue(moodAfter *int) any {
	if moodAfter == nil {
		return nil
	}
	return *moodAfter
}

// UpdateSessionAnalysis writes the advisory emotion snapshot for a session.
// Last write wins; there is no ordering token.
func (s *SQLiteStore) UpdateSessionAnalysis(ctx context.Context, id int64, analysisJSON string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_analysis = ?, analysis_updated_at = ?
		WHERE id = ?`, analysisJSON, at, id)
	if err != nil {
		return fmt.Errorf("updating session analysis: %w", err)
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

// SaveMessage inserts a message and fills in its generated ID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, sender, content, created_at)
		VALUES (?, ?, ?, ?)`,
		msg.SessionID, msg.Sender, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading message id: %w", err)
	}
	msg.ID = id
	return nil
}

// GetMessage returns the message with the given ID, or ErrNotFound.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, sender, content, created_at
		FROM messages WHERE id = ?`, id)

	var msg Message
	err := row.Scan(&msg.ID, &msg.SessionID, &msg.Sender, &msg.Content, &msg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}
	return &msg, nil
}

// ListSessionMessages returns the messages of a session in insertion order.
func (s *SQLiteStore) ListSessionMessages(ctx context.Context, sessionID int64, limit int) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, sender, content, created_at
		FROM messages WHERE session_id = ?
		ORDER BY id ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Sender, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// CountSessionMessages returns the number of persisted messages in a session.
func (s *SQLiteStore) CountSessionMessages(ctx context.Context, sessionID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}

// LastSessionMessage returns the most recent message in a session, or ErrNotFound.
func (s *SQLiteStore) LastSessionMessage(ctx context.Context, sessionID int64) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, sender, content, created_at
		FROM messages WHERE session_id = ?
		ORDER BY id DESC LIMIT 1`, sessionID)

	var msg Message
	err := row.Scan(&msg.ID, &msg.SessionID, &msg.Sender, &msg.Content, &msg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying last message: %w", err)
	}
	return &msg, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
