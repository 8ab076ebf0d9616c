// Package store provides persistent storage for solace using SQLite.
//
// # Data Models
//
//   - Session: a supportive-conversation session (ACTIVE -> ENDED)
//   - Message: an append-only chat turn within a session
//   - AnalysisTask: a retryable unit of asynchronous emotion analysis
//   - DiaryEntry: a journal entry with mood metrics and analysis snapshot
//
// # Status transitions
//
// Task status mutations are guarded: the precondition status is part of
// the UPDATE's WHERE clause, so it is re-checked at write time and a
// concurrent writer that lost the race observes zero rows affected.
// Services translate that into their own typed errors.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Use NewSQLiteStore(":memory:") or a t.TempDir() path in tests.
//
// # Error Handling
//
// ErrNotFound is returned when a requested entity does not exist.
// All methods accept context.Context for cancellation support.
package store
