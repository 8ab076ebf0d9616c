// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers session lifecycle, message persistence and ordering

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func newTestSession(ownerID int64) *Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &Session{
		OwnerID:        ownerID,
		InitialMessage: "I had a rough day",
		Status:         SessionStatusActive,
		CreatedAt:      now,
		ExpiresAt:      now.Add(24 * time.Hour),
	}
}

func TestCreateAndGetSession(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	session := newTestSession(7)

	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.ID == 0 {
		t.Fatal("CreateSession did not assign an ID")
	}

	got, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.OwnerID != 7 {
		t.Errorf("OwnerID = %d, want 7", got.OwnerID)
	}
	if got.Status != SessionStatusActive {
		t.Errorf("Status = %q, want %q", got.Status, SessionStatusActive)
	}
	if got.InitialMessage != "I had a rough day" {
		t.Errorf("InitialMessage = %q", got.InitialMessage)
	}
	if got.MoodAfter != nil {
		t.Errorf("MoodAfter = %v, want nil", got.MoodAfter)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	_, err := store.GetSession(context.Background(), 999)
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEndSession(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	session := newTestSession(1)
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	mood := 6
	if err := store.EndSession(ctx, session.ID, &mood); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	got, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != SessionStatusEnded {
		t.Errorf("Status = %q, want %q", got.Status, SessionStatusEnded)
	}
	if got.MoodAfter == nil || *got.MoodAfter != 6 {
		t.Errorf("MoodAfter = %v, want 6", got.MoodAfter)
	}

	// Ending again succeeds and keeps the recorded mood
	if err := store.EndSession(ctx, session.ID, nil); err != nil {
		t.Fatalf("second EndSession failed: %v", err)
	}
	got, err = store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.MoodAfter == nil || *got.MoodAfter != 6 {
		t.Errorf("MoodAfter after idempotent end = %v, want 6", got.MoodAfter)
	}
}

func TestEndSession_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if err := store.EndSession(context.Background(), 42, nil); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSessionAnalysis(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	session := newTestSession(1)
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	at := time.Now().UTC().Truncate(time.Second)
	if err := store.UpdateSessionAnalysis(ctx, session.ID, `{"primaryEmotion":"sad"}`, at); err != nil {
		t.Fatalf("UpdateSessionAnalysis failed: %v", err)
	}

	got, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.LastAnalysis != `{"primaryEmotion":"sad"}` {
		t.Errorf("LastAnalysis = %q", got.LastAnalysis)
	}
	if got.AnalysisUpdatedAt == nil {
		t.Error("AnalysisUpdatedAt not set")
	}

	// A later write overwrites the previous snapshot
	if err := store.UpdateSessionAnalysis(ctx, session.ID, `{"primaryEmotion":"calm"}`, at.Add(time.Minute)); err != nil {
		t.Fatalf("second UpdateSessionAnalysis failed: %v", err)
	}
	got, err = store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.LastAnalysis != `{"primaryEmotion":"calm"}` {
		t.Errorf("LastAnalysis after overwrite = %q", got.LastAnalysis)
	}
}

func TestSaveAndListMessages(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	session := newTestSession(1)
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	contents := []string{"hello", "hi there", "how are you"}
	senders := []string{SenderUser, SenderAssistant, SenderUser}
	for i, c := range contents {
		msg := &Message{
			SessionID: session.ID,
			Sender:    senders[i],
			Content:   c,
			CreatedAt: time.Now().UTC(),
		}
		if err := store.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
		if msg.ID == 0 {
			t.Fatal("SaveMessage did not assign an ID")
		}
	}

	msgs, err := store.ListSessionMessages(ctx, session.ID, 10)
	if err != nil {
		t.Fatalf("ListSessionMessages failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	// Insertion order is preserved
	for i, c := range contents {
		if msgs[i].Content != c {
			t.Errorf("message %d = %q, want %q", i, msgs[i].Content, c)
		}
	}

	count, err := store.CountSessionMessages(ctx, session.ID)
	if err != nil {
		t.Fatalf("CountSessionMessages failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	last, err := store.LastSessionMessage(ctx, session.ID)
	if err != nil {
		t.Fatalf("LastSessionMessage failed: %v", err)
	}
	if last.Content != "how are you" {
		t.Errorf("last message = %q, want %q", last.Content, "how are you")
	}
}

func TestLastSessionMessage_Empty(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	session := newTestSession(1)
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err := store.LastSessionMessage(ctx, session.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
