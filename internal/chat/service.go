// ABOUTME: Streaming chat orchestrator: sessions, dedupe, memory, analysis hand-off
// ABOUTME: Generation failures never persist a partial assistant message

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/solacehq/solace/internal/analysis"
	"github.com/solacehq/solace/internal/llm"
	"github.com/solacehq/solace/internal/memory"
	"github.com/solacehq/solace/internal/store"
)

// DefaultSessionTTL is how long a session stays valid after creation.
const DefaultSessionTTL = 24 * time.Hour

// saveTimeout bounds the detached context used to persist the assistant
// message after the caller's context may already be gone.
const saveTimeout = 10 * time.Second

// SessionStore defines what the orchestrator needs from storage.
type SessionStore interface {
	CreateSession(ctx context.Context, session *store.Session) error
	GetSession(ctx context.Context, id int64) (*store.Session, error)
	EndSession(ctx context.Context, id int64, moodAfter *int) error
	SaveMessage(ctx context.Context, msg *store.Message) error
	CountSessionMessages(ctx context.Context, sessionID int64) (int, error)
	LastSessionMessage(ctx context.Context, sessionID int64) (*store.Message, error)
}

// Generator produces a streaming reply for a conversation transcript.
type Generator interface {
	StreamChat(ctx context.Context, messages []llm.Message) (<-chan llm.StreamEvent, error)
}

// TaskSubmitter enqueues background analysis tasks.
type TaskSubmitter interface {
	Create(ctx context.Context, targetKind string, targetID, ownerID int64, taskType string, priority int) (*store.AnalysisTask, error)
}

// Service orchestrates chat sessions end to end.
type Service struct {
	store      SessionStore
	window     *memory.Window
	generator  Generator
	analyzer   analysis.Analyzer
	submitter  TaskSubmitter
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewService creates a chat Service with the default session TTL.
func NewService(sessionStore SessionStore, window *memory.Window, generator Generator, analyzer analysis.Analyzer, submitter TaskSubmitter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      sessionStore,
		window:     window,
		generator:  generator,
		analyzer:   analyzer,
		submitter:  submitter,
		sessionTTL: DefaultSessionTTL,
		logger:     logger.With("component", "chat"),
	}
}

// SetSessionTTL overrides the default session lifetime. Values <= 0 are
// ignored.
func (s *Service) SetSessionTTL(ttl time.Duration) {
	if ttl > 0 {
		s.sessionTTL = ttl
	}
}

// StartSession creates a new active session and returns its public
// descriptor. A non-blank initial message is persisted and seeded into
// the conversation memory window.
func (s *Service) StartSession(ctx context.Context, ownerID int64, initialMessage string) (*Session, error) {
	now := time.Now().UTC()
	record := &store.Session{
		OwnerID:        ownerID,
		InitialMessage: initialMessage,
		Status:         store.SessionStatusActive,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, record); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	sessionID := FormatSessionID(record.ID)
	conversationID := ConversationID(sessionID)

	if strings.TrimSpace(initialMessage) != "" {
		msg := &store.Message{
			SessionID: record.ID,
			Sender:    store.SenderUser,
			Content:   initialMessage,
			CreatedAt: now,
		}
		if err := s.store.SaveMessage(ctx, msg); err != nil {
			return nil, fmt.Errorf("saving initial message: %w", err)
		}
		s.window.Append(conversationID, memory.Message{Role: memory.RoleUser, Content: initialMessage})
	}

	s.logger.Info("session started", "session_id", sessionID, "owner_id", ownerID)
	return &Session{
		SessionID:      sessionID,
		ConversationID: conversationID,
		OwnerID:        ownerID,
		InitialMessage: initialMessage,
		Status:         record.Status,
		MessageCount:   1,
		StartedAt:      record.CreatedAt,
		ExpiresAt:      record.ExpiresAt,
	}, nil
}

// StreamChat handles one user turn: it persists the message unless it
// duplicates the session's initial message, appends it to conversation
// memory, fires a background analysis task, and streams the reply.
//
// The returned channel yields zero or more Delta events followed by
// exactly one Done or Error event, unless ctx is cancelled first. The
// assistant message is persisted only when the stream completes
// naturally with Done.
func (s *Service) StreamChat(ctx context.Context, sessionID, userMessage string) (<-chan *Event, error) {
	dbID, err := ParseSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	session, err := s.store.GetSession(ctx, dbID)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}

	conversationID := ConversationID(sessionID)

	targetID, deduped := s.persistUserMessage(ctx, dbID, userMessage)
	if !deduped {
		s.window.Append(conversationID, memory.Message{Role: memory.RoleUser, Content: userMessage})
	}

	if targetID != 0 {
		s.submitAnalysis(sessionID, targetID, session.OwnerID)
	}

	history := s.window.Get(conversationID)
	transcript := make([]llm.Message, 0, len(history)+1)
	transcript = append(transcript, llm.Message{Role: llm.RoleSystem, Content: llm.SupportSystemPrompt})
	for _, m := range history {
		transcript = append(transcript, llm.Message{Role: string(m.Role), Content: m.Content})
	}

	out := make(chan *Event, 16)
	go s.stream(ctx, out, dbID, conversationID, transcript)
	return out, nil
}

// persistUserMessage saves the user message unless it verbatim repeats
// the lone initial message already on record. It returns the ID of the
// message the analysis task should target (0 when no target exists) and
// whether the turn was deduplicated. A deduplicated turn must not be
// re-appended to the memory window; the seed copy is already there.
func (s *Service) persistUserMessage(ctx context.Context, dbID int64, userMessage string) (int64, bool) {
	count, err := s.store.CountSessionMessages(ctx, dbID)
	if err != nil {
		s.logger.Warn("message count check failed, persisting anyway", "session_db_id", dbID, "error", err)
		count = -1
	}
	if count == 1 {
		last, err := s.store.LastSessionMessage(ctx, dbID)
		if err != nil {
			s.logger.Warn("last message lookup failed, persisting anyway", "session_db_id", dbID, "error", err)
		} else if last.Sender == store.SenderUser && last.Content == userMessage {
			s.logger.Debug("skipping duplicate of initial message", "session_db_id", dbID)
			return last.ID, true
		}
	}

	msg := &store.Message{
		SessionID: dbID,
		Sender:    store.SenderUser,
		Content:   userMessage,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		s.logger.Error("failed to persist user message", "session_db_id", dbID, "error", err)
		return 0, false
	}
	return msg.ID, false
}

// submitAnalysis enqueues an automatic analysis task for a user message.
// It runs detached from the chat turn: a submission failure is logged
// and never reaches the caller or the stream.
func (s *Service) submitAnalysis(sessionID string, messageID, ownerID int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		task, err := s.submitter.Create(ctx, store.TargetKindMessage, messageID, ownerID, store.TaskTypeAuto, store.PriorityNormal)
		if err != nil {
			s.logger.Warn("analysis task submission failed", "session_id", sessionID, "message_id", messageID, "error", err)
			return
		}
		s.logger.Debug("analysis task submitted", "session_id", sessionID, "task_id", task.ID)
	}()
}

// stream drives the generator and forwards events to the consumer.
func (s *Service) stream(ctx context.Context, out chan<- *Event, dbID int64, conversationID string, transcript []llm.Message) {
	defer close(out)

	events, err := s.generator.StreamChat(ctx, transcript)
	if err != nil {
		s.emit(ctx, out, &Event{Type: EventError, Err: fmt.Errorf("starting generation: %w", err)})
		return
	}

	var full strings.Builder
	for ev := range events {
		switch ev.Type {
		case llm.EventDelta:
			full.WriteString(ev.Text)
			if !s.emit(ctx, out, &Event{Type: EventDelta, Text: ev.Text}) {
				return
			}
		case llm.EventDone:
			response := full.String()
			s.saveAssistantMessage(dbID, conversationID, response)
			s.emit(ctx, out, &Event{Type: EventDone, Text: response})
			return
		case llm.EventError:
			s.logger.Error("generation failed", "session_db_id", dbID, "error", ev.Err)
			s.emit(ctx, out, &Event{Type: EventError, Err: ev.Err})
			return
		}
	}
}

// saveAssistantMessage persists a completed reply and records it in the
// memory window. It uses a detached context so a consumer that hangs up
// right after the final delta does not lose the message.
func (s *Service) saveAssistantMessage(dbID int64, conversationID, response string) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	msg := &store.Message{
		SessionID: dbID,
		Sender:    store.SenderAssistant,
		Content:   response,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		s.logger.Error("failed to persist assistant message", "session_db_id", dbID, "error", err)
	}
	s.window.Append(conversationID, memory.Message{Role: memory.RoleAssistant, Content: response})
}

func (s *Service) emit(ctx context.Context, out chan<- *Event, ev *Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// EndSession marks a session ended and clears its memory window. Only
// the session's owner may end it. It is idempotent: ending an
// already-ended session succeeds again. It returns false when the
// session ID is malformed, unknown, owned by someone else, or the
// update fails.
func (s *Service) EndSession(ctx context.Context, sessionID string, ownerID int64, moodAfter *int) bool {
	dbID, err := ParseSessionID(sessionID)
	if err != nil {
		s.logger.Warn("end session rejected", "session_id", sessionID, "error", err)
		return false
	}

	session, err := s.store.GetSession(ctx, dbID)
	if err != nil {
		s.logger.Warn("end session failed", "session_id", sessionID, "error", err)
		return false
	}
	if session.OwnerID != ownerID {
		s.logger.Warn("end session rejected, owner mismatch", "session_id", sessionID, "owner_id", ownerID)
		return false
	}

	if err := s.store.EndSession(ctx, dbID, moodAfter); err != nil {
		s.logger.Warn("end session failed", "session_id", sessionID, "error", err)
		return false
	}

	s.window.Clear(ConversationID(sessionID))
	s.logger.Info("session ended", "session_id", sessionID)
	return true
}

// QuickAnalyze analyzes a piece of text synchronously. It never fails:
// any analyzer error degrades to the neutral fallback result so callers
// always get usable values.
func (s *Service) QuickAnalyze(ctx context.Context, content string) *analysis.Result {
	result, err := s.analyzer.Analyze(ctx, content)
	if err != nil {
		s.logger.Warn("quick analysis degraded to neutral", "error", err)
		return analysis.Neutral()
	}
	if result == nil {
		s.logger.Warn("quick analysis returned empty result, using neutral")
		return analysis.Neutral()
	}
	return result
}
