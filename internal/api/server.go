// ABOUTME: HTTP API for solace-gateway: chat sessions, SSE streaming, diary, tasks
// ABOUTME: Chat responses stream as SSE; errors use a consistent JSON envelope

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/solacehq/solace/internal/chat"
	"github.com/solacehq/solace/internal/diary"
	"github.com/solacehq/solace/internal/store"
	"github.com/solacehq/solace/internal/tasks"
)

const maxBodySize = 1 << 20 // 1MB

// Deps holds the services the API layer dispatches to.
type Deps struct {
	Chat   *chat.Service
	Diary  *diary.Service
	Tasks  *tasks.Queue
	Logger *slog.Logger
}

// NewHandler builds the HTTP routing table.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("component", "api")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)

	r.Get("/healthz", handleHealth)

	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/sessions", handleStartSession(deps))
		r.Post("/sessions/{sessionID}/stream", handleStreamChat(deps))
		r.Post("/sessions/{sessionID}/end", handleEndSession(deps))
		r.Post("/quick-analyze", handleQuickAnalyze(deps))
	})

	r.Route("/api/diary", func(r chi.Router) {
		r.Get("/entries", handleListEntries(deps))
		r.Post("/entries", handleCreateEntry(deps))
		r.Get("/entries/by-date", handleGetEntryByDate(deps))
		r.Get("/entries/{entryID}", handleGetEntry(deps))
		r.Put("/entries/{entryID}", handleUpdateEntry(deps))
		r.Get("/entries/{entryID}/analysis", handleEntryAnalysis(deps))
		r.Post("/entries/{entryID}/analyze", handleTriggerAnalysis(deps))
		r.Post("/analyze-batch", handleBatchTrigger(deps))
	})

	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/statistics", handleTaskStatistics(deps))
		r.Post("/{taskID}/retry", handleRetryTask(deps))
		r.Post("/retry-batch", handleBatchRetry(deps))
	})

	return r
}

// requestID tags each request with a correlation ID for log stitching.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startSessionRequest struct {
	OwnerID        int64  `json:"ownerId"`
	InitialMessage string `json:"initialMessage"`
}

func handleStartSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startSessionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.OwnerID <= 0 {
			httpError(w, http.StatusBadRequest, "ownerId is required")
			return
		}

		session, err := deps.Chat.StartSession(r.Context(), req.OwnerID, req.InitialMessage)
		if err != nil {
			deps.Logger.Error("start session failed", "error", err)
			httpError(w, http.StatusInternalServerError, "failed to start session")
			return
		}
		writeJSON(w, http.StatusCreated, session)
	}
}

type streamChatRequest struct {
	Message string `json:"message"`
}

func handleStreamChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")

		var req streamChatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "message is required")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		events, err := deps.Chat.StreamChat(r.Context(), sessionID, req.Message)
		if err != nil {
			switch {
			case errors.Is(err, chat.ErrInvalidSessionID):
				httpError(w, http.StatusBadRequest, "invalid session id")
			case errors.Is(err, store.ErrNotFound):
				httpError(w, http.StatusNotFound, "session not found")
			default:
				deps.Logger.Error("stream chat failed", "session_id", sessionID, "error", err)
				httpError(w, http.StatusInternalServerError, "failed to start chat stream")
			}
			return
		}

		// Set SSE headers
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		streamEvents(r, w, flusher, deps.Logger, events)
	}
}

// streamEvents forwards chat events as SSE until the stream terminates
// or the client goes away.
func streamEvents(r *http.Request, w http.ResponseWriter, flusher http.Flusher, logger *slog.Logger, events <-chan *chat.Event) {
	for {
		select {
		case <-r.Context().Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case chat.EventDelta:
				writeSSEEvent(w, logger, "delta", map[string]string{"text": ev.Text})
			case chat.EventDone:
				writeSSEEvent(w, logger, "done", map[string]string{"text": ev.Text})
				flusher.Flush()
				return
			case chat.EventError:
				writeSSEEvent(w, logger, "error", map[string]string{"error": ev.Err.Error()})
				flusher.Flush()
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func writeSSEEvent(w http.ResponseWriter, logger *slog.Logger, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

type endSessionRequest struct {
	OwnerID   int64 `json:"ownerId"`
	MoodAfter *int  `json:"moodAfter"`
}

func handleEndSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")

		var req endSessionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.OwnerID <= 0 {
			httpError(w, http.StatusBadRequest, "ownerId is required")
			return
		}

		ended := deps.Chat.EndSession(r.Context(), sessionID, req.OwnerID, req.MoodAfter)
		writeJSON(w, http.StatusOK, map[string]bool{"success": ended})
	}
}

type quickAnalyzeRequest struct {
	Content string `json:"content"`
}

func handleQuickAnalyze(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quickAnalyzeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "content is required")
			return
		}

		result := deps.Chat.QuickAnalyze(r.Context(), req.Content)
		writeJSON(w, http.StatusOK, result)
	}
}

type createEntryRequest struct {
	OwnerID int64 `json:"ownerId"`
	diary.Input
}

func handleCreateEntry(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createEntryRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.OwnerID <= 0 {
			httpError(w, http.StatusBadRequest, "ownerId is required")
			return
		}

		entry, err := deps.Diary.CreateEntry(r.Context(), req.OwnerID, &req.Input)
		if err != nil {
			if errors.Is(err, diary.ErrInvalidMoodScore) || errors.Is(err, diary.ErrInvalidEntryDate) {
				httpError(w, http.StatusBadRequest, err.Error())
				return
			}
			deps.Logger.Error("create diary entry failed", "error", err)
			httpError(w, http.StatusInternalServerError, "failed to create entry")
			return
		}
		writeJSON(w, http.StatusCreated, entryView(entry))
	}
}

func handleUpdateEntry(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, ok := pathID(w, r, "entryID")
		if !ok {
			return
		}
		var req diary.Input
		if !decodeBody(w, r, &req) {
			return
		}

		entry, err := deps.Diary.UpdateEntry(r.Context(), entryID, &req)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				httpError(w, http.StatusNotFound, "entry not found")
			case errors.Is(err, diary.ErrInvalidMoodScore), errors.Is(err, diary.ErrInvalidEntryDate):
				httpError(w, http.StatusBadRequest, err.Error())
			default:
				deps.Logger.Error("update diary entry failed", "entry_id", entryID, "error", err)
				httpError(w, http.StatusInternalServerError, "failed to update entry")
			}
			return
		}
		writeJSON(w, http.StatusOK, entryView(entry))
	}
}

func handleGetEntry(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, ok := pathID(w, r, "entryID")
		if !ok {
			return
		}

		entry, err := deps.Diary.Entry(r.Context(), entryID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpError(w, http.StatusNotFound, "entry not found")
				return
			}
			deps.Logger.Error("get diary entry failed", "entry_id", entryID, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to load entry")
			return
		}
		writeJSON(w, http.StatusOK, entryView(entry))
	}
}

func handleGetEntryByDate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := strconv.ParseInt(r.URL.Query().Get("ownerId"), 10, 64)
		if err != nil || ownerID <= 0 {
			httpError(w, http.StatusBadRequest, "ownerId query parameter is required")
			return
		}
		date := r.URL.Query().Get("date")
		if date == "" {
			httpError(w, http.StatusBadRequest, "date query parameter is required")
			return
		}

		entry, err := deps.Diary.EntryByDate(r.Context(), ownerID, date)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpError(w, http.StatusNotFound, "entry not found")
				return
			}
			deps.Logger.Error("get diary entry by date failed", "owner_id", ownerID, "date", date, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to load entry")
			return
		}
		writeJSON(w, http.StatusOK, entryView(entry))
	}
}

func handleListEntries(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := strconv.ParseInt(r.URL.Query().Get("ownerId"), 10, 64)
		if err != nil || ownerID <= 0 {
			httpError(w, http.StatusBadRequest, "ownerId query parameter is required")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		entries, err := deps.Diary.List(r.Context(), ownerID, limit)
		if err != nil {
			deps.Logger.Error("list diary entries failed", "owner_id", ownerID, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to list entries")
			return
		}

		views := make([]map[string]any, 0, len(entries))
		for _, entry := range entries {
			views = append(views, entryView(entry))
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": views})
	}
}

func handleEntryAnalysis(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, ok := pathID(w, r, "entryID")
		if !ok {
			return
		}

		result, err := deps.Diary.Analysis(r.Context(), entryID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpError(w, http.StatusNotFound, "entry not found")
				return
			}
			deps.Logger.Error("diary analysis lookup failed", "entry_id", entryID, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to load analysis")
			return
		}
		if result == nil {
			writeJSON(w, http.StatusOK, map[string]any{"ready": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ready": true, "analysis": result})
	}
}

type triggerAnalysisRequest struct {
	TaskType string `json:"taskType"`
	Priority int    `json:"priority"`
}

func handleTriggerAnalysis(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, ok := pathID(w, r, "entryID")
		if !ok {
			return
		}
		var req triggerAnalysisRequest
		if r.ContentLength > 0 && !decodeBody(w, r, &req) {
			return
		}
		if req.TaskType == "" {
			req.TaskType = store.TaskTypeManual
		}

		task, err := deps.Diary.TriggerAnalysis(r.Context(), entryID, req.TaskType, req.Priority)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpError(w, http.StatusNotFound, "entry not found")
				return
			}
			deps.Logger.Error("trigger diary analysis failed", "entry_id", entryID, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to trigger analysis")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"taskId": task.ID})
	}
}

type batchTriggerRequest struct {
	EntryIDs []int64 `json:"entryIds"`
	Priority int     `json:"priority"`
}

func handleBatchTrigger(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchTriggerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.EntryIDs) == 0 {
			httpError(w, http.StatusBadRequest, "entryIds is required")
			return
		}

		enqueued, failures := deps.Diary.BatchTrigger(r.Context(), req.EntryIDs, req.Priority)
		writeJSON(w, http.StatusOK, map[string]any{
			"requested": len(req.EntryIDs),
			"enqueued":  enqueued,
			"failures":  failures,
		})
	}
}

func handleRetryTask(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, ok := pathID(w, r, "taskID")
		if !ok {
			return
		}

		if err := deps.Tasks.Retry(r.Context(), taskID); err != nil {
			var stateErr *tasks.InvalidStateError
			switch {
			case errors.As(err, &stateErr):
				httpError(w, http.StatusConflict, stateErr.Error())
			case errors.Is(err, store.ErrNotFound):
				httpError(w, http.StatusNotFound, "task not found")
			default:
				deps.Logger.Error("task retry failed", "task_id", taskID, "error", err)
				httpError(w, http.StatusInternalServerError, "failed to retry task")
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

type batchRetryRequest struct {
	TaskIDs []int64 `json:"taskIds"`
}

func handleBatchRetry(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRetryRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.TaskIDs) == 0 {
			httpError(w, http.StatusBadRequest, "taskIds is required")
			return
		}

		result := deps.Tasks.BatchRetry(r.Context(), req.TaskIDs)
		writeJSON(w, http.StatusOK, result)
	}
}

func handleTaskStatistics(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Tasks.Statistics(r.Context())
		if err != nil {
			deps.Logger.Error("task statistics failed", "error", err)
			httpError(w, http.StatusInternalServerError, "failed to load statistics")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// entryView shapes a diary entry for JSON responses.
func entryView(entry *store.DiaryEntry) map[string]any {
	view := map[string]any{
		"id":              entry.ID,
		"ownerId":         entry.OwnerID,
		"entryDate":       entry.EntryDate,
		"content":         entry.Content,
		"moodScore":       entry.MoodScore,
		"dominantEmotion": entry.DominantEmotion,
		"emotionTriggers": entry.EmotionTriggers,
		"sleepQuality":    entry.SleepQuality,
		"stressLevel":     entry.StressLevel,
		"createdAt":       entry.CreatedAt,
		"updatedAt":       entry.UpdatedAt,
	}
	view["analyzed"] = entry.Analysis != ""
	if entry.AnalysisUpdatedAt != nil {
		view["analysisUpdatedAt"] = entry.AnalysisUpdatedAt
	}
	return view
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpError(w, http.StatusBadRequest, "invalid %s", param)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return false
	}
	return true
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": msg},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
