// ABOUTME: Session and conversation ID formats shared across the system
// ABOUTME: Fixed string conventions; other components must reproduce them exactly

package chat

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSessionID is returned for any session ID that does not match
// the fixed "session_<digits>" format.
var ErrInvalidSessionID = errors.New("invalid session id format")

const (
	sessionIDPrefix      = "session_"
	conversationIDPrefix = "conversation_"
)

// FormatSessionID renders the public session ID for a persisted record.
func FormatSessionID(dbID int64) string {
	return sessionIDPrefix + strconv.FormatInt(dbID, 10)
}

// ConversationID renders the memory-window key for a session ID.
func ConversationID(sessionID string) string {
	return conversationIDPrefix + sessionID
}

// ParseSessionID extracts the persisted record ID from a public session
// ID. Anything that is not "session_" followed by plain digits is
// rejected with ErrInvalidSessionID.
func ParseSessionID(sessionID string) (int64, error) {
	rest, ok := strings.CutPrefix(sessionID, sessionIDPrefix)
	if !ok || rest == "" {
		return 0, ErrInvalidSessionID
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, ErrInvalidSessionID
		}
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, ErrInvalidSessionID
	}
	return id, nil
}

// Session is the public descriptor of a conversation session.
type Session struct {
	SessionID      string    `json:"sessionId"`
	ConversationID string    `json:"conversationId"`
	OwnerID        int64     `json:"ownerId"`
	InitialMessage string    `json:"initialMessage"`
	Status         string    `json:"status"`
	MessageCount   int       `json:"messageCount"`
	StartedAt      time.Time `json:"startedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}
