package schemas

import (
	"strings"
	"time"
)

// SessionStatus enumerates the lifecycle states of a session.
type SessionStatus string

const (
	// StatusRunning means a turn is actively executing.
	StatusRunning SessionStatus = "running"
	// StatusPending means the turn is suspended awaiting tool review.
	StatusPending SessionStatus = "pending"
	// StatusStagnant means the agent stopped normally and awaits new input.
	StatusStagnant SessionStatus = "stagnant"
	// StatusError means the last turn failed; the log is preserved.
	StatusError SessionStatus = "error"
)

// Session is the durable per-session metadata record.
type Session struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Model         string        `json:"model"`
	Status        SessionStatus `json:"status"`
	StatusMessage string        `json:"statusMessage,omitempty"`

	// AcceptedTools lists planner-visible tool names the user has approved
	// for the remainder of the session (choice accept_session).
	AcceptedTools []string `json:"acceptedTools,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Accepted reports whether a tool name is in the session accept-set.
func (s *Session) Accepted(tool string) bool {
	for _, t := range s.AcceptedTools {
		if t == tool {
			return true
		}
	}
	return false
}

// SessionUpdate is a partial metadata update; nil fields are left unchanged.
// The session id is immutable and therefore absent.
type SessionUpdate struct {
	Name          *string        `json:"name,omitempty"`
	Model         *string        `json:"model,omitempty"`
	Status        *SessionStatus `json:"status,omitempty"`
	StatusMessage *string        `json:"statusMessage,omitempty"`
	AcceptedTools []string       `json:"acceptedTools,omitempty"`
}

// NewSessionID derives a session identifier from a wall-clock instant: the
// UTC ISO-8601 timestamp with ':' and '.' replaced by '-'. The result sorts
// lexicographically by creation time.
func NewSessionID(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(iso)
}
