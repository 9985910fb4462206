package schemas

import "time"

// EventKind discriminates the envelopes pushed to external subscribers.
type EventKind string

const (
	// EventPersistentMessage carries a fully-formed persisted message. It is
	// emitted for every append whose message is not model-only.
	EventPersistentMessage EventKind = "persistent_message"
	// EventStreamMessage carries a partial model output delta.
	EventStreamMessage EventKind = "stream_message"
	// EventSessionStatus announces a session state transition.
	EventSessionStatus EventKind = "session_status"
)

// StreamPayload is a partial output delta from the planning or grounding
// model. At most one of Text and Thought is set per event.
type StreamPayload struct {
	Role    Role   `json:"role"`
	Text    string `json:"text,omitempty"`
	Thought string `json:"thought,omitempty"`
}

// StatusPayload describes a session status transition.
type StatusPayload struct {
	Status  SessionStatus `json:"status"`
	Message string        `json:"message,omitempty"`
}

// Event is the JSON envelope delivered to subscribers. Exactly one of
// Message, Stream, and Status is set, matching Kind.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`

	Message *Message       `json:"message,omitempty"`
	Stream  *StreamPayload `json:"stream,omitempty"`
	Status  *StatusPayload `json:"status,omitempty"`
}

// UserInputRequest starts a new turn for a session. An empty SessionID asks
// the manager to create a fresh session using Model.
type UserInputRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Input     string `json:"input"`
	Model     string `json:"model,omitempty"`
}

// ToolReviewRequest resolves one pending review on a suspended session.
type ToolReviewRequest struct {
	SessionID string       `json:"sessionId"`
	ReviewID  string       `json:"reviewId"`
	Choice    ReviewChoice `json:"choice"`
}
