package schemas

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the producer of a message in the session log.
type Role string

const (
	RoleUser           Role = "user"
	RoleModel          Role = "model"
	RoleTool           Role = "tool"
	RoleWorkflow       Role = "workflow"
	RoleGroundingModel Role = "grounding_model"
)

// Message is one entry in a session's append-only log. Messages are immutable
// once appended; ordering in the log is positional, Timestamp is informational.
type Message struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`

	// ToolReview attaches a review request or response to the message.
	ToolReview *ToolReview `json:"toolReview,omitempty"`

	// ForDisplay is a tri-state: nil means the message is both shown to the
	// user and sent to the model, true means display-only (never sent to the
	// model), false means model-only (hidden from the user).
	ForDisplay *bool `json:"forDisplay,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Hidden reports whether the message must be withheld from user-facing views.
func (m *Message) Hidden() bool {
	return m.ForDisplay != nil && !*m.ForDisplay
}

// DisplayOnly reports whether the message must be withheld from the model.
func (m *Message) DisplayOnly() bool {
	return m.ForDisplay != nil && *m.ForDisplay
}

// Part is a tagged union of content block kinds. Exactly one of the branch
// fields is populated: Text (optionally flagged as Thought), FunctionCall,
// FunctionResponse, or Image. A thought part always carries text.
type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
	Image            *ImageRef         `json:"image,omitempty"`
}

// TextPart builds a plain text part.
func TextPart(text string) Part { return Part{Text: text} }

// ThoughtPart builds a chain-of-thought part. Thought parts are shown to the
// user but never fed back to the model.
func ThoughtPart(text string) Part { return Part{Text: text, Thought: true} }

// ImagePart builds a part referencing a stored session image.
func ImagePart(sessionID, fileName string) Part {
	return Part{Image: &ImageRef{SessionID: sessionID, FileName: fileName}}
}

// FunctionCall is a tool invocation requested by the model. Args carries the
// raw argument object as decoded JSON.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// FunctionResponse is the outcome of a tool invocation. Response holds either
// an "output" or an "error" key; the ID must match the originating call's id
// (or the call's pre-grounding id).
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ErrorResponse forges a synthetic function response carrying an error string,
// used to report validation and grounding failures back to the model.
func ErrorResponse(id, name, errMsg string) Part {
	return Part{FunctionResponse: &FunctionResponse{
		ID:       id,
		Name:     name,
		Response: map[string]any{"error": errMsg},
	}}
}

// OutputResponse builds a function response carrying a tool's output text.
func OutputResponse(id, name, output string) Part {
	return Part{FunctionResponse: &FunctionResponse{
		ID:       id,
		Name:     name,
		Response: map[string]any{"output": output},
	}}
}

// ImageRef addresses a PNG blob stored under a session. The wire form is
// "internal://<sessionId>/<fileName>"; direct paths never cross this boundary.
type ImageRef struct {
	SessionID string
	FileName  string
}

const imageRefScheme = "internal://"

// String renders the internal reference URI.
func (r ImageRef) String() string {
	return imageRefScheme + r.SessionID + "/" + r.FileName
}

// MarshalText implements encoding.TextMarshaler so the reference serializes as
// its URI form inside message JSON.
func (r ImageRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses an internal reference URI.
func (r *ImageRef) UnmarshalText(data []byte) error {
	parsed, err := ParseImageRef(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseImageRef parses "internal://<sessionId>/<fileName>".
func ParseImageRef(s string) (ImageRef, error) {
	if !strings.HasPrefix(s, imageRefScheme) {
		return ImageRef{}, fmt.Errorf("invalid image reference %q: missing %s scheme", s, imageRefScheme)
	}
	rest := strings.TrimPrefix(s, imageRefScheme)
	session, file, ok := strings.Cut(rest, "/")
	if !ok || session == "" || file == "" {
		return ImageRef{}, fmt.Errorf("invalid image reference %q: want internal://<session>/<file>", s)
	}
	return ImageRef{SessionID: session, FileName: file}, nil
}
