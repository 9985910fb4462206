package schemas

// ReviewChoice is the user's verdict on a single grounded tool call.
type ReviewChoice string

const (
	// AcceptOnce approves this call only.
	AcceptOnce ReviewChoice = "accept_once"
	// AcceptSession approves this call and adds its tool name to the
	// session accept-set.
	AcceptSession ReviewChoice = "accept_session"
	// RejectOnce rejects this call; the model sees a synthetic error.
	RejectOnce ReviewChoice = "reject_once"
)

// Valid reports whether the choice is one of the three known verdicts.
func (c ReviewChoice) Valid() bool {
	switch c {
	case AcceptOnce, AcceptSession, RejectOnce:
		return true
	}
	return false
}

// ToolReview is the tagged union attached to review messages. Exactly one
// branch is set: Request on the workflow message that surfaces a grounded
// call, Response on the user message that resolves it.
type ToolReview struct {
	Request  *ReviewRequest  `json:"request,omitempty"`
	Response *ReviewResponse `json:"response,omitempty"`
}

// ReviewRequest surfaces one grounded call for user approval. For each
// ReviewID there is exactly one request in the log and at most one response.
type ReviewRequest struct {
	ReviewID string `json:"reviewId"`
	// FunctionCall is the grounded .computer call ready for execution.
	FunctionCall FunctionCall `json:"functionCall"`
	// OriginalFunctionCall is the planner's call before grounding; its name
	// is what an accept_session choice adds to the accept-set.
	OriginalFunctionCall FunctionCall `json:"originalFunctionCall"`
}

// ReviewResponse records the user's verdict for a prior request.
type ReviewResponse struct {
	ReviewID string       `json:"reviewId"`
	Choice   ReviewChoice `json:"choice"`
}

// ResolvedReview pairs a grounded call with the user's verdict. A slice of
// these is the input of a resumed turn.
type ResolvedReview struct {
	FunctionCall         FunctionCall `json:"functionCall"`
	OriginalFunctionCall FunctionCall `json:"originalFunctionCall"`
	Choice               ReviewChoice `json:"choice"`
}
