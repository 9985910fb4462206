// Package agent drives sessions through the plan, ground, review, act cycle.
// Each session is owned by a single goroutine; the persisted message log is
// the source of truth and every turn is reconstructed from it.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/openmule/gacua/internal/computer"
	"github.com/openmule/gacua/internal/events"
	"github.com/openmule/gacua/internal/grounding"
	"github.com/openmule/gacua/internal/history"
	"github.com/openmule/gacua/internal/llm"
	"github.com/openmule/gacua/internal/schemas"
	"github.com/openmule/gacua/internal/screen"
	"github.com/openmule/gacua/internal/store"
	"github.com/openmule/gacua/internal/tools"
)

// Status messages for the terminal transitions of a turn.
const (
	msgAllRejected   = "User rejected all tool calls."
	msgNoMoreCalls   = "No more tool calls from model."
	msgEmptyResponse = "Model returned empty response even after retry."
	msgPending       = "Tool call pending."
)

const planTemperature float32 = 0.2

// Detector grounds one element description within a tile image.
type Detector interface {
	Detect(ctx context.Context, tilePNG []byte, description string, onDelta func(llm.Delta)) (*grounding.Detection, error)
}

// Input seeds one invocation of the loop: either plain user text or the
// resolved review decisions of a previously suspended turn.
type Input struct {
	Text    string
	Reviews []schemas.ResolvedReview
}

// Loop executes agent turns for sessions. It is stateless across calls: all
// per-session state lives in the store.
type Loop struct {
	store    *store.Store
	gen      llm.ContentGenerator
	detector Detector
	computer computer.Client
	catalog  *tools.Catalog
	hub      *events.Hub
	log      *zap.Logger

	now      func() time.Time
	randomID func() string
}

// NewLoop wires the loop's collaborators.
func NewLoop(st *store.Store, gen llm.ContentGenerator, det Detector, comp computer.Client, cat *tools.Catalog, hub *events.Hub, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		store:    st,
		gen:      gen,
		detector: det,
		computer: comp,
		catalog:  cat,
		hub:      hub,
		log:      logger.Named("agent"),
		now:      time.Now,
		randomID: func() string { return uuid.New().String()[:8] },
	}
}

// Run executes turns for the session until it reaches a terminal status. Any
// uncaught failure transitions the session to error with the failure text as
// the status message.
func (l *Loop) Run(ctx context.Context, sessionID string, in Input) error {
	session, err := l.store.Get(sessionID)
	if err != nil {
		return err
	}
	if err := l.run(ctx, &session, in); err != nil {
		l.setStatus(session.ID, schemas.StatusError, err.Error())
		return err
	}
	return nil
}

func (l *Loop) run(ctx context.Context, session *schemas.Session, in Input) error {
	if len(in.Reviews) > 0 {
		done, err := l.seedReviews(ctx, session, in.Reviews)
		if err != nil || done {
			return err
		}
	} else {
		if err := l.append(session.ID, l.newMessage(schemas.RoleUser, []schemas.Part{schemas.TextPart(in.Text)}, nil)); err != nil {
			return err
		}
	}

	for turn := 1; ; turn++ {
		l.setStatus(session.ID, schemas.StatusRunning, fmt.Sprintf("Turn %d", turn))

		next, err := l.turn(ctx, session)
		if err != nil {
			return err
		}
		if !next {
			return nil
		}
	}
}

// seedReviews executes or rejects each resolved decision and appends the
// results as tool messages. It reports done=true when every decision was a
// rejection, which ends the run as stagnant.
func (l *Loop) seedReviews(ctx context.Context, session *schemas.Session, reviews []schemas.ResolvedReview) (done bool, err error) {
	var parts []schemas.Part
	rejected := 0
	for _, r := range reviews {
		if r.Choice == schemas.RejectOnce {
			rejected++
			parts = append(parts, schemas.ErrorResponse(r.OriginalFunctionCall.ID, r.OriginalFunctionCall.Name, "Rejected by user"))
			continue
		}
		parts = append(parts, l.execute(ctx, r.FunctionCall, r.OriginalFunctionCall))
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := l.append(session.ID, l.newMessage(schemas.RoleTool, parts, nil)); err != nil {
		return false, err
	}
	if rejected == len(reviews) {
		l.setStatus(session.ID, schemas.StatusStagnant, msgAllRejected)
		return true, nil
	}
	return false, nil
}

// turn runs one observe/plan/ground/act iteration. It reports next=false
// when the session reached a terminal status.
func (l *Loop) turn(ctx context.Context, session *schemas.Session) (next bool, err error) {
	tiler, err := l.observe(ctx, session)
	if err != nil {
		return false, err
	}

	result, err := l.plan(ctx, session)
	if err != nil {
		return false, err
	}
	if result == nil {
		l.setStatus(session.ID, schemas.StatusError, msgEmptyResponse)
		return false, nil
	}

	calls, err := l.normalizeCalls(result.FunctionCalls)
	if err != nil {
		return false, err
	}
	if err := l.append(session.ID, l.newMessage(schemas.RoleModel, modelParts(result, calls), nil)); err != nil {
		return false, err
	}

	if len(calls) == 0 {
		l.setStatus(session.ID, schemas.StatusStagnant, msgNoMoreCalls)
		return false, nil
	}

	return l.dispatch(ctx, session, tiler, calls)
}

// observe takes a screenshot, persists the user view and the model-only tile
// view, and returns the tiler for this turn's grounding.
func (l *Loop) observe(ctx context.Context, session *schemas.Session) (*screen.Tiler, error) {
	png, err := computer.Screenshot(ctx, l.computer)
	if err != nil {
		return nil, fmt.Errorf("taking screenshot: %w", err)
	}
	img, err := screen.DecodePNG(png)
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	geo, err := screen.NewGeometry(img.Bounds().Dx(), img.Bounds().Dy())
	if err != nil {
		return nil, err
	}
	tiler, err := screen.NewTiler(img, geo)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	stamp := now.UnixMilli()
	label := "Screenshot taken at " + now.Format(time.RFC3339)

	shotName := fmt.Sprintf("screenshot-%d.png", stamp)
	if err := l.store.PutImage(session.ID, shotName, png); err != nil {
		return nil, err
	}
	userView := []schemas.Part{schemas.TextPart(label), schemas.ImagePart(session.ID, shotName)}
	if err := l.append(session.ID, l.newMessage(schemas.RoleWorkflow, userView, displayOnly())); err != nil {
		return nil, err
	}

	tiles, err := tiler.Tiles()
	if err != nil {
		return nil, err
	}
	modelView := []schemas.Part{schemas.TextPart(label)}
	for i, tile := range tiles {
		name := fmt.Sprintf("tile-%d-%d.png", stamp, i)
		if err := l.store.PutImage(session.ID, name, tile); err != nil {
			return nil, err
		}
		modelView = append(modelView, schemas.ImagePart(session.ID, name))
	}
	if err := l.append(session.ID, l.newMessage(schemas.RoleWorkflow, modelView, modelOnly())); err != nil {
		return nil, err
	}

	return tiler, nil
}

// plan asks the planning model for the next step, streaming deltas as model
// events. A nil result with nil error means the model stayed empty after the
// single "continue" retry.
func (l *Loop) plan(ctx context.Context, session *schemas.Session) (*llm.Result, error) {
	msgs, err := l.store.GetMessages(session.ID, true)
	if err != nil {
		return nil, err
	}
	contents, err := history.NewAssembler(l.store, session.ID).Assemble(msgs)
	if err != nil {
		return nil, err
	}

	result, err := l.requestPlan(ctx, session, contents)
	if err != nil {
		return nil, err
	}
	if !result.Empty() {
		return result, nil
	}

	l.log.Warn("Empty plan response, retrying once", zap.String("session", session.ID))
	contents = history.AppendContent(contents, genai.NewContentFromParts(
		[]*genai.Part{genai.NewPartFromText("continue")}, genai.RoleUser))
	result, err = l.requestPlan(ctx, session, contents)
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		return nil, nil
	}
	return result, nil
}

func (l *Loop) requestPlan(ctx context.Context, session *schemas.Session, contents []*genai.Content) (*llm.Result, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(planTemperature),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
		},
		Tools: []*genai.Tool{{FunctionDeclarations: l.catalog.Declarations()}},
	}
	onDelta := func(d llm.Delta) {
		payload := schemas.StreamPayload{Role: schemas.RoleModel}
		if d.Thought {
			payload.Thought = d.Text
		} else {
			payload.Text = d.Text
		}
		l.hub.PublishStream(session.ID, payload)
	}
	result, err := llm.Drain(l.gen.GenerateContentStream(ctx, session.Model, contents, config), onDelta)
	if err != nil {
		return nil, fmt.Errorf("plan request failed: %w", err)
	}
	return result, nil
}

// normalizeCalls fills in missing function-call ids and rejects duplicates,
// which would corrupt the call/response pairing in the log.
func (l *Loop) normalizeCalls(raw []*genai.FunctionCall) ([]schemas.FunctionCall, error) {
	calls := make([]schemas.FunctionCall, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, fc := range raw {
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d-%s", fc.Name, l.now().UnixMilli(), l.randomID())
		}
		if seen[id] {
			return nil, fmt.Errorf("model returned duplicate function call id %q", id)
		}
		seen[id] = true
		calls = append(calls, schemas.FunctionCall{ID: id, Name: fc.Name, Args: fc.Args})
	}
	return calls, nil
}

func modelParts(result *llm.Result, calls []schemas.FunctionCall) []schemas.Part {
	var parts []schemas.Part
	if result.Thought != "" {
		parts = append(parts, schemas.ThoughtPart(result.Thought))
	}
	if result.Text != "" {
		parts = append(parts, schemas.TextPart(result.Text))
	}
	for i := range calls {
		parts = append(parts, schemas.Part{FunctionCall: &calls[i]})
	}
	return parts
}

// dispatch grounds each planned call in order, persists review requests and
// synthetic responses, and either suspends on the review gate or executes
// the delayed auto-accepted calls and continues.
func (l *Loop) dispatch(ctx context.Context, session *schemas.Session, tiler *screen.Tiler, calls []schemas.FunctionCall) (next bool, err error) {
	tiles, err := tiler.Tiles()
	if err != nil {
		return false, err
	}
	detect := func(ctx context.Context, tileIndex int, description string) (*grounding.Detection, error) {
		return l.detector.Detect(ctx, tiles[tileIndex], description, func(d llm.Delta) {
			payload := schemas.StreamPayload{Role: schemas.RoleGroundingModel}
			if d.Thought {
				payload.Thought = d.Text
			} else {
				payload.Text = d.Text
			}
			l.hub.PublishStream(session.ID, payload)
		})
	}

	var (
		toolParts  []schemas.Part
		reviewMsgs []schemas.Message
		delayed    []schemas.ResolvedReview
		pending    bool
		imageSeq   int
	)
	saveImage := func(img []byte) (schemas.Part, error) {
		imageSeq++
		name := fmt.Sprintf("review-%d-%d.png", l.now().UnixMilli(), imageSeq)
		if err := l.store.PutImage(session.ID, name, img); err != nil {
			return schemas.Part{}, err
		}
		return schemas.ImagePart(session.ID, name), nil
	}

	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		tool := l.catalog.Lookup(call.Name)
		if tool == nil {
			// Not a catalog tool; the model addressed the runtime directly.
			toolParts = append(toolParts, l.execute(ctx, call, call))
			continue
		}
		if err := tool.ValidateArgs(call.Args); err != nil {
			toolParts = append(toolParts, schemas.ErrorResponse(call.ID, call.Name, err.Error()))
			continue
		}
		grounded, err := tool.Ground(ctx, tools.GroundInput{Call: call, Tiler: tiler, Detect: detect})
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			toolParts = append(toolParts, schemas.ErrorResponse(call.ID, call.Name, "Error during grounding: "+err.Error()))
			continue
		}
		descParts, err := grounded.Describe(ctx, saveImage)
		if err != nil {
			toolParts = append(toolParts, schemas.ErrorResponse(call.ID, call.Name, "Error during grounding: "+err.Error()))
			continue
		}

		reviewID := uuid.New().String()
		request := l.newMessage(schemas.RoleWorkflow, descParts, displayOnly())
		request.ToolReview = &schemas.ToolReview{Request: &schemas.ReviewRequest{
			ReviewID:             reviewID,
			FunctionCall:         grounded.Call,
			OriginalFunctionCall: grounded.Original,
		}}
		reviewMsgs = append(reviewMsgs, request)

		if session.Accepted(call.Name) {
			response := l.newMessage(schemas.RoleUser, nil, displayOnly())
			response.ToolReview = &schemas.ToolReview{Response: &schemas.ReviewResponse{
				ReviewID: reviewID,
				Choice:   schemas.AcceptSession,
			}}
			reviewMsgs = append(reviewMsgs, response)
			delayed = append(delayed, schemas.ResolvedReview{
				FunctionCall:         grounded.Call,
				OriginalFunctionCall: grounded.Original,
				Choice:               schemas.AcceptSession,
			})
		} else {
			pending = true
		}
	}

	if len(toolParts) > 0 {
		if err := l.append(session.ID, l.newMessage(schemas.RoleTool, toolParts, nil)); err != nil {
			return false, err
		}
	}
	for _, msg := range reviewMsgs {
		if err := l.append(session.ID, msg); err != nil {
			return false, err
		}
	}

	if pending {
		l.setStatus(session.ID, schemas.StatusPending, msgPending)
		return false, nil
	}

	if len(delayed) > 0 {
		var delayedParts []schemas.Part
		for _, d := range delayed {
			delayedParts = append(delayedParts, l.execute(ctx, d.FunctionCall, d.OriginalFunctionCall))
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if err := l.append(session.ID, l.newMessage(schemas.RoleTool, delayedParts, nil)); err != nil {
			return false, err
		}
	}
	return true, nil
}

// execute runs one grounded call against the automation service and shapes
// the result into a tool-response part carrying the original call's identity.
func (l *Loop) execute(ctx context.Context, grounded, original schemas.FunctionCall) schemas.Part {
	result, err := l.computer.Execute(ctx, grounded.Args)
	if err != nil {
		l.log.Warn("Tool execution failed",
			zap.String("call", original.Name), zap.Error(err))
		return schemas.ErrorResponse(original.ID, original.Name, err.Error())
	}
	return schemas.OutputResponse(original.ID, original.Name, result.Text)
}

func (l *Loop) newMessage(role schemas.Role, parts []schemas.Part, forDisplay *bool) schemas.Message {
	return schemas.Message{
		ID:         uuid.New().String(),
		Role:       role,
		Parts:      parts,
		ForDisplay: forDisplay,
		Timestamp:  l.now().UTC(),
	}
}

// append persists one message and surfaces it to subscribers. A failed
// append is fatal for the turn: the persisted log is the source of truth,
// and a session must not keep running past a message it could not record.
func (l *Loop) append(sessionID string, msg schemas.Message) error {
	if err := l.store.AppendMessages(sessionID, []schemas.Message{msg}); err != nil {
		return fmt.Errorf("appending %s message: %w", msg.Role, err)
	}
	l.hub.PublishMessage(sessionID, &msg)
	return nil
}

// setStatus updates the session metadata and announces the transition.
func (l *Loop) setStatus(sessionID string, status schemas.SessionStatus, message string) {
	_, err := l.store.Update(sessionID, schemas.SessionUpdate{
		Status:        &status,
		StatusMessage: &message,
	})
	if err != nil {
		l.log.Error("Failed to update session status", zap.String("session", sessionID), zap.Error(err))
	}
	l.hub.PublishStatus(sessionID, status, message)
}

func displayOnly() *bool { b := true; return &b }
func modelOnly() *bool   { b := false; return &b }
