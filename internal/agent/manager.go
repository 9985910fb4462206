package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/openmule/gacua/internal/events"
	"github.com/openmule/gacua/internal/schemas"
	"github.com/openmule/gacua/internal/store"
)

// maxSessionName caps the session name derived from the first user input.
const maxSessionName = 60

// Manager owns the agent goroutines. At most one turn runs per session;
// input for a busy session is rejected rather than queued.
type Manager struct {
	loop  *Loop
	store *store.Store
	hub   *events.Hub
	log   *zap.Logger

	defaultModel string

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager builds a Manager dispatching onto the given loop.
func NewManager(loop *Loop, st *store.Store, hub *events.Hub, defaultModel string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		loop:         loop,
		store:        st,
		hub:          hub,
		log:          logger.Named("manager"),
		defaultModel: defaultModel,
		running:      make(map[string]context.CancelFunc),
	}
}

// HandleUserInput starts a new turn. An empty session id creates a fresh
// session first. The returned id identifies the session the turn runs on.
func (m *Manager) HandleUserInput(ctx context.Context, req schemas.UserInputRequest) (string, error) {
	if strings.TrimSpace(req.Input) == "" {
		return "", fmt.Errorf("user input must not be empty")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		session := schemas.Session{
			ID:        schemas.NewSessionID(m.loop.now()),
			Name:      sessionName(req.Input),
			Model:     req.Model,
			Status:    schemas.StatusRunning,
			CreatedAt: m.loop.now().UTC(),
		}
		if session.Model == "" {
			session.Model = m.defaultModel
		}
		if err := m.store.Create(session); err != nil {
			return "", err
		}
		sessionID = session.ID
	} else if _, err := m.store.Get(sessionID); err != nil {
		return "", err
	}

	if err := m.start(ctx, sessionID, Input{Text: req.Input}); err != nil {
		return "", err
	}
	return sessionID, nil
}

// HandleToolReview resolves one pending review. The turn resumes only after
// every outstanding request of the suspended turn has an answer.
func (m *Manager) HandleToolReview(ctx context.Context, req schemas.ToolReviewRequest) error {
	if !req.Choice.Valid() {
		return fmt.Errorf("unknown review choice %q", req.Choice)
	}
	session, err := m.store.Get(req.SessionID)
	if err != nil {
		return err
	}
	if session.Status != schemas.StatusPending {
		return fmt.Errorf("session %s is not awaiting tool review", session.ID)
	}
	if m.busy(session.ID) {
		return fmt.Errorf("session %s is busy", session.ID)
	}

	turn, err := m.pendingTurn(session.ID)
	if err != nil {
		return err
	}
	if _, ok := turn.requests[req.ReviewID]; !ok {
		return fmt.Errorf("unknown review id %q", req.ReviewID)
	}
	if _, answered := turn.responses[req.ReviewID]; answered {
		return fmt.Errorf("review %q is already answered", req.ReviewID)
	}

	response := m.loop.newMessage(schemas.RoleUser, nil, displayOnly())
	response.ToolReview = &schemas.ToolReview{Response: &schemas.ReviewResponse{
		ReviewID: req.ReviewID,
		Choice:   req.Choice,
	}}
	if err := m.loop.append(session.ID, response); err != nil {
		return err
	}
	turn.responses[req.ReviewID] = req.Choice

	if len(turn.responses) < len(turn.requests) {
		return nil
	}

	// All reviews answered; grow the accept-set before resuming.
	var accepted []string
	reviews := make([]schemas.ResolvedReview, 0, len(turn.order))
	for _, request := range turn.order {
		choice := turn.responses[request.ReviewID]
		if choice == schemas.AcceptSession && !session.Accepted(request.OriginalFunctionCall.Name) {
			session.AcceptedTools = append(session.AcceptedTools, request.OriginalFunctionCall.Name)
			accepted = append(accepted, request.OriginalFunctionCall.Name)
		}
		reviews = append(reviews, schemas.ResolvedReview{
			FunctionCall:         request.FunctionCall,
			OriginalFunctionCall: request.OriginalFunctionCall,
			Choice:               choice,
		})
	}
	if len(accepted) > 0 {
		updated, err := m.store.Update(session.ID, schemas.SessionUpdate{AcceptedTools: session.AcceptedTools})
		if err != nil {
			return err
		}
		m.hub.PublishStatus(updated.ID, updated.Status, updated.StatusMessage)
		m.log.Info("Accept-set updated",
			zap.String("session", session.ID), zap.Strings("tools", accepted))
	}

	return m.start(ctx, session.ID, Input{Reviews: reviews})
}

// pendingTurnState holds the review requests of the suspended turn plus the
// answers recorded so far.
type pendingTurnState struct {
	order     []*schemas.ReviewRequest
	requests  map[string]*schemas.ReviewRequest
	responses map[string]schemas.ReviewChoice
}

// pendingTurn reconstructs the suspended turn's review state from the log:
// every request after the final model message, paired with any responses.
func (m *Manager) pendingTurn(sessionID string) (*pendingTurnState, error) {
	msgs, err := m.store.GetMessages(sessionID, true)
	if err != nil {
		return nil, err
	}
	lastModel := -1
	for i := range msgs {
		if msgs[i].Role == schemas.RoleModel {
			lastModel = i
		}
	}

	turn := &pendingTurnState{
		requests:  make(map[string]*schemas.ReviewRequest),
		responses: make(map[string]schemas.ReviewChoice),
	}
	for i := lastModel + 1; i < len(msgs); i++ {
		review := msgs[i].ToolReview
		if review == nil {
			continue
		}
		if review.Request != nil {
			turn.order = append(turn.order, review.Request)
			turn.requests[review.Request.ReviewID] = review.Request
		}
		if review.Response != nil {
			turn.responses[review.Response.ReviewID] = review.Response.Choice
		}
	}
	return turn, nil
}

// start launches the run goroutine for a session, rejecting it if one is
// already active.
func (m *Manager) start(ctx context.Context, sessionID string, in Input) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, active := m.running[sessionID]; active {
		return fmt.Errorf("session %s is busy", sessionID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.running[sessionID] = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			cancel()
			m.mu.Lock()
			delete(m.running, sessionID)
			m.mu.Unlock()
		}()
		if err := m.loop.Run(runCtx, sessionID, in); err != nil {
			m.log.Warn("Agent run ended with error",
				zap.String("session", sessionID), zap.Error(err))
		}
	}()
	return nil
}

func (m *Manager) busy(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, active := m.running[sessionID]
	return active
}

// Shutdown cancels all active runs and waits for them to finish.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for _, cancel := range m.running {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func sessionName(input string) string {
	name := strings.Join(strings.Fields(input), " ")
	if len(name) <= maxSessionName {
		return name
	}
	// Cut on a rune boundary so multi-byte input stays valid UTF-8.
	cut := maxSessionName
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
