package agent

import (
	"context"
	"iter"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/genai"

	"github.com/openmule/gacua/internal/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHandleUserInputCreatesSession(t *testing.T) {
	h := newHarness(t)
	h.gen.push(chunk(textP("Hello.")))

	id, err := h.mgr.HandleUserInput(context.Background(), schemas.UserInputRequest{
		Input: "   open the   settings and take a look around, then report back what you find there   ",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	h.waitStatus(t, id, schemas.StatusStagnant)

	session := h.session(t, id)
	assert.Equal(t, "gemini-test", session.Model, "default model applies")
	assert.LessOrEqual(t, len(session.Name), maxSessionName)
	assert.Contains(t, session.Name, "open the settings")
	assert.False(t, session.CreatedAt.IsZero())
}

func TestHandleUserInputRejectsEmptyInput(t *testing.T) {
	h := newHarness(t)
	_, err := h.mgr.HandleUserInput(context.Background(), schemas.UserInputRequest{Input: "   "})
	require.Error(t, err)
}

func TestHandleUserInputUnknownSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.mgr.HandleUserInput(context.Background(), schemas.UserInputRequest{
		SessionID: "missing", Input: "hi",
	})
	require.Error(t, err)
}

func TestBusySessionRejected(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	require.NoError(t, h.mgr.start(context.Background(), id, Input{Text: "first"}))
	err := h.mgr.start(context.Background(), id, Input{Text: "second"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy")

	// The first run fails on the exhausted plan queue and releases the slot.
	h.waitStatus(t, id, schemas.StatusError)
}

func TestHandleToolReviewRejectsBadRequests(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	h.gen.push(chunk(callP("c1", "computer_click", map[string]any{
		"image_id": float64(0), "element_description": "thing",
	})))
	require.NoError(t, h.loop.Run(context.Background(), id, Input{Text: "click the thing"}))
	requests := reviewRequests(h.messages(t, id))
	require.Len(t, requests, 1)

	err := h.mgr.HandleToolReview(context.Background(), schemas.ToolReviewRequest{
		SessionID: id, ReviewID: requests[0].ReviewID, Choice: "maybe",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown review choice")

	err = h.mgr.HandleToolReview(context.Background(), schemas.ToolReviewRequest{
		SessionID: id, ReviewID: "no-such-review", Choice: schemas.AcceptOnce,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown review id")

	err = h.mgr.HandleToolReview(context.Background(), schemas.ToolReviewRequest{
		SessionID: "missing", ReviewID: requests[0].ReviewID, Choice: schemas.AcceptOnce,
	})
	require.Error(t, err)
}

func TestHandleToolReviewRequiresPendingSession(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	err := h.mgr.HandleToolReview(context.Background(), schemas.ToolReviewRequest{
		SessionID: id, ReviewID: "r1", Choice: schemas.AcceptOnce,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not awaiting tool review")
}

func TestHandleToolReviewAlreadyAnswered(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	h.gen.push(chunk(
		callP("c1", "computer_click", map[string]any{
			"image_id": float64(0), "element_description": "a",
		}),
		callP("c2", "computer_click", map[string]any{
			"image_id": float64(0), "element_description": "b",
		}),
	))
	require.NoError(t, h.loop.Run(context.Background(), id, Input{Text: "click things"}))
	requests := reviewRequests(h.messages(t, id))
	require.Len(t, requests, 2)

	require.NoError(t, h.mgr.HandleToolReview(context.Background(), schemas.ToolReviewRequest{
		SessionID: id, ReviewID: requests[0].ReviewID, Choice: schemas.RejectOnce,
	}))
	err := h.mgr.HandleToolReview(context.Background(), schemas.ToolReviewRequest{
		SessionID: id, ReviewID: requests[0].ReviewID, Choice: schemas.AcceptOnce,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already answered")
}

func TestShutdownCancelsActiveRuns(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	// A plan response that stalls until the context is cancelled.
	release := make(chan struct{})
	h.gen.mu.Lock()
	h.gen.queue = nil
	h.gen.mu.Unlock()
	blocked := &blockingGen{release: release}
	h.loop.gen = blocked

	require.NoError(t, h.mgr.start(context.Background(), id, Input{Text: "hang"}))
	require.Eventually(t, func() bool { return blocked.started.Load() },
		time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		h.mgr.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	close(release)

	session := h.session(t, id)
	assert.Equal(t, schemas.StatusError, session.Status)
}

type blockingGen struct {
	release chan struct{}
	started atomic.Bool
}

func (b *blockingGen) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		b.started.Store(true)
		select {
		case <-ctx.Done():
			yield(nil, ctx.Err())
		case <-b.release:
			yield(nil, context.Canceled)
		}
	}
}

func TestSessionNameTruncatesOnRuneBoundary(t *testing.T) {
	// 2-byte runes: the byte cap falls exactly on a rune boundary.
	name := sessionName(strings.Repeat("ä", maxSessionName))
	assert.LessOrEqual(t, len(name), maxSessionName)
	assert.True(t, utf8.ValidString(name))
	assert.Equal(t, strings.Repeat("ä", maxSessionName/2), name)

	// 3-byte runes offset by one: the cap lands mid-rune and must back up.
	name = sessionName("a" + strings.Repeat("日", 20))
	assert.True(t, utf8.ValidString(name))
	assert.Equal(t, "a"+strings.Repeat("日", 19), name)
}
