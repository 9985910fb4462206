package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/openmule/gacua/internal/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub(zap.NewNop(), 8)
	defer hub.Shutdown()

	ch1, unsub1 := hub.Subscribe()
	ch2, unsub2 := hub.Subscribe()
	defer unsub1()
	defer unsub2()

	hub.PublishStatus("sess-1", schemas.StatusRunning, "Turn 1")

	for _, ch := range []<-chan schemas.Event{ch1, ch2} {
		ev := <-ch
		assert.Equal(t, schemas.EventSessionStatus, ev.Kind)
		assert.Equal(t, "sess-1", ev.SessionID)
		require.NotNil(t, ev.Status)
		assert.Equal(t, schemas.StatusRunning, ev.Status.Status)
		assert.Equal(t, "Turn 1", ev.Status.Message)
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestHubDropsOnOverflow(t *testing.T) {
	hub := NewHub(zap.NewNop(), 1)
	defer hub.Shutdown()

	ch, unsub := hub.Subscribe()
	defer unsub()

	// Nothing reads ch; the second publish must not block.
	hub.PublishStream("sess-1", schemas.StreamPayload{Role: schemas.RoleModel, Text: "a"})
	hub.PublishStream("sess-1", schemas.StreamPayload{Role: schemas.RoleModel, Text: "b"})

	ev := <-ch
	require.NotNil(t, ev.Stream)
	assert.Equal(t, "a", ev.Stream.Text)
	select {
	case ev, ok := <-ch:
		assert.False(t, ok, "unexpected buffered event %+v", ev)
	default:
	}
}

func TestHubHidesModelOnlyMessages(t *testing.T) {
	hub := NewHub(zap.NewNop(), 8)
	defer hub.Shutdown()

	ch, unsub := hub.Subscribe()
	defer unsub()

	hidden := &schemas.Message{
		ID:         "m1",
		Role:       schemas.RoleWorkflow,
		ForDisplay: boolPtr(false),
	}
	shown := &schemas.Message{ID: "m2", Role: schemas.RoleModel}

	hub.PublishMessage("sess-1", hidden)
	hub.PublishMessage("sess-1", shown)

	ev := <-ch
	require.NotNil(t, ev.Message)
	assert.Equal(t, "m2", ev.Message.ID)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub(zap.NewNop(), 8)
	defer hub.Shutdown()

	ch, unsub := hub.Subscribe()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing to no subscribers is fine.
	hub.PublishStatus("sess-1", schemas.StatusError, "boom")
}

func TestHubShutdown(t *testing.T) {
	hub := NewHub(zap.NewNop(), 8)

	ch, unsub := hub.Subscribe()
	hub.Shutdown()
	_, ok := <-ch
	assert.False(t, ok)

	// Safe after shutdown.
	unsub()
	hub.Publish(schemas.Event{Kind: schemas.EventSessionStatus, SessionID: "s"})

	late, lateUnsub := hub.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
	lateUnsub()
}

func boolPtr(b bool) *bool { return &b }
