// Package events fans session events out to external subscribers using a
// Pub/Sub model. Publishing never blocks the agent loop: each subscriber has
// a buffered channel and events are dropped on overflow.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openmule/gacua/internal/schemas"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 256

// Hub distributes events to all subscribers.
type Hub struct {
	logger *zap.Logger

	subscribers []chan schemas.Event
	mu          sync.RWMutex
	bufferSize  int

	isShutdown   bool
	shutdownOnce sync.Once
}

// NewHub initializes the Hub.
func NewHub(logger *zap.Logger, bufferSize int) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		logger:     logger.Named("events"),
		bufferSize: bufferSize,
	}
}

// Subscribe returns a channel of events and an unsubscribe function. The
// channel is closed on unsubscribe or hub shutdown.
func (h *Hub) Subscribe() (<-chan schemas.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.isShutdown {
		closed := make(chan schemas.Event)
		close(closed)
		return closed, func() {}
	}

	ch := make(chan schemas.Event, h.bufferSize)
	h.subscribers = append(h.subscribers, ch)

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, sub := range h.subscribers {
			if sub == ch {
				copy(h.subscribers[i:], h.subscribers[i+1:])
				h.subscribers = h.subscribers[:len(h.subscribers)-1]
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// Publish stamps the event with an id and timestamp and delivers it to every
// subscriber without blocking. A subscriber that cannot keep up loses the
// event.
func (h *Hub) Publish(event schemas.Event) {
	event.ID = uuid.New().String()
	event.Timestamp = time.Now().UTC()

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.isShutdown {
		return
	}
	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			h.logger.Warn("Dropping event for slow subscriber",
				zap.String("kind", string(event.Kind)),
				zap.String("sessionId", event.SessionID))
		}
	}
}

// PublishMessage emits a persistent_message event. Model-only messages are
// not surfaced.
func (h *Hub) PublishMessage(sessionID string, msg *schemas.Message) {
	if msg.Hidden() {
		return
	}
	h.Publish(schemas.Event{
		Kind:      schemas.EventPersistentMessage,
		SessionID: sessionID,
		Message:   msg,
	})
}

// PublishStream emits a stream_message delta.
func (h *Hub) PublishStream(sessionID string, payload schemas.StreamPayload) {
	h.Publish(schemas.Event{
		Kind:      schemas.EventStreamMessage,
		SessionID: sessionID,
		Stream:    &payload,
	})
}

// PublishStatus emits a session_status event.
func (h *Hub) PublishStatus(sessionID string, status schemas.SessionStatus, message string) {
	h.Publish(schemas.Event{
		Kind:      schemas.EventSessionStatus,
		SessionID: sessionID,
		Status:    &schemas.StatusPayload{Status: status, Message: message},
	})
}

// Shutdown closes all subscriber channels. Publishing after shutdown is a
// no-op.
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.isShutdown = true
		for _, ch := range h.subscribers {
			close(ch)
		}
		h.subscribers = nil
		h.logger.Debug("Event hub shut down")
	})
}
