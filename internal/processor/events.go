package processor

import (
	"sync"
	"time"
)

// EventType classifies processor lifecycle events.
type EventType string

const (
	EventItemQueued      EventType = "item_queued"
	EventUploadStarted   EventType = "upload_started"
	EventUploadProgress  EventType = "upload_progress"
	EventUploadCompleted EventType = "upload_completed"
	EventUploadRetrying  EventType = "upload_retrying"
	EventUploadFailed    EventType = "upload_failed"
	EventPassSkipped     EventType = "pass_skipped"
	EventQueueDrained    EventType = "queue_drained"
)

// Event is a push notification of processor state. Observers subscribe
// instead of polling the stores.
type Event struct {
	Type     EventType
	ItemID   int64
	Progress int
	Detail   string
	At       time.Time
}

const subscriberBuffer = 64

// hub fans events out to subscribers. Publishing never blocks; a subscriber
// that falls behind loses events rather than stalling the drain loop.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if existing, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(existing)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *hub) publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	h.mu.Lock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *hub) closeAll() {
	h.mu.Lock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}
