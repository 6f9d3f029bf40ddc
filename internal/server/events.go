package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

type Event struct {
	Type     string `json:"type"`
	Entity   string `json:"entity,omitempty"`
	BoardID  int64  `json:"board_id"`
	ColumnID *int64 `json:"column_id,omitempty"`
	Payload  any    `json:"payload,omitempty"`
}

// EventBus fans board events out to SSE subscribers of that board.
type EventBus struct {
	mu   sync.RWMutex
	subs map[int64]map[chan []byte]struct{}

	heartbeat time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

const DefaultHeartbeat = 25 * time.Second

// NewEventBus returns a bus whose streams send a comment line every
// heartbeat; zero means DefaultHeartbeat.
func NewEventBus(heartbeat time.Duration) *EventBus {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &EventBus{
		subs:      make(map[int64]map[chan []byte]struct{}),
		heartbeat: heartbeat,
		done:      make(chan struct{}),
	}
}

// Close ends every open stream. Publishing after Close is a no-op for the
// streams but still safe.
func (b *EventBus) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *EventBus) Subscribe(boardID int64) (ch chan []byte, cancel func()) {
	ch = make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[boardID] == nil {
		b.subs[boardID] = make(map[chan []byte]struct{})
	}
	b.subs[boardID][ch] = struct{}{}
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.subs[boardID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, boardID)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (b *EventBus) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[ev.BoardID] {
		select {
		case ch <- data:
		default:
		}
	}
}

func (b *EventBus) Subscribers(boardID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[boardID])
}

// ServeSSE streams events for one board until the client goes away.
func (b *EventBus) ServeSSE(w http.ResponseWriter, r *http.Request, boardID int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := b.Subscribe(boardID)
	defer cancel()

	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// heartbeat keeps proxies from closing an idle stream
	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
