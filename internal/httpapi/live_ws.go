package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	feedBufferSize   = 16
	feedPingInterval = 30 * time.Second
	feedWriteTimeout = 10 * time.Second
)

// TranscriptEvent is one transcript fragment pushed to live listeners.
type TranscriptEvent struct {
	RoomID    string    `json:"roomId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// FeedRegistry fans transcript fragments out to live listeners, keyed by
// room. Broadcasting never blocks ingestion: events to a subscriber whose
// buffer is full are dropped.
type FeedRegistry struct {
	mu   sync.Mutex
	subs map[string]map[chan TranscriptEvent]struct{}
}

func NewFeedRegistry() *FeedRegistry {
	return &FeedRegistry{subs: make(map[string]map[chan TranscriptEvent]struct{})}
}

// Subscribe registers a listener for one room's transcript fragments. The
// returned cancel function must be called exactly once.
func (f *FeedRegistry) Subscribe(roomID string) (<-chan TranscriptEvent, func()) {
	ch := make(chan TranscriptEvent, feedBufferSize)

	f.mu.Lock()
	if f.subs[roomID] == nil {
		f.subs[roomID] = make(map[chan TranscriptEvent]struct{})
	}
	f.subs[roomID][ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		delete(f.subs[roomID], ch)
		if len(f.subs[roomID]) == 0 {
			delete(f.subs, roomID)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers an event to every listener of its room.
func (f *FeedRegistry) Broadcast(ev TranscriptEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[ev.RoomID] {
		select {
		case ch <- ev:
		default: // slow listener, drop
		}
	}
}

// SubscriberCount returns the number of live listeners for a room.
func (f *FeedRegistry) SubscriberCount(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[roomID])
}

// handleTranscriptLive streams transcript fragments for one room over a
// WebSocket as segments are ingested.
func (r *Router) handleTranscriptLive(w http.ResponseWriter, req *http.Request) {
	roomID := req.PathValue("roomId")
	if roomID == "" {
		http.Error(w, `{"error": "room id is required"}`, http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("httpapi: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := r.feeds.Subscribe(roomID)
	defer cancel()

	// Reader goroutine: we never expect client messages, but reading is
	// required to notice a closed connection.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pings := time.NewTicker(feedPingInterval)
	defer pings.Stop()

	for {
		select {
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-pings.C:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readerDone:
			return
		}
	}
}
