package httpapi

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestFeedRegistrySubscribeAndBroadcast(t *testing.T) {
	f := NewFeedRegistry()

	ch, cancel := f.Subscribe("room-1")
	defer cancel()

	f.Broadcast(TranscriptEvent{RoomID: "room-1", Text: "primeiro"})

	select {
	case ev := <-ch:
		if ev.Text != "primeiro" {
			t.Errorf("event text = %q, want %q", ev.Text, "primeiro")
		}
	default:
		t.Fatal("subscriber received no event")
	}
}

func TestFeedRegistryRoomIsolation(t *testing.T) {
	f := NewFeedRegistry()

	chA, cancelA := f.Subscribe("room-a")
	defer cancelA()
	chB, cancelB := f.Subscribe("room-b")
	defer cancelB()

	f.Broadcast(TranscriptEvent{RoomID: "room-a", Text: "só para a"})

	select {
	case <-chA:
	default:
		t.Error("room-a subscriber received no event")
	}
	select {
	case ev := <-chB:
		t.Errorf("room-b subscriber received event %+v", ev)
	default:
	}
}

func TestFeedRegistryCancelRemovesSubscriber(t *testing.T) {
	f := NewFeedRegistry()

	_, cancel := f.Subscribe("room-1")
	if got := f.SubscriberCount("room-1"); got != 1 {
		t.Fatalf("subscriber count = %d, want 1", got)
	}

	cancel()
	if got := f.SubscriberCount("room-1"); got != 0 {
		t.Errorf("subscriber count after cancel = %d, want 0", got)
	}
}

func TestFeedRegistryDropsForSlowSubscriber(t *testing.T) {
	f := NewFeedRegistry()

	ch, cancel := f.Subscribe("room-1")
	defer cancel()

	// Overfill the buffer. Broadcast must not block even when nobody reads.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < feedBufferSize*2; i++ {
			f.Broadcast(TranscriptEvent{RoomID: "room-1", Text: "evento"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
	if got := len(ch); got != feedBufferSize {
		t.Errorf("buffered events = %d, want %d", got, feedBufferSize)
	}
}

func TestTranscriptLiveEndToEnd(t *testing.T) {
	s := newFakeStore()
	r := newTestRouter(s, &fakeTranscriber{text: "ao vivo"}, &fakeAnswerer{})
	r.routes()

	srv := httptest.NewServer(r.mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rooms/abc/transcript/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	// Give the server side a moment to register the subscription.
	deadline := time.Now().Add(time.Second)
	for r.feeds.SubscriberCount("abc") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("live feed subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	r.feeds.Broadcast(TranscriptEvent{RoomID: "abc", Text: "ao vivo", CreatedAt: time.Now().UTC()})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev TranscriptEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("failed to read transcript event: %v", err)
	}
	if ev.Text != "ao vivo" || ev.RoomID != "abc" {
		t.Errorf("event = %+v", ev)
	}
}
