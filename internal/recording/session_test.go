package recording

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"
)

// fakeTicker lets tests fire cutovers deterministically.
type fakeTicker struct {
	ch chan time.Time
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{ch: make(chan time.Time)}
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               {}

// tick blocks until the session loop has consumed the cutover event.
func (f *fakeTicker) tick() { f.ch <- time.Now() }

type fakeStream struct {
	ch chan []byte

	mu     sync.Mutex
	closed bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan []byte)}
}

func (f *fakeStream) Chunks() <-chan []byte { return f.ch }

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeStream) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// capture blocks until the session loop has buffered the chunk.
func (f *fakeStream) capture(data string) { f.ch <- []byte(data) }

type fakeSource struct {
	stream  *fakeStream
	openErr error
}

func (f *fakeSource) Open(_ context.Context, _ Constraints) (CaptureStream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

type fakeUploader struct {
	mu       sync.Mutex
	segments []Segment
	failFor  map[int]error

	received chan Segment
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{
		failFor:  map[int]error{},
		received: make(chan Segment, 16),
	}
}

func (f *fakeUploader) Send(_ context.Context, seg Segment) (TranscriptionResult, error) {
	f.mu.Lock()
	f.segments = append(f.segments, seg)
	f.mu.Unlock()
	f.received <- seg

	if err := f.failFor[seg.Sequence]; err != nil {
		return TranscriptionResult{}, err
	}
	return TranscriptionResult{Text: "ok", Sequence: seg.Sequence}, nil
}

// waitSegment blocks until the uploader has been handed one segment.
func (f *fakeUploader) waitSegment(t *testing.T) Segment {
	t.Helper()
	select {
	case seg := <-f.received:
		return seg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a segment upload")
		return Segment{}
	}
}

func (f *fakeUploader) assertNoSegment(t *testing.T) {
	t.Helper()
	select {
	case seg := <-f.received:
		t.Fatalf("unexpected segment upload: sequence %d", seg.Sequence)
	case <-time.After(50 * time.Millisecond):
	}
}

type testPipeline struct {
	session  *Session
	ticker   *fakeTicker
	stream   *fakeStream
	uploader *fakeUploader
}

func newTestPipeline(t *testing.T, cfg Config) *testPipeline {
	t.Helper()

	p := &testPipeline{
		ticker:   newFakeTicker(),
		stream:   newFakeStream(),
		uploader: newFakeUploader(),
	}

	cfg.RoomID = "room-1"
	cfg.Source = &fakeSource{stream: p.stream}
	cfg.Uploader = p.uploader
	cfg.Logger = log.New(io.Discard, "", 0)

	session, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	session.newTicker = func(time.Duration) segmentTicker { return p.ticker }
	p.session = session
	return p
}

// Simulates the reference scenario: a 5s interval, 12s of capture, then
// stop. Expect exactly 3 segments with sequences 0, 1, 2, handed to the
// uploader in creation order.
func TestSessionSegmentsCaptureByInterval(t *testing.T) {
	p := newTestPipeline(t, Config{Interval: 5 * time.Second})

	if err := p.session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	p.stream.capture("segment zero")
	p.ticker.tick()
	seg0 := p.uploader.waitSegment(t)

	p.stream.capture("segment one")
	p.ticker.tick()
	seg1 := p.uploader.waitSegment(t)

	// The final partial segment is flushed by Stop.
	p.stream.capture("segment two")
	p.session.Stop()
	seg2 := p.uploader.waitSegment(t)

	for i, seg := range []Segment{seg0, seg1, seg2} {
		if seg.Sequence != i {
			t.Errorf("segment %d sequence = %d, want %d", i, seg.Sequence, i)
		}
		if seg.RoomID != "room-1" {
			t.Errorf("segment %d room = %q, want %q", i, seg.RoomID, "room-1")
		}
		if seg.MediaType != "audio/webm" {
			t.Errorf("segment %d media type = %q, want %q", i, seg.MediaType, "audio/webm")
		}
		if seg.SessionID != p.session.ID() {
			t.Errorf("segment %d session = %q, want %q", i, seg.SessionID, p.session.ID())
		}
	}
	if string(seg0.Data) != "segment zero" {
		t.Errorf("segment 0 data = %q, want %q", seg0.Data, "segment zero")
	}
	if string(seg2.Data) != "segment two" {
		t.Errorf("segment 2 data = %q, want %q", seg2.Data, "segment two")
	}

	if got := p.session.State(); got != StateStopped {
		t.Errorf("state after Stop = %s, want %s", got, StateStopped)
	}
	if !p.stream.isClosed() {
		t.Error("capture stream should be released on Stop")
	}
	p.uploader.assertNoSegment(t)
}

func TestSessionDiscardsZeroLengthSegments(t *testing.T) {
	p := newTestPipeline(t, Config{})

	if err := p.session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Two intervals with no captured bytes: nothing reaches the uploader
	// and no sequence index is consumed.
	p.ticker.tick()
	p.ticker.tick()
	p.uploader.assertNoSegment(t)

	p.stream.capture("audible at last")
	p.ticker.tick()
	seg := p.uploader.waitSegment(t)
	if seg.Sequence != 0 {
		t.Errorf("first real segment sequence = %d, want 0", seg.Sequence)
	}

	p.stream.capture("and the finale")
	p.session.Stop()
	final := p.uploader.waitSegment(t)
	if final.Sequence != 1 {
		t.Errorf("final segment sequence = %d, want 1 (gapless)", final.Sequence)
	}
}

func TestSessionStopWithEmptyBufferUploadsNothing(t *testing.T) {
	p := newTestPipeline(t, Config{})

	if err := p.session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	p.session.Stop()
	p.uploader.assertNoSegment(t)
	if got := p.session.State(); got != StateStopped {
		t.Errorf("state = %s, want %s", got, StateStopped)
	}
}

func TestSessionStopIsIdempotent(t *testing.T) {
	p := newTestPipeline(t, Config{})

	if err := p.session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	p.session.Stop()
	p.session.Stop() // must be a no-op, not a panic or deadlock

	if got := p.session.State(); got != StateStopped {
		t.Errorf("state = %s, want %s", got, StateStopped)
	}
}

func TestSessionStopBeforeStartIsNoOp(t *testing.T) {
	p := newTestPipeline(t, Config{})

	p.session.Stop()
	if got := p.session.State(); got != StateIdle {
		t.Errorf("state = %s, want %s", got, StateIdle)
	}
}

func TestSessionStartTwiceFails(t *testing.T) {
	p := newTestPipeline(t, Config{})

	if err := p.session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.session.Stop()

	if err := p.session.Start(context.Background()); err == nil {
		t.Error("second Start should fail while recording")
	}
}

func TestSessionStartAcquisitionErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"device unavailable", ErrDeviceUnavailable},
		{"permission denied", ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := NewSession(Config{
				RoomID:   "room-1",
				Source:   &fakeSource{openErr: tt.err},
				Uploader: newFakeUploader(),
				Logger:   log.New(io.Discard, "", 0),
			})
			if err != nil {
				t.Fatalf("NewSession failed: %v", err)
			}

			err = session.Start(context.Background())
			if err == nil {
				t.Fatal("Start should fail when acquisition fails")
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("Start error = %v, want %v", err, tt.err)
			}
			if got := session.State(); got != StateIdle {
				t.Errorf("state after failed Start = %s, want %s", got, StateIdle)
			}
		})
	}
}

// A failed upload for segment n must not block creation or upload of
// segment n+1.
func TestSessionUploadFailureDoesNotStopPipeline(t *testing.T) {
	var (
		mu         sync.Mutex
		failedSeqs []int
	)
	p := newTestPipeline(t, Config{
		OnUploadError: func(sequence int, err error) {
			mu.Lock()
			failedSeqs = append(failedSeqs, sequence)
			mu.Unlock()
		},
	})
	p.uploader.failFor[0] = errors.New("upstream exploded")

	if err := p.session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	p.stream.capture("doomed")
	p.ticker.tick()
	p.uploader.waitSegment(t)

	p.stream.capture("fine")
	p.ticker.tick()
	seg1 := p.uploader.waitSegment(t)
	if seg1.Sequence != 1 {
		t.Errorf("second segment sequence = %d, want 1", seg1.Sequence)
	}

	p.stream.capture("also fine")
	p.session.Stop()
	seg2 := p.uploader.waitSegment(t)
	if seg2.Sequence != 2 {
		t.Errorf("third segment sequence = %d, want 2", seg2.Sequence)
	}

	p.session.WaitUploads()
	mu.Lock()
	defer mu.Unlock()
	if len(failedSeqs) != 1 || failedSeqs[0] != 0 {
		t.Errorf("failed sequences = %v, want [0]", failedSeqs)
	}
}

func TestSessionResultsDeliveredToCallback(t *testing.T) {
	results := make(chan TranscriptionResult, 4)
	p := newTestPipeline(t, Config{
		OnResult: func(res TranscriptionResult) { results <- res },
	})

	if err := p.session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	p.stream.capture("hello")
	p.session.Stop()
	p.uploader.waitSegment(t)
	p.session.WaitUploads()

	select {
	case res := <-results:
		if res.Sequence != 0 || res.Text != "ok" {
			t.Errorf("result = %+v, want sequence 0 with text %q", res, "ok")
		}
	default:
		t.Error("no transcription result delivered")
	}
}

func TestSessionStopsWhenSourceEnds(t *testing.T) {
	p := newTestPipeline(t, Config{})

	if err := p.session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	p.stream.capture("tail bytes")
	close(p.stream.ch)

	select {
	case <-p.session.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after the source ended")
	}

	seg := p.uploader.waitSegment(t)
	if string(seg.Data) != "tail bytes" {
		t.Errorf("final segment data = %q, want %q", seg.Data, "tail bytes")
	}
	if got := p.session.State(); got != StateStopped {
		t.Errorf("state = %s, want %s", got, StateStopped)
	}
}

func TestNewSessionValidation(t *testing.T) {
	uploader := newFakeUploader()
	source := &fakeSource{stream: newFakeStream()}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing room", Config{Source: source, Uploader: uploader}},
		{"missing source", Config{RoomID: "r", Uploader: uploader}},
		{"missing uploader", Config{RoomID: "r", Source: source}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSession(tt.cfg); err == nil {
				t.Error("NewSession should fail")
			}
		})
	}
}

func TestNewSessionDefaults(t *testing.T) {
	session, err := NewSession(Config{
		RoomID:   "r",
		Source:   &fakeSource{stream: newFakeStream()},
		Uploader: newFakeUploader(),
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	if session.cfg.Interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", session.cfg.Interval, DefaultInterval)
	}
	if session.cfg.Constraints != DefaultConstraints() {
		t.Errorf("constraints = %+v, want defaults", session.cfg.Constraints)
	}
	if session.ID() == "" {
		t.Error("session ID should not be empty")
	}
	if got := session.State(); got != StateIdle {
		t.Errorf("initial state = %s, want %s", got, StateIdle)
	}
}
