package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a recording session.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the collaborators and settings of a recording session.
type Config struct {
	RoomID      string
	Interval    time.Duration // segment length; defaults to DefaultInterval
	Constraints Constraints   // zero value means DefaultConstraints
	Source      CaptureSource
	Uploader    Uploader
	Logger      *log.Logger

	// OnResult is called with the transcript of each successfully uploaded
	// segment. Optional. Called from the upload goroutine.
	OnResult func(TranscriptionResult)

	// OnUploadError is called when a segment upload fails. The failure is
	// local to that segment; recording continues. Optional.
	OnUploadError func(sequence int, err error)
}

// Session is a single-use recording session for one room. It owns the
// capture source handle and the cutover timer for its lifetime, and runs a
// single event loop goroutine so a timer cutover and a Stop can never
// interleave mid-segment.
//
// Segments are handed to the uploader exactly once, in increasing sequence
// order of creation. Upload completion order is not guaranteed.
type Session struct {
	cfg Config
	id  string

	mu    sync.Mutex
	state State

	stopCh  chan struct{}
	doneCh  chan struct{}
	uploads sync.WaitGroup

	newTicker func(time.Duration) segmentTicker
}

// NewSession creates an idle session for the given room.
func NewSession(cfg Config) (*Session, error) {
	if cfg.RoomID == "" {
		return nil, errors.New("recording: room ID is required")
	}
	if cfg.Source == nil {
		return nil, errors.New("recording: capture source is required")
	}
	if cfg.Uploader == nil {
		return nil, errors.New("recording: uploader is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Constraints == (Constraints{}) {
		cfg.Constraints = DefaultConstraints()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Session{
		cfg:    cfg,
		id:     uuid.NewString(),
		state:  StateIdle,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		newTicker: func(d time.Duration) segmentTicker {
			return realTicker{time.NewTicker(d)}
		},
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session's event loop has exited.
func (s *Session) Done() <-chan struct{} { return s.doneCh }

// Start acquires the capture source, opens segment 0 and arms the cutover
// timer. Valid only from the idle state. Acquisition errors
// (ErrDeviceUnavailable, ErrPermissionDenied) leave the session idle and are
// surfaced to the caller, never retried.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("recording: cannot start from state %s", state)
	}
	s.state = StateRecording
	s.mu.Unlock()

	stream, err := s.cfg.Source.Open(ctx, s.cfg.Constraints)
	if err != nil {
		s.mu.Lock()
		select {
		case <-s.stopCh:
			// Stop raced with a failed acquisition; the loop will never run.
			s.state = StateStopped
			close(s.doneCh)
		default:
			s.state = StateIdle
		}
		s.mu.Unlock()
		return fmt.Errorf("recording: acquire capture source: %w", err)
	}

	tk := s.newTicker(s.cfg.Interval)
	go s.run(ctx, stream, tk)
	return nil
}

// Stop disarms the timer, finalizes and emits the in-flight segment,
// releases the capture source and transitions to Stopped. Idempotent:
// stopping a session that is not recording is a no-op. In-flight uploads
// are not cancelled.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
}

// WaitUploads blocks until every upload handed off so far has completed.
func (s *Session) WaitUploads() {
	s.uploads.Wait()
}

func (s *Session) run(ctx context.Context, stream CaptureStream, tk segmentTicker) {
	var buf bytes.Buffer
	openedAt := time.Now()
	seq := 0

	finish := func() {
		tk.Stop()
		s.emit(&buf, &seq, openedAt)
		if err := stream.Close(); err != nil {
			s.cfg.Logger.Printf("recording: close capture stream: %v", err)
		}
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		close(s.doneCh)
	}

	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				// The source ended on its own; treat it like a stop.
				finish()
				return
			}
			buf.Write(chunk)
		case <-tk.C():
			// Cutover: finalize the current segment and open the next one
			// on the same continuous stream.
			s.emit(&buf, &seq, openedAt)
			openedAt = time.Now()
		case <-s.stopCh:
			finish()
			return
		case <-ctx.Done():
			finish()
			return
		}
	}
}

// emit finalizes the buffered segment and hands it to the uploader on its
// own goroutine. A zero-length segment carries no signal: it is discarded
// silently and does not consume a sequence index.
func (s *Session) emit(buf *bytes.Buffer, seq *int, openedAt time.Time) {
	if buf.Len() == 0 {
		return
	}
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	buf.Reset()

	seg := Segment{
		RoomID:     s.cfg.RoomID,
		SessionID:  s.id,
		Sequence:   *seq,
		Data:       data,
		MediaType:  s.cfg.Constraints.MimeType,
		CapturedAt: openedAt,
	}
	*seq++

	// Fire-and-forget relative to the capture loop: a slow or failed upload
	// never delays the next cutover, and Stop does not cancel it.
	s.uploads.Add(1)
	go func() {
		defer s.uploads.Done()
		res, err := s.cfg.Uploader.Send(context.Background(), seg)
		if err != nil {
			s.cfg.Logger.Printf("recording: upload of segment %d failed: %v", seg.Sequence, err)
			if s.cfg.OnUploadError != nil {
				s.cfg.OnUploadError(seg.Sequence, err)
			}
			return
		}
		if s.cfg.OnResult != nil {
			s.cfg.OnResult(res)
		}
	}()
}

// segmentTicker abstracts time.Ticker so tests can drive cutovers
// deterministically.
type segmentTicker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }
