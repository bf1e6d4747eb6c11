// Package recording implements the client side of the audio pipeline: a
// timed state machine that slices a continuous capture stream into
// bounded-duration segments and hands each one to an independent uploader.
package recording

import (
	"context"
	"errors"
	"time"
)

// DefaultInterval is the segment length used when none is configured.
const DefaultInterval = 5 * time.Second

var (
	// ErrDeviceUnavailable indicates the platform exposes no usable audio
	// capture device. Fatal to starting a session, never retried.
	ErrDeviceUnavailable = errors.New("audio capture device unavailable")

	// ErrPermissionDenied indicates microphone access was refused. Fatal to
	// starting a session, never retried.
	ErrPermissionDenied = errors.New("microphone permission denied")
)

// Constraints mirror the capture settings of the browser client: echo
// cancellation, noise suppression, 44.1 kHz sampling and a 64 kbit/s
// compressed container.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	SampleRate       int
	BitsPerSecond    int
	MimeType         string
}

// DefaultConstraints returns the capture settings the product records with.
func DefaultConstraints() Constraints {
	return Constraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		SampleRate:       44100,
		BitsPerSecond:    64000,
		MimeType:         "audio/webm",
	}
}

// Segment is one bounded-duration slice of a capture, immutable once
// finalized. It is owned by the uploader until transmitted, then discarded.
type Segment struct {
	RoomID     string
	SessionID  string
	Sequence   int
	Data       []byte
	MediaType  string
	CapturedAt time.Time
}

// TranscriptionResult is the transcript returned for one uploaded segment.
type TranscriptionResult struct {
	Text     string
	Sequence int
}

// CaptureSource acquires a continuous audio stream.
type CaptureSource interface {
	// Open acquires the device and starts capturing. Returns
	// ErrDeviceUnavailable or ErrPermissionDenied when acquisition fails.
	Open(ctx context.Context, c Constraints) (CaptureStream, error)
}

// CaptureStream is a continuous stream of captured audio chunks. The chunk
// channel is closed when the source ends on its own.
type CaptureStream interface {
	Chunks() <-chan []byte
	Close() error
}

// Uploader transmits one finalized segment to the ingestion endpoint.
// Uploads of distinct segments are mutually independent.
type Uploader interface {
	Send(ctx context.Context, seg Segment) (TranscriptionResult, error)
}
