package transcribe

import (
	"context"
	"errors"
)

// NoTranscriptionMessage is returned in place of an empty upstream result so
// callers never have to disambiguate "inaudible" from a transport failure.
const NoTranscriptionMessage = "Não foi possível transcrever o áudio"

// ErrUpstreamUnavailable indicates the transcription service is unreachable
// or returned an error. Not retried; callers surface it as a 5xx.
var ErrUpstreamUnavailable = errors.New("transcription upstream unavailable")

// ErrTimeout indicates the transcription call exceeded its deadline.
var ErrTimeout = errors.New("transcription timed out")

// Transcriber converts one audio segment into plain text.
type Transcriber interface {
	// Transcribe sends base64-encoded audio with its media type and returns
	// the transcript. An inaudible segment yields NoTranscriptionMessage.
	Transcribe(ctx context.Context, base64Audio, mediaType string) (string, error)
}
