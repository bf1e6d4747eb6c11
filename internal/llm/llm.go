package llm

import (
	"context"
	"errors"
)

// ErrUpstreamUnavailable indicates the generation service is unreachable or
// returned an error.
var ErrUpstreamUnavailable = errors.New("answer upstream unavailable")

// Client defines the interface for answer generation providers.
type Client interface {
	// GenerateAnswer answers a question using the room's accumulated
	// transcript fragments as the only allowed context.
	GenerateAnswer(ctx context.Context, question string, transcripts []string) (string, error)
}
