package httpapi

import (
	"sync"
	"sync/atomic"
)

// TranscriptionRegistry tracks in-flight transcription requests and supports
// graceful draining. When draining is enabled, new segment uploads are
// rejected while in-flight transcriptions finish naturally, so a deploy
// never cuts a held-open ingestion response short.
//
// The mu mutex makes the draining check and wg.Add atomic in Add(),
// preventing a TOCTOU race where StartDraining+Wait could be called between
// the draining check and wg.Add.
type TranscriptionRegistry struct {
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
	count    atomic.Int64
}

// NewTranscriptionRegistry creates a new TranscriptionRegistry.
func NewTranscriptionRegistry() *TranscriptionRegistry {
	return &TranscriptionRegistry{}
}

// Add registers a new in-flight transcription. Returns false if the registry
// is draining, meaning no new uploads should be accepted. The draining check
// and WaitGroup increment are performed atomically under a mutex.
func (tr *TranscriptionRegistry) Add() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.draining {
		return false
	}
	tr.wg.Add(1)
	tr.count.Add(1)
	return true
}

// Done marks a transcription as completed. Must be called exactly once per
// successful Add.
func (tr *TranscriptionRegistry) Done() {
	tr.count.Add(-1)
	tr.wg.Done()
}

// StartDraining sets the draining flag so that future Add calls return
// false. Safe to call concurrently with Add.
func (tr *TranscriptionRegistry) StartDraining() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.draining = true
}

// IsDraining reports whether the registry is in draining mode.
func (tr *TranscriptionRegistry) IsDraining() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.draining
}

// ActiveCount returns the number of currently in-flight transcriptions.
func (tr *TranscriptionRegistry) ActiveCount() int64 {
	return tr.count.Load()
}

// Wait blocks until all in-flight transcriptions have completed.
func (tr *TranscriptionRegistry) Wait() {
	tr.wg.Wait()
}
