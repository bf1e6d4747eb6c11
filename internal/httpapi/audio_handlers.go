package httpapi

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/lucasviana/agentroom/internal/costs"
	"github.com/lucasviana/agentroom/internal/eventlog"
	"github.com/lucasviana/agentroom/internal/transcribe"
)

type uploadAudioResponse struct {
	TranscriptionAudio string `json:"transcriptionAudio"`
}

// handleUploadAudio ingests one audio segment: it extracts the file part,
// base64-encodes the bytes and forwards them to the transcription adapter.
// The response is held open for the duration of the transcription call.
func (r *Router) handleUploadAudio(w http.ResponseWriter, req *http.Request) {
	roomID := req.PathValue("roomId")
	if roomID == "" {
		http.Error(w, `{"error": "room id is required"}`, http.StatusBadRequest)
		return
	}

	if !r.inflight.Add() {
		http.Error(w, `{"error": "server is shutting down"}`, http.StatusServiceUnavailable)
		return
	}
	defer r.inflight.Done()

	req.Body = http.MaxBytesReader(w, req.Body, r.cfg.MaxUploadBytes)

	file, header, err := req.FormFile("file")
	if err != nil {
		http.Error(w, `{"error": "audio file is required"}`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		captureError(req, err, "read audio upload failed")
		http.Error(w, `{"error": "failed to read audio"}`, http.StatusInternalServerError)
		return
	}
	if len(data) == 0 {
		http.Error(w, `{"error": "audio file is empty"}`, http.StatusBadRequest)
		return
	}

	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	audioSeconds := costs.EstimateAudioSeconds(len(data), r.cfg.AudioBitsPerSecond)
	r.eventLog.LogAsync(roomID, eventlog.EventSegmentReceived, map[string]any{
		"bytes":      len(data),
		"media_type": mediaType,
	})

	encoded := base64.StdEncoding.EncodeToString(data)
	text, err := r.transcriber.Transcribe(req.Context(), encoded, mediaType)
	if err != nil {
		captureError(req, err, "transcription failed")
		r.logger.Printf("httpapi: transcription for room %s failed: %v", roomID, err)
		r.discord.NotifyTranscriptionFailure(req.Context(), roomID, err)
		r.eventLog.LogAsync(roomID, eventlog.EventTranscriptionFailed, map[string]any{
			"error": err.Error(),
		})

		if errors.Is(err, transcribe.ErrTimeout) {
			http.Error(w, `{"error": "transcription timed out"}`, http.StatusGatewayTimeout)
			return
		}
		http.Error(w, `{"error": "transcription unavailable"}`, http.StatusBadGateway)
		return
	}

	// Persistence and fan-out are best-effort; the transcript is returned to
	// the uploader either way.
	if _, err := r.store.InsertTranscription(req.Context(), roomID, text); err != nil {
		captureError(req, err, "persist transcription failed")
		r.logger.Printf("httpapi: persist transcription for room %s failed: %v", roomID, err)
	}
	r.feeds.Broadcast(TranscriptEvent{
		RoomID:    roomID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})

	usage := costs.CalculateUsageCosts(costs.UsageMetrics{AudioSeconds: audioSeconds})
	event := eventlog.EventSegmentTranscribed
	if text == transcribe.NoTranscriptionMessage {
		event = eventlog.EventTranscriptionEmpty
	}
	r.eventLog.LogAsync(roomID, event, map[string]any{
		"bytes":         len(data),
		"audio_seconds": audioSeconds,
		"cost_cents":    usage.TotalCostCents,
	})

	writeJSON(w, http.StatusOK, uploadAudioResponse{TranscriptionAudio: text})
}
