package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType represents the type of room event
type EventType string

const (
	EventRoomCreated         EventType = "room_created"
	EventSegmentReceived     EventType = "segment_received"
	EventSegmentTranscribed  EventType = "segment_transcribed"
	EventTranscriptionEmpty  EventType = "transcription_empty"
	EventTranscriptionFailed EventType = "transcription_failed"
	EventQuestionCreated     EventType = "question_created"
	EventQuestionAnswered    EventType = "question_answered"
	EventAnswerFailed        EventType = "answer_failed"
)

// Logger provides async event logging to the database
type Logger struct {
	db *pgxpool.Pool
}

// New creates a new event logger
func New(db *pgxpool.Pool) *Logger {
	return &Logger{db: db}
}

// Log writes an event to the database synchronously
func (l *Logger) Log(ctx context.Context, roomID string, eventType EventType, data map[string]any) error {
	if l.db == nil || roomID == "" {
		return nil // Silently skip if no DB or room ID
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		dataJSON = []byte("{}")
	}

	_, err = l.db.Exec(ctx, `
		INSERT INTO room_events (room_id, event_type, event_data)
		VALUES ($1, $2, $3)
	`, roomID, string(eventType), dataJSON)

	return err
}

// LogAsync logs an event without blocking the caller
func (l *Logger) LogAsync(roomID string, eventType EventType, data map[string]any) {
	if l.db == nil || roomID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Log(ctx, roomID, eventType, data)
	}()
}
