package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps database access for rooms, questions and transcriptions.
//
// Expected schema (migrations are applied externally):
//
//	rooms(id uuid pk default gen_random_uuid(), name text, description text,
//	      created_at timestamptz default now())
//	questions(id uuid pk default gen_random_uuid(), room_id uuid references rooms,
//	      question text, answer text, created_at timestamptz default now())
//	audio_transcriptions(id uuid pk default gen_random_uuid(), room_id uuid references rooms,
//	      transcription text, created_at timestamptz default now())
//	room_events(id bigserial pk, room_id uuid, event_type text,
//	      event_data jsonb, created_at timestamptz default now())
type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Room is a recording/question session scope.
type Room struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RoomSummary is a room with its question count, for listings.
type RoomSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	QuestionCount int       `json:"questionsCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Question is a user question and its generated answer.
// Answer is nil when no answer could be generated.
type Question struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Question  string    `json:"question"`
	Answer    *string   `json:"answer"`
	CreatedAt time.Time `json:"createdAt"`
}

// Transcription is one transcribed audio segment of a room.
type Transcription struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"roomId"`
	Transcription string    `json:"transcription"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (s *Store) CreateRoom(ctx context.Context, name, description string) (Room, error) {
	var r Room
	err := s.db.QueryRow(ctx, `
		INSERT INTO rooms (name, description)
		VALUES ($1, $2)
		RETURNING id, name, description, created_at
	`, name, description).Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt)
	return r, err
}

func (s *Store) GetRoom(ctx context.Context, id string) (Room, error) {
	var r Room
	err := s.db.QueryRow(ctx, `
		SELECT id, name, description, created_at FROM rooms WHERE id = $1
	`, id).Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt)
	return r, err
}

// ListRooms returns rooms ordered by recency with their question counts.
func (s *Store) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.name, COUNT(q.id), r.created_at
		FROM rooms r
		LEFT JOIN questions q ON q.room_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []RoomSummary{}
	for rows.Next() {
		var rs RoomSummary
		if err := rows.Scan(&rs.ID, &rs.Name, &rs.QuestionCount, &rs.CreatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, rs)
	}
	return summaries, rows.Err()
}

func (s *Store) CreateQuestion(ctx context.Context, roomID, question string, answer *string) (Question, error) {
	q := Question{RoomID: roomID, Question: question, Answer: answer}
	err := s.db.QueryRow(ctx, `
		INSERT INTO questions (room_id, question, answer)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, roomID, question, answer).Scan(&q.ID, &q.CreatedAt)
	return q, err
}

func (s *Store) ListQuestions(ctx context.Context, roomID string) ([]Question, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, room_id, question, answer, created_at
		FROM questions
		WHERE room_id = $1
		ORDER BY created_at DESC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []Question{}
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.RoomID, &q.Question, &q.Answer, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Store) InsertTranscription(ctx context.Context, roomID, text string) (Transcription, error) {
	t := Transcription{RoomID: roomID, Transcription: text}
	err := s.db.QueryRow(ctx, `
		INSERT INTO audio_transcriptions (room_id, transcription)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, roomID, text).Scan(&t.ID, &t.CreatedAt)
	return t, err
}

// ListTranscriptions returns a room's transcript fragments in capture order,
// capped at limit (0 means no cap).
func (s *Store) ListTranscriptions(ctx context.Context, roomID string, limit int) ([]Transcription, error) {
	query := `
		SELECT id, room_id, transcription, created_at
		FROM audio_transcriptions
		WHERE room_id = $1
		ORDER BY created_at ASC
	`
	args := []any{roomID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transcriptions := []Transcription{}
	for rows.Next() {
		var t Transcription
		if err := rows.Scan(&t.ID, &t.RoomID, &t.Transcription, &t.CreatedAt); err != nil {
			return nil, err
		}
		transcriptions = append(transcriptions, t)
	}
	return transcriptions, rows.Err()
}

// DeleteEventsBefore prunes room events older than the cutoff.
// Used by the retention job.
func (s *Store) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM room_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
