package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/lucasviana/agentroom/internal/eventlog"
	"github.com/lucasviana/agentroom/internal/llm"
	"github.com/lucasviana/agentroom/internal/notifications"
	"github.com/lucasviana/agentroom/internal/store"
	"github.com/lucasviana/agentroom/internal/transcribe"
)

// fakeStore is an in-memory Store implementation for handler tests.
type fakeStore struct {
	mu             sync.Mutex
	nextID         int
	rooms          map[string]store.Room
	questions      map[string][]store.Question
	transcriptions map[string][]store.Transcription
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:          map[string]store.Room{},
		questions:      map[string][]store.Question{},
		transcriptions: map[string][]store.Transcription{},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) CreateRoom(_ context.Context, name, description string) (store.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room := store.Room{ID: f.id("room"), Name: name, Description: description}
	f.rooms[room.ID] = room
	return room, nil
}

func (f *fakeStore) GetRoom(_ context.Context, id string) (store.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return store.Room{}, pgx.ErrNoRows
	}
	return room, nil
}

func (f *fakeStore) ListRooms(_ context.Context) ([]store.RoomSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summaries := []store.RoomSummary{}
	for _, room := range f.rooms {
		summaries = append(summaries, store.RoomSummary{
			ID:            room.ID,
			Name:          room.Name,
			QuestionCount: len(f.questions[room.ID]),
		})
	}
	return summaries, nil
}

func (f *fakeStore) CreateQuestion(_ context.Context, roomID, question string, answer *string) (store.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := store.Question{ID: f.id("question"), RoomID: roomID, Question: question, Answer: answer}
	f.questions[roomID] = append(f.questions[roomID], q)
	return q, nil
}

func (f *fakeStore) ListQuestions(_ context.Context, roomID string) ([]store.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Question{}, f.questions[roomID]...), nil
}

func (f *fakeStore) InsertTranscription(_ context.Context, roomID, text string) (store.Transcription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr := store.Transcription{ID: f.id("transcription"), RoomID: roomID, Transcription: text}
	f.transcriptions[roomID] = append(f.transcriptions[roomID], tr)
	return tr, nil
}

func (f *fakeStore) ListTranscriptions(_ context.Context, roomID string, _ int) ([]store.Transcription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Transcription{}, f.transcriptions[roomID]...), nil
}

// fakeTranscriber returns a canned transcript or error.
type fakeTranscriber struct {
	mu           sync.Mutex
	text         string
	err          error
	calls        int
	gotAudio     string
	gotMediaType string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, base64Audio, mediaType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotAudio = base64Audio
	f.gotMediaType = mediaType
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAnswerer returns a canned answer or error.
type fakeAnswerer struct {
	mu             sync.Mutex
	answer         string
	err            error
	calls          int
	gotQuestion    string
	gotTranscripts []string
}

func (f *fakeAnswerer) GenerateAnswer(_ context.Context, question string, transcripts []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotQuestion = question
	f.gotTranscripts = transcripts
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeAnswerer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var (
	_ Store                 = (*fakeStore)(nil)
	_ transcribe.Transcriber = (*fakeTranscriber)(nil)
	_ llm.Client            = (*fakeAnswerer)(nil)
)

func newTestRouter(s Store, tr transcribe.Transcriber, ans llm.Client) *Router {
	logger := log.New(io.Discard, "", 0)
	return &Router{
		cfg:         RouterConfig{AudioBitsPerSecond: 64000, MaxUploadBytes: 10 << 20},
		logger:      logger,
		store:       s,
		eventLog:    eventlog.New(nil),
		transcriber: tr,
		answerer:    ans,
		discord:     notifications.NewDiscord("", logger),
		feeds:       NewFeedRegistry(),
		inflight:    NewTranscriptionRegistry(),
		mux:         http.NewServeMux(),
	}
}

// multipartAudioBody builds a multipart body with a single "file" part.
func multipartAudioBody(data []byte, mediaType string) (*bytes.Buffer, string) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="audio.webm"`)
	header.Set("Content-Type", mediaType)
	fw, _ := mw.CreatePart(header)
	_, _ = fw.Write(data)
	_ = mw.Close()

	return &body, mw.FormDataContentType()
}
