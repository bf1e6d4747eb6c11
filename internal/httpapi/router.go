package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lucasviana/agentroom/internal/eventlog"
	"github.com/lucasviana/agentroom/internal/llm"
	"github.com/lucasviana/agentroom/internal/notifications"
	"github.com/lucasviana/agentroom/internal/store"
	"github.com/lucasviana/agentroom/internal/transcribe"
)

type RouterConfig struct {
	PublicBaseURL string

	// CORS origin allowed to reach the API ("*" if empty)
	AllowedOrigin string

	// Recorder bitrate, used to estimate audio duration from payload sizes
	AudioBitsPerSecond int

	// Upload cap for one audio segment
	MaxUploadBytes int64

	// Notifications
	DiscordWebhookURL string
}

// Store is the subset of the database layer the HTTP API uses.
type Store interface {
	CreateRoom(ctx context.Context, name, description string) (store.Room, error)
	GetRoom(ctx context.Context, id string) (store.Room, error)
	ListRooms(ctx context.Context) ([]store.RoomSummary, error)
	CreateQuestion(ctx context.Context, roomID, question string, answer *string) (store.Question, error)
	ListQuestions(ctx context.Context, roomID string) ([]store.Question, error)
	InsertTranscription(ctx context.Context, roomID, text string) (store.Transcription, error)
	ListTranscriptions(ctx context.Context, roomID string, limit int) ([]store.Transcription, error)
}

type Router struct {
	cfg         RouterConfig
	logger      *log.Logger
	store       Store
	eventLog    *eventlog.Logger
	transcriber transcribe.Transcriber
	answerer    llm.Client
	discord     *notifications.Discord
	feeds       *FeedRegistry
	inflight    *TranscriptionRegistry
	mux         *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, s Store, eventLog *eventlog.Logger,
	transcriber transcribe.Transcriber, answerer llm.Client, inflight *TranscriptionRegistry) http.Handler {

	if cfg.AudioBitsPerSecond == 0 {
		cfg.AudioBitsPerSecond = 64000
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 10 << 20
	}

	r := &Router{
		cfg:         cfg,
		logger:      logger,
		store:       s,
		eventLog:    eventLog,
		transcriber: transcriber,
		answerer:    answerer,
		discord:     notifications.NewDiscord(cfg.DiscordWebhookURL, logger),
		feeds:       NewFeedRegistry(),
		inflight:    inflight,
		mux:         http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(cfg.AllowedOrigin, r.mux))
}

func (r *Router) routes() {
	// Health check
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)

	// Rooms and questions
	r.mux.HandleFunc("POST /rooms", r.handleCreateRoom)
	r.mux.HandleFunc("GET /rooms", r.handleListRooms)
	r.mux.HandleFunc("POST /rooms/{roomId}/questions", r.handleCreateQuestion)
	r.mux.HandleFunc("GET /rooms/{roomId}/questions", r.handleListQuestions)

	// Audio ingestion and the live transcript feed
	r.mux.HandleFunc("POST /rooms/{roomId}/audio", r.handleUploadAudio)
	r.mux.HandleFunc("GET /rooms/{roomId}/transcript/live", r.handleTranscriptLive)
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(origin string, next http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
