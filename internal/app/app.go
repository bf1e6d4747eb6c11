package app

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lucasviana/agentroom/internal/eventlog"
	"github.com/lucasviana/agentroom/internal/httpapi"
	"github.com/lucasviana/agentroom/internal/jobs"
	"github.com/lucasviana/agentroom/internal/llm"
	"github.com/lucasviana/agentroom/internal/store"
	"github.com/lucasviana/agentroom/internal/transcribe"
)

type App struct {
	cfg        Config
	logger     *log.Logger
	db         *pgxpool.Pool
	store      *store.Store
	eventLog   *eventlog.Logger
	httpClient *http.Client // Shared HTTP client with connection pooling for Gemini
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := store.New(db)
	el := eventlog.New(db)

	// Migrations are applied externally by the deploy job.
	// No automatic migration runner at startup.

	// Shared HTTP client with connection pooling. Keeps TCP connections
	// alive to reduce latency for repeated Gemini calls.
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10, // Gemini is single host
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		store:      s,
		eventLog:   el,
		httpClient: httpClient,
	}, nil
}

func (a *App) Router(inflight *httpapi.TranscriptionRegistry) http.Handler {
	transcriber := transcribe.NewGeminiClient(transcribe.GeminiConfig{
		APIKey:     a.cfg.GeminiAPIKey,
		Model:      a.cfg.GeminiModel,
		Timeout:    a.cfg.TranscribeTimeout,
		HTTPClient: a.httpClient,
	})
	answerer := llm.NewGeminiClient(llm.GeminiConfig{
		APIKey:     a.cfg.GeminiAPIKey,
		Model:      a.cfg.GeminiModel,
		Timeout:    a.cfg.AnswerTimeout,
		HTTPClient: a.httpClient,
	})

	routerCfg := httpapi.RouterConfig{
		PublicBaseURL:      a.cfg.PublicBaseURL,
		AllowedOrigin:      a.cfg.AllowedOrigin,
		AudioBitsPerSecond: a.cfg.AudioBitsPerSecond,
		MaxUploadBytes:     a.cfg.MaxUploadBytes,
		DiscordWebhookURL:  a.cfg.DiscordWebhookURL,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.store, a.eventLog, transcriber, answerer, inflight)
}

// RetentionJob builds the background job that prunes old room events.
func (a *App) RetentionJob() *jobs.RetentionJob {
	return jobs.NewRetentionJob(a.store, a.logger, a.cfg.RetentionInterval, a.cfg.RetentionMaxAge)
}

func (a *App) Close() error {
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
