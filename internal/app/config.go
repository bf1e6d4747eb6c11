package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr      string
	PublicBaseURL string
	DatabaseURL   string
	LogLevel      string
	SentryDSN     string

	// Gemini
	GeminiAPIKey      string
	GeminiModel       string
	TranscribeTimeout time.Duration
	AnswerTimeout     time.Duration

	// HTTP API
	AllowedOrigin      string
	AudioBitsPerSecond int
	MaxUploadBytes     int64

	// Notifications
	DiscordWebhookURL string

	// Event retention
	RetentionInterval time.Duration
	RetentionMaxAge   time.Duration
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		SentryDSN:     getenv("SENTRY_DSN", ""),

		// Gemini
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"), // required, no fallback
		GeminiModel:       getenv("GEMINI_MODEL", "gemini-2.5-flash"),
		TranscribeTimeout: getenvDuration("TRANSCRIBE_TIMEOUT", 30*time.Second),
		AnswerTimeout:     getenvDuration("ANSWER_TIMEOUT", 30*time.Second),

		// HTTP API
		AllowedOrigin:      getenv("ALLOWED_ORIGIN", "*"),
		AudioBitsPerSecond: getenvIntClamped("AUDIO_BITS_PER_SECOND", 64000, 8000, 512000),
		MaxUploadBytes:     int64(getenvIntClamped("MAX_UPLOAD_BYTES", 10<<20, 1<<20, 100<<20)),

		// Notifications
		DiscordWebhookURL: getenv("DISCORD_WEBHOOK_URL", ""),

		// Event retention
		RetentionInterval: getenvDuration("RETENTION_INTERVAL", time.Hour),
		RetentionMaxAge:   getenvDuration("RETENTION_MAX_AGE", 30*24*time.Hour),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getenvIntClamped(k string, def, min, max int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
