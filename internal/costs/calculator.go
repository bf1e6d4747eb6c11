// Package costs provides cost estimation for API usage.
package costs

import (
	"os"
	"strconv"
)

// Pricing constants (in cents per unit for precision).
// These are based on 2026 market rates and can be overridden via environment variables.
var (
	// GeminiAudioCentsPerMinute is the cost per minute of audio sent to
	// Gemini for transcription.
	// Default: $0.002/min = 0.2 cents/min
	GeminiAudioCentsPerMinute = getEnvFloat("COST_GEMINI_AUDIO_CENTS_PER_MIN", 0.2)

	// GeminiCentsPerThousandInputTokens is the cost per 1K input tokens for
	// answer generation.
	// Default: $0.30/1M = 0.03 cents/1K tokens
	GeminiCentsPerThousandInputTokens = getEnvFloat("COST_GEMINI_INPUT_CENTS_PER_1K", 0.03)

	// GeminiCentsPerThousandOutputTokens is the cost per 1K output tokens for
	// answer generation.
	// Default: $2.50/1M = 0.25 cents/1K tokens
	GeminiCentsPerThousandOutputTokens = getEnvFloat("COST_GEMINI_OUTPUT_CENTS_PER_1K", 0.25)
)

// UsageMetrics contains the raw metrics from room activity used for cost estimation.
type UsageMetrics struct {
	AudioSeconds    float64 // Audio duration sent for transcription
	LLMInputTokens  int     // Tokens sent for answer generation
	LLMOutputTokens int     // Tokens received from answer generation
}

// UsageCosts contains the estimated costs for room activity in cents.
type UsageCosts struct {
	TranscriptionCostCents int
	AnswerCostCents        int
	TotalCostCents         int
}

// CalculateUsageCosts computes the estimated costs for room activity.
func CalculateUsageCosts(m UsageMetrics) UsageCosts {
	audioMinutes := m.AudioSeconds / 60.0
	transcriptionCents := audioMinutes * GeminiAudioCentsPerMinute

	// Answer costs: per 1K tokens
	inputCents := (float64(m.LLMInputTokens) / 1000.0) * GeminiCentsPerThousandInputTokens
	outputCents := (float64(m.LLMOutputTokens) / 1000.0) * GeminiCentsPerThousandOutputTokens

	costs := UsageCosts{
		TranscriptionCostCents: roundToInt(transcriptionCents),
		AnswerCostCents:        roundToInt(inputCents + outputCents),
	}
	costs.TotalCostCents = costs.TranscriptionCostCents + costs.AnswerCostCents

	return costs
}

// EstimateAudioSeconds derives an audio duration from a payload size and the
// recorder's fixed bitrate (bits per second).
func EstimateAudioSeconds(payloadBytes int, bitsPerSecond int) float64 {
	if bitsPerSecond <= 0 {
		return 0
	}
	return float64(payloadBytes*8) / float64(bitsPerSecond)
}

// roundToInt rounds a float to the nearest integer.
func roundToInt(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

// getEnvFloat returns an environment variable as float64, or the default if not set.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
