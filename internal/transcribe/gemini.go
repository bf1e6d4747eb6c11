package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models"

// transcriptionPrompt is the fixed instruction sent with every segment.
const transcriptionPrompt = "Transcreva o áudio para texto. Seja preciso e natural na transcrição, " +
	"mantenha o idioma original da fala e a pontuação adequada. " +
	"Responda apenas com o texto transcrito, sem comentários. " +
	"Se o áudio estiver inaudível, responda com texto vazio."

// GeminiClient implements the Transcriber interface using Gemini's
// generateContent API with inline audio data.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey     string
	Model      string        // e.g., "gemini-2.5-flash"
	BaseURL    string        // Override for tests; defaults to the public API
	Timeout    time.Duration // Per-call deadline; defaults to 60s
	HTTPClient *http.Client  // Optional shared client with connection pooling
}

// NewGeminiClient creates a new Gemini transcription client.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiAPIURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &GeminiClient{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

// generateRequest represents a Gemini generateContent request.
type generateRequest struct {
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Contents          []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// generateResponse represents a Gemini generateContent response.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Transcribe sends the audio segment to Gemini and returns the transcript.
// An empty upstream result is mapped to NoTranscriptionMessage.
func (c *GeminiClient) Transcribe(ctx context.Context, base64Audio, mediaType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := generateRequest{
		SystemInstruction: &content{
			Parts: []part{{Text: transcriptionPrompt}},
		},
		Contents: []content{{
			Role: "user",
			Parts: []part{{
				InlineData: &inlineData{MimeType: mediaType, Data: base64Audio},
			}},
		}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("gemini call exceeded %v: %w", c.timeout, ErrTimeout)
		}
		return "", fmt.Errorf("gemini request failed: %v: %w", err, ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("gemini API error: %s - %s: %w", resp.Status, string(respBody), ErrUpstreamUnavailable)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %v: %w", err, ErrUpstreamUnavailable)
	}

	var sb strings.Builder
	for _, cand := range genResp.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		break // only the first candidate
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return NoTranscriptionMessage, nil
	}
	return text, nil
}
