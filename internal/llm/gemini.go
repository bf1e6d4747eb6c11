package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiClient implements the Client interface using Gemini's
// generateContent API.
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
	Timeout    time.Duration // Per-call deadline; defaults to 30s
	HTTPClient *http.Client  // Optional shared client with connection pooling
}

// NewGeminiClient creates a new Gemini answer generation client.
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
		timeout = 30 * time.Second
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
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
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

// GenerateAnswer answers the question from the accumulated transcript context.
func (c *GeminiClient) GenerateAnswer(ctx context.Context, question string, transcripts []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	transcriptContext := strings.Join(transcripts, "\n\n")
	prompt := fmt.Sprintf(AnswerPromptTemplate, transcriptContext, question)

	req := generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: prompt}},
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

	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", fmt.Errorf("gemini returned no answer: %w", ErrUpstreamUnavailable)
	}
	return answer, nil
}
