package recording

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// NetworkError wraps a transport-level upload failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError reports a non-200 response from the ingestion endpoint.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: status %d: %s", e.Status, e.Body)
}

// HTTPUploader sends finalized segments to the ingestion endpoint as
// multipart uploads. There is no retry policy: a failed segment is surfaced
// to the caller and the pipeline continues with subsequent segments, so a
// transcript is best-effort under network failure.
type HTTPUploader struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPUploader creates an uploader targeting the given server base URL.
func NewHTTPUploader(baseURL string, httpClient *http.Client) *HTTPUploader {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPUploader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// uploadResponse mirrors the ingestion endpoint's response body.
type uploadResponse struct {
	TranscriptionAudio string `json:"transcriptionAudio"`
}

// Send transmits one segment and returns the parsed transcription result.
func (u *HTTPUploader) Send(ctx context.Context, seg Segment) (TranscriptionResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="segment-%d"`, seg.Sequence))
	header.Set("Content-Type", seg.MediaType)

	fw, err := mw.CreatePart(header)
	if err != nil {
		return TranscriptionResult{}, fmt.Errorf("create multipart payload: %w", err)
	}
	if _, err := fw.Write(seg.Data); err != nil {
		return TranscriptionResult{}, fmt.Errorf("write multipart payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return TranscriptionResult{}, fmt.Errorf("close multipart payload: %w", err)
	}

	url := fmt.Sprintf("%s/rooms/%s/audio", u.baseURL, seg.RoomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return TranscriptionResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return TranscriptionResult{}, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return TranscriptionResult{}, &ServerError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return TranscriptionResult{}, fmt.Errorf("decode response: %w", err)
	}

	return TranscriptionResult{Text: parsed.TranscriptionAudio, Sequence: seg.Sequence}, nil
}
