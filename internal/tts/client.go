// Package tts provides the HTTP client for a PlomTTS server.
//
// The server exposes a health endpoint, a voice listing and a synthesis endpoint
// that answers with MP3 audio. Every failure is reported either as a
// *ConnectionError (the server could not be reached) or as a *ServiceError (the
// server answered, but not with something usable).
package tts

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

	"github.com/book-expert/plomtts-service/internal/core"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/tts"
	apiListVoices     = "/voices"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeMPEG   = "audio/mpeg"
	contentTypeAudio  = "audio/"
)

// DefaultTimeout is the per-call network timeout used when none is configured.
const DefaultTimeout = 30 * time.Second

// Error messages.
const (
	errUnexpectedContentType = "unexpected content type: expected audio, got %q"
	errReceivedEmptyAudio    = "received empty audio data"
	errMalformedVoices       = "malformed voice listing: %v"
	errUnhealthy             = "server reports status %q"
)

// ErrTextEmpty is returned before any request is sent when the text is empty.
var ErrTextEmpty = errors.New("text cannot be empty")

// ErrVoiceEmpty is returned before any request is sent when no voice id is given.
var ErrVoiceEmpty = errors.New("voice id cannot be empty")

// HTTPClient talks to one PlomTTS server. It is safe for concurrent use.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// SpeechRequest defines the JSON payload of a synthesis request.
type SpeechRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
	core.SynthesisParameters
}

// VoiceListResponse is the body returned by the voice listing endpoint.
type VoiceListResponse struct {
	Voices []VoiceResponse `json:"voices"`
}

// VoiceResponse is a single voice in the listing.
type VoiceResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ErrorResponse represents a structured error response from the server.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is the body returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// NewHTTPClient creates a client for the server at baseURL
// (e.g. "http://localhost:8420"). The timeout applies to every request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewFactory returns a core.ClientFactory producing clients with the given timeout.
func NewFactory(timeout time.Duration) core.ClientFactory {
	return func(serverURL string) core.SpeechClient {
		return NewHTTPClient(serverURL, timeout)
	}
}

// BaseURL returns the server address the client was built for.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Health verifies that the server is running. A body is optional; when it is
// present and carries a status other than "ok"/"healthy" the check fails.
func (c *HTTPClient) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, apiHealth, nil, contentTypeJSON)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	var health HealthResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&health)
	if decodeErr != nil {
		// Plain-text or empty "OK" bodies are accepted.
		return nil
	}

	switch strings.ToLower(health.Status) {
	case "", "ok", "healthy":
		return nil
	default:
		return &ServiceError{StatusCode: resp.StatusCode, Detail: fmt.Sprintf(errUnhealthy, health.Status)}
	}
}

// ListVoices returns the voices in the order the server reports them.
func (c *HTTPClient) ListVoices(ctx context.Context) ([]core.Voice, error) {
	resp, err := c.do(ctx, http.MethodGet, apiListVoices, nil, contentTypeJSON)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var listing VoiceListResponse

	err = json.NewDecoder(resp.Body).Decode(&listing)
	if err != nil {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Detail: fmt.Sprintf(errMalformedVoices, err), Err: err}
	}

	voices := make([]core.Voice, 0, len(listing.Voices))
	for _, v := range listing.Voices {
		voices = append(voices, core.Voice{ID: v.ID, Name: v.Name})
	}

	return voices, nil
}

// GenerateSpeech synthesizes text with the given voice and parameters and returns
// the audio bytes exactly as the server sent them.
func (c *HTTPClient) GenerateSpeech(
	ctx context.Context,
	text, voiceID string,
	params core.SynthesisParameters,
) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	if voiceID == "" {
		return nil, ErrVoiceEmpty
	}

	requestBody, err := json.Marshal(SpeechRequest{
		Text:                text,
		VoiceID:             voiceID,
		SynthesisParameters: params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, apiGenerateSpeech, requestBody, contentTypeMPEG)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if !strings.HasPrefix(contentType, contentTypeAudio) {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Detail: fmt.Sprintf(errUnexpectedContentType, contentType)}
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{URL: c.baseURL, Err: fmt.Errorf("failed to read audio data: %w", err)}
	}

	if len(audioData) == 0 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Detail: errReceivedEmptyAudio}
	}

	return audioData, nil
}

func (c *HTTPClient) do(
	ctx context.Context,
	method, path string,
	body []byte,
	accept string,
) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &ConnectionError{URL: c.baseURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	if body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}

	req.Header.Set(headerAccept, accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{URL: c.baseURL, Err: err}
	}

	return resp, nil
}

// parseErrorResponse decodes a {"detail": ...} body. Non-JSON bodies are kept
// verbatim so the diagnostic is not lost.
func (c *HTTPClient) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return &ServiceError{StatusCode: resp.StatusCode, Detail: errorResp.Detail}
	}

	detail := strings.TrimSpace(string(body))
	if detail == "" {
		detail = resp.Status
	}

	return &ServiceError{StatusCode: resp.StatusCode, Detail: detail}
}
