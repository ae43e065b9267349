// Package voice provides the stateless pass-through client for speech
// transcription and synthesis.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mindgate/mindgate/internal/domain"
)

// Engine converts between audio and text. Implementations hold no
// conversation state; each call stands alone.
type Engine interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
	Ping(ctx context.Context) error
}

// Client is the HTTP implementation of Engine.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client against the given voice service base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

var _ Engine = (*Client)(nil)

// Transcribe converts audio to text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	endpoint := c.baseURL + "/v1/transcribe"
	if language != "" {
		endpoint += "?language=" + url.QueryEscape(language)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: transcribe returned status %d: %s", domain.ErrCollaboratorUnavailable, resp.StatusCode, string(bodyBytes))
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to parse transcription: %w", err)
	}
	return payload.Text, nil
}

// Synthesize converts text to audio.
func (c *Client) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{
		"text":     text,
		"language": language,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: synthesize returned status %d: %s", domain.ErrCollaboratorUnavailable, resp.StatusCode, string(bodyBytes))
	}
	return io.ReadAll(resp.Body)
}

// Ping checks voice service reachability.
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned status %d", domain.ErrCollaboratorUnavailable, resp.StatusCode)
	}
	return nil
}
