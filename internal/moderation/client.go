// Package moderation calls the external nudity-detection service for a
// downloadable video URL.
package moderation

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

	"clipguard/internal/services"
)

const (
	stageName          = "moderation"
	defaultHTTPTimeout = 90 * time.Second
	maxErrorBody       = 512
)

// Config captures the runtime settings required to reach the service.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Verdict is the service's answer for one video.
type Verdict struct {
	NudityDetected bool `json:"nudity_detected"`
}

// Client posts video URLs to the moderation service. It applies one timeout
// per call and never retries; retry policy belongs to the job queue.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a moderation client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type checkRequest struct {
	VideoURL string `json:"video_url"`
}

// Check submits videoURL and returns the verdict. Every failure is tagged
// with services.ErrModeration.
func (c *Client) Check(ctx context.Context, videoURL string) (Verdict, error) {
	if c.cfg.URL == "" {
		return Verdict{}, services.Wrap(services.ErrConfiguration, stageName, "check", "moderation url not configured", nil)
	}
	if strings.TrimSpace(videoURL) == "" {
		return Verdict{}, services.Wrap(services.ErrValidation, stageName, "check", "video url required", nil)
	}

	verdict, err := c.send(ctx, videoURL)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return Verdict{}, ctx.Err()
		}
		return Verdict{}, services.Wrap(services.ErrModeration, stageName, "check", "moderation request failed", err)
	}
	return verdict, nil
}

func (c *Client) send(ctx context.Context, videoURL string) (Verdict, error) {
	encoded, err := json.Marshal(checkRequest{VideoURL: videoURL})
	if err != nil {
		return Verdict{}, fmt.Errorf("encode body: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(encoded))
	if err != nil {
		return Verdict{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Verdict{}, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return Verdict{}, fmt.Errorf("http %d: %s", resp.StatusCode, snippet)
	}

	var raw struct {
		NudityDetected *bool `json:"nudity_detected"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	if raw.NudityDetected == nil {
		return Verdict{}, errors.New("decode verdict: nudity_detected missing")
	}
	return Verdict{NudityDetected: *raw.NudityDetected}, nil
}
