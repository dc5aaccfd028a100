package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultHTTPTimeout   = 30 * time.Second
	defaultRenditionName = "high.mp4"
	maxErrorBody         = 512
	maxResponseBody      = 1 << 20
)

// Config captures the runtime settings required to talk to the provider.
type Config struct {
	BaseURL           string
	TokenID           string
	TokenSecret       string
	StreamBaseURL     string
	RenditionName     string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client wraps the provider asset API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	probe      *http.Client
	limiter    *rate.Limiter
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for provider API calls and probes.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLimiter overrides the provider request limiter. A nil limiter disables limiting.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// NewClient constructs a provider client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.StreamBaseURL = strings.TrimRight(strings.TrimSpace(cfg.StreamBaseURL), "/")
	cfg.RenditionName = strings.Trim(strings.TrimSpace(cfg.RenditionName), "/")
	if cfg.RenditionName == "" {
		cfg.RenditionName = defaultRenditionName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}

	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(client)
	}

	// Probes treat redirects as success, so they must see the 3xx itself.
	probe := *client.httpClient
	probe.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	client.probe = &probe
	return client
}

// StatusError reports a non-2xx response from the provider.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("provider %s %s: http %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("provider %s %s: http %d: %s", e.Method, e.URL, e.StatusCode, body)
}

// IsNotReady reports whether err is a provider 404 or 403, which the provider
// returns while a freshly uploaded asset is still being registered.
func IsNotReady(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusNotFound || statusErr.StatusCode == http.StatusForbidden
}

// DerivedURL returns the conventional public download URL for a playback id.
func (c *Client) DerivedURL(playbackID string) string {
	playbackID = strings.TrimSpace(playbackID)
	if playbackID == "" {
		return ""
	}
	return c.cfg.StreamBaseURL + "/" + url.PathEscape(playbackID) + "/" + c.cfg.RenditionName
}

// Probe issues a HEAD request against candidate and succeeds iff the response
// status is in [200, 400).
func (c *Client) Probe(ctx context.Context, candidate string) error {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return errors.New("provider probe: empty url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, candidate, nil)
	if err != nil {
		return fmt.Errorf("provider probe: new request: %w", err)
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return fmt.Errorf("provider probe: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return &StatusError{Method: http.MethodHead, URL: candidate, StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	if c.cfg.BaseURL == "" {
		return nil, errors.New("provider request: base url not configured")
	}
	endpoint := c.cfg.BaseURL + path
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("provider request: rate limit: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("provider request: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.TokenID != "" || c.cfg.TokenSecret != "" {
		req.SetBasicAuth(c.cfg.TokenID, c.cfg.TokenSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, fmt.Errorf("provider request: read body: %w", err)
	}
	if len(payload) > maxResponseBody {
		return nil, fmt.Errorf("provider request: response exceeds %d bytes", maxResponseBody)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(payload)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, URL: endpoint, StatusCode: resp.StatusCode, Body: snippet}
	}
	return payload, nil
}
