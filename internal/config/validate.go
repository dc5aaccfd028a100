package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateReadiness(); err != nil {
		return err
	}
	if err := c.validateRendition(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateModeration(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateUpstreams reports whether the provider and moderation endpoints the
// daemon needs are configured. CLI commands that only touch the local store
// skip this check.
func (c *Config) ValidateUpstreams() error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/clipguard/config.toml"
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required. Edit %s (create with 'clipguard config init')", defaultPath)
	}
	if c.Provider.TokenID == "" || c.Provider.TokenSecret == "" {
		return fmt.Errorf("provider.token_id and provider.token_secret are required. Set CLIPGUARD_PROVIDER_TOKEN_ID/CLIPGUARD_PROVIDER_TOKEN_SECRET or edit %s", defaultPath)
	}
	if c.Moderation.URL == "" {
		return fmt.Errorf("moderation.url is required. Set CLIPGUARD_MODERATION_URL or edit %s", defaultPath)
	}
	return nil
}

func (c *Config) validateReadiness() error {
	if c.Readiness.Attempts <= 0 {
		return errors.New("readiness.attempts must be positive")
	}
	if c.Readiness.BaseDelayMS <= 0 {
		return errors.New("readiness.base_delay_ms must be positive")
	}
	if c.Readiness.MaxDelayMS < c.Readiness.BaseDelayMS {
		return errors.New("readiness.max_delay_ms must be at least readiness.base_delay_ms")
	}
	return nil
}

func (c *Config) validateRendition() error {
	if c.Rendition.PollAttempts <= 0 {
		return errors.New("rendition.poll_attempts must be positive")
	}
	if c.Rendition.PollIntervalSeconds <= 0 {
		return errors.New("rendition.poll_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	if c.Workflow.MaxAttempts <= 0 {
		return errors.New("workflow.max_attempts must be positive")
	}
	if c.Workflow.RetryBackoffSeconds < 0 {
		return errors.New("workflow.retry_backoff_seconds must be non-negative")
	}
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateProvider() error {
	if c.Provider.BaseURL != "" {
		if err := validateHTTPURL("provider.base_url", c.Provider.BaseURL); err != nil {
			return err
		}
	}
	if err := validateHTTPURL("provider.stream_base_url", c.Provider.StreamBaseURL); err != nil {
		return err
	}
	if c.Provider.RequestsPerSecond < 0 {
		return errors.New("provider.requests_per_second must be non-negative")
	}
	return nil
}

func (c *Config) validateModeration() error {
	if c.Moderation.URL == "" {
		return nil
	}
	return validateHTTPURL("moderation.url", c.Moderation.URL)
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func validateHTTPURL(field, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", field, value)
	}
	return nil
}
