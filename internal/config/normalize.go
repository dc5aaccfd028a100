package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProvider()
	c.normalizeModeration()
	c.normalizeWorkflow()
	c.normalizeEvents()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CLIPGUARD_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeProvider() {
	c.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(c.Provider.BaseURL), "/")
	c.Provider.TokenID = strings.TrimSpace(c.Provider.TokenID)
	if c.Provider.TokenID == "" {
		if value, ok := os.LookupEnv("CLIPGUARD_PROVIDER_TOKEN_ID"); ok {
			c.Provider.TokenID = strings.TrimSpace(value)
		}
	}
	c.Provider.TokenSecret = strings.TrimSpace(c.Provider.TokenSecret)
	if c.Provider.TokenSecret == "" {
		if value, ok := os.LookupEnv("CLIPGUARD_PROVIDER_TOKEN_SECRET"); ok {
			c.Provider.TokenSecret = strings.TrimSpace(value)
		}
	}
	c.Provider.StreamBaseURL = strings.TrimRight(strings.TrimSpace(c.Provider.StreamBaseURL), "/")
	if c.Provider.StreamBaseURL == "" {
		c.Provider.StreamBaseURL = defaultStreamBaseURL
	}
	c.Provider.RenditionName = strings.Trim(strings.TrimSpace(c.Provider.RenditionName), "/")
	if c.Provider.RenditionName == "" {
		c.Provider.RenditionName = defaultRenditionName
	}
	if c.Provider.RequestTimeoutSeconds <= 0 {
		c.Provider.RequestTimeoutSeconds = defaultProviderTimeoutSeconds
	}
}

func (c *Config) normalizeModeration() {
	c.Moderation.URL = strings.TrimSpace(c.Moderation.URL)
	if c.Moderation.URL == "" {
		if value, ok := os.LookupEnv("CLIPGUARD_MODERATION_URL"); ok {
			c.Moderation.URL = strings.TrimSpace(value)
		}
	}
	c.Moderation.APIKey = strings.TrimSpace(c.Moderation.APIKey)
	if c.Moderation.APIKey == "" {
		if value, ok := os.LookupEnv("CLIPGUARD_MODERATION_API_KEY"); ok {
			c.Moderation.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Moderation.TimeoutSeconds <= 0 {
		c.Moderation.TimeoutSeconds = defaultModerationTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.RetryBackoffMaxSeconds < c.Workflow.RetryBackoffSeconds {
		c.Workflow.RetryBackoffMaxSeconds = c.Workflow.RetryBackoffSeconds
	}
}

func (c *Config) normalizeEvents() {
	c.Events.NATSURL = strings.TrimSpace(c.Events.NATSURL)
	if c.Events.NATSURL == "" {
		if value, ok := os.LookupEnv("CLIPGUARD_NATS_URL"); ok {
			c.Events.NATSURL = strings.TrimSpace(value)
		}
	}
	c.Events.Subject = strings.TrimSpace(c.Events.Subject)
	if c.Events.Subject == "" {
		c.Events.Subject = defaultEventsSubject
	}
	c.Events.Stream = strings.ToUpper(strings.TrimSpace(c.Events.Stream))
	if c.Events.Stream == "" {
		c.Events.Stream = defaultEventsStream
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "pretty", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
