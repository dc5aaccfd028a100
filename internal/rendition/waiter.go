// Package rendition confirms that a downloadable rendition of a ready asset
// is publicly reachable before anything is sent for moderation.
//
// Provider-reported completion only decides which URL to probe. A URL is
// returned only after a HEAD request against it succeeds, because the CDN can
// lag behind the provider's status endpoint.
package rendition

import (
	"context"
	"log/slog"
	"time"

	"clipguard/internal/logging"
	"clipguard/internal/provider"
	"clipguard/internal/services"
)

const stageName = "rendition"

// Client is the provider surface the waiter depends on.
type Client interface {
	StartRendition(ctx context.Context, assetID string) error
	RenditionStatus(ctx context.Context, assetID string) (provider.RenditionStatus, error)
	Probe(ctx context.Context, url string) error
	DerivedURL(playbackID string) string
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config bounds the polling loop.
type Config struct {
	PollAttempts int
	PollInterval time.Duration
}

// DefaultConfig returns 24 polls at a fixed 5s cadence.
func DefaultConfig() Config {
	return Config{PollAttempts: 24, PollInterval: 5 * time.Second}
}

// Waiter polls rendition status and HEAD-probes candidate URLs.
type Waiter struct {
	client Client
	cfg    Config
	sleep  Sleeper
	logger *slog.Logger
}

// Option customizes the waiter.
type Option func(*Waiter)

// WithSleeper overrides how poll sleeps are performed (useful for tests).
func WithSleeper(sleeper Sleeper) Option {
	return func(w *Waiter) {
		if sleeper != nil {
			w.sleep = sleeper
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Waiter) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWaiter constructs a download availability waiter.
func NewWaiter(client Client, cfg Config, opts ...Option) *Waiter {
	defaults := DefaultConfig()
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = defaults.PollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	w := &Waiter{
		client: client,
		cfg:    cfg,
		sleep:  services.Sleep,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wait returns a URL that answered a HEAD probe with a 2xx or 3xx status.
func (w *Waiter) Wait(ctx context.Context, asset provider.Asset) (string, error) {
	if !asset.Ready {
		return "", services.Wrap(services.ErrValidation, stageName, "precondition", "asset is not ready", nil)
	}
	logger := logging.WithContext(ctx, w.logger)
	derived := w.client.DerivedURL(asset.PlaybackID)

	if err := w.client.StartRendition(ctx, asset.ID); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logging.WarnWithContext(logger, "rendition trigger failed; polling anyway", "rendition_trigger_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "generation may already be underway"),
		)
	}

	for poll := range w.cfg.PollAttempts {
		reported := ""
		status, err := w.client.RenditionStatus(ctx, asset.ID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logger.Warn("rendition status poll failed",
				logging.Int("poll", poll+1),
				logging.Error(err),
				logging.String(logging.FieldEventType, "rendition_status_failed"),
			)
		} else if status.Complete() && status.URL != "" {
			if w.probe(ctx, logger, status.URL, poll) {
				return status.URL, nil
			}
			reported = status.URL
		}

		if derived != "" && derived != reported && w.probe(ctx, logger, derived, poll) {
			return derived, nil
		}

		if err := w.sleep(ctx, w.cfg.PollInterval); err != nil {
			return "", err
		}
	}

	if derived != "" && w.probe(ctx, logger, derived, w.cfg.PollAttempts) {
		return derived, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return "", services.Wrap(
		services.ErrUpstreamTimeout,
		stageName,
		"head probe",
		"download never became available",
		nil,
	)
}

func (w *Waiter) probe(ctx context.Context, logger *slog.Logger, url string, poll int) bool {
	if err := w.client.Probe(ctx, url); err != nil {
		logger.Debug("rendition probe failed",
			logging.Int("poll", poll+1),
			logging.String("url", url),
			logging.Error(err),
		)
		return false
	}
	logger.Info("rendition available",
		logging.Int("poll", poll+1),
		logging.String("url", url),
	)
	return true
}
