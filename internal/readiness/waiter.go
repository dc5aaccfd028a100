// Package readiness blocks until the streaming provider reports an uploaded
// asset as ready.
package readiness

import (
	"context"
	"log/slog"
	"time"

	"clipguard/internal/logging"
	"clipguard/internal/provider"
	"clipguard/internal/services"
)

const stageName = "readiness"

// StatusClient is the provider surface the waiter depends on.
type StatusClient interface {
	AssetStatus(ctx context.Context, assetID string) (provider.Asset, error)
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config bounds the wait. Attempt i sleeps min(BaseDelay*2^i, MaxDelay)
// before checking status.
type Config struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultConfig returns the 9 attempt, 1s..5s schedule (37s in total).
func DefaultConfig() Config {
	return Config{Attempts: 9, BaseDelay: time.Second, MaxDelay: 5 * time.Second}
}

// Waiter polls asset status with capped exponential backoff.
type Waiter struct {
	client StatusClient
	cfg    Config
	sleep  Sleeper
	logger *slog.Logger
}

// Option customizes the waiter.
type Option func(*Waiter)

// WithSleeper overrides how backoff sleeps are performed (useful for tests).
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

// NewWaiter constructs a readiness waiter.
func NewWaiter(client StatusClient, cfg Config, opts ...Option) *Waiter {
	defaults := DefaultConfig()
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaults.Attempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaults.BaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
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

// Delay returns the sleep taken before attempt i (0-indexed).
func (w *Waiter) Delay(i int) time.Duration {
	delay := w.cfg.BaseDelay
	for range i {
		delay *= 2
		if delay >= w.cfg.MaxDelay {
			return w.cfg.MaxDelay
		}
	}
	return min(delay, w.cfg.MaxDelay)
}

// Wait blocks until the asset is ready and returns its payload. Provider
// 404/403 responses count as not ready; any other request failure ends the
// wait with ErrUpstreamRequest. Running out of attempts yields ErrUpstreamTimeout.
func (w *Waiter) Wait(ctx context.Context, assetID string) (provider.Asset, error) {
	logger := logging.WithContext(ctx, w.logger)
	for attempt := range w.cfg.Attempts {
		if err := w.sleep(ctx, w.Delay(attempt)); err != nil {
			return provider.Asset{}, err
		}

		asset, err := w.client.AssetStatus(ctx, assetID)
		switch {
		case err == nil && asset.Ready:
			logger.Info("asset ready",
				logging.Int("attempt", attempt+1),
				logging.String("playback_id", asset.PlaybackID),
			)
			return asset, nil
		case err == nil:
			logger.Debug("asset not ready",
				logging.Int("attempt", attempt+1),
				logging.String("status", asset.Status),
			)
		case provider.IsNotReady(err):
			logger.Debug("asset not yet visible",
				logging.Int("attempt", attempt+1),
				logging.Error(services.Wrap(services.ErrUpstreamNotReady, stageName, "asset status", "", err)),
			)
		case ctx.Err() != nil:
			return provider.Asset{}, ctx.Err()
		default:
			return provider.Asset{}, services.Wrap(services.ErrUpstreamRequest, stageName, "asset status", "status check failed", err)
		}
	}
	return provider.Asset{}, services.Wrap(
		services.ErrUpstreamTimeout,
		stageName,
		"asset status",
		"asset never became ready",
		nil,
	)
}
