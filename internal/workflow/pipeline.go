package workflow

import (
	"context"
	"log/slog"
	"time"

	"clipguard/internal/config"
	"clipguard/internal/content"
	"clipguard/internal/moderation"
	"clipguard/internal/notifications"
	"clipguard/internal/provider"
	"clipguard/internal/readiness"
	"clipguard/internal/rendition"
	"clipguard/internal/verdict"
)

// AssetWaiter blocks until an asset is streamable.
type AssetWaiter interface {
	Wait(ctx context.Context, assetID string) (provider.Asset, error)
}

// RenditionWaiter blocks until a downloadable rendition is reachable.
type RenditionWaiter interface {
	Wait(ctx context.Context, asset provider.Asset) (string, error)
}

// Moderator returns a verdict for a reachable video URL.
type Moderator interface {
	Check(ctx context.Context, videoURL string) (moderation.Verdict, error)
}

// VerdictApplier writes a verdict into the content model.
type VerdictApplier interface {
	Apply(ctx context.Context, in verdict.Input) (content.VerdictResult, error)
}

// Pipeline holds the collaborators a job passes through, in order.
type Pipeline struct {
	Readiness  AssetWaiter
	Rendition  RenditionWaiter
	Moderation Moderator
	Propagator VerdictApplier
}

// PipelineOption customizes NewPipeline.
type PipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	sleep     func(context.Context, time.Duration) error
	publisher verdict.EventPublisher
}

// WithSleeper replaces the waiters' sleep function.
func WithSleeper(sleep func(context.Context, time.Duration) error) PipelineOption {
	return func(o *pipelineOptions) {
		o.sleep = sleep
	}
}

// WithEventPublisher attaches a verdict event publisher.
func WithEventPublisher(publisher verdict.EventPublisher) PipelineOption {
	return func(o *pipelineOptions) {
		o.publisher = publisher
	}
}

// NewPipeline builds the production pipeline from configuration.
func NewPipeline(cfg *config.Config, store verdict.ContentWriter, notifier notifications.Service, logger *slog.Logger, opts ...PipelineOption) Pipeline {
	options := &pipelineOptions{}
	for _, opt := range opts {
		opt(options)
	}

	providerClient := provider.NewClient(provider.Config{
		BaseURL:           cfg.Provider.BaseURL,
		TokenID:           cfg.Provider.TokenID,
		TokenSecret:       cfg.Provider.TokenSecret,
		StreamBaseURL:     cfg.Provider.StreamBaseURL,
		RenditionName:     cfg.Provider.RenditionName,
		Timeout:           cfg.ProviderTimeout(),
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
	})

	readinessOpts := []readiness.Option{readiness.WithLogger(logger)}
	renditionOpts := []rendition.Option{rendition.WithLogger(logger)}
	if options.sleep != nil {
		readinessOpts = append(readinessOpts, readiness.WithSleeper(options.sleep))
		renditionOpts = append(renditionOpts, rendition.WithSleeper(options.sleep))
	}

	return Pipeline{
		Readiness: readiness.NewWaiter(providerClient, readiness.Config{
			Attempts:  cfg.Readiness.Attempts,
			BaseDelay: time.Duration(cfg.Readiness.BaseDelayMS) * time.Millisecond,
			MaxDelay:  time.Duration(cfg.Readiness.MaxDelayMS) * time.Millisecond,
		}, readinessOpts...),
		Rendition: rendition.NewWaiter(providerClient, rendition.Config{
			PollAttempts: cfg.Rendition.PollAttempts,
			PollInterval: time.Duration(cfg.Rendition.PollIntervalSeconds) * time.Second,
		}, renditionOpts...),
		Moderation: moderation.NewClient(moderation.Config{
			URL:     cfg.Moderation.URL,
			APIKey:  cfg.Moderation.APIKey,
			Timeout: cfg.ModerationTimeout(),
		}),
		Propagator: verdict.NewPropagator(store, options.publisher, notifier, logger),
	}
}
