// Package verdict writes moderation outcomes back into the content model and
// fans them out to event and notification side channels.
package verdict

import (
	"context"
	"log/slog"
	"time"

	"clipguard/internal/content"
	"clipguard/internal/events"
	"clipguard/internal/logging"
	"clipguard/internal/metrics"
	"clipguard/internal/notifications"
	"clipguard/internal/services"
)

// ContentWriter applies a verdict to a stored video.
type ContentWriter interface {
	ApplyVerdict(ctx context.Context, videoID int64, url string, flagged bool) (content.VerdictResult, error)
}

// EventPublisher publishes verdict events.
type EventPublisher interface {
	PublishVerdict(ctx context.Context, event events.VerdictEvent) error
}

// Input identifies the job whose verdict is being applied.
type Input struct {
	JobID   int64
	VideoID int64
	AssetID string
	URL     string
	Flagged bool
}

// Propagator writes verdicts. Only the content write can fail the call;
// events and notifications are logged and dropped on error.
type Propagator struct {
	content  ContentWriter
	events   EventPublisher
	notifier notifications.Service
	logger   *slog.Logger
}

// NewPropagator constructs a Propagator. events and notifier may be nil.
func NewPropagator(store ContentWriter, publisher EventPublisher, notifier notifications.Service, logger *slog.Logger) *Propagator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Propagator{
		content:  store,
		events:   publisher,
		notifier: notifier,
		logger:   logger,
	}
}

// Apply stores the verdict. A video deleted while the job ran is logged and
// reported as not applied.
func (p *Propagator) Apply(ctx context.Context, in Input) (content.VerdictResult, error) {
	logger := logging.WithContext(ctx, p.logger)
	result, err := p.content.ApplyVerdict(ctx, in.VideoID, in.URL, in.Flagged)
	if err != nil {
		return content.VerdictResult{}, services.Wrap(services.ErrTransient, "propagate", "apply verdict", "content write failed", err)
	}
	if !result.Applied {
		logger.Info("video missing; verdict discarded",
			logging.String(logging.FieldEventType, "verdict_discarded"),
		)
		return result, nil
	}

	metrics.VerdictApplied(in.Flagged)
	logger.Info("verdict applied",
		logging.Bool("flagged", in.Flagged),
		logging.Bool("post_flagged", result.PostFlagged),
		logging.String("url", in.URL),
		logging.String(logging.FieldEventType, "verdict_applied"),
	)

	if p.events != nil {
		correlationID, _ := services.RequestIDFromContext(ctx)
		event := events.VerdictEvent{
			JobID:         in.JobID,
			VideoID:       in.VideoID,
			AssetID:       in.AssetID,
			PostID:        result.PostID,
			Flagged:       in.Flagged,
			URL:           in.URL,
			Applied:       true,
			CorrelationID: correlationID,
			ModeratedAt:   time.Now().UTC(),
		}
		if err := p.events.PublishVerdict(ctx, event); err != nil {
			metrics.SideEffectFailed("events")
			logging.WarnWithContext(logger, "verdict event publish failed", "verdict_event_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check nats connectivity and the events stream"),
			)
		}
	}

	if in.Flagged && p.notifier != nil {
		if err := p.notifier.NotifyVideoFlagged(ctx, notifications.Flagged{
			VideoID: in.VideoID,
			AssetID: in.AssetID,
			PostID:  result.PostID,
			URL:     in.URL,
		}); err != nil {
			metrics.SideEffectFailed("notifications")
			logging.WarnWithContext(logger, "flagged notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check ntfy_topic"),
			)
		}
	}
	return result, nil
}
