// Package events publishes verdict events to NATS JetStream so downstream
// consumers can react to moderation outcomes without polling the database.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"clipguard/internal/config"
	"clipguard/internal/logging"
)

// Header keys set on every verdict message.
const (
	HeaderVideoID = "video_id"
	HeaderJobID   = "job_id"
	HeaderVerdict = "verdict"
)

// VerdictEvent is the JSON body published after a verdict is applied.
type VerdictEvent struct {
	JobID         int64     `json:"job_id"`
	VideoID       int64     `json:"video_id"`
	AssetID       string    `json:"asset_id"`
	PostID        *int64    `json:"post_id,omitempty"`
	Flagged       bool      `json:"flagged"`
	URL           string    `json:"url"`
	Applied       bool      `json:"applied"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	ModeratedAt   time.Time `json:"moderated_at"`
}

// JetStreamPublisher is the subset of nats.JetStreamContext used here.
type JetStreamPublisher interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher sends verdict events. A zero-value Publisher (or nil) is a no-op.
type Publisher struct {
	js      JetStreamPublisher
	subject string
	conn    *nats.Conn
	logger  *slog.Logger
}

// NewPublisher wraps an existing JetStream context.
func NewPublisher(js JetStreamPublisher, subject string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{js: js, subject: subject, logger: logger}
}

// Connect dials NATS and makes sure the configured stream captures the
// verdict subject. An empty URL yields a disabled publisher.
func Connect(cfg config.Events, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	url := strings.TrimSpace(cfg.NATSURL)
	if url == "" {
		return &Publisher{logger: logger}, nil
	}

	conn, err := nats.Connect(url,
		nats.Name("clipguard"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", logging.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", logging.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	if err := ensureStream(js, cfg.Stream, cfg.Subject); err != nil {
		conn.Close()
		return nil, err
	}

	publisher := NewPublisher(js, cfg.Subject, logger)
	publisher.conn = conn
	logger.Info("verdict events enabled",
		logging.String("subject", cfg.Subject),
		logging.String("stream", cfg.Stream),
	)
	return publisher, nil
}

func ensureStream(js nats.JetStreamManager, name, subject string) error {
	if name == "" {
		return nil
	}
	info, err := js.StreamInfo(name)
	if errors.Is(err, nats.ErrStreamNotFound) {
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:     name,
			Subjects: []string{subject},
			Storage:  nats.FileStorage,
		}); err != nil {
			return fmt.Errorf("create stream %s: %w", name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("stream info %s: %w", name, err)
	}
	for _, existing := range info.Config.Subjects {
		if existing == subject {
			return nil
		}
	}
	return fmt.Errorf("stream %s does not capture subject %s", name, subject)
}

// Enabled reports whether events are published.
func (p *Publisher) Enabled() bool {
	return p != nil && p.js != nil && p.subject != ""
}

// PublishVerdict sends event. The job id doubles as the JetStream
// deduplication id so a retried propagation does not publish twice.
func (p *Publisher) PublishVerdict(ctx context.Context, event VerdictEvent) error {
	if !p.Enabled() {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode verdict event: %w", err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = body
	msg.Header.Set(HeaderVideoID, strconv.FormatInt(event.VideoID, 10))
	msg.Header.Set(HeaderJobID, strconv.FormatInt(event.JobID, 10))
	verdict := "clean"
	if event.Flagged {
		verdict = "flagged"
	}
	msg.Header.Set(HeaderVerdict, verdict)
	msg.Header.Set(nats.MsgIdHdr, fmt.Sprintf("clipguard-job-%d", event.JobID))

	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish verdict event: %w", err)
	}
	p.logger.Debug("verdict event published",
		logging.Int64(logging.FieldVideoID, event.VideoID),
		logging.String("subject", p.subject),
	)
	return nil
}

// Close drains the NATS connection if one was opened.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
