// Package daemonrun wires the clipguard runtime together and blocks until the
// process is signalled to stop.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"clipguard/internal/config"
	"clipguard/internal/content"
	"clipguard/internal/daemon"
	"clipguard/internal/database"
	"clipguard/internal/events"
	"clipguard/internal/logging"
	"clipguard/internal/notifications"
	"clipguard/internal/preflight"
	"clipguard/internal/queue"
	"clipguard/internal/workflow"
)

// PIDFileName is written to the log directory while the daemon runs.
const PIDFileName = "clipguard.pid"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	// Logger overrides the logger built from configuration.
	Logger *slog.Logger
	// SkipPreflight disables the startup reachability checks.
	SkipPreflight bool
}

// Run starts the clipguard daemon and returns after SIGINT/SIGTERM or when
// cmdCtx is cancelled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := opts.Logger
	if logger == nil {
		if level := strings.TrimSpace(opts.LogLevel); level != "" {
			cfg.Logging.Level = level
		}
		built, err := logging.NewFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = built
	}
	logUpstreamSnapshot(logger, cfg)
	if !opts.SkipPreflight {
		logPreflight(signalCtx, logger, cfg)
	}

	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		logger.Error("open database", logging.Error(err))
		return err
	}
	defer db.Close()

	queueStore, err := queue.NewStore(signalCtx, db)
	if err != nil {
		return err
	}
	contentStore, err := content.NewStore(signalCtx, db)
	if err != nil {
		return err
	}

	publisher, err := events.Connect(cfg.Events, logging.NewComponentLogger(logger, "events"))
	if err != nil {
		logging.WarnWithContext(logger, "verdict events disabled", "events_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check events.nats_url and that JetStream is enabled"),
		)
	}

	notifier := notifications.NewService(cfg)
	pipelineOpts := []workflow.PipelineOption{}
	if publisher != nil && publisher.Enabled() {
		pipelineOpts = append(pipelineOpts, workflow.WithEventPublisher(publisher))
	}
	pipeline := workflow.NewPipeline(cfg, contentStore, notifier, logging.NewComponentLogger(logger, "pipeline"), pipelineOpts...)
	manager := workflow.NewManager(cfg, queueStore, pipeline, notifier, logger)

	d, err := daemon.New(cfg, queueStore, contentStore, manager, publisher, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	// Written only once the lock is held so a losing instance cannot clobber it.
	pidPath := filepath.Join(cfg.Paths.LogDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("clipguard daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// logPreflight warns about failed checks without blocking startup.
func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run 'clipguard config validate --check' for details"),
		)
	}
}

func logUpstreamSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("upstream snapshot",
		logging.String(logging.FieldEventType, "upstream_snapshot"),
		logging.String("provider_base_url", cfg.Provider.BaseURL),
		logging.Bool("provider_credentials_present", cfg.Provider.TokenID != "" && cfg.Provider.TokenSecret != ""),
		logging.String("stream_base_url", cfg.Provider.StreamBaseURL),
		logging.Bool("moderation_configured", strings.TrimSpace(cfg.Moderation.URL) != ""),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("nats_configured", strings.TrimSpace(cfg.Events.NATSURL) != ""),
		logging.Int("workers", cfg.Workflow.Workers),
	)
}
