package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipguard/internal/daemonctl"
	"clipguard/internal/daemonrun"
)

const stopGracePeriod = 10 * time.Second

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the moderation daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateUpstreams(); err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := daemonctl.Stop(cfg, stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon (pid %d) did not exit within %s and was killed\n", result.PID, stopGracePeriod)
				return nil
			}
			fmt.Fprintf(out, "Daemon (pid %d) stopped\n", result.PID)
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, snapshot.Status)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderStatus(snapshot, time.Now(), colorEnabled(out)))
			return nil
		},
	}
}

func renderStatus(snapshot daemonctl.StatusSnapshot, now time.Time, color bool) string {
	var b strings.Builder
	status := snapshot.Status
	switch {
	case snapshot.APIReachable:
		fmt.Fprintf(&b, "Daemon:    running (pid %d)\n", snapshot.PID)
	case snapshot.Running:
		fmt.Fprintf(&b, "Daemon:    running (pid %d), API unreachable\n", snapshot.PID)
	default:
		fmt.Fprintln(&b, "Daemon:    not running")
	}
	fmt.Fprintf(&b, "Database:  %s\n", status.DatabasePath)
	if snapshot.APIReachable {
		fmt.Fprintf(&b, "Workers:   %d (workflow running: %s)\n", status.Workflow.Workers, yesNo(status.Workflow.Running))
		fmt.Fprintf(&b, "Events:    %s\n", yesNo(status.EventsActive))
		if status.Workflow.Retrying > 0 {
			fmt.Fprintf(&b, "Retrying:  %d\n", status.Workflow.Retrying)
		}
		if status.Workflow.LastError != "" {
			fmt.Fprintf(&b, "Last error: %s\n", status.Workflow.LastError)
		}
		if job := status.Workflow.LastJob; job != nil {
			fmt.Fprintf(&b, "Last job:  %d (video %d, %s, updated %s)\n",
				job.ID, job.VideoID, formatStatusLabel(job.Status, color), relativeTime(job.UpdatedAt, now))
		}
	}
	rows := buildQueueStatusRows(status.Workflow.QueueStats, color)
	if len(rows) == 0 {
		fmt.Fprintln(&b, "Queue is empty")
		return b.String()
	}
	b.WriteString(renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	return b.String()
}
