package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipguard/internal/api"
	"clipguard/internal/daemonctl"
	"clipguard/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and repair the moderation job queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd, func(stores *daemonctl.Stores) error {
				stats, err := api.NewQueueService(stores.Queue).Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable(
					[]string{"Status", "Count"},
					buildQueueStatusRows(stats, colorEnabled(out)),
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var videoID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List moderation jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withStores(cmd, func(stores *daemonctl.Stores) error {
				service := api.NewQueueService(stores.Queue)
				var jobs []api.JobView
				if videoID > 0 {
					jobs, err = service.ForVideo(cmd.Context(), videoID)
				} else {
					jobs, err = service.List(cmd.Context(), statuses...)
				}
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Video", "Asset", "Status", "Stage", "Attempts", "Updated"},
					buildJobListRows(jobs, time.Now(), colorEnabled(out)),
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().Int64Var(&videoID, "video", 0, "Only show jobs for this video")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStores(cmd, func(stores *daemonctl.Stores) error {
				job, err := api.NewQueueService(stores.Queue).Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.JobResponse{Job: *job})
				}
				out := cmd.OutOrStdout()
				var b strings.Builder
				writeJobDetail(&b, *job, time.Now(), colorEnabled(out))
				fmt.Fprint(out, b.String())
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Requeue aborted jobs (all aborted jobs when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStores(cmd, func(stores *daemonctl.Stores) error {
				service := api.NewQueueService(stores.Queue)
				if len(ids) == 0 {
					aborted, err := service.List(cmd.Context(), queue.StatusAborted)
					if err != nil {
						return err
					}
					for _, job := range aborted {
						ids = append(ids, job.ID)
					}
				}
				result, err := api.RetryAbortedJobsByID(cmd.Context(), service, ids)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				for _, job := range result.Jobs {
					switch job.Outcome {
					case api.RetryJobNotFound:
						fmt.Fprintf(out, "Job %d not found\n", job.ID)
					case api.RetryJobNotAborted:
						fmt.Fprintf(out, "Job %d is not aborted\n", job.ID)
					case api.RetryJobVideoActive:
						fmt.Fprintf(out, "Job %d skipped: its video already has an active job\n", job.ID)
					}
				}
				fmt.Fprintf(out, "Retried %d aborted jobs\n", result.UpdatedCount)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>...",
		Short: "Delete jobs that are not running",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStores(cmd, func(stores *daemonctl.Stores) error {
				result, err := api.RemoveJobsByID(cmd.Context(), api.NewQueueService(stores.Queue), ids)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				for _, job := range result.Jobs {
					if job.Outcome != api.RemoveJobRemoved {
						fmt.Fprintf(out, "Job %d not removed (%s)\n", job.ID, job.Outcome)
					}
				}
				fmt.Fprintf(out, "Removed %d jobs\n", result.RemovedCount)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearAborted bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete jobs that are not running",
		Long: "Delete jobs that are not running. Queued jobs are included unless\n" +
			"--completed or --aborted narrows the clear to one terminal status.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearAborted {
				return errors.New("specify only one of --completed or --aborted")
			}
			return ctx.withStores(cmd, func(stores *daemonctl.Stores) error {
				var (
					removed int64
					label   string
					err     error
				)
				switch {
				case clearCompleted:
					removed, err = stores.Queue.ClearCompleted(cmd.Context())
					label = "completed "
				case clearAborted:
					removed, err = stores.Queue.ClearAborted(cmd.Context())
					label = "aborted "
				default:
					removed, err = stores.Queue.Clear(cmd.Context())
				}
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]int64{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %sjobs\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Only remove completed jobs")
	cmd.Flags().BoolVar(&clearAborted, "aborted", false, "Only remove aborted jobs")
	return cmd
}

func parseStatuses(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parseJobID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", value)
	}
	return id, nil
}

func parseJobIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := parseJobID(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
