package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipguard/internal/api"
	"clipguard/internal/daemonctl"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <video-id> <asset-id>",
		Short: "Schedule moderation for an uploaded video",
		Long: "Schedule moderation for an uploaded video. The request goes through the\n" +
			"daemon API when it is reachable and is written to the queue database otherwise.\n" +
			"Enqueueing a video that already has an active job returns that job.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			videoID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid video id %q", args[0])
			}
			req := api.EnqueueRequest{VideoID: videoID, AssetID: strings.TrimSpace(args[1])}
			if err := req.Validate(); err != nil {
				return err
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Enqueue(cmd.Context(), req.VideoID, req.AssetID)
			via := "daemon"
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				via = "queue database"
				err = ctx.withStores(cmd, func(stores *daemonctl.Stores) error {
					job, created, enqueueErr := stores.Queue.Enqueue(cmd.Context(), req.VideoID, req.AssetID, cfg.Workflow.MaxAttempts)
					if enqueueErr != nil {
						return enqueueErr
					}
					resp = &api.EnqueueResponse{Job: api.FromJob(job), Created: created}
					return nil
				})
			}
			if err != nil {
				return err
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			if resp.Created {
				fmt.Fprintf(out, "Enqueued job %d for video %d via %s\n", resp.Job.ID, resp.Job.VideoID, via)
			} else {
				fmt.Fprintf(out, "Video %d already has active job %d (%s)\n", resp.Job.VideoID, resp.Job.ID, resp.Job.Status)
			}
			return nil
		},
	}
}
