package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipguard/internal/api"
	"clipguard/internal/content"
	"clipguard/internal/daemonctl"
)

func newVideoCommand(ctx *commandContext) *cobra.Command {
	videoCmd := &cobra.Command{
		Use:   "video",
		Short: "Inspect videos and override moderation",
	}

	videoCmd.AddCommand(newVideoAddCommand(ctx))
	videoCmd.AddCommand(newVideoShowCommand(ctx))
	videoCmd.AddCommand(newVideoListCommand(ctx))
	videoCmd.AddCommand(newVideoUnflagCommand(ctx))

	return videoCmd
}

func newVideoAddCommand(ctx *commandContext) *cobra.Command {
	var assetID string
	var manifestURL string
	var caption string
	var withPost bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an uploaded video (and optionally its post)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd, func(stores *daemonctl.Stores) error {
				input := content.NewVideo{AssetID: strings.TrimSpace(assetID), URL: strings.TrimSpace(manifestURL)}
				var post *content.Post
				if withPost {
					created, err := stores.Content.CreatePost(cmd.Context(), caption)
					if err != nil {
						return err
					}
					post = created
					input.PostID = &created.ID
				}
				video, err := stores.Content.CreateVideo(cmd.Context(), input)
				if err != nil {
					return err
				}
				view := api.FromVideo(video, post)
				if ctx.JSONMode() {
					return writeJSON(cmd, api.VideoResponse{Video: view})
				}
				out := cmd.OutOrStdout()
				if post != nil {
					fmt.Fprintf(out, "Created video %d attached to post %d\n", video.ID, post.ID)
				} else {
					fmt.Fprintf(out, "Created video %d\n", video.ID)
				}
				fmt.Fprintf(out, "Enqueue it with: clipguard enqueue %d %s\n", video.ID, video.AssetID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&assetID, "asset", "", "Streaming provider asset id")
	cmd.Flags().StringVar(&manifestURL, "url", "", "Streaming manifest URL")
	cmd.Flags().BoolVar(&withPost, "post", true, "Create a post that owns the video")
	cmd.Flags().StringVar(&caption, "caption", "", "Caption for the created post")
	_ = cmd.MarkFlagRequired("asset")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newVideoShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <video-id>",
		Short: "Show a video, its post, and its moderation jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStores(cmd, func(stores *daemonctl.Stores) error {
				view, err := loadVideoView(cmd, stores, id)
				if err != nil {
					return err
				}
				jobs, err := api.NewQueueService(stores.Queue).ForVideo(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.VideoResponse{Video: view, Jobs: jobs})
				}
				out := cmd.OutOrStdout()
				now := time.Now()
				var b strings.Builder
				writeVideoDetail(&b, view, now)
				fmt.Fprint(out, b.String())
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No moderation jobs")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Video", "Asset", "Status", "Stage", "Attempts", "Updated"},
					buildJobListRows(jobs, now, colorEnabled(out)),
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newVideoListCommand(ctx *commandContext) *cobra.Command {
	var flaggedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd, func(stores *daemonctl.Stores) error {
				videos, err := stores.Content.ListVideos(cmd.Context(), flaggedOnly)
				if err != nil {
					return err
				}
				views := make([]api.VideoView, 0, len(videos))
				for _, video := range videos {
					views = append(views, api.FromVideo(video, nil))
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No videos")
					return nil
				}
				now := time.Now()
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					post := "-"
					if v.PostID != nil {
						post = strconv.FormatInt(*v.PostID, 10)
					}
					rows = append(rows, []string{
						strconv.FormatInt(v.ID, 10),
						v.AssetID,
						post,
						yesNo(v.Flagged),
						relativeTime(v.ModeratedAt, now),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Asset", "Post", "Flagged", "Moderated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&flaggedOnly, "flagged", false, "Only list flagged videos")
	return cmd
}

func newVideoUnflagCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unflag <video-id>",
		Short: "Clear a flag set by moderation",
		Long: "Clear the flag on a video and its post after manual review.\n" +
			"Moderation itself never unflags content.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStores(cmd, func(stores *daemonctl.Stores) error {
				cleared, err := stores.Content.ClearVideoFlag(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !cleared {
					return fmt.Errorf("video %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared flag on video %d\n", id)
				return nil
			})
		},
	}
}

func loadVideoView(cmd *cobra.Command, stores *daemonctl.Stores, id int64) (api.VideoView, error) {
	video, err := stores.Content.GetVideo(cmd.Context(), id)
	if err != nil {
		return api.VideoView{}, err
	}
	if video == nil {
		return api.VideoView{}, fmt.Errorf("video %d not found", id)
	}
	var post *content.Post
	if video.PostID != nil {
		post, err = stores.Content.GetPost(cmd.Context(), *video.PostID)
		if err != nil {
			return api.VideoView{}, err
		}
	}
	return api.FromVideo(video, post), nil
}

func parseVideoID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid video id %q", value)
	}
	return id, nil
}
