package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"clipguard/internal/api"
	"clipguard/internal/queue"
	"clipguard/internal/workflow"
)

var labelCaser = cases.Title(language.English)

var statusColors = map[queue.Status]text.Colors{
	queue.StatusQueued:    {text.FgCyan},
	queue.StatusRunning:   {text.FgYellow},
	queue.StatusCompleted: {text.FgGreen},
	queue.StatusAborted:   {text.FgRed, text.Bold},
}

func formatStatusLabel(status string, color bool) string {
	label := labelCaser.String(status)
	if !color {
		return label
	}
	if colors, ok := statusColors[queue.Status(status)]; ok {
		return colors.Sprint(label)
	}
	return label
}

// buildQueueStatusRows lists every known status, including empty ones, followed
// by any unknown status reported by a newer daemon.
func buildQueueStatusRows(stats map[string]int, color bool) [][]string {
	if len(stats) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(stats))
	seen := make(map[string]struct{}, len(stats))
	for _, status := range queue.AllStatuses() {
		key := string(status)
		seen[key] = struct{}{}
		rows = append(rows, []string{formatStatusLabel(key, color), strconv.Itoa(stats[key])})
	}
	for key, count := range stats {
		if _, ok := seen[key]; ok {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(key, color), strconv.Itoa(count)})
	}
	return rows
}

func buildJobListRows(jobs []api.JobView, now time.Time, color bool) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			strconv.FormatInt(job.VideoID, 10),
			job.AssetID,
			formatStatusLabel(job.Status, color),
			stageLabel(job.Stage),
			fmt.Sprintf("%d/%d", job.Attempts, job.MaxAttempts),
			relativeTime(job.UpdatedAt, now),
		})
	}
	return rows
}

func stageLabel(stage string) string {
	if stage == "" {
		return "-"
	}
	return workflow.StageLabel(queue.Stage(stage))
}

// relativeTime renders an API timestamp as "3 minutes ago". Empty or invalid
// values print as a dash.
func relativeTime(value string, now time.Time) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func writeJobDetail(b *strings.Builder, job api.JobView, now time.Time, color bool) {
	fmt.Fprintf(b, "Job %d\n", job.ID)
	fmt.Fprintf(b, "  Video:     %d\n", job.VideoID)
	fmt.Fprintf(b, "  Asset:     %s\n", job.AssetID)
	fmt.Fprintf(b, "  Status:    %s\n", formatStatusLabel(job.Status, color))
	fmt.Fprintf(b, "  Stage:     %s\n", stageLabel(job.Stage))
	fmt.Fprintf(b, "  Attempts:  %d of %d\n", job.Attempts, job.MaxAttempts)
	if job.Verdict != "" {
		fmt.Fprintf(b, "  Verdict:   %s\n", job.Verdict)
	}
	if job.RenditionURL != "" {
		fmt.Fprintf(b, "  Rendition: %s\n", job.RenditionURL)
	}
	if job.ErrorMessage != "" {
		kind := job.ErrorKind
		if kind == "" {
			kind = "error"
		}
		fmt.Fprintf(b, "  Error:     %s (%s)\n", job.ErrorMessage, kind)
	}
	if job.NextAttemptAt != "" && job.Status == string(queue.StatusQueued) {
		fmt.Fprintf(b, "  Next try:  %s\n", relativeTime(job.NextAttemptAt, now))
	}
	fmt.Fprintf(b, "  Created:   %s\n", relativeTime(job.CreatedAt, now))
	fmt.Fprintf(b, "  Updated:   %s\n", relativeTime(job.UpdatedAt, now))
	if job.FinishedAt != "" {
		fmt.Fprintf(b, "  Finished:  %s\n", relativeTime(job.FinishedAt, now))
	}
}

func writeVideoDetail(b *strings.Builder, video api.VideoView, now time.Time) {
	fmt.Fprintf(b, "Video %d\n", video.ID)
	fmt.Fprintf(b, "  Asset:     %s\n", video.AssetID)
	fmt.Fprintf(b, "  URL:       %s\n", video.URL)
	fmt.Fprintf(b, "  Flagged:   %s\n", yesNo(video.Flagged))
	if video.PostID != nil {
		fmt.Fprintf(b, "  Post:      %d (flagged: %s)\n", *video.PostID, yesNo(video.PostFlagged))
	} else {
		fmt.Fprintln(b, "  Post:      none")
	}
	if video.ModeratedAt != "" {
		fmt.Fprintf(b, "  Moderated: %s\n", relativeTime(video.ModeratedAt, now))
	} else {
		fmt.Fprintln(b, "  Moderated: never")
	}
}
