package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipguard/internal/logging"
)

func TestLogsFiltersByJob(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.cfg.Paths.LogDir, logging.LogFileName)
	content := "" +
		"2026-01-01T00:00:00Z INFO daemon started\n" +
		"2026-01-01T00:00:01Z INFO workflow: job claimed job_id=1 video_id=9\n" +
		"2026-01-01T00:00:02Z INFO workflow: job claimed job_id=2 video_id=10\n"
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "daemon started") || !strings.Contains(out, "job_id=2") {
		t.Fatalf("expected last two lines, got %q", out)
	}

	out, _, err = runCLI(t, []string{"logs", "--job", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --job: %v", err)
	}
	requireContains(t, out, "video_id=9")
	if strings.Contains(out, "video_id=10") {
		t.Fatalf("unexpected line for another job: %q", out)
	}
}
