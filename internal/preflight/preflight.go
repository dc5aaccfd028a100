package preflight

import (
	"context"

	"clipguard/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable check for cfg. The NATS check only runs
// when verdict events are configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckProvider(ctx, cfg.Provider),
		CheckModeration(ctx, cfg.Moderation.URL, cfg.Moderation.APIKey),
	}
	if cfg.Events.NATSURL != "" {
		results = append(results, CheckEvents(cfg.Events.NATSURL))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
