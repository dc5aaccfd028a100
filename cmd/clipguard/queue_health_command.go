package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"clipguard/internal/daemonctl"
	"clipguard/internal/queue"
)

type queueHealthReport struct {
	Database queue.DatabaseHealth `json:"database"`
	Jobs     queue.HealthSummary  `json:"jobs"`
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(cmd, func(stores *daemonctl.Stores) error {
				dbHealth, checkErr := stores.Queue.CheckHealth(cmd.Context())
				report := queueHealthReport{Database: dbHealth}
				if checkErr == nil {
					summary, err := stores.Queue.Health(cmd.Context())
					if err != nil {
						return err
					}
					report.Jobs = summary
				}
				if ctx.JSONMode() {
					if err := writeJSON(cmd, report); err != nil {
						return err
					}
					return checkErr
				}

				out := cmd.OutOrStdout()
				db := report.Database
				fmt.Fprintf(out, "Database path: %s\n", db.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(db.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(db.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %d\n", db.SchemaVersion)
				fmt.Fprintf(out, "moderation_jobs table present: %s\n", yesNo(db.TableExists))
				if len(db.MissingColumns) > 0 {
					missing := append([]string(nil), db.MissingColumns...)
					sort.Strings(missing)
					fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
				} else {
					fmt.Fprintln(out, "Missing columns: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(db.IntegrityCheck))
				if db.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", db.Error)
					return checkErr
				}
				jobs := report.Jobs
				fmt.Fprintf(out, "Jobs: %d total, %d queued (%d retrying), %d running, %d completed, %d aborted\n",
					jobs.Total, jobs.Queued, jobs.Retrying, jobs.Running, jobs.Completed, jobs.Aborted)
				return checkErr
			})
		},
	}
}
