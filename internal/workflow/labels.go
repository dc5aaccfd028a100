package workflow

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"clipguard/internal/queue"
)

var titleCaser = cases.Title(language.English)

// StageLabel returns the human-readable name of a job stage.
func StageLabel(stage queue.Stage) string {
	if stage == "" {
		return "Workflow"
	}
	return titleCaser.String(strings.ReplaceAll(string(stage), "_", " "))
}
