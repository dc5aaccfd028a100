package logs

import (
	"regexp"
	"strconv"

	"clipguard/internal/logging"
)

// JobFilter matches log lines carrying the given job id in either the console
// ("job_id=7") or JSON ("\"job_id\":7") format.
func JobFilter(jobID int64) func(string) bool {
	id := strconv.FormatInt(jobID, 10)
	key := regexp.QuoteMeta(logging.FieldJobID)
	pattern := regexp.MustCompile(`(^|\s)` + key + `=` + id + `(\s|$)|"` + key + `":` + id + `[,}]`)
	return pattern.MatchString
}
