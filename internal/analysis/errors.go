package analysis

import (
	"errors"
	"strings"
)

// ErrUnknownMetric is returned when a name is outside the metric vocabulary.
var ErrUnknownMetric = errors.New("unknown metric")

// ValidationReport is produced by Validate before any statistics are computed.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	RowCount int      `json:"row_count"`
}

// ValidationError aborts a run whose input fails structural validation. It
// carries the full report and nothing else.
type ValidationError struct {
	Report ValidationReport
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Report.Errors) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Report.Errors, "; ")
}
