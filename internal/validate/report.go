package validate

import (
	"encoding/json"
	"io"
)

// Report is the serialisable form of a Result.
type Report struct {
	RuleName          string `json:"rule_name"`
	Table             string `json:"table"`
	Severity          string `json:"severity"`
	Passed            bool   `json:"passed"`
	Skipped           bool   `json:"skipped,omitempty"`
	ViolatingRowCount int64  `json:"violating_row_count"`
	Error             string `json:"error,omitempty"`
}

// Reports converts results into reports, preserving order.
func Reports(results []Result) []Report {
	out := make([]Report, len(results))
	for i, res := range results {
		out[i] = Report{
			RuleName:          res.Rule.Name,
			Table:             res.Rule.Table,
			Severity:          string(res.Severity),
			Passed:            res.Passed,
			Skipped:           res.Skipped,
			ViolatingRowCount: res.ViolatingRows,
		}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
		}
	}
	return out
}

// WriteJSON writes reports as an indented JSON array.
func WriteJSON(w io.Writer, results []Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Reports(results))
}
