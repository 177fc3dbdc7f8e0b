package engine

import (
	"time"

	"github.com/leapstack-labs/leapflow/internal/validate"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

// ModelResult is the outcome of one model in a run.
type ModelResult struct {
	Name   string
	Layer  core.Layer
	Status core.ModelRunStatus

	RowsIn       int64
	RowsOut      int64
	RowsDropped  int64
	ValuesNulled int64

	// Fingerprint identifies the materialized content
	Fingerprint string
	// Changed is true unless the previous successful run produced the same fingerprint
	Changed bool

	Duration time.Duration
	// Err is the failure of a failed model
	Err error
	// SkippedBy names the failed upstream model of a skipped model
	SkippedBy string
}

// PipelineResult summarises a run.
type PipelineResult struct {
	RunID       string
	Environment string
	Status      core.RunStatus
	StartedAt   time.Time
	Duration    time.Duration

	// Models are in execution order
	Models      []ModelResult
	Validations []validate.Result
}

// Model returns the result of the named model.
func (r *PipelineResult) Model(name string) (ModelResult, bool) {
	for _, m := range r.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelResult{}, false
}

// Count returns how many models ended with status.
func (r *PipelineResult) Count(status core.ModelRunStatus) int {
	n := 0
	for _, m := range r.Models {
		if m.Status == status {
			n++
		}
	}
	return n
}

// RowsDropped totals dropped rows across models.
func (r *PipelineResult) RowsDropped() int64 {
	var n int64
	for _, m := range r.Models {
		n += m.RowsDropped
	}
	return n
}

// QualityErr reports failed error-severity rules; nil when all passed.
func (r *PipelineResult) QualityErr() error {
	return validate.Err(r.Validations)
}

func runStatus(models []ModelResult) core.RunStatus {
	var ok, bad int
	for _, m := range models {
		if m.Status == core.ModelRunStatusSuccess {
			ok++
		} else {
			bad++
		}
	}
	switch {
	case bad == 0:
		return core.RunStatusCompleted
	case ok == 0:
		return core.RunStatusFailed
	default:
		return core.RunStatusPartial
	}
}
