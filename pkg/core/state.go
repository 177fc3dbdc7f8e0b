package core

import "time"

// Store defines the interface for run-history persistence.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateRun(env string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetLatestRun(env string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	// Model run operations
	RecordModelRun(modelRun *ModelRun) error
	GetModelRunsForRun(runID string) ([]*ModelRun, error)
	GetLatestFingerprint(modelName string) (string, error)

	// Validation operations
	RecordValidation(v *ValidationRecord) error
	GetValidationsForRun(runID string) ([]*ValidationRecord, error)
}

// RunStatus represents the status of a pipeline run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents a pipeline execution session.
type Run struct {
	ID          string
	Environment string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// ModelRunStatus represents the status of an individual model execution.
type ModelRunStatus string

// Model run status constants.
const (
	ModelRunStatusPending ModelRunStatus = "pending"
	ModelRunStatusSuccess ModelRunStatus = "success"
	ModelRunStatusFailed  ModelRunStatus = "failed"
	ModelRunStatusSkipped ModelRunStatus = "skipped"
)

// ModelRun represents a single execution of a model within a run.
type ModelRun struct {
	ID           string
	RunID        string
	ModelName    string
	Layer        Layer
	Status       ModelRunStatus
	RowsIn       int64
	RowsOut      int64
	RowsDropped  int64
	ValuesNulled int64
	Fingerprint  string
	StartedAt    time.Time
	ExecutionMS  int64
	Error        string
}

// ValidationRecord is the persisted outcome of one validation rule.
type ValidationRecord struct {
	RunID         string
	RuleName      string
	TableName     string
	Severity      string
	Passed        bool
	Skipped       bool
	ViolatingRows int64
	Error         string
}
