package output

import "github.com/leapstack-labs/leapflow/internal/validate"

// ModelReport is the JSON form of one model result.
type ModelReport struct {
	Name         string `json:"name"`
	Layer        string `json:"layer"`
	Status       string `json:"status"`
	RowsIn       int64  `json:"rows_in"`
	RowsOut      int64  `json:"rows_out"`
	RowsDropped  int64  `json:"rows_dropped"`
	ValuesNulled int64  `json:"values_nulled"`
	Fingerprint  string `json:"fingerprint,omitempty"`
	Changed      bool   `json:"changed"`
	DurationMS   int64  `json:"duration_ms"`
	SkippedBy    string `json:"skipped_by,omitempty"`
	Error        string `json:"error,omitempty"`
}

// RunReport is the JSON output of the run command.
type RunReport struct {
	RunID       string            `json:"run_id"`
	Environment string            `json:"environment"`
	Status      string            `json:"status"`
	StartedAt   string            `json:"started_at"`
	DurationMS  int64             `json:"duration_ms"`
	Models      []ModelReport     `json:"models"`
	Validations []validate.Report `json:"validations"`
}

// TestReport is the JSON output of the test command.
type TestReport struct {
	Passed      bool              `json:"passed"`
	Errors      int               `json:"errors"`
	Warnings    int               `json:"warnings"`
	Skipped     int               `json:"skipped"`
	Validations []validate.Report `json:"validations"`
}

// DAGNode is one model in the DAG output.
type DAGNode struct {
	Name      string   `json:"name"`
	Layer     string   `json:"layer"`
	DependsOn []string `json:"depends_on"`
	UsedBy    []string `json:"used_by"`
	Sources   []string `json:"sources,omitempty"`
}

// DAGLevel groups models that can run in parallel.
type DAGLevel struct {
	Level  int       `json:"level"`
	Models []DAGNode `json:"models"`
}

// DAGOutput is the JSON output of the dag command.
type DAGOutput struct {
	Order       []string   `json:"order"`
	Levels      []DAGLevel `json:"levels"`
	TotalModels int        `json:"total_models"`
	TotalEdges  int        `json:"total_edges"`
}

// RunSummary is one row of the runs command output.
type RunSummary struct {
	ID          string `json:"id"`
	Environment string `json:"environment"`
	Status      string `json:"status"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

// SeedReport is the JSON output of the seed command.
type SeedReport struct {
	Schema string      `json:"schema"`
	Tables []SeedTable `json:"tables"`
}

// SeedTable is one loaded raw table.
type SeedTable struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// LineageNode is a model or raw table in a lineage report.
type LineageNode struct {
	ID    string `json:"id"`
	Type  string `json:"type"` // "model" or "raw"
	Layer string `json:"layer,omitempty"`
}

// LineageEdge is a dependency between two lineage nodes.
type LineageEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// LineageStats summarizes a lineage report.
type LineageStats struct {
	TotalNodes      int `json:"total_nodes"`
	UpstreamCount   int `json:"upstream_count"`
	DownstreamCount int `json:"downstream_count"`
}

// LineageOutput is the JSON output for the lineage command.
type LineageOutput struct {
	Root       string        `json:"root"`
	Upstream   []string      `json:"upstream"`
	Downstream []string      `json:"downstream"`
	Nodes      []LineageNode `json:"nodes"`
	Edges      []LineageEdge `json:"edges"`
	Stats      LineageStats  `json:"stats"`
}

// LastRunInfo is a model's outcome in the latest run of the environment.
type LastRunInfo struct {
	RunID        string `json:"run_id"`
	Status       string `json:"status"`
	RowsOut      int64  `json:"rows_out"`
	RowsDropped  int64  `json:"rows_dropped"`
	ValuesNulled int64  `json:"values_nulled"`
	DurationMS   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

// ModelInfo describes one model in the list command output.
type ModelInfo struct {
	Name       string       `json:"name"`
	Layer      string       `json:"layer"`
	CastPolicy string       `json:"cast_policy,omitempty"`
	Reads      []string     `json:"reads"`
	DependsOn  []string     `json:"depends_on"`
	UsedBy     []string     `json:"used_by"`
	LastRun    *LastRunInfo `json:"last_run,omitempty"`
}

// ListSummary aggregates the list command output.
type ListSummary struct {
	TotalModels int            `json:"total_models"`
	ByLayer     map[string]int `json:"by_layer"`
	ByStatus    map[string]int `json:"by_status"`
}

// ListOutput is the JSON output of the list command.
type ListOutput struct {
	Environment string      `json:"environment"`
	Models      []ModelInfo `json:"models"`
	Summary     ListSummary `json:"summary"`
}
