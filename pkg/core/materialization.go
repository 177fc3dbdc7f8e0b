package core

// Materialization constants for model types.
// Only full-refresh tables are supported.
const (
	MaterializationTable = "table"
)
