// Package core defines the shared language of the leapflow pipeline.
//
// This package contains:
//   - Domain entities (Model, Table, Run, ModelRun)
//   - Service interfaces (Store)
//   - The structural error taxonomy (CycleError, UnknownReferenceError)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
