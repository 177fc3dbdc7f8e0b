package core

import (
	"fmt"
	"strings"
)

// CycleError is returned when model references form a cycle.
type CycleError struct {
	// Models lists every model participating in a cycle, sorted.
	Models []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected between models: %s", strings.Join(e.Models, ", "))
}

// UnknownReferenceError is returned when a reference is neither a registered
// model nor a declared raw table.
type UnknownReferenceError struct {
	Model string
	Ref   string
}

func (e *UnknownReferenceError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("unknown reference %q", e.Ref)
	}
	return fmt.Sprintf("model %q references unknown table %q", e.Model, e.Ref)
}
