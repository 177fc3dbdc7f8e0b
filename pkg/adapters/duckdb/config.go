package duckdb

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var settingName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// settingStatements turns target options into session SET statements, e.g.
// {"memory_limit": "2GB", "threads": "4"}. Options with names that are not
// plain identifiers are ignored. Output is sorted by name.
func settingStatements(options map[string]string) []string {
	names := make([]string, 0, len(options))
	for name := range options {
		if settingName.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	stmts := make([]string, len(names))
	for i, name := range names {
		value := strings.ReplaceAll(options[name], "'", "''")
		stmts[i] = fmt.Sprintf("SET %s = '%s'", name, value)
	}
	return stmts
}
