package state

import (
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/leapflow/pkg/core"
)

// RecordValidation stores one rule outcome.
func (s *SQLiteStore) RecordValidation(v *core.ValidationRecord) error {
	if s.db == nil {
		return errNotOpened
	}

	_, err := s.db.ExecContext(ctx(),
		`INSERT INTO validations (run_id, rule_name, table_name, severity, passed, skipped, violating_rows, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.RunID, v.RuleName, v.TableName, v.Severity, v.Passed, v.Skipped, v.ViolatingRows, nullString(v.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to record validation %s: %w", v.RuleName, err)
	}
	return nil
}

// GetValidationsForRun returns a run's rule outcomes in recording order.
func (s *SQLiteStore) GetValidationsForRun(runID string) ([]*core.ValidationRecord, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT run_id, rule_name, table_name, severity, passed, skipped, violating_rows, error
		 FROM validations WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get validations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.ValidationRecord
	for rows.Next() {
		var (
			v      core.ValidationRecord
			errMsg sql.NullString
		)
		if err := rows.Scan(&v.RunID, &v.RuleName, &v.TableName, &v.Severity, &v.Passed, &v.Skipped,
			&v.ViolatingRows, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan validation: %w", err)
		}
		v.Error = errMsg.String
		out = append(out, &v)
	}
	return out, rows.Err()
}
