package state

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapflow/pkg/core"
)

// RecordModelRun stores one model execution. An empty ID is generated.
func (s *SQLiteStore) RecordModelRun(mr *core.ModelRun) error {
	if s.db == nil {
		return errNotOpened
	}
	if mr.ID == "" {
		mr.ID = generateID()
	}
	if mr.StartedAt.IsZero() {
		return fmt.Errorf("model run %s: start time is required", mr.ModelName)
	}

	_, err := s.db.ExecContext(ctx(),
		`INSERT INTO model_runs (id, run_id, model_name, layer, status, rows_in, rows_out,
			rows_dropped, values_nulled, fingerprint, started_at, execution_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mr.ID, mr.RunID, mr.ModelName, string(mr.Layer), string(mr.Status), mr.RowsIn, mr.RowsOut,
		mr.RowsDropped, mr.ValuesNulled, mr.Fingerprint, formatTime(mr.StartedAt), mr.ExecutionMS,
		nullString(mr.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to record model run %s: %w", mr.ModelName, err)
	}
	return nil
}

// GetModelRunsForRun returns a run's model executions in start order.
func (s *SQLiteStore) GetModelRunsForRun(runID string) ([]*core.ModelRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT id, run_id, model_name, layer, status, rows_in, rows_out, rows_dropped,
			values_nulled, fingerprint, started_at, execution_ms, error
		 FROM model_runs WHERE run_id = ? ORDER BY started_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get model runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.ModelRun
	for rows.Next() {
		var (
			mr        core.ModelRun
			layer     string
			status    string
			startedAt string
			errMsg    sql.NullString
		)
		if err := rows.Scan(&mr.ID, &mr.RunID, &mr.ModelName, &layer, &status, &mr.RowsIn, &mr.RowsOut,
			&mr.RowsDropped, &mr.ValuesNulled, &mr.Fingerprint, &startedAt, &mr.ExecutionMS, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan model run: %w", err)
		}
		mr.Layer = core.Layer(layer)
		mr.Status = core.ModelRunStatus(status)
		mr.Error = errMsg.String
		if mr.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		out = append(out, &mr)
	}
	return out, rows.Err()
}

// GetLatestFingerprint returns the fingerprint of the model's most recent
// successful execution, or "" if it never succeeded.
func (s *SQLiteStore) GetLatestFingerprint(modelName string) (string, error) {
	if s.db == nil {
		return "", errNotOpened
	}

	var fp string
	err := s.db.QueryRowContext(ctx(),
		`SELECT fingerprint FROM model_runs WHERE model_name = ? AND status = ?
		 ORDER BY started_at DESC, rowid DESC LIMIT 1`,
		modelName, string(core.ModelRunStatusSuccess),
	).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get fingerprint for %s: %w", modelName, err)
	}
	return fp, nil
}
