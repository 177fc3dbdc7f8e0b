package adapter

import (
	"context"
	"fmt"
)

// ResultSet is a fully read query result.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// ReadAll runs query and reads every row. []byte values are returned as
// strings so results are safe to keep after the rows are closed.
func ReadAll(ctx context.Context, adp Adapter, query string, args ...any) (*ResultSet, error) {
	rows, err := adp.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return rs, nil
}
