package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/leapstack-labs/leapflow/pkg/core"
)

// CSVProvider reads raw tables from <name>.csv files. The first record is
// the header. Empty fields are kept as empty strings.
type CSVProvider struct {
	fsys fs.FS
	desc string
}

// NewCSVProvider reads from a directory on disk.
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{fsys: os.DirFS(dir), desc: dir}
}

// NewCSVProviderFS reads from an fs.FS.
func NewCSVProviderFS(fsys fs.FS, desc string) *CSVProvider {
	return &CSVProvider{fsys: fsys, desc: desc}
}

// Tables lists the table names available, sorted.
func (p *CSVProvider) Tables() ([]string, error) {
	entries, err := fs.ReadDir(p.fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", p.desc, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".csv"))
	}
	return names, nil
}

// RawTable implements Provider. When the file has no ingested_at column one is
// added from the file modification time, if the file system reports one.
func (p *CSVProvider) RawTable(ctx context.Context, name string) (*core.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file := path.Clean(name) + ".csv"
	f, err := p.fsys.Open(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s in %s", ErrTableNotFound, name, p.desc)
		}
		return nil, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", file, err)
	}

	t, err := ReadCSV(name, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	if mod := info.ModTime(); !mod.IsZero() {
		t = stampIngestedAt(t, mod)
	}
	return t, nil
}

// ReadCSV reads a headed CSV document into a raw table.
func ReadCSV(name string, r io.Reader) (*core.Table, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file, expected a header row")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := newRawTable(name, header)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		row := make(core.Row, len(record))
		for i, v := range record {
			row[i] = v
		}
		t.Append(row)
	}
	return t, nil
}
