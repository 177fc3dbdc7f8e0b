package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/leapflow/internal/testutil"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)

	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)

	if _, err := store.CreateRun("dev"); err == nil {
		t.Error("expected error before Open")
	}
	if err := store.InitSchema(); err == nil {
		t.Error("expected error before Open")
	}
}

func TestSQLiteStore_InitSchema(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"runs", "model_runs", "validations"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
			continue
		}
		_ = rows.Close()
	}

	version, err := store.GetMigrationVersion()
	if err != nil {
		t.Fatalf("failed to get migration version: %v", err)
	}
	if version != 1 {
		t.Errorf("expected migration version 1, got %d", version)
	}

	// Migrating twice is a no-op.
	if err := store.InitSchema(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

func TestSQLiteStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	if err := store.Open(path); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	run, err := store.CreateRun("dev")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	_ = store.Close()

	reopened := NewSQLiteStore(nil)
	if err := reopened.Open(path); err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()
	if err := reopened.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	got, err := reopened.GetRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if !got.StartedAt.Equal(run.StartedAt) {
		t.Errorf("expected started_at %v, got %v", run.StartedAt, got.StartedAt)
	}
}

// --- Run lifecycle tests ---

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T, store *SQLiteStore) *core.Run
		operation func(t *testing.T, store *SQLiteStore, run *core.Run)
		verify    func(t *testing.T, store *SQLiteStore, run *core.Run)
	}{
		{
			name: "create run",
			setup: func(t *testing.T, store *SQLiteStore) *core.Run {
				run, err := store.CreateRun("production")
				if err != nil {
					t.Fatalf("failed to create run: %v", err)
				}
				return run
			},
			verify: func(t *testing.T, _ *SQLiteStore, run *core.Run) {
				if run.ID == "" {
					t.Error("run ID should not be empty")
				}
				if run.Environment != "production" {
					t.Errorf("expected environment 'production', got %q", run.Environment)
				}
				if run.Status != core.RunStatusRunning {
					t.Errorf("expected status 'running', got %q", run.Status)
				}
			},
		},
		{
			name: "get run",
			setup: func(t *testing.T, store *SQLiteStore) *core.Run {
				run, err := store.CreateRun("staging")
				if err != nil {
					t.Fatalf("failed to create run: %v", err)
				}
				return run
			},
			operation: func(t *testing.T, store *SQLiteStore, run *core.Run) {
				retrieved, err := store.GetRun(run.ID)
				if err != nil {
					t.Fatalf("failed to get run: %v", err)
				}
				if retrieved.ID != run.ID {
					t.Errorf("expected ID %q, got %q", run.ID, retrieved.ID)
				}
				if retrieved.Environment != "staging" {
					t.Errorf("expected environment 'staging', got %q", retrieved.Environment)
				}
				if retrieved.CompletedAt != nil {
					t.Error("running run should have no completed_at")
				}
			},
		},
		{
			name: "get run not found",
			operation: func(t *testing.T, store *SQLiteStore, _ *core.Run) {
				if _, err := store.GetRun("nonexistent-id"); err == nil {
					t.Error("expected error for nonexistent run")
				}
			},
		},
		{
			name: "complete run success",
			setup: func(t *testing.T, store *SQLiteStore) *core.Run {
				run, _ := store.CreateRun("dev")
				return run
			},
			operation: func(t *testing.T, store *SQLiteStore, run *core.Run) {
				if err := store.CompleteRun(run.ID, core.RunStatusCompleted, ""); err != nil {
					t.Fatalf("failed to complete run: %v", err)
				}
			},
			verify: func(t *testing.T, store *SQLiteStore, run *core.Run) {
				retrieved, _ := store.GetRun(run.ID)
				if retrieved.Status != core.RunStatusCompleted {
					t.Errorf("expected status 'completed', got %q", retrieved.Status)
				}
				if retrieved.CompletedAt == nil {
					t.Error("completed_at should not be nil")
				}
				if retrieved.Error != "" {
					t.Errorf("expected no error, got %q", retrieved.Error)
				}
			},
		},
		{
			name: "complete run partially",
			setup: func(t *testing.T, store *SQLiteStore) *core.Run {
				run, _ := store.CreateRun("dev")
				return run
			},
			operation: func(t *testing.T, store *SQLiteStore, run *core.Run) {
				if err := store.CompleteRun(run.ID, core.RunStatusPartial, "dim_listings failed"); err != nil {
					t.Fatalf("failed to complete run: %v", err)
				}
			},
			verify: func(t *testing.T, store *SQLiteStore, run *core.Run) {
				retrieved, _ := store.GetRun(run.ID)
				if retrieved.Status != core.RunStatusPartial {
					t.Errorf("expected status 'partial', got %q", retrieved.Status)
				}
				if retrieved.Error != "dim_listings failed" {
					t.Errorf("expected error message, got %q", retrieved.Error)
				}
			},
		},
		{
			name: "complete unknown run",
			operation: func(t *testing.T, store *SQLiteStore, _ *core.Run) {
				if err := store.CompleteRun("missing", core.RunStatusFailed, "x"); err == nil {
					t.Error("expected error for unknown run")
				}
			},
		},
		{
			name: "get latest run",
			setup: func(t *testing.T, store *SQLiteStore) *core.Run {
				_, _ = store.CreateRun("prod")
				time.Sleep(2 * time.Millisecond)
				run2, _ := store.CreateRun("prod")
				_, _ = store.CreateRun("dev")
				return run2
			},
			verify: func(t *testing.T, store *SQLiteStore, run *core.Run) {
				latest, err := store.GetLatestRun("prod")
				if err != nil {
					t.Fatalf("failed to get latest run: %v", err)
				}
				if latest == nil || latest.ID != run.ID {
					t.Errorf("expected latest run ID %q, got %+v", run.ID, latest)
				}
			},
		},
		{
			name: "get latest run no runs",
			verify: func(t *testing.T, store *SQLiteStore, _ *core.Run) {
				latest, err := store.GetLatestRun("nonexistent")
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if latest != nil {
					t.Error("expected nil for nonexistent environment")
				}
			},
		},
		{
			name: "list runs newest first",
			setup: func(t *testing.T, store *SQLiteStore) *core.Run {
				for range 3 {
					if _, err := store.CreateRun("dev"); err != nil {
						t.Fatalf("failed to create run: %v", err)
					}
					time.Sleep(2 * time.Millisecond)
				}
				return nil
			},
			verify: func(t *testing.T, store *SQLiteStore, _ *core.Run) {
				runs, err := store.ListRuns(2)
				if err != nil {
					t.Fatalf("failed to list runs: %v", err)
				}
				if len(runs) != 2 {
					t.Fatalf("expected 2 runs, got %d", len(runs))
				}
				if !runs[0].StartedAt.After(runs[1].StartedAt) {
					t.Error("expected newest run first")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)

			var run *core.Run
			if tt.setup != nil {
				run = tt.setup(t, store)
			}
			if tt.operation != nil {
				tt.operation(t, store, run)
			}
			if tt.verify != nil {
				tt.verify(t, store, run)
			}
		})
	}
}

// --- Model run tests ---

func modelRun(runID, name string, status core.ModelRunStatus, fingerprint string, started time.Time) *core.ModelRun {
	return &core.ModelRun{
		RunID:       runID,
		ModelName:   name,
		Layer:       core.LayerDimensional,
		Status:      status,
		RowsIn:      10,
		RowsOut:     9,
		RowsDropped: 1,
		Fingerprint: fingerprint,
		StartedAt:   started,
		ExecutionMS: 12,
	}
}

func TestSQLiteStore_ModelRuns(t *testing.T) {
	store := setupTestStore(t)
	run, err := store.CreateRun("dev")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ok := modelRun(run.ID, "dim_listings", core.ModelRunStatusSuccess, "aaaa", start)
	failed := modelRun(run.ID, "fact_reviews", core.ModelRunStatusFailed, "", start.Add(time.Second))
	failed.Error = "boom"

	for _, mr := range []*core.ModelRun{ok, failed} {
		if err := store.RecordModelRun(mr); err != nil {
			t.Fatalf("failed to record model run: %v", err)
		}
		if mr.ID == "" {
			t.Error("model run ID should be generated")
		}
	}

	got, err := store.GetModelRunsForRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get model runs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 model runs, got %d", len(got))
	}
	if got[0].ModelName != "dim_listings" || got[1].ModelName != "fact_reviews" {
		t.Errorf("unexpected order: %s, %s", got[0].ModelName, got[1].ModelName)
	}
	if got[0].Layer != core.LayerDimensional || got[0].RowsDropped != 1 || got[0].Fingerprint != "aaaa" {
		t.Errorf("fields not round-tripped: %+v", got[0])
	}
	if !got[0].StartedAt.Equal(start) {
		t.Errorf("expected started_at %v, got %v", start, got[0].StartedAt)
	}
	if got[1].Error != "boom" {
		t.Errorf("expected error 'boom', got %q", got[1].Error)
	}
}

func TestSQLiteStore_RecordModelRunRequiresStart(t *testing.T) {
	store := setupTestStore(t)
	run, _ := store.CreateRun("dev")

	if err := store.RecordModelRun(&core.ModelRun{RunID: run.ID, ModelName: "x"}); err == nil {
		t.Error("expected error for zero start time")
	}
}

func TestSQLiteStore_RecordModelRunUnknownRun(t *testing.T) {
	store := setupTestStore(t)

	mr := modelRun("no-such-run", "dim_listings", core.ModelRunStatusSuccess, "aaaa", time.Now())
	if err := store.RecordModelRun(mr); err == nil {
		t.Error("expected foreign key violation")
	}
}

func TestSQLiteStore_GetLatestFingerprint(t *testing.T) {
	store := setupTestStore(t)
	run, _ := store.CreateRun("dev")
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	fp, err := store.GetLatestFingerprint("dim_listings")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fp != "" {
		t.Errorf("expected empty fingerprint, got %q", fp)
	}

	records := []*core.ModelRun{
		modelRun(run.ID, "dim_listings", core.ModelRunStatusSuccess, "first", start),
		modelRun(run.ID, "dim_listings", core.ModelRunStatusSuccess, "second", start.Add(time.Minute)),
		modelRun(run.ID, "dim_listings", core.ModelRunStatusFailed, "", start.Add(2*time.Minute)),
	}
	for _, mr := range records {
		if err := store.RecordModelRun(mr); err != nil {
			t.Fatalf("failed to record model run: %v", err)
		}
	}

	fp, err = store.GetLatestFingerprint("dim_listings")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fp != "second" {
		t.Errorf("expected latest successful fingerprint 'second', got %q", fp)
	}
}

// --- Validation tests ---

func TestSQLiteStore_Validations(t *testing.T) {
	store := setupTestStore(t)
	run, _ := store.CreateRun("dev")

	records := []*core.ValidationRecord{
		{RunID: run.ID, RuleName: "dim_listings_price_positive", TableName: "dim_listings", Severity: "error", ViolatingRows: 3},
		{RunID: run.ID, RuleName: "fk", TableName: "fact_reviews", Severity: "warn", Skipped: true},
		{RunID: run.ID, RuleName: "broken", TableName: "dim_listings", Severity: "error", Error: "no such column"},
		{RunID: run.ID, RuleName: "ok", TableName: "dim_listings", Severity: "error", Passed: true},
	}
	for _, v := range records {
		if err := store.RecordValidation(v); err != nil {
			t.Fatalf("failed to record validation: %v", err)
		}
	}

	got, err := store.GetValidationsForRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get validations: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("expected %d validations, got %d", len(records), len(got))
	}
	for i, v := range got {
		if *v != *records[i] {
			t.Errorf("validation %d: expected %+v, got %+v", i, *records[i], *v)
		}
	}

	other, err := store.GetValidationsForRun("other")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no validations for another run, got %d", len(other))
	}
}
