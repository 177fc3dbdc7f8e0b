package engine

// run.go - pipeline execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/leapflow/internal/dag"
	"github.com/leapstack-labs/leapflow/internal/materialize"
	"github.com/leapstack-labs/leapflow/internal/validate"
	"github.com/leapstack-labs/leapflow/pkg/core"
	"golang.org/x/sync/errgroup"
)

// RunPipeline executes every model in dependency order, then checks the
// rules against the tables materialized by this run.
//
// A cycle or unknown reference fails before anything executes, with a nil
// result. Otherwise the result is always returned; the error joins the
// failures of failed models. A failed model skips all of its transitive
// dependents while independent branches complete. Failed rules never fail
// the run: see PipelineResult.QualityErr.
func (e *Engine) RunPipeline(ctx context.Context) (*PipelineResult, error) {
	order, err := e.registry.Resolve()
	if err != nil {
		return nil, err
	}
	graph, err := e.registry.Graph()
	if err != nil {
		return nil, err
	}

	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}

	run, err := e.store.CreateRun(e.environment)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	e.logger.Info("starting run",
		slog.String("run_id", run.ID),
		slog.String("environment", e.environment),
		slog.Int("models", len(order)),
		slog.Int("threads", max(e.threads, 1)))

	pr := &pipelineRun{
		engine:    e,
		graph:     graph,
		runID:     run.ID,
		raw:       newRawCache(e.provider),
		mat:       e.newMaterializer(),
		outputs:   make(map[string]*core.Table, len(order)),
		results:   make(map[string]ModelResult, len(order)),
		skippedBy: make(map[string]string),
	}

	if e.threads <= 1 {
		for _, name := range order {
			pr.execute(ctx, name)
		}
	} else {
		levels, err := graph.Levels()
		if err != nil {
			return nil, err
		}
		for _, level := range levels {
			var g errgroup.Group
			g.SetLimit(e.threads)
			for _, name := range level {
				g.Go(func() error {
					pr.execute(ctx, name)
					return nil
				})
			}
			_ = g.Wait()
		}
	}

	result := &PipelineResult{
		RunID:       run.ID,
		Environment: e.environment,
		StartedAt:   run.StartedAt,
	}
	var modelErrs []error
	for _, name := range order {
		res := pr.results[name]
		result.Models = append(result.Models, res)
		if res.Status == core.ModelRunStatusFailed {
			modelErrs = append(modelErrs, fmt.Errorf("model %s: %w", name, res.Err))
		}
	}

	result.Validations = pr.validate(ctx)
	result.Status = runStatus(result.Models)
	result.Duration = time.Since(run.StartedAt)

	runErr := errors.Join(modelErrs...)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if err := e.store.CompleteRun(run.ID, result.Status, errMsg); err != nil {
		e.logger.Warn("failed to complete run", slog.String("run_id", run.ID), slog.String("error", err.Error()))
	}

	failedRules, warnedRules, skippedRules := validate.Summary(result.Validations)
	e.logger.Info("run finished",
		slog.String("run_id", run.ID),
		slog.String("status", string(result.Status)),
		slog.Int("succeeded", result.Count(core.ModelRunStatusSuccess)),
		slog.Int("failed", result.Count(core.ModelRunStatusFailed)),
		slog.Int("skipped", result.Count(core.ModelRunStatusSkipped)),
		slog.Int("rules_failed", failedRules),
		slog.Int("rules_warned", warnedRules),
		slog.Int("rules_skipped", skippedRules),
		slog.Duration("duration", result.Duration))

	return result, runErr
}

// pipelineRun is the mutable state of one RunPipeline call.
type pipelineRun struct {
	engine *Engine
	graph  *dag.Graph
	runID  string
	raw    *rawCache
	mat    *materialize.Materializer

	mu        sync.Mutex
	outputs   map[string]*core.Table
	results   map[string]ModelResult
	skippedBy map[string]string
}

func (r *pipelineRun) execute(ctx context.Context, name string) {
	e := r.engine
	m, _ := e.registry.GetModel(name)
	res := ModelResult{Name: name, Layer: m.Layer}
	start := time.Now()

	r.mu.Lock()
	upstream := r.skippedBy[name]
	r.mu.Unlock()
	if upstream != "" {
		res.Status = core.ModelRunStatusSkipped
		res.SkippedBy = upstream
		e.logger.Info("model skipped", slog.String("model", name), slog.String("failed_upstream", upstream))
		r.finish(res, start)
		return
	}

	out, stats, err := r.transform(ctx, m)
	res.RowsIn = stats.RowsIn
	res.RowsDropped = stats.RowsDropped
	res.ValuesNulled = stats.ValuesNulled

	var mat *materialize.Result
	if err == nil {
		mat, err = r.mat.Materialize(ctx, name, out)
	}
	res.Duration = time.Since(start)

	if err != nil {
		res.Status = core.ModelRunStatusFailed
		res.Err = err
		r.failDownstream(name)
		e.logger.Error("model failed", slog.String("model", name), slog.String("error", err.Error()))
		r.finish(res, start)
		return
	}

	previous, ferr := e.store.GetLatestFingerprint(name)
	if ferr != nil {
		e.logger.Warn("failed to read previous fingerprint", slog.String("model", name), slog.String("error", ferr.Error()))
	}

	res.Status = core.ModelRunStatusSuccess
	res.RowsOut = mat.Rows
	res.Fingerprint = mat.Fingerprint
	res.Changed = previous != mat.Fingerprint

	r.mu.Lock()
	r.outputs[name] = out
	r.mu.Unlock()

	e.logger.Info("model materialized",
		slog.String("model", name),
		slog.String("table", mat.Table),
		slog.Int64("rows_in", res.RowsIn),
		slog.Int64("rows_out", res.RowsOut),
		slog.Int64("rows_dropped", res.RowsDropped),
		slog.Int64("values_nulled", res.ValuesNulled),
		slog.Bool("changed", res.Changed),
		slog.Duration("duration", res.Duration))
	r.finish(res, start)
}

func (r *pipelineRun) transform(ctx context.Context, m *core.Model) (*core.Table, core.TransformStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.TransformStats{}, err
	}

	tables := make(map[string]*core.Table, len(m.Refs))
	for _, ref := range m.Refs {
		t, err := r.input(ctx, ref)
		if err != nil {
			return nil, core.TransformStats{}, err
		}
		tables[ref] = t
	}

	policy := m.CastPolicy
	if policy == "" {
		policy = core.CastLenient
	}
	return m.Transform(ctx, core.NewInputs(tables), policy)
}

func (r *pipelineRun) input(ctx context.Context, ref string) (*core.Table, error) {
	if r.engine.registry.IsSource(ref) {
		return r.raw.get(ctx, ref)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.outputs[ref]
	if !ok {
		return nil, fmt.Errorf("upstream model %s has no output", ref)
	}
	return t, nil
}

func (r *pipelineRun) failDownstream(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.graph.Downstream(name) {
		if _, marked := r.skippedBy[d]; !marked {
			r.skippedBy[d] = name
		}
	}
}

func (r *pipelineRun) finish(res ModelResult, start time.Time) {
	r.mu.Lock()
	r.results[res.Name] = res
	r.mu.Unlock()

	mr := &core.ModelRun{
		RunID:        r.runID,
		ModelName:    res.Name,
		Layer:        res.Layer,
		Status:       res.Status,
		RowsIn:       res.RowsIn,
		RowsOut:      res.RowsOut,
		RowsDropped:  res.RowsDropped,
		ValuesNulled: res.ValuesNulled,
		Fingerprint:  res.Fingerprint,
		StartedAt:    start,
		ExecutionMS:  res.Duration.Milliseconds(),
	}
	switch {
	case res.Err != nil:
		mr.Error = res.Err.Error()
	case res.SkippedBy != "":
		mr.Error = "upstream model " + res.SkippedBy + " failed"
	}
	if err := r.engine.store.RecordModelRun(mr); err != nil {
		r.engine.logger.Warn("failed to record model run", slog.String("model", res.Name), slog.String("error", err.Error()))
	}
}

func (r *pipelineRun) validate(ctx context.Context) []validate.Result {
	e := r.engine
	if len(e.rules) == 0 {
		return nil
	}

	materialized := func(table string) bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		_, ok := r.outputs[table]
		return ok
	}
	results := e.newRunner().Run(ctx, e.rules, materialized)

	for _, res := range results {
		rec := &core.ValidationRecord{
			RunID:         r.runID,
			RuleName:      res.Rule.Name,
			TableName:     res.Rule.Table,
			Severity:      string(res.Severity),
			Passed:        res.Passed,
			Skipped:       res.Skipped,
			ViolatingRows: res.ViolatingRows,
		}
		if res.Err != nil {
			rec.Error = res.Err.Error()
		}
		if err := e.store.RecordValidation(rec); err != nil {
			e.logger.Warn("failed to record validation", slog.String("rule", res.Rule.Name), slog.String("error", err.Error()))
		}
		if !res.Passed && !res.Skipped {
			e.logger.Warn("rule failed",
				slog.String("rule", res.Rule.Name),
				slog.String("severity", string(res.Severity)),
				slog.Int64("violating_rows", res.ViolatingRows))
		}
	}
	return results
}
