package ui

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/leapflow/pkg/core"
	"github.com/starfederation/datastar-go/datastar"
)

const defaultRunLimit = 20

// ModelView is one model as served by /api/models.
type ModelView struct {
	Name       string   `json:"name"`
	Layer      string   `json:"layer"`
	CastPolicy string   `json:"cast_policy,omitempty"`
	Reads      []string `json:"reads"`
	DependsOn  []string `json:"depends_on"`
}

// RuleView is one data-quality rule as served by /api/rules.
type RuleView struct {
	Name        string `json:"name"`
	Table       string `json:"table"`
	Kind        string `json:"kind"`
	Severity    string `json:"severity"`
	Description string `json:"description,omitempty"`
}

// RunView summarizes one pipeline run.
type RunView struct {
	ID          string     `json:"id"`
	Environment string     `json:"environment"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ModelRunView is one model outcome within a run.
type ModelRunView struct {
	Name         string `json:"name"`
	Layer        string `json:"layer"`
	Status       string `json:"status"`
	RowsIn       int64  `json:"rows_in"`
	RowsOut      int64  `json:"rows_out"`
	RowsDropped  int64  `json:"rows_dropped"`
	ValuesNulled int64  `json:"values_nulled"`
	DurationMS   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

// ValidationView is one rule outcome within a run.
type ValidationView struct {
	Rule          string `json:"rule"`
	Table         string `json:"table"`
	Severity      string `json:"severity"`
	Passed        bool   `json:"passed"`
	Skipped       bool   `json:"skipped"`
	ViolatingRows int64  `json:"violating_rows"`
	Error         string `json:"error,omitempty"`
}

// RunDetailView is served by /api/runs/{id}.
type RunDetailView struct {
	Run         RunView          `json:"run"`
	Models      []ModelRunView   `json:"models"`
	Validations []ValidationView `json:"validations"`
}

type errorView struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorView{Error: err.Error()})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	views, err := s.modelViews()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ruleViews())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorView{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := s.runViews(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	store := s.pipeline.Store()
	id := chi.URLParam(r, "id")

	run, err := store.GetRun(id)
	if err != nil || run == nil {
		writeJSON(w, http.StatusNotFound, errorView{Error: "run not found: " + id})
		return
	}
	modelRuns, err := store.GetModelRunsForRun(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	validations, err := store.GetValidationsForRun(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	detail := RunDetailView{
		Run:         runView(run),
		Models:      make([]ModelRunView, 0, len(modelRuns)),
		Validations: make([]ValidationView, 0, len(validations)),
	}
	for _, mr := range modelRuns {
		detail.Models = append(detail.Models, ModelRunView{
			Name:         mr.ModelName,
			Layer:        string(mr.Layer),
			Status:       string(mr.Status),
			RowsIn:       mr.RowsIn,
			RowsOut:      mr.RowsOut,
			RowsDropped:  mr.RowsDropped,
			ValuesNulled: mr.ValuesNulled,
			DurationMS:   mr.ExecutionMS,
			Error:        mr.Error,
		})
	}
	for _, v := range validations {
		detail.Validations = append(detail.Validations, ValidationView{
			Rule:          v.RuleName,
			Table:         v.TableName,
			Severity:      v.Severity,
			Passed:        v.Passed,
			Skipped:       v.Skipped,
			ViolatingRows: v.ViolatingRows,
			Error:         v.Error,
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleRun executes the pipeline once. A run already in progress yields 409.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.runMu.TryLock() {
		writeJSON(w, http.StatusConflict, errorView{Error: "a run is already in progress"})
		return
	}
	defer s.runMu.Unlock()

	// A failed model still yields a recorded run; only a run that never
	// started is an error here.
	result, err := s.pipeline.RunPipeline(r.Context())
	if result == nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err != nil {
		s.logger.Warn("pipeline run finished with failures", "run_id", result.RunID, "error", err)
	}

	s.notifier.Broadcast(Event{Kind: EventRunCompleted, RunID: result.RunID})

	run, err := s.pipeline.Store().GetRun(result.RunID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runView(run))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := s.indexData()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := IndexPage(data).Render(r.Context(), w); err != nil {
		s.logger.Error("failed to render index", "error", err)
	}
}

// handleUpdates is the long-lived SSE stream of the dashboard. The page is
// rendered by handleIndex; this only patches the parts that change.
func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-updates:
			fragment, err := s.renderUpdate(ev)
			if err != nil {
				_ = sse.ConsoleError(err)
				continue
			}
			if err := sse.PatchElementTempl(fragment); err != nil {
				return
			}
		}
	}
}

func (s *Server) modelViews() ([]ModelView, error) {
	reg := s.pipeline.Registry()
	order, err := reg.Resolve()
	if err != nil {
		return nil, err
	}

	views := make([]ModelView, 0, len(order))
	for _, name := range order {
		m, _ := reg.GetModel(name)
		view := ModelView{Name: name, Layer: string(m.Layer), Reads: []string{}, DependsOn: []string{}}
		for _, ref := range m.Refs {
			if reg.IsSource(ref) {
				view.Reads = append(view.Reads, ref)
			} else {
				view.DependsOn = append(view.DependsOn, ref)
			}
		}
		if m.Layer == core.LayerStaging {
			view.CastPolicy = string(m.CastPolicy)
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Server) ruleViews() []RuleView {
	rules := s.pipeline.Rules()
	views := make([]RuleView, 0, len(rules))
	for _, rule := range rules {
		views = append(views, RuleView{
			Name:        rule.Name,
			Table:       rule.Table,
			Kind:        string(rule.Kind),
			Severity:    string(rule.Severity),
			Description: rule.Description,
		})
	}
	return views
}

func (s *Server) runViews(limit int) ([]RunView, error) {
	runs, err := s.pipeline.Store().ListRuns(limit)
	if err != nil {
		return nil, err
	}
	views := make([]RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, runView(run))
	}
	return views, nil
}

func runView(run *core.Run) RunView {
	return RunView{
		ID:          run.ID,
		Environment: run.Environment,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Error:       run.Error,
	}
}
