// Package registry holds the named transformation models of a pipeline and
// the raw tables they may reference.
//
// Models declare their upstream references as data. The registry resolves
// those names into a dependency graph before anything executes, so a typo or
// a cycle fails the run up front.
package registry

import (
	"fmt"
	"sync"

	"github.com/leapstack-labs/leapflow/internal/dag"
	"github.com/leapstack-labs/leapflow/pkg/core"
)

// ModelRegistry maps model names to models, in registration order.
type ModelRegistry struct {
	mu sync.RWMutex

	// byName maps model names to their definitions: "stg_listings" → *Model
	byName map[string]*core.Model

	// order is the registration order, used as the topological tie-break
	order []string

	// sources tracks declared raw tables
	sources     map[string]struct{}
	sourceOrder []string
}

// NewModelRegistry creates a new empty registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		byName:  make(map[string]*core.Model),
		sources: make(map[string]struct{}),
	}
}

// Register adds a model to the registry.
// Names must be unique across models and raw tables.
func (r *ModelRegistry) Register(model *core.Model) error {
	if model == nil || model.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if model.Transform == nil {
		return fmt.Errorf("model %q has no transform", model.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[model.Name]; exists {
		return fmt.Errorf("model %q is already registered", model.Name)
	}
	if _, exists := r.sources[model.Name]; exists {
		return fmt.Errorf("model %q collides with a raw table of the same name", model.Name)
	}

	if model.Materialized == "" {
		model.Materialized = core.MaterializationTable
	}
	if model.Materialized != core.MaterializationTable {
		return fmt.Errorf("model %q: unsupported materialization %q", model.Name, model.Materialized)
	}

	r.byName[model.Name] = model
	r.order = append(r.order, model.Name)
	return nil
}

// MustRegister is like Register but panics on error.
// It is intended for static model sets built at startup.
func (r *ModelRegistry) MustRegister(model *core.Model) {
	if err := r.Register(model); err != nil {
		panic(err)
	}
}

// RegisterSource declares a raw table name that models may reference.
func (r *ModelRegistry) RegisterSource(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[name]; ok {
		return
	}
	r.sources[name] = struct{}{}
	r.sourceOrder = append(r.sourceOrder, name)
}

// IsSource returns true if the name is a declared raw table.
func (r *ModelRegistry) IsSource(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sources[name]
	return ok
}

// Sources returns the declared raw tables in declaration order.
func (r *ModelRegistry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.sourceOrder))
	copy(out, r.sourceOrder)
	return out
}

// GetModel returns the model registered under name.
func (r *ModelRegistry) GetModel(name string) (*core.Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	model, ok := r.byName[name]
	return model, ok
}

// AllModels returns all registered models in registration order.
func (r *ModelRegistry) AllModels() []*core.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]*core.Model, 0, len(r.order))
	for _, name := range r.order {
		models = append(models, r.byName[name])
	}
	return models
}

// Count returns the number of registered models.
func (r *ModelRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Graph builds the model dependency graph. Raw-table references are checked
// but do not become nodes. Returns *core.UnknownReferenceError for a ref that
// is neither a model nor a raw table, and *core.CycleError for self-references.
func (r *ModelRegistry) Graph() (*dag.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g := dag.NewGraph()
	for _, name := range r.order {
		g.AddNode(name)
	}

	for _, name := range r.order {
		model := r.byName[name]
		for _, ref := range model.Refs {
			if _, isModel := r.byName[ref]; isModel {
				if err := g.AddEdge(ref, name); err != nil {
					return nil, err
				}
				continue
			}
			if _, isSource := r.sources[ref]; isSource {
				continue
			}
			return nil, &core.UnknownReferenceError{Model: name, Ref: ref}
		}
	}

	return g, nil
}

// Resolve returns model names in a valid execution order: every model after
// all of its upstream references, ties broken by registration order.
func (r *ModelRegistry) Resolve() ([]string, error) {
	g, err := r.Graph()
	if err != nil {
		return nil, err
	}

	return g.Sort()
}
