package starlark

import (
	"fmt"
	"sync"

	"go.starlark.net/starlark"
)

// Env holds the frozen globals shared by the expressions of one table. It is
// safe for concurrent use.
type Env struct {
	globals starlark.StringDict
	threads sync.Pool
}

// NewEnv binds env, and target and this when they are non-nil.
func NewEnv(env string, target *TargetInfo, this *ThisInfo) *Env {
	g := starlark.StringDict{"env": starlark.String(env)}
	if target != nil {
		g["target"] = target.value()
	}
	if this != nil {
		g["this"] = this.value()
	}
	g.Freeze()

	e := &Env{globals: g}
	e.threads.New = func() any {
		return &starlark.Thread{Print: func(*starlark.Thread, string) {}}
	}
	return e
}

// Globals returns the frozen global dict.
func (e *Env) Globals() starlark.StringDict {
	return e.globals
}

// Predicate is a row expression compiled once and evaluated per row.
type Predicate struct {
	name string
	expr string
	fn   starlark.Callable
	env  *Env
}

// Compile parses expr as the body of a one-argument function of row. A
// syntax error or an unknown global fails here rather than on the first row.
func (e *Env) Compile(name, expr string) (*Predicate, error) {
	thread := e.thread(name)
	defer e.threads.Put(thread)

	v, err := starlark.Eval(thread, name, "lambda row: ("+expr+")", e.globals) //nolint:staticcheck // SA1019
	if err != nil {
		return nil, &EvalError{Rule: name, Expr: expr, Err: err}
	}
	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, &EvalError{Rule: name, Expr: expr, Err: fmt.Errorf("compiled to %s, not a function", v.Type())}
	}
	return &Predicate{name: name, expr: expr, fn: fn, env: e}, nil
}

// Match reports the truth value of the expression for row.
func (p *Predicate) Match(row *starlark.Dict) (bool, error) {
	thread := p.env.thread(p.name)
	defer p.env.threads.Put(thread)

	v, err := starlark.Call(thread, p.fn, starlark.Tuple{row}, nil)
	if err != nil {
		return false, &EvalError{Rule: p.name, Expr: p.expr, Err: err}
	}
	return bool(v.Truth()), nil
}

// Eval evaluates a standalone expression against the globals.
func (e *Env) Eval(name, expr string) (starlark.Value, error) {
	thread := e.thread(name)
	defer e.threads.Put(thread)

	v, err := starlark.Eval(thread, name, expr, e.globals) //nolint:staticcheck // SA1019
	if err != nil {
		return nil, &EvalError{Rule: name, Expr: expr, Err: err}
	}
	return v, nil
}

func (e *Env) thread(name string) *starlark.Thread {
	t, _ := e.threads.Get().(*starlark.Thread)
	t.Name = name
	return t
}

// EvalError is a failure to compile or evaluate a rule expression.
type EvalError struct {
	Rule string
	Expr string
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: error evaluating %q: %v", e.Rule, e.Expr, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}
