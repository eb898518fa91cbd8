package matcher

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/splat-replay/splat-replay/internal/frame"
)

// maxExprDepth bounds recursion through expression references so that a
// mutually recursive configuration fails instead of spinning.
const maxExprDepth = 32

// Registry resolves matcher names to simple matchers or composite
// expressions. It is immutable after construction and safe for concurrent use.
type Registry struct {
	simple      map[string]Matcher
	expressions map[string]*Expr
	workers     int
}

// NewRegistry builds a registry over the given matchers and expressions.
// workers bounds concurrent leaf evaluation; zero means GOMAXPROCS.
func NewRegistry(simple map[string]Matcher, expressions map[string]*Expr, workers int) (*Registry, error) {
	r := &Registry{
		simple:      simple,
		expressions: expressions,
		workers:     workers,
	}
	for name, expr := range expressions {
		if err := expr.Validate(); err != nil {
			return nil, fmt.Errorf("expression %q: %w", name, err)
		}
		for _, ref := range expr.refs(nil) {
			if !r.Has(ref) {
				return nil, fmt.Errorf("expression %q references unknown matcher %q", name, ref)
			}
		}
	}
	return r, nil
}

// Has reports whether a name resolves to a matcher or expression.
func (r *Registry) Has(name string) bool {
	if _, ok := r.simple[name]; ok {
		return true
	}
	_, ok := r.expressions[name]
	return ok
}

// Names returns every registered name, sorted, for diagnostics.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.simple)+len(r.expressions))
	for n := range r.simple {
		names = append(names, n)
	}
	for n := range r.expressions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Match evaluates the named matcher or expression against the frame.
func (r *Registry) Match(ctx context.Context, name string, f *frame.Frame) (bool, error) {
	return r.matchRef(ctx, name, f, 0)
}

// Score evaluates the named matcher's score; only scoring matchers
// (templates) support this.
func (r *Registry) Score(name string, f *frame.Frame) (float64, error) {
	m, ok := r.simple[name]
	if !ok {
		return 0, fmt.Errorf("unknown matcher %q", name)
	}
	s, ok := m.(Scorer)
	if !ok {
		return 0, fmt.Errorf("matcher %q does not score", name)
	}
	return s.Score(f)
}

func (r *Registry) matchRef(ctx context.Context, name string, f *frame.Frame, depth int) (bool, error) {
	if depth > maxExprDepth {
		return false, fmt.Errorf("expression nesting exceeds %d levels at %q", maxExprDepth, name)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if m, ok := r.simple[name]; ok {
		return m.Match(f)
	}
	if expr, ok := r.expressions[name]; ok {
		return expr.evaluate(ctx, r, f, depth+1)
	}
	return false, fmt.Errorf("unknown matcher %q", name)
}

func (r *Registry) workerLimit() int {
	if r.workers > 0 {
		return r.workers
	}
	return runtime.GOMAXPROCS(0)
}
