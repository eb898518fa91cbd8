package matcher

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/splat-replay/splat-replay/internal/frame"
)

// ExprOp is the node kind of a composite expression.
type ExprOp string

const (
	// OpRef evaluates a named matcher or expression.
	OpRef ExprOp = "ref"
	// OpAnd is true when every child is true.
	OpAnd ExprOp = "and"
	// OpOr is true when any child is true.
	OpOr ExprOp = "or"
	// OpNot negates its single child.
	OpNot ExprOp = "not"
)

// Expr is one node of a composite matcher expression tree. Leaves reference
// simple matchers (or other expressions) by name.
type Expr struct {
	Op       ExprOp
	Ref      string
	Children []*Expr
}

// Validate checks the structural rules of the tree.
func (e *Expr) Validate() error {
	switch e.Op {
	case OpRef:
		if e.Ref == "" {
			return fmt.Errorf("ref node without a name")
		}
		if len(e.Children) != 0 {
			return fmt.Errorf("ref node %q must not have children", e.Ref)
		}
	case OpAnd, OpOr:
		if len(e.Children) == 0 {
			return fmt.Errorf("%s node needs at least one child", e.Op)
		}
		for _, c := range e.Children {
			if err := c.Validate(); err != nil {
				return err
			}
		}
	case OpNot:
		if len(e.Children) != 1 {
			return fmt.Errorf("not node needs exactly one child")
		}
		return e.Children[0].Validate()
	default:
		return fmt.Errorf("unknown expression op %q", e.Op)
	}
	return nil
}

// refs appends every referenced name to out.
func (e *Expr) refs(out []string) []string {
	if e.Op == OpRef {
		return append(out, e.Ref)
	}
	for _, c := range e.Children {
		out = c.refs(out)
	}
	return out
}

// evaluate walks the tree. Children of and/or nodes are CPU-bound and
// independent, so they run concurrently under the registry's worker limit.
func (e *Expr) evaluate(ctx context.Context, r *Registry, f *frame.Frame, depth int) (bool, error) {
	switch e.Op {
	case OpRef:
		return r.matchRef(ctx, e.Ref, f, depth)
	case OpNot:
		v, err := e.Children[0].evaluate(ctx, r, f, depth)
		if err != nil {
			return false, err
		}
		return !v, nil
	case OpAnd, OpOr:
		if len(e.Children) == 1 {
			return e.Children[0].evaluate(ctx, r, f, depth)
		}
		results := make([]bool, len(e.Children))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workerLimit())
		for i, child := range e.Children {
			g.Go(func() error {
				v, err := child.evaluate(gctx, r, f, depth)
				if err != nil {
					return err
				}
				results[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return false, err
		}
		if e.Op == OpAnd {
			for _, v := range results {
				if !v {
					return false, nil
				}
			}
			return true, nil
		}
		for _, v := range results {
			if v {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unknown expression op %q", e.Op)
}
