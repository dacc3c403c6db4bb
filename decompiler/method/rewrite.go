package method

import (
	"fmt"

	"github.com/dhamidi/decaf/decompiler/cfg"
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/graph"
	"github.com/dhamidi/decaf/decompiler/stmt"
	"github.com/dhamidi/decaf/decompiler/vars"
)

// Body is a method body under simplification.
type Body struct {
	Root   *stmt.Root
	In     *Input
	Vars   *vars.Processor
	Params []vars.Param

	flow *graph.DirectGraph
}

// Flow returns the flattened graph of the body, building it on first use
// after a change.
func (b *Body) Flow() *graph.DirectGraph {
	if b.flow == nil {
		b.flow = graph.Build(b.Root)
	}
	return b.flow
}

// Changed drops derived state after the statement tree was modified.
func (b *Body) Changed() { b.flow = nil }

// Rewrite is one local simplification. Apply reports whether it changed
// the body.
type Rewrite interface {
	Name() string
	Apply(b *Body) bool
}

type rewriteFunc struct {
	name string
	fn   func(b *Body) bool
}

func (r rewriteFunc) Name() string { return r.name }

func (r rewriteFunc) Apply(b *Body) bool { return r.fn(b) }

// RewriteFunc adapts a function to the Rewrite interface.
func RewriteFunc(name string, fn func(b *Body) bool) Rewrite {
	return rewriteFunc{name: name, fn: fn}
}

// Fixpoint applies passes in order, round after round, until a whole
// round changes nothing. check runs before each round; more than max
// rounds fail with ErrLimitExceeded.
func Fixpoint(b *Body, passes []Rewrite, max int, check func() error) error {
	for round := 0; ; round++ {
		if round >= max {
			return fmt.Errorf("no fixpoint after %d rounds: %w", max, ErrLimitExceeded)
		}
		if check != nil {
			if err := check(); err != nil {
				return err
			}
		}
		changed := false
		for _, p := range passes {
			if p.Apply(b) {
				log.Debugf("%s: %s changed the body", b.In, p.Name())
				b.Changed()
				changed = true
			}
		}
		if !changed {
			return nil
		}
	}
}

// exprList is a run of expressions evaluated in order: a leaf, or a head
// followed by the condition, value or lock it feeds.
type exprList struct {
	owner stmt.Stmt
	leaf  *stmt.Basic
	tail  *exprent.Expr
}

// exprLists returns the expression runs of every statement below root.
func exprLists(root stmt.Stmt) []exprList {
	var out []exprList
	heads := make(map[*stmt.Basic]bool)
	stmt.Walk(root, func(s stmt.Stmt) bool {
		switch x := s.(type) {
		case *stmt.If:
			out = append(out, exprList{x, x.Head, &x.Cond})
			heads[x.Head] = true
		case *stmt.Switch:
			out = append(out, exprList{x, x.Head, &x.Value})
			heads[x.Head] = true
		case *stmt.Sync:
			out = append(out, exprList{x, x.Head, &x.Lock})
			heads[x.Head] = true
		case *stmt.Loop:
			if x.Kind == stmt.LoopWhile && x.Head != nil {
				out = append(out, exprList{x, x.Head, &x.Cond})
				heads[x.Head] = true
			}
		}
		return true
	})
	stmt.Walk(root, func(s stmt.Stmt) bool {
		if leaf, ok := s.(*stmt.Basic); ok && !heads[leaf] {
			out = append(out, exprList{owner: leaf, leaf: leaf})
		}
		return true
	})
	return out
}

// positions returns pointers to the expressions of l in evaluation order.
func (l exprList) positions() []*exprent.Expr {
	var out []*exprent.Expr
	if l.leaf != nil {
		for i := range l.leaf.Exprs {
			out = append(out, &l.leaf.Exprs[i])
		}
	}
	if l.tail != nil && *l.tail != nil {
		out = append(out, l.tail)
	}
	return out
}

// removeAt deletes the i-th leaf expression of l.
func (l exprList) removeAt(i int) {
	l.leaf.Exprs = append(l.leaf.Exprs[:i], l.leaf.Exprs[i+1:]...)
}

func (l exprList) leafLen() int {
	if l.leaf == nil {
		return 0
	}
	return len(l.leaf.Exprs)
}

// allExprs returns every top-level expression of the body.
func allExprs(root stmt.Stmt) []exprent.Expr {
	var out []exprent.Expr
	stmt.ForEachExpr(root, func(e *exprent.Expr) {
		if *e != nil {
			out = append(out, *e)
		}
	})
	return out
}

// gotoTargets collects the leaves that gotos jump to; they must keep
// their identity.
func gotoTargets(root stmt.Stmt) map[*stmt.Basic]bool {
	blocks := make(map[*cfg.Block]bool)
	stmt.Walk(root, func(s stmt.Stmt) bool {
		if j, ok := s.(*stmt.Jump); ok && j.Kind == stmt.Goto {
			blocks[j.Block] = true
		}
		return true
	})
	out := make(map[*stmt.Basic]bool)
	if len(blocks) == 0 {
		return out
	}
	stmt.Walk(root, func(s stmt.Stmt) bool {
		if b, ok := s.(*stmt.Basic); ok && b.Block != nil && blocks[b.Block] {
			out[b] = true
		}
		return true
	})
	return out
}
