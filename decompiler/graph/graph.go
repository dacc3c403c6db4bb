// Package graph flattens a statement tree into a graph of expression
// lists. Whole-method passes walk it instead of the nested tree: version
// assignment runs data flow over it and the class linker rewrites
// variable references through it.
package graph

import (
	"github.com/tliron/commonlog"

	"github.com/dhamidi/decaf/decompiler/cfg"
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/stmt"
)

var log = commonlog.GetLogger("decaf.graph")

// Node is one straight-line list of expression positions. The pointers
// address slots inside the statement tree, so rewriting through a node
// rewrites the tree.
type Node struct {
	ID    int
	Exprs []*exprent.Expr
	Succs []int
	Preds []int
	Stmt  stmt.Stmt
}

// DirectGraph is the flattened view of one method body.
type DirectGraph struct {
	Nodes []*Node
	entry int
}

func (g *DirectGraph) Len() int          { return len(g.Nodes) }
func (g *DirectGraph) Entry() int        { return g.entry }
func (g *DirectGraph) Succs(n int) []int { return g.Nodes[n].Succs }

func (g *DirectGraph) Exprs(n int) []exprent.Expr {
	out := make([]exprent.Expr, 0, len(g.Nodes[n].Exprs))
	for _, e := range g.Nodes[n].Exprs {
		if *e != nil {
			out = append(out, *e)
		}
	}
	return out
}

// ForEachExpr calls fn for every expression position, node by node.
func (g *DirectGraph) ForEachExpr(fn func(*exprent.Expr)) {
	for _, n := range g.Nodes {
		for _, e := range n.Exprs {
			if *e != nil {
				fn(e)
			}
		}
	}
}

// RewriteAll applies exprent.Rewrite to every position and reports
// whether anything changed.
func (g *DirectGraph) RewriteAll(fn func(exprent.Expr) (exprent.Expr, bool)) bool {
	changed := false
	g.ForEachExpr(func(e *exprent.Expr) {
		if exprent.Rewrite(e, fn) {
			changed = true
		}
	})
	return changed
}

type pendingGoto struct {
	from  *Node
	block *cfg.Block
}

type builder struct {
	g       *DirectGraph
	breaks  map[stmt.Stmt][]*Node
	conts   map[stmt.Stmt]*Node
	byBlock map[*cfg.Block]*Node
	gotos   []pendingGoto
	catches []*[]*Node
}

// Build flattens root. Break and continue become edges to the node after
// their target or to its continuation point; the nodes of a try body get
// edges to every handler so definitions in the body reach the handlers.
func Build(root *stmt.Root) *DirectGraph {
	b := &builder{
		g:       &DirectGraph{},
		breaks:  make(map[stmt.Stmt][]*Node),
		conts:   make(map[stmt.Stmt]*Node),
		byBlock: make(map[*cfg.Block]*Node),
	}
	entry, _ := b.flow(root.Body)
	b.g.entry = entry.ID
	for _, p := range b.gotos {
		if to, ok := b.byBlock[p.block]; ok {
			link(p.from, to)
		} else {
			log.Debugf("goto to %s has no node", p.block)
		}
	}
	return b.g
}

func (b *builder) node(s stmt.Stmt, exprs ...*exprent.Expr) *Node {
	n := &Node{ID: len(b.g.Nodes), Exprs: exprs, Stmt: s}
	b.g.Nodes = append(b.g.Nodes, n)
	for _, c := range b.catches {
		*c = append(*c, n)
	}
	return n
}

func link(from, to *Node) {
	for _, s := range from.Succs {
		if s == to.ID {
			return
		}
	}
	from.Succs = append(from.Succs, to.ID)
	to.Preds = append(to.Preds, from.ID)
}

func (b *builder) linkAll(from []*Node, to *Node) {
	for _, f := range from {
		link(f, to)
	}
}

func leafExprs(leaf *stmt.Basic) []*exprent.Expr {
	if leaf == nil {
		return nil
	}
	out := make([]*exprent.Expr, len(leaf.Exprs))
	for i := range leaf.Exprs {
		out[i] = &leaf.Exprs[i]
	}
	return out
}

func endsInExit(leaf *stmt.Basic) bool {
	if len(leaf.Exprs) == 0 {
		return false
	}
	_, ok := leaf.Exprs[len(leaf.Exprs)-1].(*exprent.ExitExpr)
	return ok
}

// flow builds the nodes of s and returns its entry and the nodes that
// continue to whatever follows s.
func (b *builder) flow(s stmt.Stmt) (*Node, []*Node) {
	switch x := s.(type) {
	case nil:
		n := b.node(nil)
		return n, []*Node{n}

	case *stmt.Basic:
		n := b.node(x, leafExprs(x)...)
		if x.Block != nil {
			b.byBlock[x.Block] = n
		}
		if endsInExit(x) {
			return n, nil
		}
		return n, []*Node{n}

	case *stmt.Sequence:
		if len(x.Stmts) == 0 {
			n := b.node(x)
			return n, b.withBreaks(x, []*Node{n})
		}
		var entry *Node
		var exits []*Node
		for i, c := range x.Stmts {
			e, out := b.flow(c)
			if i == 0 {
				entry = e
			} else {
				b.linkAll(exits, e)
			}
			exits = out
		}
		return entry, b.withBreaks(x, exits)

	case *stmt.If:
		h := b.head(x, x.Head, &x.Cond)
		te, tx := b.flow(x.Then)
		link(h, te)
		exits := tx
		if x.Else != nil {
			ee, ex := b.flow(x.Else)
			link(h, ee)
			exits = append(exits, ex...)
		} else {
			exits = append(exits, h)
		}
		return h, b.withBreaks(x, exits)

	case *stmt.Loop:
		return b.loop(x)

	case *stmt.Switch:
		h := b.head(x, x.Head, &x.Value)
		var exits []*Node
		hasDefault := false
		for _, c := range x.Cases {
			hasDefault = hasDefault || c.Default
			e, out := b.flow(c.Body)
			link(h, e)
			b.linkAll(exits, e)
			exits = out
		}
		if !hasDefault {
			exits = append(exits, h)
		}
		return h, b.withBreaks(x, exits)

	case *stmt.Try:
		return b.try(x)

	case *stmt.Sync:
		h := b.head(x, x.Head, &x.Lock)
		be, bx := b.flow(x.Body)
		link(h, be)
		return h, b.withBreaks(x, bx)

	case *stmt.Jump:
		n := b.node(x)
		switch x.Kind {
		case stmt.Break:
			b.breaks[x.Target] = append(b.breaks[x.Target], n)
		case stmt.Continue:
			if to, ok := b.conts[x.Target]; ok {
				link(n, to)
			}
		case stmt.Goto:
			b.gotos = append(b.gotos, pendingGoto{from: n, block: x.Block})
		}
		return n, nil

	case *stmt.Root:
		return b.flow(x.Body)
	}
	n := b.node(s)
	return n, []*Node{n}
}

func (b *builder) head(s stmt.Stmt, leaf *stmt.Basic, value *exprent.Expr) *Node {
	exprs := leafExprs(leaf)
	if value != nil {
		exprs = append(exprs, value)
	}
	n := b.node(s, exprs...)
	if leaf != nil && leaf.Block != nil {
		b.byBlock[leaf.Block] = n
	}
	return n
}

// withBreaks adds the jumps that break out of s to its exits.
func (b *builder) withBreaks(s stmt.Stmt, exits []*Node) []*Node {
	if brk := b.breaks[s]; len(brk) > 0 {
		exits = append(exits, brk...)
		delete(b.breaks, s)
	}
	return exits
}

func (b *builder) loop(x *stmt.Loop) (*Node, []*Node) {
	switch x.Kind {
	case stmt.LoopWhile:
		c := b.head(x, x.Head, &x.Cond)
		b.conts[x] = c
		be, bx := b.flow(x.Body)
		link(c, be)
		b.linkAll(bx, c)
		return c, b.withBreaks(x, []*Node{c})

	case stmt.LoopDoWhile:
		start := b.node(x)
		c := b.head(x, x.Head, &x.Cond)
		b.conts[x] = c
		be, bx := b.flow(x.Body)
		link(start, be)
		b.linkAll(bx, c)
		link(c, be)
		return start, b.withBreaks(x, []*Node{c})

	case stmt.LoopFor:
		var init []*exprent.Expr
		if x.Init != nil {
			init = append(init, &x.Init)
		}
		in := b.node(x, init...)
		c := b.head(x, x.Head, &x.Cond)
		var inc []*exprent.Expr
		if x.Inc != nil {
			inc = append(inc, &x.Inc)
		}
		step := b.node(x, inc...)
		b.conts[x] = step
		link(in, c)
		be, bx := b.flow(x.Body)
		link(c, be)
		b.linkAll(bx, step)
		link(step, c)
		return in, b.withBreaks(x, []*Node{c})
	}
	start := b.head(x, x.Head, nil)
	b.conts[x] = start
	be, bx := b.flow(x.Body)
	link(start, be)
	b.linkAll(bx, start)
	return start, b.withBreaks(x, nil)
}

func (b *builder) try(x *stmt.Try) (*Node, []*Node) {
	var protected []*Node
	b.catches = append(b.catches, &protected)
	be, exits := b.flow(x.Body)
	b.catches = b.catches[:len(b.catches)-1]

	var handlers []*Node
	var guarded []*Node
	for _, c := range x.Catches {
		var caught exprent.Expr
		if c.Var != nil {
			caught = &exprent.AssignExpr{Left: c.Var, Right: &exprent.CaughtExpr{T: c.Var.T}}
		}
		if x.Finally != nil {
			b.catches = append(b.catches, &guarded)
		}
		h := b.node(x, &caught)
		ce, cx := b.flow(c.Body)
		if x.Finally != nil {
			b.catches = b.catches[:len(b.catches)-1]
		}
		link(h, ce)
		handlers = append(handlers, h)
		exits = append(exits, cx...)
	}
	for _, p := range protected {
		for _, h := range handlers {
			link(p, h)
		}
	}
	if x.Finally != nil {
		fe, fx := b.flow(x.Finally)
		b.linkAll(exits, fe)
		b.linkAll(protected, fe)
		b.linkAll(guarded, fe)
		exits = fx
	}
	return be, b.withBreaks(x, exits)
}
