package method

import (
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/stmt"
	"github.com/dhamidi/decaf/decompiler/vars"
)

// finish applies the final normalizations once the tree is stable.
func finish(b *Body) {
	removeTrailingReturn(b.Root)
	booleanReturns(b)
	booleanTernaries(b)
	markTernaries(b.Root)
	declare(b)
	stmt.NormalizeLabels(b.Root)
	b.Changed()
	b.Vars.Apply(allExprs(b.Root))
}

// removeTrailingReturn drops a value-less return that ends the body.
func removeTrailingReturn(root *stmt.Root) bool {
	leaf, ok := stmt.Last(root.Body).(*stmt.Basic)
	if !ok || len(leaf.Exprs) == 0 {
		return false
	}
	exit, ok := leaf.Exprs[len(leaf.Exprs)-1].(*exprent.ExitExpr)
	if !ok || exit.Kind != exprent.ExitReturn || exit.Value != nil {
		return false
	}
	leaf.Exprs = leaf.Exprs[:len(leaf.Exprs)-1]
	return true
}

func boolConst(e exprent.Expr) (bool, bool) {
	c, ok := e.(*exprent.ConstExpr)
	if !ok {
		return false, false
	}
	if v, ok := c.Value.(bool); ok {
		return v, true
	}
	n, ok := c.IntValue()
	if !ok || (n != 0 && n != 1) {
		return false, false
	}
	return n == 1, true
}

// returnedBool returns the constant of a leaf that only returns a
// boolean constant.
func returnedBool(s stmt.Stmt) (bool, bool) {
	list := stmt.List(s)
	if len(list) != 1 {
		return false, false
	}
	leaf, ok := list[0].(*stmt.Basic)
	if !ok || len(leaf.Exprs) != 1 {
		return false, false
	}
	exit, ok := leaf.Exprs[0].(*exprent.ExitExpr)
	if !ok || exit.Kind != exprent.ExitReturn || exit.Value == nil {
		return false, false
	}
	return boolConst(exit.Value)
}

// booleanReturns rewrites
//
//	if (c) { return true } [else] return false
//
// into return c in methods returning boolean.
func booleanReturns(b *Body) bool {
	if exprent.ReturnType(b.In.Desc) != exprent.Boolean {
		return false
	}
	ret := func(cond exprent.Expr, then bool) *stmt.Basic {
		if !then {
			cond = exprent.Negate(cond)
		}
		return &stmt.Basic{Exprs: []exprent.Expr{&exprent.ExitExpr{Kind: exprent.ExitReturn, Value: cond, T: exprent.Boolean}}}
	}
	changed := forEachSlot(b.Root, func(slot *stmt.Stmt) bool {
		x, ok := (*slot).(*stmt.If)
		if !ok || x.Else == nil || x.Labeled || !emptyHead(x.Head) {
			return false
		}
		t, ok1 := returnedBool(x.Then)
		e, ok2 := returnedBool(x.Else)
		if !ok1 || !ok2 || t == e {
			return false
		}
		*slot = ret(x.Cond, t)
		return true
	})
	stmt.Walk(b.Root, func(s stmt.Stmt) bool {
		seq, ok := s.(*stmt.Sequence)
		if !ok {
			return true
		}
		for i := 0; i+1 < len(seq.Stmts); i++ {
			x, ok := seq.Stmts[i].(*stmt.If)
			if !ok || x.Else != nil || x.Labeled || !emptyHead(x.Head) {
				continue
			}
			t, ok1 := returnedBool(x.Then)
			e, ok2 := returnedBool(seq.Stmts[i+1])
			if !ok1 || !ok2 || t == e {
				continue
			}
			seq.Stmts[i] = ret(x.Cond, t)
			seq.Stmts = append(seq.Stmts[:i+1], seq.Stmts[i+2:]...)
			changed = true
		}
		return true
	})
	return changed
}

// booleanTernaries replaces c ? 1 : 0 with c where a boolean is expected.
func booleanTernaries(b *Body) bool {
	simplify := func(e exprent.Expr) (exprent.Expr, bool) {
		f, ok := e.(*exprent.FuncExpr)
		if !ok || f.Op != exprent.OpTernary {
			return e, false
		}
		t, ok1 := boolConst(f.Operands[1])
		e2, ok2 := boolConst(f.Operands[2])
		if !ok1 || !ok2 || t == e2 {
			return e, false
		}
		if t {
			return f.Operands[0], true
		}
		return exprent.Negate(f.Operands[0]), true
	}
	changed := false
	stmt.ForEachExpr(b.Root, func(slot *exprent.Expr) {
		exprent.Walk(*slot, func(x exprent.Expr) bool {
			switch n := x.(type) {
			case *exprent.ExitExpr:
				if n.T == exprent.Boolean && n.Value != nil {
					if v, ok := simplify(n.Value); ok {
						n.Value, changed = v, true
					}
				}
			case *exprent.AssignExpr:
				if n.Left.Type() == exprent.Boolean {
					if v, ok := simplify(n.Right); ok {
						n.Right, changed = v, true
					}
				}
			case *exprent.InvocationExpr:
				params := exprent.ParamTypes(n.Desc)
				for i := range n.Args {
					if i < len(params) && params[i] == exprent.Boolean {
						if v, ok := simplify(n.Args[i]); ok {
							n.Args[i], changed = v, true
						}
					}
				}
			}
			return true
		})
	})
	return changed
}

// markTernaries flags conditionals whose branches each assign the same
// variable or each return a value, so printers may render them as a
// conditional expression.
func markTernaries(root stmt.Stmt) {
	stmt.Walk(root, func(s stmt.Stmt) bool {
		x, ok := s.(*stmt.If)
		if !ok || x.Else == nil {
			return true
		}
		a, ok1 := single(x.Then)
		c, ok2 := single(x.Else)
		x.Ternary = ok1 && ok2 && ternaryPair(a, c)
		return true
	})
}

func single(s stmt.Stmt) (exprent.Expr, bool) {
	list := stmt.List(s)
	if len(list) != 1 {
		return nil, false
	}
	leaf, ok := list[0].(*stmt.Basic)
	if !ok || len(leaf.Exprs) != 1 {
		return nil, false
	}
	return leaf.Exprs[0], true
}

func ternaryPair(a, b exprent.Expr) bool {
	switch x := a.(type) {
	case *exprent.AssignExpr:
		y, ok := b.(*exprent.AssignExpr)
		return ok && x.Op == exprent.OpNone && y.Op == exprent.OpNone && exprent.Equal(x.Left, y.Left)
	case *exprent.ExitExpr:
		y, ok := b.(*exprent.ExitExpr)
		return ok && x.Kind == exprent.ExitReturn && y.Kind == exprent.ExitReturn && x.Value != nil && y.Value != nil
	}
	return false
}

// declare marks the assignment that introduces each local variable: the
// first plain store of a version when every other reference lies within
// the statement list holding that store.
func declare(b *Body) {
	parents := stmt.Parents(b.Root)
	type site struct {
		owner stmt.Stmt
		ref   *exprent.VarExpr
		store bool
	}
	sites := make(map[vars.VarVersion][]site)
	var order []vars.VarVersion

	visit := func(owner stmt.Stmt, e exprent.Expr) {
		exprent.Walk(e, func(x exprent.Expr) bool {
			if a, ok := x.(*exprent.AssignExpr); ok && a.Op == exprent.OpNone {
				if v := a.Target(); v != nil && owner != nil {
					key := vars.Of(v)
					if _, seen := sites[key]; !seen {
						order = append(order, key)
					}
					sites[key] = append(sites[key], site{owner, v, isTopLevel(owner, a)})
					exprent.Walk(a.Right, func(y exprent.Expr) bool {
						if w, ok := y.(*exprent.VarExpr); ok {
							key := vars.Of(w)
							if _, seen := sites[key]; !seen {
								order = append(order, key)
							}
							sites[key] = append(sites[key], site{owner, w, false})
						}
						return true
					})
					return false
				}
			}
			if v, ok := x.(*exprent.VarExpr); ok {
				key := vars.Of(v)
				if _, seen := sites[key]; !seen {
					order = append(order, key)
				}
				sites[key] = append(sites[key], site{owner, v, false})
			}
			return true
		})
	}
	stmt.Walk(b.Root, func(s stmt.Stmt) bool {
		for _, e := range ownExprs(s) {
			visit(s, *e)
		}
		if t, ok := s.(*stmt.Try); ok {
			for _, c := range t.Catches {
				if c.Var != nil {
					c.Var.Declare = false
					key := vars.Of(c.Var)
					if _, seen := sites[key]; !seen {
						order = append(order, key)
					}
					// catch variables are declared by their clause
					sites[key] = append(sites[key], site{nil, c.Var, true})
				}
			}
		}
		return true
	})

	for _, key := range order {
		list := sites[key]
		if info, ok := b.Vars.Lookup(key); ok && info.Param {
			continue
		}
		first := list[0]
		if !first.store || first.owner == nil {
			continue
		}
		scope := parents[first.owner]
		if _, ok := first.owner.(*stmt.Loop); ok {
			scope = first.owner
		}
		inside := true
		for _, s := range list[1:] {
			if s.owner == nil || !within(s.owner, scope, parents) {
				inside = false
				break
			}
		}
		if inside {
			first.ref.Declare = true
		}
	}
}

// isTopLevel reports whether a is a statement of its own: a leaf
// expression or the initializer of a for loop.
func isTopLevel(owner stmt.Stmt, a *exprent.AssignExpr) bool {
	switch x := owner.(type) {
	case *stmt.Basic:
		for _, e := range x.Exprs {
			if e == exprent.Expr(a) {
				return true
			}
		}
	case *stmt.Loop:
		return x.Init == exprent.Expr(a)
	}
	return false
}

func within(s, scope stmt.Stmt, parents map[stmt.Stmt]stmt.Stmt) bool {
	if scope == nil {
		return true
	}
	for x := s; x != nil; x = parents[x] {
		if x == scope {
			return true
		}
	}
	return false
}

// ownExprs lists the expression positions a statement holds itself,
// without those of its children.
func ownExprs(s stmt.Stmt) []*exprent.Expr {
	var out []*exprent.Expr
	add := func(e *exprent.Expr) {
		if *e != nil {
			out = append(out, e)
		}
	}
	switch x := s.(type) {
	case *stmt.Basic:
		for i := range x.Exprs {
			out = append(out, &x.Exprs[i])
		}
	case *stmt.If:
		add(&x.Cond)
	case *stmt.Loop:
		add(&x.Init)
		add(&x.Cond)
		add(&x.Inc)
	case *stmt.Switch:
		add(&x.Value)
	case *stmt.Sync:
		add(&x.Lock)
	}
	return out
}
