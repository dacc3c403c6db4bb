package method

import (
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/stmt"
	"github.com/dhamidi/decaf/decompiler/vars"
)

// groupA are the expression-level passes: they collapse stack
// temporaries back into nested expressions and number variables.
func groupA(b *Body) []Rewrite {
	return []Rewrite{
		RewriteFunc("condense sequences", condenseSequences),
		RewriteFunc("spill ternaries", spillTernaries),
		RewriteFunc("inline stack variables", inlineStackVars),
		RewriteFunc("increments", increments),
		RewriteFunc("versions", assignVersions),
	}
}

// condenseSequences flattens nested sequences, joins adjacent leaves and
// drops empty ones.
func condenseSequences(b *Body) bool {
	targets := gotoTargets(b.Root)
	changed := false
	stmt.Walk(b.Root, func(s stmt.Stmt) bool {
		seq, ok := s.(*stmt.Sequence)
		if !ok {
			return true
		}
		var out []stmt.Stmt
		for _, c := range seq.Stmts {
			if inner, ok := c.(*stmt.Sequence); ok && !inner.Labeled {
				out = append(out, inner.Stmts...)
				changed = true
				continue
			}
			out = append(out, c)
		}
		removable := func(c stmt.Stmt) bool {
			leaf, ok := c.(*stmt.Basic)
			return ok && !targets[leaf] && !leaf.Labeled
		}
		keepEmpty := true
		for _, c := range out {
			if !removable(c) || !stmt.IsEmpty(c) {
				keepEmpty = false
			}
		}
		merged := out[:0:0]
		for _, c := range out {
			if removable(c) {
				leaf := c.(*stmt.Basic)
				if len(leaf.Exprs) == 0 && !keepEmpty {
					changed = true
					continue
				}
				if n := len(merged); n > 0 {
					if prev, ok := merged[n-1].(*stmt.Basic); ok && !prev.Labeled {
						prev.Exprs = append(prev.Exprs, leaf.Exprs...)
						changed = true
						continue
					}
				}
			}
			merged = append(merged, c)
		}
		seq.Stmts = merged
		return true
	})
	return changed
}

// usage counts definitions and reads of one stack variable.
type usage struct{ defs, uses int }

func stackUsage(root stmt.Stmt) map[int]*usage {
	m := make(map[int]*usage)
	get := func(i int) *usage {
		u, ok := m[i]
		if !ok {
			u = &usage{}
			m[i] = u
		}
		return u
	}
	var count func(e exprent.Expr)
	count = func(e exprent.Expr) {
		exprent.Walk(e, func(x exprent.Expr) bool {
			switch n := x.(type) {
			case *exprent.AssignExpr:
				if v, ok := n.Left.(*exprent.VarExpr); ok && v.Stack && n.Op == exprent.OpNone {
					get(v.Index).defs++
					count(n.Right)
					return false
				}
			case *exprent.VarExpr:
				if n.Stack {
					get(n.Index).uses++
				}
			}
			return true
		})
	}
	for _, e := range allExprs(root) {
		count(e)
	}
	stmt.Walk(root, func(s stmt.Stmt) bool {
		if t, ok := s.(*stmt.Try); ok {
			for _, c := range t.Catches {
				if c.Var != nil && c.Var.Stack {
					get(c.Var.Index).defs++
				}
			}
		}
		return true
	})
	return m
}

// stackDef returns the stack variable and value of an expression of the
// form s = value.
func stackDef(e exprent.Expr) (*exprent.VarExpr, exprent.Expr, bool) {
	a, ok := e.(*exprent.AssignExpr)
	if !ok || a.Op != exprent.OpNone {
		return nil, nil, false
	}
	v, ok := a.Left.(*exprent.VarExpr)
	if !ok || !v.Stack {
		return nil, nil, false
	}
	return v, a.Right, true
}

func sameIndex(v *exprent.VarExpr) func(exprent.Expr) bool {
	return func(x exprent.Expr) bool {
		w, ok := x.(*exprent.VarExpr)
		return ok && w.Index == v.Index && w.Stack
	}
}

func countRefs(e exprent.Expr, match func(exprent.Expr) bool) int {
	n := 0
	exprent.Walk(e, func(x exprent.Expr) bool {
		if match(x) {
			n++
		}
		return true
	})
	return n
}

func substitute(slot *exprent.Expr, match func(exprent.Expr) bool, repl func() exprent.Expr) bool {
	return exprent.Rewrite(slot, func(x exprent.Expr) (exprent.Expr, bool) {
		if match(x) {
			return repl(), true
		}
		return x, false
	})
}

// completesEffect reports whether x itself, not counting its operands,
// changes state.
func completesEffect(x exprent.Expr) bool {
	switch n := x.(type) {
	case *exprent.InvocationExpr, *exprent.AssignExpr, *exprent.MonitorExpr:
		return true
	case *exprent.NewExpr:
		return n.T.Dims == 0
	case *exprent.FuncExpr:
		switch n.Op {
		case exprent.OpPreInc, exprent.OpPreDec, exprent.OpPostInc, exprent.OpPostDec:
			return true
		}
	}
	return false
}

// reachedCleanly reports whether evaluating e reaches the first match
// before any state change completes, so an earlier computed value may
// move into that position.
func reachedCleanly(e exprent.Expr, match func(exprent.Expr) bool) bool {
	found, dirty := false, false
	var visit func(x exprent.Expr)
	visit = func(x exprent.Expr) {
		if x == nil || found || dirty {
			return
		}
		if match(x) {
			found = true
			return
		}
		for _, s := range x.Slots() {
			visit(*s)
		}
		if !found && completesEffect(x) {
			dirty = true
		}
	}
	visit(e)
	return found
}

// writesVar reports whether e assigns slot index.
func writesVar(e exprent.Expr, index int) bool {
	found := false
	exprent.Walk(e, func(x exprent.Expr) bool {
		switch n := x.(type) {
		case *exprent.AssignExpr:
			if v, ok := n.Left.(*exprent.VarExpr); ok && v.Index == index {
				found = true
			}
		case *exprent.FuncExpr:
			switch n.Op {
			case exprent.OpPreInc, exprent.OpPreDec, exprent.OpPostInc, exprent.OpPostDec:
				if v, ok := n.Operands[0].(*exprent.VarExpr); ok && v.Index == index {
					found = true
				}
			}
		}
		return !found
	})
	return found
}

func plainCopy(v *exprent.VarExpr) func() exprent.Expr {
	return func() exprent.Expr {
		c := *v
		c.Declare = false
		return &c
	}
}

// inlineStackVars moves the value of a stack variable into the place it
// is read:
//
//	s = e; use(s)           ->  use(e)
//	s = e; v = s; use(s)    ->  v = e; use(v)
//	s = v; v++; use(s)      ->  use(v++)
//	s = c; use(s, s)        ->  use(c, c)     for constants and locals
func inlineStackVars(b *Body) bool {
	changed := false
	for _, l := range exprLists(b.Root) {
		usages := stackUsage(b.Root)
		for i := 0; i < l.leafLen(); i++ {
			s, value, ok := stackDef(l.leaf.Exprs[i])
			if !ok {
				continue
			}
			u := usages[s.Index]
			if u == nil || u.defs != 1 {
				continue
			}
			if inlineAt(l, i, s, value, u.uses) {
				changed = true
				usages = stackUsage(b.Root)
				i--
			}
		}
	}
	return changed
}

func inlineAt(l exprList, i int, s *exprent.VarExpr, value exprent.Expr, uses int) bool {
	pos := l.positions()
	match := sameIndex(s)
	if uses == 0 {
		if exprent.HasSideEffects(value) {
			l.leaf.Exprs[i] = value
		} else {
			l.removeAt(i)
		}
		return true
	}
	if i+1 >= len(pos) {
		return false
	}
	next := pos[i+1]
	rest := 0
	for _, p := range pos[i+1:] {
		rest += countRefs(*p, match)
	}
	if rest != uses {
		return false
	}

	if uses == 1 && countRefs(*next, match) == 1 && reachedCleanly(*next, match) {
		substitute(next, match, func() exprent.Expr { return value })
		l.removeAt(i)
		return true
	}

	if c, ok := (*next).(*exprent.AssignExpr); ok && c.Op == exprent.OpNone {
		v, isVar := c.Left.(*exprent.VarExpr)
		if r, ok := c.Right.(*exprent.VarExpr); ok && isVar && !v.Stack && match(r) {
			for _, p := range pos[i+2:] {
				if writesVar(*p, v.Index) {
					return false
				}
			}
			c.Right = value
			for _, p := range pos[i+2:] {
				substitute(p, match, plainCopy(v))
			}
			l.removeAt(i)
			return true
		}
	}

	if local, ok := value.(*exprent.VarExpr); ok && !local.Stack && uses == 1 && i+2 < len(pos) {
		if step, ok := increment(*next, local); ok && countRefs(*pos[i+2], match) == 1 {
			substitute(pos[i+2], match, func() exprent.Expr {
				c := *local
				return exprent.NewFunc(step, local.T, &c)
			})
			l.removeAt(i + 1)
			l.removeAt(i)
			return true
		}
	}

	if trivialValue(value) {
		if v, ok := value.(*exprent.VarExpr); ok {
			for _, p := range pos[i+1:] {
				if writesVar(*p, v.Index) {
					return false
				}
			}
		}
		for _, p := range pos[i+1:] {
			substitute(p, match, func() exprent.Expr { return exprent.Clone(value) })
		}
		l.removeAt(i)
		return true
	}
	return false
}

func trivialValue(e exprent.Expr) bool {
	switch x := e.(type) {
	case *exprent.ConstExpr, *exprent.OuterThisExpr:
		return true
	case *exprent.VarExpr:
		return !x.Stack
	}
	return false
}

// increment recognizes a statement that adds or subtracts one from v
// and returns the matching postfix operator.
func increment(e exprent.Expr, v *exprent.VarExpr) (exprent.Op, bool) {
	switch x := e.(type) {
	case *exprent.FuncExpr:
		if w, ok := x.Operands[0].(*exprent.VarExpr); ok && w.Index == v.Index {
			switch x.Op {
			case exprent.OpPostInc, exprent.OpPreInc:
				return exprent.OpPostInc, true
			case exprent.OpPostDec, exprent.OpPreDec:
				return exprent.OpPostDec, true
			}
		}
	case *exprent.AssignExpr:
		w, ok := x.Left.(*exprent.VarExpr)
		if !ok || w.Index != v.Index || !isOne(x.Right) {
			return exprent.OpNone, false
		}
		switch x.Op {
		case exprent.OpAdd:
			return exprent.OpPostInc, true
		case exprent.OpSub:
			return exprent.OpPostDec, true
		}
	}
	return exprent.OpNone, false
}

func isOne(e exprent.Expr) bool {
	c, ok := e.(*exprent.ConstExpr)
	if !ok {
		return false
	}
	n, ok := c.IntValue()
	return ok && n == 1
}

// spillTernaries turns a conditional whose branches only store into the
// same stack variable into one conditional expression.
func spillTernaries(b *Body) bool {
	targets := gotoTargets(b.Root)
	var found []*stmt.If
	stmt.Walk(b.Root, func(s stmt.Stmt) bool {
		if x, ok := s.(*stmt.If); ok && !x.Labeled && x.Else != nil {
			found = append(found, x)
		}
		return true
	})
	changed := false
	for _, x := range found {
		st, then, ok1 := singleStackStore(x.Then, targets)
		se, els, ok2 := singleStackStore(x.Else, targets)
		if !ok1 || !ok2 || st.Index != se.Index {
			continue
		}
		t := then.Type()
		if t.IsUnknown() || t.Kind == exprent.KindNull {
			t = els.Type()
		}
		leaf := &stmt.Basic{}
		if x.Head != nil {
			leaf.Block = x.Head.Block
			leaf.Exprs = append(leaf.Exprs, x.Head.Exprs...)
		}
		target := *st
		leaf.Exprs = append(leaf.Exprs, &exprent.AssignExpr{
			Left:  &target,
			Right: exprent.NewFunc(exprent.OpTernary, t, x.Cond, then, els),
		})
		if stmt.Replace(b.Root, x, leaf) {
			changed = true
		}
	}
	return changed
}

func singleStackStore(s stmt.Stmt, targets map[*stmt.Basic]bool) (*exprent.VarExpr, exprent.Expr, bool) {
	leaf, ok := s.(*stmt.Basic)
	if !ok || len(leaf.Exprs) != 1 || targets[leaf] || leaf.Labeled {
		return nil, nil, false
	}
	return stackDef(leaf.Exprs[0])
}

// increments rewrites x = x op y into x op= y and x += 1 into x++ for
// statements.
func increments(b *Body) bool {
	changed := false
	for _, l := range exprLists(b.Root) {
		for i := 0; i < l.leafLen(); i++ {
			a, ok := l.leaf.Exprs[i].(*exprent.AssignExpr)
			if !ok {
				continue
			}
			if a.Op == exprent.OpNone {
				if f, ok := a.Right.(*exprent.FuncExpr); ok && compoundable(f.Op) &&
					!exprent.HasSideEffects(a.Left) && exprent.Equal(f.Operands[0], a.Left) {
					if v, ok := a.Left.(*exprent.VarExpr); !ok || !v.Stack {
						a.Op = f.Op
						a.Right = f.Operands[1]
						changed = true
					}
				}
				continue
			}
			if !isOne(a.Right) || !countable(a.Left.Type()) {
				continue
			}
			switch a.Op {
			case exprent.OpAdd:
				l.leaf.Exprs[i] = exprent.NewFunc(exprent.OpPostInc, a.Left.Type(), a.Left)
				changed = true
			case exprent.OpSub:
				l.leaf.Exprs[i] = exprent.NewFunc(exprent.OpPostDec, a.Left.Type(), a.Left)
				changed = true
			}
		}
	}
	return changed
}

func compoundable(op exprent.Op) bool {
	switch op {
	case exprent.OpAdd, exprent.OpSub, exprent.OpMul, exprent.OpDiv, exprent.OpRem,
		exprent.OpAnd, exprent.OpOr, exprent.OpXor, exprent.OpShl, exprent.OpShr, exprent.OpUshr:
		return true
	}
	return false
}

func countable(t exprent.Type) bool {
	if t.Dims > 0 {
		return false
	}
	switch t.Kind {
	case exprent.KindByte, exprent.KindChar, exprent.KindShort, exprent.KindInt, exprent.KindLong:
		return true
	}
	return false
}

// assignVersions numbers variable live ranges over the flattened body
// and records the types seen for each version.
func assignVersions(b *Body) bool {
	changed := vars.AssignVersions(b.Flow(), b.Vars, vars.Slots(b.Params))
	record := func(v *exprent.VarExpr) {
		key := vars.Of(v)
		if !v.T.IsUnknown() && b.Vars.Type(key).IsUnknown() {
			b.Vars.SetType(key, v.T)
		}
		if v.Stack {
			b.Vars.Info(key)
		}
	}
	for _, e := range allExprs(b.Root) {
		for _, v := range exprent.Vars(e) {
			record(v)
		}
	}
	stmt.Walk(b.Root, func(s stmt.Stmt) bool {
		if t, ok := s.(*stmt.Try); ok {
			for _, c := range t.Catches {
				if c.Var != nil {
					record(c.Var)
				}
			}
		}
		return true
	})
	return changed
}
