package method

import (
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/stmt"
)

// groupB are the statement-level passes shaping loops, conditionals and
// exits.
func groupB(b *Body) []Rewrite {
	passes := []Rewrite{
		RewriteFunc("loops", enhanceLoops),
		RewriteFunc("ifs", normalizeIfs),
		RewriteFunc("merge ifs", mergeIfs),
		RewriteFunc("trivial trys", mergeTrys),
		RewriteFunc("labels", func(b *Body) bool { return stmt.NormalizeLabels(b.Root) }),
		RewriteFunc("single statements", inlineSingles),
	}
	if !b.In.isClassInit() {
		passes = append(passes, RewriteFunc("exits", condenseExits))
	}
	return passes
}

// forEachSlot calls fn for every child position below root, innermost
// first. fn may replace the statement in the slot.
func forEachSlot(root stmt.Stmt, fn func(slot *stmt.Stmt) bool) bool {
	changed := false
	var visit func(s stmt.Stmt)
	visit = func(s stmt.Stmt) {
		if s == nil {
			return
		}
		for _, slot := range s.Slots() {
			visit(*slot)
			if fn(slot) {
				changed = true
			}
		}
	}
	visit(root)
	return changed
}

func isJump(s stmt.Stmt, kind stmt.JumpKind, target stmt.Stmt) bool {
	j, ok := s.(*stmt.Jump)
	return ok && j.Kind == kind && j.Target == target
}

func emptyHead(h *stmt.Basic) bool { return h == nil || len(h.Exprs) == 0 }

func enhanceLoops(b *Body) bool {
	changed := forEachSlot(b.Root, func(slot *stmt.Stmt) bool {
		loop, ok := (*slot).(*stmt.Loop)
		if !ok {
			return false
		}
		done := false
		if body, ok := stripContinue(loop.Body, loop); ok {
			loop.Body = body
			done = true
		}
		if loop.Kind == stmt.LoopInfinite && (whileFromHead(loop) || doWhileFromTail(loop)) {
			done = true
		}
		return done
	})
	if forLoops(b.Root) {
		changed = true
	}
	return changed
}

// stripContinue removes continue statements that end the loop body,
// where falling off the end does the same.
func stripContinue(s stmt.Stmt, loop *stmt.Loop) (stmt.Stmt, bool) {
	list := stmt.List(s)
	if len(list) == 0 {
		return s, false
	}
	last := list[len(list)-1]
	if j, ok := last.(*stmt.Jump); ok && j.Kind == stmt.Continue && j.Target == loop {
		return stmt.Seq(list[:len(list)-1]...), true
	}
	x, ok := last.(*stmt.If)
	if !ok {
		return s, false
	}
	changed := false
	if then, ok := stripContinue(x.Then, loop); ok {
		x.Then, changed = then, true
	}
	if x.Else != nil {
		if els, ok := stripContinue(x.Else, loop); ok {
			x.Else, changed = els, true
		}
	}
	return s, changed
}

// whileFromHead turns while (true) { if (c) X else break; R } into
// while (c) { X; R } and while (true) { if (c) break; else Y; R } into
// while (!c) { Y; R }.
func whileFromHead(loop *stmt.Loop) bool {
	list := stmt.List(loop.Body)
	if len(list) == 0 {
		return false
	}
	first, ok := list[0].(*stmt.If)
	if !ok || first.Labeled || !emptyHead(first.Head) {
		return false
	}
	var cond exprent.Expr
	var body []stmt.Stmt
	switch {
	case first.Else != nil && isJump(first.Else, stmt.Break, loop):
		cond = first.Cond
		body = append([]stmt.Stmt{first.Then}, list[1:]...)
	case isJump(first.Then, stmt.Break, loop):
		cond = exprent.Negate(first.Cond)
		body = append([]stmt.Stmt{first.Else}, list[1:]...)
	default:
		return false
	}
	loop.Kind = stmt.LoopWhile
	loop.Cond = cond
	loop.Head = first.Head
	loop.Body = stmt.Seq(body...)
	return true
}

// doWhileFromTail turns while (true) { X; if (c) continue; break } and
// while (true) { X; if (c) break } into do-while loops.
func doWhileFromTail(loop *stmt.Loop) bool {
	list := stmt.List(loop.Body)
	n := len(list)
	if n == 0 {
		return false
	}
	var tail *stmt.If
	var cond exprent.Expr
	var prefix []stmt.Stmt
	switch x := list[n-1].(type) {
	case *stmt.Jump:
		if n < 2 || !isJump(x, stmt.Break, loop) {
			return false
		}
		t, ok := list[n-2].(*stmt.If)
		if !ok || t.Else != nil || !isJump(t.Then, stmt.Continue, loop) {
			return false
		}
		tail, cond, prefix = t, t.Cond, list[:n-2]
	case *stmt.If:
		switch {
		case x.Else == nil && isJump(x.Then, stmt.Break, loop):
			tail, cond = x, exprent.Negate(x.Cond)
		case x.Else != nil && isJump(x.Then, stmt.Continue, loop) && isJump(x.Else, stmt.Break, loop):
			tail, cond = x, x.Cond
		default:
			return false
		}
		prefix = list[:n-1]
	default:
		return false
	}
	if tail.Labeled {
		return false
	}
	for _, j := range stmt.JumpsTo(loop.Body, loop) {
		if j.Kind == stmt.Continue && j != tail.Then {
			return false
		}
	}
	body := append([]stmt.Stmt(nil), prefix...)
	if tail.Head != nil {
		body = append(body, tail.Head)
	}
	loop.Kind = stmt.LoopDoWhile
	loop.Cond = cond
	loop.Body = stmt.Seq(body...)
	return true
}

// forLoops folds v = init; while (cond(v)) { ...; update(v) } into a for
// loop when nothing continues the loop.
func forLoops(root stmt.Stmt) bool {
	changed := false
	stmt.Walk(root, func(s stmt.Stmt) bool {
		seq, ok := s.(*stmt.Sequence)
		if !ok {
			return true
		}
		for i := 1; i < len(seq.Stmts); i++ {
			loop, ok := seq.Stmts[i].(*stmt.Loop)
			prev, ok2 := seq.Stmts[i-1].(*stmt.Basic)
			if !ok || !ok2 || loop.Kind != stmt.LoopWhile || len(prev.Exprs) == 0 {
				continue
			}
			init, ok := prev.Exprs[len(prev.Exprs)-1].(*exprent.AssignExpr)
			if !ok || init.Op != exprent.OpNone {
				continue
			}
			v, ok := init.Left.(*exprent.VarExpr)
			if !ok || v.Stack || !exprent.ReadsVar(loop.Cond, v.Index) {
				continue
			}
			for _, j := range stmt.JumpsTo(loop.Body, loop) {
				if j.Kind == stmt.Continue {
					ok = false
				}
			}
			last, isLeaf := stmt.Last(loop.Body).(*stmt.Basic)
			if !ok || !isLeaf || len(last.Exprs) == 0 {
				continue
			}
			inc := last.Exprs[len(last.Exprs)-1]
			if !updates(inc, v.Index) {
				continue
			}
			last.Exprs = last.Exprs[:len(last.Exprs)-1]
			prev.Exprs = prev.Exprs[:len(prev.Exprs)-1]
			loop.Kind = stmt.LoopFor
			loop.Init = init
			loop.Inc = inc
			changed = true
		}
		return true
	})
	return changed
}

// updates reports a statement that assigns slot index.
func updates(e exprent.Expr, index int) bool {
	switch x := e.(type) {
	case *exprent.AssignExpr:
		v, ok := x.Left.(*exprent.VarExpr)
		return ok && v.Index == index
	case *exprent.FuncExpr:
		switch x.Op {
		case exprent.OpPreInc, exprent.OpPreDec, exprent.OpPostInc, exprent.OpPostDec:
			v, ok := x.Operands[0].(*exprent.VarExpr)
			return ok && v.Index == index
		}
	}
	return false
}

// normalizeIfs drops empty branches, inverts negated conditionals and
// hoists an else branch after a then branch that never completes.
func normalizeIfs(b *Body) bool {
	targets := gotoTargets(b.Root)
	return forEachSlot(b.Root, func(slot *stmt.Stmt) bool {
		x, ok := (*slot).(*stmt.If)
		if !ok {
			return false
		}
		if x.Else != nil && stmt.IsEmpty(x.Else) && !hasTargets(x.Else, targets) {
			x.Else = nil
			return true
		}
		if x.Else != nil && stmt.IsEmpty(x.Then) && !hasTargets(x.Then, targets) {
			x.Cond = exprent.Negate(x.Cond)
			x.Then, x.Else = x.Else, nil
			return true
		}
		if x.Else == nil && stmt.IsEmpty(x.Then) && !hasTargets(x.Then, targets) && !x.Labeled && !exprent.HasSideEffects(x.Cond) {
			if x.Head != nil {
				*slot = x.Head
			} else {
				*slot = &stmt.Basic{}
			}
			return true
		}
		if f, ok := x.Cond.(*exprent.FuncExpr); ok && f.Op == exprent.OpNot && x.Else != nil {
			x.Cond = f.Operands[0]
			x.Then, x.Else = x.Else, x.Then
			return true
		}
		if x.Else != nil && stmt.EndsAbruptly(x.Then) && !x.Labeled {
			els := x.Else
			x.Else = nil
			*slot = &stmt.Sequence{Stmts: append([]stmt.Stmt{x}, stmt.List(els)...)}
			return true
		}
		return false
	})
}

func hasTargets(s stmt.Stmt, targets map[*stmt.Basic]bool) bool {
	for _, leaf := range stmt.Basics(s) {
		if targets[leaf] {
			return true
		}
	}
	return false
}

// mergeIfs joins if (a) { if (b) { X } } into if (a && b) { X }.
func mergeIfs(b *Body) bool {
	return forEachSlot(b.Root, func(slot *stmt.Stmt) bool {
		x, ok := (*slot).(*stmt.If)
		if !ok || x.Else != nil {
			return false
		}
		list := stmt.List(x.Then)
		if len(list) != 1 {
			return false
		}
		y, ok := list[0].(*stmt.If)
		if !ok || y.Else != nil || y.Labeled || !emptyHead(y.Head) {
			return false
		}
		x.Cond = exprent.NewFunc(exprent.OpCondAnd, exprent.Boolean, x.Cond, y.Cond)
		x.Then = y.Then
		return true
	})
}

// mergeTrys removes try statements that guard nothing.
func mergeTrys(b *Body) bool {
	return forEachSlot(b.Root, func(slot *stmt.Stmt) bool {
		t, ok := (*slot).(*stmt.Try)
		if !ok || t.Labeled {
			return false
		}
		if t.Finally != nil && stmt.IsEmpty(t.Finally) {
			t.Finally = nil
			if len(t.Catches) > 0 {
				return true
			}
		}
		if len(t.Catches) == 0 && t.Finally == nil {
			*slot = t.Body
			return true
		}
		if stmt.IsEmpty(t.Body) && t.Finally == nil {
			*slot = &stmt.Basic{}
			return true
		}
		return false
	})
}

// stripNullChecks removes discarded Objects.requireNonNull(x) and
// x.getClass() calls that compilers emit as implicit null checks.
func stripNullChecks(b *Body) bool {
	changed := false
	for _, leaf := range stmt.Basics(b.Root) {
		out := leaf.Exprs[:0]
		for _, e := range leaf.Exprs {
			if isNullCheck(e) {
				changed = true
				continue
			}
			out = append(out, e)
		}
		leaf.Exprs = out
	}
	return changed
}

func isNullCheck(e exprent.Expr) bool {
	call, ok := e.(*exprent.InvocationExpr)
	if !ok {
		return false
	}
	switch {
	case call.Kind == exprent.InvokeStatic && call.Owner == "java/util/Objects" &&
		call.Name == "requireNonNull" && len(call.Args) == 1:
		return !exprent.HasSideEffects(call.Args[0])
	case call.Kind == exprent.InvokeVirtual && call.Name == "getClass" &&
		call.Desc == "()Ljava/lang/Class;":
		return !exprent.HasSideEffects(call.Instance)
	}
	return false
}

// inlineSingles replaces unlabeled sequences of one statement with that
// statement and condenses sequences again after the statement passes.
func inlineSingles(b *Body) bool {
	changed := condenseSequences(b)
	if forEachSlot(b.Root, func(slot *stmt.Stmt) bool {
		seq, ok := (*slot).(*stmt.Sequence)
		if !ok || seq.Labeled || len(seq.Stmts) != 1 {
			return false
		}
		*slot = seq.Stmts[0]
		return true
	}) {
		changed = true
	}
	return changed
}

// condenseExits drops an exit at the end of a then branch when the
// statement right after the conditional is the same exit.
func condenseExits(b *Body) bool {
	changed := false
	stmt.Walk(b.Root, func(s stmt.Stmt) bool {
		seq, ok := s.(*stmt.Sequence)
		if !ok {
			return true
		}
		for i := 0; i+1 < len(seq.Stmts); i++ {
			x, ok := seq.Stmts[i].(*stmt.If)
			if !ok || x.Else != nil {
				continue
			}
			next, ok := seq.Stmts[i+1].(*stmt.Basic)
			if !ok || len(next.Exprs) != 1 {
				continue
			}
			exit, ok := next.Exprs[0].(*exprent.ExitExpr)
			if !ok || exit.Kind != exprent.ExitReturn {
				continue
			}
			leaf, ok := stmt.Last(x.Then).(*stmt.Basic)
			if !ok || len(leaf.Exprs) == 0 || !exprent.Equal(leaf.Exprs[len(leaf.Exprs)-1], exit) {
				continue
			}
			leaf.Exprs = leaf.Exprs[:len(leaf.Exprs)-1]
			changed = true
		}
		return true
	})
	return changed
}
