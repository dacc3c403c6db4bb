package stmt

import (
	"github.com/dhamidi/decaf/decompiler/exprent"
)

// Walk visits s and its descendants in pre-order. Returning false from fn
// skips the children of the visited statement.
func Walk(s Stmt, fn func(Stmt) bool) {
	if s == nil || !fn(s) {
		return
	}
	for _, c := range s.Children() {
		Walk(c, fn)
	}
}

// Basics lists every leaf in source order.
func Basics(s Stmt) []*Basic {
	var out []*Basic
	Walk(s, func(x Stmt) bool {
		if b, ok := x.(*Basic); ok {
			out = append(out, b)
		}
		return true
	})
	return out
}

// Parents maps every statement below root to its parent.
func Parents(root Stmt) map[Stmt]Stmt {
	parents := make(map[Stmt]Stmt)
	Walk(root, func(x Stmt) bool {
		for _, c := range x.Children() {
			parents[c] = x
		}
		return true
	})
	return parents
}

// Replace swaps old for repl wherever a slot below root holds it.
func Replace(root Stmt, old, repl Stmt) bool {
	done := false
	Walk(root, func(x Stmt) bool {
		if done {
			return false
		}
		for _, slot := range x.Slots() {
			if *slot == old {
				*slot = repl
				done = true
				return false
			}
		}
		return true
	})
	return done
}

// Seq builds a sequence, splicing in unlabeled nested sequences. A single
// statement is returned as is.
func Seq(list ...Stmt) Stmt {
	var flat []Stmt
	for _, s := range list {
		if s == nil {
			continue
		}
		if inner, ok := s.(*Sequence); ok && !inner.Labeled {
			flat = append(flat, inner.Stmts...)
			continue
		}
		flat = append(flat, s)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &Sequence{Stmts: flat}
}

// List returns the statements of s viewed as a sequence.
func List(s Stmt) []Stmt {
	if s == nil {
		return nil
	}
	if seq, ok := s.(*Sequence); ok {
		return seq.Stmts
	}
	return []Stmt{s}
}

// Last returns the final statement of s, descending into sequences.
func Last(s Stmt) Stmt {
	for {
		seq, ok := s.(*Sequence)
		if !ok || len(seq.Stmts) == 0 {
			return s
		}
		s = seq.Stmts[len(seq.Stmts)-1]
	}
}

// IsEmpty reports a statement that does nothing.
func IsEmpty(s Stmt) bool {
	switch x := s.(type) {
	case nil:
		return true
	case *Basic:
		return len(x.Exprs) == 0
	case *Sequence:
		if x.Labeled {
			return false
		}
		for _, c := range x.Stmts {
			if !IsEmpty(c) {
				return false
			}
		}
		return true
	}
	return false
}

// LastExpr returns the final expression of a leaf sequence, or nil.
func LastExpr(s Stmt) exprent.Expr {
	list := List(s)
	for i := len(list) - 1; i >= 0; i-- {
		b, ok := list[i].(*Basic)
		if !ok {
			return nil
		}
		if len(b.Exprs) > 0 {
			return b.Exprs[len(b.Exprs)-1]
		}
	}
	return nil
}

// EndsAbruptly reports whether control never continues past s.
func EndsAbruptly(s Stmt) bool {
	switch x := Last(s).(type) {
	case *Jump:
		return true
	case *Basic:
		if len(x.Exprs) == 0 {
			list := List(s)
			if len(list) > 1 {
				return EndsAbruptly(&Sequence{Stmts: list[:len(list)-1]})
			}
			return false
		}
		_, ok := x.Exprs[len(x.Exprs)-1].(*exprent.ExitExpr)
		return ok
	case *If:
		return x.Else != nil && EndsAbruptly(x.Then) && EndsAbruptly(x.Else)
	case *Try:
		if x.Finally != nil && EndsAbruptly(x.Finally) {
			return true
		}
		if !EndsAbruptly(x.Body) {
			return false
		}
		for _, c := range x.Catches {
			if !EndsAbruptly(c.Body) {
				return false
			}
		}
		return true
	case *Sync:
		return EndsAbruptly(x.Body)
	case *Loop:
		return x.Kind == LoopInfinite && !hasBreakTo(x)
	}
	return false
}

func hasBreakTo(target Stmt) bool {
	found := false
	Walk(target, func(x Stmt) bool {
		if j, ok := x.(*Jump); ok && j.Kind == Break && j.Target == target {
			found = true
		}
		return !found
	})
	return found
}

// JumpsTo lists the break and continue statements below root that target
// s.
func JumpsTo(root, s Stmt) []*Jump {
	var out []*Jump
	Walk(root, func(x Stmt) bool {
		if j, ok := x.(*Jump); ok && j.Target == s {
			out = append(out, j)
		}
		return true
	})
	return out
}

// ForEachExpr calls fn with a pointer to every top-level expression
// position below s in evaluation order: leaf expressions, conditions,
// loop parts, switch values and lock expressions.
func ForEachExpr(s Stmt, fn func(*exprent.Expr)) {
	leaf := func(b *Basic) {
		if b == nil {
			return
		}
		for i := range b.Exprs {
			fn(&b.Exprs[i])
		}
	}
	opt := func(e *exprent.Expr) {
		if *e != nil {
			fn(e)
		}
	}
	switch n := s.(type) {
	case nil:
	case *Basic:
		leaf(n)
	case *If:
		leaf(n.Head)
		fn(&n.Cond)
		ForEachExpr(n.Then, fn)
		ForEachExpr(n.Else, fn)
	case *Loop:
		leaf(n.Head)
		opt(&n.Init)
		if n.Kind != LoopDoWhile {
			opt(&n.Cond)
		}
		ForEachExpr(n.Body, fn)
		opt(&n.Inc)
		if n.Kind == LoopDoWhile {
			opt(&n.Cond)
		}
	case *Switch:
		leaf(n.Head)
		fn(&n.Value)
		for _, c := range n.Cases {
			ForEachExpr(c.Body, fn)
		}
	case *Sync:
		leaf(n.Head)
		fn(&n.Lock)
		ForEachExpr(n.Body, fn)
	default:
		for _, c := range s.Children() {
			ForEachExpr(c, fn)
		}
	}
}
