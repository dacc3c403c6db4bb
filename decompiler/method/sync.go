package method

import (
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/stmt"
)

// convertSync turns the compiled shape of a synchronized block
//
//	t = lock; monitorenter(lock)
//	try { X } finally { monitorexit(t) }
//
// into a Sync statement.
func convertSync(b *Body) bool {
	changed := false
	stmt.Walk(b.Root, func(s stmt.Stmt) bool {
		seq, ok := s.(*stmt.Sequence)
		if !ok {
			return true
		}
		for i := 1; i < len(seq.Stmts); i++ {
			if sync := syncAt(seq.Stmts[i-1], seq.Stmts[i]); sync != nil {
				seq.Stmts[i] = sync
				seq.Stmts = append(seq.Stmts[:i-1], seq.Stmts[i:]...)
				changed = true
			}
		}
		return true
	})
	return changed
}

func syncAt(prev, cur stmt.Stmt) *stmt.Sync {
	leaf, ok := prev.(*stmt.Basic)
	if !ok || len(leaf.Exprs) == 0 {
		return nil
	}
	t, ok := cur.(*stmt.Try)
	if !ok || len(t.Catches) > 0 || t.Finally == nil {
		return nil
	}
	exit := monitorOf(t.Finally, false)
	enter, ok := leaf.Exprs[len(leaf.Exprs)-1].(*exprent.MonitorExpr)
	if exit == nil || !ok || !enter.Enter {
		return nil
	}

	lock := enter.Value
	head := leaf.Exprs[:len(leaf.Exprs)-1]
	if n := len(head); n > 0 {
		// the lock is kept in a variable for the monitorexit
		if a, ok := head[n-1].(*exprent.AssignExpr); ok && a.Op == exprent.OpNone {
			if v := a.Target(); v != nil && sameVar(v, exit) && exprent.Equal(a.Right, lock) {
				head = head[:n-1]
			}
		}
	}
	leaf.Exprs = head
	return &stmt.Sync{Head: leaf, Lock: lock, Body: t.Body}
}

// monitorOf returns the value of a finally body that consists of a
// single monitorexit.
func monitorOf(s stmt.Stmt, enter bool) exprent.Expr {
	list := stmt.List(s)
	if len(list) != 1 {
		return nil
	}
	leaf, ok := list[0].(*stmt.Basic)
	if !ok || len(leaf.Exprs) != 1 {
		return nil
	}
	m, ok := leaf.Exprs[0].(*exprent.MonitorExpr)
	if !ok || m.Enter != enter {
		return nil
	}
	return m.Value
}

func sameVar(v *exprent.VarExpr, e exprent.Expr) bool {
	w, ok := e.(*exprent.VarExpr)
	return ok && w.Index == v.Index
}
