package nested

import (
	"github.com/dhamidi/decaf/decompiler/class"
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/stmt"
)

// ownExprs lists the expression positions a statement holds itself, not
// counting those of nested statements.
func ownExprs(s stmt.Stmt) []*exprent.Expr {
	var out []*exprent.Expr
	leaf := func(b *stmt.Basic) {
		if b == nil {
			return
		}
		for i := range b.Exprs {
			out = append(out, &b.Exprs[i])
		}
	}
	opt := func(e *exprent.Expr) {
		if *e != nil {
			out = append(out, e)
		}
	}
	switch x := s.(type) {
	case *stmt.Basic:
		leaf(x)
	case *stmt.If:
		opt(&x.Cond)
	case *stmt.Loop:
		opt(&x.Init)
		opt(&x.Cond)
		opt(&x.Inc)
	case *stmt.Switch:
		opt(&x.Value)
	case *stmt.Sync:
		opt(&x.Lock)
	}
	return out
}

func uses(e exprent.Expr, name string) bool {
	found := false
	exprent.Walk(e, func(x exprent.Expr) bool {
		switch y := x.(type) {
		case *exprent.NewExpr:
			found = found || y.Class == name
		case *exprent.FieldExpr:
			found = found || y.Owner == name
		case *exprent.InvocationExpr:
			found = found || y.Owner == name
		case *exprent.ClassDefExpr:
			found = found || y.Class == name
		}
		return !found
	})
	return found
}

// declared reports whether a declaration of node id is already in root.
func declared(root stmt.Stmt, id class.NodeID) bool {
	found := false
	stmt.ForEachExpr(root, func(slot *exprent.Expr) {
		if d, ok := (*slot).(*exprent.ClassDefExpr); ok && d.Node == int(id) {
			found = true
		}
	})
	return found
}

func ancestors(parents map[stmt.Stmt]stmt.Stmt, s stmt.Stmt) []stmt.Stmt {
	var out []stmt.Stmt
	for s != nil {
		out = append(out, s)
		s = parents[s]
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// DeclareLocal inserts the declaration of local class n right before the
// first statement of the smallest scope covering all its uses in the
// enclosing method.
func DeclareLocal(c *class.Context, n *class.Node) bool {
	mw := c.Tree.Method(n.Enclosing)
	if mw == nil || !mw.HasBody() || declared(mw.Root, n.ID) {
		return false
	}
	def := &exprent.ClassDefExpr{Class: n.Name, Node: int(n.ID)}

	var users []stmt.Stmt
	stmt.Walk(mw.Root, func(s stmt.Stmt) bool {
		for _, slot := range ownExprs(s) {
			if uses(*slot, n.Name) {
				users = append(users, s)
				break
			}
		}
		return true
	})
	if len(users) == 0 {
		mw.Root.Body = stmt.Seq(&stmt.Basic{Exprs: []exprent.Expr{def}}, mw.Root.Body)
		mw.Changed()
		return true
	}

	parents := stmt.Parents(mw.Root)
	common := ancestors(parents, users[0])
	for _, u := range users[1:] {
		path := ancestors(parents, u)
		k := 0
		for k < len(common) && k < len(path) && common[k] == path[k] {
			k++
		}
		common = common[:k]
	}
	if len(common) == 0 {
		return false
	}
	scope := common[len(common)-1]

	if b, ok := scope.(*stmt.Basic); ok {
		for i, e := range b.Exprs {
			if uses(e, n.Name) {
				b.Exprs = append(b.Exprs[:i:i], append([]exprent.Expr{def}, b.Exprs[i:]...)...)
				mw.Changed()
				return true
			}
		}
	}

	// Declare before the child of scope leading to the first use, or
	// before scope itself when it uses the class directly.
	before := scope
	if seq, ok := scope.(*stmt.Sequence); ok && len(common) < len(ancestors(parents, users[0])) {
		before = ancestors(parents, users[0])[len(common)]
		for i, s := range seq.Stmts {
			if s == before {
				seq.Stmts = append(seq.Stmts[:i:i], append([]stmt.Stmt{&stmt.Basic{Exprs: []exprent.Expr{def}}}, seq.Stmts[i:]...)...)
				mw.Changed()
				return true
			}
		}
	}
	return insertBefore(mw, parents, before, def)
}

func insertBefore(mw *class.MethodWrapper, parents map[stmt.Stmt]stmt.Stmt, s stmt.Stmt, def exprent.Expr) bool {
	decl := &stmt.Basic{Exprs: []exprent.Expr{def}}
	if seq, ok := parents[s].(*stmt.Sequence); ok {
		for i, x := range seq.Stmts {
			if x == s {
				seq.Stmts = append(seq.Stmts[:i:i], append([]stmt.Stmt{decl}, seq.Stmts[i:]...)...)
				mw.Changed()
				return true
			}
		}
	}
	if stmt.Replace(mw.Root, s, &stmt.Sequence{Stmts: []stmt.Stmt{decl, s}}) {
		mw.Changed()
		return true
	}
	return false
}
