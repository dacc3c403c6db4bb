package nested

import (
	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/class"
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/stmt"
)

// params returns entry references to the declared parameters of mw.
func params(mw *class.MethodWrapper) []*exprent.VarExpr {
	decl := mw.DeclaredParams()
	out := make([]*exprent.VarExpr, len(decl))
	for i := range decl {
		out[i] = mw.ParamVar(i)
	}
	return out
}

func isParam(e exprent.Expr, p *exprent.VarExpr) bool {
	v, ok := e.(*exprent.VarExpr)
	return ok && v.Index == p.Index && v.Version == p.Version
}

// returned unwraps "return value"; a bare expression statement is
// returned as is.
func returned(e exprent.Expr) exprent.Expr {
	if x, ok := e.(*exprent.ExitExpr); ok && x.Kind == exprent.ExitReturn {
		return x.Value
	}
	return e
}

// fieldTarget matches a field access whose receiver is the first
// parameter, or a static field access.
func fieldTarget(e exprent.Expr, ps []*exprent.VarExpr) (*exprent.FieldExpr, int, bool) {
	f, ok := e.(*exprent.FieldExpr)
	if !ok {
		return nil, 0, false
	}
	if f.Static {
		return f, 0, true
	}
	if len(ps) == 0 || !isParam(f.Instance, ps[0]) {
		return nil, 0, false
	}
	return f, 1, true
}

// Classify recognizes a synthetic static method whose body only reads a
// field, writes a field, or forwards to another method with its own
// parameters in order. Results are cached in the context registry.
func Classify(c *class.Context, mw *class.MethodWrapper) *class.Accessor {
	if acc, ok := c.Accessors[mw.Ref]; ok {
		return acc
	}
	acc := classify(mw)
	c.Accessors[mw.Ref] = acc
	if acc.Kind != class.AccessorNone {
		log.Debugf("%s: %s accessor for %s.%s", mw, acc.Kind, acc.Owner, acc.Name)
	}
	return acc
}

func classify(mw *class.MethodWrapper) *class.Accessor {
	none := &class.Accessor{Kind: class.AccessorNone}
	if !mw.IsStatic() || !mw.HasBody() || mw.Name == "<clinit>" {
		return none
	}
	list := stmt.List(mw.Root.Body)
	if len(list) != 1 {
		return none
	}
	leaf, ok := list[0].(*stmt.Basic)
	if !ok || len(leaf.Exprs) == 0 || len(leaf.Exprs) > 2 {
		return none
	}
	exprs := leaf.Exprs
	if len(exprs) == 2 {
		x, ok := exprs[1].(*exprent.ExitExpr)
		if !ok || x.Kind != exprent.ExitReturn {
			return none
		}
	}
	ps := params(mw)
	first := returned(exprs[0])

	switch x := first.(type) {
	case *exprent.FieldExpr:
		f, used, ok := fieldTarget(x, ps)
		if !ok || used != len(ps) || len(exprs) != 1 {
			return none
		}
		return &class.Accessor{Kind: class.AccessorFieldGet, Owner: f.Owner, Name: f.Name, Desc: f.Desc, Static: f.Static}

	case *exprent.AssignExpr:
		if x.Op != exprent.OpNone {
			return none
		}
		f, used, ok := fieldTarget(x.Left, ps)
		if !ok || used+1 != len(ps) || !isParam(x.Right, ps[used]) {
			return none
		}
		if len(exprs) == 2 {
			v := exprs[1].(*exprent.ExitExpr).Value
			if v != nil && !isParam(v, ps[used]) && !exprent.Equal(v, x.Left) {
				return none
			}
		}
		return &class.Accessor{Kind: class.AccessorFieldSet, Owner: f.Owner, Name: f.Name, Desc: f.Desc, Static: f.Static}

	case *exprent.InvocationExpr:
		if x.Kind == exprent.InvokeDynamic || x.IsConstructorCall() || (len(exprs) == 2 && exprs[1].(*exprent.ExitExpr).Value != nil) {
			return none
		}
		rest := ps
		static := x.Instance == nil
		if !static {
			if len(ps) == 0 || !isParam(x.Instance, ps[0]) {
				return none
			}
			rest = ps[1:]
		}
		if len(rest) != len(x.Args) {
			return none
		}
		for i, a := range x.Args {
			if !isParam(a, rest[i]) {
				return none
			}
		}
		return &class.Accessor{
			Kind:    class.AccessorMethod,
			Owner:   x.Owner,
			Name:    x.Name,
			Desc:    x.Desc,
			Static:  static,
			Special: x.Kind == exprent.InvokeSpecial,
		}
	}
	return none
}

// expand builds the direct form of an accessor call.
func expand(acc *class.Accessor, args []exprent.Expr) exprent.Expr {
	var recv exprent.Expr
	if !acc.Static {
		if len(args) == 0 {
			return nil
		}
		recv, args = args[0], args[1:]
	}
	switch acc.Kind {
	case class.AccessorFieldGet, class.AccessorFieldSet:
		f := &exprent.FieldExpr{Owner: acc.Owner, Name: acc.Name, Desc: acc.Desc, Static: acc.Static, Instance: recv, T: exprent.FromDescriptor(acc.Desc)}
		if acc.Kind == class.AccessorFieldGet {
			return f
		}
		if len(args) != 1 {
			return nil
		}
		return &exprent.AssignExpr{Left: f, Right: args[0], Op: exprent.OpNone}
	case class.AccessorMethod:
		kind := exprent.InvokeVirtual
		switch {
		case acc.Static:
			kind = exprent.InvokeStatic
		case acc.Special:
			kind = exprent.InvokeSpecial
		}
		return &exprent.InvocationExpr{Kind: kind, Owner: acc.Owner, Name: acc.Name, Desc: acc.Desc, Instance: recv, Args: args, T: exprent.ReturnType(acc.Desc)}
	}
	return nil
}

// inlineIn replaces accessor calls in one method body. Only accessors
// declared in the same outermost class as root are inlined.
func inlineIn(c *class.Context, root class.NodeID, mw *class.MethodWrapper) bool {
	changed := false
	stmt.ForEachExpr(mw.Root, func(slot *exprent.Expr) {
		if exprent.Rewrite(slot, func(e exprent.Expr) (exprent.Expr, bool) {
			call, ok := e.(*exprent.InvocationExpr)
			if !ok || call.Kind != exprent.InvokeStatic {
				return e, false
			}
			target, ok := c.Tree.FindMethod(call.Owner, call.Name, call.Desc)
			if !ok || target == mw || c.Tree.Root(target.Ref.Class) != root || !target.Info.IsSyntheticMember(ownerPool(c, target)) {
				return e, false
			}
			acc := Classify(c, target)
			if acc.Kind == class.AccessorNone {
				return e, false
			}
			repl := expand(acc, call.Args)
			if repl == nil {
				return e, false
			}
			c.Tree.Hide(class.Member{Class: target.Ref.Class, Name: target.Name, Desc: target.Desc})
			return repl, true
		}) {
			changed = true
		}
	})
	if changed {
		mw.Changed()
		// the body may now be an accessor itself
		delete(c.Accessors, mw.Ref)
	}
	return changed
}

func ownerPool(c *class.Context, mw *class.MethodWrapper) classfile.ConstantPool {
	return c.Tree.Node(mw.Ref.Class).Wrapper.File.ConstantPool
}

// InlineAccessors replaces calls to synthetic accessors everywhere below
// root with the access they perform, repeating until no call is left.
func InlineAccessors(c *class.Context, root class.NodeID) int {
	root = c.Tree.Root(root)
	limit := max(c.Options.Method.MaxFixpointIterations, 1)
	total := 0
	for i := 0; i < limit; i++ {
		changed := 0
		c.Tree.BFS(root, func(n *class.Node) {
			bodies(n, func(mw *class.MethodWrapper) {
				if inlineIn(c, root, mw) {
					changed++
				}
			})
		})
		total += changed
		if changed == 0 {
			break
		}
	}
	return total
}
