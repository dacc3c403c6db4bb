package nested

import (
	"github.com/dhamidi/decaf/decompiler/class"
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/stmt"
	"github.com/dhamidi/decaf/decompiler/vars"
)

// lambdaSite finds the creation of lambda node n in its enclosing method.
func lambdaSite(c *class.Context, n *class.Node) (*class.MethodWrapper, *exprent.NewExpr) {
	mw := c.Tree.Method(n.Enclosing)
	if mw == nil || !mw.HasBody() {
		return nil, nil
	}
	var site *exprent.NewExpr
	stmt.ForEachExpr(mw.Root, func(slot *exprent.Expr) {
		exprent.Walk(*slot, func(x exprent.Expr) bool {
			if ne, ok := x.(*exprent.NewExpr); ok && ne.Lambda && ne.Node == int(n.ID) && site == nil {
				site = ne
			}
			return site == nil
		})
	})
	return mw, site
}

// ThreadLambda binds the leading parameters of a lambda body to the
// values captured at its creation: they take the enclosing names and are
// recorded as synthetic on the body method.
func ThreadLambda(c *class.Context, n *class.Node) bool {
	l := n.Lambda
	if l == nil || l.IsMethodReference || l.Captured == 0 {
		return false
	}
	content, ok := c.Tree.FindMethod(l.ContentClass, l.ContentName, l.ContentDesc)
	if !ok || !content.HasBody() {
		return false
	}
	site, ne := lambdaSite(c, n)
	if ne == nil {
		log.Debugf("%s: creation site not found", n.Name)
		return false
	}
	offset := 0
	if !l.ContentStatic() {
		offset = 1
	}
	if len(ne.Args) < offset+l.Captured || len(content.DeclaredParams()) < l.Captured {
		return false
	}

	l.Captures = make([]*class.Capture, l.Captured)
	reserved := make(map[string]bool)
	if owner, ok := c.Tree.Lookup(content.Class); ok && owner.Wrapper != nil {
		reserved = owner.Wrapper.FieldNames()
	}
	bound := make(map[vars.VarVersion]string)
	for i := 0; i < l.Captured; i++ {
		arg := ne.Args[offset+i]
		cap := &class.Capture{Site: site.Ref}
		if v, ok := arg.(*exprent.VarExpr); ok {
			if v.Index == 0 && !site.IsStatic() {
				cap.Outer = true
			} else {
				cap.Var = exprent.Clone(v).(*exprent.VarExpr)
				key := vars.Of(v)
				site.Vars.SetFinal(key, true)
				name := site.Vars.Name(key)
				bound[vars.Of(content.ParamVar(i))] = name
				reserved[name] = true
			}
		}
		l.Captures[i] = cap
		if i < len(content.Synthetic) {
			content.Synthetic[i] = cap
		}
	}

	content.Vars.RefreshNames(reserved)
	for v, name := range bound {
		content.Vars.SetName(v, name)
	}
	content.ApplyNames()
	content.Changed()
	log.Debugf("%s: %d captured values threaded into %s", n.Name, l.Captured, content)
	return true
}
