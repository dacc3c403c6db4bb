package nested

import (
	"github.com/dhamidi/decaf/decompiler/class"
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/stmt"
	"github.com/dhamidi/decaf/decompiler/vars"
)

// fieldCaptures collects the captured fields of a class from its
// constructors' masks. A field the constructors disagree on is dropped.
func fieldCaptures(cw *class.ClassWrapper) map[string]*class.Capture {
	out := make(map[string]*class.Capture)
	conflict := make(map[string]bool)
	for _, ctor := range cw.Constructors() {
		for _, c := range ctor.Synthetic {
			if c == nil || c.Field == "" || conflict[c.Field] {
				continue
			}
			if prev, ok := out[c.Field]; ok && !prev.Same(c) {
				delete(out, c.Field)
				conflict[c.Field] = true
				continue
			}
			out[c.Field] = c
		}
	}
	return out
}

// enclosingVar resolves the name and type of a captured variable in the
// method it was captured from, and marks it final there.
func enclosingVar(c *class.Context, cap *class.Capture) (string, exprent.Type) {
	key := vars.Of(cap.Var)
	site := c.Tree.Method(cap.Site)
	if site == nil || site.Vars == nil {
		name := cap.Var.Name
		if name == "" {
			name = vars.DefaultName(cap.Var.Index)
		}
		return name, cap.Var.T
	}
	site.Vars.SetFinal(key, true)
	t := site.Vars.Type(key)
	if t.IsUnknown() {
		t = cap.Var.T
	}
	return site.Vars.Name(key), t
}

// rewriter replaces captured values inside one method of a nested class.
type rewriter struct {
	c      *class.Context
	n      *class.Node
	mw     *class.MethodWrapper
	fields map[string]*class.Capture
	locals map[*class.Capture]vars.VarVersion
}

// bind allocates the local standing for every captured variable. The
// method's own variables are renamed away from the captured names first.
func (r *rewriter) bind() {
	reserved := r.n.Wrapper.FieldNames()
	type binding struct {
		cap  *class.Capture
		name string
		t    exprent.Type
	}
	var pending []binding
	add := func(cap *class.Capture) {
		if cap == nil || cap.Outer || cap.Var == nil {
			return
		}
		if _, ok := r.locals[cap]; ok {
			return
		}
		name, t := enclosingVar(r.c, cap)
		reserved[name] = true
		r.locals[cap] = vars.VarVersion{Index: -1}
		pending = append(pending, binding{cap, name, t})
	}
	for _, cap := range r.fields {
		add(cap)
	}
	for _, cap := range r.mw.Synthetic {
		add(cap)
	}
	if len(pending) == 0 {
		return
	}
	r.mw.Vars.RefreshNames(reserved)
	for _, b := range pending {
		r.locals[b.cap] = r.mw.Vars.NewCaptured(b.name, b.t)
	}
}

func (r *rewriter) replacement(cap *class.Capture) exprent.Expr {
	if cap.Outer {
		outer := r.c.Tree.Node(r.n.Parent)
		if outer == nil {
			return nil
		}
		return &exprent.OuterThisExpr{Class: outer.Name}
	}
	v, ok := r.locals[cap]
	if !ok || v.Index < 0 {
		return nil
	}
	return &exprent.VarExpr{Index: v.Index, Version: v.Version, T: r.mw.Vars.Type(v), Name: r.mw.Vars.Name(v)}
}

func (r *rewriter) rewrite(e exprent.Expr) (exprent.Expr, bool) {
	switch x := e.(type) {
	case *exprent.FieldExpr:
		if x.Static || x.Owner != r.n.Name || r.mw.IsStatic() || !isThis(x.Instance) {
			return e, false
		}
		if cap, ok := r.fields[x.Name]; ok {
			if repl := r.replacement(cap); repl != nil {
				return repl, true
			}
		}
	case *exprent.VarExpr:
		i := paramIndex(r.mw, x)
		if i < 0 || i >= len(r.mw.Synthetic) || r.mw.Synthetic[i] == nil {
			return e, false
		}
		if repl := r.replacement(r.mw.Synthetic[i]); repl != nil {
			return repl, true
		}
	}
	return e, false
}

// dropCaptureStores removes the leading this.f = param stores of a
// constructor whose parameter is a capture.
func (r *rewriter) dropCaptureStores() bool {
	leaf := firstLeaf(r.mw)
	if leaf == nil {
		return false
	}
	n := 0
	for n < len(leaf.Exprs) {
		_, i, ok := captureStore(r.n.Wrapper, r.mw, leaf.Exprs[n])
		if !ok || r.mw.Synthetic[i] == nil {
			break
		}
		n++
	}
	leaf.Exprs = leaf.Exprs[n:]
	return n > 0
}

// Rewrite replaces every use of a captured field or parameter in the
// methods of n with the enclosing value and hides the capture fields.
func Rewrite(c *class.Context, n *class.Node) bool {
	if n.Wrapper == nil || !capturing(n) {
		return false
	}
	fields := fieldCaptures(n.Wrapper)
	changed := false
	for _, mw := range n.Wrapper.Methods {
		if !mw.HasBody() {
			continue
		}
		r := &rewriter{c: c, n: n, mw: mw, fields: fields, locals: make(map[*class.Capture]vars.VarVersion)}
		r.bind()
		touched := false
		if mw.Name == "<init>" && r.dropCaptureStores() {
			touched = true
		}
		stmt.ForEachExpr(mw.Root, func(slot *exprent.Expr) {
			if exprent.Rewrite(slot, r.rewrite) {
				touched = true
			}
		})
		if touched {
			mw.Changed()
			mw.ApplyNames()
			changed = true
		}
	}
	for name := range fields {
		if f, ok := n.Wrapper.Field(name); ok {
			c.Tree.Hide(class.Member{Class: n.ID, Name: name, Desc: f.Desc})
		}
	}
	if n.Kind == class.KindAnonymous {
		eraseSuperCalls(c, n)
	}
	return changed
}

// eraseSuperCalls removes the super(...) call of anonymous class
// constructors and hides constructors left empty.
func eraseSuperCalls(c *class.Context, n *class.Node) {
	for _, ctor := range n.Wrapper.Constructors() {
		if !ctor.HasBody() {
			continue
		}
		leaf := firstLeaf(ctor)
		if leaf == nil {
			continue
		}
		for i, e := range leaf.Exprs {
			call, ok := e.(*exprent.InvocationExpr)
			if ok && call.IsConstructorCall() && isThis(call.Instance) {
				leaf.Exprs = append(leaf.Exprs[:i:i], leaf.Exprs[i+1:]...)
				ctor.Changed()
				break
			}
		}
		if stmt.IsEmpty(ctor.Root.Body) {
			c.Tree.Hide(class.Member{Class: n.ID, Name: ctor.Name, Desc: ctor.Desc})
		}
	}
}

// stripCapturedArgs drops the arguments an anonymous or local class
// creation passes for captures, leaving the super constructor arguments.
func stripCapturedArgs(c *class.Context, ne *exprent.NewExpr) {
	n, ok := c.Tree.Lookup(ne.Class)
	if !ok || n.Wrapper == nil || (n.Kind != class.KindAnonymous && n.Kind != class.KindLocal) {
		return
	}
	ref, ok := n.Wrapper.Method("<init> " + ne.CtorDesc)
	if !ok {
		return
	}
	mask := n.Wrapper.Methods[ref.Index].Synthetic
	if len(mask) != len(ne.Args) {
		return
	}
	args := ne.Args[:0:0]
	for i, a := range ne.Args {
		if mask[i] == nil {
			args = append(args, a)
		}
	}
	ne.Args = args
}
