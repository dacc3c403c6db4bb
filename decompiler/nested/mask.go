package nested

import (
	"strings"

	"github.com/dhamidi/decaf/decompiler/class"
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/stmt"
)

// Mask has one entry per declared constructor parameter: the capture the
// parameter carries, or nil for an ordinary parameter.
type Mask []*class.Capture

func (m Mask) String() string {
	parts := make([]string, len(m))
	for i, c := range m {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Empty reports a mask without captures.
func (m Mask) Empty() bool {
	for _, c := range m {
		if c != nil {
			return false
		}
	}
	return true
}

// Merge combines call-site masks: an entry survives only when every
// mask holds the same capture at that position.
func Merge(masks ...Mask) Mask {
	if len(masks) == 0 {
		return nil
	}
	out := make(Mask, len(masks[0]))
	copy(out, masks[0])
	for _, m := range masks[1:] {
		for i := range out {
			if i >= len(m) || !out[i].Same(m[i]) {
				out[i] = nil
			}
		}
	}
	return out
}

// paramIndex maps a variable to the position of the declared parameter
// it reads on entry, or -1.
func paramIndex(mw *class.MethodWrapper, v *exprent.VarExpr) int {
	if v.Version != 1 {
		return -1
	}
	for i, p := range mw.DeclaredParams() {
		if p.Slot == v.Index {
			return i
		}
	}
	return -1
}

func isThis(e exprent.Expr) bool {
	v, ok := e.(*exprent.VarExpr)
	return ok && v.Index == 0 && !v.Stack
}

// captureStore matches this.f = param, returning the field and the
// parameter position.
func captureStore(cw *class.ClassWrapper, mw *class.MethodWrapper, e exprent.Expr) (string, int, bool) {
	a, ok := e.(*exprent.AssignExpr)
	if !ok || a.Op != exprent.OpNone {
		return "", -1, false
	}
	f, ok := a.Left.(*exprent.FieldExpr)
	if !ok || f.Static || f.Owner != cw.Name || !isThis(f.Instance) {
		return "", -1, false
	}
	v, ok := a.Right.(*exprent.VarExpr)
	if !ok {
		return "", -1, false
	}
	i := paramIndex(mw, v)
	return f.Name, i, i >= 0
}

// firstLeaf returns the leaf a constructor starts with when it runs
// unconditionally.
func firstLeaf(mw *class.MethodWrapper) *stmt.Basic {
	list := stmt.List(mw.Root.Body)
	if len(list) == 0 {
		return nil
	}
	leaf, ok := list[0].(*stmt.Basic)
	if !ok || (leaf.Block != nil && len(leaf.Block.Preds) > 0) {
		return nil
	}
	return leaf
}

// DeclaredMask reads the parameters a constructor stores straight into
// fields of its class before calling the super constructor.
func DeclaredMask(cw *class.ClassWrapper, ctor *class.MethodWrapper) Mask {
	if !ctor.HasBody() {
		return nil
	}
	mask := make(Mask, len(ctor.DeclaredParams()))
	leaf := firstLeaf(ctor)
	if leaf == nil {
		return mask
	}
	for _, e := range leaf.Exprs {
		field, i, ok := captureStore(cw, ctor, e)
		if !ok {
			break
		}
		mask[i] = &class.Capture{Field: field}
	}
	return mask
}

// CallSiteMasks collects one mask per construction of nested with the
// given constructor descriptor anywhere in the class tree of nested.
func CallSiteMasks(c *class.Context, nested *class.Node, desc string) []Mask {
	var out []Mask
	outer := c.Tree.Node(nested.Parent)
	c.Tree.BFS(c.Tree.Root(nested.ID), func(n *class.Node) {
		if n.Wrapper == nil || n.ID == nested.ID {
			return
		}
		for _, mw := range n.Wrapper.Methods {
			if !mw.HasBody() {
				continue
			}
			stmt.ForEachExpr(mw.Root, func(slot *exprent.Expr) {
				exprent.Walk(*slot, func(x exprent.Expr) bool {
					ne, ok := x.(*exprent.NewExpr)
					if !ok || ne.Class != nested.Name || ne.CtorDesc != desc {
						return true
					}
					out = append(out, siteMask(mw, outer, ne.Args))
					return true
				})
			})
		}
	})
	return out
}

func siteMask(mw *class.MethodWrapper, outer *class.Node, args []exprent.Expr) Mask {
	mask := make(Mask, len(args))
	for i, a := range args {
		v, ok := a.(*exprent.VarExpr)
		if !ok {
			continue
		}
		if v.Index == 0 && !mw.IsStatic() && outer != nil && mw.Class == outer.Name {
			mask[i] = &class.Capture{Outer: true}
			continue
		}
		mask[i] = &class.Capture{Var: exprent.Clone(v).(*exprent.VarExpr), Site: mw.Ref}
	}
	return mask
}

// combine keeps the declared captures the call sites agree with. For
// non-static member classes the first parameter is the outer instance
// whatever the call sites pass.
func combine(declared, sites Mask, outerSlot bool) Mask {
	out := make(Mask, len(declared))
	for i, d := range declared {
		if d == nil {
			continue
		}
		if i == 0 && outerSlot {
			out[0] = &class.Capture{Field: d.Field, Outer: true}
			continue
		}
		if i >= len(sites) || sites[i] == nil {
			continue
		}
		s := sites[i]
		out[i] = &class.Capture{Field: d.Field, Outer: s.Outer, Var: s.Var, Site: s.Site}
	}
	return out
}

// capturing reports nested classes whose constructors may receive an
// enclosing instance or captured values.
func capturing(n *class.Node) bool {
	switch n.Kind {
	case class.KindMember:
		return !n.IsStatic()
	case class.KindLocal, class.KindAnonymous:
		return true
	}
	return false
}

// InferMasks runs capture inference for one nested class and stores the
// result on its constructors.
func InferMasks(c *class.Context, n *class.Node) {
	if n.Wrapper == nil || !capturing(n) {
		return
	}
	outerSlot := n.Kind == class.KindMember
	for _, ctor := range n.Wrapper.Constructors() {
		declared := DeclaredMask(n.Wrapper, ctor)
		if declared.Empty() {
			continue
		}
		sites := CallSiteMasks(c, n, ctor.Desc)
		mask := combine(declared, Merge(sites...), outerSlot)
		copy(ctor.Synthetic, mask)
		log.Debugf("%s: capture mask %s from %d call sites", ctor, mask, len(sites))
	}
}
