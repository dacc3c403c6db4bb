package class

import (
	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/stmt"
)

// extractInitializers fills StaticInit from ConstantValue attributes and
// the leading static stores of <clinit>, and InstanceInit from the field
// stores every super-calling constructor starts with. Lifted stores are
// removed from the bodies.
func (c *Context) extractInitializers(cw *ClassWrapper) {
	cp := cw.File.ConstantPool
	seen := make(map[string]bool)
	for i := range cw.File.Fields {
		f := &cw.File.Fields[i]
		if !f.IsStatic() {
			continue
		}
		if idx := f.ConstantValue(cp); idx != 0 {
			name, desc := f.Name(cp), f.Descriptor(cp)
			if v := poolConstant(cp, idx, desc); v != nil {
				cw.StaticInit = append(cw.StaticInit, FieldInit{Name: name, Desc: desc, Value: v})
				seen[name] = true
			}
		}
	}

	for _, mw := range cw.Methods {
		if mw.Name == "<clinit>" && mw.HasBody() {
			c.staticInits(cw, mw, seen)
		}
	}
	c.instanceInits(cw)
}

func poolConstant(cp classfile.ConstantPool, idx uint16, desc string) exprent.Expr {
	v, ok := cp.Value(idx)
	if !ok {
		return nil
	}
	t := exprent.FromDescriptor(desc)
	// int constants also initialize boolean, byte, char and short fields
	if _, isInt := v.(int32); isInt {
		if t.Kind < exprent.KindBoolean || t.Kind > exprent.KindInt || t.Dims > 0 {
			return nil
		}
	} else if exprent.ConstType(v) != t {
		return nil
	}
	return exprent.NewConst(v, t)
}

// liftable reports a store of a value that does not depend on locals or
// on other fields of the class.
func liftable(cw *ClassWrapper, e exprent.Expr, static bool) (string, exprent.Expr, bool) {
	a, ok := e.(*exprent.AssignExpr)
	if !ok || a.Op != exprent.OpNone {
		return "", nil, false
	}
	f, ok := a.Left.(*exprent.FieldExpr)
	if !ok || f.Owner != cw.Name || f.Static != static {
		return "", nil, false
	}
	if field, ok := cw.Field(f.Name); !ok || field.Access.IsStatic() != static {
		return "", nil, false
	}
	if !static {
		if v, ok := f.Instance.(*exprent.VarExpr); !ok || v.Index != 0 {
			return "", nil, false
		}
	}
	clean := true
	exprent.Walk(a.Right, func(x exprent.Expr) bool {
		switch n := x.(type) {
		case *exprent.VarExpr:
			clean = false
		case *exprent.FieldExpr:
			if n.Owner == cw.Name {
				clean = false
			}
		}
		return clean
	})
	return f.Name, a.Right, clean
}

func (c *Context) staticInits(cw *ClassWrapper, mw *MethodWrapper, seen map[string]bool) {
	changed := false
outer:
	for _, s := range stmt.List(mw.Root.Body) {
		leaf, ok := s.(*stmt.Basic)
		if !ok {
			break
		}
		for len(leaf.Exprs) > 0 {
			name, value, ok := liftable(cw, leaf.Exprs[0], true)
			if !ok || seen[name] {
				break outer
			}
			field, _ := cw.Field(name)
			cw.StaticInit = append(cw.StaticInit, FieldInit{Name: name, Desc: field.Desc, Value: value})
			seen[name] = true
			leaf.Exprs = leaf.Exprs[1:]
			changed = true
		}
	}
	if !changed {
		return
	}
	mw.Changed()
	if stmt.IsEmpty(mw.Root.Body) && c.Tree != nil {
		c.Tree.Hide(Member{Class: cw.Node, Name: mw.Name, Desc: mw.Desc})
	}
}

// superCall locates the super(...) call in the first leaf of a
// constructor. It returns nil for constructors delegating to this(...).
func superCall(cw *ClassWrapper, mw *MethodWrapper) (*stmt.Basic, int) {
	list := stmt.List(mw.Root.Body)
	if len(list) == 0 {
		return nil, -1
	}
	leaf, ok := list[0].(*stmt.Basic)
	if !ok {
		return nil, -1
	}
	for i, e := range leaf.Exprs {
		call, ok := e.(*exprent.InvocationExpr)
		if !ok || !call.IsConstructorCall() {
			continue
		}
		if v, ok := call.Instance.(*exprent.VarExpr); !ok || v.Index != 0 {
			continue
		}
		if call.Owner == cw.Name {
			return nil, -1
		}
		return leaf, i
	}
	return nil, -1
}

func (c *Context) instanceInits(cw *ClassWrapper) {
	type ctor struct {
		mw    *MethodWrapper
		leaf  *stmt.Basic
		at    int
		inits []FieldInit
	}
	var ctors []*ctor
	for _, mw := range cw.Constructors() {
		if !mw.HasBody() {
			continue
		}
		leaf, at := superCall(cw, mw)
		if leaf == nil {
			continue
		}
		k := &ctor{mw: mw, leaf: leaf, at: at}
		for _, e := range leaf.Exprs[at+1:] {
			name, value, ok := liftable(cw, e, false)
			if !ok {
				break
			}
			field, _ := cw.Field(name)
			k.inits = append(k.inits, FieldInit{Name: name, Desc: field.Desc, Value: value})
		}
		ctors = append(ctors, k)
	}
	if len(ctors) == 0 {
		return
	}

	common := ctors[0].inits
	for _, k := range ctors[1:] {
		n := 0
		for n < len(common) && n < len(k.inits) &&
			common[n].Name == k.inits[n].Name && exprent.Equal(common[n].Value, k.inits[n].Value) {
			n++
		}
		common = common[:n]
	}
	if len(common) == 0 {
		return
	}
	cw.InstanceInit = append(cw.InstanceInit, common...)
	for _, k := range ctors {
		exprs := k.leaf.Exprs
		k.leaf.Exprs = append(exprs[:k.at+1:k.at+1], exprs[k.at+1+len(common):]...)
		k.mw.Changed()
	}
}
