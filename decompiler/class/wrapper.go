package class

import (
	"fmt"

	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/graph"
	"github.com/dhamidi/decaf/decompiler/method"
	"github.com/dhamidi/decaf/decompiler/stmt"
	"github.com/dhamidi/decaf/decompiler/vars"
)

// MethodRef addresses a method by its class node and its index in the
// class's method table.
type MethodRef struct {
	Class NodeID
	Index int
}

func (r MethodRef) Valid() bool { return r.Class != NoNode && r.Index >= 0 }

func (r MethodRef) String() string { return fmt.Sprintf("#%d/%d", r.Class, r.Index) }

// Capture marks a constructor or lambda parameter that only carries a
// value from the enclosing scope. Outer captures stand for the enclosing
// instance; otherwise Var is the enclosing variable, read in Site.
type Capture struct {
	Field string
	Outer bool
	Var   *exprent.VarExpr
	Site  MethodRef
}

// Same reports whether two captures denote the same enclosing value.
func (c *Capture) Same(o *Capture) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.Outer || o.Outer {
		return c.Outer == o.Outer
	}
	return c.Site == o.Site && c.Var.Index == o.Var.Index && c.Var.Version == o.Var.Version
}

func (c *Capture) String() string {
	switch {
	case c == nil:
		return "-"
	case c.Outer:
		return "outer"
	case c.Var != nil:
		return c.Var.String()
	}
	return c.Field
}

// FieldInit is an initializer lifted out of <clinit> or the
// constructors.
type FieldInit struct {
	Name  string
	Desc  string
	Value exprent.Expr
}

type Field struct {
	Name   string
	Desc   string
	Access classfile.AccessFlags
}

// ClassWrapper carries one class file and its reconstructed members.
type ClassWrapper struct {
	Node    NodeID
	Name    string
	File    *classfile.ClassFile
	Fields  []Field
	Methods []*MethodWrapper

	StaticInit   []FieldInit
	InstanceInit []FieldInit

	byKey map[string]int
}

func NewClassWrapper(node NodeID, cf *classfile.ClassFile) *ClassWrapper {
	cw := &ClassWrapper{Node: node, Name: cf.ClassName(), File: cf, byKey: make(map[string]int)}
	for i := range cf.Fields {
		f := &cf.Fields[i]
		cw.Fields = append(cw.Fields, Field{Name: f.Name(cf.ConstantPool), Desc: f.Descriptor(cf.ConstantPool), Access: f.AccessFlags})
	}
	for i := range cf.Methods {
		info := &cf.Methods[i]
		mw := &MethodWrapper{
			Ref:    MethodRef{Class: node, Index: i},
			Class:  cw.Name,
			Name:   info.Name(cf.ConstantPool),
			Desc:   info.Descriptor(cf.ConstantPool),
			Access: info.AccessFlags,
			Info:   info,
		}
		cw.byKey[mw.Key()] = i
		cw.Methods = append(cw.Methods, mw)
	}
	return cw
}

// Method looks a method up by "name descriptor".
func (cw *ClassWrapper) Method(key string) (MethodRef, bool) {
	i, ok := cw.byKey[key]
	if !ok {
		return MethodRef{Class: NoNode}, false
	}
	return MethodRef{Class: cw.Node, Index: i}, true
}

func (cw *ClassWrapper) Field(name string) (Field, bool) {
	for _, f := range cw.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames lists the names variables must not shadow.
func (cw *ClassWrapper) FieldNames() map[string]bool {
	out := make(map[string]bool, len(cw.Fields))
	for _, f := range cw.Fields {
		out[f.Name] = true
	}
	return out
}

// Constructors lists the <init> methods in declaration order.
func (cw *ClassWrapper) Constructors() []*MethodWrapper {
	var out []*MethodWrapper
	for _, m := range cw.Methods {
		if m.Name == "<init>" {
			out = append(out, m)
		}
	}
	return out
}

// MethodWrapper is one method with its reconstruction result. The tree
// and variable table belong to the wrapper; passes that rewrite them
// must call Changed.
type MethodWrapper struct {
	Ref    MethodRef
	Class  string
	Name   string
	Desc   string
	Access classfile.AccessFlags
	Info   *classfile.MethodInfo

	Root   *stmt.Root
	Vars   *vars.Processor
	Params []vars.Param
	Status method.Status
	Err    error

	// Synthetic holds, per declared parameter, the capture it stands for
	// or nil for an ordinary parameter.
	Synthetic []*Capture

	flow *graph.DirectGraph
}

func (m *MethodWrapper) Key() string { return m.Name + " " + m.Desc }

func (m *MethodWrapper) String() string { return m.Class + "." + m.Name + m.Desc }

func (m *MethodWrapper) IsStatic() bool { return m.Access.IsStatic() }

// HasBody reports a method that was reconstructed.
func (m *MethodWrapper) HasBody() bool { return m.Root != nil && m.Status == method.StatusOK }

// Flow returns the direct graph of the body, built on first use.
func (m *MethodWrapper) Flow() *graph.DirectGraph {
	if m.flow == nil && m.Root != nil {
		m.flow = graph.Build(m.Root)
	}
	return m.flow
}

// Changed drops cached views of the body.
func (m *MethodWrapper) Changed() { m.flow = nil }

// DeclaredParams returns the parameters without the receiver.
func (m *MethodWrapper) DeclaredParams() []vars.Param {
	if !m.IsStatic() && len(m.Params) > 0 {
		return m.Params[1:]
	}
	return m.Params
}

// ParamVar returns a reference to the entry version of a declared
// parameter.
func (m *MethodWrapper) ParamVar(i int) *exprent.VarExpr {
	p := m.DeclaredParams()[i]
	v := &exprent.VarExpr{Index: p.Slot, Version: 1, T: p.Type}
	if m.Vars != nil {
		v.Name = m.Vars.Name(vars.Of(v))
	}
	return v
}

// ApplyNames copies the variable table onto every reference in the body.
func (m *MethodWrapper) ApplyNames() {
	if m.Root == nil || m.Vars == nil {
		return
	}
	var list []exprent.Expr
	stmt.ForEachExpr(m.Root, func(e *exprent.Expr) { list = append(list, *e) })
	stmt.Walk(m.Root, func(s stmt.Stmt) bool {
		if t, ok := s.(*stmt.Try); ok {
			for _, c := range t.Catches {
				if c.Var != nil {
					list = append(list, c.Var)
				}
			}
		}
		return true
	})
	m.Vars.Apply(list)
}
