// Package exprent holds the expression trees that fill the leaves of a
// reconstructed statement tree.
package exprent

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is one node of an expression tree. Slots returns pointers to the
// child positions so passes can rewrite the tree in place.
type Expr interface {
	Type() Type
	String() string
	Slots() []*Expr
}

// NoNode marks expressions that are not linked to a class-tree node.
const NoNode = -1

// ClassLiteral is the constant value of an ldc of a class.
type ClassLiteral struct{ T Type }

type ConstExpr struct {
	Value any // nil, bool, int32, int64, float32, float64, string, ClassLiteral
	T     Type
}

func NewConst(v any, t Type) *ConstExpr { return &ConstExpr{Value: v, T: t} }

func (e *ConstExpr) Type() Type     { return e.T }
func (e *ConstExpr) Slots() []*Expr { return nil }

func (e *ConstExpr) String() string {
	switch v := e.Value.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case int32:
		switch e.T.Kind {
		case KindBoolean:
			return strconv.FormatBool(v != 0)
		case KindChar:
			return strconv.QuoteRune(rune(v))
		}
		return strconv.Itoa(int(v))
	case int64:
		return strconv.FormatInt(v, 10) + "L"
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32) + "F"
	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEN") {
			s += ".0"
		}
		return s
	case string:
		return strconv.Quote(v)
	case ClassLiteral:
		return v.T.String() + ".class"
	}
	return fmt.Sprint(e.Value)
}

// IntValue reports the integral value of an int-like constant.
func (e *ConstExpr) IntValue() (int64, bool) {
	switch v := e.Value.(type) {
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

// VarExpr reads or, as the left side of an assignment, writes a local
// variable. Stack marks temporaries introduced by stack simulation.
type VarExpr struct {
	Index   int
	Version int
	T       Type
	Name    string
	Stack   bool
	Declare bool
}

func (e *VarExpr) Type() Type     { return e.T }
func (e *VarExpr) Slots() []*Expr { return nil }

func (e *VarExpr) String() string {
	name := e.Name
	if name == "" {
		name = "var" + strconv.Itoa(e.Index)
	}
	if e.Declare {
		return e.T.String() + " " + name
	}
	return name
}

// Same reports whether two variable expressions denote the same
// (slot, version) pair.
func (e *VarExpr) Same(o *VarExpr) bool {
	return o != nil && e.Index == o.Index && e.Version == o.Version
}

type FieldExpr struct {
	Owner    string
	Name     string
	Desc     string
	Static   bool
	Instance Expr
	T        Type
}

func (e *FieldExpr) Type() Type { return e.T }

func (e *FieldExpr) Slots() []*Expr {
	if e.Instance == nil {
		return nil
	}
	return []*Expr{&e.Instance}
}

func (e *FieldExpr) String() string {
	if e.Static || e.Instance == nil {
		return ObjectType(e.Owner).String() + "." + e.Name
	}
	return operand(e.Instance) + "." + e.Name
}

type InvokeKind uint8

const (
	InvokeVirtual InvokeKind = iota
	InvokeSpecial
	InvokeStatic
	InvokeInterface
	InvokeDynamic
)

type InvocationExpr struct {
	Kind     InvokeKind
	Owner    string
	Name     string
	Desc     string
	Instance Expr
	Args     []Expr
	T        Type

	// invokedynamic call sites
	CPIndex   int
	Bootstrap int
}

func (e *InvocationExpr) Type() Type { return e.T }

func (e *InvocationExpr) Slots() []*Expr {
	slots := make([]*Expr, 0, len(e.Args)+1)
	if e.Instance != nil {
		slots = append(slots, &e.Instance)
	}
	for i := range e.Args {
		slots = append(slots, &e.Args[i])
	}
	return slots
}

// IsConstructorCall reports a this(...) or super(...) call.
func (e *InvocationExpr) IsConstructorCall() bool {
	return e.Kind == InvokeSpecial && e.Name == "<init>"
}

func (e *InvocationExpr) String() string {
	args := joinExprs(e.Args)
	switch {
	case e.Kind == InvokeDynamic:
		return fmt.Sprintf("<invokedynamic %s#%d>(%s)", e.Name, e.CPIndex, args)
	case e.IsConstructorCall():
		return "super(" + args + ")"
	case e.Kind == InvokeStatic || e.Instance == nil:
		return ObjectType(e.Owner).String() + "." + e.Name + "(" + args + ")"
	}
	return operand(e.Instance) + "." + e.Name + "(" + args + ")"
}

// NewExpr is an object creation, an array creation, or, once lambdas are
// resolved, a lambda instance. Node links anonymous and lambda creations
// to their class-tree node.
type NewExpr struct {
	Class     string
	CtorDesc  string
	Args      []Expr
	Dims      []Expr
	Init      []Expr
	T         Type
	Node      int
	Anonymous bool
	Lambda    bool
}

func (e *NewExpr) Type() Type { return e.T }

func (e *NewExpr) Slots() []*Expr {
	slots := make([]*Expr, 0, len(e.Args)+len(e.Dims)+len(e.Init))
	for i := range e.Args {
		slots = append(slots, &e.Args[i])
	}
	for i := range e.Dims {
		slots = append(slots, &e.Dims[i])
	}
	for i := range e.Init {
		slots = append(slots, &e.Init[i])
	}
	return slots
}

// Constructed reports whether the matching <init> call has been seen.
func (e *NewExpr) Constructed() bool { return e.CtorDesc != "" || e.Lambda }

func (e *NewExpr) String() string {
	switch {
	case e.Lambda:
		return "<lambda " + e.Class + ">(" + joinExprs(e.Args) + ")"
	case e.T.Dims > 0:
		var sb strings.Builder
		elem := e.T
		elem.Dims = 0
		sb.WriteString("new " + elem.String())
		for i := 0; i < e.T.Dims; i++ {
			if i < len(e.Dims) {
				sb.WriteString("[" + e.Dims[i].String() + "]")
			} else {
				sb.WriteString("[]")
			}
		}
		if len(e.Init) > 0 {
			sb.WriteString("{" + joinExprs(e.Init) + "}")
		}
		return sb.String()
	case e.Anonymous:
		return "new " + e.T.String() + "(" + joinExprs(e.Args) + ") {...}"
	}
	return "new " + e.T.String() + "(" + joinExprs(e.Args) + ")"
}

// AssignExpr is a plain assignment when Op is OpNone and a compound
// assignment otherwise.
type AssignExpr struct {
	Left  Expr
	Right Expr
	Op    Op
}

func (e *AssignExpr) Type() Type     { return e.Left.Type() }
func (e *AssignExpr) Slots() []*Expr { return []*Expr{&e.Left, &e.Right} }

func (e *AssignExpr) String() string {
	op := "="
	if e.Op != OpNone {
		op = opSymbols[e.Op] + "="
	}
	return e.Left.String() + " " + op + " " + e.Right.String()
}

// Target returns the assigned variable, or nil for field and array
// stores.
func (e *AssignExpr) Target() *VarExpr {
	v, _ := e.Left.(*VarExpr)
	return v
}

type ArrayExpr struct {
	Array Expr
	Index Expr
	T     Type
}

func (e *ArrayExpr) Type() Type     { return e.T }
func (e *ArrayExpr) Slots() []*Expr { return []*Expr{&e.Array, &e.Index} }
func (e *ArrayExpr) String() string { return operand(e.Array) + "[" + e.Index.String() + "]" }

// IfExpr is the condition that ends a two-way block.
type IfExpr struct {
	Cond Expr
}

func (e *IfExpr) Type() Type     { return Void }
func (e *IfExpr) Slots() []*Expr { return []*Expr{&e.Cond} }
func (e *IfExpr) String() string { return "if (" + e.Cond.String() + ")" }

// SwitchExpr is the selector that ends a multi-way block.
type SwitchExpr struct {
	Value Expr
}

func (e *SwitchExpr) Type() Type     { return Void }
func (e *SwitchExpr) Slots() []*Expr { return []*Expr{&e.Value} }
func (e *SwitchExpr) String() string { return "switch (" + e.Value.String() + ")" }

type ExitKind uint8

const (
	ExitReturn ExitKind = iota
	ExitThrow
)

type ExitExpr struct {
	Kind  ExitKind
	Value Expr
	T     Type
}

func (e *ExitExpr) Type() Type { return e.T }

func (e *ExitExpr) Slots() []*Expr {
	if e.Value == nil {
		return nil
	}
	return []*Expr{&e.Value}
}

func (e *ExitExpr) String() string {
	kw := "return"
	if e.Kind == ExitThrow {
		kw = "throw"
	}
	if e.Value == nil {
		return kw
	}
	return kw + " " + e.Value.String()
}

type MonitorExpr struct {
	Enter bool
	Value Expr
}

func (e *MonitorExpr) Type() Type     { return Void }
func (e *MonitorExpr) Slots() []*Expr { return []*Expr{&e.Value} }

func (e *MonitorExpr) String() string {
	if e.Enter {
		return "monitorenter(" + e.Value.String() + ")"
	}
	return "monitorexit(" + e.Value.String() + ")"
}

// CaughtExpr is the exception value a handler starts with.
type CaughtExpr struct {
	T Type
}

func (e *CaughtExpr) Type() Type     { return e.T }
func (e *CaughtExpr) Slots() []*Expr { return nil }
func (e *CaughtExpr) String() string { return "<caught " + e.T.String() + ">" }

// ClassDefExpr marks the point where a local class is declared.
type ClassDefExpr struct {
	Class string
	Node  int
}

func (e *ClassDefExpr) Type() Type     { return Void }
func (e *ClassDefExpr) Slots() []*Expr { return nil }
func (e *ClassDefExpr) String() string { return "class " + ObjectType(e.Class).String() + " {...}" }

// OuterThisExpr is a qualified Outer.this reference.
type OuterThisExpr struct {
	Class string
}

func (e *OuterThisExpr) Type() Type     { return ObjectType(e.Class) }
func (e *OuterThisExpr) Slots() []*Expr { return nil }
func (e *OuterThisExpr) String() string { return ObjectType(e.Class).String() + ".this" }

// CommentExpr stands in for a body that could not be reconstructed.
type CommentExpr struct {
	Text string
}

func (e *CommentExpr) Type() Type     { return Void }
func (e *CommentExpr) Slots() []*Expr { return nil }
func (e *CommentExpr) String() string { return "// " + e.Text }

func joinExprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// operand renders e, parenthesized unless it binds tighter than any
// operator.
func operand(e Expr) string {
	switch e.(type) {
	case *FuncExpr, *AssignExpr:
		return "(" + e.String() + ")"
	}
	return e.String()
}
