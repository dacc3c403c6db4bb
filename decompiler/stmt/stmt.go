// Package stmt holds the structured statement tree of a method body and
// derives it from a control-flow graph.
package stmt

import (
	"github.com/tliron/commonlog"

	"github.com/dhamidi/decaf/decompiler/cfg"
	"github.com/dhamidi/decaf/decompiler/exprent"
)

var log = commonlog.GetLogger("decaf.stmt")

// Stmt is a node of the statement tree. Children lists every child in
// source order, including the head leaves of conditionals; Slots returns
// the replaceable child positions.
type Stmt interface {
	base() *Base
	Children() []Stmt
	Slots() []*Stmt
}

// Base carries what every statement has. Labeled is set when a labeled
// break or continue targets the statement.
type Base struct {
	Labeled bool
}

func (b *Base) base() *Base { return b }

func IsLabeled(s Stmt) bool { return s.base().Labeled }

func SetLabeled(s Stmt, labeled bool) { s.base().Labeled = labeled }

// Basic is a straight-line leaf. Block is the CFG block it was built
// from, nil for leaves synthesized by later passes.
type Basic struct {
	Base
	Block *cfg.Block
	Exprs []exprent.Expr
}

func (s *Basic) Children() []Stmt { return nil }
func (s *Basic) Slots() []*Stmt   { return nil }

type Sequence struct {
	Base
	Stmts []Stmt
}

func (s *Sequence) Children() []Stmt { return s.Stmts }

func (s *Sequence) Slots() []*Stmt {
	slots := make([]*Stmt, len(s.Stmts))
	for i := range s.Stmts {
		slots[i] = &s.Stmts[i]
	}
	return slots
}

// If is a conditional. Head holds the statements of the condition's
// block that run before the test.
type If struct {
	Base
	Head    *Basic
	Cond    exprent.Expr
	Then    Stmt
	Else    Stmt
	Ternary bool
}

func (s *If) Children() []Stmt { return nonNil(headOf(s.Head), s.Then, s.Else) }

func (s *If) Slots() []*Stmt {
	slots := []*Stmt{&s.Then}
	if s.Else != nil {
		slots = append(slots, &s.Else)
	}
	return slots
}

type LoopKind uint8

const (
	LoopInfinite LoopKind = iota
	LoopWhile
	LoopDoWhile
	LoopFor
)

func (k LoopKind) String() string {
	switch k {
	case LoopWhile:
		return "while"
	case LoopDoWhile:
		return "do"
	case LoopFor:
		return "for"
	}
	return "loop"
}

// Loop covers every loop shape. Cond is tested before the body for
// while and for loops and after it for do-while loops. Head is the
// emptied leaf of the block that held a while condition.
type Loop struct {
	Base
	Kind LoopKind
	Head *Basic
	Init exprent.Expr
	Cond exprent.Expr
	Inc  exprent.Expr
	Body Stmt
}

func (s *Loop) Children() []Stmt { return nonNil(headOf(s.Head), s.Body) }
func (s *Loop) Slots() []*Stmt   { return []*Stmt{&s.Body} }

type Case struct {
	Keys    []int
	Default bool
	Body    Stmt
}

type Switch struct {
	Base
	Head  *Basic
	Value exprent.Expr
	Cases []*Case
}

func (s *Switch) Children() []Stmt {
	out := nonNil(headOf(s.Head))
	for _, c := range s.Cases {
		out = append(out, c.Body)
	}
	return out
}

func (s *Switch) Slots() []*Stmt {
	slots := make([]*Stmt, len(s.Cases))
	for i, c := range s.Cases {
		slots[i] = &c.Body
	}
	return slots
}

// Catch is one handler. Types holds internal class names; an empty
// string catches everything.
type Catch struct {
	Types []string
	Var   *exprent.VarExpr
	Body  Stmt
}

type Try struct {
	Base
	Body    Stmt
	Catches []*Catch
	Finally Stmt
}

func (s *Try) Children() []Stmt {
	out := []Stmt{s.Body}
	for _, c := range s.Catches {
		out = append(out, c.Body)
	}
	return nonNil(append(out, s.Finally)...)
}

func (s *Try) Slots() []*Stmt {
	slots := []*Stmt{&s.Body}
	for _, c := range s.Catches {
		slots = append(slots, &c.Body)
	}
	if s.Finally != nil {
		slots = append(slots, &s.Finally)
	}
	return slots
}

// Sync is a synchronized block. Head keeps the leaf that acquired the
// monitor.
type Sync struct {
	Base
	Head *Basic
	Lock exprent.Expr
	Body Stmt
}

func (s *Sync) Children() []Stmt { return nonNil(headOf(s.Head), s.Body) }
func (s *Sync) Slots() []*Stmt   { return []*Stmt{&s.Body} }

type JumpKind uint8

const (
	Break JumpKind = iota
	Continue
	Goto
)

// Jump is a break, a continue or, where no structure fits, a goto to a
// block. Labeled jumps name a target that is not the innermost
// candidate.
type Jump struct {
	Base
	Kind    JumpKind
	Target  Stmt
	Labeled bool
	Block   *cfg.Block
}

func (s *Jump) Children() []Stmt { return nil }
func (s *Jump) Slots() []*Stmt   { return nil }

// Root is the method body.
type Root struct {
	Base
	Body Stmt
}

func (s *Root) Children() []Stmt { return []Stmt{s.Body} }
func (s *Root) Slots() []*Stmt   { return []*Stmt{&s.Body} }

func headOf(b *Basic) Stmt {
	if b == nil {
		return nil
	}
	return b
}

func nonNil(list ...Stmt) []Stmt {
	out := make([]Stmt, 0, len(list))
	for _, s := range list {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
