package exprent

type Op uint8

const (
	OpNone Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpUshr
	OpNeg
	OpBitNot
	OpEq
	OpNe
	OpLt
	OpGe
	OpGt
	OpLe
	OpCondAnd
	OpCondOr
	OpNot
	OpCast
	OpInstanceOf
	OpArrayLength
	OpPreInc
	OpPreDec
	OpPostInc
	OpPostDec
	OpTernary
	OpLcmp
	OpCmpl
	OpCmpg
)

var opSymbols = map[Op]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpRem: "%",
	OpAnd: "&", OpOr: "|", OpXor: "^", OpShl: "<<", OpShr: ">>", OpUshr: ">>>",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpGe: ">=", OpGt: ">", OpLe: "<=",
	OpCondAnd: "&&", OpCondOr: "||",
}

func (op Op) IsComparison() bool { return op >= OpEq && op <= OpLe }

func (op Op) IsBinary() bool {
	_, ok := opSymbols[op]
	return ok
}

// FuncExpr covers every operator application. Cast and instanceof carry
// the target type in T; ternary has operands (cond, then, else).
type FuncExpr struct {
	Op       Op
	Operands []Expr
	T        Type
}

func NewFunc(op Op, t Type, operands ...Expr) *FuncExpr {
	return &FuncExpr{Op: op, Operands: operands, T: t}
}

func (e *FuncExpr) Type() Type {
	switch {
	case e.Op.IsComparison(), e.Op == OpCondAnd, e.Op == OpCondOr, e.Op == OpNot, e.Op == OpInstanceOf:
		return Boolean
	}
	return e.T
}

func (e *FuncExpr) Slots() []*Expr {
	slots := make([]*Expr, len(e.Operands))
	for i := range e.Operands {
		slots[i] = &e.Operands[i]
	}
	return slots
}

func (e *FuncExpr) String() string {
	ops := e.Operands
	if sym, ok := opSymbols[e.Op]; ok && len(ops) == 2 {
		return operand(ops[0]) + " " + sym + " " + operand(ops[1])
	}
	switch e.Op {
	case OpNeg:
		return "-" + operand(ops[0])
	case OpBitNot:
		return "~" + operand(ops[0])
	case OpNot:
		return "!" + operand(ops[0])
	case OpCast:
		return "(" + e.T.String() + ")" + operand(ops[0])
	case OpInstanceOf:
		return operand(ops[0]) + " instanceof " + e.T.String()
	case OpArrayLength:
		return operand(ops[0]) + ".length"
	case OpPreInc:
		return "++" + ops[0].String()
	case OpPreDec:
		return "--" + ops[0].String()
	case OpPostInc:
		return ops[0].String() + "++"
	case OpPostDec:
		return ops[0].String() + "--"
	case OpTernary:
		return operand(ops[0]) + " ? " + operand(ops[1]) + " : " + operand(ops[2])
	case OpLcmp:
		return "lcmp(" + joinExprs(ops) + ")"
	case OpCmpl:
		return "cmpl(" + joinExprs(ops) + ")"
	case OpCmpg:
		return "cmpg(" + joinExprs(ops) + ")"
	}
	return "?(" + joinExprs(ops) + ")"
}

var negated = map[Op]Op{
	OpEq: OpNe, OpNe: OpEq,
	OpLt: OpGe, OpGe: OpLt,
	OpGt: OpLe, OpLe: OpGt,
}

// Negate returns the logical complement of a boolean expression,
// flipping comparisons and applying De Morgan's laws where possible.
func Negate(e Expr) Expr {
	switch x := e.(type) {
	case *FuncExpr:
		if inv, ok := negated[x.Op]; ok {
			return NewFunc(inv, Boolean, append([]Expr(nil), x.Operands...)...)
		}
		switch x.Op {
		case OpNot:
			return x.Operands[0]
		case OpCondAnd:
			return NewFunc(OpCondOr, Boolean, Negate(x.Operands[0]), Negate(x.Operands[1]))
		case OpCondOr:
			return NewFunc(OpCondAnd, Boolean, Negate(x.Operands[0]), Negate(x.Operands[1]))
		}
	case *ConstExpr:
		if b, ok := x.Value.(bool); ok {
			return NewConst(!b, Boolean)
		}
		if v, ok := x.IntValue(); ok && x.T.Kind == KindBoolean {
			return NewConst(v == 0, Boolean)
		}
	}
	return NewFunc(OpNot, Boolean, e)
}
