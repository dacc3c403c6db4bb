package method

import (
	"fmt"

	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/cfg"
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/vars"
)

// simulator turns the instructions of every block into expressions by
// tracking the operand stack. Values still on the stack when a block
// ends are stored into stack variables that the successors start with.
type simulator struct {
	in     *Input
	cp     classfile.ConstantPool
	g      *cfg.Graph
	vars   *vars.Processor
	params map[int]exprent.Type
	entry  map[*cfg.Block][]*exprent.VarExpr
}

func newSimulator(in *Input, g *cfg.Graph, params []vars.Param) *simulator {
	s := &simulator{
		in:     in,
		cp:     in.Pool,
		g:      g,
		vars:   in.Vars,
		params: make(map[int]exprent.Type),
		entry:  make(map[*cfg.Block][]*exprent.VarExpr),
	}
	for _, p := range params {
		s.params[p.Slot] = p.Type
	}
	return s
}

func (s *simulator) run() error {
	for _, b := range s.g.ReversePostOrder() {
		if err := s.block(b); err != nil {
			return fmt.Errorf("block %s: %w", b, err)
		}
	}
	return nil
}

// frame is the state of one block's simulation.
type frame struct {
	s     *simulator
	b     *cfg.Block
	stack []exprent.Expr
	out   []exprent.Expr
	err   error
	at    int
}

func (s *simulator) block(b *cfg.Block) error {
	f := &frame{s: s, b: b}
	if s.g.IsHandler(b) {
		caught := &exprent.CaughtExpr{T: s.caughtType(b)}
		if len(b.Instrs) > 0 && b.Instrs[0].Opcode == classfile.OpAstore {
			f.push(caught)
		} else {
			// handlers using the exception in place still get a variable
			// for the catch clause to bind
			v := f.stackVar(caught.T)
			f.out = append(f.out, &exprent.AssignExpr{Left: v, Right: caught})
			c := *v
			f.push(&c)
		}
	}
	for _, v := range s.entry[b] {
		c := *v
		f.push(&c)
	}
	for i := range b.Instrs {
		in := &b.Instrs[i]
		f.at = in.Offset
		f.step(in)
		if f.err != nil {
			return f.err
		}
	}
	f.finish()
	b.Exprs = f.out
	return f.err
}

func (s *simulator) caughtType(h *cfg.Block) exprent.Type {
	var types []string
	for _, r := range s.g.Ranges {
		if r.Handler == h {
			types = append(types, r.Types...)
		}
	}
	if len(types) == 1 && types[0] != "" {
		return exprent.ObjectType(types[0])
	}
	return exprent.ObjectType("java/lang/Throwable")
}

func (f *frame) push(e exprent.Expr) { f.stack = append(f.stack, e) }

func (f *frame) pop() exprent.Expr {
	if len(f.stack) == 0 {
		if f.err == nil {
			f.err = fmt.Errorf("operand stack underflow at offset %d", f.at)
		}
		return exprent.NewConst(int32(0), exprent.Int)
	}
	e := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return e
}

// popN pops n values and returns them in push order.
func (f *frame) popN(n int) []exprent.Expr {
	out := make([]exprent.Expr, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = f.pop()
	}
	return out
}

func (f *frame) peek() exprent.Expr {
	if len(f.stack) == 0 {
		return nil
	}
	return f.stack[len(f.stack)-1]
}

func (f *frame) stackVar(t exprent.Type) *exprent.VarExpr {
	return &exprent.VarExpr{Index: f.s.vars.NewStackVar(), T: t, Stack: true}
}

// spillIf stores every stack entry matching keep into a fresh stack
// variable, in stack order, so a following statement cannot change the
// value or the order in which it was computed.
func (f *frame) spillIf(match func(exprent.Expr) bool) {
	for i, e := range f.stack {
		if n, ok := e.(*exprent.NewExpr); ok && !n.Constructed() && n.T.Dims == 0 {
			continue
		}
		if !match(e) {
			continue
		}
		v := f.stackVar(e.Type())
		f.out = append(f.out, &exprent.AssignExpr{Left: v, Right: e})
		c := *v
		f.stack[i] = &c
	}
}

// emit appends a statement. Pending stack values that are not simple
// variables or constants are computed first; writes additionally force
// out values reading the written slot.
func (f *frame) emit(e exprent.Expr, writes int) {
	f.spillIf(func(x exprent.Expr) bool {
		return !exprent.IsTrivial(x) || (writes >= 0 && exprent.ReadsVar(x, writes))
	})
	f.out = append(f.out, e)
}

// finish stores what is left on the stack for the successors and moves
// the block's terminating expression after those stores.
func (f *frame) finish() {
	var last exprent.Expr
	if n := len(f.out); n > 0 {
		switch f.out[n-1].(type) {
		case *exprent.IfExpr, *exprent.SwitchExpr:
			last = f.out[n-1]
			f.out = f.out[:n-1]
		}
	}
	if len(f.stack) > 0 && !f.b.IsExit() {
		targets := f.s.entryVars(f.b, f.stack)
		for i, e := range f.stack {
			if v, ok := e.(*exprent.VarExpr); ok && v.Same(targets[i]) && v.Stack {
				continue
			}
			c := *targets[i]
			f.out = append(f.out, &exprent.AssignExpr{Left: &c, Right: e})
		}
	}
	if last != nil {
		f.out = append(f.out, last)
	}
}

// entryVars returns the stack variables the successors of b start with,
// allocating them on first use.
func (s *simulator) entryVars(b *cfg.Block, stack []exprent.Expr) []*exprent.VarExpr {
	var vs []*exprent.VarExpr
	for _, succ := range b.Succs {
		if have := s.entry[succ]; len(have) == len(stack) {
			vs = have
			break
		}
	}
	if vs == nil {
		for _, e := range stack {
			vs = append(vs, &exprent.VarExpr{Index: s.vars.NewStackVar(), T: e.Type(), Stack: true})
		}
	}
	for _, succ := range b.Succs {
		if succ == s.g.Exit {
			continue
		}
		if have, ok := s.entry[succ]; ok && len(have) != len(vs) {
			log.Debugf("%s: inconsistent stack depth entering %s", b, succ)
		}
		if _, ok := s.entry[succ]; !ok {
			s.entry[succ] = vs
		}
	}
	return vs
}

func (f *frame) local(slot int, t exprent.Type) *exprent.VarExpr {
	if pt, ok := f.s.params[slot]; ok && compatible(t, pt) {
		t = pt
	}
	return &exprent.VarExpr{Index: slot, T: t}
}

// compatible reports whether a load typed by its opcode may carry the
// more precise declared type.
func compatible(byOp, declared exprent.Type) bool {
	switch {
	case byOp.IsUnknown() || byOp.IsReference():
		return declared.IsReference()
	case byOp.Kind == exprent.KindInt:
		switch declared.Kind {
		case exprent.KindBoolean, exprent.KindByte, exprent.KindChar, exprent.KindShort, exprent.KindInt:
			return declared.Dims == 0
		}
		return false
	}
	return byOp == declared
}

var loadTypes = map[classfile.Opcode]exprent.Type{
	classfile.OpIload: exprent.Int, classfile.OpLload: exprent.Long,
	classfile.OpFload: exprent.Float, classfile.OpDload: exprent.Double,
	classfile.OpAload: exprent.Unknown,
}

var arrayLoadTypes = map[classfile.Opcode]exprent.Type{
	classfile.OpIaload: exprent.Int, classfile.OpLaload: exprent.Long,
	classfile.OpFaload: exprent.Float, classfile.OpDaload: exprent.Double,
	classfile.OpAaload: exprent.Unknown, classfile.OpBaload: exprent.Byte,
	classfile.OpCaload: exprent.Char, classfile.OpSaload: exprent.Short,
}

var binaryOps = map[classfile.Opcode]struct {
	op exprent.Op
	t  exprent.Type
}{
	classfile.OpIadd: {exprent.OpAdd, exprent.Int}, classfile.OpLadd: {exprent.OpAdd, exprent.Long},
	classfile.OpFadd: {exprent.OpAdd, exprent.Float}, classfile.OpDadd: {exprent.OpAdd, exprent.Double},
	classfile.OpIsub: {exprent.OpSub, exprent.Int}, classfile.OpLsub: {exprent.OpSub, exprent.Long},
	classfile.OpFsub: {exprent.OpSub, exprent.Float}, classfile.OpDsub: {exprent.OpSub, exprent.Double},
	classfile.OpImul: {exprent.OpMul, exprent.Int}, classfile.OpLmul: {exprent.OpMul, exprent.Long},
	classfile.OpFmul: {exprent.OpMul, exprent.Float}, classfile.OpDmul: {exprent.OpMul, exprent.Double},
	classfile.OpIdiv: {exprent.OpDiv, exprent.Int}, classfile.OpLdiv: {exprent.OpDiv, exprent.Long},
	classfile.OpFdiv: {exprent.OpDiv, exprent.Float}, classfile.OpDdiv: {exprent.OpDiv, exprent.Double},
	classfile.OpIrem: {exprent.OpRem, exprent.Int}, classfile.OpLrem: {exprent.OpRem, exprent.Long},
	classfile.OpFrem: {exprent.OpRem, exprent.Float}, classfile.OpDrem: {exprent.OpRem, exprent.Double},
	classfile.OpIshl: {exprent.OpShl, exprent.Int}, classfile.OpLshl: {exprent.OpShl, exprent.Long},
	classfile.OpIshr: {exprent.OpShr, exprent.Int}, classfile.OpLshr: {exprent.OpShr, exprent.Long},
	classfile.OpIushr: {exprent.OpUshr, exprent.Int}, classfile.OpLushr: {exprent.OpUshr, exprent.Long},
	classfile.OpIand: {exprent.OpAnd, exprent.Int}, classfile.OpLand: {exprent.OpAnd, exprent.Long},
	classfile.OpIor: {exprent.OpOr, exprent.Int}, classfile.OpLor: {exprent.OpOr, exprent.Long},
	classfile.OpIxor: {exprent.OpXor, exprent.Int}, classfile.OpLxor: {exprent.OpXor, exprent.Long},
	classfile.OpLcmp: {exprent.OpLcmp, exprent.Int},
	classfile.OpFcmpl: {exprent.OpCmpl, exprent.Int}, classfile.OpFcmpg: {exprent.OpCmpg, exprent.Int},
	classfile.OpDcmpl: {exprent.OpCmpl, exprent.Int}, classfile.OpDcmpg: {exprent.OpCmpg, exprent.Int},
}

var casts = map[classfile.Opcode]exprent.Type{
	classfile.OpI2l: exprent.Long, classfile.OpI2f: exprent.Float, classfile.OpI2d: exprent.Double,
	classfile.OpL2i: exprent.Int, classfile.OpL2f: exprent.Float, classfile.OpL2d: exprent.Double,
	classfile.OpF2i: exprent.Int, classfile.OpF2l: exprent.Long, classfile.OpF2d: exprent.Double,
	classfile.OpD2i: exprent.Int, classfile.OpD2l: exprent.Long, classfile.OpD2f: exprent.Float,
	classfile.OpI2b: exprent.Byte, classfile.OpI2c: exprent.Char, classfile.OpI2s: exprent.Short,
}

var newArrayTypes = map[int]exprent.Type{
	4: exprent.Boolean, 5: exprent.Char, 6: exprent.Float, 7: exprent.Double,
	8: exprent.Byte, 9: exprent.Short, 10: exprent.Int, 11: exprent.Long,
}

// jumpOps maps conditional branches to the comparison that makes them
// jump.
var jumpOps = map[classfile.Opcode]exprent.Op{
	classfile.OpIfeq: exprent.OpEq, classfile.OpIfne: exprent.OpNe,
	classfile.OpIflt: exprent.OpLt, classfile.OpIfge: exprent.OpGe,
	classfile.OpIfgt: exprent.OpGt, classfile.OpIfle: exprent.OpLe,
	classfile.OpIfIcmpeq: exprent.OpEq, classfile.OpIfIcmpne: exprent.OpNe,
	classfile.OpIfIcmplt: exprent.OpLt, classfile.OpIfIcmpge: exprent.OpGe,
	classfile.OpIfIcmpgt: exprent.OpGt, classfile.OpIfIcmple: exprent.OpLe,
	classfile.OpIfAcmpeq: exprent.OpEq, classfile.OpIfAcmpne: exprent.OpNe,
	classfile.OpIfnull: exprent.OpEq, classfile.OpIfnonnull: exprent.OpNe,
}

func (f *frame) step(in *classfile.Instruction) {
	op := in.Opcode
	if t, ok := loadTypes[op]; ok {
		f.push(f.local(in.Operand(0), t))
		return
	}
	if t, ok := arrayLoadTypes[op]; ok {
		idx := f.pop()
		arr := f.pop()
		if et := arr.Type().Elem(); !et.IsUnknown() {
			t = et
		}
		f.push(&exprent.ArrayExpr{Array: arr, Index: idx, T: t})
		return
	}
	if b, ok := binaryOps[op]; ok {
		args := f.popN(2)
		f.push(exprent.NewFunc(b.op, b.t, args...))
		return
	}
	if t, ok := casts[op]; ok {
		f.push(exprent.NewFunc(exprent.OpCast, t, f.pop()))
		return
	}
	if cmp, ok := jumpOps[op]; ok {
		f.branch(in, cmp)
		return
	}

	switch op {
	case classfile.OpNop, classfile.OpGoto, classfile.OpJsr, classfile.OpRet:
	case classfile.OpAconstNull:
		f.push(exprent.NewConst(nil, exprent.Null))
	case classfile.OpIconstM1, classfile.OpIconst0, classfile.OpIconst1, classfile.OpIconst2,
		classfile.OpIconst3, classfile.OpIconst4, classfile.OpIconst5:
		f.push(exprent.NewConst(int32(int(op)-int(classfile.OpIconst0)), exprent.Int))
	case classfile.OpLconst0, classfile.OpLconst1:
		f.push(exprent.NewConst(int64(op-classfile.OpLconst0), exprent.Long))
	case classfile.OpFconst0, classfile.OpFconst1, classfile.OpFconst2:
		f.push(exprent.NewConst(float32(op-classfile.OpFconst0), exprent.Float))
	case classfile.OpDconst0, classfile.OpDconst1:
		f.push(exprent.NewConst(float64(op-classfile.OpDconst0), exprent.Double))
	case classfile.OpBipush, classfile.OpSipush:
		f.push(exprent.NewConst(int32(in.Operand(0)), exprent.Int))
	case classfile.OpLdc:
		f.push(f.s.constant(uint16(in.Operand(0))))

	case classfile.OpIstore, classfile.OpLstore, classfile.OpFstore, classfile.OpDstore, classfile.OpAstore:
		v := f.pop()
		slot := in.Operand(0)
		t := v.Type()
		if pt, ok := f.s.params[slot]; ok && compatible(t, pt) {
			t = pt
		}
		f.emit(&exprent.AssignExpr{Left: &exprent.VarExpr{Index: slot, T: t}, Right: v}, slot)
	case classfile.OpIinc:
		slot, delta := in.Operand(0), in.Operand(1)
		aop := exprent.OpAdd
		if delta < 0 {
			aop, delta = exprent.OpSub, -delta
		}
		f.emit(&exprent.AssignExpr{Left: f.local(slot, exprent.Int), Right: exprent.NewConst(int32(delta), exprent.Int), Op: aop}, slot)

	case classfile.OpIastore, classfile.OpLastore, classfile.OpFastore, classfile.OpDastore,
		classfile.OpAastore, classfile.OpBastore, classfile.OpCastore, classfile.OpSastore:
		v := f.pop()
		idx := f.pop()
		arr := f.pop()
		f.emit(&exprent.AssignExpr{Left: &exprent.ArrayExpr{Array: arr, Index: idx, T: arr.Type().Elem()}, Right: v}, -1)

	case classfile.OpPop:
		f.discard(f.pop())
	case classfile.OpPop2:
		if top := f.pop(); top.Type().IsWide() {
			f.discard(top)
		} else {
			under := f.pop()
			f.discard(under)
			f.discard(top)
		}
	case classfile.OpDup:
		f.dup(0)
	case classfile.OpDupX1:
		f.dup(1)
	case classfile.OpDupX2:
		if len(f.stack) >= 2 && f.stack[len(f.stack)-2].Type().IsWide() {
			f.dup(1)
		} else {
			f.dup(2)
		}
	case classfile.OpDup2, classfile.OpDup2X1, classfile.OpDup2X2:
		f.dup2(op)
	case classfile.OpSwap:
		a := f.pop()
		b := f.pop()
		f.push(a)
		f.push(b)

	case classfile.OpIneg, classfile.OpLneg, classfile.OpFneg, classfile.OpDneg:
		v := f.pop()
		f.push(exprent.NewFunc(exprent.OpNeg, v.Type(), v))

	case classfile.OpTableswitch, classfile.OpLookupswitch:
		f.out = append(f.out, &exprent.SwitchExpr{Value: f.pop()})
	case classfile.OpIreturn, classfile.OpLreturn, classfile.OpFreturn, classfile.OpDreturn, classfile.OpAreturn:
		f.emit(&exprent.ExitExpr{Kind: exprent.ExitReturn, Value: f.pop(), T: exprent.ReturnType(f.s.in.Desc)}, -1)
	case classfile.OpReturn:
		f.emit(&exprent.ExitExpr{Kind: exprent.ExitReturn, T: exprent.Void}, -1)
	case classfile.OpAthrow:
		v := f.pop()
		f.emit(&exprent.ExitExpr{Kind: exprent.ExitThrow, Value: v, T: v.Type()}, -1)

	case classfile.OpGetstatic:
		f.push(f.field(in, true))
	case classfile.OpGetfield:
		fe := f.field(in, false)
		fe.Instance = f.pop()
		f.push(fe)
	case classfile.OpPutstatic:
		v := f.pop()
		f.emit(&exprent.AssignExpr{Left: f.field(in, true), Right: v}, -1)
	case classfile.OpPutfield:
		v := f.pop()
		fe := f.field(in, false)
		fe.Instance = f.pop()
		f.emit(&exprent.AssignExpr{Left: fe, Right: v}, -1)

	case classfile.OpInvokevirtual, classfile.OpInvokespecial, classfile.OpInvokestatic, classfile.OpInvokeinterface:
		f.invoke(in)
	case classfile.OpInvokedynamic:
		f.invokeDynamic(in)

	case classfile.OpNew:
		name := f.s.cp.GetClassName(uint16(in.Operand(0)))
		f.push(&exprent.NewExpr{Class: name, T: exprent.ObjectType(name), Node: exprent.NoNode})
	case classfile.OpNewarray:
		elem := newArrayTypes[in.Operand(0)]
		f.push(&exprent.NewExpr{T: exprent.ArrayOf(elem, 1), Dims: []exprent.Expr{f.pop()}, Node: exprent.NoNode})
	case classfile.OpAnewarray:
		elem := exprent.FromClassRef(f.s.cp.GetClassName(uint16(in.Operand(0))))
		f.push(&exprent.NewExpr{T: exprent.ArrayOf(elem, 1), Dims: []exprent.Expr{f.pop()}, Node: exprent.NoNode})
	case classfile.OpMultianewarray:
		t := exprent.FromClassRef(f.s.cp.GetClassName(uint16(in.Operand(0))))
		f.push(&exprent.NewExpr{T: t, Dims: f.popN(in.Operand(1)), Node: exprent.NoNode})
	case classfile.OpArraylength:
		f.push(exprent.NewFunc(exprent.OpArrayLength, exprent.Int, f.pop()))
	case classfile.OpCheckcast:
		t := exprent.FromClassRef(f.s.cp.GetClassName(uint16(in.Operand(0))))
		f.push(exprent.NewFunc(exprent.OpCast, t, f.pop()))
	case classfile.OpInstanceof:
		t := exprent.FromClassRef(f.s.cp.GetClassName(uint16(in.Operand(0))))
		f.push(exprent.NewFunc(exprent.OpInstanceOf, t, f.pop()))
	case classfile.OpMonitorenter, classfile.OpMonitorexit:
		f.emit(&exprent.MonitorExpr{Enter: op == classfile.OpMonitorenter, Value: f.pop()}, -1)
	default:
		f.err = fmt.Errorf("unsupported instruction %s at offset %d", op, in.Offset)
	}
}

// discard drops a popped value, keeping it as a statement when
// evaluating it matters.
func (f *frame) discard(e exprent.Expr) {
	if exprent.HasSideEffects(e) {
		f.emit(e, -1)
	}
}

// shareable reports values that dup may push twice without a temporary:
// trivial values and objects waiting for their constructor call.
func shareable(e exprent.Expr) bool {
	if n, ok := e.(*exprent.NewExpr); ok {
		return !n.Constructed() && n.T.Dims == 0
	}
	return exprent.IsTrivial(e)
}

// copyOf returns a second stack entry for e. Pending objects are shared
// so the constructor call completes both.
func (f *frame) copyOf(e exprent.Expr) (exprent.Expr, exprent.Expr) {
	if n, ok := e.(*exprent.NewExpr); ok && !n.Constructed() && n.T.Dims == 0 {
		return e, e
	}
	if shareable(e) {
		return e, exprent.Clone(e)
	}
	v := f.stackVar(e.Type())
	f.out = append(f.out, &exprent.AssignExpr{Left: v, Right: e})
	a, b := *v, *v
	return &a, &b
}

// dup duplicates the top value and inserts the copy depth entries down.
func (f *frame) dup(depth int) {
	top := f.pop()
	under := f.popN(depth)
	a, b := f.copyOf(top)
	f.push(b)
	for _, u := range under {
		f.push(u)
	}
	f.push(a)
}

func (f *frame) dup2(op classfile.Opcode) {
	n := 2
	if top := f.peek(); top != nil && top.Type().IsWide() {
		n = 1
	}
	vals := f.popN(n)
	depth := 0
	switch op {
	case classfile.OpDup2X1:
		depth = 1
	case classfile.OpDup2X2:
		depth = 2
		if len(f.stack) > 0 && f.stack[len(f.stack)-1].Type().IsWide() {
			depth = 1
		}
	}
	under := f.popN(depth)
	firsts := make([]exprent.Expr, n)
	seconds := make([]exprent.Expr, n)
	for i, v := range vals {
		firsts[i], seconds[i] = f.copyOf(v)
	}
	for _, v := range seconds {
		f.push(v)
	}
	for _, u := range under {
		f.push(u)
	}
	for _, v := range firsts {
		f.push(v)
	}
}

func (f *frame) branch(in *classfile.Instruction, cmp exprent.Op) {
	var cond exprent.Expr
	switch in.Opcode {
	case classfile.OpIfeq, classfile.OpIfne, classfile.OpIflt, classfile.OpIfge, classfile.OpIfgt, classfile.OpIfle:
		v := f.pop()
		cond = zeroTest(v, cmp)
	case classfile.OpIfnull, classfile.OpIfnonnull:
		cond = exprent.NewFunc(cmp, exprent.Boolean, f.pop(), exprent.NewConst(nil, exprent.Null))
	default:
		args := f.popN(2)
		cond = exprent.NewFunc(cmp, exprent.Boolean, args...)
	}
	f.out = append(f.out, &exprent.IfExpr{Cond: cond})
}

// zeroTest builds the condition of a single-operand branch, folding a
// preceding three-way comparison and testing booleans directly.
func zeroTest(v exprent.Expr, cmp exprent.Op) exprent.Expr {
	if fe, ok := v.(*exprent.FuncExpr); ok {
		switch fe.Op {
		case exprent.OpLcmp, exprent.OpCmpl, exprent.OpCmpg:
			return exprent.NewFunc(cmp, exprent.Boolean, fe.Operands...)
		}
	}
	if v.Type() == exprent.Boolean {
		switch cmp {
		case exprent.OpNe:
			return v
		case exprent.OpEq:
			return exprent.Negate(v)
		}
	}
	return exprent.NewFunc(cmp, exprent.Boolean, v, exprent.NewConst(int32(0), exprent.Int))
}

// field builds the field reference of a get or put instruction without
// its instance.
func (f *frame) field(in *classfile.Instruction, static bool) *exprent.FieldExpr {
	ref, _ := f.s.cp.Member(uint16(in.Operand(0)))
	return &exprent.FieldExpr{Owner: ref.Class, Name: ref.Name, Desc: ref.Desc, Static: static, T: exprent.FromDescriptor(ref.Desc)}
}

func (f *frame) invoke(in *classfile.Instruction) {
	ref, _ := f.s.cp.Member(uint16(in.Operand(0)))
	owner, name, desc := ref.Class, ref.Name, ref.Desc
	args := f.popN(len(exprent.ParamTypes(desc)))
	call := &exprent.InvocationExpr{Owner: owner, Name: name, Desc: desc, Args: args, T: exprent.ReturnType(desc)}
	switch in.Opcode {
	case classfile.OpInvokestatic:
		call.Kind = exprent.InvokeStatic
	case classfile.OpInvokespecial:
		call.Kind = exprent.InvokeSpecial
	case classfile.OpInvokeinterface:
		call.Kind = exprent.InvokeInterface
	default:
		call.Kind = exprent.InvokeVirtual
	}
	if call.Kind != exprent.InvokeStatic {
		call.Instance = f.pop()
	}

	if call.Kind == exprent.InvokeSpecial && name == "<init>" {
		if n, ok := call.Instance.(*exprent.NewExpr); ok && !n.Constructed() {
			n.CtorDesc = desc
			n.Args = args
			for _, e := range f.stack {
				if e == exprent.Expr(n) {
					return
				}
			}
			f.emit(n, -1)
			return
		}
	}
	if call.T == exprent.Void {
		f.emit(call, -1)
		return
	}
	f.push(call)
}

func (f *frame) invokeDynamic(in *classfile.Instruction) {
	idx := uint16(in.Operand(0))
	info := f.s.cp.GetInvokeDynamic(idx)
	if info == nil {
		f.err = fmt.Errorf("invokedynamic at offset %d: bad constant pool index %d", in.Offset, idx)
		return
	}
	name, desc := f.s.cp.GetNameAndType(info.NameAndTypeIndex)
	call := &exprent.InvocationExpr{
		Kind:      exprent.InvokeDynamic,
		Name:      name,
		Desc:      desc,
		Args:      f.popN(len(exprent.ParamTypes(desc))),
		T:         exprent.ReturnType(desc),
		CPIndex:   int(idx),
		Bootstrap: int(info.BootstrapMethodAttrIndex),
	}
	if call.T == exprent.Void {
		f.emit(call, -1)
		return
	}
	f.push(call)
}

func (s *simulator) constant(idx uint16) exprent.Expr {
	if v, ok := s.cp.Value(idx); ok {
		return exprent.NewConst(v, exprent.ConstType(v))
	}
	if name := s.cp.GetClassName(idx); name != "" {
		return exprent.NewConst(exprent.ClassLiteral{T: exprent.FromClassRef(name)}, exprent.ObjectType("java/lang/Class"))
	}
	if desc := s.cp.GetMethodType(idx); desc != "" {
		return exprent.NewConst(desc, exprent.ObjectType("java/lang/invoke/MethodType"))
	}
	return exprent.NewConst(nil, exprent.Null)
}
