package exprent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v(index int) *VarExpr { return &VarExpr{Index: index, T: Int} }

func TestNegate(t *testing.T) {
	a, b := v(1), v(2)
	tests := []struct {
		name string
		in   Expr
		want string
	}{
		{"comparison flips", NewFunc(OpLt, Boolean, a, b), "var1 >= var2"},
		{"double negation", NewFunc(OpNot, Boolean, a), "var1"},
		{"de morgan and", NewFunc(OpCondAnd, Boolean, NewFunc(OpEq, Boolean, a, b), NewFunc(OpGt, Boolean, a, b)), "(var1 != var2) || (var1 <= var2)"},
		{"boolean constant", NewConst(true, Boolean), "false"},
		{"plain value", &VarExpr{Index: 3, T: Boolean}, "!var3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Negate(tt.in).String())
		})
	}
}

func TestNegateDoesNotAliasOperands(t *testing.T) {
	cmp := NewFunc(OpEq, Boolean, v(1), v(2))
	neg := Negate(cmp).(*FuncExpr)
	neg.Operands[0] = v(9)
	assert.Equal(t, "var1 == var2", cmp.String())
}

func TestStringForms(t *testing.T) {
	assert.Equal(t, "5L", NewConst(int64(5), Long).String())
	assert.Equal(t, "1.0", NewConst(float64(1), Double).String())
	assert.Equal(t, "'a'", NewConst(int32('a'), Char).String())
	assert.Equal(t, `"hi"`, NewConst("hi", String).String())
	assert.Equal(t, "String.class", NewConst(ClassLiteral{String}, ObjectType("java/lang/Class")).String())

	field := &FieldExpr{Owner: "pkg/A", Name: "f", Instance: &VarExpr{Index: 0, Name: "this"}, T: Int}
	assert.Equal(t, "this.f += 1", (&AssignExpr{Left: field, Right: NewConst(int32(1), Int), Op: OpAdd}).String())

	arr := &NewExpr{T: ArrayOf(Int, 2), Dims: []Expr{NewConst(int32(3), Int)}}
	assert.Equal(t, "new int[3][]", arr.String())

	assert.Equal(t, "Outer.Inner.this", (&OuterThisExpr{Class: "pkg/Outer$Inner"}).String())
}

func TestRewrite(t *testing.T) {
	var e Expr = NewFunc(OpAdd, Int, v(1), NewFunc(OpMul, Int, v(1), v(2)))
	changed := Rewrite(&e, func(x Expr) (Expr, bool) {
		if w, ok := x.(*VarExpr); ok && w.Index == 1 {
			return NewConst(int32(7), Int), true
		}
		return x, false
	})
	require.True(t, changed)
	assert.Equal(t, "7 + (7 * var2)", e.String())
	assert.False(t, ReadsVar(e, 1))
	assert.True(t, ReadsVar(e, 2))
}

func TestReadsVarIgnoresPlainTarget(t *testing.T) {
	assign := &AssignExpr{Left: v(1), Right: v(2)}
	assert.False(t, ReadsVar(assign, 1))
	compound := &AssignExpr{Left: v(1), Right: v(2), Op: OpAdd}
	assert.True(t, ReadsVar(compound, 1))
}

func TestCloneIsDeep(t *testing.T) {
	orig := &InvocationExpr{Kind: InvokeStatic, Owner: "pkg/A", Name: "m", Args: []Expr{v(1)}, T: Void}
	c := Clone(orig).(*InvocationExpr)
	c.Args[0].(*VarExpr).Index = 5
	assert.Equal(t, "A.m(var1)", orig.String())
	assert.Equal(t, "A.m(var5)", c.String())
}

func TestSideEffects(t *testing.T) {
	assert.False(t, HasSideEffects(NewFunc(OpAdd, Int, v(1), v(2))))
	assert.True(t, HasSideEffects(NewFunc(OpAdd, Int, v(1), &InvocationExpr{Kind: InvokeStatic, Owner: "A", Name: "f", T: Int})))
	assert.False(t, HasSideEffects(&NewExpr{T: ArrayOf(Int, 1), Dims: []Expr{v(1)}}))
}

func TestFromDescriptor(t *testing.T) {
	assert.Equal(t, ArrayOf(String, 1), FromDescriptor("[Ljava/lang/String;"))
	assert.Equal(t, Void, ReturnType("(I)V"))
	assert.Equal(t, []Type{Int, Long}, ParamTypes("(IJ)Z"))
	assert.True(t, Long.IsWide())
	assert.Equal(t, "String[]", FromClassRef("[Ljava/lang/String;").String())
}
