package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/decaf/decompiler/exprent"
)

func call(name string) exprent.Expr {
	return &exprent.InvocationExpr{Kind: exprent.InvokeStatic, Owner: "pkg/T", Name: name, Desc: "()V", T: exprent.Void}
}

func local(index int) *exprent.VarExpr {
	return &exprent.VarExpr{Index: index, T: exprent.ObjectType("java/lang/Throwable")}
}

func newGraph(blocks ...*Block) *Graph {
	g := &Graph{Blocks: blocks, Entry: blocks[0], Exit: &Block{Kind: KindExit, Start: -1}}
	for i, b := range blocks {
		b.Start = i
	}
	g.reindex()
	return g
}

// try { f(); } finally { fin(); } return;
func tryFinally() (*Graph, *Block, *Block) {
	body := &Block{Exprs: []exprent.Expr{call("f")}}
	exit := &Block{Kind: KindReturn, Exprs: []exprent.Expr{call("fin"), &exprent.ExitExpr{T: exprent.Void}}}
	handler := &Block{Kind: KindThrow, Exprs: []exprent.Expr{
		&exprent.AssignExpr{Left: local(1), Right: &exprent.CaughtExpr{T: exprent.ObjectType("java/lang/Throwable")}},
		call("fin"),
		&exprent.ExitExpr{Kind: exprent.ExitThrow, Value: local(1)},
	}}
	g := newGraph(body, exit, handler)
	addEdge(body, exit)
	g.Ranges = []*ExceptionRange{{Protected: []*Block{body}, Handler: handler, Types: []string{""}}}
	g.rebuildExceptionEdges()
	g.AddDummyExit()
	return g, exit, handler
}

func TestDeduplicateFinally(t *testing.T) {
	g, exit, handler := tryFinally()

	n, err := g.DeduplicateFinally(4)
	require.NoError(t, err)
	assert.Positive(t, n)

	r := g.Ranges[0]
	assert.True(t, r.Finally)
	require.Len(t, exit.Exprs, 1)
	assert.Equal(t, "return", exit.Exprs[0].String())
	require.Len(t, handler.Exprs, 1)
	assert.Equal(t, "T.fin()", handler.Exprs[0].String())

	t.Run("idempotent", func(t *testing.T) {
		n, err := g.DeduplicateFinally(4)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Len(t, exit.Exprs, 1)
		assert.Len(t, handler.Exprs, 1)
	})
}

func TestDeduplicateFinallyStripsTail(t *testing.T) {
	// synchronized bodies release the lock inside the protected region
	lock := &exprent.VarExpr{Index: 2, T: exprent.Object}
	release := &exprent.MonitorExpr{Value: lock}
	body := &Block{Exprs: []exprent.Expr{call("f"), release}}
	after := &Block{Kind: KindReturn, Exprs: []exprent.Expr{&exprent.ExitExpr{T: exprent.Void}}}
	handler := &Block{Kind: KindThrow, Exprs: []exprent.Expr{
		&exprent.AssignExpr{Left: local(3), Right: &exprent.CaughtExpr{T: exprent.Object}},
		&exprent.MonitorExpr{Value: &exprent.VarExpr{Index: 2, T: exprent.Object}},
		&exprent.ExitExpr{Kind: exprent.ExitThrow, Value: local(3)},
	}}
	g := newGraph(body, after, handler)
	addEdge(body, after)
	g.Ranges = []*ExceptionRange{{Protected: []*Block{body}, Handler: handler, Types: []string{""}}}
	g.rebuildExceptionEdges()
	g.AddDummyExit()

	_, err := g.DeduplicateFinally(4)
	require.NoError(t, err)
	assert.Equal(t, "T.f()", body.Exprs[0].String())
	assert.Len(t, body.Exprs, 1)
}

func TestDeduplicateFinallyLimit(t *testing.T) {
	g, _, _ := tryFinally()
	_, err := g.DeduplicateFinally(1)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestFoldConditions(t *testing.T) {
	a := exprent.NewFunc(exprent.OpEq, exprent.Boolean, &exprent.VarExpr{Index: 0, T: exprent.Int}, exprent.NewConst(int32(0), exprent.Int))
	b := exprent.NewFunc(exprent.OpGt, exprent.Boolean, &exprent.VarExpr{Index: 1, T: exprent.Int}, exprent.NewConst(int32(5), exprent.Int))

	first := &Block{Kind: KindCond, Exprs: []exprent.Expr{call("pre"), &exprent.IfExpr{Cond: a}}}
	second := &Block{Kind: KindCond, Exprs: []exprent.Expr{&exprent.IfExpr{Cond: b}}}
	body := &Block{Kind: KindReturn, Exprs: []exprent.Expr{&exprent.ExitExpr{T: exprent.Void}}}
	skip := &Block{Kind: KindReturn, Exprs: []exprent.Expr{&exprent.ExitExpr{T: exprent.Void}}}
	g := newGraph(first, second, body, skip)
	addEdge(first, second)
	addEdge(first, skip)
	addEdge(second, body)
	addEdge(second, skip)

	assert.Equal(t, 1, g.FoldConditions())
	require.Len(t, g.Blocks, 3)
	cond, ok := CondOf(first)
	require.True(t, ok)
	assert.Equal(t, "(var0 == 0) || (var1 > 5)", cond.Cond.String())
	assert.Equal(t, []*Block{body, skip}, first.Succs)
	assert.Equal(t, 0, g.FoldConditions())
}
