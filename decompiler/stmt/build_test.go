package stmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/decaf/decompiler/cfg"
	"github.com/dhamidi/decaf/decompiler/exprent"
)

func blocks(n int) []*cfg.Block {
	out := make([]*cfg.Block, n)
	for i := range out {
		out[i] = &cfg.Block{Start: i * 10}
	}
	return out
}

func link(from *cfg.Block, to ...*cfg.Block) {
	for _, t := range to {
		from.Succs = append(from.Succs, t)
		t.Preds = append(t.Preds, from)
	}
}

func graphOf(bs []*cfg.Block, ranges ...*cfg.ExceptionRange) *cfg.Graph {
	g := &cfg.Graph{Blocks: bs, Entry: bs[0], Exit: &cfg.Block{Kind: cfg.KindExit, Start: -1}, Ranges: ranges}
	for _, r := range ranges {
		for _, p := range r.Protected {
			p.ExcSuccs = append(p.ExcSuccs, r.Handler)
			r.Handler.ExcPreds = append(r.Handler.ExcPreds, p)
		}
	}
	g.AddDummyExit()
	return g
}

func call(name string, args ...exprent.Expr) exprent.Expr {
	return &exprent.InvocationExpr{Kind: exprent.InvokeStatic, Owner: "pkg/T", Name: name, Args: args, T: exprent.Void}
}

func ret() exprent.Expr { return &exprent.ExitExpr{T: exprent.Void} }

func local(i int) *exprent.VarExpr { return &exprent.VarExpr{Index: i, T: exprent.Int} }

func cmp(op exprent.Op, i int, n int32) exprent.Expr {
	return exprent.NewFunc(op, exprent.Boolean, local(i), exprent.NewConst(n, exprent.Int))
}

func cond(b *cfg.Block, c exprent.Expr, pre ...exprent.Expr) {
	b.Kind = cfg.KindCond
	b.Exprs = append(pre, &exprent.IfExpr{Cond: c})
}

// requireOneLeafPerBlock checks that every block of g appears as exactly
// one leaf of the tree.
func requireOneLeafPerBlock(t *testing.T, g *cfg.Graph, root *Root) {
	t.Helper()
	seen := make(map[*cfg.Block]int)
	for _, leaf := range Basics(root) {
		if leaf.Block != nil {
			seen[leaf.Block]++
		}
	}
	for _, b := range g.Blocks {
		assert.Equal(t, 1, seen[b], "block %s", b)
	}
	assert.Len(t, seen, len(g.Blocks))
}

func TestBuildIfElse(t *testing.T) {
	bs := blocks(4)
	cond(bs[0], cmp(exprent.OpEq, 0, 0))
	bs[1].Exprs = []exprent.Expr{call("a")}
	bs[2].Exprs = []exprent.Expr{call("b")}
	bs[3].Kind, bs[3].Exprs = cfg.KindReturn, []exprent.Expr{ret()}
	link(bs[0], bs[1], bs[2])
	link(bs[1], bs[3])
	link(bs[2], bs[3])
	g := graphOf(bs)

	root, err := Build(g)
	require.NoError(t, err)
	requireOneLeafPerBlock(t, g, root)
	assert.Equal(t, "if (var0 != 0) {\n  T.a()\n} else {\n  T.b()\n}\nreturn\n", Outline(root))
}

func TestBuildIfWithoutElse(t *testing.T) {
	bs := blocks(3)
	cond(bs[0], cmp(exprent.OpEq, 0, 0), call("pre"))
	bs[1].Exprs = []exprent.Expr{call("a")}
	bs[2].Kind, bs[2].Exprs = cfg.KindReturn, []exprent.Expr{ret()}
	link(bs[0], bs[1], bs[2])
	link(bs[1], bs[2])
	g := graphOf(bs)

	root, err := Build(g)
	require.NoError(t, err)
	requireOneLeafPerBlock(t, g, root)
	assert.Equal(t, "T.pre()\nif (var0 != 0) {\n  T.a()\n}\nreturn\n", Outline(root))
}

func TestBuildLoop(t *testing.T) {
	bs := blocks(4)
	bs[0].Exprs = []exprent.Expr{&exprent.AssignExpr{Left: local(1), Right: exprent.NewConst(int32(0), exprent.Int)}}
	cond(bs[1], cmp(exprent.OpGe, 1, 10))
	bs[2].Exprs = []exprent.Expr{call("step")}
	bs[3].Kind, bs[3].Exprs = cfg.KindReturn, []exprent.Expr{ret()}
	link(bs[0], bs[1])
	link(bs[1], bs[2], bs[3])
	link(bs[2], bs[1])
	g := graphOf(bs)

	root, err := Build(g)
	require.NoError(t, err)
	requireOneLeafPerBlock(t, g, root)

	list := List(root.Body)
	require.Len(t, list, 3)
	loop, ok := list[1].(*Loop)
	require.True(t, ok)
	assert.Equal(t, LoopInfinite, loop.Kind)

	body, ok := loop.Body.(*If)
	require.True(t, ok)
	assert.Equal(t, "var1 < 10", body.Cond.String())
	then := List(body.Then)
	require.Len(t, then, 2)
	assert.Equal(t, &Jump{Kind: Continue, Target: loop}, then[1])
	assert.Equal(t, &Jump{Kind: Break, Target: loop}, body.Else)
}

func TestBuildTryCatch(t *testing.T) {
	bs := blocks(3)
	bs[0].Exprs = []exprent.Expr{call("f")}
	caught := local(1)
	bs[1].Exprs = []exprent.Expr{
		&exprent.AssignExpr{Left: caught, Right: &exprent.CaughtExpr{T: exprent.ObjectType("java/io/IOException")}},
		call("log", local(1)),
	}
	bs[2].Kind, bs[2].Exprs = cfg.KindReturn, []exprent.Expr{ret()}
	link(bs[0], bs[2])
	link(bs[1], bs[2])
	g := graphOf(bs, &cfg.ExceptionRange{Protected: []*cfg.Block{bs[0]}, Handler: bs[1], Types: []string{"java/io/IOException"}})

	root, err := Build(g)
	require.NoError(t, err)
	requireOneLeafPerBlock(t, g, root)
	assert.Equal(t, "try {\n  T.f()\n} catch (IOException var1) {\n  T.log(var1)\n}\nreturn\n", Outline(root))

	try := List(root.Body)[0].(*Try)
	require.Len(t, try.Catches, 1)
	assert.Same(t, caught, try.Catches[0].Var)
}

func TestBuildTryFinally(t *testing.T) {
	bs := blocks(3)
	bs[0].Exprs = []exprent.Expr{call("f")}
	bs[1].Kind, bs[1].Exprs = cfg.KindReturn, []exprent.Expr{ret()}
	bs[2].Exprs = []exprent.Expr{call("fin")}
	link(bs[0], bs[1])
	g := graphOf(bs, &cfg.ExceptionRange{Protected: []*cfg.Block{bs[0]}, Handler: bs[2], Types: []string{""}, Finally: true})

	root, err := Build(g)
	require.NoError(t, err)
	requireOneLeafPerBlock(t, g, root)
	assert.Equal(t, "try {\n  T.f()\n} finally {\n  T.fin()\n}\nreturn\n", Outline(root))
}

func TestBuildSwitch(t *testing.T) {
	bs := blocks(4)
	bs[0].Kind = cfg.KindSwitch
	bs[0].Exprs = []exprent.Expr{&exprent.SwitchExpr{Value: local(0)}}
	bs[0].Cases = []cfg.SwitchCase{
		{Default: true, Target: bs[3]},
		{Keys: []int{1}, Target: bs[1]},
		{Keys: []int{2}, Target: bs[2]},
	}
	bs[1].Exprs = []exprent.Expr{call("a")}
	bs[2].Exprs = []exprent.Expr{call("b")}
	bs[3].Kind, bs[3].Exprs = cfg.KindReturn, []exprent.Expr{ret()}
	link(bs[0], bs[3], bs[1], bs[2])
	link(bs[1], bs[2])
	link(bs[2], bs[3])
	g := graphOf(bs)

	root, err := Build(g)
	require.NoError(t, err)
	requireOneLeafPerBlock(t, g, root)
	assert.Equal(t, "switch (var0) {\ncase 1:\n  T.a()\ncase 2:\n  T.b()\n  break\n}\nreturn\n", Outline(root))
}

func TestBuildIrreducibleFallsBackToGoto(t *testing.T) {
	bs := blocks(4)
	cond(bs[0], cmp(exprent.OpEq, 0, 0))
	bs[1].Exprs = []exprent.Expr{call("a")}
	cond(bs[2], cmp(exprent.OpEq, 1, 0), call("b"))
	bs[3].Kind, bs[3].Exprs = cfg.KindReturn, []exprent.Expr{ret()}
	link(bs[0], bs[1], bs[2])
	link(bs[1], bs[2])
	link(bs[2], bs[1], bs[3])
	g := graphOf(bs)

	root, err := Build(g)
	require.NoError(t, err)
	requireOneLeafPerBlock(t, g, root)

	gotos := 0
	Walk(root, func(s Stmt) bool {
		if j, ok := s.(*Jump); ok && j.Kind == Goto {
			gotos++
		}
		return true
	})
	assert.Equal(t, 1, gotos)
}

func TestNormalizeLabels(t *testing.T) {
	outer := &Loop{}
	inner := &Loop{}
	brk := &Jump{Kind: Break, Target: outer}
	cont := &Jump{Kind: Continue, Target: inner}
	inner.Body = Seq(&Basic{Exprs: []exprent.Expr{call("a")}}, brk, cont)
	outer.Body = inner
	root := &Root{Body: outer}

	assert.True(t, NormalizeLabels(root))
	assert.True(t, brk.Labeled)
	assert.False(t, cont.Labeled)
	assert.True(t, IsLabeled(outer))
	assert.False(t, IsLabeled(inner))
	assert.False(t, NormalizeLabels(root))
	assert.Contains(t, Outline(root), "break label1")
}
