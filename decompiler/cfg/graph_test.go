package cfg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/cfg"
	"github.com/dhamidi/decaf/internal/jasm"
)

func build(t *testing.T, body func(m *jasm.MethodBuilder)) (*cfg.Graph, error) {
	t.Helper()
	c := jasm.NewClass("pkg/T")
	body(c.Method(classfile.AccPublic|classfile.AccStatic, "m", "(I)I"))
	cf := c.Build()
	code := cf.GetMethod("m", "(I)I").GetCodeAttribute(cf.ConstantPool)
	require.NotNil(t, code)
	seq, err := classfile.Decode(code.Code)
	require.NoError(t, err)
	return cfg.Build(seq, code.ExceptionTable, cf.ConstantPool)
}

func mustBuild(t *testing.T, body func(m *jasm.MethodBuilder)) *cfg.Graph {
	t.Helper()
	g, err := build(t, body)
	require.NoError(t, err)
	return g
}

func diamond(m *jasm.MethodBuilder) {
	m.Load('I', 0).
		Jump(classfile.OpIfeq, "else").
		Int(1).Store('I', 1).
		Goto("end").
		Label("else").
		Int(2).Store('I', 1).
		Label("end").
		Load('I', 1).
		Op(classfile.OpIreturn)
}

func TestBuildDiamond(t *testing.T) {
	g := mustBuild(t, diamond)
	require.Len(t, g.Blocks, 4)

	entry := g.Entry
	assert.Equal(t, cfg.KindCond, entry.Kind)
	require.Len(t, entry.Succs, 2)
	then, els := entry.Succs[0], entry.Succs[1]
	assert.Equal(t, 5, then.Start, "fall-through successor comes first")
	assert.Equal(t, els, g.Blocks[2])

	end := g.Blocks[3]
	assert.Equal(t, cfg.KindReturn, end.Kind)
	assert.ElementsMatch(t, []*cfg.Block{then, els}, end.Preds)
}

func TestDominance(t *testing.T) {
	g := mustBuild(t, diamond)
	g.AddDummyExit()
	end := g.Blocks[3]

	dom := g.Dominators()
	assert.Equal(t, g.Entry, dom.Idom(end))
	assert.True(t, dom.Dominates(g.Entry, end))
	assert.False(t, dom.Dominates(g.Blocks[1], end))
	assert.Equal(t, g.Entry, dom.Common(g.Blocks[1], g.Blocks[2]))

	pdom := g.PostDominators()
	assert.Equal(t, end, pdom.Idom(g.Entry))
	assert.Equal(t, g.Exit, pdom.Idom(end))
	assert.True(t, pdom.Dominates(end, g.Blocks[1]))
}

func TestRemoveGotos(t *testing.T) {
	g := mustBuild(t, func(m *jasm.MethodBuilder) {
		m.Load('I', 0).
			Jump(classfile.OpIfeq, "zero").
			Goto("one").
			Label("zero").
			Int(0).Op(classfile.OpIreturn).
			Label("one").
			Int(1).Op(classfile.OpIreturn)
	})
	require.Len(t, g.Blocks, 4)

	assert.Equal(t, 1, g.RemoveGotos())
	require.Len(t, g.Blocks, 3)
	assert.Equal(t, g.Blocks[2], g.Entry.Succs[0])
	assert.Equal(t, g.Blocks[1], g.Entry.Succs[1])
	assert.Contains(t, g.Blocks[2].Preds, g.Entry)
}

func TestRemoveDeadBlocks(t *testing.T) {
	g := mustBuild(t, func(m *jasm.MethodBuilder) {
		m.Int(0).Op(classfile.OpIreturn).
			Int(1).Op(classfile.OpIreturn)
	})
	assert.Equal(t, 1, g.RemoveDeadBlocks())
	assert.Len(t, g.Blocks, 1)
	assert.Equal(t, 0, g.RemoveDeadBlocks())
}

func TestMergeBlocks(t *testing.T) {
	g := mustBuild(t, func(m *jasm.MethodBuilder) {
		m.Int(1).Store('I', 1).
			Goto("next").
			Label("next").
			Load('I', 1).
			Op(classfile.OpIreturn)
	})
	require.Len(t, g.Blocks, 2)
	assert.Equal(t, 1, g.MergeBlocks())
	require.Len(t, g.Blocks, 1)
	assert.Equal(t, cfg.KindReturn, g.Entry.Kind)
	assert.Len(t, g.Entry.Instrs, 5)
}

func TestExceptionRanges(t *testing.T) {
	g := mustBuild(t, func(m *jasm.MethodBuilder) {
		m.Label("start").
			Invoke(classfile.OpInvokestatic, "pkg/T", "f", "()V").
			Label("end").
			Goto("out").
			Label("handler").
			Store('A', 1).
			Label("out").
			Int(0).Op(classfile.OpIreturn).
			Try("start", "end", "handler", "java/io/IOException").
			Try("start", "end", "handler", "java/lang/RuntimeException")
	})

	require.Len(t, g.Ranges, 1)
	r := g.Ranges[0]
	assert.Equal(t, []string{"java/io/IOException", "java/lang/RuntimeException"}, r.Types)
	assert.Equal(t, []*cfg.Block{g.Entry}, r.Protected)
	assert.True(t, g.IsHandler(r.Handler))
	assert.Equal(t, []*cfg.Block{r.Handler}, g.Entry.ExcSuccs)
	assert.Equal(t, []*cfg.Block{g.Entry}, r.Handler.ExcPreds)
	assert.False(t, r.CatchesAll())

	dom := g.Dominators()
	assert.Equal(t, g.Entry, dom.Idom(r.Handler), "exception edges count for dominance")
}

func TestCircularRangeDropped(t *testing.T) {
	g := mustBuild(t, func(m *jasm.MethodBuilder) {
		m.Label("start").
			Invoke(classfile.OpInvokestatic, "pkg/T", "f", "()V").
			Label("end").
			Goto("out").
			Label("handler").
			Store('A', 1).
			Invoke(classfile.OpInvokestatic, "pkg/T", "g", "()V").
			Label("rethrow").
			Load('A', 1).
			Op(classfile.OpAthrow).
			Label("out").
			Int(0).Op(classfile.OpIreturn).
			Try("start", "end", "handler", "").
			Try("handler", "rethrow", "handler", "")
	})
	require.Len(t, g.Ranges, 2)

	g.NormalizeExceptionRanges(false)
	require.Len(t, g.Ranges, 1)
	r := g.Ranges[0]
	assert.True(t, r.CatchesAll())
	assert.False(t, r.Contains(r.Handler))
}

func TestInlineSubroutines(t *testing.T) {
	g := mustBuild(t, func(m *jasm.MethodBuilder) {
		m.Jump(classfile.OpJsr, "sub").
			Int(0).Op(classfile.OpIreturn).
			Label("sub").
			Store('A', 1).
			Invoke(classfile.OpInvokestatic, "pkg/T", "f", "()V").
			Op(classfile.OpRet, 1)
	})
	require.NoError(t, g.InlineSubroutines(100))

	for _, b := range g.Blocks {
		assert.NotEqual(t, cfg.KindJsr, b.Kind)
		assert.NotEqual(t, cfg.KindRet, b.Kind)
	}
	require.Len(t, g.Entry.Succs, 1)
	copied := g.Entry.Succs[0]
	require.NotEmpty(t, copied.Instrs)
	assert.Equal(t, classfile.OpInvokestatic, copied.Instrs[0].Opcode, "return address store is dropped")
	require.Len(t, copied.Succs, 1)
	assert.Equal(t, cfg.KindReturn, copied.Succs[0].Kind)
}

func TestInlineSubroutinesLimit(t *testing.T) {
	g := mustBuild(t, func(m *jasm.MethodBuilder) {
		m.Jump(classfile.OpJsr, "sub").
			Int(0).Op(classfile.OpIreturn).
			Label("sub").
			Store('A', 1).
			Op(classfile.OpRet, 1)
	})
	assert.ErrorIs(t, g.InlineSubroutines(2), cfg.ErrLimitExceeded)
}

func TestBuildRejectsFallingOffTheEnd(t *testing.T) {
	_, err := build(t, func(m *jasm.MethodBuilder) {
		m.Int(1).Store('I', 1)
	})
	assert.Error(t, err)
}
