package nested_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/class"
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/lambda"
	"github.com/dhamidi/decaf/decompiler/nested"
	"github.com/dhamidi/decaf/decompiler/stmt"
	"github.com/dhamidi/decaf/decompiler/vars"
	"github.com/dhamidi/decaf/internal/jasm"
)

const (
	public = classfile.AccPublic
	static = classfile.AccPublic | classfile.AccStatic
)

// link runs the class stages and the linker over the given classes.
func link(t *testing.T, builders ...*jasm.ClassBuilder) *class.Context {
	t.Helper()
	tree := class.NewTree()
	for _, b := range builders {
		tree.AddClass(b.Build())
	}
	tree.Link()
	c := class.NewContext(tree, class.DefaultOptions())
	classes := append([]*class.Node(nil), tree.Nodes...)
	for _, n := range classes {
		require.NoError(t, c.ProcessClass(context.Background(), n.Wrapper))
	}
	for _, n := range classes {
		lambda.Resolve(c, n.Wrapper)
	}
	require.NoError(t, nested.Link(context.Background(), c))
	return c
}

func method(t *testing.T, c *class.Context, owner, name, desc string) *class.MethodWrapper {
	t.Helper()
	mw, ok := c.Tree.FindMethod(owner, name, desc)
	require.True(t, ok, "%s.%s%s", owner, name, desc)
	require.True(t, mw.HasBody(), "%v", mw.Err)
	return mw
}

func body(t *testing.T, c *class.Context, owner, name, desc string) string {
	t.Helper()
	return stmt.Outline(method(t, c, owner, name, desc).Root)
}

func superObject(m *jasm.MethodBuilder) *jasm.MethodBuilder {
	return m.Load('A', 0).Invoke(classfile.OpInvokespecial, "java/lang/Object", "<init>", "()V")
}

func memberClasses() (*jasm.ClassBuilder, *jasm.ClassBuilder) {
	outer := jasm.NewClass("pkg/Outer").
		InnerClass("pkg/Outer$Inner", "pkg/Outer", "Inner", 0)
	outer.Method(public, "make", "(I)Lpkg/Outer$Inner;").Params("x").
		New("pkg/Outer$Inner").Op(classfile.OpDup).
		Load('A', 0).Load('I', 1).
		Invoke(classfile.OpInvokespecial, "pkg/Outer$Inner", "<init>", "(Lpkg/Outer;I)V").
		Op(classfile.OpAreturn)

	inner := jasm.NewClass("pkg/Outer$Inner").
		InnerClass("pkg/Outer$Inner", "pkg/Outer", "Inner", 0).
		Field(classfile.AccFinal|classfile.AccSynthetic, "this$0", "Lpkg/Outer;").
		Field(classfile.AccPrivate|classfile.AccFinal, "f", "I")
	ctor := inner.Method(0, "<init>", "(Lpkg/Outer;I)V").
		Load('A', 0).Load('A', 1).PutField("pkg/Outer$Inner", "this$0", "Lpkg/Outer;").
		Load('A', 0).Load('I', 2).PutField("pkg/Outer$Inner", "f", "I")
	superObject(ctor).Op(classfile.OpReturn)
	inner.Method(public, "get", "()I").
		Load('A', 0).GetField("pkg/Outer$Inner", "f", "I").Op(classfile.OpIreturn)
	inner.Method(public, "outer", "()Lpkg/Outer;").
		Load('A', 0).GetField("pkg/Outer$Inner", "this$0", "Lpkg/Outer;").Op(classfile.OpAreturn)
	return outer, inner
}

func TestMemberClassCaptures(t *testing.T) {
	outer, inner := memberClasses()
	c := link(t, outer, inner)

	ctor := method(t, c, "pkg/Outer$Inner", "<init>", "(Lpkg/Outer;I)V")
	assert.Equal(t, "[outer, x]", nested.Mask(ctor.Synthetic).String())
	assert.Equal(t, "super()\n", stmt.Outline(ctor.Root))

	assert.Equal(t, "return x\n", body(t, c, "pkg/Outer$Inner", "get", "()I"))
	assert.Equal(t, "return Outer.this\n", body(t, c, "pkg/Outer$Inner", "outer", "()Lpkg/Outer;"))

	n, ok := c.Tree.Lookup("pkg/Outer$Inner")
	require.True(t, ok)
	assert.True(t, c.Tree.IsHidden(class.Member{Class: n.ID, Name: "f", Desc: "I"}))
	assert.True(t, c.Tree.IsHidden(class.Member{Class: n.ID, Name: "this$0", Desc: "Lpkg/Outer;"}))

	site := method(t, c, "pkg/Outer", "make", "(I)Lpkg/Outer$Inner;")
	assert.True(t, site.Vars.IsFinal(vars.VarVersion{Index: 1, Version: 1}))
}

func TestConflictingCallSites(t *testing.T) {
	outer, inner := memberClasses()
	outer.Method(public, "other", "(II)Lpkg/Outer$Inner;").Params("a", "b").
		New("pkg/Outer$Inner").Op(classfile.OpDup).
		Load('A', 0).Load('I', 2).
		Invoke(classfile.OpInvokespecial, "pkg/Outer$Inner", "<init>", "(Lpkg/Outer;I)V").
		Op(classfile.OpAreturn)
	c := link(t, outer, inner)

	ctor := method(t, c, "pkg/Outer$Inner", "<init>", "(Lpkg/Outer;I)V")
	assert.Equal(t, "[outer, -]", nested.Mask(ctor.Synthetic).String())
	assert.Equal(t, "return this.f\n", body(t, c, "pkg/Outer$Inner", "get", "()I"))
}

func TestMerge(t *testing.T) {
	site := class.MethodRef{Class: 0, Index: 0}
	x := &class.Capture{Var: &exprent.VarExpr{Index: 1, Version: 1, Name: "x"}, Site: site}
	y := &class.Capture{Var: &exprent.VarExpr{Index: 2, Version: 1, Name: "y"}, Site: site}
	outer := &class.Capture{Outer: true}

	a := nested.Mask{outer, x, y}
	b := nested.Mask{outer, y, y}

	same := func(t *testing.T, want, got nested.Mask) {
		t.Helper()
		require.Len(t, got, len(want))
		for i := range want {
			assert.True(t, want[i].Same(got[i]), "position %d: %s != %s", i, want[i], got[i])
		}
	}
	same(t, nested.Mask{outer, nil, y}, nested.Merge(a, b))
	same(t, nested.Merge(a, b), nested.Merge(b, a))
	same(t, a, nested.Merge(a, a))
	same(t, a, nested.Merge(a))
	assert.Nil(t, nested.Merge())
	assert.True(t, nested.Mask{nil, nil}.Empty())
}

func accessorClasses() *jasm.ClassBuilder {
	outer := jasm.NewClass("pkg/Outer").
		Field(classfile.AccPrivate, "secret", "I")
	outer.Method(classfile.AccStatic|classfile.AccSynthetic, "access$000", "(Lpkg/Outer;)I").Synthetic().
		Load('A', 0).GetField("pkg/Outer", "secret", "I").Op(classfile.OpIreturn)
	outer.Method(classfile.AccStatic|classfile.AccSynthetic, "access$100", "(Lpkg/Outer;I)V").Synthetic().
		Load('A', 0).Load('I', 1).Invoke(classfile.OpInvokevirtual, "pkg/Outer", "bump", "(I)V").
		Op(classfile.OpReturn)
	outer.Method(public, "bump", "(I)V").Op(classfile.OpReturn)
	outer.Method(static, "peek", "(Lpkg/Outer;)I").Params("obj").
		Load('A', 0).Invoke(classfile.OpInvokestatic, "pkg/Outer", "access$000", "(Lpkg/Outer;)I").
		Op(classfile.OpIreturn)
	outer.Method(static, "poke", "(Lpkg/Outer;)V").Params("obj").
		Load('A', 0).Int(2).Invoke(classfile.OpInvokestatic, "pkg/Outer", "access$100", "(Lpkg/Outer;I)V").
		Op(classfile.OpReturn)
	return outer
}

func TestFieldGetAccessor(t *testing.T) {
	c := link(t, accessorClasses())

	assert.Equal(t, "return obj.secret\n", body(t, c, "pkg/Outer", "peek", "(Lpkg/Outer;)I"))
	assert.Equal(t, "obj.bump(2)\n", body(t, c, "pkg/Outer", "poke", "(Lpkg/Outer;)V"))

	n, _ := c.Tree.Lookup("pkg/Outer")
	assert.True(t, c.Tree.IsHidden(class.Member{Class: n.ID, Name: "access$000", Desc: "(Lpkg/Outer;)I"}))
	assert.True(t, c.Tree.IsHidden(class.Member{Class: n.ID, Name: "access$100", Desc: "(Lpkg/Outer;I)V"}))

	bridge := method(t, c, "pkg/Outer", "access$000", "(Lpkg/Outer;)I")
	first := nested.Classify(c, bridge)
	assert.Equal(t, class.AccessorFieldGet, first.Kind)
	assert.Equal(t, "secret", first.Name)
	assert.Same(t, first, c.Accessors[bridge.Ref])
	assert.Same(t, first, nested.Classify(c, bridge))
	assert.Zero(t, nested.InlineAccessors(c, n.ID))
	assert.Equal(t, "return obj.secret\n", body(t, c, "pkg/Outer", "peek", "(Lpkg/Outer;)I"))

	forward := nested.Classify(c, method(t, c, "pkg/Outer", "access$100", "(Lpkg/Outer;I)V"))
	assert.Equal(t, class.AccessorMethod, forward.Kind)
	assert.False(t, forward.Static)
}

func TestChainedAccessor(t *testing.T) {
	outer := jasm.NewClass("pkg/Outer").
		Field(classfile.AccPrivate, "secret", "I")
	outer.Method(static, "peek", "(Lpkg/Outer;)I").Params("obj").
		Load('A', 0).Invoke(classfile.OpInvokestatic, "pkg/Outer", "access$200", "(Lpkg/Outer;)I").
		Op(classfile.OpIreturn)
	outer.Method(classfile.AccStatic|classfile.AccSynthetic, "access$200", "(Lpkg/Outer;)I").Synthetic().
		Load('A', 0).Invoke(classfile.OpInvokestatic, "pkg/Outer", "access$000", "(Lpkg/Outer;)I").
		Op(classfile.OpIreturn)
	outer.Method(classfile.AccStatic|classfile.AccSynthetic, "access$000", "(Lpkg/Outer;)I").Synthetic().
		Load('A', 0).GetField("pkg/Outer", "secret", "I").Op(classfile.OpIreturn)
	c := link(t, outer)

	assert.Equal(t, "return obj.secret\n", body(t, c, "pkg/Outer", "peek", "(Lpkg/Outer;)I"))

	chained := method(t, c, "pkg/Outer", "access$200", "(Lpkg/Outer;)I")
	acc := nested.Classify(c, chained)
	assert.Equal(t, class.AccessorFieldGet, acc.Kind)
	assert.Equal(t, "secret", acc.Name)

	n, _ := c.Tree.Lookup("pkg/Outer")
	assert.True(t, c.Tree.IsHidden(class.Member{Class: n.ID, Name: "access$200", Desc: "(Lpkg/Outer;)I"}))
}

func TestAccessorOutsideRoot(t *testing.T) {
	other := jasm.NewClass("pkg/Other")
	other.Method(static, "peek", "(Lpkg/Outer;)I").Params("obj").
		Load('A', 0).Invoke(classfile.OpInvokestatic, "pkg/Outer", "access$000", "(Lpkg/Outer;)I").
		Op(classfile.OpIreturn)
	c := link(t, accessorClasses(), other)

	assert.Equal(t, "return Outer.access$000(obj)\n", body(t, c, "pkg/Other", "peek", "(Lpkg/Outer;)I"))
	assert.Equal(t, "return obj.secret\n", body(t, c, "pkg/Outer", "peek", "(Lpkg/Outer;)I"))
}

func TestBridgesKept(t *testing.T) {
	tree := class.NewTree()
	n := tree.AddClass(accessorClasses().Build())
	tree.Link()
	opts := class.DefaultOptions()
	opts.RemoveBridges = false
	c := class.NewContext(tree, opts)
	require.NoError(t, c.ProcessClass(context.Background(), n.Wrapper))
	require.NoError(t, nested.Link(context.Background(), c))

	assert.Equal(t, "return Outer.access$000(obj)\n", body(t, c, "pkg/Outer", "peek", "(Lpkg/Outer;)I"))
	assert.Empty(t, c.Tree.Hidden)
}

func TestLocalClassDeclaration(t *testing.T) {
	outer := jasm.NewClass("pkg/Outer").
		InnerClass("pkg/Outer$1Helper", "", "Helper", 0)
	outer.Method(static, "run", "()V").
		Invoke(classfile.OpInvokestatic, "pkg/Outer", "prepare", "()V").
		New("pkg/Outer$1Helper").Op(classfile.OpDup).
		Invoke(classfile.OpInvokespecial, "pkg/Outer$1Helper", "<init>", "()V").
		Invoke(classfile.OpInvokevirtual, "pkg/Outer$1Helper", "help", "()V").
		Op(classfile.OpReturn)
	outer.Method(static, "prepare", "()V").Op(classfile.OpReturn)

	local := jasm.NewClass("pkg/Outer$1Helper").
		InnerClass("pkg/Outer$1Helper", "", "Helper", 0).
		EnclosingMethod("pkg/Outer", "run", "()V")
	superObject(local.Method(0, "<init>", "()V")).Op(classfile.OpReturn)
	local.Method(public, "help", "()V").Op(classfile.OpReturn)

	c := link(t, outer, local)
	assert.Equal(t,
		"Outer.prepare()\nclass Outer.1Helper {...}\nnew Outer.1Helper().help()\n",
		body(t, c, "pkg/Outer", "run", "()V"))

	n, _ := c.Tree.Lookup("pkg/Outer$1Helper")
	assert.False(t, nested.DeclareLocal(c, n), "declared twice")
}

func TestAnonymousCaptures(t *testing.T) {
	outer := jasm.NewClass("pkg/Outer").
		InnerClass("pkg/Outer$1", "", "", 0)
	outer.Method(static, "task", "(I)Ljava/lang/Runnable;").Params("count").
		New("pkg/Outer$1").Op(classfile.OpDup).
		Load('I', 0).
		Invoke(classfile.OpInvokespecial, "pkg/Outer$1", "<init>", "(I)V").
		Op(classfile.OpAreturn)

	anon := jasm.NewClass("pkg/Outer$1").
		Implements("java/lang/Runnable").
		InnerClass("pkg/Outer$1", "", "", 0).
		EnclosingMethod("pkg/Outer", "task", "(I)Ljava/lang/Runnable;").
		Field(classfile.AccFinal|classfile.AccSynthetic, "val$count", "I")
	ctor := anon.Method(0, "<init>", "(I)V").
		Load('A', 0).Load('I', 1).PutField("pkg/Outer$1", "val$count", "I")
	superObject(ctor).Op(classfile.OpReturn)
	anon.Method(public, "run", "()V").
		Load('A', 0).GetField("pkg/Outer$1", "val$count", "I").
		Invoke(classfile.OpInvokestatic, "pkg/Outer", "use", "(I)V").
		Op(classfile.OpReturn)

	c := link(t, outer, anon)

	assert.Equal(t, "return new Outer.1() {...}\n", body(t, c, "pkg/Outer", "task", "(I)Ljava/lang/Runnable;"))
	assert.Equal(t, "Outer.use(count)\n", body(t, c, "pkg/Outer$1", "run", "()V"))

	n, _ := c.Tree.Lookup("pkg/Outer$1")
	assert.True(t, c.Tree.IsHidden(class.Member{Class: n.ID, Name: "<init>", Desc: "(I)V"}))
	assert.True(t, c.Tree.IsHidden(class.Member{Class: n.ID, Name: "val$count", Desc: "I"}))
}

func TestLambdaThreading(t *testing.T) {
	c := jasm.NewClass("pkg/T")
	erased := "(I)I"
	bsm := c.LambdaBootstrap(erased, classfile.RefInvokeStatic, "pkg/T", "lambda$adder$0", "(II)I", erased)
	c.Method(static, "adder", "(I)Ljava/util/function/IntUnaryOperator;").Params("base").
		Load('I', 0).
		InvokeDynamic(bsm, "applyAsInt", "(I)Ljava/util/function/IntUnaryOperator;").
		Op(classfile.OpAreturn)
	c.Method(classfile.AccPrivate|classfile.AccStatic|classfile.AccSynthetic, "lambda$adder$0", "(II)I").Synthetic().
		Load('I', 0).Load('I', 1).Op(classfile.OpIadd).Op(classfile.OpIreturn)
	cp := c.Pool().InvokeDynamic(uint16(bsm), "applyAsInt", "(I)Ljava/util/function/IntUnaryOperator;")

	ctx := link(t, c)

	name := lambda.Name("pkg/T", int(cp), bsm)
	assert.Equal(t, "return <lambda "+name+">(base)\n", body(t, ctx, "pkg/T", "adder", "(I)Ljava/util/function/IntUnaryOperator;"))

	content := method(t, ctx, "pkg/T", "lambda$adder$0", "(II)I")
	assert.Equal(t, "return base + var1\n", stmt.Outline(content.Root))
	require.Len(t, content.Synthetic, 2)
	assert.NotNil(t, content.Synthetic[0])
	assert.Nil(t, content.Synthetic[1])

	n, ok := ctx.Tree.Lookup(name)
	require.True(t, ok)
	require.Len(t, n.Lambda.Captures, 1)
	assert.Equal(t, "base", n.Lambda.Captures[0].String())
}
