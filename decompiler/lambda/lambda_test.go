package lambda_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/class"
	"github.com/dhamidi/decaf/decompiler/lambda"
	"github.com/dhamidi/decaf/internal/jasm"
)

const (
	static    = classfile.AccPublic | classfile.AccStatic
	synthetic = classfile.AccPrivate | classfile.AccStatic | classfile.AccSynthetic
)

func resolve(t *testing.T, b *jasm.ClassBuilder) (*class.Context, *class.Node, bool) {
	t.Helper()
	tree := class.NewTree()
	n := tree.AddClass(b.Build())
	tree.Link()
	c := class.NewContext(tree, class.DefaultOptions())
	require.NoError(t, c.ProcessClass(context.Background(), n.Wrapper))
	return c, n, lambda.Resolve(c, n.Wrapper)
}

func TestCapturingLambda(t *testing.T) {
	b := jasm.NewClass("pkg/T")
	erased := "(II)I"
	bsm := b.LambdaBootstrap(erased, classfile.RefInvokeStatic, "pkg/T", "lambda$m$0", "(III)I", erased)
	b.Method(static, "m", "(I)Ljava/util/function/IntBinaryOperator;").
		Load('I', 0).
		InvokeDynamic(bsm, "applyAsInt", "(I)Ljava/util/function/IntBinaryOperator;").
		Op(classfile.OpAreturn)
	b.Method(synthetic, "lambda$m$0", "(III)I").Synthetic().
		Load('I', 0).Load('I', 1).Op(classfile.OpIadd).Load('I', 2).Op(classfile.OpIadd).Op(classfile.OpIreturn)
	cp := b.Pool().InvokeDynamic(uint16(bsm), "applyAsInt", "(I)Ljava/util/function/IntBinaryOperator;")

	c, root, added := resolve(t, b)
	require.True(t, added)
	require.Len(t, root.Children, 1)

	n := c.Tree.Node(root.Children[0])
	assert.Equal(t, class.KindLambda, n.Kind)
	assert.Equal(t, lambda.Name("pkg/T", int(cp), bsm), n.Name)

	l := n.Lambda
	assert.Equal(t, "java/util/function/IntBinaryOperator", l.Interface)
	assert.Equal(t, "applyAsInt", l.Method)
	assert.Equal(t, "lambda$m$0", l.ContentName)
	assert.Equal(t, 1, l.Captured)
	assert.False(t, l.IsMethodReference)
	assert.True(t, l.ContentStatic())

	enclosing := c.Tree.Method(n.Enclosing)
	require.NotNil(t, enclosing)
	assert.Equal(t, "m", enclosing.Name)
	assert.True(t, c.Tree.IsHidden(class.Member{Class: root.ID, Name: "lambda$m$0", Desc: "(III)I"}))
	assert.Equal(t, n.ID, c.Lambdas[class.ContentKey("pkg/T", "lambda$m$0", "(III)I")])

	again := lambda.Resolve(c, root.Wrapper)
	assert.False(t, again, "call sites are added once")
}

func TestMethodReference(t *testing.T) {
	b := jasm.NewClass("pkg/T")
	erased := "(Ljava/lang/Object;)Ljava/lang/Object;"
	bsm := b.LambdaBootstrap(erased, classfile.RefInvokeVirtual, "java/lang/String", "trim", "()Ljava/lang/String;", "(Ljava/lang/String;)Ljava/lang/String;")
	b.Method(static, "trimmer", "()Ljava/util/function/Function;").
		InvokeDynamic(bsm, "apply", "()Ljava/util/function/Function;").
		Op(classfile.OpAreturn)

	c, root, added := resolve(t, b)
	require.True(t, added)
	n := c.Tree.Node(root.Children[0])
	assert.True(t, n.Lambda.IsMethodReference)
	assert.Equal(t, 0, n.Lambda.Captured)
	assert.False(t, n.Lambda.ContentStatic())
	assert.Empty(t, c.Lambdas)
	assert.Empty(t, c.Tree.Hidden)
}

func TestNoBootstrapMethods(t *testing.T) {
	b := jasm.NewClass("pkg/T")
	b.Method(static, "m", "()V").Op(classfile.OpReturn)

	_, root, added := resolve(t, b)
	assert.False(t, added)
	assert.Empty(t, root.Children)
}

func TestOtherBootstrapIgnored(t *testing.T) {
	b := jasm.NewClass("pkg/T")
	bsm := b.Bootstrap("java/lang/invoke/StringConcatFactory", "makeConcatWithConstants",
		"(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;Ljava/lang/String;[Ljava/lang/Object;)Ljava/lang/invoke/CallSite;",
		b.Pool().String("\x01!"))
	b.Method(static, "greet", "(Ljava/lang/String;)Ljava/lang/String;").
		Load('A', 0).
		InvokeDynamic(bsm, "makeConcatWithConstants", "(Ljava/lang/String;)Ljava/lang/String;").
		Op(classfile.OpAreturn)

	_, _, added := resolve(t, b)
	assert.False(t, added)
}

func TestNestedLambdaParent(t *testing.T) {
	b := jasm.NewClass("pkg/T")
	inner := b.LambdaBootstrap("()V", classfile.RefInvokeStatic, "pkg/T", "lambda$m$1", "()V", "()V")
	outer := b.LambdaBootstrap("()Ljava/lang/Object;", classfile.RefInvokeStatic, "pkg/T", "lambda$m$0", "()Ljava/lang/Runnable;", "()Ljava/lang/Runnable;")
	b.Method(static, "m", "()Ljava/util/function/Supplier;").
		InvokeDynamic(outer, "get", "()Ljava/util/function/Supplier;").
		Op(classfile.OpAreturn)
	b.Method(synthetic, "lambda$m$0", "()Ljava/lang/Runnable;").Synthetic().
		InvokeDynamic(inner, "run", "()Ljava/lang/Runnable;").
		Op(classfile.OpAreturn)
	b.Method(synthetic, "lambda$m$1", "()V").Synthetic().Op(classfile.OpReturn)

	c, root, added := resolve(t, b)
	require.True(t, added)
	require.Len(t, root.Children, 1)

	parent := c.Tree.Node(root.Children[0])
	assert.Equal(t, "lambda$m$0", parent.Lambda.ContentName)
	require.Len(t, parent.Children, 1)
	child := c.Tree.Node(parent.Children[0])
	assert.Equal(t, "lambda$m$1", child.Lambda.ContentName)
	assert.Equal(t, root.ID, c.Tree.Root(child.ID))
}

func TestName(t *testing.T) {
	assert.Equal(t, "pkg/T##Lambda_12_0", lambda.Name("pkg/T", 12, 0))
}
