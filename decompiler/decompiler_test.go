package decompiler_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler"
	"github.com/dhamidi/decaf/decompiler/class"
	"github.com/dhamidi/decaf/decompiler/method"
	"github.com/dhamidi/decaf/decompiler/stmt"
	"github.com/dhamidi/decaf/internal/jasm"
)

const static = classfile.AccPublic | classfile.AccStatic

func sample() []*jasm.ClassBuilder {
	outer := jasm.NewClass("pkg/Outer").
		InnerClass("pkg/Outer$Inner", "pkg/Outer", "Inner", classfile.AccStatic)
	erased := "()V"
	bsm := outer.LambdaBootstrap(erased, classfile.RefInvokeStatic, "pkg/Outer", "lambda$task$0", "()V", erased)
	outer.Method(static, "task", "()Ljava/lang/Runnable;").
		InvokeDynamic(bsm, "run", "()Ljava/lang/Runnable;").
		Op(classfile.OpAreturn)
	outer.Method(classfile.AccPrivate|classfile.AccStatic|classfile.AccSynthetic, "lambda$task$0", "()V").Synthetic().
		Invoke(classfile.OpInvokestatic, "pkg/Outer", "tick", "()V").
		Op(classfile.OpReturn)
	outer.Method(static, "tick", "()V").Op(classfile.OpReturn)
	outer.Method(static, "sign", "(I)I").Params("n").
		Load('I', 0).Jump(classfile.OpIfle, "neg").
		Int(1).Op(classfile.OpIreturn).
		Label("neg").
		Int(-1).Op(classfile.OpIreturn)

	inner := jasm.NewClass("pkg/Outer$Inner").
		InnerClass("pkg/Outer$Inner", "pkg/Outer", "Inner", classfile.AccStatic)
	inner.Method(static, "one", "()I").Int(1).Op(classfile.OpIreturn)
	return []*jasm.ClassBuilder{outer, inner}
}

func build(bs []*jasm.ClassBuilder) []*classfile.ClassFile {
	var out []*classfile.ClassFile
	for _, b := range bs {
		out = append(out, b.Build())
	}
	return out
}

func TestRun(t *testing.T) {
	res, err := decompiler.Run(context.Background(), build(sample()), class.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Classes, 2)
	assert.Empty(t, res.Failures)

	outer, ok := res.Tree.Lookup("pkg/Outer")
	require.True(t, ok)
	assert.Equal(t, []class.NodeID{outer.ID}, res.Tree.Roots)
	assert.Len(t, outer.Children, 2)

	var names []string
	for _, mw := range res.Visible(outer.Wrapper) {
		names = append(names, mw.Name)
	}
	assert.Equal(t, []string{"task", "tick", "sign"}, names)

	ref, _ := outer.Wrapper.Method("task ()Ljava/lang/Runnable;")
	body := stmt.Outline(outer.Wrapper.Methods[ref.Index].Root)
	assert.Contains(t, body, "return <lambda pkg/Outer##Lambda_")
}

func TestRunIsDeterministic(t *testing.T) {
	outline := func() string {
		opts := class.DefaultOptions()
		opts.Workers = 8
		res, err := decompiler.Run(context.Background(), build(sample()), opts)
		require.NoError(t, err)
		var out string
		for _, cw := range res.Classes {
			for _, mw := range cw.Methods {
				if mw.HasBody() {
					out += mw.String() + "\n" + stmt.Outline(mw.Root)
				}
			}
		}
		return out + res.Tree.Outline()
	}
	first := outline()
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, outline())
	}
}

func TestFailuresAreContained(t *testing.T) {
	opts := class.DefaultOptions()
	opts.Method.MaxBlocks = 2
	res, err := decompiler.Run(context.Background(), build(sample()), opts)
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	f := res.Failures[0]
	assert.Equal(t, "pkg/Outer", f.Class)
	assert.Equal(t, "sign", f.Method)
	assert.Equal(t, method.StatusLimit, f.Status)
	assert.NotEmpty(t, f.Error)

	mw, ok := res.Tree.FindMethod("pkg/Outer$Inner", "one", "()I")
	require.True(t, ok)
	assert.True(t, mw.HasBody())
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := decompiler.Run(ctx, build(sample()), class.DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDuplicateClassKeepsFirst(t *testing.T) {
	files := build(sample())
	files = append(files, jasm.NewClass("pkg/Outer").Build())
	res, err := decompiler.Run(context.Background(), files, class.DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, res.Classes, 2)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	classes := filepath.Join(dir, "classes")
	require.NoError(t, os.MkdirAll(filepath.Join(classes, "pkg"), 0o755))

	bs := sample()
	require.NoError(t, os.WriteFile(filepath.Join(classes, "pkg", "Outer.class"), bs[0].Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(classes, "pkg", "broken.class"), []byte{0xca, 0xfe}, 0o644))

	jar := filepath.Join(dir, "lib.jar")
	out, err := os.Create(jar)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	w, err := zw.Create("pkg/Outer$Inner.class")
	require.NoError(t, err)
	_, err = w.Write(bs[1].Bytes())
	require.NoError(t, err)
	_, err = zw.Create("META-INF/MANIFEST.MF")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())

	in := decompiler.Load(classes, jar, filepath.Join(dir, "missing"))
	require.Len(t, in.Classes, 2)
	assert.Equal(t, "pkg/Outer", in.Classes[0].ClassName())
	assert.Equal(t, "pkg/Outer$Inner", in.Classes[1].ClassName())
	assert.Len(t, in.Errors, 2)

	res, err := decompiler.Decompile(context.Background(), class.DefaultOptions(), classes, jar)
	require.NoError(t, err)
	assert.Len(t, res.Classes, 2)
}

func TestDecompileNothing(t *testing.T) {
	_, err := decompiler.Decompile(context.Background(), class.DefaultOptions(), t.TempDir())
	assert.EqualError(t, err, "no class files found")
}
