package classfile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/internal/jasm"
)

func sampleClass() *jasm.ClassBuilder {
	c := jasm.NewClass("pkg/Sample").
		Implements("java/lang/Runnable").
		SourceFile("Sample.java").
		Field(classfile.AccPrivate, "count", "I").
		ConstantField(classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, "LIMIT", "J", int64(1)<<40).
		InnerClass("pkg/Sample$Inner", "pkg/Sample", "Inner", classfile.AccPrivate)

	c.Method(classfile.AccPublic, "<init>", "()V").
		Load('A', 0).
		Invoke(classfile.OpInvokespecial, "java/lang/Object", "<init>", "()V").
		Op(classfile.OpReturn)

	c.Method(classfile.AccPublic, "add", "(II)I").
		Params("a", "b").
		Label("start").
		Load('I', 1).
		Load('I', 2).
		Op(classfile.OpIadd).
		Op(classfile.OpIreturn).
		Label("end").
		Local("this", "Lpkg/Sample;", 0, "start", "end").
		Local("a", "I", 1, "start", "end").
		Local("b", "I", 2, "start", "end")

	c.Method(classfile.AccPublic, "run", "()V").Abstract()
	return c
}

func TestParseClassFile(t *testing.T) {
	cf, err := classfile.ParseBytes(sampleClass().Bytes())
	require.NoError(t, err)
	cp := cf.ConstantPool

	t.Run("class name", func(t *testing.T) {
		assert.Equal(t, "pkg/Sample", cf.ClassName())
		assert.Equal(t, "java/lang/Object", cp.GetClassName(cf.SuperClass))
		require.Len(t, cf.Interfaces, 1)
		assert.Equal(t, "java/lang/Runnable", cp.GetClassName(cf.Interfaces[0]))
		assert.Equal(t, "Sample.java", cf.SourceFile())
	})

	t.Run("access flags", func(t *testing.T) {
		assert.True(t, cf.AccessFlags.Has(classfile.AccPublic))
		assert.False(t, cf.AccessFlags.Has(classfile.AccInterface))
	})

	t.Run("fields", func(t *testing.T) {
		require.Len(t, cf.Fields, 2)
		count := cf.GetField("count")
		require.NotNil(t, count)
		assert.True(t, count.AccessFlags.Has(classfile.AccPrivate))
		assert.False(t, count.IsStatic())
		assert.Equal(t, "I", count.Descriptor(cp))

		limit := cf.GetField("LIMIT")
		require.NotNil(t, limit)
		idx := limit.ConstantValue(cp)
		require.NotZero(t, idx)
		v, ok := cp.Value(idx)
		require.True(t, ok)
		assert.Equal(t, int64(1)<<40, v)
	})

	t.Run("method parameters", func(t *testing.T) {
		add := cf.GetMethod("add", "(II)I")
		require.NotNil(t, add)
		assert.Equal(t, []string{"a", "b"}, add.ParameterNames(cp))
		assert.Equal(t, "add (II)I", add.Key(cp))
	})

	t.Run("local variable table", func(t *testing.T) {
		code := cf.GetMethod("add", "").GetCodeAttribute(cp)
		require.NotNil(t, code)
		lvt := code.LocalVariableTable(cp)
		require.NotNil(t, lvt)
		require.Len(t, lvt.LocalVariableTable, 3)
		b := lvt.LocalVariableTable[2]
		assert.Equal(t, "b", cp.GetUtf8(b.NameIndex))
		assert.Equal(t, uint16(2), b.Index)
		assert.True(t, b.Covers(0))
		assert.True(t, b.Covers(int(b.Length)))
	})

	t.Run("abstract method has no code", func(t *testing.T) {
		assert.Nil(t, cf.GetMethod("run", "()V").GetCodeAttribute(cp))
	})

	t.Run("inner classes", func(t *testing.T) {
		inner := cf.InnerClasses()
		require.Len(t, inner, 1)
		assert.Equal(t, "pkg/Sample$Inner", cp.GetClassName(inner[0].InnerClassInfoIndex))
		assert.Equal(t, "Inner", cp.GetUtf8(inner[0].InnerNameIndex))
	})
}

func TestEnclosingMethodAndBootstrap(t *testing.T) {
	c := jasm.NewClass("pkg/Outer$1").EnclosingMethod("pkg/Outer", "go", "()V")
	bsm := c.LambdaBootstrap("()V", classfile.RefInvokeStatic, "pkg/Outer$1", "lambda$go$0", "()V", "()V")
	c.Method(classfile.AccPublic, "go", "()V").
		InvokeDynamic(bsm, "run", "()Ljava/lang/Runnable;").
		Op(classfile.OpPop).
		Op(classfile.OpReturn)
	cf := c.Build()

	class, name, desc, ok := cf.EnclosingMethod()
	require.True(t, ok)
	assert.Equal(t, "pkg/Outer", class)
	assert.Equal(t, "go", name)
	assert.Equal(t, "()V", desc)

	bms := cf.BootstrapMethods()
	require.Len(t, bms, 1)
	h := cf.ConstantPool.GetMethodHandle(bms[0].BootstrapMethodRef)
	require.NotNil(t, h)
	assert.True(t, h.ReferenceKind.Invokes())
	ref, ok := cf.ConstantPool.Member(h.ReferenceIndex)
	require.True(t, ok)
	assert.Equal(t, "java/lang/invoke/LambdaMetafactory", ref.Class)
	assert.Equal(t, "metafactory", ref.Name)
	assert.False(t, ref.Interface)
	assert.Len(t, bms[0].BootstrapArguments, 3)
}

func TestParseRejectsBadMagic(t *testing.T) {
	_, err := classfile.ParseBytes([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 0})
	assert.Error(t, err)
}

func TestParseTruncated(t *testing.T) {
	data := sampleClass().Bytes()
	_, err := classfile.ParseBytes(data[:len(data)/2])
	assert.Error(t, err)
}

func TestConstantPool(t *testing.T) {
	c := sampleClass()
	pool := c.Pool()
	str := pool.String("hi")
	num := pool.Int(7)
	dbl := pool.Double(0.5)
	ctor := pool.Method("java/lang/Object", "<init>", "()V")
	run := pool.InterfaceMethod("java/lang/Runnable", "run", "()V")
	count := pool.Field("pkg/Sample", "count", "I")
	cp := c.Build().ConstantPool

	t.Run("values", func(t *testing.T) {
		tests := []struct {
			index uint16
			want  any
		}{
			{str, "hi"},
			{num, int32(7)},
			{dbl, 0.5},
		}
		for _, tt := range tests {
			v, ok := cp.Value(tt.index)
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		}
		_, ok := cp.Value(ctor)
		assert.False(t, ok)
		_, ok = cp.Value(0)
		assert.False(t, ok)
		_, ok = cp.Value(uint16(len(cp) + 1))
		assert.False(t, ok)
	})

	t.Run("members", func(t *testing.T) {
		ref, ok := cp.Member(ctor)
		require.True(t, ok)
		assert.Equal(t, classfile.MemberRef{Class: "java/lang/Object", Name: "<init>", Desc: "()V"}, ref)

		ref, ok = cp.Member(run)
		require.True(t, ok)
		assert.True(t, ref.Interface)

		ref, ok = cp.Member(count)
		require.True(t, ok)
		assert.Equal(t, "count", ref.Name)
		assert.Equal(t, classfile.ConstantFieldref, cp[count-1].Tag())

		_, ok = cp.Member(str)
		assert.False(t, ok)
	})
}
