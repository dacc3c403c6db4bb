package method_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/method"
	"github.com/dhamidi/decaf/decompiler/stmt"
	"github.com/dhamidi/decaf/internal/jasm"
)

func input(t *testing.T, desc string, body func(m *jasm.MethodBuilder)) *method.Input {
	t.Helper()
	c := jasm.NewClass("pkg/T")
	body(c.Method(classfile.AccPublic|classfile.AccStatic, "m", desc))
	cf := c.Build()
	code := cf.GetMethod("m", desc).GetCodeAttribute(cf.ConstantPool)
	require.NotNil(t, code)
	return &method.Input{Class: "pkg/T", Name: "m", Desc: desc, Static: true, Code: code, Pool: cf.ConstantPool}
}

func reconstruct(t *testing.T, desc string, body func(m *jasm.MethodBuilder)) *method.Result {
	t.Helper()
	res, err := method.Reconstruct(context.Background(), input(t, desc, body), method.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, method.StatusOK, res.Status, "%v", res.Err)
	return res
}

func count[T stmt.Stmt](root stmt.Stmt) (out []T) {
	stmt.Walk(root, func(s stmt.Stmt) bool {
		if x, ok := s.(T); ok {
			out = append(out, x)
		}
		return true
	})
	return out
}

func call(m *jasm.MethodBuilder, name string) *jasm.MethodBuilder {
	return m.Invoke(classfile.OpInvokestatic, "pkg/T", name, "()V")
}

func TestStraightLine(t *testing.T) {
	res := reconstruct(t, "(I)I", func(m *jasm.MethodBuilder) {
		m.Load('I', 0).Int(1).Op(classfile.OpIadd).Op(classfile.OpIreturn)
	})
	assert.Equal(t, "return var0 + 1\n", stmt.Outline(res.Root))
	require.Len(t, res.Params, 1)
	assert.Equal(t, 0, res.Params[0].Slot)
}

func TestTrailingReturnRemoved(t *testing.T) {
	res := reconstruct(t, "()V", func(m *jasm.MethodBuilder) {
		call(m, "f").Op(classfile.OpReturn)
	})
	assert.Equal(t, "T.f()\n", stmt.Outline(res.Root))
}

func TestTryFinally(t *testing.T) {
	res := reconstruct(t, "()V", func(m *jasm.MethodBuilder) {
		m.Label("start")
		call(m, "f")
		m.Label("end")
		call(m, "fin").Op(classfile.OpReturn)
		m.Label("handler").Store('A', 0)
		call(m, "fin").Load('A', 0).Op(classfile.OpAthrow)
		m.Try("start", "end", "handler", "")
	})

	trys := count[*stmt.Try](res.Root)
	require.Len(t, trys, 1)
	assert.Empty(t, trys[0].Catches)
	require.NotNil(t, trys[0].Finally)

	out := stmt.Outline(res.Root)
	assert.Equal(t, 1, strings.Count(out, "T.fin()"), out)
	assert.Equal(t, 1, strings.Count(out, "T.f()"), out)
}

func TestTryCatch(t *testing.T) {
	res := reconstruct(t, "()V", func(m *jasm.MethodBuilder) {
		m.Label("start")
		call(m, "f")
		m.Label("end").Goto("done")
		m.Label("handler").Store('A', 0)
		call(m, "recover")
		m.Label("done").Op(classfile.OpReturn)
		m.Try("start", "end", "handler", "java/io/IOException")
	})

	trys := count[*stmt.Try](res.Root)
	require.Len(t, trys, 1)
	require.Len(t, trys[0].Catches, 1)
	assert.Equal(t, []string{"java/io/IOException"}, trys[0].Catches[0].Types)
	assert.Nil(t, trys[0].Finally)
	assert.Contains(t, stmt.Outline(trys[0].Catches[0].Body), "T.recover()")
}

func TestSynchronized(t *testing.T) {
	res := reconstruct(t, "(Ljava/lang/Object;)V", func(m *jasm.MethodBuilder) {
		m.Load('A', 0).Op(classfile.OpDup).Store('A', 1).Op(classfile.OpMonitorenter)
		m.Label("start")
		call(m, "f")
		m.Load('A', 1).Op(classfile.OpMonitorexit)
		m.Label("end").Goto("done")
		m.Label("handler").Store('A', 2).Load('A', 1).Op(classfile.OpMonitorexit).Load('A', 2).Op(classfile.OpAthrow)
		m.Label("done").Op(classfile.OpReturn)
		m.Try("start", "end", "handler", "")
	})

	syncs := count[*stmt.Sync](res.Root)
	require.Len(t, syncs, 1)
	assert.Empty(t, count[*stmt.Try](res.Root))
	out := stmt.Outline(res.Root)
	assert.NotContains(t, out, "monitor")
	assert.Contains(t, stmt.Outline(syncs[0].Body), "T.f()")
}

func TestIfElse(t *testing.T) {
	res := reconstruct(t, "(I)V", func(m *jasm.MethodBuilder) {
		m.Load('I', 0).Jump(classfile.OpIfeq, "else")
		call(m, "a").Goto("end")
		m.Label("else")
		call(m, "b")
		m.Label("end").Op(classfile.OpReturn)
	})

	ifs := count[*stmt.If](res.Root)
	require.Len(t, ifs, 1)
	assert.NotNil(t, ifs[0].Else)
	out := stmt.Outline(res.Root)
	assert.Contains(t, out, "T.a()")
	assert.Contains(t, out, "T.b()")
	assert.NotContains(t, out, "goto")
}

func TestBooleanReturn(t *testing.T) {
	res := reconstruct(t, "(I)Z", func(m *jasm.MethodBuilder) {
		m.Load('I', 0).Jump(classfile.OpIfle, "no").
			Int(1).Op(classfile.OpIreturn).
			Label("no").
			Int(0).Op(classfile.OpIreturn)
	})
	assert.Empty(t, count[*stmt.If](res.Root))
	assert.Equal(t, "return var0 > 0\n", stmt.Outline(res.Root))
}

func TestLoop(t *testing.T) {
	res := reconstruct(t, "(I)I", func(m *jasm.MethodBuilder) {
		m.Int(0).Store('I', 1).
			Label("top").
			Load('I', 1).Load('I', 0).Jump(classfile.OpIfIcmpge, "end").
			Iinc(1, 1).
			Goto("top").
			Label("end").
			Load('I', 1).Op(classfile.OpIreturn)
	})

	loops := count[*stmt.Loop](res.Root)
	require.Len(t, loops, 1)
	assert.NotEqual(t, stmt.LoopInfinite, loops[0].Kind)
	out := stmt.Outline(res.Root)
	assert.Contains(t, out, "var1 < var0")
	assert.Contains(t, out, "var1++")
}

func TestConstructorCall(t *testing.T) {
	res := reconstruct(t, "()Lpkg/A;", func(m *jasm.MethodBuilder) {
		m.New("pkg/A").Op(classfile.OpDup).
			Int(3).
			Invoke(classfile.OpInvokespecial, "pkg/A", "<init>", "(I)V").
			Op(classfile.OpAreturn)
	})
	assert.Equal(t, "return new A(3)\n", stmt.Outline(res.Root))
}

func TestBlockLimit(t *testing.T) {
	in := input(t, "(I)V", func(m *jasm.MethodBuilder) {
		m.Load('I', 0).Jump(classfile.OpIfeq, "end")
		call(m, "a")
		m.Label("end").Op(classfile.OpReturn)
	})
	opts := method.DefaultOptions()
	opts.MaxBlocks = 1

	res, err := method.Reconstruct(context.Background(), in, opts)
	require.NoError(t, err)
	assert.Equal(t, method.StatusLimit, res.Status)
	assert.ErrorIs(t, res.Err, method.ErrLimitExceeded)
	assert.Contains(t, stmt.Outline(res.Root), "decompilation failed (limit)")
}

func TestTimeBudget(t *testing.T) {
	in := input(t, "()V", func(m *jasm.MethodBuilder) {
		m.Op(classfile.OpReturn)
	})
	opts := method.DefaultOptions()
	opts.Timeout = time.Nanosecond
	time.Sleep(time.Millisecond)

	res, err := method.Reconstruct(context.Background(), in, opts)
	require.NoError(t, err)
	assert.Equal(t, method.StatusTimeout, res.Status)
	assert.ErrorIs(t, res.Err, method.ErrTimeBudget)
}

func TestCancelled(t *testing.T) {
	in := input(t, "()V", func(m *jasm.MethodBuilder) {
		m.Op(classfile.OpReturn)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := method.Reconstruct(ctx, in, method.DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestMissingCode(t *testing.T) {
	res, err := method.Reconstruct(context.Background(), &method.Input{Class: "pkg/T", Name: "m", Desc: "()V", Static: true}, method.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, method.StatusFailed, res.Status)
	assert.Contains(t, stmt.Outline(res.Root), "decompilation failed (failed)")
}

func TestFixpointLimit(t *testing.T) {
	flip := false
	restless := method.RewriteFunc("restless", func(*method.Body) bool {
		flip = !flip
		return true
	})
	b := &method.Body{Root: &stmt.Root{Body: &stmt.Basic{}}}

	err := method.Fixpoint(b, []method.Rewrite{restless}, 8, nil)
	assert.ErrorIs(t, err, method.ErrLimitExceeded)

	settled := method.RewriteFunc("settled", func(*method.Body) bool { return false })
	assert.NoError(t, method.Fixpoint(b, []method.Rewrite{settled}, 8, nil))
}

func TestNullCheckStripping(t *testing.T) {
	body := func(m *jasm.MethodBuilder) {
		m.Invoke(classfile.OpInvokestatic, "pkg/T", "get", "()Ljava/lang/Object;").
			Op(classfile.OpDup).
			Invoke(classfile.OpInvokestatic, "java/util/Objects", "requireNonNull", "(Ljava/lang/Object;)Ljava/lang/Object;").
			Op(classfile.OpPop).
			Invoke(classfile.OpInvokestatic, "pkg/T", "use", "(Ljava/lang/Object;)V").
			Op(classfile.OpReturn)
	}

	t.Run("stripped", func(t *testing.T) {
		opts := method.DefaultOptions()
		opts.StripNullChecks = true
		res, err := method.Reconstruct(context.Background(), input(t, "()V", body), opts)
		require.NoError(t, err)
		require.Equal(t, method.StatusOK, res.Status, "%v", res.Err)
		assert.Equal(t, "T.use(T.get())\n", stmt.Outline(res.Root))
	})

	t.Run("kept", func(t *testing.T) {
		res := reconstruct(t, "()V", body)
		assert.Contains(t, stmt.Outline(res.Root), "Objects.requireNonNull(")
	})
}
