package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/decaf/decompiler/exprent"
)

type testFlow struct {
	exprs [][]exprent.Expr
	succs [][]int
}

func (f *testFlow) Len() int                   { return len(f.exprs) }
func (f *testFlow) Entry() int                 { return 0 }
func (f *testFlow) Exprs(n int) []exprent.Expr { return f.exprs[n] }
func (f *testFlow) Succs(n int) []int          { return f.succs[n] }

func ref(index int) *exprent.VarExpr { return &exprent.VarExpr{Index: index, T: exprent.Int} }

func store(v *exprent.VarExpr, value exprent.Expr) exprent.Expr {
	return &exprent.AssignExpr{Left: v, Right: value}
}

func lit(n int32) exprent.Expr { return exprent.NewConst(n, exprent.Int) }

func use(v *exprent.VarExpr) exprent.Expr {
	return &exprent.InvocationExpr{Kind: exprent.InvokeStatic, Owner: "T", Name: "use", Args: []exprent.Expr{v}, T: exprent.Void}
}

func TestVersionsDiamondJoin(t *testing.T) {
	d1, d2, u := ref(1), ref(1), ref(1)
	f := &testFlow{
		exprs: [][]exprent.Expr{
			{store(d1, lit(1))},
			{store(d2, lit(2))},
			{},
			{use(u)},
		},
		succs: [][]int{{1, 2}, {3}, {3}, {}},
	}
	p := NewProcessor(4)
	require.True(t, AssignVersions(f, p, nil))

	// both definitions reach the use, so all three share one version
	assert.Equal(t, d1.Version, d2.Version)
	assert.Equal(t, d1.Version, u.Version)
	assert.Equal(t, 1, u.Version)
}

func TestVersionsDiamondSplit(t *testing.T) {
	dead, dl, ul, dr, ur := ref(1), ref(1), ref(1), ref(1), ref(1)
	f := &testFlow{
		exprs: [][]exprent.Expr{
			{store(dead, lit(0))},
			{store(dl, lit(1)), use(ul)},
			{store(dr, lit(2)), use(ur)},
			{},
		},
		succs: [][]int{{1, 2}, {3}, {3}, {}},
	}
	p := NewProcessor(4)
	AssignVersions(f, p, nil)

	assert.Equal(t, dl.Version, ul.Version)
	assert.Equal(t, dr.Version, ur.Version)
	assert.NotEqual(t, dl.Version, dr.Version)
	assert.NotEqual(t, dead.Version, dl.Version)
	assert.NotEqual(t, dead.Version, dr.Version)
	assert.ElementsMatch(t, []int{1, 2, 3}, []int{dead.Version, dl.Version, dr.Version})
}

func TestVersionsLoop(t *testing.T) {
	init, cond, inc, after := ref(1), ref(1), ref(1), ref(1)
	f := &testFlow{
		exprs: [][]exprent.Expr{
			{store(init, lit(0))},
			{&exprent.IfExpr{Cond: exprent.NewFunc(exprent.OpLt, exprent.Boolean, cond, lit(10))}},
			{&exprent.AssignExpr{Left: inc, Right: lit(1), Op: exprent.OpAdd}},
			{use(after)},
		},
		succs: [][]int{{1}, {2, 3}, {1}, {}},
	}
	p := NewProcessor(2)
	AssignVersions(f, p, nil)

	for _, v := range []*exprent.VarExpr{cond, inc, after} {
		assert.Equal(t, init.Version, v.Version)
	}
}

func TestVersionsLoopRedefinitionSplits(t *testing.T) {
	// x = 0; loop { use(x) } ; x = 5; use(x)
	first, inLoop, second, last := ref(1), ref(1), ref(1), ref(1)
	f := &testFlow{
		exprs: [][]exprent.Expr{
			{store(first, lit(0))},
			{use(inLoop)},
			{store(second, lit(5)), use(last)},
		},
		succs: [][]int{{1}, {1, 2}, {}},
	}
	p := NewProcessor(2)
	AssignVersions(f, p, nil)

	assert.Equal(t, first.Version, inLoop.Version)
	assert.Equal(t, second.Version, last.Version)
	assert.NotEqual(t, first.Version, second.Version)
}

func TestVersionsParameters(t *testing.T) {
	this, arg := ref(0), ref(1)
	f := &testFlow{
		exprs: [][]exprent.Expr{{use(this), use(arg)}},
		succs: [][]int{{}},
	}
	p := NewProcessor(2)
	p.SetName(VarVersion{0, 1}, "this")
	AssignVersions(f, p, []int{0, 1})

	assert.Equal(t, 1, this.Version)
	assert.Equal(t, 1, arg.Version)
	info, ok := p.Lookup(VarVersion{0, 1})
	require.True(t, ok)
	assert.True(t, info.Param)
	assert.Equal(t, "this", info.Name)
}

func TestVersionsStable(t *testing.T) {
	d, u := ref(1), ref(1)
	f := &testFlow{
		exprs: [][]exprent.Expr{{store(d, lit(1)), use(u)}},
		succs: [][]int{{}},
	}
	p := NewProcessor(2)
	assert.True(t, AssignVersions(f, p, nil))
	assert.False(t, AssignVersions(f, p, nil))
}

func TestRefreshNames(t *testing.T) {
	p := NewProcessor(4)
	p.SetName(VarVersion{1, 1}, "count")
	p.SetName(VarVersion{1, 2}, "count")
	p.SetName(VarVersion{2, 1}, "count")
	p.SetName(VarVersion{3, 1}, "size")
	p.Info(VarVersion{4, 1})

	p.RefreshNames(map[string]bool{"size": true})

	assert.Equal(t, "count", p.Name(VarVersion{1, 1}))
	assert.Equal(t, "count", p.Name(VarVersion{1, 2}))
	assert.Equal(t, "count2", p.Name(VarVersion{2, 1}))
	assert.Equal(t, "size2", p.Name(VarVersion{3, 1}))
	assert.Equal(t, "var4", p.Name(VarVersion{4, 1}))
}

func TestStackVars(t *testing.T) {
	p := NewProcessor(3)
	a, b := p.NewStackVar(), p.NewStackVar()
	assert.Equal(t, 3, a)
	assert.Equal(t, 4, b)
	assert.True(t, p.IsStack(a))
	assert.False(t, p.IsStack(2))
}

func TestParams(t *testing.T) {
	tests := []struct {
		name   string
		desc   string
		static bool
		slots  []int
	}{
		{"static no params", "()V", true, []int{}},
		{"instance no params", "()I", false, []int{0}},
		{"wide slots", "(JI)V", true, []int{0, 2}},
		{"receiver first", "(Ljava/lang/String;D)V", false, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := Params("pkg/A", tt.desc, tt.static)
			require.NotNil(t, params)
			assert.Equal(t, tt.slots, Slots(params))
		})
	}

	assert.Nil(t, Params("pkg/A", "I)V", true))
}
