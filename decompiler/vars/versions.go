package vars

import (
	"sort"

	"github.com/dhamidi/decaf/decompiler/exprent"
)

// Flow is a control-flow graph whose nodes carry expression lists. The
// direct graph implements it; tests build small ones by hand.
type Flow interface {
	Len() int
	Entry() int
	Exprs(n int) []exprent.Expr
	Succs(n int) []int
}

// event is one reference in evaluation order. A compound assignment or
// increment both uses and defines its variable in a single event.
type event struct {
	v   *exprent.VarExpr
	def int // def id, or -1 for a pure use
	use bool
}

type def struct {
	index int
	v     *exprent.VarExpr // nil for parameters defined on entry
}

// reaching maps a slot to the sorted ids of the definitions reaching a
// program point.
type reaching map[int][]int

func (r reaching) clone() reaching {
	c := make(reaching, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

func (r reaching) merge(o reaching) bool {
	changed := false
	for k, ids := range o {
		merged := union(r[k], ids)
		if len(merged) != len(r[k]) {
			r[k] = merged
			changed = true
		}
	}
	return changed
}

func union(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j == len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i == len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

type versioner struct {
	defs   []def
	events [][]event
	parent []int
}

func (vs *versioner) newDef(index int, v *exprent.VarExpr) int {
	vs.defs = append(vs.defs, def{index: index, v: v})
	vs.parent = append(vs.parent, len(vs.parent))
	return len(vs.defs) - 1
}

func (vs *versioner) find(x int) int {
	for vs.parent[x] != x {
		vs.parent[x] = vs.parent[vs.parent[x]]
		x = vs.parent[x]
	}
	return x
}

func (vs *versioner) union(a, b int) {
	ra, rb := vs.find(a), vs.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		vs.parent[rb] = ra
	} else {
		vs.parent[ra] = rb
	}
}

// collect records the variable events of one expression in evaluation
// order.
func (vs *versioner) collect(e exprent.Expr, out *[]event) {
	switch x := e.(type) {
	case nil:
		return
	case *exprent.AssignExpr:
		if target, ok := x.Left.(*exprent.VarExpr); ok {
			vs.collect(x.Right, out)
			*out = append(*out, event{v: target, def: vs.newDef(target.Index, target), use: x.Op != exprent.OpNone})
			return
		}
	case *exprent.FuncExpr:
		switch x.Op {
		case exprent.OpPreInc, exprent.OpPreDec, exprent.OpPostInc, exprent.OpPostDec:
			if target, ok := x.Operands[0].(*exprent.VarExpr); ok {
				*out = append(*out, event{v: target, def: vs.newDef(target.Index, target), use: true})
				return
			}
		}
	case *exprent.VarExpr:
		*out = append(*out, event{v: x, def: -1, use: true})
		return
	}
	for _, s := range e.Slots() {
		vs.collect(*s, out)
	}
}

// AssignVersions numbers every variable reference so that two references
// share a version exactly when they are linked by def-use chains: a use
// joins every definition that reaches it. params are the slots defined
// on entry. It reports whether any reference changed version.
func AssignVersions(f Flow, p *Processor, params []int) bool {
	n := f.Len()
	vs := &versioner{events: make([][]event, n)}

	entryIn := make(reaching)
	for _, slot := range params {
		entryIn[slot] = []int{vs.newDef(slot, nil)}
	}
	for node := 0; node < n; node++ {
		for _, e := range f.Exprs(node) {
			vs.collect(e, &vs.events[node])
		}
	}

	transfer := func(node int, in reaching, onUse func(event, []int)) reaching {
		cur := in.clone()
		for _, ev := range vs.events[node] {
			if ev.use && onUse != nil {
				onUse(ev, cur[ev.v.Index])
			}
			if ev.def >= 0 {
				cur[ev.v.Index] = []int{ev.def}
			}
		}
		return cur
	}

	// forward reaching definitions
	in := make([]reaching, n)
	for i := range in {
		in[i] = make(reaching)
	}
	if n > 0 {
		in[f.Entry()].merge(entryIn)
	}
	work := []int{}
	queued := make([]bool, n)
	for i := 0; i < n; i++ {
		work = append(work, i)
		queued[i] = true
	}
	for len(work) > 0 {
		node := work[0]
		work = work[1:]
		queued[node] = false
		out := transfer(node, in[node], nil)
		for _, s := range f.Succs(node) {
			if in[s].merge(out) && !queued[s] {
				work = append(work, s)
				queued[s] = true
			}
		}
	}

	// join definitions that share a use
	useRoot := make(map[*exprent.VarExpr]int)
	for node := 0; node < n; node++ {
		transfer(node, in[node], func(ev event, ids []int) {
			if len(ids) == 0 {
				// read before any definition, e.g. a slot the decoder
				// could not see being written
				ids = []int{vs.newDef(ev.v.Index, ev.v)}
			}
			for _, id := range ids[1:] {
				vs.union(ids[0], id)
			}
			if ev.def >= 0 {
				vs.union(ids[0], ev.def)
				return
			}
			useRoot[ev.v] = ids[0]
		})
	}

	// number classes per slot in order of their earliest definition
	version := make(map[int]int)
	next := make(map[int]int)
	roots := make([]int, 0, len(vs.defs))
	for id := range vs.defs {
		if vs.find(id) == id {
			roots = append(roots, id)
		}
	}
	sort.Ints(roots)
	for _, r := range roots {
		idx := vs.defs[r].index
		next[idx]++
		version[r] = next[idx]
	}

	changed := false
	set := func(v *exprent.VarExpr, id int) {
		ver := version[vs.find(id)]
		if v.Version == ver {
			return
		}
		p.Rekey(VarVersion{v.Index, v.Version}, VarVersion{v.Index, ver})
		v.Version = ver
		changed = true
	}
	for id, d := range vs.defs {
		if d.v != nil {
			set(d.v, id)
		}
	}
	for v, id := range useRoot {
		set(v, id)
	}

	for id, d := range vs.defs {
		key := VarVersion{d.index, version[vs.find(id)]}
		info := p.Info(key)
		if d.v == nil {
			info.Param = true
		} else if info.Type.IsUnknown() {
			info.Type = d.v.T
		}
	}
	if changed {
		log.Debugf("assigned %d variable versions", len(roots))
	}
	return changed
}
