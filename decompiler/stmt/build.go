package stmt

import (
	"errors"
	"sort"

	"github.com/dhamidi/decaf/decompiler/cfg"
	"github.com/dhamidi/decaf/decompiler/exprent"
)

type blockSet map[*cfg.Block]bool

// frame is an enclosing statement that jumps may leave or repeat.
type frame struct {
	stmt  Stmt
	brk   *cfg.Block
	cont  *cfg.Block
	stops blockSet
}

type loopInfo struct {
	follow *cfg.Block
	region blockSet
}

type builder struct {
	g        *cfg.Graph
	dom      *cfg.DomTree
	pdom     *cfg.DomTree
	visited  blockSet
	loops    map[*cfg.Block]*loopInfo
	building blockSet
	tries    map[*cfg.ExceptionRange]bool
	frames   []*frame
}

// Build derives the statement tree from a simplified CFG whose blocks
// already carry expressions. Every reachable block becomes exactly one
// leaf; control that fits no structure becomes a goto.
func Build(g *cfg.Graph) (*Root, error) {
	if g.Entry == nil {
		return nil, errors.New("graph has no entry block")
	}
	b := &builder{
		g:        g,
		dom:      g.Dominators(),
		pdom:     g.PostDominators(),
		visited:  make(blockSet),
		loops:    make(map[*cfg.Block]*loopInfo),
		building: make(blockSet),
		tries:    make(map[*cfg.ExceptionRange]bool),
	}
	b.findLoops()

	stmts := List(b.seq(g.Entry, nil, nil, nil, true))
	for _, blk := range g.Blocks {
		if !b.visited[blk] {
			log.Debugf("block %s is not reached by structured control flow", blk)
			stmts = append(stmts, List(b.seq(blk, nil, nil, nil, true))...)
		}
	}
	return &Root{Body: Seq(stmts...)}, nil
}

// reach returns the blocks reachable from start without passing stop.
func (b *builder) reach(start, stop *cfg.Block) blockSet {
	seen := make(blockSet)
	if start == nil {
		return seen
	}
	work := []*cfg.Block{start}
	seen[start] = true
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		for _, s := range append(append([]*cfg.Block(nil), n.Succs...), n.ExcSuccs...) {
			if s != stop && !seen[s] {
				seen[s] = true
				work = append(work, s)
			}
		}
	}
	return seen
}

// dominated collects the blocks dominated by h that are not reachable
// from follow without passing h.
func (b *builder) dominated(h, follow *cfg.Block, outer blockSet) blockSet {
	var after blockSet
	if follow != nil {
		after = b.reach(follow, h)
	}
	region := make(blockSet)
	for _, n := range b.g.Blocks {
		if b.dom.Dominates(h, n) && !after[n] && (outer == nil || outer[n]) {
			region[n] = true
		}
	}
	return region
}

func (b *builder) findLoops() {
	for _, h := range b.g.Blocks {
		var latches []*cfg.Block
		for _, p := range h.Preds {
			if b.dom.Dominates(h, p) {
				latches = append(latches, p)
			}
		}
		if len(latches) == 0 {
			continue
		}
		natural := blockSet{h: true}
		work := []*cfg.Block{}
		for _, l := range latches {
			if !natural[l] {
				natural[l] = true
				work = append(work, l)
			}
		}
		for len(work) > 0 {
			n := work[len(work)-1]
			work = work[:len(work)-1]
			for _, p := range append(append([]*cfg.Block(nil), n.Preds...), n.ExcPreds...) {
				if !natural[p] && b.dom.Dominates(h, p) {
					natural[p] = true
					work = append(work, p)
				}
			}
		}
		outside := func(n *cfg.Block) []*cfg.Block {
			var out []*cfg.Block
			for _, s := range n.Succs {
				if !natural[s] && s != b.g.Exit {
					out = append(out, s)
				}
			}
			return out
		}

		var follow *cfg.Block
		if h.Kind == cfg.KindCond {
			if o := outside(h); len(o) > 0 {
				follow = o[0]
			}
		}
		for _, l := range latches {
			if follow != nil {
				break
			}
			if l.Kind == cfg.KindCond {
				if o := outside(l); len(o) > 0 {
					follow = o[0]
				}
			}
		}
		if follow == nil {
			for _, n := range b.g.Blocks {
				if !natural[n] {
					continue
				}
				for _, s := range outside(n) {
					if !s.IsExit() && b.dom.Dominates(h, s) && (follow == nil || s.Start > follow.Start) {
						follow = s
					}
				}
			}
		}
		b.loops[h] = &loopInfo{follow: follow, region: b.dominated(h, follow, nil)}
	}
}

// seq builds the statements from entry until follow, the end of the
// region, or a block reached by a jump. An owned entry is built even if
// it is a jump target, which is how loop bodies start at their header.
func (b *builder) seq(entry, follow *cfg.Block, region blockSet, parent *cfg.Block, owned bool) Stmt {
	var out []Stmt
	for cur, first := entry, true; cur != nil && cur != follow && cur != b.g.Exit; first = false {
		if !first && b.stopped(cur) {
			break
		}
		if !first || !owned {
			anchor := entry
			if first {
				anchor = parent
			}
			if j := b.jump(cur, region, anchor); j != nil {
				out = append(out, j)
				break
			}
		}
		var s Stmt
		s, cur = b.block(cur, region, follow)
		out = append(out, s)
	}
	return Seq(out...)
}

func (b *builder) stopped(cur *cfg.Block) bool {
	if len(b.frames) == 0 {
		return false
	}
	return b.frames[len(b.frames)-1].stops[cur]
}

// jump classifies a transfer to cur that cannot continue the current
// sequence.
func (b *builder) jump(cur *cfg.Block, region blockSet, anchor *cfg.Block) Stmt {
	for i := len(b.frames) - 1; i >= 0; i-- {
		f := b.frames[i]
		if f.cont == cur {
			return &Jump{Kind: Continue, Target: f.stmt, Labeled: !b.innermost(i, true)}
		}
		if f.brk == cur {
			return &Jump{Kind: Break, Target: f.stmt, Labeled: !b.innermost(i, false)}
		}
	}
	if b.visited[cur] || (region != nil && !region[cur]) || (anchor != nil && !b.dom.Dominates(anchor, cur)) {
		return &Jump{Kind: Goto, Block: cur}
	}
	return nil
}

// innermost reports whether no frame inside frames[i] could take the
// same unlabeled jump.
func (b *builder) innermost(i int, cont bool) bool {
	for _, f := range b.frames[i+1:] {
		if f.cont != nil || !cont {
			return false
		}
	}
	return true
}

func (b *builder) block(cur *cfg.Block, region blockSet, outerFollow *cfg.Block) (Stmt, *cfg.Block) {
	b.visited[cur] = true
	r := b.tryAt(cur, region)
	if li := b.loops[cur]; li != nil && !b.building[cur] && (r == nil || li.region[r.Handler]) {
		return b.loop(cur, li, region)
	}
	if r != nil {
		return b.try(cur, r, region)
	}
	switch cur.Kind {
	case cfg.KindCond:
		if ie, ok := cfg.CondOf(cur); ok {
			return b.ifStmt(cur, ie, region, outerFollow)
		}
	case cfg.KindSwitch:
		if n := len(cur.Exprs); n > 0 {
			if se, ok := cur.Exprs[n-1].(*exprent.SwitchExpr); ok {
				return b.switchStmt(cur, se, region, outerFollow)
			}
		}
	}
	leaf := &Basic{Block: cur, Exprs: cur.Exprs}
	if cur.IsExit() || len(cur.Succs) == 0 {
		return leaf, nil
	}
	return leaf, cur.Succs[0]
}

func head(cur *cfg.Block) *Basic {
	exprs := make([]exprent.Expr, len(cur.Exprs)-1)
	copy(exprs, cur.Exprs)
	return &Basic{Block: cur, Exprs: exprs}
}

func intersect(a, outer blockSet) blockSet {
	if outer == nil {
		return a
	}
	out := make(blockSet, len(a))
	for n := range a {
		if outer[n] {
			out[n] = true
		}
	}
	return out
}

func (b *builder) loop(cur *cfg.Block, li *loopInfo, region blockSet) (Stmt, *cfg.Block) {
	b.building[cur] = true
	loop := &Loop{Kind: LoopInfinite}
	b.frames = append(b.frames, &frame{stmt: loop, brk: li.follow, cont: cur})
	loop.Body = b.seq(cur, nil, intersect(li.region, region), nil, true)
	b.frames = b.frames[:len(b.frames)-1]
	return loop, li.follow
}

// tryAt returns the largest unbuilt range whose protected blocks are all
// dominated by cur.
func (b *builder) tryAt(cur *cfg.Block, region blockSet) *cfg.ExceptionRange {
	var best *cfg.ExceptionRange
	for _, r := range b.g.Ranges {
		if b.tries[r] || !r.Contains(cur) {
			continue
		}
		ok := true
		for _, p := range r.Protected {
			if !b.dom.Dominates(cur, p) {
				ok = false
				break
			}
		}
		if ok && (best == nil || len(r.Protected) > len(best.Protected)) {
			best = r
		}
	}
	return best
}

func sameProtected(a, b *cfg.ExceptionRange) bool {
	if len(a.Protected) != len(b.Protected) {
		return false
	}
	for _, p := range a.Protected {
		if !b.Contains(p) {
			return false
		}
	}
	return true
}

// tryFollow picks where control continues after a try statement: the
// common post-dominator of the protected region's exits, ignoring exits
// that are already break or continue targets.
func (b *builder) tryFollow(protected blockSet) *cfg.Block {
	targets := make(blockSet)
	for _, f := range b.frames {
		targets[f.brk] = true
		targets[f.cont] = true
	}
	var follow *cfg.Block
	for _, blk := range b.g.Blocks {
		if !protected[blk] {
			continue
		}
		for _, s := range blk.Succs {
			if protected[s] || s == b.g.Exit || targets[s] {
				continue
			}
			if follow == nil {
				follow = s
				continue
			}
			if follow = b.pdom.Common(follow, s); follow == nil {
				return nil
			}
		}
	}
	if follow == b.g.Exit {
		return nil
	}
	return follow
}

func (b *builder) try(cur *cfg.Block, r *cfg.ExceptionRange, region blockSet) (Stmt, *cfg.Block) {
	var group []*cfg.ExceptionRange
	for _, o := range b.g.Ranges {
		if !b.tries[o] && sameProtected(o, r) {
			group = append(group, o)
			b.tries[o] = true
		}
	}
	sort.SliceStable(group, func(i, j int) bool { return group[i].Handler.Start < group[j].Handler.Start })

	protected := make(blockSet)
	for _, p := range r.Protected {
		if region == nil || region[p] {
			protected[p] = true
		}
	}
	follow := b.tryFollow(protected)
	t := &Try{Body: b.seq(cur, follow, protected, nil, true)}
	for _, o := range group {
		h := o.Handler
		var body Stmt
		if b.visited[h] {
			body = &Jump{Kind: Goto, Block: h}
		} else {
			body = b.seq(h, follow, b.dominated(h, follow, region), nil, true)
		}
		if o.Finally {
			t.Finally = body
			continue
		}
		t.Catches = append(t.Catches, &Catch{Types: o.Types, Var: catchVar(body, h), Body: body})
	}
	return t, follow
}

// catchVar removes the leading store of the caught exception from a
// handler and returns the variable it was stored in.
func catchVar(body Stmt, h *cfg.Block) *exprent.VarExpr {
	for _, leaf := range Basics(body) {
		if leaf.Block != h {
			continue
		}
		if len(leaf.Exprs) == 0 {
			return nil
		}
		a, ok := leaf.Exprs[0].(*exprent.AssignExpr)
		if !ok {
			return nil
		}
		if _, ok := a.Right.(*exprent.CaughtExpr); !ok {
			return nil
		}
		if v := a.Target(); v != nil {
			leaf.Exprs = leaf.Exprs[1:]
			return v
		}
		return nil
	}
	return nil
}

// followOf is the immediate post-dominator of a branching block, or the
// enclosing follow when that lies outside the region.
func (b *builder) followOf(cur *cfg.Block, region blockSet, outerFollow *cfg.Block) *cfg.Block {
	follow := b.pdom.Idom(cur)
	if follow == nil || follow == b.g.Exit || (region != nil && !region[follow]) {
		return outerFollow
	}
	return follow
}

func (b *builder) ifStmt(cur *cfg.Block, ie *exprent.IfExpr, region blockSet, outerFollow *cfg.Block) (Stmt, *cfg.Block) {
	follow := b.followOf(cur, region, outerFollow)
	fall, jump := cur.Succs[0], cur.Succs[1]
	s := &If{Head: head(cur)}
	switch {
	case fall == follow:
		s.Cond = ie.Cond
		s.Then = b.seq(jump, follow, region, cur, false)
	case jump == follow:
		s.Cond = exprent.Negate(ie.Cond)
		s.Then = b.seq(fall, follow, region, cur, false)
	default:
		s.Cond = exprent.Negate(ie.Cond)
		s.Then = b.seq(fall, follow, region, cur, false)
		s.Else = b.seq(jump, follow, region, cur, false)
	}
	return s, follow
}

func (b *builder) switchStmt(cur *cfg.Block, se *exprent.SwitchExpr, region blockSet, outerFollow *cfg.Block) (Stmt, *cfg.Block) {
	follow := b.followOf(cur, region, outerFollow)
	sw := &Switch{Head: head(cur), Value: se.Value}
	f := &frame{stmt: sw, brk: follow, stops: make(blockSet)}
	cases := append([]cfg.SwitchCase(nil), cur.Cases...)
	sort.SliceStable(cases, func(i, j int) bool { return cases[i].Target.Start < cases[j].Target.Start })
	for _, c := range cases {
		if c.Target != follow {
			f.stops[c.Target] = true
		}
	}
	b.frames = append(b.frames, f)
	for _, c := range cases {
		if c.Target == follow && c.Default {
			continue
		}
		var body Stmt
		if c.Target == follow {
			body = &Jump{Kind: Break, Target: sw}
		} else {
			body = b.seq(c.Target, nil, region, cur, false)
		}
		sw.Cases = append(sw.Cases, &Case{Keys: c.Keys, Default: c.Default, Body: body})
	}
	b.frames = b.frames[:len(b.frames)-1]
	return sw, follow
}
