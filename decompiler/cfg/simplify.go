package cfg

import (
	"github.com/dhamidi/decaf/classfile"
)

// RemoveDeadBlocks drops blocks unreachable from the entry over regular
// and exception edges, and ranges left without protected blocks.
func (g *Graph) RemoveDeadBlocks() int {
	live := make(map[*Block]bool)
	for _, b := range g.ReversePostOrder() {
		live[b] = true
	}
	removed := 0
	for _, b := range append([]*Block(nil), g.Blocks...) {
		if !live[b] {
			g.deleteBlock(b)
			removed++
		}
	}
	if removed > 0 {
		g.dropEmptyRanges()
		g.rebuildExceptionEdges()
		g.reindex()
		log.Debugf("removed %d unreachable blocks", removed)
	}
	return removed
}

func (g *Graph) dropEmptyRanges() {
	out := g.Ranges[:0]
	for _, r := range g.Ranges {
		if len(r.Protected) > 0 && r.Handler != nil && g.has(r.Handler) {
			out = append(out, r)
		}
	}
	g.Ranges = out
}

func (g *Graph) has(b *Block) bool {
	for _, x := range g.Blocks {
		if x == b {
			return true
		}
	}
	return false
}

// InlineSubroutines replaces every jsr with a private copy of the
// subroutine whose ret jumps back to the jsr's return block. The copy
// drops the store of the return address. limit bounds the number of
// blocks the graph may grow to.
func (g *Graph) InlineSubroutines(limit int) error {
	for {
		var jsr *Block
		for _, b := range g.Blocks {
			if b.Kind == KindJsr {
				jsr = b
				break
			}
		}
		if jsr == nil {
			break
		}
		if err := g.inlineOne(jsr, limit); err != nil {
			return err
		}
	}
	g.RemoveDeadBlocks()
	return nil
}

func (g *Graph) inlineOne(jsr *Block, limit int) error {
	entry := jsr.Succs[0]
	body := []*Block{entry}
	in := map[*Block]bool{entry: true}
	for i := 0; i < len(body); i++ {
		b := body[i]
		if b.Kind == KindRet {
			continue
		}
		next := append([]*Block(nil), b.Succs...)
		if b.Kind == KindJsr && b.JsrReturn != nil {
			next = append(next, b.JsrReturn)
		}
		for _, s := range next {
			if !in[s] {
				in[s] = true
				body = append(body, s)
			}
		}
	}
	if len(g.Blocks)+len(body) > limit {
		return ErrLimitExceeded
	}

	copies := make(map[*Block]*Block, len(body))
	for _, b := range body {
		c := &Block{
			Start:  b.Start,
			Kind:   b.Kind,
			Instrs: append([]classfile.Instruction(nil), b.Instrs...),
		}
		copies[b] = c
		g.Blocks = append(g.Blocks, c)
	}
	ret := jsr.JsrReturn
	for _, b := range body {
		c := copies[b]
		if b.Kind == KindRet {
			c.Kind = KindPlain
			if ret != nil {
				addEdge(c, ret)
			}
			continue
		}
		for _, s := range b.Succs {
			addEdge(c, copies[s])
		}
		for _, cs := range b.Cases {
			c.Cases = append(c.Cases, SwitchCase{Keys: cs.Keys, Default: cs.Default, Target: copies[cs.Target]})
		}
		if b.JsrReturn != nil {
			c.JsrReturn = copies[b.JsrReturn]
		}
	}
	// the copy no longer receives a return address
	head := copies[entry]
	if len(head.Instrs) > 0 {
		switch head.Instrs[0].Opcode {
		case classfile.OpAstore, classfile.OpPop:
			head.Instrs = head.Instrs[1:]
		}
	}
	for _, r := range append([]*ExceptionRange(nil), g.Ranges...) {
		for _, b := range body {
			if r.Contains(b) {
				r.Protected = append(r.Protected, copies[b])
			}
		}
	}

	removeEdge(jsr, entry)
	jsr.Kind = KindPlain
	jsr.JsrReturn = nil
	addEdge(jsr, head)
	g.rebuildExceptionEdges()
	g.reindex()
	log.Debugf("inlined subroutine at %d into %s (%d blocks)", entry.Start, jsr, len(body))
	return nil
}

// AddDummyExit connects every block that leaves the method to the
// synthetic exit, giving post-dominance a single root.
func (g *Graph) AddDummyExit() {
	for _, b := range g.Blocks {
		if b.IsExit() || (len(b.Succs) == 0 && b.Kind != KindJsr) {
			addEdge(b, g.Exit)
		}
	}
}

// isGotoOnly reports a block consisting of a single unconditional jump.
func isGotoOnly(b *Block) bool {
	return len(b.Instrs) == 1 && b.Instrs[0].Opcode == classfile.OpGoto && len(b.Succs) == 1
}

// RemoveGotos bypasses blocks that only jump elsewhere. A block is kept
// when it is the entry, a handler, jumps to itself, or bypassing it
// would give a conditional two identical successors.
func (g *Graph) RemoveGotos() int {
	removed := 0
	for changed := true; changed; {
		changed = false
		for _, b := range g.Blocks {
			if !isGotoOnly(b) || b == g.Entry || g.IsHandler(b) || b.Succs[0] == b {
				continue
			}
			target := b.Succs[0]
			ok := true
			for _, p := range b.Preds {
				if p.Kind == KindCond {
					for _, s := range p.Succs {
						if s == target {
							ok = false
						}
					}
				}
			}
			if !ok {
				continue
			}
			for _, p := range append([]*Block(nil), b.Preds...) {
				replaceSucc(p, b, target)
			}
			g.deleteBlock(b)
			removed++
			changed = true
			break
		}
	}
	if removed > 0 {
		g.rebuildExceptionEdges()
		g.reindex()
	}
	return removed
}

// MergeBlocks joins a block with its only successor when that successor
// has no other predecessor, is not a handler and is protected by the
// same ranges.
func (g *Graph) MergeBlocks() int {
	merged := 0
	for changed := true; changed; {
		changed = false
		for _, b := range g.Blocks {
			if b.Kind != KindPlain || len(b.Succs) != 1 {
				continue
			}
			s := b.Succs[0]
			if s == b || s == g.Entry || s == g.Exit || len(s.Preds) != 1 || g.IsHandler(s) || !g.sameRanges(b, s) {
				continue
			}
			b.Instrs = append(b.Instrs, s.Instrs...)
			b.Exprs = append(b.Exprs, s.Exprs...)
			b.Kind = s.Kind
			b.Cases = s.Cases
			b.JsrReturn = s.JsrReturn
			removeEdge(b, s)
			for _, t := range append([]*Block(nil), s.Succs...) {
				removeEdge(s, t)
				b.Succs = append(b.Succs, t)
				t.Preds = append(t.Preds, b)
			}
			g.deleteBlock(s)
			merged++
			changed = true
			break
		}
	}
	if merged > 0 {
		g.rebuildExceptionEdges()
		g.reindex()
	}
	return merged
}

// NormalizeExceptionRanges drops ranges whose handler protects itself,
// re-targets duplicated pop handlers, merges ranges split around the
// same handler, and, when removeEmpty is set, drops ranges whose
// protected code cannot throw.
func (g *Graph) NormalizeExceptionRanges(removeEmpty bool) {
	var out []*ExceptionRange
	for _, r := range g.Ranges {
		if r.Contains(r.Handler) {
			r.remove(r.Handler)
			if len(r.Protected) == 0 {
				continue
			}
			// what remains guards handler code that rethrows; it never
			// forms a try statement of its own
			if g.inHandlerOf(r) {
				continue
			}
		}
		if removeEmpty && cannotThrow(r.Protected) {
			continue
		}
		out = append(out, r)
	}
	g.Ranges = out
	g.restorePopRanges()
	g.mergeSplitRanges()
	g.rebuildExceptionEdges()
	g.RemoveDeadBlocks()
}

// popHandler reports a handler that discards the exception and continues
// at a single successor.
func popHandler(h *Block) bool {
	if len(h.Instrs) == 0 || h.Instrs[0].Opcode != classfile.OpPop || len(h.Succs) != 1 {
		return false
	}
	for _, in := range h.Instrs[1:] {
		if in.Opcode != classfile.OpGoto {
			return false
		}
	}
	return true
}

// restorePopRanges points ranges at one copy of a pop handler when the
// compiler emitted several identical ones for a split protected region.
func (g *Graph) restorePopRanges() {
	for i, r := range g.Ranges {
		if !popHandler(r.Handler) {
			continue
		}
		for _, o := range g.Ranges[:i] {
			if o.Handler != r.Handler && popHandler(o.Handler) && sameTypes(o.Types, r.Types) &&
				o.Handler.Succs[0] == r.Handler.Succs[0] {
				r.Handler = o.Handler
				break
			}
		}
	}
}

// inHandlerOf reports whether all of r's protected blocks are dominated
// by its handler, i.e. the range covers only the handler's own code.
func (g *Graph) inHandlerOf(r *ExceptionRange) bool {
	dom := g.Dominators()
	for _, p := range r.Protected {
		if !dom.Dominates(r.Handler, p) {
			return false
		}
	}
	return true
}

// mergeSplitRanges joins ranges that share a handler and caught types;
// compilers split a protected region around code that leaves it.
func (g *Graph) mergeSplitRanges() {
	var out []*ExceptionRange
	for _, r := range g.Ranges {
		var into *ExceptionRange
		for _, o := range out {
			if o.Handler == r.Handler && sameTypes(o.Types, r.Types) {
				into = o
				break
			}
		}
		if into == nil {
			out = append(out, r)
			continue
		}
		for _, p := range r.Protected {
			if !into.Contains(p) {
				into.Protected = append(into.Protected, p)
			}
		}
	}
	g.Ranges = out
}

func sameTypes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func cannotThrow(blocks []*Block) bool {
	for _, b := range blocks {
		for _, in := range b.Instrs {
			switch in.Opcode {
			case classfile.OpNop, classfile.OpGoto:
			default:
				return false
			}
		}
	}
	return true
}
