// Package cfg builds and simplifies the control-flow graph of a method
// body and answers dominance queries over it.
package cfg

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/exprent"
)

var log = commonlog.GetLogger("decaf.cfg")

// ErrLimitExceeded is returned when subroutine inlining would grow the graph
// beyond its limit or finally deduplication does not settle.
var ErrLimitExceeded = errors.New("decompilation limit exceeded")

type BlockKind uint8

const (
	KindPlain BlockKind = iota
	KindCond
	KindSwitch
	KindReturn
	KindThrow
	KindJsr
	KindRet
	KindExit
)

// SwitchCase maps the keys of one switch arm to its target. The default
// arm has Default set and no keys.
type SwitchCase struct {
	Keys    []int
	Default bool
	Target  *Block
}

// Block is a basic block. For KindCond blocks Succs[0] is the fall-through
// successor and Succs[1] the branch target.
type Block struct {
	ID     int
	Start  int
	Kind   BlockKind
	Instrs []classfile.Instruction
	Exprs  []exprent.Expr

	Succs    []*Block
	Preds    []*Block
	ExcSuccs []*Block
	ExcPreds []*Block

	Cases     []SwitchCase
	JsrReturn *Block
}

func (b *Block) String() string {
	if b.Kind == KindExit {
		return "exit"
	}
	return fmt.Sprintf("B%d@%d", b.ID, b.Start)
}

// Last returns the final instruction, or nil for an empty block.
func (b *Block) Last() *classfile.Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	return &b.Instrs[len(b.Instrs)-1]
}

// IsExit reports whether control leaves the method at the end of b.
func (b *Block) IsExit() bool { return b.Kind == KindReturn || b.Kind == KindThrow }

// ExceptionRange is a set of protected blocks sharing one handler. Types
// holds the caught class names; an empty string catches everything.
type ExceptionRange struct {
	Protected []*Block
	Handler   *Block
	Types     []string
	Finally   bool
}

func (r *ExceptionRange) Contains(b *Block) bool {
	for _, p := range r.Protected {
		if p == b {
			return true
		}
	}
	return false
}

// CatchesAll reports a catch-any range, the shape finally handlers use.
func (r *ExceptionRange) CatchesAll() bool {
	return len(r.Types) == 1 && r.Types[0] == ""
}

func (r *ExceptionRange) remove(b *Block) {
	out := r.Protected[:0]
	for _, p := range r.Protected {
		if p != b {
			out = append(out, p)
		}
	}
	r.Protected = out
}

type Graph struct {
	Blocks []*Block
	Entry  *Block
	Exit   *Block
	Ranges []*ExceptionRange
}

// Build splits a decoded method body into basic blocks and connects
// them, including exception edges from every protected block to its
// handler.
func Build(seq *classfile.InstructionSequence, table []classfile.ExceptionTableEntry, cp classfile.ConstantPool) (*Graph, error) {
	if seq.Len() == 0 {
		return nil, errors.New("empty method body")
	}
	end := seq.EndOffset()

	leaders := map[int]bool{0: true}
	for i := range seq.Instrs {
		in := &seq.Instrs[i]
		for _, t := range in.Targets() {
			leaders[t] = true
		}
		if in.EndsBlock() || in.IsConditionalBranch() || in.Opcode == classfile.OpJsr {
			leaders[in.Offset+in.Length] = true
		}
	}
	for _, e := range table {
		leaders[int(e.StartPC)] = true
		leaders[int(e.EndPC)] = true
		leaders[int(e.HandlerPC)] = true
	}

	g := &Graph{Exit: &Block{Kind: KindExit, Start: -1}}
	at := make(map[int]*Block)
	var cur *Block
	for _, in := range seq.Instrs {
		if leaders[in.Offset] || cur == nil {
			cur = &Block{Start: in.Offset}
			g.Blocks = append(g.Blocks, cur)
			at[in.Offset] = cur
		}
		cur.Instrs = append(cur.Instrs, in)
	}
	for off := range leaders {
		if off != end && at[off] == nil {
			return nil, fmt.Errorf("jump or range boundary inside an instruction at offset %d", off)
		}
	}
	g.Entry = g.Blocks[0]

	target := func(off int) (*Block, error) {
		if b := at[off]; b != nil {
			return b, nil
		}
		return nil, fmt.Errorf("branch to invalid offset %d", off)
	}

	for i, b := range g.Blocks {
		var next *Block
		if i+1 < len(g.Blocks) {
			next = g.Blocks[i+1]
		}
		last := b.Last()
		switch {
		case last.IsConditionalBranch():
			t, err := target(last.Operands[0])
			if err != nil {
				return nil, err
			}
			if next == nil {
				return nil, errors.New("conditional branch falls off the end of the code")
			}
			b.Kind = KindCond
			addEdge(b, next)
			addEdge(b, t)
		case last.Opcode == classfile.OpGoto:
			t, err := target(last.Operands[0])
			if err != nil {
				return nil, err
			}
			addEdge(b, t)
		case last.Opcode == classfile.OpJsr:
			t, err := target(last.Operands[0])
			if err != nil {
				return nil, err
			}
			b.Kind = KindJsr
			b.JsrReturn = next
			addEdge(b, t)
		case last.Opcode == classfile.OpRet:
			b.Kind = KindRet
		case last.IsSwitch():
			b.Kind = KindSwitch
			if err := g.buildCases(b, last, target); err != nil {
				return nil, err
			}
		case last.IsReturn():
			b.Kind = KindReturn
		case last.Opcode == classfile.OpAthrow:
			b.Kind = KindThrow
		default:
			if next == nil {
				return nil, errors.New("code falls off the end of the method")
			}
			addEdge(b, next)
		}
	}

	for _, e := range table {
		handler, err := target(int(e.HandlerPC))
		if err != nil {
			return nil, err
		}
		typ := ""
		if e.CatchType != 0 {
			typ = cp.GetClassName(e.CatchType)
		}
		var protected []*Block
		for _, b := range g.Blocks {
			if b.Start >= int(e.StartPC) && b.Start < int(e.EndPC) {
				protected = append(protected, b)
			}
		}
		if len(protected) == 0 {
			continue
		}
		g.addRange(protected, handler, typ)
	}
	g.rebuildExceptionEdges()
	g.reindex()
	log.Debugf("built %d blocks, %d exception ranges", len(g.Blocks), len(g.Ranges))
	return g, nil
}

func (g *Graph) buildCases(b *Block, in *classfile.Instruction, target func(int) (*Block, error)) error {
	def, err := target(in.Operands[0])
	if err != nil {
		return err
	}
	byTarget := map[*Block]int{}
	b.Cases = append(b.Cases, SwitchCase{Default: true, Target: def})
	addEdge(b, def)
	for i := 1; i+1 < len(in.Operands); i += 2 {
		t, err := target(in.Operands[i+1])
		if err != nil {
			return err
		}
		if t == def {
			continue
		}
		if ci, ok := byTarget[t]; ok {
			b.Cases[ci].Keys = append(b.Cases[ci].Keys, in.Operands[i])
			continue
		}
		byTarget[t] = len(b.Cases)
		b.Cases = append(b.Cases, SwitchCase{Keys: []int{in.Operands[i]}, Target: t})
		addEdge(b, t)
	}
	return nil
}

// addRange records a protected set, folding table entries that differ
// only in the caught type into one multi-type range.
func (g *Graph) addRange(protected []*Block, handler *Block, typ string) {
	for _, r := range g.Ranges {
		if r.Handler == handler && sameBlocks(r.Protected, protected) {
			for _, t := range r.Types {
				if t == typ {
					return
				}
			}
			r.Types = append(r.Types, typ)
			return
		}
	}
	g.Ranges = append(g.Ranges, &ExceptionRange{Protected: protected, Handler: handler, Types: []string{typ}})
}

func sameBlocks(a, b []*Block) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[*Block]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	for _, x := range b {
		if !set[x] {
			return false
		}
	}
	return true
}

func addEdge(from, to *Block) {
	for _, s := range from.Succs {
		if s == to {
			return
		}
	}
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

func removeBlockFrom(list []*Block, b *Block) []*Block {
	out := list[:0]
	for _, x := range list {
		if x != b {
			out = append(out, x)
		}
	}
	return out
}

func removeEdge(from, to *Block) {
	from.Succs = removeBlockFrom(from.Succs, to)
	to.Preds = removeBlockFrom(to.Preds, from)
}

// replaceSucc redirects the edge from -> old to from -> repl, keeping the
// successor position and switch arms. The caller guarantees the result
// has no duplicate successor unless from is a switch.
func replaceSucc(from, old, repl *Block) {
	dup := false
	for _, s := range from.Succs {
		if s == repl {
			dup = true
		}
	}
	for i, s := range from.Succs {
		if s == old {
			from.Succs[i] = repl
		}
	}
	if dup {
		// only switches tolerate two arms reaching one block
		seen := map[*Block]bool{}
		out := from.Succs[:0]
		for _, s := range from.Succs {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
		from.Succs = out
	} else {
		repl.Preds = append(repl.Preds, from)
	}
	old.Preds = removeBlockFrom(old.Preds, from)
	for i := range from.Cases {
		if from.Cases[i].Target == old {
			from.Cases[i].Target = repl
		}
	}
	if from.JsrReturn == old {
		from.JsrReturn = repl
	}
}

// rebuildExceptionEdges recomputes every exception edge from the ranges.
func (g *Graph) rebuildExceptionEdges() {
	for _, b := range g.Blocks {
		b.ExcSuccs, b.ExcPreds = nil, nil
	}
	for _, r := range g.Ranges {
		for _, p := range r.Protected {
			dup := false
			for _, s := range p.ExcSuccs {
				if s == r.Handler {
					dup = true
				}
			}
			if !dup {
				p.ExcSuccs = append(p.ExcSuccs, r.Handler)
				r.Handler.ExcPreds = append(r.Handler.ExcPreds, p)
			}
		}
	}
}

// deleteBlock unlinks b from the graph and every range.
func (g *Graph) deleteBlock(b *Block) {
	for _, s := range b.Succs {
		s.Preds = removeBlockFrom(s.Preds, b)
	}
	for _, p := range b.Preds {
		p.Succs = removeBlockFrom(p.Succs, b)
	}
	for _, s := range b.ExcSuccs {
		s.ExcPreds = removeBlockFrom(s.ExcPreds, b)
	}
	for _, p := range b.ExcPreds {
		p.ExcSuccs = removeBlockFrom(p.ExcSuccs, b)
	}
	b.Succs, b.Preds, b.ExcSuccs, b.ExcPreds = nil, nil, nil, nil
	for _, r := range g.Ranges {
		r.remove(b)
	}
	g.Blocks = removeBlockFrom(g.Blocks, b)
}

// reindex sorts blocks by offset and numbers them densely; the exit gets
// the number after the last block.
func (g *Graph) reindex() {
	sort.SliceStable(g.Blocks, func(i, j int) bool { return g.Blocks[i].Start < g.Blocks[j].Start })
	for i, b := range g.Blocks {
		b.ID = i
	}
	g.Exit.ID = len(g.Blocks)
	for _, r := range g.Ranges {
		sort.SliceStable(r.Protected, func(i, j int) bool { return r.Protected[i].Start < r.Protected[j].Start })
	}
}

// RangesOf returns the ranges protecting b.
func (g *Graph) RangesOf(b *Block) []*ExceptionRange {
	var out []*ExceptionRange
	for _, r := range g.Ranges {
		if r.Contains(b) {
			out = append(out, r)
		}
	}
	return out
}

func (g *Graph) sameRanges(a, b *Block) bool {
	for _, r := range g.Ranges {
		if r.Contains(a) != r.Contains(b) {
			return false
		}
	}
	return true
}

// IsHandler reports whether b starts an exception handler.
func (g *Graph) IsHandler(b *Block) bool {
	for _, r := range g.Ranges {
		if r.Handler == b {
			return true
		}
	}
	return false
}

// ReversePostOrder lists reachable blocks in reverse post-order over
// regular and exception edges.
func (g *Graph) ReversePostOrder() []*Block {
	seen := make(map[*Block]bool)
	var post []*Block
	var visit func(b *Block)
	visit = func(b *Block) {
		seen[b] = true
		for _, s := range b.Succs {
			if !seen[s] && s != g.Exit {
				visit(s)
			}
		}
		for _, s := range b.ExcSuccs {
			if !seen[s] {
				visit(s)
			}
		}
		post = append(post, b)
	}
	visit(g.Entry)
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}
