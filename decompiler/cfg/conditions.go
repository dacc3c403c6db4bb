package cfg

import (
	"github.com/dhamidi/decaf/decompiler/exprent"
)

// CondOf returns the condition ending a two-way block.
func CondOf(b *Block) (*exprent.IfExpr, bool) {
	if b.Kind != KindCond || len(b.Exprs) == 0 || len(b.Succs) != 2 {
		return nil, false
	}
	ie, ok := b.Exprs[len(b.Exprs)-1].(*exprent.IfExpr)
	return ie, ok
}

// FoldConditions merges chains of conditional blocks into single
// conditions joined with && and ||. A block is absorbed into its
// predecessor only when it holds nothing but the condition and has no
// other way in.
func (g *Graph) FoldConditions() int {
	folded := 0
	for changed := true; changed; {
		changed = false
		for _, a := range g.Blocks {
			if g.foldInto(a) {
				folded++
				changed = true
				break
			}
		}
	}
	if folded > 0 {
		g.rebuildExceptionEdges()
		g.reindex()
		log.Debugf("folded %d conditions", folded)
	}
	return folded
}

func (g *Graph) foldInto(a *Block) bool {
	ia, ok := CondOf(a)
	if !ok {
		return false
	}
	fa, ta := a.Succs[0], a.Succs[1]
	for _, b := range []*Block{fa, ta} {
		ib, ok := CondOf(b)
		if !ok || b == a || len(b.Exprs) != 1 || len(b.Preds) != 1 || g.IsHandler(b) || !g.sameRanges(a, b) {
			continue
		}
		fb, tb := b.Succs[0], b.Succs[1]
		var cond exprent.Expr
		var fall, jump *Block
		switch {
		case b == fa && tb == ta:
			cond = exprent.NewFunc(exprent.OpCondOr, exprent.Boolean, ia.Cond, ib.Cond)
			fall, jump = fb, ta
		case b == fa && fb == ta:
			cond = exprent.NewFunc(exprent.OpCondAnd, exprent.Boolean, exprent.Negate(ia.Cond), ib.Cond)
			fall, jump = ta, tb
		case b == ta && fb == fa:
			cond = exprent.NewFunc(exprent.OpCondAnd, exprent.Boolean, ia.Cond, ib.Cond)
			fall, jump = fa, tb
		case b == ta && tb == fa:
			cond = exprent.NewFunc(exprent.OpCondOr, exprent.Boolean, exprent.Negate(ia.Cond), ib.Cond)
			fall, jump = fb, fa
		default:
			continue
		}
		if fall == jump || fall == b || jump == b {
			continue
		}
		ia.Cond = cond
		removeEdge(a, fa)
		removeEdge(a, ta)
		g.deleteBlock(b)
		a.Succs = []*Block{fall, jump}
		fall.Preds = append(fall.Preds, a)
		jump.Preds = append(jump.Preds, a)
		return true
	}
	return false
}
