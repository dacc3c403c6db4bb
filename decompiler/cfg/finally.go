package cfg

import (
	"github.com/dhamidi/decaf/decompiler/exprent"
)

// finallyBody matches a catch-all handler of the shape
//
//	t = <caught>; F...; throw t
//
// and returns F.
func finallyBody(h *Block) ([]exprent.Expr, bool) {
	if h.Kind != KindThrow || len(h.Exprs) < 2 {
		return nil, false
	}
	first, ok := h.Exprs[0].(*exprent.AssignExpr)
	if !ok {
		return nil, false
	}
	if _, ok := first.Right.(*exprent.CaughtExpr); !ok {
		return nil, false
	}
	t := first.Target()
	last, ok := h.Exprs[len(h.Exprs)-1].(*exprent.ExitExpr)
	if t == nil || !ok || last.Kind != exprent.ExitThrow {
		return nil, false
	}
	if v, ok := last.Value.(*exprent.VarExpr); !ok || v.Index != t.Index {
		return nil, false
	}
	return h.Exprs[1 : len(h.Exprs)-1], true
}

func hasPrefix(list, prefix []exprent.Expr) bool {
	return len(list) >= len(prefix) && exprent.EqualLists(list[:len(prefix)], prefix)
}

// DeduplicateFinally recognizes catch-all handlers that hold a finally
// body, removes the copies of that body the compiler placed on every
// normal exit of the protected region, and marks the range as a finally.
// It returns the number of rewrites made. A range already marked is
// left alone, so running it again changes nothing. maxPasses bounds the
// number of sweeps before ErrLimitExceeded.
func (g *Graph) DeduplicateFinally(maxPasses int) (int, error) {
	total := 0
	for pass := 0; ; pass++ {
		if pass >= maxPasses {
			return total, ErrLimitExceeded
		}
		n := 0
		for _, r := range g.Ranges {
			if r.Finally || !r.CatchesAll() {
				continue
			}
			body, ok := finallyBody(r.Handler)
			if !ok {
				continue
			}
			n += g.stripCopies(r, body)
			r.Finally = true
			r.Handler.Exprs = append([]exprent.Expr(nil), body...)
			r.Handler.Kind = KindPlain
			n++
		}
		if n == 0 {
			return total, nil
		}
		total += n
	}
}

// stripCopies removes body from each place control leaves the protected
// blocks of r: the start of an exit block entered only from r, the tail
// of a protected block falling out of r, or just before a return.
func (g *Graph) stripCopies(r *ExceptionRange, body []exprent.Expr) int {
	if len(body) == 0 {
		return 0
	}
	removed := 0
	done := make(map[*Block]bool)
	for _, p := range r.Protected {
		if p.Kind == KindReturn && len(p.Exprs) > len(body) {
			at := len(p.Exprs) - 1 - len(body)
			if exprent.EqualLists(p.Exprs[at:len(p.Exprs)-1], body) {
				p.Exprs = append(p.Exprs[:at:at], p.Exprs[len(p.Exprs)-1])
				removed++
			}
			continue
		}
		for _, x := range p.Succs {
			if x == g.Exit || r.Contains(x) || done[x] {
				continue
			}
			switch {
			case g.onlyFrom(x, r) && !g.IsHandler(x) && hasPrefix(x.Exprs, body):
				x.Exprs = x.Exprs[len(body):]
				done[x] = true
				removed++
			case p.Kind == KindPlain && len(p.Succs) == 1 && len(p.Exprs) >= len(body) &&
				exprent.EqualLists(p.Exprs[len(p.Exprs)-len(body):], body):
				p.Exprs = p.Exprs[:len(p.Exprs)-len(body)]
				removed++
			}
		}
	}
	return removed
}

func (g *Graph) onlyFrom(x *Block, r *ExceptionRange) bool {
	for _, p := range x.Preds {
		if !r.Contains(p) {
			return false
		}
	}
	return true
}
