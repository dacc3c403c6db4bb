package cfg

// DomTree is a dominator or post-dominator tree over a graph's blocks
// and its exit.
type DomTree struct {
	nodes []*Block
	idom  []int
	order []int // post-order number, -1 when unreachable from the root
	root  int
}

func (g *Graph) nodes() []*Block {
	nodes := make([]*Block, len(g.Blocks)+1)
	copy(nodes, g.Blocks)
	nodes[len(g.Blocks)] = g.Exit
	for i, b := range nodes {
		b.ID = i
	}
	return nodes
}

// Dominators computes the dominator tree rooted at the entry, following
// regular and exception edges.
func (g *Graph) Dominators() *DomTree {
	nodes := g.nodes()
	succs := func(b *Block) []*Block {
		return append(append([]*Block(nil), b.Succs...), b.ExcSuccs...)
	}
	preds := func(b *Block) []*Block {
		return append(append([]*Block(nil), b.Preds...), b.ExcPreds...)
	}
	return computeDoms(nodes, g.Entry.ID, succs, preds)
}

// PostDominators computes the post-dominator tree rooted at the exit over
// regular edges. Blocks that cannot reach the exit have no
// post-dominator.
func (g *Graph) PostDominators() *DomTree {
	nodes := g.nodes()
	succs := func(b *Block) []*Block { return b.Preds }
	preds := func(b *Block) []*Block { return b.Succs }
	return computeDoms(nodes, g.Exit.ID, succs, preds)
}

// computeDoms is the iterative algorithm of Cooper, Harvey and Kennedy.
func computeDoms(nodes []*Block, root int, succs, preds func(*Block) []*Block) *DomTree {
	n := len(nodes)
	t := &DomTree{nodes: nodes, idom: make([]int, n), order: make([]int, n), root: root}
	for i := range t.order {
		t.order[i] = -1
		t.idom[i] = -1
	}
	var post []int
	seen := make([]bool, n)
	var visit func(int)
	visit = func(i int) {
		seen[i] = true
		for _, s := range succs(nodes[i]) {
			if !seen[s.ID] {
				visit(s.ID)
			}
		}
		t.order[i] = len(post)
		post = append(post, i)
	}
	visit(root)

	intersect := func(a, b int) int {
		for a != b {
			for t.order[a] < t.order[b] {
				a = t.idom[a]
			}
			for t.order[b] < t.order[a] {
				b = t.idom[b]
			}
		}
		return a
	}

	t.idom[root] = root
	for changed := true; changed; {
		changed = false
		for k := len(post) - 1; k >= 0; k-- {
			i := post[k]
			if i == root {
				continue
			}
			nd := -1
			for _, p := range preds(nodes[i]) {
				if t.idom[p.ID] < 0 {
					continue
				}
				if nd < 0 {
					nd = p.ID
				} else {
					nd = intersect(p.ID, nd)
				}
			}
			if nd >= 0 && t.idom[i] != nd {
				t.idom[i] = nd
				changed = true
			}
		}
	}
	return t
}

// Idom returns the immediate dominator of b, or nil for the root and
// unreachable blocks.
func (t *DomTree) Idom(b *Block) *Block {
	if b.ID >= len(t.idom) || b.ID == t.root {
		return nil
	}
	d := t.idom[b.ID]
	if d < 0 {
		return nil
	}
	return t.nodes[d]
}

// Reachable reports whether b is part of the tree.
func (t *DomTree) Reachable(b *Block) bool {
	return b.ID < len(t.idom) && t.idom[b.ID] >= 0
}

// Dominates reports whether a dominates b; every block dominates itself.
func (t *DomTree) Dominates(a, b *Block) bool {
	if !t.Reachable(a) || !t.Reachable(b) {
		return false
	}
	for x := b.ID; ; x = t.idom[x] {
		if x == a.ID {
			return true
		}
		if x == t.root {
			return false
		}
	}
}

// Common returns the nearest block dominating both a and b.
func (t *DomTree) Common(a, b *Block) *Block {
	if !t.Reachable(a) || !t.Reachable(b) {
		return nil
	}
	anc := make(map[int]bool)
	for x := a.ID; ; x = t.idom[x] {
		anc[x] = true
		if x == t.root {
			break
		}
	}
	for x := b.ID; ; x = t.idom[x] {
		if anc[x] {
			return t.nodes[x]
		}
		if x == t.root {
			return t.nodes[x]
		}
	}
}
