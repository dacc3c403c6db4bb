package stmt

// NormalizeLabels recomputes label flags: a break or continue is labeled
// when its target is not the innermost statement the unlabeled form
// would leave or repeat, and a statement is labeled when such a jump
// targets it. It reports whether any flag changed.
func NormalizeLabels(root Stmt) bool {
	changed := false
	targeted := make(map[Stmt]bool)
	var visit func(s Stmt, loops, breakables []Stmt)
	visit = func(s Stmt, loops, breakables []Stmt) {
		switch x := s.(type) {
		case *Loop:
			loops = append(loops, x)
			breakables = append(breakables, x)
		case *Switch:
			breakables = append(breakables, x)
		case *Jump:
			if x.Kind == Goto {
				return
			}
			inner := breakables
			if x.Kind == Continue {
				inner = loops
			}
			labeled := len(inner) == 0 || inner[len(inner)-1] != x.Target
			if labeled != x.Labeled {
				x.Labeled = labeled
				changed = true
			}
			if labeled {
				targeted[x.Target] = true
			}
			return
		}
		for _, c := range s.Children() {
			visit(c, loops, breakables)
		}
	}
	visit(root, nil, nil)
	Walk(root, func(x Stmt) bool {
		if IsLabeled(x) != targeted[x] {
			SetLabeled(x, targeted[x])
			changed = true
		}
		return true
	})
	return changed
}
