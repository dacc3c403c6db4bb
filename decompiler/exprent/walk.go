package exprent

// Walk visits e and its descendants in pre-order. Returning false from fn
// skips the children of the current node.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, s := range e.Slots() {
		Walk(*s, fn)
	}
}

// Rewrite replaces nodes bottom-up. fn returns the replacement and
// whether it differs from its input; Rewrite reports whether anything
// changed.
func Rewrite(slot *Expr, fn func(Expr) (Expr, bool)) bool {
	if *slot == nil {
		return false
	}
	changed := false
	for _, s := range (*slot).Slots() {
		if Rewrite(s, fn) {
			changed = true
		}
	}
	if repl, ok := fn(*slot); ok {
		*slot = repl
		changed = true
	}
	return changed
}

// RewriteList applies Rewrite to every element of a list.
func RewriteList(list []Expr, fn func(Expr) (Expr, bool)) bool {
	changed := false
	for i := range list {
		if Rewrite(&list[i], fn) {
			changed = true
		}
	}
	return changed
}

// Equal compares two trees structurally.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String() && a.Type() == b.Type()
}

func EqualLists(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// HasSideEffects reports whether evaluating e may change program state
// or observe a change made by another statement.
func HasSideEffects(e Expr) bool {
	found := false
	Walk(e, func(x Expr) bool {
		switch f := x.(type) {
		case *InvocationExpr, *AssignExpr, *MonitorExpr, *ExitExpr:
			found = true
		case *NewExpr:
			if f.T.Dims == 0 {
				found = true
			}
		case *FuncExpr:
			switch f.Op {
			case OpPreInc, OpPreDec, OpPostInc, OpPostDec:
				found = true
			}
		}
		return !found
	})
	return found
}

// IsTrivial reports whether e can be duplicated without changing
// evaluation order: constants, variables and qualified this.
func IsTrivial(e Expr) bool {
	switch e.(type) {
	case *ConstExpr, *VarExpr, *OuterThisExpr, *CaughtExpr:
		return true
	}
	return false
}

// Vars lists every variable reference in e, including assignment targets.
func Vars(e Expr) []*VarExpr {
	var out []*VarExpr
	Walk(e, func(x Expr) bool {
		if v, ok := x.(*VarExpr); ok {
			out = append(out, v)
		}
		return true
	})
	return out
}

// ReadsVar reports whether e reads slot index, ignoring plain assignment
// targets.
func ReadsVar(e Expr, index int) bool {
	found := false
	var visit func(Expr)
	visit = func(x Expr) {
		if x == nil || found {
			return
		}
		switch n := x.(type) {
		case *VarExpr:
			found = n.Index == index
			return
		case *AssignExpr:
			if _, ok := n.Left.(*VarExpr); ok && n.Op == OpNone {
				visit(n.Right)
				return
			}
		}
		for _, s := range x.Slots() {
			visit(*s)
		}
	}
	visit(e)
	return found
}

// CountVar counts references to the given (index, version) pair.
func CountVar(e Expr, v *VarExpr) int {
	n := 0
	Walk(e, func(x Expr) bool {
		if w, ok := x.(*VarExpr); ok && w.Same(v) {
			n++
		}
		return true
	})
	return n
}

// Clone copies an expression tree. Leaves are copied too, so the result
// shares no mutable node with the input.
func Clone(e Expr) Expr {
	switch x := e.(type) {
	case nil:
		return nil
	case *ConstExpr:
		c := *x
		return &c
	case *VarExpr:
		c := *x
		return &c
	case *FieldExpr:
		c := *x
		c.Instance = Clone(x.Instance)
		return &c
	case *InvocationExpr:
		c := *x
		c.Instance = Clone(x.Instance)
		c.Args = cloneList(x.Args)
		return &c
	case *NewExpr:
		c := *x
		c.Args = cloneList(x.Args)
		c.Dims = cloneList(x.Dims)
		c.Init = cloneList(x.Init)
		return &c
	case *AssignExpr:
		return &AssignExpr{Left: Clone(x.Left), Right: Clone(x.Right), Op: x.Op}
	case *ArrayExpr:
		return &ArrayExpr{Array: Clone(x.Array), Index: Clone(x.Index), T: x.T}
	case *FuncExpr:
		return &FuncExpr{Op: x.Op, Operands: cloneList(x.Operands), T: x.T}
	case *IfExpr:
		return &IfExpr{Cond: Clone(x.Cond)}
	case *SwitchExpr:
		return &SwitchExpr{Value: Clone(x.Value)}
	case *ExitExpr:
		return &ExitExpr{Kind: x.Kind, Value: Clone(x.Value), T: x.T}
	case *MonitorExpr:
		return &MonitorExpr{Enter: x.Enter, Value: Clone(x.Value)}
	case *CaughtExpr:
		c := *x
		return &c
	case *ClassDefExpr:
		c := *x
		return &c
	case *OuterThisExpr:
		c := *x
		return &c
	case *CommentExpr:
		c := *x
		return &c
	}
	return e
}

func cloneList(list []Expr) []Expr {
	if list == nil {
		return nil
	}
	out := make([]Expr, len(list))
	for i, e := range list {
		out[i] = Clone(e)
	}
	return out
}
