// Package nested links nested, local, anonymous and lambda classes to the
// code that creates them: it infers which constructor and lambda
// parameters carry captured values, rewrites the nested bodies to use
// the enclosing names, places local class declarations, and inlines
// synthetic accessors.
package nested

import (
	"context"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/decaf/decompiler/class"
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/lambda"
	"github.com/dhamidi/decaf/decompiler/stmt"
)

var log = commonlog.GetLogger("decaf.nested")

// Link runs every linking stage over the tree of c. Method bodies must
// be reconstructed and lambda nodes resolved before it is called.
func Link(ctx context.Context, c *class.Context) error {
	for _, root := range c.Tree.Roots {
		var order []*class.Node
		c.Tree.BFS(root, func(n *class.Node) { order = append(order, n) })

		for _, n := range order {
			rewriteSites(c, n)
		}
		for _, n := range order {
			if err := ctx.Err(); err != nil {
				return err
			}
			InferMasks(c, n)
			Rewrite(c, n)
		}
		for _, n := range order {
			stripSites(c, n)
			if n.Kind == class.KindLambda {
				ThreadLambda(c, n)
			}
		}
		for _, n := range order {
			if n.Kind == class.KindLocal {
				DeclareLocal(c, n)
			}
		}
		if c.Options.RemoveBridges {
			if err := ctx.Err(); err != nil {
				return err
			}
			InlineAccessors(c, root)
		}
	}
	return nil
}

// bodies calls fn for every reconstructed method of n.
func bodies(n *class.Node, fn func(*class.MethodWrapper)) {
	if n.Wrapper == nil {
		return
	}
	for _, mw := range n.Wrapper.Methods {
		if mw.HasBody() {
			fn(mw)
		}
	}
}

// rewriteSites turns lambda call sites into lambda creations and tags
// creations of anonymous and local classes with their node.
func rewriteSites(c *class.Context, n *class.Node) {
	bodies(n, func(mw *class.MethodWrapper) {
		changed := false
		stmt.ForEachExpr(mw.Root, func(slot *exprent.Expr) {
			if exprent.Rewrite(slot, func(e exprent.Expr) (exprent.Expr, bool) {
				return siteRewrite(c, mw, e)
			}) {
				changed = true
			}
		})
		if changed {
			mw.Changed()
		}
	})
}

func siteRewrite(c *class.Context, mw *class.MethodWrapper, e exprent.Expr) (exprent.Expr, bool) {
	switch x := e.(type) {
	case *exprent.InvocationExpr:
		if x.Kind != exprent.InvokeDynamic {
			return e, false
		}
		node, ok := c.Tree.Lookup(lambda.Name(mw.Class, x.CPIndex, x.Bootstrap))
		if !ok || node.Kind != class.KindLambda {
			return e, false
		}
		return &exprent.NewExpr{
			Class:  node.Name,
			Args:   x.Args,
			T:      x.T,
			Node:   int(node.ID),
			Lambda: true,
		}, true
	case *exprent.NewExpr:
		if x.Lambda || x.T.Dims > 0 || x.Node != exprent.NoNode {
			return e, false
		}
		node, ok := c.Tree.Lookup(x.Class)
		if !ok || (node.Kind != class.KindAnonymous && node.Kind != class.KindLocal) {
			return e, false
		}
		x.Node = int(node.ID)
		x.Anonymous = node.Kind == class.KindAnonymous
		return e, false
	}
	return e, false
}

// stripSites removes captured arguments from the creations in n once
// every mask of the tree is known.
func stripSites(c *class.Context, n *class.Node) {
	bodies(n, func(mw *class.MethodWrapper) {
		stmt.ForEachExpr(mw.Root, func(slot *exprent.Expr) {
			exprent.Walk(*slot, func(x exprent.Expr) bool {
				if ne, ok := x.(*exprent.NewExpr); ok && !ne.Lambda && ne.Node != exprent.NoNode {
					stripCapturedArgs(c, ne)
				}
				return true
			})
		})
	})
}
