package stmt

import (
	"fmt"
	"strings"

	"github.com/dhamidi/decaf/decompiler/exprent"
)

// Outline renders s as indented pseudo-source, one expression per line.
// It is a debugging view of the tree, not a source printer.
func Outline(s Stmt) string {
	o := &outliner{labels: make(map[Stmt]int)}
	Walk(s, func(x Stmt) bool {
		if IsLabeled(x) {
			o.labels[x] = len(o.labels) + 1
		}
		return true
	})
	o.stmt(s, 0)
	return o.sb.String()
}

type outliner struct {
	sb     strings.Builder
	labels map[Stmt]int
}

func (o *outliner) line(depth int, format string, args ...any) {
	o.sb.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&o.sb, format, args...)
	o.sb.WriteByte('\n')
}

func (o *outliner) exprs(list []exprent.Expr, depth int) {
	for _, e := range list {
		o.line(depth, "%s", e)
	}
}

func (o *outliner) label(s Stmt, depth int) {
	if n, ok := o.labels[s]; ok {
		o.line(depth, "label%d:", n)
	}
}

func (o *outliner) block(s Stmt, depth int) {
	for _, c := range List(s) {
		o.stmt(c, depth)
	}
}

func typeNames(types []string) string {
	names := make([]string, len(types))
	for i, t := range types {
		if t == "" {
			t = "java/lang/Throwable"
		}
		names[i] = exprent.ObjectType(t).String()
	}
	return strings.Join(names, " | ")
}

func (o *outliner) stmt(s Stmt, depth int) {
	o.label(s, depth)
	switch x := s.(type) {
	case *Root:
		o.block(x.Body, depth)
	case *Sequence:
		if x.Labeled {
			o.line(depth, "{")
			o.block(x, depth+1)
			o.line(depth, "}")
			return
		}
		o.block(x, depth)
	case *Basic:
		o.exprs(x.Exprs, depth)
	case *If:
		if x.Head != nil {
			o.exprs(x.Head.Exprs, depth)
		}
		o.line(depth, "if (%s) {", x.Cond)
		o.block(x.Then, depth+1)
		if x.Else != nil {
			o.line(depth, "} else {")
			o.block(x.Else, depth+1)
		}
		o.line(depth, "}")
	case *Loop:
		switch x.Kind {
		case LoopWhile:
			o.line(depth, "while (%s) {", x.Cond)
		case LoopDoWhile:
			o.line(depth, "do {")
		case LoopFor:
			o.line(depth, "for (%s; %s; %s) {", optExpr(x.Init), optExpr(x.Cond), optExpr(x.Inc))
		default:
			o.line(depth, "while (true) {")
		}
		o.block(x.Body, depth+1)
		if x.Kind == LoopDoWhile {
			o.line(depth, "} while (%s)", x.Cond)
			return
		}
		o.line(depth, "}")
	case *Switch:
		if x.Head != nil {
			o.exprs(x.Head.Exprs, depth)
		}
		o.line(depth, "switch (%s) {", x.Value)
		for _, c := range x.Cases {
			for _, k := range c.Keys {
				o.line(depth, "case %d:", k)
			}
			if c.Default {
				o.line(depth, "default:")
			}
			o.block(c.Body, depth+1)
		}
		o.line(depth, "}")
	case *Try:
		o.line(depth, "try {")
		o.block(x.Body, depth+1)
		for _, c := range x.Catches {
			name := "_"
			if c.Var != nil {
				name = c.Var.String()
			}
			o.line(depth, "} catch (%s %s) {", typeNames(c.Types), name)
			o.block(c.Body, depth+1)
		}
		if x.Finally != nil {
			o.line(depth, "} finally {")
			o.block(x.Finally, depth+1)
		}
		o.line(depth, "}")
	case *Sync:
		if x.Head != nil {
			o.exprs(x.Head.Exprs, depth)
		}
		o.line(depth, "synchronized (%s) {", x.Lock)
		o.block(x.Body, depth+1)
		o.line(depth, "}")
	case *Jump:
		o.line(depth, "%s", o.jump(x))
	}
}

func (o *outliner) jump(j *Jump) string {
	switch j.Kind {
	case Goto:
		return fmt.Sprintf("goto %s", j.Block)
	case Continue:
		if j.Labeled {
			return fmt.Sprintf("continue label%d", o.labels[j.Target])
		}
		return "continue"
	}
	if j.Labeled {
		return fmt.Sprintf("break label%d", o.labels[j.Target])
	}
	return "break"
}

func optExpr(e exprent.Expr) string {
	if e == nil {
		return ""
	}
	return e.String()
}
