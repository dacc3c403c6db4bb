// Package decompiler runs the reconstruction engine over a set of class
// files: every method is reconstructed, possibly in parallel, and once all
// of them are done the class, lambda and nested-class passes link the
// results into one class tree.
package decompiler

import (
	"context"
	"errors"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/class"
	"github.com/dhamidi/decaf/decompiler/lambda"
	"github.com/dhamidi/decaf/decompiler/method"
	"github.com/dhamidi/decaf/decompiler/nested"
)

var log = commonlog.GetLogger("decaf.decompiler")

// Failure reports a method whose body could not be reconstructed. The
// method keeps a placeholder body.
type Failure struct {
	Class  string        `json:"class" yaml:"class"`
	Method string        `json:"method" yaml:"method"`
	Desc   string        `json:"descriptor" yaml:"descriptor"`
	Status method.Status `json:"status" yaml:"status"`
	Error  string        `json:"error" yaml:"error"`
}

// Result is the outcome of one run.
type Result struct {
	Tree     *class.Tree
	Classes  []*class.ClassWrapper
	Failures []Failure
}

// Visible lists the methods of cw not hidden by the linker.
func (r *Result) Visible(cw *class.ClassWrapper) []*class.MethodWrapper {
	var out []*class.MethodWrapper
	for _, mw := range cw.Methods {
		if !r.Tree.IsHidden(class.Member{Class: cw.Node, Name: mw.Name, Desc: mw.Desc}) {
			out = append(out, mw)
		}
	}
	return out
}

// Run reconstructs the given classes. Only cancellation of ctx stops a
// run early; every other problem is contained in the method it occurs in
// and reported in Failures.
func Run(ctx context.Context, files []*classfile.ClassFile, opts class.Options) (*Result, error) {
	tree := class.NewTree()
	var classes []*class.ClassWrapper
	for _, cf := range files {
		if _, dup := tree.Lookup(cf.ClassName()); dup {
			log.Warningf("%s: loaded twice, keeping the first", cf.ClassName())
			continue
		}
		classes = append(classes, tree.AddClass(cf).Wrapper)
	}
	tree.Link()
	c := class.NewContext(tree, opts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for _, cw := range classes {
		cw := cw
		for _, mw := range cw.Methods {
			mw := mw
			g.Go(func() error { return c.Reconstruct(gctx, cw, mw) })
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, cw := range classes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.Finish(cw)
	}
	for _, cw := range classes {
		if lambda.Resolve(c, cw) {
			log.Debugf("%s: lambda nodes added", cw.Name)
		}
	}
	if err := nested.Link(ctx, c); err != nil {
		return nil, err
	}

	res := &Result{Tree: tree, Classes: classes}
	for _, cw := range classes {
		for _, mw := range cw.Methods {
			if mw.Root == nil || mw.Status == method.StatusOK {
				continue
			}
			f := Failure{Class: cw.Name, Method: mw.Name, Desc: mw.Desc, Status: mw.Status}
			if mw.Err != nil {
				f.Error = mw.Err.Error()
			}
			log.Warningf("%s: %s: %s", mw, mw.Status, f.Error)
			res.Failures = append(res.Failures, f)
		}
	}
	return res, nil
}

// Decompile loads the given paths and runs the engine over every class
// found. Load problems are logged; the run fails only when no class could
// be read.
func Decompile(ctx context.Context, opts class.Options, paths ...string) (*Result, error) {
	in := Load(paths...)
	for _, e := range in.Errors {
		log.Warning(e)
	}
	if len(in.Classes) == 0 {
		if len(in.Errors) > 0 {
			return nil, errors.New(in.Errors[0])
		}
		return nil, errors.New("no class files found")
	}
	return Run(ctx, in.Classes, opts)
}
