package class

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dhamidi/decaf/decompiler/method"
)

// Reconstruct runs the method pipeline for one method and stores the
// result on its wrapper. Methods without code are left without a body.
// Only cancellation of ctx is returned as an error.
func (c *Context) Reconstruct(ctx context.Context, cw *ClassWrapper, mw *MethodWrapper) error {
	cp := cw.File.ConstantPool
	code := mw.Info.GetCodeAttribute(cp)
	if code == nil {
		return ctx.Err()
	}
	in := &method.Input{
		Class:  cw.Name,
		Name:   mw.Name,
		Desc:   mw.Desc,
		Static: mw.IsStatic(),
		Code:   code,
		Pool:   cp,
	}
	res, err := method.Reconstruct(ctx, in, c.Options.Method)
	if err != nil {
		return fmt.Errorf("%s: %w", mw, err)
	}
	mw.Root = res.Root
	mw.Vars = res.Vars
	mw.Params = res.Params
	mw.Status = res.Status
	mw.Err = res.Err
	mw.Synthetic = make([]*Capture, len(mw.DeclaredParams()))
	mw.Changed()
	return nil
}

// ProcessClass reconstructs every method of cw, at most Workers at a
// time, then finishes the class.
func (c *Context) ProcessClass(ctx context.Context, cw *ClassWrapper) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.Options.Workers, 1))
	for _, mw := range cw.Methods {
		mw := mw
		g.Go(func() error { return c.Reconstruct(gctx, cw, mw) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Finish(cw)
	return nil
}

// Finish runs the class-level passes once every method of cw has been
// reconstructed: parameter and debug names, renaming of variables that
// collide with fields, and field initializers.
func (c *Context) Finish(cw *ClassWrapper) {
	var reserved map[string]bool
	if c.Options.RenameFieldCollisions {
		reserved = cw.FieldNames()
	}
	for _, mw := range cw.Methods {
		if !mw.HasBody() {
			continue
		}
		c.enrichNames(cw, mw)
		mw.Vars.RefreshNames(reserved)
		mw.ApplyNames()
	}
	c.extractInitializers(cw)
}
