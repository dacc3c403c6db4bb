package method

import (
	"errors"
	"fmt"
	"math"

	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/cfg"
	"github.com/dhamidi/decaf/decompiler/stmt"
	"github.com/dhamidi/decaf/decompiler/vars"
)

// pipeline runs every reconstruction step in order.
func (r *run) pipeline() (*stmt.Root, error) {
	in := r.in
	if in.Code == nil {
		return nil, errors.New("method has no code")
	}
	if err := r.check(); err != nil {
		return nil, err
	}

	r.params = vars.Params(in.Class, in.Desc, in.Static)
	if r.params == nil {
		return nil, fmt.Errorf("malformed descriptor %q", in.Desc)
	}

	g, err := r.graph()
	if err != nil {
		return nil, err
	}

	in.Vars.Seed(r.params, in.Static)
	if err := newSimulator(in, g, r.params).run(); err != nil {
		return nil, fmt.Errorf("expressions: %w", err)
	}
	if n := g.FoldConditions(); n > 0 {
		log.Debugf("%s: folded %d conditions", in, n)
	}
	passes := r.opts.MaxFinallyPasses
	if passes < 2 {
		passes = 2
	}
	n, err := g.DeduplicateFinally(passes)
	if err != nil {
		return nil, fmt.Errorf("finally: %w", err)
	}
	if n > 0 {
		log.Debugf("%s: %d finally rewrites", in, n)
	}
	if err := r.check(); err != nil {
		return nil, err
	}

	root, err := stmt.Build(g)
	if err != nil {
		return nil, fmt.Errorf("structure: %w", err)
	}
	body := &Body{Root: root, In: in, Vars: in.Vars, Params: r.params}

	convertSync(body)
	if err := r.simplify(body); err != nil {
		return nil, err
	}
	finish(body)
	return root, nil
}

// simplify runs group A then group B to their fixpoints. Stripping null
// checks frees stack temporaries and statements, so every stripping round
// starts both groups over.
func (r *run) simplify(body *Body) error {
	for round := 0; ; round++ {
		if round >= r.maxRounds() {
			return fmt.Errorf("null check stripping after %d rounds: %w", round, ErrLimitExceeded)
		}
		if err := r.fixpoint(body, groupA(body)); err != nil {
			return err
		}
		if err := r.fixpoint(body, groupB(body)); err != nil {
			return err
		}
		if !r.opts.StripNullChecks || !stripNullChecks(body) {
			return nil
		}
		log.Debugf("%s: stripped null checks", r.in)
		body.Changed()
	}
}

// graph decodes the method and simplifies its control-flow graph up to
// the point where expressions can be built.
func (r *run) graph() (*cfg.Graph, error) {
	in := r.in
	seq, err := classfile.Decode(in.Code.Code)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	g, err := cfg.Build(seq, in.Code.ExceptionTable, in.Pool)
	if err != nil {
		return nil, fmt.Errorf("control flow: %w", err)
	}
	limit := r.opts.MaxBlocks
	if limit <= 0 {
		limit = math.MaxInt
	}
	if len(g.Blocks) > limit {
		return nil, fmt.Errorf("%d blocks: %w", len(g.Blocks), ErrLimitExceeded)
	}

	g.RemoveDeadBlocks()
	if err := g.InlineSubroutines(limit); err != nil {
		return nil, fmt.Errorf("subroutines: %w", err)
	}
	g.AddDummyExit()
	g.RemoveGotos()
	g.NormalizeExceptionRanges(r.opts.RemoveEmptyRanges)
	g.MergeBlocks()
	return g, r.check()
}

// fixpoint applies passes round by round until a round changes nothing.
func (r *run) fixpoint(b *Body, passes []Rewrite) error {
	return Fixpoint(b, passes, r.maxRounds(), r.check)
}

func (r *run) maxRounds() int {
	if r.opts.MaxFixpointIterations <= 0 {
		return DefaultOptions().MaxFixpointIterations
	}
	return r.opts.MaxFixpointIterations
}
