// Package method reconstructs the structured body of a single method:
// control-flow graph, expressions, statement tree and the simplification
// passes that turn it into readable source structure.
package method

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/cfg"
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/stmt"
	"github.com/dhamidi/decaf/decompiler/vars"
)

var log = commonlog.GetLogger("decaf.method")

var (
	// ErrLimitExceeded aborts a method that is too large or does not
	// settle within the configured bounds.
	ErrLimitExceeded = cfg.ErrLimitExceeded

	// ErrTimeBudget aborts a method that ran past its wall-clock budget.
	ErrTimeBudget = errors.New("method time budget exceeded")
)

// Status is the outcome of one method reconstruction.
type Status uint8

const (
	StatusOK Status = iota
	StatusLimit
	StatusTimeout
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusLimit:
		return "limit"
	case StatusTimeout:
		return "timeout"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// MarshalText lets reports encode the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type Options struct {
	// MaxBlocks bounds the graph size, subroutine copies included.
	MaxBlocks int
	// MaxFixpointIterations bounds every iterate-until-stable loop.
	MaxFixpointIterations int
	// MaxFinallyPasses bounds finally de-duplication sweeps.
	MaxFinallyPasses int
	// Timeout is the wall-clock budget of one method; zero disables it.
	Timeout time.Duration

	RemoveEmptyRanges bool
	StripNullChecks   bool
}

func DefaultOptions() Options {
	return Options{
		MaxBlocks:             5000,
		MaxFixpointIterations: 64,
		MaxFinallyPasses:      16,
		Timeout:               15 * time.Second,
		RemoveEmptyRanges:     true,
	}
}

// Input is everything the pipeline needs to know about one method.
type Input struct {
	Class  string
	Name   string
	Desc   string
	Static bool
	Code   *classfile.CodeAttribute
	Pool   classfile.ConstantPool

	// Vars receives variable information. A fresh processor sized by
	// Code.MaxLocals is used when nil.
	Vars *vars.Processor
}

func (in *Input) String() string { return in.Class + "." + in.Name + in.Desc }

func (in *Input) isClassInit() bool { return in.Name == "<clinit>" }

func (in *Input) isConstructor() bool { return in.Name == "<init>" }

// Result is a reconstructed method body. For any status other than
// StatusOK Root is a placeholder holding a single comment and Err
// explains the failure.
type Result struct {
	Root   *stmt.Root
	Vars   *vars.Processor
	Params []vars.Param
	Status Status
	Err    error
}

// Reconstruct runs the pipeline over one method. Limits, the time budget
// and internal faults are contained in the returned Result; the error
// return is reserved for cancellation of ctx, which aborts the whole run.
func Reconstruct(ctx context.Context, in *Input, opts Options) (res *Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.Vars == nil {
		maxLocals := 0
		if in.Code != nil {
			maxLocals = int(in.Code.MaxLocals)
		}
		in.Vars = vars.NewProcessor(maxLocals)
	}
	r := &run{ctx: ctx, in: in, opts: opts}
	if opts.Timeout > 0 {
		r.deadline = time.Now().Add(opts.Timeout)
	}

	defer func() {
		if p := recover(); p != nil {
			log.Errorf("%s: internal fault: %v\n%s", in, p, debug.Stack())
			res, err = placeholder(in, StatusFailed, fmt.Errorf("internal fault: %v", p)), nil
		}
	}()

	root, err := r.pipeline()
	switch {
	case err == nil:
		return &Result{Root: root, Vars: in.Vars, Params: r.params, Status: StatusOK}, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, ErrLimitExceeded):
		log.Warningf("%s: %s", in, err)
		return placeholder(in, StatusLimit, err), nil
	case errors.Is(err, ErrTimeBudget):
		log.Warningf("%s: %s", in, err)
		return placeholder(in, StatusTimeout, err), nil
	}
	log.Warningf("%s: %s", in, err)
	return placeholder(in, StatusFailed, err), nil
}

func placeholder(in *Input, status Status, err error) *Result {
	text := fmt.Sprintf("decompilation failed (%s): %s", status, err)
	body := &stmt.Basic{Exprs: []exprent.Expr{&exprent.CommentExpr{Text: text}}}
	return &Result{
		Root:   &stmt.Root{Body: body},
		Vars:   in.Vars,
		Params: vars.Params(in.Class, in.Desc, in.Static),
		Status: status,
		Err:    err,
	}
}

// run is the state of one pipeline execution.
type run struct {
	ctx      context.Context
	in       *Input
	opts     Options
	deadline time.Time
	params   []vars.Param
}

// check is called at every cancellation point.
func (r *run) check() error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	if !r.deadline.IsZero() && time.Now().After(r.deadline) {
		return ErrTimeBudget
	}
	return nil
}
