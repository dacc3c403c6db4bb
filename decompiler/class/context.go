package class

import (
	"github.com/dhamidi/decaf/decompiler/method"
)

type Options struct {
	Method method.Options

	// Workers bounds concurrent method reconstructions; zero or less
	// runs them one at a time.
	Workers int

	UseMethodParameters   bool
	UseDebugVarNames      bool
	RenameFieldCollisions bool
	RemoveBridges         bool
}

func DefaultOptions() Options {
	return Options{
		Method:                method.DefaultOptions(),
		Workers:               4,
		UseMethodParameters:   true,
		UseDebugVarNames:      true,
		RenameFieldCollisions: true,
		RemoveBridges:         true,
	}
}

type AccessorKind uint8

const (
	AccessorNone AccessorKind = iota
	AccessorFieldGet
	AccessorFieldSet
	AccessorMethod
)

func (k AccessorKind) String() string {
	switch k {
	case AccessorFieldGet:
		return "field get"
	case AccessorFieldSet:
		return "field set"
	case AccessorMethod:
		return "method"
	}
	return "none"
}

// Accessor is a classified synthetic bridge. Static reports a target
// without receiver; otherwise the bridge's first argument is the
// receiver.
type Accessor struct {
	Kind   AccessorKind
	Owner  string
	Name   string
	Desc   string
	Static bool
	// Special is set for forwards to private or super methods.
	Special bool
}

// Context is the state shared by every component of one run. It is
// created per run and dropped with it; nothing in it outlives the run.
type Context struct {
	Tree    *Tree
	Options Options

	// Accessors is the registry of classified synthetic bridges.
	Accessors map[MethodRef]*Accessor
	// Lambdas maps "class name descriptor" of an implementation method
	// to the lambda node it backs.
	Lambdas map[string]NodeID
}

func NewContext(tree *Tree, opts Options) *Context {
	return &Context{
		Tree:      tree,
		Options:   opts,
		Accessors: make(map[MethodRef]*Accessor),
		Lambdas:   make(map[string]NodeID),
	}
}

// ContentKey builds the key of Context.Lambdas.
func ContentKey(class, name, desc string) string { return class + " " + name + " " + desc }
