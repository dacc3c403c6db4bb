package vars

import (
	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/exprent"
)

// Param is one slot defined on method entry.
type Param struct {
	Slot int
	Type exprent.Type
}

// Params lists the receiver, for instance methods, and the declared
// parameters of a method with slot numbers as the JVM assigns them.
// It returns nil for a malformed descriptor and an empty, non-nil list
// for a static method without parameters.
func Params(class, desc string, static bool) []Param {
	md := classfile.ParseMethodDescriptor(desc)
	if md == nil {
		return nil
	}
	out := []Param{}
	slot := 0
	if !static {
		out = append(out, Param{Slot: 0, Type: exprent.ObjectType(class)})
		slot = 1
	}
	for i := range md.Parameters {
		out = append(out, Param{Slot: slot, Type: exprent.FromFieldType(&md.Parameters[i])})
		slot += md.Parameters[i].Slots()
	}
	return out
}

// Slots returns the slot numbers of params.
func Slots(params []Param) []int {
	out := make([]int, len(params))
	for i, p := range params {
		out[i] = p.Slot
	}
	return out
}

// Seed records the entry definitions of params in p: version 1 of every
// slot, typed from the descriptor, the receiver named this.
func (p *Processor) Seed(params []Param, static bool) {
	for i, param := range params {
		info := p.Info(VarVersion{param.Slot, 1})
		info.Param = true
		info.Type = param.Type
		if i == 0 && !static {
			info.Name = "this"
			info.Final = true
		}
	}
}
