package classfile

import (
	"errors"
	"fmt"
)

// Instruction is one decoded bytecode instruction. Short forms are
// normalized: iload_2 becomes OpIload with operand 2, ldc_w and ldc2_w
// become OpLdc, goto_w and jsr_w become OpGoto and OpJsr. Raw keeps the
// opcode as it appeared in the code array.
//
// Operand layout by opcode:
//
//	loads, stores, ret           [slot]
//	iinc                         [slot, delta]
//	bipush, sipush, newarray     [value]
//	branches                     [absolute target offset]
//	ldc, field/method refs, new  [constant pool index]
//	invokeinterface              [constant pool index, count]
//	multianewarray               [constant pool index, dimensions]
//	tableswitch, lookupswitch    [default, key0, target0, key1, target1, ...]
type Instruction struct {
	Offset   int
	Length   int
	Opcode   Opcode
	Raw      Opcode
	Wide     bool
	Operands []int
}

func (in *Instruction) Operand(i int) int {
	if i < len(in.Operands) {
		return in.Operands[i]
	}
	return 0
}

func (in *Instruction) String() string {
	return fmt.Sprintf("%d: %s %v", in.Offset, in.Opcode, in.Operands)
}

func (in *Instruction) IsConditionalBranch() bool {
	op := in.Opcode
	return (op >= OpIfeq && op <= OpIfAcmpne) || op == OpIfnull || op == OpIfnonnull
}

func (in *Instruction) IsSwitch() bool {
	return in.Opcode == OpTableswitch || in.Opcode == OpLookupswitch
}

func (in *Instruction) IsReturn() bool {
	return in.Opcode >= OpIreturn && in.Opcode <= OpReturn
}

// EndsBlock reports whether control never falls through to the next
// instruction.
func (in *Instruction) EndsBlock() bool {
	switch in.Opcode {
	case OpGoto, OpRet, OpAthrow, OpTableswitch, OpLookupswitch:
		return true
	}
	return in.IsReturn()
}

// Targets returns the absolute branch targets of a jump or switch.
func (in *Instruction) Targets() []int {
	switch {
	case in.IsConditionalBranch(), in.Opcode == OpGoto, in.Opcode == OpJsr:
		return []int{in.Operands[0]}
	case in.IsSwitch():
		targets := []int{in.Operands[0]}
		for i := 2; i < len(in.Operands); i += 2 {
			targets = append(targets, in.Operands[i])
		}
		return targets
	}
	return nil
}

// InstructionSequence is the decoded body of one method.
type InstructionSequence struct {
	Instrs []Instruction
	index  map[int]int
}

func NewInstructionSequence(instrs []Instruction) *InstructionSequence {
	seq := &InstructionSequence{Instrs: instrs, index: make(map[int]int, len(instrs))}
	for i := range instrs {
		seq.index[instrs[i].Offset] = i
	}
	return seq
}

func (s *InstructionSequence) Len() int { return len(s.Instrs) }

// IndexOf maps a bytecode offset to an instruction index.
func (s *InstructionSequence) IndexOf(offset int) (int, bool) {
	i, ok := s.index[offset]
	return i, ok
}

// EndOffset is the offset just past the last instruction.
func (s *InstructionSequence) EndOffset() int {
	if len(s.Instrs) == 0 {
		return 0
	}
	last := s.Instrs[len(s.Instrs)-1]
	return last.Offset + last.Length
}

var errTruncated = errors.New("truncated instruction")

// Decode turns a Code attribute's byte array into instructions.
func Decode(code []byte) (*InstructionSequence, error) {
	var instrs []Instruction
	for pc := 0; pc < len(code); {
		in, err := decodeOne(code, pc)
		if err != nil {
			return nil, fmt.Errorf("decode at offset %d: %w", pc, err)
		}
		instrs = append(instrs, in)
		pc += in.Length
	}
	return NewInstructionSequence(instrs), nil
}

func decodeOne(code []byte, pc int) (Instruction, error) {
	c := &byteCursor{b: code, off: pc}
	raw := Opcode(c.u1())
	in := Instruction{Offset: pc, Opcode: raw, Raw: raw}

	s1 := func() int { return int(int8(c.u1())) }
	s2 := func() int { return int(int16(c.u2())) }
	s4 := func() int { return int(int32(c.u4())) }

	switch {
	case raw == OpBipush:
		in.Operands = []int{s1()}
	case raw == OpSipush:
		in.Operands = []int{s2()}
	case raw == OpLdc:
		in.Operands = []int{int(c.u1())}
	case raw == OpLdcW || raw == OpLdc2W:
		in.Opcode = OpLdc
		in.Operands = []int{int(c.u2())}
	case raw >= OpIload && raw <= OpAload, raw >= OpIstore && raw <= OpAstore, raw == OpRet:
		in.Operands = []int{int(c.u1())}
	case raw >= OpIload0 && raw <= OpAload3:
		in.Opcode = OpIload + (raw-OpIload0)/4
		in.Operands = []int{int(raw-OpIload0) % 4}
	case raw >= OpIstore0 && raw <= OpAstore3:
		in.Opcode = OpIstore + (raw-OpIstore0)/4
		in.Operands = []int{int(raw-OpIstore0) % 4}
	case raw == OpIinc:
		in.Operands = []int{int(c.u1()), s1()}
	case (raw >= OpIfeq && raw <= OpJsr) || raw == OpIfnull || raw == OpIfnonnull:
		in.Operands = []int{pc + s2()}
	case raw == OpGotoW || raw == OpJsrW:
		in.Opcode = OpGoto
		if raw == OpJsrW {
			in.Opcode = OpJsr
		}
		in.Operands = []int{pc + s4()}
	case raw == OpTableswitch || raw == OpLookupswitch:
		c.off += (4 - (pc+1)%4) % 4
		def := pc + s4()
		in.Operands = []int{def}
		if raw == OpTableswitch {
			low, high := s4(), s4()
			if high < low || high-low > len(code) {
				return in, fmt.Errorf("bad tableswitch range %d..%d", low, high)
			}
			for k := low; k <= high; k++ {
				in.Operands = append(in.Operands, k, pc+s4())
			}
		} else {
			n := s4()
			if n < 0 || n > len(code) {
				return in, fmt.Errorf("bad lookupswitch size %d", n)
			}
			for i := 0; i < n; i++ {
				key := s4()
				in.Operands = append(in.Operands, key, pc+s4())
			}
		}
	case raw >= OpGetstatic && raw <= OpInvokestatic, raw == OpNew, raw == OpAnewarray,
		raw == OpCheckcast, raw == OpInstanceof:
		in.Operands = []int{int(c.u2())}
	case raw == OpInvokeinterface:
		in.Operands = []int{int(c.u2()), int(c.u1())}
		c.u1()
	case raw == OpInvokedynamic:
		in.Operands = []int{int(c.u2())}
		c.u2()
	case raw == OpNewarray:
		in.Operands = []int{int(c.u1())}
	case raw == OpMultianewarray:
		in.Operands = []int{int(c.u2()), int(c.u1())}
	case raw == OpWide:
		in.Wide = true
		inner := Opcode(c.u1())
		in.Raw = inner
		in.Opcode = inner
		switch {
		case inner == OpIinc:
			in.Operands = []int{int(c.u2()), s2()}
		case (inner >= OpIload && inner <= OpAload) || (inner >= OpIstore && inner <= OpAstore) || inner == OpRet:
			in.Operands = []int{int(c.u2())}
		default:
			return in, fmt.Errorf("invalid wide opcode %s", inner)
		}
	case raw > OpJsrW:
		return in, fmt.Errorf("unknown opcode 0x%02x", uint8(raw))
	}

	if c.bad {
		return in, errTruncated
	}
	in.Length = c.off - pc
	return in, nil
}
