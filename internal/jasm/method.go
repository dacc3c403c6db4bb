package jasm

import (
	"bytes"
	"fmt"

	"github.com/dhamidi/decaf/classfile"
)

type fixup struct {
	at    int // position of the offset field
	base  int // offset of the branching instruction
	label string
	wide  bool
}

type handler struct {
	start, end, target string
	catchType          string
}

type local struct {
	name, desc string
	slot       int
	start, end string
}

// MethodBuilder emits one method body. Branch targets are symbolic
// labels resolved when the class is encoded.
type MethodBuilder struct {
	class     *ClassBuilder
	access    uint16
	name      string
	desc      string
	code      bytes.Buffer
	labels    map[string]int
	fixups    []fixup
	handlers  []handler
	locals    []local
	params    []string
	synthetic bool
	noCode    bool
	maxStack  int
	maxLocals int
}

// End returns to the class builder.
func (m *MethodBuilder) End() *ClassBuilder { return m.class }

func (m *MethodBuilder) pc() int { return m.code.Len() }

// Abstract marks the method as having no Code attribute.
func (m *MethodBuilder) Abstract() *MethodBuilder {
	m.noCode = true
	return m
}

// Synthetic adds a Synthetic attribute in addition to any flag.
func (m *MethodBuilder) Synthetic() *MethodBuilder {
	m.synthetic = true
	return m
}

// Params records a MethodParameters attribute.
func (m *MethodBuilder) Params(names ...string) *MethodBuilder {
	m.params = names
	return m
}

// Local records a LocalVariableTable entry live between two labels.
func (m *MethodBuilder) Local(name, desc string, slot int, start, end string) *MethodBuilder {
	m.locals = append(m.locals, local{name, desc, slot, start, end})
	return m
}

// Try protects [start, end) with a handler. An empty catchType catches
// everything.
func (m *MethodBuilder) Try(start, end, target, catchType string) *MethodBuilder {
	m.handlers = append(m.handlers, handler{start, end, target, catchType})
	return m
}

func (m *MethodBuilder) Label(name string) *MethodBuilder {
	if _, dup := m.labels[name]; dup {
		panic(fmt.Sprintf("jasm: duplicate label %q", name))
	}
	m.labels[name] = m.pc()
	return m
}

// Op emits an opcode followed by raw operand bytes.
func (m *MethodBuilder) Op(op classfile.Opcode, operands ...byte) *MethodBuilder {
	m.code.WriteByte(byte(op))
	m.code.Write(operands)
	return m
}

func (m *MethodBuilder) opU2(op classfile.Opcode, v uint16) *MethodBuilder {
	return m.Op(op, byte(v>>8), byte(v))
}

// Int pushes an int constant using the shortest encoding.
func (m *MethodBuilder) Int(v int) *MethodBuilder {
	switch {
	case v >= -1 && v <= 5:
		return m.Op(classfile.OpIconst0 + classfile.Opcode(v))
	case v >= -128 && v <= 127:
		return m.Op(classfile.OpBipush, byte(int8(v)))
	case v >= -32768 && v <= 32767:
		return m.Op(classfile.OpSipush, byte(uint16(v)>>8), byte(v))
	}
	return m.ldc(m.class.pool.Int(int32(v)))
}

func (m *MethodBuilder) String(s string) *MethodBuilder {
	return m.ldc(m.class.pool.String(s))
}

func (m *MethodBuilder) Long(v int64) *MethodBuilder {
	return m.opU2(classfile.OpLdc2W, m.class.pool.Long(v))
}

func (m *MethodBuilder) Null() *MethodBuilder { return m.Op(classfile.OpAconstNull) }

func (m *MethodBuilder) ldc(idx uint16) *MethodBuilder {
	if idx < 256 {
		return m.Op(classfile.OpLdc, byte(idx))
	}
	return m.opU2(classfile.OpLdcW, idx)
}

var loadOps = map[byte]classfile.Opcode{
	'I': classfile.OpIload, 'J': classfile.OpLload, 'F': classfile.OpFload,
	'D': classfile.OpDload, 'A': classfile.OpAload,
}

var storeOps = map[byte]classfile.Opcode{
	'I': classfile.OpIstore, 'J': classfile.OpLstore, 'F': classfile.OpFstore,
	'D': classfile.OpDstore, 'A': classfile.OpAstore,
}

// Load emits xload for kind one of I, J, F, D, A.
func (m *MethodBuilder) Load(kind byte, slot int) *MethodBuilder {
	return m.local(loadOps[kind], slot)
}

func (m *MethodBuilder) Store(kind byte, slot int) *MethodBuilder {
	return m.local(storeOps[kind], slot)
}

func (m *MethodBuilder) local(op classfile.Opcode, slot int) *MethodBuilder {
	if slot > 255 {
		m.Op(classfile.OpWide)
		return m.Op(op, byte(slot>>8), byte(slot))
	}
	return m.Op(op, byte(slot))
}

func (m *MethodBuilder) Iinc(slot, delta int) *MethodBuilder {
	return m.Op(classfile.OpIinc, byte(slot), byte(int8(delta)))
}

// Jump emits a branch instruction targeting label.
func (m *MethodBuilder) Jump(op classfile.Opcode, label string) *MethodBuilder {
	base := m.pc()
	m.code.WriteByte(byte(op))
	wide := op == classfile.OpGotoW || op == classfile.OpJsrW
	m.fixups = append(m.fixups, fixup{at: m.pc(), base: base, label: label, wide: wide})
	if wide {
		m.code.Write([]byte{0, 0, 0, 0})
	} else {
		m.code.Write([]byte{0, 0})
	}
	return m
}

func (m *MethodBuilder) Goto(label string) *MethodBuilder { return m.Jump(classfile.OpGoto, label) }

// Switch emits a lookupswitch.
func (m *MethodBuilder) Switch(def string, keys []int, labels []string) *MethodBuilder {
	base := m.pc()
	m.code.WriteByte(byte(classfile.OpLookupswitch))
	for m.pc()%4 != 0 {
		m.code.WriteByte(0)
	}
	m.fixups = append(m.fixups, fixup{at: m.pc(), base: base, label: def, wide: true})
	m.code.Write([]byte{0, 0, 0, 0})
	putU4(&m.code, uint32(len(keys)))
	for i, k := range keys {
		putU4(&m.code, uint32(int32(k)))
		m.fixups = append(m.fixups, fixup{at: m.pc(), base: base, label: labels[i], wide: true})
		m.code.Write([]byte{0, 0, 0, 0})
	}
	return m
}

func (m *MethodBuilder) GetField(owner, name, desc string) *MethodBuilder {
	return m.opU2(classfile.OpGetfield, m.class.pool.Field(owner, name, desc))
}

func (m *MethodBuilder) PutField(owner, name, desc string) *MethodBuilder {
	return m.opU2(classfile.OpPutfield, m.class.pool.Field(owner, name, desc))
}

func (m *MethodBuilder) GetStatic(owner, name, desc string) *MethodBuilder {
	return m.opU2(classfile.OpGetstatic, m.class.pool.Field(owner, name, desc))
}

func (m *MethodBuilder) PutStatic(owner, name, desc string) *MethodBuilder {
	return m.opU2(classfile.OpPutstatic, m.class.pool.Field(owner, name, desc))
}

// Invoke emits invokevirtual, invokespecial or invokestatic.
func (m *MethodBuilder) Invoke(op classfile.Opcode, owner, name, desc string) *MethodBuilder {
	return m.opU2(op, m.class.pool.Method(owner, name, desc))
}

func (m *MethodBuilder) InvokeInterface(owner, name, desc string) *MethodBuilder {
	idx := m.class.pool.InterfaceMethod(owner, name, desc)
	count := classfile.ParseMethodDescriptor(desc).ParamSlots() + 1
	return m.Op(classfile.OpInvokeinterface, byte(idx>>8), byte(idx), byte(count), 0)
}

// InvokeDynamic emits an invokedynamic bound to bootstrap entry bsm. The
// call site's pool index is Pool().InvokeDynamic with the same arguments.
func (m *MethodBuilder) InvokeDynamic(bsm int, name, desc string) *MethodBuilder {
	idx := m.class.pool.InvokeDynamic(uint16(bsm), name, desc)
	return m.Op(classfile.OpInvokedynamic, byte(idx>>8), byte(idx), 0, 0)
}

func (m *MethodBuilder) New(class string) *MethodBuilder {
	return m.opU2(classfile.OpNew, m.class.pool.Class(class))
}

func (m *MethodBuilder) Checkcast(class string) *MethodBuilder {
	return m.opU2(classfile.OpCheckcast, m.class.pool.Class(class))
}

func (m *MethodBuilder) InstanceOf(class string) *MethodBuilder {
	return m.opU2(classfile.OpInstanceof, m.class.pool.Class(class))
}

func (m *MethodBuilder) member() member {
	p := m.class.pool
	mem := member{access: m.access, name: m.name, desc: m.desc}
	if !m.noCode {
		mem.attrs = append(mem.attrs, rawAttr{classfile.AttrCode, m.codeAttr()})
	}
	if m.params != nil {
		var b bytes.Buffer
		b.WriteByte(byte(len(m.params)))
		for _, n := range m.params {
			putU2(&b, optional(n, p.Utf8))
			putU2(&b, 0)
		}
		mem.attrs = append(mem.attrs, rawAttr{classfile.AttrMethodParameters, b.Bytes()})
	}
	if m.synthetic {
		mem.attrs = append(mem.attrs, rawAttr{classfile.AttrSynthetic, nil})
	}
	return mem
}

func (m *MethodBuilder) resolve(label string) int {
	off, ok := m.labels[label]
	if !ok {
		panic(fmt.Sprintf("jasm: %s: undefined label %q", m.name, label))
	}
	return off
}

func (m *MethodBuilder) codeAttr() []byte {
	p := m.class.pool
	code := append([]byte(nil), m.code.Bytes()...)
	for _, f := range m.fixups {
		delta := m.resolve(f.label) - f.base
		if f.wide {
			code[f.at] = byte(delta >> 24)
			code[f.at+1] = byte(delta >> 16)
			code[f.at+2] = byte(delta >> 8)
			code[f.at+3] = byte(delta)
		} else {
			code[f.at] = byte(delta >> 8)
			code[f.at+1] = byte(delta)
		}
	}

	var b bytes.Buffer
	putU2(&b, uint16(m.maxStack))
	putU2(&b, uint16(m.maxLocals))
	putU4(&b, uint32(len(code)))
	b.Write(code)
	putU2(&b, uint16(len(m.handlers)))
	for _, h := range m.handlers {
		putU2(&b, uint16(m.resolve(h.start)))
		putU2(&b, uint16(m.resolve(h.end)))
		putU2(&b, uint16(m.resolve(h.target)))
		putU2(&b, optional(h.catchType, p.Class))
	}

	var attrs []rawAttr
	if len(m.locals) > 0 {
		var lvt bytes.Buffer
		putU2(&lvt, uint16(len(m.locals)))
		for _, l := range m.locals {
			start := m.resolve(l.start)
			putU2(&lvt, uint16(start))
			putU2(&lvt, uint16(m.resolve(l.end)-start))
			putU2(&lvt, p.Utf8(l.name))
			putU2(&lvt, p.Utf8(l.desc))
			putU2(&lvt, uint16(l.slot))
		}
		attrs = append(attrs, rawAttr{classfile.AttrLocalVariableTable, lvt.Bytes()})
	}
	writeAttrs(&b, p, attrs)
	return b.Bytes()
}
