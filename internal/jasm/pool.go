package jasm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dhamidi/decaf/classfile"
)

// Pool accumulates constant pool entries, deduplicating identical ones.
type Pool struct {
	buf   bytes.Buffer
	next  uint16
	index map[string]uint16
}

func newPool() *Pool {
	return &Pool{next: 1, index: make(map[string]uint16)}
}

func (p *Pool) add(key string, slots uint16, write func(w *bytes.Buffer)) uint16 {
	if i, ok := p.index[key]; ok {
		return i
	}
	i := p.next
	write(&p.buf)
	p.next += slots
	p.index[key] = i
	return i
}

func (p *Pool) Utf8(s string) uint16 {
	return p.add("U"+s, 1, func(w *bytes.Buffer) {
		w.WriteByte(byte(classfile.ConstantUtf8))
		putU2(w, uint16(len(s)))
		w.WriteString(s)
	})
}

func (p *Pool) Class(name string) uint16 {
	n := p.Utf8(name)
	return p.add("C"+name, 1, func(w *bytes.Buffer) {
		w.WriteByte(byte(classfile.ConstantClass))
		putU2(w, n)
	})
}

func (p *Pool) String(s string) uint16 {
	n := p.Utf8(s)
	return p.add("S"+s, 1, func(w *bytes.Buffer) {
		w.WriteByte(byte(classfile.ConstantString))
		putU2(w, n)
	})
}

func (p *Pool) Int(v int32) uint16 {
	return p.add(fmt.Sprintf("I%d", v), 1, func(w *bytes.Buffer) {
		w.WriteByte(byte(classfile.ConstantInteger))
		putU4(w, uint32(v))
	})
}

func (p *Pool) Long(v int64) uint16 {
	return p.add(fmt.Sprintf("J%d", v), 2, func(w *bytes.Buffer) {
		w.WriteByte(byte(classfile.ConstantLong))
		putU4(w, uint32(uint64(v)>>32))
		putU4(w, uint32(v))
	})
}

func (p *Pool) Double(v float64) uint16 {
	return p.add(fmt.Sprintf("D%v", v), 2, func(w *bytes.Buffer) {
		w.WriteByte(byte(classfile.ConstantDouble))
		bits := math.Float64bits(v)
		putU4(w, uint32(bits>>32))
		putU4(w, uint32(bits))
	})
}

func (p *Pool) NameAndType(name, desc string) uint16 {
	n, d := p.Utf8(name), p.Utf8(desc)
	return p.add("N"+name+":"+desc, 1, func(w *bytes.Buffer) {
		w.WriteByte(byte(classfile.ConstantNameAndType))
		putU2(w, n)
		putU2(w, d)
	})
}

func (p *Pool) ref(tag classfile.ConstantTag, owner, name, desc string) uint16 {
	c, nt := p.Class(owner), p.NameAndType(name, desc)
	return p.add(fmt.Sprintf("R%d%s.%s:%s", tag, owner, name, desc), 1, func(w *bytes.Buffer) {
		w.WriteByte(byte(tag))
		putU2(w, c)
		putU2(w, nt)
	})
}

func (p *Pool) Field(owner, name, desc string) uint16 {
	return p.ref(classfile.ConstantFieldref, owner, name, desc)
}

func (p *Pool) Method(owner, name, desc string) uint16 {
	return p.ref(classfile.ConstantMethodref, owner, name, desc)
}

func (p *Pool) InterfaceMethod(owner, name, desc string) uint16 {
	return p.ref(classfile.ConstantInterfaceMethodref, owner, name, desc)
}

func (p *Pool) MethodHandle(kind classfile.MethodHandleKind, owner, name, desc string) uint16 {
	ref := p.Method(owner, name, desc)
	return p.add(fmt.Sprintf("H%d:%d", kind, ref), 1, func(w *bytes.Buffer) {
		w.WriteByte(byte(classfile.ConstantMethodHandle))
		w.WriteByte(byte(kind))
		putU2(w, ref)
	})
}

func (p *Pool) MethodType(desc string) uint16 {
	d := p.Utf8(desc)
	return p.add("T"+desc, 1, func(w *bytes.Buffer) {
		w.WriteByte(byte(classfile.ConstantMethodType))
		putU2(w, d)
	})
}

func (p *Pool) InvokeDynamic(bsm uint16, name, desc string) uint16 {
	nt := p.NameAndType(name, desc)
	return p.add(fmt.Sprintf("Y%d:%d", bsm, nt), 1, func(w *bytes.Buffer) {
		w.WriteByte(byte(classfile.ConstantInvokeDynamic))
		putU2(w, bsm)
		putU2(w, nt)
	})
}

func putU2(w *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func putU4(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Write(b[:])
}
