// Package jasm assembles small class files for tests. It writes real
// class-file bytes so the parser and decoder are exercised end to end.
package jasm

import (
	"bytes"
	"fmt"

	"github.com/dhamidi/decaf/classfile"
)

type member struct {
	access uint16
	name   string
	desc   string
	attrs  []rawAttr
}

type rawAttr struct {
	name string
	body []byte
}

type innerClass struct {
	inner, outer, simple string
	access               uint16
}

type bootstrap struct {
	handle uint16
	args   []uint16
}

// ClassBuilder describes one class.
type ClassBuilder struct {
	pool       *Pool
	name       string
	super      string
	access     uint16
	interfaces []string
	fields     []member
	methods    []*MethodBuilder
	inner      []innerClass
	bootstraps []bootstrap
	enclosing  []string
	source     string
}

func NewClass(name string) *ClassBuilder {
	return &ClassBuilder{
		pool:   newPool(),
		name:   name,
		super:  "java/lang/Object",
		access: uint16(classfile.AccPublic | classfile.AccSuper),
	}
}

func (c *ClassBuilder) Pool() *Pool { return c.pool }

func (c *ClassBuilder) Name() string { return c.name }

func (c *ClassBuilder) Access(flags classfile.AccessFlags) *ClassBuilder {
	c.access = uint16(flags)
	return c
}

func (c *ClassBuilder) Super(name string) *ClassBuilder {
	c.super = name
	return c
}

func (c *ClassBuilder) Implements(names ...string) *ClassBuilder {
	c.interfaces = append(c.interfaces, names...)
	return c
}

func (c *ClassBuilder) SourceFile(name string) *ClassBuilder {
	c.source = name
	return c
}

func (c *ClassBuilder) Field(flags classfile.AccessFlags, name, desc string) *ClassBuilder {
	c.fields = append(c.fields, member{access: uint16(flags), name: name, desc: desc})
	return c
}

// ConstantField declares a static final field with a ConstantValue
// attribute. value may be an int, int64, float64 or string.
func (c *ClassBuilder) ConstantField(flags classfile.AccessFlags, name, desc string, value any) *ClassBuilder {
	var idx uint16
	switch v := value.(type) {
	case int:
		idx = c.pool.Int(int32(v))
	case int64:
		idx = c.pool.Long(v)
	case float64:
		idx = c.pool.Double(v)
	case string:
		idx = c.pool.String(v)
	default:
		panic(fmt.Sprintf("jasm: unsupported constant %T", value))
	}
	var body bytes.Buffer
	putU2(&body, idx)
	c.fields = append(c.fields, member{
		access: uint16(flags),
		name:   name,
		desc:   desc,
		attrs:  []rawAttr{{classfile.AttrConstantValue, body.Bytes()}},
	})
	return c
}

// InnerClass adds an InnerClasses entry. outer and simple may be empty
// for local and anonymous classes.
func (c *ClassBuilder) InnerClass(inner, outer, simple string, flags classfile.AccessFlags) *ClassBuilder {
	c.inner = append(c.inner, innerClass{inner, outer, simple, uint16(flags)})
	return c
}

// EnclosingMethod records the method a local or anonymous class is
// declared in. name and desc may be empty.
func (c *ClassBuilder) EnclosingMethod(class, name, desc string) *ClassBuilder {
	c.enclosing = []string{class, name, desc}
	return c
}

// Bootstrap adds a BootstrapMethods entry whose handle is an
// invokestatic reference, returning the entry's index.
func (c *ClassBuilder) Bootstrap(owner, name, desc string, args ...uint16) int {
	h := c.pool.MethodHandle(classfile.RefInvokeStatic, owner, name, desc)
	c.bootstraps = append(c.bootstraps, bootstrap{handle: h, args: args})
	return len(c.bootstraps) - 1
}

// LambdaBootstrap adds the standard LambdaMetafactory.metafactory entry
// for a lambda whose body is the static or instance method content.
func (c *ClassBuilder) LambdaBootstrap(erasedDesc string, kind classfile.MethodHandleKind, contentOwner, contentName, contentDesc, instantiatedDesc string) int {
	args := []uint16{
		c.pool.MethodType(erasedDesc),
		c.pool.MethodHandle(kind, contentOwner, contentName, contentDesc),
		c.pool.MethodType(instantiatedDesc),
	}
	return c.Bootstrap(
		"java/lang/invoke/LambdaMetafactory",
		"metafactory",
		"(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;",
		args...,
	)
}

func (c *ClassBuilder) Method(flags classfile.AccessFlags, name, desc string) *MethodBuilder {
	m := &MethodBuilder{
		class:     c,
		access:    uint16(flags),
		name:      name,
		desc:      desc,
		labels:    make(map[string]int),
		maxStack:  16,
		maxLocals: 16,
	}
	c.methods = append(c.methods, m)
	return m
}

// Bytes encodes the class file.
func (c *ClassBuilder) Bytes() []byte {
	p := c.pool
	this := p.Class(c.name)
	var super uint16
	if c.super != "" {
		super = p.Class(c.super)
	}
	ifaces := make([]uint16, len(c.interfaces))
	for i, n := range c.interfaces {
		ifaces[i] = p.Class(n)
	}

	// Members and attributes first: they may add pool entries.
	var fields, methods, attrs bytes.Buffer
	writeMembers(&fields, p, c.fields)
	ms := make([]member, len(c.methods))
	for i, m := range c.methods {
		ms[i] = m.member()
	}
	writeMembers(&methods, p, ms)
	writeAttrs(&attrs, p, c.classAttrs())

	var out bytes.Buffer
	putU4(&out, classfile.Magic)
	putU2(&out, 0)
	putU2(&out, 61)
	putU2(&out, p.next)
	out.Write(p.buf.Bytes())
	putU2(&out, c.access)
	putU2(&out, this)
	putU2(&out, super)
	putU2(&out, uint16(len(ifaces)))
	for _, i := range ifaces {
		putU2(&out, i)
	}
	out.Write(fields.Bytes())
	out.Write(methods.Bytes())
	out.Write(attrs.Bytes())
	return out.Bytes()
}

// Build encodes and parses the class. It panics on a parse error, which
// means the builder produced a broken class.
func (c *ClassBuilder) Build() *classfile.ClassFile {
	cf, err := classfile.ParseBytes(c.Bytes())
	if err != nil {
		panic(fmt.Sprintf("jasm: %s: %v", c.name, err))
	}
	return cf
}

func (c *ClassBuilder) classAttrs() []rawAttr {
	p := c.pool
	var attrs []rawAttr
	if c.source != "" {
		var b bytes.Buffer
		putU2(&b, p.Utf8(c.source))
		attrs = append(attrs, rawAttr{classfile.AttrSourceFile, b.Bytes()})
	}
	if len(c.inner) > 0 {
		var b bytes.Buffer
		putU2(&b, uint16(len(c.inner)))
		for _, ic := range c.inner {
			putU2(&b, p.Class(ic.inner))
			putU2(&b, optional(ic.outer, p.Class))
			putU2(&b, optional(ic.simple, p.Utf8))
			putU2(&b, ic.access)
		}
		attrs = append(attrs, rawAttr{classfile.AttrInnerClasses, b.Bytes()})
	}
	if len(c.enclosing) == 3 {
		var b bytes.Buffer
		putU2(&b, p.Class(c.enclosing[0]))
		if c.enclosing[1] != "" {
			putU2(&b, p.NameAndType(c.enclosing[1], c.enclosing[2]))
		} else {
			putU2(&b, 0)
		}
		attrs = append(attrs, rawAttr{classfile.AttrEnclosingMethod, b.Bytes()})
	}
	if len(c.bootstraps) > 0 {
		var b bytes.Buffer
		putU2(&b, uint16(len(c.bootstraps)))
		for _, bm := range c.bootstraps {
			putU2(&b, bm.handle)
			putU2(&b, uint16(len(bm.args)))
			for _, a := range bm.args {
				putU2(&b, a)
			}
		}
		attrs = append(attrs, rawAttr{classfile.AttrBootstrapMethods, b.Bytes()})
	}
	return attrs
}

func optional(s string, f func(string) uint16) uint16 {
	if s == "" {
		return 0
	}
	return f(s)
}

func writeMembers(w *bytes.Buffer, p *Pool, ms []member) {
	putU2(w, uint16(len(ms)))
	for _, m := range ms {
		putU2(w, m.access)
		putU2(w, p.Utf8(m.name))
		putU2(w, p.Utf8(m.desc))
		writeAttrs(w, p, m.attrs)
	}
}

func writeAttrs(w *bytes.Buffer, p *Pool, attrs []rawAttr) {
	putU2(w, uint16(len(attrs)))
	for _, a := range attrs {
		putU2(w, p.Utf8(a.name))
		putU4(w, uint32(len(a.body)))
		w.Write(a.body)
	}
}
