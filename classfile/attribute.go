package classfile

import (
	"encoding/binary"
)

// Attribute names the engine reads. Everything else is kept raw in Info.
const (
	AttrCode               = "Code"
	AttrConstantValue      = "ConstantValue"
	AttrSourceFile         = "SourceFile"
	AttrInnerClasses       = "InnerClasses"
	AttrEnclosingMethod    = "EnclosingMethod"
	AttrSynthetic          = "Synthetic"
	AttrBootstrapMethods   = "BootstrapMethods"
	AttrMethodParameters   = "MethodParameters"
	AttrLocalVariableTable = "LocalVariableTable"
)

type AttributeInfo struct {
	NameIndex uint16
	Info      []byte
	Parsed    interface{}
}

type CodeAttribute struct {
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	ExceptionTable []ExceptionTableEntry
	Attributes     []AttributeInfo
}

type ExceptionTableEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

type LocalVariableTableAttribute struct {
	LocalVariableTable []LocalVariableEntry
}

type LocalVariableEntry struct {
	StartPC         uint16
	Length          uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Index           uint16
}

// Covers reports whether pc lies inside the entry's live range.
func (e LocalVariableEntry) Covers(pc int) bool {
	return pc >= int(e.StartPC) && pc <= int(e.StartPC)+int(e.Length)
}

type SourceFileAttribute struct {
	SourceFileIndex uint16
}

type ConstantValueAttribute struct {
	ConstantValueIndex uint16
}

type InnerClassesAttribute struct {
	Classes []InnerClassEntry
}

type InnerClassEntry struct {
	InnerClassInfoIndex   uint16
	OuterClassInfoIndex   uint16
	InnerNameIndex        uint16
	InnerClassAccessFlags AccessFlags
}

type BootstrapMethodsAttribute struct {
	BootstrapMethods []BootstrapMethod
}

type BootstrapMethod struct {
	BootstrapMethodRef uint16
	BootstrapArguments []uint16
}

type EnclosingMethodAttribute struct {
	ClassIndex  uint16
	MethodIndex uint16
}

type SyntheticAttribute struct{}

type MethodParametersAttribute struct {
	Parameters []MethodParameter
}

type MethodParameter struct {
	NameIndex   uint16
	AccessFlags AccessFlags
}

func attributeAs[T any](a *AttributeInfo) *T {
	if a == nil || a.Parsed == nil {
		return nil
	}
	if v, ok := a.Parsed.(*T); ok {
		return v
	}
	return nil
}

func (a *AttributeInfo) AsCode() *CodeAttribute { return attributeAs[CodeAttribute](a) }

func (a *AttributeInfo) AsLocalVariableTable() *LocalVariableTableAttribute {
	return attributeAs[LocalVariableTableAttribute](a)
}

func (a *AttributeInfo) AsSourceFile() *SourceFileAttribute {
	return attributeAs[SourceFileAttribute](a)
}

func (a *AttributeInfo) AsConstantValue() *ConstantValueAttribute {
	return attributeAs[ConstantValueAttribute](a)
}

func (a *AttributeInfo) AsInnerClasses() *InnerClassesAttribute {
	return attributeAs[InnerClassesAttribute](a)
}

func (a *AttributeInfo) AsBootstrapMethods() *BootstrapMethodsAttribute {
	return attributeAs[BootstrapMethodsAttribute](a)
}

func (a *AttributeInfo) AsEnclosingMethod() *EnclosingMethodAttribute {
	return attributeAs[EnclosingMethodAttribute](a)
}

func (a *AttributeInfo) AsMethodParameters() *MethodParametersAttribute {
	return attributeAs[MethodParametersAttribute](a)
}

// parseAttribute decodes the attributes the engine consumes. Unknown or
// malformed attributes keep Parsed == nil.
func parseAttribute(name string, info []byte, cp ConstantPool) interface{} {
	switch name {
	case AttrCode:
		return parseCodeAttribute(info, cp)
	case AttrSourceFile:
		return parseU2Attribute(info, func(v uint16) *SourceFileAttribute {
			return &SourceFileAttribute{SourceFileIndex: v}
		})
	case AttrConstantValue:
		return parseU2Attribute(info, func(v uint16) *ConstantValueAttribute {
			return &ConstantValueAttribute{ConstantValueIndex: v}
		})
	case AttrInnerClasses:
		return parseInnerClassesAttribute(info)
	case AttrBootstrapMethods:
		return parseBootstrapMethodsAttribute(info)
	case AttrEnclosingMethod:
		return parseEnclosingMethodAttribute(info)
	case AttrSynthetic:
		return &SyntheticAttribute{}
	case AttrMethodParameters:
		return parseMethodParametersAttribute(info)
	case AttrLocalVariableTable:
		return parseLocalVariableTableAttribute(info)
	}
	return nil
}

// byteCursor reads big-endian values from an attribute body and latches
// the first overrun instead of panicking.
type byteCursor struct {
	b   []byte
	off int
	bad bool
}

func (c *byteCursor) need(n int) bool {
	if c.bad || c.off+n > len(c.b) {
		c.bad = true
		return false
	}
	return true
}

func (c *byteCursor) u1() uint8 {
	if !c.need(1) {
		return 0
	}
	v := c.b[c.off]
	c.off++
	return v
}

func (c *byteCursor) u2() uint16 {
	if !c.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(c.b[c.off:])
	c.off += 2
	return v
}

func (c *byteCursor) u4() uint32 {
	if !c.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(c.b[c.off:])
	c.off += 4
	return v
}

func (c *byteCursor) bytes(n int) []byte {
	if !c.need(n) {
		return nil
	}
	v := c.b[c.off : c.off+n]
	c.off += n
	return v
}

func parseU2Attribute[T any](info []byte, build func(uint16) *T) *T {
	c := &byteCursor{b: info}
	v := c.u2()
	if c.bad {
		return nil
	}
	return build(v)
}

func parseCodeAttribute(info []byte, cp ConstantPool) *CodeAttribute {
	c := &byteCursor{b: info}
	code := &CodeAttribute{
		MaxStack:  c.u2(),
		MaxLocals: c.u2(),
	}
	code.Code = c.bytes(int(c.u4()))

	n := int(c.u2())
	code.ExceptionTable = make([]ExceptionTableEntry, 0, n)
	for i := 0; i < n && !c.bad; i++ {
		code.ExceptionTable = append(code.ExceptionTable, ExceptionTableEntry{
			StartPC:   c.u2(),
			EndPC:     c.u2(),
			HandlerPC: c.u2(),
			CatchType: c.u2(),
		})
	}

	n = int(c.u2())
	for i := 0; i < n && !c.bad; i++ {
		nameIndex := c.u2()
		body := c.bytes(int(c.u4()))
		if c.bad {
			break
		}
		attr := AttributeInfo{NameIndex: nameIndex, Info: body}
		if cp.GetUtf8(nameIndex) == AttrLocalVariableTable {
			attr.Parsed = parseLocalVariableTableAttribute(body)
		}
		code.Attributes = append(code.Attributes, attr)
	}

	if c.bad {
		return nil
	}
	return code
}

// LocalVariableTable returns the code's debug variable table, if any.
func (code *CodeAttribute) LocalVariableTable(cp ConstantPool) *LocalVariableTableAttribute {
	for i := range code.Attributes {
		if cp.GetUtf8(code.Attributes[i].NameIndex) == AttrLocalVariableTable {
			return code.Attributes[i].AsLocalVariableTable()
		}
	}
	return nil
}

func parseLocalVariableTableAttribute(info []byte) *LocalVariableTableAttribute {
	c := &byteCursor{b: info}
	n := int(c.u2())
	lvt := &LocalVariableTableAttribute{LocalVariableTable: make([]LocalVariableEntry, 0, n)}
	for i := 0; i < n; i++ {
		lvt.LocalVariableTable = append(lvt.LocalVariableTable, LocalVariableEntry{
			StartPC:         c.u2(),
			Length:          c.u2(),
			NameIndex:       c.u2(),
			DescriptorIndex: c.u2(),
			Index:           c.u2(),
		})
	}
	if c.bad {
		return nil
	}
	return lvt
}

func parseInnerClassesAttribute(info []byte) *InnerClassesAttribute {
	c := &byteCursor{b: info}
	n := int(c.u2())
	ic := &InnerClassesAttribute{Classes: make([]InnerClassEntry, 0, n)}
	for i := 0; i < n; i++ {
		ic.Classes = append(ic.Classes, InnerClassEntry{
			InnerClassInfoIndex:   c.u2(),
			OuterClassInfoIndex:   c.u2(),
			InnerNameIndex:        c.u2(),
			InnerClassAccessFlags: AccessFlags(c.u2()),
		})
	}
	if c.bad {
		return nil
	}
	return ic
}

func parseBootstrapMethodsAttribute(info []byte) *BootstrapMethodsAttribute {
	c := &byteCursor{b: info}
	n := int(c.u2())
	bm := &BootstrapMethodsAttribute{BootstrapMethods: make([]BootstrapMethod, 0, n)}
	for i := 0; i < n && !c.bad; i++ {
		ref := c.u2()
		args := make([]uint16, c.u2())
		for j := range args {
			args[j] = c.u2()
		}
		bm.BootstrapMethods = append(bm.BootstrapMethods, BootstrapMethod{
			BootstrapMethodRef: ref,
			BootstrapArguments: args,
		})
	}
	if c.bad {
		return nil
	}
	return bm
}

func parseEnclosingMethodAttribute(info []byte) *EnclosingMethodAttribute {
	c := &byteCursor{b: info}
	em := &EnclosingMethodAttribute{ClassIndex: c.u2(), MethodIndex: c.u2()}
	if c.bad {
		return nil
	}
	return em
}

func parseMethodParametersAttribute(info []byte) *MethodParametersAttribute {
	c := &byteCursor{b: info}
	n := int(c.u1())
	mp := &MethodParametersAttribute{Parameters: make([]MethodParameter, 0, n)}
	for i := 0; i < n; i++ {
		mp.Parameters = append(mp.Parameters, MethodParameter{
			NameIndex:   c.u2(),
			AccessFlags: AccessFlags(c.u2()),
		})
	}
	if c.bad {
		return nil
	}
	return mp
}
