package classfile

// ConstantPoolEntry is one constant pool slot. The pool is stored without
// the unused slot 0, so index i lives at cp[i-1]; the slot after a long or
// double is nil.
type ConstantPoolEntry interface {
	Tag() ConstantTag
}

type ConstantUtf8Info struct {
	Value string
}

func (c *ConstantUtf8Info) Tag() ConstantTag { return ConstantUtf8 }

type ConstantIntegerInfo struct {
	Value int32
}

func (c *ConstantIntegerInfo) Tag() ConstantTag { return ConstantInteger }

type ConstantFloatInfo struct {
	Value float32
}

func (c *ConstantFloatInfo) Tag() ConstantTag { return ConstantFloat }

type ConstantLongInfo struct {
	Value int64
}

func (c *ConstantLongInfo) Tag() ConstantTag { return ConstantLong }

type ConstantDoubleInfo struct {
	Value float64
}

func (c *ConstantDoubleInfo) Tag() ConstantTag { return ConstantDouble }

type ConstantClassInfo struct {
	NameIndex uint16
}

func (c *ConstantClassInfo) Tag() ConstantTag { return ConstantClass }

type ConstantStringInfo struct {
	StringIndex uint16
}

func (c *ConstantStringInfo) Tag() ConstantTag { return ConstantString }

// ConstantRefInfo is a field, method or interface method reference. Kind
// is the tag it was read with.
type ConstantRefInfo struct {
	Kind             ConstantTag
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantRefInfo) Tag() ConstantTag { return c.Kind }

type ConstantNameAndTypeInfo struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndTypeInfo) Tag() ConstantTag { return ConstantNameAndType }

type ConstantMethodHandleInfo struct {
	ReferenceKind  MethodHandleKind
	ReferenceIndex uint16
}

func (c *ConstantMethodHandleInfo) Tag() ConstantTag { return ConstantMethodHandle }

type ConstantMethodTypeInfo struct {
	DescriptorIndex uint16
}

func (c *ConstantMethodTypeInfo) Tag() ConstantTag { return ConstantMethodType }

type ConstantInvokeDynamicInfo struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *ConstantInvokeDynamicInfo) Tag() ConstantTag { return ConstantInvokeDynamic }

// ConstantOpaqueInfo stands for the entries nothing resolves: dynamic
// constants, modules and packages. Their operands are skipped.
type ConstantOpaqueInfo struct {
	Kind ConstantTag
}

func (c *ConstantOpaqueInfo) Tag() ConstantTag { return c.Kind }

type ConstantPool []ConstantPoolEntry

func lookup[T ConstantPoolEntry](cp ConstantPool, index uint16) (T, bool) {
	var zero T
	if index == 0 || int(index) > len(cp) {
		return zero, false
	}
	e, ok := cp[index-1].(T)
	return e, ok
}

func (cp ConstantPool) GetUtf8(index uint16) string {
	if e, ok := lookup[*ConstantUtf8Info](cp, index); ok {
		return e.Value
	}
	return ""
}

func (cp ConstantPool) GetClassName(index uint16) string {
	if e, ok := lookup[*ConstantClassInfo](cp, index); ok {
		return cp.GetUtf8(e.NameIndex)
	}
	return ""
}

func (cp ConstantPool) GetNameAndType(index uint16) (name, descriptor string) {
	if e, ok := lookup[*ConstantNameAndTypeInfo](cp, index); ok {
		return cp.GetUtf8(e.NameIndex), cp.GetUtf8(e.DescriptorIndex)
	}
	return "", ""
}

// MemberRef is a resolved field or method reference.
type MemberRef struct {
	Class     string
	Name      string
	Desc      string
	Interface bool
}

// Member resolves a field, method or interface method reference.
func (cp ConstantPool) Member(index uint16) (MemberRef, bool) {
	e, ok := lookup[*ConstantRefInfo](cp, index)
	if !ok {
		return MemberRef{}, false
	}
	ref := MemberRef{Class: cp.GetClassName(e.ClassIndex), Interface: e.Kind == ConstantInterfaceMethodref}
	ref.Name, ref.Desc = cp.GetNameAndType(e.NameAndTypeIndex)
	return ref, true
}

// Value returns a numeric or string constant as int32, float32, int64,
// float64 or string.
func (cp ConstantPool) Value(index uint16) (any, bool) {
	if index == 0 || int(index) > len(cp) {
		return nil, false
	}
	switch e := cp[index-1].(type) {
	case *ConstantIntegerInfo:
		return e.Value, true
	case *ConstantFloatInfo:
		return e.Value, true
	case *ConstantLongInfo:
		return e.Value, true
	case *ConstantDoubleInfo:
		return e.Value, true
	case *ConstantStringInfo:
		return cp.GetUtf8(e.StringIndex), true
	}
	return nil, false
}

func (cp ConstantPool) GetMethodHandle(index uint16) *ConstantMethodHandleInfo {
	e, _ := lookup[*ConstantMethodHandleInfo](cp, index)
	return e
}

func (cp ConstantPool) GetMethodType(index uint16) string {
	if e, ok := lookup[*ConstantMethodTypeInfo](cp, index); ok {
		return cp.GetUtf8(e.DescriptorIndex)
	}
	return ""
}

func (cp ConstantPool) GetInvokeDynamic(index uint16) *ConstantInvokeDynamicInfo {
	e, _ := lookup[*ConstantInvokeDynamicInfo](cp, index)
	return e
}
