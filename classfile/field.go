package classfile

type FieldInfo struct {
	AccessFlags     AccessFlags
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []AttributeInfo
}

func (f *FieldInfo) Name(cp ConstantPool) string {
	return cp.GetUtf8(f.NameIndex)
}

func (f *FieldInfo) Descriptor(cp ConstantPool) string {
	return cp.GetUtf8(f.DescriptorIndex)
}

func (f *FieldInfo) GetAttribute(cp ConstantPool, name string) *AttributeInfo {
	for i := range f.Attributes {
		if cp.GetUtf8(f.Attributes[i].NameIndex) == name {
			return &f.Attributes[i]
		}
	}
	return nil
}

func (f *FieldInfo) IsStatic() bool { return f.AccessFlags.IsStatic() }

// ConstantValue returns the constant pool index of a static final
// initializer, or zero.
func (f *FieldInfo) ConstantValue(cp ConstantPool) uint16 {
	if cv := f.GetAttribute(cp, AttrConstantValue).AsConstantValue(); cv != nil {
		return cv.ConstantValueIndex
	}
	return 0
}

func (f *FieldInfo) IsSyntheticMember(cp ConstantPool) bool {
	return f.AccessFlags.IsSynthetic() || f.GetAttribute(cp, AttrSynthetic) != nil
}
