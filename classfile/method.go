package classfile

type MethodInfo struct {
	AccessFlags     AccessFlags
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []AttributeInfo
}

func (m *MethodInfo) Name(cp ConstantPool) string {
	return cp.GetUtf8(m.NameIndex)
}

func (m *MethodInfo) Descriptor(cp ConstantPool) string {
	return cp.GetUtf8(m.DescriptorIndex)
}

func (m *MethodInfo) GetAttribute(cp ConstantPool, name string) *AttributeInfo {
	for i := range m.Attributes {
		if cp.GetUtf8(m.Attributes[i].NameIndex) == name {
			return &m.Attributes[i]
		}
	}
	return nil
}

func (m *MethodInfo) GetCodeAttribute(cp ConstantPool) *CodeAttribute {
	attr := m.GetAttribute(cp, "Code")
	if attr == nil {
		return nil
	}
	return attr.AsCode()
}

// ParameterNames returns the names recorded in the MethodParameters
// attribute. Unnamed entries are empty strings.
func (m *MethodInfo) ParameterNames(cp ConstantPool) []string {
	mp := m.GetAttribute(cp, AttrMethodParameters).AsMethodParameters()
	if mp == nil {
		return nil
	}
	names := make([]string, len(mp.Parameters))
	for i, p := range mp.Parameters {
		names[i] = cp.GetUtf8(p.NameIndex)
	}
	return names
}

func (m *MethodInfo) IsSyntheticMember(cp ConstantPool) bool {
	return m.AccessFlags.IsSynthetic() || m.GetAttribute(cp, AttrSynthetic) != nil
}

// Key identifies a method within its class.
func (m *MethodInfo) Key(cp ConstantPool) string {
	return m.Name(cp) + " " + m.Descriptor(cp)
}
