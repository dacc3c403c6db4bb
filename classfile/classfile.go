package classfile

type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool ConstantPool
	AccessFlags  AccessFlags
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []FieldInfo
	Methods      []MethodInfo
	Attributes   []AttributeInfo
}

func (cf *ClassFile) ClassName() string {
	return cf.ConstantPool.GetClassName(cf.ThisClass)
}

func (cf *ClassFile) GetField(name string) *FieldInfo {
	for i := range cf.Fields {
		if cf.Fields[i].Name(cf.ConstantPool) == name {
			return &cf.Fields[i]
		}
	}
	return nil
}

func (cf *ClassFile) GetMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name(cf.ConstantPool) == name {
			if descriptor == "" || cf.Methods[i].Descriptor(cf.ConstantPool) == descriptor {
				return &cf.Methods[i]
			}
		}
	}
	return nil
}

func (cf *ClassFile) GetAttribute(name string) *AttributeInfo {
	for i := range cf.Attributes {
		if cf.ConstantPool.GetUtf8(cf.Attributes[i].NameIndex) == name {
			return &cf.Attributes[i]
		}
	}
	return nil
}

func (cf *ClassFile) BootstrapMethods() []BootstrapMethod {
	if bm := cf.GetAttribute(AttrBootstrapMethods).AsBootstrapMethods(); bm != nil {
		return bm.BootstrapMethods
	}
	return nil
}

func (cf *ClassFile) InnerClasses() []InnerClassEntry {
	if ic := cf.GetAttribute(AttrInnerClasses).AsInnerClasses(); ic != nil {
		return ic.Classes
	}
	return nil
}

// EnclosingMethod returns the class and, when the class is declared inside
// a method body, the method name and descriptor enclosing it.
func (cf *ClassFile) EnclosingMethod() (className, name, descriptor string, ok bool) {
	em := cf.GetAttribute(AttrEnclosingMethod).AsEnclosingMethod()
	if em == nil {
		return "", "", "", false
	}
	className = cf.ConstantPool.GetClassName(em.ClassIndex)
	if em.MethodIndex != 0 {
		name, descriptor = cf.ConstantPool.GetNameAndType(em.MethodIndex)
	}
	return className, name, descriptor, true
}

func (cf *ClassFile) SourceFile() string {
	if sf := cf.GetAttribute(AttrSourceFile).AsSourceFile(); sf != nil {
		return cf.ConstantPool.GetUtf8(sf.SourceFileIndex)
	}
	return ""
}
