package exprent

import (
	"strings"

	"github.com/dhamidi/decaf/classfile"
)

type TypeKind uint8

const (
	KindUnknown TypeKind = iota
	KindVoid
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindObject
	KindNull
)

var kindNames = [...]string{
	KindUnknown: "<unknown>",
	KindVoid:    "void",
	KindBoolean: "boolean",
	KindByte:    "byte",
	KindChar:    "char",
	KindShort:   "short",
	KindInt:     "int",
	KindLong:    "long",
	KindFloat:   "float",
	KindDouble:  "double",
	KindNull:    "null",
}

// Type is a recovered value type. Class is the internal name for object
// types; Dims counts array dimensions on top of Kind/Class.
type Type struct {
	Kind  TypeKind
	Class string
	Dims  int
}

var (
	Unknown = Type{}
	Void    = Type{Kind: KindVoid}
	Boolean = Type{Kind: KindBoolean}
	Byte    = Type{Kind: KindByte}
	Char    = Type{Kind: KindChar}
	Short   = Type{Kind: KindShort}
	Int     = Type{Kind: KindInt}
	Long    = Type{Kind: KindLong}
	Float   = Type{Kind: KindFloat}
	Double  = Type{Kind: KindDouble}
	Null    = Type{Kind: KindNull}
	Object  = ObjectType("java/lang/Object")
	String  = ObjectType("java/lang/String")
)

func ObjectType(class string) Type {
	return Type{Kind: KindObject, Class: class}
}

// ConstType is the type of a constant pool value.
func ConstType(v any) Type {
	switch v.(type) {
	case int32:
		return Int
	case float32:
		return Float
	case int64:
		return Long
	case float64:
		return Double
	case string:
		return String
	}
	return Unknown
}

func ArrayOf(elem Type, dims int) Type {
	elem.Dims += dims
	return elem
}

// FromFieldType converts a parsed descriptor; nil means void.
func FromFieldType(ft *classfile.FieldType) Type {
	if ft == nil {
		return Void
	}
	var t Type
	if ft.ClassName != "" {
		t = ObjectType(ft.ClassName)
	} else {
		t = baseTypes[ft.BaseType]
	}
	t.Dims = ft.ArrayDepth
	return t
}

var baseTypes = map[string]Type{
	"boolean": Boolean, "byte": Byte, "char": Char, "short": Short,
	"int": Int, "long": Long, "float": Float, "double": Double,
}

func FromDescriptor(desc string) Type {
	if desc == "V" {
		return Void
	}
	ft := classfile.ParseFieldDescriptor(desc)
	if ft == nil {
		return Unknown
	}
	return FromFieldType(ft)
}

// FromClassRef converts a CONSTANT_Class name, which is either an internal
// class name or an array descriptor.
func FromClassRef(name string) Type {
	if strings.HasPrefix(name, "[") {
		return FromDescriptor(name)
	}
	return ObjectType(name)
}

// ReturnType is the return type of a method descriptor.
func ReturnType(desc string) Type {
	md := classfile.ParseMethodDescriptor(desc)
	if md == nil {
		return Unknown
	}
	return FromFieldType(md.ReturnType)
}

// ParamTypes lists the parameter types of a method descriptor.
func ParamTypes(desc string) []Type {
	md := classfile.ParseMethodDescriptor(desc)
	if md == nil {
		return nil
	}
	out := make([]Type, len(md.Parameters))
	for i := range md.Parameters {
		out[i] = FromFieldType(&md.Parameters[i])
	}
	return out
}

func (t Type) IsUnknown() bool { return t.Kind == KindUnknown }

func (t Type) IsWide() bool {
	return t.Dims == 0 && (t.Kind == KindLong || t.Kind == KindDouble)
}

func (t Type) IsReference() bool {
	return t.Dims > 0 || t.Kind == KindObject || t.Kind == KindNull
}

// Elem is the element type of an array type.
func (t Type) Elem() Type {
	if t.Dims == 0 {
		return Unknown
	}
	t.Dims--
	return t
}

func (t Type) String() string {
	var sb strings.Builder
	if t.Kind == KindObject {
		name := t.Class
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
		sb.WriteString(strings.ReplaceAll(name, "$", "."))
	} else {
		sb.WriteString(kindNames[t.Kind])
	}
	for i := 0; i < t.Dims; i++ {
		sb.WriteString("[]")
	}
	return sb.String()
}
