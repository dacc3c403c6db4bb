package class

import (
	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/exprent"
	"github.com/dhamidi/decaf/decompiler/vars"
)

// enrichNames names parameters from the MethodParameters attribute and,
// unless that named every parameter, parameters and locals from the
// LocalVariableTable.
func (c *Context) enrichNames(cw *ClassWrapper, mw *MethodWrapper) {
	cp := cw.File.ConstantPool
	params := mw.DeclaredParams()
	named := 0
	if c.Options.UseMethodParameters {
		names := mw.Info.ParameterNames(cp)
		if len(names) == len(params) {
			for i, name := range names {
				if name == "" {
					continue
				}
				mw.Vars.SetName(vars.VarVersion{Index: params[i].Slot, Version: 1}, name)
				named++
			}
		} else if len(names) > 0 {
			log.Debugf("%s: %d parameter names for %d parameters", mw, len(names), len(params))
		}
	}
	if c.Options.UseDebugVarNames && named < len(params) {
		debugNames(cp, mw)
	}
}

// debugNames applies LocalVariableTable names. Parameters take the entry
// live at offset 0. Other slots are named only when every entry for the
// slot agrees, since references carry no offsets to pick between them.
func debugNames(cp classfile.ConstantPool, mw *MethodWrapper) {
	code := mw.Info.GetCodeAttribute(cp)
	if code == nil {
		return
	}
	lvt := code.LocalVariableTable(cp)
	if lvt == nil {
		return
	}
	isParam := make(map[int]bool)
	for _, p := range mw.Params {
		isParam[p.Slot] = true
	}

	type slotName struct {
		name, desc string
		ambiguous  bool
	}
	locals := make(map[int]*slotName)
	for _, e := range lvt.LocalVariableTable {
		slot := int(e.Index)
		name, desc := cp.GetUtf8(e.NameIndex), cp.GetUtf8(e.DescriptorIndex)
		if isParam[slot] && e.StartPC == 0 {
			v := vars.VarVersion{Index: slot, Version: 1}
			info := mw.Vars.Info(v)
			info.DebugName = name
			if info.Name == "" {
				info.Name = name
			}
			continue
		}
		if s, ok := locals[slot]; ok {
			s.ambiguous = s.ambiguous || s.name != name
			continue
		}
		locals[slot] = &slotName{name: name, desc: desc}
	}

	for _, v := range mw.Vars.Versions() {
		s, ok := locals[v.Index]
		if !ok || s.ambiguous || mw.Vars.IsStack(v.Index) {
			continue
		}
		if isParam[v.Index] && v.Version == 1 {
			continue
		}
		info := mw.Vars.Info(v)
		info.DebugName = s.name
		if info.Name == "" {
			info.Name = s.name
		}
		if info.Type.IsUnknown() {
			info.Type = exprent.FromDescriptor(s.desc)
		}
	}
}
