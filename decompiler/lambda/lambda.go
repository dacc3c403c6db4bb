// Package lambda finds the lambda and method reference call sites of a
// class and adds a node for each to the class tree.
package lambda

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/class"
	"github.com/dhamidi/decaf/decompiler/exprent"
)

var log = commonlog.GetLogger("decaf.lambda")

const (
	factoryClass = "java/lang/invoke/LambdaMetafactory"

	metafactoryDesc    = "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;"
	altMetafactoryDesc = "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;[Ljava/lang/Object;)Ljava/lang/invoke/CallSite;"
)

// Name derives the node name of a call site.
func Name(enclosing string, cpIndex, bootstrap int) string {
	return fmt.Sprintf("%s##Lambda_%d_%d", enclosing, cpIndex, bootstrap)
}

// factories returns the indices of bootstrap methods that link lambdas.
func factories(cf *classfile.ClassFile) map[int]classfile.BootstrapMethod {
	cp := cf.ConstantPool
	out := make(map[int]classfile.BootstrapMethod)
	for i, bm := range cf.BootstrapMethods() {
		h := cp.GetMethodHandle(bm.BootstrapMethodRef)
		if h == nil || h.ReferenceKind != classfile.RefInvokeStatic {
			continue
		}
		ref, ok := cp.Member(h.ReferenceIndex)
		if !ok || ref.Class != factoryClass {
			continue
		}
		if (ref.Name == "metafactory" && ref.Desc == metafactoryDesc) || (ref.Name == "altMetafactory" && ref.Desc == altMetafactoryDesc) {
			if len(bm.BootstrapArguments) >= 3 {
				out[i] = bm
			}
		}
	}
	return out
}

// Resolve adds a lambda node for every lambda call site in cw and links
// nodes whose call site lies in another lambda's body below that
// lambda. It reports whether any node was added.
func Resolve(c *class.Context, cw *class.ClassWrapper) bool {
	cf := cw.File
	cp := cf.ConstantPool
	bms := factories(cf)
	if len(bms) == 0 {
		return false
	}

	var added []*class.Node
	for i, mw := range cw.Methods {
		code := mw.Info.GetCodeAttribute(cp)
		if code == nil {
			continue
		}
		seq, err := classfile.Decode(code.Code)
		if err != nil {
			log.Debugf("%s: %s", mw, err)
			continue
		}
		for _, in := range seq.Instrs {
			if in.Opcode != classfile.OpInvokedynamic {
				continue
			}
			idx := in.Operand(0)
			indy := cp.GetInvokeDynamic(uint16(idx))
			if indy == nil {
				continue
			}
			bsm := int(indy.BootstrapMethodAttrIndex)
			bm, ok := bms[bsm]
			if !ok {
				continue
			}
			name := Name(cw.Name, idx, bsm)
			if _, exists := c.Tree.Lookup(name); exists {
				continue
			}
			l := describe(cw, cp, bm, indy)
			if l == nil {
				continue
			}
			l.CPIndex, l.Bootstrap = idx, bsm
			n := c.Tree.AddLambda(name, cw.Node, class.MethodRef{Class: cw.Node, Index: i}, l)
			added = append(added, n)
			if !l.IsMethodReference {
				c.Lambdas[class.ContentKey(l.ContentClass, l.ContentName, l.ContentDesc)] = n.ID
				c.Tree.Hide(class.Member{Class: cw.Node, Name: l.ContentName, Desc: l.ContentDesc})
			}
			log.Debugf("%s: %s -> %s.%s%s", mw, name, l.ContentClass, l.ContentName, l.ContentDesc)
		}
	}

	for _, n := range added {
		mw := c.Tree.Method(n.Enclosing)
		if mw == nil {
			continue
		}
		if parent, ok := c.Lambdas[class.ContentKey(mw.Class, mw.Name, mw.Desc)]; ok && parent != n.ID {
			c.Tree.Reparent(n.ID, parent)
		}
	}
	return len(added) > 0
}

// describe decodes a call site. Arguments are the erased method type,
// the implementation handle and the instantiated method type.
func describe(cw *class.ClassWrapper, cp classfile.ConstantPool, bm classfile.BootstrapMethod, indy *classfile.ConstantInvokeDynamicInfo) *class.Lambda {
	args := bm.BootstrapArguments
	h := cp.GetMethodHandle(args[1])
	if h == nil || !h.ReferenceKind.Invokes() {
		return nil
	}
	target, ok := cp.Member(h.ReferenceIndex)
	if !ok || target.Name == "" {
		return nil
	}
	method, siteDesc := cp.GetNameAndType(indy.NameAndTypeIndex)
	l := &class.Lambda{
		Interface:        exprent.ReturnType(siteDesc).Class,
		Method:           method,
		Desc:             cp.GetMethodType(args[0]),
		InstantiatedDesc: cp.GetMethodType(args[2]),
		ContentKind:      h.ReferenceKind,
	}
	l.ContentClass, l.ContentName, l.ContentDesc = target.Class, target.Name, target.Desc

	l.Captured = max(len(exprent.ParamTypes(l.ContentDesc))-len(exprent.ParamTypes(l.Desc)), 0)
	l.IsMethodReference = true
	if l.ContentClass == cw.Name {
		if ref, ok := cw.Method(l.ContentName + " " + l.ContentDesc); ok {
			content := cw.Methods[ref.Index]
			l.IsMethodReference = !content.Info.IsSyntheticMember(cp)
		}
	}
	return l
}
