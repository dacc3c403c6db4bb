// Package class holds the per-run class model: the node tree relating
// top-level, nested, local, anonymous and lambda classes, the wrappers
// carrying reconstructed method bodies, and the orchestrator that fills
// them.
package class

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/decaf/classfile"
	"github.com/dhamidi/decaf/decompiler/exprent"
)

var log = commonlog.GetLogger("decaf.class")

// NodeID indexes Tree.Nodes.
type NodeID int

const NoNode NodeID = exprent.NoNode

type Kind uint8

const (
	KindRoot Kind = iota
	KindMember
	KindLocal
	KindAnonymous
	KindLambda
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindMember:
		return "member"
	case KindLocal:
		return "local"
	case KindAnonymous:
		return "anonymous"
	case KindLambda:
		return "lambda"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Node is one class of the run. Parent and Children are indices into the
// owning tree. Enclosing names the method a local, anonymous or lambda
// class is defined in; its Class is NoNode when unknown.
type Node struct {
	ID         NodeID
	Kind       Kind
	Name       string
	SimpleName string
	Access     classfile.AccessFlags
	Parent     NodeID
	Children   []NodeID
	Wrapper    *ClassWrapper
	Enclosing  MethodRef
	Lambda     *Lambda

	// enclosing method as recorded in the class file, resolved by Link
	enclosingClass string
	enclosingKey   string
	outer          string
}

// IsStatic reports a nested class without an outer instance.
func (n *Node) IsStatic() bool { return n.Access.IsStatic() }

// Lambda describes a lambda or method reference synthesized from an
// invokedynamic call site.
type Lambda struct {
	// Interface is the functional interface the call site produces.
	Interface string
	// Method and Desc name the implemented interface method; Desc is
	// the erased descriptor.
	Method           string
	Desc             string
	InstantiatedDesc string

	ContentKind  classfile.MethodHandleKind
	ContentClass string
	ContentName  string
	ContentDesc  string

	CPIndex   int
	Bootstrap int

	// Captured counts the leading content parameters bound at the call
	// site.
	Captured          int
	IsMethodReference bool
	Captures          []*Capture
}

// ContentStatic reports whether the implementation method takes no
// receiver.
func (l *Lambda) ContentStatic() bool {
	return l.ContentKind == classfile.RefInvokeStatic || l.ContentKind == classfile.RefNewInvokeSpecial
}

// Member addresses a field or method for the hidden-member set.
type Member struct {
	Class NodeID
	Name  string
	Desc  string
}

func (m Member) String() string { return fmt.Sprintf("#%d.%s%s", m.Class, m.Name, m.Desc) }

// Tree is the arena of class nodes for one run.
type Tree struct {
	Nodes  []*Node
	Roots  []NodeID
	Hidden map[Member]bool

	byName map[string]NodeID
}

func NewTree() *Tree {
	return &Tree{Hidden: make(map[Member]bool), byName: make(map[string]NodeID)}
}

func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.Nodes) {
		return nil
	}
	return t.Nodes[id]
}

// Lookup finds a node by internal class name.
func (t *Tree) Lookup(name string) (*Node, bool) {
	id, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.Nodes[id], true
}

func (t *Tree) add(n *Node) *Node {
	n.ID = NodeID(len(t.Nodes))
	n.Parent = NoNode
	n.Enclosing = MethodRef{Class: NoNode}
	t.Nodes = append(t.Nodes, n)
	t.byName[n.Name] = n.ID
	return n
}

// AddClass creates the node for a parsed class. Its kind and place in the
// tree are settled by Link once every class of the run is known.
func (t *Tree) AddClass(cf *classfile.ClassFile) *Node {
	name := cf.ClassName()
	n := t.add(&Node{Kind: KindRoot, Name: name, SimpleName: simpleName(name), Access: cf.AccessFlags})
	for _, ic := range cf.InnerClasses() {
		if cf.ConstantPool.GetClassName(ic.InnerClassInfoIndex) != name {
			continue
		}
		n.Access = ic.InnerClassAccessFlags
		switch {
		case ic.OuterClassInfoIndex != 0:
			n.Kind = KindMember
			n.outer = cf.ConstantPool.GetClassName(ic.OuterClassInfoIndex)
		case ic.InnerNameIndex == 0:
			n.Kind = KindAnonymous
		default:
			n.Kind = KindLocal
		}
		if ic.InnerNameIndex != 0 {
			n.SimpleName = cf.ConstantPool.GetUtf8(ic.InnerNameIndex)
		} else {
			n.SimpleName = ""
		}
	}
	if class, mname, mdesc, ok := cf.EnclosingMethod(); ok {
		n.enclosingClass = class
		if mname != "" {
			n.enclosingKey = mname + " " + mdesc
		}
		if n.outer == "" {
			n.outer = class
		}
	}
	n.Wrapper = NewClassWrapper(n.ID, cf)
	return n
}

// AddLambda creates a lambda node below the class defining it.
func (t *Tree) AddLambda(name string, parent NodeID, enclosing MethodRef, l *Lambda) *Node {
	n := t.add(&Node{Kind: KindLambda, Name: name, SimpleName: simpleName(name), Lambda: l})
	n.Enclosing = enclosing
	t.setParent(n.ID, parent)
	return n
}

// Link wires parents and enclosing methods. Nested classes whose outer
// class is not part of the run become roots.
func (t *Tree) Link() {
	t.Roots = t.Roots[:0]
	for _, n := range t.Nodes {
		if n.Kind == KindLambda {
			continue
		}
		parent, ok := t.Lookup(n.outer)
		if n.Kind == KindRoot || !ok {
			if n.Kind != KindRoot {
				log.Debugf("%s: outer class %q not loaded", n.Name, n.outer)
			}
			t.Roots = append(t.Roots, n.ID)
			continue
		}
		t.setParent(n.ID, parent.ID)
		if n.enclosingKey == "" {
			continue
		}
		if owner, ok := t.Lookup(n.enclosingClass); ok && owner.Wrapper != nil {
			if ref, ok := owner.Wrapper.Method(n.enclosingKey); ok {
				n.Enclosing = ref
			}
		}
	}
}

func (t *Tree) setParent(child, parent NodeID) {
	c := t.Nodes[child]
	if c.Parent == parent {
		return
	}
	if old := t.Node(c.Parent); old != nil {
		for i, id := range old.Children {
			if id == child {
				old.Children = append(old.Children[:i], old.Children[i+1:]...)
				break
			}
		}
	}
	c.Parent = parent
	if p := t.Node(parent); p != nil {
		p.Children = append(p.Children, child)
	}
}

// Reparent moves a node below a new parent.
func (t *Tree) Reparent(child, parent NodeID) { t.setParent(child, parent) }

// Root returns the outermost ancestor of id.
func (t *Tree) Root(id NodeID) NodeID {
	for {
		n := t.Node(id)
		if n == nil || n.Parent == NoNode {
			return id
		}
		id = n.Parent
	}
}

// BFS visits the subtree rooted at id breadth first.
func (t *Tree) BFS(id NodeID, fn func(*Node)) {
	queue := []NodeID{id}
	for len(queue) > 0 {
		n := t.Node(queue[0])
		queue = queue[1:]
		if n == nil {
			continue
		}
		fn(n)
		queue = append(queue, n.Children...)
	}
}

// Method resolves a method reference.
func (t *Tree) Method(ref MethodRef) *MethodWrapper {
	n := t.Node(ref.Class)
	if n == nil || n.Wrapper == nil || ref.Index < 0 || ref.Index >= len(n.Wrapper.Methods) {
		return nil
	}
	return n.Wrapper.Methods[ref.Index]
}

// FindMethod resolves a method by owner class name, name and descriptor.
func (t *Tree) FindMethod(owner, name, desc string) (*MethodWrapper, bool) {
	n, ok := t.Lookup(owner)
	if !ok || n.Wrapper == nil {
		return nil, false
	}
	ref, ok := n.Wrapper.Method(name + " " + desc)
	if !ok {
		return nil, false
	}
	return n.Wrapper.Methods[ref.Index], true
}

func (t *Tree) Hide(m Member) {
	if !t.Hidden[m] {
		log.Debugf("hiding %s", m)
	}
	t.Hidden[m] = true
}

func (t *Tree) IsHidden(m Member) bool { return t.Hidden[m] }

// Outline renders the tree one node per line, indented by depth.
func (t *Tree) Outline() string {
	var sb strings.Builder
	var visit func(id NodeID, depth int)
	visit = func(id NodeID, depth int) {
		n := t.Nodes[id]
		fmt.Fprintf(&sb, "%s%s %s", strings.Repeat("  ", depth), n.Kind, n.Name)
		if m := t.Method(n.Enclosing); m != nil {
			fmt.Fprintf(&sb, " in %s", m.Name)
		}
		sb.WriteByte('\n')
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, id := range t.Roots {
		visit(id, 0)
	}
	return sb.String()
}

func simpleName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '$'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
