// Package format encodes the result of a run for the command line: a
// tab-separated line format for people and grep, and JSON and YAML
// documents for tools.
package format

import (
	"encoding"
	"sort"
	"strings"

	"github.com/dhamidi/decaf/decompiler"
	"github.com/dhamidi/decaf/decompiler/class"
	"github.com/dhamidi/decaf/decompiler/stmt"
)

type Encoder interface {
	encoding.TextMarshaler
	Encode(res *decompiler.Result) error
}

// Report is the encodable view of a run.
type Report struct {
	Nodes    []Node               `json:"nodes" yaml:"nodes"`
	Classes  []Class              `json:"classes,omitempty" yaml:"classes,omitempty"`
	Failures []decompiler.Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

type Node struct {
	Name      string     `json:"name" yaml:"name"`
	Kind      class.Kind `json:"kind" yaml:"kind"`
	Parent    string     `json:"parent,omitempty" yaml:"parent,omitempty"`
	Enclosing string     `json:"enclosing,omitempty" yaml:"enclosing,omitempty"`
	Lambda    *Lambda    `json:"lambda,omitempty" yaml:"lambda,omitempty"`
}

type Lambda struct {
	Interface       string `json:"interface" yaml:"interface"`
	Method          string `json:"method" yaml:"method"`
	Content         string `json:"content" yaml:"content"`
	Captured        int    `json:"captured" yaml:"captured"`
	MethodReference bool   `json:"methodReference,omitempty" yaml:"methodReference,omitempty"`
}

type Class struct {
	Name         string   `json:"name" yaml:"name"`
	Source       string   `json:"source,omitempty" yaml:"source,omitempty"`
	StaticInit   []Init   `json:"staticInit,omitempty" yaml:"staticInit,omitempty"`
	InstanceInit []Init   `json:"instanceInit,omitempty" yaml:"instanceInit,omitempty"`
	Methods      []Method `json:"methods,omitempty" yaml:"methods,omitempty"`
}

type Init struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

type Method struct {
	Name       string   `json:"name" yaml:"name"`
	Descriptor string   `json:"descriptor" yaml:"descriptor"`
	Status     string   `json:"status" yaml:"status"`
	Body       []string `json:"body,omitempty" yaml:"body,omitempty"`
}

// NewReport builds the report of res. Hidden members are left out.
func NewReport(res *decompiler.Result) *Report {
	r := &Report{Failures: res.Failures}
	t := res.Tree
	for _, root := range t.Roots {
		t.BFS(root, func(n *class.Node) {
			node := Node{Name: n.Name, Kind: n.Kind}
			if p := t.Node(n.Parent); p != nil {
				node.Parent = p.Name
			}
			if mw := t.Method(n.Enclosing); mw != nil {
				node.Enclosing = mw.Name + mw.Desc
			}
			if l := n.Lambda; l != nil {
				node.Lambda = &Lambda{
					Interface:       l.Interface,
					Method:          l.Method,
					Content:         l.ContentClass + "." + l.ContentName + l.ContentDesc,
					Captured:        l.Captured,
					MethodReference: l.IsMethodReference,
				}
			}
			r.Nodes = append(r.Nodes, node)
		})
	}

	for _, cw := range res.Classes {
		c := Class{Name: cw.Name, Source: cw.File.SourceFile()}
		c.StaticInit = inits(t, cw, cw.StaticInit)
		c.InstanceInit = inits(t, cw, cw.InstanceInit)
		for _, mw := range res.Visible(cw) {
			m := Method{Name: mw.Name, Descriptor: mw.Desc, Status: "abstract"}
			if mw.Root != nil {
				m.Status = mw.Status.String()
				m.Body = strings.Split(strings.TrimSuffix(stmt.Outline(mw.Root), "\n"), "\n")
			}
			c.Methods = append(c.Methods, m)
		}
		r.Classes = append(r.Classes, c)
	}
	sort.SliceStable(r.Classes, func(i, j int) bool { return r.Classes[i].Name < r.Classes[j].Name })
	return r
}

func inits(t *class.Tree, cw *class.ClassWrapper, list []class.FieldInit) []Init {
	var out []Init
	for _, fi := range list {
		if t.IsHidden(class.Member{Class: cw.Node, Name: fi.Name, Desc: fi.Desc}) {
			continue
		}
		out = append(out, Init{Name: fi.Name, Value: fi.Value.String()})
	}
	return out
}
