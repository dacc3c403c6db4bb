// Package vars tracks variable identities across a method: (slot,
// version) pairs and the names, types and flags recovered for them.
package vars

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/decaf/decompiler/exprent"
)

var log = commonlog.GetLogger("decaf.vars")

// VarVersion identifies one live range of a local variable slot.
type VarVersion struct {
	Index   int
	Version int
}

func (v VarVersion) String() string { return fmt.Sprintf("%d_%d", v.Index, v.Version) }

func Of(e *exprent.VarExpr) VarVersion { return VarVersion{e.Index, e.Version} }

// Info is everything known about one variable version.
type Info struct {
	Name      string
	Type      exprent.Type
	Final     bool
	Param     bool
	DebugName string
}

// Processor is the per-method variable table.
type Processor struct {
	infos     map[VarVersion]*Info
	stack     map[int]bool
	nextStack int
}

// NewProcessor starts a table for a method with maxLocals slots. Stack
// temporaries are numbered from maxLocals upwards.
func NewProcessor(maxLocals int) *Processor {
	return &Processor{
		infos:     make(map[VarVersion]*Info),
		stack:     make(map[int]bool),
		nextStack: maxLocals,
	}
}

// Info returns the entry for v, creating it on first use.
func (p *Processor) Info(v VarVersion) *Info {
	info, ok := p.infos[v]
	if !ok {
		info = &Info{}
		p.infos[v] = info
	}
	return info
}

// Lookup returns the entry for v without creating one.
func (p *Processor) Lookup(v VarVersion) (*Info, bool) {
	info, ok := p.infos[v]
	return info, ok
}

func (p *Processor) Name(v VarVersion) string {
	if info, ok := p.infos[v]; ok && info.Name != "" {
		return info.Name
	}
	return DefaultName(v.Index)
}

func (p *Processor) SetName(v VarVersion, name string) { p.Info(v).Name = name }

func (p *Processor) Type(v VarVersion) exprent.Type {
	if info, ok := p.infos[v]; ok {
		return info.Type
	}
	return exprent.Unknown
}

func (p *Processor) SetType(v VarVersion, t exprent.Type) { p.Info(v).Type = t }

func (p *Processor) SetFinal(v VarVersion, final bool) { p.Info(v).Final = final }

func (p *Processor) IsFinal(v VarVersion) bool {
	info, ok := p.infos[v]
	return ok && info.Final
}

// NewStackVar allocates a fresh temporary slot.
func (p *Processor) NewStackVar() int {
	i := p.nextStack
	p.nextStack++
	p.stack[i] = true
	return i
}

func (p *Processor) IsStack(index int) bool { return p.stack[index] }

// NewCaptured allocates a slot standing for a final variable of an
// enclosing scope, referenced from this method under name.
func (p *Processor) NewCaptured(name string, t exprent.Type) VarVersion {
	v := VarVersion{Index: p.nextStack, Version: 1}
	p.nextStack++
	info := p.Info(v)
	info.Name = name
	info.Type = t
	info.Final = true
	return v
}

// Versions lists known versions in (index, version) order.
func (p *Processor) Versions() []VarVersion {
	out := make([]VarVersion, 0, len(p.infos))
	for v := range p.infos {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// Rekey moves the information recorded for from to to, used when version
// assignment renumbers a variable.
func (p *Processor) Rekey(from, to VarVersion) {
	if from == to {
		return
	}
	if info, ok := p.infos[from]; ok {
		if _, exists := p.infos[to]; !exists {
			c := *info
			p.infos[to] = &c
		}
	}
}

func DefaultName(index int) string { return "var" + strconv.Itoa(index) }

// RefreshNames makes names collision free: no variable keeps a name in
// reserved, and two different slots never share a name. Versions of one
// slot may share a name. Unnamed variables get their default name.
func (p *Processor) RefreshNames(reserved map[string]bool) {
	owner := make(map[string]int)
	for _, v := range p.Versions() {
		info := p.Info(v)
		name := info.Name
		if name == "" {
			name = DefaultName(v.Index)
		}
		base := name
		for n := 2; ; n++ {
			idx, taken := owner[name]
			if !reserved[name] && (!taken || idx == v.Index) {
				break
			}
			name = base + strconv.Itoa(n)
		}
		if name != info.Name && info.Name != "" {
			log.Debugf("renamed %s to %s", info.Name, name)
		}
		info.Name = name
		owner[name] = v.Index
	}
}

// Apply copies recorded names and types onto every variable reference in
// the given expressions.
func (p *Processor) Apply(list []exprent.Expr) {
	for _, e := range list {
		for _, ve := range exprent.Vars(e) {
			key := Of(ve)
			if info, ok := p.infos[key]; ok {
				if info.Name != "" {
					ve.Name = info.Name
				}
				if ve.T.IsUnknown() {
					ve.T = info.Type
				}
			}
		}
	}
}
