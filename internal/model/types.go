package model

import (
	"modelc/internal/graph"
)

// ParamRef names a type or multiplicity parameter together with the element
// (function or class) that declares it.
type ParamRef struct {
	Name  string
	Owner graph.NodeID
}

// GenericType is the value form of a GenericType node. Exactly one of Raw,
// Param or Func is set.
type GenericType struct {
	Raw      graph.NodeID
	Args     []GenericType
	MultArgs []Multiplicity
	Param    *ParamRef
	Func     *FunctionType
}

func Concrete(raw graph.NodeID, args ...GenericType) GenericType {
	return GenericType{Raw: raw, Args: args}
}

func TypeParam(name string, owner graph.NodeID) GenericType {
	return GenericType{Param: &ParamRef{Name: name, Owner: owner}}
}

func (g GenericType) IsParam() bool { return g.Param != nil }

func (g GenericType) IsZero() bool { return g.Raw == 0 && g.Param == nil && g.Func == nil }

// HasParams reports whether any free parameter occurs in g.
func (g GenericType) HasParams() bool {
	if g.Param != nil {
		return true
	}
	for _, a := range g.Args {
		if a.HasParams() {
			return true
		}
	}
	for _, m := range g.MultArgs {
		if m.Param != nil {
			return true
		}
	}
	if g.Func != nil {
		return g.Func.HasParams()
	}
	return false
}

func (g GenericType) Equal(o GenericType) bool {
	switch {
	case g.Param != nil || o.Param != nil:
		return g.Param != nil && o.Param != nil && *g.Param == *o.Param
	case g.Func != nil || o.Func != nil:
		return g.Func != nil && o.Func != nil && g.Func.Equal(*o.Func)
	}
	if g.Raw != o.Raw || len(g.Args) != len(o.Args) || len(g.MultArgs) != len(o.MultArgs) {
		return false
	}
	for i := range g.Args {
		if !g.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	for i := range g.MultArgs {
		if !g.MultArgs[i].Equal(o.MultArgs[i]) {
			return false
		}
	}
	return true
}

// Param is one declared parameter of a function type.
type Param struct {
	Name string
	Type GenericType
	Mult Multiplicity
}

// FunctionType is an ordered parameter list plus a return type and
// multiplicity.
type FunctionType struct {
	Params     []Param
	Return     GenericType
	ReturnMult Multiplicity
}

func (f FunctionType) HasParams() bool {
	for _, p := range f.Params {
		if p.Type.HasParams() || p.Mult.Param != nil {
			return true
		}
	}
	return f.Return.HasParams() || f.ReturnMult.Param != nil
}

func (f FunctionType) Equal(o FunctionType) bool {
	if len(f.Params) != len(o.Params) {
		return false
	}
	for i := range f.Params {
		if !f.Params[i].Type.Equal(o.Params[i].Type) || !f.Params[i].Mult.Equal(o.Params[i].Mult) {
			return false
		}
	}
	return f.Return.Equal(o.Return) && f.ReturnMult.Equal(o.ReturnMult)
}

// Signature is the declared shape of a function element.
type Signature struct {
	Fn         graph.NodeID
	Name       string
	TypeParams []ParamRef
	MultParams []ParamRef
	FunctionType
}

// Bindings maps free parameters to the values they were bound to.
type Bindings struct {
	Types map[ParamRef]GenericType
	Mults map[ParamRef]Multiplicity
}

func NewBindings() *Bindings {
	return &Bindings{
		Types: make(map[ParamRef]GenericType),
		Mults: make(map[ParamRef]Multiplicity),
	}
}

func (b *Bindings) Clone() *Bindings {
	c := NewBindings()
	for k, v := range b.Types {
		c.Types[k] = v
	}
	for k, v := range b.Mults {
		c.Mults[k] = v
	}
	return c
}

// Substitute replaces bound parameters in g. Unbound parameters stay.
func (b *Bindings) Substitute(g GenericType) GenericType {
	if b == nil {
		return g
	}
	if g.Param != nil {
		if v, ok := b.Types[*g.Param]; ok {
			return v
		}
		return g
	}
	out := GenericType{Raw: g.Raw}
	for _, a := range g.Args {
		out.Args = append(out.Args, b.Substitute(a))
	}
	for _, m := range g.MultArgs {
		out.MultArgs = append(out.MultArgs, b.SubstituteMult(m))
	}
	if g.Func != nil {
		f := b.SubstituteFunc(*g.Func)
		out.Func = &f
	}
	return out
}

func (b *Bindings) SubstituteMult(m Multiplicity) Multiplicity {
	if b == nil || m.Param == nil {
		return m
	}
	if v, ok := b.Mults[*m.Param]; ok {
		return v
	}
	return m
}

func (b *Bindings) SubstituteFunc(f FunctionType) FunctionType {
	out := FunctionType{
		Return:     b.Substitute(f.Return),
		ReturnMult: b.SubstituteMult(f.ReturnMult),
	}
	for _, p := range f.Params {
		out.Params = append(out.Params, Param{Name: p.Name, Type: b.Substitute(p.Type), Mult: b.SubstituteMult(p.Mult)})
	}
	return out
}
