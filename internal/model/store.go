package model

import (
	"errors"
	"fmt"
	"strconv"

	"modelc/internal/graph"
)

// ErrUnbound is returned when a node still carries name placeholders.
var ErrUnbound = errors.New("model: node is not bound")

// Types reads and writes the value-level type model through a view.
type Types struct {
	v *graph.View

	// Require is consulted before the declaration of a type element is
	// inspected. A non-nil error aborts the current check.
	Require func(graph.NodeID) error

	prims map[string]graph.NodeID
}

func NewTypes(v *graph.View) *Types {
	return &Types{v: v, prims: make(map[string]graph.NodeID)}
}

func (t *Types) View() *graph.View { return t.v }

// Primitive returns the id of a bootstrap primitive type.
func (t *Types) Primitive(name string) graph.NodeID {
	if id, ok := t.prims[name]; ok {
		return id
	}
	for _, id := range t.v.ByName(graph.RootID, name) {
		if n, _ := t.v.Get(id); n != nil && n.Kind == graph.KindPrimitiveType {
			t.prims[name] = id
			return id
		}
	}
	return 0
}

func (t *Types) Any() GenericType { return Concrete(t.Primitive(Any)) }
func (t *Types) Nil() GenericType { return Concrete(t.Primitive(Nil)) }

func (t *Types) IsNil(g GenericType) bool { return g.Param == nil && g.Func == nil && g.Raw == t.Primitive(Nil) }
func (t *Types) IsAny(g GenericType) bool { return g.Param == nil && g.Func == nil && g.Raw == t.Primitive(Any) }

func (t *Types) require(id graph.NodeID) error {
	if t.Require == nil || id == 0 {
		return nil
	}
	return t.Require(id)
}

// ReadType reads a bound GenericType node.
func (t *Types) ReadType(id graph.NodeID) (GenericType, error) {
	n, ok := t.v.Get(id)
	if !ok {
		return GenericType{}, fmt.Errorf("read type %d: %w", id, graph.ErrNotFound)
	}
	if fid := n.Ref(PropFunctionType); fid != 0 {
		f, err := t.ReadFunctionType(fid)
		if err != nil {
			return GenericType{}, err
		}
		return GenericType{Func: &f}, nil
	}
	if pid := n.Ref(PropTypeParameter); pid != 0 {
		p, ok := t.v.Get(pid)
		if !ok {
			return GenericType{}, fmt.Errorf("read type parameter %d: %w", pid, graph.ErrNotFound)
		}
		return TypeParam(p.Name, p.Parent), nil
	}
	raw := n.Ref(PropRawType)
	if raw == 0 {
		return GenericType{}, fmt.Errorf("read type %d: %w", id, ErrUnbound)
	}
	g := GenericType{Raw: raw}
	for _, a := range n.Refs(PropTypeArguments) {
		arg, err := t.ReadType(a)
		if err != nil {
			return GenericType{}, err
		}
		g.Args = append(g.Args, arg)
	}
	for _, m := range n.Refs(PropMultiplicityArguments) {
		mult, err := t.ReadMultiplicity(m)
		if err != nil {
			return GenericType{}, err
		}
		g.MultArgs = append(g.MultArgs, mult)
	}
	return g, nil
}

// ReadMultiplicity reads a bound Multiplicity node.
func (t *Types) ReadMultiplicity(id graph.NodeID) (Multiplicity, error) {
	n, ok := t.v.Get(id)
	if !ok {
		return Multiplicity{}, fmt.Errorf("read multiplicity %d: %w", id, graph.ErrNotFound)
	}
	if pid := n.Ref(PropMultiplicityParameter); pid != 0 {
		p, ok := t.v.Get(pid)
		if !ok {
			return Multiplicity{}, fmt.Errorf("read multiplicity parameter %d: %w", pid, graph.ErrNotFound)
		}
		return MultParam(p.Name, p.Parent), nil
	}
	if n.Has(PropMultiplicityParameterName) {
		return Multiplicity{}, fmt.Errorf("read multiplicity %d: %w", id, ErrUnbound)
	}
	lo, ok := n.Literal(PropLowerBound)
	if !ok {
		return Multiplicity{}, fmt.Errorf("read multiplicity %d: missing lower bound", id)
	}
	lower, _ := lo.Int()
	m := Multiplicity{Lower: int(lower), Upper: Many}
	if hi, ok := n.Literal(PropUpperBound); ok {
		upper, _ := hi.Int()
		m.Upper = int(upper)
	}
	return m, nil
}

// ReadFunctionType reads a FunctionType node or the signature part of a
// function element.
func (t *Types) ReadFunctionType(id graph.NodeID) (FunctionType, error) {
	n, ok := t.v.Get(id)
	if !ok {
		return FunctionType{}, fmt.Errorf("read function type %d: %w", id, graph.ErrNotFound)
	}
	var f FunctionType
	for _, pid := range n.Refs(PropParameters) {
		p, err := t.ReadVariable(pid)
		if err != nil {
			return FunctionType{}, err
		}
		f.Params = append(f.Params, p)
	}
	rt, err := t.ReadType(n.Ref(PropReturnType))
	if err != nil {
		return FunctionType{}, err
	}
	rm, err := t.ReadMultiplicity(n.Ref(PropReturnMultiplicity))
	if err != nil {
		return FunctionType{}, err
	}
	f.Return, f.ReturnMult = rt, rm
	return f, nil
}

// ReadVariable reads a declared or inferred parameter.
func (t *Types) ReadVariable(id graph.NodeID) (Param, error) {
	n, ok := t.v.Get(id)
	if !ok {
		return Param{}, fmt.Errorf("read variable %d: %w", id, graph.ErrNotFound)
	}
	typeID, multID := n.Ref(PropGenericType), n.Ref(PropMultiplicity)
	if typeID == 0 {
		typeID, multID = n.Ref(PropInferredType), n.Ref(PropInferredMultiplicity)
	}
	if typeID == 0 {
		return Param{}, fmt.Errorf("variable %q has no type: %w", n.Name, ErrUnbound)
	}
	g, err := t.ReadType(typeID)
	if err != nil {
		return Param{}, err
	}
	m, err := t.ReadMultiplicity(multID)
	if err != nil {
		return Param{}, err
	}
	return Param{Name: n.Name, Type: g, Mult: m}, nil
}

// Signature reads the declared signature of a function element.
func (t *Types) Signature(fn graph.NodeID) (Signature, error) {
	n, ok := t.v.Get(fn)
	if !ok {
		return Signature{}, fmt.Errorf("read signature %d: %w", fn, graph.ErrNotFound)
	}
	f, err := t.ReadFunctionType(fn)
	if err != nil {
		return Signature{}, fmt.Errorf("signature of %s: %w", t.v.Path(fn), err)
	}
	s := Signature{Fn: fn, Name: n.Name, FunctionType: f}
	for _, id := range n.Refs(PropTypeParameters) {
		p := t.v.MustGet(id)
		s.TypeParams = append(s.TypeParams, ParamRef{Name: p.Name, Owner: fn})
	}
	for _, id := range n.Refs(PropMultiplicityParameters) {
		p := t.v.MustGet(id)
		s.MultParams = append(s.MultParams, ParamRef{Name: p.Name, Owner: fn})
	}
	return s, nil
}

// ParamNode finds the TypeParameter or MultiplicityParameter node declared
// by owner under prop.
func (t *Types) ParamNode(owner graph.NodeID, prop, name string) graph.NodeID {
	n, ok := t.v.Get(owner)
	if !ok {
		return 0
	}
	for _, id := range n.Refs(prop) {
		if p, _ := t.v.Get(id); p != nil && p.Name == name {
			return id
		}
	}
	return 0
}

// WriteType materializes g as a bound GenericType node owned by parent.
// Raw types and parameters are linked with usages.
func (t *Types) WriteType(parent graph.NodeID, g GenericType, source string) (graph.NodeID, error) {
	n := t.v.Create(graph.KindGenericType, "", parent, source)
	n.Bound, n.Validated = true, true
	switch {
	case g.Func != nil:
		fid, err := t.WriteFunctionType(n.ID, *g.Func, source)
		if err != nil {
			return 0, err
		}
		n.Append(PropFunctionType, graph.RefValue(fid))
	case g.Param != nil:
		pid := t.ParamNode(g.Param.Owner, PropTypeParameters, g.Param.Name)
		if pid == 0 {
			return 0, fmt.Errorf("type parameter %s not declared by %d", g.Param.Name, g.Param.Owner)
		}
		if err := t.v.Link(n.ID, PropTypeParameter, pid); err != nil {
			return 0, err
		}
	default:
		if err := t.v.Link(n.ID, PropRawType, g.Raw); err != nil {
			return 0, err
		}
		for _, a := range g.Args {
			aid, err := t.WriteType(n.ID, a, source)
			if err != nil {
				return 0, err
			}
			n.Append(PropTypeArguments, graph.RefValue(aid))
		}
		for _, m := range g.MultArgs {
			mid, err := t.WriteMultiplicity(n.ID, m, source)
			if err != nil {
				return 0, err
			}
			n.Append(PropMultiplicityArguments, graph.RefValue(mid))
		}
	}
	return n.ID, nil
}

// WriteMultiplicity materializes m as a bound Multiplicity node.
func (t *Types) WriteMultiplicity(parent graph.NodeID, m Multiplicity, source string) (graph.NodeID, error) {
	n := t.v.Create(graph.KindMultiplicity, "", parent, source)
	n.Bound, n.Validated = true, true
	if m.Param != nil {
		pid := t.ParamNode(m.Param.Owner, PropMultiplicityParameters, m.Param.Name)
		if pid == 0 {
			return 0, fmt.Errorf("multiplicity parameter %s not declared by %d", m.Param.Name, m.Param.Owner)
		}
		return n.ID, t.v.Link(n.ID, PropMultiplicityParameter, pid)
	}
	SetBounds(n, m)
	return n.ID, nil
}

// SetBounds writes interval bounds onto a Multiplicity node.
func SetBounds(n *graph.Node, m Multiplicity) {
	n.Set(PropLowerBound, graph.IntValue(int64(m.Lower)))
	if m.Upper == Many {
		n.Unset(PropUpperBound)
	} else {
		n.Set(PropUpperBound, graph.IntValue(int64(m.Upper)))
	}
}

// WriteFunctionType materializes f as a FunctionType node.
func (t *Types) WriteFunctionType(parent graph.NodeID, f FunctionType, source string) (graph.NodeID, error) {
	n := t.v.Create(graph.KindFunctionType, "", parent, source)
	n.Bound, n.Validated = true, true
	for i, p := range f.Params {
		name := p.Name
		if name == "" {
			name = "p" + strconv.Itoa(i)
		}
		vn := t.v.Create(graph.KindVariable, name, n.ID, source)
		vn.Bound, vn.Validated = true, true
		tid, err := t.WriteType(vn.ID, p.Type, source)
		if err != nil {
			return 0, err
		}
		mid, err := t.WriteMultiplicity(vn.ID, p.Mult, source)
		if err != nil {
			return 0, err
		}
		vn.Set(PropGenericType, graph.RefValue(tid))
		vn.Set(PropMultiplicity, graph.RefValue(mid))
		n.Append(PropParameters, graph.RefValue(vn.ID))
	}
	rid, err := t.WriteType(n.ID, f.Return, source)
	if err != nil {
		return 0, err
	}
	mid, err := t.WriteMultiplicity(n.ID, f.ReturnMult, source)
	if err != nil {
		return 0, err
	}
	n.Set(PropReturnType, graph.RefValue(rid))
	n.Set(PropReturnMultiplicity, graph.RefValue(mid))
	return n.ID, nil
}
