package model

import (
	"modelc/internal/graph"
)

// Primitive type names created in the root package.
const (
	Any     = "Any"
	Nil     = "Nil"
	String  = "String"
	Boolean = "Boolean"
	Number  = "Number"
	Integer = "Integer"
	Float   = "Float"
	Date    = "Date"
)

var primitiveSupers = []struct {
	name  string
	super string
}{
	{Any, ""},
	{Nil, ""},
	{String, ""},
	{Boolean, ""},
	{Number, ""},
	{Integer, Number},
	{Float, Number},
	{Date, ""},
}

// Bootstrap creates the primitive types if they are missing. It is a no-op
// on a graph that already holds them.
func Bootstrap(v *graph.View) error {
	t := NewTypes(v)
	if t.Primitive(Any) != 0 {
		return nil
	}
	ids := make(map[string]graph.NodeID, len(primitiveSupers))
	for _, p := range primitiveSupers {
		n := v.Create(graph.KindPrimitiveType, p.name, graph.RootID, "")
		n.Bound, n.Validated = true, true
		v.AddChild(graph.RootID, n.ID)
		ids[p.name] = n.ID
	}
	for _, p := range primitiveSupers {
		if p.super == "" {
			continue
		}
		gid, err := t.WriteType(ids[p.name], Concrete(ids[p.super]), "")
		if err != nil {
			return err
		}
		n, err := v.Mutable(ids[p.name])
		if err != nil {
			return err
		}
		n.Append(PropGeneralizations, graph.RefValue(gid))
	}
	return nil
}

// LiteralPrimitive maps a literal type to its primitive type name.
func LiteralPrimitive(t graph.LiteralType) string {
	switch t {
	case graph.LiteralInteger:
		return Integer
	case graph.LiteralFloat:
		return Float
	case graph.LiteralBoolean:
		return Boolean
	default:
		return String
	}
}
