package graph

import (
	"sort"
	"strconv"
)

// NodeID addresses a node in the arena. Ids are never reused.
type NodeID uint64

// Kind is the classifier of a node.
type Kind string

const (
	KindPackage               Kind = "Package"
	KindClass                 Kind = "Class"
	KindPrimitiveType         Kind = "PrimitiveType"
	KindEnumeration           Kind = "Enumeration"
	KindEnum                  Kind = "Enum"
	KindAssociation           Kind = "Association"
	KindProperty              Kind = "Property"
	KindConcreteFunction      Kind = "ConcreteFunction"
	KindNativeFunction        Kind = "NativeFunction"
	KindTypeParameter         Kind = "TypeParameter"
	KindMultiplicityParameter Kind = "MultiplicityParameter"
	KindVariable              Kind = "Variable"
	KindGenericType           Kind = "GenericType"
	KindMultiplicity          Kind = "Multiplicity"
	KindFunctionType          Kind = "FunctionType"
	KindInstanceValue         Kind = "InstanceValue"
	KindFunctionExpression    Kind = "FunctionExpression"
	KindVariableExpression    Kind = "VariableExpression"
	KindLambdaFunction        Kind = "LambdaFunction"
	KindFunctionReference     Kind = "FunctionReference"
	KindNewInstance           Kind = "NewInstance"
	KindCast                  Kind = "Cast"
	KindPropertyAccess        Kind = "PropertyAccess"
	KindEnumValueReference    Kind = "EnumValueReference"
	KindLet                   Kind = "Let"
	KindKeyValue              Kind = "KeyValue"
	KindSource                Kind = "Source"
)

// IsPackageable reports whether nodes of this kind live directly in a package
// and take part in name lookup.
func (k Kind) IsPackageable() bool {
	switch k {
	case KindPackage, KindClass, KindPrimitiveType, KindEnumeration, KindAssociation,
		KindConcreteFunction, KindNativeFunction:
		return true
	}
	return false
}

// IsFunction reports whether the kind is a callable function definition.
func (k Kind) IsFunction() bool {
	return k == KindConcreteFunction || k == KindNativeFunction
}

// IsType reports whether the kind can be the raw type of a GenericType.
func (k Kind) IsType() bool {
	switch k {
	case KindClass, KindPrimitiveType, KindEnumeration:
		return true
	}
	return false
}

type LiteralType string

const (
	LiteralString  LiteralType = "String"
	LiteralInteger LiteralType = "Integer"
	LiteralFloat   LiteralType = "Float"
	LiteralBoolean LiteralType = "Boolean"
)

// Value is one entry of a property: either a reference to another node or a
// typed literal kept in its textual form.
type Value struct {
	Ref  NodeID      `json:"ref,omitempty"`
	Type LiteralType `json:"type,omitempty"`
	Text string      `json:"text,omitempty"`
}

func RefValue(id NodeID) Value       { return Value{Ref: id} }
func StringValue(s string) Value     { return Value{Type: LiteralString, Text: s} }
func IntValue(i int64) Value         { return Value{Type: LiteralInteger, Text: strconv.FormatInt(i, 10)} }
func BoolValue(b bool) Value         { return Value{Type: LiteralBoolean, Text: strconv.FormatBool(b)} }
func LiteralValue(t LiteralType, text string) Value {
	return Value{Type: t, Text: text}
}

func (v Value) IsRef() bool { return v.Ref != 0 }

func (v Value) Int() (int64, bool) {
	if v.Type != LiteralInteger {
		return 0, false
	}
	i, err := strconv.ParseInt(v.Text, 10, 64)
	return i, err == nil
}

func (v Value) Bool() bool {
	return v.Type == LiteralBoolean && v.Text == "true"
}

// SourceInformation locates a node in its source text.
type SourceInformation struct {
	Source    string `json:"source"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"end_line,omitempty"`
	EndColumn int    `json:"end_column,omitempty"`
}

// Usage records that Owner references this node through Owner's Property at
// position Offset. The usages stored on a node are its reverse dependencies.
type Usage struct {
	Owner    NodeID `json:"owner"`
	Property string `json:"property"`
	Offset   int    `json:"offset"`
}

// Node is a vertex of the model graph.
type Node struct {
	ID        NodeID             `json:"id"`
	Kind      Kind               `json:"kind"`
	Name      string             `json:"name,omitempty"`
	Parent    NodeID             `json:"parent,omitempty"`
	Source    string             `json:"source,omitempty"`
	Pos       *SourceInformation `json:"pos,omitempty"`
	Props     map[string][]Value `json:"props,omitempty"`
	Usages    []Usage            `json:"usages,omitempty"`
	Bound     bool               `json:"bound,omitempty"`
	Validated bool               `json:"validated,omitempty"`
}

func (n *Node) clone() *Node {
	c := *n
	if n.Pos != nil {
		p := *n.Pos
		c.Pos = &p
	}
	if n.Props != nil {
		c.Props = make(map[string][]Value, len(n.Props))
		for k, vs := range n.Props {
			c.Props[k] = append([]Value(nil), vs...)
		}
	}
	c.Usages = append([]Usage(nil), n.Usages...)
	return &c
}

// Has reports whether the property carries at least one value.
func (n *Node) Has(prop string) bool {
	return len(n.Props[prop]) > 0
}

// Ref returns the first reference held by prop, or 0.
func (n *Node) Ref(prop string) NodeID {
	for _, v := range n.Props[prop] {
		if v.IsRef() {
			return v.Ref
		}
	}
	return 0
}

// Refs returns every reference held by prop in order.
func (n *Node) Refs(prop string) []NodeID {
	var out []NodeID
	for _, v := range n.Props[prop] {
		if v.IsRef() {
			out = append(out, v.Ref)
		}
	}
	return out
}

// Literal returns the first literal value of prop.
func (n *Node) Literal(prop string) (Value, bool) {
	for _, v := range n.Props[prop] {
		if !v.IsRef() {
			return v, true
		}
	}
	return Value{}, false
}

// String returns the text of the first literal of prop.
func (n *Node) String(prop string) string {
	v, _ := n.Literal(prop)
	return v.Text
}

// Strings returns the text of every literal of prop.
func (n *Node) Strings(prop string) []string {
	var out []string
	for _, v := range n.Props[prop] {
		if !v.IsRef() {
			out = append(out, v.Text)
		}
	}
	return out
}

// Set replaces the values of prop. Only valid on nodes obtained from
// View.Create or View.Mutable.
func (n *Node) Set(prop string, values ...Value) {
	if n.Props == nil {
		n.Props = make(map[string][]Value)
	}
	if len(values) == 0 {
		delete(n.Props, prop)
		return
	}
	n.Props[prop] = append([]Value(nil), values...)
}

// Append adds a value at the end of prop and returns its offset.
func (n *Node) Append(prop string, v Value) int {
	if n.Props == nil {
		n.Props = make(map[string][]Value)
	}
	n.Props[prop] = append(n.Props[prop], v)
	return len(n.Props[prop]) - 1
}

// Unset removes prop entirely.
func (n *Node) Unset(prop string) {
	delete(n.Props, prop)
}

// RemoveRef drops every reference to id from prop.
func (n *Node) RemoveRef(prop string, id NodeID) {
	vs := n.Props[prop]
	out := vs[:0]
	for _, v := range vs {
		if v.Ref != id {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		delete(n.Props, prop)
		return
	}
	n.Props[prop] = out
}

// PropNames returns the property names in deterministic order.
func (n *Node) PropNames() []string {
	names := make([]string, 0, len(n.Props))
	for k := range n.Props {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
