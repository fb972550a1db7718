package model

import (
	"strings"

	"modelc/internal/graph"
)

// TypeString renders a type the way diagnostics show it: String,
// List<Person>, T, {String[1]->Boolean[1]}.
func (t *Types) TypeString(g GenericType) string {
	var sb strings.Builder
	t.writeType(&sb, g)
	return sb.String()
}

func (t *Types) writeType(sb *strings.Builder, g GenericType) {
	switch {
	case g.Param != nil:
		sb.WriteString(g.Param.Name)
	case g.Func != nil:
		sb.WriteString("{")
		for i, p := range g.Func.Params {
			if i > 0 {
				sb.WriteString(",")
			}
			t.writeType(sb, p.Type)
			sb.WriteString(p.Mult.String())
		}
		sb.WriteString("->")
		t.writeType(sb, g.Func.Return)
		sb.WriteString(g.Func.ReturnMult.String())
		sb.WriteString("}")
	case g.Raw == 0:
		sb.WriteString("?")
	default:
		sb.WriteString(t.rawName(g.Raw))
		if len(g.Args) > 0 || len(g.MultArgs) > 0 {
			sb.WriteString("<")
			for i, a := range g.Args {
				if i > 0 {
					sb.WriteString(", ")
				}
				t.writeType(sb, a)
			}
			if len(g.MultArgs) > 0 {
				sb.WriteString("|")
				for i, m := range g.MultArgs {
					if i > 0 {
						sb.WriteString(",")
					}
					sb.WriteString(m.body())
				}
			}
			sb.WriteString(">")
		}
	}
}

func (t *Types) rawName(id graph.NodeID) string {
	n, ok := t.v.Get(id)
	if !ok {
		return "?"
	}
	return n.Name
}

// SlotString renders a type with its multiplicity: String[1].
func (t *Types) SlotString(g GenericType, m Multiplicity) string {
	return t.TypeString(g) + m.String()
}

// ArgSignature renders actual arguments as _:T[m],_:T[m].
func (t *Types) ArgSignature(args []Param) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = "_:" + t.SlotString(a.Type, a.Mult)
	}
	return strings.Join(parts, ",")
}

// SignatureString renders a candidate as path(T[m], ...):R[m].
func (t *Types) SignatureString(s Signature) string {
	var sb strings.Builder
	sb.WriteString(t.v.Path(s.Fn))
	sb.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(t.SlotString(p.Type, p.Mult))
	}
	sb.WriteString("):")
	sb.WriteString(t.SlotString(s.Return, s.ReturnMult))
	return sb.String()
}
