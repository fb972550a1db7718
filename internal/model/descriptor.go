package model

import (
	"fmt"
	"strings"
)

// DescriptorPart is one type/multiplicity pair of a function descriptor.
type DescriptorPart struct {
	Type string
	Mult Multiplicity
}

func (p DescriptorPart) String() string {
	return p.Type + "_" + p.Mult.Descriptor() + "_"
}

// Descriptor is the parsed form of a function descriptor such as
// f_String_1__Boolean_1_.
type Descriptor struct {
	Name   string
	Params []DescriptorPart
	Return DescriptorPart
}

func (d Descriptor) String() string {
	parts := make([]string, len(d.Params))
	for i, p := range d.Params {
		parts[i] = p.String()
	}
	return d.Name + "_" + strings.Join(parts, "_") + "_" + d.Return.String()
}

// Descriptor builds the descriptor of a signature under the given name,
// which may be simple or qualified.
func (t *Types) Descriptor(name string, s Signature) Descriptor {
	d := Descriptor{Name: name, Return: t.descriptorPart(s.Return, s.ReturnMult)}
	for _, p := range s.Params {
		d.Params = append(d.Params, t.descriptorPart(p.Type, p.Mult))
	}
	return d
}

func (t *Types) descriptorPart(g GenericType, m Multiplicity) DescriptorPart {
	var name string
	switch {
	case g.Param != nil:
		name = g.Param.Name
	case g.Func != nil:
		name = "Function"
	default:
		name = t.rawName(g.Raw)
	}
	return DescriptorPart{Type: name, Mult: m}
}

// Matches reports whether the signature renders to d, ignoring the name.
func (t *Types) Matches(d Descriptor, s Signature) bool {
	got := t.Descriptor(d.Name, s)
	return got.String() == d.String()
}

// ParseDescriptor reads a descriptor from the right. The trailing group is
// the return; the groups before it are parameters, each preceded by a single
// underscore. With no parameters the name is followed by two underscores.
func ParseDescriptor(s string) (Descriptor, error) {
	ret, before, ok := trailingGroup(s)
	if !ok || !strings.HasSuffix(before, "_") {
		return Descriptor{}, fmt.Errorf("invalid descriptor %q", s)
	}
	rest := before[:len(before)-1]

	var params []DescriptorPart
	for {
		part, before, ok := trailingGroup(rest)
		if !ok {
			break
		}
		if !strings.HasSuffix(before, "_") {
			return Descriptor{}, fmt.Errorf("invalid descriptor %q", s)
		}
		params = append([]DescriptorPart{part}, params...)
		rest = before[:len(before)-1]
	}
	if len(params) == 0 {
		if !strings.HasSuffix(rest, "_") {
			return Descriptor{}, fmt.Errorf("invalid descriptor %q", s)
		}
		rest = rest[:len(rest)-1]
	}
	if rest == "" {
		return Descriptor{}, fmt.Errorf("invalid descriptor %q: missing name", s)
	}
	return Descriptor{Name: rest, Params: params, Return: ret}, nil
}

// trailingGroup splits "...Type_mult_" into the group and the text before it.
func trailingGroup(s string) (DescriptorPart, string, bool) {
	if !strings.HasSuffix(s, "_") {
		return DescriptorPart{}, "", false
	}
	body := s[:len(s)-1]

	var multTok string
	if strings.HasSuffix(body, "$") {
		open := strings.LastIndex(body[:len(body)-1], "$")
		if open < 0 {
			return DescriptorPart{}, "", false
		}
		multTok = body[open:]
	} else {
		i := strings.LastIndex(body, "_")
		if i < 0 {
			return DescriptorPart{}, "", false
		}
		multTok = body[i+1:]
	}
	mult, err := parseDescriptorMultiplicity(multTok)
	if err != nil {
		return DescriptorPart{}, "", false
	}
	body = body[:len(body)-len(multTok)]
	if !strings.HasSuffix(body, "_") {
		return DescriptorPart{}, "", false
	}
	body = body[:len(body)-1]
	i := strings.LastIndex(body, "_")
	if i < 0 {
		return DescriptorPart{}, "", false
	}
	typeTok := body[i+1:]
	if typeTok == "" || !isIdent(typeTok) || !isUpper(typeTok[0]) {
		return DescriptorPart{}, "", false
	}
	return DescriptorPart{Type: typeTok, Mult: mult}, body[:i+1], true
}
