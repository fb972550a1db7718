package model

import (
	"fmt"
	"strconv"
	"strings"

	"modelc/internal/graph"
)

// Many marks an unbounded upper bound.
const Many = -1

// Multiplicity is either a closed interval [Lower, Upper] (Upper may be Many)
// or a free multiplicity parameter.
type Multiplicity struct {
	Lower int
	Upper int
	Param *ParamRef
}

var (
	One      = Multiplicity{Lower: 1, Upper: 1}
	ZeroOne  = Multiplicity{Lower: 0, Upper: 1}
	ZeroMany = Multiplicity{Lower: 0, Upper: Many}
	OneMany  = Multiplicity{Lower: 1, Upper: Many}
	Zero     = Multiplicity{Lower: 0, Upper: 0}
)

func Range(lower, upper int) Multiplicity { return Multiplicity{Lower: lower, Upper: upper} }

func MultParam(name string, owner graph.NodeID) Multiplicity {
	return Multiplicity{Param: &ParamRef{Name: name, Owner: owner}}
}

func (m Multiplicity) IsParam() bool { return m.Param != nil }

func (m Multiplicity) IsMany() bool { return m.Param == nil && m.Upper == Many }

// Valid reports whether a bounded multiplicity has lower <= upper.
func (m Multiplicity) Valid() bool {
	if m.Param != nil {
		return true
	}
	if m.Lower < 0 {
		return false
	}
	return m.Upper == Many || m.Lower <= m.Upper
}

func (m Multiplicity) Equal(o Multiplicity) bool {
	if m.Param != nil || o.Param != nil {
		return m.Param != nil && o.Param != nil && *m.Param == *o.Param
	}
	return m.Lower == o.Lower && m.Upper == o.Upper
}

// Contains reports whether every cardinality allowed by o is allowed by m.
// Parameters only contain themselves.
func (m Multiplicity) Contains(o Multiplicity) bool {
	if m.Param != nil || o.Param != nil {
		return m.Equal(o)
	}
	if o.Lower < m.Lower {
		return false
	}
	if m.Upper == Many {
		return true
	}
	return o.Upper != Many && o.Upper <= m.Upper
}

// Union returns the smallest interval containing both.
func (m Multiplicity) Union(o Multiplicity) Multiplicity {
	if m.Param != nil || o.Param != nil {
		if m.Equal(o) {
			return m
		}
		return ZeroMany
	}
	r := Multiplicity{Lower: min(m.Lower, o.Lower)}
	if m.Upper == Many || o.Upper == Many {
		r.Upper = Many
	} else {
		r.Upper = max(m.Upper, o.Upper)
	}
	return r
}

// Plus is the multiplicity of concatenating a value of m with a value of o.
func (m Multiplicity) Plus(o Multiplicity) Multiplicity {
	if m.Param != nil || o.Param != nil {
		return ZeroMany
	}
	r := Multiplicity{Lower: m.Lower + o.Lower}
	if m.Upper == Many || o.Upper == Many {
		r.Upper = Many
	} else {
		r.Upper = m.Upper + o.Upper
	}
	return r
}

// Times is the multiplicity of navigating o from every value of m.
func (m Multiplicity) Times(o Multiplicity) Multiplicity {
	if m.Param != nil || o.Param != nil {
		return ZeroMany
	}
	r := Multiplicity{Lower: m.Lower * o.Lower}
	switch {
	case m.Upper == 0 || o.Upper == 0:
		r.Upper = 0
	case m.Upper == Many || o.Upper == Many:
		r.Upper = Many
	default:
		r.Upper = m.Upper * o.Upper
	}
	return r
}

// String renders the multiplicity in declaration syntax: [1], [*], [0..1],
// [1..*], [m].
func (m Multiplicity) String() string {
	return "[" + m.body() + "]"
}

func (m Multiplicity) body() string {
	switch {
	case m.Param != nil:
		return m.Param.Name
	case m.Lower == 0 && m.Upper == Many:
		return "*"
	case m.Lower == m.Upper:
		return strconv.Itoa(m.Lower)
	case m.Upper == Many:
		return strconv.Itoa(m.Lower) + "..*"
	default:
		return strconv.Itoa(m.Lower) + ".." + strconv.Itoa(m.Upper)
	}
}

// Descriptor renders the multiplicity as it appears in function descriptors.
func (m Multiplicity) Descriptor() string {
	switch {
	case m.Param != nil:
		return m.Param.Name
	case m.Lower == 1 && m.Upper == 1:
		return "1"
	case m.Lower == 0 && m.Upper == Many:
		return "MANY"
	case m.Upper == Many:
		return fmt.Sprintf("$%d_MANY$", m.Lower)
	default:
		return fmt.Sprintf("$%d_%d$", m.Lower, m.Upper)
	}
}

// ParseMultiplicity reads declaration syntax, with or without brackets:
// "1", "*", "0..1", "1..*", or a parameter name.
func ParseMultiplicity(s string) (Multiplicity, error) {
	s = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "["), "]")
	if s == "" {
		return Multiplicity{}, fmt.Errorf("empty multiplicity")
	}
	if s == "*" {
		return ZeroMany, nil
	}
	if isIdent(s) {
		return Multiplicity{Param: &ParamRef{Name: s}}, nil
	}
	lo, hi, ranged := strings.Cut(s, "..")
	lower, err := strconv.Atoi(lo)
	if err != nil {
		return Multiplicity{}, fmt.Errorf("invalid multiplicity %q", s)
	}
	m := Multiplicity{Lower: lower, Upper: lower}
	if ranged {
		if hi == "*" {
			m.Upper = Many
		} else if m.Upper, err = strconv.Atoi(hi); err != nil {
			return Multiplicity{}, fmt.Errorf("invalid multiplicity %q", s)
		}
	}
	if !m.Valid() {
		return Multiplicity{}, fmt.Errorf("invalid multiplicity %q: lower bound exceeds upper bound", s)
	}
	return m, nil
}

func parseDescriptorMultiplicity(s string) (Multiplicity, error) {
	switch {
	case s == "1":
		return One, nil
	case s == "MANY":
		return ZeroMany, nil
	case strings.HasPrefix(s, "$") && strings.HasSuffix(s, "$") && len(s) > 2:
		lo, hi, ok := strings.Cut(s[1:len(s)-1], "_")
		if !ok {
			return Multiplicity{}, fmt.Errorf("invalid descriptor multiplicity %q", s)
		}
		lower, err := strconv.Atoi(lo)
		if err != nil {
			return Multiplicity{}, fmt.Errorf("invalid descriptor multiplicity %q", s)
		}
		m := Multiplicity{Lower: lower, Upper: Many}
		if hi != "MANY" {
			if m.Upper, err = strconv.Atoi(hi); err != nil {
				return Multiplicity{}, fmt.Errorf("invalid descriptor multiplicity %q", s)
			}
		}
		return m, nil
	case isIdent(s) && isLower(s[0]):
		return Multiplicity{Param: &ParamRef{Name: s}}, nil
	}
	return Multiplicity{}, fmt.Errorf("invalid descriptor multiplicity %q", s)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || isLower(c) || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return true
}

func isLower(c byte) bool { return c >= 'a' && c <= 'z' }

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
