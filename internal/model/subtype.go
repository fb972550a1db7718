package model

import (
	"modelc/internal/graph"
)

// Supertypes returns the direct generalizations of raw with the class type
// parameters substituted by args.
func (t *Types) Supertypes(raw graph.NodeID, args []GenericType) ([]GenericType, error) {
	if err := t.require(raw); err != nil {
		return nil, err
	}
	n, ok := t.v.Get(raw)
	if !ok {
		return nil, nil
	}
	b := t.ClassBindings(raw, args, nil)
	var out []GenericType
	for _, gid := range n.Refs(PropGeneralizations) {
		g, err := t.ReadType(gid)
		if err != nil {
			return nil, err
		}
		out = append(out, b.Substitute(g))
	}
	return out, nil
}

// ClassBindings binds the type and multiplicity parameters declared by a
// class to the given arguments.
func (t *Types) ClassBindings(class graph.NodeID, args []GenericType, mults []Multiplicity) *Bindings {
	b := NewBindings()
	n, ok := t.v.Get(class)
	if !ok {
		return b
	}
	for i, pid := range n.Refs(PropTypeParameters) {
		if i >= len(args) {
			break
		}
		b.Types[ParamRef{Name: t.v.MustGet(pid).Name, Owner: class}] = args[i]
	}
	for i, pid := range n.Refs(PropMultiplicityParameters) {
		if i >= len(mults) {
			break
		}
		b.Mults[ParamRef{Name: t.v.MustGet(pid).Name, Owner: class}] = mults[i]
	}
	return b
}

// IsSubtype reports whether every value of sub is a value of sup. Free
// parameters are rigid: they are only related to themselves, Any and Nil.
func (t *Types) IsSubtype(sub, sup GenericType) (bool, error) {
	return t.isSubtype(sub, sup, make(map[graph.NodeID]bool))
}

func (t *Types) isSubtype(sub, sup GenericType, seen map[graph.NodeID]bool) (bool, error) {
	if t.IsAny(sup) || t.IsNil(sub) {
		return true, nil
	}
	if sub.Param != nil || sup.Param != nil {
		return sub.Equal(sup), nil
	}
	if sub.Func != nil || sup.Func != nil {
		if sub.Func == nil || sup.Func == nil {
			return false, nil
		}
		return t.isSubFunction(*sub.Func, *sup.Func)
	}
	if sub.Raw == sup.Raw {
		if len(sub.Args) == 0 || len(sup.Args) == 0 {
			return true, nil
		}
		if len(sub.Args) != len(sup.Args) {
			return false, nil
		}
		for i := range sub.Args {
			ok, err := t.isSubtype(sub.Args[i], sup.Args[i], seen)
			if err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	}
	if seen[sub.Raw] {
		return false, nil
	}
	seen[sub.Raw] = true
	supers, err := t.Supertypes(sub.Raw, sub.Args)
	if err != nil {
		return false, err
	}
	for _, s := range supers {
		ok, err := t.isSubtype(s, sup, seen)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// isSubFunction is contravariant in parameters and covariant in the return.
func (t *Types) isSubFunction(sub, sup FunctionType) (bool, error) {
	if len(sub.Params) != len(sup.Params) {
		return false, nil
	}
	for i := range sub.Params {
		ok, err := t.IsSubtype(sup.Params[i].Type, sub.Params[i].Type)
		if err != nil || !ok {
			return ok, err
		}
		if !sub.Params[i].Mult.Contains(sup.Params[i].Mult) {
			return false, nil
		}
	}
	if !sup.ReturnMult.Contains(sub.ReturnMult) {
		return false, nil
	}
	return t.IsSubtype(sub.Return, sup.Return)
}

// Related reports whether either type is a subtype of the other.
func (t *Types) Related(a, b GenericType) (bool, error) {
	ok, err := t.IsSubtype(a, b)
	if err != nil || ok {
		return ok, err
	}
	return t.IsSubtype(b, a)
}

// CommonSupertype returns the most specific type both a and b conform to,
// falling back to Any.
func (t *Types) CommonSupertype(a, b GenericType) (GenericType, error) {
	if ok, err := t.IsSubtype(a, b); err != nil || ok {
		return b, err
	}
	if ok, err := t.IsSubtype(b, a); err != nil || ok {
		return a, err
	}
	if a.Raw == 0 || a.Param != nil {
		return t.Any(), nil
	}
	// Breadth-first over a's supertypes; the first one b conforms to wins.
	queue := []GenericType{a}
	seen := map[graph.NodeID]bool{a.Raw: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		supers, err := t.Supertypes(cur.Raw, cur.Args)
		if err != nil {
			return GenericType{}, err
		}
		for _, s := range supers {
			if s.Raw == 0 || seen[s.Raw] {
				continue
			}
			seen[s.Raw] = true
			ok, err := t.IsSubtype(b, s)
			if err != nil {
				return GenericType{}, err
			}
			if ok {
				return s, nil
			}
			queue = append(queue, s)
		}
	}
	return t.Any(), nil
}
