package resolver

import (
	"modelc/internal/graph"
	"modelc/internal/model"
)

// unifier binds the free parameters declared by owner while matching actual
// argument types against a declared signature. Parameters of other elements
// are rigid.
type unifier struct {
	r     *Resolver
	owner graph.NodeID
	b     *model.Bindings
	// fixed parameters were already pushed into a lambda's parameters and
	// may no longer be widened.
	fixed map[model.ParamRef]bool
}

func (r *Resolver) newUnifier(owner graph.NodeID) *unifier {
	return &unifier{r: r, owner: owner, b: model.NewBindings(), fixed: make(map[model.ParamRef]bool)}
}

func (u *unifier) clone() *unifier {
	c := &unifier{r: u.r, owner: u.owner, b: u.b.Clone(), fixed: make(map[model.ParamRef]bool, len(u.fixed))}
	for k := range u.fixed {
		c.fixed[k] = true
	}
	return c
}

func (u *unifier) free(p *model.ParamRef) bool { return p != nil && p.Owner == u.owner }

// unify matches actual against declared. A bound parameter is widened to
// the more general of the two types when they are related.
func (u *unifier) unify(declared, actual model.GenericType) (bool, error) {
	t := u.r.types
	if u.free(declared.Param) {
		if t.IsNil(actual) {
			return true, nil
		}
		p := *declared.Param
		prev, bound := u.b.Types[p]
		if !bound {
			u.b.Types[p] = actual
			return true, nil
		}
		if ok, err := t.IsSubtype(actual, prev); err != nil || ok {
			return ok, err
		}
		if u.fixed[p] {
			return false, nil
		}
		ok, err := t.IsSubtype(prev, actual)
		if err != nil || !ok {
			return false, err
		}
		u.b.Types[p] = actual
		return true, nil
	}
	if declared.Param != nil || t.IsAny(declared) {
		return t.IsSubtype(actual, declared)
	}
	if declared.Func != nil {
		if t.IsNil(actual) {
			return true, nil
		}
		if actual.Func == nil || len(actual.Func.Params) != len(declared.Func.Params) {
			return false, nil
		}
		for i, p := range declared.Func.Params {
			a := actual.Func.Params[i]
			if ok, err := u.unify(p.Type, a.Type); err != nil || !ok {
				return ok, err
			}
			if !u.unifyMult(p.Mult, a.Mult) {
				return false, nil
			}
		}
		if ok, err := u.unify(declared.Func.Return, actual.Func.Return); err != nil || !ok {
			return ok, err
		}
		return u.unifyMult(declared.Func.ReturnMult, actual.Func.ReturnMult), nil
	}
	if t.IsNil(actual) {
		return true, nil
	}
	if actual.Param != nil || actual.Func != nil {
		return false, nil
	}
	view, ok, err := u.r.asRaw(actual, declared.Raw)
	if err != nil || !ok {
		return false, err
	}
	if len(declared.Args) > 0 && len(view.Args) == len(declared.Args) {
		for i := range declared.Args {
			if ok, err := u.unify(declared.Args[i], view.Args[i]); err != nil || !ok {
				return ok, err
			}
		}
	}
	if len(declared.MultArgs) > 0 && len(view.MultArgs) == len(declared.MultArgs) {
		for i := range declared.MultArgs {
			if !u.unifyMult(declared.MultArgs[i], view.MultArgs[i]) {
				return false, nil
			}
		}
	}
	return true, nil
}

// unifyMult checks that actual fits the declared interval, or binds a free
// multiplicity parameter. Repeated bindings are unioned.
func (u *unifier) unifyMult(declared, actual model.Multiplicity) bool {
	if !u.free(declared.Param) {
		return declared.Contains(actual)
	}
	p := *declared.Param
	prev, bound := u.b.Mults[p]
	switch {
	case !bound:
		u.b.Mults[p] = actual
	case prev.Contains(actual):
	case u.fixed[p]:
		return false
	default:
		u.b.Mults[p] = prev.Union(actual)
	}
	return true
}

// fix freezes every parameter of owner occurring in g.
func (u *unifier) fix(g model.GenericType) {
	if u.free(g.Param) {
		u.fixed[*g.Param] = true
	}
	for _, a := range g.Args {
		u.fix(a)
	}
	for _, m := range g.MultArgs {
		u.fixMult(m)
	}
	if g.Func != nil {
		for _, p := range g.Func.Params {
			u.fix(p.Type)
			u.fixMult(p.Mult)
		}
		u.fix(g.Func.Return)
		u.fixMult(g.Func.ReturnMult)
	}
}

func (u *unifier) fixMult(m model.Multiplicity) {
	if u.free(m.Param) {
		u.fixed[*m.Param] = true
	}
}

// unbound reports whether p is a type parameter of owner with no binding
// yet. A parameter bound to itself (a recursive generic call) counts as bound.
func (u *unifier) unbound(p *model.ParamRef) bool {
	if !u.free(p) {
		return false
	}
	_, ok := u.b.Types[*p]
	return !ok
}

func (u *unifier) unboundMult(p *model.ParamRef) bool {
	if !u.free(p) {
		return false
	}
	_, ok := u.b.Mults[*p]
	return !ok
}

// open reports whether g still mentions an unbound parameter of owner.
func (u *unifier) open(g model.GenericType) bool {
	if g.Param != nil {
		return u.unbound(g.Param)
	}
	for _, a := range g.Args {
		if u.open(a) {
			return true
		}
	}
	for _, m := range g.MultArgs {
		if u.unboundMult(m.Param) {
			return true
		}
	}
	if g.Func != nil {
		for _, p := range g.Func.Params {
			if u.open(p.Type) || u.unboundMult(p.Mult.Param) {
				return true
			}
		}
		return u.open(g.Func.Return)
	}
	return false
}

// instantiate substitutes the bindings and replaces parameters of owner that are
// still unbound: types by Nil, multiplicities by [*].
func (u *unifier) instantiate(g model.GenericType) model.GenericType {
	return u.closeType(u.b.Substitute(g))
}

func (u *unifier) closeMult(m model.Multiplicity) model.Multiplicity {
	m = u.b.SubstituteMult(m)
	if u.unboundMult(m.Param) {
		return model.ZeroMany
	}
	return m
}

func (u *unifier) closeType(g model.GenericType) model.GenericType {
	if u.unbound(g.Param) {
		return u.r.types.Nil()
	}
	if g.Param != nil {
		return g
	}
	out := model.GenericType{Raw: g.Raw}
	for _, a := range g.Args {
		out.Args = append(out.Args, u.closeType(a))
	}
	for _, m := range g.MultArgs {
		out.MultArgs = append(out.MultArgs, u.closeMult(m))
	}
	if g.Func != nil {
		f := model.FunctionType{Return: u.closeType(g.Func.Return), ReturnMult: u.closeMult(g.Func.ReturnMult)}
		for _, p := range g.Func.Params {
			f.Params = append(f.Params, model.Param{Name: p.Name, Type: u.closeType(p.Type), Mult: u.closeMult(p.Mult)})
		}
		out.Func = &f
	}
	return out
}

// asRaw views actual as an instance of raw by walking its generalizations,
// substituting class parameters along the way.
func (r *Resolver) asRaw(actual model.GenericType, raw graph.NodeID) (model.GenericType, bool, error) {
	queue := []model.GenericType{actual}
	seen := map[graph.NodeID]bool{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.Raw == raw {
			return cur, true, nil
		}
		if cur.Raw == 0 || seen[cur.Raw] {
			continue
		}
		seen[cur.Raw] = true
		supers, err := r.types.Supertypes(cur.Raw, cur.Args)
		if err != nil {
			return model.GenericType{}, false, err
		}
		queue = append(queue, supers...)
	}
	return model.GenericType{}, false, nil
}
