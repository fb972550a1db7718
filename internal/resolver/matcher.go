package resolver

import (
	"errors"

	"modelc/internal/diag"
	"modelc/internal/graph"
	"modelc/internal/model"
)

// argument is one actual argument of a call site. Lambdas with untyped
// parameters and overloaded function references stay untyped until a
// candidate supplies their expected function type.
type argument struct {
	id    graph.NodeID
	node  *graph.Node
	typed bool
	slot  slot
}

// attempt is a candidate that survived matching of the typed arguments.
type attempt struct {
	sig model.Signature
	u   *unifier
}

// Match is the function selected for a call site together with the
// instantiated parameter values and return.
type Match struct {
	Fn         graph.NodeID
	Signature  model.Signature
	TypeArgs   []model.GenericType
	MultArgs   []model.Multiplicity
	Result     model.GenericType
	ResultMult model.Multiplicity
}

func (r *Resolver) call(n *graph.Node, sc *scope) (slot, error) {
	if s, ok := r.cached(n); ok {
		return s, nil
	}
	var args []*argument
	for _, id := range n.Refs(model.PropArguments) {
		a, err := r.argument(id, sc)
		if err != nil {
			return slot{}, err
		}
		args = append(args, a)
	}
	m, err := r.match(n.String(model.PropFunctionName), args, sc, n.Pos)
	if err != nil {
		return slot{}, err
	}
	return r.record(n, m)
}

func (r *Resolver) argument(id graph.NodeID, sc *scope) (*argument, error) {
	n := r.v.MustGet(id)
	a := &argument{id: id, node: n}
	switch n.Kind {
	case graph.KindLambdaFunction:
		if !n.Validated && !r.lambdaTyped(n) {
			return a, nil
		}
	case graph.KindFunctionReference:
		s, err := r.funcRef(n, sc, nil)
		if errors.Is(err, errNeedsContext) {
			return a, nil
		}
		if err != nil {
			return nil, err
		}
		a.slot, a.typed = s, true
		return a, nil
	}
	s, err := r.expr(id, sc)
	if err != nil {
		return nil, err
	}
	a.slot, a.typed = s, true
	return a, nil
}

// match selects the callee of a call site among the imported candidates.
// Typed arguments filter the candidates first. When several remain, the
// arguments waiting for context are typed against each of them and the
// candidates they do not fit are dropped. Specificity breaks the remaining
// ties, and the winner's typing is the one kept in the graph.
func (r *Resolver) match(name string, args []*argument, sc *scope, pos *graph.SourceInformation) (*Match, error) {
	cs, err := r.candidates(name, sc.imports)
	if err != nil {
		return nil, err
	}
	var survivors []*attempt
	for _, sig := range cs.imported {
		if len(sig.Params) != len(args) {
			continue
		}
		u := r.newUnifier(sig.Fn)
		ok, err := r.unifyTyped(u, sig, args)
		if err != nil {
			return nil, err
		}
		if ok && fitsShape(sig, args) {
			survivors = append(survivors, &attempt{sig: sig, u: u})
		}
	}

	if len(survivors) > 1 && hasUntyped(args) {
		typed, err := r.tryDeferred(survivors, args, sc, pos)
		if err != nil {
			return nil, err
		}
		if len(typed) == 0 {
			return nil, r.unmatched(name, args, cs, pos)
		}
		survivors = typed
	}

	var chosen *attempt
	switch len(survivors) {
	case 0:
		return nil, r.unmatched(name, args, cs, pos)
	case 1:
		chosen = survivors[0]
	default:
		w, ok := mostSpecific(survivors)
		if !ok {
			return nil, r.tooMany(name, args, survivors, pos)
		}
		chosen = w
	}

	if err := r.inferDeferred(chosen, args, sc, pos); err != nil {
		return nil, err
	}
	u, sig := chosen.u, chosen.sig
	m := &Match{
		Fn:         sig.Fn,
		Signature:  sig,
		Result:     u.instantiate(sig.Return),
		ResultMult: u.closeMult(sig.ReturnMult),
	}
	for _, p := range sig.TypeParams {
		m.TypeArgs = append(m.TypeArgs, u.instantiate(model.TypeParam(p.Name, p.Owner)))
	}
	for _, p := range sig.MultParams {
		m.MultArgs = append(m.MultArgs, u.closeMult(model.MultParam(p.Name, p.Owner)))
	}
	r.log.V(2).Info("call resolved", "name", name, "function", r.v.Path(sig.Fn),
		"result", r.types.SlotString(m.Result, m.ResultMult))
	return m, nil
}

func hasUntyped(args []*argument) bool {
	for _, a := range args {
		if !a.typed {
			return true
		}
	}
	return false
}

// tryDeferred types the untyped arguments against every candidate on a
// copy of its bindings and keeps the candidates for which that succeeds.
// Whatever the trial wrote below the arguments is reset afterwards.
func (r *Resolver) tryDeferred(survivors []*attempt, args []*argument, sc *scope, pos *graph.SourceInformation) ([]*attempt, error) {
	var out []*attempt
	for _, a := range survivors {
		trial := &attempt{sig: a.sig, u: a.u.clone()}
		scratch := make([]*argument, len(args))
		for i, arg := range args {
			c := *arg
			scratch[i] = &c
		}
		err := r.inferDeferred(trial, scratch, sc, pos)
		if rerr := r.resetUntyped(args); rerr != nil {
			return nil, rerr
		}
		if err != nil {
			if _, ok := diag.As(err); !ok {
				return nil, err
			}
			r.log.V(2).Info("candidate dropped", "function", r.v.Path(a.sig.Fn), "reason", err.Error())
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *Resolver) resetUntyped(args []*argument) error {
	for _, a := range args {
		if a.typed {
			continue
		}
		if err := model.ResetTree(r.v, a.id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) unifyTyped(u *unifier, sig model.Signature, args []*argument) (bool, error) {
	for i, a := range args {
		if !a.typed {
			continue
		}
		p := sig.Params[i]
		ok, err := u.unify(p.Type, a.slot.typ)
		if err != nil || !ok {
			return false, err
		}
		if !u.unifyMult(p.Mult, a.slot.mult) {
			return false, nil
		}
	}
	return true, nil
}

// fitsShape checks that every untyped argument sits at a function-typed
// parameter of the right arity.
func fitsShape(sig model.Signature, args []*argument) bool {
	for i, a := range args {
		if a.typed {
			continue
		}
		p := sig.Params[i]
		if p.Type.Func == nil || (!p.Mult.Contains(model.One) && !p.Mult.IsParam()) {
			return false
		}
		if a.node.Kind == graph.KindLambdaFunction && len(a.node.Refs(model.PropParameters)) != len(p.Type.Func.Params) {
			return false
		}
	}
	return true
}

// record writes the resolution onto the call site: the callee, the
// parameter values with usages on the parameter nodes, and the result.
func (r *Resolver) record(n *graph.Node, m *Match) (slot, error) {
	if err := r.linkOnce(n.ID, model.PropFunc, m.Fn); err != nil {
		return slot{}, err
	}
	if err := r.clearInferred(n.ID, model.PropResolvedTypeArguments, model.PropResolvedMultiplicityArguments); err != nil {
		return slot{}, err
	}
	for _, prop := range []string{model.PropTypeParameterBindings, model.PropMultiplicityParameterBindings} {
		if r.v.MustGet(n.ID).Has(prop) {
			if err := r.v.Unlink(n.ID, prop); err != nil {
				return slot{}, err
			}
		}
	}

	fn := r.v.MustGet(m.Fn)
	params := fn.Refs(model.PropTypeParameters)
	for i, g := range m.TypeArgs {
		id, err := r.types.WriteType(n.ID, g, n.Source)
		if err != nil {
			return slot{}, err
		}
		if err := r.appendRef(n.ID, model.PropResolvedTypeArguments, id); err != nil {
			return slot{}, err
		}
		if err := r.v.Link(n.ID, model.PropTypeParameterBindings, params[i]); err != nil {
			return slot{}, err
		}
	}
	mparams := fn.Refs(model.PropMultiplicityParameters)
	for i, mult := range m.MultArgs {
		id, err := r.types.WriteMultiplicity(n.ID, mult, n.Source)
		if err != nil {
			return slot{}, err
		}
		if err := r.appendRef(n.ID, model.PropResolvedMultiplicityArguments, id); err != nil {
			return slot{}, err
		}
		if err := r.v.Link(n.ID, model.PropMultiplicityParameterBindings, mparams[i]); err != nil {
			return slot{}, err
		}
	}

	s := slot{typ: m.Result, mult: m.ResultMult}
	return s, r.settle(n.ID, s)
}

func (r *Resolver) appendRef(owner graph.NodeID, prop string, target graph.NodeID) error {
	o, err := r.v.Mutable(owner)
	if err != nil {
		return err
	}
	o.Append(prop, graph.RefValue(target))
	return nil
}
