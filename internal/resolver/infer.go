package resolver

import (
	"errors"
	"strings"

	"modelc/internal/diag"
	"modelc/internal/graph"
	"modelc/internal/model"
)

// errNeedsContext is returned for a function reference whose name is
// overloaded and which has no expected function type to pick an overload.
var errNeedsContext = errors.New("function reference needs a target function type")

// inferDeferred types the lambda and function-reference arguments of the
// chosen candidate. An argument is ready once the declared parameter types
// of its function type are bound; its return type then flows back into the
// bindings. Arguments not ready are retried in later passes.
func (r *Resolver) inferDeferred(a *attempt, args []*argument, sc *scope, pos *graph.SourceInformation) error {
	var pending []int
	for i, arg := range args {
		if !arg.typed {
			pending = append(pending, i)
		}
	}
	for pass := 0; len(pending) > 0 && pass < r.opts.MaxLambdaPasses; pass++ {
		var next []int
		for _, i := range pending {
			declared := *a.sig.Params[i].Type.Func
			if !a.u.paramsReady(declared) {
				next = append(next, i)
				continue
			}
			want := a.u.b.SubstituteFunc(declared)
			for _, p := range declared.Params {
				a.u.fix(p.Type)
				a.u.fixMult(p.Mult)
			}
			s, err := r.typeWithContext(args[i], sc, &want)
			if err != nil {
				return err
			}
			got := s.typ.Func
			ok, err := a.u.unify(declared.Return, got.Return)
			if err != nil {
				return err
			}
			if !ok || !a.u.unifyMult(declared.ReturnMult, got.ReturnMult) {
				return r.conflict(a.sig, i,
					slot{typ: got.Return, mult: got.ReturnMult},
					slot{typ: a.u.b.Substitute(declared.Return), mult: a.u.b.SubstituteMult(declared.ReturnMult)}, pos)
			}
			args[i].slot, args[i].typed = s, true
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	if len(pending) > 0 {
		return diag.Newf(diag.InferenceConflict, pos,
			"Can't infer the parameter types of the function passed as parameter %d to %s",
			pending[0]+1, r.types.SignatureString(a.sig))
	}
	return nil
}

func (u *unifier) paramsReady(f model.FunctionType) bool {
	for _, p := range f.Params {
		if u.open(p.Type) || u.unboundMult(p.Mult.Param) {
			return false
		}
	}
	return true
}

func (r *Resolver) typeWithContext(a *argument, sc *scope, want *model.FunctionType) (slot, error) {
	n := r.v.MustGet(a.id)
	if n.Kind == graph.KindLambdaFunction {
		return r.lambda(n, sc, want)
	}
	return r.funcRef(n, sc, want)
}

func (r *Resolver) lambdaTyped(n *graph.Node) bool {
	for _, p := range n.Refs(model.PropParameters) {
		if !r.v.MustGet(p).Has(model.PropGenericType) {
			return false
		}
	}
	return true
}

// lambda checks a lambda body. Untyped parameters take their types from
// want; without it they cannot be inferred.
func (r *Resolver) lambda(n *graph.Node, sc *scope, want *model.FunctionType) (slot, error) {
	if s, ok := r.cached(n); ok {
		return s, nil
	}
	inner := sc.child()
	var ft model.FunctionType
	for i, pid := range n.Refs(model.PropParameters) {
		p := r.v.MustGet(pid)
		var param model.Param
		switch {
		case p.Has(model.PropGenericType):
			if err := r.bindTyped(pid, sc.owners(), sc.imports); err != nil {
				return slot{}, err
			}
			v, err := r.types.ReadVariable(pid)
			if err != nil {
				return slot{}, err
			}
			param = v
		case want != nil && i < len(want.Params):
			param = model.Param{Name: p.Name, Type: want.Params[i].Type, Mult: want.Params[i].Mult}
			if err := r.inferVariable(pid, param); err != nil {
				return slot{}, err
			}
		default:
			return slot{}, diag.Newf(diag.InferenceConflict, n.Pos, "Can't infer the type of the lambda parameter '%s'", p.Name)
		}
		inner.define(p.Name, slot{typ: param.Type, mult: param.Mult})
		ft.Params = append(ft.Params, param)
	}
	last, err := r.sequence(n.Refs(model.PropExpressionSequence), inner)
	if err != nil {
		return slot{}, err
	}
	ft.Return, ft.ReturnMult = last.typ, last.mult
	s := slot{typ: model.GenericType{Func: &ft}, mult: model.One}
	return s, r.settle(n.ID, s)
}

// inferVariable records the inferred type of an untyped lambda parameter.
func (r *Resolver) inferVariable(id graph.NodeID, p model.Param) error {
	if err := r.clearInferred(id, model.PropInferredType, model.PropInferredMultiplicity); err != nil {
		return err
	}
	src := r.v.MustGet(id).Source
	tid, err := r.types.WriteType(id, p.Type, src)
	if err != nil {
		return err
	}
	mid, err := r.types.WriteMultiplicity(id, p.Mult, src)
	if err != nil {
		return err
	}
	n, err := r.v.Mutable(id)
	if err != nil {
		return err
	}
	n.Set(model.PropInferredType, graph.RefValue(tid))
	n.Set(model.PropInferredMultiplicity, graph.RefValue(mid))
	n.Bound = true
	return nil
}

// funcRef resolves a function reference by descriptor or by name. An
// overloaded name needs want to choose; generic targets are instantiated
// against want.
func (r *Resolver) funcRef(n *graph.Node, sc *scope, want *model.FunctionType) (slot, error) {
	if s, ok := r.cached(n); ok {
		return s, nil
	}
	label, sigs, err := r.refCandidates(n, sc)
	if err != nil {
		return slot{}, err
	}
	var fits []model.Signature
	var types []model.FunctionType
	for _, sig := range sigs {
		if want == nil {
			fits, types = append(fits, sig), append(types, sig.FunctionType)
			continue
		}
		ft, ok, err := r.instantiateRef(sig, *want)
		if err != nil {
			return slot{}, err
		}
		if ok {
			fits, types = append(fits, sig), append(types, ft)
		}
	}
	switch {
	case len(fits) == 0:
		return slot{}, diag.Newf(diag.UnmatchedFunction, n.Pos,
			"The system can't find a match for the function reference: %s", label)
	case len(fits) > 1 && want == nil:
		return slot{}, errNeedsContext
	case len(fits) > 1:
		var sb strings.Builder
		sb.WriteString("Too many matches for the function reference " + label + ":")
		for _, s := range fits {
			sb.WriteString("\n\t" + r.types.SignatureString(s))
		}
		return slot{}, diag.New(diag.TooManyMatches, n.Pos, sb.String())
	}
	if err := r.linkOnce(n.ID, model.PropFunc, fits[0].Fn); err != nil {
		return slot{}, err
	}
	s := slot{typ: model.GenericType{Func: &types[0]}, mult: model.One}
	return s, r.settle(n.ID, s)
}

// refCandidates lists the imported functions a reference can denote. A
// descriptor selects by exact signature; a name selects every overload.
func (r *Resolver) refCandidates(n *graph.Node, sc *scope) (string, []model.Signature, error) {
	if d := n.String(model.PropDescriptor); d != "" {
		pkg, last := graph.SplitPath(d)
		desc, err := model.ParseDescriptor(last)
		if err != nil {
			return d, nil, diag.Wrap(diag.Structural, n.Pos, err)
		}
		name := desc.Name
		if pkg != "" {
			name = pkg + graph.PathSeparator + desc.Name
		}
		cs, err := r.candidates(name, sc.imports)
		if err != nil {
			return d, nil, err
		}
		var out []model.Signature
		for _, s := range cs.imported {
			if r.types.Matches(desc, s) {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return d, nil, diag.Newf(diag.UnresolvedReference, n.Pos, "%s has not been defined!", d)
		}
		return d, out, nil
	}
	name := n.String(model.PropFunctionName)
	cs, err := r.candidates(name, sc.imports)
	if err != nil {
		return name, nil, err
	}
	if len(cs.imported) == 0 {
		return name, nil, diag.Newf(diag.UnresolvedReference, n.Pos, "%s has not been defined!", name)
	}
	return name, cs.imported, nil
}

// instantiateRef checks that sig accepts the parameters of want and returns
// the signature with its own parameters bound accordingly.
func (r *Resolver) instantiateRef(sig model.Signature, want model.FunctionType) (model.FunctionType, bool, error) {
	if len(sig.Params) != len(want.Params) {
		return model.FunctionType{}, false, nil
	}
	u := r.newUnifier(sig.Fn)
	for i, p := range sig.Params {
		ok, err := u.unify(p.Type, want.Params[i].Type)
		if err != nil || !ok {
			return model.FunctionType{}, false, err
		}
		if !u.unifyMult(p.Mult, want.Params[i].Mult) {
			return model.FunctionType{}, false, nil
		}
	}
	ft := model.FunctionType{
		Return:     u.instantiate(sig.Return),
		ReturnMult: u.closeMult(sig.ReturnMult),
	}
	for _, p := range sig.Params {
		ft.Params = append(ft.Params, model.Param{Name: p.Name, Type: u.instantiate(p.Type), Mult: u.closeMult(p.Mult)})
	}
	return ft, true, nil
}
