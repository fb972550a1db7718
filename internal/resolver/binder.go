package resolver

import (
	"fmt"

	"modelc/internal/diag"
	"modelc/internal/graph"
	"modelc/internal/model"
)

// bindType resolves the name placeholders of a GenericType node and its
// arguments. Placeholders stay on the node so it can be unbound later.
func (r *Resolver) bindType(id graph.NodeID, owners []graph.NodeID, imp Imports) error {
	n, ok := r.v.Get(id)
	if !ok {
		return fmt.Errorf("bind type %d: %w", id, graph.ErrNotFound)
	}
	if n.Bound {
		return nil
	}
	switch {
	case n.Has(model.PropFunctionType):
		if err := r.bindSlots(n.Ref(model.PropFunctionType), owners, imp); err != nil {
			return err
		}
		if err := r.markBound(n.Ref(model.PropFunctionType)); err != nil {
			return err
		}
	case n.Has(model.PropTypeParameterName):
		if !n.Has(model.PropTypeParameter) {
			name := n.String(model.PropTypeParameterName)
			pid := r.findParam(owners, model.PropTypeParameters, name)
			if pid == 0 {
				return diag.Newf(diag.UnresolvedReference, n.Pos, "%s has not been defined!", name)
			}
			if err := r.v.Link(id, model.PropTypeParameter, pid); err != nil {
				return err
			}
		}
	case n.Has(model.PropRawTypeName):
		if !n.Has(model.PropRawType) {
			raw, err := r.resolveElement(n.String(model.PropRawTypeName), imp, graph.Kind.IsType, n.Pos)
			if err != nil {
				return err
			}
			if err := r.v.Link(id, model.PropRawType, raw); err != nil {
				return err
			}
		}
		if err := r.checkArity(r.v.MustGet(id)); err != nil {
			return err
		}
		for _, a := range n.Refs(model.PropTypeArguments) {
			if err := r.bindType(a, owners, imp); err != nil {
				return err
			}
		}
		for _, m := range n.Refs(model.PropMultiplicityArguments) {
			if err := r.bindMultiplicity(m, owners); err != nil {
				return err
			}
		}
	default:
		return diag.Newf(diag.Structural, n.Pos, "type reference without a name")
	}
	return r.markBound(id)
}

func (r *Resolver) checkArity(gt *graph.Node) error {
	raw := r.v.MustGet(gt.Ref(model.PropRawType))
	want, got := len(raw.Refs(model.PropTypeParameters)), len(gt.Refs(model.PropTypeArguments))
	if want != got {
		return diag.Newf(diag.TypeMismatch, gt.Pos, "Type argument mismatch for %s (expected %d, got %d)",
			r.v.Path(raw.ID), want, got)
	}
	want, got = len(raw.Refs(model.PropMultiplicityParameters)), len(gt.Refs(model.PropMultiplicityArguments))
	if want != got {
		return diag.Newf(diag.TypeMismatch, gt.Pos, "Multiplicity argument mismatch for %s (expected %d, got %d)",
			r.v.Path(raw.ID), want, got)
	}
	return nil
}

func (r *Resolver) bindMultiplicity(id graph.NodeID, owners []graph.NodeID) error {
	n, ok := r.v.Get(id)
	if !ok {
		return fmt.Errorf("bind multiplicity %d: %w", id, graph.ErrNotFound)
	}
	if n.Bound {
		return nil
	}
	if name := n.String(model.PropMultiplicityParameterName); name != "" && !n.Has(model.PropMultiplicityParameter) {
		pid := r.findParam(owners, model.PropMultiplicityParameters, name)
		if pid == 0 {
			return diag.Newf(diag.UnresolvedReference, n.Pos, "%s has not been defined!", name)
		}
		if err := r.v.Link(id, model.PropMultiplicityParameter, pid); err != nil {
			return err
		}
	}
	return r.markBound(id)
}

// bindTyped binds the genericType and multiplicity of a variable or
// property node. Untyped lambda parameters are left alone.
func (r *Resolver) bindTyped(id graph.NodeID, owners []graph.NodeID, imp Imports) error {
	n := r.v.MustGet(id)
	if n.Bound || !n.Has(model.PropGenericType) {
		return nil
	}
	if err := r.bindType(n.Ref(model.PropGenericType), owners, imp); err != nil {
		return err
	}
	if err := r.bindMultiplicity(n.Ref(model.PropMultiplicity), owners); err != nil {
		return err
	}
	return r.markBound(id)
}

// bindSlots binds the parameters and return of a function or FunctionType.
func (r *Resolver) bindSlots(id graph.NodeID, owners []graph.NodeID, imp Imports) error {
	n := r.v.MustGet(id)
	for _, p := range n.Refs(model.PropParameters) {
		if err := r.bindTyped(p, owners, imp); err != nil {
			return err
		}
	}
	if err := r.bindType(n.Ref(model.PropReturnType), owners, imp); err != nil {
		return err
	}
	return r.bindMultiplicity(n.Ref(model.PropReturnMultiplicity), owners)
}

func (r *Resolver) bindClass(n *graph.Node, imp Imports) error {
	owners := []graph.NodeID{n.ID}
	for _, g := range n.Refs(model.PropGeneralizations) {
		if err := r.bindType(g, owners, imp); err != nil {
			return err
		}
		gt := r.v.MustGet(g)
		if raw, ok := r.v.Get(gt.Ref(model.PropRawType)); !ok || raw.Kind != graph.KindClass {
			return diag.Newf(diag.TypeMismatch, gt.Pos, "Class %s can only generalize classes", r.v.Path(n.ID))
		}
	}
	for _, p := range n.Refs(model.PropProperties) {
		if err := r.bindTyped(p, owners, imp); err != nil {
			return err
		}
	}
	return nil
}

// bindAssociation binds both ends and injects each end into the class at
// the opposite end. The injectedInto link carries the usage on the class.
func (r *Resolver) bindAssociation(n *graph.Node, imp Imports) error {
	ends := n.Refs(model.PropProperties)
	if len(ends) != 2 {
		return diag.Newf(diag.Structural, n.Pos, "association %s must declare exactly two properties", r.v.Path(n.ID))
	}
	classes := make([]graph.NodeID, 2)
	for i, p := range ends {
		if err := r.bindTyped(p, []graph.NodeID{n.ID}, imp); err != nil {
			return err
		}
		gt := r.v.MustGet(r.v.MustGet(p).Ref(model.PropGenericType))
		raw, ok := r.v.Get(gt.Ref(model.PropRawType))
		if !ok || raw.Kind != graph.KindClass {
			return diag.Newf(diag.TypeMismatch, gt.Pos, "Association %s can only be applied to classes", r.v.Path(n.ID))
		}
		classes[i] = raw.ID
	}
	for i, p := range ends {
		target := classes[1-i]
		if r.v.MustGet(p).Has(model.PropInjectedInto) {
			continue
		}
		if err := r.v.Link(p, model.PropInjectedInto, target); err != nil {
			return err
		}
		c, err := r.v.Mutable(target)
		if err != nil {
			return err
		}
		c.Append(model.PropPropertiesFromAssocs, graph.RefValue(p))
	}
	return nil
}

func (r *Resolver) findParam(owners []graph.NodeID, prop, name string) graph.NodeID {
	for _, o := range owners {
		if id := r.types.ParamNode(o, prop, name); id != 0 {
			return id
		}
	}
	return 0
}

func (r *Resolver) markBound(id graph.NodeID) error {
	if n, ok := r.v.Get(id); ok && n.Bound {
		return nil
	}
	m, err := r.v.Mutable(id)
	if err != nil {
		return err
	}
	m.Bound = true
	return nil
}

// linkOnce points a single-valued reference at target, replacing a previous
// target and keeping exactly one usage.
func (r *Resolver) linkOnce(owner graph.NodeID, prop string, target graph.NodeID) error {
	n := r.v.MustGet(owner)
	if n.Ref(prop) == target {
		return nil
	}
	if n.Has(prop) {
		if err := r.v.Unlink(owner, prop); err != nil {
			return err
		}
	}
	return r.v.Link(owner, prop, target)
}
