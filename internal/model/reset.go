package model

import "modelc/internal/graph"

// ResetTree returns every node below and including root to its unbound
// state. See Reset.
func ResetTree(v *graph.View, root graph.NodeID) error {
	for _, id := range v.Subtree(root) {
		if err := Reset(v, id); err != nil {
			return err
		}
	}
	return nil
}

// Reset removes what binding wrote on one node: resolved references with
// their usages and the inferred child nodes. Bound and Validated are
// cleared. Structural properties written by materialization stay.
func Reset(v *graph.View, id graph.NodeID) error {
	n, ok := v.Get(id)
	if !ok {
		return nil
	}
	for _, prop := range ResolvedProps {
		if n.Has(prop) {
			if err := v.Unlink(id, prop); err != nil {
				return err
			}
		}
	}
	for _, prop := range InferredProps {
		refs := v.MustGet(id).Refs(prop)
		for _, r := range refs {
			if err := v.DeleteTree(r); err != nil {
				return err
			}
		}
		if len(refs) > 0 {
			m, err := v.Mutable(id)
			if err != nil {
				return err
			}
			m.Unset(prop)
		}
	}
	if n = v.MustGet(id); !n.Bound && !n.Validated {
		return nil
	}
	m, err := v.Mutable(id)
	if err != nil {
		return err
	}
	m.Bound, m.Validated = false, false
	return nil
}
