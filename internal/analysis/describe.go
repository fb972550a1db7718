package analysis

import (
	"fmt"

	"modelc/internal/graph"
	"modelc/internal/model"
)

// State is the binding state of an element.
type State string

const (
	StateUnbound   State = "unbound"
	StateBound     State = "bound"
	StateValidated State = "validated"
)

func stateOf(n *graph.Node) State {
	switch {
	case n.Validated:
		return StateValidated
	case n.Bound:
		return StateBound
	}
	return StateUnbound
}

// Description is a printable summary of one element.
type Description struct {
	Path       string
	Kind       graph.Kind
	Source     string
	State      State
	Dependents []string
	// Descriptor and Signature are set for bound functions.
	Descriptor string
	Signature  string
}

// Describe summarizes every element registered under the qualified path.
func (a *Analyzer) Describe(path string) ([]Description, error) {
	ids := a.v.Lookup(path)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s: %w", path, graph.ErrNotFound)
	}
	types := model.NewTypes(a.v)
	out := make([]Description, 0, len(ids))
	for _, id := range ids {
		n := a.v.MustGet(id)
		d := Description{
			Path:   a.v.Path(id),
			Kind:   n.Kind,
			Source: n.Source,
			State:  stateOf(n),
		}
		for _, dep := range a.Dependents(id) {
			d.Dependents = append(d.Dependents, a.v.Path(dep))
		}
		if n.Kind.IsFunction() && n.Bound {
			sig, err := types.Signature(id)
			if err != nil {
				return nil, err
			}
			d.Descriptor = types.Descriptor(d.Path, sig).String()
			d.Signature = types.SignatureString(sig)
		}
		out = append(out, d)
	}
	return out, nil
}
