// Package unbind reverts bound elements to their unbound state and follows
// reverse usages so that everything depending on a changed element is
// re-bound by the next compile.
package unbind

import (
	"fmt"

	"github.com/go-logr/logr"

	"modelc/internal/graph"
	"modelc/internal/model"
	"modelc/internal/skeleton"
)

// Tracker unbinds elements inside one writable view. Elements of immutable
// sources and of sources in the removal set are never touched.
type Tracker struct {
	v        *graph.View
	log      logr.Logger
	removing map[string]bool
}

// New creates a tracker over v. removing names the sources being deleted by
// the same edit; their nodes are discarded wholesale by the caller.
func New(v *graph.View, removing []string, log logr.Logger) *Tracker {
	t := &Tracker{v: v, log: log, removing: make(map[string]bool, len(removing))}
	for _, s := range removing {
		t.removing[s] = true
	}
	return t
}

// InScope reports whether el may be unbound by this tracker.
func (t *Tracker) InScope(el graph.NodeID) bool {
	n, ok := t.v.Get(el)
	if !ok || n.Source == "" || t.removing[n.Source] {
		return false
	}
	src, ok := skeleton.SourceNode(t.v, n.Source)
	if !ok {
		return false
	}
	lit, _ := t.v.MustGet(src).Literal(model.PropImmutable)
	return !lit.Bool()
}

// UnbindTransitive unbinds the element owning id and every element reachable
// through reverse usages. It returns the elements it unbound in visit order.
func (t *Tracker) UnbindTransitive(id graph.NodeID) ([]graph.NodeID, error) {
	el, ok := t.v.OwningElement(id)
	if !ok {
		return nil, fmt.Errorf("unbind %d: %w", id, graph.ErrNotFound)
	}
	return t.closure([]graph.NodeID{el})
}

// UnbindDependents unbinds every element depending on the subtree of el,
// leaving el itself as it is.
func (t *Tracker) UnbindDependents(el graph.NodeID) ([]graph.NodeID, error) {
	return t.closure(t.dependents(el))
}

func (t *Tracker) closure(work []graph.NodeID) ([]graph.NodeID, error) {
	var out []graph.NodeID
	seen := make(map[graph.NodeID]bool)
	for len(work) > 0 {
		el := work[0]
		work = work[1:]
		if seen[el] {
			continue
		}
		seen[el] = true
		n, ok := t.v.Get(el)
		if !ok || !n.Bound || !t.InScope(el) {
			continue
		}
		next := t.dependents(el)
		if err := t.UnbindElement(el); err != nil {
			return out, err
		}
		out = append(out, el)
		work = append(work, next...)
	}
	return out, nil
}

// dependents lists the elements, other than el, that hold usages on any node
// of el's subtree.
func (t *Tracker) dependents(el graph.NodeID) []graph.NodeID {
	seen := map[graph.NodeID]bool{el: true}
	var out []graph.NodeID
	for _, id := range t.v.Subtree(el) {
		for _, owner := range t.v.Dependents(id) {
			dep, ok := t.v.OwningElement(owner)
			if !ok || seen[dep] {
				continue
			}
			seen[dep] = true
			out = append(out, dep)
		}
	}
	return out
}

// UnbindElement resets el and its subtree: resolved references and their
// usages are removed, inferred nodes are deleted, and the state returns to
// unbound. Association ends are withdrawn from the classes they were
// injected into. The owning source is marked as not compiled.
func (t *Tracker) UnbindElement(el graph.NodeID) error {
	n, ok := t.v.Get(el)
	if !ok {
		return fmt.Errorf("unbind %d: %w", el, graph.ErrNotFound)
	}
	if n.Kind == graph.KindAssociation {
		if err := t.withdraw(n); err != nil {
			return err
		}
	}
	if err := model.ResetTree(t.v, el); err != nil {
		return err
	}
	if src, ok := skeleton.SourceNode(t.v, n.Source); ok {
		s, err := t.v.Mutable(src)
		if err != nil {
			return err
		}
		s.Set(model.PropCompiled, graph.BoolValue(false))
	}
	t.log.V(2).Info("element unbound", "element", t.v.Path(el), "kind", string(n.Kind))
	return nil
}

func (t *Tracker) withdraw(assoc *graph.Node) error {
	for _, end := range assoc.Refs(model.PropProperties) {
		class := t.v.MustGet(end).Ref(model.PropInjectedInto)
		if class == 0 {
			continue
		}
		c, err := t.v.Mutable(class)
		if err != nil {
			return err
		}
		c.RemoveRef(model.PropPropertiesFromAssocs, end)
	}
	return nil
}
