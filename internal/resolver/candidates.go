package resolver

import (
	"sort"
	"strings"

	"modelc/internal/graph"
	"modelc/internal/model"
)

// candidateSet holds the functions sharing a call-site name, split by
// whether their package is visible from the caller. Both groups are sorted
// by full path.
type candidateSet struct {
	imported    []model.Signature
	notImported []model.Signature
}

func (c candidateSet) empty() bool { return len(c.imported) == 0 && len(c.notImported) == 0 }

// candidates gathers every bound function named name. A qualified name only
// matches exactly and counts as imported. Functions whose declaration is
// still queued defer the caller; functions of failed sources are skipped.
func (r *Resolver) candidates(name string, imp Imports) (candidateSet, error) {
	qualified := strings.Contains(name, graph.PathSeparator)
	var ids []graph.NodeID
	if qualified {
		ids = r.v.Lookup(name)
	} else {
		ids = r.v.Named(name)
	}

	var out candidateSet
	for _, id := range ids {
		n := r.v.MustGet(id)
		if !n.Kind.IsFunction() {
			continue
		}
		if !n.Bound {
			if r.sched != nil && r.sched.Pending(id) {
				return candidateSet{}, &DeferredError{Element: id, Path: r.v.Path(id)}
			}
			continue
		}
		sig, err := r.types.Signature(id)
		if err != nil {
			return candidateSet{}, err
		}
		if qualified || imp.Contains(n.Parent) {
			out.imported = append(out.imported, sig)
		} else {
			out.notImported = append(out.notImported, sig)
		}
	}
	r.sortSignatures(out.imported)
	r.sortSignatures(out.notImported)
	return out, nil
}

// sortSignatures orders by full path; overloads sharing a path fall back to
// their rendered signature so the order never depends on node ids.
func (r *Resolver) sortSignatures(sigs []model.Signature) {
	keys := make(map[graph.NodeID]string, len(sigs))
	for _, s := range sigs {
		keys[s.Fn] = r.types.SignatureString(s)
	}
	sort.SliceStable(sigs, func(i, j int) bool {
		pi, pj := r.v.Path(sigs[i].Fn), r.v.Path(sigs[j].Fn)
		if pi != pj {
			return pi < pj
		}
		return keys[sigs[i].Fn] < keys[sigs[j].Fn]
	})
}
