package resolver

import (
	"sort"
	"strings"

	"modelc/internal/diag"
	"modelc/internal/graph"
	"modelc/internal/model"
)

// Imports lists the packages whose members are visible by simple name: the
// element's own package, the imported packages and the root package.
type Imports struct {
	Packages []graph.NodeID
}

func (i Imports) Contains(pkg graph.NodeID) bool {
	for _, p := range i.Packages {
		if p == pkg {
			return true
		}
	}
	return false
}

// importsFor computes the imports of an element from its source. Imported
// packages that do not exist are ignored.
func (r *Resolver) importsFor(n *graph.Node) Imports {
	own := n.Parent
	if !n.Kind.IsPackageable() {
		if el, ok := r.v.OwningElement(n.ID); ok {
			own = r.v.MustGet(el).Parent
		}
	}
	key := n.Source
	base, ok := r.imports[key]
	if !ok {
		for _, id := range r.v.ByName(0, n.Source) {
			src := r.v.MustGet(id)
			if src.Kind != graph.KindSource {
				continue
			}
			for _, path := range src.Strings(model.PropImports) {
				if pkg, ok := r.v.Package(path); ok {
					base.Packages = append(base.Packages, pkg)
				}
			}
		}
		r.imports[key] = base
	}
	out := Imports{Packages: []graph.NodeID{own}}
	for _, p := range append(base.Packages, graph.RootID) {
		if !out.Contains(p) {
			out.Packages = append(out.Packages, p)
		}
	}
	return out
}

// resolveElement binds a type, enumeration or class name. There is no
// overload set: zero or several matches fail with distinct messages.
func (r *Resolver) resolveElement(name string, imp Imports, accept func(graph.Kind) bool, pos *graph.SourceInformation) (graph.NodeID, error) {
	var found []graph.NodeID
	if strings.Contains(name, graph.PathSeparator) {
		for _, id := range r.v.Lookup(name) {
			if accept(r.v.MustGet(id).Kind) {
				found = append(found, id)
			}
		}
	} else {
		for _, pkg := range imp.Packages {
			for _, id := range r.v.ByName(pkg, name) {
				if accept(r.v.MustGet(id).Kind) {
					found = append(found, id)
				}
			}
		}
	}
	switch len(found) {
	case 0:
		return 0, diag.Newf(diag.UnresolvedReference, pos, "%s has not been defined!", name)
	case 1:
		return found[0], nil
	}
	paths := make([]string, len(found))
	for i, id := range found {
		paths[i] = r.v.Path(id)
	}
	sort.Strings(paths)
	return 0, diag.Newf(diag.UnresolvedReference, pos, "%s has been found more than one time in the imports: [%s]",
		name, strings.Join(paths, ", "))
}

func isClass(k graph.Kind) bool       { return k == graph.KindClass }
func isEnumeration(k graph.Kind) bool { return k == graph.KindEnumeration }
