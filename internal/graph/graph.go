package graph

import (
	"fmt"
	"strings"
)

// PathSeparator joins package segments in qualified names.
const PathSeparator = "::"

// PropChildren lists the packageable members of a package.
const PropChildren = "children"

// Path returns the qualified name of a node, excluding the root package.
func (v *View) Path(id NodeID) string {
	var segs []string
	for id != 0 && id != RootID {
		n, ok := v.Get(id)
		if !ok {
			break
		}
		segs = append(segs, n.Name)
		id = n.Parent
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return strings.Join(segs, PathSeparator)
}

// SplitPath splits a qualified name into package path and simple name.
func SplitPath(path string) (pkg, name string) {
	i := strings.LastIndex(path, PathSeparator)
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+len(PathSeparator):]
}

// Package resolves a package path. The empty path is the root.
func (v *View) Package(path string) (NodeID, bool) {
	id := RootID
	if path == "" || path == RootName {
		return id, true
	}
	for _, seg := range strings.Split(path, PathSeparator) {
		next := NodeID(0)
		for _, c := range v.ByName(id, seg) {
			if n, _ := v.Get(c); n != nil && n.Kind == KindPackage {
				next = c
				break
			}
		}
		if next == 0 {
			return 0, false
		}
		id = next
	}
	return id, true
}

// EnsurePackage resolves a package path, creating missing segments.
func (v *View) EnsurePackage(path string) NodeID {
	id := RootID
	if path == "" || path == RootName {
		return id
	}
	for _, seg := range strings.Split(path, PathSeparator) {
		next := NodeID(0)
		for _, c := range v.ByName(id, seg) {
			if n, _ := v.Get(c); n != nil && n.Kind == KindPackage {
				next = c
				break
			}
		}
		if next == 0 {
			pkg := v.Create(KindPackage, seg, id, "")
			next = pkg.ID
			v.AddChild(id, next)
		}
		id = next
	}
	return id
}

// Lookup returns every packageable element with the given qualified name.
func (v *View) Lookup(path string) []NodeID {
	pkgPath, name := SplitPath(path)
	pkg, ok := v.Package(pkgPath)
	if !ok {
		return nil
	}
	var out []NodeID
	for _, id := range v.ByName(pkg, name) {
		if n, _ := v.Get(id); n != nil && n.Kind.IsPackageable() {
			out = append(out, id)
		}
	}
	return out
}

// Children returns the members of a package.
func (v *View) Children(pkg NodeID) []NodeID {
	n, ok := v.Get(pkg)
	if !ok {
		return nil
	}
	return n.Refs(PropChildren)
}

func (v *View) AddChild(pkg, child NodeID) {
	p, err := v.Mutable(pkg)
	if err != nil {
		panic(fmt.Sprintf("graph: add child to %d: %v", pkg, err))
	}
	p.Append(PropChildren, RefValue(child))
}

func (v *View) RemoveChild(pkg, child NodeID) {
	p, err := v.Mutable(pkg)
	if err != nil {
		return
	}
	p.RemoveRef(PropChildren, child)
}

// Link appends a reference from owner.prop to target and records the usage
// on target.
func (v *View) Link(owner NodeID, prop string, target NodeID) error {
	o, err := v.Mutable(owner)
	if err != nil {
		return err
	}
	t, err := v.Mutable(target)
	if err != nil {
		return err
	}
	off := o.Append(prop, RefValue(target))
	t.Usages = append(t.Usages, Usage{Owner: owner, Property: prop, Offset: off})
	return nil
}

// Unlink removes every reference held by owner.prop together with the
// matching usages on the targets.
func (v *View) Unlink(owner NodeID, prop string) error {
	o, err := v.Mutable(owner)
	if err != nil {
		return err
	}
	for _, target := range o.Refs(prop) {
		v.DropUsages(target, owner, prop)
	}
	o.Unset(prop)
	return nil
}

// DropUsages removes the usages of target that point back at owner.prop.
func (v *View) DropUsages(target, owner NodeID, prop string) {
	n, ok := v.Get(target)
	if !ok {
		return
	}
	found := false
	for _, u := range n.Usages {
		if u.Owner == owner && u.Property == prop {
			found = true
			break
		}
	}
	if !found {
		return
	}
	t, err := v.Mutable(target)
	if err != nil {
		return
	}
	kept := t.Usages[:0]
	for _, u := range t.Usages {
		if u.Owner != owner || u.Property != prop {
			kept = append(kept, u)
		}
	}
	t.Usages = kept
}

// Dependents returns the distinct owners recorded in the usages of id.
func (v *View) Dependents(id NodeID) []NodeID {
	n, ok := v.Get(id)
	if !ok {
		return nil
	}
	seen := make(map[NodeID]bool)
	var out []NodeID
	for _, u := range n.Usages {
		if !seen[u.Owner] {
			seen[u.Owner] = true
			out = append(out, u.Owner)
		}
	}
	sortIDs(out)
	return out
}

// OwningElement walks up from id to the packageable element that contains it.
func (v *View) OwningElement(id NodeID) (NodeID, bool) {
	for id != 0 {
		n, ok := v.Get(id)
		if !ok {
			return 0, false
		}
		if n.Kind.IsPackageable() && n.Kind != KindPackage {
			return id, true
		}
		id = n.Parent
	}
	return 0, false
}

// Subtree returns id followed by every node reachable from it through
// structural references, that is references to nodes whose Parent is the
// referencing node.
func (v *View) Subtree(id NodeID) []NodeID {
	out := []NodeID{id}
	seen := map[NodeID]bool{id: true}
	for i := 0; i < len(out); i++ {
		n, ok := v.Get(out[i])
		if !ok {
			continue
		}
		for _, prop := range n.PropNames() {
			for _, r := range n.Refs(prop) {
				if c, ok := v.Get(r); ok && c.Parent == n.ID && !seen[r] {
					seen[r] = true
					out = append(out, r)
				}
			}
		}
	}
	return out
}

// DeleteTree deletes id and its structural descendants. Usages the subtree
// recorded on nodes outside of it are dropped first.
func (v *View) DeleteTree(id NodeID) error {
	tree := v.Subtree(id)
	inside := make(map[NodeID]bool, len(tree))
	for _, t := range tree {
		inside[t] = true
	}
	for _, t := range tree {
		n, ok := v.Get(t)
		if !ok {
			continue
		}
		for _, prop := range n.PropNames() {
			for _, r := range n.Refs(prop) {
				if !inside[r] {
					v.DropUsages(r, t, prop)
				}
			}
		}
	}
	for _, t := range tree {
		if err := v.Delete(t); err != nil {
			return err
		}
	}
	return nil
}
