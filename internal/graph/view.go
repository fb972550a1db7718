package graph

import "fmt"

// View reads the graph either at committed state or through a transaction.
// Nodes returned by Get must be treated as read-only; use Mutable to write.
type View struct {
	ctx *Context
	txn *Transaction
}

func (v *View) Context() *Context { return v.ctx }

// Writable reports whether the view belongs to an open transaction.
func (v *View) Writable() bool {
	if v.txn == nil {
		return false
	}
	return !v.txn.Done()
}

func (v *View) lock() func() {
	if v.txn == nil {
		v.ctx.mu.RLock()
		return v.ctx.mu.RUnlock
	}
	v.txn.mu.Lock()
	v.ctx.mu.RLock()
	return func() {
		v.ctx.mu.RUnlock()
		v.txn.mu.Unlock()
	}
}

// get requires the lock.
func (v *View) get(id NodeID) (*Node, bool) {
	if t := v.txn; t != nil && !t.done {
		if n, ok := t.nodes[id]; ok {
			return n, true
		}
		if _, gone := t.deleted[id]; gone {
			return nil, false
		}
	}
	n, ok := v.ctx.nodes[id]
	return n, ok
}

// Get returns the node with the given id as seen by this view.
func (v *View) Get(id NodeID) (*Node, bool) {
	defer v.lock()()
	return v.get(id)
}

// MustGet is Get for ids the caller holds a live reference to.
func (v *View) MustGet(id NodeID) *Node {
	n, ok := v.Get(id)
	if !ok {
		panic(fmt.Sprintf("graph: dangling reference %d", id))
	}
	return n
}

func (v *View) writable() *Transaction {
	if v.txn == nil {
		panic(ErrReadOnly)
	}
	if v.txn.done {
		panic(ErrTxnDone)
	}
	return v.txn
}

// Create allocates a new node inside the transaction. Name, Kind and Parent
// are fixed for the node's lifetime.
func (v *View) Create(kind Kind, name string, parent NodeID, source string) *Node {
	defer v.lock()()
	t := v.writable()
	n := &Node{
		ID:     v.ctx.allocID(),
		Kind:   kind,
		Name:   name,
		Parent: parent,
		Source: source,
	}
	t.nodes[n.ID] = n
	t.created[n.ID] = struct{}{}
	if indexed(kind) && name != "" {
		k := nameKey{parent, name}
		t.byName[k] = append(t.byName[k], n.ID)
		if kind.IsPackageable() {
			t.byBare[name] = append(t.byBare[name], n.ID)
		}
	}
	t.byKind[kind] = append(t.byKind[kind], n.ID)
	return n
}

// Mutable returns a private copy of the node that later writes go to.
func (v *View) Mutable(id NodeID) (*Node, error) {
	defer v.lock()()
	t := v.writable()
	if n, ok := t.nodes[id]; ok {
		return n, nil
	}
	if _, gone := t.deleted[id]; gone {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	n, ok := v.ctx.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	c := n.clone()
	t.nodes[id] = c
	return c, nil
}

// Delete removes the node from this transaction's view of the graph.
func (v *View) Delete(id NodeID) error {
	defer v.lock()()
	t := v.writable()
	n, ok := v.get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	delete(t.nodes, id)
	if _, fresh := t.created[id]; fresh {
		delete(t.created, id)
		if indexed(n.Kind) && n.Name != "" {
			k := nameKey{n.Parent, n.Name}
			t.byName[k] = dropID(t.byName[k], id)
			if n.Kind.IsPackageable() {
				t.byBare[n.Name] = dropID(t.byBare[n.Name], id)
			}
		}
		t.byKind[n.Kind] = dropID(t.byKind[n.Kind], id)
		return nil
	}
	t.deleted[id] = struct{}{}
	return nil
}

// ByName returns the ids of indexed nodes named name directly under parent.
func (v *View) ByName(parent NodeID, name string) []NodeID {
	defer v.lock()()
	k := nameKey{parent, name}
	var out []NodeID
	for _, id := range v.ctx.byName[k] {
		if _, ok := v.get(id); ok {
			out = append(out, id)
		}
	}
	if t := v.txn; t != nil && !t.done {
		out = append(out, t.byName[k]...)
	}
	sortIDs(out)
	return out
}

// Named returns every packageable node with the given simple name, in any
// package, sorted by id.
func (v *View) Named(name string) []NodeID {
	defer v.lock()()
	var out []NodeID
	for _, id := range v.ctx.byBare[name] {
		if _, ok := v.get(id); ok {
			out = append(out, id)
		}
	}
	if t := v.txn; t != nil && !t.done {
		out = append(out, t.byBare[name]...)
	}
	sortIDs(out)
	return out
}

// ByKind returns the ids of every node of the given kind, sorted.
func (v *View) ByKind(kind Kind) []NodeID {
	defer v.lock()()
	var out []NodeID
	for id := range v.ctx.byKind[kind] {
		if _, ok := v.get(id); ok {
			out = append(out, id)
		}
	}
	if t := v.txn; t != nil && !t.done {
		out = append(out, t.byKind[kind]...)
	}
	sortIDs(out)
	return out
}

// IDs returns every live node id, sorted.
func (v *View) IDs() []NodeID {
	defer v.lock()()
	out := make([]NodeID, 0, len(v.ctx.nodes))
	for id := range v.ctx.nodes {
		if _, ok := v.get(id); ok {
			out = append(out, id)
		}
	}
	if t := v.txn; t != nil && !t.done {
		for id := range t.created {
			out = append(out, id)
		}
	}
	sortIDs(out)
	return out
}
