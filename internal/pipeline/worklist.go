package pipeline

import (
	"modelc/internal/graph"
	"modelc/internal/model"
)

type item struct {
	source  string
	element graph.NodeID
	decl    bool
}

// worklist orders the elements of the sources being compiled: for each
// source its declarations, then its bodies. It doubles as the resolver's
// scheduler: an element is pending while its declaration waits in the list.
type worklist struct {
	items   []item
	pending map[graph.NodeID]bool
	touched []string
	seen    map[string]bool
	failed  map[string]error
}

func newWorklist() *worklist {
	return &worklist{
		pending: make(map[graph.NodeID]bool),
		seen:    make(map[string]bool),
		failed:  make(map[string]error),
	}
}

func (w *worklist) Pending(el graph.NodeID) bool { return w.pending[el] }

func (w *worklist) touch(source string) {
	if !w.seen[source] {
		w.seen[source] = true
		w.touched = append(w.touched, source)
	}
}

// addSource enqueues every element of the source node src.
func (w *worklist) addSource(v *graph.View, src *graph.Node) {
	w.touch(src.Name)
	els := src.Refs(model.PropNewInstances)
	for _, el := range els {
		w.addDecl(v, src.Name, el)
	}
	for _, el := range els {
		w.items = append(w.items, item{source: src.Name, element: el})
	}
}

func (w *worklist) addDecl(v *graph.View, source string, el graph.NodeID) {
	if n, ok := v.Get(el); ok && !n.Bound {
		w.pending[el] = true
	}
	w.items = append(w.items, item{source: source, element: el, decl: true})
}

// requeue enqueues elements unbound while the list was running.
func (w *worklist) requeue(v *graph.View, els []graph.NodeID) []item {
	var out []item
	for _, el := range els {
		n, ok := v.Get(el)
		if !ok || w.failed[n.Source] != nil {
			continue
		}
		w.touch(n.Source)
		w.pending[el] = true
		out = append(out, item{source: n.Source, element: el, decl: true}, item{source: n.Source, element: el})
	}
	return out
}

// fail marks source as failed; its elements stop being pending so that
// references to them resolve as missing.
func (w *worklist) fail(source string, err error, els []graph.NodeID) {
	w.touch(source)
	w.failed[source] = err
	for _, el := range els {
		delete(w.pending, el)
	}
}
