package pipeline

import (
	"fmt"
	"time"

	"modelc/internal/graph"
	"modelc/internal/model"
	"modelc/internal/skeleton"
	"modelc/internal/unbind"
)

// Delete stages the removal of a source. It takes effect on Unload.
func (r *Runtime) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := skeleton.SourceNode(r.ctx.View(), id); !ok {
		return fmt.Errorf("source %s: %w", id, graph.ErrNotFound)
	}
	for _, s := range r.staged {
		if s == id {
			return nil
		}
	}
	r.staged = append(r.staged, id)
	return nil
}

// Unload applies staged deletions: elements depending on the removed
// sources are reverted to unbound, and the removed nodes and any packages
// left empty are deleted. The next Compile re-binds the dependents.
func (r *Runtime) Unload() (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := newResult()
	if len(r.staged) == 0 {
		return res, nil
	}

	start := time.Now()
	txn, owner := r.NewTransaction(false)
	v, err := txn.Enter(owner)
	if err != nil {
		return nil, err
	}
	unbound, err := r.remove(v, r.staged)
	if err != nil {
		_ = txn.Rollback(owner)
		transactionsTotal.WithLabelValues("rolled_back").Inc()
		return nil, err
	}
	if err := txn.Commit(owner); err != nil {
		return nil, fmt.Errorf("failed to commit unload: %w", err)
	}
	transactionsTotal.WithLabelValues("committed").Inc()

	res.Removed, res.Unbound = r.staged, unbound
	res.Duration = time.Since(start)
	r.staged = nil
	r.record(res)
	r.log.V(1).Info("sources unloaded", "removed", res.Removed, "unbound", unbound)
	return res, nil
}

// remove deletes the given sources inside v and returns how many elements
// of other sources were unbound.
func (r *Runtime) remove(v *graph.View, ids []string) (int, error) {
	tr := unbind.New(v, ids, r.log)
	unbound := 0
	for _, id := range ids {
		src, ok := skeleton.SourceNode(v, id)
		if !ok {
			continue
		}
		els := v.MustGet(src).Refs(model.PropNewInstances)
		for _, el := range els {
			deps, err := tr.UnbindDependents(el)
			if err != nil {
				return unbound, err
			}
			unbound += len(deps)
		}
		for _, el := range els {
			if err := tr.UnbindElement(el); err != nil {
				return unbound, err
			}
			pkg := v.MustGet(el).Parent
			v.RemoveChild(pkg, el)
			if err := v.DeleteTree(el); err != nil {
				return unbound, err
			}
			if err := collect(v, pkg); err != nil {
				return unbound, err
			}
		}
		if err := v.Delete(src); err != nil {
			return unbound, err
		}
	}
	return unbound, nil
}

// collect deletes pkg and its ancestors while they are empty.
func collect(v *graph.View, pkg graph.NodeID) error {
	for pkg != graph.RootID {
		n, ok := v.Get(pkg)
		if !ok || n.Kind != graph.KindPackage || len(v.Children(pkg)) > 0 {
			return nil
		}
		parent := n.Parent
		v.RemoveChild(parent, pkg)
		if err := v.Delete(pkg); err != nil {
			return err
		}
		pkg = parent
	}
	return nil
}

func validated(v *graph.View, src graph.NodeID) bool {
	for _, el := range v.MustGet(src).Refs(model.PropNewInstances) {
		if n, ok := v.Get(el); !ok || !n.Validated {
			return false
		}
	}
	return true
}

// Staged returns the sources waiting for Unload.
func (r *Runtime) Staged() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.staged...)
}

// Failure returns the error retained for a failed source.
func (r *Runtime) Failure(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[id]
}

// Source describes the committed source id.
func (r *Runtime) Source(id string) (SourceInfo, bool) {
	v := r.ctx.View()
	src, ok := skeleton.SourceNode(v, id)
	if !ok {
		return SourceInfo{}, false
	}
	return r.describe(v, src), true
}

// Sources describes every committed source in registration order.
func (r *Runtime) Sources() []SourceInfo {
	v := r.ctx.View()
	var out []SourceInfo
	for _, id := range v.ByKind(graph.KindSource) {
		out = append(out, r.describe(v, id))
	}
	return out
}

func (r *Runtime) describe(v *graph.View, src graph.NodeID) SourceInfo {
	n := v.MustGet(src)
	compiled, _ := n.Literal(model.PropCompiled)
	immutable, _ := n.Literal(model.PropImmutable)
	return SourceInfo{
		ID:        n.Name,
		Hash:      n.String(model.PropContentHash),
		Compiled:  compiled.Bool(),
		Immutable: immutable.Bool(),
		Elements:  len(n.Refs(model.PropNewInstances)),
		Err:       r.Failure(n.Name),
	}
}
