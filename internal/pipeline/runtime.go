// Package pipeline drives incremental compilation: it materializes skeleton
// documents, runs the resolver over a per-source worklist inside a
// transaction, isolates failing sources, and applies staged deletions.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"modelc/internal/diag"
	"modelc/internal/graph"
	"modelc/internal/model"
	"modelc/internal/resolver"
	"modelc/internal/skeleton"
	"modelc/internal/unbind"
)

const DefaultMaxPasses = 10

type Options struct {
	// MaxPasses bounds how often the worklist is swept.
	MaxPasses       int
	MaxLambdaPasses int
	RichDiagnostics bool
}

// Runtime compiles sources into one shared graph context. Compile and
// Unload are serialized; readers use committed views of Context().
type Runtime struct {
	ctx  *graph.Context
	opts Options
	log  logr.Logger

	mu       sync.Mutex
	staged   []string
	failures map[string]error
}

func New(ctx *graph.Context, opts Options, log logr.Logger) *Runtime {
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = DefaultMaxPasses
	}
	if opts.MaxLambdaPasses <= 0 {
		opts.MaxLambdaPasses = resolver.DefaultMaxLambdaPasses
	}
	return &Runtime{
		ctx:      ctx,
		opts:     opts,
		log:      log,
		failures: make(map[string]error),
	}
}

func (r *Runtime) Context() *graph.Context { return r.ctx }

// NewTransaction opens a transaction under a fresh owner token. Unless
// committableOutsideOwner is set, only that token may enter or finish it.
func (r *Runtime) NewTransaction(committableOutsideOwner bool) (*graph.Transaction, graph.Owner) {
	owner := graph.NewOwner()
	return r.ctx.NewTransaction(owner, committableOutsideOwner), owner
}

// Compile adds or modifies the given documents and compiles every source
// that is not compiled yet, committing the outcome in one transaction.
// Source failures are reported in the result; the returned error is kept
// for failures of the graph itself.
func (r *Runtime) Compile(docs ...*skeleton.Document) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	txn, owner := r.NewTransaction(false)
	v, err := txn.Enter(owner)
	if err != nil {
		return nil, err
	}
	res, err := r.compile(v, docs)
	if err != nil {
		_ = txn.Rollback(owner)
		transactionsTotal.WithLabelValues("rolled_back").Inc()
		return nil, err
	}
	if err := txn.Commit(owner); err != nil {
		return nil, fmt.Errorf("failed to commit compile: %w", err)
	}
	transactionsTotal.WithLabelValues("committed").Inc()
	r.record(res)
	return res, nil
}

// CompileIn compiles inside a transaction owned by the caller. Nothing is
// committed and nothing is recorded on the runtime; after a successful
// commit the caller hands the result to Record.
func (r *Runtime) CompileIn(v *graph.View, docs ...*skeleton.Document) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.compile(v, docs)
}

// Record retains the failures of a committed CompileIn result and counts
// it in the metrics.
func (r *Runtime) Record(res *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(res)
}

func (r *Runtime) compile(v *graph.View, docs []*skeleton.Document) (*Result, error) {
	start := time.Now()
	res := newResult()
	if err := model.Bootstrap(v); err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if src, ok := skeleton.SourceNode(v, doc.ID); ok {
			n := v.MustGet(src)
			if n.String(model.PropContentHash) == skeleton.ContentHash(doc.Text) {
				if lit, _ := n.Literal(model.PropCompiled); lit.Bool() {
					res.Skipped = append(res.Skipped, doc.ID)
				}
				continue
			}
			unbound, err := r.remove(v, []string{doc.ID})
			if err != nil {
				return nil, err
			}
			res.Unbound += unbound
		}
		if _, err := skeleton.Materialize(v, doc); err != nil {
			if _, ok := diag.As(err); !ok {
				return nil, err
			}
			res.Failed[doc.ID] = err
			r.log.V(1).Info("source rejected", "source", skeleton.Describe(doc), "error", err.Error())
		}
	}

	w := newWorklist()
	for _, id := range v.ByKind(graph.KindSource) {
		src := v.MustGet(id)
		if lit, _ := src.Literal(model.PropCompiled); !lit.Bool() {
			w.addSource(v, src)
		}
	}
	if err := r.run(v, w, res); err != nil {
		return nil, err
	}

	for _, id := range w.touched {
		if err, failed := w.failed[id]; failed {
			res.Failed[id] = err
			continue
		}
		src, ok := skeleton.SourceNode(v, id)
		if !ok || !validated(v, src) {
			continue
		}
		n, err := v.Mutable(src)
		if err != nil {
			return nil, err
		}
		n.Set(model.PropCompiled, graph.BoolValue(true))
		res.Compiled = append(res.Compiled, id)
	}
	res.Duration = time.Since(start)
	r.log.V(1).Info("compile finished", "compiled", len(res.Compiled), "failed", len(res.Failed),
		"skipped", len(res.Skipped), "passes", len(res.Passes), "duration", res.Duration)
	return res, nil
}

// run sweeps the worklist until it is empty, stops making progress, or the
// pass budget is spent. Deferred items move to the next pass.
func (r *Runtime) run(v *graph.View, w *worklist, res *Result) error {
	rs := resolver.New(v, w, resolver.Options{
		RichDiagnostics: r.opts.RichDiagnostics,
		MaxLambdaPasses: r.opts.MaxLambdaPasses,
	}, r.log)

	var last error
	for pass := 1; len(w.items) > 0 && pass <= r.opts.MaxPasses; pass++ {
		stats := PassStats{Pass: pass}
		var next []item
		for _, it := range w.items {
			if w.failed[it.source] != nil {
				continue
			}
			stats.Attempted++
			var err error
			if it.decl {
				err = rs.BindDeclaration(it.element)
				if err == nil {
					delete(w.pending, it.element)
				}
			} else {
				err = rs.ProcessBody(it.element)
			}
			switch {
			case err == nil:
				stats.Resolved++
			case resolver.IsDeferred(err):
				stats.Deferred++
				last = err
				next = append(next, it)
			default:
				stats.Failed++
				requeued, ferr := r.fail(v, w, it.source, err)
				if ferr != nil {
					return ferr
				}
				res.Unbound += len(requeued)
				next = append(next, w.requeue(v, requeued)...)
			}
		}
		res.Passes = append(res.Passes, stats)
		r.log.V(2).Info("pass finished", "pass", pass, "attempted", stats.Attempted,
			"resolved", stats.Resolved, "deferred", stats.Deferred, "failed", stats.Failed)
		w.items = next
		if stats.Resolved == 0 && stats.Failed == 0 {
			break
		}
	}

	for _, it := range w.items {
		if w.failed[it.source] != nil {
			continue
		}
		err := diag.Wrap(diag.UnresolvedReference, v.MustGet(it.element).Pos, last)
		if _, ferr := r.fail(v, w, it.source, err); ferr != nil {
			return ferr
		}
	}
	w.items = nil
	return nil
}

// fail reverts every element of source to unbound, together with the
// elements already bound against them, and returns the latter.
func (r *Runtime) fail(v *graph.View, w *worklist, source string, cause error) ([]graph.NodeID, error) {
	src, ok := skeleton.SourceNode(v, source)
	if !ok {
		return nil, fmt.Errorf("source %s: %w", source, graph.ErrNotFound)
	}
	els := v.MustGet(src).Refs(model.PropNewInstances)
	w.fail(source, cause, els)
	r.log.V(1).Info("source failed", "source", source, "error", cause.Error())

	tr := unbind.New(v, []string{source}, r.log)
	var dependents []graph.NodeID
	for _, el := range els {
		deps, err := tr.UnbindDependents(el)
		if err != nil {
			return nil, err
		}
		dependents = append(dependents, deps...)
	}
	for _, el := range els {
		if err := tr.UnbindElement(el); err != nil {
			return nil, err
		}
	}
	return dependents, nil
}

func (r *Runtime) record(res *Result) {
	for _, id := range res.Compiled {
		delete(r.failures, id)
	}
	for _, id := range res.Removed {
		delete(r.failures, id)
	}
	for id, err := range res.Failed {
		r.failures[id] = err
	}
	compileDurationSeconds.Observe(res.Duration.Seconds())
	sourcesCompiledTotal.Add(float64(len(res.Compiled)))
	sourcesFailedTotal.Add(float64(len(res.Failed)))
	sourcesSkippedTotal.Add(float64(len(res.Skipped)))
	elementsUnboundTotal.Add(float64(res.Unbound))

	counts := r.ctx.View().KindCounts()
	graphNodes.Reset()
	for kind, n := range counts {
		graphNodes.WithLabelValues(string(kind)).Set(float64(n))
	}
	r.log.V(2).Info("graph committed", "nodes", counts)
}
