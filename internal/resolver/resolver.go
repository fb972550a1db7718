package resolver

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"modelc/internal/diag"
	"modelc/internal/graph"
	"modelc/internal/model"
)

const DefaultMaxLambdaPasses = 3

// Options tunes checking. Zero values pick the defaults.
type Options struct {
	// RichDiagnostics lists candidate signatures in unmatched-function errors.
	RichDiagnostics bool
	// MaxLambdaPasses bounds the rounds spent typing function-valued
	// arguments of one call.
	MaxLambdaPasses int
}

// Scheduler reports elements whose declarations are queued but not bound yet.
type Scheduler interface {
	Pending(element graph.NodeID) bool
}

// DeferredError reports that checking needs an element whose declaration has
// not been bound yet. The caller retries once more of the worklist has run.
type DeferredError struct {
	Element graph.NodeID
	Path    string
}

func (e *DeferredError) Error() string {
	return fmt.Sprintf("waiting for the declaration of %s", e.Path)
}

func IsDeferred(err error) bool {
	var d *DeferredError
	return errors.As(err, &d)
}

// errUnavailable marks elements that are neither bound nor queued, usually
// because their own source failed.
var errUnavailable = errors.New("element is not available")

// Resolver binds declarations and checks function bodies inside one
// transaction view.
type Resolver struct {
	v       *graph.View
	types   *model.Types
	sched   Scheduler
	opts    Options
	log     logr.Logger
	imports map[string]Imports
}

func New(v *graph.View, sched Scheduler, opts Options, log logr.Logger) *Resolver {
	if opts.MaxLambdaPasses <= 0 {
		opts.MaxLambdaPasses = DefaultMaxLambdaPasses
	}
	r := &Resolver{
		v:       v,
		types:   model.NewTypes(v),
		sched:   sched,
		opts:    opts,
		log:     log,
		imports: make(map[string]Imports),
	}
	r.types.Require = r.require
	return r
}

func (r *Resolver) Types() *model.Types { return r.types }

func (r *Resolver) require(id graph.NodeID) error {
	n, ok := r.v.Get(id)
	if !ok {
		return fmt.Errorf("require %d: %w", id, graph.ErrNotFound)
	}
	if n.Bound || !n.Kind.IsPackageable() {
		return nil
	}
	if r.sched != nil && r.sched.Pending(id) {
		return &DeferredError{Element: id, Path: r.v.Path(id)}
	}
	return fmt.Errorf("%s: %w", r.v.Path(id), errUnavailable)
}

// BindDeclaration resolves the type references of an element's declaration:
// generalizations and properties of classes, association ends, and function
// signatures. Bodies are left to ProcessBody.
func (r *Resolver) BindDeclaration(el graph.NodeID) error {
	n, ok := r.v.Get(el)
	if !ok {
		return fmt.Errorf("bind %d: %w", el, graph.ErrNotFound)
	}
	if n.Bound {
		return nil
	}
	imp := r.importsFor(n)
	var err error
	switch n.Kind {
	case graph.KindClass:
		err = r.bindClass(n, imp)
	case graph.KindEnumeration:
	case graph.KindAssociation:
		err = r.bindAssociation(n, imp)
	case graph.KindConcreteFunction, graph.KindNativeFunction:
		err = r.bindSlots(n.ID, []graph.NodeID{n.ID}, imp)
	default:
		return fmt.Errorf("bind %s: %s is not an element kind", r.v.Path(el), n.Kind)
	}
	if err != nil {
		return r.located(n, err)
	}
	m, err := r.v.Mutable(el)
	if err != nil {
		return err
	}
	m.Bound = true
	m.Validated = n.Kind != graph.KindConcreteFunction
	r.log.V(2).Info("declaration bound", "element", r.v.Path(el), "kind", string(n.Kind))
	return nil
}

// ProcessBody type-checks a concrete function body, resolving every call
// site, and marks the function validated.
func (r *Resolver) ProcessBody(fn graph.NodeID) error {
	n, ok := r.v.Get(fn)
	if !ok {
		return fmt.Errorf("process %d: %w", fn, graph.ErrNotFound)
	}
	if n.Validated {
		return nil
	}
	if !n.Bound {
		if err := r.BindDeclaration(fn); err != nil {
			return err
		}
		n = r.v.MustGet(fn)
		if n.Validated {
			return nil
		}
	}
	sig, err := r.types.Signature(fn)
	if err != nil {
		return r.located(n, err)
	}
	sc := newScope(fn, r.importsFor(n))
	for _, p := range sig.Params {
		sc.define(p.Name, slot{typ: p.Type, mult: p.Mult})
	}
	body := n.Refs(model.PropExpressionSequence)
	last, err := r.sequence(body, sc)
	if err != nil {
		return r.located(n, err)
	}
	if err := r.checkReturn(n, sig, last, body); err != nil {
		return err
	}

	m, err := r.v.Mutable(fn)
	if err != nil {
		return err
	}
	m.Validated = true
	r.log.V(2).Info("body validated", "function", r.v.Path(fn))
	return nil
}

// Process binds the declaration of el and, for concrete functions, checks
// its body.
func (r *Resolver) Process(el graph.NodeID) error {
	if err := r.BindDeclaration(el); err != nil {
		return err
	}
	return r.ProcessBody(el)
}

func (r *Resolver) checkReturn(fn *graph.Node, sig model.Signature, last slot, body []graph.NodeID) error {
	pos := fn.Pos
	if len(body) > 0 {
		if e, ok := r.v.Get(body[len(body)-1]); ok && e.Pos != nil && e.Pos.Line > 0 {
			pos = e.Pos
		}
	}
	ok, err := r.types.IsSubtype(last.typ, sig.Return)
	if err != nil {
		return r.located(fn, err)
	}
	if !ok {
		return diag.Newf(diag.TypeMismatch, pos, "Return type error in function '%s'; found: %s; expected: %s",
			fn.Name, r.types.TypeString(last.typ), r.types.TypeString(sig.Return))
	}
	if !sig.ReturnMult.Contains(last.mult) {
		return diag.Newf(diag.TypeMismatch, pos, "Return multiplicity error in function '%s'; found: %s; expected: %s",
			fn.Name, last.mult, sig.ReturnMult)
	}
	return nil
}

// located turns internal failures into compilation errors at n. Deferrals
// and errors that already carry a kind pass through.
func (r *Resolver) located(n *graph.Node, err error) error {
	if err == nil || IsDeferred(err) {
		return err
	}
	if _, ok := diag.As(err); ok {
		return err
	}
	kind := diag.Structural
	if errors.Is(err, errUnavailable) || errors.Is(err, model.ErrUnbound) {
		kind = diag.UnresolvedReference
	}
	return diag.Wrap(kind, n.Pos, err)
}
