package resolver

import (
	"fmt"

	"modelc/internal/diag"
	"modelc/internal/graph"
	"modelc/internal/model"
)

// sequence checks expressions in order and returns the type of the last.
func (r *Resolver) sequence(ids []graph.NodeID, sc *scope) (slot, error) {
	var last slot
	for _, id := range ids {
		s, err := r.expr(id, sc)
		if err != nil {
			return slot{}, err
		}
		last = s
	}
	if len(ids) == 0 {
		return slot{typ: r.types.Nil(), mult: model.Zero}, nil
	}
	return last, nil
}

func (r *Resolver) expr(id graph.NodeID, sc *scope) (slot, error) {
	n, ok := r.v.Get(id)
	if !ok {
		return slot{}, fmt.Errorf("expression %d: %w", id, graph.ErrNotFound)
	}
	switch n.Kind {
	case graph.KindInstanceValue:
		return r.instanceValue(n, sc)
	case graph.KindVariableExpression:
		s, ok := sc.lookup(n.Name)
		if !ok {
			return slot{}, diag.Newf(diag.UnresolvedReference, n.Pos, "The variable '%s' is unknown!", n.Name)
		}
		return s, nil
	case graph.KindLet:
		s, err := r.expr(n.Ref(model.PropExpression), sc)
		if err != nil {
			return slot{}, err
		}
		sc.define(n.Name, s)
		return s, nil
	case graph.KindFunctionExpression:
		return r.call(n, sc)
	case graph.KindLambdaFunction:
		return r.lambda(n, sc, nil)
	case graph.KindFunctionReference:
		s, err := r.funcRef(n, sc, nil)
		if err == errNeedsContext {
			return slot{}, diag.Newf(diag.TooManyMatches, n.Pos,
				"The function reference %s is ambiguous without an expected function type", n.String(model.PropFunctionName))
		}
		return s, err
	case graph.KindNewInstance:
		return r.newInstance(n, sc)
	case graph.KindCast:
		return r.cast(n, sc)
	case graph.KindPropertyAccess:
		return r.propertyAccess(n, sc)
	case graph.KindEnumValueReference:
		return r.enumValue(n, sc)
	}
	return slot{}, diag.Newf(diag.Structural, n.Pos, "%s is not an expression", n.Kind)
}

// instanceValue types a literal or a collection. Collections take the
// common supertype of their elements and the sum of their multiplicities;
// the empty collection is Nil[0].
func (r *Resolver) instanceValue(n *graph.Node, sc *scope) (slot, error) {
	if v, ok := n.Literal(model.PropValues); ok {
		return slot{typ: model.Concrete(r.types.Primitive(model.LiteralPrimitive(v.Type))), mult: model.One}, nil
	}
	out := slot{typ: r.types.Nil(), mult: model.Zero}
	for i, id := range n.Refs(model.PropValues) {
		s, err := r.expr(id, sc)
		if err != nil {
			return slot{}, err
		}
		if i == 0 {
			out = s
			continue
		}
		t, err := r.types.CommonSupertype(out.typ, s.typ)
		if err != nil {
			return slot{}, err
		}
		out = slot{typ: t, mult: out.mult.Plus(s.mult)}
	}
	return out, nil
}

func (r *Resolver) newInstance(n *graph.Node, sc *scope) (slot, error) {
	if s, ok := r.cached(n); ok {
		return s, nil
	}
	class, err := r.resolveElement(n.String(model.PropClassName), sc.imports, isClass, n.Pos)
	if err != nil {
		return slot{}, err
	}
	if err := r.types.Require(class); err != nil {
		return slot{}, err
	}
	if err := r.linkOnce(n.ID, model.PropClass, class); err != nil {
		return slot{}, err
	}

	cn := r.v.MustGet(class)
	params := cn.Refs(model.PropTypeParameters)
	given := n.Refs(model.PropTypeArguments)
	if len(given) > 0 && len(given) != len(params) {
		return slot{}, diag.Newf(diag.TypeMismatch, n.Pos, "Type argument mismatch for %s (expected %d, got %d)",
			r.v.Path(class), len(params), len(given))
	}
	receiver := model.Concrete(class)
	for i, pid := range params {
		if len(given) == 0 {
			receiver.Args = append(receiver.Args, model.TypeParam(r.v.MustGet(pid).Name, class))
			continue
		}
		if err := r.bindType(given[i], sc.owners(), sc.imports); err != nil {
			return slot{}, err
		}
		g, err := r.types.ReadType(given[i])
		if err != nil {
			return slot{}, err
		}
		receiver.Args = append(receiver.Args, g)
	}

	// Class parameters left open are inferred from the key values.
	u := r.newUnifier(class)
	for _, kid := range n.Refs(model.PropKeyValues) {
		kv := r.v.MustGet(kid)
		prop, declaring, ok, err := r.findProperty(class, kv.Name)
		if err != nil {
			return slot{}, err
		}
		if !ok {
			return slot{}, diag.Newf(diag.UnresolvedReference, kv.Pos, "The property '%s' can't be found in the class %s",
				kv.Name, r.v.Path(class))
		}
		if err := r.linkOnce(kid, model.PropProperty, prop); err != nil {
			return slot{}, err
		}
		want, err := r.memberType(receiver, prop, declaring)
		if err != nil {
			return slot{}, err
		}
		got, err := r.expr(kv.Ref(model.PropExpression), sc)
		if err != nil {
			return slot{}, err
		}
		ok, err = u.unify(want.typ, got.typ)
		if err != nil {
			return slot{}, err
		}
		if !ok || !u.unifyMult(want.mult, got.mult) {
			return slot{}, diag.Newf(diag.TypeMismatch, kv.Pos, "The property '%s' of %s expects %s but was given %s",
				kv.Name, r.v.Path(class), r.types.SlotString(u.b.Substitute(want.typ), want.mult),
				r.types.SlotString(got.typ, got.mult))
		}
	}
	s := slot{typ: u.instantiate(receiver), mult: model.One}
	return s, r.settle(n.ID, s)
}

func (r *Resolver) cast(n *graph.Node, sc *scope) (slot, error) {
	if s, ok := r.cached(n); ok {
		return s, nil
	}
	operand, err := r.expr(n.Ref(model.PropExpression), sc)
	if err != nil {
		return slot{}, err
	}
	gt := n.Ref(model.PropGenericType)
	if err := r.bindType(gt, sc.owners(), sc.imports); err != nil {
		return slot{}, err
	}
	target, err := r.types.ReadType(gt)
	if err != nil {
		return slot{}, err
	}
	ok, err := r.types.Related(operand.typ, target)
	if err != nil {
		return slot{}, err
	}
	if !ok {
		return slot{}, diag.Newf(diag.TypeMismatch, n.Pos, "Cast from %s to %s is not possible",
			r.types.TypeString(operand.typ), r.types.TypeString(target))
	}
	s := slot{typ: target, mult: operand.mult}
	return s, r.settle(n.ID, s)
}

func (r *Resolver) propertyAccess(n *graph.Node, sc *scope) (slot, error) {
	if s, ok := r.cached(n); ok {
		return s, nil
	}
	recv, err := r.expr(n.Ref(model.PropExpression), sc)
	if err != nil {
		return slot{}, err
	}
	name := n.String(model.PropPropertyName)
	notFound := diag.Newf(diag.UnresolvedReference, n.Pos, "Can't find the property '%s' in the type %s",
		name, r.types.TypeString(recv.typ))
	if recv.typ.Raw == 0 || recv.typ.Param != nil || recv.typ.Func != nil {
		return slot{}, notFound
	}
	raw, ok := r.v.Get(recv.typ.Raw)
	if !ok || raw.Kind != graph.KindClass {
		return slot{}, notFound
	}
	prop, declaring, ok, err := r.findProperty(raw.ID, name)
	if err != nil {
		return slot{}, err
	}
	if !ok {
		return slot{}, notFound
	}
	if err := r.linkOnce(n.ID, model.PropProperty, prop); err != nil {
		return slot{}, err
	}
	member, err := r.memberType(recv.typ, prop, declaring)
	if err != nil {
		return slot{}, err
	}
	s := slot{typ: member.typ, mult: recv.mult.Times(member.mult)}
	return s, r.settle(n.ID, s)
}

func (r *Resolver) enumValue(n *graph.Node, sc *scope) (slot, error) {
	if s, ok := r.cached(n); ok {
		return s, nil
	}
	name := n.String(model.PropEnumerationName)
	enum, err := r.resolveElement(name, sc.imports, isEnumeration, n.Pos)
	if err != nil {
		return slot{}, err
	}
	if err := r.types.Require(enum); err != nil {
		return slot{}, err
	}
	if err := r.linkOnce(n.ID, model.PropEnumeration, enum); err != nil {
		return slot{}, err
	}
	value := n.String(model.PropValueName)
	var found graph.NodeID
	for _, id := range r.v.MustGet(enum).Refs(model.PropValues) {
		if r.v.MustGet(id).Name == value {
			found = id
			break
		}
	}
	if found == 0 {
		return slot{}, diag.Newf(diag.UnresolvedReference, n.Pos, "The enum value '%s' can't be found in the enumeration %s",
			value, r.v.Path(enum))
	}
	if err := r.linkOnce(n.ID, model.PropValue, found); err != nil {
		return slot{}, err
	}
	s := slot{typ: model.Concrete(enum), mult: model.One}
	return s, r.settle(n.ID, s)
}

// findProperty looks name up in class, its generalizations and the
// properties associations injected into them. It returns the property and
// the element declaring it.
func (r *Resolver) findProperty(class graph.NodeID, name string) (graph.NodeID, graph.NodeID, bool, error) {
	queue := []graph.NodeID{class}
	seen := map[graph.NodeID]bool{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if err := r.types.Require(cur); err != nil {
			return 0, 0, false, err
		}
		n := r.v.MustGet(cur)
		for _, id := range n.Refs(model.PropProperties) {
			if r.v.MustGet(id).Name == name {
				return id, cur, true, nil
			}
		}
		for _, id := range n.Refs(model.PropPropertiesFromAssocs) {
			if p := r.v.MustGet(id); p.Name == name {
				return id, p.Parent, true, nil
			}
		}
		for _, g := range n.Refs(model.PropGeneralizations) {
			if raw := r.v.MustGet(g).Ref(model.PropRawType); raw != 0 {
				queue = append(queue, raw)
			}
		}
	}
	return 0, 0, false, nil
}

// memberType reads the type of prop as seen from a receiver type,
// substituting the declaring class's parameters.
func (r *Resolver) memberType(receiver model.GenericType, prop, declaring graph.NodeID) (slot, error) {
	p, err := r.types.ReadVariable(prop)
	if err != nil {
		return slot{}, err
	}
	if r.v.MustGet(declaring).Kind != graph.KindClass {
		return slot{typ: p.Type, mult: p.Mult}, nil
	}
	view, ok, err := r.asRaw(receiver, declaring)
	if err != nil {
		return slot{}, err
	}
	if !ok {
		return slot{typ: p.Type, mult: p.Mult}, nil
	}
	b := r.types.ClassBindings(declaring, view.Args, view.MultArgs)
	return slot{typ: b.Substitute(p.Type), mult: b.SubstituteMult(p.Mult)}, nil
}

// cached returns the result recorded on an already validated expression.
func (r *Resolver) cached(n *graph.Node) (slot, bool) {
	if !n.Validated || !n.Has(model.PropResultType) {
		return slot{}, false
	}
	t, err := r.types.ReadType(n.Ref(model.PropResultType))
	if err != nil {
		return slot{}, false
	}
	m, err := r.types.ReadMultiplicity(n.Ref(model.PropResultMultiplicity))
	if err != nil {
		return slot{}, false
	}
	return slot{typ: t, mult: m}, true
}

// settle records the result of an expression and marks it validated.
func (r *Resolver) settle(id graph.NodeID, s slot) error {
	if err := r.clearInferred(id, model.PropResultType, model.PropResultMultiplicity); err != nil {
		return err
	}
	src := r.v.MustGet(id).Source
	tid, err := r.types.WriteType(id, s.typ, src)
	if err != nil {
		return err
	}
	mid, err := r.types.WriteMultiplicity(id, s.mult, src)
	if err != nil {
		return err
	}
	n, err := r.v.Mutable(id)
	if err != nil {
		return err
	}
	n.Set(model.PropResultType, graph.RefValue(tid))
	n.Set(model.PropResultMultiplicity, graph.RefValue(mid))
	n.Bound, n.Validated = true, true
	return nil
}

// clearInferred deletes the child nodes held by the given properties.
func (r *Resolver) clearInferred(id graph.NodeID, props ...string) error {
	n := r.v.MustGet(id)
	var drop []graph.NodeID
	for _, p := range props {
		drop = append(drop, n.Refs(p)...)
	}
	if len(drop) == 0 {
		return nil
	}
	for _, d := range drop {
		if err := r.v.DeleteTree(d); err != nil {
			return err
		}
	}
	m, err := r.v.Mutable(id)
	if err != nil {
		return err
	}
	for _, p := range props {
		m.Unset(p)
	}
	return nil
}
