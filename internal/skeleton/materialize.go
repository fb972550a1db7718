package skeleton

import (
	"fmt"
	"strconv"
	"strings"

	"modelc/internal/diag"
	"modelc/internal/graph"
	"modelc/internal/model"
)

var elementKinds = map[string]graph.Kind{
	ElementClass:          graph.KindClass,
	ElementEnumeration:    graph.KindEnumeration,
	ElementAssociation:    graph.KindAssociation,
	ElementFunction:       graph.KindConcreteFunction,
	ElementNativeFunction: graph.KindNativeFunction,
}

// SourceNode finds the Source node registered under id.
func SourceNode(v *graph.View, id string) (graph.NodeID, bool) {
	for _, n := range v.ByName(0, id) {
		if node, _ := v.Get(n); node != nil && node.Kind == graph.KindSource {
			return n, true
		}
	}
	return 0, false
}

// Materialize creates the Source node and unbound element nodes for doc.
// Every reference stays a name placeholder. Nothing is created when the
// document clashes with existing elements.
func Materialize(v *graph.View, doc *Document) (graph.NodeID, error) {
	if _, exists := SourceNode(v, doc.ID); exists {
		return 0, diag.Newf(diag.Structural, &graph.SourceInformation{Source: doc.ID}, "source %s already exists", doc.ID)
	}
	if err := checkDuplicates(v, doc); err != nil {
		return 0, err
	}

	src := v.Create(graph.KindSource, doc.ID, 0, doc.ID)
	src.Set(model.PropText, graph.StringValue(doc.Text))
	src.Set(model.PropContentHash, graph.StringValue(ContentHash(doc.Text)))
	src.Set(model.PropImmutable, graph.BoolValue(doc.Immutable))
	src.Set(model.PropCompiled, graph.BoolValue(false))
	for _, imp := range doc.Imports {
		src.Append(model.PropImports, graph.StringValue(imp))
	}

	m := &materializer{v: v, source: doc.ID, floor: src.ID}
	for _, el := range doc.Elements {
		id, err := m.element(el)
		if err != nil {
			m.discard()
			_ = v.Delete(src.ID)
			return 0, err
		}
		src.Append(model.PropNewInstances, graph.RefValue(id))
	}
	return src.ID, nil
}

func checkDuplicates(v *graph.View, doc *Document) error {
	seen := make(map[string]bool)
	for _, el := range doc.Elements {
		key := elementKey(el)
		pos := toPos(doc.ID, el.Pos)
		if seen[key] {
			return diag.Newf(diag.Structural, pos, "%s has already been defined", el.Path())
		}
		seen[key] = true

		pkg, ok := v.Package(el.Package)
		if !ok {
			continue
		}
		for _, id := range v.ByName(pkg, el.Name) {
			n := v.MustGet(id)
			if n.Kind == graph.KindPackage {
				continue
			}
			if n.Kind.IsFunction() != isFunction(el) || !isFunction(el) || existingKey(v, n) == key {
				return diag.Newf(diag.Structural, pos, "%s has already been defined", el.Path())
			}
		}
	}
	return nil
}

func isFunction(el Element) bool {
	return el.Kind == ElementFunction || el.Kind == ElementNativeFunction
}

// elementKey identifies an element for duplicate detection. Functions are
// keyed by their declared parameter types so overloads can coexist.
func elementKey(el Element) string {
	if !isFunction(el) {
		return el.Path()
	}
	parts := make([]string, len(el.Parameters))
	for i, p := range el.Parameters {
		parts[i] = slotKey(p.Type, p.Multiplicity)
	}
	return el.Path() + "(" + strings.Join(parts, ",") + ")"
}

func slotKey(t *TypeRef, mult string) string {
	name := ""
	if t != nil {
		name = typeRefKey(*t)
	}
	if mult == "" {
		mult = "1"
	}
	return name + "[" + mult + "]"
}

// typeRefKey renders function types in full, {P[m],...->R[m]}, so that
// overloads differing only in a function parameter stay distinct.
func typeRefKey(t TypeRef) string {
	if f := t.Function; f != nil {
		parts := make([]string, len(f.Parameters))
		for i, p := range f.Parameters {
			parts[i] = slotKey(p.Type, p.Multiplicity)
		}
		return "{" + strings.Join(parts, ",") + "->" + slotKey(&f.Return, f.ReturnMultiplicity) + "}"
	}
	return t.Name
}

func existingKey(v *graph.View, fn *graph.Node) string {
	return v.Path(fn.ID) + "(" + existingParams(v, fn) + ")"
}

func existingParams(v *graph.View, owner *graph.Node) string {
	var parts []string
	for _, pid := range owner.Refs(model.PropParameters) {
		p := v.MustGet(pid)
		parts = append(parts, existingSlot(v, p.Ref(model.PropGenericType), p.Ref(model.PropMultiplicity)))
	}
	return strings.Join(parts, ",")
}

func existingSlot(v *graph.View, typ, mult graph.NodeID) string {
	name := ""
	if gt, ok := v.Get(typ); ok {
		switch {
		case gt.Has(model.PropFunctionType):
			ft := v.MustGet(gt.Ref(model.PropFunctionType))
			name = "{" + existingParams(v, ft) + "->" +
				existingSlot(v, ft.Ref(model.PropReturnType), ft.Ref(model.PropReturnMultiplicity)) + "}"
		case gt.Has(model.PropRawTypeName):
			name = gt.String(model.PropRawTypeName)
		default:
			name = gt.String(model.PropTypeParameterName)
		}
	}
	text := ""
	if mn, ok := v.Get(mult); ok {
		text = mn.String(model.PropSourceText)
	}
	return name + "[" + text + "]"
}

func toPos(source string, p *Pos) *graph.SourceInformation {
	if p == nil {
		return &graph.SourceInformation{Source: source}
	}
	return &graph.SourceInformation{
		Source:    source,
		Line:      p.Line,
		Column:    p.Column,
		EndLine:   p.EndLine,
		EndColumn: p.EndColumn,
	}
}

type materializer struct {
	v       *graph.View
	source  string
	created []*graph.Node
	// floor is the id of the source node; packages with a larger id were
	// created for this document.
	floor graph.NodeID
}

// discard removes everything created so far, including package membership
// and the packages created for the document.
func (m *materializer) discard() {
	var pkgs []graph.NodeID
	for i := len(m.created) - 1; i >= 0; i-- {
		n := m.created[i]
		if n.Kind.IsPackageable() {
			m.v.RemoveChild(n.Parent, n.ID)
			pkgs = append(pkgs, n.Parent)
		}
		_ = m.v.Delete(n.ID)
	}
	m.created = nil
	for _, pkg := range pkgs {
		m.prune(pkg)
	}
}

func (m *materializer) prune(pkg graph.NodeID) {
	for pkg > m.floor {
		n, ok := m.v.Get(pkg)
		if !ok || n.Kind != graph.KindPackage || len(m.v.Children(pkg)) > 0 {
			return
		}
		m.v.RemoveChild(n.Parent, pkg)
		_ = m.v.Delete(pkg)
		pkg = n.Parent
	}
}

func (m *materializer) structural(pos *Pos, format string, a ...any) error {
	return diag.Newf(diag.Structural, toPos(m.source, pos), format, a...)
}

func (m *materializer) create(kind graph.Kind, name string, parent graph.NodeID, pos *Pos) *graph.Node {
	n := m.v.Create(kind, name, parent, m.source)
	n.Pos = toPos(m.source, pos)
	m.created = append(m.created, n)
	return n
}

func (m *materializer) element(el Element) (graph.NodeID, error) {
	kind, ok := elementKinds[el.Kind]
	if !ok {
		return 0, m.structural(el.Pos, "unknown element kind %q", el.Kind)
	}
	pkg := m.v.EnsurePackage(el.Package)
	n := m.create(kind, el.Name, pkg, el.Pos)
	m.v.AddChild(pkg, n.ID)

	for _, tp := range el.TypeParameters {
		p := m.create(graph.KindTypeParameter, tp, n.ID, el.Pos)
		n.Append(model.PropTypeParameters, graph.RefValue(p.ID))
	}
	for _, mp := range el.MultiplicityParameters {
		p := m.create(graph.KindMultiplicityParameter, mp, n.ID, el.Pos)
		n.Append(model.PropMultiplicityParameters, graph.RefValue(p.ID))
	}
	sc := scope{types: el.TypeParameters}

	switch kind {
	case graph.KindClass:
		for _, g := range el.Generalizations {
			id, err := m.typeRef(n.ID, g, sc, el.Pos)
			if err != nil {
				return 0, err
			}
			n.Append(model.PropGeneralizations, graph.RefValue(id))
		}
		for _, p := range el.Properties {
			id, err := m.property(n.ID, p, sc)
			if err != nil {
				return 0, err
			}
			n.Append(model.PropProperties, graph.RefValue(id))
		}
	case graph.KindEnumeration:
		for _, val := range el.Values {
			e := m.create(graph.KindEnum, val, n.ID, el.Pos)
			n.Append(model.PropValues, graph.RefValue(e.ID))
		}
	case graph.KindAssociation:
		if len(el.Properties) != 2 {
			return 0, m.structural(el.Pos, "association %s must declare exactly two properties", el.Path())
		}
		for _, p := range el.Properties {
			id, err := m.property(n.ID, p, sc)
			if err != nil {
				return 0, err
			}
			n.Append(model.PropProperties, graph.RefValue(id))
		}
	case graph.KindConcreteFunction, graph.KindNativeFunction:
		if err := m.signature(n, el.Parameters, el.Return, el.ReturnMultiplicity, sc, el.Pos); err != nil {
			return 0, err
		}
		if kind == graph.KindNativeFunction && len(el.Body) > 0 {
			return 0, m.structural(el.Pos, "native function %s cannot have a body", el.Path())
		}
		if kind == graph.KindConcreteFunction && len(el.Body) == 0 {
			return 0, m.structural(el.Pos, "function %s has an empty body", el.Path())
		}
		for _, e := range el.Body {
			id, err := m.expr(n.ID, e, sc)
			if err != nil {
				return 0, err
			}
			n.Append(model.PropExpressionSequence, graph.RefValue(id))
		}
	}
	return n.ID, nil
}

// scope holds the type parameter names visible to type references.
type scope struct {
	types []string
}

func (s scope) isTypeParam(name string) bool {
	for _, t := range s.types {
		if t == name {
			return true
		}
	}
	return false
}

func (m *materializer) property(owner graph.NodeID, p PropertyDecl, sc scope) (graph.NodeID, error) {
	n := m.create(graph.KindProperty, p.Name, owner, p.Pos)
	tid, err := m.typeRef(n.ID, p.Type, sc, p.Pos)
	if err != nil {
		return 0, err
	}
	mid, err := m.multiplicity(n.ID, p.Multiplicity, p.Pos)
	if err != nil {
		return 0, err
	}
	n.Set(model.PropGenericType, graph.RefValue(tid))
	n.Set(model.PropMultiplicity, graph.RefValue(mid))
	return n.ID, nil
}

// signature writes parameters and return onto a function or FunctionType.
func (m *materializer) signature(n *graph.Node, params []Param, ret *TypeRef, retMult string, sc scope, pos *Pos) error {
	for _, p := range params {
		if p.Type == nil {
			return m.structural(pos, "parameter %s of %s needs a type", p.Name, n.Name)
		}
		id, err := m.variable(n.ID, p, sc, pos)
		if err != nil {
			return err
		}
		n.Append(model.PropParameters, graph.RefValue(id))
	}
	if ret == nil {
		return m.structural(pos, "%s needs a return type", n.Name)
	}
	rid, err := m.typeRef(n.ID, *ret, sc, pos)
	if err != nil {
		return err
	}
	mid, err := m.multiplicity(n.ID, retMult, pos)
	if err != nil {
		return err
	}
	n.Set(model.PropReturnType, graph.RefValue(rid))
	n.Set(model.PropReturnMultiplicity, graph.RefValue(mid))
	return nil
}

func (m *materializer) variable(owner graph.NodeID, p Param, sc scope, pos *Pos) (graph.NodeID, error) {
	n := m.create(graph.KindVariable, p.Name, owner, pos)
	if p.Type == nil {
		return n.ID, nil
	}
	tid, err := m.typeRef(n.ID, *p.Type, sc, pos)
	if err != nil {
		return 0, err
	}
	mid, err := m.multiplicity(n.ID, p.Multiplicity, pos)
	if err != nil {
		return 0, err
	}
	n.Set(model.PropGenericType, graph.RefValue(tid))
	n.Set(model.PropMultiplicity, graph.RefValue(mid))
	return n.ID, nil
}

func (m *materializer) typeRef(owner graph.NodeID, t TypeRef, sc scope, fallback *Pos) (graph.NodeID, error) {
	pos := t.Pos
	if pos == nil {
		pos = fallback
	}
	n := m.create(graph.KindGenericType, "", owner, pos)
	switch {
	case t.Function != nil:
		ft := m.create(graph.KindFunctionType, "", n.ID, pos)
		if err := m.signature(ft, t.Function.Parameters, &t.Function.Return, t.Function.ReturnMultiplicity, sc, pos); err != nil {
			return 0, err
		}
		n.Set(model.PropFunctionType, graph.RefValue(ft.ID))
		return n.ID, nil
	case t.Name == "":
		return 0, m.structural(pos, "type reference without a name")
	case sc.isTypeParam(t.Name):
		if len(t.TypeArguments) > 0 {
			return 0, m.structural(pos, "type parameter %s cannot take type arguments", t.Name)
		}
		n.Set(model.PropTypeParameterName, graph.StringValue(t.Name))
		return n.ID, nil
	}
	n.Set(model.PropRawTypeName, graph.StringValue(t.Name))
	for _, a := range t.TypeArguments {
		id, err := m.typeRef(n.ID, a, sc, pos)
		if err != nil {
			return 0, err
		}
		n.Append(model.PropTypeArguments, graph.RefValue(id))
	}
	for _, ma := range t.MultiplicityArguments {
		id, err := m.multiplicity(n.ID, ma, pos)
		if err != nil {
			return 0, err
		}
		n.Append(model.PropMultiplicityArguments, graph.RefValue(id))
	}
	return n.ID, nil
}

func (m *materializer) multiplicity(owner graph.NodeID, text string, pos *Pos) (graph.NodeID, error) {
	if text == "" {
		text = "1"
	}
	mult, err := model.ParseMultiplicity(text)
	if err != nil {
		return 0, m.structural(pos, "%v", err)
	}
	n := m.create(graph.KindMultiplicity, "", owner, pos)
	n.Set(model.PropSourceText, graph.StringValue(text))
	if mult.Param != nil {
		n.Set(model.PropMultiplicityParameterName, graph.StringValue(mult.Param.Name))
		return n.ID, nil
	}
	model.SetBounds(n, mult)
	n.Bound = true
	return n.ID, nil
}

func (m *materializer) expr(owner graph.NodeID, e Expr, sc scope) (graph.NodeID, error) {
	switch e.Kind {
	case ExprString, ExprInteger, ExprFloat, ExprBoolean:
		return m.literal(owner, e)
	case ExprCollection:
		n := m.create(graph.KindInstanceValue, "", owner, e.Pos)
		for _, a := range e.Args {
			id, err := m.expr(n.ID, a, sc)
			if err != nil {
				return 0, err
			}
			n.Append(model.PropValues, graph.RefValue(id))
		}
		return n.ID, nil
	case ExprCall:
		n := m.create(graph.KindFunctionExpression, e.Name, owner, e.Pos)
		n.Set(model.PropFunctionName, graph.StringValue(e.Name))
		for _, a := range e.Args {
			id, err := m.expr(n.ID, a, sc)
			if err != nil {
				return 0, err
			}
			n.Append(model.PropArguments, graph.RefValue(id))
		}
		return n.ID, nil
	case ExprVar:
		if e.Name == "" {
			return 0, m.structural(e.Pos, "variable reference without a name")
		}
		return m.create(graph.KindVariableExpression, e.Name, owner, e.Pos).ID, nil
	case ExprLambda:
		n := m.create(graph.KindLambdaFunction, "", owner, e.Pos)
		for _, p := range e.Params {
			id, err := m.variable(n.ID, p, sc, e.Pos)
			if err != nil {
				return 0, err
			}
			n.Append(model.PropParameters, graph.RefValue(id))
		}
		if len(e.Body) == 0 {
			return 0, m.structural(e.Pos, "lambda with an empty body")
		}
		for _, b := range e.Body {
			id, err := m.expr(n.ID, b, sc)
			if err != nil {
				return 0, err
			}
			n.Append(model.PropExpressionSequence, graph.RefValue(id))
		}
		return n.ID, nil
	case ExprFuncRef:
		n := m.create(graph.KindFunctionReference, e.Name, owner, e.Pos)
		switch {
		case e.Descriptor != "":
			if _, err := model.ParseDescriptor(lastSegment(e.Descriptor)); err != nil {
				return 0, m.structural(e.Pos, "%v", err)
			}
			n.Set(model.PropDescriptor, graph.StringValue(e.Descriptor))
		case e.Name != "":
			n.Set(model.PropFunctionName, graph.StringValue(e.Name))
		default:
			return 0, m.structural(e.Pos, "function reference needs a name or descriptor")
		}
		return n.ID, nil
	case ExprNew:
		n := m.create(graph.KindNewInstance, e.Name, owner, e.Pos)
		n.Set(model.PropClassName, graph.StringValue(e.Name))
		if e.Type != nil {
			for _, a := range e.Type.TypeArguments {
				id, err := m.typeRef(n.ID, a, sc, e.Pos)
				if err != nil {
					return 0, err
				}
				n.Append(model.PropTypeArguments, graph.RefValue(id))
			}
		}
		for _, kv := range e.Keys {
			k := m.create(graph.KindKeyValue, kv.Name, n.ID, kv.Value.Pos)
			id, err := m.expr(k.ID, kv.Value, sc)
			if err != nil {
				return 0, err
			}
			k.Set(model.PropExpression, graph.RefValue(id))
			n.Append(model.PropKeyValues, graph.RefValue(k.ID))
		}
		return n.ID, nil
	case ExprCast:
		if len(e.Args) != 1 || e.Type == nil {
			return 0, m.structural(e.Pos, "cast needs one operand and a target type")
		}
		n := m.create(graph.KindCast, "", owner, e.Pos)
		return n.ID, m.unary(n, e, sc, func() error {
			tid, err := m.typeRef(n.ID, *e.Type, sc, e.Pos)
			if err != nil {
				return err
			}
			n.Set(model.PropGenericType, graph.RefValue(tid))
			return nil
		})
	case ExprProperty:
		if len(e.Args) != 1 || e.Name == "" {
			return 0, m.structural(e.Pos, "property access needs one receiver and a property name")
		}
		n := m.create(graph.KindPropertyAccess, e.Name, owner, e.Pos)
		n.Set(model.PropPropertyName, graph.StringValue(e.Name))
		return n.ID, m.unary(n, e, sc, nil)
	case ExprEnum:
		if e.Name == "" || e.Member == "" {
			return 0, m.structural(e.Pos, "enum reference needs an enumeration and a value")
		}
		n := m.create(graph.KindEnumValueReference, e.Member, owner, e.Pos)
		n.Set(model.PropEnumerationName, graph.StringValue(e.Name))
		n.Set(model.PropValueName, graph.StringValue(e.Member))
		return n.ID, nil
	case ExprLet:
		if len(e.Args) != 1 || e.Name == "" {
			return 0, m.structural(e.Pos, "let needs a name and one value")
		}
		n := m.create(graph.KindLet, e.Name, owner, e.Pos)
		return n.ID, m.unary(n, e, sc, nil)
	}
	return 0, m.structural(e.Pos, "unknown expression kind %q", e.Kind)
}

func (m *materializer) unary(n *graph.Node, e Expr, sc scope, extra func() error) error {
	id, err := m.expr(n.ID, e.Args[0], sc)
	if err != nil {
		return err
	}
	n.Set(model.PropExpression, graph.RefValue(id))
	if extra != nil {
		return extra()
	}
	return nil
}

func (m *materializer) literal(owner graph.NodeID, e Expr) (graph.NodeID, error) {
	var lt graph.LiteralType
	switch e.Kind {
	case ExprString:
		lt = graph.LiteralString
	case ExprInteger:
		if _, err := strconv.ParseInt(e.Value, 10, 64); err != nil {
			return 0, m.structural(e.Pos, "invalid integer literal %q", e.Value)
		}
		lt = graph.LiteralInteger
	case ExprFloat:
		if _, err := strconv.ParseFloat(e.Value, 64); err != nil {
			return 0, m.structural(e.Pos, "invalid float literal %q", e.Value)
		}
		lt = graph.LiteralFloat
	case ExprBoolean:
		if e.Value != "true" && e.Value != "false" {
			return 0, m.structural(e.Pos, "invalid boolean literal %q", e.Value)
		}
		lt = graph.LiteralBoolean
	}
	n := m.create(graph.KindInstanceValue, "", owner, e.Pos)
	n.Set(model.PropValues, graph.LiteralValue(lt, e.Value))
	return n.ID, nil
}

func lastSegment(path string) string {
	_, name := graph.SplitPath(path)
	return name
}

// Describe renders a short label for a document, used in logs.
func Describe(doc *Document) string {
	return fmt.Sprintf("%s (%d elements)", doc.ID, len(doc.Elements))
}
