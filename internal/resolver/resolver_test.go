package resolver

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelc/internal/diag"
	"modelc/internal/graph"
	"modelc/internal/model"
	"modelc/internal/skeleton"
)

type pendingSet map[graph.NodeID]bool

func (p pendingSet) Pending(id graph.NodeID) bool { return p[id] }

// load materializes docs into a fresh transaction and returns the elements
// of each document.
func load(t *testing.T, docs ...string) (*graph.View, [][]graph.NodeID) {
	t.Helper()
	c := graph.NewContext(logr.Discard())
	owner := graph.NewOwner()
	v, err := c.NewTransaction(owner, false).Enter(owner)
	require.NoError(t, err)
	require.NoError(t, model.Bootstrap(v))

	var out [][]graph.NodeID
	for _, text := range docs {
		doc, err := skeleton.Decode([]byte(text))
		require.NoError(t, err)
		src, err := skeleton.Materialize(v, doc)
		require.NoError(t, err)
		out = append(out, v.MustGet(src).Refs(model.PropNewInstances))
	}
	return v, out
}

func compile(t *testing.T, opts Options, docs ...string) (*graph.View, error) {
	t.Helper()
	v, groups := load(t, docs...)
	r := New(v, nil, opts, logr.Discard())
	var all []graph.NodeID
	for _, g := range groups {
		all = append(all, g...)
	}
	for _, el := range all {
		if err := r.BindDeclaration(el); err != nil {
			return v, err
		}
	}
	for _, el := range all {
		if err := r.ProcessBody(el); err != nil {
			return v, err
		}
	}
	return v, nil
}

func only(t *testing.T, v *graph.View, path string) *graph.Node {
	t.Helper()
	ids := v.Lookup(path)
	require.Len(t, ids, 1, path)
	return v.MustGet(ids[0])
}

func firstBody(t *testing.T, v *graph.View, path string) *graph.Node {
	t.Helper()
	body := only(t, v, path).Refs(model.PropExpressionSequence)
	require.NotEmpty(t, body)
	return v.MustGet(body[0])
}

const helloA = `
id: a.pure
elements:
  - {kind: NativeFunction, package: a, name: helloX, parameters: [{name: i, type: {name: Integer}}, {name: s, type: {name: String}}], return: {name: String}, return_multiplicity: 1}
`

const helloBC = `
id: bc.pure
elements:
  - {kind: NativeFunction, package: "b::c", name: helloX, parameters: [{name: s, type: {name: String}}, {name: i, type: {name: Integer}}], return: {name: String}, return_multiplicity: 1}
`

const helloBD = `
id: bd.pure
elements:
  - {kind: NativeFunction, package: "b::d", name: helloX, parameters: [{name: s, type: {name: String}}, {name: t, type: {name: String}}], return: {name: String}, return_multiplicity: 1}
`

const helloCaller = `
id: test.pure
elements:
  - kind: Function
    package: test
    name: go
    return: {name: String}
    return_multiplicity: 1
    body:
      - kind: call
        name: helloX
        args: [{kind: string, value: "1"}, {kind: string, value: "2"}]
        pos: {line: 3, column: 5}
`

func TestMatch_UnmatchedListsCandidatesByProvenance(t *testing.T) {
	// Declaration order differs from path order on purpose.
	_, err := compile(t, Options{RichDiagnostics: true}, helloBD, helloA, helloBC, helloCaller)
	require.Error(t, err)

	de, ok := diag.As(err)
	require.True(t, ok)
	assert.Equal(t, diag.UnmatchedFunction, de.Kind)
	assert.Equal(t, "test.pure", de.Pos.Source)
	assert.Equal(t, 3, de.Pos.Line)
	assert.Equal(t, "The system can't find a match for the function: helloX(_:String[1],_:String[1])\n"+
		"These functions, in packages already imported, match the function name:\n"+
		"\t(empty)\n"+
		"These functions, in packages not imported, match the function name. Add the package to the import section if you want to use them:\n"+
		"\ta::helloX(Integer[1], String[1]):String[1]\n"+
		"\tb::c::helloX(String[1], Integer[1]):String[1]\n"+
		"\tb::d::helloX(String[1], String[1]):String[1]", de.Message)

	t.Run("Plain diagnostics keep only the header", func(t *testing.T) {
		_, err := compile(t, Options{}, helloA, helloBC, helloBD, helloCaller)
		de, ok := diag.As(err)
		require.True(t, ok)
		assert.Equal(t, "The system can't find a match for the function: helloX(_:String[1],_:String[1])", de.Message)
		assert.Contains(t, err.Error(), "Compilation error at (resource:test.pure line:3 column:5)")
	})
}

const specificity = `
id: specific.pure
elements:
  - {kind: Class, package: test, name: SuperType}
  - {kind: Class, package: test, name: SubType, generalizations: [{name: SuperType}]}
  - {kind: NativeFunction, package: test, name: theFunc, parameters: [{name: a, type: {name: SuperType}}], return: {name: String}, return_multiplicity: 1}
  - {kind: NativeFunction, package: test, name: theFunc, type_parameters: [K], parameters: [{name: a, type: {name: K}}], return: {name: Integer}, return_multiplicity: 1}
  - kind: Function
    package: test
    name: concrete
    return: {name: String}
    return_multiplicity: 1
    body:
      - {kind: call, name: theFunc, args: [{kind: new, name: SubType}]}
  - kind: Function
    package: test
    name: generic
    return: {name: Integer}
    return_multiplicity: 1
    body:
      - {kind: call, name: theFunc, args: [{kind: string, value: x}]}
`

func TestMatch_Specificity(t *testing.T) {
	v, err := compile(t, Options{}, specificity)
	require.NoError(t, err)
	types := model.NewTypes(v)

	var superFn, genericFn graph.NodeID
	for _, id := range v.Lookup("test::theFunc") {
		if v.MustGet(id).Has(model.PropTypeParameters) {
			genericFn = id
		} else {
			superFn = id
		}
	}

	t.Run("Subtype match beats the generic overload", func(t *testing.T) {
		call := firstBody(t, v, "test::concrete")
		assert.Equal(t, superFn, call.Ref(model.PropFunc))
		assert.True(t, call.Validated)
		assert.True(t, only(t, v, "test::concrete").Validated)
	})

	t.Run("Generic overload binds its parameter", func(t *testing.T) {
		call := firstBody(t, v, "test::generic")
		assert.Equal(t, genericFn, call.Ref(model.PropFunc))
		args := call.Refs(model.PropResolvedTypeArguments)
		require.Len(t, args, 1)
		g, err := types.ReadType(args[0])
		require.NoError(t, err)
		assert.Equal(t, "String", types.TypeString(g))

		// The binding is a usage on the type parameter node.
		tp := v.MustGet(v.MustGet(genericFn).Refs(model.PropTypeParameters)[0])
		assert.Contains(t, v.Dependents(tp.ID), call.ID)
	})
}

func TestMatch_TooManyMatches(t *testing.T) {
	doc := `
id: tm.pure
imports: [a, b]
elements:
  - {kind: NativeFunction, package: b, name: f, parameters: [{name: s, type: {name: String}}], return: {name: Boolean}, return_multiplicity: 1}
  - {kind: NativeFunction, package: a, name: f, parameters: [{name: s, type: {name: String}}], return: {name: Boolean}, return_multiplicity: 1}
  - {kind: Function, package: test, name: go, return: {name: Boolean}, return_multiplicity: 1, body: [{kind: call, name: f, args: [{kind: string, value: x}]}]}
`
	_, err := compile(t, Options{}, doc)
	de, ok := diag.As(err)
	require.True(t, ok)
	assert.Equal(t, diag.TooManyMatches, de.Kind)
	assert.Equal(t, "Too many matches for f(_:String[1]):\n\ta::f(String[1]):Boolean[1]\n\tb::f(String[1]):Boolean[1]", de.Message)
}

const mapDoc = `
id: lambda.pure
elements:
  - kind: NativeFunction
    package: test
    name: map
    type_parameters: [T, V]
    parameters:
      - {name: col, type: {name: T}, multiplicity: "*"}
      - name: f
        type: {function: {parameters: [{name: x, type: {name: T}}], return: {name: V}, return_multiplicity: 1}}
    return: {name: V}
    return_multiplicity: "*"
  - {kind: NativeFunction, package: test, name: length, parameters: [{name: s, type: {name: String}}], return: {name: Integer}, return_multiplicity: 1}
  - kind: Function
    package: test
    name: lengths
    parameters: [{name: names, type: {name: String}, multiplicity: "*"}]
    return: {name: Integer}
    return_multiplicity: "*"
    body:
      - kind: call
        name: map
        args:
          - {kind: var, name: names}
          - kind: lambda
            params: [{name: n}]
            body: [{kind: call, name: length, args: [{kind: var, name: n}]}]
  - kind: Function
    package: test
    name: viaReference
    parameters: [{name: names, type: {name: String}, multiplicity: "*"}]
    return: {name: Integer}
    return_multiplicity: "*"
    body:
      - kind: call
        name: map
        args:
          - {kind: var, name: names}
          - {kind: funcref, descriptor: "test::length_String_1__Integer_1_"}
`

func TestInference_Lambda(t *testing.T) {
	v, err := compile(t, Options{}, mapDoc)
	require.NoError(t, err)
	types := model.NewTypes(v)

	call := firstBody(t, v, "test::lengths")
	rt, err := types.ReadType(call.Ref(model.PropResultType))
	require.NoError(t, err)
	rm, err := types.ReadMultiplicity(call.Ref(model.PropResultMultiplicity))
	require.NoError(t, err)
	assert.Equal(t, "Integer[*]", types.SlotString(rt, rm))

	lambda := v.MustGet(call.Refs(model.PropArguments)[1])
	param, err := types.ReadVariable(lambda.Refs(model.PropParameters)[0])
	require.NoError(t, err)
	assert.Equal(t, "String[1]", types.SlotString(param.Type, param.Mult))

	ref := firstBody(t, v, "test::viaReference")
	assert.True(t, ref.Validated)
	fref := v.MustGet(ref.Refs(model.PropArguments)[1])
	assert.Equal(t, only(t, v, "test::length").ID, fref.Ref(model.PropFunc))
}

func TestInference_Conflict(t *testing.T) {
	doc := `
id: conflict.pure
elements:
  - kind: NativeFunction
    package: test
    name: pick
    type_parameters: [T]
    parameters:
      - {name: a, type: {name: T}}
      - name: f
        type: {function: {parameters: [{name: x, type: {name: T}}], return: {name: T}, return_multiplicity: 1}}
    return: {name: T}
    return_multiplicity: 1
  - kind: Function
    package: test
    name: go
    return: {name: String}
    return_multiplicity: 1
    body:
      - kind: call
        name: pick
        pos: {line: 7, column: 1}
        args:
          - {kind: string, value: a}
          - {kind: lambda, params: [{name: x}], body: [{kind: integer, value: "1"}]}
`
	_, err := compile(t, Options{}, doc)
	de, ok := diag.As(err)
	require.True(t, ok)
	assert.Equal(t, diag.InferenceConflict, de.Kind)
	assert.Equal(t, 7, de.Pos.Line)
	assert.Contains(t, de.Message, "returns Integer[1] but String[1] is required")
}

func TestBinder_References(t *testing.T) {
	t.Run("Not defined", func(t *testing.T) {
		doc := `
id: nd.pure
elements:
  - {kind: Function, package: test, name: go, return: {name: Any}, return_multiplicity: 1, body: [{kind: new, name: Missing}]}
`
		_, err := compile(t, Options{}, doc)
		assert.True(t, diag.IsKind(err, diag.UnresolvedReference))
		assert.Contains(t, err.Error(), `"Missing has not been defined!"`)
	})

	t.Run("Ambiguous", func(t *testing.T) {
		doc := `
id: amb.pure
imports: [a, b]
elements:
  - {kind: Class, package: a, name: Thing}
  - {kind: Class, package: b, name: Thing}
  - {kind: NativeFunction, package: test, name: use, parameters: [{name: t, type: {name: Thing}}], return: {name: Boolean}, return_multiplicity: 1}
`
		_, err := compile(t, Options{}, doc)
		de, ok := diag.As(err)
		require.True(t, ok)
		assert.Equal(t, diag.UnresolvedReference, de.Kind)
		assert.Equal(t, "Thing has been found more than one time in the imports: [a::Thing, b::Thing]", de.Message)
	})

	t.Run("Qualified names need no import", func(t *testing.T) {
		doc := `
id: q.pure
elements:
  - {kind: Class, package: a, name: Thing}
  - {kind: NativeFunction, package: test, name: use, parameters: [{name: t, type: {name: "a::Thing"}}], return: {name: Boolean}, return_multiplicity: 1}
`
		v, err := compile(t, Options{}, doc)
		require.NoError(t, err)
		thing := only(t, v, "a::Thing")
		assert.NotEmpty(t, v.Dependents(thing.ID))
	})
}

const membersDoc = `
id: members.pure
elements:
  - kind: Class
    package: test
    name: Box
    type_parameters: [T]
    properties: [{name: value, type: {name: T}, multiplicity: 1}]
  - {kind: Class, package: test, name: Person}
  - {kind: Class, package: test, name: Firm}
  - kind: Association
    package: test
    name: Employment
    properties:
      - {name: employer, type: {name: Firm}, multiplicity: "0..1"}
      - {name: employees, type: {name: Person}, multiplicity: "*"}
  - {kind: Enumeration, package: test, name: Color, values: [Red, Green]}
  - kind: Function
    package: test
    name: unbox
    parameters: [{name: b, type: {name: Box, type_arguments: [{name: String}]}}]
    return: {name: String}
    return_multiplicity: 1
    body: [{kind: property, name: value, args: [{kind: var, name: b}]}]
  - kind: Function
    package: test
    name: employerOf
    parameters: [{name: p, type: {name: Person}}]
    return: {name: Firm}
    return_multiplicity: "0..1"
    body: [{kind: property, name: employer, args: [{kind: var, name: p}]}]
  - kind: Function
    package: test
    name: boxed
    return: {name: Box, type_arguments: [{name: Integer}]}
    return_multiplicity: 1
    body:
      - {kind: let, name: n, args: [{kind: integer, value: "3"}]}
      - {kind: new, name: Box, keys: [{name: value, value: {kind: var, name: n}}]}
  - kind: Function
    package: test
    name: red
    return: {name: Color}
    return_multiplicity: 1
    body: [{kind: enum, name: Color, member: Red}]
`

func TestExpressions_Members(t *testing.T) {
	v, err := compile(t, Options{}, membersDoc)
	require.NoError(t, err)

	person := only(t, v, "test::Person")
	injected := person.Refs(model.PropPropertiesFromAssocs)
	require.Len(t, injected, 1)
	assert.Equal(t, "employer", v.MustGet(injected[0]).Name)

	access := firstBody(t, v, "test::employerOf")
	assert.Equal(t, injected[0], access.Ref(model.PropProperty))

	for _, fn := range []string{"test::unbox", "test::employerOf", "test::boxed", "test::red"} {
		assert.True(t, only(t, v, fn).Validated, fn)
	}

	t.Run("Unknown property", func(t *testing.T) {
		doc := `
id: bad.pure
elements:
  - {kind: Class, package: test, name: Person}
  - {kind: Function, package: test, name: go, parameters: [{name: p, type: {name: Person}}], return: {name: String}, return_multiplicity: 1, body: [{kind: property, name: age, args: [{kind: var, name: p}]}]}
`
		_, err := compile(t, Options{}, doc)
		assert.True(t, diag.IsKind(err, diag.UnresolvedReference))
		assert.Contains(t, err.Error(), "Can't find the property 'age' in the type Person")
	})

	t.Run("Unknown enum value", func(t *testing.T) {
		doc := `
id: bad.pure
elements:
  - {kind: Enumeration, package: test, name: Color, values: [Red]}
  - {kind: Function, package: test, name: go, return: {name: Color}, return_multiplicity: 1, body: [{kind: enum, name: Color, member: Blue}]}
`
		_, err := compile(t, Options{}, doc)
		assert.True(t, diag.IsKind(err, diag.UnresolvedReference))
	})
}

func TestProcessBody_ReturnMismatch(t *testing.T) {
	doc := `
id: ret.pure
elements:
  - {kind: Function, package: test, name: f, return: {name: Integer}, return_multiplicity: 1, body: [{kind: string, value: a}]}
`
	_, err := compile(t, Options{}, doc)
	de, ok := diag.As(err)
	require.True(t, ok)
	assert.Equal(t, diag.TypeMismatch, de.Kind)
	assert.Equal(t, "Return type error in function 'f'; found: String; expected: Integer", de.Message)
}

func TestProcessBody_DefersOnPendingDeclaration(t *testing.T) {
	caller := `
id: caller.pure
elements:
  - {kind: Function, package: test, name: go, return: {name: Integer}, return_multiplicity: 1, body: [{kind: call, name: later, args: []}]}
`
	callee := `
id: callee.pure
elements:
  - {kind: NativeFunction, package: test, name: later, return: {name: Integer}, return_multiplicity: 1}
`
	v, groups := load(t, caller, callee)
	pending := pendingSet{}
	for _, id := range groups[1] {
		pending[id] = true
	}
	r := New(v, pending, Options{}, logr.Discard())
	goFn := groups[0][0]

	require.NoError(t, r.BindDeclaration(goFn))
	err := r.ProcessBody(goFn)
	require.Error(t, err)
	assert.True(t, IsDeferred(err))
	assert.False(t, v.MustGet(goFn).Validated)

	require.NoError(t, r.BindDeclaration(groups[1][0]))
	delete(pending, groups[1][0])
	require.NoError(t, r.ProcessBody(goFn))
	assert.True(t, v.MustGet(goFn).Validated)
}

func TestProcess_Idempotent(t *testing.T) {
	v, groups := load(t, mapDoc)
	r := New(v, nil, Options{}, logr.Discard())
	for _, el := range groups[0] {
		require.NoError(t, r.Process(el))
	}
	before, err := v.Snapshot().Encode()
	require.NoError(t, err)

	// Re-binding bound elements changes nothing.
	for _, el := range groups[0] {
		require.NoError(t, r.Process(el))
	}

	// Re-validating a body reuses the results recorded on its call sites.
	fn, err := v.Mutable(only(t, v, "test::lengths").ID)
	require.NoError(t, err)
	fn.Validated = false
	require.NoError(t, New(v, nil, Options{}, logr.Discard()).ProcessBody(fn.ID))

	after, err := v.Snapshot().Encode()
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func applyDoc(body string) string {
	return `
id: apply.pure
imports: [a, b]
elements:
  - kind: NativeFunction
    package: a
    name: apply
    parameters:
      - name: f
        type: {function: {parameters: [{name: x, type: {name: Integer}}], return: {name: Integer}, return_multiplicity: 1}}
    return: {name: Integer}
    return_multiplicity: 1
  - kind: NativeFunction
    package: b
    name: apply
    parameters:
      - name: f
        type: {function: {parameters: [{name: x, type: {name: String}}], return: {name: Integer}, return_multiplicity: 1}}
    return: {name: Integer}
    return_multiplicity: 1
  - {kind: NativeFunction, package: test, name: plus, parameters: [{name: i, type: {name: Integer}}], return: {name: Integer}, return_multiplicity: 1}
  - kind: Function
    package: test
    name: go
    return: {name: Integer}
    return_multiplicity: 1
    body:
      - kind: call
        name: apply
        args:
          - {kind: lambda, params: [{name: n}], body: [` + body + `]}
`
}

func TestMatch_LambdaBodySelectsOverload(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		winner  string
		param   string
		errKind diag.Kind
		message string
	}{
		{
			name:   "Only the Integer overload types the body",
			body:   "{kind: call, name: plus, args: [{kind: var, name: n}]}",
			winner: "a::apply",
			param:  "Integer[1]",
		},
		{
			name:   "Only the Integer overload returns the right type",
			body:   "{kind: var, name: n}",
			winner: "a::apply",
			param:  "Integer[1]",
		},
		{
			name:    "Both overloads accept the body",
			body:    `{kind: integer, value: "1"}`,
			errKind: diag.TooManyMatches,
			message: "Too many matches for apply(_:LambdaFunction[1]):\n\ta::apply({Integer[1]->Integer[1]}[1]):Integer[1]\n\tb::apply({String[1]->Integer[1]}[1]):Integer[1]",
		},
		{
			name:    "No overload accepts the body",
			body:    `{kind: boolean, value: "true"}`,
			errKind: diag.UnmatchedFunction,
			message: "The system can't find a match for the function: apply(_:LambdaFunction[1])",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := compile(t, Options{}, applyDoc(tt.body))
			if tt.errKind != "" {
				de, ok := diag.As(err)
				require.True(t, ok, "expected a compilation error, got %v", err)
				assert.Equal(t, tt.errKind, de.Kind)
				assert.Equal(t, tt.message, de.Message)
				return
			}
			require.NoError(t, err)
			types := model.NewTypes(v)

			call := firstBody(t, v, "test::go")
			assert.Equal(t, tt.winner, v.Path(call.Ref(model.PropFunc)))

			lambda := v.MustGet(call.Refs(model.PropArguments)[0])
			pid := lambda.Refs(model.PropParameters)[0]
			param, err := types.ReadVariable(pid)
			require.NoError(t, err)
			assert.Equal(t, tt.param, types.SlotString(param.Type, param.Mult))
			assert.Len(t, v.MustGet(pid).Refs(model.PropInferredType), 1)

			// The rejected overload leaves no usages behind.
			for _, id := range v.Lookup("b::apply") {
				assert.Empty(t, v.Dependents(id))
			}
			for _, id := range v.Lookup("test::plus") {
				assert.LessOrEqual(t, len(v.MustGet(id).Usages), 1)
			}
		})
	}
}

func TestInference_MultiplicityParameter(t *testing.T) {
	doc := `
id: mult.pure
elements:
  - kind: NativeFunction
    package: test
    name: id
    multiplicity_parameters: [m]
    parameters: [{name: s, type: {name: String}, multiplicity: m}]
    return: {name: String}
    return_multiplicity: m
  - kind: Function
    package: test
    name: go
    return: {name: String}
    return_multiplicity: "*"
    body:
      - kind: call
        name: id
        args:
          - {kind: collection, args: [{kind: string, value: a}, {kind: string, value: b}]}
`
	v, err := compile(t, Options{}, doc)
	require.NoError(t, err)
	types := model.NewTypes(v)

	call := firstBody(t, v, "test::go")
	rt, err := types.ReadType(call.Ref(model.PropResultType))
	require.NoError(t, err)
	rm, err := types.ReadMultiplicity(call.Ref(model.PropResultMultiplicity))
	require.NoError(t, err)
	assert.Equal(t, "String[2]", types.SlotString(rt, rm))

	m := only(t, v, "test::id").Refs(model.PropMultiplicityParameters)[0]
	assert.Equal(t, []graph.NodeID{m}, call.Refs(model.PropMultiplicityParameterBindings))
	assert.Contains(t, v.Dependents(m), call.ID)

	args := call.Refs(model.PropResolvedMultiplicityArguments)
	require.Len(t, args, 1)
	bound, err := types.ReadMultiplicity(args[0])
	require.NoError(t, err)
	assert.Equal(t, "[2]", bound.String())
}

func TestInference_EmptyCollection(t *testing.T) {
	concat := `
id: concat.pure
elements:
  - kind: NativeFunction
    package: test
    name: concat
    type_parameters: [T]
    parameters:
      - {name: a, type: {name: T}, multiplicity: "*"}
      - {name: b, type: {name: T}, multiplicity: "*"}
    return: {name: T}
    return_multiplicity: "*"
  - kind: Function
    package: test
    name: strings
    return: {name: String}
    return_multiplicity: "*"
    body:
      - kind: call
        name: concat
        args:
          - {kind: collection}
          - {kind: collection, args: [{kind: string, value: a}]}
  - kind: Function
    package: test
    name: nothing
    return: {name: Any}
    return_multiplicity: "*"
    body:
      - kind: call
        name: concat
        args: [{kind: collection}, {kind: collection}]
`
	v, err := compile(t, Options{}, concat)
	require.NoError(t, err)
	types := model.NewTypes(v)

	for path, want := range map[string]string{
		"test::strings": "String[*]",
		"test::nothing": "Nil[*]",
	} {
		call := firstBody(t, v, path)
		rt, err := types.ReadType(call.Ref(model.PropResultType))
		require.NoError(t, err)
		rm, err := types.ReadMultiplicity(call.Ref(model.PropResultMultiplicity))
		require.NoError(t, err)
		assert.Equal(t, want, types.SlotString(rt, rm), path)
	}
}
