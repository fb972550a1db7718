package unbind

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelc/internal/graph"
	"modelc/internal/model"
	"modelc/internal/resolver"
	"modelc/internal/skeleton"
)

func compiled(t *testing.T, docs ...string) *graph.View {
	t.Helper()
	c := graph.NewContext(logr.Discard())
	owner := graph.NewOwner()
	v, err := c.NewTransaction(owner, false).Enter(owner)
	require.NoError(t, err)
	require.NoError(t, model.Bootstrap(v))

	var all []graph.NodeID
	for _, text := range docs {
		doc, err := skeleton.Decode([]byte(text))
		require.NoError(t, err)
		src, err := skeleton.Materialize(v, doc)
		require.NoError(t, err)
		all = append(all, v.MustGet(src).Refs(model.PropNewInstances)...)
	}
	r := resolver.New(v, nil, resolver.Options{}, logr.Discard())
	for _, el := range all {
		require.NoError(t, r.Process(el))
	}
	return v
}

func element(t *testing.T, v *graph.View, path string) *graph.Node {
	t.Helper()
	ids := v.Lookup(path)
	require.Len(t, ids, 1, path)
	return v.MustGet(ids[0])
}

const classA = `
id: a.pure
elements:
  - {kind: Class, package: test, name: A}
`

const functions = `
id: fn.pure
elements:
  - {kind: Function, package: test, name: testFn, parameters: [{name: a, type: {name: A}}], return: {name: String}, return_multiplicity: 1, body: [{kind: string, value: x}]}
  - {kind: Function, package: test, name: other, parameters: [{name: s, type: {name: String}}], return: {name: String}, return_multiplicity: 1, body: [{kind: var, name: s}]}
`

func TestUnbindDependents_Closure(t *testing.T) {
	v := compiled(t, classA, functions)
	a := element(t, v, "test::A")
	require.NotEmpty(t, v.Dependents(a.ID))

	tr := New(v, []string{"a.pure"}, logr.Discard())
	unbound, err := tr.UnbindDependents(a.ID)
	require.NoError(t, err)

	testFn := element(t, v, "test::testFn")
	assert.Equal(t, []graph.NodeID{testFn.ID}, unbound)
	assert.False(t, testFn.Bound)
	assert.False(t, testFn.Validated)
	assert.Empty(t, v.Dependents(a.ID))

	param := v.MustGet(testFn.Refs(model.PropParameters)[0])
	gt := v.MustGet(param.Ref(model.PropGenericType))
	assert.False(t, gt.Has(model.PropRawType))
	assert.Equal(t, "A", gt.String(model.PropRawTypeName))

	other := element(t, v, "test::other")
	assert.True(t, other.Validated)

	src, ok := skeleton.SourceNode(v, "fn.pure")
	require.True(t, ok)
	lit, _ := v.MustGet(src).Literal(model.PropCompiled)
	assert.False(t, lit.Bool())

	t.Run("Rebinding restores the element", func(t *testing.T) {
		r := resolver.New(v, nil, resolver.Options{}, logr.Discard())
		require.NoError(t, r.Process(testFn.ID))
		assert.True(t, v.MustGet(testFn.ID).Validated)
		assert.Contains(t, v.Dependents(a.ID), gt.ID)
	})
}

func TestUnbindTransitive(t *testing.T) {
	doc := `
id: people.pure
elements:
  - {kind: Class, package: test, name: Person}
  - {kind: Class, package: test, name: Firm}
  - kind: Association
    package: test
    name: Employment
    properties:
      - {name: employer, type: {name: Firm}, multiplicity: "0..1"}
      - {name: employees, type: {name: Person}, multiplicity: "*"}
`
	uses := `
id: uses.pure
elements:
  - kind: Function
    package: test
    name: employerOf
    parameters: [{name: p, type: {name: Person}}]
    return: {name: Firm}
    return_multiplicity: "0..1"
    body: [{kind: property, name: employer, args: [{kind: var, name: p}]}]
  - kind: Function
    package: test
    name: names
    parameters: [{name: s, type: {name: String}, multiplicity: "*"}]
    return: {name: String}
    return_multiplicity: "*"
    body: [{kind: var, name: s}]
`
	frozen := `
id: frozen.pure
immutable: true
elements:
  - {kind: NativeFunction, package: lib, name: hire, parameters: [{name: f, type: {name: "test::Firm"}}], return: {name: Boolean}, return_multiplicity: 1}
`

	tests := []struct {
		name      string
		start     string
		unbound   []string
		untouched []string
	}{
		{
			name:      "Association withdraws injected ends",
			start:     "test::Employment",
			unbound:   []string{"test::Employment", "test::employerOf"},
			untouched: []string{"test::Person", "test::Firm", "test::names", "lib::hire"},
		},
		{
			name:      "Class change reaches association users",
			start:     "test::Firm",
			unbound:   []string{"test::Firm", "test::Employment", "test::employerOf"},
			untouched: []string{"test::Person", "test::names", "lib::hire"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compiled(t, doc, uses, frozen)
			tr := New(v, nil, logr.Discard())

			got, err := tr.UnbindTransitive(element(t, v, tt.start).ID)
			require.NoError(t, err)

			var paths []string
			for _, id := range got {
				paths = append(paths, v.Path(id))
			}
			assert.ElementsMatch(t, tt.unbound, paths)
			for _, p := range tt.unbound {
				assert.False(t, element(t, v, p).Bound, p)
			}
			for _, p := range tt.untouched {
				assert.True(t, element(t, v, p).Bound, p)
			}
			assert.Empty(t, element(t, v, "test::Person").Refs(model.PropPropertiesFromAssocs))
		})
	}
}

func TestInScope(t *testing.T) {
	frozen := `
id: frozen.pure
immutable: true
elements:
  - {kind: Class, package: lib, name: Base}
`
	v := compiled(t, frozen, classA)
	tr := New(v, []string{"a.pure"}, logr.Discard())
	assert.False(t, tr.InScope(element(t, v, "lib::Base").ID))
	assert.False(t, tr.InScope(element(t, v, "test::A").ID))
	assert.False(t, tr.InScope(graph.RootID))

	unbound, err := tr.UnbindTransitive(element(t, v, "lib::Base").ID)
	require.NoError(t, err)
	assert.Empty(t, unbound)
	assert.True(t, element(t, v, "lib::Base").Bound)
}

const nestedLambda = `
id: nested.pure
elements:
  - kind: NativeFunction
    package: test
    name: each
    type_parameters: [T, V]
    parameters:
      - {name: col, type: {name: T}, multiplicity: "*"}
      - name: f
        type: {function: {parameters: [{name: x, type: {name: T}}], return: {name: V}, return_multiplicity: 1}}
    return: {name: V}
    return_multiplicity: "*"
  - kind: Function
    package: test
    name: build
    parameters: [{name: names, type: {name: String}, multiplicity: "*"}]
    return: {name: A}
    return_multiplicity: "*"
    body:
      - kind: call
        name: each
        args:
          - {kind: var, name: names}
          - {kind: lambda, params: [{name: n}], body: [{kind: new, name: A}]}
`

func TestUnbindDependents_ReachesNestedLambdas(t *testing.T) {
	v := compiled(t, classA, nestedLambda)
	a := element(t, v, "test::A")
	build := element(t, v, "test::build")

	call := v.MustGet(build.Refs(model.PropExpressionSequence)[0])
	lambda := v.MustGet(call.Refs(model.PropArguments)[1])
	param := lambda.Refs(model.PropParameters)[0]
	inner := lambda.Refs(model.PropExpressionSequence)[0]
	require.Equal(t, a.ID, v.MustGet(inner).Ref(model.PropClass))
	require.True(t, v.MustGet(param).Has(model.PropInferredType))

	tr := New(v, []string{"a.pure"}, logr.Discard())
	unbound, err := tr.UnbindDependents(a.ID)
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeID{build.ID}, unbound)

	newA := v.MustGet(inner)
	assert.False(t, newA.Bound)
	assert.False(t, newA.Has(model.PropClass))
	assert.False(t, newA.Has(model.PropResultType))
	assert.False(t, v.MustGet(lambda.ID).Validated)
	assert.False(t, v.MustGet(param).Has(model.PropInferredType))
	assert.Empty(t, v.Dependents(a.ID))
	assert.True(t, element(t, v, "test::each").Validated)
}
