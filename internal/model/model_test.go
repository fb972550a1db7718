package model

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelc/internal/graph"
)

func TestMultiplicity(t *testing.T) {
	t.Run("Contains", func(t *testing.T) {
		assert.True(t, ZeroMany.Contains(One))
		assert.True(t, ZeroOne.Contains(Zero))
		assert.True(t, OneMany.Contains(Range(2, 5)))
		assert.False(t, One.Contains(ZeroOne))
		assert.False(t, ZeroOne.Contains(ZeroMany))
		assert.False(t, One.Contains(MultParam("m", 3)))
		assert.True(t, MultParam("m", 3).Contains(MultParam("m", 3)))
	})

	t.Run("Arithmetic", func(t *testing.T) {
		assert.Equal(t, Range(0, 1), Zero.Union(One))
		assert.Equal(t, Range(2, 2), One.Plus(One))
		assert.Equal(t, OneMany, One.Plus(ZeroMany).Union(OneMany))
		assert.Equal(t, ZeroMany, ZeroOne.Times(OneMany))
		assert.Equal(t, Zero, Zero.Times(ZeroMany))
	})

	t.Run("Rendering", func(t *testing.T) {
		cases := map[string]Multiplicity{
			"[1]":    One,
			"[*]":    ZeroMany,
			"[0..1]": ZeroOne,
			"[1..*]": OneMany,
			"[m]":    MultParam("m", 0),
		}
		for want, m := range cases {
			assert.Equal(t, want, m.String())
			parsed, err := ParseMultiplicity(want)
			require.NoError(t, err)
			assert.True(t, m.Equal(parsed), want)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := ParseMultiplicity("3..1")
		assert.Error(t, err)
		_, err = ParseMultiplicity("1..x")
		assert.Error(t, err)
	})
}

func TestDescriptor_RoundTrip(t *testing.T) {
	cases := []struct {
		text string
		want Descriptor
	}{
		{
			text: "f_String_1__Boolean_1_",
			want: Descriptor{Name: "f", Params: []DescriptorPart{{"String", One}}, Return: DescriptorPart{"Boolean", One}},
		},
		{
			text: "f__Boolean_1_",
			want: Descriptor{Name: "f", Return: DescriptorPart{"Boolean", One}},
		},
		{
			text: "meta::pure::filter_T_MANY__Function_1__T_MANY_",
			want: Descriptor{
				Name:   "meta::pure::filter",
				Params: []DescriptorPart{{"T", ZeroMany}, {"Function", One}},
				Return: DescriptorPart{"T", ZeroMany},
			},
		},
		{
			text: "my_func_Integer_$0_1$__String_$1_MANY$_",
			want: Descriptor{
				Name:   "my_func",
				Params: []DescriptorPart{{"Integer", ZeroOne}},
				Return: DescriptorPart{"String", OneMany},
			},
		},
		{
			text: "first_T_m__T_$0_1$_",
			want: Descriptor{
				Name:   "first",
				Params: []DescriptorPart{{"T", Multiplicity{Param: &ParamRef{Name: "m"}}}},
				Return: DescriptorPart{"T", ZeroOne},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			d, err := ParseDescriptor(tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want.String(), d.String())
			assert.Equal(t, tc.text, d.String())
			assert.Equal(t, tc.want.Name, d.Name)
			assert.Len(t, d.Params, len(tc.want.Params))
		})
	}

	for _, bad := range []string{"", "f", "f_String_1", "_String_1_"} {
		_, err := ParseDescriptor(bad)
		assert.Error(t, err, bad)
	}
}

func newBootstrapped(t *testing.T) (*graph.View, *Types) {
	t.Helper()
	c := graph.NewContext(logr.Discard())
	owner := graph.NewOwner()
	txn := c.NewTransaction(owner, false)
	v, err := txn.Enter(owner)
	require.NoError(t, err)
	require.NoError(t, Bootstrap(v))
	return v, NewTypes(v)
}

func TestTypes_Subtyping(t *testing.T) {
	v, types := newBootstrapped(t)

	// Animal <- Dog
	animal := v.Create(graph.KindClass, "Animal", graph.RootID, "s")
	dog := v.Create(graph.KindClass, "Dog", graph.RootID, "s")
	gid, err := types.WriteType(dog.ID, Concrete(animal.ID), "s")
	require.NoError(t, err)
	dog.Append(PropGeneralizations, graph.RefValue(gid))

	integer := Concrete(types.Primitive(Integer))
	number := Concrete(types.Primitive(Number))
	str := Concrete(types.Primitive(String))

	cases := []struct {
		name     string
		sub, sup GenericType
		want     bool
	}{
		{"Integer is a Number", integer, number, true},
		{"Number is not an Integer", number, integer, false},
		{"Everything is Any", str, types.Any(), true},
		{"Nil is everything", types.Nil(), integer, true},
		{"Dog is an Animal", Concrete(dog.ID), Concrete(animal.ID), true},
		{"Animal is not a Dog", Concrete(animal.ID), Concrete(dog.ID), false},
		{"Parameters are rigid", TypeParam("T", 99), str, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := types.IsSubtype(tc.sub, tc.sup)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	common, err := types.CommonSupertype(integer, Concrete(types.Primitive(Float)))
	require.NoError(t, err)
	assert.True(t, common.Equal(number))

	common, err = types.CommonSupertype(str, integer)
	require.NoError(t, err)
	assert.True(t, types.IsAny(common))
}

func TestTypes_WriteReadAndPrint(t *testing.T) {
	v, types := newBootstrapped(t)

	fn := v.Create(graph.KindConcreteFunction, "helloX", graph.RootID, "s")
	tp := v.Create(graph.KindTypeParameter, "T", fn.ID, "s")
	fn.Append(PropTypeParameters, graph.RefValue(tp.ID))

	ft := FunctionType{
		Params: []Param{
			{Name: "a", Type: TypeParam("T", fn.ID), Mult: ZeroMany},
			{Name: "b", Type: Concrete(types.Primitive(String)), Mult: One},
		},
		Return:     Concrete(types.Primitive(Boolean)),
		ReturnMult: ZeroOne,
	}
	id, err := types.WriteType(fn.ID, GenericType{Func: &ft}, "s")
	require.NoError(t, err)

	got, err := types.ReadType(id)
	require.NoError(t, err)
	require.NotNil(t, got.Func)
	assert.True(t, got.Func.Equal(ft))
	assert.Equal(t, "{T[*],String[1]->Boolean[0..1]}", types.TypeString(got))

	// The type parameter records the usage.
	assert.Len(t, v.MustGet(tp.ID).Usages, 1)

	sig := Signature{Fn: fn.ID, Name: "helloX", FunctionType: ft}
	assert.Equal(t, "helloX(T[*], String[1]):Boolean[0..1]", types.SignatureString(sig))
	assert.Equal(t, "helloX_T_MANY__String_1__Boolean_$0_1$_", types.Descriptor("helloX", sig).String())
	assert.Equal(t, "_:T[*],_:String[1]", types.ArgSignature(ft.Params))
}
