package silo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetObject(t *testing.T) {
	f := newFile(t)
	c := &Curve{X: []float32{0, 1, 2}, Y: []float32{1, 2, 3}, XLabel: "time"}
	require.NoError(t, f.PutCurve("energy", c))
	require.NoError(t, f.PutQuadMesh("grid", &QuadMesh{
		CoordType: KindQuadRect,
		Coords:    []any{[]float64{0, 1}, []float64{0, 1}},
		Dims:      []int{2, 2},
		Cycle:     4,
		Time:      1.5,
	}))

	o, err := f.GetObject("energy")
	require.NoError(t, err)
	assert.Equal(t, "/energy", o.Name)
	assert.Equal(t, KindCurve, o.Kind)
	assert.Contains(t, o.Components, "xlabel")
	assert.NotContains(t, o.Components, "ylabel", "empty members are not stored")

	assert.Equal(t, ComponentString, o.Type("xlabel"))
	assert.Equal(t, ComponentVariable, o.Type("xvarname"))
	assert.Equal(t, ComponentInt, o.Type("npts"))
	assert.Equal(t, ComponentInvalid, o.Type("nope"))

	g, err := f.GetObject("grid")
	require.NoError(t, err)
	assert.Equal(t, KindQuadMesh, g.Kind)
	assert.Equal(t, ComponentInt, g.Type("cycle"))
	assert.Equal(t, ComponentDouble, g.Type("dtime"))

	typ, err := f.ComponentType("energy", "yvarname")
	require.NoError(t, err)
	assert.Equal(t, ComponentVariable, typ)
	_, err = f.ComponentType("energy", "ylabel")
	assert.Equal(t, NotFound, CodeOf(err))

	v, err := f.Component("energy", "yvarname")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, v)
	v, err = f.Component("energy", "npts")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
	v, err = f.Component("grid", "cycle")
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)
	v, err = f.Component("grid", "dtime")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
}

func TestGetObjectOnDataset(t *testing.T) {
	f := newFile(t)
	require.NoError(t, f.Write("plain", []int32{1}))
	_, err := f.GetObject("plain")
	assert.Equal(t, TypeMismatch, CodeOf(err))
	_, err = f.Component("missing", "x")
	assert.Equal(t, NotFound, CodeOf(err))
}

func TestObjectKindNames(t *testing.T) {
	assert.Equal(t, "curve", KindCurve.String())
	assert.Equal(t, "kind(900)", ObjectKind(900).String())
	assert.Equal(t, "variable", ComponentVariable.String())
}
