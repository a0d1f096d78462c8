package silo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoHexes is a 3 by 2 by 2 node block split into two hexes.
func twoHexes() *Zonelist {
	return &Zonelist{
		NDims: 3,
		Nodes: []int32{
			0, 1, 4, 3, 6, 7, 10, 9,
			1, 2, 5, 4, 7, 8, 11, 10,
		},
		Shapes: []ShapeGroup{{Type: ZoneHex, Size: 8, Count: 2}},
	}
}

func TestExternalFacelistPrism(t *testing.T) {
	f := newFile(t)
	x := []float32{0.515, 1.030, 0, 0, 0.490, 0.980}
	y := []float32{0, 0, 0, 0, 0.159, 0.318}
	z := []float32{1.667, 3.333, 3.170, 1.585, 1.585, 3.170}
	zl := &Zonelist{NDims: 3, Nodes: []int32{0, 1, 2, 3, 4, 5}, Shapes: []ShapeGroup{{Size: 6, Count: 1}}}

	fl, err := CalcExternalFacelist(zl)
	require.NoError(t, err)
	assert.Equal(t, 5, fl.NFaces)
	assert.Equal(t, []int{4, 3}, fl.ShapeSize)
	assert.Equal(t, []int{3, 2}, fl.ShapeCnt)
	assert.Equal(t, []int32{0, 0, 0, 0, 0}, fl.ZoneNo)
	assert.Len(t, fl.Nodes, 3*4+2*3)

	require.NoError(t, f.PutZonelist("zonelist", zl))
	require.NoError(t, f.PutFacelist("facelist", fl))
	require.NoError(t, f.PutUcdMesh("prism", &UcdMesh{Coords: []any{x, y, z}, Zonelist: "zonelist", Facelist: "facelist"}))

	f = reopen(t, f)
	got, err := f.GetFacelist("facelist")
	require.NoError(t, err)
	assert.Equal(t, fl.Nodes, got.Nodes)
	assert.Equal(t, fl.ShapeCnt, got.ShapeCnt)
	assert.Equal(t, fl.ZoneNo, got.ZoneNo)
}

func TestExternalFacelistHexes(t *testing.T) {
	fl, err := CalcExternalFacelist(twoHexes())
	require.NoError(t, err)
	assert.Equal(t, 10, fl.NFaces)
	assert.Equal(t, []int{4}, fl.ShapeSize)
	assert.Equal(t, []int{10}, fl.ShapeCnt)

	owners := map[int32]int{}
	for _, z := range fl.ZoneNo {
		owners[z]++
	}
	assert.Equal(t, map[int32]int{0: 5, 1: 5}, owners)
	for i := 0; i < fl.NFaces; i++ {
		face := fl.Nodes[4*i : 4*i+4]
		assert.False(t, sameSet(face, []int32{1, 4, 10, 7}), "shared face %v is internal", face)
	}
}

func TestExternalFacelistGhostZones(t *testing.T) {
	zl := twoHexes()
	zl.LoOffset = 1
	fl, err := CalcExternalFacelist(zl)
	require.NoError(t, err)
	assert.Equal(t, 6, fl.NFaces)
	for _, z := range fl.ZoneNo {
		assert.Equal(t, int32(1), z)
	}
}

func TestExternalFacelistQuads(t *testing.T) {
	zl := &Zonelist{NDims: 2, Nodes: quadGrid(3, 3), Shapes: []ShapeGroup{{Type: ZoneQuad, Size: 4, Count: 4}}}
	fl, err := CalcExternalFacelist(zl)
	require.NoError(t, err)
	assert.Equal(t, 8, fl.NFaces)
	assert.Equal(t, []int{2}, fl.ShapeSize)
	for i := 0; i < fl.NFaces; i++ {
		assert.NotContains(t, fl.Nodes[2*i:2*i+2], int32(4), "the center node is interior")
	}
}

func TestExternalFacelistUnsupported(t *testing.T) {
	zl := &Zonelist{NDims: 3, Nodes: make([]int32, 7), Shapes: []ShapeGroup{{Size: 7, Count: 1}}}
	_, err := CalcExternalFacelist(zl)
	assert.Equal(t, BadArgs, CodeOf(err))

	zl = &Zonelist{NDims: 3, Nodes: make([]int32, 6), Shapes: []ShapeGroup{{Type: ZoneHex, Size: 6, Count: 1}}}
	_, err = CalcExternalFacelist(zl)
	assert.Equal(t, BadArgs, CodeOf(err))
}

func sameSet(a, b []int32) bool {
	return keyOf(a) == keyOf(b)
}
