package nlcache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkZonelistToMesh(t *testing.T) {
	c := New(0)
	require.Equal(t, DefaultCapacity, c.Cap())

	require.True(t, c.Register(Entry{File: "f", Zonelist: "/zl", Rank: 2, Cells: 1, Nodes: []int32{0, 1, 3, 2}}))

	_, ok := c.Lookup("f", "", "/mesh")
	assert.False(t, ok, "mesh not linked yet")

	e, ok := c.Lookup("f", "/zl", "/mesh")
	require.True(t, ok)
	assert.Equal(t, []int32{0, 1, 3, 2}, e.Nodes)

	e, ok = c.Lookup("f", "", "/mesh")
	require.True(t, ok, "lookup by both names links the mesh")
	assert.Equal(t, "/zl", e.Zonelist)
	assert.Equal(t, 2, e.Rank)

	_, ok = c.Lookup("g", "/zl", "/mesh")
	assert.False(t, ok, "other file")
}

func TestRegisterCopies(t *testing.T) {
	c := New(4)
	nodes := []int32{0, 1, 2, 3}
	c.Register(Entry{File: "f", Mesh: "/m", Nodes: nodes})
	nodes[0] = 99

	e, ok := c.Lookup("f", "", "/m")
	require.True(t, ok)
	assert.Equal(t, int32(0), e.Nodes[0])

	e.Nodes[1] = 42
	e, _ = c.Lookup("f", "", "/m")
	assert.Equal(t, int32(1), e.Nodes[1])
}

func TestReregisterKeepsMeshLink(t *testing.T) {
	c := New(4)
	nodes := []int32{0, 1, 3, 2}
	require.True(t, c.Register(Entry{File: "f", Zonelist: "/a/zl", Cells: 1, Nodes: nodes}))
	_, ok := c.Lookup("f", "/a/zl", "/a/mesh")
	require.True(t, ok)

	require.True(t, c.Register(Entry{File: "f", Zonelist: "/a/zl", Cells: 1, Nodes: nodes}))
	assert.Equal(t, 1, c.Len())
	e, ok := c.Lookup("f", "", "/a/mesh")
	require.True(t, ok, "re-registering the same zonelist keeps the mesh link")
	assert.Equal(t, "/a/zl", e.Zonelist)
}

func TestReplaceSameIdentity(t *testing.T) {
	c := New(4)
	c.Register(Entry{File: "f", Zonelist: "/zl", Cells: 1, Nodes: []int32{0, 1, 3, 2}})
	c.Lookup("f", "/zl", "/m")
	c.Register(Entry{File: "f", Zonelist: "/zl", Cells: 2, Nodes: []int32{0, 1, 4, 3, 1, 2, 5, 4}})
	assert.Equal(t, 1, c.Len())
	e, _ := c.Lookup("f", "/zl", "")
	assert.Equal(t, 2, e.Cells)
	assert.Equal(t, "/m", e.Mesh)
}

func TestCapacity(t *testing.T) {
	c := New(3)
	for i := 0; i < 5; i++ {
		c.Register(Entry{File: "f", Zonelist: fmt.Sprintf("/zl%d", i)})
	}
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 2, c.Dropped())
	_, ok := c.Lookup("f", "/zl4", "")
	assert.False(t, ok)
}

func TestEvict(t *testing.T) {
	c := New(8)
	c.Register(Entry{File: "a", Zonelist: "/zl", Mesh: "/m"})
	c.Register(Entry{File: "a", Zonelist: "/zl2", Mesh: "/m2"})
	c.Register(Entry{File: "b", Zonelist: "/zl", Mesh: "/m"})

	assert.Equal(t, 1, c.EvictMesh("a", "/m"))
	assert.Equal(t, 2, c.Len())
	_, ok := c.Lookup("b", "", "/m")
	assert.True(t, ok)

	assert.Equal(t, 1, c.EvictFile("a"))
	assert.Equal(t, 1, c.Len())

	assert.Equal(t, 1, c.EvictAll())
	assert.Equal(t, 0, c.Len())
}
