package silo

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-silo/internal/hzip"
	"github.com/robert-malhotra/go-silo/internal/nlcache"
	"github.com/robert-malhotra/go-silo/internal/schema"
)

func randomLongs(n int) []int64 {
	r := rand.New(rand.NewSource(1))
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(r.Uint64())
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestGZIPRoundTrip(t *testing.T) {
	f := newFile(t, WithCompression("METHOD=GZIP LEVEL=9"))
	data := constant(1000, 3.5)
	require.NoError(t, f.Write("c", data))

	info, err := f.VarInfo("c")
	require.NoError(t, err)
	assert.True(t, info.Compressed)
	assert.Equal(t, []string{"deflate"}, info.Filters)
	assert.Less(t, info.Stored, info.Size/2)

	f = reopen(t, f)
	v, err := f.ReadVar("c")
	require.NoError(t, err)
	assert.Equal(t, data, v)
}

func TestFallbackStoresRaw(t *testing.T) {
	f := newFile(t, WithCompression("METHOD=GZIP ERRMODE=FALLBACK MINRATIO=2"))
	data := randomLongs(1000)
	require.NoError(t, f.Write("r", data))

	info, err := f.VarInfo("r")
	require.NoError(t, err)
	assert.False(t, info.Compressed)
	assert.Equal(t, info.Size, info.Stored)

	v, err := f.ReadVar("r")
	require.NoError(t, err)
	assert.Equal(t, data, v)
}

func TestFailRemovesDataset(t *testing.T) {
	f := newFile(t, WithCompression("METHOD=GZIP ERRMODE=FAIL MINRATIO=2"))
	err := f.Write("r", randomLongs(1000))
	require.Error(t, err)
	assert.Equal(t, Compression, CodeOf(err))
	assert.True(t, errors.Is(err, ErrCompression))

	_, err = f.ObjectKind("r")
	assert.Equal(t, NotFound, CodeOf(err))
	assert.Zero(t, f.c.OpenHandles())

	require.NoError(t, f.SetCompression(""))
	require.NoError(t, f.Write("r", randomLongs(1000)))
}

func TestGZIPShuffle(t *testing.T) {
	f := newFile(t, WithCompression("METHOD=GZIP SHUFFLE=ON"))
	ramp := make([]int64, 1000)
	for i := range ramp {
		ramp[i] = int64(i) * 3
	}
	require.NoError(t, f.Write("ramp", ramp))
	info, err := f.VarInfo("ramp")
	require.NoError(t, err)
	assert.Equal(t, []string{"shuffle", "deflate"}, info.Filters)
	assert.True(t, info.Compressed)

	// Shuffling alone does not count as compression.
	require.NoError(t, f.Write("noise", randomLongs(1000)))
	info, err = f.VarInfo("noise")
	require.NoError(t, err)
	assert.False(t, info.Compressed)

	f = reopen(t, f)
	v, err := f.ReadVar("ramp")
	require.NoError(t, err)
	assert.Equal(t, ramp, v)
	v, err = f.ReadVar("noise")
	require.NoError(t, err)
	assert.Equal(t, randomLongs(1000), v)
}

func TestSZIPUnavailable(t *testing.T) {
	f := newFile(t, WithCompression("METHOD=SZIP ERRMODE=FAIL"))
	err := f.Write("s", []int32{1, 2, 3, 4})
	assert.Equal(t, Compression, CodeOf(err))

	require.NoError(t, f.SetCompression("METHOD=SZIP ERRMODE=FALLBACK"))
	require.NoError(t, f.Write("s", []int32{1, 2, 3, 4}))
	v, err := f.ReadVar("s")
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3, 4}, v)
}

func TestFieldMethod(t *testing.T) {
	f := newFile(t, WithCompression("METHOD=FIELD ERRMODE=FAIL"))
	flat := constant(4096, -1.25)
	require.NoError(t, f.Write("flat", flat, 16, 16, 16))
	info, err := f.VarInfo("flat")
	require.NoError(t, err)
	assert.True(t, info.Compressed)
	assert.Equal(t, []string{"fpzip"}, info.Filters)

	// Integers are not float data and go uncompressed.
	require.NoError(t, f.Write("ints", make([]int32, 64)))
	info, err = f.VarInfo("ints")
	require.NoError(t, err)
	assert.Empty(t, info.Filters)

	f = reopen(t, f)
	v, err := f.ReadVar("flat")
	require.NoError(t, err)
	assert.Equal(t, flat, v)
}

func TestFieldMethodLossy(t *testing.T) {
	f := newFile(t, WithCompression("METHOD=FIELD LOSS=2 MINRATIO=1.1"))
	in := make([]float32, 32*32)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) / 50))
	}
	require.NoError(t, f.Write("wave", in, 32, 32))
	v, err := f.ReadVar("wave")
	require.NoError(t, err)
	out := v.([]float32)
	require.Len(t, out, len(in))
	for i := range in {
		assert.InDelta(t, in[i], out[i], 1e-3, "value %d", i)
	}
}

// Scenario A: a 4x4 node quad mesh with float coordinates.
func TestCurvilinearMeshConnectivity(t *testing.T) {
	f := newFile(t, WithCompression("METHOD=CONNECTIVITY"))
	x, y := gridCoords(4, 4)
	require.NoError(t, f.PutQuadMesh("quad", &QuadMesh{CoordType: KindQuadCurv, Coords: []any{x, y}, Dims: []int{4, 4}}))

	want, err := hzip.GridNodelist([]int{4, 4})
	require.NoError(t, err)
	require.Len(t, want, 9*4)
	e, ok := f.cache.Lookup(f.id, "", "/quad")
	require.True(t, ok)
	assert.Equal(t, want, e.Nodes)
	assert.Equal(t, 9, e.Cells)

	f = reopen(t, f)
	m, err := f.GetQuadMesh("quad")
	require.NoError(t, err)
	require.Len(t, m.Coords, 2)
	gx, gy := m.Coords[0].([]float32), m.Coords[1].([]float32)
	for i := range x {
		assert.InDelta(t, x[i], gx[i], 1e-6)
		assert.InDelta(t, y[i], gy[i], 1e-6)
	}
	e, ok = f.cache.Lookup(f.id, "", "/quad")
	require.True(t, ok)
	assert.Equal(t, want, e.Nodes)
}

func TestCurvilinearFieldCompresses(t *testing.T) {
	f := newFile(t, WithCompression("METHOD=CONNECTIVITY"))
	x, y := gridCoords(40, 40)
	require.NoError(t, f.PutQuadMesh("quad", &QuadMesh{CoordType: KindQuadCurv, Coords: []any{x, y}, Dims: []int{40, 40}}))

	pressure := constant(1600, 101.325)
	require.NoError(t, f.PutQuadVar("p", &QuadVar{Mesh: "quad", Values: []any{pressure}, Dims: []int{40, 40}}))
	o, err := f.GetObject("p")
	require.NoError(t, err)
	info, err := f.VarInfo(o.Value("value0").(string))
	require.NoError(t, err)
	assert.True(t, info.Compressed)
	assert.Equal(t, []string{"hzip-field"}, info.Filters)

	f = reopen(t, f)
	v, err := f.GetQuadVar("p")
	require.NoError(t, err)
	assert.Equal(t, pressure, v.Values[0])

	// A plain read of the same dataset synthesizes the grid order.
	raw, err := f.ReadVar(o.Value("value0").(string))
	require.NoError(t, err)
	assert.Equal(t, pressure, raw)
}

// ucdGrid writes an n by n node quad mesh and a node centered variable on
// it.
func ucdGrid(t *testing.T, f *File, n int, values []float64) {
	t.Helper()
	zl := &Zonelist{NDims: 2, Nodes: quadGrid(n, n), Shapes: []ShapeGroup{{Type: ZoneQuad, Size: 4, Count: (n - 1) * (n - 1)}}}
	require.NoError(t, f.PutZonelist("zl", zl))
	x, y := gridCoords(n, n)
	require.NoError(t, f.PutUcdMesh("mesh", &UcdMesh{Coords: []any{x, y}, Zonelist: "zl", NZones: zl.NZones}))
	require.NoError(t, f.PutUcdVar("temp", &UcdVar{Mesh: "mesh", Values: []any{values}}))
}

func TestZonelistConnectivityCodec(t *testing.T) {
	f := newFile(t, WithCompression("METHOD=CONNECTIVITY CODEC=ZSTD"))
	values := constant(31*31, 300)
	ucdGrid(t, f, 31, values)

	o, err := f.GetObject("zl")
	require.NoError(t, err)
	info, err := f.VarInfo(o.Value("nodelist").(string))
	require.NoError(t, err)
	assert.True(t, info.Compressed)
	assert.Equal(t, []string{"hzip-mesh"}, info.Filters)
	assert.Less(t, info.Stored, info.Size/2)

	// The mesh linked the cached zonelist to its name.
	e, ok := f.cache.Lookup(f.id, "", "/mesh")
	require.True(t, ok)
	assert.Equal(t, "/zl", e.Zonelist)
	assert.Equal(t, 900, e.Cells)

	f = reopen(t, f)
	zl, err := f.GetZonelist("zl")
	require.NoError(t, err)
	assert.Equal(t, quadGrid(31, 31), zl.Nodes)
}

func TestFieldReadBootstrapsConnectivity(t *testing.T) {
	cache := nlcache.New(4)
	f := newFile(t, WithCompression("METHOD=CONNECTIVITY"), WithNodelistCache(cache))
	values := constant(31*31, 300)
	ucdGrid(t, f, 31, values)

	o, err := f.GetObject("temp")
	require.NoError(t, err)
	info, err := f.VarInfo(o.Value("value0").(string))
	require.NoError(t, err)
	assert.Equal(t, []string{"hzip-field"}, info.Filters)
	assert.True(t, info.Compressed)

	f.FreeResources("mesh")
	assert.Zero(t, cache.Len())
	v, err := f.GetUcdVar("temp")
	require.NoError(t, err)
	assert.Equal(t, values, v.Values[0])
	assert.Equal(t, 1, cache.Len())

	// A fresh session starts with nothing cached for its file.
	f = reopen(t, f, WithNodelistCache(cache))
	assert.Zero(t, cache.Len(), "closing evicts the file")
	v, err = f.GetUcdVar("temp")
	require.NoError(t, err)
	assert.Equal(t, values, v.Values[0])
	_, ok := cache.Lookup(f.id, "/zl", "/mesh")
	assert.True(t, ok)

	m, err := f.GetUcdMesh("mesh")
	require.NoError(t, err)
	x, _ := gridCoords(31, 31)
	assert.Equal(t, x, m.Coords[0])
}

func TestFieldReadWithoutConnectivityFails(t *testing.T) {
	f := newFile(t, WithCompression("METHOD=CONNECTIVITY"))
	ucdGrid(t, f, 31, constant(31*31, 300))
	o, err := f.GetObject("temp")
	require.NoError(t, err)
	name := o.Value("value0").(string)

	// The variable is not a grid, so a plain read has no order to use.
	_, err = f.ReadVar(name)
	assert.Equal(t, Compression, CodeOf(err))
	assert.Zero(t, f.c.OpenHandles())
}

func TestGetZonelistKeepsMeshLink(t *testing.T) {
	f := newFile(t, WithCompression("METHOD=CONNECTIVITY"))
	ucdGrid(t, f, 31, constant(31*31, 300))
	_, ok := f.cache.Lookup(f.id, "", "/mesh")
	require.True(t, ok)

	_, err := f.GetZonelist("zl")
	require.NoError(t, err)
	e, ok := f.cache.Lookup(f.id, "", "/mesh")
	require.True(t, ok, "reading the zonelist again keeps it linked to the mesh")
	assert.Equal(t, "/zl", e.Zonelist)
	assert.Equal(t, 1, f.cache.Len())
}

func TestComponentReadsFieldArrays(t *testing.T) {
	f := newFile(t, WithCompression("METHOD=CONNECTIVITY"))
	values := constant(31*31, 300)
	ucdGrid(t, f, 31, values)
	qx, qy := gridCoords(40, 40)
	require.NoError(t, f.PutQuadMesh("quad", &QuadMesh{CoordType: KindQuadCurv, Coords: []any{qx, qy}, Dims: []int{40, 40}}))
	pressure := constant(1600, 101.325)
	require.NoError(t, f.PutQuadVar("p", &QuadVar{Mesh: "quad", Values: []any{pressure}, Dims: []int{40, 40}}))

	f = reopen(t, f)
	v, err := f.Component("temp", "value0")
	require.NoError(t, err)
	assert.Equal(t, values, v)
	v, err = f.Component("p", "value0")
	require.NoError(t, err)
	assert.Equal(t, pressure, v)
	v, err = f.Component("mesh", "coord0")
	require.NoError(t, err)
	x, _ := gridCoords(31, 31)
	assert.Equal(t, x, v)
	assert.Zero(t, f.c.OpenHandles())
}

func TestCacheFullDropsEntries(t *testing.T) {
	cache := nlcache.New(1)
	f := newFile(t, WithCompression("METHOD=CONNECTIVITY"), WithNodelistCache(cache))
	zl := &Zonelist{NDims: 2, Nodes: quadGrid(3, 3), Shapes: []ShapeGroup{{Type: ZoneQuad, Size: 4, Count: 4}}}
	require.NoError(t, f.PutZonelist("a", zl))
	require.NoError(t, f.PutZonelist("b", zl))
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 1, cache.Dropped())

	// The dropped zonelist is read back when a mesh needs it.
	f.FreeResources("")
	x, y := gridCoords(3, 3)
	require.NoError(t, f.PutUcdMesh("m", &UcdMesh{Coords: []any{x, y}, Zonelist: "b"}))
	_, ok := cache.Lookup(f.id, "/b", "/m")
	assert.True(t, ok)
}

// Scenario B: omitted optional members shrink the header and read as zero.
func TestOptionalMembersOmitted(t *testing.T) {
	f := newFile(t)
	const kindProbe ObjectKind = 900
	build := func(vals [9]int) *schema.Schema {
		s := schema.New("probe")
		for i, v := range vals {
			s.Int(string(rune('a'+i)), v)
		}
		return s
	}
	full := [9]int{1, 2, 3, 4, 5, 6, 7, 8, 9}
	sparse := [9]int{1, 0, 3, 0, 5, 0, 7, 8, 9}

	put := func(name string, vals [9]int) int {
		err := f.protect("put probe", name, func(s *scope) error {
			return f.putHeader(s, name, kindProbe, build(vals))
		})
		require.NoError(t, err)
		o, err := f.c.OpenObject(name)
		require.NoError(t, err)
		defer o.Close()
		a, err := o.OpenAttr(blobAttr)
		require.NoError(t, err)
		defer a.Close()
		blob, err := a.Read()
		require.NoError(t, err)
		return len(blob)
	}
	fullSize := put("/full", full)
	sparseSize := put("/sparse", sparse)
	assert.Less(t, sparseSize, fullSize)

	o, err := f.GetObject("/sparse")
	require.NoError(t, err)
	assert.Equal(t, kindProbe, o.Kind)
	assert.Len(t, o.Components, 6)
	for i, v := range sparse {
		got, err := f.Component("/sparse", string(rune('a'+i)))
		if v == 0 {
			assert.Equal(t, NotFound, CodeOf(err), "member %c", 'a'+i)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, int64(v), got)
	}
	err = f.protect("get probe", "/sparse", func(s *scope) error {
		rec, _, err := f.getHeader(s, "/sparse", kindProbe)
		if err != nil {
			return err
		}
		for i, v := range sparse {
			assert.Equal(t, v, rec.Int(string(rune('a'+i))))
		}
		return nil
	})
	require.NoError(t, err)
}
