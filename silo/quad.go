package silo

import (
	"github.com/robert-malhotra/go-silo/internal/nlcache"
	"github.com/robert-malhotra/go-silo/internal/schema"
)

// QuadMesh is a structured mesh. Rectilinear meshes carry one coordinate
// array per dimension; curvilinear meshes carry full node arrays.
type QuadMesh struct {
	// CoordType is KindQuadRect or KindQuadCurv.
	CoordType  ObjectKind
	Coords     []any
	Dims       []int
	Labels     []string
	Units      []string
	Origin     int
	Cycle      int
	Time       float64
	MinExtents [3]float64
	MaxExtents [3]float64
}

func (m *QuadMesh) check() error {
	n := len(m.Coords)
	if n == 0 || n > maxDims {
		return badArgs("quad mesh wants 1 to %d coordinate arrays, got %d", maxDims, n)
	}
	switch m.CoordType {
	case KindQuadRect:
		if m.Dims == nil {
			for _, c := range m.Coords {
				_, l, err := dataKind([]any{c})
				if err != nil {
					return err
				}
				m.Dims = append(m.Dims, l)
			}
		}
		if len(m.Dims) != n {
			return badArgs("%d dims for %d coordinate arrays", len(m.Dims), n)
		}
		for i, c := range m.Coords {
			if _, l, err := dataKind([]any{c}); err != nil || l != m.Dims[i] {
				return badArgs("coordinate %d has %d values, want %d", i, l, m.Dims[i])
			}
		}
	case KindQuadCurv:
		if len(m.Dims) != n {
			return badArgs("%d dims for %d coordinate arrays", len(m.Dims), n)
		}
		_, l, err := dataKind(m.Coords)
		if err != nil {
			return err
		}
		if l != product(m.Dims) {
			return badArgs("coordinates have %d values, dims %v want %d", l, m.Dims, product(m.Dims))
		}
	default:
		return badArgs("coordinate type %s is not quadrect or quadcurv", m.CoordType)
	}
	return nil
}

// registerGrid records the synthesized connectivity of a structured mesh.
func (f *File) registerGrid(mesh string, order *meshOrder) {
	if order == nil {
		return
	}
	top := 4
	if order.rank == 3 {
		top = 8
	}
	ok := f.cache.Register(nlcache.Entry{
		File:  f.id,
		Mesh:  mesh,
		Rank:  order.rank,
		Cells: len(order.nodes) / top,
		Nodes: order.nodes,
	})
	if !ok {
		f.log.WithField("mesh", mesh).Debug("nodelist cache full, entry dropped")
	}
}

// PutQuadMesh writes a structured mesh.
func (f *File) PutQuadMesh(name string, m *QuadMesh) error {
	p := ResolvePath(f.cwd, name)
	return f.protect("put quadmesh", p, func(s *scope) error {
		if err := m.check(); err != nil {
			return err
		}
		kind, err := commonKind(m.Coords)
		if err != nil {
			return err
		}
		lo, hi, err := bounds(m.Coords)
		if err != nil {
			return err
		}

		var names []string
		if m.CoordType == KindQuadCurv {
			order := gridOrder(m.Dims)
			if names, err = f.putArrays(s, m.Coords, m.Dims, p+"_coord", roleField, order); err != nil {
				return err
			}
			f.registerGrid(p, order)
		} else {
			if names, err = f.putArrays(s, m.Coords, nil, p+"_coord", roleGeneric, nil); err != nil {
				return err
			}
		}

		minIndex := make([]int, len(m.Dims))
		maxIndex := make([]int, len(m.Dims))
		for i, d := range m.Dims {
			maxIndex[i] = d - 1
		}
		sch := schema.New("quadmesh").
			Int("ndims", len(m.Dims)).Always().
			Int("coordtype", int(m.CoordType)).Always().
			Int("datatype", int(kind)).Always().
			Int("nspace", len(m.Coords)).Always().
			Int("nnodes", product(m.Dims)).Always().
			IntTriple("dims", triple(m.Dims)).
			IntTriple("min_index", triple(minIndex)).
			IntTriple("max_index", triple(maxIndex)).
			Int("origin", m.Origin).
			Int("cycle", m.Cycle).
			Double("dtime", m.Time).
			Triple("min_extents", lo).
			Triple("max_extents", hi).
			ReplicatedString("coord", names, maxDims).
			ReplicatedString("label", m.Labels, maxDims).
			ReplicatedString("units", m.Units, maxDims)
		return f.putHeader(s, p, KindQuadMesh, sch)
	})
}

// GetQuadMesh reads a structured mesh.
func (f *File) GetQuadMesh(name string) (*QuadMesh, error) {
	p := ResolvePath(f.cwd, name)
	var out *QuadMesh
	err := f.protect("get quadmesh", p, func(s *scope) error {
		rec, _, err := f.getHeader(s, p, KindQuadMesh)
		if err != nil {
			return err
		}
		ndims, nspace := rec.Int("ndims"), rec.Int("nspace")
		if ndims < 1 || ndims > maxDims || nspace > maxDims {
			return newError(Internal, "%s has %d dims in %d space", p, ndims, nspace)
		}
		dims := rec.IntTriple("dims")
		m := &QuadMesh{
			CoordType:  ObjectKind(rec.Int("coordtype")),
			Dims:       append([]int(nil), dims[:ndims]...),
			Labels:     optStrings(rec.ReplicatedString("label", nspace)),
			Units:      optStrings(rec.ReplicatedString("units", nspace)),
			Origin:     rec.Int("origin"),
			Cycle:      rec.Int("cycle"),
			Time:       rec.Double("dtime"),
			MinExtents: rec.Triple("min_extents"),
			MaxExtents: rec.Triple("max_extents"),
		}
		var order *meshOrder
		if m.CoordType == KindQuadCurv {
			order = gridOrder(m.Dims)
			f.registerGrid(p, order)
		}
		if f.wants(MaskCoords) {
			if m.Coords, err = f.getArrays(s, rec, "coord", nspace, order); err != nil {
				return err
			}
		}
		out = m
		return nil
	})
	return out, err
}

// QuadVar is a variable on a structured mesh.
type QuadVar struct {
	Mesh      string
	Values    []any
	Dims      []int
	Centering Centering
	MixValues []any
	Label     string
	Units     string
	Cycle     int
	Time      float64
}

// PutQuadVar writes a structured mesh variable. Every value array holds
// product(Dims) elements.
func (f *File) PutQuadVar(name string, v *QuadVar) error {
	p := ResolvePath(f.cwd, name)
	return f.protect("put quadvar", p, func(s *scope) error {
		if len(v.Values) == 0 || len(v.Values) > maxComponents {
			return badArgs("quad var wants 1 to %d value arrays, got %d", maxComponents, len(v.Values))
		}
		if len(v.Dims) == 0 || len(v.Dims) > maxDims {
			return badArgs("quad var dims %v", v.Dims)
		}
		kind, n, err := dataKind(v.Values)
		if err != nil {
			return err
		}
		if n != product(v.Dims) {
			return badArgs("values have %d elements, dims %v want %d", n, v.Dims, product(v.Dims))
		}
		names, err := f.putArrays(s, v.Values, v.Dims, p+"_value", roleField, gridOrder(v.Dims))
		if err != nil {
			return err
		}
		_, mixlen, err := dataKind(v.MixValues)
		if err != nil {
			return err
		}
		mixed, err := f.putArrays(s, v.MixValues, nil, p+"_mixed_value", roleGeneric, nil)
		if err != nil {
			return err
		}
		centering := v.Centering
		if centering == 0 {
			centering = NodeCent
		}
		sch := schema.New("quadvar").
			String("meshid", ResolvePath(f.cwd, v.Mesh)).Always().
			Int("ndims", len(v.Dims)).Always().
			Int("nvals", len(v.Values)).Always().
			Int("nels", n).Always().
			Int("datatype", int(kind)).Always().
			Int("centering", int(centering)).Always().
			IntTriple("dims", triple(v.Dims)).
			Int("mixlen", mixlen).
			Int("cycle", v.Cycle).
			Double("dtime", v.Time).
			String("label", v.Label).
			String("units", v.Units).
			ReplicatedString("value", names, maxComponents).
			ReplicatedString("mixed_value", mixed, maxComponents)
		return f.putHeader(s, p, KindQuadVar, sch)
	})
}

// GetQuadVar reads a structured mesh variable. Values are read under
// MaskValues, mixed values under MaskMixed.
func (f *File) GetQuadVar(name string) (*QuadVar, error) {
	p := ResolvePath(f.cwd, name)
	var out *QuadVar
	err := f.protect("get quadvar", p, func(s *scope) error {
		rec, _, err := f.getHeader(s, p, KindQuadVar)
		if err != nil {
			return err
		}
		ndims, nvals := rec.Int("ndims"), rec.Int("nvals")
		if ndims < 1 || ndims > maxDims {
			return newError(Internal, "%s has %d dims", p, ndims)
		}
		dims := rec.IntTriple("dims")
		v := &QuadVar{
			Mesh:      rec.String("meshid"),
			Dims:      append([]int(nil), dims[:ndims]...),
			Centering: Centering(rec.Int("centering")),
			Label:     rec.String("label"),
			Units:     rec.String("units"),
			Cycle:     rec.Int("cycle"),
			Time:      rec.Double("dtime"),
		}
		if f.wants(MaskValues) {
			if v.Values, err = f.getArrays(s, rec, "value", nvals, gridOrder(v.Dims)); err != nil {
				return err
			}
		}
		if f.wants(MaskMixed) && rec.Int("mixlen") > 0 {
			if v.MixValues, err = f.getArrays(s, rec, "mixed_value", maxComponents, nil); err != nil {
				return err
			}
		}
		out = v
		return nil
	})
	return out, err
}
