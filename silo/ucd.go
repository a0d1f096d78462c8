package silo

import (
	"github.com/robert-malhotra/go-silo/internal/message"
	"github.com/robert-malhotra/go-silo/internal/nlcache"
	"github.com/robert-malhotra/go-silo/internal/schema"
)

// ZoneShape is the cell type of a shape group. The values are persisted.
type ZoneShape int32

const (
	ZoneBeam       ZoneShape = 10
	ZonePolygon    ZoneShape = 20
	ZoneTriangle   ZoneShape = 23
	ZoneQuad       ZoneShape = 24
	ZonePolyhedron ZoneShape = 30
	ZoneTet        ZoneShape = 34
	ZonePyramid    ZoneShape = 35
	ZonePrism      ZoneShape = 36
	ZoneHex        ZoneShape = 37
)

// ShapeGroup is a run of Count zones of one shape, each listing Size
// nodes.
type ShapeGroup struct {
	Type  ZoneShape
	Size  int
	Count int
}

// Zonelist is the zone connectivity of an unstructured mesh.
type Zonelist struct {
	NDims    int
	NZones   int
	Nodes    []int32
	Origin   int
	LoOffset int
	HiOffset int
	Shapes   []ShapeGroup
}

func (z *Zonelist) check() error {
	if z.NDims < 1 || z.NDims > maxDims {
		return badArgs("zonelist ndims %d", z.NDims)
	}
	if len(z.Shapes) == 0 {
		return badArgs("zonelist has no shapes")
	}
	zones, nodes := 0, 0
	for _, sh := range z.Shapes {
		if sh.Size <= 0 || sh.Count < 0 {
			return badArgs("shape group %+v", sh)
		}
		zones += sh.Count
		nodes += sh.Size * sh.Count
	}
	if nodes != len(z.Nodes) {
		return badArgs("shapes cover %d nodes, nodelist has %d", nodes, len(z.Nodes))
	}
	if z.NZones == 0 {
		z.NZones = zones
	}
	if z.NZones != zones {
		return badArgs("shapes cover %d zones, nzones is %d", zones, z.NZones)
	}
	return nil
}

// order returns the connectivity in the form the codecs take. Only meshes
// made entirely of quads (2D) or hexes (3D) have one.
func (z *Zonelist) order() *meshOrder {
	want := map[int]int{2: 4, 3: 8}[z.NDims]
	if want == 0 {
		return nil
	}
	for _, sh := range z.Shapes {
		if sh.Size != want || (sh.Type != 0 && sh.Type != ZoneQuad && sh.Type != ZoneHex) {
			return nil
		}
	}
	nodes := make([]int32, len(z.Nodes))
	for i, n := range z.Nodes {
		nodes[i] = n - int32(z.Origin)
	}
	return &meshOrder{nodes: nodes, rank: z.NDims, origin: z.Origin}
}

func entryOrder(e *nlcache.Entry) *meshOrder {
	nodes := make([]int32, len(e.Nodes))
	for i, n := range e.Nodes {
		nodes[i] = n - int32(e.Origin)
	}
	return &meshOrder{nodes: nodes, rank: e.Rank, origin: e.Origin}
}

func (f *File) registerZonelist(zl string, z *Zonelist) {
	if z.order() == nil {
		return
	}
	ok := f.cache.Register(nlcache.Entry{
		File:     f.id,
		Zonelist: zl,
		Rank:     z.NDims,
		Cells:    z.NZones,
		Origin:   z.Origin,
		Nodes:    z.Nodes,
	})
	if !ok {
		f.log.WithField("zonelist", zl).Debug("nodelist cache full, entry dropped")
	}
}

// PutZonelist writes a zonelist. Quad and hex connectivity is registered
// in the nodelist cache and compressed by the connectivity codec when
// METHOD=CONNECTIVITY.
func (f *File) PutZonelist(name string, z *Zonelist) error {
	p := ResolvePath(f.cwd, name)
	return f.protect("put zonelist", p, func(s *scope) error {
		if err := z.check(); err != nil {
			return err
		}
		order := z.order()
		role := roleGeneric
		if order != nil {
			role = roleConnectivity
		}
		nodelist, err := f.putComponent(s, z.Nodes, nil, "", p+"_nodelist", role, order)
		if err != nil {
			return err
		}
		types := make([]int32, len(z.Shapes))
		sizes := make([]int32, len(z.Shapes))
		counts := make([]int32, len(z.Shapes))
		for i, sh := range z.Shapes {
			types[i], sizes[i], counts[i] = int32(sh.Type), int32(sh.Size), int32(sh.Count)
		}
		names, err := f.putArrays(s, []any{counts, sizes, types}, nil, p+"_shape", roleGeneric, nil)
		if err != nil {
			return err
		}
		sch := schema.New("zonelist").
			Int("ndims", z.NDims).Always().
			Int("nzones", z.NZones).Always().
			Int("nshapes", len(z.Shapes)).Always().
			Int("lnodelist", len(z.Nodes)).Always().
			Int("origin", z.Origin).
			Int("lo_offset", z.LoOffset).
			Int("hi_offset", z.HiOffset).
			String("nodelist", nodelist).
			String("shapecnt", names[0]).
			String("shapesize", names[1]).
			String("shapetype", names[2])
		if err := f.putHeader(s, p, KindZonelist, sch); err != nil {
			return err
		}
		f.registerZonelist(p, z)
		return nil
	})
}

// GetZonelist reads a zonelist.
func (f *File) GetZonelist(name string) (*Zonelist, error) {
	p := ResolvePath(f.cwd, name)
	var out *Zonelist
	err := f.protect("get zonelist", p, func(s *scope) error {
		var err error
		out, err = f.getZonelist(s, p)
		return err
	})
	return out, err
}

func (f *File) getZonelist(s *scope, p string) (*Zonelist, error) {
	rec, _, err := f.getHeader(s, p, KindZonelist)
	if err != nil {
		return nil, err
	}
	z := &Zonelist{
		NDims:    rec.Int("ndims"),
		NZones:   rec.Int("nzones"),
		Origin:   rec.Int("origin"),
		LoOffset: rec.Int("lo_offset"),
		HiOffset: rec.Int("hi_offset"),
	}
	if z.Nodes, err = f.getInts(s, rec, "nodelist"); err != nil {
		return nil, err
	}
	counts, err := f.getInts(s, rec, "shapecnt")
	if err != nil {
		return nil, err
	}
	sizes, err := f.getInts(s, rec, "shapesize")
	if err != nil {
		return nil, err
	}
	types, err := f.getInts(s, rec, "shapetype")
	if err != nil {
		return nil, err
	}
	nshapes := rec.Int("nshapes")
	if len(counts) != nshapes || len(sizes) != nshapes || len(types) != nshapes {
		return nil, newError(Internal, "%s: %d shapes but %d/%d/%d shape values", p, nshapes, len(counts), len(sizes), len(types))
	}
	for i := range counts {
		z.Shapes = append(z.Shapes, ShapeGroup{Type: ZoneShape(types[i]), Size: int(sizes[i]), Count: int(counts[i])})
	}
	f.registerZonelist(p, z)
	return z, nil
}

// Facelist is the external faces of an unstructured mesh.
type Facelist struct {
	NDims     int
	NFaces    int
	Nodes     []int32
	Origin    int
	ZoneNo    []int32
	ShapeSize []int
	ShapeCnt  []int
	Types     []int32
	TypeList  []int32
}

// PutFacelist writes a facelist.
func (f *File) PutFacelist(name string, fl *Facelist) error {
	p := ResolvePath(f.cwd, name)
	return f.protect("put facelist", p, func(s *scope) error {
		if len(fl.ShapeSize) != len(fl.ShapeCnt) {
			return badArgs("%d shape sizes for %d shape counts", len(fl.ShapeSize), len(fl.ShapeCnt))
		}
		n := 0
		for i := range fl.ShapeSize {
			n += fl.ShapeSize[i] * fl.ShapeCnt[i]
		}
		if n != len(fl.Nodes) {
			return badArgs("shapes cover %d nodes, nodelist has %d", n, len(fl.Nodes))
		}
		if fl.ZoneNo != nil && len(fl.ZoneNo) != fl.NFaces {
			return badArgs("%d zone numbers for %d faces", len(fl.ZoneNo), fl.NFaces)
		}
		names, err := f.putArrays(s, []any{fl.Nodes, int32s(fl.ShapeCnt), int32s(fl.ShapeSize)}, nil, p+"_list", roleGeneric, nil)
		if err != nil {
			return err
		}
		zoneno, err := f.putComponent(s, fl.ZoneNo, nil, "", p+"_zoneno", roleGeneric, nil)
		if err != nil {
			return err
		}
		types, err := f.putComponent(s, fl.Types, nil, "", p+"_types", roleGeneric, nil)
		if err != nil {
			return err
		}
		typelist, err := f.putComponent(s, fl.TypeList, nil, "", p+"_typelist", roleGeneric, nil)
		if err != nil {
			return err
		}
		sch := schema.New("facelist").
			Int("ndims", fl.NDims).Always().
			Int("nfaces", fl.NFaces).Always().
			Int("nshapes", len(fl.ShapeCnt)).Always().
			Int("ntypes", len(fl.TypeList)).
			Int("lnodelist", len(fl.Nodes)).Always().
			Int("origin", fl.Origin).
			String("nodelist", names[0]).
			String("shapecnt", names[1]).
			String("shapesize", names[2]).
			String("zoneno", zoneno).
			String("types", types).
			String("typelist", typelist)
		return f.putHeader(s, p, KindFacelist, sch)
	})
}

// GetFacelist reads a facelist.
func (f *File) GetFacelist(name string) (*Facelist, error) {
	p := ResolvePath(f.cwd, name)
	var out *Facelist
	err := f.protect("get facelist", p, func(s *scope) error {
		var err error
		out, err = f.getFacelist(s, p)
		return err
	})
	return out, err
}

func (f *File) getFacelist(s *scope, p string) (*Facelist, error) {
	rec, _, err := f.getHeader(s, p, KindFacelist)
	if err != nil {
		return nil, err
	}
	fl := &Facelist{
		NDims:  rec.Int("ndims"),
		NFaces: rec.Int("nfaces"),
		Origin: rec.Int("origin"),
	}
	if fl.Nodes, err = f.getInts(s, rec, "nodelist"); err != nil {
		return nil, err
	}
	cnt, err := f.getInts(s, rec, "shapecnt")
	if err != nil {
		return nil, err
	}
	size, err := f.getInts(s, rec, "shapesize")
	if err != nil {
		return nil, err
	}
	fl.ShapeCnt, fl.ShapeSize = intsOf(cnt), intsOf(size)
	if fl.ZoneNo, err = f.getInts(s, rec, "zoneno"); err != nil {
		return nil, err
	}
	if fl.Types, err = f.getInts(s, rec, "types"); err != nil {
		return nil, err
	}
	if fl.TypeList, err = f.getInts(s, rec, "typelist"); err != nil {
		return nil, err
	}
	return fl, nil
}

// UcdMesh is an unstructured mesh. Its zonelist and facelist are separate
// objects referenced by name.
type UcdMesh struct {
	Coords     []any
	NNodes     int
	NZones     int
	Zonelist   string
	Facelist   string
	Labels     []string
	Units      []string
	Origin     int
	Cycle      int
	Time       float64
	MinExtents [3]float64
	MaxExtents [3]float64

	// Set by GetUcdMesh when the read mask includes MaskZonelist and
	// MaskFacelist.
	Zones *Zonelist
	Faces *Facelist
}

// zonelistOrder finds the connectivity of a zonelist, linking it to mesh
// in the cache.
func (f *File) zonelistOrder(s *scope, zl, mesh string) (*meshOrder, error) {
	if e, ok := f.cache.Lookup(f.id, zl, mesh); ok {
		return entryOrder(e), nil
	}
	if zl == "" || !f.c.Exists(zl) {
		return nil, nil
	}
	z, err := f.getZonelist(s, zl)
	if err != nil {
		return nil, err
	}
	f.cache.Lookup(f.id, zl, mesh)
	return z.order(), nil
}

// meshOrderFor finds the connectivity of a mesh, reading the mesh's
// zonelist with a restricted read mask when the cache misses.
func (f *File) meshOrderFor(s *scope, mesh string) (*meshOrder, error) {
	if e, ok := f.cache.Lookup(f.id, "", mesh); ok {
		return entryOrder(e), nil
	}
	f.log.WithField("mesh", mesh).Debug("nodelist cache miss, reading zonelist")
	old := f.SetReadMask(MaskZonelist)
	defer f.SetReadMask(old)
	m, err := f.getUcdMesh(s, mesh)
	if err != nil {
		return nil, err
	}
	if m.Zones == nil {
		return nil, nil
	}
	return m.Zones.order(), nil
}

// PutUcdMesh writes an unstructured mesh. When the zonelist was written
// first, coordinates are compressed in its mesh order.
func (f *File) PutUcdMesh(name string, m *UcdMesh) error {
	p := ResolvePath(f.cwd, name)
	return f.protect("put ucdmesh", p, func(s *scope) error {
		if len(m.Coords) == 0 || len(m.Coords) > maxDims {
			return badArgs("ucd mesh wants 1 to %d coordinate arrays, got %d", maxDims, len(m.Coords))
		}
		kind, n, err := dataKind(m.Coords)
		if err != nil {
			return err
		}
		if m.NNodes != 0 && m.NNodes != n {
			return badArgs("coordinates have %d values, nnodes is %d", n, m.NNodes)
		}
		lo, hi, err := bounds(m.Coords)
		if err != nil {
			return err
		}
		var zl, fl string
		if m.Zonelist != "" {
			zl = ResolvePath(f.cwd, m.Zonelist)
		}
		if m.Facelist != "" {
			fl = ResolvePath(f.cwd, m.Facelist)
		}
		order, err := f.zonelistOrder(s, zl, p)
		if err != nil {
			return err
		}
		names, err := f.putArrays(s, m.Coords, nil, p+"_coord", roleField, order)
		if err != nil {
			return err
		}
		sch := schema.New("ucdmesh").
			Int("ndims", len(m.Coords)).Always().
			Int("nnodes", n).Always().
			Int("nzones", m.NZones).Always().
			Int("datatype", int(kind)).Always().
			Int("origin", m.Origin).
			Int("cycle", m.Cycle).
			Double("dtime", m.Time).
			Triple("min_extents", lo).
			Triple("max_extents", hi).
			ReplicatedString("coord", names, maxDims).
			ReplicatedString("label", m.Labels, maxDims).
			ReplicatedString("units", m.Units, maxDims).
			String("zonelist", zl).
			String("facelist", fl)
		return f.putHeader(s, p, KindUcdMesh, sch)
	})
}

// GetUcdMesh reads an unstructured mesh and, as the read mask allows, its
// coordinates, zonelist and facelist.
func (f *File) GetUcdMesh(name string) (*UcdMesh, error) {
	p := ResolvePath(f.cwd, name)
	var out *UcdMesh
	err := f.protect("get ucdmesh", p, func(s *scope) error {
		var err error
		out, err = f.getUcdMesh(s, p)
		return err
	})
	return out, err
}

func (f *File) getUcdMesh(s *scope, p string) (*UcdMesh, error) {
	rec, _, err := f.getHeader(s, p, KindUcdMesh)
	if err != nil {
		return nil, err
	}
	ndims := rec.Int("ndims")
	if ndims < 1 || ndims > maxDims {
		return nil, newError(Internal, "%s has %d dims", p, ndims)
	}
	m := &UcdMesh{
		NNodes:     rec.Int("nnodes"),
		NZones:     rec.Int("nzones"),
		Zonelist:   rec.String("zonelist"),
		Facelist:   rec.String("facelist"),
		Labels:     optStrings(rec.ReplicatedString("label", ndims)),
		Units:      optStrings(rec.ReplicatedString("units", ndims)),
		Origin:     rec.Int("origin"),
		Cycle:      rec.Int("cycle"),
		Time:       rec.Double("dtime"),
		MinExtents: rec.Triple("min_extents"),
		MaxExtents: rec.Triple("max_extents"),
	}
	if f.wants(MaskZonelist) && m.Zonelist != "" {
		if m.Zones, err = f.getZonelist(s, m.Zonelist); err != nil {
			return nil, err
		}
		f.cache.Lookup(f.id, m.Zonelist, p)
	}
	if f.wants(MaskFacelist) && m.Facelist != "" {
		if m.Faces, err = f.getFacelist(s, m.Facelist); err != nil {
			return nil, err
		}
	}
	if f.wants(MaskCoords) {
		var order *meshOrder
		if first := rec.String("coord0"); first != "" {
			field, err := f.hasFilter(s, first, message.FilterField)
			if err != nil {
				return nil, err
			}
			if field {
				if order, err = f.zonelistOrder(s, m.Zonelist, p); err != nil {
					return nil, err
				}
			}
		}
		if m.Coords, err = f.getArrays(s, rec, "coord", ndims, order); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// UcdVar is a variable on an unstructured mesh.
type UcdVar struct {
	Mesh      string
	Values    []any
	Centering Centering
	MixValues []any
	Label     string
	Units     string
	Cycle     int
	Time      float64
}

// PutUcdVar writes an unstructured mesh variable. Node centered float
// values are compressed in the mesh order of their mesh when
// METHOD=CONNECTIVITY.
func (f *File) PutUcdVar(name string, v *UcdVar) error {
	p := ResolvePath(f.cwd, name)
	return f.protect("put ucdvar", p, func(s *scope) error {
		if len(v.Values) == 0 || len(v.Values) > maxComponents {
			return badArgs("ucd var wants 1 to %d value arrays, got %d", maxComponents, len(v.Values))
		}
		kind, n, err := dataKind(v.Values)
		if err != nil {
			return err
		}
		mesh := ResolvePath(f.cwd, v.Mesh)
		centering := v.Centering
		if centering == 0 {
			centering = NodeCent
		}

		role := roleGeneric
		var order *meshOrder
		if centering == NodeCent && kind.IsFloat() {
			role = roleField
			if f.comp != nil && f.comp.Method == MethodConnectivity && f.c.Exists(mesh) {
				if order, err = f.meshOrderFor(s, mesh); err != nil {
					return err
				}
			}
		}
		names, err := f.putArrays(s, v.Values, nil, p+"_value", role, order)
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
		sch := schema.New("ucdvar").
			String("meshid", mesh).Always().
			Int("nvals", len(v.Values)).Always().
			Int("nels", n).Always().
			Int("datatype", int(kind)).Always().
			Int("centering", int(centering)).Always().
			Int("mixlen", mixlen).
			Int("cycle", v.Cycle).
			Double("dtime", v.Time).
			String("label", v.Label).
			String("units", v.Units).
			ReplicatedString("value", names, maxComponents).
			ReplicatedString("mixed_value", mixed, maxComponents)
		return f.putHeader(s, p, KindUcdVar, sch)
	})
}

// GetUcdVar reads an unstructured mesh variable. Values compressed in
// mesh order need the mesh's connectivity; on a cache miss it is read
// from the mesh's zonelist first.
func (f *File) GetUcdVar(name string) (*UcdVar, error) {
	p := ResolvePath(f.cwd, name)
	var out *UcdVar
	err := f.protect("get ucdvar", p, func(s *scope) error {
		rec, _, err := f.getHeader(s, p, KindUcdVar)
		if err != nil {
			return err
		}
		v := &UcdVar{
			Mesh:      rec.String("meshid"),
			Centering: Centering(rec.Int("centering")),
			Label:     rec.String("label"),
			Units:     rec.String("units"),
			Cycle:     rec.Int("cycle"),
			Time:      rec.Double("dtime"),
		}
		if f.wants(MaskValues) {
			var order *meshOrder
			if first := rec.String("value0"); first != "" {
				field, err := f.hasFilter(s, first, message.FilterField)
				if err != nil {
					return err
				}
				if field {
					if order, err = f.meshOrderFor(s, v.Mesh); err != nil {
						return err
					}
				}
			}
			if v.Values, err = f.getArrays(s, rec, "value", rec.Int("nvals"), order); err != nil {
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
