package silo

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/go-silo/internal/dtype"
	"github.com/robert-malhotra/go-silo/internal/schema"
)

// Centering says where variable values live.
type Centering int32

const (
	NodeCent Centering = 110
	ZoneCent Centering = 111
)

const (
	maxDims = 3
	// maxComponents bounds the value arrays of one variable.
	maxComponents = 16
)

// dataKind returns the common kind of a set of arrays and their length.
func dataKind(arrays []any) (dtype.Kind, int, error) {
	var (
		kind dtype.Kind
		n    = -1
	)
	for i, a := range arrays {
		k, l, err := dtype.KindOf(a)
		if err != nil {
			return dtype.NoType, 0, err
		}
		if n >= 0 && (k != kind || l != n) {
			return dtype.NoType, 0, badArgs("array %d is %d %s values, want %d %s", i, l, k, n, kind)
		}
		kind, n = k, l
	}
	if n < 0 {
		n = 0
	}
	return kind, n, nil
}

// commonKind returns the kind shared by arrays of any length.
func commonKind(arrays []any) (dtype.Kind, error) {
	kind := dtype.NoType
	for i, a := range arrays {
		k, _, err := dtype.KindOf(a)
		if err != nil {
			return dtype.NoType, err
		}
		if i > 0 && k != kind {
			return dtype.NoType, badArgs("array %d is %s, want %s", i, k, kind)
		}
		kind = k
	}
	return kind, nil
}

// bounds returns the per-array minimum and maximum.
func bounds(arrays []any) (lo, hi [3]float64, err error) {
	for i, a := range arrays {
		if i >= maxDims {
			break
		}
		v, err := dtype.AsFloat64s(a)
		if err != nil {
			return lo, hi, err
		}
		if len(v) == 0 {
			continue
		}
		lo[i], hi[i] = math.Inf(1), math.Inf(-1)
		for _, x := range v {
			lo[i] = math.Min(lo[i], x)
			hi[i] = math.Max(hi[i], x)
		}
	}
	return lo, hi, nil
}

// putArrays writes each array as a component aliased prefix0, prefix1...
func (f *File) putArrays(s *scope, arrays []any, dims []int, prefix string, role zipRole, order *meshOrder) ([]string, error) {
	names := make([]string, len(arrays))
	for i, a := range arrays {
		var err error
		names[i], err = f.putComponent(s, a, dims, "", fmt.Sprintf("%s%d", prefix, i), role, order)
		if err != nil {
			return nil, err
		}
	}
	return names, nil
}

// getArray reads the component named by a header member, nil when the
// member is empty.
func (f *File) getArray(s *scope, rec *schema.Record, member string, order *meshOrder) (any, error) {
	name := rec.String(member)
	if name == "" {
		return nil, nil
	}
	v, _, err := f.getComponent(s, name, false, order)
	return v, err
}

// getInts reads an integer component as int32.
func (f *File) getInts(s *scope, rec *schema.Record, member string) ([]int32, error) {
	v, err := f.getArray(s, rec, member, nil)
	if err != nil || v == nil {
		return nil, err
	}
	out, err := dtype.ConvertSlice(v, dtype.Int)
	if err != nil {
		return nil, err
	}
	return out.([]int32), nil
}

func (f *File) getArrays(s *scope, rec *schema.Record, member string, n int, order *meshOrder) ([]any, error) {
	names := rec.ReplicatedString(member, n)
	out := make([]any, 0, n)
	for _, name := range names {
		if name == "" {
			continue
		}
		v, _, err := f.getComponent(s, name, false, order)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func int32s(v []int) []int32 {
	out := make([]int32, len(v))
	for i, x := range v {
		out[i] = int32(x)
	}
	return out
}

func intsOf(v []int32) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}

// optStrings returns nil when every string is empty.
func optStrings(ss []string) []string {
	for _, s := range ss {
		if s != "" {
			return ss
		}
	}
	return nil
}

func triple(v []int) [3]int {
	var out [3]int
	copy(out[:], v)
	return out
}

// Curve is a set of (x, y) points.
type Curve struct {
	X, Y      any
	XLabel    string
	YLabel    string
	XUnits    string
	YUnits    string
	Label     string
	Reference string
}

// PutCurve writes a curve. X and Y must be float or double slices of the
// same length.
func (f *File) PutCurve(name string, c *Curve) error {
	p := ResolvePath(f.cwd, name)
	return f.protect("put curve", p, func(s *scope) error {
		kind, n, err := dataKind([]any{c.X, c.Y})
		if err != nil {
			return err
		}
		if n == 0 || !kind.IsFloat() {
			return badArgs("curve wants float data, got %d %s values", n, kind)
		}
		var names [2]string
		for i, suffix := range []string{"_xvals", "_yvals"} {
			if names[i], err = f.putComponent(s, []any{c.X, c.Y}[i], nil, "", p+suffix, roleGeneric, nil); err != nil {
				return err
			}
		}
		sch := schema.New("curve").
			Int("npts", n).Always().
			Int("datatype", int(kind)).Always().
			String("xvarname", names[0]).
			String("yvarname", names[1]).
			String("label", c.Label).
			String("xlabel", c.XLabel).
			String("ylabel", c.YLabel).
			String("xunits", c.XUnits).
			String("yunits", c.YUnits).
			String("reference", c.Reference)
		return f.putHeader(s, p, KindCurve, sch)
	})
}

// GetCurve reads a curve.
func (f *File) GetCurve(name string) (*Curve, error) {
	p := ResolvePath(f.cwd, name)
	var out *Curve
	err := f.protect("get curve", p, func(s *scope) error {
		rec, _, err := f.getHeader(s, p, KindCurve)
		if err != nil {
			return err
		}
		c := &Curve{
			Label:     rec.String("label"),
			XLabel:    rec.String("xlabel"),
			YLabel:    rec.String("ylabel"),
			XUnits:    rec.String("xunits"),
			YUnits:    rec.String("yunits"),
			Reference: rec.String("reference"),
		}
		if c.X, err = f.getArray(s, rec, "xvarname", nil); err != nil {
			return err
		}
		if c.Y, err = f.getArray(s, rec, "yvarname", nil); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// PointMesh is a set of unconnected points.
type PointMesh struct {
	Coords     []any
	Labels     []string
	Units      []string
	Cycle      int
	Time       float64
	MinExtents [3]float64
	MaxExtents [3]float64
}

// PutPointMesh writes a point mesh. Extents are computed from the
// coordinates.
func (f *File) PutPointMesh(name string, m *PointMesh) error {
	p := ResolvePath(f.cwd, name)
	return f.protect("put pointmesh", p, func(s *scope) error {
		if len(m.Coords) == 0 || len(m.Coords) > maxDims {
			return badArgs("point mesh wants 1 to %d coordinate arrays, got %d", maxDims, len(m.Coords))
		}
		kind, n, err := dataKind(m.Coords)
		if err != nil {
			return err
		}
		lo, hi, err := bounds(m.Coords)
		if err != nil {
			return err
		}
		names, err := f.putArrays(s, m.Coords, nil, p+"_coord", roleGeneric, nil)
		if err != nil {
			return err
		}
		sch := schema.New("pointmesh").
			Int("ndims", len(m.Coords)).Always().
			Int("nels", n).Always().
			Int("datatype", int(kind)).Always().
			Int("cycle", m.Cycle).
			Double("dtime", m.Time).
			Triple("min_extents", lo).
			Triple("max_extents", hi).
			ReplicatedString("coord", names, maxDims).
			ReplicatedString("label", m.Labels, maxDims).
			ReplicatedString("units", m.Units, maxDims)
		return f.putHeader(s, p, KindPointMesh, sch)
	})
}

// GetPointMesh reads a point mesh. Coordinates are read only when the
// read mask includes MaskCoords.
func (f *File) GetPointMesh(name string) (*PointMesh, error) {
	p := ResolvePath(f.cwd, name)
	var out *PointMesh
	err := f.protect("get pointmesh", p, func(s *scope) error {
		rec, _, err := f.getHeader(s, p, KindPointMesh)
		if err != nil {
			return err
		}
		ndims := rec.Int("ndims")
		m := &PointMesh{
			Labels:     optStrings(rec.ReplicatedString("label", ndims)),
			Units:      optStrings(rec.ReplicatedString("units", ndims)),
			Cycle:      rec.Int("cycle"),
			Time:       rec.Double("dtime"),
			MinExtents: rec.Triple("min_extents"),
			MaxExtents: rec.Triple("max_extents"),
		}
		if f.wants(MaskCoords) {
			if m.Coords, err = f.getArrays(s, rec, "coord", ndims, nil); err != nil {
				return err
			}
		}
		out = m
		return nil
	})
	return out, err
}
