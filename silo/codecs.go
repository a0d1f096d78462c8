package silo

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/go-silo/internal/dtype"
	"github.com/robert-malhotra/go-silo/internal/filter"
	"github.com/robert-malhotra/go-silo/internal/fpzip"
	"github.com/robert-malhotra/go-silo/internal/hzip"
	"github.com/robert-malhotra/go-silo/internal/message"
)

// registerCodecs installs this session's constructors in the container's
// filter registry. They close over f to reach the zip slot.
func (f *File) registerCodecs() {
	reg := f.c.Filters
	reg.Register(message.FilterDeflate, "deflate", func(info message.FilterInfo) (filter.Filter, error) {
		d := filter.NewDeflate(info.ClientData)
		if ctx := f.zip.take(); ctx != nil {
			return filter.Bounded(d, ctx.comp.MinRatio), nil
		}
		return d, nil
	})
	reg.Register(message.FilterConnectivity, "hzip-mesh", f.newMeshFilter)
	reg.Register(message.FilterField, "hzip-field", f.newFieldFilter)
	reg.Register(message.FilterFloat, "fpzip", f.newFloatFilter)
}

func minRatio(ctx *zipContext) float64 {
	if ctx == nil {
		return 0
	}
	return ctx.comp.MinRatio
}

// meshFilter runs the connectivity codec over an integer nodelist.
type meshFilter struct {
	ft     *message.Datatype
	rank   int
	origin int
	opts   hzip.Options
	ratio  float64
}

func (f *File) newMeshFilter(info message.FilterInfo) (filter.Filter, error) {
	ft, err := typeFromData(info.ClientData)
	if err != nil {
		return nil, err
	}
	if len(info.ClientData) < 6 {
		return nil, fmt.Errorf("%w: mesh filter wants 6 client data values", hzip.ErrCorrupt)
	}
	cd := info.ClientData
	m := &meshFilter{
		ft:   ft,
		rank: int(cd[3]),
		opts: hzip.Options{Codec: hzip.Codec(cd[4]), Bits: int(cd[5])},
	}
	if ctx := f.zip.take(); ctx != nil {
		m.ratio = minRatio(ctx)
		if ctx.order != nil {
			m.origin = ctx.order.origin
		}
	}
	return m, nil
}

func (m *meshFilter) ID() uint16 { return message.FilterConnectivity }

func (m *meshFilter) Encode(input []byte) ([]byte, error) {
	v, err := dtype.Decode(m.ft, input, dtype.Long)
	if err != nil {
		return nil, err
	}
	ints, err := dtype.AsInt64s(v)
	if err != nil {
		return nil, err
	}
	nodes := make([]int32, len(ints))
	for i, n := range ints {
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("%w: node %d out of range", hzip.ErrTopology, n)
		}
		nodes[i] = int32(n)
	}
	opts := m.opts
	opts.Bound = filter.Limit(len(input), m.ratio)
	return hzip.EncodeMesh(nodes, m.rank, m.origin, opts)
}

func (m *meshFilter) Decode(input []byte) ([]byte, error) {
	mesh, err := hzip.DecodeMesh(input)
	if err != nil {
		return nil, err
	}
	return dtype.Encode(mesh.Nodes, m.ft)
}

// fieldFilter runs the mesh-order field codec. Unlike the other codecs it
// needs the nodelist on both sides; it is taken from the zip slot.
type fieldFilter struct {
	ft    *message.Datatype
	rank  int
	opts  hzip.FieldOptions
	ratio float64
	order *meshOrder
}

func (f *File) newFieldFilter(info message.FilterInfo) (filter.Filter, error) {
	ft, err := typeFromData(info.ClientData)
	if err != nil {
		return nil, err
	}
	cd := info.ClientData
	if len(cd) < 7 {
		return nil, fmt.Errorf("%w: field filter wants 7 client data values", hzip.ErrCorrupt)
	}
	ff := &fieldFilter{
		ft:   ft,
		rank: int(cd[3]),
		opts: hzip.FieldOptions{
			Options: hzip.Options{Codec: hzip.Codec(cd[4]), Bits: int(cd[5])},
			Loss:    int(cd[6]),
		},
	}
	if ctx := f.zip.take(); ctx != nil {
		ff.ratio = minRatio(ctx)
		ff.order = ctx.order
	}
	return ff, nil
}

func (ff *fieldFilter) ID() uint16 { return message.FilterField }

func (ff *fieldFilter) nodes() ([]int32, error) {
	if ff.order == nil {
		return nil, fmt.Errorf("%w: no mesh nodelist available", hzip.ErrMismatch)
	}
	if ff.order.rank != ff.rank {
		return nil, fmt.Errorf("%w: mesh rank %d, stream rank %d", hzip.ErrMismatch, ff.order.rank, ff.rank)
	}
	return ff.order.nodes, nil
}

func (ff *fieldFilter) Encode(input []byte) ([]byte, error) {
	nodes, err := ff.nodes()
	if err != nil {
		return nil, err
	}
	vals, err := decodeFloats(ff.ft, input)
	if err != nil {
		return nil, err
	}
	opts := ff.opts
	opts.Bound = filter.Limit(len(input), ff.ratio)
	return hzip.EncodeField(vals, nodes, ff.rank, opts)
}

func (ff *fieldFilter) Decode(input []byte) ([]byte, error) {
	nodes, err := ff.nodes()
	if err != nil {
		return nil, err
	}
	vals, err := hzip.DecodeField(input, nodes, ff.rank)
	if err != nil {
		return nil, err
	}
	return dtype.Encode(vals, ff.ft)
}

// floatFilter runs the standalone float codec. The stream records its
// extents so decoding needs nothing from the slot.
type floatFilter struct {
	ft    *message.Datatype
	prec  int
	dims  []int
	ratio float64
}

func (f *File) newFloatFilter(info message.FilterInfo) (filter.Filter, error) {
	ft, err := typeFromData(info.ClientData)
	if err != nil {
		return nil, err
	}
	ff := &floatFilter{ft: ft}
	if len(info.ClientData) > 3 {
		ff.prec = int(info.ClientData[3])
	}
	if ctx := f.zip.take(); ctx != nil {
		ff.ratio = minRatio(ctx)
		ff.dims = ctx.dims
	}
	return ff, nil
}

func (ff *floatFilter) ID() uint16 { return message.FilterFloat }

func (ff *floatFilter) Encode(input []byte) ([]byte, error) {
	vals, err := decodeFloats(ff.ft, input)
	if err != nil {
		return nil, err
	}
	dims := ff.dims
	if len(dims) == 0 {
		dims = []int{len(input) / int(ff.ft.Size)}
	}
	return fpzip.Encode(vals, dims, fpzip.Options{Precision: ff.prec, Bound: filter.Limit(len(input), ff.ratio)})
}

func (ff *floatFilter) Decode(input []byte) ([]byte, error) {
	vals, _, err := fpzip.Decode(input)
	if err != nil {
		return nil, err
	}
	return dtype.Encode(vals, ff.ft)
}

func decodeFloats(ft *message.Datatype, raw []byte) (any, error) {
	k := dtype.Double
	if ft.Size == 4 {
		k = dtype.Float
	}
	return dtype.Decode(ft, raw, k)
}
