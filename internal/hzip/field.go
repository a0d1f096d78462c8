package hzip

import (
	"fmt"
	"math"
)

// MaxLoss is the highest supported loss level.
const MaxLoss = 3

// dropped low mantissa bits per loss level
var (
	drop32 = [MaxLoss + 1]uint{0, 8, 12, 16}
	drop64 = [MaxLoss + 1]uint{0, 16, 24, 32}
)

// FieldOptions configure field compression.
type FieldOptions struct {
	Options
	// Loss 0 is lossless; each level keeps fewer mantissa bits.
	Loss int
}

// visitOrder lists nodes in the order they first appear in the canonical
// connectivity, then any nodes no cell references. pred[i] is the
// position in order of the value predicting order[i], or -1.
func visitOrder(nodes []int32, top Topology, nnodes int) (order, pred []int32, err error) {
	pos := make([]int32, nnodes)
	for i := range pos {
		pos[i] = -1
	}
	order = make([]int32, 0, nnodes)
	pred = make([]int32, 0, nnodes)
	canon := make([]int32, top.Nodes)
	for c := 0; c < len(nodes)/top.Nodes; c++ {
		top.canonical(nodes[c*top.Nodes:(c+1)*top.Nodes], canon)
		for _, n := range canon {
			if n < 0 || int(n) >= nnodes {
				return nil, nil, fmt.Errorf("%w: node %d of %d", ErrMismatch, n, nnodes)
			}
		}
		for _, n := range canon {
			if pos[n] >= 0 {
				continue
			}
			p := int32(len(order) - 1)
			for _, m := range canon {
				if pos[m] >= 0 {
					p = pos[m]
					break
				}
			}
			pos[n] = int32(len(order))
			order = append(order, n)
			pred = append(pred, p)
		}
	}
	for n := range pos {
		if pos[n] < 0 {
			pred = append(pred, int32(len(order)-1))
			pos[n] = int32(len(order))
			order = append(order, int32(n))
		}
	}
	return order, pred, nil
}

func checkMesh(nodes []int32, rank int) (Topology, error) {
	top, err := TopologyFor(rank)
	if err != nil {
		return top, err
	}
	if len(nodes) == 0 || len(nodes)%top.Nodes != 0 {
		return top, fmt.Errorf("%w: %d node indices for %d-node cells", ErrMismatch, len(nodes), top.Nodes)
	}
	return top, nil
}

// EncodeField compresses per-node values ([]float32 or []float64) of the
// mesh described by nodes.
func EncodeField(values any, nodes []int32, rank int, opts FieldOptions) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Loss < 0 || opts.Loss > MaxLoss {
		return nil, fmt.Errorf("%w: loss %d", ErrOption, opts.Loss)
	}
	top, err := checkMesh(nodes, rank)
	if err != nil {
		return nil, err
	}

	var (
		mapped []uint64
		elem   uint8
	)
	switch v := values.(type) {
	case []float32:
		elem = 4
		mapped = make([]uint64, len(v))
		for i, f := range v {
			mapped[i] = uint64(map32(math.Float32bits(f) &^ (1<<drop32[opts.Loss] - 1)))
		}
	case []float64:
		elem = 8
		mapped = make([]uint64, len(v))
		for i, f := range v {
			mapped[i] = map64(math.Float64bits(f) &^ (1<<drop64[opts.Loss] - 1))
		}
	default:
		return nil, fmt.Errorf("%w: field values of type %T", ErrOption, values)
	}

	order, pred, err := visitOrder(nodes, top, len(mapped))
	if err != nil {
		return nil, err
	}
	res := make([]uint64, len(order))
	for i, n := range order {
		var p uint64
		if pred[i] >= 0 {
			p = mapped[order[pred[i]]]
		}
		res[i] = zigzag(int64(mapped[n] - p))
	}

	h := header{
		kind:   kindField,
		topo:   top.ID,
		loss:   uint8(opts.Loss),
		elem:   elem,
		cells:  uint32(len(nodes) / top.Nodes),
		nnodes: uint32(len(mapped)),
	}
	return finish(h, res, opts.Options)
}

// DecodeField reverses EncodeField. nodes and rank must describe the mesh
// used to encode; the result is []float32 or []float64 as encoded.
func DecodeField(data []byte, nodes []int32, rank int) (any, error) {
	s, err := reopen(data, kindField)
	if err != nil {
		return nil, err
	}
	top, err := checkMesh(nodes, rank)
	if err != nil {
		return nil, err
	}
	if top.ID != s.top.ID || int(s.hdr.cells) != len(nodes)/top.Nodes {
		return nil, fmt.Errorf("%w: stream has %d cells of topology %d", ErrMismatch, s.hdr.cells, s.hdr.topo)
	}
	nnodes := int(s.hdr.nnodes)
	order, pred, err := visitOrder(nodes, top, nnodes)
	if err != nil {
		return nil, err
	}
	res, err := s.residuals(nnodes)
	if err != nil {
		return nil, err
	}
	mapped := make([]uint64, nnodes)
	for i, n := range order {
		var p uint64
		if pred[i] >= 0 {
			p = mapped[order[pred[i]]]
		}
		mapped[n] = p + uint64(unzigzag(res[i]))
	}

	switch s.hdr.elem {
	case 4:
		out := make([]float32, nnodes)
		for i, m := range mapped {
			out[i] = math.Float32frombits(unmap32(uint32(m)))
		}
		return out, nil
	case 8:
		out := make([]float64, nnodes)
		for i, m := range mapped {
			out[i] = math.Float64frombits(unmap64(m))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: element size %d", ErrCorrupt, s.hdr.elem)
}

// map32 and map64 order float bit patterns like the values they encode,
// so nearby values give small residuals.
func map32(b uint32) uint32 {
	if b&(1<<31) != 0 {
		return ^b
	}
	return b | 1<<31
}

func unmap32(m uint32) uint32 {
	if m&(1<<31) != 0 {
		return m &^ (1 << 31)
	}
	return ^m
}

func map64(b uint64) uint64 {
	if b&(1<<63) != 0 {
		return ^b
	}
	return b | 1<<63
}

func unmap64(m uint64) uint64 {
	if m&(1<<63) != 0 {
		return m &^ (1 << 63)
	}
	return ^m
}
