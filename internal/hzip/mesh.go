package hzip

import (
	"fmt"
)

// Mesh is a decoded connectivity stream.
type Mesh struct {
	Nodes  []int32
	Rank   int
	Cells  int
	Origin int
}

// EncodeMesh compresses the flattened connectivity of a quad (rank 2) or
// hex (rank 3) mesh. Node indices are listed per cell in caller order.
func EncodeMesh(nodes []int32, rank, origin int, opts Options) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	top, err := TopologyFor(rank)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 || len(nodes)%top.Nodes != 0 {
		return nil, fmt.Errorf("%w: %d node indices for %d-node cells", ErrTopology, len(nodes), top.Nodes)
	}
	cells := len(nodes) / top.Nodes

	var maxNode int32
	res := make([]uint64, len(nodes))
	prev := make([]int32, top.Nodes)
	canon := make([]int32, top.Nodes)
	for c := 0; c < cells; c++ {
		top.canonical(nodes[c*top.Nodes:(c+1)*top.Nodes], canon)
		for k, n := range canon {
			if n < 0 {
				return nil, fmt.Errorf("%w: negative node index %d", ErrTopology, n)
			}
			if n > maxNode {
				maxNode = n
			}
			res[c*top.Nodes+k] = zigzag(int64(n) - int64(prev[k]))
		}
		copy(prev, canon)
	}

	h := header{
		kind:   kindMesh,
		topo:   top.ID,
		cells:  uint32(cells),
		nnodes: uint32(maxNode) + 1,
		origin: int32(origin),
	}
	return finish(h, res, opts)
}

// DecodeMesh reverses EncodeMesh.
func DecodeMesh(data []byte) (*Mesh, error) {
	s, err := reopen(data, kindMesh)
	if err != nil {
		return nil, err
	}
	top := s.top
	n := int(s.hdr.cells) * top.Nodes
	res, err := s.residuals(n)
	if err != nil {
		return nil, err
	}

	out := make([]int32, n)
	prev := make([]int32, top.Nodes)
	canon := make([]int32, top.Nodes)
	for c := 0; c < int(s.hdr.cells); c++ {
		for k := range canon {
			canon[k] = prev[k] + int32(unzigzag(res[c*top.Nodes+k]))
		}
		top.caller(canon, out[c*top.Nodes:(c+1)*top.Nodes])
		copy(prev, canon)
	}
	return &Mesh{Nodes: out, Rank: top.Rank, Cells: int(s.hdr.cells), Origin: int(s.hdr.origin)}, nil
}

// Peek returns the topology rank and cell count of a stream without
// decoding it.
func Peek(data []byte) (rank, cells int, err error) {
	s, err := openStream(data, neutral)
	if err != nil {
		return 0, 0, err
	}
	top, err := topologyByID(s.hdr.topo)
	if err != nil {
		return 0, 0, err
	}
	return top.Rank, int(s.hdr.cells), nil
}
