package hzip

import (
	"fmt"
)

// Topology describes a supported cell shape.
type Topology struct {
	ID    uint8
	Rank  int
	Nodes int
	Perm  []int
}

var (
	neutral = Topology{ID: 0, Perm: nil}

	// Quad maps counter-clockwise quad nodes to lexicographic order.
	Quad = Topology{ID: 1, Rank: 2, Nodes: 4, Perm: []int{0, 1, 3, 2}}

	// Hex maps two counter-clockwise faces to lexicographic order.
	Hex = Topology{ID: 2, Rank: 3, Nodes: 8, Perm: []int{0, 1, 3, 2, 4, 5, 7, 6}}
)

// TopologyFor returns the topology of a mesh rank.
func TopologyFor(rank int) (Topology, error) {
	switch rank {
	case 2:
		return Quad, nil
	case 3:
		return Hex, nil
	}
	return Topology{}, fmt.Errorf("%w: rank %d", ErrTopology, rank)
}

func topologyByID(id uint8) (Topology, error) {
	switch id {
	case Quad.ID:
		return Quad, nil
	case Hex.ID:
		return Hex, nil
	}
	return Topology{}, fmt.Errorf("%w: topology id %d", ErrCorrupt, id)
}

// canonical reorders one cell into canonical order.
func (t Topology) canonical(cell []int32, out []int32) {
	for i, p := range t.Perm {
		out[i] = cell[p]
	}
}

// caller reverses canonical.
func (t Topology) caller(canon []int32, out []int32) {
	for i, p := range t.Perm {
		out[p] = canon[i]
	}
}

// GridNodelist synthesizes the connectivity of a structured grid with the
// given node counts per dimension. Cells are numbered with the first
// dimension varying fastest and their nodes listed counter-clockwise (the
// bottom face first for hexes).
func GridNodelist(dims []int) ([]int32, error) {
	for _, d := range dims {
		if d < 2 {
			return nil, fmt.Errorf("%w: grid dims %v", ErrTopology, dims)
		}
	}
	switch len(dims) {
	case 2:
		nx, ny := dims[0], dims[1]
		out := make([]int32, 0, (nx-1)*(ny-1)*4)
		for j := 0; j < ny-1; j++ {
			for i := 0; i < nx-1; i++ {
				n := int32(i + j*nx)
				out = append(out, n, n+1, n+1+int32(nx), n+int32(nx))
			}
		}
		return out, nil
	case 3:
		nx, ny, nz := dims[0], dims[1], dims[2]
		plane := int32(nx * ny)
		out := make([]int32, 0, (nx-1)*(ny-1)*(nz-1)*8)
		for k := 0; k < nz-1; k++ {
			for j := 0; j < ny-1; j++ {
				for i := 0; i < nx-1; i++ {
					n := int32(i+j*nx) + int32(k)*plane
					row := int32(nx)
					out = append(out,
						n, n+1, n+1+row, n+row,
						n+plane, n+plane+1, n+plane+1+row, n+plane+row)
				}
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: grid rank %d", ErrTopology, len(dims))
}
