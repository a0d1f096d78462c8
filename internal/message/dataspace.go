package message

import (
	"fmt"

	"github.com/robert-malhotra/go-silo/internal/binary"
)

// MaxRank is the largest dataspace rank accepted by the container.
const MaxRank = 32

// Dataspace represents a dataspace message. A nil or empty Dimensions slice
// describes a scalar.
type Dataspace struct {
	Dimensions []uint64
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// NewDataspace creates a simple dataspace.
func NewDataspace(dims []uint64) *Dataspace {
	return &Dataspace{Dimensions: append([]uint64(nil), dims...)}
}

// NewScalarDataspace creates a scalar dataspace.
func NewScalarDataspace() *Dataspace {
	return &Dataspace{}
}

// Rank returns the number of dimensions.
func (m *Dataspace) Rank() int { return len(m.Dimensions) }

// IsScalar returns true if this is a scalar dataspace.
func (m *Dataspace) IsScalar() bool { return len(m.Dimensions) == 0 }

// NumElements returns the total number of elements in the dataspace.
func (m *Dataspace) NumElements() uint64 {
	n := uint64(1)
	for _, d := range m.Dimensions {
		n *= d
	}
	return n
}

// Serialize writes version 2 of the dataspace message: version, rank,
// flags, type, then one 8-byte size per dimension.
func (m *Dataspace) Serialize(w *binary.Writer) error {
	if len(m.Dimensions) > MaxRank {
		return fmt.Errorf("dataspace rank %d exceeds %d", len(m.Dimensions), MaxRank)
	}
	spaceType := uint8(1)
	if m.IsScalar() {
		spaceType = 0
	}
	for _, b := range []uint8{2, uint8(len(m.Dimensions)), 0, spaceType} {
		if err := w.WriteUint8(b); err != nil {
			return err
		}
	}
	for _, d := range m.Dimensions {
		if err := w.WriteUint64(d); err != nil {
			return err
		}
	}
	return nil
}

// ReadDataspace parses a dataspace message.
func ReadDataspace(r *binary.Reader) (*Dataspace, error) {
	head, err := r.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("dataspace header: %w", err)
	}
	if head[0] != 2 {
		return nil, fmt.Errorf("unsupported dataspace version %d", head[0])
	}
	rank := int(head[1])
	if rank > MaxRank {
		return nil, fmt.Errorf("dataspace rank %d exceeds %d", rank, MaxRank)
	}
	ds := &Dataspace{}
	if rank > 0 {
		ds.Dimensions = make([]uint64, rank)
		for i := range ds.Dimensions {
			if ds.Dimensions[i], err = r.ReadUint64(); err != nil {
				return nil, fmt.Errorf("dataspace dimension %d: %w", i, err)
			}
		}
	}
	return ds, nil
}
