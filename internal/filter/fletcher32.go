package filter

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-silo/internal/binary"
	"github.com/robert-malhotra/go-silo/internal/message"
)

// Fletcher32Filter appends a Fletcher-32 checksum on write and checks it on
// read. With Verify off, Decode only strips the checksum.
type Fletcher32Filter struct {
	Verify bool
}

// NewFletcher32 creates a new Fletcher-32 filter.
func NewFletcher32(clientData []uint32) *Fletcher32Filter {
	return &Fletcher32Filter{Verify: true}
}

func (f *Fletcher32Filter) ID() uint16 {
	return message.FilterFletcher32
}

// SetVerify toggles checksum verification on Decode.
func (f *Fletcher32Filter) SetVerify(on bool) {
	f.Verify = on
}

func (f *Fletcher32Filter) Encode(input []byte) ([]byte, error) {
	out := make([]byte, len(input)+4)
	copy(out, input)
	binary.LittleEndian.PutUint32(out[len(input):], binpkg.Fletcher32(input))
	return out, nil
}

// Decode verifies the Fletcher-32 checksum and returns the data without it.
// The checksum is stored as the last 4 bytes of the input.
func (f *Fletcher32Filter) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("fletcher32: input too short for checksum")
	}
	data := input[:len(input)-4]
	if !f.Verify {
		return data, nil
	}

	stored := binary.LittleEndian.Uint32(input[len(input)-4:])
	if computed := binpkg.Fletcher32(data); stored != computed {
		return nil, fmt.Errorf("fletcher32: %w (stored=0x%08x, computed=0x%08x)",
			ErrChecksum, stored, computed)
	}
	return data, nil
}
