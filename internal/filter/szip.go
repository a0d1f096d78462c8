package filter

import (
	"fmt"

	"github.com/robert-malhotra/go-silo/internal/message"
)

// SZIP option mask bits.
const (
	SZIPMaskEC uint32 = 4
	SZIPMaskNN uint32 = 32
)

// SZIP carries SZIP parameters. No encoder or decoder is linked in, so
// both directions report ErrUnavailable; writers configured with FALLBACK
// mode store such chunks unfiltered.
type SZIP struct {
	Mask  uint32
	Block uint32
}

// NewSZIP creates an SZIP filter.
// Client data: [0] = option mask, [1] = pixels per block
func NewSZIP(clientData []uint32) *SZIP {
	f := &SZIP{Mask: SZIPMaskNN, Block: 16}
	if len(clientData) > 0 {
		f.Mask = clientData[0]
	}
	if len(clientData) > 1 {
		f.Block = clientData[1]
	}
	return f
}

func (f *SZIP) ID() uint16 {
	return message.FilterSZIP
}

func (f *SZIP) Encode([]byte) ([]byte, error) {
	return nil, fmt.Errorf("szip encode: %w", ErrUnavailable)
}

func (f *SZIP) Decode([]byte) ([]byte, error) {
	return nil, fmt.Errorf("szip decode: %w", ErrUnavailable)
}
