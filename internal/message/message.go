// Package message encodes the descriptors stored alongside container
// entities: datatypes, dataspaces and filter pipelines.
//
// Descriptors use the HDF5 header-message layouts (datatype message 0x0003,
// dataspace message 0x0001, filter pipeline message 0x000B) and are always
// serialized little-endian regardless of the file's target profile.
package message

import (
	"fmt"

	"github.com/robert-malhotra/go-silo/internal/binary"
)

// Type represents a descriptor message type.
type Type uint16

const (
	TypeDataspace      Type = 0x0001
	TypeDatatype       Type = 0x0003
	TypeFilterPipeline Type = 0x000B
)

// Message is the interface implemented by all descriptors.
type Message interface {
	Type() Type
	Serialize(w *binary.Writer) error
}

// Encode serializes a descriptor into a standalone byte slice.
func Encode(m Message) ([]byte, error) {
	w, buf := binary.NewBufferWriter(binary.DefaultConfig())
	if err := m.Serialize(w); err != nil {
		return nil, fmt.Errorf("encoding message 0x%04x: %w", uint16(m.Type()), err)
	}
	return buf.Bytes(), nil
}

// Decode parses a descriptor of the given type from a standalone byte slice.
func Decode(typ Type, data []byte) (Message, error) {
	r := binary.NewBytesReader(data, binary.DefaultConfig())
	switch typ {
	case TypeDatatype:
		return ReadDatatype(r)
	case TypeDataspace:
		return ReadDataspace(r)
	case TypeFilterPipeline:
		return ReadFilterPipeline(r)
	default:
		return nil, fmt.Errorf("unknown message type 0x%04x", uint16(typ))
	}
}
