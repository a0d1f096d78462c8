package message

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-silo/internal/binary"
)

// DatatypeClass represents the class of a datatype.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0  // Integers
	ClassFloatPoint DatatypeClass = 1  // Floating-point
	ClassString     DatatypeClass = 3  // Fixed-length strings
	ClassCompound   DatatypeClass = 6  // Compound types (structs)
	ClassArray      DatatypeClass = 10 // Fixed-size arrays
)

// ByteOrder represents the byte order of numeric types.
type ByteOrder uint8

const (
	OrderLE ByteOrder = 0
	OrderBE ByteOrder = 1
)

// StringPadding represents how strings are padded.
type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

// Datatype represents a datatype message.
type Datatype struct {
	Class     DatatypeClass
	Size      uint32
	ByteOrder ByteOrder

	// Fixed-point
	Signed bool

	// String
	StringPadding StringPadding

	// Compound
	Members []CompoundMember

	// Array
	ArrayDims []uint32
	BaseType  *Datatype
}

// CompoundMember represents a member of a compound datatype.
type CompoundMember struct {
	Name       string
	ByteOffset uint32
	Type       *Datatype
}

func (m *Datatype) Type() Type { return TypeDatatype }

// IsInteger returns true if this is an integer type.
func (m *Datatype) IsInteger() bool { return m.Class == ClassFixedPoint }

// IsFloat returns true if this is a floating-point type.
func (m *Datatype) IsFloat() bool { return m.Class == ClassFloatPoint }

// IsCompound returns true if this is a compound type.
func (m *Datatype) IsCompound() bool { return m.Class == ClassCompound }

// Member returns the compound member with the given name, or nil.
func (m *Datatype) Member(name string) *CompoundMember {
	for i := range m.Members {
		if m.Members[i].Name == name {
			return &m.Members[i]
		}
	}
	return nil
}

// NumElements returns the number of base elements in an array type (1 for
// any other class).
func (m *Datatype) NumElements() int {
	if m.Class != ClassArray {
		return 1
	}
	n := 1
	for _, d := range m.ArrayDims {
		n *= int(d)
	}
	return n
}

// Equal reports whether two datatypes describe the same layout.
func (m *Datatype) Equal(o *Datatype) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Class != o.Class || m.Size != o.Size {
		return false
	}
	switch m.Class {
	case ClassFixedPoint:
		return m.ByteOrder == o.ByteOrder && m.Signed == o.Signed
	case ClassFloatPoint:
		return m.ByteOrder == o.ByteOrder
	case ClassString:
		return m.StringPadding == o.StringPadding
	case ClassArray:
		if len(m.ArrayDims) != len(o.ArrayDims) {
			return false
		}
		for i := range m.ArrayDims {
			if m.ArrayDims[i] != o.ArrayDims[i] {
				return false
			}
		}
		return m.BaseType.Equal(o.BaseType)
	case ClassCompound:
		if len(m.Members) != len(o.Members) {
			return false
		}
		for i := range m.Members {
			a, b := m.Members[i], o.Members[i]
			if a.Name != b.Name || a.ByteOffset != b.ByteOffset || !a.Type.Equal(b.Type) {
				return false
			}
		}
		return true
	}
	return true
}

// String returns a short human-readable description, e.g. "i32be".
func (m *Datatype) String() string {
	order := "le"
	if m.ByteOrder == OrderBE {
		order = "be"
	}
	switch m.Class {
	case ClassFixedPoint:
		if m.Signed {
			return fmt.Sprintf("i%d%s", m.Size*8, order)
		}
		return fmt.Sprintf("u%d%s", m.Size*8, order)
	case ClassFloatPoint:
		return fmt.Sprintf("f%d%s", m.Size*8, order)
	case ClassString:
		return fmt.Sprintf("str%d", m.Size)
	case ClassArray:
		dims := make([]string, len(m.ArrayDims))
		for i, d := range m.ArrayDims {
			dims[i] = fmt.Sprint(d)
		}
		return fmt.Sprintf("%s[%s]", m.BaseType, strings.Join(dims, ","))
	case ClassCompound:
		parts := make([]string, len(m.Members))
		for i, mem := range m.Members {
			parts[i] = fmt.Sprintf("%s@%d:%s", mem.Name, mem.ByteOffset, mem.Type)
		}
		return "{" + strings.Join(parts, " ") + "}"
	}
	return fmt.Sprintf("class%d", m.Class)
}

// NewFixedPointDatatype creates a new fixed-point (integer) datatype.
func NewFixedPointDatatype(size uint32, signed bool, order ByteOrder) *Datatype {
	return &Datatype{
		Class:     ClassFixedPoint,
		Size:      size,
		ByteOrder: order,
		Signed:    signed,
	}
}

// NewFloatDatatype creates a new IEEE floating-point datatype (size 4 or 8).
func NewFloatDatatype(size uint32, order ByteOrder) *Datatype {
	return &Datatype{
		Class:     ClassFloatPoint,
		Size:      size,
		ByteOrder: order,
	}
}

// NewStringDatatype creates a new fixed-length string datatype.
func NewStringDatatype(size uint32, padding StringPadding) *Datatype {
	return &Datatype{
		Class:         ClassString,
		Size:          size,
		StringPadding: padding,
	}
}

// NewCompoundDatatype creates a new compound datatype.
func NewCompoundDatatype(size uint32, members []CompoundMember) *Datatype {
	return &Datatype{
		Class:   ClassCompound,
		Size:    size,
		Members: members,
	}
}

// NewArrayDatatype creates a new array datatype.
func NewArrayDatatype(dims []uint32, base *Datatype) *Datatype {
	total := uint32(1)
	for _, d := range dims {
		total *= d
	}
	return &Datatype{
		Class:     ClassArray,
		Size:      total * base.Size,
		ArrayDims: dims,
		BaseType:  base,
	}
}

// Serialize writes the datatype message.
//
// Byte 0 holds the class (low nibble) and version (high nibble), bytes 1-3
// the class bit field, bytes 4-7 the size, followed by class properties.
func (m *Datatype) Serialize(w *binary.Writer) error {
	version := uint8(1)
	if m.Class == ClassCompound || m.Class == ClassArray {
		version = 3
	}
	if err := w.WriteUint8(uint8(m.Class) | version<<4); err != nil {
		return err
	}
	if err := w.WriteUintN(uint64(m.classBits()), 3); err != nil {
		return err
	}
	if err := w.WriteUint32(m.Size); err != nil {
		return err
	}

	switch m.Class {
	case ClassFixedPoint:
		if err := w.WriteUint16(0); err != nil { // bit offset
			return err
		}
		return w.WriteUint16(uint16(m.Size * 8))

	case ClassFloatPoint:
		return writeFloatProperties(w, m.Size)

	case ClassString:
		return nil

	case ClassCompound:
		offSize := memberOffsetSize(m.Size)
		for _, member := range m.Members {
			if err := w.WriteString(member.Name); err != nil {
				return err
			}
			if err := w.WriteUintN(uint64(member.ByteOffset), offSize); err != nil {
				return err
			}
			if member.Type == nil {
				return fmt.Errorf("compound member %q has no type", member.Name)
			}
			if err := member.Type.Serialize(w); err != nil {
				return err
			}
		}
		return nil

	case ClassArray:
		if err := w.WriteUint8(uint8(len(m.ArrayDims))); err != nil {
			return err
		}
		for _, d := range m.ArrayDims {
			if err := w.WriteUint32(d); err != nil {
				return err
			}
		}
		if m.BaseType == nil {
			return fmt.Errorf("array datatype has no base type")
		}
		return m.BaseType.Serialize(w)
	}
	return fmt.Errorf("unsupported datatype class: %d", m.Class)
}

func (m *Datatype) classBits() uint32 {
	switch m.Class {
	case ClassFixedPoint:
		bits := uint32(m.ByteOrder)
		if m.Signed {
			bits |= 0x08
		}
		return bits
	case ClassFloatPoint:
		// byte order, implied mantissa MSB, sign bit location
		return uint32(m.ByteOrder) | 1<<5 | (m.Size*8-1)<<8
	case ClassString:
		return uint32(m.StringPadding)
	case ClassCompound:
		return uint32(len(m.Members))
	}
	return 0
}

// writeFloatProperties writes IEEE 754 properties: bit offset(2), bit
// precision(2), exponent location(1), exponent size(1), mantissa
// location(1), mantissa size(1), exponent bias(4).
func writeFloatProperties(w *binary.Writer, size uint32) error {
	var props []byte
	switch size {
	case 4:
		props = []byte{0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0}
	case 8:
		props = []byte{0, 0, 64, 0, 52, 11, 0, 52, 0xff, 3, 0, 0}
	default:
		return fmt.Errorf("unsupported float size: %d", size)
	}
	return w.WriteBytes(props)
}

// memberOffsetSize returns the width of a compound member offset, which
// depends on the compound's total size.
func memberOffsetSize(compoundSize uint32) int {
	switch {
	case compoundSize <= 0xFF:
		return 1
	case compoundSize <= 0xFFFF:
		return 2
	default:
		return 4
	}
}

// ReadDatatype parses a datatype message.
func ReadDatatype(r *binary.Reader) (*Datatype, error) {
	head, err := r.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("datatype header: %w", err)
	}
	bits, err := r.ReadUintN(3)
	if err != nil {
		return nil, fmt.Errorf("datatype class bits: %w", err)
	}
	size, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("datatype size: %w", err)
	}

	dt := &Datatype{Class: DatatypeClass(head & 0x0F), Size: size}

	switch dt.Class {
	case ClassFixedPoint:
		dt.ByteOrder = ByteOrder(bits & 0x01)
		dt.Signed = bits&0x08 != 0
		r.Skip(4)

	case ClassFloatPoint:
		dt.ByteOrder = ByteOrder(bits & 0x01)
		r.Skip(12)

	case ClassString:
		dt.StringPadding = StringPadding(bits & 0x0F)

	case ClassCompound:
		n := int(bits & 0xFFFF)
		offSize := memberOffsetSize(size)
		dt.Members = make([]CompoundMember, n)
		for i := 0; i < n; i++ {
			name, err := r.ReadString()
			if err != nil {
				return nil, fmt.Errorf("compound member %d name: %w", i, err)
			}
			off, err := r.ReadUintN(offSize)
			if err != nil {
				return nil, fmt.Errorf("compound member %q offset: %w", name, err)
			}
			mt, err := ReadDatatype(r)
			if err != nil {
				return nil, fmt.Errorf("compound member %q: %w", name, err)
			}
			if uint64(off)+uint64(mt.Size) > uint64(size) {
				return nil, fmt.Errorf("compound member %q overflows compound size %d", name, size)
			}
			dt.Members[i] = CompoundMember{Name: name, ByteOffset: uint32(off), Type: mt}
		}

	case ClassArray:
		ndims, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		dt.ArrayDims = make([]uint32, ndims)
		for i := range dt.ArrayDims {
			if dt.ArrayDims[i], err = r.ReadUint32(); err != nil {
				return nil, err
			}
		}
		if dt.BaseType, err = ReadDatatype(r); err != nil {
			return nil, fmt.Errorf("array base type: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported datatype class: %d", dt.Class)
	}
	return dt, nil
}
