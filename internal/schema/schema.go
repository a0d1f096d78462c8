// Package schema builds the compound record types persisted in object
// headers.
//
// A [Schema] is an ordered member list. [Schema.Build] turns it into two
// parallel layouts in one pass: a memory layout holding every member at its
// natural alignment, and a packed file layout holding only the members that
// are present. File offsets accumulate over emitted members only, in
// declaration order, so an omitted member never leaves a gap.
//
// Member names are persisted. Renaming or reordering members of an
// existing object kind breaks every file already written.
package schema

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-silo/internal/dtype"
	"github.com/robert-malhotra/go-silo/internal/message"
)

// StringSize is the in-memory width of string members.
const StringSize = 256

var (
	ErrStringTooLong = errors.New("string member too long")
	ErrTooMany       = errors.New("too many replicated values")
	ErrEmpty         = errors.New("schema has no members")
)

type member struct {
	name   string
	kind   dtype.Kind // dtype.NoType for strings
	count  int        // array length, 0 for scalars
	ival   int64
	fval   float64
	sval   string
	avals  []float64
	always bool
}

func (m *member) isString() bool { return m.kind == dtype.NoType }

func (m *member) present() bool {
	if m.always {
		return true
	}
	switch {
	case m.isString():
		return m.sval != ""
	case m.count > 0:
		for _, v := range m.avals {
			if v != 0 {
				return true
			}
		}
		return false
	case m.kind.IsFloat():
		return m.fval != 0
	}
	return m.ival != 0
}

// Schema is an ordered, declarative member list.
type Schema struct {
	name    string
	members []*member
	err     error
}

// New starts a schema for the named object kind.
func New(name string) *Schema {
	return &Schema{name: name}
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

func (s *Schema) add(m *member) *Schema {
	s.members = append(s.members, m)
	return s
}

// Int adds an int member, present when non-zero.
func (s *Schema) Int(name string, v int) *Schema {
	return s.add(&member{name: name, kind: dtype.Int, ival: int64(v)})
}

// Long adds a long member, present when non-zero.
func (s *Schema) Long(name string, v int64) *Schema {
	return s.add(&member{name: name, kind: dtype.Long, ival: v})
}

// Float adds a float member, present when non-zero.
func (s *Schema) Float(name string, v float32) *Schema {
	return s.add(&member{name: name, kind: dtype.Float, fval: float64(v)})
}

// Double adds a double member, present when non-zero.
func (s *Schema) Double(name string, v float64) *Schema {
	return s.add(&member{name: name, kind: dtype.Double, fval: v})
}

// String adds a string member, present when non-empty.
func (s *Schema) String(name, v string) *Schema {
	return s.add(&member{name: name, sval: v})
}

// Triple adds a 3-element double array member.
func (s *Schema) Triple(name string, v [3]float64) *Schema {
	return s.add(&member{name: name, kind: dtype.Double, count: 3, avals: v[:]})
}

// IntTriple adds a 3-element int array member.
func (s *Schema) IntTriple(name string, v [3]int) *Schema {
	return s.add(&member{name: name, kind: dtype.Int, count: 3,
		avals: []float64{float64(v[0]), float64(v[1]), float64(v[2])}})
}

// ReplicatedInt adds max int members named name0..name<max-1>. Slots past
// len(vals) are zero.
func (s *Schema) ReplicatedInt(name string, vals []int, max int) *Schema {
	if len(vals) > max {
		s.fail(fmt.Errorf("%w: %s has %d values, max %d", ErrTooMany, name, len(vals), max))
	}
	for i := 0; i < max; i++ {
		m := &member{name: fmt.Sprintf("%s%d", name, i), kind: dtype.Int}
		if i < len(vals) {
			m.ival = int64(vals[i])
		}
		s.add(m)
	}
	return s
}

// ReplicatedString adds max string members named name0..name<max-1>.
func (s *Schema) ReplicatedString(name string, vals []string, max int) *Schema {
	if len(vals) > max {
		s.fail(fmt.Errorf("%w: %s has %d values, max %d", ErrTooMany, name, len(vals), max))
	}
	for i := 0; i < max; i++ {
		m := &member{name: fmt.Sprintf("%s%d", name, i)}
		if i < len(vals) {
			m.sval = vals[i]
		}
		s.add(m)
	}
	return s
}

// Always marks the most recently added member as present regardless of
// its value.
func (s *Schema) Always() *Schema {
	if n := len(s.members); n > 0 {
		s.members[n-1].always = true
	}
	return s
}

func (s *Schema) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// Compiled holds the two layouts of a schema and the packed file blob.
type Compiled struct {
	Name   string
	Memory *message.Datatype
	File   *message.Datatype
	Blob   []byte
}

// Build produces the memory layout, the file layout for profile p, and the
// file blob.
func (s *Schema) Build(reg *dtype.Registry, p dtype.Profile) (*Compiled, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.members) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, s.name)
	}

	var (
		memMembers  []message.CompoundMember
		fileMembers []message.CompoundMember
		fileParts   [][]byte
		memOff      uint32
		fileOff     uint32
		maxAlign    uint32 = 1
	)
	for _, m := range s.members {
		mt, err := memoryType(reg, m)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.name, m.name, err)
		}
		a := alignOf(mt)
		if a > maxAlign {
			maxAlign = a
		}
		memOff = alignUp(memOff, a)
		memMembers = append(memMembers, message.CompoundMember{Name: m.name, ByteOffset: memOff, Type: mt})
		memOff += mt.Size

		if !m.present() {
			continue
		}
		ft, raw, err := fileValue(reg, p, m)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.name, m.name, err)
		}
		fileMembers = append(fileMembers, message.CompoundMember{Name: m.name, ByteOffset: fileOff, Type: ft})
		fileParts = append(fileParts, raw)
		fileOff += ft.Size
	}

	blob := make([]byte, 0, fileOff)
	for _, part := range fileParts {
		blob = append(blob, part...)
	}
	return &Compiled{
		Name:   s.name,
		Memory: message.NewCompoundDatatype(alignUp(memOff, maxAlign), memMembers),
		File:   message.NewCompoundDatatype(fileOff, fileMembers),
		Blob:   blob,
	}, nil
}

func memoryType(reg *dtype.Registry, m *member) (*message.Datatype, error) {
	if m.isString() {
		if len(m.sval) >= StringSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(m.sval))
		}
		return message.NewStringDatatype(StringSize, message.PadNullTerm), nil
	}
	base, err := reg.Memory(m.kind)
	if err != nil {
		return nil, err
	}
	if m.count > 0 {
		return message.NewArrayDatatype([]uint32{uint32(m.count)}, base), nil
	}
	return base, nil
}

func fileValue(reg *dtype.Registry, p dtype.Profile, m *member) (*message.Datatype, []byte, error) {
	if m.isString() {
		raw := append([]byte(m.sval), 0)
		return message.NewStringDatatype(uint32(len(raw)), message.PadNullTerm), raw, nil
	}
	base, err := reg.File(m.kind, p)
	if err != nil {
		return nil, nil, err
	}
	if m.count > 0 {
		raw, err := dtype.Encode(m.avals, base)
		if err != nil {
			return nil, nil, err
		}
		return message.NewArrayDatatype([]uint32{uint32(m.count)}, base), raw, nil
	}
	var val any = []int64{m.ival}
	if m.kind.IsFloat() {
		val = []float64{m.fval}
	}
	raw, err := dtype.Encode(val, base)
	if err != nil {
		return nil, nil, err
	}
	return base, raw, nil
}

func alignOf(dt *message.Datatype) uint32 {
	switch dt.Class {
	case message.ClassArray:
		return alignOf(dt.BaseType)
	case message.ClassString:
		return 1
	}
	return dt.Size
}

func alignUp(off, a uint32) uint32 {
	if a <= 1 {
		return off
	}
	return (off + a - 1) / a * a
}
