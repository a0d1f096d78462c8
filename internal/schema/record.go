package schema

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-silo/internal/dtype"
	"github.com/robert-malhotra/go-silo/internal/message"
)

// ErrNotCompound is returned when a header blob is not typed by a compound.
var ErrNotCompound = errors.New("not a compound datatype")

// Convert copies a file blob into the memory layout mem, matching members
// by name. Memory members missing from the file are left zero; file
// members unknown to mem are ignored.
func Convert(reg *dtype.Registry, fileType *message.Datatype, blob []byte, mem *message.Datatype) ([]byte, error) {
	if !fileType.IsCompound() || !mem.IsCompound() {
		return nil, ErrNotCompound
	}
	if uint32(len(blob)) < fileType.Size {
		return nil, fmt.Errorf("header blob is %d bytes, type needs %d", len(blob), fileType.Size)
	}
	out := make([]byte, mem.Size)
	for _, mm := range mem.Members {
		fm := fileType.Member(mm.Name)
		if fm == nil {
			continue
		}
		src := blob[fm.ByteOffset : fm.ByteOffset+fm.Type.Size]
		dst := out[mm.ByteOffset : mm.ByteOffset+mm.Type.Size]
		if err := convertMember(reg, fm.Type, src, mm.Type, dst); err != nil {
			return nil, fmt.Errorf("member %s: %w", mm.Name, err)
		}
	}
	return out, nil
}

func convertMember(reg *dtype.Registry, ft *message.Datatype, src []byte, mt *message.Datatype, dst []byte) error {
	if ft.Class == message.ClassString || mt.Class == message.ClassString {
		if ft.Class != mt.Class {
			return fmt.Errorf("cannot convert %s to %s", ft, mt)
		}
		s := trimString(src)
		if len(s) >= len(dst) {
			s = s[:len(dst)-1]
		}
		copy(dst, s)
		return nil
	}

	fbase, mbase := ft, mt
	if ft.Class == message.ClassArray {
		fbase = ft.BaseType
	}
	if mt.Class == message.ClassArray {
		mbase = mt.BaseType
	}
	kind, err := reg.InferMemory(mbase)
	if err != nil {
		return err
	}
	vals, err := dtype.Decode(fbase, src, kind)
	if err != nil {
		return err
	}
	n := mt.NumElements()
	if _, have, _ := dtype.KindOf(vals); have > n {
		vals = truncate(vals, n)
	}
	raw, err := dtype.Encode(vals, mbase)
	if err != nil {
		return err
	}
	copy(dst, raw)
	return nil
}

func truncate(vals any, n int) any {
	switch v := vals.(type) {
	case []byte:
		return v[:n]
	case []int16:
		return v[:n]
	case []int32:
		return v[:n]
	case []int64:
		return v[:n]
	case []float32:
		return v[:n]
	case []float64:
		return v[:n]
	}
	return vals
}

func trimString(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return bytes.TrimRight(b, " ")
}

// MemoryFor derives a memory layout for an arbitrary file layout: every
// member gets the smallest memory kind that holds it and strings get
// StringSize bytes. It is used where no schema for the kind is known.
func MemoryFor(reg *dtype.Registry, fileType *message.Datatype) (*message.Datatype, error) {
	if !fileType.IsCompound() {
		return nil, ErrNotCompound
	}
	var (
		members  []message.CompoundMember
		off      uint32
		maxAlign uint32 = 1
	)
	for _, fm := range fileType.Members {
		mt, err := memoryOf(reg, fm.Type)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", fm.Name, err)
		}
		a := alignOf(mt)
		if a > maxAlign {
			maxAlign = a
		}
		off = alignUp(off, a)
		members = append(members, message.CompoundMember{Name: fm.Name, ByteOffset: off, Type: mt})
		off += mt.Size
	}
	return message.NewCompoundDatatype(alignUp(off, maxAlign), members), nil
}

func memoryOf(reg *dtype.Registry, ft *message.Datatype) (*message.Datatype, error) {
	switch ft.Class {
	case message.ClassString:
		return message.NewStringDatatype(StringSize, message.PadNullTerm), nil
	case message.ClassArray:
		base, err := memoryOf(reg, ft.BaseType)
		if err != nil {
			return nil, err
		}
		return message.NewArrayDatatype(ft.ArrayDims, base), nil
	}
	k, err := reg.InferMemory(ft)
	if err != nil {
		return nil, err
	}
	return reg.Memory(k)
}

// Record is a decoded header. Accessors return zero values for members the
// file did not carry.
type Record struct {
	values map[string]any
	names  []string
}

// Decode converts a file blob into the memory layout mem and unpacks it.
// Pass the Memory layout of the kind's schema, or MemoryFor(fileType).
func Decode(reg *dtype.Registry, fileType *message.Datatype, blob []byte, mem *message.Datatype) (*Record, error) {
	buf, err := Convert(reg, fileType, blob, mem)
	if err != nil {
		return nil, err
	}
	rec := &Record{values: make(map[string]any, len(fileType.Members))}
	for _, fm := range fileType.Members {
		if mem.Member(fm.Name) != nil {
			rec.names = append(rec.names, fm.Name)
		}
	}
	for _, mm := range mem.Members {
		raw := buf[mm.ByteOffset : mm.ByteOffset+mm.Type.Size]
		switch mm.Type.Class {
		case message.ClassString:
			rec.values[mm.Name] = string(trimString(raw))
		case message.ClassArray:
			k, err := reg.InferMemory(mm.Type.BaseType)
			if err != nil {
				return nil, err
			}
			v, err := dtype.Decode(mm.Type.BaseType, raw, k)
			if err != nil {
				return nil, err
			}
			if k.IsFloat() {
				rec.values[mm.Name], _ = dtype.AsFloat64s(v)
			} else {
				rec.values[mm.Name], _ = dtype.AsInt64s(v)
			}
		default:
			k, err := reg.InferMemory(mm.Type)
			if err != nil {
				return nil, err
			}
			v, err := dtype.Decode(mm.Type, raw, k)
			if err != nil {
				return nil, err
			}
			if k.IsFloat() {
				f, _ := dtype.AsFloat64s(v)
				rec.values[mm.Name] = f[0]
			} else {
				i, _ := dtype.AsInt64s(v)
				rec.values[mm.Name] = i[0]
			}
		}
	}
	return rec, nil
}

// Has reports whether the file carried the member.
func (r *Record) Has(name string) bool {
	for _, n := range r.names {
		if n == name {
			return true
		}
	}
	return false
}

// Names returns the members the file carried, in file order.
func (r *Record) Names() []string {
	return append([]string(nil), r.names...)
}

// Value returns the decoded member: int64, float64, string, []int64 or
// []float64. Unknown members return nil.
func (r *Record) Value(name string) any {
	return r.values[name]
}

func (r *Record) Long(name string) int64 {
	switch v := r.values[name].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func (r *Record) Int(name string) int {
	return int(r.Long(name))
}

func (r *Record) Double(name string) float64 {
	switch v := r.values[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func (r *Record) Float(name string) float32 {
	return float32(r.Double(name))
}

func (r *Record) String(name string) string {
	s, _ := r.values[name].(string)
	return s
}

func (r *Record) Triple(name string) [3]float64 {
	var out [3]float64
	switch v := r.values[name].(type) {
	case []float64:
		copy(out[:], v)
	case []int64:
		for i := 0; i < len(v) && i < 3; i++ {
			out[i] = float64(v[i])
		}
	}
	return out
}

func (r *Record) IntTriple(name string) [3]int {
	var out [3]int
	for i, v := range r.Triple(name) {
		out[i] = int(v)
	}
	return out
}

// ReplicatedInt gathers name0..name<n-1>.
func (r *Record) ReplicatedInt(name string, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = r.Int(fmt.Sprintf("%s%d", name, i))
	}
	return out
}

// ReplicatedString gathers name0..name<n-1>.
func (r *Record) ReplicatedString(name string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = r.String(fmt.Sprintf("%s%d", name, i))
	}
	return out
}
