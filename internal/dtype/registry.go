package dtype

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/robert-malhotra/go-silo/internal/message"
)

// Profile selects the byte order and widths used for numeric data on disk.
// It is fixed when a file is created and recorded in the file.
type Profile uint8

const (
	Local Profile = iota
	BigEndian32
	BigEndian64
	LittleEndian
)

var profileNames = []string{"local", "bigendian32", "bigendian64", "littleendian"}

func (p Profile) String() string {
	if int(p) < len(profileNames) {
		return profileNames[p]
	}
	return fmt.Sprintf("profile(%d)", uint8(p))
}

// ParseProfile parses a profile name as produced by Profile.String. The
// historical aliases "sun", "cray" and "intel" are accepted as well.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(s) {
	case "local", "":
		return Local, nil
	case "bigendian32", "sun":
		return BigEndian32, nil
	case "bigendian64", "cray":
		return BigEndian64, nil
	case "littleendian", "intel":
		return LittleEndian, nil
	}
	return Local, fmt.Errorf("%w: profile %q", ErrBadKind, s)
}

// MemoryModel gives the width of each kind on the platform the memory
// layout describes. It only drives inference from file widths.
type MemoryModel struct {
	Char, Short, Int, Long, Float, Double int
}

// DefaultMemoryModel matches the Go slice types of each kind.
var DefaultMemoryModel = MemoryModel{Char: 1, Short: 2, Int: 4, Long: 8, Float: 4, Double: 8}

func (m MemoryModel) width(k Kind) int {
	switch k {
	case Char:
		return m.Char
	case Short:
		return m.Short
	case Int:
		return m.Int
	case Long:
		return m.Long
	case Float:
		return m.Float
	case Double:
		return m.Double
	}
	return 0
}

// widths per profile, indexed char, short, int, long, float, double
var profileWidths = map[Profile][6]uint32{
	BigEndian32:  {1, 2, 4, 4, 4, 8},
	BigEndian64:  {1, 8, 8, 8, 8, 8},
	LittleEndian: {1, 2, 4, 4, 4, 8},
}

var kindIndex = map[Kind]int{Char: 0, Short: 1, Int: 2, Long: 3, Float: 4, Double: 5}

// Registry resolves kinds to memory and file datatypes and owns the
// force-single policy. It is safe for concurrent use.
type Registry struct {
	model MemoryModel

	mu          sync.RWMutex
	forceSingle bool
}

// NewRegistry returns a registry using the given memory model.
func NewRegistry(model MemoryModel) *Registry {
	return &Registry{model: model}
}

// Model returns the registry's memory model.
func (r *Registry) Model() MemoryModel {
	return r.model
}

// SetForceSingle toggles the force-single policy.
func (r *Registry) SetForceSingle(on bool) {
	r.mu.Lock()
	r.forceSingle = on
	r.mu.Unlock()
}

// ForceSingle reports whether force-single is active.
func (r *Registry) ForceSingle() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.forceSingle
}

// DefaultKind applies force-single to k: Double becomes Float while the
// policy is active. Only default-path readers call it.
func (r *Registry) DefaultKind(k Kind) Kind {
	if k == Double && r.ForceSingle() {
		return Float
	}
	return k
}

// Memory returns the in-memory datatype of k: host byte order, Go width.
func (r *Registry) Memory(k Kind) (*message.Datatype, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrBadKind, k)
	}
	return atomic(k, uint32(k.GoSize()), hostOrder()), nil
}

// File returns the on-disk datatype of k under profile p.
func (r *Registry) File(k Kind, p Profile) (*message.Datatype, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrBadKind, k)
	}
	if p == Local {
		return r.Memory(k)
	}
	widths, ok := profileWidths[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBadKind, p)
	}
	order := message.OrderBE
	if p == LittleEndian {
		order = message.OrderLE
	}
	return atomic(k, widths[kindIndex[k]], order), nil
}

// InferMemory returns the smallest memory kind able to hold values of the
// stored datatype ft. It never consults force-single.
func (r *Registry) InferMemory(ft *message.Datatype) (Kind, error) {
	if ft == nil {
		return NoType, fmt.Errorf("%w: nil datatype", ErrBadKind)
	}
	size := int(ft.Size)
	switch ft.Class {
	case message.ClassFixedPoint:
		switch {
		case size <= r.model.Char:
			return Char, nil
		// With short == int the short branch is skipped on purpose so
		// 2-byte values come back as INT.
		case r.model.Short != r.model.Int && size <= r.model.Short:
			return Short, nil
		case size <= r.model.Int:
			return Int, nil
		case size <= r.model.Long:
			return Long, nil
		}
	case message.ClassFloatPoint:
		switch {
		case size <= r.model.Float:
			return Float, nil
		case size <= r.model.Double:
			return Double, nil
		}
	}
	return NoType, fmt.Errorf("%w: no memory kind for %s", ErrBadKind, ft)
}

// KindWidth returns the width of k in the registry's memory model.
func (r *Registry) KindWidth(k Kind) int {
	return r.model.width(k)
}

func atomic(k Kind, size uint32, order message.ByteOrder) *message.Datatype {
	if k.IsFloat() {
		return message.NewFloatDatatype(size, order)
	}
	return message.NewFixedPointDatatype(size, true, order)
}

func hostOrder() message.ByteOrder {
	if binary.NativeEndian.Uint16([]byte{1, 0}) == 1 {
		return message.OrderLE
	}
	return message.OrderBE
}

// ByteOrder returns the binary.ByteOrder for the datatype.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
