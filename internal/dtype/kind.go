package dtype

import (
	"errors"
	"fmt"
)

// ErrBadKind is returned for unsupported kinds or Go slice types.
var ErrBadKind = errors.New("unsupported datatype")

// Kind is an atomic datatype of the object model. The numeric values are
// persisted in object headers and must not change.
type Kind int32

const (
	NoType Kind = 0
	Int    Kind = 16
	Short  Kind = 17
	Long   Kind = 18
	Float  Kind = 19
	Double Kind = 20
	Char   Kind = 21
)

var kindNames = map[Kind]string{
	Char:   "char",
	Short:  "short",
	Int:    "int",
	Long:   "long",
	Float:  "float",
	Double: "double",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int32(k))
}

// Valid reports whether k is one of the six atomic kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// IsFloat reports whether k is Float or Double.
func (k Kind) IsFloat() bool {
	return k == Float || k == Double
}

// GoSize returns the width of one element of the kind's Go slice type.
func (k Kind) GoSize() int {
	switch k {
	case Char:
		return 1
	case Short:
		return 2
	case Int, Float:
		return 4
	case Long, Double:
		return 8
	}
	return 0
}

// KindOf returns the kind and length of a supported Go slice.
func KindOf(data any) (Kind, int, error) {
	switch v := data.(type) {
	case []byte:
		return Char, len(v), nil
	case []int8:
		return Char, len(v), nil
	case []int16:
		return Short, len(v), nil
	case []int32:
		return Int, len(v), nil
	case []int64:
		return Long, len(v), nil
	case []int:
		return Long, len(v), nil
	case []float32:
		return Float, len(v), nil
	case []float64:
		return Double, len(v), nil
	case nil:
		return NoType, 0, nil
	}
	return NoType, 0, fmt.Errorf("%w: Go type %T", ErrBadKind, data)
}

// MakeSlice allocates the natural Go slice for n elements of kind k.
func MakeSlice(k Kind, n int) (any, error) {
	switch k {
	case Char:
		return make([]byte, n), nil
	case Short:
		return make([]int16, n), nil
	case Int:
		return make([]int32, n), nil
	case Long:
		return make([]int64, n), nil
	case Float:
		return make([]float32, n), nil
	case Double:
		return make([]float64, n), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrBadKind, k)
}
