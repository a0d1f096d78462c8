package dtype

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/go-silo/internal/message"
)

type number interface {
	~int8 | ~uint8 | ~int16 | ~int32 | ~int64 | ~int | ~float32 | ~float64
}

func convert[D, S number](src []S) []D {
	out := make([]D, len(src))
	for i, v := range src {
		out[i] = D(v)
	}
	return out
}

func castTo[S number](src []S, k Kind) (any, error) {
	switch k {
	case Char:
		return convert[byte](src), nil
	case Short:
		return convert[int16](src), nil
	case Int:
		return convert[int32](src), nil
	case Long:
		return convert[int64](src), nil
	case Float:
		return convert[float32](src), nil
	case Double:
		return convert[float64](src), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrBadKind, k)
}

// ConvertSlice converts a supported Go slice element by element into the
// natural slice of kind k. A slice already of that kind is returned as is.
func ConvertSlice(src any, k Kind) (any, error) {
	switch v := src.(type) {
	case []byte:
		if k == Char {
			return v, nil
		}
		return castTo(v, k)
	case []int8:
		return castTo(v, k)
	case []int16:
		if k == Short {
			return v, nil
		}
		return castTo(v, k)
	case []int32:
		if k == Int {
			return v, nil
		}
		return castTo(v, k)
	case []int64:
		if k == Long {
			return v, nil
		}
		return castTo(v, k)
	case []int:
		return castTo(v, k)
	case []float32:
		if k == Float {
			return v, nil
		}
		return castTo(v, k)
	case []float64:
		if k == Double {
			return v, nil
		}
		return castTo(v, k)
	}
	return nil, fmt.Errorf("%w: Go type %T", ErrBadKind, src)
}

// AsFloat64s widens any supported slice to float64.
func AsFloat64s(src any) ([]float64, error) {
	out, err := ConvertSlice(src, Double)
	if err != nil {
		return nil, err
	}
	return out.([]float64), nil
}

// AsInt64s widens any supported slice to int64. Floats are truncated.
func AsInt64s(src any) ([]int64, error) {
	out, err := ConvertSlice(src, Long)
	if err != nil {
		return nil, err
	}
	return out.([]int64), nil
}

// Downcast converts a double slice to float, element by element.
func Downcast(src []float64) []float32 {
	return convert[float32](src)
}

// Encode serializes a Go slice into the byte layout of the atomic file
// type ft. Values are converted to ft's class and width first.
func Encode(data any, ft *message.Datatype) ([]byte, error) {
	if ft == nil {
		return nil, fmt.Errorf("%w: nil datatype", ErrBadKind)
	}
	size := int(ft.Size)
	order := ByteOrder(ft)

	switch ft.Class {
	case message.ClassFloatPoint:
		vals, err := AsFloat64s(data)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(vals)*size)
		for i, v := range vals {
			switch size {
			case 4:
				order.PutUint32(out[i*4:], math.Float32bits(float32(v)))
			case 8:
				order.PutUint64(out[i*8:], math.Float64bits(v))
			default:
				return nil, fmt.Errorf("%w: float width %d", ErrBadKind, size)
			}
		}
		return out, nil

	case message.ClassFixedPoint:
		vals, err := AsInt64s(data)
		if err != nil {
			return nil, err
		}
		if size < 1 || size > 8 {
			return nil, fmt.Errorf("%w: integer width %d", ErrBadKind, size)
		}
		out := make([]byte, len(vals)*size)
		for i, v := range vals {
			putInt(out[i*size:(i+1)*size], uint64(v), ft.ByteOrder)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: class %d", ErrBadKind, ft.Class)
}

// Decode converts raw file bytes of atomic type ft into the natural Go
// slice of kind k.
func Decode(ft *message.Datatype, raw []byte, k Kind) (any, error) {
	if ft == nil || ft.Size == 0 {
		return nil, fmt.Errorf("%w: nil datatype", ErrBadKind)
	}
	size := int(ft.Size)
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrBadKind, len(raw), size)
	}
	n := len(raw) / size
	order := ByteOrder(ft)

	switch ft.Class {
	case message.ClassFloatPoint:
		vals := make([]float64, n)
		for i := range vals {
			switch size {
			case 4:
				vals[i] = float64(math.Float32frombits(order.Uint32(raw[i*4:])))
			case 8:
				vals[i] = math.Float64frombits(order.Uint64(raw[i*8:]))
			default:
				return nil, fmt.Errorf("%w: float width %d", ErrBadKind, size)
			}
		}
		if k == Float {
			return Downcast(vals), nil
		}
		return castTo(vals, k)

	case message.ClassFixedPoint:
		if size > 8 {
			return nil, fmt.Errorf("%w: integer width %d", ErrBadKind, size)
		}
		vals := make([]int64, n)
		for i := range vals {
			vals[i] = getInt(raw[i*size:(i+1)*size], ft.ByteOrder, ft.Signed)
		}
		return castTo(vals, k)
	}
	return nil, fmt.Errorf("%w: class %d", ErrBadKind, ft.Class)
}

func putInt(dst []byte, v uint64, order message.ByteOrder) {
	n := len(dst)
	for i := 0; i < n; i++ {
		b := byte(v >> (8 * i))
		if order == message.OrderBE {
			dst[n-1-i] = b
		} else {
			dst[i] = b
		}
	}
}

func getInt(src []byte, order message.ByteOrder, signed bool) int64 {
	n := len(src)
	var v uint64
	for i := 0; i < n; i++ {
		b := src[i]
		if order == message.OrderBE {
			b = src[n-1-i]
		}
		v |= uint64(b) << (8 * i)
	}
	if signed && n < 8 && v&(1<<(8*n-1)) != 0 {
		v |= ^uint64(0) << (8 * n)
	}
	return int64(v)
}
