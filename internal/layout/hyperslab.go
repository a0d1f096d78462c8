// Package layout moves strided hyperslab selections in and out of
// row-major element buffers.
//
// A [Selection] picks, per dimension, the indices offset, offset+stride,
// ... below offset+length. The number of elements selected in a dimension
// is ceil(length/stride).
package layout

import (
	"errors"
	"fmt"
)

var (
	ErrRank      = errors.New("selection rank does not match dataset rank")
	ErrBounds    = errors.New("selection out of bounds")
	ErrZeroSlice = errors.New("zero stride or length")
	ErrSize      = errors.New("buffer size does not match selection")
)

// Selection is a strided hyperslab.
type Selection struct {
	Offset []uint64
	Length []uint64
	Stride []uint64
}

// All selects every element of dims.
func All(dims []uint64) Selection {
	s := Selection{
		Offset: make([]uint64, len(dims)),
		Length: append([]uint64(nil), dims...),
		Stride: make([]uint64, len(dims)),
	}
	for i := range s.Stride {
		s.Stride[i] = 1
	}
	return s
}

// Count returns the number of selected elements per dimension.
func (s Selection) Count() []uint64 {
	count := make([]uint64, len(s.Length))
	for i, l := range s.Length {
		st := s.stride(i)
		count[i] = (l + st - 1) / st
	}
	return count
}

// NumElements returns the total number of selected elements.
func (s Selection) NumElements() uint64 {
	n := uint64(1)
	for _, c := range s.Count() {
		n *= c
	}
	return n
}

func (s Selection) stride(i int) uint64 {
	if i < len(s.Stride) && s.Stride[i] > 0 {
		return s.Stride[i]
	}
	return 1
}

// Validate checks the selection against the dataset dimensions.
func (s Selection) Validate(dims []uint64) error {
	if len(s.Offset) != len(dims) || len(s.Length) != len(dims) {
		return fmt.Errorf("%w: %d, want %d", ErrRank, len(s.Length), len(dims))
	}
	if len(s.Stride) != 0 && len(s.Stride) != len(dims) {
		return fmt.Errorf("%w: %d strides, want %d", ErrRank, len(s.Stride), len(dims))
	}
	for i := range dims {
		if s.Length[i] == 0 || (len(s.Stride) > 0 && s.Stride[i] == 0) {
			return fmt.Errorf("%w: dimension %d", ErrZeroSlice, i)
		}
		count := s.Count()[i]
		last := s.Offset[i] + (count-1)*s.stride(i)
		if last >= dims[i] {
			return fmt.Errorf("%w: dimension %d reaches %d of %d", ErrBounds, i, last, dims[i])
		}
	}
	return nil
}

func strides(dims []uint64, elemSize uint64) []uint64 {
	out := make([]uint64, len(dims))
	if len(dims) == 0 {
		return out
	}
	out[len(dims)-1] = elemSize
	for d := len(dims) - 2; d >= 0; d-- {
		out[d] = out[d+1] * dims[d+1]
	}
	return out
}

// Gather copies the selected elements of data, a row-major array of dims,
// into a new packed buffer.
func Gather(data []byte, dims []uint64, sel Selection, elemSize uint64) ([]byte, error) {
	if err := sel.Validate(dims); err != nil {
		return nil, err
	}
	total := elemSize
	for _, d := range dims {
		total *= d
	}
	if uint64(len(data)) != total {
		return nil, fmt.Errorf("%w: %d bytes, dims need %d", ErrSize, len(data), total)
	}
	out := make([]byte, sel.NumElements()*elemSize)
	walk(dims, sel, elemSize, func(src, dst uint64) {
		copy(out[dst:dst+elemSize], data[src:src+elemSize])
	})
	return out, nil
}

// Scatter writes the packed buffer src into the selected elements of dst,
// a row-major array of dims.
func Scatter(dst []byte, dims []uint64, sel Selection, elemSize uint64, src []byte) error {
	if err := sel.Validate(dims); err != nil {
		return err
	}
	if uint64(len(src)) != sel.NumElements()*elemSize {
		return fmt.Errorf("%w: %d bytes for %d elements", ErrSize, len(src), sel.NumElements())
	}
	walk(dims, sel, elemSize, func(d, s uint64) {
		copy(dst[d:d+elemSize], src[s:s+elemSize])
	})
	return nil
}

// walk visits every selected element in row-major order, passing its
// byte offset in the full array and in the packed selection.
func walk(dims []uint64, sel Selection, elemSize uint64, fn func(full, packed uint64)) {
	count := sel.Count()
	src := strides(dims, elemSize)
	dst := strides(count, elemSize)
	var rec func(dim int, srcOff, dstOff uint64)
	rec = func(dim int, srcOff, dstOff uint64) {
		for i := uint64(0); i < count[dim]; i++ {
			s := srcOff + (sel.Offset[dim]+i*sel.stride(dim))*src[dim]
			d := dstOff + i*dst[dim]
			if dim == len(dims)-1 {
				fn(s, d)
			} else {
				rec(dim+1, s, d)
			}
		}
	}
	if len(dims) > 0 {
		rec(0, 0, 0)
	}
}
