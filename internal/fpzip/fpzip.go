// Package fpzip compresses regular arrays of floating-point values of up to
// three dimensions.
//
// Values are mapped to integers that sort like the floats they encode,
// optionally truncated to a number of kept bits, and predicted with the
// Lorenzo predictor from their already-coded neighbors. Residuals are
// zigzagged, packed as varints and deflated.
package fpzip

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/flate"
)

var (
	ErrRank    = errors.New("fpzip supports at most 3 dimensions")
	ErrType    = errors.New("fpzip supports float32 and float64 only")
	ErrPrec    = errors.New("invalid precision")
	ErrNoFit   = errors.New("compressed array does not fit bound")
	ErrCorrupt = errors.New("corrupt fpzip stream")
)

const (
	magic0, magic1 = 'F', 'P'
	version        = 1
	headerSize     = 20
)

// Options configure Encode.
type Options struct {
	// Precision is the number of leading bits kept per value, sign and
	// exponent included; 0 keeps all bits.
	Precision int
	// Bound caps the stream size in bytes; 0 means unbounded.
	Bound int
}

// Encode compresses values laid out with dims (first dimension fastest).
func Encode(values any, dims []int, opts Options) ([]byte, error) {
	if len(dims) == 0 || len(dims) > 3 {
		return nil, fmt.Errorf("%w: rank %d", ErrRank, len(dims))
	}
	nx, ny, nz := extents(dims)
	n := nx * ny * nz

	var (
		elem   int
		mapped []uint64
	)
	switch v := values.(type) {
	case []float32:
		elem = 4
		if len(v) != n {
			return nil, fmt.Errorf("fpzip: %d values for dims %v", len(v), dims)
		}
		mask, err := keepMask(32, opts.Precision)
		if err != nil {
			return nil, err
		}
		mapped = make([]uint64, n)
		for i, f := range v {
			mapped[i] = uint64(map32(math.Float32bits(f) & uint32(mask)))
		}
	case []float64:
		elem = 8
		if len(v) != n {
			return nil, fmt.Errorf("fpzip: %d values for dims %v", len(v), dims)
		}
		mask, err := keepMask(64, opts.Precision)
		if err != nil {
			return nil, err
		}
		mapped = make([]uint64, n)
		for i, f := range v {
			mapped[i] = map64(math.Float64bits(f) & mask)
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrType, values)
	}

	packed := make([]byte, 0, n)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				p := lorenzo(mapped, nx, ny, i, j, k)
				r := int64(mapped[i+nx*(j+ny*k)] - p)
				packed = binary.AppendUvarint(packed, uint64((r<<1)^(r>>63)))
			}
		}
	}

	var buf bytes.Buffer
	hdr := make([]byte, headerSize)
	hdr[0], hdr[1], hdr[2] = magic0, magic1, version
	hdr[3] = byte(elem)
	hdr[4] = byte(len(dims))
	hdr[5] = byte(opts.Precision)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(nx))
	binary.LittleEndian.PutUint32(hdr[12:], uint32(ny))
	binary.LittleEndian.PutUint32(hdr[16:], uint32(nz))
	buf.Write(hdr)

	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(packed); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	if opts.Bound > 0 && buf.Len() > opts.Bound {
		return nil, fmt.Errorf("%w: %d bytes, bound %d", ErrNoFit, buf.Len(), opts.Bound)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode, returning []float32 or []float64 and the dims.
func Decode(data []byte) (any, []int, error) {
	if len(data) < headerSize || data[0] != magic0 || data[1] != magic1 || data[2] != version {
		return nil, nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	elem, rank := int(data[3]), int(data[4])
	if (elem != 4 && elem != 8) || rank < 1 || rank > 3 {
		return nil, nil, fmt.Errorf("%w: element %d rank %d", ErrCorrupt, elem, rank)
	}
	nx := int(binary.LittleEndian.Uint32(data[8:]))
	ny := int(binary.LittleEndian.Uint32(data[12:]))
	nz := int(binary.LittleEndian.Uint32(data[16:]))
	dims := []int{nx, ny, nz}[:rank]
	n := nx * ny * nz

	r := flate.NewReader(bytes.NewReader(data[headerSize:]))
	packed, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	mapped := make([]uint64, n)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				u, m := binary.Uvarint(packed)
				if m <= 0 {
					return nil, nil, fmt.Errorf("%w: truncated residuals", ErrCorrupt)
				}
				packed = packed[m:]
				res := int64(u>>1) ^ -int64(u&1)
				mapped[i+nx*(j+ny*k)] = lorenzo(mapped, nx, ny, i, j, k) + uint64(res)
			}
		}
	}

	if elem == 4 {
		out := make([]float32, n)
		for i, m := range mapped {
			out[i] = math.Float32frombits(unmap32(uint32(m)))
		}
		return out, dims, nil
	}
	out := make([]float64, n)
	for i, m := range mapped {
		out[i] = math.Float64frombits(unmap64(m))
	}
	return out, dims, nil
}

func extents(dims []int) (nx, ny, nz int) {
	e := [3]int{1, 1, 1}
	copy(e[:], dims)
	return e[0], e[1], e[2]
}

func keepMask(width, prec int) (uint64, error) {
	if prec == 0 || prec == width {
		return math.MaxUint64, nil
	}
	// sign and exponent always survive
	minPrec := 9
	if width == 64 {
		minPrec = 12
	}
	if prec < minPrec || prec > width {
		return 0, fmt.Errorf("%w: %d bits of %d", ErrPrec, prec, width)
	}
	return ^uint64(0) << uint(width-prec), nil
}

// lorenzo predicts the value at (i,j,k) from the corner of the unit cube
// behind it; out-of-range neighbors count as zero.
func lorenzo(f []uint64, nx, ny, i, j, k int) uint64 {
	at := func(di, dj, dk int) uint64 {
		x, y, z := i-di, j-dj, k-dk
		if x < 0 || y < 0 || z < 0 {
			return 0
		}
		return f[x+nx*(y+ny*z)]
	}
	return at(1, 0, 0) + at(0, 1, 0) + at(0, 0, 1) -
		at(1, 1, 0) - at(1, 0, 1) - at(0, 1, 1) +
		at(1, 1, 1)
}

func map32(b uint32) uint32 {
	if b&(1<<31) != 0 {
		return ^b
	}
	return b | 1<<31
}

func unmap32(m uint32) uint32 {
	if m&(1<<31) != 0 {
		return m &^ (1 << 31)
	}
	return ^m
}

func map64(b uint64) uint64 {
	if b&(1<<63) != 0 {
		return ^b
	}
	return b | 1<<63
}

func unmap64(m uint64) uint64 {
	if m&(1<<63) != 0 {
		return m &^ (1 << 63)
	}
	return ^m
}
