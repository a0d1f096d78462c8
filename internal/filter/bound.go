package filter

import "fmt"

// Bounded wraps a compressing filter so Encode fails with
// ErrCannotCompress unless the output is at most len(input)/minRatio
// bytes. A minRatio of 1 or less disables the bound.
func Bounded(f Filter, minRatio float64) Filter {
	if minRatio <= 1 {
		return f
	}
	return &bounded{Filter: f, minRatio: minRatio}
}

type bounded struct {
	Filter
	minRatio float64
}

// Limit returns the output bound for n input bytes.
func Limit(n int, minRatio float64) int {
	if minRatio <= 1 {
		return n
	}
	return int(float64(n) / minRatio)
}

func (b *bounded) Encode(input []byte) ([]byte, error) {
	out, err := b.Filter.Encode(input)
	if err != nil {
		return nil, err
	}
	if limit := Limit(len(input), b.minRatio); len(out) > limit {
		return nil, fmt.Errorf("%w: %d bytes to %d, limit %d", ErrCannotCompress, len(input), len(out), limit)
	}
	return out, nil
}
