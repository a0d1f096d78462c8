package binary

import (
	"github.com/cespare/xxhash/v2"
)

// RecordSum seals a stored metadata record: the low 32 bits of its xxhash64.
func RecordSum(data []byte) uint32 {
	return uint32(xxhash.Sum64(data))
}

// fletcherBlock is how many 16-bit words are summed before reducing. The
// 64-bit sums cannot overflow within a block.
const fletcherBlock = 4096

// Fletcher32 is the checksum the fletcher32 filter appends to a chunk.
// Words are little-endian; a trailing odd byte is zero padded.
func Fletcher32(data []byte) uint32 {
	var lo, hi uint64
	for len(data) > 1 {
		n := len(data) / 2
		if n > fletcherBlock {
			n = fletcherBlock
		}
		for _, w := range words(data[:2*n]) {
			lo += uint64(w)
			hi += lo
		}
		lo %= 65535
		hi %= 65535
		data = data[2*n:]
	}
	if len(data) == 1 {
		lo = (lo + uint64(data[0])) % 65535
		hi = (hi + lo) % 65535
	}
	return uint32(hi)<<16 | uint32(lo)
}

func words(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return out
}
