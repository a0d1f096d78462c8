package hzip

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrTopology = errors.New("unsupported mesh topology")
	ErrOption   = errors.New("invalid codec option")
	ErrNoFit    = errors.New("compressed stream does not fit bound")
	ErrCorrupt  = errors.New("corrupt hzip stream")
	ErrMismatch = errors.New("nodelist does not match stream")
)

const (
	magic0, magic1 = 'H', 'Z'
	version        = 1
	headerSize     = 25

	kindMesh  = 1
	kindField = 2
)

// Options configure the residual packing and entropy stages.
type Options struct {
	Codec Codec
	// Bits is the fixed residual width (8, 16 or 32); 0 packs varints.
	Bits int
	// Bound caps the stream size in bytes; 0 means unbounded.
	Bound int
}

func (o Options) validate() error {
	switch o.Bits {
	case 0, 8, 16, 32:
	default:
		return fmt.Errorf("%w: bits %d", ErrOption, o.Bits)
	}
	if o.Codec > CodecNone {
		return fmt.Errorf("%w: codec %d", ErrOption, o.Codec)
	}
	return nil
}

type header struct {
	kind   uint8
	topo   uint8
	codec  Codec
	bits   uint8
	loss   uint8
	elem   uint8
	cells  uint32
	nnodes uint32
	origin int32
	rawLen uint32
}

// stream is a parsed hzip stream opened with one permutation.
type stream struct {
	hdr  header
	top  Topology
	body []byte
}

func (h header) encode(payload []byte) []byte {
	out := make([]byte, headerSize+len(payload))
	out[0], out[1], out[2] = magic0, magic1, version
	out[3], out[4], out[5], out[6], out[7], out[8] = h.kind, h.topo, uint8(h.codec), h.bits, h.loss, h.elem
	binary.LittleEndian.PutUint32(out[9:], h.cells)
	binary.LittleEndian.PutUint32(out[13:], h.nnodes)
	binary.LittleEndian.PutUint32(out[17:], uint32(h.origin))
	binary.LittleEndian.PutUint32(out[21:], h.rawLen)
	copy(out[headerSize:], payload)
	return out
}

// openStream parses the header. With a non-neutral topology the header
// must name that topology.
func openStream(data []byte, top Topology) (*stream, error) {
	if len(data) < headerSize || data[0] != magic0 || data[1] != magic1 {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if data[2] != version {
		return nil, fmt.Errorf("%w: version %d", ErrCorrupt, data[2])
	}
	h := header{
		kind:   data[3],
		topo:   data[4],
		codec:  Codec(data[5]),
		bits:   data[6],
		loss:   data[7],
		elem:   data[8],
		cells:  binary.LittleEndian.Uint32(data[9:]),
		nnodes: binary.LittleEndian.Uint32(data[13:]),
		origin: int32(binary.LittleEndian.Uint32(data[17:])),
		rawLen: binary.LittleEndian.Uint32(data[21:]),
	}
	if top.ID != neutral.ID && top.ID != h.topo {
		return nil, fmt.Errorf("%w: stream topology %d opened as %d", ErrCorrupt, h.topo, top.ID)
	}
	return &stream{hdr: h, top: top, body: data[headerSize:]}, nil
}

// reopen reads the header with the neutral permutation and reopens the
// stream with the permutation of the topology it names.
func reopen(data []byte, kind uint8) (*stream, error) {
	s, err := openStream(data, neutral)
	if err != nil {
		return nil, err
	}
	if s.hdr.kind != kind {
		return nil, fmt.Errorf("%w: stream kind %d, want %d", ErrCorrupt, s.hdr.kind, kind)
	}
	top, err := topologyByID(s.hdr.topo)
	if err != nil {
		return nil, err
	}
	return openStream(data, top)
}

func (s *stream) residuals(n int) ([]uint64, error) {
	raw, err := decompress(s.hdr.codec, s.body, int(s.hdr.rawLen))
	if err != nil {
		return nil, err
	}
	return unpack(raw, n, int(s.hdr.bits))
}

func finish(h header, res []uint64, opts Options) ([]byte, error) {
	packed, err := pack(res, opts.Bits)
	if err != nil {
		return nil, err
	}
	body, err := compress(opts.Codec, packed)
	if err != nil {
		return nil, err
	}
	h.codec = opts.Codec
	h.bits = uint8(opts.Bits)
	h.rawLen = uint32(len(packed))
	out := h.encode(body)
	if opts.Bound > 0 && len(out) > opts.Bound {
		return nil, fmt.Errorf("%w: %d bytes, bound %d", ErrNoFit, len(out), opts.Bound)
	}
	return out, nil
}

func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

func pack(res []uint64, bits int) ([]byte, error) {
	if bits == 0 {
		out := make([]byte, 0, len(res))
		for _, r := range res {
			out = binary.AppendUvarint(out, r)
		}
		return out, nil
	}
	width := bits / 8
	limit := uint64(1)<<uint(bits) - 1
	out := make([]byte, len(res)*width)
	for i, r := range res {
		if r > limit {
			return nil, fmt.Errorf("%w: residual %d exceeds %d bits", ErrNoFit, r, bits)
		}
		for b := 0; b < width; b++ {
			out[i*width+b] = byte(r >> (8 * b))
		}
	}
	return out, nil
}

func unpack(data []byte, n, bits int) ([]uint64, error) {
	out := make([]uint64, n)
	if bits == 0 {
		for i := range out {
			v, k := binary.Uvarint(data)
			if k <= 0 {
				return nil, fmt.Errorf("%w: truncated varint at residual %d", ErrCorrupt, i)
			}
			out[i] = v
			data = data[k:]
		}
		return out, nil
	}
	width := bits / 8
	if len(data) != n*width {
		return nil, fmt.Errorf("%w: %d residual bytes for %d values", ErrCorrupt, len(data), n)
	}
	for i := range out {
		var v uint64
		for b := 0; b < width; b++ {
			v |= uint64(data[i*width+b]) << (8 * b)
		}
		out[i] = v
	}
	return out, nil
}
