package hzip

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the entropy stage applied to packed residuals.
type Codec uint8

const (
	CodecDeflate Codec = iota
	CodecZstd
	CodecLZ4
	CodecSnappy
	CodecNone
)

var codecNames = []string{"DEFLATE", "ZSTD", "LZ4", "SNAPPY", "NONE"}

func (c Codec) String() string {
	if int(c) < len(codecNames) {
		return codecNames[c]
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

// ParseCodec parses a codec name, case-insensitively.
func ParseCodec(s string) (Codec, error) {
	for i, n := range codecNames {
		if strings.EqualFold(s, n) {
			return Codec(i), nil
		}
	}
	return 0, fmt.Errorf("%w: codec %q", ErrOption, s)
}

func compress(c Codec, src []byte) ([]byte, error) {
	switch c {
	case CodecDeflate:
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(src, nil), nil

	case CodecLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(src)))
		n, err := lz4.CompressBlock(src, dst, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: lz4 found nothing to compress", ErrNoFit)
		}
		return dst[:n], nil

	case CodecSnappy:
		return snappy.Encode(nil, src), nil

	case CodecNone:
		return append([]byte(nil), src...), nil
	}
	return nil, fmt.Errorf("%w: codec %d", ErrOption, c)
}

func decompress(c Codec, src []byte, rawLen int) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch c {
	case CodecDeflate:
		var r io.ReadCloser
		if r, err = zlib.NewReader(bytes.NewReader(src)); err != nil {
			break
		}
		out, err = io.ReadAll(r)
		r.Close()

	case CodecZstd:
		var dec *zstd.Decoder
		if dec, err = zstd.NewReader(nil); err != nil {
			break
		}
		out, err = dec.DecodeAll(src, make([]byte, 0, rawLen))
		dec.Close()

	case CodecLZ4:
		out = make([]byte, rawLen)
		var n int
		n, err = lz4.UncompressBlock(src, out)
		out = out[:n]

	case CodecSnappy:
		out, err = snappy.Decode(nil, src)

	case CodecNone:
		out = append([]byte(nil), src...)

	default:
		return nil, fmt.Errorf("%w: codec %d", ErrCorrupt, c)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, c, err)
	}
	if len(out) != rawLen {
		return nil, fmt.Errorf("%w: %s produced %d bytes, want %d", ErrCorrupt, c, len(out), rawLen)
	}
	return out, nil
}
