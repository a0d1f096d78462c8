// Package binary encodes the small records the container stores: fixed
// width integers, NUL terminated names and length prefixed blobs.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortRead is returned when a record ends before a field does.
var ErrShortRead = errors.New("unexpected end of record")

// Config is the byte order of integers and the width of blob lengths.
type Config struct {
	ByteOrder  binary.ByteOrder
	LengthSize int
}

// DefaultConfig is little-endian with 8-byte lengths. Container metadata
// always uses it; only numeric payloads follow the file's profile.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, LengthSize: 8}
}

// Buffer collects an encoded record.
type Buffer struct {
	data []byte
}

func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) Len() int { return len(b.data) }

// Writer appends fields to a Buffer.
type Writer struct {
	buf *Buffer
	cfg Config
}

// NewBufferWriter returns a writer and the buffer it fills.
func NewBufferWriter(cfg Config) (*Writer, *Buffer) {
	buf := &Buffer{}
	return &Writer{buf: buf, cfg: cfg}, buf
}

func (w *Writer) WriteBytes(p []byte) error {
	w.buf.data = append(w.buf.data, p...)
	return nil
}

func (w *Writer) WriteUint8(v uint8) error {
	w.buf.data = append(w.buf.data, v)
	return nil
}

func (w *Writer) WriteUint16(v uint16) error { return w.WriteUintN(uint64(v), 2) }

func (w *Writer) WriteUint32(v uint32) error { return w.WriteUintN(uint64(v), 4) }

func (w *Writer) WriteUint64(v uint64) error { return w.WriteUintN(v, 8) }

// WriteUintN writes the low n bytes of v, 1 <= n <= 8.
func (w *Writer) WriteUintN(v uint64, n int) error {
	if n < 1 || n > 8 {
		return fmt.Errorf("binary: %d byte integer", n)
	}
	var tmp [8]byte
	w.cfg.ByteOrder.PutUint64(tmp[:], v)
	if w.cfg.ByteOrder == binary.BigEndian {
		return w.WriteBytes(tmp[8-n:])
	}
	return w.WriteBytes(tmp[:n])
}

// WriteString writes s and a NUL.
func (w *Writer) WriteString(s string) error {
	w.buf.data = append(append(w.buf.data, s...), 0)
	return nil
}

// WriteBlob writes the length of p, then p.
func (w *Writer) WriteBlob(p []byte) error {
	if err := w.WriteUintN(uint64(len(p)), w.cfg.LengthSize); err != nil {
		return err
	}
	return w.WriteBytes(p)
}

// Reader consumes fields from an encoded record.
type Reader struct {
	data []byte
	off  int
	cfg  Config
}

func NewBytesReader(data []byte, cfg Config) *Reader {
	return &Reader{data: data, cfg: cfg}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// Skip discards n bytes. A skip past the end surfaces on the next read.
func (r *Reader) Skip(n int) { r.off += n }

// ReadBytes returns the next n bytes. The result aliases the record.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.data) {
		return nil, ErrShortRead
	}
	p := r.data[r.off : r.off+n]
	r.off += n
	return p, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadUintN(1)
	return uint8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUintN(2)
	return uint16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUintN(4)
	return uint32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	return r.ReadUintN(8)
}

// ReadUintN reads an n byte unsigned integer, 1 <= n <= 8.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	if n < 1 || n > 8 {
		return 0, fmt.Errorf("binary: %d byte integer", n)
	}
	p, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	var tmp [8]byte
	if r.cfg.ByteOrder == binary.BigEndian {
		copy(tmp[8-n:], p)
	} else {
		copy(tmp[:], p)
	}
	return r.cfg.ByteOrder.Uint64(tmp[:]), nil
}

// ReadString reads up to and past the next NUL.
func (r *Reader) ReadString() (string, error) {
	for i := r.off; i < len(r.data); i++ {
		if r.data[i] == 0 {
			s := string(r.data[r.off:i])
			r.off = i + 1
			return s, nil
		}
	}
	return "", ErrShortRead
}

// ReadBlob reads a length prefixed byte string into a fresh slice.
func (r *Reader) ReadBlob() ([]byte, error) {
	n, err := r.ReadUintN(r.cfg.LengthSize)
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Remaining()) {
		return nil, ErrShortRead
	}
	p, _ := r.ReadBytes(int(n))
	return append([]byte{}, p...), nil
}
