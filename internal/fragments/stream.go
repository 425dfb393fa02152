// Package fragments decodes per-element spatial placement out of a packed
// geometry-fragment stream. Only the translation and bounding box survive
// decoding; geometry payloads are skipped, not interpreted.
package fragments

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrTruncated is returned when the buffer ends inside a field.
	ErrTruncated = errors.New("truncated pack buffer")

	// ErrVarintOverflow is returned for a variable-length integer wider
	// than 64 bits.
	ErrVarintOverflow = errors.New("varint overflows 64 bits")
)

// reader is a little-endian cursor over a pack buffer. The error is sticky:
// after the first failure every read returns a zero value and the error is
// reported once at the end of the record.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) seek(off int) {
	if r.err != nil {
		return
	}
	if off < 0 || off > len(r.buf) {
		r.fail(ErrTruncated)
		return
	}
	r.off = off
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.fail(ErrTruncated)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) uint8() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) int32() int32 {
	return int32(r.uint32())
}

func (r *reader) float32() float32 {
	return math.Float32frombits(r.uint32())
}

func (r *reader) float64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// varint reads a LEB128 variable-length unsigned integer, 7 bits per byte,
// least significant group first.
func (r *reader) varint() uint64 {
	var (
		v     uint64
		shift uint
	)
	for {
		b := r.take(1)
		if b == nil {
			return 0
		}
		if shift >= 64 {
			r.fail(ErrVarintOverflow)
			return 0
		}
		v |= uint64(b[0]&0x7f) << shift
		if b[0]&0x80 == 0 {
			return v
		}
		shift += 7
	}
}

// str reads n raw bytes as a string.
func (r *reader) str(n int) string {
	b := r.take(n)
	if b == nil {
		return ""
	}
	return string(b)
}
