package codec

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Reader consumes fields from an encoded body in order.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Done fails if any bytes are left unread. A well-formed body is consumed exactly.
func (r *Reader) Done() error {
	if n := r.Remaining(); n != 0 {
		return malformed("%d trailing bytes", n)
	}
	return nil
}

func (r *Reader) take(field string, n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, truncated(field, n, r.Remaining())
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take("u8", 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, malformed("bool value %d", v)
}

func (r *Reader) Uint16() (uint16, error) {
	b, err := r.take("u16", 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take("u32", 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) Uint64() (uint64, error) {
	b, err := r.take("u64", 8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

func (r *Reader) Float64() (float64, error) {
	v, err := r.Uint64()
	return math.Float64frombits(v), err
}

func (r *Reader) String() (string, error) {
	n, err := r.Uint16()
	if err != nil {
		return "", err
	}
	b, err := r.take("string", int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", malformed("string is not valid UTF-8")
	}
	return string(b), nil
}

// Blob reads a u32 length-prefixed byte slice. The result is a copy.
func (r *Reader) Blob() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if n > MaxBodySize {
		return nil, malformed("blob length %d exceeds body limit", n)
	}
	b, err := r.take("blob", int(n))
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Count reads a list element count. minSize is the smallest encoded size of one element.
// A count that could never fit in a body is malformed; one that merely overruns the
// bytes at hand is truncated. Either way the caller never allocates for a hostile count.
func (r *Reader) Count(minSize int) (int, error) {
	n, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	if minSize < 1 {
		minSize = 1
	}
	need := uint64(n) * uint64(minSize)
	if need > MaxBodySize {
		return 0, malformed("list count %d exceeds body limit", n)
	}
	if need > uint64(r.Remaining()) {
		return 0, truncated("list", int(need), r.Remaining())
	}
	return int(n), nil
}

func (r *Reader) Strings() ([]string, error) {
	n, err := r.Count(2)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := r.String()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
