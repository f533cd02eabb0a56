package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Writer appends encoded fields to a growing buffer. The first field that cannot be
// represented (text over MaxStringLen bytes, or not UTF-8) is remembered and reported by Err; later
// writes still append so callers can check once at the end.
type Writer struct {
	buf []byte
	err error
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded buffer. It aliases the Writer's storage.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Err returns the first encoding error, if any.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) Uint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) Bool(v bool) {
	if v {
		w.Uint8(1)
		return
	}
	w.Uint8(0)
}

func (w *Writer) Uint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *Writer) Uint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *Writer) Uint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *Writer) Int32(v int32) {
	w.Uint32(uint32(v))
}

func (w *Writer) Float64(v float64) {
	w.Uint64(math.Float64bits(v))
}

func (w *Writer) String(s string) {
	if !utf8.ValidString(s) {
		w.fail(fmt.Errorf("%w: string is not valid UTF-8", ErrMalformed))
	}
	if len(s) > MaxStringLen {
		w.fail(fmt.Errorf("%w: %d bytes", ErrFieldTooLong, len(s)))
		// cut on a rune boundary so the prefix stays valid text
		n := MaxStringLen
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}
	w.Uint16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Blob writes a u32 length followed by b.
func (w *Writer) Blob(b []byte) {
	w.Uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Count writes a list element count.
func (w *Writer) Count(n int) {
	w.Uint32(uint32(n))
}

// Strings writes a counted list; nil and empty lists encode the same.
func (w *Writer) Strings(ss []string) {
	w.Count(len(ss))
	for _, s := range ss {
		w.String(s)
	}
}
