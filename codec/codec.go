// Package codec provides the primitive wire encodings used by every message body.
//
// All numbers are fixed-width big-endian. Text is a u16 byte length followed by UTF-8;
// lists are a u32 element count followed by the elements; blobs are a u32 byte length
// followed by the bytes.
//
// Decoding separates two failure classes so that buffering callers can tell them apart:
// ErrTruncated means the input ended early and more bytes might complete it, ErrMalformed
// means no amount of extra input can make it valid.
package codec

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated = errors.New("codec: truncated input")
	ErrMalformed = errors.New("codec: malformed input")

	ErrFieldTooLong = errors.New("codec: text field too long")
)

const (
	// MaxStringLen is the longest text field a body may carry.
	MaxStringLen = 1<<16 - 1
	// MaxBodySize bounds any single body: a 64 KiB frame minus its 16-byte header.
	MaxBodySize = 1<<16 - 16
)

func truncated(field string, need, have int) error {
	return fmt.Errorf("%w: %s needs %d bytes, %d left", ErrTruncated, field, need, have)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
