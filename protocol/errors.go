package protocol

import "errors"

var (
	ErrShortHeader        = errors.New("protocol: short header")
	ErrBadMagic           = errors.New("protocol: invalid magic")
	ErrBadReserved        = errors.New("protocol: reserved field not zero")
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")
	ErrLengthMismatch     = errors.New("protocol: body length mismatch")
	ErrChecksum           = errors.New("protocol: checksum mismatch")
	ErrFrameTooLarge      = errors.New("protocol: frame too large")
	ErrBodyTooLarge       = errors.New("protocol: body exceeds length field")
)

// IsCorruption reports whether err means the bytes on the wire were damaged.
// Such frames are dropped silently and never answered.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrShortHeader) ||
		errors.Is(err, ErrBadMagic) ||
		errors.Is(err, ErrBadReserved) ||
		errors.Is(err, ErrLengthMismatch) ||
		errors.Is(err, ErrChecksum) ||
		errors.Is(err, ErrFrameTooLarge)
}

// IsFatal reports whether err leaves the stream unaligned, so that no further frame
// boundary can be trusted and the connection must be closed.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBadMagic) ||
		errors.Is(err, ErrBadReserved) ||
		errors.Is(err, ErrFrameTooLarge) ||
		errors.Is(err, ErrLengthMismatch)
}
