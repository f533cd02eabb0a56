// Package protocol implements the binary frame protocol spoken between the shop client and server.
//
// A TCP stream has no message boundaries, so every frame starts with a fixed 16-byte header
// whose last field tells the receiver exactly how many body bytes follow. The body is the
// encoded message payload followed by a 2-byte checksum trailer.
//
// Frame format (big-endian):
//
//	0       2       4       6       8           12          16
//	┌───────┬───────┬───────┬───────┬───────────┬───────────┬──────────────────────┐
//	│ magic │  ver  │ type  │ rsvd  │    seq    │  bodyLen  │ payload ... │ crc16  │
//	│ DEA1  │ 0001  │ u16   │   0   │   u32     │   u32     │             │  u16   │
//	└───────┴───────┴───────┴───────┴───────────┴───────────┴──────────────────────┘
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	Magic        uint16 = 0xDEA1
	Version      uint16 = 0x0001
	HeaderSize          = 16
	ChecksumSize        = 2
	MaxFrameSize        = 65536
	MaxBodySize         = MaxFrameSize - HeaderSize
)

// Header is the fixed 16-byte frame header.
type Header struct {
	Magic    uint16      // Always 0xDEA1; anything else means we lost frame sync
	Version  uint16      // Frames of another version are skipped, not fatal
	Type     MessageType // Selects the body layout in package message
	Reserved uint16      // Must be zero
	Seq      uint32 // Correlation key: a response carries the seq of its request
	BodyLen  uint32 // Exact number of body bytes after the header, checksum trailer included
}

// Frame is one decoded header plus its verified payload (checksum trailer stripped).
type Frame struct {
	Header
	Payload []byte
}

// EncodeHeader writes h into a fresh 16-byte slice.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	putHeader(buf, h)
	return buf
}

func putHeader(buf []byte, h Header) {
	// Magic and version: 2 bytes each, big-endian (network byte order)
	binary.BigEndian.PutUint16(buf[0:2], h.Magic)
	binary.BigEndian.PutUint16(buf[2:4], h.Version)
	// Message type and reserved word: 2 bytes each
	binary.BigEndian.PutUint16(buf[4:6], uint16(h.Type))
	binary.BigEndian.PutUint16(buf[6:8], h.Reserved)
	// Sequence number and body length: 4 bytes each
	binary.BigEndian.PutUint32(buf[8:12], h.Seq)
	binary.BigEndian.PutUint32(buf[12:16], h.BodyLen)
}

// EncodeFrame builds a complete frame: header, payload and checksum trailer.
// It fails only when the body would not fit the 32-bit length field.
func EncodeFrame(t MessageType, seq uint32, payload []byte) ([]byte, error) {
	bodyLen := uint64(len(payload)) + ChecksumSize
	if bodyLen > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, bodyLen)
	}
	buf := make([]byte, HeaderSize+int(bodyLen))
	// Header first, then the payload, then its checksum in the last 2 bytes
	putHeader(buf, Header{
		Magic:   Magic,
		Version: Version,
		Type:    t,
		Seq:     seq,
		BodyLen: uint32(bodyLen),
	})
	copy(buf[HeaderSize:], payload)
	binary.BigEndian.PutUint16(buf[len(buf)-ChecksumSize:], Checksum(payload))
	return buf, nil
}

// DecodeHeader parses the fixed header at the start of b.
//
// A magic mismatch means the stream can no longer be trusted. A version mismatch is
// recoverable: the parsed header is returned together with ErrUnsupportedVersion so the
// caller can still skip the body and echo the sequence id.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: have %d bytes", ErrShortHeader, len(b))
	}
	// Step 1: Parse every field before judging any of them
	h := Header{
		Magic:    binary.BigEndian.Uint16(b[0:2]),
		Version:  binary.BigEndian.Uint16(b[2:4]),
		Type:     MessageType(binary.BigEndian.Uint16(b[4:6])),
		Reserved: binary.BigEndian.Uint16(b[6:8]),
		Seq:      binary.BigEndian.Uint32(b[8:12]),
		BodyLen:  binary.BigEndian.Uint32(b[12:16]),
	}
	// Step 2: Validate magic number. A mismatch means the stream cannot be trusted
	if h.Magic != Magic {
		return Header{}, fmt.Errorf("%w: %#04x", ErrBadMagic, h.Magic)
	}
	// Step 3: Bound the body length; it must at least hold the checksum
	if h.BodyLen < ChecksumSize {
		return Header{}, fmt.Errorf("%w: body length %d", ErrLengthMismatch, h.BodyLen)
	}
	if h.BodyLen > MaxBodySize {
		return Header{}, fmt.Errorf("%w: body length %d", ErrFrameTooLarge, h.BodyLen)
	}
	if h.Reserved != 0 {
		return Header{}, fmt.Errorf("%w: %#04x", ErrBadReserved, h.Reserved)
	}
	// Step 4: Check the version last. The header is still returned so the
	// caller can skip the body and answer the seq
	if h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}

// OpenBody verifies that body matches the header's declared length and checksum and
// returns the payload without its trailer. The payload aliases body.
func OpenBody(h Header, body []byte) ([]byte, error) {
	if uint32(len(body)) != h.BodyLen {
		return nil, fmt.Errorf("%w: declared %d, got %d", ErrLengthMismatch, h.BodyLen, len(body))
	}
	payload := body[:len(body)-ChecksumSize]
	want := binary.BigEndian.Uint16(body[len(body)-ChecksumSize:])
	if got := Checksum(payload); got != want {
		return nil, fmt.Errorf("%w: want %#04x, got %#04x", ErrChecksum, want, got)
	}
	return payload, nil
}

// WriteFrame encodes and writes one frame to w.
// The caller must serialize writers that share w, otherwise frames interleave.
func WriteFrame(w io.Writer, t MessageType, seq uint32, payload []byte) error {
	buf, err := EncodeFrame(t, seq, payload)
	if err != nil {
		return err
	}
	if len(buf) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(buf))
	}
	_, err = w.Write(buf)
	return err
}

// ReadFrame reads exactly one frame from r.
//
// Corrupt frames whose length is still trustworthy (checksum mismatch) are consumed from
// the stream and reported with an error satisfying IsCorruption, so the reader stays
// aligned on the next frame. A version mismatch is reported the same way with the header
// filled in.
func ReadFrame(r io.Reader) (Frame, error) {
	// Step 1: Read the fixed 16-byte header
	var hb [HeaderSize]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return Frame{}, err
	}
	h, herr := DecodeHeader(hb[:])
	if herr != nil && !errors.Is(herr, ErrUnsupportedVersion) {
		return Frame{}, herr
	}

	// Step 2: Read exactly BodyLen bytes, even for a frame we will not decode,
	// so the next read starts on a header
	body := make([]byte, h.BodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, err
	}
	if herr != nil {
		return Frame{Header: h}, herr
	}
	// Step 3: Verify the checksum and strip it
	payload, err := OpenBody(h, body)
	if err != nil {
		return Frame{Header: h}, err
	}
	return Frame{Header: h, Payload: payload}, nil
}
