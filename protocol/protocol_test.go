package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrame(t *testing.T) {
	testCases := []struct {
		name    string
		typ     MessageType
		seq     uint32
		payload []byte
	}{
		{name: "empty payload", typ: Heartbeat, seq: 0, payload: nil},
		{name: "small payload", typ: LoginRequest, seq: 12345, payload: []byte("hello world")},
		{name: "max seq", typ: ErrorResponse, seq: math.MaxUint32, payload: []byte{0x00, 0xff}},
		{name: "largest body", typ: ImageChunk, seq: 7, payload: bytes.Repeat([]byte{0xab}, MaxBodySize-ChecksumSize)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteFrame(&buf, tc.typ, tc.seq, tc.payload))
			assert.Equal(t, HeaderSize+len(tc.payload)+ChecksumSize, buf.Len())

			f, err := ReadFrame(&buf)
			require.NoError(t, err)
			assert.Equal(t, tc.typ, f.Type)
			assert.Equal(t, tc.seq, f.Seq)
			assert.Equal(t, uint32(len(tc.payload)+ChecksumSize), f.BodyLen)
			assert.Equal(t, len(tc.payload), len(f.Payload))
			assert.True(t, bytes.Equal(tc.payload, f.Payload))
		})
	}
}

func TestHeaderLayout(t *testing.T) {
	buf, err := EncodeFrame(CreateOrderRequest, 0x01020304, []byte{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, Magic, binary.BigEndian.Uint16(buf[0:2]))
	assert.Equal(t, Version, binary.BigEndian.Uint16(buf[2:4]))
	assert.Equal(t, uint16(CreateOrderRequest), binary.BigEndian.Uint16(buf[4:6]))
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(buf[6:8]))
	assert.Equal(t, uint32(0x01020304), binary.BigEndian.Uint32(buf[8:12]))
	assert.Equal(t, uint32(5), binary.BigEndian.Uint32(buf[12:16]))
}

func TestDecodeHeaderErrors(t *testing.T) {
	valid := EncodeHeader(Header{Magic: Magic, Version: Version, Type: LoginRequest, Seq: 9, BodyLen: 10})

	mutate := func(f func(b []byte)) []byte {
		b := append([]byte(nil), valid...)
		f(b)
		return b
	}

	testCases := []struct {
		name    string
		input   []byte
		wantErr error
	}{
		{name: "empty", input: nil, wantErr: ErrShortHeader},
		{name: "truncated", input: valid[:15], wantErr: ErrShortHeader},
		{name: "bad magic", input: mutate(func(b []byte) { b[0] = 0x00 }), wantErr: ErrBadMagic},
		{name: "reserved set", input: mutate(func(b []byte) { b[7] = 1 }), wantErr: ErrBadReserved},
		{name: "body shorter than trailer", input: mutate(func(b []byte) { binary.BigEndian.PutUint32(b[12:], 1) }), wantErr: ErrLengthMismatch},
		{name: "body over frame limit", input: mutate(func(b []byte) { binary.BigEndian.PutUint32(b[12:], MaxBodySize+1) }), wantErr: ErrFrameTooLarge},
		{name: "version", input: mutate(func(b []byte) { b[3] = 9 }), wantErr: ErrUnsupportedVersion},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeHeader(tc.input)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestDecodeHeaderVersionKeepsSeq(t *testing.T) {
	b := EncodeHeader(Header{Magic: Magic, Version: 2, Type: LoginRequest, Seq: 77, BodyLen: 2})
	h, err := DecodeHeader(b)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
	assert.False(t, IsCorruption(err))
	assert.Equal(t, uint32(77), h.Seq)
	assert.Equal(t, LoginRequest, h.Type)
}

func TestOpenBody(t *testing.T) {
	buf, err := EncodeFrame(LoginRequest, 1, []byte("payload"))
	require.NoError(t, err)
	h, err := DecodeHeader(buf)
	require.NoError(t, err)

	payload, err := OpenBody(h, buf[HeaderSize:])
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), payload)

	_, err = OpenBody(h, buf[HeaderSize:len(buf)-1])
	assert.ErrorIs(t, err, ErrLengthMismatch)

	tampered := append([]byte(nil), buf[HeaderSize:]...)
	tampered[0] ^= 0x01
	_, err = OpenBody(h, tampered)
	assert.ErrorIs(t, err, ErrChecksum)
	assert.True(t, IsCorruption(err))
	assert.False(t, IsFatal(err))
}

func TestReadFrameSkipsCorruptBody(t *testing.T) {
	bad, err := EncodeFrame(LoginRequest, 1, []byte("first"))
	require.NoError(t, err)
	bad[HeaderSize] ^= 0xff
	good, err := EncodeFrame(LogoutRequest, 2, []byte("second"))
	require.NoError(t, err)

	r := bytes.NewReader(append(bad, good...))
	_, err = ReadFrame(r)
	assert.ErrorIs(t, err, ErrChecksum)

	f, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), f.Seq)
	assert.Equal(t, []byte("second"), f.Payload)
}

func TestReadFrameTruncated(t *testing.T) {
	buf, err := EncodeFrame(LoginRequest, 1, []byte("abcdef"))
	require.NoError(t, err)

	_, err = ReadFrame(bytes.NewReader(buf[:10]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = ReadFrame(bytes.NewReader(buf[:len(buf)-3]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriteFrameTooLarge(t *testing.T) {
	err := WriteFrame(io.Discard, ImageChunk, 1, make([]byte, MaxBodySize))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestChecksum(t *testing.T) {
	// CRC-16/CCITT-FALSE check value.
	assert.Equal(t, uint16(0x29B1), Checksum([]byte("123456789")))
	assert.Equal(t, uint16(0xFFFF), Checksum(nil))

	data := []byte("the quick brown fox jumps over the lazy dog")
	sum := Checksum(data)
	assert.Equal(t, sum, Checksum(append([]byte(nil), data...)))

	for i := range data {
		for _, flip := range []byte{0x01, 0x80, 0xff} {
			mutated := append([]byte(nil), data...)
			mutated[i] ^= flip
			assert.NotEqual(t, sum, Checksum(mutated), "byte %d flip %#x", i, flip)
		}
	}
}

func TestDecoderPartialReads(t *testing.T) {
	var stream []byte
	for i := uint32(1); i <= 3; i++ {
		buf, err := EncodeFrame(GetCartRequest, i, bytes.Repeat([]byte{byte(i)}, int(i)*5))
		require.NoError(t, err)
		stream = append(stream, buf...)
	}

	var d Decoder
	var got []Frame
	// Feed one byte at a time, the worst case for a stream transport.
	for _, b := range stream {
		d.Feed([]byte{b})
		for {
			f, err := d.Next()
			if errors.Is(err, ErrIncomplete) {
				break
			}
			require.NoError(t, err)
			got = append(got, f)
		}
	}
	require.Len(t, got, 3)
	for i, f := range got {
		assert.Equal(t, uint32(i+1), f.Seq)
		assert.Len(t, f.Payload, (i+1)*5)
	}
	assert.Equal(t, 0, d.Buffered())
}

func TestDecoderCorruption(t *testing.T) {
	bad, err := EncodeFrame(LoginRequest, 1, []byte("x"))
	require.NoError(t, err)
	bad[len(bad)-1] ^= 0x10
	good, err := EncodeFrame(LoginRequest, 2, []byte("y"))
	require.NoError(t, err)

	var d Decoder
	d.Feed(append(bad, good...))
	f, err := d.Next()
	assert.ErrorIs(t, err, ErrChecksum)
	assert.Equal(t, uint32(1), f.Seq)

	f, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), f.Seq)

	d.Feed([]byte{0xBA, 0xD0, 0, 1, 0, 1, 0, 0, 0, 0, 0, 1, 0, 0, 0, 2})
	_, err = d.Next()
	assert.ErrorIs(t, err, ErrBadMagic)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 0, d.Buffered())
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "LOGIN_REQUEST", LoginRequest.String())
	assert.Equal(t, "IMAGE_CHUNK", ImageChunk.String())
	assert.Equal(t, "MessageType(999)", MessageType(999).String())
	assert.False(t, Unknown.Valid())
	assert.True(t, ChangeThemeResponse.Valid())
	assert.Equal(t, "INSUFFICIENT_STOCK", InsufficientStock.String())
	assert.Equal(t, "PRODUCT_MAIN", ProductMain.String())
	assert.False(t, ImageType(0).Valid())
	// Wire positions are fixed; appending must never shift these.
	assert.Equal(t, MessageType(1), LoginRequest)
	assert.Equal(t, MessageType(53), Heartbeat)
	assert.Equal(t, MessageType(54), ErrorResponse)
	assert.Equal(t, ErrorCode(12), OperationTimeout)
}
