package protocol

import "errors"

// ErrIncomplete means the buffered bytes do not yet hold a whole frame.
var ErrIncomplete = errors.New("protocol: incomplete frame")

// Decoder splits an inbound byte stream into frames for transports that deliver
// arbitrary slices of the stream (a read callback rather than an io.Reader).
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf []byte
}

// Feed appends newly received bytes.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of bytes waiting to be decoded.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next complete frame.
//
// ErrIncomplete is returned, and nothing consumed, while the frame is still partial.
// A frame with a recoverable fault (checksum, version) is consumed and returned with its
// header and the fault. A fatal fault drops everything buffered, since no later boundary
// can be located.
func (d *Decoder) Next() (Frame, error) {
	if len(d.buf) < HeaderSize {
		return Frame{}, ErrIncomplete
	}
	h, herr := DecodeHeader(d.buf)
	if herr != nil && !errors.Is(herr, ErrUnsupportedVersion) {
		d.buf = nil
		return Frame{}, herr
	}
	end := HeaderSize + int(h.BodyLen)
	if len(d.buf) < end {
		return Frame{}, ErrIncomplete
	}
	body := make([]byte, h.BodyLen)
	copy(body, d.buf[HeaderSize:end])
	d.consume(end)

	if herr != nil {
		return Frame{Header: h}, herr
	}
	payload, err := OpenBody(h, body)
	if err != nil {
		return Frame{Header: h}, err
	}
	return Frame{Header: h, Payload: payload}, nil
}

func (d *Decoder) consume(n int) {
	rest := len(d.buf) - n
	if rest == 0 {
		d.buf = d.buf[:0]
		return
	}
	copy(d.buf, d.buf[n:])
	d.buf = d.buf[:rest]
}
