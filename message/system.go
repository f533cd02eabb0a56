package message

import (
	"fmt"
	"time"

	"shopwire/codec"
	"shopwire/protocol"
)

// Heartbeat is sent with sequence id 0 by either side and never answered.
type Heartbeat struct {
	Timestamp uint64 // unix millis
}

// NewHeartbeat stamps a heartbeat with t.
func NewHeartbeat(t time.Time) *Heartbeat {
	return &Heartbeat{Timestamp: uint64(t.UnixMilli())}
}

func (*Heartbeat) Type() protocol.MessageType { return protocol.Heartbeat }

func (m *Heartbeat) MarshalWire(w *codec.Writer) { w.Uint64(m.Timestamp) }

func (m *Heartbeat) UnmarshalWire(r *codec.Reader) (err error) {
	m.Timestamp, err = r.Uint64()
	return err
}

// ErrorResponse answers any request the server could not turn into a typed response.
// It is correlated by OriginalSeq, not by the frame's own sequence id.
type ErrorResponse struct {
	Code        protocol.ErrorCode
	Message     string
	OriginalSeq uint32
}

func (*ErrorResponse) Type() protocol.MessageType { return protocol.ErrorResponse }

func (m *ErrorResponse) Err() error {
	return &StatusError{Code: m.Code, Message: m.Message}
}

func (m *ErrorResponse) MarshalWire(w *codec.Writer) {
	w.Uint16(uint16(m.Code))
	w.String(m.Message)
	w.Uint32(m.OriginalSeq)
}

func (m *ErrorResponse) UnmarshalWire(r *codec.Reader) error {
	code, err := r.Uint16()
	if err != nil {
		return err
	}
	m.Code = protocol.ErrorCode(code)
	if !m.Code.Valid() {
		return fmt.Errorf("%w: error code %d", codec.ErrMalformed, code)
	}
	if m.Message, err = r.String(); err != nil {
		return err
	}
	m.OriginalSeq, err = r.Uint32()
	return err
}
