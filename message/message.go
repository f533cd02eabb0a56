// Package message is the catalog of typed bodies carried inside protocol frames.
//
// Every operation has exactly one request body and one response body, linked by an
// explicit table so that a response can never be decoded as the wrong type. Responses
// are a tagged result: a Status plus a payload that is only meaningful on Success, and
// is not even put on the wire otherwise.
//
//	caller value ──Encode──→ payload bytes ──protocol.EncodeFrame──→ frame
//	frame ──protocol.ReadFrame──→ payload bytes ──Decode(type)──→ typed Body
package message

import (
	"errors"
	"fmt"

	"shopwire/codec"
	"shopwire/protocol"
)

var (
	ErrUnknownType  = errors.New("message: unknown message type")
	ErrTypeMismatch = errors.New("message: unexpected message type")
)

// Body is anything that can travel as a frame body.
type Body interface {
	Type() protocol.MessageType
	MarshalWire(w *codec.Writer)
	UnmarshalWire(r *codec.Reader) error
}

// Payload is the success half of a Response. Pointer receivers are expected.
type Payload interface {
	ResponseType() protocol.MessageType
	MarshalWire(w *codec.Writer)
	UnmarshalWire(r *codec.Reader) error
}

// Status is the error code and text carried by every response.
type Status struct {
	Code    protocol.ErrorCode
	Message string
}

func (s Status) OK() bool {
	return s.Code == protocol.Success
}

// Result returns the status itself; through embedding it gives every Response access.
func (s Status) Result() Status {
	return s
}

func (s *Status) SetStatus(v Status) {
	*s = v
}

// Err returns nil on Success and a *StatusError otherwise.
func (s Status) Err() error {
	if s.OK() {
		return nil
	}
	return &StatusError{Code: s.Code, Message: s.Message}
}

// StatusError is a non-success response status surfaced as a Go error.
type StatusError struct {
	Code    protocol.ErrorCode
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf extracts the protocol error code from err, or UnknownError if it carries none.
func CodeOf(err error) protocol.ErrorCode {
	if err == nil {
		return protocol.Success
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return protocol.UnknownError
}

// Reply is implemented by every typed response.
type Reply interface {
	Body
	Result() Status
	SetStatus(Status)
}

// Failure builds the response answering a request of type req with a failure status, for
// code that handles requests without knowing their concrete types.
func Failure(req protocol.MessageType, code protocol.ErrorCode, msg string) (Reply, error) {
	t, ok := ResponseTypeOf(req)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a request", ErrTypeMismatch, req)
	}
	b, err := New(t)
	if err != nil {
		return nil, err
	}
	r := b.(Reply)
	r.SetStatus(Status{Code: code, Message: msg})
	return r, nil
}

// Response is a Status with a typed payload. Read Payload only when Status.OK.
type Response[T any] struct {
	Status
	Payload T
}

// OK builds a successful response around p.
func OK[T any](p T) *Response[T] {
	return &Response[T]{Payload: p}
}

// Fail builds a failed response. The payload is left zero.
func Fail[T any](code protocol.ErrorCode, format string, args ...any) *Response[T] {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Response[T]{Status: Status{Code: code, Message: msg}}
}

// Value returns the payload, or the status as a *StatusError when the call failed.
func (r *Response[T]) Value() (T, error) {
	if err := r.Status.Err(); err != nil {
		var zero T
		return zero, err
	}
	return r.Payload, nil
}

func (r *Response[T]) payload() Payload {
	return any(&r.Payload).(Payload)
}

func (r *Response[T]) Type() protocol.MessageType {
	return r.payload().ResponseType()
}

func (r *Response[T]) MarshalWire(w *codec.Writer) {
	w.Uint16(uint16(r.Code))
	w.String(r.Message)
	if r.OK() {
		r.payload().MarshalWire(w)
	}
}

func (r *Response[T]) UnmarshalWire(rd *codec.Reader) error {
	code, err := rd.Uint16()
	if err != nil {
		return err
	}
	r.Code = protocol.ErrorCode(code)
	if !r.Code.Valid() {
		return fmt.Errorf("%w: error code %d", codec.ErrMalformed, code)
	}
	if r.Message, err = rd.String(); err != nil {
		return err
	}
	if !r.OK() {
		var zero T
		r.Payload = zero
		return nil
	}
	return r.payload().UnmarshalWire(rd)
}

// Encode serializes b into a frame payload.
func Encode(b Body) ([]byte, error) {
	w := codec.NewWriter(64)
	b.MarshalWire(w)
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("message: encode %s: %w", b.Type(), err)
	}
	return w.Bytes(), nil
}

// Decode parses payload as a body of type t. The whole payload must be consumed.
// Errors wrap codec.ErrTruncated or codec.ErrMalformed, or ErrUnknownType.
func Decode(t protocol.MessageType, payload []byte) (Body, error) {
	b, err := New(t)
	if err != nil {
		return nil, err
	}
	r := codec.NewReader(payload)
	if err := b.UnmarshalWire(r); err != nil {
		return nil, fmt.Errorf("message: decode %s: %w", t, err)
	}
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("message: decode %s: %w", t, err)
	}
	return b, nil
}

// DecodeAs decodes payload and asserts the concrete body type, for callers that already
// know what they expect (for example *LoginResponse).
func DecodeAs[T Body](t protocol.MessageType, payload []byte) (T, error) {
	var zero T
	b, err := Decode(t, payload)
	if err != nil {
		return zero, err
	}
	v, ok := b.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s decodes to %T, want %T", ErrTypeMismatch, t, b, zero)
	}
	return v, nil
}
