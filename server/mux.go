package server

import (
	"context"
	"fmt"

	"shopwire/message"
	"shopwire/protocol"
)

// Mux routes a decoded request to the handler registered for its type.
type Mux struct {
	handlers map[protocol.MessageType]func(ctx context.Context, req message.Body) message.Body
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[protocol.MessageType]func(context.Context, message.Body) message.Body)}
}

// Handle registers h for the request type Req. The response type is fixed by the
// catalog: registering a handler whose response does not answer Req panics, as does
// registering the same request type twice.
func Handle[Req message.Body, T any](m *Mux, h func(ctx context.Context, req Req) *message.Response[T]) {
	var zero Req
	reqType := zero.Type()
	want, ok := message.ResponseTypeOf(reqType)
	if !ok {
		panic(fmt.Sprintf("server: %s is not a request type", reqType))
	}
	if got := new(message.Response[T]).Type(); got != want {
		panic(fmt.Sprintf("server: %s must be answered with %s, not %s", reqType, want, got))
	}
	if _, dup := m.handlers[reqType]; dup {
		panic(fmt.Sprintf("server: duplicate handler for %s", reqType))
	}

	m.handlers[reqType] = func(ctx context.Context, body message.Body) message.Body {
		req, ok := body.(Req)
		if !ok {
			return message.Fail[T](protocol.InvalidRequest, "unexpected body %T", body)
		}
		if resp := h(ctx, req); resp != nil {
			return resp
		}
		return message.Fail[T](protocol.UnknownError, "no response")
	}
}

// Handles reports whether a handler is registered for t.
func (m *Mux) Handles(t protocol.MessageType) bool {
	_, ok := m.handlers[t]
	return ok
}

// Serve is the innermost middleware.HandlerFunc.
func (m *Mux) Serve(ctx context.Context, req message.Body) message.Body {
	h, ok := m.handlers[req.Type()]
	if !ok {
		resp, err := message.Failure(req.Type(), protocol.InvalidRequest, "unsupported operation")
		if err != nil {
			return &message.ErrorResponse{Code: protocol.InvalidRequest, Message: err.Error()}
		}
		return resp
	}
	return h(ctx, req)
}
