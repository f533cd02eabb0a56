// Package middleware wraps request handlers in an onion of cross-cutting concerns.
//
//	Chain(A, B, C)(handler) → A(B(C(handler)))
//	A.before → B.before → C.before → handler → C.after → B.after → A.after
package middleware

import (
	"context"

	"shopwire/message"
	"shopwire/protocol"
)

// HandlerFunc answers one decoded request with its typed response.
type HandlerFunc func(ctx context.Context, req message.Body) message.Body

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one; the first wraps all the others.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Info describes the frame a request arrived in.
type Info struct {
	Seq    uint32
	Remote string
}

type infoKey struct{}

func WithInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, infoKey{}, info)
}

func InfoFrom(ctx context.Context) (Info, bool) {
	info, ok := ctx.Value(infoKey{}).(Info)
	return info, ok
}

// fail answers req with a failure status of its own response type.
func fail(req message.Body, code protocol.ErrorCode, msg string) message.Body {
	r, err := message.Failure(req.Type(), code, msg)
	if err != nil {
		return &message.ErrorResponse{Code: code, Message: msg}
	}
	return r
}

// codeOf reads the status of a response; ERROR_RESPONSE counts too.
func codeOf(resp message.Body) protocol.ErrorCode {
	switch r := resp.(type) {
	case message.Reply:
		return r.Result().Code
	case *message.ErrorResponse:
		return r.Code
	}
	return protocol.Success
}
