package middleware

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"shopwire/message"
	"shopwire/protocol"
)

// Recover turns a handler panic into an UNKNOWN_ERROR response.
func Recover(logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req message.Body) (resp message.Body) {
			defer func() {
				if p := recover(); p != nil {
					logger.Error().Stringer("type", req.Type()).Str("panic", fmt.Sprint(p)).Msg("handler panicked")
					resp = fail(req, protocol.UnknownError, "internal error")
				}
			}()
			return next(ctx, req)
		}
	}
}
