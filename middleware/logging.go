package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"shopwire/message"
	"shopwire/protocol"
)

// Logging records every request with its outcome and duration. Failures log at warn.
func Logging(logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req message.Body) message.Body {
			start := time.Now()
			resp := next(ctx, req)
			code := codeOf(resp)

			event := logger.Debug()
			if code != protocol.Success {
				event = logger.Warn()
			}
			if info, ok := InfoFrom(ctx); ok {
				event = event.Uint32("seq", info.Seq).Str("remote", info.Remote)
			}
			event.
				Stringer("type", req.Type()).
				Stringer("code", code).
				Dur("duration", time.Since(start)).
				Msg("request")
			return resp
		}
	}
}
