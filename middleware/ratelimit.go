package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"shopwire/message"
	"shopwire/protocol"
)

// RateLimit admits r requests per second with bursts of burst, token-bucket style.
// Rejected requests are answered at once without reaching the handler.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req message.Body) message.Body {
			if !limiter.Allow() {
				return fail(req, protocol.UnknownError, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
