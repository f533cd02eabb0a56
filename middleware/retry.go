package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"shopwire/message"
	"shopwire/protocol"
)

var readOnly = map[protocol.MessageType]bool{
	protocol.GetUserInfoRequest:      true,
	protocol.GetProductListRequest:   true,
	protocol.GetProductDetailRequest: true,
	protocol.GetMyProductsRequest:    true,
	protocol.GetCartRequest:          true,
	protocol.GetOrderListRequest:     true,
	protocol.GetOrderDetailRequest:   true,
	protocol.DownloadImageRequest:    true,
}

// ReadOnly reports whether a request of type t changes nothing, so running it twice is harmless.
func ReadOnly(t protocol.MessageType) bool {
	return readOnly[t]
}

// Retry re-runs read-only requests that failed with DATABASE_ERROR, backing off
// exponentially from baseDelay. Anything that mutates state runs exactly once.
func Retry(maxRetries int, baseDelay time.Duration, logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req message.Body) message.Body {
			resp := next(ctx, req)
			if !ReadOnly(req.Type()) {
				return resp
			}
			for i := 0; i < maxRetries && codeOf(resp) == protocol.DatabaseError; i++ {
				logger.Debug().Stringer("type", req.Type()).Int("attempt", i+1).Msg("retrying")
				select {
				case <-time.After(baseDelay * time.Duration(1<<i)):
				case <-ctx.Done():
					return resp
				}
				resp = next(ctx, req)
			}
			return resp
		}
	}
}
