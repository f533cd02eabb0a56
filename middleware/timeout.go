package middleware

import (
	"context"
	"time"

	"shopwire/message"
	"shopwire/protocol"
)

// Timeout answers OPERATION_TIMEOUT when the handler takes longer than timeout. The
// handler keeps running with a cancelled context; its late result is dropped.
func Timeout(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req message.Body) message.Body {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan message.Body, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return fail(req, protocol.OperationTimeout, "request timed out")
			}
		}
	}
}
