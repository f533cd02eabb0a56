package middleware

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopwire/message"
	"shopwire/protocol"
)

func echoHandler(ctx context.Context, req message.Body) message.Body {
	return message.OK(message.CartResult{})
}

func slowHandler(ctx context.Context, req message.Body) message.Body {
	time.Sleep(200 * time.Millisecond)
	return message.OK(message.CartResult{})
}

func codeOfResp(t *testing.T, b message.Body) protocol.ErrorCode {
	t.Helper()
	r, ok := b.(message.Reply)
	require.True(t, ok, "%T is not a typed response", b)
	return r.Result().Code
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	failing := func(ctx context.Context, req message.Body) message.Body {
		return message.Fail[message.CartResult](protocol.ResourceNotFound, "no cart")
	}

	ctx := WithInfo(context.Background(), Info{Seq: 17, Remote: "pipe"})
	resp := Logging(logger)(failing)(ctx, &message.GetCartRequest{UserID: 1})
	assert.Equal(t, protocol.ResourceNotFound, codeOfResp(t, resp))

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"type":"GET_CART_REQUEST"`)
	assert.Contains(t, out, `"code":"RESOURCE_NOT_FOUND"`)
	assert.Contains(t, out, `"seq":17`)
}

func TestTimeout(t *testing.T) {
	testCases := []struct {
		name    string
		handler HandlerFunc
		timeout time.Duration
		want    protocol.ErrorCode
	}{
		{name: "fast handler passes", handler: echoHandler, timeout: 500 * time.Millisecond, want: protocol.Success},
		{name: "slow handler times out", handler: slowHandler, timeout: 50 * time.Millisecond, want: protocol.OperationTimeout},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := Timeout(tc.timeout)(tc.handler)(context.Background(), &message.GetCartRequest{})
			_, ok := resp.(*message.GetCartResponse)
			assert.True(t, ok)
			assert.Equal(t, tc.want, codeOfResp(t, resp))
		})
	}
}

func TestRateLimit(t *testing.T) {
	// 1 per second with burst 2: the first two pass, the third is refused
	handler := RateLimit(1, 2)(echoHandler)
	req := &message.GetCartRequest{}
	for i := 0; i < 2; i++ {
		assert.Equal(t, protocol.Success, codeOfResp(t, handler(context.Background(), req)))
	}
	resp := handler(context.Background(), req)
	assert.Equal(t, protocol.UnknownError, codeOfResp(t, resp))
	assert.Equal(t, "rate limit exceeded", resp.(message.Reply).Result().Message)
}

func TestRecover(t *testing.T) {
	panicking := func(ctx context.Context, req message.Body) message.Body {
		panic("boom")
	}
	resp := Recover(zerolog.Nop())(panicking)(context.Background(), &message.LoginRequest{})
	_, ok := resp.(*message.LoginResponse)
	assert.True(t, ok)
	assert.Equal(t, protocol.UnknownError, codeOfResp(t, resp))
}

func TestRetry(t *testing.T) {
	var calls atomic.Int32
	flaky := func(ctx context.Context, req message.Body) message.Body {
		if calls.Add(1) < 3 {
			return message.Fail[message.CartResult](protocol.DatabaseError, "busy")
		}
		return message.OK(message.CartResult{})
	}

	resp := Retry(3, time.Millisecond, zerolog.Nop())(flaky)(context.Background(), &message.GetCartRequest{})
	assert.Equal(t, protocol.Success, codeOfResp(t, resp))
	assert.Equal(t, int32(3), calls.Load())

	// mutations are never re-run
	calls.Store(0)
	mutate := func(ctx context.Context, req message.Body) message.Body {
		calls.Add(1)
		return message.Fail[message.ClearCartResult](protocol.DatabaseError, "busy")
	}
	resp = Retry(3, time.Millisecond, zerolog.Nop())(mutate)(context.Background(), &message.ClearCartRequest{})
	assert.Equal(t, protocol.DatabaseError, codeOfResp(t, resp))
	assert.Equal(t, int32(1), calls.Load())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	mw := MetricsBuilder{Namespace: "shop", Subsystem: "server", Registerer: reg}.Build()
	handler := mw(echoHandler)
	for i := 0; i < 3; i++ {
		handler(context.Background(), &message.GetCartRequest{})
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
		if mf.GetName() == "shop_server_requests_total" {
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, 3.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found["shop_server_requests_total"])
	assert.True(t, found["shop_server_request_duration_seconds"])
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req message.Body) message.Body {
				order = append(order, name+".before")
				resp := next(ctx, req)
				order = append(order, name+".after")
				return resp
			}
		}
	}
	handler := Chain(mark("A"), mark("B"), Timeout(time.Second))(echoHandler)
	resp := handler(context.Background(), &message.GetCartRequest{})
	assert.Equal(t, protocol.Success, codeOfResp(t, resp))
	assert.Equal(t, []string{"A.before", "B.before", "B.after", "A.after"}, order)
}
