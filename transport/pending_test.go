package transport

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopwire/message"
	"shopwire/protocol"
)

func responseFrame(t *testing.T, seq uint32, b message.Body) protocol.Frame {
	t.Helper()
	payload, err := message.Encode(b)
	require.NoError(t, err)
	return protocol.Frame{Header: protocol.Header{Type: b.Type(), Seq: seq}, Payload: payload}
}

func TestPendingNextSkipsZeroAndBusy(t *testing.T) {
	p := NewPending()
	assert.Equal(t, uint32(1), p.Next())
	assert.Equal(t, uint32(2), p.Next())

	p.seq = math.MaxUint32 - 1
	_, err := p.Register(1, protocol.LoginRequest, 0)
	require.NoError(t, err)

	assert.Equal(t, uint32(math.MaxUint32), p.Next())
	// wraps past 0 and past the still-pending 1
	assert.Equal(t, uint32(2), p.Next())
}

func TestPendingRegisterErrors(t *testing.T) {
	p := NewPending()
	_, err := p.Register(0, protocol.LoginRequest, 0)
	assert.ErrorIs(t, err, ErrReserved)

	_, err = p.Register(5, protocol.LoginRequest, 0)
	require.NoError(t, err)
	_, err = p.Register(5, protocol.LoginRequest, 0)
	assert.ErrorIs(t, err, ErrSeqInUse)

	_, err = p.Register(6, protocol.LoginResponse, 0)
	assert.ErrorIs(t, err, ErrNoRequest)
	_, err = p.Register(6, protocol.Heartbeat, 0)
	assert.ErrorIs(t, err, ErrNoRequest)
}

func TestPendingReverseOrderResolution(t *testing.T) {
	p := NewPending()
	const n = 64

	calls := make([]*Call, n)
	for i := range calls {
		c, err := p.Open(protocol.RegisterRequest, time.Second)
		require.NoError(t, err)
		calls[i] = c
	}

	got := make([]int32, n)
	var wg sync.WaitGroup
	for i, c := range calls {
		wg.Add(1)
		go func(i int, c *Call) {
			defer wg.Done()
			f, err := c.Wait(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			resp, err := message.DecodeAs[*message.RegisterResponse](f.Type, f.Payload)
			if assert.NoError(t, err) {
				got[i] = resp.Payload.UserID
			}
		}(i, c)
	}

	for i := n - 1; i >= 0; i-- {
		ok := p.Resolve(responseFrame(t, calls[i].Seq, message.OK(message.RegisterResult{UserID: int32(calls[i].Seq)})))
		assert.True(t, ok)
	}
	wg.Wait()

	for i, c := range calls {
		assert.Equal(t, int32(c.Seq), got[i])
		assert.Equal(t, Resolved, c.Outcome())
	}
	assert.Equal(t, 0, p.Len())
}

func TestPendingUnknownAndUnsolicited(t *testing.T) {
	p := NewPending()
	assert.False(t, p.Resolve(responseFrame(t, 99, message.OK(message.LoginResult{}))))
	assert.False(t, p.Resolve(responseFrame(t, 0, &message.Heartbeat{Timestamp: 1})))
	assert.False(t, p.Resolve(responseFrame(t, 0, &message.ErrorResponse{Code: protocol.InvalidRequest, OriginalSeq: 42})))
}

func TestPendingTimeoutIgnoresLateResponse(t *testing.T) {
	p := NewPending()
	c, err := p.Open(protocol.LoginRequest, 20*time.Millisecond)
	require.NoError(t, err)

	_, err = c.Wait(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, TimedOut, c.Outcome())

	assert.False(t, p.Resolve(responseFrame(t, c.Seq, message.OK(message.LoginResult{}))))
	assert.Equal(t, TimedOut, c.Outcome())
}

func TestPendingCancel(t *testing.T) {
	p := NewPending()
	c, err := p.Open(protocol.LoginRequest, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = c.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Cancelled, c.Outcome())
	assert.Equal(t, 0, p.Len())
	assert.False(t, p.Resolve(responseFrame(t, c.Seq, message.OK(message.LoginResult{}))))
}

func TestPendingTypeMismatch(t *testing.T) {
	p := NewPending()
	c, err := p.Open(protocol.LoginRequest, 0)
	require.NoError(t, err)

	assert.True(t, p.Resolve(responseFrame(t, c.Seq, message.OK(message.RegisterResult{UserID: 1}))))
	_, err = c.Wait(context.Background())
	assert.ErrorIs(t, err, message.ErrTypeMismatch)
	assert.Equal(t, Failed, c.Outcome())
}

func TestPendingErrorResponseRoutesByOriginalSeq(t *testing.T) {
	p := NewPending()
	c, err := p.Open(protocol.CreateOrderRequest, 0)
	require.NoError(t, err)

	// the frame's own seq is irrelevant
	f := responseFrame(t, 0, &message.ErrorResponse{Code: protocol.InvalidRequest, Message: "unknown type", OriginalSeq: c.Seq})
	assert.True(t, p.Resolve(f))

	_, err = c.Wait(context.Background())
	var se *message.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, protocol.InvalidRequest, se.Code)
	assert.Equal(t, Failed, c.Outcome())
}

func TestPendingFailAll(t *testing.T) {
	p := NewPending()
	a, err := p.Open(protocol.LoginRequest, 0)
	require.NoError(t, err)
	b, err := p.Open(protocol.GetCartRequest, time.Minute)
	require.NoError(t, err)

	p.FailAll(ErrPeerDead)
	for _, c := range []*Call{a, b} {
		_, err := c.Wait(context.Background())
		assert.ErrorIs(t, err, ErrPeerDead)
	}
	_, err = p.Open(protocol.LoginRequest, 0)
	assert.ErrorIs(t, err, ErrPeerDead)
}

func TestPendingExactlyOnce(t *testing.T) {
	p := NewPending()
	for i := 0; i < 200; i++ {
		c, err := p.Open(protocol.LoginRequest, time.Millisecond)
		require.NoError(t, err)
		f := responseFrame(t, c.Seq, message.OK(message.LoginResult{}))
		ctx, cancel := context.WithCancel(context.Background())

		var wins sync.WaitGroup
		results := make(chan bool, 2)
		wins.Add(2)
		go func() {
			defer wins.Done()
			results <- p.Resolve(f)
		}()
		go func() {
			defer wins.Done()
			results <- p.Fail(c.Seq, errors.New("boom"))
		}()
		cancel()
		c.Wait(ctx)
		wins.Wait()
		close(results)

		won := 0
		for r := range results {
			if r {
				won++
			}
		}
		// the timer or the cancellation may have ended it first
		assert.LessOrEqual(t, won, 1)
		assert.NotEqual(t, Waiting, c.Outcome())
	}
	assert.Equal(t, 0, p.Len())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "timed out", TimedOut.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}
