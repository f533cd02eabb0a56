package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopwire/message"
	"shopwire/protocol"
)

// echoServer answers every REGISTER_REQUEST with the length of the username as user id,
// after a delay derived from it so that responses come back out of order.
func echoServer(c *Conn, f protocol.Frame, err error) {
	if err != nil {
		return
	}
	req, derr := message.DecodeAs[*message.RegisterRequest](f.Type, f.Payload)
	if derr != nil {
		c.Send(0, &message.ErrorResponse{Code: protocol.InvalidRequest, Message: derr.Error(), OriginalSeq: f.Seq})
		return
	}
	go func() {
		time.Sleep(time.Duration(100-len(req.Username)) * 100 * time.Microsecond)
		c.Send(f.Seq, message.OK(message.RegisterResult{UserID: int32(len(req.Username))}))
	}()
}

func pipePair(t *testing.T, client, server Options) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	cc := NewConn(a, client)
	sc := NewConn(b, server)
	t.Cleanup(func() {
		cc.Close()
		sc.Close()
	})
	return cc, sc
}

func quiet() Options {
	o := DefaultOptions()
	o.HeartbeatInterval = 0
	o.DeadAfter = 0
	o.CallTimeout = 2 * time.Second
	return o
}

func TestConnConcurrentCalls(t *testing.T) {
	srv := quiet()
	srv.Handler = echoServer
	client, _ := pipePair(t, quiet(), srv)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := string(bytes.Repeat([]byte("x"), n))
			body, err := client.Call(context.Background(), &message.RegisterRequest{Username: name})
			if !assert.NoError(t, err) {
				return
			}
			resp, ok := body.(*message.RegisterResponse)
			if assert.True(t, ok) {
				v, err := resp.Value()
				assert.NoError(t, err)
				assert.Equal(t, int32(n), v.UserID)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, client.Pending().Len())
}

func TestConnErrorResponse(t *testing.T) {
	srv := quiet()
	srv.Handler = echoServer
	client, _ := pipePair(t, quiet(), srv)

	_, err := client.Call(context.Background(), &message.LoginRequest{Username: "a"})
	assert.Equal(t, protocol.InvalidRequest, message.CodeOf(err))
}

func TestConnCallTimeout(t *testing.T) {
	opts := quiet()
	opts.CallTimeout = 30 * time.Millisecond
	client, _ := pipePair(t, opts, quiet()) // server has no handler

	_, err := client.Call(context.Background(), &message.LoginRequest{Username: "a"})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NoError(t, client.Err())
}

func TestConnPerCallTimeout(t *testing.T) {
	opts := quiet()
	opts.CallTimeout = time.Minute
	client, _ := pipePair(t, opts, quiet())

	call, err := client.StartTimeout(&message.LoginRequest{Username: "a"}, 20*time.Millisecond)
	require.NoError(t, err)
	_, err = client.Wait(context.Background(), call)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, TimedOut, call.Outcome())

	_, err = client.CallTimeout(context.Background(), &message.LoginRequest{Username: "b"}, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	// a ctx deadline is a cancellation, not a timeout
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	call, err = client.Start(&message.LoginRequest{Username: "c"})
	require.NoError(t, err)
	_, err = client.Wait(ctx, call)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Cancelled, call.Outcome())
	assert.Zero(t, client.Pending().Len())
}

func TestConnHeartbeat(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	opts := quiet()
	opts.HeartbeatInterval = 20 * time.Millisecond
	c := NewConn(a, opts)
	defer c.Close()

	b.SetReadDeadline(time.Now().Add(time.Second))
	f, err := protocol.ReadFrame(b)
	require.NoError(t, err)
	assert.Equal(t, protocol.Heartbeat, f.Type)
	assert.Equal(t, uint32(0), f.Seq)

	hb, err := message.DecodeAs[*message.Heartbeat](f.Type, f.Payload)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().UnixMilli(), int64(hb.Timestamp), 1000)
}

func TestConnPeerDead(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	opts := quiet()
	opts.DeadAfter = 40 * time.Millisecond
	c := NewConn(a, opts)

	call, err := c.Pending().Register(7, protocol.LoginRequest, 0)
	require.NoError(t, err)

	_, err = call.Wait(context.Background())
	assert.ErrorIs(t, err, ErrPeerDead)
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("connection not closed")
	}
	assert.ErrorIs(t, c.Err(), ErrPeerDead)
}

func TestConnHeartbeatsKeepPeerAlive(t *testing.T) {
	beating := quiet()
	beating.HeartbeatInterval = 10 * time.Millisecond
	watching := quiet()
	watching.DeadAfter = 60 * time.Millisecond
	_, w := pipePair(t, beating, watching)

	time.Sleep(200 * time.Millisecond)
	assert.NoError(t, w.Err())
}

func TestConnDiscardsCorruptFrame(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	c := NewConn(a, quiet())
	defer c.Close()

	call, err := c.Pending().Register(3, protocol.LogoutRequest, 0)
	require.NoError(t, err)

	payload, err := message.Encode(message.OK(message.LogoutResult{}))
	require.NoError(t, err)
	bad, err := protocol.EncodeFrame(protocol.LogoutResponse, 3, payload)
	require.NoError(t, err)
	bad[protocol.HeaderSize] ^= 0x01 // flip a payload bit
	good, err := protocol.EncodeFrame(protocol.LogoutResponse, 3, payload)
	require.NoError(t, err)

	go func() {
		b.Write(bad)
		b.Write(good)
	}()

	f, err := call.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.LogoutResponse, f.Type)
	assert.Equal(t, uint64(1), c.CorruptFrames())
	assert.NoError(t, c.Err())
}

func TestConnBadMagicCloses(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	c := NewConn(a, quiet())

	frame, err := protocol.EncodeFrame(protocol.Heartbeat, 0, make([]byte, 8))
	require.NoError(t, err)
	frame[0] = 0x00
	go b.Write(frame)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("connection not closed")
	}
	assert.ErrorIs(t, c.Err(), protocol.ErrBadMagic)
}

func TestConnTooManyCorruptFrames(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	opts := quiet()
	opts.MaxCorruptFrames = 3
	c := NewConn(a, opts)

	frame, err := protocol.EncodeFrame(protocol.Heartbeat, 0, make([]byte, 8))
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0xff
	go func() {
		for i := 0; i < 3; i++ {
			if _, err := b.Write(frame); err != nil {
				return
			}
		}
	}()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("connection not closed")
	}
	assert.ErrorIs(t, c.Err(), protocol.ErrChecksum)
	assert.Equal(t, uint64(3), c.CorruptFrames())
}

func TestConnVersionMismatchReachesHandler(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	got := make(chan error, 1)
	opts := quiet()
	opts.Handler = func(c *Conn, f protocol.Frame, err error) {
		if f.Seq == 11 {
			got <- err
		}
	}
	c := NewConn(a, opts)
	defer c.Close()

	frame, err := protocol.EncodeFrame(protocol.LoginRequest, 11, nil)
	require.NoError(t, err)
	frame[3] = 9 // version
	go b.Write(frame)

	select {
	case err := <-got:
		assert.ErrorIs(t, err, protocol.ErrUnsupportedVersion)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	assert.NoError(t, c.Err())
}

func TestConnCloseFailsPending(t *testing.T) {
	client, _ := pipePair(t, quiet(), quiet())
	call, err := client.Pending().Register(1, protocol.LoginRequest, 0)
	require.NoError(t, err)

	client.Close()
	_, err = call.Wait(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	err = client.Send(0, &message.Heartbeat{})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestPool(t *testing.T) {
	var mu sync.Mutex
	var dialled []*Conn
	dial := func(ctx context.Context, addr string) (*Conn, error) {
		a, b := net.Pipe()
		go func() { // drain so writes never block
			buf := make([]byte, 1024)
			for {
				if _, err := b.Read(buf); err != nil {
					return
				}
			}
		}()
		c := NewConn(a, quiet())
		mu.Lock()
		dialled = append(dialled, c)
		mu.Unlock()
		return c, nil
	}

	p := NewPool("pipe", 2, dial)
	ctx := context.Background()

	c1, err := p.Get(ctx)
	require.NoError(t, err)
	c2, err := p.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, c1, c2)
	assert.Equal(t, 2, p.Len())

	// at capacity: waits for a return
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = p.Get(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.Put(c1)
	again, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, c1, again)

	// a dead connection is replaced
	again.Close()
	p.Put(again)
	assert.Equal(t, 1, p.Len())
	fresh, err := p.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, c1, fresh)
	assert.Len(t, dialled, 3)

	p.Put(c2)
	p.Put(fresh)
	require.NoError(t, p.Close())
	assert.Equal(t, 0, p.Len())
	_, err = p.Get(ctx)
	assert.ErrorIs(t, err, ErrPoolClosed)
}
