package transport

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeDialer hands out client ends of net.Pipe pairs and counts the dials.
func pipeDialer(t *testing.T, dials *atomic.Int32) func(context.Context, string) (*Conn, error) {
	return func(context.Context, string) (*Conn, error) {
		dials.Add(1)
		a, b := net.Pipe()
		c, s := NewConn(a, quiet()), NewConn(b, quiet())
		t.Cleanup(func() {
			c.Close()
			s.Close()
		})
		return c, nil
	}
}

func TestPoolReusesIdle(t *testing.T) {
	var dials atomic.Int32
	p := NewPool("shop", 2, pipeDialer(t, &dials))
	defer p.Close()
	ctx := context.Background()

	c1, err := p.Get(ctx)
	require.NoError(t, err)
	p.Put(c1)
	c2, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.EqualValues(t, 1, dials.Load())
	assert.Equal(t, 1, p.Len())
}

func TestPoolBlocksAtSize(t *testing.T) {
	var dials atomic.Int32
	p := NewPool("shop", 1, pipeDialer(t, &dials))
	defer p.Close()

	c, err := p.Get(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Put(c)
	}()
	got, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, c, got)
	assert.EqualValues(t, 1, dials.Load())
}

func TestPoolReplacesDeadConns(t *testing.T) {
	var dials atomic.Int32
	p := NewPool("shop", 1, pipeDialer(t, &dials))
	defer p.Close()
	ctx := context.Background()

	c, err := p.Get(ctx)
	require.NoError(t, err)
	p.Put(c)
	c.Close()
	<-c.Done()

	fresh, err := p.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, c, fresh)
	assert.EqualValues(t, 2, dials.Load())
	assert.Equal(t, 1, p.Len())
}

func TestPoolDialError(t *testing.T) {
	boom := errors.New("refused")
	p := NewPool("shop", 1, func(context.Context, string) (*Conn, error) { return nil, boom })
	_, err := p.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, p.Len())
}

func TestPoolClose(t *testing.T) {
	var dials atomic.Int32
	p := NewPool("shop", 2, pipeDialer(t, &dials))
	ctx := context.Background()

	idle, err := p.Get(ctx)
	require.NoError(t, err)
	borrowed, err := p.Get(ctx)
	require.NoError(t, err)
	p.Put(idle)

	require.NoError(t, p.Close())
	<-idle.Done()
	assert.Equal(t, 1, p.Len())

	p.Put(borrowed)
	<-borrowed.Done()
	assert.Equal(t, 0, p.Len())

	_, err = p.Get(ctx)
	assert.ErrorIs(t, err, ErrPoolClosed)
}
