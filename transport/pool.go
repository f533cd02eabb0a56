package transport

import (
	"context"
	"errors"
	"sync"
)

var ErrPoolClosed = errors.New("transport: pool closed")

// Pool keeps up to size connections to one address. A borrowed Conn may still be shared,
// since every Conn multiplexes calls; borrowing only spreads load across connections.
// The idle queue is a buffered channel.
type Pool struct {
	mu     sync.Mutex
	conns  chan *Conn
	addr   string
	size   int
	cur    int // connections created and not yet discarded
	closed bool
	dial   func(ctx context.Context, addr string) (*Conn, error)
}

// NewPool creates an empty pool; connections are dialled lazily.
func NewPool(addr string, size int, dial func(ctx context.Context, addr string) (*Conn, error)) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		conns: make(chan *Conn, size),
		addr:  addr,
		size:  size,
		dial:  dial,
	}
}

// Get returns a live connection:
//  1. an idle one, discarding any that died while idle
//  2. a new one while under size
//  3. otherwise the next one returned, or ctx's error
func (p *Pool) Get(ctx context.Context) (*Conn, error) {
	for {
		select {
		case c := <-p.conns:
			if c.Err() != nil {
				p.discard()
				continue
			}
			return c, nil
		default:
		}

		c, grew, err := p.grow(ctx)
		if grew {
			return c, err
		}

		select {
		case c := <-p.conns:
			if c.Err() != nil {
				p.discard()
				continue
			}
			return c, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Put hands c back. Dead connections are dropped to make room for fresh ones.
func (p *Pool) Put(c *Conn) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed || c.Err() != nil {
		c.Close()
		p.discard()
		return
	}
	p.conns <- c
}

// Len returns how many connections the pool currently owns.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

// Close closes the idle connections; borrowed ones are closed as they come back.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	for {
		select {
		case c := <-p.conns:
			c.Close()
			p.discard()
		default:
			return nil
		}
	}
}

func (p *Pool) grow(ctx context.Context) (*Conn, bool, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, true, ErrPoolClosed
	}
	if p.cur >= p.size {
		p.mu.Unlock()
		return nil, false, nil
	}
	p.cur++
	p.mu.Unlock()

	c, err := p.dial(ctx, p.addr)
	if err != nil {
		p.discard()
		return nil, true, err
	}
	return c, true, nil
}

func (p *Pool) discard() {
	p.mu.Lock()
	p.cur--
	p.mu.Unlock()
}
