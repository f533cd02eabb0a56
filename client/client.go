// Package client is the typed shop client. It discovers servers through a registry, picks
// one per call with a load balancer and multiplexes calls over a small pool of framed
// connections per server.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"shopwire/loadbalance"
	"shopwire/message"
	"shopwire/registry"
	"shopwire/transport"
)

var ErrClosed = errors.New("client: closed")

type Options struct {
	ServiceName string
	PoolSize    int
	DialTimeout time.Duration
	// ChunkSize is the upload chunk size.
	ChunkSize int
	// TransferTimeout bounds how long a download may take once its header arrived.
	TransferTimeout time.Duration
	// MaxImageSize caps the size a download header may announce; 0 means no cap.
	MaxImageSize int
	Conn            transport.Options
	Logger          zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		ServiceName:     "shop",
		PoolSize:        4,
		DialTimeout:     3 * time.Second,
		ChunkSize:       32 << 10,
		TransferTimeout: time.Minute,
		MaxImageSize:    10 << 20,
		Conn:            transport.DefaultOptions(),
		Logger:          zerolog.Nop(),
	}
}

type Client struct {
	reg      registry.Registry
	balancer loadbalance.Balancer
	affinity *loadbalance.ConsistentHashBalancer
	opts     Options
	log      zerolog.Logger

	mu     sync.Mutex
	pools  map[string]*transport.Pool
	closed bool

	receivers sync.Map // *transport.Conn → *receiver
	downloads singleflight.Group
	stopWatch context.CancelFunc
}

// New returns a client over reg. Connections are dialled on first use.
func New(reg registry.Registry, bal loadbalance.Balancer, opts Options) *Client {
	if bal == nil {
		bal = &loadbalance.RoundRobinBalancer{}
	}
	def := DefaultOptions()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.TransferTimeout <= 0 {
		opts.TransferTimeout = def.TransferTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		reg:       reg,
		balancer:  bal,
		affinity:  loadbalance.NewConsistentHashBalancer(),
		opts:      opts,
		log:       opts.Logger.With().Str("component", "client").Logger(),
		pools:     make(map[string]*transport.Pool),
		stopWatch: cancel,
	}
	go c.watch(ctx)
	return c
}

// Dial returns a client bound to a single server address.
func Dial(addr string, opts Options) *Client {
	reg := registry.NewStatic()
	_ = reg.Register(context.Background(), opts.ServiceName, registry.ServiceInstance{Addr: addr, Weight: 1}, 0)
	return New(reg, nil, opts)
}

// watch closes the pools of servers that left the registry.
func (c *Client) watch(ctx context.Context) {
	for instances := range c.reg.Watch(ctx, c.opts.ServiceName) {
		live := make(map[string]bool, len(instances))
		for _, inst := range instances {
			live[inst.Addr] = true
		}
		c.mu.Lock()
		for addr, p := range c.pools {
			if !live[addr] {
				delete(c.pools, addr)
				p.Close()
				c.log.Info().Str("addr", addr).Msg("server left, pool closed")
			}
		}
		c.mu.Unlock()
	}
}

// Close closes every pool. Calls in flight fail.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pools := c.pools
	c.pools = nil
	c.mu.Unlock()

	c.stopWatch()
	for _, p := range pools {
		p.Close()
	}
	return nil
}

// conn borrows a connection to the server chosen for key; an empty key uses the balancer.
func (c *Client) conn(ctx context.Context, key string) (*transport.Conn, *transport.Pool, error) {
	instances, err := c.reg.Discover(ctx, c.opts.ServiceName)
	if err != nil {
		return nil, nil, fmt.Errorf("discover %s: %w", c.opts.ServiceName, err)
	}
	bal := c.balancer
	if key != "" {
		bal = c.affinity.For(key)
	}
	inst, err := bal.Pick(instances)
	if err != nil {
		return nil, nil, err
	}

	p, err := c.pool(inst.Addr)
	if err != nil {
		return nil, nil, err
	}
	conn, err := p.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", inst.Addr, err)
	}
	return conn, p, nil
}

func (c *Client) pool(addr string) (*transport.Pool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	p, ok := c.pools[addr]
	if !ok {
		p = transport.NewPool(addr, c.opts.PoolSize, c.dial)
		c.pools[addr] = p
	}
	return p, nil
}

func (c *Client) dial(ctx context.Context, addr string) (*transport.Conn, error) {
	if c.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.DialTimeout)
		defer cancel()
	}
	rc := newReceiver(c.log, c.opts.MaxImageSize)
	opts := c.opts.Conn
	opts.Observe = rc.observe
	opts.Handler = rc.handle
	opts.Logger = c.log
	conn, err := transport.Dial(ctx, addr, opts)
	if err != nil {
		return nil, err
	}
	c.receivers.Store(conn, rc)
	go func() {
		<-conn.Done()
		rc.close(conn.Err())
		c.receivers.Delete(conn)
	}()
	c.log.Debug().Str("addr", addr).Msg("connected")
	return conn, nil
}

func (c *Client) receiver(conn *transport.Conn) *receiver {
	v, _ := c.receivers.Load(conn)
	rc, _ := v.(*receiver)
	return rc
}

// do sends req and unwraps the typed response. ERROR_RESPONSE and failed statuses come
// back as *message.StatusError.
func do[T any](ctx context.Context, c *Client, req message.Body) (T, error) {
	var zero T
	conn, p, err := c.conn(ctx, "")
	if err != nil {
		return zero, err
	}
	body, err := conn.Call(ctx, req)
	p.Put(conn)
	if err != nil {
		return zero, err
	}
	resp, ok := body.(*message.Response[T])
	if !ok {
		return zero, fmt.Errorf("%w: %s answered with %s", message.ErrTypeMismatch, req.Type(), body.Type())
	}
	return resp.Value()
}
