// Package transport runs the frame protocol over one connection.
//
// A Conn multiplexes many concurrent calls over a single stream. Each request gets a
// unique sequence id, and a background goroutine (recvLoop) reads every inbound frame and
// routes responses to the waiting caller through the Pending table.
//
//	goroutine-1 ──Call(seq=1)──┐
//	goroutine-2 ──Call(seq=2)──┼──→ single conn ──→ peer
//	goroutine-3 ──Call(seq=3)──┘
//
//	recvLoop: ←── response(seq=2) → Pending.Resolve → goroutine-2 wakes up
//	          ←── request / chunk  → Handler
//
// The same Conn serves both ends: a client mostly issues calls, a server mostly answers
// frames handed to its Handler. Both ends keep the link alive with heartbeats.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"shopwire/message"
	"shopwire/protocol"
)

// Handler receives every inbound frame the connection does not consume itself: requests,
// image chunks, and frames whose header carried a recoverable fault (err is then set and
// the frame holds only its header). It runs on the read goroutine, so a Handler that
// blocks stalls the connection.
type Handler func(c *Conn, f protocol.Frame, err error)

// Options configures a Conn. Zero durations disable the matching behaviour.
type Options struct {
	// HeartbeatInterval is how long the write side may stay idle before a heartbeat goes out.
	HeartbeatInterval time.Duration
	// DeadAfter closes the connection with ErrPeerDead when nothing arrived for this long.
	DeadAfter time.Duration
	// CallTimeout bounds every Call.
	CallTimeout time.Duration
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration
	// MaxCorruptFrames closes the connection after this many consecutive corrupt frames.
	MaxCorruptFrames int

	// Observe sees each well-formed frame before it is routed, on the read goroutine.
	Observe func(f protocol.Frame)
	Handler Handler
	Logger  zerolog.Logger
}

// DefaultOptions mirrors the shipped configuration.
func DefaultOptions() Options {
	return Options{
		HeartbeatInterval: 10 * time.Second,
		DeadAfter:         30 * time.Second,
		CallTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxCorruptFrames:  8,
		Logger:            zerolog.Nop(),
	}
}

// Conn is one framed connection.
type Conn struct {
	conn    net.Conn
	opts    Options
	pending *Pending
	log     zerolog.Logger

	writeMu sync.Mutex // whole frames only, or bytes of concurrent frames interleave

	lastRecv atomic.Int64 // unix nanos
	lastSend atomic.Int64
	corrupt  atomic.Uint64

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// NewConn wraps nc and starts its read and keepalive goroutines.
func NewConn(nc net.Conn, opts Options) *Conn {
	c := &Conn{
		conn:    nc,
		opts:    opts,
		pending: NewPending(),
		log:     opts.Logger.With().Str("remote", nc.RemoteAddr().String()).Logger(),
		closed:  make(chan struct{}),
	}
	now := time.Now().UnixNano()
	c.lastRecv.Store(now)
	c.lastSend.Store(now)

	go c.recvLoop()
	if opts.HeartbeatInterval > 0 || opts.DeadAfter > 0 {
		go c.keepalive()
	}
	return c
}

// Dial connects to addr and wraps the connection.
func Dial(ctx context.Context, addr string, opts Options) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConn(nc, opts), nil
}

// Write sends one frame. Frames are written whole, never interleaved.
func (c *Conn) Write(t protocol.MessageType, seq uint32, payload []byte) error {
	buf, err := protocol.EncodeFrame(t, seq, payload)
	if err != nil {
		return err
	}
	if len(buf) > protocol.MaxFrameSize {
		return fmt.Errorf("%w: %s is %d bytes", protocol.ErrFrameTooLarge, t, len(buf))
	}
	select {
	case <-c.closed:
		return c.closeErr
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.opts.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			c.closeWith(fmt.Errorf("%w: %v", ErrClosed, err))
			return err
		}
	}
	if _, err := c.conn.Write(buf); err != nil {
		c.closeWith(fmt.Errorf("%w: %v", ErrClosed, err))
		return err
	}
	c.lastSend.Store(time.Now().UnixNano())
	return nil
}

// Send encodes b and writes it under seq.
func (c *Conn) Send(seq uint32, b message.Body) error {
	payload, err := message.Encode(b)
	if err != nil {
		return err
	}
	return c.Write(b.Type(), seq, payload)
}

// NextSeq returns a fresh sequence id for StartSeq, for callers that key state by the id
// before the request goes out.
func (c *Conn) NextSeq() uint32 {
	return c.pending.Next()
}

// Start sends req and returns the pending call without waiting for it.
func (c *Conn) Start(req message.Body) (*Call, error) {
	return c.StartTimeout(req, c.opts.CallTimeout)
}

// StartTimeout is Start with its own timeout in place of Options.CallTimeout; 0 means none.
func (c *Conn) StartTimeout(req message.Body, timeout time.Duration) (*Call, error) {
	call, err := c.pending.Open(req.Type(), timeout)
	if err != nil {
		return nil, err
	}
	return call, c.send(call, req)
}

// StartSeq is Start with a caller-chosen sequence id.
func (c *Conn) StartSeq(seq uint32, req message.Body) (*Call, error) {
	call, err := c.pending.Register(seq, req.Type(), c.opts.CallTimeout)
	if err != nil {
		return nil, err
	}
	return call, c.send(call, req)
}

func (c *Conn) send(call *Call, req message.Body) error {
	if err := c.Send(call.Seq, req); err != nil {
		c.pending.Fail(call.Seq, err)
		return err
	}
	return nil
}

// Call sends req and waits for its response, decoded. An ERROR_RESPONSE surfaces as a
// *message.StatusError. A typed response with a failure status is returned as is; its
// Value method turns it into an error.
func (c *Conn) Call(ctx context.Context, req message.Body) (message.Body, error) {
	return c.CallTimeout(ctx, req, c.opts.CallTimeout)
}

// CallTimeout is Call with a per-call timeout. Running out of it ends the call as
// TimedOut with ErrTimeout, where a ctx deadline ends it as Cancelled.
func (c *Conn) CallTimeout(ctx context.Context, req message.Body, timeout time.Duration) (message.Body, error) {
	call, err := c.StartTimeout(req, timeout)
	if err != nil {
		return nil, err
	}
	return c.Wait(ctx, call)
}

// Wait waits for call and decodes its response.
func (c *Conn) Wait(ctx context.Context, call *Call) (message.Body, error) {
	f, err := call.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return message.Decode(f.Type, f.Payload)
}

// Pending exposes the correlation table, mostly for inspection.
func (c *Conn) Pending() *Pending {
	return c.pending
}

// CorruptFrames returns how many corrupt frames were discarded so far.
func (c *Conn) CorruptFrames() uint64 {
	return c.corrupt.Load()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Done is closed once the connection is down.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Err returns why the connection closed, or nil while it is open.
func (c *Conn) Err() error {
	select {
	case <-c.closed:
		return c.closeErr
	default:
		return nil
	}
}

// Close shuts the connection; pending calls fail with ErrClosed.
func (c *Conn) Close() error {
	c.closeWith(ErrClosed)
	return nil
}

func (c *Conn) closeWith(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		c.conn.Close()
		close(c.closed)
		c.pending.FailAll(err)
		if errors.Is(err, ErrClosed) {
			c.log.Debug().Err(err).Msg("connection closed")
		} else {
			c.log.Warn().Err(err).Msg("connection closed")
		}
	})
}

// recvLoop is the single reader: frame boundaries can only be found reading in order.
func (c *Conn) recvLoop() {
	consecutive := 0
	for {
		// Step 1: Block until one whole frame is read
		f, err := protocol.ReadFrame(c.conn)
		if err != nil {
			// Step 2: Sort the failure. A foreign version still proves the peer is alive
			if errors.Is(err, protocol.ErrUnsupportedVersion) {
				c.lastRecv.Store(time.Now().UnixNano())
				consecutive = 0
				c.log.Debug().Uint32("seq", f.Seq).Uint16("version", f.Version).Msg("unsupported version")
				if c.opts.Handler != nil {
					c.opts.Handler(c, f, err)
				}
				continue
			}
			// Corrupt but framed: drop it and keep reading, up to MaxCorruptFrames in a row
			if protocol.IsCorruption(err) {
				c.corrupt.Add(1)
				consecutive++
				c.log.Warn().Err(err).Int("consecutive", consecutive).Msg("discarding corrupt frame")
				if protocol.IsFatal(err) {
					c.closeWith(err)
					return
				}
				if c.opts.MaxCorruptFrames > 0 && consecutive >= c.opts.MaxCorruptFrames {
					c.closeWith(fmt.Errorf("%w: %d consecutive corrupt frames", err, consecutive))
					return
				}
				continue
			}
			// Anything else is the socket itself failing
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				err = ErrClosed
			} else {
				err = fmt.Errorf("%w: %v", ErrClosed, err)
			}
			c.closeWith(err)
			return
		}

		// Step 3: Any good frame counts as a sign of life
		consecutive = 0
		c.lastRecv.Store(time.Now().UnixNano())
		if c.opts.Observe != nil {
			c.opts.Observe(f)
		}
		// Heartbeats carry nothing beyond that
		if f.Type == protocol.Heartbeat {
			continue
		}
		// Step 4: Responses wake their caller; the rest goes to the Handler
		if c.pending.Resolve(f) {
			continue
		}
		if c.opts.Handler != nil {
			c.opts.Handler(c, f, nil)
			continue
		}
		c.log.Debug().Stringer("type", f.Type).Uint32("seq", f.Seq).Msg("dropping unsolicited frame")
	}
}

// keepalive sends a heartbeat whenever the write side went idle, and declares the peer
// dead when the read side stayed silent past DeadAfter.
func (c *Conn) keepalive() {
	tick := c.opts.HeartbeatInterval
	if tick <= 0 || (c.opts.DeadAfter > 0 && c.opts.DeadAfter < tick) {
		tick = c.opts.DeadAfter
	}
	ticker := time.NewTicker(tick / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case now := <-ticker.C:
			if c.opts.DeadAfter > 0 && now.Sub(time.Unix(0, c.lastRecv.Load())) >= c.opts.DeadAfter {
				c.closeWith(fmt.Errorf("%w: silent for %s", ErrPeerDead, c.opts.DeadAfter))
				return
			}
			if c.opts.HeartbeatInterval > 0 && now.Sub(time.Unix(0, c.lastSend.Load())) >= c.opts.HeartbeatInterval {
				if err := c.Send(0, message.NewHeartbeat(now)); err != nil {
					return
				}
			}
		}
	}
}
