package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shopwire/message"
	"shopwire/protocol"
)

var (
	ErrTimeout   = errors.New("transport: call timed out")
	ErrClosed    = errors.New("transport: connection closed")
	ErrPeerDead  = errors.New("transport: peer stopped responding")
	ErrSeqInUse  = errors.New("transport: sequence id already pending")
	ErrReserved  = errors.New("transport: sequence id 0 is reserved")
	ErrNoRequest = errors.New("transport: not a request type")
)

// Outcome is how a pending call ended.
type Outcome int

const (
	Waiting Outcome = iota
	Resolved
	Failed
	TimedOut
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Waiting:
		return "waiting"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed out"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Call is one outstanding request. It ends exactly once.
type Call struct {
	Seq     uint32
	Request protocol.MessageType

	p     *Pending
	timer *time.Timer
	done  chan struct{}

	// set once, before done is closed
	outcome Outcome
	frame   protocol.Frame
	err     error
}

// Done is closed when the call has ended.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Outcome returns how the call ended, or Waiting.
func (c *Call) Outcome() Outcome {
	select {
	case <-c.done:
		return c.outcome
	default:
		return Waiting
	}
}

// Wait blocks until the call ends or ctx is done. A ctx cancellation ends the call as
// Cancelled unless a response won the race.
func (c *Call) Wait(ctx context.Context) (protocol.Frame, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		c.p.finish(c.Seq, c, Cancelled, protocol.Frame{}, ctx.Err())
		<-c.done
	}
	return c.frame, c.err
}

// Pending is the correlation table of one connection: sequence id to waiting call.
//
//	goroutine-1 ──Register(seq=1)──┐
//	goroutine-2 ──Register(seq=2)──┼──→ calls{1,2,3}
//	goroutine-3 ──Register(seq=3)──┘
//
//	recvLoop: ←── response(seq=2) → Resolve → calls[2] ends → goroutine-2 wakes up
//
// One mutex guards the table, so a response, its timeout and a cancellation can race
// freely and exactly one of them ends the call.
type Pending struct {
	mu     sync.Mutex
	seq    uint32
	calls  map[uint32]*Call
	closed error
}

func NewPending() *Pending {
	return &Pending{calls: make(map[uint32]*Call)}
}

// Next returns a fresh sequence id. Ids increase monotonically and wrap, skipping 0 and
// any id whose call is still pending.
func (p *Pending) Next() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextLocked()
}

func (p *Pending) nextLocked() uint32 {
	for {
		p.seq++
		if p.seq == 0 {
			continue
		}
		if _, busy := p.calls[p.seq]; !busy {
			return p.seq
		}
	}
}

// Register records a call for seq answering a request of type req. A timeout of zero
// means the call waits until resolved, cancelled or the table is closed.
func (p *Pending) Register(seq uint32, req protocol.MessageType, timeout time.Duration) (*Call, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq == 0 {
		return nil, ErrReserved
	}
	if _, busy := p.calls[seq]; busy {
		return nil, fmt.Errorf("%w: %d", ErrSeqInUse, seq)
	}
	return p.registerLocked(seq, req, timeout)
}

// Open allocates a sequence id and registers a call for it in one step.
func (p *Pending) Open(req protocol.MessageType, timeout time.Duration) (*Call, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registerLocked(p.nextLocked(), req, timeout)
}

func (p *Pending) registerLocked(seq uint32, req protocol.MessageType, timeout time.Duration) (*Call, error) {
	if p.closed != nil {
		return nil, p.closed
	}
	if !message.IsRequest(req) {
		return nil, fmt.Errorf("%w: %s", ErrNoRequest, req)
	}
	c := &Call{Seq: seq, Request: req, p: p, done: make(chan struct{})}
	if timeout > 0 {
		c.timer = time.AfterFunc(timeout, func() {
			p.finish(seq, c, TimedOut, protocol.Frame{}, fmt.Errorf("%w after %s: %s seq %d", ErrTimeout, timeout, req, seq))
		})
	}
	p.calls[seq] = c
	return c, nil
}

// Resolve hands an inbound frame to the call it answers. ERROR_RESPONSE is matched by
// the original sequence id it carries and fails the call with its status. A response of
// the wrong type fails the call with message.ErrTypeMismatch. Frames answering nothing
// pending, including late ones, are reported with false and otherwise ignored.
func (p *Pending) Resolve(f protocol.Frame) bool {
	if f.Type == protocol.ErrorResponse {
		er, err := message.DecodeAs[*message.ErrorResponse](f.Type, f.Payload)
		if err != nil {
			return false
		}
		return p.finish(er.OriginalSeq, nil, Failed, f, er.Err())
	}
	if f.Seq == 0 {
		return false
	}

	p.mu.Lock()
	c, ok := p.calls[f.Seq]
	p.mu.Unlock()
	if !ok {
		return false
	}
	if err := message.CheckResponse(c.Request, f.Type); err != nil {
		return p.finish(f.Seq, c, Failed, f, err)
	}
	return p.finish(f.Seq, c, Resolved, f, nil)
}

// Fail ends call seq with err.
func (p *Pending) Fail(seq uint32, err error) bool {
	return p.finish(seq, nil, Failed, protocol.Frame{}, err)
}

// FailAll ends every pending call with err and refuses new ones.
func (p *Pending) FailAll(err error) {
	p.mu.Lock()
	if p.closed == nil {
		p.closed = err
	}
	calls := p.calls
	p.calls = make(map[uint32]*Call)
	p.mu.Unlock()

	for _, c := range calls {
		c.end(Failed, protocol.Frame{}, err)
	}
}

// Len returns the number of pending calls.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// finish ends the call registered under seq if it is still there. When want is not nil
// the entry must still be that exact call, so a stale timer can never end a successor.
func (p *Pending) finish(seq uint32, want *Call, o Outcome, f protocol.Frame, err error) bool {
	p.mu.Lock()
	c, ok := p.calls[seq]
	if !ok || (want != nil && c != want) {
		p.mu.Unlock()
		return false
	}
	delete(p.calls, seq)
	p.mu.Unlock()

	c.end(o, f, err)
	return true
}

func (c *Call) end(o Outcome, f protocol.Frame, err error) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.outcome = o
	c.frame = f
	c.err = err
	close(c.done)
}
