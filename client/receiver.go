package client

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"shopwire/chunk"
	"shopwire/message"
	"shopwire/protocol"
	"shopwire/transport"
)

type delivery struct {
	data []byte
	err  error
}

// receiver reassembles the downloads of one connection. A transfer opens when its
// response header is observed, which happens on the read goroutine before any chunk
// behind it is read.
type receiver struct {
	transfers *chunk.Registry
	log       zerolog.Logger

	mu      sync.Mutex
	waiting map[uint32]chan delivery
}

func newReceiver(log zerolog.Logger, maxSize int) *receiver {
	return &receiver{
		transfers: chunk.NewRegistry(0, maxSize),
		log:       log,
		waiting:   make(map[uint32]chan delivery),
	}
}

func (r *receiver) expect(seq uint32) <-chan delivery {
	ch := make(chan delivery, 1)
	r.mu.Lock()
	r.waiting[seq] = ch
	r.mu.Unlock()
	return ch
}

func (r *receiver) forget(seq uint32) {
	r.mu.Lock()
	delete(r.waiting, seq)
	r.mu.Unlock()
	r.transfers.Abort(seq)
}

func (r *receiver) finish(seq uint32, d delivery) {
	r.mu.Lock()
	ch, ok := r.waiting[seq]
	delete(r.waiting, seq)
	r.mu.Unlock()
	if ok {
		ch <- d
	}
}

func (r *receiver) observe(f protocol.Frame) {
	if f.Type != protocol.DownloadImageResponse {
		return
	}
	r.mu.Lock()
	_, ok := r.waiting[f.Seq]
	r.mu.Unlock()
	if !ok {
		return
	}
	resp, err := message.DecodeAs[*message.DownloadImageResponse](f.Type, f.Payload)
	if err != nil || !resp.OK() {
		// the pending call reports these
		return
	}
	v := resp.Payload
	if err := r.transfers.Begin(f.Seq, int(v.TotalChunks), int(v.ChunkSize), int(v.Meta.FileSize)); err != nil {
		r.finish(f.Seq, delivery{err: err})
	}
}

func (r *receiver) handle(_ *transport.Conn, f protocol.Frame, err error) {
	if err != nil {
		return
	}
	switch f.Type {
	case protocol.ImageChunk:
		c, err := message.DecodeAs[*message.ImageChunk](f.Type, f.Payload)
		if err != nil {
			r.log.Warn().Err(err).Msg("dropping malformed image chunk")
			return
		}
		data, done, err := r.transfers.Add(*c)
		switch {
		case errors.Is(err, chunk.ErrUnknown):
			r.log.Debug().Uint32("transfer", c.TransferID).Msg("chunk for unknown transfer")
		case err != nil:
			r.finish(c.TransferID, delivery{err: err})
		case done:
			r.finish(c.TransferID, delivery{data: data})
		}
	case protocol.ErrorResponse:
		// a download failing after its header was answered
		e, err := message.DecodeAs[*message.ErrorResponse](f.Type, f.Payload)
		if err != nil {
			return
		}
		r.transfers.Abort(e.OriginalSeq)
		r.finish(e.OriginalSeq, delivery{err: &message.StatusError{Code: e.Code, Message: e.Message}})
	default:
		r.log.Debug().Stringer("type", f.Type).Uint32("seq", f.Seq).Msg("dropping unsolicited frame")
	}
}

// close fails every waiting download with err.
func (r *receiver) close(err error) {
	if err == nil {
		err = transport.ErrClosed
	}
	r.mu.Lock()
	waiting := r.waiting
	r.waiting = make(map[uint32]chan delivery)
	r.mu.Unlock()
	for _, ch := range waiting {
		ch <- delivery{err: err}
	}
	r.transfers.Clear()
}
