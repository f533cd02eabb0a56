// Package server answers shop requests over the frame protocol.
//
// Request processing pipeline:
//
//	Accept conn → transport.Conn (single reader per connection)
//	  → session.handle: reject what cannot be a request, reassemble uploads
//	    → go dispatch (parallel processing)
//	      → Middleware Chain → Mux → typed handler → write response (+ image chunks)
//
// A rejected frame is answered with ERROR_RESPONSE/INVALID_REQUEST echoing its sequence
// id. Failures a handler reports travel inside its typed response instead.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"shopwire/chunk"
	"shopwire/message"
	"shopwire/middleware"
	"shopwire/protocol"
	"shopwire/registry"
	"shopwire/transport"
)

// Options configures a Server.
type Options struct {
	Conn transport.Options

	// ServiceName is the name registered for discovery.
	ServiceName string
	// RegisterTTL is the discovery lease in seconds.
	RegisterTTL int64

	// MaxImageSize bounds a single upload.
	MaxImageSize int
	// ChunkSize is the chunk length used for downloads.
	ChunkSize int
	// MaxTransfers bounds concurrent uploads per connection.
	MaxTransfers int
	// TransferTimeout aborts an upload whose chunks stop arriving.
	TransferTimeout time.Duration

	Logger zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		Conn:            transport.DefaultOptions(),
		ServiceName:     "shop",
		RegisterTTL:     10,
		MaxImageSize:    10 << 20,
		ChunkSize:       32 << 10,
		MaxTransfers:    8,
		TransferTimeout: time.Minute,
		Logger:          zerolog.Nop(),
	}
}

// Server accepts connections and dispatches their requests to a Mux.
type Server struct {
	mux  *Mux
	opts Options
	log  zerolog.Logger

	wg          sync.WaitGroup // in-flight requests, for graceful shutdown
	shutdown    atomic.Bool    // set before the listener closes so Accept errors read as intentional
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc // Chain(middlewares...)(mux.Serve)

	mu            sync.Mutex
	listener      net.Listener
	registry      registry.Registry
	advertiseAddr string
	sessions      map[*session]struct{}
}

func NewServer(mux *Mux, opts Options) *Server {
	return &Server{
		mux:      mux,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "server").Logger(),
		sessions: make(map[*session]struct{}),
	}
}

// Use registers a middleware. Middlewares run in the order they are added.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// Serve listens on address and serves until Shutdown. When reg is set, the server
// registers advertiseAddr, a routable address rather than the listen address, under
// Options.ServiceName.
func (s *Server) Serve(network, address, advertiseAddr string, reg registry.Registry) error {
	ln, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return s.ServeListener(ln, advertiseAddr, reg)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ln net.Listener, advertiseAddr string, reg registry.Registry) error {
	s.handler = middleware.Chain(s.middlewares...)(s.mux.Serve)

	s.mu.Lock()
	s.listener = ln
	s.registry = reg
	s.advertiseAddr = advertiseAddr
	s.mu.Unlock()

	if reg != nil {
		inst := registry.ServiceInstance{Addr: advertiseAddr, Weight: 1, Version: fmt.Sprint(protocol.Version)}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := reg.Register(ctx, s.opts.ServiceName, inst, s.opts.RegisterTTL)
		cancel()
		if err != nil {
			ln.Close()
			return fmt.Errorf("server: register %s: %w", advertiseAddr, err)
		}
	}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("serving")

	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		s.startSession(nc)
	}
}

// Addr returns the listen address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Sessions returns the number of open connections.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown stops the server gracefully:
//  1. deregister, so clients stop picking this server
//  2. close the listener
//  3. wait for in-flight requests, up to timeout
//  4. close every connection
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	ln, reg, addr := s.listener, s.registry, s.advertiseAddr
	s.mu.Unlock()

	if reg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := reg.Deregister(ctx, s.opts.ServiceName, addr); err != nil {
			s.log.Warn().Err(err).Msg("deregister failed")
		}
		cancel()
	}

	s.shutdown.Store(true)
	if ln != nil {
		ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = errors.New("server: timeout waiting for ongoing requests to finish")
	}

	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.conn.Close()
	}
	return err
}

func (s *Server) startSession(nc net.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		srv:     s,
		ctx:     ctx,
		remote:  nc.RemoteAddr().String(),
		ready:   make(chan struct{}),
		uploads: chunk.NewRegistry(s.opts.MaxTransfers, s.opts.MaxImageSize),
		headers: make(map[uint32]*message.UploadImageRequest),
	}
	opts := s.opts.Conn
	opts.Logger = s.opts.Logger
	opts.Handler = sess.handle
	sess.log = s.log.With().Str("remote", sess.remote).Logger()

	sess.conn = transport.NewConn(nc, opts)
	close(sess.ready)
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	sess.log.Debug().Msg("connection accepted")

	go func() {
		sess.sweep()
		cancel()
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
	}()
}

// dispatch runs req through the middleware chain on its own goroutine, so a slow
// handler never holds up the connection's other requests.
func (s *Server) dispatch(sess *session, seq uint32, req message.Body) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := middleware.WithInfo(sess.ctx, middleware.Info{Seq: seq, Remote: sess.remote})
		sess.reply(seq, s.handler(ctx, req))
	}()
}

// session is the per-connection state: the uploads in flight and their header frames.
type session struct {
	srv    *Server
	conn   *transport.Conn
	ctx    context.Context // cancelled when the connection goes down
	remote string
	log    zerolog.Logger
	ready  chan struct{} // closed once conn is set

	uploads *chunk.Registry
	mu      sync.Mutex
	headers map[uint32]*message.UploadImageRequest
}

// handle runs on the connection's read goroutine for every frame that is not a response
// or heartbeat.
func (sess *session) handle(_ *transport.Conn, f protocol.Frame, err error) {
	<-sess.ready
	if err != nil {
		sess.reject(f.Seq, protocol.InvalidRequest, err.Error())
		return
	}
	switch {
	case f.Type == protocol.ImageChunk:
		sess.addChunk(f)
		return
	case f.Type == protocol.ErrorResponse:
		sess.log.Debug().Uint32("seq", f.Seq).Msg("ignoring error response from client")
		return
	case !message.IsRequest(f.Type):
		sess.reject(f.Seq, protocol.InvalidRequest, fmt.Sprintf("%s is not a request", f.Type))
		return
	}

	body, err := message.Decode(f.Type, f.Payload)
	if err != nil {
		sess.reject(f.Seq, protocol.InvalidRequest, err.Error())
		return
	}
	if up, ok := body.(*message.UploadImageRequest); ok {
		sess.beginUpload(f.Seq, up)
		return
	}
	sess.srv.dispatch(sess, f.Seq, body)
}

// beginUpload opens the transfer named by the header's sequence id. The chunks are
// read after this returns, so the transfer always exists before its first chunk.
func (sess *session) beginUpload(seq uint32, up *message.UploadImageRequest) {
	if limit := sess.srv.opts.MaxImageSize; limit > 0 && int(up.Meta.FileSize) > limit {
		sess.reply(seq, message.Fail[message.UploadImageResult](protocol.ImageTooLarge,
			"image is %d bytes, limit %d", up.Meta.FileSize, limit))
		return
	}
	err := sess.uploads.Begin(seq, int(up.TotalChunks), int(up.ChunkSize), int(up.Meta.FileSize))
	if err != nil {
		sess.reply(seq, message.Fail[message.UploadImageResult](protocol.InvalidRequest, "%v", err))
		return
	}
	sess.mu.Lock()
	sess.headers[seq] = up
	sess.mu.Unlock()
}

func (sess *session) addChunk(f protocol.Frame) {
	c, err := message.DecodeAs[*message.ImageChunk](f.Type, f.Payload)
	if err != nil {
		sess.log.Warn().Err(err).Msg("dropping malformed image chunk")
		return
	}
	data, done, err := sess.uploads.Add(*c)
	if errors.Is(err, chunk.ErrUnknown) {
		// chunks of a refused upload keep coming after the refusal
		sess.log.Debug().Uint32("transfer", c.TransferID).Msg("dropping chunk of unknown transfer")
		return
	}
	if err != nil {
		sess.takeHeader(c.TransferID)
		sess.log.Warn().Err(err).Uint32("transfer", c.TransferID).Msg("upload aborted")
		sess.reject(c.TransferID, protocol.InvalidRequest, err.Error())
		return
	}
	if !done {
		return
	}
	up := sess.takeHeader(c.TransferID)
	if up == nil {
		return
	}
	up.Data = data
	sess.srv.dispatch(sess, c.TransferID, up)
}

func (sess *session) takeHeader(id uint32) *message.UploadImageRequest {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	up := sess.headers[id]
	delete(sess.headers, id)
	return up
}

// sweep aborts stalled uploads until the connection closes.
func (sess *session) sweep() {
	timeout := sess.srv.opts.TransferTimeout
	if timeout <= 0 {
		<-sess.conn.Done()
		sess.uploads.Clear()
		return
	}
	ticker := time.NewTicker(timeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-sess.conn.Done():
			sess.uploads.Clear()
			return
		case <-ticker.C:
			for _, id := range sess.uploads.Expire(timeout) {
				sess.takeHeader(id)
				sess.reject(id, protocol.OperationTimeout, "upload timed out")
			}
		}
	}
}

func (sess *session) reject(seq uint32, code protocol.ErrorCode, msg string) {
	sess.log.Debug().Uint32("seq", seq).Stringer("code", code).Str("reason", msg).Msg("rejecting frame")
	if err := sess.conn.Send(seq, &message.ErrorResponse{Code: code, Message: msg, OriginalSeq: seq}); err != nil {
		sess.log.Debug().Err(err).Msg("failed to write error response")
	}
}

// reply writes the response to the request with sequence id seq. A successful
// download goes out as its header followed by the image chunks.
func (sess *session) reply(seq uint32, resp message.Body) {
	switch r := resp.(type) {
	case *message.ErrorResponse:
		if r.OriginalSeq == 0 {
			r.OriginalSeq = seq
		}
	case *message.DownloadImageResponse:
		if r.OK() {
			sess.sendImage(seq, r)
			return
		}
	}

	err := sess.conn.Send(seq, resp)
	if err == nil {
		return
	}
	if sess.conn.Err() != nil {
		sess.log.Debug().Err(err).Uint32("seq", seq).Msg("connection gone before response")
		return
	}
	// the response itself could not be framed
	sess.log.Error().Err(err).Uint32("seq", seq).Stringer("type", resp.Type()).Msg("failed to send response")
	sess.reject(seq, protocol.UnknownError, "response could not be encoded")
}

func (sess *session) sendImage(seq uint32, r *message.DownloadImageResponse) {
	data := r.Payload.Data
	size := sess.srv.opts.ChunkSize
	total, _, err := chunk.Plan(len(data), size)
	if err != nil {
		sess.reject(seq, protocol.UnknownError, err.Error())
		return
	}
	chunks, err := chunk.Split(seq, data, size)
	if err != nil {
		sess.reject(seq, protocol.UnknownError, err.Error())
		return
	}
	r.Payload.Meta.FileSize = uint32(len(data))
	r.Payload.TotalChunks = uint32(total)
	r.Payload.ChunkSize = uint32(size)

	if err := sess.conn.Send(seq, r); err != nil {
		sess.log.Debug().Err(err).Uint32("seq", seq).Msg("failed to send download header")
		return
	}
	for i := range chunks {
		if err := sess.conn.Send(0, &chunks[i]); err != nil {
			sess.log.Debug().Err(err).Uint32("transfer", seq).Msg("download interrupted")
			return
		}
	}
}
