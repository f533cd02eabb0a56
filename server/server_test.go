package server

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopwire/chunk"
	"shopwire/message"
	"shopwire/protocol"
	"shopwire/transport"
)

func quiet() transport.Options {
	o := transport.DefaultOptions()
	o.HeartbeatInterval = 0
	o.DeadAfter = 0
	o.CallTimeout = 2 * time.Second
	return o
}

// testMux answers registration with the username length, stores uploads and serves
// them back as downloads.
func testMux(images *sync.Map) *Mux {
	mux := NewMux()
	Handle(mux, func(ctx context.Context, req *message.RegisterRequest) *message.RegisterResponse {
		if req.Username == "slow" {
			time.Sleep(200 * time.Millisecond)
		}
		return message.OK(message.RegisterResult{UserID: int32(len(req.Username))})
	})
	Handle(mux, func(ctx context.Context, req *message.UploadImageRequest) *message.UploadImageResponse {
		id := fmt.Sprintf("img-%d", len(req.Data))
		images.Store(id, req.Data)
		return message.OK(message.UploadImageResult{ImageID: id, ImageURL: "/images/" + id})
	})
	Handle(mux, func(ctx context.Context, req *message.DownloadImageRequest) *message.DownloadImageResponse {
		v, ok := images.Load(req.ImageID)
		if !ok {
			return message.Fail[message.DownloadImageResult](protocol.ResourceNotFound, "no image %s", req.ImageID)
		}
		return message.OK(message.DownloadImageResult{
			Meta: message.ImageMeta{Type: req.ImageType, Filename: req.ImageID, Format: "png"},
			Data: v.([]byte),
		})
	})
	return mux
}

func startServer(t *testing.T, opts Options) (*Server, *sync.Map) {
	t.Helper()
	images := new(sync.Map)
	srv := NewServer(testMux(images), opts)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.ServeListener(ln, "", nil)
	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, 5*time.Millisecond)
	t.Cleanup(func() { srv.Shutdown(time.Second) })
	return srv, images
}

func dial(t *testing.T, srv *Server, opts transport.Options) *transport.Conn {
	t.Helper()
	c, err := transport.Dial(context.Background(), srv.Addr().String(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Conn = quiet()
	opts.ChunkSize = 16
	opts.MaxImageSize = 1 << 10
	return opts
}

func TestServerDispatch(t *testing.T) {
	srv, _ := startServer(t, testOptions())
	c := dial(t, srv, quiet())

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			resp, err := c.Call(context.Background(), &message.RegisterRequest{Username: string(bytes.Repeat([]byte("u"), n))})
			require.NoError(t, err)
			v, err := resp.(*message.RegisterResponse).Value()
			require.NoError(t, err)
			assert.Equal(t, int32(n), v.UserID)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, srv.Sessions())
}

func TestServerUnhandledRequest(t *testing.T) {
	srv, _ := startServer(t, testOptions())
	c := dial(t, srv, quiet())

	resp, err := c.Call(context.Background(), &message.LoginRequest{Username: "a", Password: "b"})
	require.NoError(t, err)
	login, ok := resp.(*message.LoginResponse)
	require.True(t, ok)
	assert.Equal(t, protocol.InvalidRequest, login.Code)
}

func TestServerRejectsFrames(t *testing.T) {
	srv, _ := startServer(t, testOptions())
	c := dial(t, srv, quiet())

	good, err := message.Encode(&message.LoginRequest{Username: "a", Password: "b"})
	require.NoError(t, err)

	testCases := []struct {
		name    string
		typ     protocol.MessageType
		payload []byte
	}{
		{name: "response sent as request", typ: protocol.LoginResponse, payload: []byte{0, 0, 0, 0}},
		{name: "unknown type", typ: protocol.MessageType(999), payload: nil},
		{name: "truncated body", typ: protocol.LoginRequest, payload: good[:len(good)-1]},
		{name: "trailing bytes", typ: protocol.LoginRequest, payload: append(append([]byte{}, good...), 0)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			seq := c.NextSeq()
			call, err := c.Pending().Register(seq, protocol.LoginRequest, time.Second)
			require.NoError(t, err)
			require.NoError(t, c.Write(tc.typ, seq, tc.payload))

			_, err = call.Wait(context.Background())
			assert.Equal(t, protocol.InvalidRequest, message.CodeOf(err))
			assert.Equal(t, transport.Failed, call.Outcome())
		})
	}
}

func uploadHeader(data []byte, chunkSize int) *message.UploadImageRequest {
	total, _, _ := chunk.Plan(len(data), chunkSize)
	return &message.UploadImageRequest{
		Meta:        message.ImageMeta{Type: protocol.ProductMain, Filename: "a.png", Format: "png", FileSize: uint32(len(data)), RelatedID: 1},
		TotalChunks: uint32(total),
		ChunkSize:   uint32(chunkSize),
	}
}

func TestServerUpload(t *testing.T) {
	srv, images := startServer(t, testOptions())
	c := dial(t, srv, quiet())

	data := bytes.Repeat([]byte("0123456789"), 10)
	seq := c.NextSeq()
	call, err := c.StartSeq(seq, uploadHeader(data, 32))
	require.NoError(t, err)
	chunks, err := chunk.Split(seq, data, 32)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	for i := range chunks {
		require.NoError(t, c.Send(0, &chunks[i]))
	}

	resp, err := c.Wait(context.Background(), call)
	require.NoError(t, err)
	v, err := resp.(*message.UploadImageResponse).Value()
	require.NoError(t, err)
	assert.Equal(t, "img-100", v.ImageID)

	stored, ok := images.Load("img-100")
	require.True(t, ok)
	assert.Equal(t, data, stored)
}

func TestServerUploadTooLarge(t *testing.T) {
	srv, _ := startServer(t, testOptions())
	c := dial(t, srv, quiet())

	data := make([]byte, 2<<10)
	resp, err := c.Call(context.Background(), uploadHeader(data, 1024))
	require.NoError(t, err)
	assert.Equal(t, protocol.ImageTooLarge, resp.(*message.UploadImageResponse).Code)
}

func TestServerUploadOutOfOrder(t *testing.T) {
	srv, _ := startServer(t, testOptions())
	c := dial(t, srv, quiet())

	data := bytes.Repeat([]byte("x"), 64)
	seq := c.NextSeq()
	call, err := c.StartSeq(seq, uploadHeader(data, 16))
	require.NoError(t, err)
	chunks, err := chunk.Split(seq, data, 16)
	require.NoError(t, err)
	require.NoError(t, c.Send(0, &chunks[0]))
	require.NoError(t, c.Send(0, &chunks[2]))

	_, err = call.Wait(context.Background())
	assert.Equal(t, protocol.InvalidRequest, message.CodeOf(err))

	// the transfer is gone: the remaining chunks are dropped and the connection survives
	require.NoError(t, c.Send(0, &chunks[3]))
	resp, err := c.Call(context.Background(), &message.RegisterRequest{Username: "abc"})
	require.NoError(t, err)
	assert.True(t, resp.(*message.RegisterResponse).OK())
}

func TestServerUploadStalls(t *testing.T) {
	opts := testOptions()
	opts.TransferTimeout = 100 * time.Millisecond
	srv, _ := startServer(t, opts)
	c := dial(t, srv, quiet())

	data := bytes.Repeat([]byte("x"), 64)
	call, err := c.Start(uploadHeader(data, 16))
	require.NoError(t, err)

	_, err = call.Wait(context.Background())
	assert.Equal(t, protocol.OperationTimeout, message.CodeOf(err))
}

// downloads collects image chunks the way a client does: the transfer opens when the
// response header is observed, before the chunks behind it are read.
type downloads struct {
	reg  *chunk.Registry
	mu   sync.Mutex
	done map[uint32]chan []byte
}

func (d *downloads) observe(f protocol.Frame) {
	if f.Type != protocol.DownloadImageResponse {
		return
	}
	resp, err := message.DecodeAs[*message.DownloadImageResponse](f.Type, f.Payload)
	if err != nil || !resp.OK() {
		return
	}
	d.reg.Begin(f.Seq, int(resp.Payload.TotalChunks), int(resp.Payload.ChunkSize), int(resp.Payload.Meta.FileSize))
}

func (d *downloads) handle(_ *transport.Conn, f protocol.Frame, err error) {
	if err != nil || f.Type != protocol.ImageChunk {
		return
	}
	c, err := message.DecodeAs[*message.ImageChunk](f.Type, f.Payload)
	if err != nil {
		return
	}
	data, done, err := d.reg.Add(*c)
	if err != nil || !done {
		return
	}
	d.mu.Lock()
	ch := d.done[c.TransferID]
	d.mu.Unlock()
	ch <- data
}

func (d *downloads) expect(seq uint32) chan []byte {
	ch := make(chan []byte, 1)
	d.mu.Lock()
	d.done[seq] = ch
	d.mu.Unlock()
	return ch
}

func TestServerDownload(t *testing.T) {
	srv, images := startServer(t, testOptions())
	data := bytes.Repeat([]byte("abcdefg"), 9)
	images.Store("img-63", data)

	d := &downloads{reg: chunk.NewRegistry(0, 0), done: make(map[uint32]chan []byte)}
	opts := quiet()
	opts.Observe = d.observe
	opts.Handler = d.handle
	c := dial(t, srv, opts)

	seq := c.NextSeq()
	got := d.expect(seq)
	call, err := c.StartSeq(seq, &message.DownloadImageRequest{ImageID: "img-63", ImageType: protocol.ProductMain})
	require.NoError(t, err)
	resp, err := c.Wait(context.Background(), call)
	require.NoError(t, err)
	v, err := resp.(*message.DownloadImageResponse).Value()
	require.NoError(t, err)
	assert.Equal(t, uint32(63), v.Meta.FileSize)
	assert.Equal(t, uint32(4), v.TotalChunks)
	assert.Equal(t, uint32(16), v.ChunkSize)

	select {
	case b := <-got:
		assert.Equal(t, data, b)
	case <-time.After(2 * time.Second):
		t.Fatal("download never completed")
	}

	resp, err = c.Call(context.Background(), &message.DownloadImageRequest{ImageID: "missing", ImageType: protocol.ProductMain})
	require.NoError(t, err)
	assert.Equal(t, protocol.ResourceNotFound, resp.(*message.DownloadImageResponse).Code)
}

func TestServerShutdownWaitsForRequests(t *testing.T) {
	srv, _ := startServer(t, testOptions())
	c := dial(t, srv, quiet())

	call, err := c.Start(&message.RegisterRequest{Username: "slow"})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, srv.Shutdown(time.Second))
	f, err := call.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.RegisterResponse, f.Type)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("connection not closed after shutdown")
	}
}

func TestHandlePanicsOnMismatch(t *testing.T) {
	mux := NewMux()
	assert.Panics(t, func() {
		Handle(mux, func(ctx context.Context, req *message.LoginRequest) *message.RegisterResponse { return nil })
	})
	Handle(mux, func(ctx context.Context, req *message.LoginRequest) *message.LoginResponse { return nil })
	assert.True(t, mux.Handles(protocol.LoginRequest))
	assert.Panics(t, func() {
		Handle(mux, func(ctx context.Context, req *message.LoginRequest) *message.LoginResponse { return nil })
	})

	// a nil response becomes a typed failure
	resp := mux.Serve(context.Background(), &message.LoginRequest{})
	assert.Equal(t, protocol.UnknownError, resp.(*message.LoginResponse).Code)
}
