package client

import (
	"context"
	"fmt"
	"time"

	"shopwire/chunk"
	"shopwire/message"
)

// Upload sends data as a chunked upload described by meta. FileSize is taken from data.
func (c *Client) Upload(ctx context.Context, meta message.ImageMeta, data []byte) (message.UploadImageResult, error) {
	chunks, err := chunk.Split(0, data, c.opts.ChunkSize)
	if err != nil {
		return message.UploadImageResult{}, err
	}
	meta.FileSize = uint32(len(data))

	conn, p, err := c.conn(ctx, "")
	if err != nil {
		return message.UploadImageResult{}, err
	}
	defer p.Put(conn)

	// the header's sequence id names the transfer, so it is chosen before anything is sent
	seq := conn.NextSeq()
	call, err := conn.StartSeq(seq, &message.UploadImageRequest{
		Meta:        meta,
		TotalChunks: uint32(len(chunks)),
		ChunkSize:   uint32(c.opts.ChunkSize),
	})
	if err != nil {
		return message.UploadImageResult{}, err
	}
send:
	for i := range chunks {
		chunks[i].TransferID = seq
		if err := conn.Send(0, &chunks[i]); err != nil {
			return message.UploadImageResult{}, fmt.Errorf("upload chunk %d: %w", i, err)
		}
		select {
		case <-call.Done():
			// refused early; the remaining chunks would be dropped anyway
			break send
		default:
		}
	}

	body, err := conn.Wait(ctx, call)
	if err != nil {
		return message.UploadImageResult{}, err
	}
	resp, ok := body.(*message.UploadImageResponse)
	if !ok {
		return message.UploadImageResult{}, fmt.Errorf("%w: upload answered with %s", message.ErrTypeMismatch, body.Type())
	}
	return resp.Value()
}

// Download fetches an image. Concurrent downloads of the same id share one transfer, and
// downloads of an id keep going to the same server while the server set is stable. The
// returned Data may be shared with other callers and must not be modified.
func (c *Client) Download(ctx context.Context, req message.DownloadImageRequest) (message.DownloadImageResult, error) {
	ch := c.downloads.DoChan(req.ImageID, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.TransferTimeout)
		defer cancel()
		return c.download(ctx, req)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return message.DownloadImageResult{}, res.Err
		}
		return res.Val.(message.DownloadImageResult), nil
	case <-ctx.Done():
		return message.DownloadImageResult{}, ctx.Err()
	}
}

func (c *Client) download(ctx context.Context, req message.DownloadImageRequest) (message.DownloadImageResult, error) {
	var zero message.DownloadImageResult
	conn, p, err := c.conn(ctx, req.ImageID)
	if err != nil {
		return zero, err
	}
	defer p.Put(conn)
	rc := c.receiver(conn)
	if rc == nil {
		return zero, conn.Err()
	}

	seq := conn.NextSeq()
	done := rc.expect(seq)
	defer rc.forget(seq)

	start := time.Now()
	call, err := conn.StartSeq(seq, &req)
	if err != nil {
		return zero, err
	}
	body, err := conn.Wait(ctx, call)
	if err != nil {
		return zero, err
	}
	resp, ok := body.(*message.DownloadImageResponse)
	if !ok {
		return zero, fmt.Errorf("%w: download answered with %s", message.ErrTypeMismatch, body.Type())
	}
	v, err := resp.Value()
	if err != nil {
		return zero, err
	}

	select {
	case d := <-done:
		if d.err != nil {
			return zero, fmt.Errorf("download %s: %w", req.ImageID, d.err)
		}
		v.Data = d.data
	case <-ctx.Done():
		return zero, fmt.Errorf("download %s: %w", req.ImageID, ctx.Err())
	}
	c.log.Debug().Str("image", req.ImageID).Int("bytes", len(v.Data)).Dur("took", time.Since(start)).Msg("downloaded")
	return v, nil
}
