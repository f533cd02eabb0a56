// Package chunk splits images into frame-sized pieces and reassembles them.
//
// A transfer is announced by a header frame (UPLOAD_IMAGE_REQUEST or DOWNLOAD_IMAGE_RESPONSE)
// whose sequence id becomes the transfer id. The bytes then follow as IMAGE_CHUNK frames
// numbered 0..total-1, strictly in order. Every chunk except the last carries exactly
// chunkSize bytes.
//
//	header(seq=7, total=3, chunkSize=4)
//	chunk(transfer=7, index=0, "abcd")
//	chunk(transfer=7, index=1, "efgh")
//	chunk(transfer=7, index=2, "ij")     ← final chunk may be short
package chunk

import (
	"errors"
	"fmt"

	"shopwire/message"
	"shopwire/protocol"
)

// MaxChunkSize is the largest chunk whose IMAGE_CHUNK frame still fits in one frame.
const MaxChunkSize = protocol.MaxBodySize - protocol.ChecksumSize - message.ChunkOverhead

var (
	ErrChunkSize    = errors.New("chunk: invalid chunk size")
	ErrOutOfOrder   = errors.New("chunk: chunk out of order")
	ErrUnknown      = errors.New("chunk: unknown transfer")
	ErrDuplicate    = errors.New("chunk: transfer already in progress")
	ErrAborted      = errors.New("chunk: transfer aborted")
	ErrPlanMismatch = errors.New("chunk: chunk count does not match size")
	ErrBusy         = errors.New("chunk: too many transfers in flight")
	ErrTooLarge     = errors.New("chunk: transfer exceeds size limit")
)

// Plan returns how many chunks a payload of size bytes needs and the length of the final
// one. An empty payload is a single empty chunk, so every transfer carries at least one
// IMAGE_CHUNK frame.
func Plan(size, chunkSize int) (total, last int, err error) {
	if chunkSize <= 0 || chunkSize > MaxChunkSize {
		return 0, 0, fmt.Errorf("%w: %d", ErrChunkSize, chunkSize)
	}
	if size < 0 {
		return 0, 0, fmt.Errorf("%w: negative size %d", ErrChunkSize, size)
	}
	if size == 0 {
		return 1, 0, nil
	}
	total = (size + chunkSize - 1) / chunkSize
	last = size - (total-1)*chunkSize
	return total, last, nil
}

// Split cuts data into ordered chunks for transfer id. The chunks alias data.
func Split(transfer uint32, data []byte, chunkSize int) ([]message.ImageChunk, error) {
	total, _, err := Plan(len(data), chunkSize)
	if err != nil {
		return nil, err
	}
	chunks := make([]message.ImageChunk, total)
	for i := range chunks {
		start := i * chunkSize
		end := min(start+chunkSize, len(data))
		var part []byte
		if end > start {
			part = data[start:end]
		}
		chunks[i] = message.ImageChunk{TransferID: transfer, Index: uint32(i), Data: part}
	}
	return chunks, nil
}
