package chunk

import (
	"fmt"
	"sync"
	"time"

	"shopwire/message"
)

// Assembler rebuilds one transfer from its chunks. Any violation aborts the transfer and
// drops the partial buffer; every later Add then fails with ErrAborted.
type Assembler struct {
	mu        sync.Mutex
	total     int
	chunkSize int
	size      int
	next      int
	buf       []byte
	aborted   bool
	started   time.Time
}

// NewAssembler prepares a transfer of size bytes announced as total chunks of chunkSize.
// The announcement must agree with Plan. The buffer grows as chunks arrive; only the
// first chunk is reserved up front.
func NewAssembler(total, chunkSize, size int) (*Assembler, error) {
	want, _, err := Plan(size, chunkSize)
	if err != nil {
		return nil, err
	}
	if total != want {
		return nil, fmt.Errorf("%w: %d bytes in %d-byte chunks needs %d chunks, announced %d",
			ErrPlanMismatch, size, chunkSize, want, total)
	}
	return &Assembler{
		total:     total,
		chunkSize: chunkSize,
		size:      size,
		buf:       make([]byte, 0, min(size, chunkSize)),
		started:   time.Now(),
	}, nil
}

// Add appends chunk index. It reports true once the final chunk is in.
func (a *Assembler) Add(index uint32, data []byte) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.aborted {
		return false, ErrAborted
	}
	if a.next == a.total || int64(index) != int64(a.next) {
		a.abort()
		return false, fmt.Errorf("%w: got %d, want %d", ErrOutOfOrder, index, a.next)
	}
	want := a.chunkSize
	if a.next == a.total-1 {
		want = a.size - len(a.buf)
	}
	if len(data) != want {
		a.abort()
		return false, fmt.Errorf("%w: chunk %d has %d bytes, want %d", ErrChunkSize, index, len(data), want)
	}
	a.buf = append(a.buf, data...)
	a.next++
	return a.next == a.total, nil
}

// Done reports whether every chunk has arrived.
func (a *Assembler) Done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.aborted && a.next == a.total
}

// Bytes returns the assembled payload, or nil while the transfer is incomplete.
func (a *Assembler) Bytes() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.aborted || a.next != a.total {
		return nil
	}
	return a.buf
}

// Received returns the number of chunks accepted so far.
func (a *Assembler) Received() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

// Abort drops the transfer.
func (a *Assembler) Abort() {
	a.mu.Lock()
	a.abort()
	a.mu.Unlock()
}

func (a *Assembler) abort() {
	a.aborted = true
	a.buf = nil
}

// Registry tracks the transfers in flight on one connection, keyed by transfer id.
type Registry struct {
	mu        sync.Mutex
	transfers map[uint32]*Assembler
	limit     int
	maxSize   int
}

// NewRegistry returns a registry holding at most limit concurrent transfers of at most
// maxSize bytes each. Zero means no limit for either.
func NewRegistry(limit, maxSize int) *Registry {
	return &Registry{transfers: make(map[uint32]*Assembler), limit: limit, maxSize: maxSize}
}

// Begin opens transfer id.
func (r *Registry) Begin(id uint32, total, chunkSize, size int) error {
	if r.maxSize > 0 && size > r.maxSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, size, r.maxSize)
	}
	a, err := NewAssembler(total, chunkSize, size)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transfers[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicate, id)
	}
	if r.limit > 0 && len(r.transfers) >= r.limit {
		return fmt.Errorf("%w: %d transfers open", ErrBusy, len(r.transfers))
	}
	r.transfers[id] = a
	return nil
}

// Add routes c to its transfer. When the transfer completes, the assembled bytes are
// returned and the transfer is forgotten. A failing transfer is forgotten as well.
func (r *Registry) Add(c message.ImageChunk) (data []byte, done bool, err error) {
	r.mu.Lock()
	a, ok := r.transfers[c.TransferID]
	r.mu.Unlock()
	if !ok {
		return nil, false, fmt.Errorf("%w: %d", ErrUnknown, c.TransferID)
	}

	done, err = a.Add(c.Index, c.Data)
	if err != nil || done {
		r.remove(c.TransferID, a)
	}
	if err != nil {
		return nil, false, err
	}
	if done {
		return a.Bytes(), true, nil
	}
	return nil, false, nil
}

// Abort drops transfer id, reporting whether it existed.
func (r *Registry) Abort(id uint32) bool {
	r.mu.Lock()
	a, ok := r.transfers[id]
	delete(r.transfers, id)
	r.mu.Unlock()
	if ok {
		a.Abort()
	}
	return ok
}

// Expire aborts every transfer older than maxAge and returns their ids.
func (r *Registry) Expire(maxAge time.Duration) []uint32 {
	cutoff := time.Now().Add(-maxAge)
	var expired []uint32
	r.mu.Lock()
	for id, a := range r.transfers {
		if a.started.Before(cutoff) {
			delete(r.transfers, id)
			a.Abort()
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()
	return expired
}

// Len returns the number of transfers in flight.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transfers)
}

// Clear aborts everything, for connection teardown.
func (r *Registry) Clear() {
	r.mu.Lock()
	old := r.transfers
	r.transfers = make(map[uint32]*Assembler)
	r.mu.Unlock()
	for _, a := range old {
		a.Abort()
	}
}

func (r *Registry) remove(id uint32, a *Assembler) {
	r.mu.Lock()
	if r.transfers[id] == a {
		delete(r.transfers, id)
	}
	r.mu.Unlock()
}
