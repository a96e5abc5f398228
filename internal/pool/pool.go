// Package pool implements the bounded FIFO of sandbox slot
// identifiers. It is the only piece of shared mutable state in the
// service: every acquire/release is serialized by a single mutex held
// for the duration of the queue mutation, and there is no waiting
// primitive — exhaustion fails immediately so the HTTP layer can
// return 503 and let the client retry, rather than queueing request
// latency.
package pool

import (
	"sync"

	"github.com/isolatesandbox/isolate-sandbox/internal/domain"
)

// Pool is a bounded, concurrency-safe FIFO of free slot identifiers in
// [0, N).
type Pool struct {
	mu   sync.Mutex
	free []int
	size int
}

// New creates a pool with all N identifiers free.
func New(size int) *Pool {
	free := make([]int, size)
	for i := range free {
		free[i] = i
	}
	return &Pool{free: free, size: size}
}

// Size returns N, the pool's cardinality.
func (p *Pool) Size() int {
	return p.size
}

// Acquire returns the oldest free identifier, or ErrPoolExhausted if
// none are free. It never blocks.
func (p *Pool) Acquire() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return 0, domain.ErrPoolExhausted
	}
	id := p.free[0]
	p.free = p.free[1:]
	return id, nil
}

// Release pushes id to the tail of the free queue. Releasing an
// identifier outside [0, N) is a programming error and fails with
// ErrInternal. Releasing an already-free identifier is also a
// programming error (double-release) and fails with ErrInternal,
// leaving the free queue unchanged.
func (p *Pool) Release(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id < 0 || id >= p.size {
		return domain.Wrapf(domain.ErrInternal, "invalid slot id %d (pool size %d)", id, p.size)
	}
	for _, free := range p.free {
		if free == id {
			return domain.Wrapf(domain.ErrInternal, "slot id %d is already free", id)
		}
	}
	p.free = append(p.free, id)
	return nil
}

// Snapshot returns a copy of the currently free identifiers, in
// release order, for introspection; never mutates the pool.
func (p *Pool) Snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]int, len(p.free))
	copy(out, p.free)
	return out
}

// InUse returns the count of currently held slots (size minus free).
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size - len(p.free)
}
