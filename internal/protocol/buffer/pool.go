package buffer

import "sync"

// maxPooledCapacity keeps oversized scratch buffers out of the pool.
const maxPooledCapacity = 64 * 1024

// Pool is a synchronized free-list of buffers. A nil *Pool is valid and
// allocates a fresh buffer for every Acquire.
type Pool struct {
	free sync.Pool
}

func NewPool() *Pool {
	return &Pool{free: sync.Pool{New: func() any { return New() }}}
}

// Acquire returns a buffer with Offset = Limit = 0.
func (p *Pool) Acquire() *Buffer {
	if p == nil {
		return New()
	}
	b := p.free.Get().(*Buffer)
	b.Reset()
	return b
}

// Release returns b to the pool. b must not be used afterwards.
func (p *Pool) Release(b *Buffer) {
	if p == nil || b == nil || cap(b.bytes) > maxPooledCapacity {
		return
	}
	clear(b.bytes[:b.Limit])
	b.Reset()
	p.free.Put(b)
}
