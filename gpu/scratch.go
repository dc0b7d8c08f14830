package gpu

import "sync"

// scratchDepth is the number of buffers kept per size class, enough to
// cover frames in flight without a returned buffer being overwritten.
const scratchDepth = 3

// ScratchBufferPool hands out reusable byte slices for per-frame staging
// work (texture upload repacking, uniform payloads, readback). Buffers
// rotate round-robin per size class; after scratchDepth acquisitions of
// the same size the oldest buffer is reused.
type ScratchBufferPool struct {
	mu    sync.Mutex
	pools map[int]*scratchRing
}

type scratchRing struct {
	bufs [scratchDepth][]byte
	next int
}

// NewScratchBufferPool creates an empty pool.
func NewScratchBufferPool() *ScratchBufferPool {
	return &ScratchBufferPool{
		pools: make(map[int]*scratchRing),
	}
}

// Acquire returns a slice of exactly size bytes. Contents are undefined;
// the caller overwrites them. The slice remains valid until scratchDepth
// further Acquire calls of the same size.
func (p *ScratchBufferPool) Acquire(size int) []byte {
	if size <= 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ring, ok := p.pools[size]
	if !ok {
		ring = &scratchRing{}
		p.pools[size] = ring
	}
	buf := ring.bufs[ring.next]
	if buf == nil {
		buf = make([]byte, size)
		ring.bufs[ring.next] = buf
	}
	ring.next = (ring.next + 1) % scratchDepth
	return buf
}

// Release drops all pooled buffers.
func (p *ScratchBufferPool) Release() {
	p.mu.Lock()
	p.pools = make(map[int]*scratchRing)
	p.mu.Unlock()
}
