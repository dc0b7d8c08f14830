package gpu

import (
	"hash/fnv"
	"sync"
)

// UniformChangeTracker skips redundant uniform buffer writes by hashing
// uploaded payloads per buffer name. With a steady viewport and preset the
// blit uniforms never change, so per-frame WriteBuffer calls collapse to a
// hash comparison.
type UniformChangeTracker struct {
	mu     sync.Mutex
	hashes map[string]uint32
}

// NewUniformChangeTracker creates an empty tracker.
func NewUniformChangeTracker() *UniformChangeTracker {
	return &UniformChangeTracker{
		hashes: make(map[string]uint32),
	}
}

// HasChanged reports whether data differs from the last payload recorded
// under name, and records the new hash. The first call for a name always
// reports true.
func (t *UniformChangeTracker) HasChanged(name string, data []byte) bool {
	h := fnv.New32a()
	_, _ = h.Write(data)
	sum := h.Sum32()

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.hashes[name]; ok && prev == sum {
		return false
	}
	t.hashes[name] = sum
	return true
}

// Invalidate forgets the recorded payload for name; the next HasChanged
// call for it reports true.
func (t *UniformChangeTracker) Invalidate(name string) {
	t.mu.Lock()
	delete(t.hashes, name)
	t.mu.Unlock()
}

// InvalidateAll forgets every recorded payload.
func (t *UniformChangeTracker) InvalidateAll() {
	t.mu.Lock()
	t.hashes = make(map[string]uint32)
	t.mu.Unlock()
}
