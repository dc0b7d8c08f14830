package gpu

import "testing"

func TestScratchPoolAcquireSize(t *testing.T) {
	p := NewScratchBufferPool()

	buf := p.Acquire(64)
	if len(buf) != 64 {
		t.Fatalf("len = %d, want 64", len(buf))
	}
	if p.Acquire(0) != nil {
		t.Error("Acquire(0) should return nil")
	}
	if p.Acquire(-1) != nil {
		t.Error("Acquire(-1) should return nil")
	}
}

func TestScratchPoolRoundRobin(t *testing.T) {
	p := NewScratchBufferPool()

	first := p.Acquire(32)
	first[0] = 0xaa

	// The next scratchDepth-1 acquisitions must not alias the first.
	for i := 0; i < scratchDepth-1; i++ {
		buf := p.Acquire(32)
		buf[0] = 0xbb
	}
	if first[0] != 0xaa {
		t.Error("buffer overwritten within its validity window")
	}

	// After a full rotation the first buffer is reused.
	reused := p.Acquire(32)
	if &reused[0] != &first[0] {
		t.Error("expected buffer reuse after full rotation")
	}
}

func TestScratchPoolSizeClassesAreIndependent(t *testing.T) {
	p := NewScratchBufferPool()

	a := p.Acquire(16)
	b := p.Acquire(32)
	a[0] = 1
	b[0] = 2
	if a[0] != 1 {
		t.Error("small buffer aliased by large buffer")
	}
}

func TestScratchPoolRelease(t *testing.T) {
	p := NewScratchBufferPool()
	old := p.Acquire(16)

	p.Release()
	// Rotate through a full ring; none of the fresh buffers may alias the
	// released one.
	for i := 0; i < scratchDepth; i++ {
		buf := p.Acquire(16)
		if &buf[0] == &old[0] {
			t.Fatal("released buffer handed out again")
		}
	}
}
