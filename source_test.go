package pixelpipe

import "sync"

// fakeSource is a scriptable FrameSource for tests. Registered callbacks
// accumulate until emit delivers a frame to all of them; callbacks
// registered during delivery (the scheduler re-arming) are queued for the
// next emit.
type fakeSource struct {
	mu      sync.Mutex
	ready   ReadyState
	nextID  int
	pending map[int]func(Frame)

	requests  int
	cancelled int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		ready:   ReadyEnoughData,
		pending: make(map[int]func(Frame)),
	}
}

func (s *fakeSource) ReadyState() ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *fakeSource) setReady(r ReadyState) {
	s.mu.Lock()
	s.ready = r
	s.mu.Unlock()
}

func (s *fakeSource) RequestFrame(fn func(Frame)) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.pending[id] = fn
	s.requests++
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.pending[id]; ok {
			delete(s.pending, id)
			s.cancelled++
		}
	}
}

// emit delivers f to every currently registered callback.
func (s *fakeSource) emit(f Frame) {
	s.mu.Lock()
	cbs := make([]func(Frame), 0, len(s.pending))
	for _, fn := range s.pending {
		cbs = append(cbs, fn)
	}
	s.pending = make(map[int]func(Frame))
	s.mu.Unlock()

	for _, fn := range cbs {
		fn(f)
	}
}

func (s *fakeSource) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// testFrame builds a w x h RGBA frame filled with a solid color.
func testFrame(w, h int, mediaTime float64, r, g, b byte) Frame {
	data := make([]byte, w*h*4)
	for i := 0; i < len(data); i += 4 {
		data[i] = r
		data[i+1] = g
		data[i+2] = b
		data[i+3] = 0xff
	}
	return Frame{Data: data, Width: w, Height: h, MediaTime: mediaTime}
}
