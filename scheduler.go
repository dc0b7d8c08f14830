package pixelpipe

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ScheduleConfig configures a FrameScheduler run.
type ScheduleConfig struct {
	// Source delivers frame-presented callbacks.
	Source FrameSource

	// RenderFrame is invoked exactly once per new presentation timestamp
	// while the source readiness is at least MinReadyState.
	RenderFrame func(Frame) error

	// ShouldContinue is polled after each callback; the scheduler re-arms
	// only while it returns true. A nil func means always continue.
	ShouldContinue func() bool

	// MinReadyState gates rendering. Zero means MinRenderReadyState.
	MinReadyState ReadyState
}

// FrameScheduler drives the render loop off the source's frame-presented
// notification. It deduplicates redundant callback invocations by
// presentation timestamp and skips frames when the source has not buffered
// enough data, guaranteeing at-most-once rendering per presented frame.
//
// The scheduler holds no frame data of its own; between the notification
// and the renderer call execution is synchronous on the source's callback
// goroutine.
type FrameScheduler struct {
	mu      sync.Mutex
	cfg     ScheduleConfig
	cancel  CancelFunc
	running bool
	lastTS  float64
	hasLast bool

	rendered uint64
	deduped  uint64
	notReady uint64

	// now is the wall-clock fallback for sources that report no
	// presentation timestamp. Tests may substitute it.
	now func() time.Time

	log *slog.Logger
}

// NewFrameScheduler creates a scheduler. A nil logger uses the package
// logger.
func NewFrameScheduler(logger *slog.Logger) *FrameScheduler {
	if logger == nil {
		logger = Logger()
	}
	return &FrameScheduler{now: time.Now, log: logger}
}

// Start begins the frame loop. Starting an already-running scheduler
// replaces its configuration and pending registration.
func (s *FrameScheduler) Start(cfg ScheduleConfig) {
	if cfg.MinReadyState == 0 {
		cfg.MinReadyState = MinRenderReadyState
	}
	s.mu.Lock()
	s.cancelLocked()
	s.cfg = cfg
	s.running = true
	s.hasLast = false
	s.mu.Unlock()
	s.arm()
}

// Stop unregisters the pending frame callback and clears dedup state. Safe
// to call when not started or when the source lacks a cancel primitive.
func (s *FrameScheduler) Stop() {
	s.mu.Lock()
	s.running = false
	s.hasLast = false
	s.cancelLocked()
	s.mu.Unlock()
}

// Running reports whether the loop is armed.
func (s *FrameScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns the counters accumulated since the last Start.
func (s *FrameScheduler) Stats() (rendered, deduplicated, belowReadiness uint64) {
	return atomic.LoadUint64(&s.rendered), atomic.LoadUint64(&s.deduped), atomic.LoadUint64(&s.notReady)
}

// ResetStats zeroes the frame counters.
func (s *FrameScheduler) ResetStats() {
	atomic.StoreUint64(&s.rendered, 0)
	atomic.StoreUint64(&s.deduped, 0)
	atomic.StoreUint64(&s.notReady, 0)
}

func (s *FrameScheduler) arm() {
	s.mu.Lock()
	if !s.running || s.cfg.Source == nil {
		s.mu.Unlock()
		return
	}
	source := s.cfg.Source
	s.mu.Unlock()

	cancel := source.RequestFrame(s.onFrame)

	s.mu.Lock()
	if s.running {
		s.cancel = cancel
	} else if cancel != nil {
		// Stopped while registering; revoke immediately.
		cancel()
	}
	s.mu.Unlock()
}

func (s *FrameScheduler) onFrame(f Frame) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel = nil
	cfg := s.cfg

	ts := f.MediaTime
	if ts <= 0 {
		ts = float64(s.now().UnixNano()) / float64(time.Second)
	}

	render := true
	if s.hasLast && ts == s.lastTS {
		render = false
		atomic.AddUint64(&s.deduped, 1)
	}
	if render && cfg.Source.ReadyState() < cfg.MinReadyState {
		render = false
		atomic.AddUint64(&s.notReady, 1)
	}
	if render {
		s.lastTS = ts
		s.hasLast = true
	}
	s.mu.Unlock()

	if render && cfg.RenderFrame != nil {
		if err := cfg.RenderFrame(f); err != nil {
			s.log.Warn("render frame failed", "error", err)
		} else {
			atomic.AddUint64(&s.rendered, 1)
		}
	}

	if cfg.ShouldContinue == nil || cfg.ShouldContinue() {
		s.arm()
	} else {
		s.Stop()
	}
}

func (s *FrameScheduler) cancelLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
