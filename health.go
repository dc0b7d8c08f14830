package pixelpipe

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultHealthTimeout is how long the monitor waits for the first frame
// before declaring the stream unhealthy.
const DefaultHealthTimeout = 4 * time.Second

// HealthReport is the payload delivered to a health callback.
type HealthReport struct {
	// FrameTime is the presentation timestamp of the first observed frame.
	// Meaningful only on the healthy outcome.
	FrameTime float64

	// Timeout is the window that elapsed without a frame. Meaningful only
	// on the unhealthy outcome.
	Timeout time.Duration
}

// StreamHealthMonitor gates pipeline startup: it watches a frame source for
// a bounded window and reports healthy on the first observed frame or
// unhealthy on timeout. Exactly one outcome fires per monitoring session.
type StreamHealthMonitor struct {
	mu     sync.Mutex
	cancel CancelFunc
	timer  *time.Timer
	done   bool
	log    *slog.Logger
}

// NewStreamHealthMonitor creates a monitor. A nil logger uses the package
// logger.
func NewStreamHealthMonitor(logger *slog.Logger) *StreamHealthMonitor {
	if logger == nil {
		logger = Logger()
	}
	return &StreamHealthMonitor{log: logger}
}

// StartMonitoring begins a monitoring session on source. onHealthy is
// called with the first frame's timestamp; onUnhealthy is called if no
// frame arrives within timeout. A timeout <= 0 uses DefaultHealthTimeout.
//
// Starting a new session implicitly cancels any session in progress.
func (m *StreamHealthMonitor) StartMonitoring(source FrameSource, onHealthy, onUnhealthy func(HealthReport), timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}

	m.mu.Lock()
	m.stopLocked()
	m.done = false

	m.timer = time.AfterFunc(timeout, func() {
		if !m.settle() {
			return
		}
		m.log.Warn("stream health timeout", "timeout", timeout)
		if onUnhealthy != nil {
			onUnhealthy(HealthReport{Timeout: timeout})
		}
	})
	m.mu.Unlock()

	// Register without the lock held: a source may deliver the frame
	// synchronously from RequestFrame, and the callback takes the lock
	// through settle.
	cancel := source.RequestFrame(func(f Frame) {
		if !m.settle() {
			return
		}
		m.log.Debug("stream healthy", "frameTime", f.MediaTime)
		if onHealthy != nil {
			onHealthy(HealthReport{FrameTime: f.MediaTime})
		}
	})

	m.mu.Lock()
	if m.done {
		// The session settled or was stopped before registration
		// finished; the registration must not outlive it.
		m.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}
	m.cancel = cancel
	m.mu.Unlock()
}

// StopMonitoring cancels the pending frame registration and timer without
// firing either callback. Idempotent; safe to call when no session is
// active.
func (m *StreamHealthMonitor) StopMonitoring() {
	m.mu.Lock()
	m.stopLocked()
	m.done = true
	m.mu.Unlock()
}

// settle claims the session's single outcome. It returns false if the
// outcome was already claimed (or the session was stopped), and otherwise
// disarms the other side before returning true.
func (m *StreamHealthMonitor) settle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return false
	}
	m.done = true
	m.stopLocked()
	return true
}

func (m *StreamHealthMonitor) stopLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}
