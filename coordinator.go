package pixelpipe

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultIdleRelease is how long a stopped pipeline keeps its GPU context
// alive for a quick restart before terminating it to reclaim driver-side
// caches.
const DefaultIdleRelease = 15 * time.Second

// DefaultStatsInterval is the number of rendered frames between
// EventStatsUpdate notifications.
const DefaultStatsInterval = 120

// State is the Coordinator's pipeline state.
type State int

const (
	// StateIdle means no session is active and no GPU context is pending
	// release.
	StateIdle State = iota

	// StateHealthCheck means StartPipeline is waiting for the stream
	// health verdict.
	StateHealthCheck

	// StateSoftwareActive means the software renderer is presenting.
	StateSoftwareActive

	// StateAcceleratedActive means the accelerated renderer is presenting.
	StateAcceleratedActive

	// StateIdleReleasePending means the session has stopped but the GPU
	// context is being kept alive for the idle-release window.
	StateIdleReleasePending
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHealthCheck:
		return "health-check"
	case StateSoftwareActive:
		return "software-active"
	case StateAcceleratedActive:
		return "accelerated-active"
	case StateIdleReleasePending:
		return "idle-release-pending"
	default:
		return "unknown"
	}
}

// Config wires a Coordinator to its collaborators. Source, Surfaces, and
// Container are required; everything else has a usable zero value.
type Config struct {
	// Source is the capture-source handle feeding the pipeline.
	Source FrameSource

	// Surfaces owns the presentation surface.
	Surfaces *SurfaceManager

	// Accelerated is the GPU path provider, or nil for software-only
	// deployments.
	Accelerated AcceleratedProvider

	// Capabilities is the capability-probe result. Immutable.
	Capabilities Capabilities

	// Container reports the available layout box for viewport sizing. It
	// is consulted at pipeline start and on HandleContainerResized.
	Container func() Box

	// DevicePixelRatio of the display. Zero means 1.
	DevicePixelRatio float64

	// HealthTimeout bounds the startup health check. Zero means
	// DefaultHealthTimeout.
	HealthTimeout time.Duration

	// IdleRelease bounds how long a stopped GPU context survives. Zero
	// means DefaultIdleRelease.
	IdleRelease time.Duration

	// StatsInterval is the number of rendered frames between stats
	// events. Zero means DefaultStatsInterval.
	StatsInterval uint64

	// Logger for pipeline diagnostics. Nil means the package logger.
	Logger *slog.Logger
}

// Coordinator is the pipeline's top-level state machine. It gates startup
// on stream health, selects the render path from capabilities, owns the
// single active RenderSession, and sequences mid-stream renderer swaps so
// that one of the two renderers is always presenting.
//
//	Idle -> HealthCheck -> {SoftwareActive | AcceleratedActive}
//	     -> IdleReleasePending -> Idle
//
// with SoftwareActive <-> AcceleratedActive swaps reachable only while
// streaming.
type Coordinator struct {
	mu  sync.Mutex
	cfg Config

	state  State
	native NativeResolution
	dims   TargetDimensions

	active     Renderer
	activePath RenderPath

	sched  *FrameScheduler
	health *StreamHealthMonitor

	perfMode bool
	hidden   bool

	// userPreset is the last non-performance preset selected by the user,
	// cached so it can be restored after performance mode ends.
	userPreset    *Preset
	pendingPreset *Preset
	current       Preset

	idleTimer *time.Timer
	abort     chan struct{}

	swapCount uint64

	events notifier
	log    *slog.Logger
}

// NewCoordinator creates a Coordinator from a Config. Subscribe event
// handlers before the first StartPipeline; dispatch is synchronous and
// events are not replayed.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = Logger()
	}
	if cfg.DevicePixelRatio <= 0 {
		cfg.DevicePixelRatio = 1
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}
	if cfg.IdleRelease <= 0 {
		cfg.IdleRelease = DefaultIdleRelease
	}
	if cfg.StatsInterval == 0 {
		cfg.StatsInterval = DefaultStatsInterval
	}
	c := &Coordinator{
		cfg:     cfg,
		sched:   NewFrameScheduler(cfg.Logger),
		health:  NewStreamHealthMonitor(cfg.Logger),
		current: PresetDefault,
		log:     cfg.Logger,
	}
	if ls, ok := cfg.Accelerated.(loggerSetter); ok {
		ls.SetLogger(cfg.Logger)
	}
	return c
}

// Subscribe registers an event handler. Handlers are invoked synchronously
// on the goroutine that produced the event; they must not call back into
// the Coordinator.
func (c *Coordinator) Subscribe(fn func(Event)) {
	c.events.subscribe(fn)
}

// State returns the current pipeline state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActivePath returns the render path currently presenting. Meaningful only
// while streaming.
func (c *Coordinator) ActivePath() RenderPath {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activePath
}

// StartPipeline starts a session for the given native resolution. It blocks
// until the stream health verdict: on the first observed frame it sizes the
// viewport, binds a renderer (accelerated first when capabilities allow),
// and starts the frame loop; if no frame arrives within the health timeout
// it fails with ErrStreamUnhealthy and the pipeline stays Idle.
//
// A second StartPipeline while one is in HealthCheck or a session is active
// is rejected with ErrPipelineBusy. Restarting within the idle-release
// window reuses the live GPU context and disarms the release timer.
func (c *Coordinator) StartPipeline(native NativeResolution) error {
	if !native.Valid() {
		return fmt.Errorf("pixelpipe: invalid native resolution %dx%d", native.Width, native.Height)
	}

	c.mu.Lock()
	switch c.state {
	case StateIdle:
	case StateIdleReleasePending:
		c.stopIdleTimerLocked()
	default:
		c.mu.Unlock()
		return ErrPipelineBusy
	}
	c.state = StateHealthCheck
	c.native = native
	abort := make(chan struct{})
	c.abort = abort
	c.mu.Unlock()

	c.events.publish(Event{Kind: EventCapabilityDetected})

	healthy := make(chan HealthReport, 1)
	unhealthy := make(chan HealthReport, 1)
	c.health.StartMonitoring(c.cfg.Source,
		func(r HealthReport) { healthy <- r },
		func(r HealthReport) { unhealthy <- r },
		c.cfg.HealthTimeout)

	select {
	case r := <-healthy:
		c.events.publish(Event{Kind: EventStreamHealthOK})
		return c.becomeActive(r)
	case <-unhealthy:
		c.mu.Lock()
		c.state = StateIdle
		c.abort = nil
		c.mu.Unlock()
		c.events.publish(Event{Kind: EventStreamHealthTimeout})
		c.events.publish(Event{Kind: EventPipelineError, Err: ErrStreamUnhealthy})
		return ErrStreamUnhealthy
	case <-abort:
		c.health.StopMonitoring()
		c.mu.Lock()
		c.state = StateIdle
		c.abort = nil
		c.mu.Unlock()
		return ErrPipelineStopped
	}
}

// becomeActive sizes the viewport and binds the first renderer after a
// healthy verdict.
func (c *Coordinator) becomeActive(_ HealthReport) error {
	c.mu.Lock()
	c.abort = nil

	dims := c.sizeViewportLocked()
	if err := c.cfg.Surfaces.Ensure(dims, c.cfg.DevicePixelRatio); err != nil {
		c.state = StateIdle
		c.mu.Unlock()
		c.events.publish(Event{Kind: EventPipelineError, Err: err})
		return err
	}
	c.dims = dims

	var evs []Event
	if c.shouldTryAcceleratedLocked() {
		if err := c.startAcceleratedLocked(&evs); err != nil {
			c.log.Warn("accelerated init failed, falling back to software",
				"provider", c.cfg.Accelerated.Name(), "error", err)
			evs = append(evs, Event{Kind: EventPipelineError, Err: fmt.Errorf("%w: %v", ErrAcceleratedInitFailed, err)})
			if err := c.startSoftwareLocked(&evs); err != nil {
				c.state = StateIdle
				c.mu.Unlock()
				c.publishAll(evs)
				return err
			}
		}
	} else {
		if err := c.startSoftwareLocked(&evs); err != nil {
			c.state = StateIdle
			c.mu.Unlock()
			c.publishAll(evs)
			return err
		}
	}
	c.mu.Unlock()

	c.startScheduler()
	c.publishAll(evs)
	c.events.publish(Event{Kind: EventPipelineReady})
	c.log.Info("pipeline ready", "path", c.ActivePath().String(),
		"scale", dims.Scale, "width", dims.Width, "height", dims.Height)
	return nil
}

// StopPipeline stops the active session. For the accelerated path, GPU
// session resources are released immediately and the idle-release timer is
// armed; the context itself is terminated only if the pipeline is not
// restarted before the timer fires. The surface is cleared unless ownership
// was irrevocably transferred, in which case it is left alone and a
// diagnostic is logged.
func (c *Coordinator) StopPipeline() {
	c.mu.Lock()
	if c.state == StateHealthCheck {
		if c.abort != nil {
			close(c.abort)
			c.abort = nil
		}
		c.mu.Unlock()
		return
	}
	if c.state != StateSoftwareActive && c.state != StateAcceleratedActive {
		c.mu.Unlock()
		return
	}
	wasAccelerated := c.state == StateAcceleratedActive

	c.sched.Stop()
	if c.active != nil {
		c.active.Cleanup()
		c.active = nil
	}

	var evs []Event
	if wasAccelerated && c.cfg.Accelerated != nil {
		evs = append(evs, Event{Kind: EventMemorySnapshotRequested, Phase: "before"})
		c.cfg.Accelerated.Release()
		evs = append(evs, Event{Kind: EventMemorySnapshotRequested, Phase: "after"})
		c.state = StateIdleReleasePending
		c.idleTimer = time.AfterFunc(c.cfg.IdleRelease, c.idleReleaseFired)
	} else {
		c.state = StateIdle
	}

	if err := c.cfg.Surfaces.Clear(); err != nil {
		if err == ErrSurfaceIrrecoverable {
			c.log.Error("surface left uncleared, ownership transferred", "error", err)
		} else if err != ErrNoSurface {
			c.log.Warn("surface clear failed", "error", err)
		}
	}
	c.mu.Unlock()

	c.publishAll(evs)
	c.log.Info("pipeline stopped", "idleRelease", wasAccelerated)
}

// idleReleaseFired terminates the GPU context after the idle window lapses
// with no restart. The state guard makes termination exactly-once.
func (c *Coordinator) idleReleaseFired() {
	c.mu.Lock()
	if c.state != StateIdleReleasePending {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.idleTimer = nil
	c.mu.Unlock()

	c.cfg.Accelerated.Terminate()
	c.log.Info("idle release: accelerated context terminated")
}

// HandleVisibilityChanged pauses the frame loop while the presentation
// target is hidden and resumes it when visible again, without tearing down
// the renderer or surface.
func (c *Coordinator) HandleVisibilityChanged(hidden bool) {
	c.mu.Lock()
	c.hidden = hidden
	streaming := c.state == StateSoftwareActive || c.state == StateAcceleratedActive
	c.mu.Unlock()
	if !streaming {
		return
	}
	if hidden {
		c.sched.Stop()
		c.log.Debug("frame loop paused, target hidden")
	} else {
		c.startScheduler()
		c.log.Debug("frame loop resumed")
	}
}

// HandlePerformanceModeChanged toggles performance mode.
//
// Enabling while the accelerated path is active caches the current user
// preset, tears the accelerated renderer down, recreates the surface
// (ownership cannot be reclaimed in place), and continues the stream on the
// software renderer at native resolution.
//
// Disabling while streaming on software initiates the mid-stream swap back
// to accelerated; when not streaming it just recreates the surface so the
// next StartPipeline begins clean.
func (c *Coordinator) HandlePerformanceModeChanged(enabled bool) {
	c.mu.Lock()
	if c.perfMode == enabled {
		c.mu.Unlock()
		return
	}
	c.perfMode = enabled

	var evs []Event
	if enabled {
		if c.state == StateAcceleratedActive {
			if c.current.Name != PresetPerformance.Name {
				p := c.current
				c.userPreset = &p
			}
			c.demoteToSoftwareLocked(&evs)
		}
		c.mu.Unlock()
		c.publishAll(evs)
		return
	}

	// Promote a preset selected while performance mode was active; it
	// becomes the user selection whether or not the stream is running.
	if c.pendingPreset != nil {
		c.current = *c.pendingPreset
		cp := *c.pendingPreset
		c.userPreset = &cp
		c.pendingPreset = nil
	}

	switch c.state {
	case StateSoftwareActive:
		c.switchToAcceleratedLocked(&evs)
		c.mu.Unlock()
	default:
		// Not streaming: recreate the surface and await the next start.
		if c.cfg.Surfaces.Surface() != nil {
			if err := c.cfg.Surfaces.Recreate(); err == nil {
				evs = append(evs, Event{Kind: EventCanvasRecreated})
			}
		}
		c.mu.Unlock()
	}
	c.publishAll(evs)
}

// HandlePresetChanged selects a visual preset. While performance mode is
// active the selection is only cached; it is applied when performance mode
// is disabled. Otherwise it applies immediately to a running accelerated
// renderer.
func (c *Coordinator) HandlePresetChanged(p Preset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.perfMode {
		c.pendingPreset = &p
		return
	}
	c.current = p
	cp := p
	c.userPreset = &cp
	if c.state == StateAcceleratedActive {
		if applier, ok := c.active.(PresetApplier); ok {
			if err := applier.ApplyPreset(p); err != nil {
				c.log.Warn("preset apply failed", "preset", p.Name, "error", err)
			}
		}
	}
}

// HandleContainerResized recomputes the viewport from the container box and
// resizes the surface and active renderer. No-op unless streaming or when
// the integer scale is unchanged.
//
// On the software path the surface resizes in place and the renderer is
// told the new dimensions. On the accelerated path the surface manager can
// only recreate an accelerated-owned surface, so the renderer is rebound to
// the replacement the same way a mid-stream swap binds one.
func (c *Coordinator) HandleContainerResized() {
	c.mu.Lock()
	if c.state != StateSoftwareActive && c.state != StateAcceleratedActive {
		c.mu.Unlock()
		return
	}
	dims := c.sizeViewportLocked()
	if dims == c.dims {
		c.mu.Unlock()
		return
	}

	var evs []Event
	if c.state == StateAcceleratedActive {
		c.resizeAcceleratedLocked(dims, &evs)
	} else {
		c.resizeSoftwareLocked(dims)
	}
	c.mu.Unlock()
	c.publishAll(evs)
}

func (c *Coordinator) resizeSoftwareLocked(dims TargetDimensions) {
	if err := c.cfg.Surfaces.Ensure(dims, c.cfg.DevicePixelRatio); err != nil {
		c.log.Warn("surface resize failed", "error", err)
		return
	}
	c.dims = dims
	if c.active != nil {
		if err := c.active.Resize(dims); err != nil {
			c.log.Warn("renderer resize failed", "error", err)
		}
	}
}

// resizeAcceleratedLocked resizes while the accelerated renderer is active.
// Ensure destroys and recreates an accelerated-owned surface, so the old
// renderer is torn down first and a fresh one is bound to the replacement;
// on failure the stream reverts to software like any other failed swap.
func (c *Coordinator) resizeAcceleratedLocked(dims TargetDimensions, evs *[]Event) {
	if c.active != nil {
		c.active.Cleanup()
		c.active = nil
	}
	if err := c.cfg.Surfaces.Ensure(dims, c.cfg.DevicePixelRatio); err != nil {
		c.log.Error("surface resize failed", "error", err)
	} else {
		*evs = append(*evs, Event{Kind: EventCanvasRecreated})
	}
	c.dims = dims

	if err := c.startAcceleratedLocked(evs); err != nil {
		c.log.Warn("accelerated rebind after resize failed, reverting to software",
			"provider", c.cfg.Accelerated.Name(), "error", err)
		*evs = append(*evs, Event{Kind: EventPipelineError, Err: fmt.Errorf("%w: %v", ErrMidStreamSwapFailed, err)})
		if err := c.startSoftwareLocked(evs); err != nil {
			c.log.Error("revert to software failed", "error", err)
			*evs = append(*evs, Event{Kind: EventPipelineError, Err: err})
		}
	}
}

// sizeViewportLocked computes target dimensions from the container box. In
// performance mode the stream renders at native resolution regardless of
// available space. The result is not committed to c.dims; callers commit
// once the surface agrees.
func (c *Coordinator) sizeViewportLocked() TargetDimensions {
	if c.perfMode {
		return TargetDimensions{Width: c.native.Width, Height: c.native.Height, Scale: 1}
	}
	return FitTarget(c.native, c.cfg.Container())
}

func (c *Coordinator) shouldTryAcceleratedLocked() bool {
	if c.perfMode || c.cfg.Accelerated == nil {
		return false
	}
	caps := c.cfg.Capabilities
	return caps.AcceleratedAvailable || caps.SecondaryAcceleratedAvailable
}

// startAcceleratedLocked binds the accelerated renderer to the surface.
// On failure the surface may be left accelerated-owned; callers fall back
// through startSoftwareLocked which recreates it.
func (c *Coordinator) startAcceleratedLocked(evs *[]Event) error {
	r, err := c.cfg.Accelerated.NewRenderer()
	if err != nil {
		return err
	}
	recreated, err := c.cfg.Surfaces.BindAccelerated()
	if recreated {
		*evs = append(*evs, Event{Kind: EventCanvasRecreated})
	}
	if err != nil {
		r.Cleanup()
		return err
	}
	if err := r.Initialize(c.cfg.Surfaces.Surface(), c.dims); err != nil {
		r.Cleanup()
		return err
	}
	if applier, ok := r.(PresetApplier); ok && c.current.Name != PresetDefault.Name {
		if err := applier.ApplyPreset(c.current); err != nil {
			c.log.Warn("preset apply failed", "preset", c.current.Name, "error", err)
		}
	}
	c.active = r
	c.activePath = PathAccelerated
	c.state = StateAcceleratedActive
	return nil
}

func (c *Coordinator) startSoftwareLocked(evs *[]Event) error {
	recreated, err := c.cfg.Surfaces.BindSoftware()
	if recreated {
		*evs = append(*evs, Event{Kind: EventCanvasRecreated})
	}
	if err != nil {
		if err == ErrSurfaceIrrecoverable {
			c.log.Error("software fallback impossible, surface irrecoverable")
			*evs = append(*evs, Event{Kind: EventPipelineError, Err: ErrSurfaceIrrecoverable})
		}
		return err
	}
	r := NewSoftwareRenderer()
	if err := r.Initialize(c.cfg.Surfaces.Surface(), c.dims); err != nil {
		return err
	}
	c.active = r
	c.activePath = PathSoftware
	c.state = StateSoftwareActive
	return nil
}

// demoteToSoftwareLocked tears down the accelerated renderer and continues
// on software at native resolution. The frame loop keeps running; frames
// arriving during the transition render with the software renderer as soon
// as the lock is released.
func (c *Coordinator) demoteToSoftwareLocked(evs *[]Event) {
	if c.active != nil {
		c.active.Cleanup()
		c.active = nil
	}
	if c.cfg.Accelerated != nil {
		*evs = append(*evs, Event{Kind: EventMemorySnapshotRequested, Phase: "before"})
		c.cfg.Accelerated.Release()
		*evs = append(*evs, Event{Kind: EventMemorySnapshotRequested, Phase: "after"})
	}

	dims := c.sizeViewportLocked()
	c.dims = dims
	if err := c.cfg.Surfaces.Ensure(dims, c.cfg.DevicePixelRatio); err != nil {
		c.log.Error("surface resize for software fallback failed", "error", err)
	}
	if err := c.startSoftwareLocked(evs); err != nil {
		// Degraded: video plays, nothing renders. Reported upward, not fatal.
		c.log.Error("software fallback failed", "error", err)
		*evs = append(*evs, Event{Kind: EventPipelineError, Err: err})
		return
	}
	c.swapCount++
	c.log.Info("switched to software renderer", "scale", dims.Scale)
}

// switchToAcceleratedLocked performs the mid-stream software->accelerated
// swap. The scheduler keeps running throughout; renderFrame serializes on
// the coordinator lock, so every frame presented during the swap renders
// with whichever renderer the swap leaves active. On failure the stream
// reverts to software immediately and is never visibly interrupted.
func (c *Coordinator) switchToAcceleratedLocked(evs *[]Event) {
	if !c.shouldTryAcceleratedLocked() {
		return
	}

	if c.active != nil {
		c.active.Cleanup()
		c.active = nil
	}

	dims := c.sizeViewportLocked()
	c.dims = dims
	if err := c.cfg.Surfaces.Ensure(dims, c.cfg.DevicePixelRatio); err != nil {
		c.log.Warn("surface resize for swap failed", "error", err)
	}

	if err := c.startAcceleratedLocked(evs); err != nil {
		c.log.Warn("mid-stream swap failed, reverting to software",
			"provider", c.cfg.Accelerated.Name(), "error", err)
		*evs = append(*evs, Event{Kind: EventPipelineError, Err: fmt.Errorf("%w: %v", ErrMidStreamSwapFailed, err)})
		if err := c.startSoftwareLocked(evs); err != nil {
			c.log.Error("revert to software failed", "error", err)
			*evs = append(*evs, Event{Kind: EventPipelineError, Err: err})
		}
		return
	}

	c.swapCount++

	// Restore the preset selected before or during performance mode. A
	// selection made during performance mode was already promoted into
	// userPreset by HandlePerformanceModeChanged.
	if c.userPreset != nil {
		c.current = *c.userPreset
		if applier, ok := c.active.(PresetApplier); ok {
			if err := applier.ApplyPreset(*c.userPreset); err != nil {
				c.log.Warn("preset restore failed", "preset", c.userPreset.Name, "error", err)
			}
		}
	}
	c.log.Info("switched to accelerated renderer", "scale", dims.Scale)
}

func (c *Coordinator) startScheduler() {
	c.sched.Start(ScheduleConfig{
		Source:         c.cfg.Source,
		RenderFrame:    c.renderFrame,
		ShouldContinue: c.shouldContinue,
	})
}

func (c *Coordinator) shouldContinue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hidden {
		return false
	}
	return c.state == StateSoftwareActive || c.state == StateAcceleratedActive
}

// renderFrame presents one frame with the active renderer. It holds the
// coordinator lock for the duration so renderer swaps can never interleave
// with an in-flight render.
func (c *Coordinator) renderFrame(f Frame) error {
	c.mu.Lock()
	r := c.active
	if r == nil {
		c.mu.Unlock()
		return nil
	}
	err := r.RenderFrame(f)
	stats := c.maybeStatsLocked(r)
	c.mu.Unlock()

	if stats != nil {
		c.events.publish(Event{Kind: EventStatsUpdate, Stats: stats})
	}
	return err
}

// cacheStatsProvider is implemented by renderers that track GPU resource
// cache behavior.
type cacheStatsProvider interface {
	CacheStats() (hits, misses uint64)
}

func (c *Coordinator) maybeStatsLocked(r Renderer) *PipelineStats {
	rendered, deduped, notReady := c.sched.Stats()
	if rendered == 0 || (rendered+1)%c.cfg.StatsInterval != 0 {
		return nil
	}
	stats := &PipelineStats{
		Path:                 c.activePath,
		FramesRendered:       rendered + 1,
		FramesDeduplicated:   deduped,
		FramesBelowReadiness: notReady,
		SwapCount:            c.swapCount,
	}
	if csp, ok := r.(cacheStatsProvider); ok {
		stats.BindGroupHits, stats.BindGroupMisses = csp.CacheStats()
	}
	return stats
}

func (c *Coordinator) stopIdleTimerLocked() {
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
}

func (c *Coordinator) publishAll(evs []Event) {
	for _, ev := range evs {
		c.events.publish(ev)
	}
}
