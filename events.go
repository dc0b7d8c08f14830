package pixelpipe

import "sync"

// EventKind identifies a pipeline event.
type EventKind int

const (
	// EventCapabilityDetected fires once when the Coordinator learns its
	// Capabilities.
	EventCapabilityDetected EventKind = iota

	// EventPipelineReady fires when a renderer is active and the frame
	// loop is running.
	EventPipelineReady

	// EventPipelineError fires for recoverable and degraded errors. The
	// Err field carries the taxonomy error.
	EventPipelineError

	// EventStatsUpdate carries periodic frame and cache statistics.
	EventStatsUpdate

	// EventCanvasRecreated fires whenever the surface manager destroys and
	// recreates the presentation surface.
	EventCanvasRecreated

	// EventStreamHealthOK fires when the health monitor sees the first
	// frame.
	EventStreamHealthOK

	// EventStreamHealthTimeout fires when the health monitor times out.
	EventStreamHealthTimeout

	// EventMemorySnapshotRequested fires before and after GPU resource
	// release so diagnostics collaborators can sample driver memory.
	EventMemorySnapshotRequested
)

// String returns the string representation of EventKind.
func (k EventKind) String() string {
	switch k {
	case EventCapabilityDetected:
		return "capability-detected"
	case EventPipelineReady:
		return "pipeline-ready"
	case EventPipelineError:
		return "pipeline-error"
	case EventStatsUpdate:
		return "stats-update"
	case EventCanvasRecreated:
		return "canvas-recreated"
	case EventStreamHealthOK:
		return "stream-health-ok"
	case EventStreamHealthTimeout:
		return "stream-health-timeout"
	case EventMemorySnapshotRequested:
		return "memory-snapshot-requested"
	default:
		return "unknown"
	}
}

// PipelineStats is the payload of EventStatsUpdate.
type PipelineStats struct {
	// Path is the currently active render path.
	Path RenderPath

	// FramesRendered counts renderer invocations since pipeline start.
	FramesRendered uint64

	// FramesDeduplicated counts frame callbacks skipped because the
	// presentation timestamp had not advanced.
	FramesDeduplicated uint64

	// FramesBelowReadiness counts frame callbacks skipped because the
	// source readiness was below MinRenderReadyState.
	FramesBelowReadiness uint64

	// SwapCount counts completed mid-stream renderer swaps.
	SwapCount uint64

	// BindGroupHits and BindGroupMisses report accelerated-path bind
	// group cache behavior. Zero on the software path.
	BindGroupHits   uint64
	BindGroupMisses uint64
}

// Event is a fire-and-forget notification from the Coordinator to UI and
// telemetry collaborators. Snapshot events carry a Phase of "before" or
// "after"; error events carry Err.
type Event struct {
	Kind  EventKind
	Err   error
	Stats *PipelineStats
	Phase string
}

// notifier is an observer list with synchronous dispatch. Handlers are
// registered at composition time and invoked in registration order on the
// goroutine that produced the event.
type notifier struct {
	mu       sync.Mutex
	handlers []func(Event)
}

func (n *notifier) subscribe(fn func(Event)) {
	if fn == nil {
		return
	}
	n.mu.Lock()
	n.handlers = append(n.handlers, fn)
	n.mu.Unlock()
}

func (n *notifier) publish(ev Event) {
	n.mu.Lock()
	handlers := n.handlers
	n.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}
