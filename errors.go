package pixelpipe

import "errors"

// Pipeline error taxonomy. All of these are recoverable by the caller except
// ErrSurfaceIrrecoverable, which requires recreating the surface and
// restarting the pipeline.
var (
	// ErrStreamUnhealthy indicates no decodable frame arrived within the
	// health monitor's timeout. StartPipeline fails with this error and the
	// pipeline stays Idle; the caller may retry.
	ErrStreamUnhealthy = errors.New("pixelpipe: stream unhealthy, no frame within timeout")

	// ErrAcceleratedInitFailed indicates the accelerated renderer could not
	// be initialized. The Coordinator falls back to software rendering and
	// logs a warning; this error is never surfaced as a hard failure from
	// StartPipeline.
	ErrAcceleratedInitFailed = errors.New("pixelpipe: accelerated renderer initialization failed")

	// ErrSurfaceIrrecoverable indicates a software fallback was requested
	// but surface ownership was already irrevocably transferred to the
	// accelerated path and the surface could not be recreated. The pipeline
	// stays in a degraded non-rendering state for the current session.
	ErrSurfaceIrrecoverable = errors.New("pixelpipe: surface ownership irrevocably transferred")

	// ErrMidStreamSwapFailed indicates the accelerated renderer failed to
	// initialize during a mid-stream swap. The stream continues on the
	// software renderer uninterrupted.
	ErrMidStreamSwapFailed = errors.New("pixelpipe: mid-stream swap to accelerated failed")

	// ErrPipelineBusy is returned by StartPipeline when a pipeline start is
	// already in progress or a session is already active.
	ErrPipelineBusy = errors.New("pixelpipe: pipeline already starting or active")

	// ErrNoSurface is returned when an operation requires a presentation
	// surface but none has been created.
	ErrNoSurface = errors.New("pixelpipe: no presentation surface")

	// ErrPipelineStopped is returned by StartPipeline when StopPipeline
	// was called while the health check was still pending.
	ErrPipelineStopped = errors.New("pixelpipe: pipeline stopped during startup")
)
