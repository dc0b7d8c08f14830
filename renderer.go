// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pixelpipe

// Renderer presents decoded frames on a Surface.
//
// The Renderer interface is the single abstraction over the accelerated and
// software paths. Exactly one renderer is bound to a surface at a time; the
// Coordinator owns that binding and sequences swaps between implementations
// so no two RenderFrame calls from different renderers can interleave.
//
//   - SoftwareRenderer: CPU nearest-neighbor blit into the surface pixels
//   - gpu.Renderer: WebGPU blit pipeline (via AcceleratedProvider)
//
// Thread safety: a Renderer is driven from the frame-callback goroutine and
// is not safe for concurrent use; the Coordinator serializes all calls.
type Renderer interface {
	// Initialize binds the renderer to a surface at the given target
	// dimensions. For the accelerated path this transfers surface
	// ownership irrevocably (see SurfaceOwnership).
	Initialize(surface Surface, dims TargetDimensions) error

	// RenderFrame presents one decoded frame. Called at most once per
	// presentation timestamp by the FrameScheduler.
	RenderFrame(frame Frame) error

	// Resize adjusts renderer resources to new target dimensions. The
	// surface has already been resized by the caller.
	Resize(dims TargetDimensions) error

	// Cleanup releases all resources held by the renderer. The renderer
	// must not be used afterwards. Cleanup is idempotent.
	Cleanup()
}

// AcceleratedProvider creates accelerated renderers and owns the underlying
// GPU worker/context lifecycle. The gpu subpackage's Provider implements it;
// tests substitute fakes.
//
// The split between NewRenderer/Cleanup (per session) and Release/Terminate
// (context-wide) mirrors the idle-release design: stopping the pipeline
// releases session resources immediately, while the context itself survives
// for quick restarts until the idle-release timer terminates it.
type AcceleratedProvider interface {
	// Name returns the provider identifier (e.g. "wgpu").
	Name() string

	// NewRenderer creates an uninitialized accelerated renderer. It fails
	// if the context has been terminated.
	NewRenderer() (Renderer, error)

	// Release drops driver-side resources that are cheap to rebuild
	// (cached pipelines, pooled buffers) while keeping the device usable.
	Release()

	// Terminate tears down the GPU context entirely, reclaiming
	// driver-side caches. Idempotent; after Terminate, NewRenderer fails.
	Terminate()
}
