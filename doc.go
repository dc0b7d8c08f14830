// Package pixelpipe presents a live low-resolution video frame stream on a
// surface at pixel-perfect integer scale.
//
// # Overview
//
// pixelpipe sits between a frame-producing capture source and a presentation
// surface. At startup it waits for the stream to become healthy, sizes the
// surface to the largest integer multiple of the source resolution that fits
// the available box, and then drives a render loop through one of two
// renderers:
//
//   - Accelerated: a WebGPU blit pipeline (github.com/gogpu/pixelpipe/gpu)
//     that uploads each frame to a texture and draws it with nearest
//     sampling, caching bind groups and uniform state so the steady-state
//     frame cost is one texture upload and one draw.
//   - Software: a CPU nearest-neighbor blit into the surface's pixel
//     buffer, used when no GPU is available or when performance mode
//     requests it.
//
// The Coordinator owns path selection and survives mid-stream renderer
// swaps: when the accelerated path fails or performance mode toggles, the
// stream keeps presenting through the other renderer without interruption.
//
// # Quick Start
//
//	coord := pixelpipe.NewCoordinator(pixelpipe.Config{
//	    Source:       src, // your FrameSource
//	    Surfaces:     pixelpipe.NewSurfaceManager(provider, nil),
//	    Capabilities: pixelpipe.SoftwareOnlyCapabilities(),
//	    Container:    func() pixelpipe.Box { return box },
//	})
//	if err := coord.StartPipeline(pixelpipe.NativeResolution{Width: 160, Height: 144}); err != nil {
//	    log.Fatal(err)
//	}
//	defer coord.StopPipeline()
//
// To enable the accelerated path, pass a provider from the gpu subpackage:
//
//	ctx, _ := gpu.NewContext(gpu.ContextConfig{API: api})
//	cfg.Accelerated = gpu.NewProvider(ctx)
//	cfg.Capabilities = ctx.Probe()
//
// # Architecture
//
// The library is organized into:
//   - Root package: coordinator state machine, frame scheduler, stream
//     health monitor, viewport sizing, surface management, software blit
//   - gpu: accelerated renderer and its resource caches over gogpu/wgpu
//   - cache: generic sharded LRU cache used by the GPU resource caches
//
// The root package never imports gpu; the host application wires the two
// together through the AcceleratedProvider interface. This keeps CPU-only
// deployments free of GPU dependencies.
//
// # Concurrency
//
// The pipeline is callback-driven and effectively single-threaded: frame
// callbacks arrive from the source, and the only time-bounded waits are the
// stream-health timeout and the idle-release timer. All exported types
// guard their state with a mutex so callbacks and control calls may arrive
// from different goroutines, but no component spawns goroutines of its own
// beyond single-shot timers.
package pixelpipe
