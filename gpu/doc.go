// Package gpu implements the accelerated render path for pixelpipe using
// gogpu/wgpu.
//
// The package provides:
//
//   - Context: ownership of the HAL instance, adapter, device, and queue,
//     with the release/terminate split the Coordinator's idle-release
//     design depends on
//   - Provider: the pixelpipe.AcceleratedProvider implementation handed to
//     the Coordinator at composition time
//   - Renderer: a blit pipeline that uploads each frame to a texture and
//     draws it as a fullscreen triangle with nearest sampling
//   - BindGroupCache, UniformChangeTracker, ScratchBufferPool: the three
//     caches that eliminate steady-state per-frame allocation and
//     redundant GPU calls
//
// The renderer presents either directly to a surface-provided texture view
// (zero-copy) or, for pixel-backed surfaces, through an offscreen render
// target with CPU readback.
package gpu
