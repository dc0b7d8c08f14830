// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pixelpipe

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
)

// SurfaceOwnership tracks which render path holds exclusive drawing rights
// for a surface.
//
// Once a surface transitions to OwnershipAccelerated it can never transition
// back: handing a presentation target to an accelerated context is a
// platform-level, irrevocable transfer. The only way to regain CPU access
// is to destroy the surface and create a new one, which is exactly what
// SurfaceManager does.
type SurfaceOwnership int

const (
	// OwnershipUnbound means no renderer has drawn to the surface yet.
	OwnershipUnbound SurfaceOwnership = iota

	// OwnershipSoftware means the CPU path holds the surface. Software
	// ownership is revocable by recreation like any other, but a software
	// surface can also simply be cleared and reused.
	OwnershipSoftware

	// OwnershipAccelerated means the surface has been irrevocably
	// transferred to the accelerated context.
	OwnershipAccelerated
)

// String returns the string representation of SurfaceOwnership.
func (o SurfaceOwnership) String() string {
	switch o {
	case OwnershipUnbound:
		return "unbound"
	case OwnershipSoftware:
		return "software"
	case OwnershipAccelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// Surface is a presentation target. It is an abstraction over different
// destinations:
//
//   - PixmapSurface: CPU-backed pixels, always software-renderable; the
//     accelerated path reaches it through offscreen readback
//   - host window surfaces: provide a backend texture view for zero-copy
//     accelerated presentation
//
// Width and Height are backing-store pixel dimensions. On high-density
// displays the backing store is allocated at layout size times
// DevicePixelRatio while layout size stays at the target dimensions;
// renderers scale their drawing coordinates by the ratio.
type Surface interface {
	// Width returns the backing-store width in pixels.
	Width() int

	// Height returns the backing-store height in pixels.
	Height() int

	// DevicePixelRatio returns the backing-store to layout scale factor.
	DevicePixelRatio() float64

	// Pixels returns direct access to the backing-store pixel data in
	// RGBA order, or nil for GPU-only surfaces.
	Pixels() []byte

	// Stride returns the number of bytes per backing-store row.
	Stride() int

	// TextureView returns the backend-specific texture view handle for
	// accelerated presentation, or nil for CPU-only surfaces. Accelerated
	// renderers type-assert it to their backend's view type.
	TextureView() any

	// Resize reallocates the backing store for new target dimensions and
	// density. Contents after Resize are undefined.
	Resize(dims TargetDimensions, devicePixelRatio float64) error

	// Destroy releases the surface. The surface must not be used after.
	Destroy()
}

// SurfaceProvider creates presentation surfaces. The host supplies one at
// composition time; SurfaceManager calls it whenever the surface must be
// recreated from scratch.
type SurfaceProvider interface {
	CreateSurface(dims TargetDimensions, devicePixelRatio float64) (Surface, error)
}

// SurfaceProviderFunc adapts a function to the SurfaceProvider interface.
type SurfaceProviderFunc func(dims TargetDimensions, devicePixelRatio float64) (Surface, error)

// CreateSurface implements SurfaceProvider.
func (f SurfaceProviderFunc) CreateSurface(dims TargetDimensions, devicePixelRatio float64) (Surface, error) {
	return f(dims, devicePixelRatio)
}

// PixmapSurface is a CPU-backed Surface over an in-memory RGBA image. It is
// the default surface for tests and offscreen presentation.
type PixmapSurface struct {
	img   *image.RGBA
	dims  TargetDimensions
	ratio float64
}

// NewPixmapSurface creates a pixel-backed surface for the given target
// dimensions and device pixel ratio.
func NewPixmapSurface(dims TargetDimensions, devicePixelRatio float64) *PixmapSurface {
	s := &PixmapSurface{}
	_ = s.Resize(dims, devicePixelRatio)
	return s
}

// Width returns the backing-store width in pixels.
func (s *PixmapSurface) Width() int { return s.img.Bounds().Dx() }

// Height returns the backing-store height in pixels.
func (s *PixmapSurface) Height() int { return s.img.Bounds().Dy() }

// DevicePixelRatio returns the backing-store to layout scale factor.
func (s *PixmapSurface) DevicePixelRatio() float64 { return s.ratio }

// Pixels returns the backing-store RGBA bytes.
func (s *PixmapSurface) Pixels() []byte { return s.img.Pix }

// Stride returns the number of bytes per row.
func (s *PixmapSurface) Stride() int { return s.img.Stride }

// TextureView returns nil: PixmapSurface is CPU-only. The accelerated
// renderer falls back to offscreen readback for this surface.
func (s *PixmapSurface) TextureView() any { return nil }

// Image returns the backing image. The returned image shares storage with
// the surface.
func (s *PixmapSurface) Image() *image.RGBA { return s.img }

// Resize reallocates the backing store at dims scaled by the ratio.
func (s *PixmapSurface) Resize(dims TargetDimensions, devicePixelRatio float64) error {
	if devicePixelRatio <= 0 {
		devicePixelRatio = 1
	}
	w, h := BackingSize(dims, devicePixelRatio)
	s.img = image.NewRGBA(image.Rect(0, 0, w, h))
	s.dims = dims
	s.ratio = devicePixelRatio
	return nil
}

// Destroy releases the backing image.
func (s *PixmapSurface) Destroy() { s.img = nil }

// NewPixmapProvider returns a SurfaceProvider producing PixmapSurfaces.
func NewPixmapProvider() SurfaceProvider {
	return SurfaceProviderFunc(func(dims TargetDimensions, ratio float64) (Surface, error) {
		return NewPixmapSurface(dims, ratio), nil
	})
}

// SurfaceManager owns the presentation surface and its ownership state. It
// is the only component that creates or destroys surfaces, which keeps the
// irrevocability invariant in one place: any request that needs CPU access
// to an accelerated-owned surface goes through full recreation.
type SurfaceManager struct {
	mu        sync.Mutex
	provider  SurfaceProvider
	surface   Surface
	ownership SurfaceOwnership
	dims      TargetDimensions
	ratio     float64
	log       *slog.Logger
}

// NewSurfaceManager creates a manager over the given provider. A nil logger
// uses the package logger.
func NewSurfaceManager(provider SurfaceProvider, logger *slog.Logger) *SurfaceManager {
	if logger == nil {
		logger = Logger()
	}
	return &SurfaceManager{provider: provider, ratio: 1, log: logger}
}

// Surface returns the current surface, or nil before the first Ensure.
func (m *SurfaceManager) Surface() Surface {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.surface
}

// Ownership returns the current surface ownership.
func (m *SurfaceManager) Ownership() SurfaceOwnership {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownership
}

// Ensure makes sure a surface exists at the given dimensions and density.
// An existing surface is resized in place when its ownership permits;
// an accelerated-owned surface is never resized here because resizing is a
// drawing-rights operation — callers must go through BindSoftware or
// BindAccelerated, which recreate.
func (m *SurfaceManager) Ensure(dims TargetDimensions, devicePixelRatio float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if devicePixelRatio <= 0 {
		devicePixelRatio = 1
	}
	if m.surface == nil {
		return m.createLocked(dims, devicePixelRatio)
	}
	if m.dims == dims && m.ratio == devicePixelRatio {
		return nil
	}
	if m.ownership == OwnershipAccelerated {
		return m.recreateLocked(dims, devicePixelRatio)
	}
	if err := m.surface.Resize(dims, devicePixelRatio); err != nil {
		return fmt.Errorf("resize surface: %w", err)
	}
	m.dims = dims
	m.ratio = devicePixelRatio
	return nil
}

// BindSoftware prepares the surface for the software renderer and marks
// software ownership. If ownership was already transferred to the
// accelerated path the surface is destroyed and recreated first.
//
// The returned bool reports whether a recreation happened, so the caller
// can emit a canvas-recreated event.
func (m *SurfaceManager) BindSoftware() (recreated bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.surface == nil {
		return false, ErrNoSurface
	}
	if m.ownership == OwnershipAccelerated {
		if err := m.recreateLocked(m.dims, m.ratio); err != nil {
			return false, fmt.Errorf("%w: %v", ErrSurfaceIrrecoverable, err)
		}
		recreated = true
	}
	if m.surface.Pixels() == nil && m.surface.TextureView() != nil {
		// GPU-only surface: the software path has nothing to draw into.
		return recreated, ErrSurfaceIrrecoverable
	}
	m.ownership = OwnershipSoftware
	return recreated, nil
}

// BindAccelerated prepares the surface for the accelerated renderer and
// marks the irrevocable ownership transfer. A surface previously drawn by
// the software path is recreated first so the accelerated context receives
// a pristine target.
func (m *SurfaceManager) BindAccelerated() (recreated bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.surface == nil {
		return false, ErrNoSurface
	}
	if m.ownership != OwnershipUnbound {
		if err := m.recreateLocked(m.dims, m.ratio); err != nil {
			return false, err
		}
		recreated = true
	}
	m.ownership = OwnershipAccelerated
	return recreated, nil
}

// Recreate destroys and recreates the surface at its current dimensions,
// resetting ownership to unbound.
func (m *SurfaceManager) Recreate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.surface == nil {
		return ErrNoSurface
	}
	return m.recreateLocked(m.dims, m.ratio)
}

// Clear fills a software-accessible surface with opaque black. If ownership
// has been transferred to the accelerated path the surface is left alone:
// the CPU has no drawing rights, and the caller is expected to log and
// continue.
func (m *SurfaceManager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.surface == nil {
		return ErrNoSurface
	}
	if m.ownership == OwnershipAccelerated {
		m.log.Warn("surface clear skipped, ownership transferred to accelerated context")
		return ErrSurfaceIrrecoverable
	}
	pix := m.surface.Pixels()
	if pix == nil {
		return nil
	}
	for i := 0; i < len(pix); i += 4 {
		pix[i] = 0
		pix[i+1] = 0
		pix[i+2] = 0
		pix[i+3] = 0xff
	}
	return nil
}

// Destroy releases the surface and resets ownership.
func (m *SurfaceManager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.surface != nil {
		m.surface.Destroy()
		m.surface = nil
	}
	m.ownership = OwnershipUnbound
}

func (m *SurfaceManager) createLocked(dims TargetDimensions, ratio float64) error {
	s, err := m.provider.CreateSurface(dims, ratio)
	if err != nil {
		return fmt.Errorf("create surface: %w", err)
	}
	m.surface = s
	m.dims = dims
	m.ratio = ratio
	m.ownership = OwnershipUnbound
	return nil
}

func (m *SurfaceManager) recreateLocked(dims TargetDimensions, ratio float64) error {
	m.surface.Destroy()
	m.surface = nil
	m.log.Debug("surface recreated", "width", dims.Width, "height", dims.Height, "scale", dims.Scale)
	return m.createLocked(dims, ratio)
}
