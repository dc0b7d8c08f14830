package pixelpipe

import "math"

// NativeResolution is the fixed-aspect source resolution of a capture
// source, constant for that source's lifetime.
type NativeResolution struct {
	Width  int
	Height int
}

// Valid reports whether both dimensions are positive.
func (n NativeResolution) Valid() bool {
	return n.Width > 0 && n.Height > 0
}

// TargetDimensions is the presentation size chosen for a source: an exact
// integer multiple of the native resolution.
//
// Invariants: Scale >= 1, Width == native.Width*Scale,
// Height == native.Height*Scale.
type TargetDimensions struct {
	Width  int
	Height int
	Scale  int
}

// Box is available layout space in CSS-like pixels. It describes a content
// box: padding, borders, and sibling footprints must already be subtracted
// (see Inset and ReserveHeight).
type Box struct {
	Width  float64
	Height float64
}

// Inset returns the box shrunk by the given horizontal and vertical
// amounts on both axes, clamped at zero. Use it to remove padding and
// border thickness from a raw element box.
func (b Box) Inset(horizontal, vertical float64) Box {
	return Box{
		Width:  math.Max(0, b.Width-horizontal),
		Height: math.Max(0, b.Height-vertical),
	}
}

// ReserveHeight returns the box with vertical space reserved for a sibling
// element of the given height plus the inter-element gap, clamped at zero.
func (b Box) ReserveHeight(sibling, gap float64) Box {
	if sibling <= 0 {
		return b
	}
	return Box{
		Width:  b.Width,
		Height: math.Max(0, b.Height-sibling-gap),
	}
}

// ReserveWidth is ReserveHeight for a horizontally adjacent sibling.
func (b Box) ReserveWidth(sibling, gap float64) Box {
	if sibling <= 0 {
		return b
	}
	return Box{
		Width:  math.Max(0, b.Width-sibling-gap),
		Height: b.Height,
	}
}

// FitScale returns the largest integer scale factor at which the native
// resolution fits inside the available box, clamped to 1 so the source is
// always presented even when the box is smaller than the source.
//
//	scale = max(1, floor(min(avail.W/native.W, avail.H/native.H)))
func FitScale(native NativeResolution, avail Box) int {
	if !native.Valid() {
		return 1
	}
	sx := avail.Width / float64(native.Width)
	sy := avail.Height / float64(native.Height)
	scale := int(math.Floor(math.Min(sx, sy)))
	if scale < 1 {
		return 1
	}
	return scale
}

// FitTarget computes the target presentation dimensions for a native
// resolution inside an available box. The result is always an exact integer
// multiple of the native dimensions, so every source pixel maps to a
// scale x scale block of identical output pixels.
func FitTarget(native NativeResolution, avail Box) TargetDimensions {
	scale := FitScale(native, avail)
	return TargetDimensions{
		Width:  native.Width * scale,
		Height: native.Height * scale,
		Scale:  scale,
	}
}

// BackingSize returns the pixel dimensions of the backing store for a
// target presented on a display with the given device pixel ratio. Layout
// size stays at target dimensions; the backing store is allocated at
// target x ratio so output pixels align with device pixels.
func BackingSize(target TargetDimensions, devicePixelRatio float64) (int, int) {
	if devicePixelRatio <= 0 {
		devicePixelRatio = 1
	}
	w := int(math.Round(float64(target.Width) * devicePixelRatio))
	h := int(math.Round(float64(target.Height) * devicePixelRatio))
	return w, h
}
