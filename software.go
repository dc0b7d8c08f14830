// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pixelpipe

import (
	"errors"
	"image"

	"golang.org/x/image/draw"
)

// SoftwareRenderer is the CPU fallback path: an immediate nearest-neighbor
// blit of each frame into the surface's pixel backing store.
//
// When the combined scale factor (integer viewport scale times device pixel
// ratio) is a whole number, the blit is a hand-rolled row replication: each
// source row is expanded once and then copied block-high times, so each
// source pixel maps to exactly a block of identical output pixels with no
// sub-pixel blending at block boundaries. Non-integer density factors fall
// back to x/image's nearest-neighbor scaler, which applies the same
// floor-based source coordinate mapping per output pixel.
type SoftwareRenderer struct {
	surface Surface
	dims    TargetDimensions
}

// NewSoftwareRenderer creates an uninitialized software renderer.
func NewSoftwareRenderer() *SoftwareRenderer {
	return &SoftwareRenderer{}
}

// Initialize binds the renderer to a pixel-backed surface.
func (r *SoftwareRenderer) Initialize(surface Surface, dims TargetDimensions) error {
	if surface == nil {
		return ErrNoSurface
	}
	if surface.Pixels() == nil {
		return errors.New("pixelpipe: surface does not support CPU access")
	}
	r.surface = surface
	r.dims = dims
	return nil
}

// RenderFrame blits one frame into the surface backing store.
func (r *SoftwareRenderer) RenderFrame(frame Frame) error {
	if r.surface == nil {
		return ErrNoSurface
	}
	pix := r.surface.Pixels()
	if pix == nil {
		return ErrSurfaceIrrecoverable
	}
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Data) == 0 {
		return errors.New("pixelpipe: empty frame")
	}

	dstW, dstH := r.surface.Width(), r.surface.Height()
	blockW := dstW / frame.Width
	blockH := dstH / frame.Height
	if blockW >= 1 && blockW == blockH && blockW*frame.Width == dstW && blockH*frame.Height == dstH {
		blitInteger(pix, r.surface.Stride(), frame, blockW)
		return nil
	}

	src := &image.RGBA{
		Pix:    frame.Data,
		Stride: frame.RowStride(),
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
	dst := &image.RGBA{
		Pix:    pix,
		Stride: r.surface.Stride(),
		Rect:   image.Rect(0, 0, dstW, dstH),
	}
	draw.NearestNeighbor.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return nil
}

// Resize adopts new target dimensions. The surface has already been resized
// by the caller; the renderer keeps no sized resources of its own.
func (r *SoftwareRenderer) Resize(dims TargetDimensions) error {
	r.dims = dims
	return nil
}

// Cleanup releases the surface binding. Idempotent.
func (r *SoftwareRenderer) Cleanup() {
	r.surface = nil
}

// blitInteger expands each source pixel into a block x block square of
// identical output pixels. One destination row is assembled per source row,
// then memcpy'd to the remaining block-1 rows.
func blitInteger(dst []byte, dstStride int, frame Frame, block int) {
	srcStride := frame.RowStride()
	rowBytes := frame.Width * block * 4

	for sy := 0; sy < frame.Height; sy++ {
		srcRow := frame.Data[sy*srcStride:]
		dstOff := sy * block * dstStride
		first := dst[dstOff : dstOff+rowBytes]

		// Expand one row horizontally.
		di := 0
		for sx := 0; sx < frame.Width; sx++ {
			p0, p1, p2, p3 := srcRow[sx*4], srcRow[sx*4+1], srcRow[sx*4+2], srcRow[sx*4+3]
			for i := 0; i < block; i++ {
				first[di] = p0
				first[di+1] = p1
				first[di+2] = p2
				first[di+3] = p3
				di += 4
			}
		}

		// Replicate it vertically.
		for by := 1; by < block; by++ {
			off := dstOff + by*dstStride
			copy(dst[off:off+rowBytes], first)
		}
	}
}
