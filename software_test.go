package pixelpipe

import "testing"

// checkerFrame builds a 2x2 frame with four distinct pixels.
func checkerFrame() Frame {
	return Frame{
		Width:  2,
		Height: 2,
		Data: []byte{
			0xff, 0x00, 0x00, 0xff, 0x00, 0xff, 0x00, 0xff, // red, green
			0x00, 0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, // blue, white
		},
	}
}

func pixelAt(s Surface, x, y int) [4]byte {
	pix := s.Pixels()
	off := y*s.Stride() + x*4
	return [4]byte{pix[off], pix[off+1], pix[off+2], pix[off+3]}
}

func TestSoftwareRendererIntegerBlit(t *testing.T) {
	dims := TargetDimensions{Width: 6, Height: 6, Scale: 3}
	surface := NewPixmapSurface(dims, 1)

	r := NewSoftwareRenderer()
	if err := r.Initialize(surface, dims); err != nil {
		t.Fatal(err)
	}
	if err := r.RenderFrame(checkerFrame()); err != nil {
		t.Fatal(err)
	}

	red := [4]byte{0xff, 0x00, 0x00, 0xff}
	green := [4]byte{0x00, 0xff, 0x00, 0xff}
	blue := [4]byte{0x00, 0x00, 0xff, 0xff}
	white := [4]byte{0xff, 0xff, 0xff, 0xff}

	// Every source pixel must map to a 3x3 block of identical output
	// pixels with no blending at block boundaries.
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			want := red
			switch {
			case x >= 3 && y < 3:
				want = green
			case x < 3 && y >= 3:
				want = blue
			case x >= 3 && y >= 3:
				want = white
			}
			if got := pixelAt(surface, x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestSoftwareRendererStridedFrame(t *testing.T) {
	dims := TargetDimensions{Width: 4, Height: 4, Scale: 2}
	surface := NewPixmapSurface(dims, 1)

	// 2x2 frame with 4 bytes of per-row padding.
	f := Frame{
		Width:  2,
		Height: 2,
		Stride: 12,
		Data: []byte{
			0xff, 0x00, 0x00, 0xff, 0x00, 0xff, 0x00, 0xff, 0xaa, 0xbb, 0xcc, 0xdd,
			0x00, 0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xaa, 0xbb, 0xcc, 0xdd,
		},
	}

	r := NewSoftwareRenderer()
	if err := r.Initialize(surface, dims); err != nil {
		t.Fatal(err)
	}
	if err := r.RenderFrame(f); err != nil {
		t.Fatal(err)
	}

	if got := pixelAt(surface, 0, 0); got != [4]byte{0xff, 0x00, 0x00, 0xff} {
		t.Errorf("top-left = %v, want red", got)
	}
	if got := pixelAt(surface, 3, 3); got != [4]byte{0xff, 0xff, 0xff, 0xff} {
		t.Errorf("bottom-right = %v, want white", got)
	}
	// Padding bytes must never leak into the output.
	if got := pixelAt(surface, 3, 0); got != [4]byte{0x00, 0xff, 0x00, 0xff} {
		t.Errorf("top-right = %v, want green", got)
	}
}

func TestSoftwareRendererFractionalDensity(t *testing.T) {
	dims := TargetDimensions{Width: 2, Height: 2, Scale: 1}
	surface := NewPixmapSurface(dims, 1.5) // 3x3 backing store

	r := NewSoftwareRenderer()
	if err := r.Initialize(surface, dims); err != nil {
		t.Fatal(err)
	}
	if err := r.RenderFrame(checkerFrame()); err != nil {
		t.Fatal(err)
	}

	// Nearest-neighbor: corners come straight from the source corners,
	// never blended.
	if got := pixelAt(surface, 0, 0); got != [4]byte{0xff, 0x00, 0x00, 0xff} {
		t.Errorf("top-left = %v, want red", got)
	}
	if got := pixelAt(surface, 2, 2); got != [4]byte{0xff, 0xff, 0xff, 0xff} {
		t.Errorf("bottom-right = %v, want white", got)
	}
}

func TestSoftwareRendererRejectsGPUOnlySurface(t *testing.T) {
	r := NewSoftwareRenderer()
	if err := r.Initialize(nil, TargetDimensions{}); err == nil {
		t.Error("Initialize(nil) should fail")
	}
}

func TestSoftwareRendererEmptyFrame(t *testing.T) {
	dims := TargetDimensions{Width: 2, Height: 2, Scale: 1}
	surface := NewPixmapSurface(dims, 1)
	r := NewSoftwareRenderer()
	if err := r.Initialize(surface, dims); err != nil {
		t.Fatal(err)
	}
	if err := r.RenderFrame(Frame{}); err == nil {
		t.Error("RenderFrame with empty frame should fail")
	}
}

func TestSoftwareRendererCleanup(t *testing.T) {
	dims := TargetDimensions{Width: 2, Height: 2, Scale: 1}
	surface := NewPixmapSurface(dims, 1)
	r := NewSoftwareRenderer()
	if err := r.Initialize(surface, dims); err != nil {
		t.Fatal(err)
	}
	r.Cleanup()
	if err := r.RenderFrame(checkerFrame()); err == nil {
		t.Error("RenderFrame after Cleanup should fail")
	}
	r.Cleanup()
}
