package pixelpipe

import "testing"

func TestFitScale(t *testing.T) {
	native := NativeResolution{Width: 160, Height: 144}

	tests := []struct {
		name  string
		avail Box
		want  int
	}{
		{"exact multiple", Box{Width: 640, Height: 576}, 4},
		{"room to spare", Box{Width: 776, Height: 576}, 4},
		{"height limited", Box{Width: 1600, Height: 432}, 3},
		{"width limited", Box{Width: 480, Height: 1440}, 3},
		{"smaller than native", Box{Width: 100, Height: 90}, 1},
		{"zero box", Box{}, 1},
		{"just under next scale", Box{Width: 799, Height: 719}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FitScale(native, tt.avail); got != tt.want {
				t.Errorf("FitScale(%v) = %d, want %d", tt.avail, got, tt.want)
			}
		})
	}
}

func TestFitScaleInvalidNative(t *testing.T) {
	if got := FitScale(NativeResolution{}, Box{Width: 640, Height: 576}); got != 1 {
		t.Errorf("FitScale with invalid native = %d, want 1", got)
	}
}

func TestFitTarget(t *testing.T) {
	native := NativeResolution{Width: 160, Height: 144}
	avail := Box{Width: 776, Height: 576}

	got := FitTarget(native, avail)
	want := TargetDimensions{Width: 640, Height: 576, Scale: 4}
	if got != want {
		t.Errorf("FitTarget = %+v, want %+v", got, want)
	}

	// The target must stay an exact integer multiple of native.
	if got.Width%native.Width != 0 || got.Height%native.Height != 0 {
		t.Errorf("target %dx%d is not an integer multiple of %dx%d",
			got.Width, got.Height, native.Width, native.Height)
	}
}

func TestFitTargetWithReservedSibling(t *testing.T) {
	native := NativeResolution{Width: 160, Height: 144}

	// The same container, minus a 50px sibling with a 24px gap, drops a
	// whole scale step.
	avail := Box{Width: 776, Height: 576}.ReserveHeight(50, 24)

	got := FitTarget(native, avail)
	want := TargetDimensions{Width: 480, Height: 432, Scale: 3}
	if got != want {
		t.Errorf("FitTarget = %+v, want %+v", got, want)
	}
}

func TestBoxInset(t *testing.T) {
	b := Box{Width: 100, Height: 80}.Inset(16, 8)
	if b.Width != 84 || b.Height != 72 {
		t.Errorf("Inset = %+v, want {84 72}", b)
	}

	b = Box{Width: 10, Height: 10}.Inset(20, 20)
	if b.Width != 0 || b.Height != 0 {
		t.Errorf("Inset should clamp at zero, got %+v", b)
	}
}

func TestBoxReserve(t *testing.T) {
	b := Box{Width: 100, Height: 100}

	if got := b.ReserveHeight(0, 24); got != b {
		t.Errorf("ReserveHeight with no sibling should be a no-op, got %+v", got)
	}
	if got := b.ReserveWidth(30, 10); got.Width != 60 || got.Height != 100 {
		t.Errorf("ReserveWidth = %+v, want {60 100}", got)
	}
	if got := b.ReserveHeight(200, 24); got.Height != 0 {
		t.Errorf("ReserveHeight should clamp at zero, got %+v", got)
	}
}

func TestBackingSize(t *testing.T) {
	target := TargetDimensions{Width: 640, Height: 576, Scale: 4}

	tests := []struct {
		ratio float64
		wantW int
		wantH int
	}{
		{1, 640, 576},
		{2, 1280, 1152},
		{1.5, 960, 864},
		{0, 640, 576}, // invalid ratio falls back to 1
	}
	for _, tt := range tests {
		w, h := BackingSize(target, tt.ratio)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("BackingSize(ratio=%v) = %dx%d, want %dx%d", tt.ratio, w, h, tt.wantW, tt.wantH)
		}
	}
}
