package pixelpipe

import "testing"

func TestPresetByName(t *testing.T) {
	p, ok := PresetByName("vibrant")
	if !ok || p.Name != "vibrant" {
		t.Errorf("PresetByName(vibrant) = %+v, %v", p, ok)
	}
	if p.Saturation <= 1 {
		t.Errorf("vibrant saturation = %v, want > 1", p.Saturation)
	}

	p, ok = PresetByName("no-such-preset")
	if ok {
		t.Error("unknown preset reported as found")
	}
	if p.Name != PresetDefault.Name {
		t.Errorf("unknown preset fallback = %q, want default", p.Name)
	}
}

func TestPresetDefaultsAreNeutral(t *testing.T) {
	for _, p := range []Preset{PresetDefault, PresetPerformance} {
		if p.Saturation != 1 || p.Contrast != 1 || p.Sharpness != 0 {
			t.Errorf("%s preset is not neutral: %+v", p.Name, p)
		}
	}
}
