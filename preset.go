package pixelpipe

// Preset is a named visual configuration applied to the accelerated path.
// The parameters feed the blit shader's color-adjust uniforms; the software
// path ignores presets entirely.
type Preset struct {
	// Name identifies the preset ("default", "vibrant", ...).
	Name string

	// Saturation scales chroma. 1 is neutral.
	Saturation float32

	// Contrast scales distance from mid-gray. 1 is neutral.
	Contrast float32

	// Sharpness in [0,1] blends in a light unsharp mask. 0 disables it,
	// which also skips the extra texture taps in the shader.
	Sharpness float32
}

// Built-in presets.
var (
	// PresetDefault is the neutral preset: the frame is presented as
	// decoded.
	PresetDefault = Preset{Name: "default", Saturation: 1, Contrast: 1}

	// PresetVibrant boosts saturation and contrast slightly.
	PresetVibrant = Preset{Name: "vibrant", Saturation: 1.25, Contrast: 1.1}

	// PresetSharp adds the unsharp mask at neutral color.
	PresetSharp = Preset{Name: "sharp", Saturation: 1, Contrast: 1, Sharpness: 0.5}

	// PresetPerformance is the preset the Coordinator applies while
	// performance mode is active. It is never cached as a user preset.
	PresetPerformance = Preset{Name: "performance", Saturation: 1, Contrast: 1}
)

// PresetByName returns the built-in preset with the given name, or
// PresetDefault and false if no such preset exists.
func PresetByName(name string) (Preset, bool) {
	for _, p := range []Preset{PresetDefault, PresetVibrant, PresetSharp, PresetPerformance} {
		if p.Name == name {
			return p, true
		}
	}
	return PresetDefault, false
}

// PresetApplier is an optional interface for renderers that support visual
// presets. The accelerated renderer implements it; the software renderer
// does not.
type PresetApplier interface {
	ApplyPreset(Preset) error
}
