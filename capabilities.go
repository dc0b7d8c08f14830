package pixelpipe

// RenderPath identifies a rendering implementation.
type RenderPath int

const (
	// PathSoftware is CPU nearest-neighbor blitting.
	PathSoftware RenderPath = iota

	// PathAccelerated is the primary GPU blit pipeline.
	PathAccelerated

	// PathSecondaryAccelerated is a fallback GPU implementation (e.g. a
	// GLES-class backend when the primary backend is unavailable).
	PathSecondaryAccelerated
)

// String returns the string representation of RenderPath.
func (p RenderPath) String() string {
	switch p {
	case PathSoftware:
		return "software"
	case PathAccelerated:
		return "accelerated"
	case PathSecondaryAccelerated:
		return "secondary-accelerated"
	default:
		return "unknown"
	}
}

// Capabilities describes what the probed GPU stack can do. It is produced
// once per process (by gpu.Context.Probe or by the host) and is immutable
// after creation: the Coordinator reads it but never modifies it.
type Capabilities struct {
	// AcceleratedAvailable reports whether the primary GPU path can be used.
	AcceleratedAvailable bool

	// SecondaryAcceleratedAvailable reports whether a fallback GPU path
	// exists should the primary one fail at initialization time.
	SecondaryAcceleratedAvailable bool

	// MaxTextureDimension is the largest texture edge the device supports.
	// Zero means unknown.
	MaxTextureDimension int

	// Preferred is the path the probe recommends trying first.
	Preferred RenderPath
}

// SoftwareOnlyCapabilities returns a Capabilities value describing a system
// with no usable GPU. StartPipeline with these capabilities goes straight to
// the software renderer without attempting accelerated initialization.
func SoftwareOnlyCapabilities() Capabilities {
	return Capabilities{Preferred: PathSoftware}
}
