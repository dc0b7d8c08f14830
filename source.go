package pixelpipe

// ReadyState describes how much decodable data a frame source has buffered.
// The ordering matches media element ready states: higher values mean more
// data is available.
type ReadyState int

const (
	// ReadyNothing means no media data is available.
	ReadyNothing ReadyState = iota

	// ReadyMetadata means dimensions and duration are known but no frame
	// is decodable yet.
	ReadyMetadata

	// ReadyCurrentData means the frame at the current position is
	// decodable. This is the minimum state at which rendering is allowed.
	ReadyCurrentData

	// ReadyFutureData means at least one frame beyond the current position
	// is buffered.
	ReadyFutureData

	// ReadyEnoughData means playback can proceed without stalling.
	ReadyEnoughData
)

// MinRenderReadyState is the lowest ReadyState at which the FrameScheduler
// will invoke the renderer.
const MinRenderReadyState = ReadyCurrentData

// Frame is a single decoded video frame handed to the pipeline by a
// FrameSource. Data is tightly packed or strided RGBA, 4 bytes per pixel.
type Frame struct {
	// Data holds the pixel bytes. Valid only for the duration of the frame
	// callback; renderers must upload or copy before returning.
	Data []byte

	// Width and Height are the frame dimensions in pixels. They match the
	// source's NativeResolution for the whole stream.
	Width  int
	Height int

	// Stride is the byte distance between rows. Zero means Width*4.
	Stride int

	// MediaTime is the frame's presentation timestamp in seconds of media
	// time. Zero or negative means the source could not report one and the
	// scheduler falls back to wall-clock time for deduplication.
	MediaTime float64
}

// RowStride returns the effective byte stride of the frame.
func (f Frame) RowStride() int {
	if f.Stride > 0 {
		return f.Stride
	}
	return f.Width * 4
}

// CancelFunc cancels a pending frame callback registration. It is safe to
// call more than once.
type CancelFunc func()

// FrameSource is the capture-source handle consumed by the pipeline. It is
// implemented by the host (a device connection, a decoder, a test fake).
//
// RequestFrame registers a one-shot callback invoked when the next frame is
// presented. The returned CancelFunc revokes the registration; sources that
// cannot cancel may return nil, which the scheduler and health monitor
// tolerate.
type FrameSource interface {
	// ReadyState reports the source's current buffered-data readiness.
	ReadyState() ReadyState

	// RequestFrame registers fn to be called with the next presented
	// frame. Each registration fires at most once; callers re-register for
	// subsequent frames.
	RequestFrame(fn func(Frame)) CancelFunc
}
