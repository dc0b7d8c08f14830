// Command pixelpipe-demo runs the rendering pipeline against a synthetic
// animated frame source and saves the final presented surface as a PNG.
package main

import (
	"flag"
	"image/png"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/gogpu/pixelpipe"
)

func main() {
	var (
		width  = flag.Int("width", 320, "native frame width")
		height = flag.Int("height", 240, "native frame height")
		boxW   = flag.Float64("box-width", 1280, "container width in CSS pixels")
		boxH   = flag.Float64("box-height", 960, "container height in CSS pixels")
		frames = flag.Int("frames", 120, "number of frames to stream")
		fps    = flag.Int("fps", 60, "synthetic source frame rate")
		preset = flag.String("preset", "default", "render preset name")
		output = flag.String("output", "demo.png", "output file")
	)
	flag.Parse()

	src := newSyntheticSource(*width, *height)
	surfaces := pixelpipe.NewSurfaceManager(pixelpipe.NewPixmapProvider(), nil)

	coord := pixelpipe.NewCoordinator(pixelpipe.Config{
		Source:       src,
		Surfaces:     surfaces,
		Capabilities: pixelpipe.SoftwareOnlyCapabilities(),
		Container: func() pixelpipe.Box {
			return pixelpipe.Box{Width: *boxW, Height: *boxH}
		},
	})
	coord.Subscribe(func(ev pixelpipe.Event) {
		if ev.Err != nil {
			log.Printf("pipeline event: %v: %v", ev.Kind, ev.Err)
		}
	})

	p, ok := pixelpipe.PresetByName(*preset)
	if !ok {
		log.Fatalf("Unknown preset %q", *preset)
	}
	coord.HandlePresetChanged(p)

	// StartPipeline blocks until the first frame arrives, so the source
	// must be ticking before we call it.
	done := src.stream(*frames, *fps)
	if err := coord.StartPipeline(pixelpipe.NativeResolution{Width: *width, Height: *height}); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}
	<-done
	coord.StopPipeline()

	surface, ok := surfaces.Surface().(*pixelpipe.PixmapSurface)
	if !ok {
		log.Fatalf("No pixmap surface to save")
	}
	if err := savePNG(*output, surface); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	log.Printf("Demo saved to %s (%dx%d, %d frames)\n",
		*output, surface.Width(), surface.Height(), *frames)
}

func savePNG(path string, surface *pixelpipe.PixmapSurface) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, surface.Image()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syntheticSource generates an animated RGBA plasma so the pipeline has
// something to scale and present.
type syntheticSource struct {
	width  int
	height int

	mu      sync.Mutex
	pending []func(pixelpipe.Frame)
}

func newSyntheticSource(width, height int) *syntheticSource {
	return &syntheticSource{width: width, height: height}
}

func (s *syntheticSource) ReadyState() pixelpipe.ReadyState {
	return pixelpipe.ReadyEnoughData
}

func (s *syntheticSource) RequestFrame(fn func(pixelpipe.Frame)) pixelpipe.CancelFunc {
	s.mu.Lock()
	s.pending = append(s.pending, fn)
	s.mu.Unlock()
	return nil
}

// stream emits count frames at the given rate on a background goroutine and
// closes the returned channel when the last frame has been delivered.
func (s *syntheticSource) stream(count, fps int) <-chan struct{} {
	done := make(chan struct{})
	interval := time.Second / time.Duration(fps)

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i := 0; i < count; i++ {
			<-ticker.C
			s.emit(float64(i) / float64(fps))
		}
	}()
	return done
}

func (s *syntheticSource) emit(mediaTime float64) {
	s.mu.Lock()
	callbacks := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(callbacks) == 0 {
		return
	}
	frame := pixelpipe.Frame{
		Data:      plasma(s.width, s.height, mediaTime),
		Width:     s.width,
		Height:    s.height,
		MediaTime: mediaTime,
	}
	for _, fn := range callbacks {
		fn(frame)
	}
}

func plasma(w, h int, t float64) []byte {
	buf := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		fy := float64(y) / float64(h)
		for x := 0; x < w; x++ {
			fx := float64(x) / float64(w)
			v := math.Sin(fx*10+t*2) + math.Sin(fy*8-t*3) + math.Sin((fx+fy)*6+t)
			i := (y*w + x) * 4
			buf[i+0] = channel(v, 0)
			buf[i+1] = channel(v, 2*math.Pi/3)
			buf[i+2] = channel(v, 4*math.Pi/3)
			buf[i+3] = 0xff
		}
	}
	return buf
}

func channel(v, phase float64) byte {
	return byte(127.5 + 127.5*math.Sin(v+phase))
}
