package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/pixelpipe"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the BytesPerRow alignment WebGPU and DX12 require
// for texture-to-buffer copies.
const copyPitchAlignment = 256

// fenceTimeout bounds the wait for frame submission.
const fenceTimeout = 5 * time.Second

// Renderer is the accelerated frame renderer. It uploads each source frame
// to a GPU texture and blits it to the surface at integer scale through the
// shared fullscreen pipeline, applying the active preset's color adjustments
// in the fragment stage.
//
// Two output paths exist. When the surface exposes a hal.TextureView the
// frame renders directly into it. Otherwise the renderer draws into an
// offscreen target and reads the pixels back into the surface's CPU
// backing store.
type Renderer struct {
	ctx  *Context
	pipe *blitPipeline

	mu      sync.Mutex
	surface pixelpipe.Surface
	dims    pixelpipe.TargetDimensions
	preset  pixelpipe.Preset

	// Source texture, recreated when the incoming frame size changes.
	srcTex   hal.Texture
	srcView  hal.TextureView
	srcW     int
	srcH     int
	srcGen   uint64
	srcLabel string

	uniformBuf hal.Buffer

	// Offscreen readback path, used when the surface has no texture view.
	offscreen  bool
	targetTex  hal.Texture
	targetView hal.TextureView
	staging    hal.Buffer
	stagingLen uint64

	// Direct path.
	surfaceView hal.TextureView

	bindGroups *BindGroupCache
	uniforms   *UniformChangeTracker
	scratch    *ScratchBufferPool

	initialized bool
}

func newRenderer(ctx *Context) *Renderer {
	return &Renderer{
		ctx:    ctx,
		preset: pixelpipe.PresetDefault,
	}
}

// Initialize acquires the shared pipeline and creates the per-session
// resources for the given surface and target dimensions.
func (r *Renderer) Initialize(surface pixelpipe.Surface, dims pixelpipe.TargetDimensions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return fmt.Errorf("%w: renderer already initialized", pixelpipe.ErrAcceleratedInitFailed)
	}

	pipe, err := r.ctx.pipeline()
	if err != nil {
		return fmt.Errorf("%w: %w", pixelpipe.ErrAcceleratedInitFailed, err)
	}
	device := r.ctx.Device()
	if device == nil {
		return fmt.Errorf("%w: no device", pixelpipe.ErrAcceleratedInitFailed)
	}
	if max := r.ctx.MaxTextureDimension(); max > 0 && (surface.Width() > max || surface.Height() > max) {
		return fmt.Errorf("%w: surface %dx%d exceeds max texture dimension %d",
			pixelpipe.ErrAcceleratedInitFailed, surface.Width(), surface.Height(), max)
	}

	r.pipe = pipe
	r.surface = surface
	r.dims = dims

	uniformBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "blit_uniforms",
		Size:  blitUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("%w: create uniform buffer: %w", pixelpipe.ErrAcceleratedInitFailed, err)
	}
	r.uniformBuf = uniformBuf

	if view, ok := surface.TextureView().(hal.TextureView); ok && view != nil {
		r.surfaceView = view
	} else {
		r.offscreen = true
		if err := r.createOffscreenLocked(device); err != nil {
			r.cleanupLocked()
			return fmt.Errorf("%w: %w", pixelpipe.ErrAcceleratedInitFailed, err)
		}
	}

	r.bindGroups = NewBindGroupCache(device)
	r.uniforms = NewUniformChangeTracker()
	r.scratch = NewScratchBufferPool()
	r.initialized = true
	return nil
}

// RenderFrame uploads the frame and draws it to the surface. The frame's
// pixel bytes are consumed before RenderFrame returns.
func (r *Renderer) RenderFrame(frame pixelpipe.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return fmt.Errorf("gpu: render on uninitialized renderer")
	}
	device := r.ctx.Device()
	queue := r.ctx.Queue()
	if device == nil || queue == nil {
		return ErrContextTerminated
	}

	if err := r.ensureSourceTextureLocked(device, frame.Width, frame.Height); err != nil {
		return err
	}
	r.uploadFrameLocked(queue, frame)
	if err := r.writeUniformsLocked(queue); err != nil {
		return err
	}

	bg, err := r.bindGroups.GetOrCreate(blitPipelineLabel, r.srcLabel, func() (hal.BindGroup, error) {
		return device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "blit_bind",
			Layout: r.pipe.bindLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{
					Buffer: r.uniformBuf.NativeHandle(), Offset: 0, Size: blitUniformSize,
				}},
				{Binding: 1, Resource: gputypes.TextureViewBinding{
					TextureView: r.srcView.NativeHandle(),
				}},
				{Binding: 2, Resource: gputypes.SamplerBinding{
					Sampler: r.pipe.sampler.NativeHandle(),
				}},
			},
		})
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}

	return r.encodeSubmitLocked(device, queue, bg)
}

// Resize adapts the renderer to new target dimensions. The surface has
// already been resized by its manager; offscreen targets are recreated to
// match and all cached bindings are invalidated.
func (r *Renderer) Resize(dims pixelpipe.TargetDimensions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return fmt.Errorf("gpu: resize on uninitialized renderer")
	}
	device := r.ctx.Device()
	if device == nil {
		return ErrContextTerminated
	}
	r.dims = dims

	if r.offscreen {
		r.destroyOffscreenLocked(device)
		if err := r.createOffscreenLocked(device); err != nil {
			return err
		}
	} else {
		view, ok := r.surface.TextureView().(hal.TextureView)
		if !ok || view == nil {
			return pixelpipe.ErrSurfaceIrrecoverable
		}
		r.surfaceView = view
	}

	r.bindGroups.Invalidate()
	r.uniforms.InvalidateAll()
	return nil
}

// ApplyPreset switches the active visual preset. The change takes effect
// on the next rendered frame.
func (r *Renderer) ApplyPreset(p pixelpipe.Preset) error {
	r.mu.Lock()
	r.preset = p
	r.mu.Unlock()
	return nil
}

// CacheStats reports bind group cache hits and misses.
func (r *Renderer) CacheStats() (hits, misses uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bindGroups == nil {
		return 0, 0
	}
	return r.bindGroups.Stats()
}

// Cleanup destroys all per-session resources. The shared pipeline stays
// with the context.
func (r *Renderer) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanupLocked()
}

func (r *Renderer) cleanupLocked() {
	device := r.ctx.Device()
	if r.bindGroups != nil {
		r.bindGroups.Clear()
		r.bindGroups = nil
	}
	if device != nil {
		r.destroyOffscreenLocked(device)
		r.destroySourceLocked(device)
		if r.uniformBuf != nil {
			device.DestroyBuffer(r.uniformBuf)
			r.uniformBuf = nil
		}
	}
	if r.scratch != nil {
		r.scratch.Release()
		r.scratch = nil
	}
	r.uniforms = nil
	r.surfaceView = nil
	r.surface = nil
	r.pipe = nil
	r.initialized = false
}

// ensureSourceTextureLocked creates or recreates the source texture to
// match the incoming frame size.
func (r *Renderer) ensureSourceTextureLocked(device hal.Device, w, h int) error {
	if r.srcTex != nil && r.srcW == w && r.srcH == h {
		return nil
	}
	r.destroySourceLocked(device)

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "frame_source",
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create source texture: %w", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "frame_source_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return fmt.Errorf("create source view: %w", err)
	}

	r.srcTex = tex
	r.srcView = view
	r.srcW = w
	r.srcH = h
	r.srcGen++
	r.srcLabel = fmt.Sprintf("frame_source_%d", r.srcGen)
	if r.bindGroups != nil {
		r.bindGroups.Invalidate()
	}
	return nil
}

func (r *Renderer) destroySourceLocked(device hal.Device) {
	if r.srcView != nil {
		device.DestroyTextureView(r.srcView)
		r.srcView = nil
	}
	if r.srcTex != nil {
		device.DestroyTexture(r.srcTex)
		r.srcTex = nil
	}
	r.srcW, r.srcH = 0, 0
}

// uploadFrameLocked writes the frame pixels into the source texture,
// repacking strided rows into a tight buffer first when needed.
func (r *Renderer) uploadFrameLocked(queue hal.Queue, frame pixelpipe.Frame) {
	tight := frame.Width * 4
	data := frame.Data
	if frame.RowStride() != tight {
		stride := frame.RowStride()
		packed := r.scratch.Acquire(tight * frame.Height)
		for row := 0; row < frame.Height; row++ {
			copy(packed[row*tight:(row+1)*tight], data[row*stride:row*stride+tight])
		}
		data = packed
	}

	queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: r.srcTex, MipLevel: 0, Aspect: gputypes.TextureAspectAll},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(tight), RowsPerImage: uint32(frame.Height)},
		&hal.Extent3D{Width: uint32(frame.Width), Height: uint32(frame.Height), DepthOrArrayLayers: 1},
	)
}

// writeUniformsLocked encodes the blit uniforms and uploads them if they
// changed since the previous frame.
func (r *Renderer) writeUniformsLocked(queue hal.Queue) error {
	payload := r.scratch.Acquire(blitUniformSize)
	putF32 := func(off int, v float32) {
		binary.LittleEndian.PutUint32(payload[off:], math.Float32bits(v))
	}
	putF32(0, float32(r.surface.Width()))
	putF32(4, float32(r.surface.Height()))
	putF32(8, 1/float32(r.srcW))
	putF32(12, 1/float32(r.srcH))
	putF32(16, r.preset.Saturation)
	putF32(20, r.preset.Contrast)
	putF32(24, r.preset.Sharpness)
	putF32(28, 0)

	if r.uniforms.HasChanged("blit", payload) {
		queue.WriteBuffer(r.uniformBuf, 0, payload)
	}
	return nil
}

// encodeSubmitLocked records the blit pass, submits it, and on the
// offscreen path reads the result back into the surface pixels.
func (r *Renderer) encodeSubmitLocked(device hal.Device, queue hal.Queue, bg hal.BindGroup) error {
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "blit_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("blit_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	view := r.surfaceView
	if r.offscreen {
		view = r.targetView
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "blit_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	rp.SetPipeline(r.pipe.pipeline)
	rp.SetBindGroup(0, bg, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()

	var alignedBytesPerRow uint32
	w := uint32(r.surface.Width())
	h := uint32(r.surface.Height())
	if r.offscreen {
		// CopyTextureToBuffer needs TRANSFER_SRC layout; the transition
		// pair keeps the target reusable next frame.
		encoder.TransitionTextures([]hal.TextureBarrier{{
			Texture: r.targetTex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		}})

		alignedBytesPerRow = (w*4 + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
		encoder.CopyTextureToBuffer(r.targetTex, r.staging, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
			TextureBase:  hal.ImageCopyTexture{Texture: r.targetTex, MipLevel: 0},
			Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		}})

		encoder.TransitionTextures([]hal.TextureBarrier{{
			Texture: r.targetTex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopySrc,
				NewUsage: gputypes.TextureUsageRenderAttachment,
			},
		}})
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	if r.offscreen {
		return r.readbackLocked(queue, w, h, alignedBytesPerRow)
	}
	return nil
}

// readbackLocked copies the offscreen target into the surface backing
// store, stripping copy-pitch padding and converting BGRA to RGBA.
func (r *Renderer) readbackLocked(queue hal.Queue, w, h, alignedBytesPerRow uint32) error {
	readback := r.scratch.Acquire(int(r.stagingLen))
	if err := queue.ReadBuffer(r.staging, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}

	pixels := r.surface.Pixels()
	if pixels == nil {
		return pixelpipe.ErrSurfaceIrrecoverable
	}
	stride := r.surface.Stride()
	rowBytes := int(w) * 4
	for row := 0; row < int(h); row++ {
		src := readback[row*int(alignedBytesPerRow):]
		dst := pixels[row*stride:]
		for x := 0; x < rowBytes; x += 4 {
			dst[x] = src[x+2]
			dst[x+1] = src[x+1]
			dst[x+2] = src[x]
			dst[x+3] = src[x+3]
		}
	}
	return nil
}

// createOffscreenLocked allocates the render target and staging buffer at
// the surface's current backing size.
func (r *Renderer) createOffscreenLocked(device hal.Device) error {
	w := uint32(r.surface.Width())
	h := uint32(r.surface.Height())
	if w == 0 || h == 0 {
		return fmt.Errorf("gpu: zero-sized surface")
	}

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "blit_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create offscreen target: %w", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "blit_target_view",
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return fmt.Errorf("create offscreen view: %w", err)
	}

	alignedBytesPerRow := (w*4 + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingLen := uint64(alignedBytesPerRow) * uint64(h)
	staging, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "blit_staging",
		Size:  stagingLen,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		device.DestroyTextureView(view)
		device.DestroyTexture(tex)
		return fmt.Errorf("create staging buffer: %w", err)
	}

	r.targetTex = tex
	r.targetView = view
	r.staging = staging
	r.stagingLen = stagingLen
	return nil
}

func (r *Renderer) destroyOffscreenLocked(device hal.Device) {
	if r.staging != nil {
		device.DestroyBuffer(r.staging)
		r.staging = nil
	}
	if r.targetView != nil {
		device.DestroyTextureView(r.targetView)
		r.targetView = nil
	}
	if r.targetTex != nil {
		device.DestroyTexture(r.targetTex)
		r.targetTex = nil
	}
	r.stagingLen = 0
}

var (
	_ pixelpipe.Renderer      = (*Renderer)(nil)
	_ pixelpipe.PresetApplier = (*Renderer)(nil)
)
