package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pixelpipe"
)

// Context errors.
var (
	// ErrContextTerminated is returned when creating renderers on a
	// terminated context.
	ErrContextTerminated = errors.New("gpu: context terminated")

	// ErrNoAdapter is returned when the HAL instance reports no usable
	// adapters.
	ErrNoAdapter = errors.New("gpu: no GPU adapter available")
)

// halProvider is the optional interface a gpucontext.DeviceProvider
// implements to expose its underlying wgpu/hal handles for sharing.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// ContextConfig configures GPU context creation.
type ContextConfig struct {
	// API is the HAL backend to open a device on. Required unless
	// Provider is set.
	API hal.Backend

	// Provider optionally shares a host application's device instead of
	// opening a new one. The provider must expose its hal handles via
	// HalDevice/HalQueue; otherwise NewContext falls back to API.
	Provider gpucontext.DeviceProvider
}

// Context owns the GPU worker state for the accelerated path: the HAL
// instance, device, and queue, plus the blit pipeline shared across render
// sessions so a quick stop/start does not recompile shaders.
//
// Lifecycle: Release drops the shared pipeline (cheap to rebuild) while
// keeping the device usable; Terminate destroys the device and instance
// entirely. Terminate is idempotent and is the idle-release timer's lever
// for reclaiming driver-side caches.
type Context struct {
	mu       sync.Mutex
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	// shared devices are owned by the host; Terminate leaves them alone.
	shared bool

	pipe *blitPipeline

	maxTextureDim int
	terminated    bool
	log           *slog.Logger
}

// NewContext opens a GPU context. When cfg.Provider exposes hal handles the
// context adopts the host's device; otherwise it creates an instance on
// cfg.API and opens the first adapter.
func NewContext(cfg ContextConfig) (*Context, error) {
	c := &Context{log: pixelpipe.Logger()}

	if cfg.Provider != nil {
		if hp, ok := cfg.Provider.(halProvider); ok {
			dev, dok := hp.HalDevice().(hal.Device)
			q, qok := hp.HalQueue().(hal.Queue)
			if dok && qok && dev != nil && q != nil {
				c.device = dev
				c.queue = q
				c.shared = true
				c.maxTextureDim = int(gputypes.DefaultLimits().MaxTextureDimension2D)
				c.log.Info("gpu context adopted from host provider")
				return c, nil
			}
		}
	}

	if cfg.API == nil {
		return nil, errors.New("gpu: no HAL API and no shareable provider")
	}

	instance, err := cfg.API.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	limits := gputypes.DefaultLimits()
	openDev, err := adapters[0].Adapter.Open(0, limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open adapter: %w", err)
	}

	c.instance = instance
	c.device = openDev.Device
	c.queue = openDev.Queue
	c.maxTextureDim = int(limits.MaxTextureDimension2D)
	c.log.Info("gpu context opened", "adapters", len(adapters))
	return c, nil
}

// Probe reports the pipeline capabilities of this context. The result is
// immutable; the Coordinator reads it once at composition time.
func (c *Context) Probe() pixelpipe.Capabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated || c.device == nil {
		return pixelpipe.SoftwareOnlyCapabilities()
	}
	return pixelpipe.Capabilities{
		AcceleratedAvailable: true,
		MaxTextureDimension:  c.maxTextureDim,
		Preferred:            pixelpipe.PathAccelerated,
	}
}

// Device returns the HAL device, or nil after Terminate.
func (c *Context) Device() hal.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

// Queue returns the HAL queue, or nil after Terminate.
func (c *Context) Queue() hal.Queue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue
}

// MaxTextureDimension returns the adapter's 2D texture size limit, or 0
// when unknown.
func (c *Context) MaxTextureDimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxTextureDim
}

// pipeline returns the shared blit pipeline, creating it on first use.
func (c *Context) pipeline() (*blitPipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		return nil, ErrContextTerminated
	}
	if c.pipe == nil {
		p, err := newBlitPipeline(c.device, c.queue)
		if err != nil {
			return nil, err
		}
		c.pipe = p
	}
	return c.pipe, nil
}

// Release drops resources that are cheap to rebuild (the compiled blit
// pipeline) while keeping the device open for a quick restart.
func (c *Context) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipe != nil {
		c.pipe.destroy()
		c.pipe = nil
		c.log.Debug("gpu context released shared pipeline")
	}
}

// Terminate tears the context down entirely. Adopted (host-shared) devices
// are not destroyed; only resources this context created are. Idempotent.
func (c *Context) Terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		return
	}
	c.terminated = true
	if c.pipe != nil {
		c.pipe.destroy()
		c.pipe = nil
	}
	if !c.shared {
		if c.device != nil {
			c.device.Destroy()
		}
		if c.instance != nil {
			c.instance.Destroy()
		}
	}
	c.device = nil
	c.queue = nil
	c.instance = nil
	c.log.Info("gpu context terminated")
}

// Terminated reports whether Terminate has run.
func (c *Context) Terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminated
}
