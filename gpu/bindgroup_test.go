package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/pixelpipe/cache"
	"github.com/gogpu/wgpu/hal"
)

func makeTestBindGroup(t *testing.T, device hal.Device, p *blitPipeline, buf hal.Buffer) func() (hal.BindGroup, error) {
	t.Helper()
	return func() (hal.BindGroup, error) {
		return device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "test_bind",
			Layout: p.bindLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{
					Buffer: buf.NativeHandle(), Offset: 0, Size: blitUniformSize,
				}},
			},
		})
	}
}

func TestBindGroupCacheHit(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	p, err := newBlitPipeline(device, queue)
	if err != nil {
		t.Fatalf("newBlitPipeline failed: %v", err)
	}
	defer p.destroy()

	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "test_uniforms",
		Size:  blitUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	defer device.DestroyBuffer(buf)

	c := NewBindGroupCache(device)
	defer c.Clear()

	builds := 0
	build := func() (hal.BindGroup, error) {
		builds++
		return makeTestBindGroup(t, device, p, buf)()
	}

	bg1, err := c.GetOrCreate(blitPipelineLabel, "tex_1", build)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	bg2, err := c.GetOrCreate(blitPipelineLabel, "tex_1", build)
	if err != nil {
		t.Fatalf("second GetOrCreate failed: %v", err)
	}
	if bg1 != bg2 {
		t.Error("cache returned a different bind group for the same key")
	}
	if builds != 1 {
		t.Errorf("build calls = %d, want 1", builds)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses == 0 {
		t.Errorf("stats = %d hits / %d misses, want 1 hit and at least 1 miss", hits, misses)
	}
}

func TestBindGroupCacheDistinctTextures(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	p, err := newBlitPipeline(device, queue)
	if err != nil {
		t.Fatalf("newBlitPipeline failed: %v", err)
	}
	defer p.destroy()

	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "test_uniforms",
		Size:  blitUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	defer device.DestroyBuffer(buf)

	c := NewBindGroupCache(device)
	defer c.Clear()

	builds := 0
	build := func() (hal.BindGroup, error) {
		builds++
		return makeTestBindGroup(t, device, p, buf)()
	}

	if _, err := c.GetOrCreate(blitPipelineLabel, "tex_1", build); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrCreate(blitPipelineLabel, "tex_2", build); err != nil {
		t.Fatal(err)
	}
	if builds != 2 {
		t.Errorf("build calls = %d, want 2 for distinct textures", builds)
	}
}

func TestBindGroupCacheInvalidate(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	p, err := newBlitPipeline(device, queue)
	if err != nil {
		t.Fatalf("newBlitPipeline failed: %v", err)
	}
	defer p.destroy()

	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "test_uniforms",
		Size:  blitUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	defer device.DestroyBuffer(buf)

	c := NewBindGroupCache(device)
	defer c.Clear()

	builds := 0
	build := func() (hal.BindGroup, error) {
		builds++
		return makeTestBindGroup(t, device, p, buf)()
	}

	if _, err := c.GetOrCreate(blitPipelineLabel, "tex_1", build); err != nil {
		t.Fatal(err)
	}
	c.Invalidate()
	if _, err := c.GetOrCreate(blitPipelineLabel, "tex_1", build); err != nil {
		t.Fatal(err)
	}
	if builds != 2 {
		t.Errorf("build calls = %d, want rebuild after Invalidate", builds)
	}
}

func TestBindGroupCacheEvictionDestroys(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	p, err := newBlitPipeline(device, queue)
	if err != nil {
		t.Fatalf("newBlitPipeline failed: %v", err)
	}
	defer p.destroy()

	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "test_uniforms",
		Size:  blitUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	defer device.DestroyBuffer(buf)

	c := NewBindGroupCache(device)
	defer c.Clear()

	// A single-entry shard with every key pinned to it forces capacity
	// eviction on the second insert.
	c.entries = cache.NewSharded[bindGroupKey, hal.BindGroup](1, func(bindGroupKey) uint64 { return 0 })
	c.armEviction()

	build := makeTestBindGroup(t, device, p, buf)
	if _, err := c.GetOrCreate(blitPipelineLabel, "tex_1", build); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrCreate(blitPipelineLabel, "tex_2", build); err != nil {
		t.Fatal(err)
	}

	if ev := c.entries.Stats().Evictions; ev != 1 {
		t.Errorf("evictions = %d, want 1", ev)
	}
	if _, ok := c.entries.Get(bindGroupKey{pipeline: blitPipelineLabel, texture: "tex_2", version: 0}); !ok {
		t.Error("surviving entry missing after eviction")
	}
}

func TestBindGroupCacheBuildError(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	c := NewBindGroupCache(device)
	wantErr := errors.New("boom")

	if _, err := c.GetOrCreate("p", "t", func() (hal.BindGroup, error) {
		return nil, wantErr
	}); !errors.Is(err, wantErr) {
		t.Errorf("GetOrCreate = %v, want build error", err)
	}

	// A failed build must not be cached.
	builds := 0
	if _, err := c.GetOrCreate("p", "t", func() (hal.BindGroup, error) {
		builds++
		return nil, wantErr
	}); !errors.Is(err, wantErr) {
		t.Errorf("second GetOrCreate = %v, want build error", err)
	}
	if builds != 1 {
		t.Errorf("build calls = %d, want retry after failure", builds)
	}
}
