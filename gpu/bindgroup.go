package gpu

import (
	"hash/maphash"
	"sync"
	"sync/atomic"

	"github.com/gogpu/pixelpipe/cache"
	"github.com/gogpu/wgpu/hal"
)

// bindGroupKey identifies a cached bind group by the pipeline and texture
// it binds, plus a generation counter bumped on invalidation so stale
// entries can never be returned after a resize.
type bindGroupKey struct {
	pipeline string
	texture  string
	version  uint64
}

var bindGroupSeed = maphash.MakeSeed()

func hashBindGroupKey(k bindGroupKey) uint64 {
	var h maphash.Hash
	h.SetSeed(bindGroupSeed)
	h.WriteString(k.pipeline)
	h.WriteByte(0)
	h.WriteString(k.texture)
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(k.version >> (8 * i))
	}
	h.Write(buf[:])
	return h.Sum64()
}

// BindGroupCache caches hal bind groups keyed by pipeline and texture
// labels. Bind group creation is cheap but not free, and the render loop
// asks for the same binding every frame; caching turns that into a map hit.
//
// Invalidate bumps the generation and destroys every cached group, which
// callers use when the underlying texture is recreated on resize.
type BindGroupCache struct {
	device  hal.Device
	mu      sync.Mutex
	entries *cache.ShardedCache[bindGroupKey, hal.BindGroup]
	version atomic.Uint64
}

// NewBindGroupCache creates a cache bound to device. Cached bind groups
// are released through the device on Invalidate, Clear, and LRU eviction.
func NewBindGroupCache(device hal.Device) *BindGroupCache {
	c := &BindGroupCache{
		device:  device,
		entries: cache.NewSharded[bindGroupKey, hal.BindGroup](cache.DefaultCapacity, hashBindGroupKey),
	}
	c.armEviction()
	return c
}

// armEviction hooks LRU eviction so capacity pressure cannot leak driver
// handles.
func (c *BindGroupCache) armEviction() {
	c.entries.OnEvict(func(_ bindGroupKey, bg hal.BindGroup) {
		if bg != nil {
			c.device.DestroyBindGroup(bg)
		}
	})
}

// GetOrCreate returns the cached bind group for the given pipeline and
// texture labels, calling build to create it on a miss. The build result
// is cached under the current generation.
func (c *BindGroupCache) GetOrCreate(pipeline, texture string, build func() (hal.BindGroup, error)) (hal.BindGroup, error) {
	key := bindGroupKey{pipeline: pipeline, texture: texture, version: c.version.Load()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if bg, ok := c.entries.Get(key); ok {
		return bg, nil
	}
	bg, err := build()
	if err != nil {
		return nil, err
	}
	c.entries.Set(key, bg)
	return bg, nil
}

// Invalidate destroys every cached bind group and bumps the generation.
// Subsequent GetOrCreate calls rebuild against the new resources.
func (c *BindGroupCache) Invalidate() {
	c.version.Add(1)
	c.destroyAll()
}

// Clear destroys all cached bind groups without bumping the generation.
func (c *BindGroupCache) Clear() {
	c.destroyAll()
}

func (c *BindGroupCache) destroyAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Range(func(_ bindGroupKey, bg hal.BindGroup) bool {
		if bg != nil {
			c.device.DestroyBindGroup(bg)
		}
		return true
	})
	c.entries.Clear()
}

// Stats reports hit and miss counts since the last reset.
func (c *BindGroupCache) Stats() (hits, misses uint64) {
	s := c.entries.Stats()
	return s.Hits, s.Misses
}

// ResetStats zeroes the hit and miss counters.
func (c *BindGroupCache) ResetStats() {
	c.entries.ResetStats()
}
