package gpu

import (
	"strings"
	"testing"
)

func TestBlitShaderSource(t *testing.T) {
	if blitShaderSource == "" {
		t.Fatal("blit shader source is empty")
	}

	expected := []string{
		"BlitUniforms",
		"vs_main",
		"fs_main",
		"@vertex",
		"@fragment",
		"@group(0) @binding(0)",
		"saturation",
		"contrast",
		"sharpness",
	}
	for _, want := range expected {
		if !strings.Contains(blitShaderSource, want) {
			t.Errorf("shader source missing %q", want)
		}
	}
}

func TestNewBlitPipeline(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	p, err := newBlitPipeline(device, queue)
	if err != nil {
		t.Fatalf("newBlitPipeline failed: %v", err)
	}
	defer p.destroy()

	if p.shader == nil {
		t.Error("expected non-nil shader")
	}
	if p.bindLayout == nil {
		t.Error("expected non-nil bind layout")
	}
	if p.pipeLayout == nil {
		t.Error("expected non-nil pipeline layout")
	}
	if p.pipeline == nil {
		t.Error("expected non-nil render pipeline")
	}
	if p.sampler == nil {
		t.Error("expected non-nil sampler")
	}
}

func TestBlitPipelineDestroyIdempotent(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	p, err := newBlitPipeline(device, queue)
	if err != nil {
		t.Fatalf("newBlitPipeline failed: %v", err)
	}
	p.destroy()
	p.destroy()

	if p.pipeline != nil || p.shader != nil || p.sampler != nil {
		t.Error("resources not cleared after destroy")
	}
}

func TestCompileShaderModule(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	module, err := compileShaderModule(device, "test_shader", blitShaderSource)
	if err != nil {
		t.Fatalf("compileShaderModule failed: %v", err)
	}
	device.DestroyShaderModule(module)
}
