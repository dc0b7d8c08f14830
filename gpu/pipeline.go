package gpu

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/blit.wgsl
var blitShaderSource string

// blitUniformSize is the byte size of the blit uniform buffer.
// Layout: output_size (vec2<f32>) + texel_size (vec2<f32>) +
// saturation + contrast + sharpness + pad (4 x f32) = 32 bytes.
const blitUniformSize = 32

// blitPipelineLabel keys the pipeline in the bind group cache.
const blitPipelineLabel = "blit_pipeline"

// blitPipeline holds the compiled fullscreen-blit render pipeline and its
// fixed resources (bind group layout, nearest sampler). It is shared across
// render sessions and owned by the Context.
type blitPipeline struct {
	device hal.Device
	queue  hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	sampler    hal.Sampler
}

// newBlitPipeline compiles the blit shader and creates the render pipeline.
// The vertex stage generates a fullscreen triangle from the vertex index,
// so the pipeline has no vertex buffers.
func newBlitPipeline(device hal.Device, queue hal.Queue) (*blitPipeline, error) {
	if blitShaderSource == "" {
		return nil, errors.New("gpu: blit shader source is empty")
	}

	p := &blitPipeline{device: device, queue: queue}

	shader, err := compileShaderModule(device, "blit_shader", blitShaderSource)
	if err != nil {
		return nil, fmt.Errorf("compile blit shader: %w", err)
	}
	p.shader = shader

	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "blit_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create bind layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "blit_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	// Nearest sampling: the whole point of the pipeline is that no
	// filtering ever blends adjacent source texels.
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "blit_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create sampler: %w", err)
	}
	p.sampler = sampler

	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  blitPipelineLabel,
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    gputypes.TextureFormatBGRA8Unorm,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create render pipeline: %w", err)
	}
	p.pipeline = pipeline

	return p, nil
}

// destroy releases all pipeline resources in reverse creation order. Safe
// to call on a partially constructed pipeline.
func (p *blitPipeline) destroy() {
	if p.device == nil {
		return
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// compileShaderModule creates a shader module from WGSL source, falling
// back to naga WGSL->SPIR-V compilation for HAL backends that do not
// consume WGSL directly.
func compileShaderModule(device hal.Device, label, wgsl string) (hal.ShaderModule, error) {
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: wgsl},
	})
	if err == nil {
		return module, nil
	}

	spirvBytes, cerr := naga.Compile(wgsl)
	if cerr != nil {
		return nil, fmt.Errorf("wgsl rejected (%v) and naga compile failed: %w", err, cerr)
	}
	// SPIR-V is little-endian 32-bit words.
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
}
