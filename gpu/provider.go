package gpu

import (
	"log/slog"

	"github.com/gogpu/pixelpipe"
)

// Provider implements pixelpipe.AcceleratedProvider over a Context. The
// host constructs one and passes it to the Coordinator's Config; pixelpipe
// itself never imports this package.
type Provider struct {
	ctx *Context
}

// NewProvider creates a provider over an open context.
func NewProvider(ctx *Context) *Provider {
	return &Provider{ctx: ctx}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "wgpu" }

// NewRenderer creates an uninitialized accelerated renderer. Fails with
// ErrContextTerminated after Terminate.
func (p *Provider) NewRenderer() (pixelpipe.Renderer, error) {
	if p.ctx.Terminated() {
		return nil, ErrContextTerminated
	}
	return newRenderer(p.ctx), nil
}

// Release drops driver-side resources that are cheap to rebuild.
func (p *Provider) Release() { p.ctx.Release() }

// Terminate tears down the GPU context entirely. Idempotent.
func (p *Provider) Terminate() { p.ctx.Terminate() }

// SetLogger propagates the pipeline logger into the GPU context so both
// sides of the composition share one logging configuration.
func (p *Provider) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	p.ctx.mu.Lock()
	p.ctx.log = l
	p.ctx.mu.Unlock()
}

var _ pixelpipe.AcceleratedProvider = (*Provider)(nil)
