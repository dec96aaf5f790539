package wgpu_backend

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuBuffer struct {
	label  string
	size   uint64
	flags  gpu.BufferFlags
	buffer *wgpu.Buffer

	releaseOnce sync.Once
}

func (b *wgpuBuffer) Label() string          { return b.label }
func (b *wgpuBuffer) Size() uint64           { return b.size }
func (b *wgpuBuffer) Flags() gpu.BufferFlags { return b.flags }

func (b *wgpuBuffer) Release() {
	b.releaseOnce.Do(func() {
		b.buffer.Release()
		b.buffer = nil
	})
}

type wgpuTexture struct {
	desc    gpu.TextureDesc
	texture *wgpu.Texture
	// views holds one single-level view per mip level, created lazily for image bindings.
	views map[uint32]*wgpu.TextureView
	// full is a view over every mip level, used for sampling.
	full *wgpu.TextureView

	releaseOnce sync.Once
}

func (t *wgpuTexture) Desc() gpu.TextureDesc { return t.desc }

func (t *wgpuTexture) Release() {
	t.releaseOnce.Do(func() {
		for _, v := range t.views {
			v.Release()
		}
		t.views = nil
		if t.full != nil {
			t.full.Release()
			t.full = nil
		}
		t.texture.Release()
		t.texture = nil
	})
}

// levelView returns a view of exactly one mip level.
func (t *wgpuTexture) levelView(level uint32) *wgpu.TextureView {
	if v, ok := t.views[level]; ok {
		return v
	}
	tf, _ := textureFormat(t.desc.Format)
	v, err := t.texture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           t.desc.Label,
		Format:          tf,
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    level,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
		Aspect:          wgpu.TextureAspectAll,
	})
	gpu.Check("wgpu.CreateView", err)
	t.views[level] = v
	return v
}

func (t *wgpuTexture) fullView() *wgpu.TextureView {
	if t.full == nil {
		v, err := t.texture.CreateView(nil)
		gpu.Check("wgpu.CreateView", err)
		t.full = v
	}
	return t.full
}

type wgpuProgram struct {
	desc     gpu.ProgramDesc
	layout   *wgpu.BindGroupLayout
	pipeline *wgpu.PipelineLayout
	compute  *wgpu.ComputePipeline
	render   *wgpu.RenderPipeline
	modules  []*wgpu.ShaderModule

	releaseOnce sync.Once
}

func (p *wgpuProgram) Key() string           { return p.desc.Key }
func (p *wgpuProgram) Desc() gpu.ProgramDesc { return p.desc }

func (p *wgpuProgram) Release() {
	p.releaseOnce.Do(func() {
		if p.compute != nil {
			p.compute.Release()
		}
		if p.render != nil {
			p.render.Release()
		}
		for _, m := range p.modules {
			m.Release()
		}
		if p.pipeline != nil {
			p.pipeline.Release()
		}
		if p.layout != nil {
			p.layout.Release()
		}
	})
}
