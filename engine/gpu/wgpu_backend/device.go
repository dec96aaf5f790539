package wgpu_backend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-gravity/common"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// headlessFormat is the render target format used when no surface is attached.
const headlessFormat = wgpu.TextureFormatRGBA8Unorm

// device is the implementation of the Device interface.
type device struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceDescriptor    *wgpu.SurfaceDescriptor
	forceFallbackAdapter bool
	presentMode          wgpu.PresentMode
	surfaceFormat        wgpu.TextureFormat
	width, height        int
	logger               *zap.Logger

	samplers map[gpu.FilterMode]*wgpu.Sampler

	// frameSurface and frameView are the swapchain image acquired by the first draw of a frame.
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	releaseOnce sync.Once
	released    bool
}

// Device is a gpu.Device backed by a WebGPU adapter. When created with a surface it also owns the
// swapchain that Draw renders into and Present shows.
type Device interface {
	gpu.Device

	// Resize reconfigures the surface for a new framebuffer size. Devices without a surface ignore it.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	Resize(width, height int)

	// HasSurface reports whether the device renders to a window surface.
	//
	// Returns:
	//   - bool: true if a surface was attached at creation
	HasSurface() bool
}

var _ Device = &device{}

// NewDevice requests an adapter and device with all specified options applied. The calling goroutine is
// locked to its OS thread since surface presentation must stay on the thread that created the window.
//
// Parameters:
//   - opts: a variadic list of DeviceBuilderOption functions to configure the device
//
// Returns:
//   - Device: the ready-to-use device
//   - error: an error if no adapter or device could be acquired
func NewDevice(opts ...DeviceBuilderOption) (Device, error) {
	runtime.LockOSThread()
	d := &device{
		mu:            &sync.Mutex{},
		presentMode:   wgpu.PresentModeFifo,
		surfaceFormat: headlessFormat,
		logger:        zap.NewNop(),
		samplers:      make(map[gpu.FilterMode]*wgpu.Sampler),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	if d.surfaceDescriptor != nil {
		d.surface = d.instance.CreateSurface(d.surfaceDescriptor)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		d.releaseHandles()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Simulation Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		d.releaseHandles()
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	for _, f := range []gpu.FilterMode{gpu.FilterNearest, gpu.FilterLinear} {
		s, err := dev.CreateSampler(&wgpu.SamplerDescriptor{
			Label:         "Sampler " + f.String(),
			AddressModeU:  wgpu.AddressModeClampToEdge,
			AddressModeV:  wgpu.AddressModeClampToEdge,
			AddressModeW:  wgpu.AddressModeClampToEdge,
			MagFilter:     filterMode(f),
			MinFilter:     filterMode(f),
			MipmapFilter:  wgpu.MipmapFilterModeNearest,
			LodMinClamp:   0,
			LodMaxClamp:   32,
			MaxAnisotropy: 1,
		})
		if err != nil {
			d.releaseHandles()
			return nil, fmt.Errorf("create sampler: %w", err)
		}
		d.samplers[f] = s
	}

	if d.surface != nil && d.width > 0 && d.height > 0 {
		d.configureSurface()
	}
	d.logger.Info("webgpu device created", zap.Bool("surface", d.surface != nil), zap.Bool("fallback", d.forceFallbackAdapter))
	return d, nil
}

func (d *device) Backend() gpu.BackendType {
	return gpu.BackendWebGPU
}

func (d *device) Name() string {
	if d.forceFallbackAdapter {
		return "webgpu (fallback adapter)"
	}
	return "webgpu"
}

func (d *device) HasSurface() bool {
	return d.surface != nil
}

func (d *device) Resize(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height = width, height
	if d.surface != nil && width > 0 && height > 0 {
		d.configureSurface()
	}
}

// configureSurface must be called with mu held.
func (d *device) configureSurface() {
	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surfaceFormat = capabilities.Formats[0]
	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(d.width),
		Height:      uint32(d.height),
		PresentMode: d.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (d *device) alive(op string) {
	if d.released {
		gpu.Fatalf("wgpu."+op, gpu.ErrState, "device has been released")
	}
}

func (d *device) CreateBuffer(label string, data []byte, flags gpu.BufferFlags) gpu.Buffer {
	d.alive("CreateBuffer")
	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	if flags.Has(gpu.BufferUniform) {
		usage = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	}
	contents := make([]byte, alignedSize(uint64(len(data))))
	copy(contents, data)
	buf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: contents,
		Usage:    usage,
	})
	if err != nil {
		panic(&gpu.Error{Op: "wgpu.CreateBuffer", Kind: gpu.ErrCreation, Err: err})
	}
	return &wgpuBuffer{label: label, size: uint64(len(data)), flags: flags, buffer: buf}
}

func (d *device) WriteBuffer(b gpu.Buffer, offset uint64, data []byte) {
	d.alive("WriteBuffer")
	buf := d.buffer(b, "WriteBuffer")
	if !buf.flags.Has(gpu.BufferDynamic) {
		gpu.Fatalf("wgpu.WriteBuffer", gpu.ErrDevice, "buffer %q was not created dynamic", buf.label)
	}
	if offset+uint64(len(data)) > buf.size {
		gpu.Fatalf("wgpu.WriteBuffer", gpu.ErrSizeMismatch, "write of %d bytes at %d overflows buffer %q of %d bytes", len(data), offset, buf.label, buf.size)
	}
	if offset%4 != 0 {
		gpu.Fatalf("wgpu.WriteBuffer", gpu.ErrDevice, "offset %d is not 4 byte aligned", offset)
	}
	// The allocation is padded to 4 bytes, so a padded tail always fits.
	if len(data)%4 != 0 {
		padded := make([]byte, alignedSize(uint64(len(data))))
		copy(padded, data)
		data = padded
	}
	gpu.Check("wgpu.WriteBuffer", d.queue.WriteBuffer(buf.buffer, offset, data))
}

func (d *device) ReadBuffer(b gpu.Buffer) []byte {
	d.alive("ReadBuffer")
	buf := d.buffer(b, "ReadBuffer")
	size := alignedSize(buf.size)
	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: buf.label + " Staging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	gpu.Check("wgpu.ReadBuffer", err)
	defer staging.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	gpu.Check("wgpu.ReadBuffer", err)
	checkEncode("wgpu.ReadBuffer", encoder, encoder.CopyBufferToBuffer(buf.buffer, 0, staging, 0, size))
	d.submit("wgpu.ReadBuffer", encoder)

	out := d.mapRead("wgpu.ReadBuffer", staging, size)
	return out[:buf.size]
}

func (d *device) CreateTexture(desc gpu.TextureDesc) gpu.Texture {
	d.alive("CreateTexture")
	tf, ok := textureFormat(desc.Format)
	if !ok {
		gpu.Fatalf("wgpu.CreateTexture", gpu.ErrCreation, "texture %q: unsupported format %s", desc.Label, desc.Format)
	}
	if desc.Width == 0 || desc.Height == 0 {
		gpu.Fatalf("wgpu.CreateTexture", gpu.ErrCreation, "texture %q: zero extent %dx%d", desc.Label, desc.Width, desc.Height)
	}
	if desc.Levels == 0 || desc.Levels > common.MipLevelCount(desc.Width, desc.Height) {
		gpu.Fatalf("wgpu.CreateTexture", gpu.ErrCreation, "texture %q: invalid mip level count %d", desc.Label, desc.Levels)
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Usage: wgpu.TextureUsageTextureBinding | wgpu.TextureUsageStorageBinding |
			wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        tf,
		MipLevelCount: desc.Levels,
		SampleCount:   1,
	})
	if err != nil {
		panic(&gpu.Error{Op: "wgpu.CreateTexture", Kind: gpu.ErrCreation, Err: err})
	}
	return &wgpuTexture{desc: desc, texture: tex, views: make(map[uint32]*wgpu.TextureView)}
}

func (d *device) WriteTexture(t gpu.Texture, region gpu.TextureRegion, data []byte) {
	d.alive("WriteTexture")
	tex := d.texture(t, "WriteTexture")
	if region.Level >= tex.desc.Levels {
		gpu.Fatalf("wgpu.WriteTexture", gpu.ErrDevice, "texture %q has no mip level %d", tex.desc.Label, region.Level)
	}
	w, h := common.MipExtent(tex.desc.Width, tex.desc.Height, region.Level)
	if !region.Fits(w, h) {
		gpu.Fatalf("wgpu.WriteTexture", gpu.ErrDevice, "region %+v exceeds level %d extent %dx%d", region, region.Level, w, h)
	}
	row := region.Width * uint32(tex.desc.Format.TexelSize())
	if uint32(len(data)) != row*region.Height {
		gpu.Fatalf("wgpu.WriteTexture", gpu.ErrSizeMismatch, "region needs %d bytes, got %d", row*region.Height, len(data))
	}
	err := d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex.texture,
			MipLevel: region.Level,
			Origin:   wgpu.Origin3D{X: region.X, Y: region.Y, Z: 0},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  row,
			RowsPerImage: region.Height,
		},
		&wgpu.Extent3D{
			Width:              region.Width,
			Height:             region.Height,
			DepthOrArrayLayers: 1,
		},
	)
	gpu.Check("wgpu.WriteTexture", err)
}

func (d *device) ReadTexture(t gpu.Texture, level uint32) []byte {
	d.alive("ReadTexture")
	tex := d.texture(t, "ReadTexture")
	if level >= tex.desc.Levels {
		gpu.Fatalf("wgpu.ReadTexture", gpu.ErrDevice, "texture %q has no mip level %d", tex.desc.Label, level)
	}
	w, h := common.MipExtent(tex.desc.Width, tex.desc.Height, level)
	row := w * uint32(tex.desc.Format.TexelSize())
	padded := paddedRowBytes(row)
	size := uint64(padded) * uint64(h)

	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: tex.desc.Label + " Staging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	gpu.Check("wgpu.ReadTexture", err)
	defer staging.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	gpu.Check("wgpu.ReadTexture", err)
	err = encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  tex.texture,
			MipLevel: level,
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: staging,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  padded,
				RowsPerImage: h,
			},
		},
		&wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	checkEncode("wgpu.ReadTexture", encoder, err)
	d.submit("wgpu.ReadTexture", encoder)

	return unpadRows(d.mapRead("wgpu.ReadTexture", staging, size), row, padded, h)
}

func (d *device) CreateProgram(desc gpu.ProgramDesc) (gpu.Program, error) {
	d.alive("CreateProgram")
	p := &wgpuProgram{desc: desc}
	fail := func(err error) (gpu.Program, error) {
		p.Release()
		return nil, err
	}

	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Key + " Bind Group Layout",
		Entries: layoutEntries(desc.Bindings),
	})
	if err != nil {
		return fail(err)
	}
	p.layout = layout

	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Key + " Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return fail(err)
	}
	p.pipeline = pipelineLayout

	if desc.IsCompute() {
		cs, err := d.module(p, desc.Key+" Compute", desc.Compute.Source)
		if err != nil {
			return fail(err)
		}
		created, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  desc.Key + " Compute Pipeline",
			Layout: pipelineLayout,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     cs,
				EntryPoint: desc.Compute.EntryPoint,
			},
		})
		if err != nil {
			return fail(err)
		}
		p.compute = created
		return p, nil
	}

	if desc.Vertex == nil || desc.Fragment == nil {
		return fail(errors.New("render program needs a vertex and a fragment stage"))
	}
	vs, err := d.module(p, desc.Key+" Vertex", desc.Vertex.Source)
	if err != nil {
		return fail(err)
	}
	fs, err := d.module(p, desc.Key+" Fragment", desc.Fragment.Source)
	if err != nil {
		return fail(err)
	}
	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Key + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.Vertex.EntryPoint,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets: []wgpu.ColorTargetState{{
				Format:    d.surfaceFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleStrip,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fail(err)
	}
	p.render = created
	return p, nil
}

func (d *device) module(p *wgpuProgram, label, source string) (*wgpu.ShaderModule, error) {
	m, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	})
	if err != nil {
		return nil, err
	}
	p.modules = append(p.modules, m)
	return m, nil
}

func (d *device) Dispatch(gp gpu.Program, set *gpu.BindingSet, groups [3]uint32) {
	d.alive("Dispatch")
	p := d.program(gp, "Dispatch")
	if p.compute == nil {
		gpu.Fatalf("wgpu.Dispatch", gpu.ErrState, "program %q is not a compute program", p.desc.Key)
	}
	bindGroup := d.bindGroup(p, set, "wgpu.Dispatch")
	defer bindGroup.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	gpu.Check("wgpu.Dispatch", err)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(p.compute)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(groups[0], groups[1], groups[2])
	err = pass.End()
	pass.Release()
	checkEncode("wgpu.Dispatch", encoder, err)
	d.submit("wgpu.Dispatch", encoder)

	// Block until the queue drains so every write is visible to the next command and to the host.
	d.device.Poll(true, nil)
}

func (d *device) Draw(gp gpu.Program, set *gpu.BindingSet, vertexCount uint32) {
	d.alive("Draw")
	p := d.program(gp, "Draw")
	if p.render == nil {
		gpu.Fatalf("wgpu.Draw", gpu.ErrState, "program %q is not a render program", p.desc.Key)
	}
	if d.surface == nil {
		d.logger.Debug("draw skipped, device has no surface", zap.String("program", p.desc.Key))
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frameSurface == nil {
		surfaceTexture, err := d.surface.GetCurrentTexture()
		gpu.Check("wgpu.Draw", err)
		view, err := surfaceTexture.CreateView(nil)
		if err != nil {
			surfaceTexture.Release()
			gpu.Check("wgpu.Draw", err)
		}
		d.frameSurface, d.frameView = surfaceTexture, view
	}

	bindGroup := d.bindGroup(p, set, "wgpu.Draw")
	defer bindGroup.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	gpu.Check("wgpu.Draw", err)
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: p.desc.Key + " Render Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       d.frameView,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	pass.SetPipeline(p.render)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Draw(vertexCount, 1, 0, 0)
	err = pass.End()
	pass.Release()
	checkEncode("wgpu.Draw", encoder, err)
	d.submit("wgpu.Draw", encoder)
}

func (d *device) Present() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameSurface == nil {
		return
	}
	d.surface.Present()
	d.frameView.Release()
	d.frameSurface.Release()
	d.frameView, d.frameSurface = nil, nil
}

func (d *device) Release() {
	d.releaseOnce.Do(func() {
		d.released = true
		d.releaseHandles()
		d.logger.Info("webgpu device released")
	})
}

func (d *device) releaseHandles() {
	if d.frameView != nil {
		d.frameView.Release()
		d.frameView = nil
	}
	if d.frameSurface != nil {
		d.frameSurface.Release()
		d.frameSurface = nil
	}
	for f, s := range d.samplers {
		s.Release()
		delete(d.samplers, f)
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// bindGroup creates a one-shot bind group for the resources in set. The caller releases it after submit.
func (d *device) bindGroup(p *wgpuProgram, set *gpu.BindingSet, op string) *wgpu.BindGroup {
	entries := make([]wgpu.BindGroupEntry, 0, len(p.desc.Bindings))
	for _, b := range p.desc.Bindings {
		entry := wgpu.BindGroupEntry{Binding: b.Binding}
		switch b.Kind {
		case gpu.BindingStorageBuffer, gpu.BindingUniformBuffer:
			bb, ok := set.Buffer(b.Binding)
			if !ok {
				gpu.Fatalf(op, gpu.ErrState, "no buffer bound at binding %d (%s)", b.Binding, b.Name)
			}
			entry.Buffer = d.buffer(bb.Buffer, op).buffer
			entry.Size = wgpu.WholeSize
		case gpu.BindingStorageTexture:
			ib, ok := set.Image(b.Binding)
			if !ok {
				gpu.Fatalf(op, gpu.ErrState, "no image bound at binding %d (%s)", b.Binding, b.Name)
			}
			entry.TextureView = d.texture(ib.Texture, op).levelView(ib.Level)
		case gpu.BindingSampledTexture:
			sb, ok := set.Sampled(b.Binding)
			if !ok {
				gpu.Fatalf(op, gpu.ErrState, "no texture bound at binding %d (%s)", b.Binding, b.Name)
			}
			entry.TextureView = d.texture(sb.Texture, op).fullView()
		case gpu.BindingSampler:
			sb, ok := set.Sampled(b.Binding - 1)
			if !ok {
				gpu.Fatalf(op, gpu.ErrState, "sampler %s has no texture at binding %d", b.Name, b.Binding-1)
			}
			entry.Sampler = d.samplers[sb.Filter]
		}
		entries = append(entries, entry)
	}
	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.desc.Key + " Bind Group",
		Layout:  p.layout,
		Entries: entries,
	})
	gpu.Check(op, err)
	return bg
}

// checkEncode releases an unfinished encoder and raises err as a device error. It does nothing when
// err is nil.
func checkEncode(op string, encoder interface{ Release() }, err error) {
	if err == nil {
		return
	}
	encoder.Release()
	gpu.Check(op, err)
}

func (d *device) submit(op string, encoder *wgpu.CommandEncoder) {
	defer encoder.Release()
	cmd, err := encoder.Finish(nil)
	gpu.Check(op, err)
	defer cmd.Release()
	d.queue.Submit(cmd)
}

// mapRead maps a staging buffer after the copies into it were submitted and returns a copy of it.
func (d *device) mapRead(op string, staging *wgpu.Buffer, size uint64) []byte {
	var status wgpu.BufferMapAsyncStatus
	err := staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	gpu.Check(op, err)
	d.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		gpu.Fatalf(op, gpu.ErrDevice, "staging map failed with status %d", status)
	}
	defer staging.Unmap()
	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(size)))
	return out
}

func (d *device) buffer(b gpu.Buffer, op string) *wgpuBuffer {
	buf, ok := b.(*wgpuBuffer)
	if !ok {
		gpu.Fatalf("wgpu."+op, gpu.ErrState, "buffer %T was not created by this device", b)
	}
	if buf.buffer == nil {
		gpu.Fatalf("wgpu."+op, gpu.ErrState, "buffer %q has been released", buf.label)
	}
	return buf
}

func (d *device) texture(t gpu.Texture, op string) *wgpuTexture {
	tex, ok := t.(*wgpuTexture)
	if !ok {
		gpu.Fatalf("wgpu."+op, gpu.ErrState, "texture %T was not created by this device", t)
	}
	if tex.texture == nil {
		gpu.Fatalf("wgpu."+op, gpu.ErrState, "texture %q has been released", tex.desc.Label)
	}
	return tex
}

func (d *device) program(p gpu.Program, op string) *wgpuProgram {
	prog, ok := p.(*wgpuProgram)
	if !ok {
		gpu.Fatalf("wgpu."+op, gpu.ErrState, "program %T was not created by this device", p)
	}
	if prog.compute == nil && prog.render == nil {
		gpu.Fatalf("wgpu."+op, gpu.ErrState, "program %q has been released", prog.desc.Key)
	}
	return prog
}
