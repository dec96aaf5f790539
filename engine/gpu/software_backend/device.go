package software_backend

import (
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gravity/common"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"go.uber.org/zap"
)

// device is the implementation of the Device interface.
type device struct {
	kernels map[string]Kernel
	workers int
	pool    worker.DynamicWorkerPool
	logger  *zap.Logger

	fbWidth, fbHeight int
	framebuffer       *image.RGBA

	releaseOnce sync.Once
	released    bool
}

// Device is a gpu.Device that executes kernels on the host CPU. Kernels are Go functions registered
// under the entry point name of the WGSL shader they stand in for, so the same program descriptions
// run unchanged on this device and on a real adapter. Dispatches are split into chunks executed on a
// worker pool and joined before Dispatch returns, which provides the full barrier semantics.
type Device interface {
	gpu.Device

	// Framebuffer returns the image draws are rasterized into.
	//
	// Returns:
	//   - *image.RGBA: the framebuffer, or nil if the device was created without one
	Framebuffer() *image.RGBA

	// Resize reallocates the framebuffer.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	Resize(width, height int)

	// Workers returns the number of pool workers dispatches are spread over.
	//
	// Returns:
	//   - int: the worker count
	Workers() int
}

var _ Device = &device{}

// NewDevice creates a software device with all specified options applied.
//
// Parameters:
//   - opts: a variadic list of DeviceBuilderOption functions to configure the device
//
// Returns:
//   - Device: a ready-to-use software device
func NewDevice(opts ...DeviceBuilderOption) Device {
	d := &device{
		kernels: make(map[string]Kernel),
		workers: max(runtime.NumCPU()-1, 1),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.fbWidth > 0 && d.fbHeight > 0 {
		d.framebuffer = image.NewRGBA(image.Rect(0, 0, d.fbWidth, d.fbHeight))
	}
	// Queue size of 256 matches the upper bound on chunks per dispatch.
	d.pool = worker.NewDynamicWorkerPool(d.workers, maxChunks, 1*time.Second)
	d.logger.Debug("software device created", zap.Int("workers", d.workers), zap.Int("kernels", len(d.kernels)))
	return d
}

func (d *device) Backend() gpu.BackendType {
	return gpu.BackendSoftware
}

func (d *device) Name() string {
	return fmt.Sprintf("software (%d workers)", d.workers)
}

func (d *device) Workers() int {
	return d.workers
}

func (d *device) Framebuffer() *image.RGBA {
	return d.framebuffer
}

func (d *device) Resize(width, height int) {
	d.fbWidth, d.fbHeight = width, height
	d.framebuffer = image.NewRGBA(image.Rect(0, 0, max(width, 1), max(height, 1)))
}

func (d *device) alive(op string) {
	if d.released {
		gpu.Fatalf("software."+op, gpu.ErrState, "device has been released")
	}
}

func (d *device) CreateBuffer(label string, data []byte, flags gpu.BufferFlags) gpu.Buffer {
	d.alive("CreateBuffer")
	buf := &softwareBuffer{label: label, flags: flags, data: make([]byte, len(data))}
	copy(buf.data, data)
	return buf
}

func (d *device) WriteBuffer(b gpu.Buffer, offset uint64, data []byte) {
	d.alive("WriteBuffer")
	buf := d.buffer(b, "WriteBuffer")
	if !buf.flags.Has(gpu.BufferDynamic) {
		gpu.Fatalf("software.WriteBuffer", gpu.ErrDevice, "buffer %q was not created dynamic", buf.label)
	}
	if offset+uint64(len(data)) > uint64(len(buf.data)) {
		gpu.Fatalf("software.WriteBuffer", gpu.ErrSizeMismatch, "write of %d bytes at %d overflows buffer %q of %d bytes", len(data), offset, buf.label, len(buf.data))
	}
	copy(buf.data[offset:], data)
}

func (d *device) ReadBuffer(b gpu.Buffer) []byte {
	d.alive("ReadBuffer")
	buf := d.buffer(b, "ReadBuffer")
	out := make([]byte, len(buf.data))
	copy(out, buf.data)
	return out
}

func (d *device) CreateTexture(desc gpu.TextureDesc) gpu.Texture {
	d.alive("CreateTexture")
	if desc.Format.TexelSize() == 0 {
		gpu.Fatalf("software.CreateTexture", gpu.ErrCreation, "texture %q: unsupported format %s", desc.Label, desc.Format)
	}
	if desc.Width == 0 || desc.Height == 0 {
		gpu.Fatalf("software.CreateTexture", gpu.ErrCreation, "texture %q: zero extent %dx%d", desc.Label, desc.Width, desc.Height)
	}
	if desc.Levels == 0 || desc.Levels > common.MipLevelCount(desc.Width, desc.Height) {
		gpu.Fatalf("software.CreateTexture", gpu.ErrCreation, "texture %q: invalid mip level count %d", desc.Label, desc.Levels)
	}
	tex := &softwareTexture{desc: desc, levels: make([][]byte, desc.Levels)}
	for l := range desc.Levels {
		w, h := common.MipExtent(desc.Width, desc.Height, l)
		tex.levels[l] = make([]byte, int(w*h)*desc.Format.TexelSize())
	}
	return tex
}

func (d *device) WriteTexture(t gpu.Texture, region gpu.TextureRegion, data []byte) {
	d.alive("WriteTexture")
	tex := d.texture(t, "WriteTexture")
	if region.Level >= tex.desc.Levels {
		gpu.Fatalf("software.WriteTexture", gpu.ErrDevice, "texture %q has no mip level %d", tex.desc.Label, region.Level)
	}
	w, h := common.MipExtent(tex.desc.Width, tex.desc.Height, region.Level)
	if !region.Fits(w, h) {
		gpu.Fatalf("software.WriteTexture", gpu.ErrDevice, "region %+v exceeds level %d extent %dx%d", region, region.Level, w, h)
	}
	ts := tex.desc.Format.TexelSize()
	row := int(region.Width) * ts
	if len(data) != row*int(region.Height) {
		gpu.Fatalf("software.WriteTexture", gpu.ErrSizeMismatch, "region needs %d bytes, got %d", row*int(region.Height), len(data))
	}
	dst := tex.levels[region.Level]
	for y := range int(region.Height) {
		off := ((int(region.Y)+y)*int(w) + int(region.X)) * ts
		copy(dst[off:off+row], data[y*row:(y+1)*row])
	}
}

func (d *device) ReadTexture(t gpu.Texture, level uint32) []byte {
	d.alive("ReadTexture")
	tex := d.texture(t, "ReadTexture")
	if level >= tex.desc.Levels {
		gpu.Fatalf("software.ReadTexture", gpu.ErrDevice, "texture %q has no mip level %d", tex.desc.Label, level)
	}
	out := make([]byte, len(tex.levels[level]))
	copy(out, tex.levels[level])
	return out
}

func (d *device) CreateProgram(desc gpu.ProgramDesc) (gpu.Program, error) {
	d.alive("CreateProgram")
	var entry string
	switch {
	case desc.Compute != nil:
		entry = desc.Compute.EntryPoint
	case desc.Fragment != nil:
		entry = desc.Fragment.EntryPoint
	default:
		return nil, fmt.Errorf("program %q has neither a compute nor a fragment stage", desc.Key)
	}
	k, ok := d.kernels[entry]
	if !ok || k.Setup == nil {
		return nil, fmt.Errorf("program %q: no kernel registered for entry point %q", desc.Key, entry)
	}
	p := &softwareProgram{desc: desc, kernel: k, bindings: make(map[string]gpu.BindingInfo, len(desc.Bindings))}
	for _, b := range desc.Bindings {
		p.bindings[b.Name] = b
	}
	return p, nil
}

func (d *device) Dispatch(p gpu.Program, set *gpu.BindingSet, groups [3]uint32) {
	d.alive("Dispatch")
	prog := d.program(p, "Dispatch")
	if !prog.desc.IsCompute() {
		gpu.Fatalf("software.Dispatch", gpu.ErrDevice, "program %q is not a compute program", prog.desc.Key)
	}
	wg := prog.desc.WorkgroupSize
	for i := range wg {
		wg[i] = max(wg[i], 1)
	}
	grid := [3]uint32{groups[0] * wg[0], groups[1] * wg[1], groups[2] * wg[2]}
	d.run(prog, &KernelIO{dev: d, prog: prog, set: set}, grid)
}

func (d *device) Draw(p gpu.Program, set *gpu.BindingSet, vertexCount uint32) {
	d.alive("Draw")
	prog := d.program(p, "Draw")
	if prog.desc.IsCompute() {
		gpu.Fatalf("software.Draw", gpu.ErrDevice, "program %q is a compute program", prog.desc.Key)
	}
	if d.framebuffer == nil || vertexCount < 3 {
		return
	}
	b := d.framebuffer.Bounds()
	target := &Image{
		name:   "framebuffer",
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Format: gpu.FormatRGBA8Unorm,
		Access: gpu.AccessWriteOnly,
		data:   d.framebuffer.Pix,
	}
	d.run(prog, &KernelIO{dev: d, prog: prog, set: set, target: target}, [3]uint32{target.Width, target.Height, 1})
}

func (d *device) Present() {}

func (d *device) Release() {
	d.releaseOnce.Do(func() {
		d.pool.Stop()
		d.released = true
		d.logger.Debug("software device released")
	})
}

func (d *device) buffer(b gpu.Buffer, op string) *softwareBuffer {
	buf, ok := b.(*softwareBuffer)
	if !ok || buf == nil {
		gpu.Fatalf("software."+op, gpu.ErrDevice, "buffer %T was not created by this device", b)
	}
	if buf.released {
		gpu.Fatalf("software."+op, gpu.ErrState, "buffer %q used after release", buf.label)
	}
	return buf
}

func (d *device) texture(t gpu.Texture, op string) *softwareTexture {
	tex, ok := t.(*softwareTexture)
	if !ok || tex == nil {
		gpu.Fatalf("software."+op, gpu.ErrDevice, "texture %T was not created by this device", t)
	}
	if tex.released {
		gpu.Fatalf("software."+op, gpu.ErrState, "texture %q used after release", tex.desc.Label)
	}
	return tex
}

func (d *device) program(p gpu.Program, op string) *softwareProgram {
	prog, ok := p.(*softwareProgram)
	if !ok || prog == nil {
		gpu.Fatalf("software."+op, gpu.ErrDevice, "program %T was not created by this device", p)
	}
	if prog.released {
		gpu.Fatalf("software."+op, gpu.ErrState, "program %q used after release", prog.desc.Key)
	}
	return prog
}

type softwareBuffer struct {
	label    string
	flags    gpu.BufferFlags
	data     []byte
	released bool
}

func (b *softwareBuffer) Label() string          { return b.label }
func (b *softwareBuffer) Size() uint64           { return uint64(len(b.data)) }
func (b *softwareBuffer) Flags() gpu.BufferFlags { return b.flags }
func (b *softwareBuffer) Release() {
	b.released = true
	b.data = nil
}

type softwareTexture struct {
	desc     gpu.TextureDesc
	levels   [][]byte
	released bool
}

func (t *softwareTexture) Desc() gpu.TextureDesc { return t.desc }
func (t *softwareTexture) Release() {
	t.released = true
	t.levels = nil
}

func (t *softwareTexture) image(name string, level uint32, access gpu.Access) *Image {
	if level >= t.desc.Levels {
		gpu.Fatalf("software.Image", gpu.ErrDevice, "texture %q has no mip level %d", t.desc.Label, level)
	}
	w, h := common.MipExtent(t.desc.Width, t.desc.Height, level)
	return &Image{name: name, Width: w, Height: h, Format: t.desc.Format, Access: access, data: t.levels[level]}
}

type softwareProgram struct {
	desc     gpu.ProgramDesc
	kernel   Kernel
	bindings map[string]gpu.BindingInfo
	released bool
}

func (p *softwareProgram) Key() string           { return p.desc.Key }
func (p *softwareProgram) Desc() gpu.ProgramDesc { return p.desc }
func (p *softwareProgram) Release()              { p.released = true }
