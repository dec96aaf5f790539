package software_backend

import (
	"encoding/binary"
	"math"
	"reflect"

	"github.com/Carmen-Shannon/oxy-gravity/common"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
)

// Kernel is the host implementation of a shader entry point.
type Kernel struct {
	// Setup runs once per dispatch or draw. It resolves the resources the kernel needs from io and
	// returns the function executed for every invocation, keyed by its global invocation id. For draws
	// the id is the framebuffer pixel (x, y, 0).
	Setup func(io *KernelIO) func(gid [3]uint32)

	// Serial runs every invocation in order on the calling goroutine. Kernels whose invocations write
	// to shared locations (the equivalent of WGSL atomics) must be serial.
	Serial bool
}

// KernelIO exposes the resources of one dispatch or draw to a kernel, resolved by WGSL variable name
// through the program's binding table.
type KernelIO struct {
	dev    *device
	prog   *softwareProgram
	set    *gpu.BindingSet
	target *Image
}

func (io *KernelIO) binding(name string, kind gpu.BindingKind) gpu.BindingInfo {
	info, ok := io.prog.bindings[name]
	if !ok {
		gpu.Fatalf("software.KernelIO", gpu.ErrDevice, "program %q declares no binding %q", io.prog.desc.Key, name)
	}
	if info.Kind != kind {
		gpu.Fatalf("software.KernelIO", gpu.ErrDevice, "binding %q is a %s, not a %s", name, info.Kind, kind)
	}
	return info
}

// Storage returns a typed view over the storage buffer bound to the named block. The view aliases the
// device memory: writes are visible to later dispatches. T must be the element type the buffer was
// created with.
//
// Parameters:
//   - io: the kernel's resources
//   - name: the WGSL variable name of the storage block
//
// Returns:
//   - []T: the buffer contents as a slice of T
func Storage[T any](io *KernelIO, name string) []T {
	info := io.binding(name, gpu.BindingStorageBuffer)
	bb, ok := io.set.Buffer(info.Binding)
	if !ok {
		gpu.Fatalf("software.Storage", gpu.ErrDevice, "no buffer bound at binding %d (%q)", info.Binding, name)
	}
	want := reflect.TypeFor[T]()
	if bb.ElemType != want {
		gpu.Fatalf("software.Storage", gpu.ErrTypeMismatch, "binding %q holds %v, kernel requested %v", name, bb.ElemType, want)
	}
	buf := io.dev.buffer(bb.Buffer, "Storage")
	return common.BytesToSlice[T](buf.data)
}

// Uniform returns the uniform block bound to the named variable.
//
// Parameters:
//   - name: the WGSL variable name of the uniform block
//
// Returns:
//   - Uniform: accessors for the block's members
func (io *KernelIO) Uniform(name string) Uniform {
	info := io.binding(name, gpu.BindingUniformBuffer)
	bb, ok := io.set.Buffer(info.Binding)
	if !ok {
		gpu.Fatalf("software.Uniform", gpu.ErrDevice, "no uniform buffer bound at binding %d (%q)", info.Binding, name)
	}
	buf := io.dev.buffer(bb.Buffer, "Uniform")
	if uint32(len(buf.data)) < info.Size {
		gpu.Fatalf("software.Uniform", gpu.ErrSizeMismatch, "uniform %q needs %d bytes, buffer holds %d", name, info.Size, len(buf.data))
	}
	return Uniform{info: info, data: buf.data}
}

// Image returns the storage texture bound to the named image unit.
//
// Parameters:
//   - name: the WGSL variable name of the storage texture
//
// Returns:
//   - *Image: the bound mip level with the access the binding was made with
func (io *KernelIO) Image(name string) *Image {
	info := io.binding(name, gpu.BindingStorageTexture)
	ib, ok := io.set.Image(info.Binding)
	if !ok {
		gpu.Fatalf("software.Image", gpu.ErrDevice, "no image bound at unit %d (%q)", info.Binding, name)
	}
	tex := io.dev.texture(ib.Texture, "Image")
	if tex.desc.Format != info.Format {
		gpu.Fatalf("software.Image", gpu.ErrTypeMismatch, "image %q is %s, shader declares %s", name, tex.desc.Format, info.Format)
	}
	return tex.image(name, ib.Level, ib.Access)
}

// Sampled returns the sampled texture bound to the named variable, filtered as configured on the binding.
//
// Parameters:
//   - name: the WGSL variable name of the texture
//
// Returns:
//   - Sampler: a filtered view of mip level 0
func (io *KernelIO) Sampled(name string) Sampler {
	info := io.binding(name, gpu.BindingSampledTexture)
	sb, ok := io.set.Sampled(info.Binding)
	if !ok {
		gpu.Fatalf("software.Sampled", gpu.ErrDevice, "no texture bound at binding %d (%q)", info.Binding, name)
	}
	tex := io.dev.texture(sb.Texture, "Sampled")
	return Sampler{img: tex.image(name, 0, gpu.AccessReadOnly), filter: sb.Filter}
}

// Target returns the framebuffer of a draw, or nil inside a dispatch.
func (io *KernelIO) Target() *Image {
	return io.target
}

// Uniform reads members of a uniform block by name using the reflected member offsets.
type Uniform struct {
	info gpu.BindingInfo
	data []byte
}

func (u Uniform) field(name string, size uint32) []byte {
	f, ok := u.info.Field(name)
	if !ok {
		gpu.Fatalf("software.Uniform", gpu.ErrDevice, "uniform %q has no member %q", u.info.Name, name)
	}
	if f.Size != size {
		gpu.Fatalf("software.Uniform", gpu.ErrTypeMismatch, "member %q is %s (%d bytes), read as %d bytes", name, f.Type, f.Size, size)
	}
	return u.data[f.Offset : f.Offset+size]
}

// F32 reads an f32 member.
func (u Uniform) F32(name string) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(u.field(name, 4)))
}

// U32 reads a u32 member.
func (u Uniform) U32(name string) uint32 {
	return binary.LittleEndian.Uint32(u.field(name, 4))
}

// I32 reads an i32 member.
func (u Uniform) I32(name string) int32 {
	return int32(binary.LittleEndian.Uint32(u.field(name, 4)))
}

// Vec2 reads a vec2<f32> member.
func (u Uniform) Vec2(name string) common.Vec2 {
	b := u.field(name, 8)
	return common.Vec2{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
	}
}

// Image is one mip level of a texture as seen by a kernel. Out of bounds loads return zero and out of
// bounds stores are dropped, matching WGSL textureLoad/textureStore.
type Image struct {
	name   string
	Width  uint32
	Height uint32
	Format gpu.Format
	Access gpu.Access
	data   []byte
}

func (im *Image) offset(x, y uint32) (int, bool) {
	if x >= im.Width || y >= im.Height {
		return 0, false
	}
	return int(y*im.Width+x) * im.Format.TexelSize(), true
}

func (im *Image) check(format gpu.Format, store bool) {
	if im.Format != format {
		gpu.Fatalf("software.Image", gpu.ErrTypeMismatch, "image %q is %s, accessed as %s", im.name, im.Format, format)
	}
	if store && im.Access == gpu.AccessReadOnly {
		gpu.Fatalf("software.Image", gpu.ErrDevice, "image %q is bound read-only", im.name)
	}
	if !store && im.Access == gpu.AccessWriteOnly {
		gpu.Fatalf("software.Image", gpu.ErrDevice, "image %q is bound write-only", im.name)
	}
}

// LoadU32 reads an r32uint texel.
func (im *Image) LoadU32(x, y uint32) uint32 {
	im.check(gpu.FormatR32Uint, false)
	off, ok := im.offset(x, y)
	if !ok {
		return 0
	}
	return binary.LittleEndian.Uint32(im.data[off:])
}

// StoreU32 writes an r32uint texel.
func (im *Image) StoreU32(x, y, v uint32) {
	im.check(gpu.FormatR32Uint, true)
	if off, ok := im.offset(x, y); ok {
		binary.LittleEndian.PutUint32(im.data[off:], v)
	}
}

// LoadF32 reads an r32float texel.
func (im *Image) LoadF32(x, y uint32) float32 {
	im.check(gpu.FormatR32Float, false)
	off, ok := im.offset(x, y)
	if !ok {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(im.data[off:]))
}

// StoreF32 writes an r32float texel.
func (im *Image) StoreF32(x, y uint32, v float32) {
	im.check(gpu.FormatR32Float, true)
	if off, ok := im.offset(x, y); ok {
		binary.LittleEndian.PutUint32(im.data[off:], math.Float32bits(v))
	}
}

// LoadRGBA8 reads an rgba8uint texel.
func (im *Image) LoadRGBA8(x, y uint32) [4]uint8 {
	im.check(gpu.FormatRGBA8Uint, false)
	off, ok := im.offset(x, y)
	if !ok {
		return [4]uint8{}
	}
	return [4]uint8(im.data[off : off+4])
}

// StoreRGBA8 writes an rgba8uint texel.
func (im *Image) StoreRGBA8(x, y uint32, v [4]uint8) {
	im.check(gpu.FormatRGBA8Uint, true)
	if off, ok := im.offset(x, y); ok {
		copy(im.data[off:off+4], v[:])
	}
}

// LoadUnorm reads an rgba8unorm texel as normalized floats.
func (im *Image) LoadUnorm(x, y uint32) [4]float32 {
	im.check(gpu.FormatRGBA8Unorm, false)
	off, ok := im.offset(x, y)
	if !ok {
		return [4]float32{}
	}
	return unpackUnorm(im.data[off : off+4])
}

// StoreUnorm writes an rgba8unorm texel from normalized floats, clamping to [0, 1].
func (im *Image) StoreUnorm(x, y uint32, v [4]float32) {
	im.check(gpu.FormatRGBA8Unorm, true)
	if off, ok := im.offset(x, y); ok {
		for i, c := range v {
			im.data[off+i] = uint8(math.Round(float64(min(max(c, 0), 1)) * 255))
		}
	}
}

func unpackUnorm(b []byte) [4]float32 {
	return [4]float32{float32(b[0]) / 255, float32(b[1]) / 255, float32(b[2]) / 255, float32(b[3]) / 255}
}

// Sampler samples an rgba8unorm texture with clamp-to-edge addressing.
type Sampler struct {
	img    *Image
	filter gpu.FilterMode
}

// Size returns the extent of the sampled level.
func (s Sampler) Size() (uint32, uint32) {
	return s.img.Width, s.img.Height
}

// Sample returns the filtered colour at normalized coordinates (u, v).
func (s Sampler) Sample(u, v float32) [4]float32 {
	if s.img.Format != gpu.FormatRGBA8Unorm {
		gpu.Fatalf("software.Sample", gpu.ErrTypeMismatch, "texture %q is %s, only rgba8unorm is filterable", s.img.name, s.img.Format)
	}
	w, h := float32(s.img.Width), float32(s.img.Height)
	if s.filter == gpu.FilterNearest {
		return s.texel(int(u*w), int(v*h))
	}

	fx, fy := u*w-0.5, v*h-0.5
	x0, y0 := int(math.Floor(float64(fx))), int(math.Floor(float64(fy)))
	tx, ty := fx-float32(x0), fy-float32(y0)
	a, b := s.texel(x0, y0), s.texel(x0+1, y0)
	c, d := s.texel(x0, y0+1), s.texel(x0+1, y0+1)
	var out [4]float32
	for i := range out {
		top := a[i] + (b[i]-a[i])*tx
		bot := c[i] + (d[i]-c[i])*tx
		out[i] = top + (bot-top)*ty
	}
	return out
}

func (s Sampler) texel(x, y int) [4]float32 {
	x = min(max(x, 0), int(s.img.Width)-1)
	y = min(max(y, 0), int(s.img.Height)-1)
	off := (y*int(s.img.Width) + x) * 4
	return unpackUnorm(s.img.data[off : off+4])
}
