// Package texture provides Texture, a 2D device image with a fixed format and a full mip chain that
// kernels access through image units or samplers.
package texture

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-gravity/common"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
)

// Texture owns one 2D device image with immutable storage for its whole mip chain. The format and
// extent are fixed at creation; contents change only through SubImage uploads or kernel image stores.
//
// Texture never inserts barriers. Writes made through an image binding become visible to later reads
// only once the dispatch that made them has returned.
type Texture struct {
	dev  gpu.Device
	raw  gpu.Texture
	desc gpu.TextureDesc

	filter gpu.FilterMode

	released    bool
	releaseOnce sync.Once
}

// New2D allocates a 2D texture with storage for every mip level.
//
// Parameters:
//   - dev: the device to allocate on
//   - label: a debug label
//   - format: the texel format
//   - width: the base level width in texels
//   - height: the base level height in texels
//
// Returns:
//   - *Texture: the new texture, filtered nearest by default
func New2D(dev gpu.Device, label string, format gpu.Format, width, height uint32) *Texture {
	if format.TexelSize() == 0 {
		gpu.Fatalf("texture.New2D", gpu.ErrCreation, "texture %q: unsupported format %s", label, format)
	}
	if width == 0 || height == 0 {
		gpu.Fatalf("texture.New2D", gpu.ErrCreation, "texture %q: zero extent %dx%d", label, width, height)
	}
	desc := gpu.TextureDesc{
		Label:  label,
		Format: format,
		Width:  width,
		Height: height,
		Levels: common.MipLevelCount(width, height),
	}
	return &Texture{dev: dev, raw: dev.CreateTexture(desc), desc: desc, filter: gpu.FilterNearest}
}

// SubImage uploads a tightly packed, row-major rectangle of texels into one mip level.
//
// Parameters:
//   - level: the destination mip level
//   - x: the destination column of the rectangle's left edge
//   - y: the destination row of the rectangle's top edge
//   - width: the rectangle width in texels
//   - height: the rectangle height in texels
//   - srcFormat: the format of data, which must equal the texture format
//   - data: exactly width*height*texel size bytes
//
// Returns:
//   - *Texture: the texture, for chaining
func (t *Texture) SubImage(level, x, y, width, height uint32, srcFormat gpu.Format, data []byte) *Texture {
	t.alive("texture.SubImage")
	if srcFormat != t.desc.Format {
		gpu.Fatalf("texture.SubImage", gpu.ErrTypeMismatch, "texture %q is %s, source is %s", t.desc.Label, t.desc.Format, srcFormat)
	}
	if level >= t.desc.Levels {
		gpu.Fatalf("texture.SubImage", gpu.ErrSizeMismatch, "texture %q has %d levels, got level %d", t.desc.Label, t.desc.Levels, level)
	}
	lw, lh := common.MipExtent(t.desc.Width, t.desc.Height, level)
	region := gpu.TextureRegion{Level: level, X: x, Y: y, Width: width, Height: height}
	if !region.Fits(lw, lh) {
		gpu.Fatalf("texture.SubImage", gpu.ErrSizeMismatch, "region %dx%d at (%d,%d) exceeds level %d extent %dx%d", width, height, x, y, level, lw, lh)
	}
	want := int(width) * int(height) * t.desc.Format.TexelSize()
	if len(data) != want {
		gpu.Fatalf("texture.SubImage", gpu.ErrSizeMismatch, "size mismatch: region needs %d bytes, data has %d", want, len(data))
	}
	if want == 0 {
		return t
	}
	t.dev.WriteTexture(t.raw, region, data)
	return t
}

// BindAsImage attaches mip level 0 to an image unit for random-access kernel I/O.
//
// Parameters:
//   - set: the binding state of the next dispatch
//   - unit: the image unit (binding point)
//   - access: what the kernel may do with the image
func (t *Texture) BindAsImage(set *gpu.BindingSet, unit uint32, access gpu.Access) {
	t.alive("texture.BindAsImage")
	set.SetImage(unit, gpu.ImageBinding{Texture: t.raw, Access: access})
}

// BindAsSampler attaches the texture for filtered sampling with the current filter mode. The paired
// sampler is declared at unit+1.
//
// Parameters:
//   - set: the binding state of the next draw
//   - unit: the texture binding point
func (t *Texture) BindAsSampler(set *gpu.BindingSet, unit uint32) {
	t.alive("texture.BindAsSampler")
	set.SetSampled(unit, gpu.SampledBinding{Texture: t.raw, Filter: t.filter})
}

// FilterNearest selects nearest-texel sampling for subsequent BindAsSampler calls.
func (t *Texture) FilterNearest() *Texture {
	t.filter = gpu.FilterNearest
	return t
}

// FilterLinear selects bilinear sampling for subsequent BindAsSampler calls.
func (t *Texture) FilterLinear() *Texture {
	t.filter = gpu.FilterLinear
	return t
}

// Filter returns the current filter mode.
func (t *Texture) Filter() gpu.FilterMode {
	return t.filter
}

// Read copies one mip level back to the host as tightly packed rows.
func (t *Texture) Read(level uint32) []byte {
	t.alive("texture.Read")
	return t.dev.ReadTexture(t.raw, level)
}

func (t *Texture) Width() uint32      { return t.desc.Width }
func (t *Texture) Height() uint32     { return t.desc.Height }
func (t *Texture) Format() gpu.Format { return t.desc.Format }
func (t *Texture) Levels() uint32     { return t.desc.Levels }
func (t *Texture) Label() string      { return t.desc.Label }

// Raw returns the underlying device texture.
func (t *Texture) Raw() gpu.Texture {
	t.alive("texture.Raw")
	return t.raw
}

// Released reports whether Release has been called.
func (t *Texture) Released() bool {
	return t.released
}

// Release frees the device image exactly once; later calls do nothing.
func (t *Texture) Release() {
	t.releaseOnce.Do(func() {
		t.raw.Release()
		t.raw = nil
		t.released = true
	})
}

func (t *Texture) alive(op string) {
	if t.released {
		gpu.Fatalf(op, gpu.ErrState, "texture %q used after release", t.desc.Label)
	}
}
