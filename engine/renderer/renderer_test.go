package renderer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu/software_backend"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// redBlue is a 2x1 rgba8unorm image: one red texel, one blue texel.
var redBlue = []byte{255, 0, 0, 255, 0, 0, 255, 255}

func newSoftwareRenderer(t *testing.T, opts ...RendererBuilderOption) Renderer {
	t.Helper()
	opts = append([]RendererBuilderOption{WithSize(4, 2), WithWorkers(1), WithLogger(zaptest.NewLogger(t))}, opts...)
	r, err := NewRenderer(BackendTypeSoftware, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func colorTexture(t *testing.T, r Renderer) *texture.Texture {
	t.Helper()
	tex := texture.New2D(r.Device(), "color", gpu.FormatRGBA8Unorm, 2, 1).
		SubImage(0, 0, 0, 2, 1, gpu.FormatRGBA8Unorm, redBlue)
	t.Cleanup(tex.Release)
	return tex
}

func framebuffer(t *testing.T, r Renderer) []uint8 {
	t.Helper()
	dev, ok := r.Device().(software_backend.Device)
	require.True(t, ok)
	return dev.Framebuffer().Pix
}

func TestDrawStretchesColorTexture(t *testing.T) {
	r := newSoftwareRenderer(t)
	assert.Equal(t, BackendTypeSoftware, r.BackendType())
	assert.Equal(t, gpu.BackendSoftware, r.Device().Backend())

	r.Draw(colorTexture(t, r))
	r.Present()

	fb := framebuffer(t, r)
	assert.Equal(t, []uint8{255, 0, 0, 255}, fb[0:4])
	assert.Equal(t, []uint8{255, 0, 0, 255}, fb[4:8])
	assert.Equal(t, []uint8{0, 0, 255, 255}, fb[8:12])
	assert.Equal(t, []uint8{0, 0, 255, 255}, fb[12:16])
}

func TestDrawLinearFiltering(t *testing.T) {
	r := newSoftwareRenderer(t, WithLinearFiltering(true))
	tex := colorTexture(t, r)
	r.Draw(tex)

	assert.Equal(t, gpu.FilterLinear, tex.Filter())
	assert.Equal(t, []uint8{191, 0, 64, 255}, framebuffer(t, r)[4:8])
}

func TestResize(t *testing.T) {
	r := newSoftwareRenderer(t)
	r.Resize(8, 6)
	w, h := r.Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 6, h)
	assert.Len(t, framebuffer(t, r), 8*6*4)

	r.Resize(0, 10)
	w, h = r.Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 6, h)
}

func TestSnapshot(t *testing.T) {
	r := newSoftwareRenderer(t)
	tex := colorTexture(t, r)

	img := r.Snapshot(tex, 0, 0)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 1, img.Bounds().Dy())
	assert.Equal(t, redBlue, img.Pix)

	scaled := r.Snapshot(tex, 16, 8)
	assert.Equal(t, 16, scaled.Bounds().Dx())
	assert.Equal(t, 8, scaled.Bounds().Dy())
	left := scaled.RGBAAt(0, 4)
	right := scaled.RGBAAt(15, 4)
	assert.Greater(t, left.R, left.B)
	assert.Greater(t, right.B, right.R)

	density := texture.New2D(r.Device(), "density", gpu.FormatR32Uint, 2, 2)
	defer density.Release()
	err := gpu.Catch(func() { r.Snapshot(density, 0, 0) })
	assert.True(t, errors.Is(err, gpu.ErrTypeMismatch))
}

func TestReleaseOnce(t *testing.T) {
	r, err := NewRenderer(BackendTypeSoftware, nil, WithWorkers(1))
	require.NoError(t, err)
	r.Release()
	assert.NotPanics(t, r.Release)
}

func TestUnknownBackend(t *testing.T) {
	_, err := NewRenderer(RendererBackendType(42), nil)
	assert.Error(t, err)
}

func TestParseBackendType(t *testing.T) {
	cases := map[string]RendererBackendType{
		"webgpu":   BackendTypeWGPU,
		"WGPU":     BackendTypeWGPU,
		" gpu ":    BackendTypeWGPU,
		"software": BackendTypeSoftware,
		"cpu":      BackendTypeSoftware,
	}
	for name, want := range cases {
		got, err := ParseBackendType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseBackendType("vulkan")
	assert.Error(t, err)
	assert.Equal(t, "software", BackendTypeSoftware.String())
}
