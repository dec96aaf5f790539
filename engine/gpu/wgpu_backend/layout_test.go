package wgpu_backend

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextureFormatCoversEveryFormat(t *testing.T) {
	for _, f := range []gpu.Format{
		gpu.FormatRG32Float, gpu.FormatRGBA8Uint, gpu.FormatR32Uint,
		gpu.FormatR32Float, gpu.FormatRGBA8Unorm, gpu.FormatRGBA32Float,
	} {
		_, ok := textureFormat(f)
		assert.True(t, ok, f.String())
	}
	_, ok := textureFormat(gpu.FormatUndefined)
	assert.False(t, ok)
}

func TestLayoutEntries(t *testing.T) {
	bindings := []gpu.BindingInfo{
		{Name: "params", Binding: 3, Kind: gpu.BindingUniformBuffer, Size: 16, Visibility: gpu.StageCompute},
		{Name: "pos", Binding: 0, Kind: gpu.BindingStorageBuffer, Access: gpu.AccessReadOnly, Visibility: gpu.StageCompute},
		{Name: "acc", Binding: 1, Kind: gpu.BindingStorageBuffer, Access: gpu.AccessReadWrite, Visibility: gpu.StageCompute},
		{Name: "density", Binding: 2, Kind: gpu.BindingStorageTexture, Access: gpu.AccessWriteOnly, Format: gpu.FormatR32Uint, Visibility: gpu.StageCompute},
	}
	entries := layoutEntries(bindings)
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, uint32(i), e.Binding)
		assert.Equal(t, wgpu.ShaderStageCompute, e.Visibility)
	}
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, entries[0].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, entries[1].Buffer.Type)
	assert.Equal(t, wgpu.StorageTextureAccessWriteOnly, entries[2].StorageTexture.Access)
	assert.Equal(t, wgpu.TextureFormatR32Uint, entries[2].StorageTexture.Format)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[3].Buffer.Type)
	assert.Equal(t, uint64(16), entries[3].Buffer.MinBindingSize)
}

func TestLayoutEntrySampledPair(t *testing.T) {
	vis := gpu.StageVertex | gpu.StageFragment
	tex := layoutEntry(gpu.BindingInfo{Name: "color", Binding: 0, Kind: gpu.BindingSampledTexture, Visibility: vis})
	smp := layoutEntry(gpu.BindingInfo{Name: "color_sampler", Binding: 1, Kind: gpu.BindingSampler, Visibility: gpu.StageFragment})

	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, tex.Visibility)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, tex.Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, tex.Texture.ViewDimension)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, smp.Sampler.Type)
}

func TestRowPadding(t *testing.T) {
	assert.Equal(t, uint32(256), paddedRowBytes(4))
	assert.Equal(t, uint32(256), paddedRowBytes(256))
	assert.Equal(t, uint32(512), paddedRowBytes(257))

	// two rows of 3 bytes padded to 4
	data := []byte{1, 2, 3, 0, 4, 5, 6, 0}
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, unpadRows(data, 3, 4, 2))
	assert.Equal(t, []byte{1, 2, 3, 0}, unpadRows(data, 4, 4, 1))
}

func TestAlignedSize(t *testing.T) {
	assert.Equal(t, uint64(4), alignedSize(0))
	assert.Equal(t, uint64(4), alignedSize(1))
	assert.Equal(t, uint64(8), alignedSize(8))
	assert.Equal(t, uint64(12), alignedSize(9))
}

func TestFilterMode(t *testing.T) {
	assert.Equal(t, wgpu.FilterModeNearest, filterMode(gpu.FilterNearest))
	assert.Equal(t, wgpu.FilterModeLinear, filterMode(gpu.FilterLinear))
}

type fakeEncoder struct{ released int }

func (f *fakeEncoder) Release() { f.released++ }

func TestCheckEncodeRaisesDriverErrors(t *testing.T) {
	enc := &fakeEncoder{}
	checkEncode("wgpu.Dispatch", enc, nil)
	assert.Zero(t, enc.released)

	cause := errors.New("pass ended with an invalid bind group")
	err := gpu.Catch(func() { checkEncode("wgpu.Dispatch", enc, cause) })
	assert.True(t, errors.Is(err, gpu.ErrDevice))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, 1, enc.released)
}
