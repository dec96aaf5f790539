package wgpu_backend

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// copyRowAlignment is the required alignment of bytesPerRow for texture to buffer copies.
const copyRowAlignment = 256

// textureFormats maps engine texel formats to their WebGPU equivalents.
var textureFormats = map[gpu.Format]wgpu.TextureFormat{
	gpu.FormatRG32Float:   wgpu.TextureFormatRG32Float,
	gpu.FormatRGBA8Uint:   wgpu.TextureFormatRGBA8Uint,
	gpu.FormatR32Uint:     wgpu.TextureFormatR32Uint,
	gpu.FormatR32Float:    wgpu.TextureFormatR32Float,
	gpu.FormatRGBA8Unorm:  wgpu.TextureFormatRGBA8Unorm,
	gpu.FormatRGBA32Float: wgpu.TextureFormatRGBA32Float,
}

var storageAccess = map[gpu.Access]wgpu.StorageTextureAccess{
	gpu.AccessReadOnly:  wgpu.StorageTextureAccessReadOnly,
	gpu.AccessWriteOnly: wgpu.StorageTextureAccessWriteOnly,
	gpu.AccessReadWrite: wgpu.StorageTextureAccessReadWrite,
}

// textureFormat returns the WebGPU format of f.
//
// Parameters:
//   - f: the engine texel format
//
// Returns:
//   - wgpu.TextureFormat: the WebGPU format
//   - bool: false if f has no WebGPU equivalent
func textureFormat(f gpu.Format) (wgpu.TextureFormat, bool) {
	tf, ok := textureFormats[f]
	return tf, ok
}

// shaderStage converts engine stage visibility bits to WebGPU stage bits.
func shaderStage(s gpu.ShaderStage) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if s&gpu.StageCompute != 0 {
		out |= wgpu.ShaderStageCompute
	}
	if s&gpu.StageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&gpu.StageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	return out
}

// layoutEntry converts one reflected binding into a bind group layout entry.
//
// Parameters:
//   - b: the reflected binding
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the layout entry for b
func layoutEntry(b gpu.BindingInfo) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    b.Binding,
		Visibility: shaderStage(b.Visibility),
	}
	switch b.Kind {
	case gpu.BindingUniformBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.MinBindingSize = uint64(b.Size)
	case gpu.BindingStorageBuffer:
		if b.Access == gpu.AccessReadOnly {
			entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		} else {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
	case gpu.BindingStorageTexture:
		tf, _ := textureFormat(b.Format)
		entry.StorageTexture.Format = tf
		entry.StorageTexture.Access = storageAccess[b.Access]
		entry.StorageTexture.ViewDimension = wgpu.TextureViewDimension2D
	case gpu.BindingSampledTexture:
		entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case gpu.BindingSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	}
	return entry
}

// layoutEntries converts a program's bindings into layout entries sorted by binding.
func layoutEntries(bindings []gpu.BindingInfo) []wgpu.BindGroupLayoutEntry {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings))
	for _, b := range bindings {
		entries = append(entries, layoutEntry(b))
	}
	slices.SortFunc(entries, func(a, b wgpu.BindGroupLayoutEntry) int { return int(a.Binding) - int(b.Binding) })
	return entries
}

// paddedRowBytes returns the row pitch of a texture readback for rows of rowBytes bytes.
func paddedRowBytes(rowBytes uint32) uint32 {
	return (rowBytes + copyRowAlignment - 1) / copyRowAlignment * copyRowAlignment
}

// unpadRows strips the row padding of a texture readback.
//
// Parameters:
//   - data: the padded readback
//   - rowBytes: the tightly packed row size
//   - padded: the padded row pitch
//   - rows: the number of rows
//
// Returns:
//   - []byte: the tightly packed rows
func unpadRows(data []byte, rowBytes, padded, rows uint32) []byte {
	if rowBytes == padded {
		return slices.Clone(data[:rowBytes*rows])
	}
	out := make([]byte, 0, rowBytes*rows)
	for y := range rows {
		start := y * padded
		out = append(out, data[start:start+rowBytes]...)
	}
	return out
}

// alignedSize rounds a buffer size up to the 4 byte copy alignment, with a minimum of 4.
func alignedSize(n uint64) uint64 {
	return max((n+3)&^3, 4)
}

func filterMode(f gpu.FilterMode) wgpu.FilterMode {
	if f == gpu.FilterLinear {
		return wgpu.FilterModeLinear
	}
	return wgpu.FilterModeNearest
}
