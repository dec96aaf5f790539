package gpu

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// BindingKind classifies a reflected shader resource.
type BindingKind int

const (
	// BindingStorageBuffer is a var<storage> block.
	BindingStorageBuffer BindingKind = iota
	// BindingUniformBuffer is a var<uniform> block.
	BindingUniformBuffer
	// BindingStorageTexture is a texture_storage_2d image used for random access.
	BindingStorageTexture
	// BindingSampledTexture is a texture_2d sampled through a sampler.
	BindingSampledTexture
	// BindingSampler is a sampler paired with the sampled texture one binding below it.
	BindingSampler
)

func (k BindingKind) String() string {
	switch k {
	case BindingStorageBuffer:
		return "storage buffer"
	case BindingUniformBuffer:
		return "uniform buffer"
	case BindingStorageTexture:
		return "storage texture"
	case BindingSampledTexture:
		return "sampled texture"
	case BindingSampler:
		return "sampler"
	default:
		return fmt.Sprintf("BindingKind(%d)", int(k))
	}
}

// UniformField is one member of a uniform block with its WGSL layout.
type UniformField struct {
	Name   string
	Type   string
	Offset uint32
	Size   uint32
}

// BindingInfo is one shader resource as resolved by reflection at program load time.
type BindingInfo struct {
	// Name is the WGSL variable name, the symbolic name callers resolve.
	Name    string
	Group   uint32
	Binding uint32
	Kind    BindingKind
	// Access applies to storage buffers and storage textures.
	Access Access
	// Format applies to storage textures.
	Format Format
	// ElemStride is the array element stride of a storage buffer declared as array<T>, 0 otherwise.
	ElemStride uint32
	// Size is the byte size of a uniform block or of the fixed part of a storage block.
	Size uint32
	// Fields lists the members of a uniform block.
	Fields []UniformField
	// Visibility is the set of stages that declare this binding.
	Visibility ShaderStage
}

// Field looks up a uniform member by name.
func (b BindingInfo) Field(name string) (UniformField, bool) {
	for _, f := range b.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return UniformField{}, false
}

// BufferBinding is a buffer attached to a binding point along with the host element type it holds.
type BufferBinding struct {
	Buffer   Buffer
	ElemType reflect.Type
	Stride   uint32
	Len      int
}

// ImageBinding is a texture level attached to an image unit for random access.
type ImageBinding struct {
	Texture Texture
	Access  Access
	Level   uint32
}

// SampledBinding is a texture attached for filtered sampling. The sampler lives one binding above it.
type SampledBinding struct {
	Texture Texture
	Filter  FilterMode
}

// BindingSet is the explicit resource state handed to every dispatch and draw. Nothing is bound
// implicitly on the device: a call sees exactly the resources in the set it is given.
type BindingSet struct {
	buffers  map[uint32]BufferBinding
	images   map[uint32]ImageBinding
	textures map[uint32]SampledBinding
}

// NewBindingSet creates an empty BindingSet.
//
// Returns:
//   - *BindingSet: a set with no resources attached
func NewBindingSet() *BindingSet {
	return &BindingSet{
		buffers:  make(map[uint32]BufferBinding),
		images:   make(map[uint32]ImageBinding),
		textures: make(map[uint32]SampledBinding),
	}
}

// SetBuffer attaches a buffer to a binding point, replacing anything previously attached there.
func (s *BindingSet) SetBuffer(point uint32, b BufferBinding) {
	s.clear(point)
	s.buffers[point] = b
}

// SetImage attaches a texture level to an image unit.
func (s *BindingSet) SetImage(point uint32, b ImageBinding) {
	s.clear(point)
	s.images[point] = b
}

// SetSampled attaches a texture for sampling.
func (s *BindingSet) SetSampled(point uint32, b SampledBinding) {
	s.clear(point)
	s.textures[point] = b
}

// Buffer returns the buffer attached at point.
func (s *BindingSet) Buffer(point uint32) (BufferBinding, bool) {
	b, ok := s.buffers[point]
	return b, ok
}

// Image returns the image attached at point.
func (s *BindingSet) Image(point uint32) (ImageBinding, bool) {
	b, ok := s.images[point]
	return b, ok
}

// Sampled returns the sampled texture attached at point.
func (s *BindingSet) Sampled(point uint32) (SampledBinding, bool) {
	b, ok := s.textures[point]
	return b, ok
}

// Points returns every occupied binding point in ascending order.
func (s *BindingSet) Points() []uint32 {
	pts := slices.Collect(maps.Keys(s.buffers))
	pts = slices.AppendSeq(pts, maps.Keys(s.images))
	pts = slices.AppendSeq(pts, maps.Keys(s.textures))
	slices.Sort(pts)
	return pts
}

// Clone returns a shallow copy of the set. Handles are shared; the maps are not.
func (s *BindingSet) Clone() *BindingSet {
	return &BindingSet{
		buffers:  maps.Clone(s.buffers),
		images:   maps.Clone(s.images),
		textures: maps.Clone(s.textures),
	}
}

func (s *BindingSet) clear(point uint32) {
	delete(s.buffers, point)
	delete(s.images, point)
	delete(s.textures, point)
}
