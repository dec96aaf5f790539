package shader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paramsInclude = `struct Params {
    count: u32,
    dt: f32,
    mouse: vec2<f32>,
    scale: f32,
}`

const computeSource = `//@oxy:include params
// accelerations from positions
@group(0) @binding(0) var<storage, read> pos: array<vec2<f32>>;
@group(0) @binding(1) var<storage, read_write> acc: array<vec2<f32>>;
@group(0) @binding(2) var<uniform> params: Params;
@group(0) @binding(3) var field: texture_storage_2d<r32uint, read_write>;
/* @group(0) @binding(9) var<storage> ghost: array<f32>; */

@compute @workgroup_size(64)
fn gravity(@builtin(global_invocation_id) id: vec3<u32>) {
}
`

func TestNewShaderReflectsBindings(t *testing.T) {
	s := NewShader("gravity", ShaderTypeCompute, computeSource, WithIncludes(map[string]string{"params": paramsInclude}))

	assert.Equal(t, "gravity", s.EntryPoint())
	assert.Equal(t, [3]uint32{64, 1, 1}, s.WorkgroupSize())
	assert.Equal(t, []string{"params"}, s.Includes())
	assert.Contains(t, s.Source(), "struct Params")

	b := s.Bindings()
	require.Len(t, b, 4)

	pos, ok := s.Binding("pos")
	require.True(t, ok)
	assert.Equal(t, gpu.BindingStorageBuffer, pos.Kind)
	assert.Equal(t, gpu.AccessReadOnly, pos.Access)
	assert.Equal(t, uint32(8), pos.ElemStride)
	assert.Equal(t, gpu.StageCompute, pos.Visibility)

	acc, ok := s.Binding("acc")
	require.True(t, ok)
	assert.Equal(t, gpu.AccessReadWrite, acc.Access)
	assert.Equal(t, uint32(1), acc.Binding)

	params, ok := s.Binding("params")
	require.True(t, ok)
	assert.Equal(t, gpu.BindingUniformBuffer, params.Kind)
	assert.Equal(t, uint32(24), params.Size)
	mouse, ok := params.Field("mouse")
	require.True(t, ok)
	assert.Equal(t, uint32(8), mouse.Offset)
	scale, ok := params.Field("scale")
	require.True(t, ok)
	assert.Equal(t, uint32(16), scale.Offset)

	field, ok := s.Binding("field")
	require.True(t, ok)
	assert.Equal(t, gpu.BindingStorageTexture, field.Kind)
	assert.Equal(t, gpu.FormatR32Uint, field.Format)
	assert.Equal(t, gpu.AccessReadWrite, field.Access)

	_, ok = s.Binding("ghost")
	assert.False(t, ok)
}

func TestNewShaderRenderStages(t *testing.T) {
	src := `@group(0) @binding(0) var tex: texture_2d<f32>;
@group(0) @binding(1) var samp: sampler;

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0);
}
`
	vs := NewShader("display.vs", ShaderTypeVertex, src)
	fs := NewShader("display.fs", ShaderTypeFragment, src)
	assert.Equal(t, "vs_main", vs.EntryPoint())
	assert.Equal(t, "fs_main", fs.EntryPoint())
	assert.Equal(t, [3]uint32{0, 0, 0}, vs.WorkgroupSize())

	tex, ok := fs.Binding("tex")
	require.True(t, ok)
	assert.Equal(t, gpu.BindingSampledTexture, tex.Kind)
	assert.Equal(t, gpu.StageFragment, tex.Visibility)
	samp, ok := fs.Binding("samp")
	require.True(t, ok)
	assert.Equal(t, gpu.BindingSampler, samp.Kind)
	assert.Equal(t, "fs_main", fs.Stage().EntryPoint)
}

func TestNewShaderFailuresAreCreationErrors(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"no entry point": "@group(0) @binding(0) var<storage, read> pos: array<f32>;",
		"unknown include": `//@oxy:include nope
@compute @workgroup_size(1) fn main() {}`,
		"bad format": `@group(0) @binding(0) var img: texture_storage_2d<bgra8unorm, write>;
@compute @workgroup_size(1) fn main() {}`,
		"uniform without struct": `@group(0) @binding(0) var<uniform> p: Missing;
@compute @workgroup_size(1) fn main() {}`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			err := gpu.Catch(func() { NewShader(name, ShaderTypeCompute, src) })
			require.Error(t, err)
			assert.True(t, errors.Is(err, gpu.ErrCreation), err.Error())
		})
	}
}

func TestNewShaderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("@compute @workgroup_size(8, 8) fn k() {}"), 0o644))
	s := NewShaderFromFile("k", ShaderTypeCompute, path)
	assert.Equal(t, [3]uint32{8, 8, 1}, s.WorkgroupSize())

	err := gpu.Catch(func() { NewShaderFromFile("k", ShaderTypeCompute, filepath.Join(t.TempDir(), "missing.wgsl")) })
	assert.True(t, errors.Is(err, gpu.ErrCreation))
}

func TestPreProcessorIncludesOnce(t *testing.T) {
	pp := NewPreProcessor(map[string]string{"a": "struct A { x: f32, }"})
	out, err := pp.Process("//@oxy:include a\n//@oxy:include a\nfn f() {}")
	require.NoError(t, err)
	assert.Equal(t, "struct A { x: f32, }\nfn f() {}", out)
	assert.Equal(t, []string{"a"}, pp.Includes())

	_, err = pp.Process("//@oxy:frobnicate a")
	assert.Error(t, err)
	_, err = pp.Process("//@oxy:include")
	assert.Error(t, err)
}

func TestStructLayoutRules(t *testing.T) {
	structs := parseStructBlocks(stripComments(`
struct Inner { a: vec3<f32>, b: f32, }
struct Outer { x: u32, inner: Inner, tail: array<vec2<f32>, 3>, }
`))
	layouts := computeStructSizes(structs)
	assert.Equal(t, wgslTypeLayout{16, 16}, layouts["Inner"])
	// x at 0, inner at 16 (size 16), tail at 32 (3 * 8)
	assert.Equal(t, wgslTypeLayout{64, 16}, layouts["Outer"])
}
