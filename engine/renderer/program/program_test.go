package program

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-gravity/common"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu/software_backend"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const scaleSource = `struct Params {
    count: u32,
    scale: f32,
    offset: vec2<f32>,
}
@group(0) @binding(0) var<storage, read_write> data: array<f32>;
@group(0) @binding(1) var<uniform> params: Params;

@compute @workgroup_size(64)
fn scale(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x < params.count) {
        data[id.x] = data[id.x] * params.scale;
    }
}
`

const displaySource = `@group(0) @binding(0) var tex: texture_2d<f32>;
@group(0) @binding(1) var samp: sampler;

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return textureSample(tex, samp, vec2<f32>(0.0));
}
`

func scaleKernel() software_backend.Kernel {
	return software_backend.Kernel{Setup: func(io *software_backend.KernelIO) func([3]uint32) {
		data := software_backend.Storage[float32](io, "data")
		params := io.Uniform("params")
		count, s := params.U32("count"), params.F32("scale")
		return func(gid [3]uint32) {
			if gid[0] < count {
				data[gid[0]] *= s
			}
		}
	}}
}

func copyKernel() software_backend.Kernel {
	return software_backend.Kernel{Setup: func(io *software_backend.KernelIO) func([3]uint32) {
		s := io.Sampled("tex")
		target := io.Target()
		return func(gid [3]uint32) {
			target.StoreUnorm(gid[0], gid[1], s.Sample(0, 0))
		}
	}}
}

func newDevice(t *testing.T) software_backend.Device {
	t.Helper()
	d := software_backend.NewDevice(
		software_backend.WithLogger(zaptest.NewLogger(t)),
		software_backend.WithWorkers(4),
		software_backend.WithFramebuffer(2, 2),
		software_backend.WithKernel("scale", scaleKernel()),
		software_backend.WithKernel("fs_main", copyKernel()),
	)
	t.Cleanup(d.Release)
	return d
}

func newScaleProgram(t *testing.T, dev gpu.Device) Program {
	t.Helper()
	p := New(dev, "scale",
		WithComputeShader(shader.NewShader("scale", shader.ShaderTypeCompute, scaleSource)),
		WithLogger(zaptest.NewLogger(t)),
	)
	t.Cleanup(p.Release)
	return p
}

func TestDispatchAndSync(t *testing.T) {
	dev := newDevice(t)
	p := newScaleProgram(t, dev)
	assert.Equal(t, ProgramTypeCompute, p.Type())
	assert.Equal(t, [3]uint32{64, 1, 1}, p.WorkgroupSize())

	values := make([]float32, 1000)
	for i := range values {
		values[i] = float32(i)
	}
	data := buffer.NewWithData(dev, "data", values, 0)
	defer data.Release()

	set := gpu.NewBindingSet()
	idx := p.StorageBlockIndex("data")
	assert.Equal(t, uint32(0), idx)
	p.BindStorageBuffer(set, data, idx, idx)
	p.SetUniformU32("count", uint32(len(values)))
	p.SetUniformF32("params.scale", 3)

	groups := p.WorkgroupsFor(uint32(len(values)))
	assert.Equal(t, [3]uint32{16, 1, 1}, groups)
	p.DispatchAndSync(set, groups)

	got := data.ReadAll()
	for i, v := range got {
		require.Equal(t, float32(i)*3, v, "element %d", i)
	}

	_, hasUniform := set.Buffer(1)
	assert.False(t, hasUniform, "caller binding set must not be modified")
}

func TestBindingTableResolvedOnce(t *testing.T) {
	dev := newDevice(t)
	p := newScaleProgram(t, dev)
	table := p.Table()
	assert.Same(t, table, p.Table())
	require.Equal(t, 2, table.Len())

	params, ok := table.Lookup("params")
	require.True(t, ok)
	assert.Equal(t, gpu.BindingUniformBuffer, params.Kind)
	at, ok := table.At(0)
	require.True(t, ok)
	assert.Equal(t, "data", at.Name)

	for range 3 {
		assert.Equal(t, uint32(0), p.StorageBlockIndex("data"))
	}
	err := gpu.Catch(func() { p.StorageBlockIndex("params") })
	assert.True(t, errors.Is(err, gpu.ErrState))
	err = gpu.Catch(func() { p.StorageBlockIndex("missing") })
	assert.True(t, errors.Is(err, gpu.ErrState))
}

func TestBindStorageBufferChecks(t *testing.T) {
	dev := newDevice(t)
	p := newScaleProgram(t, dev)
	set := gpu.NewBindingSet()

	floats := buffer.NewWithData(dev, "f", []float32{1}, 0)
	defer floats.Release()
	err := gpu.Catch(func() { p.BindStorageBuffer(set, floats, 0, 1) })
	assert.True(t, errors.Is(err, gpu.ErrState))

	vecs := buffer.NewWithData(dev, "v", []common.Vec2{{X: 1}}, 0)
	defer vecs.Release()
	err = gpu.Catch(func() { p.BindStorageBuffer(set, vecs, 0, 0) })
	assert.True(t, errors.Is(err, gpu.ErrTypeMismatch))

	err = gpu.Catch(func() { p.BindStorageBuffer(set, floats, 1, 1) })
	assert.True(t, errors.Is(err, gpu.ErrState))
}

func TestDispatchValidatesBindings(t *testing.T) {
	dev := newDevice(t)
	p := newScaleProgram(t, dev)

	err := gpu.Catch(func() { p.DispatchAndSync(gpu.NewBindingSet(), [3]uint32{1, 1, 1}) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrState))
	assert.Contains(t, err.Error(), `"data"`)

	err = gpu.Catch(func() { p.Draw(gpu.NewBindingSet(), 4) })
	assert.True(t, errors.Is(err, gpu.ErrState))
}

func TestSetUniformChecksTypes(t *testing.T) {
	dev := newDevice(t)
	p := newScaleProgram(t, dev)

	p.SetUniformVec2("offset", common.Vec2{X: 1, Y: 2})
	cases := map[string]func(){
		"f32 as u32":     func() { p.SetUniformU32("scale", 1) },
		"u32 as i32":     func() { p.SetUniformI32("count", 1) },
		"vec2 as f32":    func() { p.SetUniformF32("offset", 1) },
		"f32 as ivec2":   func() { p.SetUniformIVec2("scale", common.IVec2{}) },
		"vec2f as vec2i": func() { p.SetUniformIVec2("offset", common.IVec2{}) },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.Is(gpu.Catch(fn), gpu.ErrTypeMismatch))
		})
	}
	assert.True(t, errors.Is(gpu.Catch(func() { p.SetUniformF32("nope", 1) }), gpu.ErrState))
}

func TestRenderProgramMergesStageVisibility(t *testing.T) {
	dev := newDevice(t)
	p := New(dev, "display",
		WithVertexShader(shader.NewShader("display.vs", shader.ShaderTypeVertex, displaySource)),
		WithFragmentShader(shader.NewShader("display.fs", shader.ShaderTypeFragment, displaySource)),
	)
	defer p.Release()
	assert.Equal(t, ProgramTypeRender, p.Type())

	tex, ok := p.Table().Lookup("tex")
	require.True(t, ok)
	assert.Equal(t, gpu.StageVertex|gpu.StageFragment, tex.Visibility)

	src := texture.New2D(dev, "src", gpu.FormatRGBA8Unorm, 1, 1)
	defer src.Release()
	src.SubImage(0, 0, 0, 1, 1, gpu.FormatRGBA8Unorm, []byte{10, 20, 30, 255})
	set := gpu.NewBindingSet()
	src.BindAsSampler(set, 0)
	p.Draw(set, 4)
	assert.Equal(t, []uint8{10, 20, 30, 255}, dev.Framebuffer().Pix[0:4])

	err := gpu.Catch(func() { p.DispatchAndSync(set, [3]uint32{1, 1, 1}) })
	assert.True(t, errors.Is(err, gpu.ErrState))
}

func TestLinkRejectsCollisions(t *testing.T) {
	dev := newDevice(t)
	vs := shader.NewShader("vs", shader.ShaderTypeVertex, `@group(0) @binding(0) var tex: texture_2d<f32>;
@vertex fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }`)
	fs := shader.NewShader("fs", shader.ShaderTypeFragment, `@group(0) @binding(0) var<storage, read> other: array<f32>;
@fragment fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }`)
	grouped := shader.NewShader("g", shader.ShaderTypeCompute, `@group(1) @binding(0) var<storage, read_write> data: array<f32>;
@compute @workgroup_size(64) fn scale() {}`)
	same := shader.NewShader("s", shader.ShaderTypeCompute, `@group(0) @binding(0) var<storage, read_write> data: array<f32>;
@group(0) @binding(0) var<storage, read_write> more: array<f32>;
@compute @workgroup_size(64) fn scale() {}`)

	cases := map[string][]ProgramBuilderOption{
		"cross stage":    {WithVertexShader(vs), WithFragmentShader(fs)},
		"group 1":        {WithComputeShader(grouped)},
		"same stage":     {WithComputeShader(same)},
		"no stages":      nil,
		"wrong stage":    {WithComputeShader(vs)},
		"missing kernel": {WithComputeShader(shader.NewShader("k", shader.ShaderTypeCompute, "@compute @workgroup_size(1) fn unknown() {}"))},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			err := gpu.Catch(func() { New(dev, name, opts...) })
			require.Error(t, err)
			assert.True(t, errors.Is(err, gpu.ErrCreation), err.Error())
		})
	}
}

func TestImageAccessValidation(t *testing.T) {
	dev := software_backend.NewDevice(software_backend.WithKernel("fill", software_backend.Kernel{
		Setup: func(io *software_backend.KernelIO) func([3]uint32) {
			img := io.Image("img")
			return func(gid [3]uint32) { img.StoreU32(gid[0], gid[1], 7) }
		},
	}))
	defer dev.Release()
	p := New(dev, "fill", WithComputeShader(shader.NewShader("fill", shader.ShaderTypeCompute,
		`@group(0) @binding(0) var img: texture_storage_2d<r32uint, write>;
@compute @workgroup_size(8, 8) fn fill() {}`)))
	defer p.Release()

	tex := texture.New2D(dev, "img", gpu.FormatR32Uint, 10, 3)
	defer tex.Release()
	set := gpu.NewBindingSet()

	tex.BindAsImage(set, 0, gpu.AccessReadOnly)
	err := gpu.Catch(func() { p.DispatchAndSync(set, p.WorkgroupsFor2D(10, 3)) })
	assert.True(t, errors.Is(err, gpu.ErrState))

	tex.BindAsImage(set, 0, gpu.AccessWriteOnly)
	groups := p.WorkgroupsFor2D(10, 3)
	assert.Equal(t, [3]uint32{2, 1, 1}, groups)
	p.DispatchAndSync(set, groups)
	for _, v := range common.BytesToSlice[uint32](tex.Read(0)) {
		require.Equal(t, uint32(7), v)
	}

	wrong := texture.New2D(dev, "wrong", gpu.FormatR32Float, 10, 3)
	defer wrong.Release()
	wrong.BindAsImage(set, 0, gpu.AccessReadWrite)
	err = gpu.Catch(func() { p.DispatchAndSync(set, groups) })
	assert.True(t, errors.Is(err, gpu.ErrTypeMismatch))
}

func TestReleaseExactlyOnce(t *testing.T) {
	dev := newDevice(t)
	p := New(dev, "scale", WithComputeShader(shader.NewShader("scale", shader.ShaderTypeCompute, scaleSource)))
	p.Release()
	p.Release()
	err := gpu.Catch(func() { p.DispatchAndSync(gpu.NewBindingSet(), [3]uint32{1, 1, 1}) })
	assert.True(t, errors.Is(err, gpu.ErrState))
	err = gpu.Catch(func() { p.SetUniformF32("scale", 1) })
	assert.True(t, errors.Is(err, gpu.ErrState))
}
