package software_backend

import (
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-gravity/common"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func doubleKernel() Kernel {
	return Kernel{Setup: func(io *KernelIO) func([3]uint32) {
		data := Storage[float32](io, "data")
		return func(gid [3]uint32) {
			if i := gid[0]; i < uint32(len(data)) {
				data[i] *= 2
			}
		}
	}}
}

func computeDesc(entry string, bindings ...gpu.BindingInfo) gpu.ProgramDesc {
	return gpu.ProgramDesc{
		Key:           entry,
		Compute:       &gpu.StageDesc{EntryPoint: entry},
		Bindings:      bindings,
		WorkgroupSize: [3]uint32{64, 1, 1},
	}
}

var dataBinding = gpu.BindingInfo{Name: "data", Binding: 0, Kind: gpu.BindingStorageBuffer, Access: gpu.AccessReadWrite, ElemStride: 4}

func newTestDevice(t *testing.T, opts ...DeviceBuilderOption) Device {
	t.Helper()
	opts = append([]DeviceBuilderOption{WithLogger(zaptest.NewLogger(t))}, opts...)
	d := NewDevice(opts...)
	t.Cleanup(d.Release)
	return d
}

func bindFloats(d Device, values []float32) (*gpu.BindingSet, gpu.Buffer) {
	buf := d.CreateBuffer("data", common.SliceToBytes(values), 0)
	set := gpu.NewBindingSet()
	set.SetBuffer(0, gpu.BufferBinding{Buffer: buf, ElemType: reflect.TypeFor[float32](), Stride: 4, Len: len(values)})
	return set, buf
}

func TestBufferLifecycle(t *testing.T) {
	d := newTestDevice(t)
	buf := d.CreateBuffer("b", []byte{1, 2, 3, 4}, 0)
	assert.Equal(t, uint64(4), buf.Size())
	assert.Equal(t, []byte{1, 2, 3, 4}, d.ReadBuffer(buf))

	err := gpu.Catch(func() { d.WriteBuffer(buf, 0, []byte{9}) })
	assert.True(t, errors.Is(err, gpu.ErrDevice))

	dyn := d.CreateBuffer("d", make([]byte, 4), gpu.BufferDynamic)
	d.WriteBuffer(dyn, 2, []byte{7, 8})
	assert.Equal(t, []byte{0, 0, 7, 8}, d.ReadBuffer(dyn))
	err = gpu.Catch(func() { d.WriteBuffer(dyn, 3, []byte{1, 1}) })
	assert.True(t, errors.Is(err, gpu.ErrSizeMismatch))

	buf.Release()
	err = gpu.Catch(func() { d.ReadBuffer(buf) })
	assert.True(t, errors.Is(err, gpu.ErrState))
}

func TestTextureRegions(t *testing.T) {
	d := newTestDevice(t)
	tex := d.CreateTexture(gpu.TextureDesc{Label: "t", Format: gpu.FormatR32Uint, Width: 4, Height: 2, Levels: 3})
	region := gpu.TextureRegion{Level: 0, X: 1, Y: 1, Width: 2, Height: 1}
	d.WriteTexture(tex, region, common.SliceToBytes([]uint32{5, 6}))

	got := common.BytesToSlice[uint32](d.ReadTexture(tex, 0))
	assert.Equal(t, []uint32{0, 0, 0, 0, 0, 5, 6, 0}, got)
	assert.Len(t, d.ReadTexture(tex, 2), 4)

	err := gpu.Catch(func() { d.WriteTexture(tex, region, make([]byte, 4)) })
	assert.True(t, errors.Is(err, gpu.ErrSizeMismatch))
	err = gpu.Catch(func() { d.WriteTexture(tex, gpu.TextureRegion{X: 3, Width: 2, Height: 1}, make([]byte, 8)) })
	assert.True(t, errors.Is(err, gpu.ErrDevice))
	err = gpu.Catch(func() {
		d.CreateTexture(gpu.TextureDesc{Format: gpu.FormatR32Uint, Width: 4, Height: 4, Levels: 4})
	})
	assert.True(t, errors.Is(err, gpu.ErrCreation))
}

func TestCreateProgramRequiresKernel(t *testing.T) {
	d := newTestDevice(t)
	_, err := d.CreateProgram(computeDesc("missing"))
	assert.ErrorContains(t, err, `no kernel registered for entry point "missing"`)
}

func TestDispatchParallelCoversGridOnce(t *testing.T) {
	const n = 10_000
	hits := make([]atomic.Int32, n)
	d := newTestDevice(t, WithWorkers(4), WithKernel("count", Kernel{Setup: func(io *KernelIO) func([3]uint32) {
		return func(gid [3]uint32) {
			if gid[0] < n {
				hits[gid[0]].Add(1)
			}
		}
	}}))
	p, err := d.CreateProgram(computeDesc("count"))
	require.NoError(t, err)

	d.Dispatch(p, gpu.NewBindingSet(), [3]uint32{common.CeilDiv(n, 64), 1, 1})
	for i := range hits {
		require.Equal(t, int32(1), hits[i].Load(), "invocation %d", i)
	}
}

func TestDispatchWritesStorage(t *testing.T) {
	for _, workers := range []int{1, 8} {
		d := newTestDevice(t, WithWorkers(workers), WithKernel("double", doubleKernel()))
		p, err := d.CreateProgram(computeDesc("double", dataBinding))
		require.NoError(t, err)

		in := make([]float32, 1000)
		for i := range in {
			in[i] = float32(i)
		}
		set, buf := bindFloats(d, in)
		d.Dispatch(p, set, [3]uint32{common.CeilDiv(1000, 64), 1, 1})

		out := common.BytesToSlice[float32](d.ReadBuffer(buf))
		for i := range out {
			assert.Equal(t, float32(2*i), out[i])
		}
	}
}

func TestDispatchTypeMismatch(t *testing.T) {
	d := newTestDevice(t, WithKernel("ints", Kernel{Setup: func(io *KernelIO) func([3]uint32) {
		_ = Storage[uint32](io, "data")
		return func([3]uint32) {}
	}}))
	p, err := d.CreateProgram(computeDesc("ints", dataBinding))
	require.NoError(t, err)
	set, _ := bindFloats(d, []float32{1})

	err = gpu.Catch(func() { d.Dispatch(p, set, [3]uint32{1, 1, 1}) })
	assert.True(t, errors.Is(err, gpu.ErrTypeMismatch))
}

func TestDispatchPanicPropagatesFromWorkers(t *testing.T) {
	d := newTestDevice(t, WithWorkers(4), WithKernel("boom", Kernel{Setup: func(io *KernelIO) func([3]uint32) {
		return func(gid [3]uint32) {
			if gid[0] == 777 {
				gpu.Fatalf("boom", gpu.ErrDevice, "invocation %d", gid[0])
			}
		}
	}}))
	p, err := d.CreateProgram(computeDesc("boom"))
	require.NoError(t, err)

	err = gpu.Catch(func() { d.Dispatch(p, gpu.NewBindingSet(), [3]uint32{32, 1, 1}) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invocation 777")
}

func TestImageAccessRules(t *testing.T) {
	img := gpu.BindingInfo{Name: "img", Binding: 0, Kind: gpu.BindingStorageTexture, Format: gpu.FormatR32Uint, Access: gpu.AccessReadWrite}
	d := newTestDevice(t, WithKernel("inc", Kernel{Serial: true, Setup: func(io *KernelIO) func([3]uint32) {
		im := io.Image("img")
		return func(gid [3]uint32) {
			im.StoreU32(gid[0], gid[1], im.LoadU32(gid[0], gid[1])+gid[0])
		}
	}}))
	p, err := d.CreateProgram(computeDesc("inc", img))
	require.NoError(t, err)
	tex := d.CreateTexture(gpu.TextureDesc{Format: gpu.FormatR32Uint, Width: 4, Height: 1, Levels: 1})

	set := gpu.NewBindingSet()
	set.SetImage(0, gpu.ImageBinding{Texture: tex, Access: gpu.AccessReadWrite})
	d.Dispatch(p, set, [3]uint32{1, 1, 1})
	d.Dispatch(p, set, [3]uint32{1, 1, 1})
	assert.Equal(t, []uint32{0, 2, 4, 6}, common.BytesToSlice[uint32](d.ReadTexture(tex, 0)))

	set.SetImage(0, gpu.ImageBinding{Texture: tex, Access: gpu.AccessWriteOnly})
	err = gpu.Catch(func() { d.Dispatch(p, set, [3]uint32{1, 1, 1}) })
	assert.True(t, errors.Is(err, gpu.ErrDevice))

	other := d.CreateTexture(gpu.TextureDesc{Format: gpu.FormatRGBA8Unorm, Width: 4, Height: 1, Levels: 1})
	set.SetImage(0, gpu.ImageBinding{Texture: other, Access: gpu.AccessReadWrite})
	err = gpu.Catch(func() { d.Dispatch(p, set, [3]uint32{1, 1, 1}) })
	assert.True(t, errors.Is(err, gpu.ErrTypeMismatch))
}

func TestDrawSamplesIntoFramebuffer(t *testing.T) {
	tex := gpu.BindingInfo{Name: "tex", Binding: 0, Kind: gpu.BindingSampledTexture}
	samp := gpu.BindingInfo{Name: "samp", Binding: 1, Kind: gpu.BindingSampler}
	d := newTestDevice(t, WithFramebuffer(4, 2), WithKernel("fs_main", Kernel{Setup: func(io *KernelIO) func([3]uint32) {
		s := io.Sampled("tex")
		target := io.Target()
		return func(gid [3]uint32) {
			u := (float32(gid[0]) + 0.5) / float32(target.Width)
			v := (float32(gid[1]) + 0.5) / float32(target.Height)
			target.StoreUnorm(gid[0], gid[1], s.Sample(u, v))
		}
	}}))
	p, err := d.CreateProgram(gpu.ProgramDesc{
		Key:      "display",
		Vertex:   &gpu.StageDesc{EntryPoint: "vs_main"},
		Fragment: &gpu.StageDesc{EntryPoint: "fs_main"},
		Bindings: []gpu.BindingInfo{tex, samp},
	})
	require.NoError(t, err)

	src := d.CreateTexture(gpu.TextureDesc{Format: gpu.FormatRGBA8Unorm, Width: 2, Height: 1, Levels: 1})
	d.WriteTexture(src, gpu.TextureRegion{Width: 2, Height: 1}, []byte{255, 0, 0, 255, 0, 0, 255, 255})
	set := gpu.NewBindingSet()
	set.SetSampled(0, gpu.SampledBinding{Texture: src, Filter: gpu.FilterNearest})
	d.Draw(p, set, 4)

	fb := d.Framebuffer()
	assert.Equal(t, []uint8{255, 0, 0, 255}, fb.Pix[0:4])
	assert.Equal(t, []uint8{0, 0, 255, 255}, fb.Pix[12:16])

	set.SetSampled(0, gpu.SampledBinding{Texture: src, Filter: gpu.FilterLinear})
	d.Draw(p, set, 4)
	// pixel 1 samples u=0.375, a quarter of the way between the two texel centres
	assert.Equal(t, []uint8{191, 0, 64, 255}, fb.Pix[4:8])
}

func TestReleasedDeviceRejectsCalls(t *testing.T) {
	d := NewDevice()
	d.Release()
	d.Release()
	err := gpu.Catch(func() { d.CreateBuffer("x", nil, 0) })
	assert.True(t, errors.Is(err, gpu.ErrState))
}
