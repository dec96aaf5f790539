package texture

import (
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-gravity/common"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu/software_backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice(t *testing.T) gpu.Device {
	t.Helper()
	d := software_backend.NewDevice()
	t.Cleanup(d.Release)
	return d
}

func TestNew2DAllocatesMipChain(t *testing.T) {
	dev := newDevice(t)
	tex := New2D(dev, "field", gpu.FormatR32Uint, 1024, 512)
	assert.Equal(t, uint32(11), tex.Levels())
	assert.Len(t, tex.Read(0), 1024*512*4)
	assert.Len(t, tex.Read(10), 4)
	assert.Equal(t, gpu.FilterNearest, tex.Filter())

	err := gpu.Catch(func() { New2D(dev, "bad", gpu.FormatUndefined, 4, 4) })
	assert.True(t, errors.Is(err, gpu.ErrCreation))
	err = gpu.Catch(func() { New2D(dev, "bad", gpu.FormatR32Float, 0, 4) })
	assert.True(t, errors.Is(err, gpu.ErrCreation))
}

func TestSubImage(t *testing.T) {
	dev := newDevice(t)
	tex := New2D(dev, "rg", gpu.FormatRG32Float, 4, 4)
	data := common.SliceToBytes([]common.Vec2{{X: 1, Y: 2}, {X: 3, Y: 4}})
	tex.SubImage(0, 2, 3, 2, 1, gpu.FormatRG32Float, data)

	level := common.BytesToSlice[common.Vec2](tex.Read(0))
	assert.Equal(t, common.Vec2{X: 1, Y: 2}, level[3*4+2])
	assert.Equal(t, common.Vec2{X: 3, Y: 4}, level[3*4+3])
	assert.Equal(t, common.Vec2{}, level[0])

	tex.SubImage(2, 0, 0, 1, 1, gpu.FormatRG32Float, make([]byte, 8))
}

func TestSubImageRejectsMismatches(t *testing.T) {
	dev := newDevice(t)
	tex := New2D(dev, "rgba", gpu.FormatRGBA8Uint, 8, 8)
	cases := map[string]struct {
		level, x, y, w, h uint32
		format            gpu.Format
		n                 int
		kind              error
	}{
		"short data":     {0, 0, 0, 2, 2, gpu.FormatRGBA8Uint, 15, gpu.ErrSizeMismatch},
		"long data":      {0, 0, 0, 2, 2, gpu.FormatRGBA8Uint, 17, gpu.ErrSizeMismatch},
		"out of bounds":  {0, 7, 0, 2, 1, gpu.FormatRGBA8Uint, 8, gpu.ErrSizeMismatch},
		"level extent":   {3, 0, 0, 2, 1, gpu.FormatRGBA8Uint, 8, gpu.ErrSizeMismatch},
		"wrapping x":     {0, math.MaxUint32, 0, 2, 1, gpu.FormatRGBA8Uint, 8, gpu.ErrSizeMismatch},
		"wrapping y":     {0, 0, math.MaxUint32 - 1, 1, 3, gpu.FormatRGBA8Uint, 12, gpu.ErrSizeMismatch},
		"missing level":  {4, 0, 0, 1, 1, gpu.FormatRGBA8Uint, 4, gpu.ErrSizeMismatch},
		"format differs": {0, 0, 0, 1, 1, gpu.FormatR32Uint, 4, gpu.ErrTypeMismatch},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			err := gpu.Catch(func() { tex.SubImage(c.level, c.x, c.y, c.w, c.h, c.format, make([]byte, c.n)) })
			require.Error(t, err)
			assert.True(t, errors.Is(err, c.kind), err.Error())
		})
	}
}

func TestBindings(t *testing.T) {
	dev := newDevice(t)
	tex := New2D(dev, "color", gpu.FormatRGBA8Unorm, 2, 2)
	set := gpu.NewBindingSet()

	tex.BindAsImage(set, 4, gpu.AccessWriteOnly)
	ib, ok := set.Image(4)
	require.True(t, ok)
	assert.Equal(t, gpu.AccessWriteOnly, ib.Access)
	assert.Equal(t, tex.Raw(), ib.Texture)

	tex.FilterLinear().BindAsSampler(set, 0)
	sb, ok := set.Sampled(0)
	require.True(t, ok)
	assert.Equal(t, gpu.FilterLinear, sb.Filter)

	tex.FilterNearest().BindAsSampler(set, 0)
	sb, _ = set.Sampled(0)
	assert.Equal(t, gpu.FilterNearest, sb.Filter)
}

func TestReleaseExactlyOnce(t *testing.T) {
	dev := newDevice(t)
	tex := New2D(dev, "r", gpu.FormatR32Float, 2, 2)
	tex.Release()
	tex.Release()
	assert.True(t, tex.Released())
	err := gpu.Catch(func() { tex.Read(0) })
	assert.True(t, errors.Is(err, gpu.ErrState))
	err = gpu.Catch(func() { tex.BindAsImage(gpu.NewBindingSet(), 0, gpu.AccessReadOnly) })
	assert.True(t, errors.Is(err, gpu.ErrState))
}
