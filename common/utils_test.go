package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, uint32(0), CeilDiv(0, 64))
	assert.Equal(t, uint32(1), CeilDiv(1, 64))
	assert.Equal(t, uint32(1), CeilDiv(64, 64))
	assert.Equal(t, uint32(2), CeilDiv(65, 64))
	assert.Panics(t, func() { CeilDiv(1, 0) })
}

func TestMipLevelCount(t *testing.T) {
	cases := []struct {
		w, h, want uint32
	}{
		{1, 1, 1},
		{2, 1, 2},
		{1024, 512, 11},
		{1000, 3, 10},
		{0, 0, 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MipLevelCount(c.w, c.h), "%dx%d", c.w, c.h)
	}
	w, h := MipExtent(1024, 512, 10)
	assert.Equal(t, uint32(1), w)
	assert.Equal(t, uint32(1), h)
}

func TestBytesRoundTrip(t *testing.T) {
	in := []Vec2{{1, 2}, {-3, 4.5}}
	raw := SliceToBytes(in)
	assert.Len(t, raw, 16)
	out := BytesToSlice[Vec2](raw)
	assert.Equal(t, in, out)
	assert.Nil(t, BytesToSlice[Vec2](nil))
	assert.Panics(t, func() { BytesToSlice[Vec2](make([]byte, 5)) })
}

func TestVec2(t *testing.T) {
	a := Vec2{3, 4}
	assert.Equal(t, float32(5), a.Length())
	assert.Equal(t, Vec2{4, 6}, a.Add(Vec2{1, 2}))
	assert.Equal(t, Vec2{2, 2}, a.Sub(Vec2{1, 2}))
	assert.Equal(t, Vec2{-3, -4}, a.Neg())
	assert.Equal(t, Vec2{6, 8}, a.Scale(2))
	assert.True(t, a.IsFinite())
}
