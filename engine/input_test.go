package engine

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gravity/common"
	"github.com/Carmen-Shannon/oxy-gravity/engine/window"
	"github.com/stretchr/testify/assert"
)

type fakeControls struct {
	scale              float32
	power              float32
	pointerX, pointerY float32
	zooms              []float32
	fieldW, fieldH     uint32
}

func (c *fakeControls) SetPointer(x, y float32) { c.pointerX, c.pointerY = x, y }
func (c *fakeControls) SetPower(power float32)  { c.power = power }
func (c *fakeControls) Scale() float32          { return c.scale }
func (c *fakeControls) FieldSize() (uint32, uint32) {
	return c.fieldW, c.fieldH
}
func (c *fakeControls) Zoom(factor float32) {
	c.zooms = append(c.zooms, factor)
	c.scale *= factor
}

func newTestInput() (*input, *fakeControls, *int) {
	c := &fakeControls{scale: 100, fieldW: 400, fieldH: 300}
	quits := 0
	return newInput(c, func() { quits++ }), c, &quits
}

func TestInputPower(t *testing.T) {
	cases := []struct {
		name   string
		events func(in *input)
		want   float32
	}{
		{"idle", func(in *input) { in.applyPower() }, 0},
		{"hover", func(in *input) { in.cursorEnter(true) }, MinPower},
		{"push", func(in *input) {
			in.cursorEnter(true)
			in.mouseButton(window.MouseButtonLeft, true)
		}, MaxPower},
		{"pull", func(in *input) {
			in.cursorEnter(true)
			in.mouseButton(window.MouseButtonRight, true)
		}, -MaxPower},
		{"left wins", func(in *input) {
			in.mouseButton(window.MouseButtonRight, true)
			in.mouseButton(window.MouseButtonLeft, true)
		}, MaxPower},
		{"release back to hover", func(in *input) {
			in.cursorEnter(true)
			in.mouseButton(window.MouseButtonLeft, true)
			in.mouseButton(window.MouseButtonLeft, false)
		}, MinPower},
		{"leave clears buttons", func(in *input) {
			in.cursorEnter(true)
			in.mouseButton(window.MouseButtonLeft, true)
			in.cursorEnter(false)
		}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, c, _ := newTestInput()
			tc.events(in)
			assert.InDelta(t, tc.want, c.power, 1e-6)
		})
	}
}

func TestInputMiddleButtonIgnored(t *testing.T) {
	in, c, _ := newTestInput()
	c.power = 7
	in.mouseButton(window.MouseButtonMiddle, true)
	assert.Equal(t, float32(7), c.power)
}

func TestInputZoom(t *testing.T) {
	in, c, _ := newTestInput()

	in.scroll(1)
	in.scroll(-2)
	in.scroll(0)
	in.keyDown(common.KeyEqual)
	in.keyDown(common.KeyKPAdd)
	in.keyDown(common.KeyMinus)
	in.keyDown(common.KeyKPSubtract)
	assert.Equal(t, []float32{1.05, 0.95, 2, 2, 0.5, 0.5}, c.zooms)

	in.keyDown(common.KeyR)
	assert.InDelta(t, 100, c.scale, 1e-3)
}

func TestInputKeys(t *testing.T) {
	in, _, quits := newTestInput()

	in.keyDown(common.KeySpace)
	assert.True(t, in.paused)
	in.keyDown(common.KeySpace)
	assert.False(t, in.paused)

	in.keyDown(common.KeyEsc)
	assert.Equal(t, 1, *quits)
}

func TestInputPointerMapping(t *testing.T) {
	in, c, _ := newTestInput()

	in.mouseMove(400, 150, 800, 600)
	assert.InDelta(t, 200, c.pointerX, 1e-6)
	assert.InDelta(t, 75, c.pointerY, 1e-6)

	in.mouseMove(10, 10, 0, 600)
	assert.InDelta(t, 200, c.pointerX, 1e-6, "degenerate window is ignored")
}
