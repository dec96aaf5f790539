package engine

import (
	"github.com/Carmen-Shannon/oxy-gravity/common"
	"github.com/Carmen-Shannon/oxy-gravity/engine/window"
)

// Pointer strengths and zoom factors applied by the input handlers.
const (
	MaxPower = 0.2
	MinPower = 0.05

	wheelZoomIn  = 1.05
	wheelZoomOut = 0.95
	keyZoomIn    = 2
	keyZoomOut   = 0.5
)

// Controls is the part of the simulation the input handlers drive.
// *simulation.Pipeline satisfies it.
type Controls interface {
	SetPointer(x, y float32)
	SetPower(power float32)
	Zoom(factor float32)
	Scale() float32
	FieldSize() (uint32, uint32)
}

// input tracks the pointer and key state between window events and turns it into simulation
// changes. It only runs on the window thread.
type input struct {
	controls  Controls
	homeScale float32

	left, right bool
	inside      bool
	paused      bool

	quit func()
}

func newInput(c Controls, quit func()) *input {
	return &input{controls: c, homeScale: c.Scale(), quit: quit}
}

// power is the disturbance strength for the current button and hover state.
// A held left button wins over a held right button.
func (in *input) power() float32 {
	switch {
	case in.left:
		return MaxPower
	case in.right:
		return -MaxPower
	case in.inside:
		return MinPower
	default:
		return 0
	}
}

func (in *input) applyPower() {
	in.controls.SetPower(in.power())
}

func (in *input) scroll(delta float32) {
	switch {
	case delta > 0:
		in.controls.Zoom(wheelZoomIn)
	case delta < 0:
		in.controls.Zoom(wheelZoomOut)
	}
}

func (in *input) keyDown(key uint32) {
	switch key {
	case common.KeyEqual, common.KeyKPAdd:
		in.controls.Zoom(keyZoomIn)
	case common.KeyMinus, common.KeyKPSubtract:
		in.controls.Zoom(keyZoomOut)
	case common.KeyR:
		if s := in.controls.Scale(); s > 0 {
			in.controls.Zoom(in.homeScale / s)
		}
	case common.KeySpace:
		in.paused = !in.paused
	case common.KeyEsc:
		if in.quit != nil {
			in.quit()
		}
	}
}

func (in *input) mouseButton(button window.MouseButton, pressed bool) {
	switch button {
	case window.MouseButtonLeft:
		in.left = pressed
	case window.MouseButtonRight:
		in.right = pressed
	default:
		return
	}
	in.applyPower()
}

func (in *input) cursorEnter(entered bool) {
	in.inside = entered
	if !entered {
		in.left, in.right = false, false
	}
	in.applyPower()
}

// mouseMove maps a window pixel onto the density field, which is stretched over the whole client area.
func (in *input) mouseMove(x, y int32, winWidth, winHeight int) {
	if winWidth <= 0 || winHeight <= 0 {
		return
	}
	fw, fh := in.controls.FieldSize()
	in.controls.SetPointer(
		float32(x)*float32(fw)/float32(winWidth),
		float32(y)*float32(fh)/float32(winHeight),
	)
}
