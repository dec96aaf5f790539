package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwWindow holds the GLFW-specific window state.
type glfwWindow struct {
	parent  *engineWindow
	window  *glfw.Window
	running bool
}

// newPlatformWindow opens the GLFW window without a client API and stores it as the internal window.
// The calling goroutine stays locked to its OS thread, since GLFW must be driven from one thread.
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("init glfw: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfwBool(w.resizable))

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("create glfw window: %w", err)
	}

	win.SetSizeLimits(sizeLimit(w.minWidth), sizeLimit(w.minHeight), sizeLimit(w.maxWidth), sizeLimit(w.maxHeight))

	gw := &glfwWindow{parent: w, window: win, running: true}
	w.internalWindow = gw

	gw.installCallbacks()

	w.width, w.height = win.GetFramebufferSize()

	return nil
}

// glfwButtons maps the GLFW buttons the window reports. Others are dropped.
var glfwButtons = map[glfw.MouseButton]MouseButton{
	glfw.MouseButtonLeft:   MouseButtonLeft,
	glfw.MouseButtonRight:  MouseButtonRight,
	glfw.MouseButtonMiddle: MouseButtonMiddle,
}

// installCallbacks forwards GLFW events to the parent's callbacks. Framebuffer size is used for
// resizes so the surface is configured in pixels on high-DPI displays.
func (gw *glfwWindow) installCallbacks() {
	cb := &gw.parent.callbacks
	win := gw.window

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		switch {
		case action == glfw.Release && cb.onKeyUp != nil:
			cb.onKeyUp(uint32(key))
		case action != glfw.Release && cb.onKeyDown != nil:
			cb.onKeyDown(uint32(key))
		}
	})
	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		if cb.onScroll != nil {
			cb.onScroll(float32(yoff))
		}
	})
	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		b, ok := glfwButtons[button]
		if !ok || action == glfw.Repeat || cb.onMouseButton == nil {
			return
		}
		cb.onMouseButton(b, action == glfw.Press)
	})
	win.SetCursorEnterCallback(func(_ *glfw.Window, entered bool) {
		if cb.onCursorEnter != nil {
			cb.onCursorEnter(entered)
		}
	})
	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if cb.onMouseMove != nil {
			cb.onMouseMove(int32(x), int32(y))
		}
	})
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		gw.parent.width, gw.parent.height = width, height
		if cb.onResize != nil {
			cb.onResize(width, height)
		}
	})
}

// sizeLimit maps an unset limit to glfw.DontCare.
func sizeLimit(v int) int {
	if v <= 0 {
		return glfw.DontCare
	}
	return v
}

func glfwBool(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}

// platformGetSurfaceDescriptor asks the wgpuglfw bridge for the surface descriptor of the open window.
func platformGetSurfaceDescriptor(w *engineWindow) *wgpu.SurfaceDescriptor {
	if w.internalWindow == nil {
		return nil
	}
	gw := w.internalWindow.(*glfwWindow)
	return wgpuglfw.GetSurfaceDescriptor(gw.window)
}

// platformSetTitle updates the GLFW window title.
func platformSetTitle(w *engineWindow, title string) {
	if w.internalWindow == nil {
		return
	}
	w.internalWindow.(*glfwWindow).window.SetTitle(title)
}

// platformIsRunningCheck is false once the window is closed, a close was requested, or GLFW
// reports ShouldClose.
func platformIsRunningCheck(w *engineWindow) bool {
	if w.internalWindow == nil {
		return false
	}
	gw := w.internalWindow.(*glfwWindow)
	return gw.running && !gw.window.ShouldClose()
}

// platformRequestClose clears the running flag and marks the GLFW window for closing.
func platformRequestClose(w *engineWindow) {
	if w.internalWindow == nil {
		return
	}
	gw := w.internalWindow.(*glfwWindow)
	gw.running = false
	gw.window.SetShouldClose(true)
}

// platformCloseWindow destroys the window and terminates GLFW. A second call reports an error.
func platformCloseWindow(w *engineWindow) error {
	if w.internalWindow == nil {
		return errors.New("window is not open")
	}
	platformRequestClose(w)
	w.internalWindow.(*glfwWindow).window.Destroy()
	w.internalWindow = nil
	glfw.Terminate()
	return nil
}

// platformProcessMessages dispatches pending events without blocking.
func platformProcessMessages(w *engineWindow) bool {
	glfw.PollEvents()
	return platformIsRunningCheck(w)
}
