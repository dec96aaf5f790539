// Package renderer owns the device and presents the simulation's colour texture on screen. The
// device is selected by backend type; everything above this package only sees gpu.Device.
package renderer

import (
	"fmt"
	"image"
	"sync"

	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer/texture"
	"github.com/Carmen-Shannon/oxy-gravity/engine/simulation/shaders"
	"github.com/Carmen-Shannon/oxy-gravity/engine/window"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// quadVertices is the vertex count of the fullscreen triangle strip.
const quadVertices = 4

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	device      gpu.Device
	display     program.Program
	window      window.Window
	logger      *zap.Logger

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	presentMode          PresentMode
	width, height        int
	workers              int
	linear               bool

	releaseOnce sync.Once
}

// Renderer defines the interface for the presentation system.
//
// The Renderer creates the device every other resource is allocated on and owns the display program,
// which samples a colour texture across the whole framebuffer.
type Renderer interface {
	// Device returns the device created for the selected backend.
	//
	// Returns:
	//   - gpu.Device: the device
	Device() gpu.Device

	// BackendType returns the backend the renderer was created with.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	BackendType() RendererBackendType

	// Draw renders the colour texture into the current frame.
	//
	// Parameters:
	//   - color: an RGBA8Unorm texture
	Draw(color *texture.Texture)

	// Present shows the current frame.
	Present()

	// Resize configures the underlying device to handle a new framebuffer size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// Size returns the current framebuffer size.
	//
	// Returns:
	//   - int: the width in pixels
	//   - int: the height in pixels
	Size() (int, int)

	// Snapshot reads the colour texture back and scales it to the given size.
	//
	// Parameters:
	//   - color: an RGBA8Unorm texture
	//   - width: the width of the returned image, or 0 to keep the texture width
	//   - height: the height of the returned image, or 0 to keep the texture height
	//
	// Returns:
	//   - *image.RGBA: the scaled image
	Snapshot(color *texture.Texture, width, height int) *image.RGBA

	// Release frees the display program and the device. Calling it more than once is a no-op.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer is the entry point to create a new Renderer. When win is nil the renderer runs headless:
// draws on a WebGPU device are skipped and the software device rasterizes into an off-screen
// framebuffer.
//
// Parameters:
//   - backendType: the device implementation to use
//   - win: the window to present into, or nil
//   - options: a variadic list of RendererBuilderOption functions to configure the renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if the device could not be created
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
		window:      win,
		logger:      zap.NewNop(),
		presentMode: PresentModeVSync,
		width:       1,
		height:      1,
	}
	if win != nil {
		r.width, r.height = win.Width(), win.Height()
	}
	for _, opt := range options {
		opt(r)
	}

	dev, err := r.newDevice()
	if err != nil {
		return nil, fmt.Errorf("create %s device: %w", backendType, err)
	}
	r.device = dev

	if err := gpu.Catch(r.initDisplay); err != nil {
		dev.Release()
		return nil, err
	}
	r.logger.Info("renderer created",
		zap.Stringer("backend", backendType),
		zap.String("device", dev.Name()),
		zap.Int("width", r.width),
		zap.Int("height", r.height))
	return r, nil
}

func (r *renderer) initDisplay() {
	src := shaders.Source("display")
	vs := shader.NewShader("display", shader.ShaderTypeVertex, src)
	fs := shader.NewShader("display", shader.ShaderTypeFragment, src)
	r.display = program.New(r.device, "display",
		program.WithVertexShader(vs),
		program.WithFragmentShader(fs),
		program.WithLogger(r.logger))
}

func (r *renderer) Device() gpu.Device {
	return r.device
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Draw(color *texture.Texture) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.linear {
		color.FilterLinear()
	} else {
		color.FilterNearest()
	}
	colorBinding, ok := r.display.Table().Lookup("color")
	if !ok {
		gpu.Fatalf("renderer.Draw", gpu.ErrState, "display program has no color binding")
	}
	set := gpu.NewBindingSet()
	color.BindAsSampler(set, colorBinding.Binding)
	r.display.Draw(set, quadVertices)
}

func (r *renderer) Present() {
	r.device.Present()
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width <= 0 || height <= 0 {
		return
	}
	r.width, r.height = width, height
	if rs, ok := r.device.(interface{ Resize(int, int) }); ok {
		rs.Resize(width, height)
	}
	r.logger.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
}

func (r *renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *renderer) Snapshot(color *texture.Texture, width, height int) *image.RGBA {
	if color.Format() != gpu.FormatRGBA8Unorm {
		gpu.Fatalf("renderer.Snapshot", gpu.ErrTypeMismatch, "texture %q is %s, want %s", color.Label(), color.Format(), gpu.FormatRGBA8Unorm)
	}
	w, h := int(color.Width()), int(color.Height())
	src := &image.RGBA{
		Pix:    color.Read(0),
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}
	if width <= 0 {
		width = w
	}
	if height <= 0 {
		height = h
	}
	if width == w && height == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func (r *renderer) Release() {
	r.releaseOnce.Do(func() {
		if r.display != nil {
			r.display.Release()
		}
		r.device.Release()
		r.logger.Info("renderer released")
	})
}
