package wgpu_backend

import (
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// DeviceBuilderOption is a functional option used to configure a WebGPU Device during construction.
type DeviceBuilderOption func(*device)

// WithSurface attaches a window surface the device draws into.
//
// Parameters:
//   - desc: the platform surface descriptor, typically from wgpuglfw.GetSurfaceDescriptor
//   - width: the initial surface width in pixels
//   - height: the initial surface height in pixels
//
// Returns:
//   - DeviceBuilderOption: a function that sets the surface descriptor
func WithSurface(desc *wgpu.SurfaceDescriptor, width, height int) DeviceBuilderOption {
	return func(d *device) {
		d.surfaceDescriptor = desc
		d.width, d.height = width, height
	}
}

// WithForceFallbackAdapter requests the software fallback adapter of the WebGPU implementation.
//
// Parameters:
//   - force: whether to force the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: a function that sets the adapter preference
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(d *device) {
		d.forceFallbackAdapter = force
	}
}

// WithVSync selects FIFO presentation when enabled and immediate presentation otherwise.
//
// Parameters:
//   - enabled: whether presentation waits for vertical sync
//
// Returns:
//   - DeviceBuilderOption: a function that sets the present mode
func WithVSync(enabled bool) DeviceBuilderOption {
	return func(d *device) {
		if enabled {
			d.presentMode = wgpu.PresentModeFifo
		} else {
			d.presentMode = wgpu.PresentModeImmediate
		}
	}
}

// WithLogger sets the logger used for device lifecycle messages.
func WithLogger(l *zap.Logger) DeviceBuilderOption {
	return func(d *device) {
		if l != nil {
			d.logger = l
		}
	}
}
