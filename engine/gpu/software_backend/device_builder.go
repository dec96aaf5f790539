package software_backend

import (
	"maps"

	"go.uber.org/zap"
)

// DeviceBuilderOption is a functional option used to configure a software Device during construction.
type DeviceBuilderOption func(*device)

// WithKernel registers the host implementation of a shader entry point.
//
// Parameters:
//   - entryPoint: the WGSL entry point name the kernel stands in for
//   - k: the kernel
//
// Returns:
//   - DeviceBuilderOption: a function that registers the kernel
func WithKernel(entryPoint string, k Kernel) DeviceBuilderOption {
	return func(d *device) {
		d.kernels[entryPoint] = k
	}
}

// WithKernels registers several kernels at once, keyed by entry point name.
//
// Parameters:
//   - kernels: entry point name to kernel
//
// Returns:
//   - DeviceBuilderOption: a function that registers the kernels
func WithKernels(kernels map[string]Kernel) DeviceBuilderOption {
	return func(d *device) {
		maps.Copy(d.kernels, kernels)
	}
}

// WithWorkers sets the number of pool workers dispatches are spread over. With a single worker every
// dispatch runs inline on the calling goroutine.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - DeviceBuilderOption: a function that sets the worker count
func WithWorkers(n int) DeviceBuilderOption {
	return func(d *device) {
		d.workers = max(n, 1)
	}
}

// WithFramebuffer allocates a framebuffer for draws.
//
// Parameters:
//   - width: the framebuffer width in pixels
//   - height: the framebuffer height in pixels
//
// Returns:
//   - DeviceBuilderOption: a function that sets the framebuffer extent
func WithFramebuffer(width, height int) DeviceBuilderOption {
	return func(d *device) {
		d.fbWidth, d.fbHeight = width, height
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
