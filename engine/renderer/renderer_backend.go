package renderer

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu/software_backend"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu/wgpu_backend"
	"github.com/Carmen-Shannon/oxy-gravity/engine/simulation/kernels"
)

// RendererBackendType identifies the device implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects a WebGPU adapter.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the host CPU device.
	BackendTypeSoftware
)

func (b RendererBackendType) String() string {
	switch b {
	case BackendTypeWGPU:
		return "webgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return fmt.Sprintf("RendererBackendType(%d)", int(b))
	}
}

// ParseBackendType resolves a backend name as accepted on the command line.
//
// Parameters:
//   - name: "webgpu", "wgpu", "gpu" or "software", "cpu"
//
// Returns:
//   - RendererBackendType: the matching backend
//   - error: an error if the name is unknown
func ParseBackendType(name string) (RendererBackendType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "webgpu", "wgpu", "gpu":
		return BackendTypeWGPU, nil
	case "software", "cpu":
		return BackendTypeSoftware, nil
	default:
		return 0, fmt.Errorf("unknown backend %q", name)
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

// newDevice creates the device for the configured backend.
func (r *renderer) newDevice() (gpu.Device, error) {
	switch r.backendType {
	case BackendTypeSoftware:
		opts := []software_backend.DeviceBuilderOption{
			software_backend.WithKernels(kernels.All()),
			software_backend.WithFramebuffer(r.width, r.height),
			software_backend.WithLogger(r.logger),
		}
		if r.workers > 0 {
			opts = append(opts, software_backend.WithWorkers(r.workers))
		}
		return software_backend.NewDevice(opts...), nil
	case BackendTypeWGPU:
		opts := []wgpu_backend.DeviceBuilderOption{
			wgpu_backend.WithForceFallbackAdapter(r.forceFallbackAdapter),
			wgpu_backend.WithVSync(r.presentMode == PresentModeVSync),
			wgpu_backend.WithLogger(r.logger),
		}
		if r.window != nil {
			opts = append(opts, wgpu_backend.WithSurface(r.window.SurfaceDescriptor(), r.width, r.height))
		}
		return wgpu_backend.NewDevice(opts...)
	default:
		return nil, fmt.Errorf("unsupported backend %s", r.backendType)
	}
}
