package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-gravity/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gravity/engine/simulation"
	"github.com/Carmen-Shannon/oxy-gravity/engine/window"
	"go.uber.org/zap"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables logging of the per-second profiler statistics.
//
// Parameters:
//   - enabled: if true, enables performance profiling output
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithRedrawInterval sets how often a frame is requested from the window thread.
// Values <= 0 are treated as DefaultRedrawInterval.
//
// Parameters:
//   - d: the interval between redraw requests
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRedrawInterval(d time.Duration) EngineBuilderOption {
	return func(e *engine) {
		e.redrawInterval = d
	}
}

// WithWindow sets the window the engine runs in and takes input from.
//
// Parameters:
//   - w: a spawned Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer sets the renderer the density field is presented through.
//
// Parameters:
//   - r: the renderer, usually created for the same window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithPipeline sets the simulation to drive. It must be initialized and have a density field.
//
// Parameters:
//   - p: the simulation pipeline
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPipeline(p *simulation.Pipeline) EngineBuilderOption {
	return func(e *engine) {
		e.pipeline = p
	}
}

// WithTitle sets the base text of the title bar; the frame rate is appended to it.
func WithTitle(title string) EngineBuilderOption {
	return func(e *engine) {
		e.title = title
	}
}

// WithStatsCallback registers a function receiving each interval's profiler statistics,
// e.g. to export the frame rate as a metric.
func WithStatsCallback(fn func(profiler.Stats)) EngineBuilderOption {
	return func(e *engine) {
		e.statsCallback = fn
	}
}

// WithLogger sets the logger used by the engine.
func WithLogger(logger *zap.Logger) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}
