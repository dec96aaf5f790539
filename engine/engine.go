package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gravity/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gravity/engine/simulation"
	"github.com/Carmen-Shannon/oxy-gravity/engine/window"
	"go.uber.org/zap"
)

// DefaultRedrawInterval is how often the redraw goroutine asks the window thread for a frame.
const DefaultRedrawInterval = 6 * time.Millisecond

// Tunables are the simulation parameters that may change while the engine runs.
// Zero fields are left unchanged.
type Tunables struct {
	TimeStep      float32
	StepsPerFrame int
	Decay         float32
	Gain          float32
}

// engine implements the Engine interface.
// A redraw goroutine only injects frame requests; every simulation and device call happens on the
// window thread inside the update callback.
type engine struct {
	logger *zap.Logger
	title  string

	window   window.Window
	renderer renderer.Renderer
	pipeline *simulation.Pipeline
	input    *input

	redrawInterval  time.Duration
	redrawChannel   chan struct{}
	tunablesChannel chan Tunables

	wg          sync.WaitGroup
	quitChannel chan struct{}
	quitOnce    sync.Once
	err         error

	profiler         *profiler.Profiler
	profilingEnabled bool
	statsCallback    func(profiler.Stats)
}

// Engine drives the interactive simulation: it draws the density field, steps the physics and
// routes window input to the pipeline.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer used to present the density field.
	Renderer() renderer.Renderer

	// Pipeline returns the simulation being driven.
	Pipeline() *simulation.Pipeline

	// Profiler returns the frame profiler. It is ticked every frame whether or not logging is enabled.
	Profiler() *profiler.Profiler

	// Paused reports whether stepping is suspended. Frames are still drawn while paused.
	Paused() bool

	// ApplyTunables queues new simulation parameters. They are applied between frames on the window
	// thread; a newer value replaces one that has not been applied yet. Safe to call from any goroutine.
	//
	// Parameters:
	//   - t: the parameters to apply, zero fields are ignored
	ApplyTunables(t Tunables)

	// Run starts the redraw goroutine and runs the window message loop. It blocks until the window
	// closes or Quit is called.
	//
	// Returns:
	//   - error: the *gpu.Error that stopped a frame, or nil on a normal close
	Run() error

	// Quit signals all engine goroutines to stop and asks the window to close.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// The window, renderer and an initialized pipeline with a density field are required.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: error if a required component is missing
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		logger:          zap.NewNop(),
		title:           "oxy-gravity",
		redrawInterval:  DefaultRedrawInterval,
		redrawChannel:   make(chan struct{}, 1),
		tunablesChannel: make(chan Tunables, 1),
		quitChannel:     make(chan struct{}),
	}

	for _, opt := range options {
		opt(e)
	}

	switch {
	case e.window == nil:
		return nil, errors.New("engine: a window is required")
	case e.renderer == nil:
		return nil, errors.New("engine: a renderer is required")
	case e.pipeline == nil:
		return nil, errors.New("engine: a pipeline is required")
	case e.pipeline.State() != simulation.StateReady:
		return nil, fmt.Errorf("engine: pipeline is %v, want %v", e.pipeline.State(), simulation.StateReady)
	case !e.pipeline.FieldEnabled():
		return nil, errors.New("engine: pipeline has no density field to draw")
	}
	if e.redrawInterval <= 0 {
		e.redrawInterval = DefaultRedrawInterval
	}

	profLogger := zap.NewNop()
	if e.profilingEnabled {
		profLogger = e.logger.Named("profiler")
	}
	e.profiler = profiler.NewProfiler(profLogger, e.onStats)
	e.input = newInput(e.pipeline, e.Quit)

	e.window.SetUpdateCallback(e.update)
	e.window.SetResizeCallback(func(width, height int) {
		e.renderer.Resize(width, height)
	})
	e.window.SetScrollCallback(e.input.scroll)
	e.window.SetKeyDownCallback(e.input.keyDown)
	e.window.SetMouseButtonCallback(e.input.mouseButton)
	e.window.SetCursorEnterCallback(e.input.cursorEnter)
	e.window.SetMouseMoveCallback(func(x, y int32) {
		e.input.mouseMove(x, y, e.window.Width(), e.window.Height())
	})

	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Pipeline() *simulation.Pipeline {
	return e.pipeline
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Paused() bool {
	return e.input.paused
}

func (e *engine) ApplyTunables(t Tunables) {
	// Non-blocking send - if a value is pending, replace it
	for {
		select {
		case e.tunablesChannel <- t:
			return
		default:
			select {
			case <-e.tunablesChannel:
			default:
			}
		}
	}
}

func (e *engine) Run() error {
	e.handle()
	e.window.ProcessMessages()
	e.signalQuit()
	e.wg.Wait()
	return e.err
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handle launches the redraw and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleRedraw()
	go e.handleQuit()
}

// handleRedraw sends a redraw request every redraw interval. A request that has not been consumed
// yet is not duplicated.
func (e *engine) handleRedraw() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.redrawInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			select {
			case e.redrawChannel <- struct{}{}:
			default:
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// update runs on the window thread once per message loop iteration.
func (e *engine) update() {
	select {
	case <-e.quitChannel:
		e.window.RequestClose()
		return
	default:
	}

	select {
	case <-e.redrawChannel:
	default:
		return
	}

	if err := gpu.Catch(e.frame); err != nil {
		e.logger.Error("frame failed", zap.Error(err))
		e.err = err
		e.signalQuit()
		e.window.RequestClose()
	}
}

// frame applies pending tunables, draws the current field and advances the simulation.
func (e *engine) frame() {
	select {
	case t := <-e.tunablesChannel:
		e.applyTunables(t)
	default:
	}

	e.renderer.Draw(e.pipeline.ColorTexture())
	e.renderer.Present()

	if !e.input.paused {
		n := e.pipeline.StepsPerFrame()
		e.pipeline.Steps(n)
		e.profiler.AddSteps(n)
	}
	e.profiler.Tick()
}

func (e *engine) applyTunables(t Tunables) {
	if t.TimeStep > 0 {
		e.pipeline.SetTimeStep(t.TimeStep)
	}
	if t.StepsPerFrame > 0 {
		e.pipeline.SetStepsPerFrame(t.StepsPerFrame)
	}
	if t.Decay > 0 {
		e.pipeline.SetDecay(t.Decay)
	}
	if t.Gain > 0 {
		e.pipeline.SetGain(t.Gain)
	}
	e.logger.Info("tunables applied",
		zap.Float32("dt", t.TimeStep),
		zap.Int("steps_per_frame", e.pipeline.StepsPerFrame()),
		zap.Float32("decay", t.Decay),
		zap.Float32("gain", t.Gain))
}

// onStats shows the latest frame rate in the title bar and forwards the stats.
func (e *engine) onStats(s profiler.Stats) {
	state := ""
	if e.input != nil && e.input.paused {
		state = " [paused]"
	}
	e.window.SetTitle(fmt.Sprintf("%s - %d particles - %.0f fps%s", e.title, e.pipeline.Count(), s.FPS, state))
	if e.statsCallback != nil {
		e.statsCallback(s)
	}
}
