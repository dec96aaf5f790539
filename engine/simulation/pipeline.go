// Package simulation runs an N-body gravity simulation as a fixed sequence of compute dispatches.
//
// One step is gravity followed by integration, each a blocking dispatch, so integration always
// consumes the accelerations of the same step. Render-prep (decay, scatter, colorize) runs after the
// physics steps of a frame when a density field is configured.
package simulation

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-gravity/common"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer/texture"
	"github.com/Carmen-Shannon/oxy-gravity/engine/simulation/shaders"
	"go.uber.org/zap"
)

// Default tunables.
const (
	DefaultParticleCount = 2048
	DefaultTimeStep      = 0.001
	DefaultSoftening     = 0.01
	DefaultScale         = 200
	DefaultDecay         = 0.9
	DefaultGain          = 0.05
	DefaultStepsPerFrame = 10
	DefaultDisturbRadius = 50
)

// Pipeline owns the particle buffers, the density field, the colour texture and the programs of every stage. Each
// stage's binding set is built once by Init and passed explicitly to every dispatch.
type Pipeline struct {
	dev      gpu.Device
	logger   *zap.Logger
	recorder Recorder

	count         int
	generator     Generator
	masses        []float32
	dt            float32
	g             float32
	softening     float32
	fieldWidth    uint32
	fieldHeight   uint32
	scale         float32
	decay         float32
	gain          float32
	stepsPerFrame int
	disturbRadius float32

	state State
	steps uint64
	dims  map[Stage][3]uint32

	pointer common.Vec2
	power   float32

	pos  *buffer.Buffer[common.Vec2]
	vel  *buffer.Buffer[common.Vec2]
	acc  *buffer.Buffer[common.Vec2]
	mass *buffer.Buffer[float32]

	density *buffer.Buffer[uint32]
	color   *texture.Texture

	gravity, verlet, disturb             program.Program
	decayProg, scatterProg, colorizeProg program.Program

	gravitySet, verletSet, disturbSet *gpu.BindingSet
	decaySet, scatterSet, colorizeSet *gpu.BindingSet

	releaseOnce sync.Once
}

// New creates an uninitialized pipeline on dev. No device resources are allocated until Init.
//
// Parameters:
//   - dev: the device every stage runs on
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - *Pipeline: the pipeline in StateUninitialized
func New(dev gpu.Device, opts ...PipelineBuilderOption) *Pipeline {
	p := &Pipeline{
		dev:           dev,
		logger:        zap.NewNop(),
		recorder:      nopRecorder{},
		count:         DefaultParticleCount,
		dt:            DefaultTimeStep,
		softening:     DefaultSoftening,
		scale:         DefaultScale,
		decay:         DefaultDecay,
		gain:          DefaultGain,
		stepsPerFrame: DefaultStepsPerFrame,
		disturbRadius: DefaultDisturbRadius,
		dims:          make(map[Stage][3]uint32),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.generator == nil {
		p.generator = Ring(1)
	}
	return p
}

// Init allocates the particle buffers from the generator, links every program and builds the binding
// set of each stage. On failure everything allocated so far is released before the panic propagates.
func (p *Pipeline) Init() {
	p.expect("simulation.Init", StateUninitialized)
	if p.count < 1 {
		gpu.Fatalf("simulation.Init", gpu.ErrCreation, "particle count must be at least 1, got %d", p.count)
	}
	defer func() {
		if p.state != StateReady {
			p.releaseResources()
		}
	}()

	pos, vel := p.generator(p.count)
	if len(pos) != p.count || len(vel) != p.count {
		gpu.Fatalf("simulation.Init", gpu.ErrSizeMismatch, "generator produced %d positions and %d velocities for %d particles", len(pos), len(vel), p.count)
	}
	masses := p.masses
	if masses == nil {
		masses = make([]float32, p.count)
		for i := range masses {
			masses[i] = 1
		}
	}
	if len(masses) != p.count {
		gpu.Fatalf("simulation.Init", gpu.ErrSizeMismatch, "%d masses for %d particles", len(masses), p.count)
	}
	if p.g == 0 {
		p.g = 1 / float32(p.count)
	}

	p.pos = buffer.NewWithData(p.dev, "positions", pos, 0)
	p.vel = buffer.NewWithData(p.dev, "velocities", vel, 0)
	p.acc = buffer.NewWithData(p.dev, "accelerations", make([]common.Vec2, p.count), 0)
	p.mass = buffer.NewWithData(p.dev, "masses", masses, 0)

	p.gravity = p.link(shaders.Gravity)
	p.verlet = p.link(shaders.Verlet)
	p.disturb = p.link(shaders.Disturb)

	p.gravitySet = gpu.NewBindingSet()
	bindBlock(p.gravity, p.gravitySet, "pos", p.pos)
	bindBlock(p.gravity, p.gravitySet, "acc", p.acc)
	bindBlock(p.gravity, p.gravitySet, "mass", p.mass)

	p.verletSet = gpu.NewBindingSet()
	bindBlock(p.verlet, p.verletSet, "pos", p.pos)
	bindBlock(p.verlet, p.verletSet, "vel", p.vel)
	bindBlock(p.verlet, p.verletSet, "acc", p.acc)

	p.disturbSet = gpu.NewBindingSet()
	bindBlock(p.disturb, p.disturbSet, "pos", p.pos)
	bindBlock(p.disturb, p.disturbSet, "vel", p.vel)

	if p.FieldEnabled() {
		p.initField()
	}
	p.applySimParams()
	p.applyDisturb()

	p.state = StateReady
	p.recorder.SetParticles(p.count)
	p.logger.Info("simulation initialized",
		zap.Int("particles", p.count),
		zap.Float32("dt", p.dt),
		zap.Float32("g", p.g),
		zap.Uint32("field_width", p.fieldWidth),
		zap.Uint32("field_height", p.fieldHeight),
	)
}

func (p *Pipeline) initField() {
	p.density = buffer.NewWithData(p.dev, "density", make([]uint32, p.fieldWidth*p.fieldHeight), 0)
	p.color = texture.New2D(p.dev, "color", gpu.FormatRGBA8Unorm, p.fieldWidth, p.fieldHeight).FilterNearest()

	p.decayProg = p.link(shaders.Decay)
	p.scatterProg = p.link(shaders.Scatter)
	p.colorizeProg = p.link(shaders.Colorize)

	p.decaySet = gpu.NewBindingSet()
	bindBlock(p.decayProg, p.decaySet, "density", p.density)

	p.scatterSet = gpu.NewBindingSet()
	bindBlock(p.scatterProg, p.scatterSet, "pos", p.pos)
	bindBlock(p.scatterProg, p.scatterSet, "density", p.density)

	p.colorizeSet = gpu.NewBindingSet()
	bindBlock(p.colorizeProg, p.colorizeSet, "density", p.density)
	p.color.BindAsImage(p.colorizeSet, imageUnit(p.colorizeProg, "color"), gpu.AccessWriteOnly)

	p.applyFieldParams()
}

// link compiles a compute stage by name. The stage name is also the program key.
func (p *Pipeline) link(stage string) program.Program {
	s := shader.NewShader(stage, shader.ShaderTypeCompute, shaders.Source(stage), shader.WithIncludes(shaders.Includes()))
	if want, _ := shaders.EntryPoint(stage); s.EntryPoint() != want {
		gpu.Fatalf("simulation.Init", gpu.ErrCreation, "stage %q declares entry point %q, want %q", stage, s.EntryPoint(), want)
	}
	return program.New(p.dev, stage, program.WithComputeShader(s), program.WithLogger(p.logger))
}

func bindBlock(prog program.Program, set *gpu.BindingSet, name string, buf buffer.Storage) {
	idx := prog.StorageBlockIndex(name)
	prog.BindStorageBuffer(set, buf, idx, idx)
}

func imageUnit(prog program.Program, name string) uint32 {
	b, ok := prog.Table().Lookup(name)
	if !ok || b.Kind != gpu.BindingStorageTexture {
		gpu.Fatalf("simulation.Init", gpu.ErrCreation, "program %q declares no image %q", prog.Key(), name)
	}
	return b.Binding
}

func (p *Pipeline) applySimParams() {
	for _, prog := range []program.Program{p.gravity, p.verlet} {
		prog.SetUniformU32("count", uint32(p.count))
		prog.SetUniformF32("dt", p.dt)
		prog.SetUniformF32("g", p.g)
		prog.SetUniformF32("softening", p.softening)
	}
}

func (p *Pipeline) applyFieldParams() {
	if p.decayProg == nil {
		return
	}
	for _, prog := range []program.Program{p.decayProg, p.scatterProg, p.colorizeProg} {
		prog.SetUniformU32("count", uint32(p.count))
		prog.SetUniformU32("width", p.fieldWidth)
		prog.SetUniformU32("height", p.fieldHeight)
		prog.SetUniformF32("scale", p.scale)
		prog.SetUniformF32("decay", p.decay)
		prog.SetUniformF32("gain", p.gain)
	}
}

func (p *Pipeline) applyDisturb() {
	if p.disturb == nil {
		return
	}
	p.disturb.SetUniformVec2("center", p.pointer)
	p.disturb.SetUniformF32("power", p.power)
	p.disturb.SetUniformF32("radius", p.disturbRadius/p.scale)
	p.disturb.SetUniformU32("count", uint32(p.count))
}

// Step runs one physics step: gravity, integration, and the pointer disturbance when its power is
// non-zero. Each stage returns only after its writes are visible to the next.
func (p *Pipeline) Step() {
	p.expect("simulation.Step", StateReady)
	p.state = StateStepping
	n := uint32(p.count)
	p.run(StageGravity, p.gravity, p.gravitySet, p.gravity.WorkgroupsFor(n))
	p.run(StageIntegrate, p.verlet, p.verletSet, p.verlet.WorkgroupsFor(n))
	if p.power != 0 {
		p.run(StageDisturb, p.disturb, p.disturbSet, p.disturb.WorkgroupsFor(n))
	}
	p.steps++
	p.recorder.AddSteps(1)
	p.state = StateReady
}

// RenderPrep attenuates the density field, scatters the current positions into it and maps it to
// colour. It does nothing when no field is configured.
func (p *Pipeline) RenderPrep() {
	p.expect("simulation.RenderPrep", StateReady)
	if !p.FieldEnabled() {
		return
	}
	p.state = StateStepping
	p.run(StageDecay, p.decayProg, p.decaySet, p.decayProg.WorkgroupsFor2D(p.fieldWidth, p.fieldHeight))
	p.run(StageScatter, p.scatterProg, p.scatterSet, p.scatterProg.WorkgroupsFor(uint32(p.count)))
	p.run(StageColorize, p.colorizeProg, p.colorizeSet, p.colorizeProg.WorkgroupsFor2D(p.fieldWidth, p.fieldHeight))
	p.state = StateReady
}

// Steps runs n physics steps followed by one render-prep.
func (p *Pipeline) Steps(n int) {
	for range n {
		p.Step()
	}
	p.RenderPrep()
}

// Frame runs the configured number of steps per frame followed by render-prep.
func (p *Pipeline) Frame() {
	p.Steps(p.stepsPerFrame)
}

func (p *Pipeline) run(stage Stage, prog program.Program, set *gpu.BindingSet, groups [3]uint32) {
	start := time.Now()
	prog.DispatchAndSync(set, groups)
	p.dims[stage] = groups
	p.recorder.ObserveStage(stage.String(), time.Since(start))
}

// SetPointer moves the disturbance centre to a field texel position.
//
// Parameters:
//   - x: the field column
//   - y: the field row
func (p *Pipeline) SetPointer(x, y float32) {
	p.pointer = common.Vec2{
		X: (x - float32(p.fieldWidth)*0.5) / p.scale,
		Y: (y - float32(p.fieldHeight)*0.5) / p.scale,
	}
	p.applyDisturb()
}

// SetPower sets the disturbance strength. Positive pushes particles away, negative pulls them in and
// zero disables the stage.
func (p *Pipeline) SetPower(power float32) {
	p.power = power
	p.applyDisturb()
}

// Zoom multiplies the view scale by factor.
func (p *Pipeline) Zoom(factor float32) {
	if factor <= 0 {
		return
	}
	p.scale *= factor
	p.applyFieldParams()
	p.applyDisturb()
}

// SetTimeStep changes the integration time step.
func (p *Pipeline) SetTimeStep(dt float32) {
	p.dt = dt
	if p.gravity != nil {
		p.applySimParams()
	}
}

// SetDecay changes the density decay factor.
func (p *Pipeline) SetDecay(decay float32) {
	p.decay = decay
	p.applyFieldParams()
}

// SetGain changes the colour mapping gain.
func (p *Pipeline) SetGain(gain float32) {
	p.gain = gain
	p.applyFieldParams()
}

// SetStepsPerFrame changes how many steps Frame runs.
func (p *Pipeline) SetStepsPerFrame(n int) {
	p.stepsPerFrame = max(n, 1)
}

// Positions returns a host copy of the particle positions.
func (p *Pipeline) Positions() []common.Vec2 {
	p.expect("simulation.Positions", StateReady)
	return p.pos.ReadAll()
}

// Velocities returns a host copy of the particle velocities.
func (p *Pipeline) Velocities() []common.Vec2 {
	p.expect("simulation.Velocities", StateReady)
	return p.vel.ReadAll()
}

// Accelerations returns a host copy of the accelerations computed by the last gravity stage.
func (p *Pipeline) Accelerations() []common.Vec2 {
	p.expect("simulation.Accelerations", StateReady)
	return p.acc.ReadAll()
}

// Density returns a host copy of the density field, row-major, or nil without a field.
func (p *Pipeline) Density() []uint32 {
	p.expect("simulation.Density", StateReady)
	if p.density == nil {
		return nil
	}
	return p.density.ReadAll()
}

// ColorTexture returns the RGBA8Unorm texture written by the colorize stage, or nil without a field.
func (p *Pipeline) ColorTexture() *texture.Texture {
	return p.color
}

// Dims returns the workgroup counts of the last dispatch of a stage.
func (p *Pipeline) Dims(stage Stage) ([3]uint32, bool) {
	d, ok := p.dims[stage]
	return d, ok
}

func (p *Pipeline) FieldEnabled() bool             { return p.fieldWidth > 0 && p.fieldHeight > 0 }
func (p *Pipeline) FieldSize() (uint32, uint32)    { return p.fieldWidth, p.fieldHeight }
func (p *Pipeline) State() State                   { return p.state }
func (p *Pipeline) StepCount() uint64              { return p.steps }
func (p *Pipeline) Count() int                     { return p.count }
func (p *Pipeline) Scale() float32                 { return p.scale }
func (p *Pipeline) Power() float32                 { return p.power }
func (p *Pipeline) StepsPerFrame() int             { return p.stepsPerFrame }
func (p *Pipeline) GravitationalConstant() float32 { return p.g }

// Release frees every buffer, texture and program exactly once and moves the pipeline to
// StateTerminated. Later calls do nothing.
func (p *Pipeline) Release() {
	p.releaseOnce.Do(func() {
		p.releaseResources()
		p.state = StateTerminated
		p.logger.Debug("simulation released", zap.Uint64("steps", p.steps))
	})
}

func (p *Pipeline) releaseResources() {
	for _, prog := range []program.Program{p.gravity, p.verlet, p.disturb, p.decayProg, p.scatterProg, p.colorizeProg} {
		if prog != nil {
			prog.Release()
		}
	}
	if p.color != nil {
		p.color.Release()
	}
	if p.density != nil {
		p.density.Release()
	}
	for _, buf := range []*buffer.Buffer[common.Vec2]{p.pos, p.vel, p.acc} {
		if buf != nil {
			buf.Release()
		}
	}
	if p.mass != nil {
		p.mass.Release()
	}
}

func (p *Pipeline) expect(op string, want State) {
	if p.state != want {
		gpu.Fatalf(op, gpu.ErrState, "pipeline is %s, expected %s", p.state, want)
	}
}
