package simulation

import "go.uber.org/zap"

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*Pipeline)

// WithParticleCount sets the number of particles. The count is fixed for the life of the pipeline.
//
// Parameters:
//   - n: the particle count, at least 1
//
// Returns:
//   - PipelineBuilderOption: a function that sets the particle count
func WithParticleCount(n int) PipelineBuilderOption {
	return func(p *Pipeline) {
		p.count = n
	}
}

// WithGenerator sets the generator of the initial particle distribution.
//
// Parameters:
//   - g: the generator, called once by Init
//
// Returns:
//   - PipelineBuilderOption: a function that sets the generator
func WithGenerator(g Generator) PipelineBuilderOption {
	return func(p *Pipeline) {
		p.generator = g
	}
}

// WithMasses binds per-particle masses. Without it every particle has unit mass.
//
// Parameters:
//   - m: one mass per particle
//
// Returns:
//   - PipelineBuilderOption: a function that sets the masses
func WithMasses(m []float32) PipelineBuilderOption {
	return func(p *Pipeline) {
		p.masses = m
	}
}

// WithTimeStep sets the integration time step.
func WithTimeStep(dt float32) PipelineBuilderOption {
	return func(p *Pipeline) {
		p.dt = dt
	}
}

// WithGravitationalConstant sets G. Zero, the default, selects 1/N.
func WithGravitationalConstant(g float32) PipelineBuilderOption {
	return func(p *Pipeline) {
		p.g = g
	}
}

// WithSoftening sets the softening length added to every pair distance.
func WithSoftening(eps float32) PipelineBuilderOption {
	return func(p *Pipeline) {
		p.softening = eps
	}
}

// WithField enables render-prep into a width x height density field.
//
// Parameters:
//   - width: the field width in texels
//   - height: the field height in texels
//
// Returns:
//   - PipelineBuilderOption: a function that enables the field
func WithField(width, height uint32) PipelineBuilderOption {
	return func(p *Pipeline) {
		p.fieldWidth = width
		p.fieldHeight = height
	}
}

// WithScale sets the number of field texels per world unit.
func WithScale(scale float32) PipelineBuilderOption {
	return func(p *Pipeline) {
		p.scale = scale
	}
}

// WithDecay sets the factor the density field is multiplied by each frame.
func WithDecay(decay float32) PipelineBuilderOption {
	return func(p *Pipeline) {
		p.decay = decay
	}
}

// WithGain sets the exposure gain of the colour mapping.
func WithGain(gain float32) PipelineBuilderOption {
	return func(p *Pipeline) {
		p.gain = gain
	}
}

// WithStepsPerFrame sets how many physics steps Frame runs before render-prep.
func WithStepsPerFrame(n int) PipelineBuilderOption {
	return func(p *Pipeline) {
		p.stepsPerFrame = max(n, 1)
	}
}

// WithDisturbRadius sets the pointer disturbance radius in field texels.
func WithDisturbRadius(px float32) PipelineBuilderOption {
	return func(p *Pipeline) {
		p.disturbRadius = px
	}
}

// WithLogger sets the logger of the pipeline and its programs.
func WithLogger(logger *zap.Logger) PipelineBuilderOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) PipelineBuilderOption {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}
