package program

import (
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer/shader"
	"go.uber.org/zap"
)

// ProgramBuilderOption is a functional option used to configure a Program during construction.
type ProgramBuilderOption func(*program)

// WithComputeShader sets the compute shader for this program.
//
// Parameters:
//   - s: the compute shader to link
//
// Returns:
//   - ProgramBuilderOption: a function that sets the compute shader for this program
func WithComputeShader(s shader.Shader) ProgramBuilderOption {
	return func(p *program) {
		p.computeShader = s
	}
}

// WithVertexShader sets the vertex shader for this program.
//
// Parameters:
//   - s: the vertex shader to link
//
// Returns:
//   - ProgramBuilderOption: a function that sets the vertex shader for this program
func WithVertexShader(s shader.Shader) ProgramBuilderOption {
	return func(p *program) {
		p.vertexShader = s
	}
}

// WithFragmentShader sets the fragment shader for this program.
//
// Parameters:
//   - s: the fragment shader to link
//
// Returns:
//   - ProgramBuilderOption: a function that sets the fragment shader for this program
func WithFragmentShader(s shader.Shader) ProgramBuilderOption {
	return func(p *program) {
		p.fragmentShader = s
	}
}

// WithLogger sets the logger used for link diagnostics.
func WithLogger(logger *zap.Logger) ProgramBuilderOption {
	return func(p *program) {
		if logger != nil {
			p.logger = logger
		}
	}
}
