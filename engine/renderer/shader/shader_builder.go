package shader

import "maps"

// ShaderBuilderOption is a functional option used to configure a Shader during construction.
type ShaderBuilderOption func(*shader)

// WithIncludes registers WGSL sources that @oxy:include annotations in the shader may inject.
// Calling it more than once merges the registries; later names win.
//
// Parameters:
//   - registry: include name to WGSL source
//
// Returns:
//   - ShaderBuilderOption: a function that registers the includes on the shader
func WithIncludes(registry map[string]string) ShaderBuilderOption {
	return func(s *shader) {
		if s.includes == nil {
			s.includes = make(map[string]string, len(registry))
		}
		maps.Copy(s.includes, registry)
	}
}
