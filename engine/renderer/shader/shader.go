package shader

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
)

// ShaderType identifies whether a shader is a render shader or a compute shader.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render programs.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// Stage returns the gpu.ShaderStage bit of the shader type.
func (t ShaderType) Stage() gpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return gpu.StageVertex
	case ShaderTypeFragment:
		return gpu.StageFragment
	default:
		return gpu.StageCompute
	}
}

// shader is the implementation of the Shader interface.
// It holds all of the reflected shader data required for program creation and resource binding.
type shader struct {
	key           string
	source        string
	shaderType    ShaderType
	bindings      []gpu.BindingInfo
	workGroupSize [3]uint32
	entryPoint    string

	includes map[string]string
	pp       PreProcessor
}

// Shader defines the interface for a loaded and reflected WGSL shader. It exposes the shader's
// unique key, pre-processed source, entry point, workgroup size and the bindings it declares,
// which programs resolve symbolic resource names against once at link time.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType returns the type of the shader (vertex, fragment, or compute).
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "main")
	EntryPoint() string

	// WorkgroupSize returns the workgroup size dimensions for compute shaders.
	// Returns [0, 0, 0] for non-compute shaders and [1, 1, 1] as the default when
	// @workgroup_size is not specified.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Bindings returns every resource the shader declares, sorted by group then binding.
	//
	// Returns:
	//   - []gpu.BindingInfo: the reflected bindings
	Bindings() []gpu.BindingInfo

	// Binding looks up a declared resource by its WGSL variable name.
	//
	// Parameters:
	//   - name: the WGSL variable name
	//
	// Returns:
	//   - gpu.BindingInfo: the reflected binding
	//   - bool: true if the shader declares name
	Binding(name string) (gpu.BindingInfo, bool)

	// Stage returns the stage description handed to the device when creating a program.
	//
	// Returns:
	//   - *gpu.StageDesc: the source and entry point of this shader
	Stage() *gpu.StageDesc

	// Includes returns the @oxy:include names that were injected into the source.
	//
	// Returns:
	//   - []string: the injected include names
	Includes() []string
}

var _ Shader = &shader{}

// NewShader creates a new Shader from WGSL source. The source is pre-processed, then reflected for its
// entry point, workgroup size and resource bindings. Any failure is fatal and raised as a *gpu.Error of
// kind gpu.ErrCreation, as there is no fallback shader.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - shaderType: the type of shader (vertex, fragment or compute)
//   - source: the WGSL source text
//   - opts: a variadic list of ShaderBuilderOption functions to configure the shader
//
// Returns:
//   - Shader: a new Shader instance with the provided configuration
func NewShader(key string, shaderType ShaderType, source string, opts ...ShaderBuilderOption) Shader {
	if source == "" {
		gpu.Fatalf("shader.NewShader", gpu.ErrCreation, "%s: empty source", key)
	}
	s := &shader{
		key:           key,
		shaderType:    shaderType,
		workGroupSize: [3]uint32{0, 0, 0},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pp = NewPreProcessor(s.includes)
	if err := s.parseSource(source); err != nil {
		gpu.Fatalf("shader.NewShader", gpu.ErrCreation, "%s: %w", key, err)
	}
	return s
}

// NewShaderFromFile reads WGSL source from path and creates a Shader from it.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the type of shader
//   - sourcePath: the file path to read WGSL source from
//   - opts: a variadic list of ShaderBuilderOption functions to configure the shader
//
// Returns:
//   - Shader: a new Shader instance
func NewShaderFromFile(key string, shaderType ShaderType, sourcePath string, opts ...ShaderBuilderOption) Shader {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		gpu.Fatalf("shader.NewShaderFromFile", gpu.ErrCreation, "failed to read source file %q: %w", sourcePath, err)
	}
	return NewShader(key, shaderType, string(data), opts...)
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) Bindings() []gpu.BindingInfo {
	return s.bindings
}

func (s *shader) Binding(name string) (gpu.BindingInfo, bool) {
	for _, b := range s.bindings {
		if b.Name == name {
			return b, true
		}
	}
	return gpu.BindingInfo{}, false
}

func (s *shader) Stage() *gpu.StageDesc {
	return &gpu.StageDesc{Source: s.source, EntryPoint: s.entryPoint}
}

func (s *shader) Includes() []string {
	return s.pp.Includes()
}

// parseSource pre-processes the WGSL source, then extracts the entry point, the workgroup size for
// compute shaders, and the resource bindings.
func (s *shader) parseSource(raw string) error {
	var err error
	s.source, err = s.pp.Process(raw)
	if err != nil {
		return fmt.Errorf("pre-process: %w", err)
	}
	s.entryPoint = parseEntryPoint(s.source, s.shaderType)
	if s.entryPoint == "" {
		return fmt.Errorf("no @%s entry point", s.shaderType)
	}
	if s.shaderType == ShaderTypeCompute {
		s.workGroupSize = parseWorkgroupSize(s.source)
	}
	s.bindings, err = parseBindings(s.source, s.shaderType.Stage())
	if err != nil {
		return fmt.Errorf("reflect bindings: %w", err)
	}
	return nil
}
