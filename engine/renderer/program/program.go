// Package program links shader stages into a device program and owns its binding table.
//
// Binding points are the reflected block indices: a storage block named in WGSL as
// @binding(N) can only be bound at point N, and two resources sharing a point fail the link.
package program

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-gravity/common"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer/shader"
	"go.uber.org/zap"
)

// ProgramType identifies whether a program is a compute program or a render program.
type ProgramType int

const (
	// ProgramTypeCompute indicates a program with a single compute stage.
	ProgramTypeCompute ProgramType = iota

	// ProgramTypeRender indicates a program with vertex and fragment stages.
	ProgramTypeRender
)

func (t ProgramType) String() string {
	if t == ProgramTypeRender {
		return "render"
	}
	return "compute"
}

// uniformBlock is the host staging copy of one uniform block and the dynamic buffer it is uploaded to.
type uniformBlock struct {
	info    gpu.BindingInfo
	staging []byte
	buf     gpu.Buffer
	dirty   bool
}

// program is the implementation of the Program interface.
type program struct {
	dev         gpu.Device
	key         string
	programType ProgramType
	logger      *zap.Logger

	vertexShader, fragmentShader, computeShader shader.Shader

	raw      gpu.Program
	table    *BindingTable
	uniforms []*uniformBlock

	workgroupSize [3]uint32

	released    bool
	releaseOnce sync.Once
}

// Program is a linked set of shader stages on one device. Its binding table is resolved once at link
// time. Resource bindings are never stored on the program: every dispatch and draw receives them
// explicitly as a *gpu.BindingSet.
type Program interface {
	// Key returns the unique key of this program.
	//
	// Returns:
	//   - string: the program key
	Key() string

	// Type returns whether this is a compute or a render program.
	//
	// Returns:
	//   - ProgramType: the program type
	Type() ProgramType

	// Shader retrieves the linked shader of the given type, nil if the program has no such stage.
	//
	// Parameters:
	//   - shaderType: the stage to retrieve
	//
	// Returns:
	//   - shader.Shader: the shader, or nil
	Shader(shaderType shader.ShaderType) shader.Shader

	// Table returns the binding table built at link time.
	//
	// Returns:
	//   - *BindingTable: the binding table
	Table() *BindingTable

	// WorkgroupSize returns the reflected @workgroup_size of the compute stage.
	//
	// Returns:
	//   - [3]uint32: the workgroup size, zero for render programs
	WorkgroupSize() [3]uint32

	// StorageBlockIndex resolves a storage block by its WGSL variable name. Panics if the program
	// declares no storage block of that name.
	//
	// Parameters:
	//   - name: the storage block name
	//
	// Returns:
	//   - uint32: the block index, stable for the life of the program
	StorageBlockIndex(name string) uint32

	// BindStorageBuffer places a typed buffer into set at a storage block's slot. The binding point
	// must equal the block index and the buffer's element stride must match the declared array stride.
	//
	// Parameters:
	//   - set: the binding state of the next dispatch
	//   - buf: the buffer to bind
	//   - blockIndex: the index returned by StorageBlockIndex
	//   - bindingPoint: the point to bind at
	BindStorageBuffer(set *gpu.BindingSet, buf buffer.Storage, blockIndex, bindingPoint uint32)

	// SetUniformF32 stages an f32 uniform member. The name is either the member name or
	// "block.member" when several blocks declare the same member.
	SetUniformF32(name string, v float32)

	// SetUniformU32 stages a u32 uniform member.
	SetUniformU32(name string, v uint32)

	// SetUniformI32 stages an i32 uniform member.
	SetUniformI32(name string, v int32)

	// SetUniformVec2 stages a vec2<f32> uniform member.
	SetUniformVec2(name string, v common.Vec2)

	// SetUniformIVec2 stages a vec2<i32> uniform member.
	SetUniformIVec2(name string, v common.IVec2)

	// WorkgroupsFor returns the dispatch dimensions covering n invocations along x.
	//
	// Parameters:
	//   - n: the number of invocations, e.g. the particle count
	//
	// Returns:
	//   - [3]uint32: the workgroup counts
	WorkgroupsFor(n uint32) [3]uint32

	// WorkgroupsFor2D returns the dispatch dimensions covering a width x height image.
	//
	// Parameters:
	//   - width: the image width
	//   - height: the image height
	//
	// Returns:
	//   - [3]uint32: the workgroup counts
	WorkgroupsFor2D(width, height uint32) [3]uint32

	// DispatchAndSync uploads staged uniforms, validates set against the binding table and runs the
	// compute stage over the given workgroup grid. It returns only after every write made by the
	// dispatch is visible to subsequent device commands.
	//
	// Parameters:
	//   - set: the resources bound for this dispatch
	//   - groups: the workgroup counts
	DispatchAndSync(set *gpu.BindingSet, groups [3]uint32)

	// Draw uploads staged uniforms, validates set and rasterizes vertexCount vertices with the render
	// stages.
	//
	// Parameters:
	//   - set: the resources bound for this draw
	//   - vertexCount: the number of vertices
	Draw(set *gpu.BindingSet, vertexCount uint32)

	// Release frees the device program and its uniform buffers exactly once.
	Release()
}

var _ Program = &program{}

// New links the configured stages into a program. Either a compute shader or a vertex and fragment
// shader pair must be set. Link failures, binding collisions and device diagnostics panic with
// gpu.ErrCreation.
//
// Parameters:
//   - dev: the device to create the program on
//   - key: the unique key for this program
//   - opts: a variadic list of ProgramBuilderOption functions to configure the program
//
// Returns:
//   - Program: the linked program
func New(dev gpu.Device, key string, opts ...ProgramBuilderOption) Program {
	p := &program{dev: dev, key: key, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}

	desc := gpu.ProgramDesc{Key: key}
	switch {
	case p.computeShader != nil && p.vertexShader == nil && p.fragmentShader == nil:
		p.programType = ProgramTypeCompute
		checkStage(key, p.computeShader, shader.ShaderTypeCompute)
		p.table = newBindingTable(key, p.computeShader.Bindings())
		p.workgroupSize = p.computeShader.WorkgroupSize()
		desc.Compute = p.computeShader.Stage()
		desc.WorkgroupSize = p.workgroupSize
	case p.computeShader == nil && p.vertexShader != nil && p.fragmentShader != nil:
		p.programType = ProgramTypeRender
		checkStage(key, p.vertexShader, shader.ShaderTypeVertex)
		checkStage(key, p.fragmentShader, shader.ShaderTypeFragment)
		p.table = newBindingTable(key, p.vertexShader.Bindings(), p.fragmentShader.Bindings())
		desc.Vertex = p.vertexShader.Stage()
		desc.Fragment = p.fragmentShader.Stage()
	default:
		gpu.Fatalf("program.New", gpu.ErrCreation, "program %q needs a compute stage or a vertex and fragment stage", key)
	}
	desc.Bindings = p.table.Bindings()

	raw, err := dev.CreateProgram(desc)
	if err != nil {
		panic(&gpu.Error{Op: "program.New", Kind: gpu.ErrCreation, Err: err})
	}
	p.raw = raw

	for _, b := range desc.Bindings {
		if b.Kind != gpu.BindingUniformBuffer {
			continue
		}
		staging := make([]byte, b.Size)
		p.uniforms = append(p.uniforms, &uniformBlock{
			info:    b,
			staging: staging,
			buf:     dev.CreateBuffer(key+"."+b.Name, staging, gpu.BufferUniform|gpu.BufferDynamic),
		})
	}
	p.logger.Debug("program linked",
		zap.String("key", key),
		zap.Stringer("type", p.programType),
		zap.Int("bindings", p.table.Len()),
		zap.Int("uniform_blocks", len(p.uniforms)),
	)
	return p
}

func checkStage(key string, s shader.Shader, want shader.ShaderType) {
	if s.ShaderType() != want {
		gpu.Fatalf("program.New", gpu.ErrCreation, "program %q: shader %q is a %s shader, expected %s", key, s.Key(), s.ShaderType(), want)
	}
}

func (p *program) Key() string {
	return p.key
}

func (p *program) Type() ProgramType {
	return p.programType
}

func (p *program) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *program) Table() *BindingTable {
	return p.table
}

func (p *program) WorkgroupSize() [3]uint32 {
	return p.workgroupSize
}

func (p *program) StorageBlockIndex(name string) uint32 {
	b, ok := p.table.Lookup(name)
	if !ok || b.Kind != gpu.BindingStorageBuffer {
		gpu.Fatalf("program.StorageBlockIndex", gpu.ErrState, "program %q has no storage block %q", p.key, name)
	}
	return b.Binding
}

func (p *program) BindStorageBuffer(set *gpu.BindingSet, buf buffer.Storage, blockIndex, bindingPoint uint32) {
	p.alive("program.BindStorageBuffer")
	if bindingPoint != blockIndex {
		gpu.Fatalf("program.BindStorageBuffer", gpu.ErrState, "program %q: binding point %d differs from block index %d", p.key, bindingPoint, blockIndex)
	}
	b, ok := p.table.At(blockIndex)
	if !ok || b.Kind != gpu.BindingStorageBuffer {
		gpu.Fatalf("program.BindStorageBuffer", gpu.ErrState, "program %q has no storage block at index %d", p.key, blockIndex)
	}
	if b.ElemStride != 0 && b.ElemStride != buf.Stride() {
		gpu.Fatalf("program.BindStorageBuffer", gpu.ErrTypeMismatch, "program %q: block %q has stride %d, buffer of %v has stride %d", p.key, b.Name, b.ElemStride, buf.ElemType(), buf.Stride())
	}
	set.SetBuffer(bindingPoint, buf.Binding())
}

// uniformField finds a member across the program's uniform blocks.
func (p *program) uniformField(op, name string, size uint32, types ...string) (*uniformBlock, gpu.UniformField) {
	p.alive(op)
	var (
		found *uniformBlock
		field gpu.UniformField
	)
	for _, u := range p.uniforms {
		member := name
		if len(name) > len(u.info.Name)+1 && name[:len(u.info.Name)+1] == u.info.Name+"." {
			member = name[len(u.info.Name)+1:]
		}
		f, ok := u.info.Field(member)
		if !ok {
			continue
		}
		if found != nil {
			gpu.Fatalf(op, gpu.ErrState, "program %q: uniform %q is ambiguous, qualify it with its block name", p.key, name)
		}
		found, field = u, f
	}
	if found == nil {
		gpu.Fatalf(op, gpu.ErrState, "program %q has no uniform %q", p.key, name)
	}
	if field.Size != size || !matchesType(field.Type, types) {
		gpu.Fatalf(op, gpu.ErrTypeMismatch, "program %q: uniform %q is %s, set as %s", p.key, name, field.Type, types[0])
	}
	return found, field
}

func matchesType(have string, types []string) bool {
	for _, t := range types {
		if have == t {
			return true
		}
	}
	return false
}

func (p *program) setUniform32(op, name string, bits uint32, types ...string) {
	u, f := p.uniformField(op, name, 4, types...)
	binary.LittleEndian.PutUint32(u.staging[f.Offset:], bits)
	u.dirty = true
}

func (p *program) setUniform64(op, name string, x, y uint32, types ...string) {
	u, f := p.uniformField(op, name, 8, types...)
	binary.LittleEndian.PutUint32(u.staging[f.Offset:], x)
	binary.LittleEndian.PutUint32(u.staging[f.Offset+4:], y)
	u.dirty = true
}

func (p *program) SetUniformF32(name string, v float32) {
	p.setUniform32("program.SetUniformF32", name, math.Float32bits(v), "f32")
}

func (p *program) SetUniformU32(name string, v uint32) {
	p.setUniform32("program.SetUniformU32", name, v, "u32")
}

func (p *program) SetUniformI32(name string, v int32) {
	p.setUniform32("program.SetUniformI32", name, uint32(v), "i32")
}

func (p *program) SetUniformVec2(name string, v common.Vec2) {
	p.setUniform64("program.SetUniformVec2", name, math.Float32bits(v.X), math.Float32bits(v.Y), "vec2<f32>", "vec2f")
}

func (p *program) SetUniformIVec2(name string, v common.IVec2) {
	p.setUniform64("program.SetUniformIVec2", name, uint32(v.X), uint32(v.Y), "vec2<i32>", "vec2i")
}

func (p *program) WorkgroupsFor(n uint32) [3]uint32 {
	return [3]uint32{common.CeilDiv(n, max(p.workgroupSize[0], 1)), 1, 1}
}

func (p *program) WorkgroupsFor2D(width, height uint32) [3]uint32 {
	return [3]uint32{
		common.CeilDiv(width, max(p.workgroupSize[0], 1)),
		common.CeilDiv(height, max(p.workgroupSize[1], 1)),
		1,
	}
}

func (p *program) DispatchAndSync(set *gpu.BindingSet, groups [3]uint32) {
	p.alive("program.DispatchAndSync")
	if p.programType != ProgramTypeCompute {
		gpu.Fatalf("program.DispatchAndSync", gpu.ErrState, "program %q is a render program", p.key)
	}
	bound := p.prepare("program.DispatchAndSync", set)
	if groups[0] == 0 || groups[1] == 0 || groups[2] == 0 {
		return
	}
	p.dev.Dispatch(p.raw, bound, groups)
}

func (p *program) Draw(set *gpu.BindingSet, vertexCount uint32) {
	p.alive("program.Draw")
	if p.programType != ProgramTypeRender {
		gpu.Fatalf("program.Draw", gpu.ErrState, "program %q is a compute program", p.key)
	}
	p.dev.Draw(p.raw, p.prepare("program.Draw", set), vertexCount)
}

// prepare uploads dirty uniform blocks and returns a copy of set with them bound. The caller's set is
// not modified.
func (p *program) prepare(op string, set *gpu.BindingSet) *gpu.BindingSet {
	bound := set.Clone()
	for _, u := range p.uniforms {
		if u.dirty {
			p.dev.WriteBuffer(u.buf, 0, u.staging)
			u.dirty = false
		}
		bound.SetBuffer(u.info.Binding, gpu.BufferBinding{Buffer: u.buf, Stride: u.info.Size, Len: 1})
	}
	for _, b := range p.table.ordered {
		p.validate(op, bound, b)
	}
	return bound
}

func (p *program) validate(op string, set *gpu.BindingSet, b gpu.BindingInfo) {
	switch b.Kind {
	case gpu.BindingStorageBuffer:
		bb, ok := set.Buffer(b.Binding)
		if !ok || bb.Buffer == nil {
			gpu.Fatalf(op, gpu.ErrState, "program %q: storage block %q (binding %d) is not bound", p.key, b.Name, b.Binding)
		}
		if b.ElemStride != 0 && bb.Stride != b.ElemStride {
			gpu.Fatalf(op, gpu.ErrTypeMismatch, "program %q: block %q has stride %d, bound buffer has %d", p.key, b.Name, b.ElemStride, bb.Stride)
		}
	case gpu.BindingStorageTexture:
		ib, ok := set.Image(b.Binding)
		if !ok || ib.Texture == nil {
			gpu.Fatalf(op, gpu.ErrState, "program %q: image %q (unit %d) is not bound", p.key, b.Name, b.Binding)
		}
		if !ib.Access.Allows(b.Access) {
			gpu.Fatalf(op, gpu.ErrState, "program %q: image %q is declared %s but bound %s", p.key, b.Name, b.Access, ib.Access)
		}
		if f := ib.Texture.Desc().Format; f != b.Format {
			gpu.Fatalf(op, gpu.ErrTypeMismatch, "program %q: image %q is declared %s but bound texture is %s", p.key, b.Name, b.Format, f)
		}
	case gpu.BindingSampledTexture:
		if sb, ok := set.Sampled(b.Binding); !ok || sb.Texture == nil {
			gpu.Fatalf(op, gpu.ErrState, "program %q: texture %q (binding %d) is not bound", p.key, b.Name, b.Binding)
		}
	case gpu.BindingSampler:
		if _, ok := set.Sampled(b.Binding - 1); b.Binding == 0 || !ok {
			gpu.Fatalf(op, gpu.ErrState, "program %q: sampler %q has no texture at binding %d", p.key, b.Name, b.Binding-1)
		}
	}
}

func (p *program) Release() {
	p.releaseOnce.Do(func() {
		for _, u := range p.uniforms {
			u.buf.Release()
		}
		if p.raw != nil {
			p.raw.Release()
		}
		p.released = true
		p.logger.Debug("program released", zap.String("key", p.key))
	})
}

func (p *program) alive(op string) {
	if p.released {
		gpu.Fatalf(op, gpu.ErrState, "program %q used after release", p.key)
	}
}
