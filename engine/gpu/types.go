package gpu

import "fmt"

// BackendType identifies the implementation behind a Device.
type BackendType int

const (
	// BackendSoftware runs kernels on the host CPU.
	BackendSoftware BackendType = iota
	// BackendWebGPU runs kernels on a WebGPU adapter.
	BackendWebGPU
)

func (b BackendType) String() string {
	switch b {
	case BackendSoftware:
		return "software"
	case BackendWebGPU:
		return "webgpu"
	default:
		return fmt.Sprintf("BackendType(%d)", int(b))
	}
}

// Format is the fixed set of texel/element formats understood by textures and image bindings.
type Format int

const (
	FormatUndefined Format = iota
	// FormatRG32Float is two 32-bit float channels (8 bytes).
	FormatRG32Float
	// FormatRGBA8Uint is four 8-bit unsigned integer channels (4 bytes).
	FormatRGBA8Uint
	// FormatR32Uint is one 32-bit unsigned integer channel (4 bytes).
	FormatR32Uint
	// FormatR32Float is one 32-bit float channel (4 bytes).
	FormatR32Float
	// FormatRGBA8Unorm is four normalized 8-bit channels (4 bytes).
	FormatRGBA8Unorm
	// FormatRGBA32Float is four 32-bit float channels (16 bytes).
	FormatRGBA32Float
)

var formatNames = map[Format]string{
	FormatRG32Float:   "rg32float",
	FormatRGBA8Uint:   "rgba8uint",
	FormatR32Uint:     "r32uint",
	FormatR32Float:    "r32float",
	FormatRGBA8Unorm:  "rgba8unorm",
	FormatRGBA32Float: "rgba32float",
}

// TexelSize returns the size of one texel in bytes, or 0 for FormatUndefined.
func (f Format) TexelSize() int {
	switch f {
	case FormatRGBA8Uint, FormatR32Uint, FormatR32Float, FormatRGBA8Unorm:
		return 4
	case FormatRG32Float:
		return 8
	case FormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// Channels returns the number of channels in the format.
func (f Format) Channels() int {
	switch f {
	case FormatR32Uint, FormatR32Float:
		return 1
	case FormatRG32Float:
		return 2
	case FormatRGBA8Uint, FormatRGBA8Unorm, FormatRGBA32Float:
		return 4
	default:
		return 0
	}
}

// String returns the WGSL texel format name.
func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "undefined"
}

// ParseFormat resolves a WGSL texel format name.
//
// Parameters:
//   - name: the WGSL name, e.g. "rgba8unorm"
//
// Returns:
//   - Format: the matching format
//   - error: an error if the name is not part of the supported set
func ParseFormat(name string) (Format, error) {
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return FormatUndefined, fmt.Errorf("unsupported texel format %q", name)
}

// Access selects whether a kernel may read, write, or both read and write a bound resource.
type Access int

const (
	AccessReadOnly Access = iota
	AccessWriteOnly
	AccessReadWrite
)

func (a Access) String() string {
	switch a {
	case AccessReadOnly:
		return "read"
	case AccessWriteOnly:
		return "write"
	case AccessReadWrite:
		return "read_write"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

// ParseAccess resolves a WGSL access mode keyword. An empty string is the WGSL default for storage (read).
func ParseAccess(s string) (Access, error) {
	switch s {
	case "", "read":
		return AccessReadOnly, nil
	case "write":
		return AccessWriteOnly, nil
	case "read_write":
		return AccessReadWrite, nil
	default:
		return 0, fmt.Errorf("unknown access mode %q", s)
	}
}

// Allows reports whether a resource bound with access a can serve a shader declaration requiring want.
func (a Access) Allows(want Access) bool {
	return a == AccessReadWrite || a == want
}

// BufferFlags configure usage hints for a device buffer. The zero value is a fully immutable buffer.
type BufferFlags uint32

const (
	// BufferDynamic permits host-initiated re-upload after creation.
	BufferDynamic BufferFlags = 1 << iota
	// BufferUniform creates a uniform buffer rather than a storage buffer.
	BufferUniform
)

// Has reports whether all bits of o are set.
func (f BufferFlags) Has(o BufferFlags) bool {
	return f&o == o
}

// FilterMode selects sampling behaviour for sampled textures.
type FilterMode int

const (
	FilterNearest FilterMode = iota
	FilterLinear
)

func (f FilterMode) String() string {
	if f == FilterLinear {
		return "linear"
	}
	return "nearest"
}

// ShaderStage is a bitmask of pipeline stages a binding is visible to.
type ShaderStage uint32

const (
	StageCompute ShaderStage = 1 << iota
	StageVertex
	StageFragment
)

// TextureDesc describes a 2D texture allocation.
type TextureDesc struct {
	Label  string
	Format Format
	Width  uint32
	Height uint32
	// Levels is the number of mip levels allocated up front.
	Levels uint32
}

// TextureRegion addresses a rectangle inside one mip level.
type TextureRegion struct {
	Level         uint32
	X, Y          uint32
	Width, Height uint32
}

// Fits reports whether the region lies inside a level of the given extent. The sums are taken in 64
// bits so a large offset cannot wrap around.
func (r TextureRegion) Fits(width, height uint32) bool {
	return uint64(r.X)+uint64(r.Width) <= uint64(width) && uint64(r.Y)+uint64(r.Height) <= uint64(height)
}

// StageDesc is one shader stage of a program.
type StageDesc struct {
	// Source is the WGSL text of the stage.
	Source string
	// EntryPoint is the entry function name. The software device resolves its kernels by this name.
	EntryPoint string
}

// ProgramDesc describes a program to be created on a device.
type ProgramDesc struct {
	Key      string
	Compute  *StageDesc
	Vertex   *StageDesc
	Fragment *StageDesc
	// Bindings is the merged, collision-free binding table of all stages.
	Bindings []BindingInfo
	// WorkgroupSize is the reflected @workgroup_size of the compute stage.
	WorkgroupSize [3]uint32
}

// IsCompute reports whether the description is a compute program.
func (d ProgramDesc) IsCompute() bool {
	return d.Compute != nil
}
