// Package gpu defines the explicit device object every GPU resource is created through, the raw handle
// types it hands out, and the binding state passed into each dispatch and draw.
//
// A Device brackets the lifetime of everything created from it. There is no ambient "current context":
// resources, programs and binding sets are always passed explicitly, which keeps the simulation a pure
// function of its declared inputs and lets tests substitute the software device for a real adapter.
package gpu

// Buffer is a raw, untyped device allocation. Typed access lives in the buffer package.
type Buffer interface {
	// Label returns the debug label the buffer was created with.
	Label() string

	// Size returns the allocation size in bytes.
	Size() uint64

	// Flags returns the usage flags the buffer was created with.
	Flags() BufferFlags

	// Release frees the device allocation. Calling it more than once is a no-op.
	Release()
}

// Texture is a raw device image allocation.
type Texture interface {
	// Desc returns the description the texture was created with.
	Desc() TextureDesc

	// Release frees the device allocation. Calling it more than once is a no-op.
	Release()
}

// Program is a raw compiled and linked device program.
type Program interface {
	// Key returns the unique key of the program.
	Key() string

	// Desc returns the description the program was created from.
	Desc() ProgramDesc

	// Release frees the device program. Calling it more than once is a no-op.
	Release()
}

// Device is the single logical GPU every resource is created on. All methods are called from one host
// thread; none of them are safe for concurrent use. Failures reported by the driver after any call are
// fatal and raised as *Error panics of kind ErrDevice.
type Device interface {
	// Backend returns the implementation type of the device.
	//
	// Returns:
	//   - BackendType: the backend of this device
	Backend() BackendType

	// Name returns a human readable adapter description.
	//
	// Returns:
	//   - string: the adapter name
	Name() string

	// CreateBuffer allocates a buffer of len(data) bytes and uploads data into it in one step.
	//
	// Parameters:
	//   - label: a debug label
	//   - data: the initial contents, which also determine the size
	//   - flags: usage flags; without BufferDynamic the buffer is never re-uploaded from the host
	//
	// Returns:
	//   - Buffer: the new buffer
	CreateBuffer(label string, data []byte, flags BufferFlags) Buffer

	// WriteBuffer uploads data into a dynamic buffer at offset.
	//
	// Parameters:
	//   - buf: the destination buffer, created with BufferDynamic
	//   - offset: the byte offset into buf
	//   - data: the bytes to upload
	WriteBuffer(buf Buffer, offset uint64, data []byte)

	// ReadBuffer copies the full contents of buf back to the host. Blocks until the copy completes.
	//
	// Parameters:
	//   - buf: the buffer to read
	//
	// Returns:
	//   - []byte: a freshly allocated copy of the buffer contents
	ReadBuffer(buf Buffer) []byte

	// CreateTexture allocates immutable storage for every mip level described by desc.
	//
	// Parameters:
	//   - desc: the texture description
	//
	// Returns:
	//   - Texture: the new texture
	CreateTexture(desc TextureDesc) Texture

	// WriteTexture uploads tightly packed row-major texels into a region of one mip level.
	//
	// Parameters:
	//   - tex: the destination texture
	//   - region: the destination rectangle and mip level
	//   - data: the texels, exactly region.Width*region.Height*TexelSize bytes
	WriteTexture(tex Texture, region TextureRegion, data []byte)

	// ReadTexture copies one mip level back to the host as tightly packed rows.
	//
	// Parameters:
	//   - tex: the texture to read
	//   - level: the mip level
	//
	// Returns:
	//   - []byte: a freshly allocated copy of the level
	ReadTexture(tex Texture, level uint32) []byte

	// CreateProgram compiles and links the stages in desc.
	//
	// Parameters:
	//   - desc: the program description including the merged binding table
	//
	// Returns:
	//   - Program: the linked program
	//   - error: the driver diagnostic if compilation or linking failed
	CreateProgram(desc ProgramDesc) (Program, error)

	// Dispatch launches a compute program over a grid of workgroups and blocks until every buffer and
	// image write it issued is visible to subsequent commands.
	//
	// Parameters:
	//   - prog: a compute program
	//   - set: the resources bound for this dispatch
	//   - groups: the workgroup counts in x, y and z
	Dispatch(prog Program, set *BindingSet, groups [3]uint32)

	// Draw runs a render program over a vertex-less triangle strip into the current frame.
	//
	// Parameters:
	//   - prog: a render program
	//   - set: the resources bound for this draw
	//   - vertexCount: the number of vertices to generate
	Draw(prog Program, set *BindingSet, vertexCount uint32)

	// Present shows the current frame. Devices without a surface treat it as a no-op.
	Present()

	// Release destroys the device. Resources created from it must be released first.
	Release()
}
