// Package buffer provides Buffer[T], a device buffer whose element type is fixed by its type parameter.
//
// The element type cannot change after creation and every host array copied in or out is a []T, so a
// read with the wrong element type does not compile. Length mismatches are programming errors and
// are raised as *gpu.Error panics of kind gpu.ErrSizeMismatch.
package buffer

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-gravity/common"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
)

// Storage is the untyped view of a typed buffer used when binding it to a program.
type Storage interface {
	// Raw returns the underlying device buffer, or nil for an empty buffer.
	Raw() gpu.Buffer

	// Len returns the element count.
	Len() int

	// Stride returns the element size in bytes.
	Stride() uint32

	// ElemType returns the host element type.
	ElemType() reflect.Type

	// Binding describes the buffer for a gpu.BindingSet.
	Binding() gpu.BufferBinding
}

// Buffer is one device allocation holding Len() elements of T. T must be a fixed-size type without
// pointers whose Go layout matches the shader's, e.g. float32, uint32 or common.Vec2.
type Buffer[T any] struct {
	dev    gpu.Device
	label  string
	raw    gpu.Buffer
	length int
	flags  gpu.BufferFlags

	stored      bool
	released    bool
	releaseOnce sync.Once
}

var _ Storage = &Buffer[float32]{}

// New creates an empty buffer with no device allocation and zero length.
//
// Parameters:
//   - dev: the device the storage will be allocated on
//   - label: a debug label
//
// Returns:
//   - *Buffer[T]: an empty buffer awaiting Storage
func New[T any](dev gpu.Device, label string) *Buffer[T] {
	if dev == nil {
		panic("buffer: nil device")
	}
	checkElem[T]()
	return &Buffer[T]{dev: dev, label: label}
}

// NewWithData creates a buffer and immediately allocates and uploads data.
//
// Parameters:
//   - dev: the device to allocate on
//   - label: a debug label
//   - data: the initial contents
//   - flags: usage flags; gpu.BufferDynamic permits later Write calls
//
// Returns:
//   - *Buffer[T]: the initialized buffer
func NewWithData[T any](dev gpu.Device, label string, data []T, flags gpu.BufferFlags) *Buffer[T] {
	b := New[T](dev, label)
	b.Storage(data, flags)
	return b
}

// Storage allocates the buffer and uploads data in one step. The element count is fixed from then on.
// Storage may be called exactly once per buffer. An empty data slice records a zero-length buffer
// without allocating on the device.
//
// Parameters:
//   - data: the initial contents
//   - flags: usage flags
func (b *Buffer[T]) Storage(data []T, flags gpu.BufferFlags) {
	b.alive("buffer.Storage")
	if b.stored {
		gpu.Fatalf("buffer.Storage", gpu.ErrState, "buffer %q already has storage", b.label)
	}
	b.stored = true
	b.length = len(data)
	b.flags = flags
	if len(data) == 0 {
		return
	}
	b.raw = b.dev.CreateBuffer(b.label, common.SliceToBytes(data), flags)
}

// Write re-uploads the full contents of a dynamic buffer.
//
// Parameters:
//   - data: the new contents, exactly Len() elements
func (b *Buffer[T]) Write(data []T) {
	b.alive("buffer.Write")
	if !b.flags.Has(gpu.BufferDynamic) {
		gpu.Fatalf("buffer.Write", gpu.ErrState, "buffer %q is immutable", b.label)
	}
	b.checkLen("buffer.Write", len(data))
	if len(data) == 0 {
		return
	}
	b.dev.WriteBuffer(b.raw, 0, common.SliceToBytes(data))
}

// ReadInto copies the device contents into out, whose length must equal Len().
//
// Parameters:
//   - out: the destination host array
func (b *Buffer[T]) ReadInto(out []T) {
	b.alive("buffer.ReadInto")
	b.checkLen("buffer.ReadInto", len(out))
	if len(out) == 0 {
		return
	}
	copy(out, common.BytesToSlice[T](b.dev.ReadBuffer(b.raw)))
}

// ReadAll returns a freshly allocated host copy of the full contents.
//
// Returns:
//   - []T: the buffer contents
func (b *Buffer[T]) ReadAll() []T {
	out := make([]T, b.Len())
	b.ReadInto(out)
	return out
}

// Len returns the element count. It is zero before Storage is called.
func (b *Buffer[T]) Len() int {
	return b.length
}

// Stride returns the size of one element in bytes.
func (b *Buffer[T]) Stride() uint32 {
	var zero T
	return uint32(unsafe.Sizeof(zero))
}

// ElemType returns the element type T.
func (b *Buffer[T]) ElemType() reflect.Type {
	return reflect.TypeFor[T]()
}

// Flags returns the usage flags given to Storage.
func (b *Buffer[T]) Flags() gpu.BufferFlags {
	return b.flags
}

// Label returns the debug label.
func (b *Buffer[T]) Label() string {
	return b.label
}

// Raw returns the underlying device buffer, or nil for an empty buffer.
func (b *Buffer[T]) Raw() gpu.Buffer {
	b.alive("buffer.Raw")
	return b.raw
}

// Binding describes the buffer for a gpu.BindingSet.
func (b *Buffer[T]) Binding() gpu.BufferBinding {
	return gpu.BufferBinding{Buffer: b.Raw(), ElemType: b.ElemType(), Stride: b.Stride(), Len: b.length}
}

// Released reports whether Release has been called.
func (b *Buffer[T]) Released() bool {
	return b.released
}

// Release frees the device allocation. The first call releases, later calls do nothing; any other
// method called afterwards panics.
func (b *Buffer[T]) Release() {
	b.releaseOnce.Do(func() {
		if b.raw != nil {
			b.raw.Release()
			b.raw = nil
		}
		b.released = true
	})
}

func (b *Buffer[T]) alive(op string) {
	if b.released {
		gpu.Fatalf(op, gpu.ErrState, "buffer %q used after release", b.label)
	}
}

func (b *Buffer[T]) checkLen(op string, n int) {
	if n != b.length {
		gpu.Fatalf(op, gpu.ErrSizeMismatch, "size mismatch: buffer len %d != argument len %d", b.length, n)
	}
}

// checkElem rejects element types whose memory cannot be copied to the device verbatim.
func checkElem[T any]() {
	t := reflect.TypeFor[T]()
	if t.Size() == 0 || hasPointers(t) {
		gpu.Fatalf("buffer.New", gpu.ErrTypeMismatch, "element type %v must be fixed-size and pointer-free", t)
	}
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return false
	case reflect.Array:
		return hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
