package program

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
)

// BindingTable maps every resource a program declares to its binding point. It is built once when the
// program is linked and never changes afterwards.
type BindingTable struct {
	byName  map[string]gpu.BindingInfo
	byPoint map[uint32]gpu.BindingInfo
	ordered []gpu.BindingInfo
}

// newBindingTable merges the reflected bindings of every stage of one program. A binding declared by
// several stages is merged into one entry whose visibility covers all of them, but only if the
// declarations agree. Two different resources on one binding point, or a binding outside group 0, fail
// the link.
func newBindingTable(key string, stages ...[]gpu.BindingInfo) *BindingTable {
	t := &BindingTable{
		byName:  make(map[string]gpu.BindingInfo),
		byPoint: make(map[uint32]gpu.BindingInfo),
	}
	for _, bindings := range stages {
		for _, b := range bindings {
			if b.Group != 0 {
				gpu.Fatalf("program.New", gpu.ErrCreation, "program %q: %q is in group %d, only group 0 is supported", key, b.Name, b.Group)
			}
			prev, taken := t.byPoint[b.Binding]
			if !taken {
				t.byPoint[b.Binding] = b
				continue
			}
			if prev.Name != b.Name {
				gpu.Fatalf("program.New", gpu.ErrCreation, "program %q: binding point %d is claimed by both %q and %q", key, b.Binding, prev.Name, b.Name)
			}
			if !sameDeclaration(prev, b) {
				gpu.Fatalf("program.New", gpu.ErrCreation, "program %q: %q is declared differently across stages", key, b.Name)
			}
			prev.Visibility |= b.Visibility
			t.byPoint[b.Binding] = prev
		}
	}
	for point, b := range t.byPoint {
		if other, dup := t.byName[b.Name]; dup {
			gpu.Fatalf("program.New", gpu.ErrCreation, "program %q: %q is bound at both %d and %d", key, b.Name, other.Binding, point)
		}
		t.byName[b.Name] = b
		t.ordered = append(t.ordered, b)
	}
	slices.SortFunc(t.ordered, func(a, b gpu.BindingInfo) int { return int(a.Binding) - int(b.Binding) })
	return t
}

func sameDeclaration(a, b gpu.BindingInfo) bool {
	return a.Kind == b.Kind &&
		a.Access == b.Access &&
		a.Format == b.Format &&
		a.ElemStride == b.ElemStride &&
		a.Size == b.Size &&
		slices.Equal(a.Fields, b.Fields)
}

// Lookup returns the binding declared under name.
func (t *BindingTable) Lookup(name string) (gpu.BindingInfo, bool) {
	b, ok := t.byName[name]
	return b, ok
}

// At returns the binding declared at a binding point.
func (t *BindingTable) At(point uint32) (gpu.BindingInfo, bool) {
	b, ok := t.byPoint[point]
	return b, ok
}

// Bindings returns all bindings ordered by binding point.
func (t *BindingTable) Bindings() []gpu.BindingInfo {
	return slices.Clone(t.ordered)
}

// Len returns the number of bindings.
func (t *BindingTable) Len() int {
	return len(t.ordered)
}
