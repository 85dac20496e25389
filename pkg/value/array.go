package value

import (
	"fmt"
	"math/big"
)

// ElementKind says whether an array's addresses fit the fixed-width segments
// or live in the oversized plane.
type ElementKind uint8

const (
	ElementNative ElementKind = iota
	ElementBig
)

func (k ElementKind) String() string {
	if k == ElementBig {
		return "big"
	}
	return "native"
}

// Array is a declared array. Base and Kind are filled in when the address
// space places it; Elements holds the static elements created so far, in
// creation order.
type Array struct {
	Name     string
	Length   *big.Int
	Base     *big.Int
	Kind     ElementKind
	Elements []Handle

	chunk    uint64
	hasChunk bool
}

// NewArray creates an unplaced array of the given length.
func NewArray(name string, length *big.Int) *Array {
	return &Array{Name: name, Length: new(big.Int).Set(length)}
}

// InRange reports whether 0 <= off < Length.
func (a *Array) InRange(off *big.Int) bool {
	return off.Sign() >= 0 && off.Cmp(a.Length) < 0
}

// Chunk returns the address of the chunk owning the array, if it has one.
// Arrays in the oversized plane have none.
func (a *Array) Chunk() (uint64, bool) {
	return a.chunk, a.hasChunk
}

// AttachChunk records the array's owning chunk. Only the address space calls it.
func (a *Array) AttachChunk(addr uint64) {
	a.chunk = addr
	a.hasChunk = true
}

// DetachChunk clears the owning chunk. Only the address space calls it.
func (a *Array) DetachChunk() {
	a.chunk = 0
	a.hasChunk = false
}

func (a *Array) newSlot(label string) *PlainVariable {
	slot := NewPlain(label)
	slot.big = a.Kind == ElementBig
	return slot
}

// Element returns the static element at off, creating and recording it on
// first use.
func (a *Array) Element(arena *Arena, off *big.Int) (Handle, error) {
	if !a.InRange(off) {
		return Nil, fmt.Errorf("index %s out of range for %s[%s]", off, a.Name, a.Length)
	}
	for _, h := range a.Elements {
		v, ok := arena.Get(h)
		if !ok {
			continue
		}
		if e, ok := v.Element(); ok && e.Offset.Cmp(off) == 0 {
			return h, nil
		}
	}
	h := arena.New(&ArrayElement{
		Slot:   a.newSlot(fmt.Sprintf("%s[%s]", a.Name, off)),
		Offset: new(big.Int).Set(off),
		Array:  a,
	})
	a.Elements = append(a.Elements, h)
	return h, nil
}

// Dynamic creates an element addressed through index. Dynamic elements are
// not recorded in Elements; the caller frees them after use.
func (a *Array) Dynamic(arena *Arena, index *PlainVariable) Handle {
	return arena.New(&ArrayElement{
		Slot:   a.newSlot(fmt.Sprintf("%s[%s]", a.Name, index.Name)),
		Offset: new(big.Int),
		Index:  index,
		Array:  a,
	})
}
