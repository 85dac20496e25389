package value

import (
	"errors"
	"fmt"
)

// ErrStaleHandle is returned when a handle refers to a value that has been
// destroyed, or was never issued by the arena.
var ErrStaleHandle = errors.New("stale value handle")

// Handle refers to a Value owned by an Arena. The generation makes handles
// to destroyed values detectable after their slot is reused.
type Handle struct {
	index uint32
	gen   uint32
}

// Nil is the zero handle; it never refers to a value.
var Nil Handle

// IsNil reports whether h is the zero handle.
func (h Handle) IsNil() bool {
	return h.gen == 0
}

func (h Handle) String() string {
	if h.IsNil() {
		return "v<nil>"
	}
	return fmt.Sprintf("v%d.%d", h.index, h.gen)
}

type slot struct {
	gen uint32
	v   *Value
}

// Arena owns every Value of one compilation. Registers, chunks and symbols
// hold Handles into it; nothing else owns a Value.
type Arena struct {
	slots []slot
	free  []uint32
	live  int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// New stores a fresh, unbound value with payload p and returns its handle.
func (a *Arena) New(p Payload) Handle {
	v := &Value{payload: p, reg: noRegister}
	a.live++

	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.gen++
		s.v = v
		return Handle{index: idx, gen: s.gen}
	}

	a.slots = append(a.slots, slot{gen: 1, v: v})
	return Handle{index: uint32(len(a.slots) - 1), gen: 1}
}

// Get returns the value behind h.
func (a *Arena) Get(h Handle) (*Value, bool) {
	if h.IsNil() || int(h.index) >= len(a.slots) {
		return nil, false
	}
	s := a.slots[h.index]
	if s.gen != h.gen || s.v == nil {
		return nil, false
	}
	return s.v, true
}

// Lookup is Get with an error for callers that propagate failures.
func (a *Arena) Lookup(h Handle) (*Value, error) {
	v, ok := a.Get(h)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	return v, nil
}

// Free destroys the value behind h and returns its final state. Any handle
// still pointing at it becomes stale.
func (a *Arena) Free(h Handle) (Value, error) {
	v, err := a.Lookup(h)
	if err != nil {
		return Value{}, err
	}
	last := *v
	a.slots[h.index].v = nil
	a.free = append(a.free, h.index)
	a.live--
	return last, nil
}

// Copy creates an independent value with the same logical content as h and
// no register or chunk binding.
func (a *Arena) Copy(h Handle) (Handle, error) {
	v, err := a.Lookup(h)
	if err != nil {
		return Nil, err
	}
	return a.New(copyPayload(v.payload)), nil
}

// Live returns the number of values currently owned by the arena.
func (a *Arena) Live() int {
	return a.live
}

// Each calls fn for every live value in slot order until fn returns false.
func (a *Arena) Each(fn func(Handle, *Value) bool) {
	for i, s := range a.slots {
		if s.v == nil {
			continue
		}
		if !fn(Handle{index: uint32(i), gen: s.gen}, s.v) {
			return
		}
	}
}
