package memory

import (
	"errors"
	"math/big"
	"testing"

	"github.com/chazu/regc/pkg/value"
)

func smallLayout() Layout {
	return Layout{
		Loop:          Range{First: 0, Last: 7},
		Scalars:       Range{First: 10, Last: 19},
		Arrays:        Range{First: 100, Last: 199},
		OversizedBase: new(big.Int).Lsh(big.NewInt(1), 64),
	}
}

func newSpace(t *testing.T, l Layout) (*Space, *value.Arena) {
	t.Helper()
	arena := value.NewArena()
	s, err := NewSpace(l, arena)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	return s, arena
}

func TestChunkRoundTrip(t *testing.T) {
	s, arena := newSpace(t, smallLayout())

	var addrs []uint64
	var hs []value.Handle
	for i := 0; i < 4; i++ {
		h := arena.New(value.NewPlain("x"))
		addr, err := s.Allocate(Scalars, h)
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		addrs = append(addrs, addr)
		hs = append(hs, h)
	}

	for i, addr := range addrs {
		v, err := s.Lookup(addr)
		if err != nil {
			t.Fatalf("Lookup(%d): %v", addr, err)
		}
		want, _ := arena.Get(hs[i])
		if v != want {
			t.Errorf("Lookup(%d) returned a different value", addr)
		}
		if at, ok := v.Chunk(); !ok || at != addr {
			t.Errorf("value chunk = %d, %v, want %d", at, ok, addr)
		}
	}

	// Stack-order frees.
	for i := len(addrs) - 1; i >= 0; i-- {
		if _, err := s.Free(addrs[i]); err != nil {
			t.Fatalf("Free(%d): %v", addrs[i], err)
		}
		if s.Exists(addrs[i]) {
			t.Errorf("address %d still exists after Free", addrs[i])
		}
		if _, ok := arena.Get(hs[i]); ok {
			t.Errorf("value at %d survived Free", addrs[i])
		}
	}
	if s.Allocated(Scalars) != 0 {
		t.Errorf("scalar counter = %d after freeing all", s.Allocated(Scalars))
	}
}

func TestScalarAddressesAreCounterBased(t *testing.T) {
	s, arena := newSpace(t, smallLayout())
	for i := uint64(0); i < 3; i++ {
		addr, err := s.Allocate(Scalars, arena.New(value.NewPlain("x")))
		if err != nil {
			t.Fatal(err)
		}
		if addr != 10+i {
			t.Errorf("allocation %d at %d, want %d", i, addr, 10+i)
		}
	}
}

// Freeing out of stack order leaves the counter pointing at a live chunk.
// The next allocation computes that address and reports the collision.
func TestOutOfOrderScalarFreeCollides(t *testing.T) {
	l := Layout{
		Loop:          Range{First: 0, Last: 0},
		Scalars:       Range{First: 1, Last: 10},
		Arrays:        Range{First: 100, Last: 199},
		OversizedBase: new(big.Int).Lsh(big.NewInt(1), 64),
	}
	s, arena := newSpace(t, l)

	first := l.Scalars.First
	var hs []value.Handle
	for i := 0; i < 3; i++ {
		h := arena.New(value.NewPlain("x"))
		if _, err := s.Allocate(Scalars, h); err != nil {
			t.Fatal(err)
		}
		hs = append(hs, h)
	}

	if _, err := s.Free(first + 1); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if s.Allocated(Scalars) != 2 {
		t.Fatalf("counter = %d, want 2", s.Allocated(Scalars))
	}

	addr, err := s.Allocate(Scalars, arena.New(value.NewPlain("y")))
	if addr != first+2 {
		t.Errorf("computed address %d, want %d", addr, first+2)
	}
	if !errors.Is(err, ErrAddressInUse) {
		t.Fatalf("err = %v, want ErrAddressInUse", err)
	}

	// The live chunk at first+2 is untouched.
	v, err := s.Lookup(first + 2)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := arena.Get(hs[2])
	if v != want {
		t.Error("collision replaced the live chunk")
	}
}

func TestSegmentExhausted(t *testing.T) {
	s, arena := newSpace(t, smallLayout())
	for i := 0; i < 10; i++ {
		if _, err := s.Allocate(Scalars, arena.New(value.NewPlain("x"))); err != nil {
			t.Fatalf("allocation %d: %v", i, err)
		}
	}
	if _, err := s.Allocate(Scalars, arena.New(value.NewPlain("x"))); !errors.Is(err, ErrSegmentExhausted) {
		t.Errorf("err = %v, want ErrSegmentExhausted", err)
	}

	for i := 0; i < 8; i++ {
		if _, err := s.Allocate(LoopScratch, arena.New(value.NewConst(0))); err != nil {
			t.Fatalf("loop allocation %d: %v", i, err)
		}
	}
	if _, err := s.Allocate(LoopScratch, arena.New(value.NewConst(0))); !errors.Is(err, ErrSegmentExhausted) {
		t.Errorf("loop err = %v, want ErrSegmentExhausted", err)
	}
}

func TestFreeUnknownAddress(t *testing.T) {
	s, _ := newSpace(t, smallLayout())
	if _, err := s.Free(12); !errors.Is(err, ErrUnknownAddress) {
		t.Errorf("Free err = %v, want ErrUnknownAddress", err)
	}
	if _, err := s.Lookup(12); !errors.Is(err, ErrUnknownAddress) {
		t.Errorf("Lookup err = %v, want ErrUnknownAddress", err)
	}
}

func TestValueCannotOwnTwoChunks(t *testing.T) {
	s, arena := newSpace(t, smallLayout())
	h := arena.New(value.NewPlain("x"))
	if _, err := s.Allocate(Scalars, h); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Allocate(LoopScratch, h); !errors.Is(err, ErrAlreadyPlaced) {
		t.Errorf("err = %v, want ErrAlreadyPlaced", err)
	}
}

func TestLoopScratchReusesLowestFreeAddress(t *testing.T) {
	s, arena := newSpace(t, smallLayout())
	var addrs []uint64
	for i := 0; i < 3; i++ {
		addr, err := s.Allocate(LoopScratch, arena.New(value.NewConst(0)))
		if err != nil {
			t.Fatal(err)
		}
		addrs = append(addrs, addr)
	}
	if _, err := s.Free(addrs[1]); err != nil {
		t.Fatal(err)
	}
	addr, err := s.Allocate(LoopScratch, arena.New(value.NewConst(0)))
	if err != nil {
		t.Fatal(err)
	}
	if addr != addrs[1] {
		t.Errorf("reallocated %d, want freed middle address %d", addr, addrs[1])
	}
}

func TestAllocateRunSkipsHoles(t *testing.T) {
	s, arena := newSpace(t, smallLayout())
	var addrs []uint64
	for i := 0; i < 4; i++ {
		addr, _ := s.Allocate(LoopScratch, arena.New(value.NewConst(0)))
		addrs = append(addrs, addr)
	}
	// Holes at 1 and from 3 upward.
	s.Free(addrs[1])
	s.Free(addrs[3])

	start, err := s.AllocateRun(LoopScratch, arena.New(value.NewConst(0)), arena.New(value.NewConst(0)))
	if err != nil {
		t.Fatal(err)
	}
	if start != 3 {
		t.Errorf("run starts at %d, want 3", start)
	}
	if !s.Exists(3) || !s.Exists(4) {
		t.Error("run cells not occupied")
	}
}

func TestFreeLoopSection(t *testing.T) {
	s, arena := newSpace(t, smallLayout())
	for i := 0; i < 5; i++ {
		s.Allocate(LoopScratch, arena.New(value.NewConst(0)))
	}
	scalar, _ := s.Allocate(Scalars, arena.New(value.NewPlain("x")))

	n, err := s.FreeLoopSection()
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("freed %d, want 5", n)
	}
	if s.Allocated(LoopScratch) != 0 {
		t.Error("loop cells remain")
	}
	if !s.Exists(scalar) {
		t.Error("FreeLoopSection freed a scalar")
	}
}

func TestFreeLoopSectionPartial(t *testing.T) {
	s, arena := newSpace(t, smallLayout())
	var hs []value.Handle
	for i := 0; i < 3; i++ {
		h := arena.New(value.NewConst(uint64(i)))
		if _, err := s.Allocate(LoopScratch, h); err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		hs = append(hs, h)
	}
	// Destroying the occupant behind the space's back makes the second
	// cell fail to free.
	if _, err := arena.Free(hs[1]); err != nil {
		t.Fatal(err)
	}

	n, err := s.FreeLoopSection()
	if !errors.Is(err, value.ErrStaleHandle) {
		t.Fatalf("err = %v, want ErrStaleHandle", err)
	}
	if n != 1 {
		t.Errorf("freed %d before the error, want 1", n)
	}
	if s.Exists(0) {
		t.Error("cell 0 still occupied")
	}
	if !s.Exists(2) {
		t.Error("cell 2 freed after the error")
	}
}

func TestSegmentsAreDisjoint(t *testing.T) {
	l := smallLayout()
	s, arena := newSpace(t, l)

	live := map[uint64]bool{}
	record := func(addr uint64, err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		if live[addr] {
			t.Fatalf("address %d handed out twice", addr)
		}
		live[addr] = true
	}
	for i := 0; i < 5; i++ {
		record(s.Allocate(LoopScratch, arena.New(value.NewConst(0))))
		record(s.Allocate(Scalars, arena.New(value.NewPlain("x"))))
	}
	for i := 0; i < 3; i++ {
		arr := value.NewArray("a", big.NewInt(7))
		head, _ := arr.Element(arena, big.NewInt(0))
		if err := s.AllocateArray(arr, head); err != nil {
			t.Fatal(err)
		}
		record(arr.Base.Uint64(), nil)
	}

	for addr := range live {
		seg, ok := s.SegmentOf(addr)
		if !ok || seg == Oversized {
			t.Errorf("address %d classified as %v, %v", addr, seg, ok)
		}
	}
}

func TestArraysAdvanceByLength(t *testing.T) {
	s, arena := newSpace(t, smallLayout())
	a := value.NewArray("a", big.NewInt(10))
	ha, _ := a.Element(arena, big.NewInt(0))
	b := value.NewArray("b", big.NewInt(5))
	hb, _ := b.Element(arena, big.NewInt(0))

	if err := s.AllocateArray(a, ha); err != nil {
		t.Fatal(err)
	}
	if err := s.AllocateArray(b, hb); err != nil {
		t.Fatal(err)
	}
	if a.Base.Uint64() != 100 || b.Base.Uint64() != 110 {
		t.Errorf("bases = %s, %s, want 100, 110", a.Base, b.Base)
	}
	if addr, ok := a.Chunk(); !ok || addr != 100 {
		t.Errorf("array chunk = %d, %v", addr, ok)
	}

	if _, err := s.Free(110); err != nil {
		t.Fatal(err)
	}
	if s.Allocated(Arrays) != 10 {
		t.Errorf("array counter = %d after freeing b, want 10", s.Allocated(Arrays))
	}
	if _, ok := b.Chunk(); ok {
		t.Error("freed array kept its chunk")
	}
}

func TestArrayLongerThanRemainingSpaceIsExhausted(t *testing.T) {
	s, arena := newSpace(t, smallLayout())
	a := value.NewArray("a", big.NewInt(60))
	ha, _ := a.Element(arena, big.NewInt(0))
	if err := s.AllocateArray(a, ha); err != nil {
		t.Fatal(err)
	}
	b := value.NewArray("b", big.NewInt(60))
	hb, _ := b.Element(arena, big.NewInt(0))
	if err := s.AllocateArray(b, hb); !errors.Is(err, ErrSegmentExhausted) {
		t.Errorf("err = %v, want ErrSegmentExhausted", err)
	}
}

func TestOversizedArrayAddressing(t *testing.T) {
	l := smallLayout()
	s, arena := newSpace(t, l)

	// Fill some fixed-width space first; it must not affect the plane.
	for i := 0; i < 4; i++ {
		s.Allocate(Scalars, arena.New(value.NewPlain("x")))
	}
	small := value.NewArray("s", big.NewInt(50))
	hs, _ := small.Element(arena, big.NewInt(0))
	s.AllocateArray(small, hs)

	length := new(big.Int).Lsh(big.NewInt(1), 65)
	huge := value.NewArray("h", length)
	hh, _ := huge.Element(arena, big.NewInt(0))
	if err := s.AllocateArray(huge, hh); err != nil {
		t.Fatal(err)
	}
	if huge.Kind != value.ElementBig {
		t.Error("huge array not marked big")
	}
	if huge.Base.Cmp(l.OversizedBase) != 0 {
		t.Errorf("first oversized base = %s, want %s", huge.Base, l.OversizedBase)
	}
	if _, ok := huge.Chunk(); ok {
		t.Error("oversized array owns a chunk")
	}

	second := value.NewArray("g", big.NewInt(1000))
	hg, _ := second.Element(arena, big.NewInt(0))
	if err := s.AllocateArray(second, hg); err != nil {
		t.Fatal(err)
	}
	want := new(big.Int).Add(l.OversizedBase, length)
	if second.Base.Cmp(want) != 0 {
		t.Errorf("second oversized base = %s, want %s", second.Base, want)
	}
	if seg, _ := l.Classify(second.Base); seg != Oversized {
		t.Errorf("second base classified as %s", seg)
	}
	if s.OversizedTotal().Cmp(new(big.Int).Add(length, big.NewInt(1000))) != 0 {
		t.Errorf("OversizedTotal = %s", s.OversizedTotal())
	}
}

func TestLayoutValidate(t *testing.T) {
	if err := DefaultLayout().Validate(); err != nil {
		t.Errorf("default layout invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Layout)
	}{
		{"overlap", func(l *Layout) { l.Scalars.First = 5 }},
		{"empty", func(l *Layout) { l.Arrays.Last = l.Arrays.First - 1 }},
		{"no base", func(l *Layout) { l.OversizedBase = nil }},
		{"low base", func(l *Layout) { l.OversizedBase = big.NewInt(150) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := smallLayout()
			tt.mutate(&l)
			if err := l.Validate(); !errors.Is(err, ErrBadLayout) {
				t.Errorf("err = %v, want ErrBadLayout", err)
			}
		})
	}
}
