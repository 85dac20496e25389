package memory

import (
	"fmt"
	"math/big"
)

// Segment names one of the four disjoint regions of the address space.
type Segment uint8

const (
	LoopScratch Segment = iota
	Scalars
	Arrays
	Oversized
)

func (s Segment) String() string {
	switch s {
	case LoopScratch:
		return "loop"
	case Scalars:
		return "scalars"
	case Arrays:
		return "arrays"
	case Oversized:
		return "oversized"
	default:
		return fmt.Sprintf("Segment(%d)", s)
	}
}

// Range is an inclusive address range.
type Range struct {
	First uint64
	Last  uint64
}

// Size returns the number of addresses in r.
func (r Range) Size() uint64 {
	return r.Last - r.First + 1
}

// Contains reports whether addr lies in r.
func (r Range) Contains(addr uint64) bool {
	return addr >= r.First && addr <= r.Last
}

// Layout places the three fixed-width segments and the base of the
// oversized plane.
type Layout struct {
	Loop          Range
	Scalars       Range
	Arrays        Range
	OversizedBase *big.Int
}

// DefaultLayout returns the layout used when no configuration overrides it:
// 4096 loop cells, scalars up to 2^20, arrays up to 2^62 and the oversized
// plane starting at 2^64.
func DefaultLayout() Layout {
	return Layout{
		Loop:          Range{First: 0, Last: 4095},
		Scalars:       Range{First: 4096, Last: 1<<20 - 1},
		Arrays:        Range{First: 1 << 20, Last: 1<<62 - 1},
		OversizedBase: new(big.Int).Lsh(big.NewInt(1), 64),
	}
}

// Validate checks that the segments are non-empty, disjoint and ordered
// loop < scalars < arrays < oversized.
func (l Layout) Validate() error {
	segs := []struct {
		seg Segment
		r   Range
	}{{LoopScratch, l.Loop}, {Scalars, l.Scalars}, {Arrays, l.Arrays}}

	for i, s := range segs {
		if s.r.First > s.r.Last {
			return fmt.Errorf("%w: %s segment [%d, %d] is empty", ErrBadLayout, s.seg, s.r.First, s.r.Last)
		}
		if i > 0 && segs[i-1].r.Last >= s.r.First {
			return fmt.Errorf("%w: %s segment overlaps or precedes %s", ErrBadLayout, s.seg, segs[i-1].seg)
		}
	}
	if l.OversizedBase == nil {
		return fmt.Errorf("%w: missing oversized base", ErrBadLayout)
	}
	if l.OversizedBase.Cmp(new(big.Int).SetUint64(l.Arrays.Last)) <= 0 {
		return fmt.Errorf("%w: oversized base %s is not above the arrays segment", ErrBadLayout, l.OversizedBase)
	}
	return nil
}

// Range returns the range of a fixed-width segment.
func (l Layout) Range(seg Segment) (Range, bool) {
	switch seg {
	case LoopScratch:
		return l.Loop, true
	case Scalars:
		return l.Scalars, true
	case Arrays:
		return l.Arrays, true
	}
	return Range{}, false
}

// Classify returns the segment containing addr.
func (l Layout) Classify(addr *big.Int) (Segment, bool) {
	if addr.Sign() < 0 {
		return 0, false
	}
	if addr.Cmp(l.OversizedBase) >= 0 {
		return Oversized, true
	}
	if !addr.IsUint64() {
		return 0, false
	}
	a := addr.Uint64()
	for _, seg := range []Segment{LoopScratch, Scalars, Arrays} {
		if r, _ := l.Range(seg); r.Contains(a) {
			return seg, true
		}
	}
	return 0, false
}
