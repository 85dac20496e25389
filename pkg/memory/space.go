package memory

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/tliron/commonlog"

	"github.com/chazu/regc/pkg/value"
)

var log = commonlog.GetLogger("regc.memory")

// Space owns the segments of one compilation and the chunks allocated in
// them.
//
// Scalars and arrays are allocated with a counter: the next address is
// First+count, and a free decrements the count. That assumes frees arrive
// in reverse allocation order. A free out of that order does not move the
// other chunks, so a later allocation can compute the address of a chunk
// that is still live; Allocate then reports ErrAddressInUse with that
// address. The code generator never frees scalars or arrays before the end
// of a compilation, so it does not hit this.
type Space struct {
	layout Layout
	arena  *value.Arena
	chunks *ChunkTable

	scalars   uint64
	arrays    uint64
	oversized *big.Int

	// array heads in the arrays segment, keyed by base address
	heads map[uint64]*value.Array
}

// NewSpace creates an empty address space over layout.
func NewSpace(layout Layout, arena *value.Arena) (*Space, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Space{
		layout:    layout,
		arena:     arena,
		chunks:    NewChunkTable(),
		oversized: new(big.Int),
		heads:     make(map[uint64]*value.Array),
	}, nil
}

// Layout returns the segment layout.
func (s *Space) Layout() Layout {
	return s.layout
}

// Chunks returns the chunk table.
func (s *Space) Chunks() *ChunkTable {
	return s.chunks
}

// Allocated returns the allocation counter of the scalar or array segment,
// or the number of occupied loop cells.
func (s *Space) Allocated(seg Segment) uint64 {
	switch seg {
	case Scalars:
		return s.scalars
	case Arrays:
		return s.arrays
	case LoopScratch:
		var n uint64
		s.chunks.AscendRange(s.layout.Loop.First, s.layout.Loop.Last, func(uint64, value.Handle) bool {
			n++
			return true
		})
		return n
	}
	return 0
}

// OversizedTotal returns the cumulative length allocated in the oversized
// plane.
func (s *Space) OversizedTotal() *big.Int {
	return new(big.Int).Set(s.oversized)
}

func (s *Space) place(addr uint64, h value.Handle) (*value.Value, error) {
	v, err := s.arena.Lookup(h)
	if err != nil {
		return nil, err
	}
	if at, ok := v.Chunk(); ok {
		return nil, fmt.Errorf("%w: %s at %d", ErrAlreadyPlaced, v, at)
	}
	if err := s.chunks.Insert(addr, h); err != nil {
		return nil, err
	}
	v.AttachChunk(addr)
	return v, nil
}

// Allocate gives h a chunk in seg and returns its address.
func (s *Space) Allocate(seg Segment, h value.Handle) (uint64, error) {
	switch seg {
	case LoopScratch:
		return s.AllocateRun(seg, h)
	case Scalars, Arrays:
		r, _ := s.layout.Range(seg)
		count := &s.scalars
		if seg == Arrays {
			count = &s.arrays
		}
		if *count >= r.Size() {
			return 0, fmt.Errorf("%w: %s [%d, %d]", ErrSegmentExhausted, seg, r.First, r.Last)
		}
		addr := r.First + *count
		if _, err := s.place(addr, h); err != nil {
			return addr, err
		}
		*count++
		log.Debugf("allocated %s cell %d", seg, addr)
		return addr, nil
	}
	return 0, fmt.Errorf("cannot allocate a chunk in the %s segment", seg)
}

// AllocateRun gives hs adjacent loop-scratch cells, choosing the lowest run
// of free addresses, and returns the address of the first.
func (s *Space) AllocateRun(seg Segment, hs ...value.Handle) (uint64, error) {
	if seg != LoopScratch {
		return 0, fmt.Errorf("runs are only allocated in the loop segment, not %s", seg)
	}
	if len(hs) == 0 {
		return 0, errors.New("empty run")
	}
	r := s.layout.Loop
	need := uint64(len(hs))

	start := r.First
	found := false
	for start+need-1 <= r.Last && start+need-1 >= start {
		clash := uint64(0)
		hit := false
		s.chunks.AscendRange(start, start+need-1, func(addr uint64, _ value.Handle) bool {
			clash = addr
			hit = true
			return false
		})
		if !hit {
			found = true
			break
		}
		if clash == r.Last {
			break
		}
		start = clash + 1
	}
	if !found {
		return 0, fmt.Errorf("%w: %s [%d, %d] has no run of %d", ErrSegmentExhausted, seg, r.First, r.Last, need)
	}

	for i, h := range hs {
		if _, err := s.place(start+uint64(i), h); err != nil {
			for j := 0; j < i; j++ {
				s.release(start + uint64(j))
			}
			return 0, err
		}
	}
	log.Debugf("allocated loop cells [%d, %d]", start, start+need-1)
	return start, nil
}

func (s *Space) release(addr uint64) {
	if h, err := s.chunks.Remove(addr); err == nil {
		if v, ok := s.arena.Get(h); ok {
			v.DetachChunk()
		}
	}
}

// AllocateArray places arr. Arrays whose length fits the arrays segment go
// there, with one chunk at the base address holding head; longer arrays go
// to the oversized plane and own no chunk. Base and Kind of arr are set.
func (s *Space) AllocateArray(arr *value.Array, head value.Handle) error {
	if arr.Length.Sign() <= 0 {
		return fmt.Errorf("array %s has length %s", arr.Name, arr.Length)
	}

	r := s.layout.Arrays
	if arr.Length.IsUint64() && arr.Length.Uint64() <= r.Size() {
		n := arr.Length.Uint64()
		if n > r.Size()-s.arrays {
			return fmt.Errorf("%w: %s needs %d cells, %d left", ErrSegmentExhausted, Arrays, n, r.Size()-s.arrays)
		}
		addr := r.First + s.arrays
		if _, err := s.place(addr, head); err != nil {
			return err
		}
		s.arrays += n
		arr.Base = new(big.Int).SetUint64(addr)
		arr.Kind = value.ElementNative
		arr.AttachChunk(addr)
		s.heads[addr] = arr
		log.Debugf("array %s placed at %d (+%d)", arr.Name, addr, n)
		return nil
	}

	arr.Base = new(big.Int).Add(s.layout.OversizedBase, s.oversized)
	arr.Kind = value.ElementBig
	s.oversized.Add(s.oversized, arr.Length)
	log.Debugf("array %s placed in the oversized plane at %s", arr.Name, arr.Base)
	return nil
}

// Free removes the chunk at addr, destroys its occupant and returns the
// occupant's final state.
func (s *Space) Free(addr uint64) (value.Value, error) {
	h, ok := s.chunks.Lookup(addr)
	if !ok {
		return value.Value{}, fmt.Errorf("%w: %d", ErrUnknownAddress, addr)
	}

	switch {
	case s.layout.Scalars.Contains(addr):
		if s.scalars > 0 {
			s.scalars--
		}
	case s.layout.Arrays.Contains(addr):
		n := uint64(1)
		if arr, ok := s.heads[addr]; ok {
			n = arr.Length.Uint64()
			arr.DetachChunk()
			delete(s.heads, addr)
		}
		if s.arrays >= n {
			s.arrays -= n
		} else {
			s.arrays = 0
		}
	}

	if _, err := s.chunks.Remove(addr); err != nil {
		return value.Value{}, err
	}
	if v, ok := s.arena.Get(h); ok {
		v.DetachChunk()
	}
	return s.arena.Free(h)
}

// Lookup returns the value occupying addr.
func (s *Space) Lookup(addr uint64) (*value.Value, error) {
	h, ok := s.chunks.Lookup(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAddress, addr)
	}
	return s.arena.Lookup(h)
}

// Exists reports whether addr is occupied.
func (s *Space) Exists(addr uint64) bool {
	return s.chunks.Exists(addr)
}

// SegmentOf returns the fixed-width segment containing addr.
func (s *Space) SegmentOf(addr uint64) (Segment, bool) {
	return s.layout.Classify(new(big.Int).SetUint64(addr))
}

// FreeLoopSection frees every occupied loop-scratch cell and returns how
// many were freed. On error the count covers the cells freed before it.
func (s *Space) FreeLoopSection() (int, error) {
	var addrs []uint64
	s.chunks.AscendRange(s.layout.Loop.First, s.layout.Loop.Last, func(addr uint64, _ value.Handle) bool {
		addrs = append(addrs, addr)
		return true
	})
	for i, addr := range addrs {
		if _, err := s.Free(addr); err != nil {
			return i, fmt.Errorf("loop cell %d: %w", addr, err)
		}
	}
	if len(addrs) > 0 {
		log.Debugf("freed %d loop cells", len(addrs))
	}
	return len(addrs), nil
}
