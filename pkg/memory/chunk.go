// Package memory partitions the target machine's address space among the
// values of one compilation.
//
// A ChunkTable records which value occupies each used address. A Space owns
// the four segments (loop scratch, scalars, arrays and the arbitrary-precision
// oversized plane) and the allocation policy of each.
package memory

import (
	"errors"
	"fmt"

	"github.com/chazu/regc/pkg/ordered"
	"github.com/chazu/regc/pkg/value"
)

var (
	// ErrSegmentExhausted is returned when a fixed-width segment is full.
	ErrSegmentExhausted = errors.New("segment exhausted")
	// ErrUnknownAddress is returned when no chunk occupies an address.
	ErrUnknownAddress = errors.New("unknown address")
	// ErrAddressInUse is returned when a chunk already occupies an address.
	ErrAddressInUse = errors.New("address already in use")
	// ErrAlreadyPlaced is returned when a value already owns a chunk.
	ErrAlreadyPlaced = errors.New("value already has a chunk")
	// ErrBadLayout is returned for overlapping or unordered segments.
	ErrBadLayout = errors.New("invalid memory layout")
)

// ChunkTable is an ordered index from address to occupant.
type ChunkTable struct {
	m *ordered.Map[uint64, value.Handle]
}

// NewChunkTable creates an empty table.
func NewChunkTable() *ChunkTable {
	return &ChunkTable{m: ordered.New[uint64, value.Handle]()}
}

// Insert records h at addr.
func (t *ChunkTable) Insert(addr uint64, h value.Handle) error {
	if err := t.m.Insert(addr, h); err != nil {
		return fmt.Errorf("%w: %d", ErrAddressInUse, addr)
	}
	return nil
}

// Remove deletes the chunk at addr and returns its occupant.
func (t *ChunkTable) Remove(addr uint64) (value.Handle, error) {
	h, ok := t.m.Delete(addr)
	if !ok {
		return value.Nil, fmt.Errorf("%w: %d", ErrUnknownAddress, addr)
	}
	return h, nil
}

// Lookup returns the occupant of addr.
func (t *ChunkTable) Lookup(addr uint64) (value.Handle, bool) {
	return t.m.Get(addr)
}

// Exists reports whether addr is occupied.
func (t *ChunkTable) Exists(addr uint64) bool {
	return t.m.Has(addr)
}

// Len returns the number of occupied addresses.
func (t *ChunkTable) Len() int {
	return t.m.Len()
}

// Ascend visits chunks in address order until fn returns false.
func (t *ChunkTable) Ascend(fn func(addr uint64, h value.Handle) bool) {
	t.m.Ascend(fn)
}

// AscendRange visits chunks with lo <= addr <= hi in address order.
func (t *ChunkTable) AscendRange(lo, hi uint64, fn func(addr uint64, h value.Handle) bool) {
	t.m.AscendRange(lo, hi, fn)
}
