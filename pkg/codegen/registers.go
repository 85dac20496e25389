package codegen

import (
	"fmt"
	"math/big"

	"github.com/chazu/regc/pkg/isa"
	"github.com/chazu/regc/pkg/memory"
	"github.com/chazu/regc/pkg/regfile"
	"github.com/chazu/regc/pkg/value"
)

// ---------------------------------------------------------------------------
// Constants and the pointer register
// ---------------------------------------------------------------------------

// constCost is the number of instructions buildConst emits for n.
func constCost(n *big.Int) int {
	if n.Sign() == 0 {
		return 1
	}
	ones := 0
	for _, w := range n.Bits() {
		for ; w != 0; w &= w - 1 {
			ones++
		}
	}
	return 1 + n.BitLen() - 1 + ones
}

// buildConst sets r to n with ZERO, then SHL and INC per bit from the top.
func (c *Context) buildConst(r int, n *big.Int) {
	c.Program.Emit(isa.ZERO, r)
	for i := n.BitLen() - 1; i >= 0; i-- {
		if i != n.BitLen()-1 {
			c.Program.Emit(isa.SHL, r)
		}
		if n.Bit(i) == 1 {
			c.Program.Emit(isa.INC, r)
		}
	}
	if r == regfile.Pointer {
		c.ptr = new(big.Int).Set(n)
	}
}

// setPtr points r0 at addr, stepping from the known value when that is
// shorter than rebuilding it.
func (c *Context) setPtr(addr *big.Int) {
	if c.ptr != nil {
		diff := new(big.Int).Sub(addr, c.ptr)
		steps := new(big.Int).Abs(diff)
		if steps.IsInt64() && steps.Int64() < int64(constCost(addr)) {
			op := isa.INC
			if diff.Sign() < 0 {
				op = isa.DEC
			}
			for i := int64(0); i < steps.Int64(); i++ {
				c.Program.Emit(op, regfile.Pointer)
			}
			c.ptr.Set(addr)
			return
		}
	}
	c.buildConst(regfile.Pointer, addr)
}

func (c *Context) setPtrUint(addr uint64) {
	c.setPtr(new(big.Int).SetUint64(addr))
}

// forgetPtr marks r0 unknown. It is called at every jump target.
func (c *Context) forgetPtr() {
	c.ptr = nil
}

// ---------------------------------------------------------------------------
// Register allocation
// ---------------------------------------------------------------------------

// acquire returns a register reserved for a temporary. When none is free
// the lowest busy register is spilled.
func (c *Context) acquire() (int, error) {
	if r, ok := c.Regs.AcquireFree(); ok {
		return r, c.Regs.Reserve(r)
	}
	busy := c.Regs.Busy()
	if len(busy) == 0 {
		return 0, fmt.Errorf("%w: %d registers all hold temporaries", regfile.ErrRegisterExhaustion, c.Regs.Len()-1)
	}
	victim := busy[0]
	if err := c.spill(victim); err != nil {
		return 0, err
	}
	return victim, c.Regs.Reserve(victim)
}

// spill writes r's occupant back to memory if memory is stale and frees r.
func (c *Context) spill(r int) error {
	h, ok := c.Regs.Occupant(r)
	if !ok {
		return c.Regs.Release(r)
	}
	v, err := c.Arena.Lookup(h)
	if err != nil {
		return err
	}
	if _, placed := v.Chunk(); !placed {
		// Values without a home get a loop-scratch cell.
		if _, err := c.Space.Allocate(memory.LoopScratch, h); err != nil {
			return err
		}
	}
	if err := c.writeBack(r, h, v); err != nil {
		return err
	}
	log.Debugf("spilled r%d (%s)", r, v)
	return c.Regs.Release(r)
}

// writeBack stores r into v's cell if the symbol table marks it stale.
func (c *Context) writeBack(r int, h value.Handle, v *value.Value) error {
	cv, ok := c.Symbols.LookupByValue(c.Arena, h)
	if ok && c.Symbols.IsFresh(cv.Name) {
		return nil
	}
	addr, placed := v.Chunk()
	if !placed {
		return fmt.Errorf("%s has no memory cell", v)
	}
	c.setPtrUint(addr)
	c.Program.Emit(isa.STORE, r)
	if ok {
		c.Symbols.MarkFresh(cv.Name)
	}
	return nil
}

// flush empties the register cache: stale values are stored and every
// cached register is released. Temporaries are left alone.
func (c *Context) flush() error {
	for r := regfile.Pointer + 1; r < c.Regs.Len(); r++ {
		h, ok := c.Regs.Occupant(r)
		if !ok {
			continue
		}
		v, err := c.Arena.Lookup(h)
		if err != nil {
			return err
		}
		if err := c.writeBack(r, h, v); err != nil {
			return err
		}
		if err := c.Regs.Release(r); err != nil {
			return err
		}
	}
	return nil
}

// settle ends a command: pinned cached registers go back to Busy, plain
// temporaries are freed and dynamic element values are destroyed.
func (c *Context) settle() error {
	for _, r := range c.Regs.InUse() {
		var err error
		if _, ok := c.Regs.Occupant(r); ok {
			err = c.Regs.SetState(r, regfile.Busy)
		} else {
			err = c.Regs.Release(r)
		}
		if err != nil {
			return err
		}
	}
	for _, h := range c.dynamics {
		if _, err := c.Arena.Free(h); err != nil {
			return err
		}
	}
	c.dynamics = c.dynamics[:0]
	return nil
}

// release frees a temporary.
func (c *Context) release(rs ...int) error {
	for _, r := range rs {
		if err := c.Regs.Release(r); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Scratch cells
// ---------------------------------------------------------------------------

// scratch allocates n adjacent loop-scratch cells and returns the address
// of the first.
func (c *Context) scratch(n int) (uint64, error) {
	hs := make([]value.Handle, n)
	for i := range hs {
		hs[i] = c.Arena.New(value.NewConst(0))
	}
	addr, err := c.Space.AllocateRun(memory.LoopScratch, hs...)
	if err != nil {
		for _, h := range hs {
			c.Arena.Free(h)
		}
		return 0, err
	}
	return addr, nil
}

func (c *Context) freeScratch(addr uint64, n int) error {
	for i := 0; i < n; i++ {
		if _, err := c.Space.Free(addr + uint64(i)); err != nil {
			return err
		}
	}
	return nil
}
