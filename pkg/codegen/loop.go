package codegen

import (
	"github.com/chazu/regc/compiler"
	"github.com/chazu/regc/pkg/isa"
	"github.com/chazu/regc/pkg/labels"
	"github.com/chazu/regc/pkg/memory"
	"github.com/chazu/regc/pkg/symtab"
	"github.com/chazu/regc/pkg/value"
)

// ForContext is the state of one FOR loop. The iterator and the
// remaining-iterations counter both live in loop-scratch cells.
type ForContext struct {
	Iterator *symtab.Cvar
	IterAddr uint64
	Counter  uint64
	Down     bool
	Start    int
}

// count evaluates the number of iterations into a temporary: to+1 ∸ from,
// or from+1 ∸ to when counting down.
func (c *Context) count(n *compiler.For, from, to *operand) (int, error) {
	lo, hi := from, to
	if n.Down {
		lo, hi = to, from
	}
	r, err := c.take(hi)
	if err != nil {
		return 0, err
	}
	c.Program.Emit(isa.INC, r)
	return r, c.subFrom(r, lo)
}

// spillTo stores temporary r into cell and frees r.
func (c *Context) spillTo(cell uint64, r int) error {
	c.setPtrUint(cell)
	c.Program.Emit(isa.STORE, r)
	return c.release(r)
}

// openFor evaluates the bounds, places the counter and the iterator and
// declares the iterator for the body.
func (c *Context) openFor(n *compiler.For) (*ForContext, error) {
	if _, dup := c.Symbols.Lookup(n.Iterator); dup {
		return nil, errorAt(n, "loop variable '%s' redeclares a name", n.Iterator)
	}
	from, err := c.resolve(n.From)
	if err != nil {
		return nil, err
	}
	to, err := c.resolve(n.To)
	if err != nil {
		return nil, err
	}

	fc := &ForContext{Down: n.Down}

	r, err := c.count(n, from, to)
	if err != nil {
		return nil, err
	}
	if fc.Counter, err = c.scratch(1); err != nil {
		return nil, err
	}
	if err := c.spillTo(fc.Counter, r); err != nil {
		return nil, err
	}

	h := c.Arena.New(value.NewPlain(n.Iterator))
	if fc.IterAddr, err = c.Space.Allocate(memory.LoopScratch, h); err != nil {
		c.Arena.Free(h)
		return nil, err
	}
	if r, err = c.take(from); err != nil {
		return nil, err
	}
	if err := c.spillTo(fc.IterAddr, r); err != nil {
		return nil, err
	}

	fc.Iterator = &symtab.Cvar{Name: n.Iterator, Type: symtab.Iterator, Binding: symtab.ValueBinding{Handle: h}}
	if err := c.Symbols.Declare(fc.Iterator); err != nil {
		return nil, err
	}
	if err := c.settle(); err != nil {
		return nil, err
	}
	c.loops++
	return fc, nil
}

// step advances the iterator, counts one iteration off and jumps back.
func (c *Context) step(fc *ForContext) error {
	t, err := c.acquire()
	if err != nil {
		return err
	}
	c.setPtrUint(fc.IterAddr)
	c.Program.Emit(isa.LOAD, t)
	if fc.Down {
		c.Program.Emit(isa.DEC, t)
	} else {
		c.Program.Emit(isa.INC, t)
	}
	c.Program.Emit(isa.STORE, t)
	c.setPtrUint(fc.Counter)
	c.Program.Emit(isa.LOAD, t)
	c.Program.Emit(isa.DEC, t)
	c.Program.Emit(isa.STORE, t)
	c.Program.Emit(isa.JUMP, fc.Start)
	return c.release(t)
}

// closeFor drops the iterator and frees both cells. Leaving the outermost
// loop empties the whole loop-scratch section.
func (c *Context) closeFor(fc *ForContext) error {
	c.Symbols.Remove(fc.Iterator.Name)
	if _, err := c.Space.Free(fc.IterAddr); err != nil {
		return err
	}
	if _, err := c.Space.Free(fc.Counter); err != nil {
		return err
	}
	c.loops--
	if c.loops > 0 {
		return nil
	}
	n, err := c.Space.FreeLoopSection()
	if n > 0 {
		log.Debugf("%d loop cells left after %s", n, fc.Iterator.Name)
	}
	return err
}

func (c *Context) forCmd(n *compiler.For) error {
	fc, err := c.openFor(n)
	if err != nil {
		return err
	}
	if err := c.flush(); err != nil {
		return err
	}
	c.forgetPtr()
	fc.Start = c.Program.Len()

	c.depth++
	defer func() { c.depth-- }()

	t, err := c.acquire()
	if err != nil {
		return err
	}
	c.setPtrUint(fc.Counter)
	c.Program.Emit(isa.LOAD, t)
	c.Labels.Open(labels.Return, c.Program.EmitJump(isa.JZERO, t))
	if err := c.release(t); err != nil {
		return err
	}

	if err := c.commands(n.Body); err != nil {
		return err
	}
	if err := c.flush(); err != nil {
		return err
	}
	if err := c.step(fc); err != nil {
		return err
	}
	if err := c.resolveHere(); err != nil {
		return err
	}
	return c.closeFor(fc)
}
