package codegen

import (
	"math/big"

	"github.com/chazu/regc/compiler"
	"github.com/chazu/regc/pkg/isa"
	"github.com/chazu/regc/pkg/regfile"
	"github.com/chazu/regc/pkg/symtab"
	"github.com/chazu/regc/pkg/value"
)

type operandKind uint8

const (
	opConst   operandKind = iota
	opScalar              // scalar or iterator with its own cell
	opElement             // array element at a static address
	opDynamic             // array element addressed through a variable
)

// operand is a resolved source value.
type operand struct {
	kind  operandKind
	n     *big.Int     // opConst
	cv    *symtab.Cvar // opScalar
	h     value.Handle // opScalar, opElement, opDynamic
	addr  *big.Int     // opScalar, opElement
	base  *big.Int     // opDynamic
	index *operand     // opDynamic, always an opScalar
}

func constant(n *big.Int) *operand {
	return &operand{kind: opConst, n: n}
}

func (o *operand) isConst() bool {
	return o.kind == opConst
}

// same reports whether a and b always read the same cell.
func same(a, b *operand) bool {
	switch {
	case a.kind != b.kind:
		return false
	case a.kind == opConst:
		return a.n.Cmp(b.n) == 0
	case a.kind == opDynamic:
		return a.base.Cmp(b.base) == 0 && a.index.h == b.index.h
	}
	return a.addr.Cmp(b.addr) == 0
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

func (c *Context) resolve(v compiler.Value) (*operand, error) {
	switch n := v.(type) {
	case *compiler.Number:
		return constant(n.Value), nil
	case *compiler.Identifier:
		return c.resolveIdent(n, false)
	}
	return nil, errorAt(v, "unsupported value %T", v)
}

// known reports the compile-time value of a scalar when constant
// propagation applies: straight-line code outside every construct.
func (c *Context) known(cv *symtab.Cvar) (*big.Int, bool) {
	if !c.Options.Propagate || c.depth > 0 || cv.Type != symtab.Scalar {
		return nil, false
	}
	h, _ := cv.Handle()
	v, ok := c.Arena.Get(h)
	if !ok || v.IsSymbolic() {
		return nil, false
	}
	p, _ := v.Plain()
	if p.Current == nil {
		return nil, false
	}
	return p.Current, true
}

func (c *Context) resolveIdent(id *compiler.Identifier, write bool) (*operand, error) {
	cv, ok := c.Symbols.Lookup(id.Name)
	if !ok {
		return nil, errorAt(id, "undeclared identifier '%s'", id.Name)
	}

	if h, ok := cv.Handle(); ok {
		if id.IsElement() {
			return nil, errorAt(id, "'%s' is not an array", id.Name)
		}
		if write && cv.Type == symtab.Iterator {
			return nil, errorAt(id, "cannot assign to loop variable '%s'", id.Name)
		}
		if !write {
			if n, ok := c.known(cv); ok {
				return constant(n), nil
			}
		}
		v, err := c.Arena.Lookup(h)
		if err != nil {
			return nil, err
		}
		addr, ok := v.Chunk()
		if !ok {
			return nil, errorAt(id, "'%s' has no memory cell", id.Name)
		}
		return &operand{kind: opScalar, cv: cv, h: h, addr: new(big.Int).SetUint64(addr)}, nil
	}

	arr, _ := cv.Array()
	if !id.IsElement() {
		return nil, errorAt(id, "array '%s' used without an index", id.Name)
	}

	var off *big.Int
	switch idx := id.Index.(type) {
	case *compiler.Number:
		off = idx.Value
	case *compiler.Identifier:
		io, err := c.resolveIdent(idx, false)
		if err != nil {
			return nil, err
		}
		if io.kind == opConst {
			off = io.n
			break
		}
		if io.kind != opScalar {
			return nil, errorAt(idx, "index '%s' is not a scalar", idx.Name)
		}
		plain, _ := c.Arena.Get(io.h)
		p, _ := plain.Plain()
		h := arr.Dynamic(c.Arena, p)
		c.dynamics = append(c.dynamics, h)
		return &operand{kind: opDynamic, h: h, base: arr.Base, index: io}, nil
	}

	if !arr.InRange(off) {
		return nil, errorAt(id, "index %s out of range for '%s[%s]'", off, arr.Name, arr.Length)
	}
	h, err := arr.Element(c.Arena, off)
	if err != nil {
		return nil, err
	}
	ev, err := c.Arena.Lookup(h)
	if err != nil {
		return nil, err
	}
	e, _ := ev.Element()
	addr, _ := e.Address()
	return &operand{kind: opElement, h: h, addr: addr}, nil
}

// ---------------------------------------------------------------------------
// Moving operands
// ---------------------------------------------------------------------------

// ensureFresh makes the memory cell of a scalar current.
func (c *Context) ensureFresh(o *operand) error {
	if o.kind != opScalar || c.Symbols.IsFresh(o.cv.Name) {
		return nil
	}
	v, err := c.Arena.Lookup(o.h)
	if err != nil {
		return err
	}
	r, ok := v.Register()
	if !ok {
		c.Symbols.MarkFresh(o.cv.Name)
		return nil
	}
	return c.writeBack(r, o.h, v)
}

// addressInto leaves base+index of a dynamic element in r and in r0.
func (c *Context) addressInto(r int, o *operand) error {
	if err := c.ensureFresh(o.index); err != nil {
		return err
	}
	c.buildConst(r, o.base)
	c.setPtr(o.index.addr)
	c.Program.Emit(isa.ADD, r)
	c.Program.Emit(isa.COPY, r)
	c.forgetPtr()
	return nil
}

// pointAt leaves r0 addressing a cell that holds o's value. Constants are
// written to a scratch cell; the returned function frees it.
func (c *Context) pointAt(o *operand) (func() error, error) {
	done := func() error { return nil }
	switch o.kind {
	case opConst:
		t, err := c.acquire()
		if err != nil {
			return nil, err
		}
		c.buildConst(t, o.n)
		cell, err := c.scratch(1)
		if err != nil {
			return nil, err
		}
		c.setPtrUint(cell)
		c.Program.Emit(isa.STORE, t)
		if err := c.release(t); err != nil {
			return nil, err
		}
		return func() error { return c.freeScratch(cell, 1) }, nil
	case opScalar:
		if err := c.ensureFresh(o); err != nil {
			return nil, err
		}
		c.setPtr(o.addr)
	case opElement:
		c.setPtr(o.addr)
	case opDynamic:
		t, err := c.acquire()
		if err != nil {
			return nil, err
		}
		if err := c.addressInto(t, o); err != nil {
			return nil, err
		}
		if err := c.release(t); err != nil {
			return nil, err
		}
	}
	return done, nil
}

// take returns a temporary register holding o's value that the caller
// may overwrite. A cached scalar hands over its register.
func (c *Context) take(o *operand) (int, error) {
	switch o.kind {
	case opConst:
		r, err := c.acquire()
		if err != nil {
			return 0, err
		}
		c.buildConst(r, o.n)
		return r, nil

	case opScalar:
		v, err := c.Arena.Lookup(o.h)
		if err != nil {
			return 0, err
		}
		if s, ok := v.Register(); ok {
			if err := c.writeBack(s, o.h, v); err != nil {
				return 0, err
			}
			if c.Regs.State(s) == regfile.Busy {
				if err := c.Regs.Release(s); err != nil {
					return 0, err
				}
				return s, c.Regs.Reserve(s)
			}
		}
		r, err := c.acquire()
		if err != nil {
			return 0, err
		}
		c.setPtr(o.addr)
		c.Program.Emit(isa.LOAD, r)
		return r, nil

	case opElement:
		r, err := c.acquire()
		if err != nil {
			return 0, err
		}
		c.setPtr(o.addr)
		c.Program.Emit(isa.LOAD, r)
		return r, nil

	case opDynamic:
		r, err := c.acquire()
		if err != nil {
			return 0, err
		}
		if err := c.addressInto(r, o); err != nil {
			return 0, err
		}
		c.Program.Emit(isa.LOAD, r)
		return r, nil
	}
	return 0, nil
}

// read returns a register holding o's value without giving up ownership.
// Scalars are loaded into the cache and pinned until the command settles;
// everything else goes to a temporary.
func (c *Context) read(o *operand) (int, error) {
	if o.kind != opScalar {
		return c.take(o)
	}
	v, err := c.Arena.Lookup(o.h)
	if err != nil {
		return 0, err
	}
	if r, ok := v.Register(); ok {
		return r, c.Regs.SetState(r, regfile.InUse)
	}
	r, err := c.acquire()
	if err != nil {
		return 0, err
	}
	c.setPtr(o.addr)
	c.Program.Emit(isa.LOAD, r)
	if err := c.Regs.Bind(r, o.h); err != nil {
		return 0, err
	}
	return r, c.Regs.SetState(r, regfile.InUse)
}

// store writes temporary r into the destination o. A scalar destination
// takes r over as its cached register, leaving memory stale.
func (c *Context) store(o *operand, r int) error {
	switch o.kind {
	case opScalar:
		v, err := c.Arena.Lookup(o.h)
		if err != nil {
			return err
		}
		if old, ok := v.Register(); ok && old != r {
			if err := c.Regs.Release(old); err != nil {
				return err
			}
		}
		if err := c.Regs.Bind(r, o.h); err != nil {
			return err
		}
		c.Symbols.MarkStale(o.cv.Name)
		return nil

	case opElement:
		c.setPtr(o.addr)
		c.Program.Emit(isa.STORE, r)
		return c.release(r)

	case opDynamic:
		t, err := c.acquire()
		if err != nil {
			return err
		}
		if err := c.addressInto(t, o); err != nil {
			return err
		}
		c.Program.Emit(isa.STORE, r)
		return c.release(t, r)
	}
	return nil
}
