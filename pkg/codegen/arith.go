package codegen

import (
	"math/big"

	"github.com/chazu/regc/compiler"
	"github.com/chazu/regc/pkg/isa"
)

// maxSteps bounds INC/DEC chains used in place of a memory operand.
const maxSteps = 16

// smallConst reports whether o is a constant of at most maxSteps.
func smallConst(o *operand) (int, bool) {
	if o.kind != opConst || !o.n.IsInt64() || o.n.Int64() > maxSteps {
		return 0, false
	}
	return int(o.n.Int64()), true
}

// powerOfTwo returns k when o is the constant 2^k.
func powerOfTwo(o *operand) (int, bool) {
	if o.kind != opConst || o.n.Sign() <= 0 {
		return 0, false
	}
	k := o.n.BitLen() - 1
	if o.n.TrailingZeroBits() != uint(k) {
		return 0, false
	}
	return k, true
}

func (c *Context) repeat(op isa.Opcode, r, n int) {
	for i := 0; i < n; i++ {
		c.Program.Emit(op, r)
	}
}

// operands resolves both sides of e; b is nil without an operator.
func (c *Context) operands(e *compiler.Expression) (a, b *operand, err error) {
	a, err = c.resolve(e.Left)
	if err != nil || e.Op == compiler.OpNone {
		return a, nil, err
	}
	b, err = c.resolve(e.Right)
	return a, b, err
}

// fold returns the value of e when both operands are known.
func fold(e *compiler.Expression, a, b *operand) (*big.Int, bool) {
	if !a.isConst() {
		return nil, false
	}
	if b == nil {
		return a.n, true
	}
	if !b.isConst() {
		return nil, false
	}
	return e.Op.Apply(a.n, b.n), true
}

// expression evaluates e into a temporary register.
func (c *Context) expression(e *compiler.Expression) (int, error) {
	a, b, err := c.operands(e)
	if err != nil {
		return 0, err
	}
	return c.evaluate(e, a, b)
}

func (c *Context) evaluate(e *compiler.Expression, a, b *operand) (int, error) {
	if n, ok := fold(e, a, b); ok {
		return c.take(constant(n))
	}
	switch e.Op {
	case compiler.OpNone:
		return c.take(a)
	case compiler.OpAdd:
		return c.add(a, b)
	case compiler.OpSub:
		return c.sub(a, b)
	case compiler.OpMul:
		return c.mul(a, b)
	case compiler.OpDiv, compiler.OpMod:
		return c.div(a, b, e.Op == compiler.OpMod)
	}
	return 0, errorAt(e, "unsupported operator %s", e.Op)
}

// addInto adds o to r.
func (c *Context) addInto(r int, o *operand) error {
	if n, ok := smallConst(o); ok {
		c.repeat(isa.INC, r, n)
		return nil
	}
	done, err := c.pointAt(o)
	if err != nil {
		return err
	}
	c.Program.Emit(isa.ADD, r)
	return done()
}

// subFrom subtracts o from r, saturating at zero.
func (c *Context) subFrom(r int, o *operand) error {
	if n, ok := smallConst(o); ok {
		c.repeat(isa.DEC, r, n)
		return nil
	}
	done, err := c.pointAt(o)
	if err != nil {
		return err
	}
	c.Program.Emit(isa.SUB, r)
	return done()
}

func (c *Context) add(a, b *operand) (int, error) {
	if a.isConst() {
		a, b = b, a
	}
	if same(a, b) {
		r, err := c.take(a)
		if err != nil {
			return 0, err
		}
		c.Program.Emit(isa.SHL, r)
		return r, nil
	}
	// A large constant is cheaper built in the result than stored.
	if _, small := smallConst(b); b.isConst() && !small {
		a, b = b, a
	}
	r, err := c.take(a)
	if err != nil {
		return 0, err
	}
	return r, c.addInto(r, b)
}

func (c *Context) sub(a, b *operand) (int, error) {
	if same(a, b) {
		return c.take(constant(new(big.Int)))
	}
	r, err := c.take(a)
	if err != nil {
		return 0, err
	}
	return r, c.subFrom(r, b)
}

// mul multiplies by shifting for powers of two and otherwise with the
// shift-and-add loop:
//
//	k:   JZERO Y k+8
//	k+1: JODD Y k+3
//	k+2: JUMP k+5
//	k+3: STORE X
//	k+4: ADD R
//	k+5: SHL X
//	k+6: SHR Y
//	k+7: JUMP k
//
// with r0 on a scratch cell throughout.
func (c *Context) mul(a, b *operand) (int, error) {
	if a.isConst() {
		a, b = b, a
	}
	if b.isConst() && b.n.Sign() == 0 {
		return c.take(constant(new(big.Int)))
	}
	if k, ok := powerOfTwo(b); ok {
		r, err := c.take(a)
		if err != nil {
			return 0, err
		}
		c.repeat(isa.SHL, r, k)
		return r, nil
	}

	x, err := c.take(a)
	if err != nil {
		return 0, err
	}
	y, err := c.take(b)
	if err != nil {
		return 0, err
	}
	res, err := c.acquire()
	if err != nil {
		return 0, err
	}
	cell, err := c.scratch(1)
	if err != nil {
		return 0, err
	}

	c.Program.Emit(isa.ZERO, res)
	c.setPtrUint(cell)
	k := c.Program.Len()
	c.Program.Emit(isa.JZERO, y, k+8)
	c.Program.Emit(isa.JODD, y, k+3)
	c.Program.Emit(isa.JUMP, k+5)
	c.Program.Emit(isa.STORE, x)
	c.Program.Emit(isa.ADD, res)
	c.Program.Emit(isa.SHL, x)
	c.Program.Emit(isa.SHR, y)
	c.Program.Emit(isa.JUMP, k)

	if err := c.release(x, y); err != nil {
		return 0, err
	}
	return res, c.freeScratch(cell, 1)
}

// div computes a / b, or a % b when mod is set, with the shift-and-subtract
// loop. Q is the quotient, R the remainder, D the shifted divisor and K
// the shift count. r0 alternates between the scratch pair s and s+1,
// holding R and D while comparing.
//
//	z:    JZERO D z+2     guard: x / 0 = x % 0 = 0
//	z+1:  JUMP u
//	z+2:  ZERO R
//	z+3:  JUMP end
//	u:    double D until it exceeds R, counting in K
//	v:    halve D K times, subtracting it from R where it fits
func (c *Context) div(a, b *operand, mod bool) (int, error) {
	if k, ok := powerOfTwo(b); ok && !mod {
		r, err := c.take(a)
		if err != nil {
			return 0, err
		}
		c.repeat(isa.SHR, r, k)
		return r, nil
	}
	if same(a, b) {
		// x/x is 1 and x%x is 0, except for x = 0 where both are 0.
		r, err := c.take(a)
		if err != nil {
			return 0, err
		}
		if mod {
			c.Program.Emit(isa.ZERO, r)
			return r, nil
		}
		k := c.Program.Len()
		c.Program.Emit(isa.JZERO, r, k+3)
		c.Program.Emit(isa.ZERO, r)
		c.Program.Emit(isa.INC, r)
		return r, nil
	}

	rem, err := c.take(a)
	if err != nil {
		return 0, err
	}
	d, err := c.take(b)
	if err != nil {
		return 0, err
	}
	q, err := c.acquire()
	if err != nil {
		return 0, err
	}
	cnt, err := c.acquire()
	if err != nil {
		return 0, err
	}
	s, err := c.scratch(2)
	if err != nil {
		return 0, err
	}

	p := c.Program
	p.Emit(isa.ZERO, q)
	p.Emit(isa.ZERO, cnt)
	c.setPtrUint(s)

	z := p.Len()
	u := z + 4
	v := u + 16
	end := v + 20

	p.Emit(isa.JZERO, d, z+2)
	p.Emit(isa.JUMP, u)
	p.Emit(isa.ZERO, rem)
	p.Emit(isa.JUMP, end)

	// u: find the first D = b*2^K above R
	p.Emit(isa.STORE, rem)
	p.Emit(isa.INC, 0)
	p.Emit(isa.STORE, d)
	p.Emit(isa.DEC, 0)
	p.Emit(isa.SUB, d)
	p.Emit(isa.JZERO, d, u+10)
	p.Emit(isa.INC, 0)
	p.Emit(isa.LOAD, d)
	p.Emit(isa.DEC, 0)
	p.Emit(isa.JUMP, v)
	p.Emit(isa.INC, 0)
	p.Emit(isa.LOAD, d)
	p.Emit(isa.DEC, 0)
	p.Emit(isa.SHL, d)
	p.Emit(isa.INC, cnt)
	p.Emit(isa.JUMP, u)

	// v: walk back down
	p.Emit(isa.JZERO, cnt, end)
	p.Emit(isa.DEC, cnt)
	p.Emit(isa.SHR, d)
	p.Emit(isa.SHL, q)
	p.Emit(isa.STORE, rem)
	p.Emit(isa.INC, 0)
	p.Emit(isa.STORE, d)
	p.Emit(isa.DEC, 0)
	p.Emit(isa.SUB, d)
	p.Emit(isa.JZERO, d, v+14)
	p.Emit(isa.INC, 0)
	p.Emit(isa.LOAD, d)
	p.Emit(isa.DEC, 0)
	p.Emit(isa.JUMP, v)
	p.Emit(isa.INC, 0)
	p.Emit(isa.LOAD, d)
	p.Emit(isa.SUB, rem)
	p.Emit(isa.DEC, 0)
	p.Emit(isa.INC, q)
	p.Emit(isa.JUMP, v)

	if err := c.freeScratch(s, 2); err != nil {
		return 0, err
	}
	if mod {
		return rem, c.release(q, d, cnt)
	}
	return q, c.release(rem, d, cnt)
}
