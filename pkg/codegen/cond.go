package codegen

import (
	"math/big"

	"github.com/chazu/regc/compiler"
	"github.com/chazu/regc/pkg/isa"
	"github.com/chazu/regc/pkg/labels"
)

// difference evaluates x ∸ y into a temporary.
func (c *Context) difference(x, y *operand) (int, error) {
	if x.isConst() && y.isConst() {
		return c.take(constant(compiler.OpSub.Apply(x.n, y.n)))
	}
	return c.sub(x, y)
}

// distance evaluates (a ∸ b) + (b ∸ a), which is zero exactly when a = b.
func (c *Context) distance(a, b *operand) (int, error) {
	zero := big.NewInt(0)
	if b.isConst() && b.n.Cmp(zero) == 0 {
		return c.take(a)
	}
	if a.isConst() && a.n.Cmp(zero) == 0 {
		return c.take(b)
	}

	t1, err := c.difference(a, b)
	if err != nil {
		return 0, err
	}
	t2, err := c.difference(b, a)
	if err != nil {
		return 0, err
	}
	cell, err := c.scratch(1)
	if err != nil {
		return 0, err
	}
	c.setPtrUint(cell)
	c.Program.Emit(isa.STORE, t2)
	c.Program.Emit(isa.ADD, t1)
	if err := c.release(t2); err != nil {
		return 0, err
	}
	return t1, c.freeScratch(cell, 1)
}

// condition emits the test for cond and leaves one open label on the
// stack: a False label whose jump leaves the guarded code when cond does
// not hold, or a Fake label when cond always holds. The register cache is
// flushed before any jump.
func (c *Context) condition(cond *compiler.Condition) error {
	a, err := c.resolve(cond.Left)
	if err != nil {
		return err
	}
	b, err := c.resolve(cond.Right)
	if err != nil {
		return err
	}

	if a.isConst() && b.isConst() {
		if err := c.flush(); err != nil {
			return err
		}
		if cond.Rel.Holds(a.n, b.n) {
			c.Labels.Open(labels.Fake, c.Program.Len())
		} else {
			c.Labels.Open(labels.False, c.Program.EmitJump(isa.JUMP))
		}
		return c.settle()
	}

	var t int
	// zeroHolds: the relation holds when t is zero.
	var zeroHolds bool
	switch cond.Rel {
	case compiler.RelEq:
		t, err = c.distance(a, b)
		zeroHolds = true
	case compiler.RelNe:
		t, err = c.distance(a, b)
	case compiler.RelLt:
		t, err = c.difference(b, a)
	case compiler.RelGt:
		t, err = c.difference(a, b)
	case compiler.RelLe:
		t, err = c.difference(a, b)
		zeroHolds = true
	case compiler.RelGe:
		t, err = c.difference(b, a)
		zeroHolds = true
	}
	if err != nil {
		return err
	}
	if err := c.flush(); err != nil {
		return err
	}

	if zeroHolds {
		// JZERO t past the exit jump.
		c.Labels.Open(labels.True, c.Program.EmitJump(isa.JZERO, t))
		exit := c.Program.EmitJump(isa.JUMP)
		if _, err := c.Labels.Resolve(c.Program.Len()); err != nil {
			return err
		}
		c.Labels.Open(labels.False, exit)
	} else {
		c.Labels.Open(labels.False, c.Program.EmitJump(isa.JZERO, t))
	}
	c.forgetPtr()
	return c.settle()
}
