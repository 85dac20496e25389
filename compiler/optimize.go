package compiler

import "math/big"

// ---------------------------------------------------------------------------
// Natural-number arithmetic
// ---------------------------------------------------------------------------

// Apply computes a o b over the naturals: subtraction saturates at zero and
// division or modulo by zero yields zero.
func (o Operator) Apply(a, b *big.Int) *big.Int {
	r := new(big.Int)
	switch o {
	case OpNone:
		r.Set(a)
	case OpAdd:
		r.Add(a, b)
	case OpSub:
		if r.Sub(a, b); r.Sign() < 0 {
			r.SetInt64(0)
		}
	case OpMul:
		r.Mul(a, b)
	case OpDiv:
		if b.Sign() != 0 {
			r.Quo(a, b)
		}
	case OpMod:
		if b.Sign() != 0 {
			r.Rem(a, b)
		}
	}
	return r
}

// Holds reports whether a r b.
func (r Relation) Holds(a, b *big.Int) bool {
	c := a.Cmp(b)
	switch r {
	case RelEq:
		return c == 0
	case RelNe:
		return c != 0
	case RelLt:
		return c < 0
	case RelGt:
		return c > 0
	case RelLe:
		return c <= 0
	case RelGe:
		return c >= 0
	}
	return false
}

// Static reports whether c compares two numbers, and if so its outcome.
func (c *Condition) Static() (holds, ok bool) {
	l, lok := c.Left.(*Number)
	r, rok := c.Right.(*Number)
	if !lok || !rok {
		return false, false
	}
	return c.Rel.Holds(l.Value, r.Value), true
}

// ---------------------------------------------------------------------------
// Optimizer
// ---------------------------------------------------------------------------

// Optimize rewrites prog in place: it folds arithmetic on constants and
// algebraic identities, decides comparisons of a value with itself, and
// removes branches and loops whose condition is decided statically.
func Optimize(prog *Program) *Program {
	prog.Body = optimizeCommands(prog.Body)
	return prog
}

func optimizeCommands(cmds []Command) []Command {
	out := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, optimizeCommand(c)...)
	}
	return out
}

func optimizeCommand(cmd Command) []Command {
	switch c := cmd.(type) {
	case *Assign:
		c.Expr = foldExpression(c.Expr)
		// x := x is a no-op.
		if c.Expr.Op == OpNone && sameValue(c.Target, c.Expr.Left) {
			return nil
		}
	case *If:
		foldCondition(c.Cond)
		c.Then = optimizeCommands(c.Then)
		c.Else = optimizeCommands(c.Else)
		if holds, ok := c.Cond.Static(); ok {
			if holds {
				return c.Then
			}
			return c.Else
		}
	case *While:
		foldCondition(c.Cond)
		c.Body = optimizeCommands(c.Body)
		if holds, ok := c.Cond.Static(); ok && !holds {
			return nil
		}
	case *For:
		c.Body = optimizeCommands(c.Body)
		from, fok := c.From.(*Number)
		to, tok := c.To.(*Number)
		if fok && tok {
			empty := from.Value.Cmp(to.Value) > 0
			if c.Down {
				empty = from.Value.Cmp(to.Value) < 0
			}
			if empty {
				return nil
			}
		}
	}
	return []Command{cmd}
}

func number(span Span, n *big.Int) *Number {
	return &Number{SpanVal: span, Value: n}
}

func isNumber(v Value, n int64) bool {
	num, ok := v.(*Number)
	return ok && num.Value.Cmp(big.NewInt(n)) == 0
}

// sameValue reports whether a and b always denote the same cell.
func sameValue(a, b Value) bool {
	ia, ok := a.(*Identifier)
	if !ok {
		return false
	}
	ib, ok := b.(*Identifier)
	if !ok || ia.Name != ib.Name {
		return false
	}
	if ia.Index == nil || ib.Index == nil {
		return ia.Index == nil && ib.Index == nil
	}
	switch x := ia.Index.(type) {
	case *Number:
		y, ok := ib.Index.(*Number)
		return ok && x.Value.Cmp(y.Value) == 0
	case *Identifier:
		y, ok := ib.Index.(*Identifier)
		return ok && x.Name == y.Name
	}
	return false
}

func bare(e *Expression, v Value) *Expression {
	return &Expression{SpanVal: e.SpanVal, Left: v}
}

func foldExpression(e *Expression) *Expression {
	if e.Op == OpNone {
		return e
	}
	l, lok := e.Left.(*Number)
	r, rok := e.Right.(*Number)
	if lok && rok {
		return bare(e, number(e.SpanVal, e.Op.Apply(l.Value, r.Value)))
	}

	zero := number(e.SpanVal, new(big.Int))
	switch e.Op {
	case OpAdd:
		if isNumber(e.Right, 0) {
			return bare(e, e.Left)
		}
		if isNumber(e.Left, 0) {
			return bare(e, e.Right)
		}
	case OpSub:
		if isNumber(e.Right, 0) {
			return bare(e, e.Left)
		}
		if isNumber(e.Left, 0) || sameValue(e.Left, e.Right) {
			return bare(e, zero)
		}
	case OpMul:
		if isNumber(e.Left, 0) || isNumber(e.Right, 0) {
			return bare(e, zero)
		}
		if isNumber(e.Right, 1) {
			return bare(e, e.Left)
		}
		if isNumber(e.Left, 1) {
			return bare(e, e.Right)
		}
	case OpDiv:
		if isNumber(e.Right, 0) || isNumber(e.Left, 0) {
			return bare(e, zero)
		}
		if isNumber(e.Right, 1) {
			return bare(e, e.Left)
		}
	case OpMod:
		if isNumber(e.Right, 0) || isNumber(e.Right, 1) || isNumber(e.Left, 0) {
			return bare(e, zero)
		}
	}
	return e
}

// foldCondition replaces a comparison of a value with itself by a
// comparison of two constants with the same outcome.
func foldCondition(c *Condition) {
	if !sameValue(c.Left, c.Right) {
		return
	}
	zero := func() *Number { return number(c.SpanVal, new(big.Int)) }
	c.Left, c.Right = zero(), zero()
	switch c.Rel {
	case RelEq, RelLe, RelGe:
		c.Rel = RelEq
	default:
		c.Rel = RelNe
	}
}
