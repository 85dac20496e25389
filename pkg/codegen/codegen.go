package codegen

import (
	"fmt"
	"math/big"

	"github.com/chazu/regc/compiler"
	"github.com/chazu/regc/pkg/isa"
	"github.com/chazu/regc/pkg/labels"
	"github.com/chazu/regc/pkg/memory"
	"github.com/chazu/regc/pkg/symtab"
	"github.com/chazu/regc/pkg/value"
)

// Result is the output of one compilation.
type Result struct {
	ID         string
	Registers  int
	Program    *isa.Program
	Placements []Placement
}

// Generate compiles prog with a fresh context.
func Generate(prog *compiler.Program, opts Options) (*Result, error) {
	c, err := NewContext(opts)
	if err != nil {
		return nil, err
	}
	if err := c.Generate(prog); err != nil {
		return nil, err
	}
	return &Result{
		ID:         c.ID.String(),
		Registers:  opts.Registers,
		Program:    c.Program,
		Placements: c.Placements(),
	}, nil
}

// Generate emits prog into the context's program, ending with HALT.
func (c *Context) Generate(prog *compiler.Program) error {
	if err := c.declare(prog.Decls); err != nil {
		return err
	}
	if err := c.commands(prog.Body); err != nil {
		return err
	}
	c.Program.Emit(isa.HALT)

	if d := c.Labels.Depth(); d != 0 {
		return fmt.Errorf("%w: %d labels left open", labels.ErrControlFlowImbalance, d)
	}
	log.Debugf("compilation %s: %d instructions", c.ID, c.Program.Len())
	return nil
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (c *Context) declare(decls []*compiler.Decl) error {
	for _, d := range decls {
		if _, dup := c.Symbols.Lookup(d.Name); dup {
			return errorAt(d, "'%s' declared twice", d.Name)
		}

		if !d.IsArray() {
			h := c.Arena.New(value.NewPlain(d.Name))
			addr, err := c.Space.Allocate(memory.Scalars, h)
			if err != nil {
				return fmt.Errorf("placing %s: %w", d.Name, err)
			}
			if err := c.Symbols.Declare(&symtab.Cvar{Name: d.Name, Type: symtab.Scalar, Binding: symtab.ValueBinding{Handle: h}}); err != nil {
				return err
			}
			c.placements = append(c.placements, Placement{
				Name:    d.Name,
				Segment: memory.Scalars,
				Address: new(big.Int).SetUint64(addr),
			})
			continue
		}

		if d.Length.Sign() == 0 {
			return errorAt(d, "array '%s' has length 0", d.Name)
		}
		arr := value.NewArray(d.Name, d.Length)
		head, err := arr.Element(c.Arena, new(big.Int))
		if err != nil {
			return err
		}
		if err := c.Space.AllocateArray(arr, head); err != nil {
			return fmt.Errorf("placing %s: %w", d.Name, err)
		}
		if arr.Kind == value.ElementBig {
			if hv, ok := c.Arena.Get(head); ok {
				p, _ := hv.Plain()
				p.SetBig(true)
			}
		}
		if err := c.Symbols.Declare(&symtab.Cvar{Name: d.Name, Type: symtab.ArrayType, Binding: symtab.ArrayBinding{Array: arr}}); err != nil {
			return err
		}
		seg := memory.Arrays
		if arr.Kind == value.ElementBig {
			seg = memory.Oversized
		}
		c.placements = append(c.placements, Placement{
			Name:    d.Name,
			Segment: seg,
			Address: new(big.Int).Set(arr.Base),
			Length:  new(big.Int).Set(arr.Length),
		})
	}
	return nil
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func (c *Context) commands(cmds []compiler.Command) error {
	for _, cmd := range cmds {
		if err := c.command(cmd); err != nil {
			return err
		}
		if err := c.settle(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) command(cmd compiler.Command) error {
	switch n := cmd.(type) {
	case *compiler.Assign:
		return c.assign(n)
	case *compiler.Read:
		return c.readCmd(n)
	case *compiler.Write:
		return c.write(n)
	case *compiler.If:
		return c.ifCmd(n)
	case *compiler.While:
		return c.while(n)
	case *compiler.For:
		return c.forCmd(n)
	case *compiler.Skip:
		return nil
	}
	return errorAt(cmd, "unsupported command %T", cmd)
}

// remember records what is known about a scalar after it is written.
// Outside every construct an assignment of a constant makes the value
// known; anything else makes it symbolic.
func (c *Context) remember(dst *operand, n *big.Int, text string) error {
	if dst.kind != opScalar {
		return nil
	}
	v, err := c.Arena.Lookup(dst.h)
	if err != nil {
		return err
	}
	if err := v.ResetSymbolic(); err != nil {
		return err
	}
	p, _ := v.Plain()
	if n != nil && c.depth == 0 {
		p.Current = new(big.Int).Set(n)
		return nil
	}
	p.Current = nil
	v.AddSymbolic(text)
	v.SetSymbolic()
	return nil
}

func exprText(e *compiler.Expression) string {
	text := valueText(e.Left)
	if e.Op != compiler.OpNone {
		text += " " + e.Op.String() + " " + valueText(e.Right)
	}
	return text
}

func valueText(v compiler.Value) string {
	switch n := v.(type) {
	case *compiler.Number:
		return n.Value.String()
	case *compiler.Identifier:
		return n.String()
	}
	return "?"
}

func (c *Context) assign(n *compiler.Assign) error {
	dst, err := c.resolveIdent(n.Target, true)
	if err != nil {
		return err
	}

	a, b, err := c.operands(n.Expr)
	if err != nil {
		return err
	}
	folded, _ := fold(n.Expr, a, b)
	r, err := c.evaluate(n.Expr, a, b)
	if err != nil {
		return err
	}
	if err := c.store(dst, r); err != nil {
		return err
	}
	return c.remember(dst, folded, exprText(n.Expr))
}

func (c *Context) readCmd(n *compiler.Read) error {
	dst, err := c.resolveIdent(n.Target, true)
	if err != nil {
		return err
	}
	r, err := c.acquire()
	if err != nil {
		return err
	}
	c.Program.Emit(isa.GET, r)
	if err := c.store(dst, r); err != nil {
		return err
	}
	return c.remember(dst, nil, "input")
}

func (c *Context) write(n *compiler.Write) error {
	o, err := c.resolve(n.Value)
	if err != nil {
		return err
	}
	r, err := c.read(o)
	if err != nil {
		return err
	}
	c.Program.Emit(isa.PUT, r)
	return nil
}

// resolveHere resolves the pending label at the next line, which becomes a
// jump target.
func (c *Context) resolveHere() error {
	if _, err := c.Labels.Resolve(c.Program.Len()); err != nil {
		return err
	}
	c.forgetPtr()
	return nil
}

func (c *Context) ifCmd(n *compiler.If) error {
	if err := c.condition(n.Cond); err != nil {
		return err
	}
	c.depth++
	defer func() { c.depth-- }()

	if err := c.commands(n.Then); err != nil {
		return err
	}
	if err := c.flush(); err != nil {
		return err
	}
	if n.Else == nil {
		return c.resolveHere()
	}

	end := c.Program.EmitJump(isa.JUMP)
	if err := c.resolveHere(); err != nil {
		return err
	}
	c.Labels.Open(labels.End, end)
	if err := c.commands(n.Else); err != nil {
		return err
	}
	if err := c.flush(); err != nil {
		return err
	}
	return c.resolveHere()
}

func (c *Context) while(n *compiler.While) error {
	if err := c.flush(); err != nil {
		return err
	}
	c.forgetPtr()
	start := c.Program.Len()

	c.depth++
	defer func() { c.depth-- }()

	if err := c.condition(n.Cond); err != nil {
		return err
	}
	if err := c.commands(n.Body); err != nil {
		return err
	}
	if err := c.flush(); err != nil {
		return err
	}
	c.Program.Emit(isa.JUMP, start)
	return c.resolveHere()
}
