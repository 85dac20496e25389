// Package codegen translates a checked program into instructions for the
// register machine.
//
// All resources of one compilation hang off a Context: the value arena, the
// address space, the register file, the symbol table, the label stack and
// the program being emitted. Contexts are not safe for concurrent use, and
// nothing is shared between them.
package codegen

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/regc/compiler"
	"github.com/chazu/regc/pkg/isa"
	"github.com/chazu/regc/pkg/labels"
	"github.com/chazu/regc/pkg/memory"
	"github.com/chazu/regc/pkg/regfile"
	"github.com/chazu/regc/pkg/symtab"
	"github.com/chazu/regc/pkg/value"
)

var log = commonlog.GetLogger("regc.codegen")

// MinRegisters is the smallest register file the generator works with:
// the pointer plus the four registers division needs.
const MinRegisters = 5

// Options controls code generation.
type Options struct {
	// Registers is the size of the machine's register file, including r0.
	Registers int

	// Layout places the memory segments.
	Layout memory.Layout

	// Propagate enables constant propagation through straight-line code.
	Propagate bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Registers: 8,
		Layout:    memory.DefaultLayout(),
		Propagate: true,
	}
}

// Error is a problem in the user's program found during generation.
type Error struct {
	Pos compiler.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

func errorAt(n compiler.Node, format string, args ...interface{}) *Error {
	return &Error{Pos: n.Span().Start, Msg: fmt.Sprintf(format, args...)}
}

// Placement reports where a declared name lives.
type Placement struct {
	Name    string
	Segment memory.Segment
	Address *big.Int
	Length  *big.Int // nil for scalars
}

// Context is the state of one compilation.
type Context struct {
	ID      uuid.UUID
	Options Options

	Arena   *value.Arena
	Space   *memory.Space
	Regs    *regfile.File
	Symbols *symtab.Table
	Labels  *labels.Stack
	Program *isa.Program

	// ptr is the value known to be in r0, or nil.
	ptr *big.Int

	// depth counts enclosing IF, WHILE and FOR commands.
	depth int
	// loops counts enclosing FOR commands.
	loops int

	// dynamic elements created for the current command
	dynamics []value.Handle

	placements []Placement
}

// NewContext creates the context for one compilation.
func NewContext(opts Options) (*Context, error) {
	if opts.Registers < MinRegisters {
		return nil, fmt.Errorf("codegen needs at least %d registers, got %d", MinRegisters, opts.Registers)
	}
	arena := value.NewArena()
	space, err := memory.NewSpace(opts.Layout, arena)
	if err != nil {
		return nil, err
	}
	regs, err := regfile.New(opts.Registers, arena)
	if err != nil {
		return nil, err
	}
	prog := isa.NewProgram()
	return &Context{
		ID:      uuid.New(),
		Options: opts,
		Arena:   arena,
		Space:   space,
		Regs:    regs,
		Symbols: symtab.New(),
		Labels:  labels.NewStack(prog),
		Program: prog,
	}, nil
}

// Placements returns where each declared name was placed, in declaration
// order.
func (c *Context) Placements() []Placement {
	out := make([]Placement, len(c.placements))
	copy(out, c.placements)
	return out
}

// Check verifies the bookkeeping invariants that must hold between
// commands: register links are symmetric and no temporaries are held.
func (c *Context) Check() error {
	if err := c.Regs.CheckSymmetry(); err != nil {
		return err
	}
	if rs := c.Regs.InUse(); len(rs) > 0 {
		return fmt.Errorf("registers %v still in use", rs)
	}
	return nil
}
