package codegen

import (
	"math/big"
	"strings"
	"testing"

	"github.com/chazu/regc/compiler"
	"github.com/chazu/regc/pkg/regfile"
)

func newContext(t *testing.T, regs int) *Context {
	t.Helper()
	opts := DefaultOptions()
	opts.Registers = regs
	c, err := NewContext(opts)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return c
}

func TestConstCostMatchesBuildConst(t *testing.T) {
	for _, s := range []string{"0", "1", "2", "5", "255", "256", "1000000", "340282366920938463463374607431768211457"} {
		n, _ := new(big.Int).SetString(s, 10)
		c := newContext(t, MinRegisters)
		c.buildConst(1, n)
		if got := c.Program.Len(); got != constCost(n) {
			t.Errorf("%s: buildConst emitted %d lines, constCost says %d", s, got, constCost(n))
		}
	}
}

func TestSetPtrSteps(t *testing.T) {
	c := newContext(t, MinRegisters)
	c.setPtrUint(4096)
	before := c.Program.Len()

	c.setPtrUint(4098)
	want := []string{"INC 0", "INC 0"}
	if got := c.Program.Lines()[before:]; strings.Join(got, ";") != strings.Join(want, ";") {
		t.Errorf("stepping up emitted %v, want %v", got, want)
	}

	before = c.Program.Len()
	c.setPtrUint(4097)
	if got := c.Program.Lines()[before:]; len(got) != 1 || got[0] != "DEC 0" {
		t.Errorf("stepping down emitted %v", got)
	}

	c.forgetPtr()
	before = c.Program.Len()
	c.setPtrUint(4097)
	if got := c.Program.Len() - before; got != constCost(big.NewInt(4097)) {
		t.Errorf("rebuilding emitted %d lines", got)
	}
}

func TestAcquireSpillsLowestBusy(t *testing.T) {
	c := newContext(t, MinRegisters)
	prog, err := compiler.Parse(`VAR a b c d BEGIN SKIP; END`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := c.declare(prog.Decls); err != nil {
		t.Fatalf("declare: %v", err)
	}
	for i, name := range []string{"a", "b", "c", "d"} {
		cv, _ := c.Symbols.Lookup(name)
		h, _ := cv.Handle()
		if err := c.Regs.Bind(i+1, h); err != nil {
			t.Fatalf("Bind: %v", err)
		}
		c.Symbols.MarkStale(name)
	}

	r, err := c.acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if r != 1 {
		t.Errorf("acquired r%d, want r1", r)
	}
	if c.Regs.State(1) != regfile.InUse {
		t.Errorf("r1 state = %v, want InUse", c.Regs.State(1))
	}
	if !c.Symbols.IsFresh("a") {
		t.Error("spilled a should be fresh")
	}
	lines := c.Program.Lines()
	if lines[len(lines)-1] != "STORE 1" {
		t.Errorf("last line = %q, want STORE 1", lines[len(lines)-1])
	}

	// With every register holding a temporary there is nothing to spill.
	for r := 2; r < MinRegisters; r++ {
		if _, err := c.acquire(); err != nil {
			t.Fatalf("acquire: %v", err)
		}
	}
	if _, err := c.acquire(); err == nil {
		t.Error("expected register exhaustion")
	}
}

func TestFlushWritesStaleValues(t *testing.T) {
	c := newContext(t, MinRegisters)
	prog, err := compiler.Parse(`VAR a b BEGIN SKIP; END`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := c.declare(prog.Decls); err != nil {
		t.Fatalf("declare: %v", err)
	}
	for i, name := range []string{"a", "b"} {
		cv, _ := c.Symbols.Lookup(name)
		h, _ := cv.Handle()
		if err := c.Regs.Bind(i+1, h); err != nil {
			t.Fatalf("Bind: %v", err)
		}
	}
	c.Symbols.MarkStale("b")

	if err := c.flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if busy := c.Regs.Busy(); len(busy) != 0 {
		t.Errorf("busy after flush: %v", busy)
	}
	stores := strings.Count(c.Program.String(), "STORE")
	if stores != 1 {
		t.Errorf("flush emitted %d stores, want 1:\n%s", stores, c.Program)
	}
}
