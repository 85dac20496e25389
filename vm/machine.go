package vm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/tliron/commonlog"

	"github.com/chazu/regc/pkg/isa"
)

var log = commonlog.GetLogger("regc.vm")

var (
	// ErrBadJump is returned for a jump outside the program.
	ErrBadJump = errors.New("jump target outside the program")

	// ErrBadRegister is returned for an operand outside the register file.
	ErrBadRegister = errors.New("register outside the register file")

	// ErrUninitialized is returned when a cell is read before it is written.
	ErrUninitialized = errors.New("read of uninitialized memory")

	// ErrNoHalt is returned when execution runs off the end of the program.
	ErrNoHalt = errors.New("program ended without HALT")

	// ErrStepLimit is returned when the step budget runs out.
	ErrStepLimit = errors.New("step limit exceeded")

	// ErrInput is returned when GET finds no natural number to read.
	ErrInput = errors.New("bad input")
)

// DefaultStepLimit bounds execution when Config.StepLimit is zero.
const DefaultStepLimit = 100_000_000

// cancelEvery is how many steps run between context checks.
const cancelEvery = 4096

// Config configures a Machine.
type Config struct {
	Registers int
	StepLimit uint64
	In        io.Reader
	Out       io.Writer

	// Profile records how often each line executes.
	Profile bool
}

// Stats describes a finished run.
type Stats struct {
	Steps uint64
	Cost  uint64
}

// Machine runs one program. It is not safe for concurrent use.
type Machine struct {
	code  []isa.Instruction
	regs  []*big.Int
	mem   map[string]*big.Int
	limit uint64

	in  *bufio.Scanner
	out io.Writer

	profile *Profile
	stats   Stats
}

// New prepares a machine for code.
func New(code []isa.Instruction, cfg Config) (*Machine, error) {
	if cfg.Registers < 1 {
		return nil, fmt.Errorf("machine needs at least one register, got %d", cfg.Registers)
	}
	m := &Machine{
		code:  code,
		regs:  make([]*big.Int, cfg.Registers),
		mem:   make(map[string]*big.Int),
		limit: cfg.StepLimit,
		out:   cfg.Out,
	}
	for i := range m.regs {
		m.regs[i] = new(big.Int)
	}
	if m.limit == 0 {
		m.limit = DefaultStepLimit
	}
	if cfg.In != nil {
		m.in = bufio.NewScanner(cfg.In)
		m.in.Split(bufio.ScanWords)
	}
	if m.out == nil {
		m.out = io.Discard
	}
	if cfg.Profile {
		m.profile = NewProfile(len(code))
	}
	return m, nil
}

// Register returns a copy of register r.
func (m *Machine) Register(r int) *big.Int {
	return new(big.Int).Set(m.regs[r])
}

// Memory returns a copy of the cell at addr.
func (m *Machine) Memory(addr *big.Int) (*big.Int, bool) {
	v, ok := m.mem[addr.String()]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(v), true
}

// Profile returns the execution profile, or nil when profiling is off.
func (m *Machine) Profile() *Profile {
	return m.profile
}

// Stats returns the counters of the run so far.
func (m *Machine) Stats() Stats {
	return m.stats
}

// Run executes from line 0 until HALT.
func (m *Machine) Run(ctx context.Context) (Stats, error) {
	pc := 0
	for {
		if pc < 0 || pc >= len(m.code) {
			if pc == len(m.code) {
				return m.stats, ErrNoHalt
			}
			return m.stats, fmt.Errorf("%w: %d", ErrBadJump, pc)
		}
		if m.stats.Steps >= m.limit {
			return m.stats, fmt.Errorf("%w: %d steps", ErrStepLimit, m.limit)
		}
		if m.stats.Steps%cancelEvery == 0 {
			if err := ctx.Err(); err != nil {
				return m.stats, err
			}
		}

		in := m.code[pc]
		m.stats.Steps++
		m.stats.Cost += in.Op.Cost()
		if m.profile != nil {
			m.profile.record(pc)
		}

		if in.Op == isa.HALT {
			log.Debugf("halted after %d steps, cost %d", m.stats.Steps, m.stats.Cost)
			return m.stats, nil
		}
		next, err := m.exec(pc, in)
		if err != nil {
			return m.stats, fmt.Errorf("line %d (%s): %w", pc, in, err)
		}
		pc = next
	}
}

func (m *Machine) reg(r int) (*big.Int, error) {
	if r < 0 || r >= len(m.regs) {
		return nil, fmt.Errorf("%w: r%d", ErrBadRegister, r)
	}
	return m.regs[r], nil
}

func (m *Machine) load() (*big.Int, error) {
	v, ok := m.mem[m.regs[0].String()]
	if !ok {
		return nil, fmt.Errorf("%w at %s", ErrUninitialized, m.regs[0])
	}
	return v, nil
}

func (m *Machine) read() (*big.Int, error) {
	if m.in == nil || !m.in.Scan() {
		if m.in != nil && m.in.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrInput, m.in.Err())
		}
		return nil, fmt.Errorf("%w: end of input", ErrInput)
	}
	n, ok := new(big.Int).SetString(m.in.Text(), 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q is not a natural number", ErrInput, m.in.Text())
	}
	return n, nil
}

// exec runs one non-HALT instruction and returns the next line.
func (m *Machine) exec(pc int, in isa.Instruction) (int, error) {
	if in.Op == isa.JUMP {
		return in.Target, nil
	}
	r, err := m.reg(in.Reg)
	if err != nil {
		return 0, err
	}

	switch in.Op {
	case isa.GET:
		n, err := m.read()
		if err != nil {
			return 0, err
		}
		r.Set(n)
	case isa.PUT:
		if _, err := fmt.Fprintln(m.out, r); err != nil {
			return 0, err
		}
	case isa.LOAD:
		v, err := m.load()
		if err != nil {
			return 0, err
		}
		r.Set(v)
	case isa.STORE:
		m.mem[m.regs[0].String()] = new(big.Int).Set(r)
	case isa.ADD:
		v, err := m.load()
		if err != nil {
			return 0, err
		}
		r.Add(r, v)
	case isa.SUB:
		v, err := m.load()
		if err != nil {
			return 0, err
		}
		r.Sub(r, v)
		if r.Sign() < 0 {
			r.SetInt64(0)
		}
	case isa.COPY:
		m.regs[0].Set(r)
	case isa.SHR:
		r.Rsh(r, 1)
	case isa.SHL:
		r.Lsh(r, 1)
	case isa.INC:
		r.Add(r, big.NewInt(1))
	case isa.DEC:
		if r.Sign() > 0 {
			r.Sub(r, big.NewInt(1))
		}
	case isa.ZERO:
		r.SetInt64(0)
	case isa.JZERO:
		if r.Sign() == 0 {
			return in.Target, nil
		}
	case isa.JODD:
		if r.Bit(0) == 1 {
			return in.Target, nil
		}
	default:
		return 0, fmt.Errorf("unknown opcode %d", in.Op)
	}
	return pc + 1, nil
}

// Run decodes text and executes it with cfg.
func Run(ctx context.Context, text string, cfg Config) (Stats, error) {
	code, err := isa.Parse(text)
	if err != nil {
		return Stats{}, err
	}
	m, err := New(code, cfg)
	if err != nil {
		return Stats{}, err
	}
	return m.Run(ctx)
}
