// Package regfile tracks the machine's fixed register file during code
// generation.
//
// Register 0 is the pointer register: it holds the memory address used by
// LOAD, STORE, ADD and SUB and is never handed out. Every other register is
// Free, Busy (caching a value that may be evicted) or InUse (a temporary of
// the instruction being built, never evicted).
//
// The file does not spill on its own. AcquireFree reports exhaustion and
// the caller picks a victim from Busy, stores it if needed and releases it.
package regfile

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/regc/pkg/value"
)

var log = commonlog.GetLogger("regc.regfile")

// Pointer is the register holding the memory address operand.
const Pointer = 0

// ErrRegisterExhaustion is returned by callers when neither a free nor a
// busy register exists.
var ErrRegisterExhaustion = errors.New("register exhaustion")

// State is the allocation state of a register.
type State uint8

const (
	Free State = iota
	Busy
	InUse
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Busy:
		return "busy"
	case InUse:
		return "in-use"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

type register struct {
	state    State
	occupant value.Handle
}

// File is the register file of one compilation.
type File struct {
	regs  []register
	arena *value.Arena
}

// New creates a file of n registers, all free. n must be at least 2.
func New(n int, arena *value.Arena) (*File, error) {
	if n < 2 {
		return nil, fmt.Errorf("register file needs at least 2 registers, got %d", n)
	}
	return &File{regs: make([]register, n), arena: arena}, nil
}

// Len returns the number of registers, including the pointer.
func (f *File) Len() int {
	return len(f.regs)
}

func (f *File) check(r int) error {
	if r <= Pointer || r >= len(f.regs) {
		return fmt.Errorf("register %d is not allocatable", r)
	}
	return nil
}

// State returns the state of r.
func (f *File) State(r int) State {
	if r < 0 || r >= len(f.regs) {
		return Free
	}
	return f.regs[r].state
}

// Occupant returns the value bound to r.
func (f *File) Occupant(r int) (value.Handle, bool) {
	if r < 0 || r >= len(f.regs) || f.regs[r].occupant.IsNil() {
		return value.Nil, false
	}
	return f.regs[r].occupant, true
}

// AcquireFree returns the lowest free register. False means every
// allocatable register is Busy or InUse.
func (f *File) AcquireFree() (int, bool) {
	for r := Pointer + 1; r < len(f.regs); r++ {
		if f.regs[r].state == Free {
			return r, true
		}
	}
	return 0, false
}

// Bind links r and h in both directions and marks r Busy. Any previous
// occupant of r and any previous register of h are unlinked first.
func (f *File) Bind(r int, h value.Handle) error {
	if err := f.check(r); err != nil {
		return err
	}
	v, err := f.arena.Lookup(h)
	if err != nil {
		return err
	}

	f.unlink(r)
	if prev, ok := v.Register(); ok {
		f.unlink(prev)
		f.regs[prev].state = Free
	}

	f.regs[r] = register{state: Busy, occupant: h}
	v.AttachRegister(r)
	log.Debugf("r%d <- %s", r, v)
	return nil
}

// Reserve marks a free register InUse without an occupant. It is used for
// scratch registers that hold no named value.
func (f *File) Reserve(r int) error {
	if err := f.check(r); err != nil {
		return err
	}
	f.unlink(r)
	f.regs[r].state = InUse
	return nil
}

func (f *File) unlink(r int) {
	old := f.regs[r].occupant
	if old.IsNil() {
		return
	}
	if v, ok := f.arena.Get(old); ok {
		if at, bound := v.Register(); bound && at == r {
			v.DetachRegister()
		}
	}
	f.regs[r].occupant = value.Nil
}

// SetState moves r between Busy and InUse.
func (f *File) SetState(r int, s State) error {
	if err := f.check(r); err != nil {
		return err
	}
	if s == Free {
		return f.Release(r)
	}
	if f.regs[r].state == Free {
		return fmt.Errorf("register %d is free", r)
	}
	f.regs[r].state = s
	return nil
}

// Release unlinks r from its occupant and marks it Free.
func (f *File) Release(r int) error {
	if err := f.check(r); err != nil {
		return err
	}
	f.unlink(r)
	f.regs[r].state = Free
	return nil
}

// Busy returns the registers that may be evicted, lowest first.
func (f *File) Busy() []int {
	var rs []int
	for r := Pointer + 1; r < len(f.regs); r++ {
		if f.regs[r].state == Busy {
			rs = append(rs, r)
		}
	}
	return rs
}

// InUse returns the registers currently reserved as temporaries.
func (f *File) InUse() []int {
	var rs []int
	for r := Pointer + 1; r < len(f.regs); r++ {
		if f.regs[r].state == InUse {
			rs = append(rs, r)
		}
	}
	return rs
}

// Reset releases every register.
func (f *File) Reset() {
	for r := Pointer + 1; r < len(f.regs); r++ {
		f.unlink(r)
		f.regs[r].state = Free
	}
}

// CheckSymmetry verifies that register and value links agree: a register
// naming an occupant is named back by it, and a live value naming a
// register is that register's occupant.
func (f *File) CheckSymmetry() error {
	for r, reg := range f.regs {
		if reg.occupant.IsNil() {
			continue
		}
		v, err := f.arena.Lookup(reg.occupant)
		if err != nil {
			return fmt.Errorf("register %d: %w", r, err)
		}
		if at, ok := v.Register(); !ok || at != r {
			return fmt.Errorf("register %d holds %s, which names register %d", r, v, at)
		}
	}

	var err error
	f.arena.Each(func(h value.Handle, v *value.Value) bool {
		r, ok := v.Register()
		if !ok {
			return true
		}
		if r <= Pointer || r >= len(f.regs) || f.regs[r].occupant != h {
			err = fmt.Errorf("%s names register %d, which does not hold it", v, r)
			return false
		}
		return true
	})
	return err
}
