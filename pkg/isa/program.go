package isa

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnresolved is returned when a jump still lacks its target.
var ErrUnresolved = errors.New("unresolved jump")

// Instruction is one decoded machine instruction. Reg and Target are
// meaningful only when the opcode's shape has them.
type Instruction struct {
	Op     Opcode `cbor:"1,keyasint"`
	Reg    int    `cbor:"2,keyasint,omitempty"`
	Target int    `cbor:"3,keyasint,omitempty"`
}

func (in Instruction) String() string {
	switch in.Op.Shape() {
	case Register:
		return fmt.Sprintf("%s %d", in.Op, in.Reg)
	case Target:
		return fmt.Sprintf("%s %d", in.Op, in.Target)
	case RegisterJump:
		return fmt.Sprintf("%s %d %d", in.Op, in.Reg, in.Target)
	}
	return in.Op.String()
}

// Decode parses one instruction line.
func Decode(line string) (Instruction, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Instruction{}, errors.New("empty instruction")
	}
	op, ok := Lookup(fields[0])
	if !ok {
		return Instruction{}, fmt.Errorf("unknown opcode %q", fields[0])
	}
	shape := op.Shape()
	args := fields[1:]
	if len(args) != shape.Arity() {
		if shape.Arity()-len(args) == 1 && op.IsJump() {
			return Instruction{}, fmt.Errorf("%w: %q", ErrUnresolved, line)
		}
		return Instruction{}, fmt.Errorf("%s takes %d operands, got %d", op, shape.Arity(), len(args))
	}

	nums := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n < 0 {
			return Instruction{}, fmt.Errorf("bad operand %q in %q", a, line)
		}
		nums[i] = n
	}

	in := Instruction{Op: op}
	switch shape {
	case Register:
		in.Reg = nums[0]
	case Target:
		in.Target = nums[0]
	case RegisterJump:
		in.Reg, in.Target = nums[0], nums[1]
	}
	return in, nil
}

// Program is the ordered instruction text being generated. Each line is
// one instruction; a line's index is its address for jumps.
type Program struct {
	lines []string
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{}
}

// Emit appends a complete instruction and returns its line.
func (p *Program) Emit(op Opcode, operands ...int) int {
	var b strings.Builder
	b.WriteString(op.String())
	for _, n := range operands {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(n))
	}
	p.lines = append(p.lines, b.String())
	return len(p.lines) - 1
}

// EmitJump appends a jump whose target is filled in later by Append and
// returns its line. The placeholder ends in a space.
func (p *Program) EmitJump(op Opcode, reg ...int) int {
	var b strings.Builder
	b.WriteString(op.String())
	for _, n := range reg {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(n))
	}
	b.WriteByte(' ')
	p.lines = append(p.lines, b.String())
	return len(p.lines) - 1
}

// Append adds text to the end of line slot.
func (p *Program) Append(slot int, text string) error {
	if slot < 0 || slot >= len(p.lines) {
		return fmt.Errorf("no instruction at line %d", slot)
	}
	p.lines[slot] += text
	return nil
}

// Len returns the number of instructions, which is also the line the next
// instruction will occupy.
func (p *Program) Len() int {
	return len(p.lines)
}

// Line returns the text of line i.
func (p *Program) Line(i int) string {
	return p.lines[i]
}

// Lines returns a copy of every line.
func (p *Program) Lines() []string {
	out := make([]string, len(p.lines))
	copy(out, p.lines)
	return out
}

// String returns the program text, one instruction per line.
func (p *Program) String() string {
	if len(p.lines) == 0 {
		return ""
	}
	return strings.Join(p.lines, "\n") + "\n"
}

// Decode decodes every line. It fails on the first unresolved jump or
// malformed line.
func (p *Program) Decode() ([]Instruction, error) {
	code := make([]Instruction, len(p.lines))
	for i, l := range p.lines {
		in, err := Decode(l)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		code[i] = in
	}
	return code, nil
}

// StaticCost sums the cost of every instruction once.
func (p *Program) StaticCost() uint64 {
	var total uint64
	for _, l := range p.lines {
		name, _, _ := strings.Cut(l, " ")
		if op, ok := Lookup(name); ok {
			total += op.Cost()
		}
	}
	return total
}

// Parse reads program text, one instruction per non-blank line.
func Parse(text string) ([]Instruction, error) {
	var code []Instruction
	for n, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		in, err := Decode(l)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		code = append(code, in)
	}
	return code, nil
}
