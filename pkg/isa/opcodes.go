// Package isa describes the target machine's instruction set and the
// textual program the code generator emits.
package isa

import "fmt"

// Opcode is a machine instruction.
type Opcode byte

const (
	// ========================================================================
	// Input/output
	// ========================================================================

	GET Opcode = 0x00 // ri <- next input number
	PUT Opcode = 0x01 // write ri

	// ========================================================================
	// Memory, addressed through r0
	// ========================================================================

	LOAD  Opcode = 0x02 // ri <- M[r0]
	STORE Opcode = 0x03 // M[r0] <- ri
	ADD   Opcode = 0x04 // ri <- ri + M[r0]
	SUB   Opcode = 0x05 // ri <- max(ri - M[r0], 0)

	// ========================================================================
	// Registers
	// ========================================================================

	COPY Opcode = 0x06 // r0 <- ri
	SHR  Opcode = 0x07 // ri <- ri / 2
	SHL  Opcode = 0x08 // ri <- ri * 2
	INC  Opcode = 0x09 // ri <- ri + 1
	DEC  Opcode = 0x0A // ri <- max(ri - 1, 0)
	ZERO Opcode = 0x0B // ri <- 0

	// ========================================================================
	// Control flow
	// ========================================================================

	JUMP  Opcode = 0x0C // goto j
	JZERO Opcode = 0x0D // if ri = 0 goto j
	JODD  Opcode = 0x0E // if ri is odd goto j
	HALT  Opcode = 0x0F // stop
)

// Shape describes the operands an instruction takes.
type Shape uint8

const (
	NoOperands   Shape = iota
	Register           // i
	Target             // j
	RegisterJump       // i j
)

// Arity returns the number of operands of s.
func (s Shape) Arity() int {
	switch s {
	case Register, Target:
		return 1
	case RegisterJump:
		return 2
	}
	return 0
}

// OpcodeInfo provides metadata about each opcode.
type OpcodeInfo struct {
	Name  string
	Shape Shape
	Cost  uint64 // cycles charged per execution
}

var opcodeInfoTable = [...]OpcodeInfo{
	GET:   {"GET", Register, 100},
	PUT:   {"PUT", Register, 100},
	LOAD:  {"LOAD", Register, 20},
	STORE: {"STORE", Register, 20},
	ADD:   {"ADD", Register, 10},
	SUB:   {"SUB", Register, 10},
	COPY:  {"COPY", Register, 5},
	SHR:   {"SHR", Register, 1},
	SHL:   {"SHL", Register, 1},
	INC:   {"INC", Register, 1},
	DEC:   {"DEC", Register, 1},
	ZERO:  {"ZERO", Register, 1},
	JUMP:  {"JUMP", Target, 1},
	JZERO: {"JZERO", RegisterJump, 1},
	JODD:  {"JODD", RegisterJump, 1},
	HALT:  {"HALT", NoOperands, 0},
}

var byName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		m[info.Name] = Opcode(op)
	}
	return m
}()

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo named "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if op.Valid() {
		return opcodeInfoTable[op]
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// Lookup returns the opcode with the given mnemonic.
func Lookup(name string) (Opcode, bool) {
	op, ok := byName[name]
	return op, ok
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	return int(op) < len(opcodeInfoTable)
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Cost returns the static cost of one execution of op.
func (op Opcode) Cost() uint64 {
	return GetOpcodeInfo(op).Cost
}

// Shape returns the operand shape of op.
func (op Opcode) Shape() Shape {
	return GetOpcodeInfo(op).Shape
}

// IsJump returns true if op can transfer control.
func (op Opcode) IsJump() bool {
	return op >= JUMP && op <= JODD
}

// UsesPointer returns true if op reads or writes memory through r0.
func (op Opcode) UsesPointer() bool {
	return op >= LOAD && op <= SUB
}

// AllOpcodes returns every defined opcode in numeric order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, len(opcodeInfoTable))
	for i := range ops {
		ops[i] = Opcode(i)
	}
	return ops
}
