// Package vm executes programs for the register machine.
//
// The machine has a fixed file of arbitrary-precision registers, r0 being
// the pointer used by LOAD, STORE, ADD and SUB, and an unbounded memory of
// naturals addressed by naturals. GET and PUT read and write decimal
// numbers through the machine's reader and writer. Every executed
// instruction is charged its cost from the instruction set.
package vm
