// Package symtab maps source identifiers to the values and arrays that
// represent them during code generation.
package symtab

import (
	"errors"
	"fmt"

	"github.com/chazu/regc/pkg/ordered"
	"github.com/chazu/regc/pkg/value"
)

// ErrDuplicateName is returned when a name is declared twice.
var ErrDuplicateName = errors.New("duplicate name")

// Type is the declared type of a compiler variable.
type Type uint8

const (
	Scalar Type = iota
	ArrayType
	Iterator
)

func (t Type) String() string {
	switch t {
	case Scalar:
		return "scalar"
	case ArrayType:
		return "array"
	case Iterator:
		return "iterator"
	default:
		return fmt.Sprintf("Type(%d)", t)
	}
}

// Binding is what a name refers to: a ValueBinding or an ArrayBinding.
type Binding interface {
	binding()
}

// ValueBinding binds a name to a single value.
type ValueBinding struct {
	Handle value.Handle
}

func (ValueBinding) binding() {}

// ArrayBinding binds a name to an array.
type ArrayBinding struct {
	Array *value.Array
}

func (ArrayBinding) binding() {}

// Cvar is a compiler variable: a named binding plus the freshness flag
// telling whether the memory copy of a register-cached value is current.
type Cvar struct {
	Name    string
	Type    Type
	Binding Binding

	fresh bool
}

// Handle returns the bound value of a scalar or iterator.
func (c *Cvar) Handle() (value.Handle, bool) {
	b, ok := c.Binding.(ValueBinding)
	return b.Handle, ok
}

// Array returns the bound array.
func (c *Cvar) Array() (*value.Array, bool) {
	b, ok := c.Binding.(ArrayBinding)
	return b.Array, ok
}

// Table is the symbol table of one compilation.
type Table struct {
	byName  *ordered.Map[string, *Cvar]
	byValue map[value.Handle]*Cvar
	byArray map[*value.Array]*Cvar
}

// New creates an empty table.
func New() *Table {
	return &Table{
		byName:  ordered.New[string, *Cvar](),
		byValue: make(map[value.Handle]*Cvar),
		byArray: make(map[*value.Array]*Cvar),
	}
}

// Declare adds c. A new Cvar starts fresh.
func (t *Table) Declare(c *Cvar) error {
	if c.Name == "" {
		return errors.New("empty name")
	}
	if err := t.byName.Insert(c.Name, c); err != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateName, c.Name)
	}
	c.fresh = true
	switch b := c.Binding.(type) {
	case ValueBinding:
		t.byValue[b.Handle] = c
	case ArrayBinding:
		t.byArray[b.Array] = c
	}
	return nil
}

// Remove deletes name and returns its Cvar.
func (t *Table) Remove(name string) (*Cvar, bool) {
	c, ok := t.byName.Get(name)
	if !ok {
		return nil, false
	}
	t.byName.Delete(name)
	switch b := c.Binding.(type) {
	case ValueBinding:
		delete(t.byValue, b.Handle)
	case ArrayBinding:
		delete(t.byArray, b.Array)
	}
	return c, true
}

// Lookup returns the Cvar named name.
func (t *Table) Lookup(name string) (*Cvar, bool) {
	return t.byName.Get(name)
}

// LookupByValue finds the Cvar bound to h. Array elements resolve to the
// Cvar of their array.
func (t *Table) LookupByValue(arena *value.Arena, h value.Handle) (*Cvar, bool) {
	if c, ok := t.byValue[h]; ok {
		return c, true
	}
	v, ok := arena.Get(h)
	if !ok {
		return nil, false
	}
	if e, ok := v.Element(); ok && e.Array != nil {
		c, ok := t.byArray[e.Array]
		return c, ok
	}
	return nil, false
}

// IsFresh reports whether name's memory copy is current. Unknown names
// are not fresh.
func (t *Table) IsFresh(name string) bool {
	c, ok := t.byName.Get(name)
	return ok && c.fresh
}

// MarkStale records that name's register copy is newer than memory.
func (t *Table) MarkStale(name string) {
	if c, ok := t.byName.Get(name); ok {
		c.fresh = false
	}
}

// MarkFresh records that name's memory copy is current.
func (t *Table) MarkFresh(name string) {
	if c, ok := t.byName.Get(name); ok {
		c.fresh = true
	}
}

// Names returns the declared names in order.
func (t *Table) Names() []string {
	return t.byName.Keys()
}

// Each calls fn for every Cvar in name order until fn returns false.
func (t *Table) Each(fn func(*Cvar) bool) {
	t.byName.Ascend(func(_ string, c *Cvar) bool {
		return fn(c)
	})
}

// Len returns the number of declared names.
func (t *Table) Len() int {
	return t.byName.Len()
}
