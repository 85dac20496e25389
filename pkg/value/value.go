// Package value models the compile-time entities of a compilation: literal
// constants, plain variables and array elements, all owned by an Arena.
//
// A Value's kind and its big/symbolic predicates are derived from the payload
// rather than stored, so the flags always agree with the underlying variable.
package value

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrCorrupt is returned when a variable payload has lost its underlying
// plain variable. It indicates an earlier bookkeeping error.
var ErrCorrupt = errors.New("corrupt value payload")

// Kind tags the payload of a Value.
type Kind uint8

const (
	KindConst Kind = iota
	KindVariable
)

func (k Kind) String() string {
	switch k {
	case KindConst:
		return "const"
	case KindVariable:
		return "variable"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Payload is the closed set of things a Value can carry: *Const,
// *PlainVariable and *ArrayElement.
type Payload interface {
	kind() Kind
}

// Variable is implemented by the variable payloads. Plain returns the plain
// variable that carries the flags: the variable itself, or an element's slot.
type Variable interface {
	Payload
	Plain() *PlainVariable
}

// Const is a literal, held natively when it fits and in arbitrary precision
// otherwise.
type Const struct {
	small uint64
	big   *big.Int
	isBig bool
}

// NewConst creates a native constant.
func NewConst(n uint64) *Const {
	return &Const{small: n}
}

// NewBigConst creates a constant from n, stored natively if it fits in 64
// bits. n is copied.
func NewBigConst(n *big.Int) *Const {
	if n.IsUint64() {
		return &Const{small: n.Uint64()}
	}
	return &Const{big: new(big.Int).Set(n), isBig: true}
}

func (c *Const) kind() Kind { return KindConst }

// IsBig reports whether the constant is held in arbitrary precision.
func (c *Const) IsBig() bool { return c.isBig }

// Int returns the constant as a new big.Int.
func (c *Const) Int() *big.Int {
	if c.isBig {
		return new(big.Int).Set(c.big)
	}
	return new(big.Int).SetUint64(c.small)
}

// Uint64 returns the native value; ok is false for big constants.
func (c *Const) Uint64() (uint64, bool) {
	if c.isBig {
		return 0, false
	}
	return c.small, true
}

func (c *Const) String() string {
	if c.isBig {
		return c.big.String()
	}
	return fmt.Sprintf("%d", c.small)
}

// PlainVariable is a scalar identifier. Current is the last value known at
// compile time, meaningful only while the variable is not symbolic.
type PlainVariable struct {
	Name    string
	Current *big.Int

	symbolic   strings.Builder
	isSymbolic bool
	big        bool
}

// NewPlain creates a plain variable with an unknown, symbolic value.
func NewPlain(name string) *PlainVariable {
	return &PlainVariable{Name: name, isSymbolic: true}
}

func (p *PlainVariable) kind() Kind { return KindVariable }

// Plain returns p.
func (p *PlainVariable) Plain() *PlainVariable { return p }

// SetBig marks the variable as resident in the oversized-array plane.
func (p *PlainVariable) SetBig(b bool) { p.big = b }

// ArrayElement is one access a[offset] or a[index]. Slot carries the flags
// of the element; Index is nil for a static offset.
type ArrayElement struct {
	Slot   *PlainVariable
	Offset *big.Int
	Index  *PlainVariable
	Array  *Array
}

func (e *ArrayElement) kind() Kind { return KindVariable }

// Plain returns the element's slot.
func (e *ArrayElement) Plain() *PlainVariable { return e.Slot }

// IsDynamic reports whether the element is addressed through a variable.
func (e *ArrayElement) IsDynamic() bool { return e.Index != nil }

// Address returns base+offset for a static element.
func (e *ArrayElement) Address() (*big.Int, bool) {
	if e.IsDynamic() || e.Array == nil || e.Array.Base == nil {
		return nil, false
	}
	return new(big.Int).Add(e.Array.Base, e.Offset), true
}

const noRegister = -1

// Value is one typed operand. Its register and chunk bindings are maintained
// by the register file and the address space respectively.
type Value struct {
	payload Payload

	reg      int
	chunk    uint64
	hasChunk bool
}

// Kind returns the payload's kind.
func (v *Value) Kind() Kind {
	return v.payload.kind()
}

// Payload returns the tagged payload.
func (v *Value) Payload() Payload {
	return v.payload
}

// Const returns the constant payload, if any.
func (v *Value) Const() (*Const, bool) {
	c, ok := v.payload.(*Const)
	return c, ok
}

// Plain returns the plain variable reached through the payload.
func (v *Value) Plain() (*PlainVariable, bool) {
	switch p := v.payload.(type) {
	case *PlainVariable:
		return p, true
	case *ArrayElement:
		return p.Slot, p.Slot != nil
	}
	return nil, false
}

// Element returns the array element payload, if any.
func (v *Value) Element() (*ArrayElement, bool) {
	e, ok := v.payload.(*ArrayElement)
	return e, ok
}

// Register returns the register holding v.
func (v *Value) Register() (int, bool) {
	return v.reg, v.reg != noRegister
}

// AttachRegister records that register r holds v. Only the register file
// calls it.
func (v *Value) AttachRegister(r int) { v.reg = r }

// DetachRegister clears the register binding. Only the register file calls it.
func (v *Value) DetachRegister() { v.reg = noRegister }

// Chunk returns the memory address holding v.
func (v *Value) Chunk() (uint64, bool) {
	return v.chunk, v.hasChunk
}

// AttachChunk records that v lives at addr. Only the address space calls it.
func (v *Value) AttachChunk(addr uint64) {
	v.chunk = addr
	v.hasChunk = true
}

// DetachChunk clears the chunk binding. Only the address space calls it.
func (v *Value) DetachChunk() {
	v.chunk = 0
	v.hasChunk = false
}

// IsBig reports oversized-array residency.
func (v *Value) IsBig() bool {
	switch p := v.payload.(type) {
	case *Const:
		return false
	case *PlainVariable:
		return p.big
	case *ArrayElement:
		return p.Slot != nil && p.Slot.big
	}
	return false
}

// IsSymbolic reports whether the value is an unevaluated expression.
func (v *Value) IsSymbolic() bool {
	switch p := v.payload.(type) {
	case *Const:
		return false
	case *PlainVariable:
		return p.isSymbolic
	case *ArrayElement:
		return p.Slot != nil && p.Slot.isSymbolic
	}
	return false
}

// SetSymbolic marks the underlying variable symbolic. Constants are never
// symbolic; the call is a no-op for them.
func (v *Value) SetSymbolic() {
	if p, ok := v.Plain(); ok {
		p.isSymbolic = true
	}
}

// ClearSymbolic marks the underlying variable as holding a known value.
func (v *Value) ClearSymbolic() {
	if p, ok := v.Plain(); ok {
		p.isSymbolic = false
	}
}

// ResetSymbolic clears both the flag and the accumulated expression text.
func (v *Value) ResetSymbolic() error {
	switch p := v.payload.(type) {
	case *Const:
		return nil
	case *PlainVariable:
		p.isSymbolic = false
		p.symbolic.Reset()
		return nil
	case *ArrayElement:
		if p.Slot == nil {
			return fmt.Errorf("%w: element of %s has no slot", ErrCorrupt, arrayName(p.Array))
		}
		p.Slot.isSymbolic = false
		p.Slot.symbolic.Reset()
		return nil
	}
	return fmt.Errorf("%w: payload %T", ErrCorrupt, v.payload)
}

// AddSymbolic appends text to the accumulated symbolic expression.
func (v *Value) AddSymbolic(text string) {
	if p, ok := v.Plain(); ok {
		p.symbolic.WriteString(text)
	}
}

// Symbolic returns the accumulated symbolic expression.
func (v *Value) Symbolic() string {
	if p, ok := v.Plain(); ok {
		return p.symbolic.String()
	}
	return ""
}

func (v *Value) String() string {
	switch p := v.payload.(type) {
	case *Const:
		return p.String()
	case *PlainVariable:
		return p.Name
	case *ArrayElement:
		if p.Index != nil {
			return fmt.Sprintf("%s[%s]", arrayName(p.Array), p.Index.Name)
		}
		return fmt.Sprintf("%s[%s]", arrayName(p.Array), p.Offset)
	}
	return "<invalid>"
}

func arrayName(a *Array) string {
	if a == nil {
		return "?"
	}
	return a.Name
}

func copyPlain(p *PlainVariable) *PlainVariable {
	if p == nil {
		return nil
	}
	c := &PlainVariable{Name: p.Name, isSymbolic: p.isSymbolic, big: p.big}
	if p.Current != nil {
		c.Current = new(big.Int).Set(p.Current)
	}
	c.symbolic.WriteString(p.symbolic.String())
	return c
}

func copyPayload(p Payload) Payload {
	switch p := p.(type) {
	case *Const:
		c := *p
		if p.big != nil {
			c.big = new(big.Int).Set(p.big)
		}
		return &c
	case *PlainVariable:
		return copyPlain(p)
	case *ArrayElement:
		e := &ArrayElement{Slot: copyPlain(p.Slot), Index: p.Index, Array: p.Array}
		if p.Offset != nil {
			e.Offset = new(big.Int).Set(p.Offset)
		}
		return e
	}
	return p
}
