package compiler

import (
	"fmt"
	"math/big"
)

// ---------------------------------------------------------------------------
// AST
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// Value is an operand: a number or an identifier.
type Value interface {
	Node
	value() // marker method
}

// Number is a natural number literal.
type Number struct {
	SpanVal Span
	Value   *big.Int
}

func (n *Number) Span() Span { return n.SpanVal }
func (n *Number) node()      {}
func (n *Number) value()     {}

// Identifier names a scalar, an iterator or an array element. Index is nil
// for scalars, and a *Number or an unindexed *Identifier for elements.
type Identifier struct {
	SpanVal Span
	Name    string
	Index   Value
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}
func (n *Identifier) value()     {}

// IsElement reports whether n is indexed.
func (n *Identifier) IsElement() bool { return n.Index != nil }

func (n *Identifier) String() string {
	switch idx := n.Index.(type) {
	case *Number:
		return fmt.Sprintf("%s[%s]", n.Name, idx.Value)
	case *Identifier:
		return fmt.Sprintf("%s[%s]", n.Name, idx.Name)
	}
	return n.Name
}

// ---------------------------------------------------------------------------
// Expressions and conditions
// ---------------------------------------------------------------------------

// Operator is an arithmetic operator; OpNone marks a bare value.
type Operator uint8

const (
	OpNone Operator = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
)

func (o Operator) String() string {
	return [...]string{"", "+", "-", "*", "/", "%"}[o]
}

// Expression is a value or a binary operation on two values.
type Expression struct {
	SpanVal Span
	Left    Value
	Op      Operator
	Right   Value // nil when Op is OpNone
}

func (n *Expression) Span() Span { return n.SpanVal }
func (n *Expression) node()      {}

// Relation is a comparison operator.
type Relation uint8

const (
	RelEq Relation = iota
	RelNe
	RelLt
	RelGt
	RelLe
	RelGe
)

func (r Relation) String() string {
	return [...]string{"=", "<>", "<", ">", "<=", ">="}[r]
}

// Negate returns the relation that holds exactly when r does not.
func (r Relation) Negate() Relation {
	return [...]Relation{RelNe, RelEq, RelGe, RelLe, RelGt, RelLt}[r]
}

// Condition compares two values.
type Condition struct {
	SpanVal Span
	Left    Value
	Rel     Relation
	Right   Value
}

func (n *Condition) Span() Span { return n.SpanVal }
func (n *Condition) node()      {}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

// Command is the interface for command nodes.
type Command interface {
	Node
	command() // marker method
}

// Assign stores an expression in an identifier.
type Assign struct {
	SpanVal Span
	Target  *Identifier
	Expr    *Expression
}

func (n *Assign) Span() Span { return n.SpanVal }
func (n *Assign) node()      {}
func (n *Assign) command()   {}

// If is a conditional with an optional ELSE branch.
type If struct {
	SpanVal Span
	Cond    *Condition
	Then    []Command
	Else    []Command // nil without ELSE
}

func (n *If) Span() Span { return n.SpanVal }
func (n *If) node()      {}
func (n *If) command()   {}

// While loops while its condition holds.
type While struct {
	SpanVal Span
	Cond    *Condition
	Body    []Command
}

func (n *While) Span() Span { return n.SpanVal }
func (n *While) node()      {}
func (n *While) command()   {}

// For iterates Iterator from From to To inclusive, counting down when
// Down is set. Both bounds are evaluated once before the first iteration.
type For struct {
	SpanVal  Span
	Iterator string
	From     Value
	To       Value
	Down     bool
	Body     []Command
}

func (n *For) Span() Span { return n.SpanVal }
func (n *For) node()      {}
func (n *For) command()   {}

// Read stores the next input number in Target.
type Read struct {
	SpanVal Span
	Target  *Identifier
}

func (n *Read) Span() Span { return n.SpanVal }
func (n *Read) node()      {}
func (n *Read) command()   {}

// Write outputs a value.
type Write struct {
	SpanVal Span
	Value   Value
}

func (n *Write) Span() Span { return n.SpanVal }
func (n *Write) node()      {}
func (n *Write) command()   {}

// Skip does nothing.
type Skip struct {
	SpanVal Span
}

func (n *Skip) Span() Span { return n.SpanVal }
func (n *Skip) node()      {}
func (n *Skip) command()   {}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// Decl declares a scalar, or an array when Length is set.
type Decl struct {
	SpanVal Span
	Name    string
	Length  *big.Int
}

func (n *Decl) Span() Span { return n.SpanVal }
func (n *Decl) node()      {}

// IsArray reports whether n declares an array.
func (n *Decl) IsArray() bool { return n.Length != nil }

// Program is a complete source file.
type Program struct {
	SpanVal Span
	Decls   []*Decl
	Body    []Command
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}

// ---------------------------------------------------------------------------
// Walking
// ---------------------------------------------------------------------------

// Walk calls fn for every command in cmds in source order, descending into
// nested bodies. Returning false from fn skips the command's children.
func Walk(cmds []Command, fn func(Command) bool) {
	for _, c := range cmds {
		if !fn(c) {
			continue
		}
		switch n := c.(type) {
		case *If:
			Walk(n.Then, fn)
			Walk(n.Else, fn)
		case *While:
			Walk(n.Body, fn)
		case *For:
			Walk(n.Body, fn)
		}
	}
}
