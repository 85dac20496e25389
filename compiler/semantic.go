package compiler

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: pre-codegen checks
// ---------------------------------------------------------------------------

// SemanticAnalyzer checks declarations and uses before code generation:
// undeclared names, redeclarations, scalar/array misuse, writes to loop
// iterators and constant indexes outside an array.
type SemanticAnalyzer struct {
	errors   []string
	warnings []string

	decls     map[string]*Decl
	iterators []string // enclosing FOR loops, innermost last

	assigned map[string]bool
	read     map[string]*Identifier
}

// NewSemanticAnalyzer creates a new semantic analyzer.
func NewSemanticAnalyzer() *SemanticAnalyzer {
	return &SemanticAnalyzer{
		decls:    make(map[string]*Decl),
		assigned: make(map[string]bool),
		read:     make(map[string]*Identifier),
	}
}

// Errors returns accumulated analysis errors.
func (s *SemanticAnalyzer) Errors() []string {
	return s.errors
}

// Warnings returns accumulated warnings.
func (s *SemanticAnalyzer) Warnings() []string {
	return s.warnings
}

// errorAt records an error with position information.
func (s *SemanticAnalyzer) errorAt(node Node, format string, args ...interface{}) {
	pos := node.Span().Start
	msg := fmt.Sprintf("line %d, column %d: %s", pos.Line, pos.Column, fmt.Sprintf(format, args...))
	s.errors = append(s.errors, msg)
}

// warnAt records a warning with position information.
func (s *SemanticAnalyzer) warnAt(node Node, format string, args ...interface{}) {
	pos := node.Span().Start
	msg := fmt.Sprintf("warning: line %d, column %d: %s", pos.Line, pos.Column, fmt.Sprintf(format, args...))
	s.warnings = append(s.warnings, msg)
}

// AnalyzeProgram performs semantic analysis on a whole program.
func (s *SemanticAnalyzer) AnalyzeProgram(prog *Program) {
	for _, d := range prog.Decls {
		if _, dup := s.decls[d.Name]; dup {
			s.errorAt(d, "'%s' declared twice", d.Name)
			continue
		}
		if d.IsArray() && d.Length.Sign() == 0 {
			s.errorAt(d, "array '%s' has length 0", d.Name)
		}
		s.decls[d.Name] = d
	}

	s.analyzeCommands(prog.Body)

	for _, d := range prog.Decls {
		if d.IsArray() || s.assigned[d.Name] {
			continue
		}
		if use, ok := s.read[d.Name]; ok {
			s.warnAt(use, "'%s' is read but never assigned", d.Name)
		}
	}
}

func (s *SemanticAnalyzer) isIterator(name string) bool {
	for _, it := range s.iterators {
		if it == name {
			return true
		}
	}
	return false
}

func (s *SemanticAnalyzer) analyzeCommands(cmds []Command) {
	for _, c := range cmds {
		s.analyzeCommand(c)
	}
}

func (s *SemanticAnalyzer) analyzeCommand(cmd Command) {
	switch c := cmd.(type) {
	case *Assign:
		s.analyzeValue(c.Expr.Left)
		if c.Expr.Right != nil {
			s.analyzeValue(c.Expr.Right)
		}
		s.checkTarget(c.Target)
	case *Read:
		s.checkTarget(c.Target)
	case *Write:
		s.analyzeValue(c.Value)
	case *If:
		s.analyzeCondition(c.Cond)
		s.analyzeCommands(c.Then)
		s.analyzeCommands(c.Else)
	case *While:
		s.analyzeCondition(c.Cond)
		s.analyzeCommands(c.Body)
	case *For:
		s.analyzeValue(c.From)
		s.analyzeValue(c.To)
		if _, ok := s.decls[c.Iterator]; ok || s.isIterator(c.Iterator) {
			s.errorAt(c, "loop variable '%s' redeclares an existing name", c.Iterator)
		}
		s.iterators = append(s.iterators, c.Iterator)
		s.analyzeCommands(c.Body)
		s.iterators = s.iterators[:len(s.iterators)-1]
	case *Skip:
		// OK
	}
}

func (s *SemanticAnalyzer) analyzeCondition(c *Condition) {
	s.analyzeValue(c.Left)
	s.analyzeValue(c.Right)
}

func (s *SemanticAnalyzer) analyzeValue(v Value) {
	if id, ok := v.(*Identifier); ok {
		s.checkIdentifier(id)
		if !id.IsElement() {
			if _, seen := s.read[id.Name]; !seen {
				s.read[id.Name] = id
			}
		}
	}
}

// checkTarget checks an identifier that is written.
func (s *SemanticAnalyzer) checkTarget(id *Identifier) {
	if !id.IsElement() && s.isIterator(id.Name) {
		s.errorAt(id, "cannot assign to loop variable '%s'", id.Name)
		return
	}
	if s.checkIdentifier(id) && !id.IsElement() {
		s.assigned[id.Name] = true
	}
}

// checkIdentifier reports misuse of id and returns whether it names a
// declared scalar or element.
func (s *SemanticAnalyzer) checkIdentifier(id *Identifier) bool {
	if s.isIterator(id.Name) {
		if id.IsElement() {
			s.errorAt(id, "loop variable '%s' is not an array", id.Name)
			return false
		}
		return true
	}

	d, ok := s.decls[id.Name]
	if !ok {
		s.errorAt(id, "undeclared identifier '%s'", id.Name)
		return false
	}
	if !id.IsElement() {
		if d.IsArray() {
			s.errorAt(id, "array '%s' used without an index", id.Name)
			return false
		}
		return true
	}
	if !d.IsArray() {
		s.errorAt(id, "'%s' is not an array", id.Name)
		return false
	}

	switch idx := id.Index.(type) {
	case *Number:
		if idx.Value.Cmp(d.Length) >= 0 {
			s.errorAt(id, "index %s out of range for '%s[%s]'", idx.Value, id.Name, d.Length)
			return false
		}
	case *Identifier:
		if !s.checkIdentifier(idx) {
			return false
		}
		if _, seen := s.read[idx.Name]; !seen {
			s.read[idx.Name] = idx
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Integration with Compile function
// ---------------------------------------------------------------------------

// Analyze runs semantic analysis on a program and returns its errors and
// warnings.
func Analyze(prog *Program) (errs, warnings []string) {
	analyzer := NewSemanticAnalyzer()
	analyzer.AnalyzeProgram(prog)
	return analyzer.Errors(), analyzer.Warnings()
}
