package compiler

import (
	"fmt"
	"math/big"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent
// ---------------------------------------------------------------------------

// Parser parses program source into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	prevEnd   Position
	errors    []string
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	if p.curToken.Literal != "" {
		end := p.curToken.Pos
		end.Offset += len(p.curToken.Literal)
		end.Column += len(p.curToken.Literal)
		p.prevEnd = end
	}
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	for p.peekToken.Type == TokenError {
		p.errorAt(p.peekToken.Pos, "%s", p.peekToken.Literal)
		p.peekToken = p.lexer.NextToken()
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken.Type)
	return false
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errorAt(p.curToken.Pos, format, args...)
}

func (p *Parser) errorAt(pos Position, format string, args ...interface{}) {
	msg := fmt.Sprintf("line %d: %s", pos.Line, fmt.Sprintf(format, args...))
	p.errors = append(p.errors, msg)
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) span(start Position) Span {
	return Span{Start: start, End: p.prevEnd}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses a complete program. The result is nil only when the
// program header is missing; check Errors for everything else.
func (p *Parser) ParseProgram() *Program {
	start := p.curToken.Pos
	if !p.expect(TokenVar) {
		return nil
	}
	prog := &Program{Decls: p.parseDecls()}
	p.expect(TokenBegin)
	prog.Body = p.parseCommands(TokenEnd)
	p.expect(TokenEnd)
	if !p.curTokenIs(TokenEOF) {
		p.errorf("unexpected %s after END", p.curToken.Type)
	}
	prog.SpanVal = p.span(start)
	return prog
}

// ParseCommands parses a command sequence up to EOF. It is used for
// snippets in tests and tooling.
func (p *Parser) ParseCommands() []Command {
	return p.parseCommands(TokenEOF)
}

func (p *Parser) parseDecls() []*Decl {
	var decls []*Decl
	for p.curTokenIs(TokenIdentifier) {
		start := p.curToken.Pos
		d := &Decl{Name: p.curToken.Literal}
		p.nextToken()
		if p.curTokenIs(TokenLBracket) {
			p.nextToken()
			if n, ok := p.parseNumber(); ok {
				d.Length = n
			}
			p.expect(TokenRBracket)
		}
		d.SpanVal = p.span(start)
		decls = append(decls, d)
	}
	return decls
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func isCommandEnd(t TokenType) bool {
	switch t {
	case TokenEOF, TokenEnd, TokenElse, TokenEndIf, TokenEndWhile, TokenEndFor:
		return true
	}
	return false
}

// parseCommands parses commands until a terminator. Terminators other than
// want are left for the caller to report.
func (p *Parser) parseCommands(want TokenType) []Command {
	var cmds []Command
	for !isCommandEnd(p.curToken.Type) {
		before := len(p.errors)
		cmd := p.parseCommand()
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		if len(p.errors) > before {
			p.synchronize()
		}
	}
	if len(cmds) == 0 && want != TokenEOF {
		p.errorf("expected a command before %s", p.curToken.Type)
	}
	return cmds
}

// synchronize skips to the start of the next command after an error.
func (p *Parser) synchronize() {
	for !isCommandEnd(p.curToken.Type) {
		switch p.curToken.Type {
		case TokenSemicolon:
			p.nextToken()
			return
		case TokenIf, TokenWhile, TokenFor, TokenRead, TokenWrite, TokenSkip:
			return
		}
		p.nextToken()
	}
}

func (p *Parser) parseCommand() Command {
	start := p.curToken.Pos
	switch p.curToken.Type {
	case TokenIdentifier:
		target := p.parseIdentifier()
		if target == nil {
			return nil
		}
		if !p.expect(TokenAssign) {
			return nil
		}
		expr := p.parseExpression()
		if expr == nil || !p.expect(TokenSemicolon) {
			return nil
		}
		return &Assign{SpanVal: p.span(start), Target: target, Expr: expr}

	case TokenIf:
		return p.parseIf()

	case TokenWhile:
		p.nextToken()
		cond := p.parseCondition()
		if cond == nil || !p.expect(TokenDo) {
			return nil
		}
		body := p.parseCommands(TokenEndWhile)
		if !p.expect(TokenEndWhile) {
			return nil
		}
		return &While{SpanVal: p.span(start), Cond: cond, Body: body}

	case TokenFor:
		return p.parseFor()

	case TokenRead:
		p.nextToken()
		target := p.parseIdentifier()
		if target == nil || !p.expect(TokenSemicolon) {
			return nil
		}
		return &Read{SpanVal: p.span(start), Target: target}

	case TokenWrite:
		p.nextToken()
		v := p.parseValue()
		if v == nil || !p.expect(TokenSemicolon) {
			return nil
		}
		return &Write{SpanVal: p.span(start), Value: v}

	case TokenSkip:
		p.nextToken()
		if !p.expect(TokenSemicolon) {
			return nil
		}
		return &Skip{SpanVal: p.span(start)}
	}

	p.errorf("unexpected %s at start of command", p.curToken.Type)
	p.nextToken()
	return nil
}

func (p *Parser) parseIf() Command {
	start := p.curToken.Pos
	p.nextToken()
	cond := p.parseCondition()
	if cond == nil || !p.expect(TokenThen) {
		return nil
	}
	n := &If{Cond: cond, Then: p.parseCommands(TokenElse)}
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		n.Else = p.parseCommands(TokenEndIf)
	}
	if !p.expect(TokenEndIf) {
		return nil
	}
	n.SpanVal = p.span(start)
	return n
}

func (p *Parser) parseFor() Command {
	start := p.curToken.Pos
	p.nextToken()
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected loop variable, got %s", p.curToken.Type)
		return nil
	}
	n := &For{Iterator: p.curToken.Literal}
	p.nextToken()
	if !p.expect(TokenFrom) {
		return nil
	}
	if n.From = p.parseValue(); n.From == nil {
		return nil
	}
	switch p.curToken.Type {
	case TokenTo:
	case TokenDownTo:
		n.Down = true
	default:
		p.errorf("expected TO or DOWNTO, got %s", p.curToken.Type)
		return nil
	}
	p.nextToken()
	if n.To = p.parseValue(); n.To == nil {
		return nil
	}
	if !p.expect(TokenDo) {
		return nil
	}
	n.Body = p.parseCommands(TokenEndFor)
	if !p.expect(TokenEndFor) {
		return nil
	}
	n.SpanVal = p.span(start)
	return n
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var operators = map[TokenType]Operator{
	TokenPlus:  OpAdd,
	TokenMinus: OpSub,
	TokenStar:  OpMul,
	TokenSlash: OpDiv,
	TokenPct:   OpMod,
}

var relations = map[TokenType]Relation{
	TokenEq: RelEq,
	TokenNe: RelNe,
	TokenLt: RelLt,
	TokenGt: RelGt,
	TokenLe: RelLe,
	TokenGe: RelGe,
}

func (p *Parser) parseExpression() *Expression {
	start := p.curToken.Pos
	left := p.parseValue()
	if left == nil {
		return nil
	}
	e := &Expression{Left: left}
	if op, ok := operators[p.curToken.Type]; ok {
		p.nextToken()
		e.Op = op
		if e.Right = p.parseValue(); e.Right == nil {
			return nil
		}
	}
	e.SpanVal = p.span(start)
	return e
}

func (p *Parser) parseCondition() *Condition {
	start := p.curToken.Pos
	left := p.parseValue()
	if left == nil {
		return nil
	}
	rel, ok := relations[p.curToken.Type]
	if !ok {
		p.errorf("expected comparison, got %s", p.curToken.Type)
		return nil
	}
	p.nextToken()
	right := p.parseValue()
	if right == nil {
		return nil
	}
	return &Condition{SpanVal: p.span(start), Left: left, Rel: rel, Right: right}
}

func (p *Parser) parseValue() Value {
	switch p.curToken.Type {
	case TokenNumber:
		start := p.curToken.Pos
		n, ok := p.parseNumber()
		if !ok {
			return nil
		}
		return &Number{SpanVal: p.span(start), Value: n}
	case TokenIdentifier:
		if id := p.parseIdentifier(); id != nil {
			return id
		}
		return nil
	}
	p.errorf("expected number or identifier, got %s", p.curToken.Type)
	return nil
}

func (p *Parser) parseNumber() (*big.Int, bool) {
	if !p.curTokenIs(TokenNumber) {
		p.errorf("expected number, got %s", p.curToken.Type)
		return nil, false
	}
	n, ok := new(big.Int).SetString(p.curToken.Literal, 10)
	if !ok {
		p.errorf("invalid number %q", p.curToken.Literal)
		return nil, false
	}
	p.nextToken()
	return n, true
}

func (p *Parser) parseIdentifier() *Identifier {
	start := p.curToken.Pos
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected identifier, got %s", p.curToken.Type)
		return nil
	}
	id := &Identifier{Name: p.curToken.Literal}
	p.nextToken()
	if !p.curTokenIs(TokenLBracket) {
		id.SpanVal = p.span(start)
		return id
	}

	p.nextToken()
	switch p.curToken.Type {
	case TokenNumber:
		idxStart := p.curToken.Pos
		n, ok := p.parseNumber()
		if !ok {
			return nil
		}
		id.Index = &Number{SpanVal: p.span(idxStart), Value: n}
	case TokenIdentifier:
		id.Index = &Identifier{
			SpanVal: Span{Start: p.curToken.Pos, End: p.peekToken.Pos},
			Name:    p.curToken.Literal,
		}
		p.nextToken()
	default:
		p.errorf("expected index, got %s", p.curToken.Type)
		return nil
	}
	if !p.expect(TokenRBracket) {
		return nil
	}
	id.SpanVal = p.span(start)
	return id
}

// ---------------------------------------------------------------------------
// Convenience
// ---------------------------------------------------------------------------

// ParseError collects every error reported while parsing one source.
type ParseError struct {
	Errors []string
}

func (e *ParseError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0], len(e.Errors)-1)
}

// Parse parses source and returns the program or a *ParseError.
func Parse(source string) (*Program, error) {
	p := NewParser(source)
	prog := p.ParseProgram()
	if len(p.Errors()) > 0 {
		return nil, &ParseError{Errors: p.Errors()}
	}
	return prog, nil
}
