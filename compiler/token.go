package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenNumber     // 42, arbitrarily long
	TokenIdentifier // n, tab, _tmp

	// Operators
	TokenAssign // :=
	TokenPlus   // +
	TokenMinus  // -
	TokenStar   // *
	TokenSlash  // /
	TokenPct    // %
	TokenEq     // =
	TokenNe     // <>
	TokenLt     // <
	TokenGt     // >
	TokenLe     // <=
	TokenGe     // >=

	// Delimiters
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenSemicolon // ;

	// Keywords
	TokenVar
	TokenBegin
	TokenEnd
	TokenIf
	TokenThen
	TokenElse
	TokenEndIf
	TokenWhile
	TokenDo
	TokenEndWhile
	TokenFor
	TokenFrom
	TokenTo
	TokenDownTo
	TokenEndFor
	TokenRead
	TokenWrite
	TokenSkip
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenNumber:     "NUMBER",
	TokenIdentifier: "IDENTIFIER",
	TokenAssign:     ":=",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenSlash:      "/",
	TokenPct:        "%",
	TokenEq:         "=",
	TokenNe:         "<>",
	TokenLt:         "<",
	TokenGt:         ">",
	TokenLe:         "<=",
	TokenGe:         ">=",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenSemicolon:  ";",
	TokenVar:        "VAR",
	TokenBegin:      "BEGIN",
	TokenEnd:        "END",
	TokenIf:         "IF",
	TokenThen:       "THEN",
	TokenElse:       "ELSE",
	TokenEndIf:      "ENDIF",
	TokenWhile:      "WHILE",
	TokenDo:         "DO",
	TokenEndWhile:   "ENDWHILE",
	TokenFor:        "FOR",
	TokenFrom:       "FROM",
	TokenTo:         "TO",
	TokenDownTo:     "DOWNTO",
	TokenEndFor:     "ENDFOR",
	TokenRead:       "READ",
	TokenWrite:      "WRITE",
	TokenSkip:       "SKIP",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types. Keywords are upper case;
// identifiers are lower case, so the two never collide.
var reservedWords = map[string]TokenType{
	"VAR":      TokenVar,
	"BEGIN":    TokenBegin,
	"END":      TokenEnd,
	"IF":       TokenIf,
	"THEN":     TokenThen,
	"ELSE":     TokenElse,
	"ENDIF":    TokenEndIf,
	"WHILE":    TokenWhile,
	"DO":       TokenDo,
	"ENDWHILE": TokenEndWhile,
	"FOR":      TokenFor,
	"FROM":     TokenFrom,
	"TO":       TokenTo,
	"DOWNTO":   TokenDownTo,
	"ENDFOR":   TokenEndFor,
	"READ":     TokenRead,
	"WRITE":    TokenWrite,
	"SKIP":     TokenSkip,
}

// Keywords returns every reserved word.
func Keywords() []string {
	out := make([]string, 0, len(reservedWords))
	for w := range reservedWords {
		out = append(out, w)
	}
	return out
}

// IsOperator returns true if t is an arithmetic operator.
func (t TokenType) IsOperator() bool {
	return t >= TokenPlus && t <= TokenPct
}

// IsRelation returns true if t is a comparison operator.
func (t TokenType) IsRelation() bool {
	return t >= TokenEq && t <= TokenGe
}
