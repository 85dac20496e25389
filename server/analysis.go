package server

import (
	"errors"
	"regexp"
	"strconv"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/regc/compiler"
	"github.com/chazu/regc/pkg/codegen"
	"github.com/chazu/regc/pkg/pipeline"
)

// analysis is what the server knows about one document version.
type analysis struct {
	diagnostics []protocol.Diagnostic

	decls      map[string]*compiler.Decl
	iterators  map[string]bool
	placements map[string]codegen.Placement

	// set when code generation succeeded
	instructions int
	cost         uint64
}

var (
	lineColRe = regexp.MustCompile(`^line (\d+), column (\d+): (.*)$`)
	lineRe    = regexp.MustCompile(`^line (\d+): (.*)$`)
)

// diagnostic converts a compiler message to a diagnostic. Messages carry
// 1-based positions; LSP positions are 0-based.
func diagnostic(msg string, severity protocol.DiagnosticSeverity) protocol.Diagnostic {
	var line, col int
	if m := lineColRe.FindStringSubmatch(msg); m != nil {
		line, _ = strconv.Atoi(m[1])
		col, _ = strconv.Atoi(m[2])
		msg = m[3]
	} else if m := lineRe.FindStringSubmatch(msg); m != nil {
		line, _ = strconv.Atoi(m[1])
		msg = m[2]
	}
	if line > 0 {
		line--
	}
	if col > 0 {
		col--
	}
	pos := protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
	source := lspName
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: pos, End: pos},
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

// analyze checks text and, when it is error-free, generates code to learn
// where every name lives.
func analyze(text string, opts codegen.Options) *analysis {
	a := &analysis{
		decls:      make(map[string]*compiler.Decl),
		iterators:  make(map[string]bool),
		placements: make(map[string]codegen.Placement),
	}

	prog, warnings, err := pipeline.Check(text)
	for _, w := range warnings {
		a.diagnostics = append(a.diagnostics, diagnostic(w, protocol.DiagnosticSeverityWarning))
	}

	var perr *compiler.ParseError
	var cerr *pipeline.CheckError
	switch {
	case errors.As(err, &perr):
		for _, msg := range perr.Errors {
			a.diagnostics = append(a.diagnostics, diagnostic(msg, protocol.DiagnosticSeverityError))
		}
		return a
	case errors.As(err, &cerr):
		for _, msg := range cerr.Errors {
			a.diagnostics = append(a.diagnostics, diagnostic(msg, protocol.DiagnosticSeverityError))
		}
	case err != nil:
		a.diagnostics = append(a.diagnostics, diagnostic(err.Error(), protocol.DiagnosticSeverityError))
	}

	for _, d := range prog.Decls {
		a.decls[d.Name] = d
	}
	compiler.Walk(prog.Body, func(cmd compiler.Command) bool {
		if f, ok := cmd.(*compiler.For); ok {
			a.iterators[f.Iterator] = true
		}
		return true
	})
	if err != nil {
		return a
	}

	gen, err := codegen.Generate(prog, opts)
	if err != nil {
		a.diagnostics = append(a.diagnostics, diagnostic(err.Error(), protocol.DiagnosticSeverityError))
		return a
	}
	for _, p := range gen.Placements {
		a.placements[p.Name] = p
	}
	a.instructions = gen.Program.Len()
	a.cost = gen.Program.StaticCost()
	return a
}
