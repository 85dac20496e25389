package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/regc/pkg/codegen"
	"github.com/chazu/regc/pkg/memory"
)

// ---------------------------------------------------------------------------
// Text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "READ ab", protocol.Position{Line: 0, Character: 7}, "ab"},
		{"at start", "WRI", protocol.Position{Line: 0, Character: 3}, "WRI"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "VAR\nBEGIN\nsu", protocol.Position{Line: 2, Character: 2}, "su"},
		{"after bracket", "t[id", protocol.Position{Line: 0, Character: 4}, "id"},
		{"cursor at beginning", "hello", protocol.Position{Line: 0, Character: 0}, ""},
		{"line beyond document", "one line", protocol.Position{Line: 5, Character: 0}, ""},
		{"column beyond line", "abc", protocol.Position{Line: 0, Character: 50}, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPrefix(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractPrefix = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"middle", "a := total + 1;", protocol.Position{Line: 0, Character: 7}, "total"},
		{"start", "total := 1;", protocol.Position{Line: 0, Character: 0}, "total"},
		{"end", "WRITE total", protocol.Position{Line: 0, Character: 11}, "total"},
		{"underscore", "my_var := 1;", protocol.Position{Line: 0, Character: 3}, "my_var"},
		{"on space", "a  b", protocol.Position{Line: 0, Character: 2}, ""},
		{"array", "t[i] := 1;", protocol.Position{Line: 0, Character: 0}, "t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractWord(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractWord = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

const goodSource = `VAR n t[10] BEGIN
	READ n;
	FOR i FROM 0 TO 9 DO t[i] := i; ENDFOR
	WRITE t[n];
END`

func TestAnalyzeClean(t *testing.T) {
	a := analyze(goodSource, codegen.DefaultOptions())
	if len(a.diagnostics) != 0 {
		t.Fatalf("diagnostics = %+v", a.diagnostics)
	}
	if a.instructions == 0 || a.cost == 0 {
		t.Errorf("instructions = %d, cost = %d", a.instructions, a.cost)
	}
	p, ok := a.placements["t"]
	if !ok || p.Segment != memory.Arrays {
		t.Errorf("placement of t = %+v", p)
	}
	if !a.iterators["i"] {
		t.Error("i not recorded as a loop variable")
	}
}

func TestAnalyzeParseError(t *testing.T) {
	a := analyze("VAR n BEGIN\n\tn := ;\nEND", codegen.DefaultOptions())
	if len(a.diagnostics) == 0 {
		t.Fatal("expected a diagnostic")
	}
	d := a.diagnostics[0]
	if d.Range.Start.Line != 1 {
		t.Errorf("diagnostic line = %d, want 1", d.Range.Start.Line)
	}
	if *d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v", *d.Severity)
	}
	if strings.HasPrefix(d.Message, "line") {
		t.Errorf("message still carries its position: %q", d.Message)
	}
}

func TestAnalyzeCheckErrorAndWarning(t *testing.T) {
	src := "VAR a b BEGIN\n\tWRITE a;\n\tc := 1;\nEND"
	a := analyze(src, codegen.DefaultOptions())

	var errs, warns int
	for _, d := range a.diagnostics {
		switch *d.Severity {
		case protocol.DiagnosticSeverityError:
			errs++
			if d.Range.Start.Line != 2 || d.Range.Start.Character != 1 {
				t.Errorf("error at %d:%d, want 2:1", d.Range.Start.Line, d.Range.Start.Character)
			}
		case protocol.DiagnosticSeverityWarning:
			warns++
		}
	}
	if errs != 1 || warns != 1 {
		t.Errorf("got %d errors and %d warnings: %+v", errs, warns, a.diagnostics)
	}
	if _, ok := a.decls["a"]; !ok {
		t.Error("declarations should be known despite errors")
	}
	if len(a.placements) != 0 {
		t.Error("no code should be generated for a program with errors")
	}
}

func TestDiagnosticPositions(t *testing.T) {
	tests := []struct {
		msg       string
		line, col protocol.UInteger
		text      string
	}{
		{"line 3, column 5: undeclared identifier 'x'", 2, 4, "undeclared identifier 'x'"},
		{"line 7: expected ';'", 6, 0, "expected ';'"},
		{"something odd", 0, 0, "something odd"},
	}
	for _, tt := range tests {
		d := diagnostic(tt.msg, protocol.DiagnosticSeverityError)
		if d.Range.Start.Line != tt.line || d.Range.Start.Character != tt.col || d.Message != tt.text {
			t.Errorf("diagnostic(%q) = %d:%d %q", tt.msg, d.Range.Start.Line, d.Range.Start.Character, d.Message)
		}
	}
}

// ---------------------------------------------------------------------------
// Hover and completion
// ---------------------------------------------------------------------------

func TestHover(t *testing.T) {
	a := analyze(goodSource, codegen.DefaultOptions())

	h := hover(a, "t")
	if h == nil {
		t.Fatal("no hover for t")
	}
	text := h.Contents.(protocol.MarkupContent).Value
	for _, want := range []string{"array of 10", "arrays segment", "to "} {
		if !strings.Contains(text, want) {
			t.Errorf("hover for t = %q, missing %q", text, want)
		}
	}

	h = hover(a, "i")
	if h == nil || !strings.Contains(h.Contents.(protocol.MarkupContent).Value, "loop variable") {
		t.Errorf("hover for i = %+v", h)
	}

	if hover(a, "zzz") != nil {
		t.Error("hover for an unknown word should be nil")
	}
}

func TestComplete(t *testing.T) {
	a := analyze(`VAR total tab[3] BEGIN FOR tick FROM 1 TO 2 DO SKIP; ENDFOR END`, codegen.DefaultOptions())

	items := complete(a, "t")
	var labels []string
	for _, it := range items {
		labels = append(labels, it.Label)
	}
	if got := strings.Join(labels, " "); got != "tab tick total" {
		t.Errorf("completions for t = %q", got)
	}
	if *items[0].Detail != "array[3]" || *items[1].Detail != "loop variable" {
		t.Errorf("details = %q, %q", *items[0].Detail, *items[1].Detail)
	}

	items = complete(a, "END")
	labels = labels[:0]
	for _, it := range items {
		labels = append(labels, it.Label)
	}
	if got := strings.Join(labels, " "); got != "END ENDFOR ENDIF ENDWHILE" {
		t.Errorf("completions for END = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Worker
// ---------------------------------------------------------------------------

func TestWorkerRecoversFromPanic(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	if _, err := w.Do(func() interface{} { panic("boom") }); err == nil {
		t.Error("expected the panic as an error")
	}
	v, err := w.Do(func() interface{} { return 42 })
	if err != nil || v.(int) != 42 {
		t.Errorf("Do = %v, %v", v, err)
	}
}
