package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/regc/compiler"
	"github.com/chazu/regc/pkg/cache"
	"github.com/chazu/regc/pkg/codegen"
	"github.com/chazu/regc/vm"
)

const sumSource = `VAR n s BEGIN
	{ sum of 1..n }
	READ n;
	s := 0;
	FOR i FROM 1 TO n DO s := s + i; ENDFOR
	WRITE s;
END`

func compileAndRun(t *testing.T, src, input string, opts Options) (*Result, string) {
	t.Helper()
	res, err := Compile(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var out bytes.Buffer
	if _, err := Run(context.Background(), res.Image, vm.Config{In: strings.NewReader(input), Out: &out}); err != nil {
		t.Fatalf("Run: %v\n%s", err, res.Text())
	}
	return res, strings.TrimSpace(out.String())
}

func TestCompileAndRun(t *testing.T) {
	res, out := compileAndRun(t, sumSource, "100", DefaultOptions())
	if out != "5050" {
		t.Errorf("output = %q, want 5050", out)
	}
	if res.Cached {
		t.Error("first build reported as cached")
	}
	if len(res.Placements) != 2 {
		t.Errorf("placements = %v", res.Placements)
	}
	if res.StaticCost() < 200 {
		t.Errorf("static cost = %d", res.StaticCost())
	}
}

func TestOptimizerDoesNotChangeResults(t *testing.T) {
	src := `VAR a b BEGIN
	READ a;
	b := 2 * 3;
	IF 1 = 1 THEN b := b + a; ENDIF
	WHILE 2 < 1 DO WRITE 0; ENDWHILE
	a := a + 0;
	WRITE b; WRITE a;
END`
	on := DefaultOptions()
	off := DefaultOptions()
	off.Optimize = false

	_, outOn := compileAndRun(t, src, "4", on)
	_, outOff := compileAndRun(t, src, "4", off)
	if outOn != "10\n4" || outOff != outOn {
		t.Errorf("optimized %q, unoptimized %q, want %q", outOn, outOff, "10\n4")
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		as   interface{}
	}{
		{"syntax", `VAR a BEGIN a := ; END`, new(*compiler.ParseError)},
		{"check", `VAR a BEGIN b := 1; END`, new(*CheckError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(context.Background(), tt.src, DefaultOptions())
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.As(err, tt.as) {
				t.Errorf("err = %T %v", err, err)
			}
		})
	}
}

func TestCheckWarnings(t *testing.T) {
	_, warnings, err := Check(`VAR a b BEGIN WRITE a; END`)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for reading a before assignment")
	}
}

func TestCompileUsesCache(t *testing.T) {
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer c.Close()

	opts := DefaultOptions()
	opts.Cache = c
	opts.IncludeSource = true

	first, out := compileAndRun(t, sumSource, "10", opts)
	if first.Cached || out != "55" {
		t.Fatalf("first build: cached=%v output=%q", first.Cached, out)
	}
	second, out := compileAndRun(t, sumSource, "10", opts)
	if !second.Cached || out != "55" {
		t.Fatalf("second build: cached=%v output=%q", second.Cached, out)
	}
	if second.Image.ID != first.Image.ID || second.Image.Source != sumSource {
		t.Errorf("cached image = %+v", second.Image)
	}

	opts.Codegen.Registers = codegen.MinRegisters
	third, _ := compileAndRun(t, sumSource, "10", opts)
	if third.Cached {
		t.Error("changing the register count should miss the cache")
	}
}

func TestRunChecksRegisterCount(t *testing.T) {
	res, err := Compile(context.Background(), sumSource, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	_, err = Run(context.Background(), res.Image, vm.Config{Registers: 2})
	if err == nil {
		t.Error("expected an error for a machine smaller than the image")
	}
}

func TestCompileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Compile(ctx, sumSource, DefaultOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
