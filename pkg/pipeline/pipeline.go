// Package pipeline runs a source program through every compiler stage:
// parsing, checking, optimization and code generation.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/regc/compiler"
	"github.com/chazu/regc/pkg/cache"
	"github.com/chazu/regc/pkg/codegen"
	"github.com/chazu/regc/pkg/isa"
	"github.com/chazu/regc/vm"
)

var log = commonlog.GetLogger("regc.pipeline")

// CheckError carries the errors found while checking a parsed program.
type CheckError struct {
	Errors []string
}

func (e *CheckError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0], len(e.Errors)-1)
}

// Options controls a compilation.
type Options struct {
	Codegen  codegen.Options
	Optimize bool

	// IncludeSource embeds the source in the image.
	IncludeSource bool

	// Cache, when set, is consulted before compiling and filled after.
	Cache *cache.Cache
}

// DefaultOptions returns options with every pass enabled and no cache.
func DefaultOptions() Options {
	return Options{
		Codegen:  codegen.DefaultOptions(),
		Optimize: true,
	}
}

func (o Options) settings() cache.Settings {
	return cache.Settings{
		Registers: o.Codegen.Registers,
		Layout:    o.Codegen.Layout,
		Optimize:  o.Optimize,
		Propagate: o.Codegen.Propagate,
	}
}

// Result is a compiled program.
type Result struct {
	Image      *isa.Image
	Placements []codegen.Placement // nil for cached builds
	Warnings   []string
	Cached     bool
}

// Text returns the program text.
func (r *Result) Text() string {
	return r.Image.Text()
}

// StaticCost sums the cost of every instruction in the program.
func (r *Result) StaticCost() uint64 {
	var total uint64
	for _, in := range r.Image.Code {
		total += in.Op.Cost()
	}
	return total
}

// Check parses and checks src without generating code. It returns the
// parsed program and the warnings.
func Check(src string) (*compiler.Program, []string, error) {
	prog, err := compiler.Parse(src)
	if err != nil {
		return nil, nil, err
	}
	errs, warnings := compiler.Analyze(prog)
	if len(errs) > 0 {
		return prog, warnings, &CheckError{Errors: errs}
	}
	return prog, warnings, nil
}

// Compile runs every stage over src.
func Compile(ctx context.Context, src string, opts Options) (*Result, error) {
	var key string
	if opts.Cache != nil {
		key = cache.Key(src, opts.settings())
		img, err := opts.Cache.Get(key)
		switch {
		case err == nil:
			log.Debugf("using cached build %s", img.ID)
			return &Result{Image: img, Cached: true}, nil
		case !errors.Is(err, cache.ErrMiss):
			log.Warningf("cache lookup failed: %s", err)
		}
	}

	prog, warnings, err := Check(src)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Optimize {
		prog = compiler.Optimize(prog)
	}

	gen, err := codegen.Generate(prog, opts.Codegen)
	if err != nil {
		return nil, err
	}
	img, err := isa.NewImage(gen.ID, gen.Registers, gen.Program)
	if err != nil {
		return nil, err
	}
	if opts.IncludeSource {
		img.Source = src
	}
	log.Infof("compiled %s: %d instructions", gen.ID, len(img.Code))

	if opts.Cache != nil {
		if err := opts.Cache.Put(key, img); err != nil {
			log.Warningf("cache store failed: %s", err)
		}
	}
	return &Result{Image: img, Placements: gen.Placements, Warnings: warnings}, nil
}

// Run executes a compiled image.
func Run(ctx context.Context, img *isa.Image, cfg vm.Config) (vm.Stats, error) {
	if cfg.Registers == 0 {
		cfg.Registers = img.Registers
	}
	if cfg.Registers < img.Registers {
		return vm.Stats{}, fmt.Errorf("image needs %d registers, machine has %d", img.Registers, cfg.Registers)
	}
	m, err := vm.New(img.Code, cfg)
	if err != nil {
		return vm.Stats{}, err
	}
	return m.Run(ctx)
}
