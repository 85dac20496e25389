package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chazu/regc/manifest"
	"github.com/chazu/regc/pkg/cache"
	"github.com/chazu/regc/pkg/codegen"
	"github.com/chazu/regc/pkg/isa"
	"github.com/chazu/regc/pkg/pipeline"
	"github.com/chazu/regc/vm"
)

// loadConfig loads regc.toml from dir, or searches upward from the working
// directory when dir is empty. Without a file the defaults apply.
func loadConfig(dir string) (*manifest.Manifest, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
		m.Dir = wd
		m.Cache.Disabled = true
	}
	return m, nil
}

func codegenOptions(cfg *manifest.Manifest) (codegen.Options, error) {
	layout, err := cfg.MemoryLayout()
	if err != nil {
		return codegen.Options{}, err
	}
	return codegen.Options{
		Registers: cfg.Machine.Registers,
		Layout:    layout,
		Propagate: *cfg.Compiler.Propagate,
	}, nil
}

type runOptions struct {
	cost    bool
	profile int

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// build is one compile invocation.
type build struct {
	source    string
	output    string
	image     string
	printText bool
	run       bool
	runOptions
}

func (b *build) do(ctx context.Context, cfg *manifest.Manifest) error {
	src, err := os.ReadFile(b.source)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", b.source, err)
	}

	cg, err := codegenOptions(cfg)
	if err != nil {
		return err
	}
	opts := pipeline.Options{
		Codegen:       cg,
		Optimize:      *cfg.Compiler.Optimize,
		IncludeSource: cfg.Output.IncludeSource,
	}
	if !cfg.Cache.Disabled {
		c, err := cache.Open(cfg.CachePath())
		if err != nil {
			return err
		}
		defer c.Close()
		opts.Cache = c
	}

	res, err := pipeline.Compile(ctx, string(src), opts)
	if err != nil {
		return fmt.Errorf("%s: %w", b.source, err)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(b.stderr, "%s: %s\n", b.source, w)
	}

	if b.printText {
		fmt.Fprint(b.stdout, res.Text())
	}
	if b.output != "" {
		if err := writeFile(b.output, []byte(res.Text())); err != nil {
			return err
		}
	}
	if b.image != "" {
		data, err := isa.MarshalImage(res.Image)
		if err != nil {
			return err
		}
		if err := writeFile(b.image, data); err != nil {
			return err
		}
	}
	if b.cost {
		fmt.Fprintf(b.stderr, "static cost: %d (%d instructions)\n", res.StaticCost(), len(res.Image.Code))
	}
	if b.run {
		return runImage(ctx, res.Image, cfg, b.runOptions)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// execFile runs a saved image.
func execFile(ctx context.Context, path string, cfg *manifest.Manifest, opts runOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	img, err := isa.UnmarshalImage(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return runImage(ctx, img, cfg, opts)
}

func runImage(ctx context.Context, img *isa.Image, cfg *manifest.Manifest, opts runOptions) error {
	machine := vm.Config{
		Registers: cfg.Machine.Registers,
		StepLimit: cfg.Machine.StepLimit,
		In:        opts.stdin,
		Out:       opts.stdout,
		Profile:   opts.profile > 0,
	}
	if machine.Registers < img.Registers {
		machine.Registers = img.Registers
	}
	m, err := vm.New(img.Code, machine)
	if err != nil {
		return err
	}
	stats, err := m.Run(ctx)
	if opts.cost {
		fmt.Fprintf(opts.stderr, "dynamic cost: %d (%d steps)\n", stats.Cost, stats.Steps)
	}
	if err != nil {
		return err
	}
	if opts.profile > 0 {
		for _, lc := range m.Profile().Hot(opts.profile) {
			fmt.Fprintf(opts.stderr, "%6d  %10d  %s\n", lc.Line, lc.Count, img.Code[lc.Line])
		}
	}
	return nil
}
