// regc compiles programs for the register machine and runs them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/regc/server"
)

func main() {
	output := flag.String("o", "", "Write the program text to this file")
	run := flag.Bool("run", false, "Run the program after compiling")
	cost := flag.Bool("cost", false, "Print the static cost, and the dynamic cost when running")
	noOpt := flag.Bool("no-opt", false, "Disable the optimizer")
	config := flag.String("config", "", "Directory containing regc.toml (default: search upward from the working directory)")
	image := flag.String("image", "", "Write a binary image to this file")
	execImage := flag.String("exec", "", "Run a binary image instead of compiling")
	cachePath := flag.String("cache", "", "Build cache database (default: from regc.toml)")
	registers := flag.Int("regs", 0, "Override the machine's register count")
	profile := flag.Int("profile", 0, "After running, print the N most executed lines")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdio")
	verbosity := flag.Int("v", 0, "Log verbosity (0-4)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: regc [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles a program to register machine code. Without a file the entry\n")
		fmt.Fprintf(os.Stderr, "from regc.toml is used.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  regc prog.imp                 # Print the program\n")
		fmt.Fprintf(os.Stderr, "  regc -o prog.mr prog.imp      # Write the program to prog.mr\n")
		fmt.Fprintf(os.Stderr, "  regc -run -cost prog.imp      # Compile, run, report costs\n")
		fmt.Fprintf(os.Stderr, "  regc -image prog.rimg prog.imp\n")
		fmt.Fprintf(os.Stderr, "  regc -exec prog.rimg          # Run a saved image\n")
		fmt.Fprintf(os.Stderr, "  regc -lsp                     # Language server for editors\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	cfg, err := loadConfig(*config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *registers != 0 {
		cfg.Machine.Registers = *registers
	}
	if *noOpt {
		cfg.Compiler.Optimize = boolPtr(false)
	}
	if *cachePath != "" {
		cfg.Cache.Path = *cachePath
		cfg.Cache.Disabled = false
	}

	if *lspMode {
		opts, err := codegenOptions(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := server.NewLSP(opts).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx := context.Background()
	runOpts := runOptions{
		cost:    *cost,
		profile: *profile,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	if *execImage != "" {
		if err := execFile(ctx, *execImage, cfg, runOpts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	path := flag.Arg(0)
	if path == "" {
		path = cfg.EntryPath()
	}
	if path == "" {
		flag.Usage()
		os.Exit(2)
	}

	b := build{
		source:     path,
		output:     *output,
		image:      *image,
		printText:  *output == "" && *image == "" && !*run,
		run:        *run,
		runOptions: runOpts,
	}
	if err := b.do(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func boolPtr(b bool) *bool { return &b }
