// Package manifest handles regc.toml project configuration.
package manifest

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/regc/pkg/memory"
)

// FileName is the name of the configuration file.
const FileName = "regc.toml"

// Manifest represents a regc.toml project configuration.
type Manifest struct {
	Project  Project        `toml:"project"`
	Source   Source         `toml:"source"`
	Machine  Machine        `toml:"machine"`
	Layout   Layout         `toml:"layout"`
	Compiler CompilerConfig `toml:"compiler"`
	Output   Output         `toml:"output"`
	Cache    Cache          `toml:"cache"`

	// Dir is the directory containing the regc.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"`
}

// Machine describes the target machine.
type Machine struct {
	Registers int    `toml:"registers"`
	StepLimit uint64 `toml:"step-limit"`
}

// Layout places the memory segments. Each fixed segment is a
// [first, last] pair; the oversized base is a decimal string since it
// usually exceeds 64 bits.
type Layout struct {
	Loop          []uint64 `toml:"loop"`
	Scalars       []uint64 `toml:"scalars"`
	Arrays        []uint64 `toml:"arrays"`
	OversizedBase string   `toml:"oversized-base"`
}

// CompilerConfig toggles compiler passes. Pointers distinguish an
// explicit false from an absent key.
type CompilerConfig struct {
	Optimize  *bool `toml:"optimize"`
	Propagate *bool `toml:"propagate"`
}

// Output configures what a build writes.
type Output struct {
	Program       string `toml:"program"`
	Image         string `toml:"image"`
	IncludeSource bool   `toml:"include-source"`
}

// Cache configures the build cache.
type Cache struct {
	Path     string `toml:"path"`
	Disabled bool   `toml:"disabled"`
}

// Default returns the configuration used without a regc.toml.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Machine.Registers == 0 {
		m.Machine.Registers = 8
	}
	def := memory.DefaultLayout()
	if m.Layout.Loop == nil {
		m.Layout.Loop = []uint64{def.Loop.First, def.Loop.Last}
	}
	if m.Layout.Scalars == nil {
		m.Layout.Scalars = []uint64{def.Scalars.First, def.Scalars.Last}
	}
	if m.Layout.Arrays == nil {
		m.Layout.Arrays = []uint64{def.Arrays.First, def.Arrays.Last}
	}
	if m.Layout.OversizedBase == "" {
		m.Layout.OversizedBase = def.OversizedBase.String()
	}
	if m.Compiler.Optimize == nil {
		m.Compiler.Optimize = boolPtr(true)
	}
	if m.Compiler.Propagate == nil {
		m.Compiler.Propagate = boolPtr(true)
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".regc", "cache.db")
	}
}

func boolPtr(b bool) *bool { return &b }

// Load parses a regc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if _, err := m.MemoryLayout(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if m.Machine.Registers < 2 {
		return nil, fmt.Errorf("%s: machine needs at least 2 registers, got %d", path, m.Machine.Registers)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a regc.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func toRange(name string, pair []uint64) (memory.Range, error) {
	if len(pair) != 2 {
		return memory.Range{}, fmt.Errorf("layout.%s must be [first, last], got %v", name, pair)
	}
	return memory.Range{First: pair[0], Last: pair[1]}, nil
}

// MemoryLayout converts the layout section and validates it.
func (m *Manifest) MemoryLayout() (memory.Layout, error) {
	var l memory.Layout
	var err error
	if l.Loop, err = toRange("loop", m.Layout.Loop); err != nil {
		return l, err
	}
	if l.Scalars, err = toRange("scalars", m.Layout.Scalars); err != nil {
		return l, err
	}
	if l.Arrays, err = toRange("arrays", m.Layout.Arrays); err != nil {
		return l, err
	}
	base, ok := new(big.Int).SetString(m.Layout.OversizedBase, 10)
	if !ok {
		return l, fmt.Errorf("layout.oversized-base %q is not a number", m.Layout.OversizedBase)
	}
	l.OversizedBase = base
	return l, l.Validate()
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// EntryPath returns the absolute path of the entry program, or "" when
// none is configured.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	if filepath.IsAbs(m.Source.Entry) {
		return m.Source.Entry
	}
	return filepath.Join(m.Dir, m.Source.Entry)
}

// CachePath returns the absolute path of the build cache database.
func (m *Manifest) CachePath() string {
	if filepath.IsAbs(m.Cache.Path) {
		return m.Cache.Path
	}
	return filepath.Join(m.Dir, m.Cache.Path)
}
