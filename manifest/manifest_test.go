package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/regc/pkg/memory"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "sums"
version = "0.1.0"

[source]
dirs = ["src", "lib"]
entry = "src/main.imp"

[machine]
registers = 6
step-limit = 5000

[layout]
loop = [0, 63]
scalars = [64, 1023]
arrays = [1024, 65535]
oversized-base = "1000000"

[compiler]
optimize = false

[output]
program = "out/main.mr"
image = "out/main.rimg"
include-source = true

[cache]
path = "/tmp/regc-cache.db"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "sums" {
		t.Errorf("project name = %q, want sums", m.Project.Name)
	}
	if len(m.Source.Dirs) != 2 {
		t.Errorf("source dirs count = %d, want 2", len(m.Source.Dirs))
	}
	if m.EntryPath() != filepath.Join(m.Dir, "src", "main.imp") {
		t.Errorf("entry = %q", m.EntryPath())
	}
	if m.Machine.Registers != 6 || m.Machine.StepLimit != 5000 {
		t.Errorf("machine = %+v", m.Machine)
	}
	if *m.Compiler.Optimize {
		t.Error("optimize = true, want false")
	}
	if !*m.Compiler.Propagate {
		t.Error("propagate should default to true")
	}
	if m.Output.Image != "out/main.rimg" || !m.Output.IncludeSource {
		t.Errorf("output = %+v", m.Output)
	}
	if m.CachePath() != "/tmp/regc-cache.db" {
		t.Errorf("cache path = %q", m.CachePath())
	}

	l, err := m.MemoryLayout()
	if err != nil {
		t.Fatalf("MemoryLayout: %v", err)
	}
	want := memory.Range{First: 64, Last: 1023}
	if l.Scalars != want {
		t.Errorf("scalars = %+v, want %+v", l.Scalars, want)
	}
	if l.OversizedBase.Int64() != 1000000 {
		t.Errorf("oversized base = %s", l.OversizedBase)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "src" {
		t.Errorf("source dirs = %v, want [src]", m.Source.Dirs)
	}
	if m.Machine.Registers != 8 {
		t.Errorf("registers = %d, want 8", m.Machine.Registers)
	}
	if !*m.Compiler.Optimize || !*m.Compiler.Propagate {
		t.Error("passes should default to enabled")
	}
	if m.CachePath() != filepath.Join(m.Dir, ".regc", "cache.db") {
		t.Errorf("cache path = %q", m.CachePath())
	}
	if m.EntryPath() != "" {
		t.Errorf("entry = %q, want empty", m.EntryPath())
	}

	l, err := m.MemoryLayout()
	if err != nil {
		t.Fatalf("MemoryLayout: %v", err)
	}
	def := memory.DefaultLayout()
	if l.Loop != def.Loop || l.Scalars != def.Scalars || l.Arrays != def.Arrays || l.OversizedBase.Cmp(def.OversizedBase) != 0 {
		t.Errorf("layout = %+v, want the default", l)
	}
}

func TestDefaultManifest(t *testing.T) {
	m := Default()
	if m.Machine.Registers != 8 || !*m.Compiler.Optimize {
		t.Errorf("Default() = %+v", m)
	}
	if _, err := m.MemoryLayout(); err != nil {
		t.Errorf("default layout invalid: %v", err)
	}
}

func TestLoadManifestRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"overlapping segments", "[layout]\nloop = [0, 100]\nscalars = [50, 200]\n", "regc.toml"},
		{"short range", "[layout]\nloop = [0]\n", "layout.loop"},
		{"bad base", "[layout]\noversized-base = \"lots\"\n", "oversized-base"},
		{"one register", "[machine]\nregisters = 1\n", "at least 2 registers"},
		{"bad toml", "[machine\n", "parse error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"found\"\n")
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m == nil || m.Project.Name != "found" {
		t.Fatalf("manifest = %+v", m)
	}
}

func TestFindAndLoadMissing(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m != nil {
		t.Errorf("expected no manifest, got %+v", m)
	}
}
