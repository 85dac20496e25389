package vm

import (
	"sort"
)

// Profile counts executions per program line.
type Profile struct {
	counts []uint64
}

// NewProfile creates a profile for a program of n lines.
func NewProfile(n int) *Profile {
	return &Profile{counts: make([]uint64, n)}
}

func (p *Profile) record(line int) {
	p.counts[line]++
}

// Count returns how often line ran.
func (p *Profile) Count(line int) uint64 {
	if line < 0 || line >= len(p.counts) {
		return 0
	}
	return p.counts[line]
}

// LineCount is one entry of a hot-line report.
type LineCount struct {
	Line  int
	Count uint64
}

// Hot returns the n most executed lines, most executed first. Ties are
// broken by line number.
func (p *Profile) Hot(n int) []LineCount {
	var out []LineCount
	for line, c := range p.counts {
		if c > 0 {
			out = append(out, LineCount{Line: line, Count: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Line < out[j].Line
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
