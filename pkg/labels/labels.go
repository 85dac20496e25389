// Package labels holds pending forward jumps of structured control flow.
//
// A jump whose target is not yet known is emitted with a placeholder
// operand and a label naming its line is opened. When the target line is
// reached the label is resolved: the decimal line number is appended to
// the placeholder. Labels nest strictly, so the most recently opened label
// is always the one resolved.
package labels

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("regc.labels")

// ErrControlFlowImbalance is returned when a label is resolved with none
// open.
var ErrControlFlowImbalance = errors.New("control flow imbalance")

// Kind says what construct opened a label.
type Kind uint8

const (
	// Fake marks a construct that emitted no jump; resolving it patches
	// nothing.
	Fake Kind = iota
	True
	False
	End
	Return
)

func (k Kind) String() string {
	switch k {
	case Fake:
		return "fake"
	case True:
		return "true"
	case False:
		return "false"
	case End:
		return "end"
	case Return:
		return "return"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Label is an open forward jump.
type Label struct {
	Kind Kind
	Slot int
}

// Patcher completes a placeholder instruction.
type Patcher interface {
	Append(slot int, text string) error
}

// Stack is the label stack of one compilation.
type Stack struct {
	open    []Label
	patcher Patcher
}

// NewStack creates an empty stack patching through p.
func NewStack(p Patcher) *Stack {
	return &Stack{patcher: p}
}

// Open pushes a label for the placeholder at slot.
func (s *Stack) Open(kind Kind, slot int) {
	s.open = append(s.open, Label{Kind: kind, Slot: slot})
}

// Resolve pops the newest label and points its jump at line.
func (s *Stack) Resolve(line int) (Label, error) {
	n := len(s.open)
	if n == 0 {
		return Label{}, fmt.Errorf("%w: resolve at line %d with no open label", ErrControlFlowImbalance, line)
	}
	l := s.open[n-1]
	s.open = s.open[:n-1]

	if l.Kind == Fake {
		return l, nil
	}
	if err := s.patcher.Append(l.Slot, strconv.Itoa(line)); err != nil {
		return l, fmt.Errorf("resolving %s label at %d: %w", l.Kind, l.Slot, err)
	}
	log.Debugf("%s label at %d -> %d", l.Kind, l.Slot, line)
	return l, nil
}

// Peek returns the newest open label.
func (s *Stack) Peek() (Label, bool) {
	if len(s.open) == 0 {
		return Label{}, false
	}
	return s.open[len(s.open)-1], true
}

// Depth returns the number of open labels.
func (s *Stack) Depth() int {
	return len(s.open)
}
