// Package trace is an interactive stepper over a built section's
// bytecodes, for an `asmforge trace` command that lets a user set a
// breakpoint on a bytecode index or label and step through the final
// offsets the optimizer settled on. Grounded on a reference Debugger
// (internal/debugger/debugger.go): the same Breakpoint/DebugState shape
// and step commands, repurposed from single-stepping VM instructions to
// single-stepping a section's already-finalized bytecode stream —
// there is no live execution here, only inspection of what
// internal/optimize produced.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"asmforge/internal/bytecode"
	"asmforge/internal/object"
	"asmforge/internal/symbol"
)

// BreakpointKind distinguishes what a Breakpoint matches against.
type BreakpointKind int

const (
	BreakOnIndex BreakpointKind = iota
	BreakOnLabel
)

// Breakpoint pauses Run's step loop when the current bytecode matches.
type Breakpoint struct {
	ID    int
	Kind  BreakpointKind
	Index int
	Label string
}

// State is where Run's step loop currently sits: the section being
// stepped through and the index of the bytecode about to be shown.
type State int

const (
	Running State = iota
	Paused
	Done
)

// Tracer steps through one section's bytecodes, matching a reference
// Debugger's reader/breakpoints/state fields but against a Section
// instead of a vm.EnhancedVM.
type Tracer struct {
	sec         *object.Section
	symbols     *symbol.Table
	breakpoints map[int]*Breakpoint
	nextBpID    int
	cur         int
	state       State
	out         io.Writer
	in          *bufio.Reader
}

// New creates a Tracer over sec, resolving label breakpoints against
// symbols.
func New(sec *object.Section, symbols *symbol.Table, in io.Reader, out io.Writer) *Tracer {
	return &Tracer{
		sec:         sec,
		symbols:     symbols,
		breakpoints: make(map[int]*Breakpoint),
		nextBpID:    1,
		state:       Paused,
		out:         out,
		in:          bufio.NewReader(in),
	}
}

// AddBreakpoint registers a breakpoint on a bytecode index, returning
// its id.
func (t *Tracer) AddBreakpoint(index int) int {
	id := t.nextBpID
	t.nextBpID++
	t.breakpoints[id] = &Breakpoint{ID: id, Kind: BreakOnIndex, Index: index}
	return id
}

// AddLabelBreakpoint registers a breakpoint on the bytecode a label
// resolves to, returning its id, or an error if label is undefined or
// not a label symbol.
func (t *Tracer) AddLabelBreakpoint(label string) (int, error) {
	sym, ok := t.symbols.Lookup(label)
	if !ok || sym.Type != symbol.TypeLabel {
		return 0, fmt.Errorf("trace: %q is not a defined label", label)
	}
	bc, ok := sym.Loc.BC.(*bytecode.Bytecode)
	if !ok {
		return 0, fmt.Errorf("trace: %q has no resolved location", label)
	}
	id := t.nextBpID
	t.nextBpID++
	t.breakpoints[id] = &Breakpoint{ID: id, Kind: BreakOnLabel, Index: bc.Index, Label: label}
	return id, nil
}

// RemoveBreakpoint deletes a breakpoint by id.
func (t *Tracer) RemoveBreakpoint(id int) { delete(t.breakpoints, id) }

// hitBreakpoint reports whether index matches any registered breakpoint.
func (t *Tracer) hitBreakpoint(index int) bool {
	for _, bp := range t.breakpoints {
		if bp.Index == index {
			return true
		}
	}
	return false
}

// describeCur renders the bytecode at t.cur: its index, offset, and
// final length.
func (t *Tracer) describeCur() string {
	bcs := t.sec.Bytecodes()
	if t.cur < 0 || t.cur >= len(bcs) {
		return "<out of range>"
	}
	bc := bcs[t.cur]
	return fmt.Sprintf("[%d] %s offset=0x%x len=%d", t.cur, t.sec.Name, bc.Offset, bc.Len)
}

// Step advances one bytecode, reporting whether a breakpoint was hit or
// the section ended.
func (t *Tracer) Step() (State, string) {
	bcs := t.sec.Bytecodes()
	if t.cur >= len(bcs) {
		t.state = Done
		return Done, "end of section"
	}
	line := t.describeCur()
	t.cur++
	if t.cur < len(bcs) && t.hitBreakpoint(t.cur) {
		t.state = Paused
		return Paused, line
	}
	if t.cur >= len(bcs) {
		t.state = Done
	}
	return t.state, line
}

// Run drives an interactive step loop reading commands ("step"/"s",
// "continue"/"c", "print"/"p", "quit"/"q") from in and writing
// descriptions to out, the same read-a-line-dispatch-a-command shape as
// a Debugger's own command loop.
func (t *Tracer) Run() error {
	for t.state != Done {
		fmt.Fprintf(t.out, "(trace) ")
		line, err := t.in.ReadString('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		cmd := strings.Fields(line)
		if len(cmd) == 0 {
			continue
		}
		switch cmd[0] {
		case "step", "s":
			_, desc := t.Step()
			fmt.Fprintln(t.out, desc)
		case "continue", "c":
			for t.state != Done {
				state, desc := t.Step()
				fmt.Fprintln(t.out, desc)
				if state == Paused {
					break
				}
			}
		case "print", "p":
			fmt.Fprintln(t.out, t.describeCur())
		case "break", "b":
			if len(cmd) < 2 {
				fmt.Fprintln(t.out, "usage: break <index>")
				continue
			}
			idx, err := strconv.Atoi(cmd[1])
			if err != nil {
				fmt.Fprintln(t.out, "usage: break <index>")
				continue
			}
			id := t.AddBreakpoint(idx)
			fmt.Fprintf(t.out, "breakpoint %d set at index %d\n", id, idx)
		case "quit", "q":
			return nil
		default:
			fmt.Fprintf(t.out, "unknown command %q\n", cmd[0])
		}
	}
	return nil
}
