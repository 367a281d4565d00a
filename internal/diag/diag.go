// Package diag is the diagnostic engine every core package reports
// through: an ordered error-kind taxonomy, a collecting
// engine that lets assembly continue past a single bad bytecode rather
// than aborting the run, and a Fatal flag the optimizer polls between
// widening iterations so a caller can cooperatively cancel a run that is
// producing too many errors to be worth finishing. Modeled on the
// reference SentraError: a typed error with a message, a source location,
// and caret-under-column rendering.
package diag

import (
	"fmt"
	"strings"
)

// ErrorKind is the closed taxonomy of failures a core component can
// report.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindTooComplex
	KindInvalidJumpTarget
	KindMultipleNegative
	KindMultipleNotAbsolute
	KindMultipleContainsFloat
	KindValueOutOfRange
	KindDivideByZero
	KindShiftOutOfRange
	KindSymbolRedefined
	KindExternAlreadyDefined
	KindEquCircular
	KindInternalLengthMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case KindTooComplex:
		return "too complex"
	case KindInvalidJumpTarget:
		return "invalid jump target"
	case KindMultipleNegative:
		return "multiple is negative"
	case KindMultipleNotAbsolute:
		return "multiple is not absolute"
	case KindMultipleContainsFloat:
		return "multiple contains a floating-point value"
	case KindValueOutOfRange:
		return "value out of range"
	case KindDivideByZero:
		return "divide by zero"
	case KindShiftOutOfRange:
		return "shift out of range"
	case KindSymbolRedefined:
		return "symbol redefined"
	case KindExternAlreadyDefined:
		return "incompatible symbol visibility"
	case KindEquCircular:
		return "circular EQU definition"
	case KindInternalLengthMismatch:
		return "internal length mismatch"
	default:
		return "error"
	}
}

// Fatal reports whether a diagnostic of this kind should halt the
// optimizer's widening loop rather than merely being recorded against one
// bytecode (a cooperative-cancellation rule: structural errors
// abort, everything else lets the run continue to collect more
// diagnostics).
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindInternalLengthMismatch, KindEquCircular:
		return true
	default:
		return false
	}
}

// Pos is a source location.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.File == "" && p.Line == 0 {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Diagnostic is one reported failure, with an optional chain of notes
// (a "previous definition" backreference chain).
type Diagnostic struct {
	Kind    ErrorKind
	Message string
	Pos     Pos
	Notes   []Diagnostic
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s: %s", d.Pos, d.Kind, d.Message)
	for _, n := range d.Notes {
		fmt.Fprintf(&b, "\n  note: %s: %s", n.Pos, n.Message)
	}
	return b.String()
}

// Render prints the diagnostic with a caret under Pos.Col beneath the
// given source line, in a one-line-plus-caret style.
func (d *Diagnostic) Render(sourceLine string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s: %s\n", d.Pos, d.Kind, d.Message)
	b.WriteString(sourceLine)
	b.WriteByte('\n')
	if d.Pos.Col > 0 && d.Pos.Col <= len(sourceLine)+1 {
		b.WriteString(strings.Repeat(" ", d.Pos.Col-1))
		b.WriteByte('^')
	}
	return b.String()
}

// Engine collects diagnostics for one assembly run.
type Engine struct {
	diags []Diagnostic
	fatal bool
}

func NewEngine() *Engine { return &Engine{} }

// Report records d, raising Fatal if d.Kind is a structural failure.
func (e *Engine) Report(d Diagnostic) {
	e.diags = append(e.diags, d)
	if d.Kind.Fatal() {
		e.fatal = true
	}
}

// Reportf is a convenience wrapper building a Diagnostic from a format string.
func (e *Engine) Reportf(kind ErrorKind, pos Pos, format string, args ...interface{}) {
	e.Report(Diagnostic{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Diagnostics returns every diagnostic reported so far, in report order.
func (e *Engine) Diagnostics() []Diagnostic { return e.diags }

// HasErrors reports whether anything at all was reported.
func (e *Engine) HasErrors() bool { return len(e.diags) > 0 }

// Fatal reports whether a structural failure was reported; callers
// (notably internal/optimize) poll this between widening iterations and
// stop early rather than spin on a run that cannot converge.
func (e *Engine) Fatal() bool { return e.fatal }
