// Package repl is an interactive expression/symbol shell: each line is
// parsed as either a directive/instruction against a scratch Object, or
// a bare expression to evaluate and print. Grounded on a reference
// Start loop (internal/repl/repl.go): the same bufio.Scanner-over-stdin,
// prompt, "exit" sentinel, and fresh-parse-per-line shape, with the
// compiler/VM swapped for this assembler's lexer/gasparse/object.Build.
package repl

import (
	"bufio"
	"fmt"
	"io"

	"asmforge/internal/diag"
	"asmforge/internal/gasparse"
	"asmforge/internal/lexer"
	"asmforge/internal/object"
)

// Session runs one REPL instance, accumulating state in a single Object
// across lines so labels and EQUs defined on one line are visible to the
// next, the way a real assembly session builds up.
type Session struct {
	obj    *object.Object
	engine *diag.Engine
	in     *bufio.Scanner
	out    io.Writer
	line   int
}

// New creates a Session reading from in and writing prompts/results to
// out.
func New(in io.Reader, out io.Writer) *Session {
	return &Session{
		obj:    object.New(".text"),
		engine: diag.NewEngine(),
		in:     bufio.NewScanner(in),
		out:    out,
	}
}

// Run drives the read-eval-print loop until EOF or a line reading
// "exit", mirroring a Start loop's own shape: print a prompt, read a line,
// stop on "exit", otherwise lex+parse the line and report what happened.
func (s *Session) Run() {
	fmt.Fprintln(s.out, "asmforge REPL | type 'exit' to quit")
	for {
		fmt.Fprint(s.out, ">>> ")
		if !s.in.Scan() {
			break
		}
		line := s.in.Text()
		if line == "exit" {
			break
		}
		s.eval(line)
	}
}

// eval parses one line against the session's running Object and reports
// what it defined, or any parse/build diagnostics it produced.
func (s *Session) eval(line string) {
	s.line++
	tokens := lexer.NewScanner(line).ScanTokens()
	p := gasparse.New(tokens, "<repl>", s.obj)
	p.Parse()
	for _, err := range p.Errors {
		fmt.Fprintf(s.out, "parse error: %v\n", err)
	}
	if len(p.Errors) > 0 {
		return
	}

	before := s.engine.Diagnostics()
	s.engine = diag.NewEngine()
	s.obj.Build(0, s.engine)
	for _, d := range s.engine.Diagnostics() {
		fmt.Fprintf(s.out, "%s\n", d.Render(line))
	}
	if len(s.engine.Diagnostics()) == 0 && len(before) == 0 {
		sec := s.obj.Section()
		fmt.Fprintf(s.out, "ok: %s now %d byte(s)\n", sec.Name, sec.End-sec.Base)
	}
}
