package trace

import (
	"bytes"
	"strings"
	"testing"

	"asmforge/internal/diag"
	"asmforge/internal/gasparse"
	"asmforge/internal/lexer"
	"asmforge/internal/object"
)

func buildObject(t *testing.T, src string) *object.Object {
	t.Helper()
	obj := object.New(".text")
	tokens := lexer.NewScanner(src).ScanTokens()
	p := gasparse.New(tokens, "t.s", obj)
	p.Parse()
	if len(p.Errors) > 0 {
		t.Fatalf("parse errors: %v", p.Errors)
	}
	engine := diag.NewEngine()
	obj.Build(0, engine)
	if engine.HasErrors() {
		t.Fatalf("build diagnostics: %v", engine.Diagnostics())
	}
	return obj
}

func TestStepWalksEveryBytecode(t *testing.T) {
	obj := buildObject(t, ".byte 1\n.byte 2\n.byte 3\n")
	sec := obj.Sections()[0]
	tr := New(sec, obj.Symbols, strings.NewReader(""), &bytes.Buffer{})

	steps := 0
	for {
		state, _ := tr.Step()
		steps++
		if state == Done {
			break
		}
	}
	if steps != len(sec.Bytecodes()) {
		t.Fatalf("stepped %d times, want %d", steps, len(sec.Bytecodes()))
	}
}

func TestLabelBreakpointResolvesToDefiningBytecode(t *testing.T) {
	obj := buildObject(t, ".byte 0\ntarget:\n.byte 1\n")
	sec := obj.Sections()[0]
	tr := New(sec, obj.Symbols, strings.NewReader(""), &bytes.Buffer{})

	id, err := tr.AddLabelBreakpoint("target")
	if err != nil {
		t.Fatalf("AddLabelBreakpoint: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a nonzero breakpoint id")
	}

	var out bytes.Buffer
	tr2 := New(sec, obj.Symbols, strings.NewReader(""), &out)
	tr2.AddLabelBreakpoint("target")
	state, _ := tr2.Step()
	if state != Paused {
		t.Fatalf("state = %v, want Paused at the label's bytecode", state)
	}
}

func TestRunRespondsToStepAndQuit(t *testing.T) {
	obj := buildObject(t, ".byte 1\n.byte 2\n")
	sec := obj.Sections()[0]
	var out bytes.Buffer
	tr := New(sec, obj.Symbols, strings.NewReader("step\nquit\n"), &out)
	if err := tr.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "offset=") {
		t.Fatalf("expected a step description, got: %q", out.String())
	}
}
