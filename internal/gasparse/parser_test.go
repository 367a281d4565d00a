package gasparse

import (
	"testing"

	"asmforge/internal/diag"
	"asmforge/internal/lexer"
	"asmforge/internal/object"
)

func parse(t *testing.T, src string) *object.Object {
	t.Helper()
	obj := object.New(".text")
	tokens := lexer.NewScanner(src).ScanTokens()
	p := New(tokens, "t.s", obj)
	p.Parse()
	if len(p.Errors) > 0 {
		t.Fatalf("parse errors: %v", p.Errors)
	}
	return obj
}

func TestEquThenLongEmitsLittleEndianConstant(t *testing.T) {
	obj := parse(t, ".equ X, 1+2*3\n.long X\n")
	engine := diag.NewEngine()
	obj.Build(0, engine)
	if engine.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", engine.Diagnostics())
	}
	bcs := obj.Sections()[0].Bytecodes()
	var data []byte
	for _, bc := range bcs {
		data = append(data, bc.Fixed...)
	}
	want := []byte{0x07, 0x00, 0x00, 0x00}
	if len(data) != len(want) || string(data) != string(want) {
		t.Fatalf(".long X = % x, want % x", data, want)
	}
}

func TestAlignPadsToBoundary(t *testing.T) {
	obj := parse(t, ".byte 1,2,3,4,5\n.align 8\n.byte 0xAA\n")
	engine := diag.NewEngine()
	obj.Build(0, engine)
	if engine.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", engine.Diagnostics())
	}
	sec := obj.Sections()[0]
	if sec.End != 9 {
		t.Fatalf("section end = %d, want 9 (5 bytes + 3 pad + 1 byte)", sec.End)
	}
}

func TestLabelMinusHereIsZero(t *testing.T) {
	obj := parse(t, "foo:\n.quad foo - .\n")
	engine := diag.NewEngine()
	obj.Build(0, engine)
	if engine.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", engine.Diagnostics())
	}
	var data []byte
	for _, bc := range obj.Sections()[0].Bytecodes() {
		data = append(data, bc.Fixed...)
	}
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0 (foo - . must resolve to 0)", i, b)
		}
	}
	if len(data) != 8 {
		t.Fatalf(".quad emitted %d bytes, want 8", len(data))
	}
}

func TestExternThenLabelConflicts(t *testing.T) {
	obj := object.New(".text")
	tokens := lexer.NewScanner(".extern sym\nsym:\n").ScanTokens()
	p := New(tokens, "t.s", obj)
	p.Parse()
	if len(p.Errors) != 1 {
		t.Fatalf("got %d parse errors, want 1 (defining a symbol already declared extern): %v", len(p.Errors), p.Errors)
	}
}
