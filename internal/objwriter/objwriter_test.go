package objwriter

import (
	"bytes"
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

func TestWriteFlatEmitsConcatenatedSectionBytes(t *testing.T) {
	obj := buildObject(t, ".byte 1,2,3\n.long 0x11223344\n")
	out, err := WriteFlat(obj, 0)
	if err != nil {
		t.Fatalf("WriteFlat: %v", err)
	}
	want := []byte{1, 2, 3, 0x44, 0x33, 0x22, 0x11}
	if !bytes.Equal(out, want) {
		t.Fatalf("flat output = % x, want % x", out, want)
	}
}

func TestWriteFlatRejectsUnresolvedExternReference(t *testing.T) {
	obj := buildObject(t, ".extern foo\n.quad foo\n")
	if _, err := WriteFlat(obj, 0); err == nil {
		t.Fatal("expected an error: a flat image cannot express a reference to an undefined extern symbol")
	}
}

func TestWriteELF64ProducesAParsableHeader(t *testing.T) {
	obj := buildObject(t, ".global start\nstart:\n.byte 0x90\n")
	out, err := WriteELF64(obj, 0)
	if err != nil {
		t.Fatalf("WriteELF64: %v", err)
	}
	if len(out) < 64 {
		t.Fatalf("output too short for even an ELF header: %d bytes", len(out))
	}
	if !bytes.Equal(out[0:4], []byte{0x7f, 'E', 'L', 'F'}) {
		t.Fatalf("missing ELF magic, got % x", out[0:4])
	}
	if out[4] != elfClass64 {
		t.Fatalf("EI_CLASS = %d, want ELFCLASS64", out[4])
	}
}
