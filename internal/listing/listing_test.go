package listing

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

func TestBuildSummarizesSectionSizes(t *testing.T) {
	obj := buildObject(t, ".byte 1,2,3,4\n")
	sum := Build(obj)
	if sum.Total != 4 {
		t.Fatalf("total = %d, want 4", sum.Total)
	}
	if len(sum.Sections) != 1 || sum.Sections[0].Size != 4 {
		t.Fatalf("unexpected sections: %+v", sum.Sections)
	}
}

func TestWriteTableHumanizesSizes(t *testing.T) {
	obj := buildObject(t, ".byte 1,2,3\n")
	var buf bytes.Buffer
	if err := WriteTable(&buf, Build(obj)); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	if !strings.Contains(buf.String(), "total") {
		t.Fatalf("table missing total row: %q", buf.String())
	}
}

func TestWriteSymbolsListsDefinedLabel(t *testing.T) {
	obj := buildObject(t, "start:\n.byte 0\n")
	var buf bytes.Buffer
	if err := WriteSymbols(&buf, obj.Symbols); err != nil {
		t.Fatalf("WriteSymbols: %v", err)
	}
	if !strings.Contains(buf.String(), "start") {
		t.Fatalf("symbol table missing 'start': %q", buf.String())
	}
}
