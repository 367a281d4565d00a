package optimize

import (
	"testing"

	"asmforge/internal/bytecode"
	"asmforge/internal/diag"
	"asmforge/internal/expr"
)

type testSym string

func (s testSym) Name() string { return string(s) }

type mapLocator map[expr.SymbolRef]expr.Location

func (m mapLocator) Locate(sym expr.SymbolRef) (expr.Location, bool) {
	l, ok := m[sym]
	return l, ok
}

func TestRunKeepsJmpShortWhenTargetIsClose(t *testing.T) {
	sym := testSym("L")
	jmp := bytecode.New()
	jmp.Contents = bytecode.NewJmp(nil, []byte{0xEB}, []byte{0xE9}, 32, expr.Sym(sym), bytecode.JmpUnspecified)

	target := bytecode.New()
	target.AppendData([]byte{0x90})

	bcs := []*bytecode.Bytecode{jmp, target}
	locator := mapLocator{sym: {BC: target, Offset: 0}}
	engine := diag.NewEngine()

	next := Run(bcs, 0, locator, engine)

	if engine.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", engine.Diagnostics())
	}
	if jmp.Len != 2 {
		t.Fatalf("jmp len = %d, want 2 (stayed short)", jmp.Len)
	}
	if target.Offset != 2 {
		t.Fatalf("target offset = %d, want 2", target.Offset)
	}
	if next != 3 {
		t.Fatalf("final offset = %d, want 3", next)
	}
}

func TestRunWidensJmpToNearWhenTargetIsFar(t *testing.T) {
	sym := testSym("L")
	jmp := bytecode.New()
	jmp.Contents = bytecode.NewJmp(nil, []byte{0xEB}, []byte{0xE9}, 32, expr.Sym(sym), bytecode.JmpUnspecified)

	bcs := []*bytecode.Bytecode{jmp}
	for i := 0; i < 200; i++ {
		filler := bytecode.New()
		filler.AppendData([]byte{0x90})
		bcs = append(bcs, filler)
	}
	target := bytecode.New()
	target.AppendData([]byte{0x90})
	bcs = append(bcs, target)

	locator := mapLocator{sym: {BC: target, Offset: 0}}
	engine := diag.NewEngine()

	Run(bcs, 0, locator, engine)

	if engine.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", engine.Diagnostics())
	}
	if jmp.Len != 5 {
		t.Fatalf("jmp len = %d, want 5 (widened to near: opcode+4-byte disp)", jmp.Len)
	}
	if target.Offset != 205 {
		t.Fatalf("target offset = %d, want 205 (200 filler bytes + 5-byte near jmp)", target.Offset)
	}
}

func TestRunPropagatesWideningThroughAlign(t *testing.T) {
	sym := testSym("L")
	jmp := bytecode.New()
	jmp.Contents = bytecode.NewJmp(nil, []byte{0xEB}, []byte{0xE9}, 32, expr.Sym(sym), bytecode.JmpUnspecified)

	align := bytecode.New()
	align.Contents = bytecode.NewAlign(16, []byte{0x00}, 0)

	bcs := []*bytecode.Bytecode{jmp}
	for i := 0; i < 200; i++ {
		filler := bytecode.New()
		filler.AppendData([]byte{0x90})
		bcs = append(bcs, filler)
	}
	bcs = append(bcs, align)
	target := bytecode.New()
	target.AppendData([]byte{0x90})
	bcs = append(bcs, target)

	locator := mapLocator{sym: {BC: target, Offset: 0}}
	engine := diag.NewEngine()

	Run(bcs, 0, locator, engine)

	if engine.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", engine.Diagnostics())
	}
	// jmp(2 short)+200 filler = 202, align pads to 208 (next multiple of 16).
	// Once jmp widens to near(5), align starts at 5+200=205 and pads 3
	// bytes back to 208; what matters is align's padding tracks whatever
	// offset it actually lands at, and the final target offset is
	// self-consistent.
	if end := align.Offset + int64(align.Len); end%16 != 0 {
		t.Fatalf("align did not pad to a 16-byte boundary: offset=%d end=%d", align.Offset, end)
	}
	if target.Offset != align.Offset+int64(align.Len) {
		t.Fatalf("target offset %d != align end %d", target.Offset, align.Offset+int64(align.Len))
	}
}
