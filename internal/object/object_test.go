package object

import (
	"testing"

	"asmforge/internal/bytecode"
	"asmforge/internal/diag"
	"asmforge/internal/expr"
	"asmforge/internal/ionum"
	"asmforge/internal/symbol"
)

func TestDefineLabelBindsToNextAppend(t *testing.T) {
	o := New(".text")
	sym, err := o.DefineLabel("start", symbol.Pos{Line: 1})
	if err != nil {
		t.Fatalf("DefineLabel: %v", err)
	}
	o.AppendData([]byte{0x90, 0x90}, 1)

	engine := diag.NewEngine()
	o.Build(0, engine)
	if engine.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", engine.Diagnostics())
	}

	loc, ok := o.Locate(sym)
	if !ok {
		t.Fatalf("Locate failed for a defined label")
	}
	bc, ok := loc.BC.(*bytecode.Bytecode)
	if !ok {
		t.Fatalf("location did not carry a *bytecode.Bytecode")
	}
	if bc.Offset != 0 {
		t.Fatalf("start label offset = %d, want 0", bc.Offset)
	}
}

func TestDefineLabelSharesMarkerAcrossConsecutiveLabels(t *testing.T) {
	o := New(".text")
	a, _ := o.DefineLabel("a", symbol.Pos{Line: 1})
	b, _ := o.DefineLabel("b", symbol.Pos{Line: 1})
	o.AppendData([]byte{0x90}, 1)

	locA, _ := o.Locate(a)
	locB, _ := o.Locate(b)
	if locA.BC != locB.BC {
		t.Fatalf("two labels at the same point got different marker bytecodes")
	}
	if len(o.cur.bcs) != 2 {
		t.Fatalf("section has %d bytecodes, want 2 (one marker + one data)", len(o.cur.bcs))
	}
}

func TestDefineLabelAfterContentGetsItsOwnPoint(t *testing.T) {
	o := New(".text")
	o.AppendData([]byte{0x90}, 1)
	mid, _ := o.DefineLabel("mid", symbol.Pos{Line: 2})
	o.AppendData([]byte{0x90}, 2)

	engine := diag.NewEngine()
	o.Build(0, engine)
	if engine.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", engine.Diagnostics())
	}
	loc, _ := o.Locate(mid)
	bc := loc.BC.(*bytecode.Bytecode)
	if bc.Offset != 1 {
		t.Fatalf("mid label offset = %d, want 1", bc.Offset)
	}
}

func TestEquExpansionSubstitutesChain(t *testing.T) {
	o := New(".text")
	symA, d := o.DefineEqu("A", expr.Int(ionum.New(3)), symbol.Pos{Line: 1})
	if d != nil {
		t.Fatalf("DefineEqu A: %v", d)
	}

	rawB := expr.AppendOp(expr.OpAdd, expr.Sym(symA), expr.Int(ionum.New(2)))
	symB, d := o.DefineEqu("B", rawB, symbol.Pos{Line: 2})
	if d != nil {
		t.Fatalf("DefineEqu B: %v", d)
	}

	if _, found := symB.Equ.Contains(expr.TermSymbol); found {
		t.Fatalf("B's expanded EQU still references a symbol: %+v", symB.Equ.Terms)
	}

	out := symB.Equ.Clone()
	out.Simplify(false)
	n, ok := out.GetIntNum()
	if !ok {
		t.Fatalf("B did not reduce to a constant after expansion+simplify")
	}
	v, _ := n.ToInt64()
	if v != 5 {
		t.Fatalf("B = %d, want 5", v)
	}
}

func TestEquDirectSelfReferenceIsCircular(t *testing.T) {
	o := New(".text")
	symA := o.Use("A", symbol.Pos{Line: 1})
	raw := expr.AppendOp(expr.OpAdd, expr.Sym(symA), expr.Int(ionum.New(1)))

	_, d := o.DefineEqu("A", raw, symbol.Pos{Line: 1})
	if d == nil || d.Kind != diag.KindEquCircular {
		t.Fatalf("DefineEqu A (self-referential) = %v, want KindEquCircular", d)
	}
}

func TestEquTwoStepCycleIsCircular(t *testing.T) {
	o := New(".text")
	symB := o.Use("B", symbol.Pos{Line: 1})
	if _, d := o.DefineEqu("A", expr.Sym(symB), symbol.Pos{Line: 1}); d != nil {
		t.Fatalf("DefineEqu A: %v", d)
	}

	symA := o.Use("A", symbol.Pos{Line: 2})
	_, d := o.DefineEqu("B", expr.Sym(symA), symbol.Pos{Line: 2})
	if d == nil || d.Kind != diag.KindEquCircular {
		t.Fatalf("DefineEqu B (closing the A->B->A cycle) = %v, want KindEquCircular", d)
	}
}

func TestBuildResolvesForwardLabelAcrossSections(t *testing.T) {
	o := New(".text")
	jmpSym := o.Use("target", symbol.Pos{Line: 1})
	o.AppendContents(bytecode.NewJmp(nil, []byte{0xEB}, []byte{0xE9}, 32, expr.Sym(jmpSym), bytecode.JmpUnspecified), 1)

	o.SwitchSection(".data")
	targetSym, err := o.DefineLabel("target", symbol.Pos{Line: 2})
	if err != nil {
		t.Fatalf("DefineLabel target: %v", err)
	}
	o.AppendData([]byte{0x01, 0x02, 0x03, 0x04}, 2)

	engine := diag.NewEngine()
	o.Build(0x1000, engine)
	if engine.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", engine.Diagnostics())
	}

	textSec := o.sections[".text"]
	dataSec := o.sections[".data"]
	if textSec.Base != 0x1000 {
		t.Fatalf(".text base = %#x, want 0x1000", textSec.Base)
	}
	if dataSec.Base != textSec.End {
		t.Fatalf(".data base %#x != .text end %#x", dataSec.Base, textSec.End)
	}

	loc, ok := o.Locate(targetSym)
	if !ok {
		t.Fatalf("Locate failed for target")
	}
	bc := loc.BC.(*bytecode.Bytecode)
	if bc.Offset != dataSec.Base {
		t.Fatalf("target offset %#x != data section base %#x", bc.Offset, dataSec.Base)
	}
}

func TestAppendMultipleArmsNextBytecodeOnly(t *testing.T) {
	o := New(".text")
	o.AppendMultiple(expr.Int(ionum.New(4)), 1)
	rep := o.AppendData([]byte{0x90}, 1)
	plain := o.AppendData([]byte{0x91}, 2)

	if rep.Multiple == nil {
		t.Fatalf("first bytecode after AppendMultiple did not get a Multiple expression")
	}
	if plain.Multiple != nil {
		t.Fatalf("second bytecode should not inherit the armed multiple")
	}
}

func TestAppendReserveAndAlignWireSpecialKinds(t *testing.T) {
	o := New(".bss")
	resv := o.AppendReserve(4, expr.Int(ionum.New(10)), 1)
	if resv.Contents.SpecialKind() != bytecode.KindReserve {
		t.Fatalf("reserve bytecode has SpecialKind %v, want KindReserve", resv.Contents.SpecialKind())
	}

	o2 := New(".text")
	al := o2.AppendAlign(16, []byte{0x00}, 0, 1)
	if al.Contents.SpecialKind() != bytecode.KindSpecialOffset {
		t.Fatalf("align bytecode has SpecialKind %v, want KindSpecialOffset", al.Contents.SpecialKind())
	}
}
