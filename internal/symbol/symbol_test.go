package symbol

import (
	"testing"

	"asmforge/internal/expr"
	"asmforge/internal/ionum"
)

func TestDefineEquThenRedefineFails(t *testing.T) {
	tbl := NewTable()
	if _, err := tbl.DefineEqu("N", expr.Int(ionum.New(1)), Pos{Line: 1}); err != nil {
		t.Fatalf("first definition should succeed: %v", err)
	}
	_, err := tbl.DefineEqu("N", expr.Int(ionum.New(2)), Pos{Line: 2})
	if err == nil {
		t.Fatal("expected redefinition error")
	}
	if e, ok := err.(*Error); !ok || e.Kind != ErrSymbolRedefined {
		t.Errorf("got %v, want ErrSymbolRedefined", err)
	}
}

func TestDefineLabelSetsValued(t *testing.T) {
	tbl := NewTable()
	s, err := tbl.DefineLabel("start", expr.Location{}, Pos{Line: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status&StatusValued == 0 {
		t.Error("label should be marked valued")
	}
	if s.Type != TypeLabel {
		t.Errorf("type = %v, want label", s.Type)
	}
}

func TestUseCreatesUnknown(t *testing.T) {
	tbl := NewTable()
	s := tbl.Use("undeclared", Pos{Line: 3})
	if s.Type != TypeUnknown {
		t.Errorf("type = %v, want unknown", s.Type)
	}
	if s.Status&StatusUsed == 0 {
		t.Error("symbol should be marked used")
	}
}

func TestDeclareGlobalThenCommonFails(t *testing.T) {
	tbl := NewTable()
	if _, err := tbl.Declare("g", VisGlobal, Pos{}); err != nil {
		t.Fatalf("declare global: %v", err)
	}
	if _, err := tbl.Declare("g", VisCommon, Pos{}); err == nil {
		t.Fatal("expected conflict declaring common after global")
	}
}

func TestDeclareGlobalThenDLocalOK(t *testing.T) {
	tbl := NewTable()
	if _, err := tbl.Declare("g", VisGlobal, Pos{}); err != nil {
		t.Fatalf("declare global: %v", err)
	}
	s, err := tbl.Declare("g", VisDLocal, Pos{})
	if err != nil {
		t.Fatalf("declare dlocal after global should be fine: %v", err)
	}
	if s.Vis&VisGlobal == 0 || s.Vis&VisDLocal == 0 {
		t.Errorf("expected both bits set, got %v", s.Vis)
	}
}

func TestDeclareExternThenExternIdempotent(t *testing.T) {
	tbl := NewTable()
	if _, err := tbl.Declare("e", VisExtern, Pos{}); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Declare("e", VisExtern, Pos{}); err != nil {
		t.Errorf("redeclaring the same visibility should not error: %v", err)
	}
}

func TestSymbolsFirstSeenOrder(t *testing.T) {
	tbl := NewTable()
	tbl.Use("b", Pos{})
	tbl.Use("a", Pos{})
	tbl.Use("c", Pos{})
	syms := tbl.Symbols()
	names := []string{syms[0].Name(), syms[1].Name(), syms[2].Name()}
	want := []string{"b", "a", "c"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestEquCircularDetected(t *testing.T) {
	tbl := NewTable()
	a, _ := tbl.DefineEqu("a", expr.Sym(tbl.Use("b", Pos{})), Pos{})
	_ = a
	bExpr := expr.Sym(tbl.Use("a", Pos{}))
	// redefine b's placeholder into a real EQU that points back to a,
	// completing the cycle a -> b -> a.
	bSym, _ := tbl.Lookup("b")
	bSym.Type = TypeEqu
	bSym.Equ = bExpr
	bSym.Status |= StatusDefined

	if err := tbl.CheckEquCircular("a"); err == nil {
		t.Fatal("expected circular EQU error")
	}
}

func TestEquNonCircular(t *testing.T) {
	tbl := NewTable()
	tbl.DefineEqu("base", expr.Int(ionum.New(10)), Pos{})
	baseSym, _ := tbl.Lookup("base")
	tbl.DefineEqu("derived", expr.Sym(baseSym), Pos{})
	if err := tbl.CheckEquCircular("derived"); err != nil {
		t.Errorf("unexpected circular error: %v", err)
	}
}

func TestDefineLabelAfterExternDeclarationFails(t *testing.T) {
	tbl := NewTable()
	if _, err := tbl.Declare("sym", VisExtern, Pos{Line: 1}); err != nil {
		t.Fatalf("declare extern: %v", err)
	}
	_, err := tbl.DefineLabel("sym", expr.Location{}, Pos{Line: 5})
	if err == nil {
		t.Fatal("expected an error defining a label already declared extern")
	}
	e, ok := err.(*Error)
	if !ok || e.Kind != ErrExternAlreadyDefined {
		t.Errorf("got %v, want ErrExternAlreadyDefined", err)
	}
	if e.Prev.Line != 1 {
		t.Errorf("error note points at line %d, want the extern declaration's line 1", e.Prev.Line)
	}
}
