package expr

import (
	"testing"

	"asmforge/internal/ionum"
)

func TestRPNDepthInvariant(t *testing.T) {
	// (1+2)*3
	sum := AppendOp(OpAdd, Int(ionum.New(1)), Int(ionum.New(2)))
	prod := AppendOp(OpMul, sum, Int(ionum.New(3)))
	if len(prod.Terms) != 5 {
		t.Fatalf("want 5 terms, got %d", len(prod.Terms))
	}
	root := prod.Terms[prod.Root()]
	if root.Depth != 0 {
		t.Errorf("root depth = %d, want 0", root.Depth)
	}
	for _, c := range prod.children(prod.Root()) {
		if prod.Terms[c].Depth != 1 {
			t.Errorf("direct child depth = %d, want 1", prod.Terms[c].Depth)
		}
	}
}

func TestSimplifyConstantFold(t *testing.T) {
	// 1 + 2*3 == 7
	mul := AppendOp(OpMul, Int(ionum.New(2)), Int(ionum.New(3)))
	e := AppendOp(OpAdd, Int(ionum.New(1)), mul)
	e.Simplify(false)
	n, ok := e.GetIntNum()
	if !ok {
		t.Fatalf("expected a folded single int, got %d terms", len(e.Terms))
	}
	if v, _ := n.ToInt64(); v != 7 {
		t.Errorf("1+2*3 = %d, want 7", v)
	}
}

func TestAssociativeFlatten(t *testing.T) {
	// (a+b)+c where a,b,c are distinct register leaves -> one ADD of 3
	a, b, c := Reg(1), Reg(2), Reg(3)
	ab := AppendOp(OpAdd, a, b)
	e := AppendOp(OpAdd, ab, c)
	e.Simplify(false)
	root := e.Terms[e.Root()]
	if root.Kind != TermOp || root.Op != OpAdd {
		t.Fatalf("expected a flattened ADD root, got %+v", root)
	}
	if root.NChild != 3 {
		t.Errorf("NChild = %d, want 3", root.NChild)
	}
	if len(e.Terms) != 4 {
		t.Errorf("want 4 terms (3 regs + 1 op), got %d", len(e.Terms))
	}
}

func TestIdentityAddZero(t *testing.T) {
	x := Reg(42)
	e := AppendOp(OpAdd, x, Int(ionum.New(0)))
	e.Simplify(false)
	r, ok := e.GetReg()
	if !ok || r != 42 {
		t.Errorf("x+0 should simplify to x, got %+v", e.Terms)
	}
}

func TestIdentityMulOne(t *testing.T) {
	x := Reg(7)
	e := AppendOp(OpMul, x, Int(ionum.New(1)))
	e.Simplify(true) // simplifyRegMul allows dropping reg*1
	r, ok := e.GetReg()
	if !ok || r != 7 {
		t.Errorf("x*1 should simplify to x when simplifyRegMul, got %+v", e.Terms)
	}
}

func TestMulByZeroCollapses(t *testing.T) {
	x := Reg(7)
	e := AppendOp(OpMul, x, Int(ionum.New(0)))
	e.Simplify(false)
	n, ok := e.GetIntNum()
	if !ok || !n.Zero() {
		t.Errorf("x*0 should collapse to 0, got %+v", e.Terms)
	}
}

func TestXorSelfCancel(t *testing.T) {
	x := Reg(9)
	e := AppendOp(OpXor, x.Clone(), x.Clone())
	e.Simplify(false)
	n, ok := e.GetIntNum()
	if !ok || !n.Zero() {
		t.Errorf("x^x should collapse to 0, got %+v", e.Terms)
	}
}

func TestSimplifyIdempotent(t *testing.T) {
	mul := AppendOp(OpMul, Int(ionum.New(2)), Reg(1))
	e := AppendOp(OpAdd, Int(ionum.New(0)), mul)
	e.Simplify(false)
	once := e.Clone()
	e.Simplify(false)
	if len(once.Terms) != len(e.Terms) {
		t.Fatalf("simplify not idempotent: %d terms then %d terms", len(once.Terms), len(e.Terms))
	}
}

func TestCloneIndependence(t *testing.T) {
	e := AppendOp(OpAdd, Int(ionum.New(1)), Int(ionum.New(2)))
	c := e.Clone()
	c.Terms[0].Int.Big().SetInt64(99)
	n := e.Terms[0].Int
	if v, _ := n.ToInt64(); v != 1 {
		t.Errorf("clone mutated original: %d", v)
	}
}

func TestExtractSegOff(t *testing.T) {
	seg := Reg("cs")
	off := Int(ionum.New(0x100))
	e := AppendOp(OpSegOff, seg, off)
	gotSeg, ok := e.ExtractSegOff()
	if !ok {
		t.Fatal("expected ExtractSegOff to succeed")
	}
	r, _ := gotSeg.GetReg()
	if r != "cs" {
		t.Errorf("extracted segment = %v, want cs", r)
	}
	n, ok := e.GetIntNum()
	if !ok {
		t.Fatalf("remaining expr should be the offset int, got %+v", e.Terms)
	}
	if v, _ := n.ToInt64(); v != 0x100 {
		t.Errorf("offset = %d, want 0x100", v)
	}
}

func TestSubstitute(t *testing.T) {
	e := AppendOp(OpAdd, Subst(0), Int(ionum.New(1)))
	e.Substitute([]*Expr{Int(ionum.New(41))})
	e.Simplify(false)
	n, ok := e.GetIntNum()
	if !ok {
		t.Fatalf("expected folded int after substitution, got %+v", e.Terms)
	}
	if v, _ := n.ToInt64(); v != 42 {
		t.Errorf("substituted 41+1 = %d, want 42", v)
	}
}
