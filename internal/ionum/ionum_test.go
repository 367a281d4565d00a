package ionum

import "testing"

func TestCalcAdd(t *testing.T) {
	r, err := Calc(OpAdd, New(2), New(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := r.ToInt64(); got != 5 {
		t.Errorf("2+3 = %d, want 5", got)
	}
}

func TestDivideByZero(t *testing.T) {
	_, err := Calc(OpSignDiv, New(10), New(0))
	if err == nil {
		t.Fatal("expected divide-by-zero error")
	}
	if e, ok := err.(*Error); !ok || e.Kind != ErrDivideByZero {
		t.Errorf("got %v, want ErrDivideByZero", err)
	}
}

func TestSignDivTruncatesTowardZero(t *testing.T) {
	r, err := Calc(OpSignDiv, New(-7), New(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := r.ToInt64(); got != -3 {
		t.Errorf("-7 signdiv 2 = %d, want -3", got)
	}
}

func TestShiftOutOfRange(t *testing.T) {
	_, err := Calc(OpShl, New(1), New(-1))
	if err == nil {
		t.Fatal("expected shift-out-of-range error")
	}
}

func TestExtract(t *testing.T) {
	n := New(0xABCD)
	got := n.Extract(8, 4)
	if v, _ := got.ToUint64(); v != 0xBC {
		t.Errorf("extract(8,4) of 0xABCD = %#x, want 0xbc", v)
	}
}

func TestToUint64OverflowOnNegative(t *testing.T) {
	_, err := New(-1).ToUint64()
	if err == nil {
		t.Fatal("expected overflow error for negative value")
	}
}

func TestToInt64Overflow(t *testing.T) {
	big := New(0)
	big.v.SetString("999999999999999999999999999999", 10)
	if _, err := big.ToInt64(); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestRelAndLogical(t *testing.T) {
	if v, _ := CalcRel(OpLt, New(1), New(2)).ToInt64(); v != 1 {
		t.Errorf("1 < 2 should be true")
	}
	if v, _ := CalcLogical(OpLAnd, New(1), New(0)).ToInt64(); v != 0 {
		t.Errorf("1 land 0 should be false")
	}
}

func TestCondAndClone(t *testing.T) {
	a := New(5)
	b := a.Clone()
	b.v.SetInt64(9)
	if v, _ := a.ToInt64(); v != 5 {
		t.Errorf("clone mutated original: a=%d", v)
	}
	r := Cond(New(1), New(10), New(20))
	if v, _ := r.ToInt64(); v != 10 {
		t.Errorf("cond true branch = %d, want 10", v)
	}
}

func TestStringRadix(t *testing.T) {
	n := New(255)
	if n.String(16) != "ff" {
		t.Errorf("255 in base 16 = %s, want ff", n.String(16))
	}
}
