package bytecode

import (
	"asmforge/internal/diag"
	"asmforge/internal/expr"
	"asmforge/internal/value"
)

// spanLeb128Width is the span id a LEB128 bytecode registers over its own
// magnitude (there is only one span per bytecode, so a fixed id is fine
// the way jmp's spanJmpShortToNear is).
const spanLeb128Width = 1

// leb128Contents is an unsigned or signed LEB128 integer whose byte width
// depends on the value's magnitude: the "LEB128 widths" span-dependent
// case the core's purpose statement calls out alongside short/near jump
// selection, except here widening is unbounded (one more 7-bit group at
// a time) rather than a two-way choice, so it exercises the optimizer's
// general loop rather than just its binary case. Once a width is
// committed, shorter encodings are never re-tried even if a later
// widening elsewhere in the section moves the value back into range,
// since DWARF-style padded LEB128 tolerates a wider-than-minimal
// encoding but Contents.Expand must never shrink (a bytecode's encoded length only ever grows during widening, never shrinks).
type leb128Contents struct {
	Raw    *expr.Expr
	Signed bool

	val *value.Value
	n   int // current committed byte width
}

// NewLEB128 installs a LEB128-kind Contents for e.
func NewLEB128(e *expr.Expr, signed bool) *leb128Contents {
	return &leb128Contents{Raw: e, Signed: signed, n: 1}
}

func (c *leb128Contents) Finalize(bc *Bytecode) *diag.Diagnostic {
	v, d := value.Finalize(64, c.Signed, c.Raw)
	if d != nil {
		return d
	}
	c.val = v
	return nil
}

// leb128Bounds returns the inclusive range of values a padded LEB128
// encoding of n groups (n*7 bits) can represent.
func leb128Bounds(n int, signed bool) (int64, int64) {
	bits := uint(n) * 7
	if bits >= 63 {
		bits = 63 // host int64 cannot measure a wider span anyway
	}
	if !signed {
		return 0, int64(1)<<bits - 1
	}
	half := int64(1) << (bits - 1)
	return -half, half - 1
}

// leb128Width returns the smallest number of 7-bit groups that represents n.
func leb128Width(n int64, signed bool) int {
	w := 1
	for {
		lo, hi := leb128Bounds(w, signed)
		if n >= lo && n <= hi {
			return w
		}
		w++
	}
}

func (c *leb128Contents) CalcLen(bc *Bytecode, addSpan AddSpanFunc) (int, *diag.Diagnostic) {
	c.n = 1
	lo, hi := leb128Bounds(c.n, c.Signed)
	addSpan(bc, spanLeb128Width, c.val, lo, hi)
	return c.n, nil
}

func (c *leb128Contents) Expand(bc *Bytecode, spanID int, oldVal, newVal int64) (int, bool, int64, int64, *diag.Diagnostic) {
	if spanID != spanLeb128Width {
		return bc.Len, false, 0, 0, nil
	}
	want := leb128Width(newVal, c.Signed)
	if want <= c.n {
		return c.n, false, 0, 0, nil
	}
	c.n = want
	lo, hi := leb128Bounds(c.n, c.Signed)
	return c.n, true, lo, hi, nil
}

func (c *leb128Contents) Output(bc *Bytecode, sink Sink) *diag.Diagnostic {
	n, d := sink.ResolveAbs(c.val)
	if d != nil {
		return d
	}
	out := make([]byte, c.n)
	for i := 0; i < c.n; i++ {
		b := byte(n & 0x7f)
		n >>= 7
		if i < c.n-1 {
			b |= 0x80
		}
		out[i] = b
	}
	sink.OutputBytes(out)
	return nil
}

func (c *leb128Contents) Clone() Contents {
	cl := *c
	cl.Raw = c.Raw.Clone()
	if c.val != nil {
		v := *c.val
		cl.val = &v
	}
	return &cl
}

func (c *leb128Contents) SpecialKind() SpecialKind { return KindNormal }
