package bytecode

import (
	"asmforge/internal/diag"
	"asmforge/internal/expr"
	"asmforge/internal/value"
)

// JmpSel is which encoding a jump bytecode uses, or JmpUnspecified to
// let the optimizer pick (grounded line-for-line on
// original_source/modules/arch/x86/X86Jmp.cpp).
type JmpSel int

const (
	JmpUnspecified JmpSel = iota
	JmpShort
	JmpNear
)

// spanJmpShortToNear is the span id a jmp bytecode registers over its
// own target distance while still JmpUnspecified (X86Jmp.cpp's span 1).
const spanJmpShortToNear = 1

// jmpContents is a two-form (short/near) relative jump: common prefix
// bytes, a short-form opcode with a 1-byte displacement, a near-form
// opcode with a 2- or 4-byte displacement (OperSize selects which), and
// the target expression.
type jmpContents struct {
	Common   []byte
	ShortOp  []byte
	NearOp   []byte
	OperSize int // 16 or 32

	Sel       JmpSel
	rawTarget *expr.Expr
	target    *value.Value
}

// NewJmp installs a jump-kind Contents. sel may be JmpUnspecified to let
// calc_len pick short and register a widening span.
func NewJmp(common, shortOp, nearOp []byte, operSize int, target *expr.Expr, sel JmpSel) *jmpContents {
	if len(shortOp) == 0 {
		sel = JmpNear
	}
	if len(nearOp) == 0 {
		sel = JmpShort
	}
	return &jmpContents{
		Common: append([]byte(nil), common...), ShortOp: append([]byte(nil), shortOp...),
		NearOp: append([]byte(nil), nearOp...), OperSize: operSize,
		Sel: sel, rawTarget: target,
	}
}

func (c *jmpContents) nearDispSize() int {
	if c.OperSize == 16 {
		return 2
	}
	return 4
}

// Finalize anchors the target IP-relative to the start of this
// bytecode: the remaining bias to the actual end of the instruction
// (which depends on short/near selection, decided later) is supplied as
// NextInsn once Output knows the final encoding.
func (c *jmpContents) Finalize(bc *Bytecode) *diag.Diagnostic {
	subLoc := expr.Location{BC: bc, Offset: int64(len(bc.Fixed))}
	combined := expr.AppendOp(expr.OpAdd, c.rawTarget.Clone(), expr.AppendOp(expr.OpNeg, expr.Loc(subLoc)))
	v, d := value.Finalize(8, true, combined)
	if d != nil {
		return d
	}
	v.JumpTarget = true
	c.target = v
	return nil
}

// setBias keeps c.target.Size/NextInsn in sync with the encoding c.Sel
// currently names, so a distance measurement taken at any point in the
// optimizer's widening loop (not just at final Output) already reflects
// the right end-of-instruction bias.
func (c *jmpContents) setBias(opLen, dispSize int) {
	c.target.Size = dispSize * 8
	c.target.NextInsn = -(len(c.Common) + opLen + dispSize)
}

func (c *jmpContents) CalcLen(bc *Bytecode, addSpan AddSpanFunc) (int, *diag.Diagnostic) {
	switch c.Sel {
	case JmpNear:
		c.setBias(len(c.NearOp), c.nearDispSize())
		return len(c.Common) + len(c.NearOp) + c.nearDispSize(), nil
	case JmpShort:
		c.setBias(len(c.ShortOp), 1)
		return len(c.Common) + len(c.ShortOp) + 1, nil
	default:
		ln := len(c.Common) + len(c.ShortOp) + 1
		c.Sel = JmpShort
		c.setBias(len(c.ShortOp), 1)
		addSpan(bc, spanJmpShortToNear, c.target, int64(-128+ln), int64(127+ln))
		return ln, nil
	}
}

func (c *jmpContents) Expand(bc *Bytecode, spanID int, oldVal, newVal int64) (int, bool, int64, int64, *diag.Diagnostic) {
	if spanID != spanJmpShortToNear || c.Sel != JmpShort {
		return bc.Len, false, 0, 0, nil
	}
	c.Sel = JmpNear
	c.setBias(len(c.NearOp), c.nearDispSize())
	newLen := len(c.Common) + len(c.NearOp) + c.nearDispSize()
	// Near can encode any distance the 2- or 4-byte displacement can
	// represent; no further widening is possible, so the thresholds
	// cover that full signed range rather than forcing a spurious
	// recheck against a still-tight window.
	bound := int64(1)<<(c.nearDispSize()*8-1) - 1
	return newLen, true, -bound - 1, bound, nil
}

func (c *jmpContents) Output(bc *Bytecode, sink Sink) *diag.Diagnostic {
	buf := append([]byte(nil), c.Common...)
	dispSize := 1
	if c.Sel == JmpShort {
		buf = append(buf, c.ShortOp...)
	} else {
		buf = append(buf, c.NearOp...)
		dispSize = c.nearDispSize()
	}
	sink.OutputBytes(buf)

	loc := expr.Location{BC: bc, Offset: int64(len(buf))}
	return sink.OutputValue(c.target, make([]byte, dispSize), loc, bc.Offset+int64(len(buf)))
}

func (c *jmpContents) Clone() Contents {
	cl := *c
	cl.Common = append([]byte(nil), c.Common...)
	cl.ShortOp = append([]byte(nil), c.ShortOp...)
	cl.NearOp = append([]byte(nil), c.NearOp...)
	cl.rawTarget = c.rawTarget.Clone()
	if c.target != nil {
		t := *c.target
		cl.target = &t
	}
	return &cl
}

func (c *jmpContents) SpecialKind() SpecialKind { return KindNormal }
