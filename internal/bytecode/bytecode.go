// Package bytecode implements the Bytecode container (spec component C4):
// a unit of output holding fixed bytes, a list of fixups against those
// bytes, an optional polymorphic Contents variant for tails whose length
// depends on span distance, and a multiple-repeat count. Modeled on the
// reference internal/bytecode.Chunk append-only buffer, generalized from
// "bytecode of VM opcodes" to "bytecode of assembled machine bytes."
package bytecode

import (
	"asmforge/internal/diag"
	"asmforge/internal/expr"
	"asmforge/internal/value"
)

// SpecialKind marks a Contents variant's interaction with offset
// assignment: most variants have a length fixed before offsets are known,
// but SPECIAL_OFFSET variants (align, org) recompute their length once
// their own starting offset is known.
type SpecialKind int

const (
	KindNormal SpecialKind = iota
	KindReserve
	KindSpecialOffset
)

// spanMultiple is the reserved span id (0) for a bytecode's own multiple
// expression, handled generically by Bytecode.Expand rather than
// delegated to Contents.
const spanMultiple = 0

// AddSpanFunc registers a span during calc_len: the owning bytecode, a
// content-private span id, the Value whose resolved distance the
// optimizer must track, and the threshold range within which the
// current encoding stays legal. Defined here (not in internal/optimize)
// so Contents implementations never import the optimizer that drives
// them — the optimizer supplies the closure at call time.
type AddSpanFunc func(bc *Bytecode, spanID int, v *value.Value, negThres, posThres int64)

// Sink receives a bytecode's output: literal byte runs, value-backed
// fixups resolved against the final offset table, and gaps for
// reserve-kind contents. Implemented by internal/object's writer-facing
// collaborator, never by this package. curOffset is the absolute address
// the fixup's bytes start at, for the sink's own relocation-entry
// bookkeeping; value.Output resolves v independently of it.
type Sink interface {
	OutputBytes(b []byte)
	OutputGap(n int) *diag.Diagnostic
	OutputValue(v *value.Value, bytes []byte, loc expr.Location, curOffset int64) *diag.Diagnostic
	// ResolveAbs resolves v to a plain host integer, for Contents whose
	// own output encoding (e.g. LEB128's base-128 groups) is not a
	// straight little-endian byte pack and so cannot go through
	// OutputValue; it fails the same way OutputValue would if v still
	// carries an unresolved relative symbol.
	ResolveAbs(v *value.Value) (int64, *diag.Diagnostic)
}

// Contents is the polymorphic tail of a Bytecode: a variant over
// data/reserve/align/org/instruction cases.
type Contents interface {
	Finalize(bc *Bytecode) *diag.Diagnostic
	CalcLen(bc *Bytecode, addSpan AddSpanFunc) (int, *diag.Diagnostic)
	// Expand applies a widening triggered by span spanID crossing a
	// threshold, returning the content's new length, whether it grew,
	// and the new threshold pair (meaningless once no further growth is
	// possible).
	Expand(bc *Bytecode, spanID int, oldVal, newVal int64) (newLen int, grew bool, negThres, posThres int64, d *diag.Diagnostic)
	Output(bc *Bytecode, sink Sink) *diag.Diagnostic
	Clone() Contents
	SpecialKind() SpecialKind
}

// Fixup is a deferred write into Fixed: the raw (pre-finalize) expression
// plus the slot description it should be finalized against. Val is set
// by Finalize.
type Fixup struct {
	Off        int
	Size       int
	Sign       bool
	JumpTarget bool
	Raw        *expr.Expr
	Val        *value.Value
}

// Bytecode is one contiguous unit of output within a Section: fixed
// bytes, fixups against them, an optional Contents tail, and a multiple
// repeat count.
type Bytecode struct {
	Container interface{} // owning Section, opaque to avoid an import cycle
	Line      int
	Index     int

	Fixed  []byte
	Fixups []Fixup

	Contents Contents

	Multiple    *expr.Expr
	multipleVal *value.Value
	MultInt     int64

	Len    int
	Offset int64 // -1 until update_offset assigns it
}

// New returns an empty bytecode (no contents, multiple defaulting to 1).
func New() *Bytecode {
	return &Bytecode{Offset: -1, MultInt: 1}
}

// AppendData appends literal bytes with no fixups and no contents (the
// "data/fixed only" case: length already known, never a tail).
func (bc *Bytecode) AppendData(b []byte) {
	bc.Fixed = append(bc.Fixed, b...)
}

// AppendFixed reserves size/8 zero bytes in Fixed and records a fixup
// against e to be resolved at Finalize time.
func (bc *Bytecode) AppendFixed(size int, signed bool, e *expr.Expr, jumpTarget bool) {
	off := len(bc.Fixed)
	bc.Fixed = append(bc.Fixed, make([]byte, size/8)...)
	bc.Fixups = append(bc.Fixups, Fixup{Off: off, Size: size, Sign: signed, JumpTarget: jumpTarget, Raw: e})
}

// Finalize resolves every fixup's raw expression into a Value, then
// delegates to Contents and, if present, the Multiple expression.
func (bc *Bytecode) Finalize() *diag.Diagnostic {
	for i := range bc.Fixups {
		f := &bc.Fixups[i]
		v, d := value.Finalize(f.Size, f.Sign, f.Raw)
		if d != nil {
			return d
		}
		v.JumpTarget = f.JumpTarget
		if f.JumpTarget && (v.SegOf || v.RShift != 0 || v.CurPosRelative) {
			return &diag.Diagnostic{Kind: diag.KindInvalidJumpTarget, Message: "jump target expression resolved to a seg-of, rshift, or curpos-relative value"}
		}
		f.Val = v
	}

	if bc.Contents != nil {
		if d := bc.Contents.Finalize(bc); d != nil {
			return d
		}
	}

	if bc.Multiple != nil {
		v, d := value.Finalize(64, false, bc.Multiple)
		if d != nil {
			return d
		}
		if v.Rel != nil || v.CurPosRelative {
			return &diag.Diagnostic{Kind: diag.KindMultipleNotAbsolute, Message: "multiple must resolve to an absolute value"}
		}
		bc.multipleVal = v
	}

	return nil
}

// CalcLen computes this bytecode's unscaled length (one repetition's
// worth), registering a span for the Multiple expression if it is not
// yet a constant.
func (bc *Bytecode) CalcLen(addSpan AddSpanFunc) *diag.Diagnostic {
	if bc.Contents != nil {
		n, d := bc.Contents.CalcLen(bc, addSpan)
		if d != nil {
			return d
		}
		bc.Len = n
	} else {
		bc.Len = len(bc.Fixed)
	}

	if bc.multipleVal == nil {
		bc.MultInt = 1
		return nil
	}

	abs := bc.multipleVal.Abs.Clone()
	abs.Simplify(false)
	if _, hasFloat := abs.Contains(expr.TermFloat); hasFloat {
		return &diag.Diagnostic{Kind: diag.KindMultipleContainsFloat, Message: "multiple contains a floating-point value"}
	}
	if iv, ok := abs.GetIntNum(); ok {
		n, err := iv.ToInt64()
		if err != nil || n < 0 {
			return &diag.Diagnostic{Kind: diag.KindMultipleNegative, Message: "multiple is negative"}
		}
		bc.MultInt = n
		return nil
	}
	// Non-constant: register span 0 and assume zero until the optimizer
	// resolves it.
	addSpan(bc, spanMultiple, bc.multipleVal, 0, 0)
	bc.MultInt = 0
	return nil
}

// Expand applies a widening for spanID, either the reserved multiple
// span (id 0, handled here) or a content-private span delegated to
// Contents.
func (bc *Bytecode) Expand(spanID int, oldVal, newVal int64) (grew bool, negThres, posThres int64, d *diag.Diagnostic) {
	if spanID == spanMultiple {
		grew = newVal > bc.MultInt
		bc.MultInt = newVal
		return grew, 0, 0, nil
	}
	if bc.Contents == nil {
		return false, 0, 0, nil
	}
	newLen, grew, neg, pos, d := bc.Contents.Expand(bc, spanID, oldVal, newVal)
	if d != nil {
		return false, 0, 0, d
	}
	bc.Len = newLen
	return grew, neg, pos, nil
}

// TotalLen is the full encoded length of this bytecode, including all
// multiple repetitions: `fixed.size() + tail_len * multiple_int`. A
// bytecode with no Contents has no tail: its Fixed bytes are the repeated
// unit (Len == len(Fixed)) and are emitted at least once, as Output does.
func (bc *Bytecode) TotalLen() int64 {
	if bc.Contents == nil {
		if bc.MultInt > 1 {
			return int64(len(bc.Fixed)) * bc.MultInt
		}
		return int64(len(bc.Fixed))
	}
	return int64(len(bc.Fixed)) + int64(bc.Len)*bc.MultInt
}

// UpdateOffset assigns offset to this bytecode, re-running Expand on
// SPECIAL_OFFSET contents so it can grow or shrink to reach the
// requested address, and returns the next bytecode's offset.
func (bc *Bytecode) UpdateOffset(offset int64) (int64, *diag.Diagnostic) {
	if bc.Contents != nil && bc.Contents.SpecialKind() == KindSpecialOffset {
		newLen, _, _, _, d := bc.Contents.Expand(bc, spanSpecialOffset, 0, offset)
		if d != nil {
			return 0, d
		}
		bc.Len = newLen
	}
	bc.Offset = offset
	return offset + bc.TotalLen(), nil
}

// spanSpecialOffset is the span id update_offset re-invokes
// SPECIAL_OFFSET contents with.
const spanSpecialOffset = 1

// Output walks Fixed emitting literal runs and resolved fixups, then
// (unless Contents is reserve-kind, which instead emits one gap) invokes
// Contents.Output once per multiple repetition, checking that the
// emitted length matches the bytecode's computed Len.
func (bc *Bytecode) Output(sink Sink, baseOffset int64) *diag.Diagnostic {
	if bc.Contents != nil && bc.Contents.SpecialKind() == KindReserve {
		if bc.MultInt > 0 {
			return sink.OutputGap(int(int64(bc.Len) * bc.MultInt))
		}
		return nil
	}

	cs := &countingSink{Sink: sink, baseOffset: baseOffset}
	pos := 0
	for i := range bc.Fixups {
		f := &bc.Fixups[i]
		if f.Off > pos {
			cs.OutputBytes(bc.Fixed[pos:f.Off])
		}
		sz := f.Size / 8
		if sz == 0 {
			sz = 1
		}
		loc := expr.Location{BC: bc, Offset: int64(f.Off)}
		if d := cs.OutputValue(f.Val, bc.Fixed[f.Off:f.Off+sz], loc, baseOffset+int64(f.Off)); d != nil {
			return d
		}
		pos = f.Off + sz
	}
	if pos < len(bc.Fixed) {
		cs.OutputBytes(bc.Fixed[pos:])
	}

	if bc.Contents == nil {
		for i := int64(1); i < bc.MultInt; i++ {
			cs.OutputBytes(bc.Fixed)
		}
		return nil
	}

	for i := int64(0); i < bc.MultInt; i++ {
		before := cs.n
		if d := bc.Contents.Output(bc, cs); d != nil {
			return d
		}
		if int(cs.n-before) != bc.Len {
			return &diag.Diagnostic{Kind: diag.KindInternalLengthMismatch, Message: "contents emitted a different length than calc_len predicted"}
		}
	}
	return nil
}

// countingSink wraps a Sink to track total bytes written, so Output can
// enforce the "emitted length must equal len" invariant.
type countingSink struct {
	Sink
	baseOffset int64
	n          int64
}

func (c *countingSink) OutputBytes(b []byte) {
	c.n += int64(len(b))
	c.Sink.OutputBytes(b)
}

func (c *countingSink) OutputValue(v *value.Value, bytes []byte, loc expr.Location, curOffset int64) *diag.Diagnostic {
	c.n += int64(len(bytes))
	return c.Sink.OutputValue(v, bytes, loc, curOffset)
}

func (c *countingSink) ResolveAbs(v *value.Value) (int64, *diag.Diagnostic) {
	return c.Sink.ResolveAbs(v)
}
