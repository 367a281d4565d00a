package bytecode

import "asmforge/internal/diag"

// dataContents is a literal byte pattern replicated Multiple times (the
// TIMES-prefixed-data case): the pattern itself lives in Contents rather
// than Fixed so a single pattern can be repeated without re-finalizing
// fixups on every repetition.
type dataContents struct {
	Pattern []byte
}

// NewData installs a replicated literal-byte Contents on bc.
func NewData(pattern []byte) *dataContents {
	return &dataContents{Pattern: append([]byte(nil), pattern...)}
}

func (c *dataContents) Finalize(bc *Bytecode) *diag.Diagnostic { return nil }

func (c *dataContents) CalcLen(bc *Bytecode, addSpan AddSpanFunc) (int, *diag.Diagnostic) {
	return len(c.Pattern), nil
}

func (c *dataContents) Expand(bc *Bytecode, spanID int, oldVal, newVal int64) (int, bool, int64, int64, *diag.Diagnostic) {
	return len(c.Pattern), false, 0, 0, nil
}

func (c *dataContents) Output(bc *Bytecode, sink Sink) *diag.Diagnostic {
	sink.OutputBytes(c.Pattern)
	return nil
}

func (c *dataContents) Clone() Contents {
	return &dataContents{Pattern: append([]byte(nil), c.Pattern...)}
}

func (c *dataContents) SpecialKind() SpecialKind { return KindNormal }

// reserveContents reserves UnitSize*Multiple uninitialized bytes (resb,
// resw, resd, ...): output emits a gap, never a fill of zeros.
type reserveContents struct {
	UnitSize int
}

// NewReserve installs a reserve-kind Contents reserving unitSize bytes
// per repetition.
func NewReserve(unitSize int) *reserveContents {
	return &reserveContents{UnitSize: unitSize}
}

func (c *reserveContents) Finalize(bc *Bytecode) *diag.Diagnostic { return nil }

func (c *reserveContents) CalcLen(bc *Bytecode, addSpan AddSpanFunc) (int, *diag.Diagnostic) {
	return c.UnitSize, nil
}

func (c *reserveContents) Expand(bc *Bytecode, spanID int, oldVal, newVal int64) (int, bool, int64, int64, *diag.Diagnostic) {
	return c.UnitSize, false, 0, 0, nil
}

// Output is unreachable in practice: Bytecode.Output special-cases
// KindReserve and emits a gap directly without calling Contents.Output.
func (c *reserveContents) Output(bc *Bytecode, sink Sink) *diag.Diagnostic { return nil }

func (c *reserveContents) Clone() Contents {
	return &reserveContents{UnitSize: c.UnitSize}
}

func (c *reserveContents) SpecialKind() SpecialKind { return KindReserve }
