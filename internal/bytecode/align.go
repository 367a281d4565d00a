package bytecode

import "asmforge/internal/diag"

// alignContents pads to the next multiple of Boundary with Fill
// (truncated/repeated to fit), up to MaxSkip bytes; past that it emits
// no padding at all rather than skip an unbounded distance. Its length
// depends on its own starting offset, so it is SPECIAL_OFFSET kind and
// starts at length 0 until update_offset assigns a real address.
type alignContents struct {
	Boundary int64
	Fill     []byte
	MaxSkip  int64
}

// NewAlign installs an align-kind Contents padding to the given
// power-of-two boundary.
func NewAlign(boundary int64, fill []byte, maxSkip int64) *alignContents {
	if len(fill) == 0 {
		fill = []byte{0x00}
	}
	return &alignContents{Boundary: boundary, Fill: fill, MaxSkip: maxSkip}
}

func (c *alignContents) Finalize(bc *Bytecode) *diag.Diagnostic { return nil }

// CalcLen has no offset yet; assume no padding needed until
// update_offset recomputes the real amount.
func (c *alignContents) CalcLen(bc *Bytecode, addSpan AddSpanFunc) (int, *diag.Diagnostic) {
	return 0, nil
}

func (c *alignContents) padding(offset int64) int64 {
	if c.Boundary <= 1 {
		return 0
	}
	rem := offset % c.Boundary
	if rem == 0 {
		return 0
	}
	pad := c.Boundary - rem
	if c.MaxSkip > 0 && pad > c.MaxSkip {
		return 0
	}
	return pad
}

// Expand recomputes padding for a bytecode now known to start at newVal.
func (c *alignContents) Expand(bc *Bytecode, spanID int, oldVal, newVal int64) (int, bool, int64, int64, *diag.Diagnostic) {
	n := c.padding(newVal)
	return int(n), int(n) > bc.Len, 0, 0, nil
}

func (c *alignContents) Output(bc *Bytecode, sink Sink) *diag.Diagnostic {
	out := make([]byte, bc.Len)
	for i := range out {
		out[i] = c.Fill[i%len(c.Fill)]
	}
	sink.OutputBytes(out)
	return nil
}

func (c *alignContents) Clone() Contents {
	return &alignContents{Boundary: c.Boundary, Fill: append([]byte(nil), c.Fill...), MaxSkip: c.MaxSkip}
}

func (c *alignContents) SpecialKind() SpecialKind { return KindSpecialOffset }

// orgContents forces the next byte to start at Target, padding with
// Fill to get there; it is an error for the bytecode to already be
// placed past Target (offset moves backward).
type orgContents struct {
	Target int64
	Fill   byte
}

// NewOrg installs an org-kind Contents forcing the following bytecode to
// start at the given absolute offset.
func NewOrg(target int64, fill byte) *orgContents {
	return &orgContents{Target: target, Fill: fill}
}

func (c *orgContents) Finalize(bc *Bytecode) *diag.Diagnostic { return nil }

func (c *orgContents) CalcLen(bc *Bytecode, addSpan AddSpanFunc) (int, *diag.Diagnostic) {
	return 0, nil
}

func (c *orgContents) Expand(bc *Bytecode, spanID int, oldVal, newVal int64) (int, bool, int64, int64, *diag.Diagnostic) {
	pad := c.Target - newVal
	if pad < 0 {
		return 0, false, 0, 0, &diag.Diagnostic{Kind: diag.KindValueOutOfRange, Message: "org target is behind the current offset"}
	}
	return int(pad), int(pad) > bc.Len, 0, 0, nil
}

func (c *orgContents) Output(bc *Bytecode, sink Sink) *diag.Diagnostic {
	out := make([]byte, bc.Len)
	for i := range out {
		out[i] = c.Fill
	}
	sink.OutputBytes(out)
	return nil
}

func (c *orgContents) Clone() Contents {
	return &orgContents{Target: c.Target, Fill: c.Fill}
}

func (c *orgContents) SpecialKind() SpecialKind { return KindSpecialOffset }
