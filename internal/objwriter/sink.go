// Package objwriter implements the backend half of the build: "after
// optimization, walk sections and bytecodes; for each bytecode call
// Output(sink)". It supplies the real bytecode.Sink (byte buffer plus
// relocation-record collection) and two concrete writers built on top of
// it: a minimal ELF64 relocatable object and a flat binary image. The
// core's own guarantee ("all non-relocatable values have been fully
// reduced to absolute integers by that point") is what lets this package
// treat a still-symbolic value purely as a relocation entry rather than
// needing any core-internal knowledge.
package objwriter

import (
	"asmforge/internal/bytecode"
	"asmforge/internal/diag"
	"asmforge/internal/expr"
	"asmforge/internal/object"
	"asmforge/internal/symbol"
	"asmforge/internal/value"
)

// Relocation is one surviving symbolic reference the backend must turn
// into a format-specific relocation record: sink.go reduces every
// bytecode.Sink callback to this one shape regardless of which of
// value.Result's unresolved forms produced it.
type Relocation struct {
	Offset int64 // absolute file/section offset of the field to patch
	Symbol *symbol.Symbol
	Size   int  // bits
	PCRel  bool // true if the field is IP-relative (CurPosRelative on the source value)
	Addend int64
}

// BufSink is the concrete bytecode.Sink: an in-memory byte buffer plus
// whatever relocations survived finalize/optimize. One BufSink covers an
// entire Object (every section shares the same flat buffer and
// relocation list, since the file offset already encodes which section a
// byte belongs to).
type BufSink struct {
	Buf  []byte
	Relo []Relocation
}

func NewBufSink() *BufSink { return &BufSink{} }

func (s *BufSink) OutputBytes(b []byte) { s.Buf = append(s.Buf, b...) }

func (s *BufSink) OutputGap(n int) *diag.Diagnostic {
	s.Buf = append(s.Buf, make([]byte, n)...)
	return nil
}

func (s *BufSink) OutputValue(v *value.Value, bytes []byte, loc expr.Location, curOffset int64) *diag.Diagnostic {
	res, d := value.Output(v, resolverAdapter{})
	if d != nil {
		return d
	}
	if res.Resolved {
		n, err := res.Int.ToInt64()
		if err != nil {
			return &diag.Diagnostic{Kind: diag.KindValueOutOfRange, Message: "resolved value does not fit a host integer"}
		}
		putLE(bytes, n)
		s.Buf = append(s.Buf, bytes...)
		return nil
	}
	s.Buf = append(s.Buf, bytes...)
	sym := res.RelSymbol
	if sym == nil {
		sym = res.WrtSymbol
	}
	var addend int64
	if res.AbsPart != nil {
		addend, _ = res.AbsPart.ToInt64()
	}
	s.Relo = append(s.Relo, Relocation{
		Offset: curOffset,
		Symbol: symOf(sym),
		Size:   len(bytes) * 8,
		PCRel:  v.CurPosRelative,
		Addend: addend,
	})
	return nil
}

func (s *BufSink) ResolveAbs(v *value.Value) (int64, *diag.Diagnostic) {
	res, d := value.Output(v, resolverAdapter{})
	if d != nil {
		return 0, d
	}
	if !res.Resolved {
		return 0, &diag.Diagnostic{Kind: diag.KindValueOutOfRange, Message: "LEB128 operand did not resolve to an absolute value"}
	}
	n, err := res.Int.ToInt64()
	if err != nil {
		return 0, &diag.Diagnostic{Kind: diag.KindValueOutOfRange, Message: "resolved value does not fit a host integer"}
	}
	return n, nil
}

func symOf(ref expr.SymbolRef) *symbol.Symbol {
	s, _ := ref.(*symbol.Symbol)
	return s
}

func putLE(bytes []byte, n int64) {
	u := uint64(n)
	for i := range bytes {
		bytes[i] = byte(u >> (8 * uint(i)))
	}
}

// resolverAdapter lets value.Output resolve a Location/symbol against the
// already-built offset table one last time, the same way
// internal/optimize's resolver does but driven purely by the already-final
// Bytecode.Offset fields Build left behind (no optimizer-owned state
// needed at this point).
type resolverAdapter struct{}

func (resolverAdapter) ResolveLocation(l expr.Location) (int64, bool) {
	bc, ok := l.BC.(*bytecode.Bytecode)
	if !ok || bc.Offset < 0 {
		return 0, false
	}
	return bc.Offset + l.Offset, true
}

func (r resolverAdapter) ResolveSymbol(sym expr.SymbolRef) (int64, bool) {
	s, ok := sym.(*symbol.Symbol)
	if !ok || s.Type != symbol.TypeLabel {
		return 0, false
	}
	return r.ResolveLocation(s.Loc)
}

// Write drives obj's already-built sections through Bytecode.Output,
// returning the sink holding the full flat output plus any surviving
// relocations (the same backend walk). baseOffset must match the one
// obj.Build was run with; the caller is responsible for writing whatever
// format header precedes the sections themselves.
func Write(obj *object.Object, baseOffset int64) (*BufSink, *diag.Diagnostic) {
	sink := NewBufSink()
	for _, sec := range obj.Sections() {
		for _, bc := range sec.Bytecodes() {
			if d := bc.Output(sink, bc.Offset); d != nil {
				return sink, d
			}
		}
	}
	return sink, nil
}
