package objwriter

import (
	"fmt"

	"asmforge/internal/object"
	"asmforge/internal/symbol"
)

// WriteFlat serializes obj as a flat binary image: just the concatenated
// section bytes in switch order, no header, no symbol table. Any
// relocation the sink could not resolve is an error here (a flat image
// has no relocation mechanism of its own — every reference must already
// be absolute, which is the format's whole point: a ROM image or a
// bootloader stage with a fixed load address, grounded on the same
// "format modules only differ in Output" split
// original_source/modules/objfmts/bin/BinObject.cpp uses for its own
// no-relocations flat format).
func WriteFlat(obj *object.Object, baseOffset int64) ([]byte, error) {
	sink, d := Write(obj, baseOffset)
	if d != nil {
		return nil, fmt.Errorf("output: %s", d.Message)
	}
	if len(sink.Relo) > 0 {
		return nil, fmt.Errorf("%d unresolved relocation(s): a flat binary has no way to express a reference to an external or as-yet-unlocated symbol (first: offset %d, symbol %v)",
			len(sink.Relo), sink.Relo[0].Offset, symbolName(sink.Relo[0].Symbol))
	}
	return sink.Buf, nil
}

func symbolName(s *symbol.Symbol) string {
	if s == nil {
		return "<absolute>"
	}
	return s.Name()
}
