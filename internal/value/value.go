// Package value implements the Value slot description and finalize/output
// semantics (spec component C5): a fixup slot is finalized once from a raw
// expression into an absolute part, an optional relative-to symbol, an
// optional WRT symbol, and the seg-of/ip-relative/curpos-relative/rshift
// modifiers, then repeatedly re-evaluated against the current offset table
// as the optimizer (C6) converges.
package value

import (
	"asmforge/internal/diag"
	"asmforge/internal/expr"
	"asmforge/internal/ionum"
)

// Value is one fixup slot: a location within a Bytecode's fixed bytes
// that the final numeric (or relocation) content is written into.
type Value struct {
	Size int  // width of the slot, in bits
	Sign bool // whether out-of-range checking treats the slot as signed

	JumpTarget     bool // this value is a jump/branch displacement or target
	CurPosRelative bool // relative to "." (the curpos anchor was a Location, not a symbol)
	SegOf          bool // value is a segment selector, not a full address

	RShift   uint // right-shift applied to the resolved value before range-checking
	NextInsn int  // bytes from the CurPosRelative anchor forward to the true reference point (e.g. end of instruction); may be negative

	Abs *expr.Expr      // remaining absolute/symbolic expression
	Rel expr.SymbolRef  // "value = abs - rel" relative-to symbol, if any
	Wrt expr.SymbolRef  // "value WRT wrt", if any

	anchor expr.Location // curpos anchor location, when CurPosRelative
}

// Finalize decomposes a raw expression into a Value's fields: it pulls out
// a WRT suffix, a unary seg-of marker, and an additive "- symbol" or
// "- ." relative anchor, simplifies what remains, and leaves Abs holding
// whatever could not be reduced to a plain integer.
func Finalize(size int, signed bool, e *expr.Expr) (*Value, *diag.Diagnostic) {
	v := &Value{Size: size, Sign: signed}
	e = e.Clone()

	if wrt, ok := e.ExtractWrt(); ok {
		sym, ok := wrt.GetSymbol()
		if !ok {
			return nil, &diag.Diagnostic{Kind: diag.KindTooComplex, Message: "WRT operand must be a single symbol"}
		}
		v.Wrt = sym
	}

	e.Simplify(false)

	if e.IsOp(expr.OpSeg) {
		v.SegOf = true
		kids := e.Children(e.Root())
		if len(kids) == 1 {
			start, end := e.SpanOf(kids[0])
			e = &expr.Expr{Terms: append([]expr.Term(nil), e.Terms[start:end+1]...)}
			e.Simplify(false)
		}
	}

	if root, ok := asAdd(e); ok {
		rest, anchorTerm, found := extractSubtractedAnchor(root)
		if found {
			switch anchorTerm.Kind {
			case expr.TermSymbol:
				v.Rel = anchorTerm.Sym
			case expr.TermLocation:
				v.CurPosRelative = true
				v.anchor = anchorTerm.Loc
			}
			e = rest
			e.Simplify(false)
		}
	}

	v.Abs = e
	return v, nil
}

// asAdd reports whether e's root is an ADD.
func asAdd(e *expr.Expr) (*expr.Expr, bool) {
	if e.IsOp(expr.OpAdd) {
		return e, true
	}
	return e, false
}

// extractSubtractedAnchor looks for exactly one ADD child of the form
// MUL(-1, symbol-or-location) (the shape xformNeg+Simplify leaves a
// subtracted single anchor in) and, if found, returns a new Expr with
// that child removed plus the removed anchor term.
func extractSubtractedAnchor(root *expr.Expr) (*expr.Expr, expr.Term, bool) {
	kids := root.Children(root.Root())
	for _, k := range kids {
		t := root.Terms[k]
		if t.Kind != expr.TermOp || t.Op != expr.OpMul {
			continue
		}
		mkids := root.Children(k)
		if len(mkids) != 2 {
			continue
		}
		var negIdx, otherIdx int = -1, -1
		for _, mk := range mkids {
			mt := root.Terms[mk]
			if mt.Kind == expr.TermInt && mt.Int != nil {
				if v, err := mt.Int.ToInt64(); err == nil && v == -1 {
					negIdx = mk
					continue
				}
			}
			otherIdx = mk
		}
		if negIdx < 0 || otherIdx < 0 {
			continue
		}
		anchorTerm := root.Terms[otherIdx]
		if anchorTerm.Kind != expr.TermSymbol && anchorTerm.Kind != expr.TermLocation {
			continue
		}
		return removeDirectChild(root, k), anchorTerm, true
	}
	return root, expr.Term{}, false
}

// removeDirectChild rebuilds root with its direct child at removeIdx cut
// out, re-wrapping the remaining direct children in a fresh ADD if more
// than one remains.
func removeDirectChild(root *expr.Expr, removeIdx int) *expr.Expr {
	kids := root.Children(root.Root())
	var remaining []*expr.Expr
	for _, k := range kids {
		if k == removeIdx {
			continue
		}
		s, e := root.SpanOf(k)
		remaining = append(remaining, &expr.Expr{Terms: append([]expr.Term(nil), root.Terms[s:e+1]...)})
	}
	switch len(remaining) {
	case 0:
		return expr.Int(ionum.New(0))
	case 1:
		return remaining[0]
	default:
		return expr.AppendOp(expr.OpAdd, remaining...)
	}
}

// splitSingleSymbol reports whether e is, after simplification, a plain
// symbol or a sum containing exactly one symbolic direct child alongside
// otherwise-foldable terms; it returns that symbol and the remaining
// (already re-simplified) addend expression.
func splitSingleSymbol(e *expr.Expr) (expr.SymbolRef, *expr.Expr, bool) {
	if s, ok := e.GetSymbol(); ok {
		return s, expr.Int(ionum.New(0)), true
	}
	if !e.IsOp(expr.OpAdd) {
		return nil, nil, false
	}
	kids := e.Children(e.Root())
	symIdx := -1
	for _, k := range kids {
		if e.Terms[k].Kind == expr.TermSymbol {
			if symIdx >= 0 {
				return nil, nil, false // more than one symbol: too complex
			}
			symIdx = k
		}
	}
	if symIdx < 0 {
		return nil, nil, false
	}
	sym := e.Terms[symIdx].Sym
	rest := removeDirectChild(e, symIdx)
	rest.Simplify(false)
	return sym, rest, true
}

// OffsetResolver answers "what is the absolute offset of this location /
// symbol", and whether the answer is known yet: during
// widening not every symbol has a final offset.
type OffsetResolver interface {
	ResolveLocation(l expr.Location) (int64, bool)
	ResolveSymbol(s expr.SymbolRef) (int64, bool)
}

// Result is what Output produces: either a fully-resolved integer, or a
// symbolic remainder an external collaborator (objwriter) must turn into
// a relocation entry.
type Result struct {
	Resolved bool
	Int      *ionum.IntNum
	// Relocatable fields, valid when !Resolved:
	RelSymbol expr.SymbolRef
	WrtSymbol expr.SymbolRef
	AbsPart   *ionum.IntNum // constant addend alongside RelSymbol
}

// resolveCore evaluates everything about v that does not depend on the
// final range check: the absolute/additive-symbol split, the
// CurPosRelative and Rel subtractions. It returns the running integer,
// any additive symbol still to be resolved by the caller, and whether
// the CurPosRelative/Rel anchors themselves resolved — false there means
// "not resolvable yet" (during optimizer passes, before every bytecode
// has a provisional offset), distinct from addSym being independently
// unresolved (a legitimate external reference needing a relocation at
// final output time).
func resolveCore(v *Value, res OffsetResolver) (n *ionum.IntNum, addSym expr.SymbolRef, anchorsOK bool, d *diag.Diagnostic) {
	abs := v.Abs.Clone()
	abs.Simplify(false)

	num, pureInt := abs.GetIntNum()
	if !pureInt {
		sym, rest, ok := splitSingleSymbol(abs)
		if !ok {
			kind := diag.KindTooComplex
			if v.JumpTarget {
				kind = diag.KindInvalidJumpTarget
			}
			return nil, nil, false, &diag.Diagnostic{Kind: kind, Message: "value did not reduce to an absolute integer or a single symbol plus addend"}
		}
		addend, ok := rest.GetIntNum()
		if !ok {
			kind := diag.KindTooComplex
			if v.JumpTarget {
				kind = diag.KindInvalidJumpTarget
			}
			return nil, nil, false, &diag.Diagnostic{Kind: kind, Message: "symbolic addend did not reduce to an absolute integer"}
		}
		addSym = sym
		num = addend
	}
	n = num.Clone()

	// addSym is a symbol that appears additively within Abs itself (e.g.
	// Abs = sym + 10); this is independent of v.Rel, which is a symbol
	// that was subtracted out as a relative-to anchor during Finalize.
	// Both may be present on the same value at once.
	if v.CurPosRelative {
		base, ok := res.ResolveLocation(v.anchor)
		if !ok {
			return nil, nil, false, nil
		}
		bias := base - int64(v.NextInsn)
		n, _ = ionum.Calc(ionum.OpSub, n, ionum.New(bias))
	}

	if v.Rel != nil {
		relOff, ok := res.ResolveSymbol(v.Rel)
		if !ok {
			return nil, nil, false, nil
		}
		n, _ = ionum.Calc(ionum.OpSub, n, ionum.New(relOff))
	}

	return n, addSym, true, nil
}

// Measure resolves v to a plain host integer without applying its final
// Size/Sign range check, for the optimizer's span-threshold comparisons
// (spec component C6): ok is false when a CurPosRelative/Rel anchor, or
// an additive symbol, is not resolvable yet.
func Measure(v *Value, res OffsetResolver) (int64, bool, *diag.Diagnostic) {
	n, addSym, anchorsOK, d := resolveCore(v, res)
	if d != nil || !anchorsOK {
		return 0, false, d
	}
	if addSym != nil {
		symOff, ok := res.ResolveSymbol(addSym)
		if !ok {
			return 0, false, nil
		}
		n, _ = ionum.Calc(ionum.OpAdd, n, ionum.New(symOff))
	}
	if v.RShift > 0 {
		n = n.Extract(uint(v.Size)+v.RShift, v.RShift)
	}
	out, err := n.ToInt64()
	if err != nil {
		return 0, false, nil
	}
	return out, true, nil
}

// Output evaluates v using res to resolve any symbols/locations still
// present, applying CurPosRelative/Rel subtraction, RShift, and the
// Size/Sign range check. NextInsn, when CurPosRelative, is a
// compile-time-known byte bias (set by the owning Contents once its
// encoding is chosen) between the anchor Location and the true
// reference point (e.g. end of instruction rather than start of
// bytecode) — independent of any runtime address.
func Output(v *Value, res OffsetResolver) (Result, *diag.Diagnostic) {
	// seg_of combined with rshift is forbidden for every value, not just
	// jump targets (open question resolved this way; see design notes).
	if v.SegOf && v.RShift != 0 {
		return Result{}, &diag.Diagnostic{Kind: diag.KindTooComplex, Message: "seg-of and rshift cannot combine on the same value"}
	}

	n, addSym, anchorsOK, d := resolveCore(v, res)
	if d != nil {
		return Result{}, d
	}
	if !anchorsOK {
		return Result{}, nil // not resolvable yet; caller retries next iteration
	}

	if addSym != nil {
		symOff, ok := res.ResolveSymbol(addSym)
		if !ok {
			return Result{Resolved: false, RelSymbol: addSym, WrtSymbol: v.Wrt, AbsPart: n}, nil
		}
		n, _ = ionum.Calc(ionum.OpAdd, n, ionum.New(symOff))
	}

	if v.RShift > 0 {
		n = n.Extract(uint(v.Size)+v.RShift, v.RShift)
	}

	if !v.SegOf {
		if err := checkRange(n, v.Size, v.Sign); err != nil {
			return Result{}, err
		}
	}

	return Result{Resolved: true, Int: n}, nil
}

func checkRange(n *ionum.IntNum, size int, signed bool) *diag.Diagnostic {
	if size <= 0 || size >= 64 {
		return nil
	}
	if signed {
		lo := int64(-1) << (size - 1)
		hi := (int64(1) << (size - 1)) - 1
		v, err := n.ToInt64()
		if err != nil || v < lo || v > hi {
			return &diag.Diagnostic{Kind: diag.KindValueOutOfRange, Message: "signed value does not fit in the slot width"}
		}
	} else {
		hi := (uint64(1) << size) - 1
		v, err := n.ToUint64()
		if err != nil || v > hi {
			return &diag.Diagnostic{Kind: diag.KindValueOutOfRange, Message: "unsigned value does not fit in the slot width"}
		}
	}
	return nil
}
