// Package optimize implements the span-dependent optimizer (spec
// component C6): the finalize -> calc_len -> optimize -> update_offset
// fixed point that assigns a final len and offset to every bytecode in a
// section, widening span-dependent contents (jmp short->near, and any
// future variable-width encoding) until every registered span's measured
// distance sits inside its current threshold.
//
// Grounded on a reference bytecode.Chunk linear-buffer-of-ops model for
// "a section is an ordered list mutated in place" and on
// original_source/libyasm/bytecode.cpp for the calc_len/expand/
// update_offset contract and the span-id-0-is-multiple convention; the
// widening loop itself is this package's own design, since no reference
// example implements a span-dependent
// fixed-point solver.
package optimize

import (
	"container/heap"

	"asmforge/internal/bytecode"
	"asmforge/internal/diag"
	"asmforge/internal/expr"
	"asmforge/internal/value"
)

// SymbolLocator answers "where is this symbol defined", so the optimizer
// can resolve a Value's relative/additive symbol references without
// owning the symbol table itself (internal/object supplies the real
// implementation, backed by its symbol.Table).
type SymbolLocator interface {
	Locate(sym expr.SymbolRef) (expr.Location, bool)
}

// resolver implements value.OffsetResolver by reading Bytecode.Offset
// fields directly off the live pointers a Location/Span carries, so a
// measurement taken mid-pass always reflects whatever offsets the
// widening loop has assigned so far (including bytecodes in other,
// already-placed sections, whose Offset is simply final instead of
// provisional).
type resolver struct {
	locator SymbolLocator
}

func (r *resolver) ResolveLocation(l expr.Location) (int64, bool) {
	bc, ok := l.BC.(*bytecode.Bytecode)
	if !ok || bc.Offset < 0 {
		return 0, false
	}
	return bc.Offset + l.Offset, true
}

func (r *resolver) ResolveSymbol(sym expr.SymbolRef) (int64, bool) {
	loc, ok := r.locator.Locate(sym)
	if !ok {
		return 0, false
	}
	return r.ResolveLocation(loc)
}

// span is one registered (owner, span_id) pair awaiting threshold checks.
type span struct {
	bc           *bytecode.Bytecode
	idx          int // position of bc within the section's bytecode slice
	id           int
	val          *value.Value
	neg, pos     int64
	lastMeasured int64
	dead         bool // excluded after an unresolvable out-of-range report, so it is not rechecked forever
}

// spanHeap orders spans by their owner's current offset, so a pass
// resolves widenings in address order; it is
// rebuilt each pass since a widening can move many owners' offsets at
// once.
type spanHeap []*span

func (h spanHeap) Len() int            { return len(h) }
func (h spanHeap) Less(i, j int) bool  { return h[i].bc.Offset < h[j].bc.Offset }
func (h spanHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *spanHeap) Push(x interface{}) { *h = append(*h, x.(*span)) }
func (h *spanHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Run drives one section's bytecodes through the full fixed point:
// finalize every bytecode, calc_len to register spans and get initial
// lengths, assign provisional offsets, widen until every span is within
// threshold, then publish final offsets. It reports recoverable failures
// (a bytecode that cannot finalize, a span that cannot widen into range)
// against engine and keeps going: finalize/optimize
// errors report against the owning bytecode and the pass continues
// policy; it returns early, with whatever offsets were assigned so far,
// if engine.Fatal() becomes true. The returned value is the offset one
// past the section (the next section's base).
func Run(bcs []*bytecode.Bytecode, baseOffset int64, locator SymbolLocator, engine *diag.Engine) int64 {
	res := &resolver{locator: locator}

	var spans []*span
	addSpan := func(owner *bytecode.Bytecode, id int, v *value.Value, neg, pos int64) {
		spans = append(spans, &span{bc: owner, id: id, val: v, neg: neg, pos: pos})
	}

	live := make([]bool, len(bcs))
	for i, bc := range bcs {
		if d := bc.Finalize(); d != nil {
			engine.Report(diag.Diagnostic{Kind: d.Kind, Message: d.Message, Pos: diag.Pos{Line: bc.Line}})
			continue
		}
		live[i] = true
	}
	if engine.Fatal() {
		return baseOffset
	}

	for i, bc := range bcs {
		if !live[i] {
			continue
		}
		before := len(spans)
		if d := bc.CalcLen(addSpan); d != nil {
			engine.Report(diag.Diagnostic{Kind: d.Kind, Message: d.Message, Pos: diag.Pos{Line: bc.Line}})
			live[i] = false
			spans = spans[:before] // drop any spans this bytecode registered before failing
			continue
		}
		for _, s := range spans[before:] {
			s.idx = i
		}
	}
	if engine.Fatal() {
		return baseOffset
	}

	// Assign provisional offsets: running prefix sum, letting
	// SPECIAL_OFFSET contents (align/org) size themselves against their
	// own provisional starting point.
	offset := baseOffset
	for i, bc := range bcs {
		if !live[i] {
			continue
		}
		next, d := bc.UpdateOffset(offset)
		if d != nil {
			engine.Report(diag.Diagnostic{Kind: d.Kind, Message: d.Message, Pos: diag.Pos{Line: bc.Line}})
			live[i] = false
			continue
		}
		offset = next
	}

	propagate := func(fromIdx int) {
		off := bcs[fromIdx].Offset + bcs[fromIdx].TotalLen()
		for i := fromIdx + 1; i < len(bcs); i++ {
			if !live[i] {
				continue
			}
			next, d := bcs[i].UpdateOffset(off)
			if d != nil {
				engine.Report(diag.Diagnostic{Kind: d.Kind, Message: d.Message, Pos: diag.Pos{Line: bcs[i].Line}})
				live[i] = false
				continue
			}
			off = next
		}
	}

	for {
		h := &spanHeap{}
		heap.Init(h)
		for _, s := range spans {
			if !s.dead && live[s.idx] {
				heap.Push(h, s)
			}
		}

		changed := false
		for h.Len() > 0 {
			s := heap.Pop(h).(*span)
			n, ok, d := value.Measure(s.val, res)
			if d != nil {
				engine.Report(diag.Diagnostic{Kind: d.Kind, Message: d.Message, Pos: diag.Pos{Line: s.bc.Line}})
				s.dead = true
				continue
			}
			if !ok {
				continue // anchor not resolvable yet; will be retried next pass
			}
			if n >= s.neg && n <= s.pos {
				continue
			}

			oldLen := s.bc.Len
			grew, newNeg, newPos, d := s.bc.Expand(s.id, s.lastMeasured, n)
			if d != nil {
				engine.Report(diag.Diagnostic{Kind: d.Kind, Message: d.Message, Pos: diag.Pos{Line: s.bc.Line}})
				s.dead = true
				continue
			}
			if !grew {
				engine.Report(diag.Diagnostic{Kind: diag.KindValueOutOfRange, Message: "span distance out of range and the owning bytecode cannot widen further", Pos: diag.Pos{Line: s.bc.Line}})
				s.dead = true
				continue
			}

			s.neg, s.pos = newNeg, newPos
			s.lastMeasured = n
			changed = true
			if s.bc.Len != oldLen {
				propagate(s.idx)
			}
		}

		if !changed {
			break
		}
		if engine.Fatal() {
			break
		}
	}

	final := baseOffset
	for i, bc := range bcs {
		if !live[i] {
			continue
		}
		final = bc.Offset + bc.TotalLen()
	}
	return final
}
