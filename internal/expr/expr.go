// Package expr implements the expression tree (spec component C2): a flat,
// post-order (RPN) vector of terms with a per-term depth that lets the
// original tree shape be recovered without pointer-chasing. This "expression
// as RPN vector" layout — the flat
// layout is kept exactly as specified because it is what makes Clone a
// single buffer copy and the leveling pass a cache-friendly linear scan.
package expr

import (
	"asmforge/internal/ionum"
)

// Op enumerates every operator the expression tree can carry: binary,
// unary, relational, logical, the ternary conditional, plus the two
// structural markers SEGOFF and WRT that are never arithmetically
// leveled (seg:off is never leveled across SEGOFF).
type Op int

const (
	OpAdd Op = iota
	OpSub // rewritten away by xformNeg before any levelOp runs
	OpMul
	OpDiv
	OpSignDiv
	OpMod
	OpSignMod
	OpShl
	OpShr
	OpAnd
	OpOr
	OpXor
	OpNor
	OpXnor

	OpNeg // rewritten away by xformNeg
	OpNot
	OpLNot
	OpSeg

	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe

	OpLAnd
	OpLOr
	OpLXor
	OpLNor
	OpLXnor

	OpCond // ternary: cond ? t : f, 3 children

	OpIdent // transparent single-child wrapper, eligible for promotion

	OpSegOff // seg:off, 2 children (segment, offset); never leveled
	OpWrt    // expr WRT sym, 2 children (expr, symbol-as-expr); never leveled
)

// TermKind identifies what a Term holds.
type TermKind int

const (
	TermNone TermKind = iota // tombstone; removed by Cleanup
	TermReg
	TermInt
	TermFloat
	TermSymbol
	TermLocation
	TermSubst
	TermOp
)

// SymbolRef is the minimal identity an expr needs from a symbol-table
// entry. internal/symbol.Symbol satisfies this structurally; expr does not
// import internal/symbol so that internal/symbol (whose Equ field is an
// *Expr) can depend on expr without a cycle.
type SymbolRef interface {
	Name() string
}

// Location is a (bytecode, offset) pair. BC is opaque (expected to hold a
// *internal/bytecode.Bytecode) for the same cycle-avoidance reason as
// SymbolRef; only pointer identity and the Offset are used by expr itself.
// Packages that own a concrete Bytecode type provide the conversion.
type Location struct {
	BC     interface{}
	Offset int64
}

// Valid reports whether the location names a bytecode at all.
func (l Location) Valid() bool { return l.BC != nil }

// Term is one node of the flat RPN vector.
type Term struct {
	Kind  TermKind
	Depth int

	Op     Op  // Kind == TermOp
	NChild int // Kind == TermOp

	Int   *ionum.IntNum // Kind == TermInt
	Float float64       // Kind == TermFloat
	Reg   interface{}   // Kind == TermReg; compared by == (identity)
	Sym   SymbolRef     // Kind == TermSymbol
	Loc   Location      // Kind == TermLocation
	Subst int           // Kind == TermSubst
}

// Expr is the expression tree: an owned, flat vector of terms whose last
// element is always the root.
type Expr struct {
	Terms []Term
}

// New wraps a single leaf term as a one-term Expr.
func New(t Term) *Expr {
	t.Depth = 0
	return &Expr{Terms: []Term{t}}
}

func Int(n *ionum.IntNum) *Expr     { return New(Term{Kind: TermInt, Int: n}) }
func Float(f float64) *Expr         { return New(Term{Kind: TermFloat, Float: f}) }
func Reg(r interface{}) *Expr       { return New(Term{Kind: TermReg, Reg: r}) }
func Sym(s SymbolRef) *Expr         { return New(Term{Kind: TermSymbol, Sym: s}) }
func Loc(l Location) *Expr          { return New(Term{Kind: TermLocation, Loc: l}) }
func Subst(index int) *Expr         { return New(Term{Kind: TermSubst, Subst: index}) }

// AppendOp appends an operator term consuming the n Exprs given (each is
// spliced in whole, in order, ahead of the new operator term) and returns
// the combined Expr. The inputs are consumed (their term slices are
// reused); callers that still need them afterward must Clone first.
func AppendOp(op Op, operands ...*Expr) *Expr {
	e := &Expr{}
	for _, o := range operands {
		e.Terms = append(e.Terms, o.Terms...)
	}
	e.Terms = append(e.Terms, Term{Kind: TermOp, Op: op, NChild: len(operands)})
	e.normalizeDepths()
	return e
}

// Clone returns a deep copy: a fresh term slice, with IntNum payloads
// value-copied (a deep-copy law). Symbols and locations are
// reference-copied (they are not owned by the Expr).
func (e *Expr) Clone() *Expr {
	out := make([]Term, len(e.Terms))
	for i, t := range e.Terms {
		if t.Kind == TermInt && t.Int != nil {
			t.Int = t.Int.Clone()
		}
		out[i] = t
	}
	return &Expr{Terms: out}
}

// Root returns the index of the root term (always the last one), or -1 for
// an empty expression.
func (e *Expr) Root() int { return len(e.Terms) - 1 }

// IsOp reports whether the root term is the given operator.
func (e *Expr) IsOp(op Op) bool {
	if len(e.Terms) == 0 {
		return false
	}
	t := e.Terms[e.Root()]
	return t.Kind == TermOp && t.Op == op
}

// GetIntNum returns the root's IntNum if the whole expression is a single
// integer leaf.
func (e *Expr) GetIntNum() (*ionum.IntNum, bool) {
	if len(e.Terms) != 1 || e.Terms[0].Kind != TermInt {
		return nil, false
	}
	return e.Terms[0].Int, true
}

func (e *Expr) GetFloat() (float64, bool) {
	if len(e.Terms) != 1 || e.Terms[0].Kind != TermFloat {
		return 0, false
	}
	return e.Terms[0].Float, true
}

func (e *Expr) GetSymbol() (SymbolRef, bool) {
	if len(e.Terms) != 1 || e.Terms[0].Kind != TermSymbol {
		return nil, false
	}
	return e.Terms[0].Sym, true
}

func (e *Expr) GetReg() (interface{}, bool) {
	if len(e.Terms) != 1 || e.Terms[0].Kind != TermReg {
		return nil, false
	}
	return e.Terms[0].Reg, true
}

func (e *Expr) GetLocation() (Location, bool) {
	if len(e.Terms) != 1 || e.Terms[0].Kind != TermLocation {
		return Location{}, false
	}
	return e.Terms[0].Loc, true
}

// Contains reports whether any term of the given kind exists anywhere in
// the expression (not just at the root); *pos is set to its index when
// found.
func (e *Expr) Contains(kind TermKind) (pos int, found bool) {
	for i, t := range e.Terms {
		if t.Kind == kind {
			return i, true
		}
	}
	return 0, false
}

// children returns the indices (ascending) of the operator term at i's n
// direct children, found by scanning backward for terms at depth(i)+1.
// Valid only when e's depths are up to date (i.e. after normalizeDepths).
func (e *Expr) children(i int) []int {
	t := e.Terms[i]
	if t.Kind != TermOp {
		return nil
	}
	want := t.Depth + 1
	out := make([]int, 0, t.NChild)
	for j := i - 1; j >= 0 && len(out) < t.NChild; j-- {
		if e.Terms[j].Depth == want {
			out = append(out, j)
		}
	}
	// collected in descending index order; callers want ascending
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// Cleanup removes TermNone tombstones, compacting the vector without
// altering relative order, then renormalizes depths.
func (e *Expr) Cleanup() {
	out := e.Terms[:0]
	for _, t := range e.Terms {
		if t.Kind == TermNone {
			continue
		}
		out = append(out, t)
	}
	e.Terms = out
	e.normalizeDepths()
}

// normalizeDepths recomputes every term's depth in a single left-to-right
// sweep: re-normalize depths in a single sweep after any
// structural mutation. It treats the RPN vector as an
// evaluator stack of (start, end) spans: pushing a leaf's own 1-term span,
// and on an operator popping its NChild most recent spans, bumping every
// term within them one level deeper, then pushing the merged span.
func (e *Expr) normalizeDepths() {
	type span struct{ start, end int }
	var stack []span
	for i := range e.Terms {
		t := &e.Terms[i]
		if t.Kind != TermOp {
			t.Depth = 0
			stack = append(stack, span{i, i})
			continue
		}
		n := t.NChild
		if n > len(stack) {
			n = len(stack)
		}
		children := stack[len(stack)-n:]
		stack = stack[:len(stack)-n]
		minStart := i
		for _, c := range children {
			for j := c.start; j <= c.end; j++ {
				e.Terms[j].Depth++
			}
			if c.start < minStart {
				minStart = c.start
			}
		}
		t.Depth = 0
		stack = append(stack, span{minStart, i})
	}
}
