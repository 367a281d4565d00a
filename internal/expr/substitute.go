package expr

// children, public wrapper used by callers outside the package that need
// to walk the tree structurally (e.g. internal/value's finalize).
func (e *Expr) Children(i int) []int { return e.children(i) }

// SpanOf returns the [start, end] index range (inclusive) of the subtree
// rooted at i.
func (e *Expr) SpanOf(i int) (int, int) { return e.spanOf(i) }

// spanOf returns the [start, end] index range (inclusive) of the subtree
// rooted at i.
func (e *Expr) spanOf(i int) (int, int) {
	t := e.Terms[i]
	if t.Kind != TermOp {
		return i, i
	}
	kids := e.children(i)
	if len(kids) == 0 {
		return i, i
	}
	start := i
	for _, k := range kids {
		s, _ := e.spanOf(k)
		if s < start {
			start = s
		}
	}
	return start, i
}

// Substitute replaces every TermSubst placeholder term (by its Subst
// index) with a deep copy of subs[index], recursively. Placeholders with
// an out-of-range or nil substitution are left untouched.
func (e *Expr) Substitute(subs []*Expr) {
	root := e.toTree()
	var walk func(n *node) *node
	walk = func(n *node) *node {
		if n.term.Kind == TermSubst {
			if n.term.Subst >= 0 && n.term.Subst < len(subs) && subs[n.term.Subst] != nil {
				return subs[n.term.Subst].Clone().toTree()
			}
			return n
		}
		for i, c := range n.children {
			n.children[i] = walk(c)
		}
		return n
	}
	root = walk(root)
	*e = *fromTree(root)
}

// ExtractSegOff splits a root `seg:off` expression into its two operands,
// leaving e holding just the offset part and returning the segment part.
// Reports false if the root is not a SEGOFF term.
func (e *Expr) ExtractSegOff() (*Expr, bool) {
	if !e.IsOp(OpSegOff) {
		return nil, false
	}
	kids := e.children(e.Root())
	if len(kids) != 2 {
		return nil, false
	}
	segStart, segEnd := e.spanOf(kids[0])
	offStart, offEnd := e.spanOf(kids[1])
	seg := &Expr{Terms: append([]Term(nil), e.Terms[segStart:segEnd+1]...)}
	seg.normalizeDepths()
	e.Terms = append([]Term(nil), e.Terms[offStart:offEnd+1]...)
	e.normalizeDepths()
	return seg, true
}

// ExtractWrt splits a root `expr WRT sym` expression, leaving e holding
// just the inner expr and returning the WRT symbol part.
func (e *Expr) ExtractWrt() (*Expr, bool) {
	if !e.IsOp(OpWrt) {
		return nil, false
	}
	kids := e.children(e.Root())
	if len(kids) != 2 {
		return nil, false
	}
	innerStart, innerEnd := e.spanOf(kids[0])
	wrtStart, wrtEnd := e.spanOf(kids[1])
	wrt := &Expr{Terms: append([]Term(nil), e.Terms[wrtStart:wrtEnd+1]...)}
	wrt.normalizeDepths()
	e.Terms = append([]Term(nil), e.Terms[innerStart:innerEnd+1]...)
	e.normalizeDepths()
	return wrt, true
}

// ExtractDeepSegOff finds the first SEGOFF term anywhere in the tree (not
// only at the root), splices it out by replacing the whole seg:off
// subtree with just its offset operand, and returns the segment operand
// separately.
func (e *Expr) ExtractDeepSegOff() (*Expr, bool) {
	idx := -1
	for i, t := range e.Terms {
		if t.Kind == TermOp && t.Op == OpSegOff {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	kids := e.children(idx)
	if len(kids) != 2 {
		return nil, false
	}
	segStart, segEnd := e.spanOf(kids[0])
	offStart, offEnd := e.spanOf(kids[1])

	seg := append([]Term(nil), e.Terms[segStart:segEnd+1]...)
	var newTerms []Term
	newTerms = append(newTerms, e.Terms[:segStart]...)
	newTerms = append(newTerms, e.Terms[offStart:offEnd+1]...)
	newTerms = append(newTerms, e.Terms[idx+1:]...)
	e.Terms = newTerms
	e.normalizeDepths()

	segExpr := &Expr{Terms: seg}
	segExpr.normalizeDepths()
	return segExpr, true
}
