package expr

import "asmforge/internal/ionum"

// node is a transient recursive tree used only inside Simplify/xformNeg.
// The flat RPN vector is the stored representation everywhere else; a
// real tree makes associative flattening, constant folding, and identity
// elimination straightforward to get right, and is thrown away once the
// result is re-flattened.
type node struct {
	term     Term
	children []*node
}

func (e *Expr) toTree() *node {
	var stack []*node
	for _, t := range e.Terms {
		if t.Kind != TermOp {
			stack = append(stack, &node{term: t})
			continue
		}
		n := t.NChild
		kids := append([]*node(nil), stack[len(stack)-n:]...)
		stack = stack[:len(stack)-n]
		stack = append(stack, &node{term: t, children: kids})
	}
	if len(stack) != 1 {
		return &node{term: Term{Kind: TermInt, Int: ionum.New(0)}}
	}
	return stack[0]
}

// fromTree serializes the tree back into an Expr's flat term vector
// (post-order) and renormalizes depths.
func fromTree(n *node) *Expr {
	e := &Expr{}
	var walk func(*node)
	walk = func(n *node) {
		for _, c := range n.children {
			walk(c)
		}
		t := n.term
		t.NChild = len(n.children)
		e.Terms = append(e.Terms, t)
	}
	walk(n)
	e.normalizeDepths()
	return e
}

func intLeaf(v int64) *node {
	return &node{term: Term{Kind: TermInt, Int: ionum.New(v)}}
}

func isAssociative(op Op) bool {
	switch op {
	case OpAdd, OpMul, OpAnd, OpOr, OpXor, OpLAnd, OpLOr, OpLXor:
		return true
	}
	return false
}

func isCommutative(op Op) bool {
	return isAssociative(op)
}

func isLeveled(op Op) bool {
	// SEGOFF and WRT are structural markers, never flattened/folded/sorted.
	return op != OpSegOff && op != OpWrt
}

func binOpFor(op Op) (ionum.BinOp, bool) {
	switch op {
	case OpAdd:
		return ionum.OpAdd, true
	case OpMul:
		return ionum.OpMul, true
	case OpAnd:
		return ionum.OpAnd, true
	case OpOr:
		return ionum.OpOr, true
	case OpXor:
		return ionum.OpXor, true
	}
	return 0, false
}

func anyReg(ns []*node) bool {
	for _, n := range ns {
		if n.term.Kind == TermReg {
			return true
		}
		if containsReg(n) {
			return true
		}
	}
	return false
}

func containsReg(n *node) bool {
	if n.term.Kind == TermReg {
		return true
	}
	for _, c := range n.children {
		if containsReg(c) {
			return true
		}
	}
	return false
}

func nodeEqual(a, b *node) bool {
	if a.term.Kind != b.term.Kind {
		return false
	}
	switch a.term.Kind {
	case TermInt:
		if a.term.Int == nil || b.term.Int == nil {
			return a.term.Int == b.term.Int
		}
		return a.term.Int.Big().Cmp(b.term.Int.Big()) == 0
	case TermFloat:
		return a.term.Float == b.term.Float
	case TermReg:
		return a.term.Reg == b.term.Reg
	case TermSymbol:
		return a.term.Sym == b.term.Sym
	case TermLocation:
		return a.term.Loc == b.term.Loc
	case TermSubst:
		return a.term.Subst == b.term.Subst
	case TermOp:
		if a.term.Op != b.term.Op || len(a.children) != len(b.children) {
			return false
		}
		for i := range a.children {
			if !nodeEqual(a.children[i], b.children[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// xorSelfCancel removes pairs of structurally identical non-constant
// children of an XOR, per the x^x -> 0 identity.
func xorSelfCancel(children []*node) []*node {
	used := make([]bool, len(children))
	var out []*node
	for i := range children {
		if used[i] {
			continue
		}
		if children[i].term.Kind == TermInt {
			out = append(out, children[i])
			continue
		}
		cancelled := false
		for j := i + 1; j < len(children); j++ {
			if used[j] || children[j].term.Kind == TermInt {
				continue
			}
			if nodeEqual(children[i], children[j]) {
				used[j] = true
				cancelled = true
				break
			}
		}
		if !cancelled {
			out = append(out, children[i])
		}
	}
	return out
}

// rank gives a stable sort key for commutative-operand canonicalization:
// constants last, then by kind, keeping original relative order within a
// kind (sort is stable).
func rank(n *node) int {
	switch n.term.Kind {
	case TermReg:
		return 0
	case TermSymbol:
		return 1
	case TermLocation:
		return 2
	case TermSubst:
		return 3
	case TermOp:
		return 4
	case TermFloat:
		return 5
	case TermInt:
		return 6
	}
	return 7
}

func sortChildren(children []*node) {
	// insertion sort: stable, fine for the small arities expressions have.
	for i := 1; i < len(children); i++ {
		for j := i; j > 0 && rank(children[j]) < rank(children[j-1]); j-- {
			children[j], children[j-1] = children[j-1], children[j]
		}
	}
}

func simplifyNode(n *node, simplifyRegMul bool) *node {
	if n.term.Kind != TermOp {
		return n
	}
	for i, c := range n.children {
		n.children[i] = simplifyNode(c, simplifyRegMul)
	}
	if !isLeveled(n.term.Op) {
		return n
	}

	if isAssociative(n.term.Op) {
		var flat []*node
		for _, c := range n.children {
			if c.term.Kind == TermOp && c.term.Op == n.term.Op {
				flat = append(flat, c.children...)
			} else {
				flat = append(flat, c)
			}
		}
		n.children = flat
	}

	if binop, ok := binOpFor(n.term.Op); ok {
		var folded *ionum.IntNum
		var rest []*node
		for _, c := range n.children {
			if c.term.Kind == TermInt && c.term.Int != nil {
				if folded == nil {
					folded = c.term.Int.Clone()
				} else if r, err := ionum.Calc(binop, folded, c.term.Int); err == nil {
					folded = r
				} else {
					rest = append(rest, c)
				}
			} else {
				rest = append(rest, c)
			}
		}
		if folded != nil {
			switch n.term.Op {
			case OpMul:
				if folded.Zero() {
					return intLeaf(0)
				}
			case OpAnd:
				if folded.Zero() {
					return intLeaf(0)
				}
			}
			drop := false
			switch n.term.Op {
			case OpAdd, OpOr, OpXor:
				drop = folded.Zero() && len(rest) > 0
			case OpMul:
				if v, err := folded.ToInt64(); err == nil && v == 1 {
					drop = simplifyRegMul || !anyReg(rest)
				}
			case OpAnd:
				// all-ones identity is width-dependent; not folded here.
			}
			if !drop {
				rest = append(rest, &node{term: Term{Kind: TermInt, Int: folded}})
			}
		}
		n.children = rest
	}

	if n.term.Op == OpXor {
		n.children = xorSelfCancel(n.children)
	}

	if isCommutative(n.term.Op) {
		sortChildren(n.children)
	}

	switch len(n.children) {
	case 0:
		return intLeaf(identityValue(n.term.Op))
	case 1:
		if isAssociative(n.term.Op) || n.term.Op == OpIdent {
			return n.children[0]
		}
	}
	return n
}

func identityValue(op Op) int64 {
	switch op {
	case OpAdd, OpOr, OpXor:
		return 0
	case OpMul, OpAnd:
		return 0 // an empty AND/MUL after every operand cancelled out is degenerate; treat as 0
	}
	return 0
}

// xformNeg rewrites NEG(a) -> MUL(a, -1) and SUB(a, b) -> ADD(a, MUL(b, -1)),
// so levelOp only ever has to deal with ADD/MUL associativity, never a
// separate subtraction or negation operator.
func (e *Expr) xformNeg() {
	out := make([]Term, 0, len(e.Terms)+2)
	for _, t := range e.Terms {
		switch {
		case t.Kind == TermOp && t.Op == OpNeg && t.NChild == 1:
			out = append(out, Term{Kind: TermInt, Int: ionum.New(-1)})
			out = append(out, Term{Kind: TermOp, Op: OpMul, NChild: 2})
		case t.Kind == TermOp && t.Op == OpSub && t.NChild == 2:
			out = append(out, Term{Kind: TermInt, Int: ionum.New(-1)})
			out = append(out, Term{Kind: TermOp, Op: OpMul, NChild: 2})
			out = append(out, Term{Kind: TermOp, Op: OpAdd, NChild: 2})
		default:
			out = append(out, t)
		}
	}
	e.Terms = out
	e.normalizeDepths()
}

// Simplify applies xformNeg, associative flattening, constant folding,
// the per-operator identity eliminations, x^x cancellation, commutative
// canonical ordering, and single-child promotion, leaving the result in
// flat RPN form with up-to-date depths. simplifyRegMul controls whether
// `reg * 1` is allowed to drop its multiplier the same as any other
// operand — this is left as an undocumented legacy knob, kept
// here exactly as a caller-supplied bool with no further interpretation.
func (e *Expr) Simplify(simplifyRegMul bool) {
	e.xformNeg()
	root := simplifyNode(e.toTree(), simplifyRegMul)
	*e = *fromTree(root)
}
