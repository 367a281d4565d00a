package symbol

import "asmforge/internal/expr"

// Table is a symbol table with first-seen ordering: symbols
// are reported/iterated in the order they were first referenced or
// defined, not alphabetically), modeled on a module-cache
// map+slice idiom (map for lookup, slice for stable iteration order).
type Table struct {
	order []string
	syms  map[string]*Symbol
}

func NewTable() *Table {
	return &Table{syms: make(map[string]*Symbol)}
}

// Lookup returns an existing symbol without creating one.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	s, ok := t.syms[name]
	return s, ok
}

// GetOrCreate returns the named symbol, creating an undefined
// (TypeUnknown) placeholder on first reference.
func (t *Table) GetOrCreate(name string) *Symbol {
	if s, ok := t.syms[name]; ok {
		return s
	}
	s := &Symbol{name: name}
	t.syms[name] = s
	t.order = append(t.order, name)
	return s
}

// Use records a reference to name at pos, creating the symbol if needed.
func (t *Table) Use(name string, pos Pos) *Symbol {
	s := t.GetOrCreate(name)
	s.markUsed(pos)
	return s
}

// Symbols returns every symbol in first-seen order.
func (t *Table) Symbols() []*Symbol {
	out := make([]*Symbol, len(t.order))
	for i, name := range t.order {
		out[i] = t.syms[name]
	}
	return out
}

// defineCheck implements the "Checked variant" precondition:
// a prior definition is always rejected (symbol_redefined, noting the
// earlier definition site); a prior EXTERN declaration with no
// definition yet is also rejected (extern_defined, noting the
// declaration site), since EXTERN asserts "this symbol is defined
// elsewhere" and a local definition contradicts that assertion.
func (t *Table) defineCheck(s *Symbol, pos Pos) error {
	if s.Status&StatusDefined != 0 {
		return &Error{Kind: ErrSymbolRedefined, Name: s.name, Prev: s.DefinedAt}
	}
	if s.Vis&VisExtern != 0 {
		return &Error{Kind: ErrExternAlreadyDefined, Name: s.name, Prev: s.DeclaredAt}
	}
	return nil
}

// DefineEqu defines name as an EQU bound to e. Fails with ErrSymbolRedefined
// if the symbol already has a definition.
func (t *Table) DefineEqu(name string, e *expr.Expr, pos Pos) (*Symbol, error) {
	s := t.GetOrCreate(name)
	if err := t.defineCheck(s, pos); err != nil {
		return s, err
	}
	s.Type = TypeEqu
	s.Equ = e
	s.Status |= StatusDefined
	s.DefinedAt = pos
	return s, nil
}

// DefineLabel defines name as a label bound to loc.
func (t *Table) DefineLabel(name string, loc expr.Location, pos Pos) (*Symbol, error) {
	s := t.GetOrCreate(name)
	if err := t.defineCheck(s, pos); err != nil {
		return s, err
	}
	s.Type = TypeLabel
	s.Loc = loc
	s.Status |= StatusDefined | StatusValued
	s.DefinedAt = pos
	return s, nil
}

// DefineSpecial defines name as an architecture/format-reserved symbol.
func (t *Table) DefineSpecial(name string, kind SpecialKind, pos Pos) (*Symbol, error) {
	s := t.GetOrCreate(name)
	if err := t.defineCheck(s, pos); err != nil {
		return s, err
	}
	s.Type = TypeSpecial
	s.Special = kind
	s.Status |= StatusDefined
	s.DefinedAt = pos
	return s, nil
}

// okToDeclare reports whether adding newBit to a symbol currently holding
// cur is a legal visibility transition: LOCAL combines with anything,
// redeclaring the same bit is a no-op, and COMMON/EXTERN are mutually
// exclusive with each other and with GLOBAL (DLOCAL may combine with
// GLOBAL to mark a DLL-local global).
func okToDeclare(cur, newBit Visibility) bool {
	if cur == VisLocal || newBit == VisLocal {
		return true
	}
	if cur&newBit == newBit {
		return true // already declared
	}
	const exclusive = VisCommon | VisExtern
	if cur&exclusive != 0 && newBit&exclusive != 0 && cur&exclusive != newBit {
		return false
	}
	if cur&VisGlobal != 0 && newBit&exclusive != 0 {
		return false
	}
	if cur&exclusive != 0 && newBit == VisGlobal {
		return false
	}
	return true
}

// Declare adds a visibility attribute (GLOBAL, COMMON, EXTERN, or DLOCAL)
// to name, creating it if needed. Fails with ErrExternAlreadyDefined if
// the transition conflicts with the symbol's current visibility.
func (t *Table) Declare(name string, vis Visibility, pos Pos) (*Symbol, error) {
	s := t.GetOrCreate(name)
	if !okToDeclare(s.Vis, vis) {
		return s, &Error{Kind: ErrExternAlreadyDefined, Name: name, Prev: s.DeclaredAt}
	}
	s.Vis |= vis
	s.DeclaredAt = pos
	return s, nil
}

// CheckEquCircular walks name's EQU expression (and transitively any EQU
// symbols it references) looking for a cycle back to name itself.
func (t *Table) CheckEquCircular(name string) error {
	sym, ok := t.Lookup(name)
	if !ok {
		return nil
	}
	visiting := make(map[string]bool)
	var walk func(s *Symbol) error
	walk = func(s *Symbol) error {
		if s.Type != TypeEqu || s.Equ == nil {
			return nil
		}
		if visiting[s.name] {
			return &Error{Kind: ErrEquCircular, Name: s.name}
		}
		visiting[s.name] = true
		defer delete(visiting, s.name)
		for _, term := range s.Equ.Terms {
			if term.Kind != expr.TermSymbol || term.Sym == nil {
				continue
			}
			ref, ok := term.Sym.(*Symbol)
			if !ok {
				continue
			}
			if err := walk(ref); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(sym)
}
