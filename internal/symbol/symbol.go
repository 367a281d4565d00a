// Package symbol implements the symbol table (spec component C3): symbols
// with an EQU/Label/Special/Unknown type, a Used/Defined/Valued status
// bitset, and a Local/Global/Common/Extern/DLocal visibility bitset whose
// legal transitions are checked by okToDeclare, reproducing the
// define/declare matrix of the assembler this spec generalizes.
package symbol

import (
	"fmt"

	"asmforge/internal/expr"
)

// Pos is a source location, used only for redefinition diagnostics; it is
// deliberately independent of internal/diag so this package has no
// upward dependency on the diagnostics engine.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Type identifies what kind of entity a symbol names.
type Type int

const (
	TypeUnknown Type = iota // referenced but never defined
	TypeEqu
	TypeLabel
	TypeSpecial
)

func (t Type) String() string {
	switch t {
	case TypeEqu:
		return "equ"
	case TypeLabel:
		return "label"
	case TypeSpecial:
		return "special"
	default:
		return "unknown"
	}
}

// Status is a bitset of what has happened to a symbol so far.
type Status int

const (
	StatusUsed Status = 1 << iota
	StatusDefined
	StatusValued
)

// Visibility is a bitset; LOCAL is the zero value and combines with
// nothing else explicitly, but GLOBAL/DLOCAL may coexist (a DLL-local
// global), while COMMON and EXTERN are mutually exclusive with each other
// and with GLOBAL.
type Visibility int

const (
	VisLocal  Visibility = 0
	VisGlobal Visibility = 1 << iota
	VisCommon
	VisExtern
	VisDLocal
)

func (v Visibility) String() string {
	if v == VisLocal {
		return "local"
	}
	s := ""
	add := func(bit Visibility, name string) {
		if v&bit != 0 {
			if s != "" {
				s += "|"
			}
			s += name
		}
	}
	add(VisGlobal, "global")
	add(VisCommon, "common")
	add(VisExtern, "extern")
	add(VisDLocal, "dlocal")
	return s
}

// SpecialKind names a special (architecture- or format-reserved) symbol,
// e.g. a section-relative base or an ABS placeholder. The core treats the
// value opaquely; external collaborators (arch/objwriter) interpret it.
type SpecialKind string

// ErrKind classifies a symbol-table operation failure.
type ErrKind int

const (
	ErrNone ErrKind = iota
	ErrSymbolRedefined
	ErrExternAlreadyDefined
	ErrEquCircular
)

// Error reports a symbol-table operation failure, with the previous
// definition site attached when relevant (a "previous
// definition" backreference).
type Error struct {
	Kind ErrKind
	Name string
	Prev Pos
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrSymbolRedefined:
		return fmt.Sprintf("symbol %q redefined (previously defined at %s)", e.Name, e.Prev)
	case ErrExternAlreadyDefined:
		return fmt.Sprintf("symbol %q: incompatible visibility declaration (previously declared at %s)", e.Name, e.Prev)
	case ErrEquCircular:
		return fmt.Sprintf("symbol %q: circular EQU definition", e.Name)
	default:
		return fmt.Sprintf("symbol %q: error", e.Name)
	}
}

// Symbol is one entry of a Table. It satisfies expr.SymbolRef via Name.
type Symbol struct {
	name string

	Type   Type
	Status Status
	Vis    Visibility

	Equ     *expr.Expr      // Type == TypeEqu
	Loc     expr.Location   // Type == TypeLabel
	Special SpecialKind     // Type == TypeSpecial
	Common  *expr.Expr      // set when Vis&VisCommon != 0: the common block size

	DefinedAt  Pos
	DeclaredAt Pos
	UsedAt     Pos
}

// Name implements expr.SymbolRef.
func (s *Symbol) Name() string { return s.name }

func (s *Symbol) markUsed(pos Pos) {
	s.Status |= StatusUsed
	s.UsedAt = pos
}
