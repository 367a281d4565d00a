// Package object implements the Object and Section containers that own
// one translation unit's symbol table and bytecode stream (the object
// owns symbols, and exposes the frontend
// interface): section switching, the label/EQU definition matrix,
// EQU-chain expansion, and the Build pass that drives internal/optimize
// section by section. Modeled on a reference ModuleLoader
// (internal/module/module.go): a name-keyed cache behind a mutex, built
// lazily on first reference, repurposed here so an Object owns its
// sections the way that loader owned loaded modules.
package object

import (
	"sync"

	"asmforge/internal/bytecode"
	"asmforge/internal/diag"
	"asmforge/internal/expr"
	"asmforge/internal/optimize"
	"asmforge/internal/symbol"
)

// Section is one named region of output: bytecodes in insertion order
// (the final byte order) plus the base/end offsets Build
// assigns it.
type Section struct {
	Name string
	Base int64
	End  int64

	bcs     []*bytecode.Bytecode
	pending *bytecode.Bytecode // zero-length marker awaiting a not-yet-appended bytecode, for labels defined with no content emitted yet at this point
}

// Bytecodes returns this section's bytecodes in final byte order.
func (s *Section) Bytecodes() []*bytecode.Bytecode { return s.bcs }

func (s *Section) append(bc *bytecode.Bytecode, line int) *bytecode.Bytecode {
	bc.Container = s
	bc.Line = line
	bc.Index = len(s.bcs)
	s.bcs = append(s.bcs, bc)
	s.pending = nil
	return bc
}

// Object owns one translation unit's symbol table and named sections.
// Each parsed file owns its own Object (no shared mutable
// state crosses the core boundary; each unit owns its own Object
// graph); the mutex guards section-map access the same way the
// reference ModuleLoader guards its cache, since a caller may still want
// to inspect sections from another goroutine (e.g. a progress reporter)
// while the owning goroutine keeps assembling.
type Object struct {
	Symbols *symbol.Table

	mu          sync.Mutex
	sections    map[string]*Section
	order       []string
	cur         *Section
	pendingMult *expr.Expr // armed by AppendMultiple, consumed by the next appendBC
}

// appendBC appends bc to the current section, attaching any multiplier
// armed by AppendMultiple. Callers must hold o.mu.
func (o *Object) appendBC(bc *bytecode.Bytecode, line int) *bytecode.Bytecode {
	if bc.Multiple == nil && o.pendingMult != nil {
		bc.Multiple = o.pendingMult
	}
	o.pendingMult = nil
	return o.cur.append(bc, line)
}

// New creates an Object with defaultSection as its initial current
// section (conventionally ".text").
func New(defaultSection string) *Object {
	o := &Object{Symbols: symbol.NewTable(), sections: make(map[string]*Section)}
	o.cur = o.section(defaultSection)
	return o
}

// Section returns the section bytecodes are currently appended to.
func (o *Object) Section() *Section {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cur
}

// SwitchSection makes name the current section, creating it on first use.
func (o *Object) SwitchSection(name string) *Section {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cur = o.section(name)
	return o.cur
}

func (o *Object) section(name string) *Section {
	if s, ok := o.sections[name]; ok {
		return s
	}
	s := &Section{Name: name}
	o.sections[name] = s
	o.order = append(o.order, name)
	return s
}

// Sections returns every section in first-switched-to order.
func (o *Object) Sections() []*Section {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Section, len(o.order))
	for i, n := range o.order {
		out[i] = o.sections[n]
	}
	return out
}

// markerFor returns sec's pending zero-length bytecode, creating one if
// no label has claimed a point since the last real append. Every label
// defined before the next Append* shares this same marker, so several
// labels at one address cost one zero-length bytecode, not one each.
func (sec *Section) markerFor(pos symbol.Pos) *bytecode.Bytecode {
	if sec.pending == nil {
		m := bytecode.New()
		m.Container = sec
		m.Line = pos.Line
		m.Index = len(sec.bcs)
		sec.bcs = append(sec.bcs, m)
		sec.pending = m
	}
	return sec.pending
}

// DefineLabel defines name as a label at the current section's next
// byte. Labels attached to each bytecode inherit the
// bytecode's offset as their value once Build runs; here that bytecode
// is either whatever gets appended next, or a zero-length marker if
// nothing has been appended at this point yet.
func (o *Object) DefineLabel(name string, pos symbol.Pos) (*symbol.Symbol, error) {
	o.mu.Lock()
	sec := o.cur
	marker := sec.markerFor(pos)
	o.mu.Unlock()
	loc := expr.Location{BC: marker, Offset: 0}
	return o.Symbols.DefineLabel(name, loc, pos)
}

const maxEquExpansions = 64

// ExpandEqu substitutes every EQU-typed symbol reference inside e with
// its definition, repeating until none remain (the EQU
// expansion pass a Symbol entity drives). It uses
// symbol.Table.CheckEquCircular before each substitution so a cycle
// reachable from an already-defined EQU is reported rather than walked
// forever; a direct self-reference (the symbol being defined referring
// to itself, not yet in the table as an EQU at expansion time) is caught
// separately by DefineEqu after the symbol exists.
func (o *Object) ExpandEqu(e *expr.Expr) (*expr.Expr, *diag.Diagnostic) {
	out := e.Clone()
	for pass := 0; pass < maxEquExpansions; pass++ {
		var subs []*expr.Expr
		changed := false
		for i := range out.Terms {
			t := out.Terms[i]
			if t.Kind != expr.TermSymbol {
				continue
			}
			sym, ok := t.Sym.(*symbol.Symbol)
			if !ok || sym.Type != symbol.TypeEqu {
				continue
			}
			if err := o.Symbols.CheckEquCircular(sym.Name()); err != nil {
				return nil, &diag.Diagnostic{Kind: diag.KindEquCircular, Message: err.Error()}
			}
			idx := len(subs)
			subs = append(subs, sym.Equ)
			out.Terms[i] = expr.Term{Kind: expr.TermSubst, Subst: idx, Depth: t.Depth}
			changed = true
		}
		if !changed {
			return out, nil
		}
		out.Substitute(subs)
	}
	return nil, &diag.Diagnostic{Kind: diag.KindEquCircular, Message: "EQU expansion did not terminate"}
}

// DefineEqu expands e's nested EQU references, then defines name bound
// to the expanded expression, checking for a self-referential cycle
// introduced by this very definition.
func (o *Object) DefineEqu(name string, e *expr.Expr, pos symbol.Pos) (*symbol.Symbol, *diag.Diagnostic) {
	expanded, d := o.ExpandEqu(e)
	if d != nil {
		return nil, d
	}
	sym, err := o.Symbols.DefineEqu(name, expanded, pos)
	if err != nil {
		return sym, &diag.Diagnostic{Kind: diag.KindSymbolRedefined, Message: err.Error()}
	}
	if err := o.Symbols.CheckEquCircular(name); err != nil {
		return sym, &diag.Diagnostic{Kind: diag.KindEquCircular, Message: err.Error()}
	}
	return sym, nil
}

// Declare adds a visibility attribute (GLOBAL, COMMON, EXTERN, DLOCAL).
func (o *Object) Declare(name string, vis symbol.Visibility, pos symbol.Pos) (*symbol.Symbol, *diag.Diagnostic) {
	sym, err := o.Symbols.Declare(name, vis, pos)
	if err != nil {
		return sym, &diag.Diagnostic{Kind: diag.KindExternAlreadyDefined, Message: err.Error()}
	}
	return sym, nil
}

// Use records a reference to name at pos, for first-use tracking and
// unresolved-symbol diagnostics, and returns the symbol for embedding in
// an expression (e.g. via expr.Sym).
func (o *Object) Use(name string, pos symbol.Pos) *symbol.Symbol {
	return o.Symbols.Use(name, pos)
}

// AppendData appends literal bytes with no fixups and no variable tail.
func (o *Object) AppendData(b []byte, line int) *bytecode.Bytecode {
	o.mu.Lock()
	defer o.mu.Unlock()
	bc := bytecode.New()
	bc.AppendData(b)
	return o.appendBC(bc, line)
}

// AppendFill emits mult copies of pattern (TIMES mult DB pattern).
func (o *Object) AppendFill(pattern []byte, mult *expr.Expr, line int) *bytecode.Bytecode {
	o.mu.Lock()
	defer o.mu.Unlock()
	bc := bytecode.New()
	bc.Contents = bytecode.NewData(pattern)
	bc.Multiple = mult
	return o.appendBC(bc, line)
}

// AppendSkip emits n bytes of a single fill value (TIMES n DB fill).
func (o *Object) AppendSkip(n *expr.Expr, fill byte, line int) *bytecode.Bytecode {
	return o.AppendFill([]byte{fill}, n, line)
}

// AppendReserve reserves unitSize*count uninitialized bytes (resb/resw/
// resd/...), never a fill of zeros (the Contents/Reserve case).
func (o *Object) AppendReserve(unitSize int, count *expr.Expr, line int) *bytecode.Bytecode {
	o.mu.Lock()
	defer o.mu.Unlock()
	bc := bytecode.New()
	bc.Contents = bytecode.NewReserve(unitSize)
	bc.Multiple = count
	return o.appendBC(bc, line)
}

// AppendAlign pads to boundary with fill (truncated/repeated to fit), up
// to maxSkip bytes.
func (o *Object) AppendAlign(boundary int64, fill []byte, maxSkip int64, line int) *bytecode.Bytecode {
	o.mu.Lock()
	defer o.mu.Unlock()
	bc := bytecode.New()
	bc.Contents = bytecode.NewAlign(boundary, fill, maxSkip)
	return o.appendBC(bc, line)
}

// AppendOrg forces the following byte to start at target.
func (o *Object) AppendOrg(target int64, fill byte, line int) *bytecode.Bytecode {
	o.mu.Lock()
	defer o.mu.Unlock()
	bc := bytecode.New()
	bc.Contents = bytecode.NewOrg(target, fill)
	return o.appendBC(bc, line)
}

// AppendLEB128 emits e as an unsigned or signed LEB128 integer whose
// width the optimizer resolves like any other span-dependent content.
func (o *Object) AppendLEB128(e *expr.Expr, signed bool, line int) *bytecode.Bytecode {
	o.mu.Lock()
	defer o.mu.Unlock()
	bc := bytecode.New()
	bc.Contents = bytecode.NewLEB128(e, signed)
	return o.appendBC(bc, line)
}

// AppendByte is AppendData shorthand for a single literal byte.
func (o *Object) AppendByte(v byte, line int) *bytecode.Bytecode {
	return o.AppendData([]byte{v}, line)
}

// AppendMultiple arms mult so the next Append* call's bytecode repeats
// mult times, mirroring a TIMES prefix that applies to whatever
// directive or instruction follows it rather than being its own
// bytecode.
func (o *Object) AppendMultiple(mult *expr.Expr, line int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pendingMult = mult
}

// AppendRaw appends a caller-constructed Bytecode directly (e.g. a
// frontend that built its own Fixup via bytecode.AppendFixed for a
// symbolic data directive rather than going through one of the Append*
// convenience constructors above).
func (o *Object) AppendRaw(bc *bytecode.Bytecode, line int) *bytecode.Bytecode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.appendBC(bc, line)
}

// Here returns an expr.Location anchored to the current section's next
// byte, the same marker-bytecode technique DefineLabel uses, for a
// frontend's `.` (current location) operand.
func (o *Object) Here(pos symbol.Pos) expr.Location {
	o.mu.Lock()
	sec := o.cur
	marker := sec.markerFor(pos)
	o.mu.Unlock()
	return expr.Location{BC: marker, Offset: 0}
}

// AppendContents appends an architecture- or format-provided Contents
// variant (an instruction, a jump, ...), the hook an architecture
// module's per-instruction DoAppend uses (the "to architecture
// module" interface).
func (o *Object) AppendContents(c bytecode.Contents, line int) *bytecode.Bytecode {
	o.mu.Lock()
	defer o.mu.Unlock()
	bc := bytecode.New()
	bc.Contents = c
	return o.appendBC(bc, line)
}

// Locate implements optimize.SymbolLocator: only label symbols carry a
// Location an offset can be read from; EQU, Special, and Unknown symbols
// are not span-dependent anchors.
func (o *Object) Locate(sym expr.SymbolRef) (expr.Location, bool) {
	s, ok := sym.(*symbol.Symbol)
	if !ok || s.Type != symbol.TypeLabel {
		return expr.Location{}, false
	}
	return s.Loc, true
}

// Build lays out every section sequentially starting at baseOffset and
// runs internal/optimize over each in turn, so a later section can
// resolve a cross-section label its bytecodes reference against an
// already-finalized earlier section (the fixed point runs
// per section, in switch order). Recoverable errors are reported against
// engine and layout continues with the next section; a fatal diagnostic
// (KindInternalLengthMismatch, KindEquCircular) stops Build early.
func (o *Object) Build(baseOffset int64, engine *diag.Engine) {
	offset := baseOffset
	for _, name := range o.order {
		sec := o.sections[name]
		sec.Base = offset
		offset = optimize.Run(sec.bcs, offset, o, engine)
		sec.End = offset
		if engine.Fatal() {
			return
		}
	}
}
