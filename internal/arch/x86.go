// Package arch implements the x86 architecture plugin the core
// consumes: CreateInsn/CreateEmptyInsn/CreateEffAddr, register
// lookup, and a DoAppend per instruction that emits one or more bytecodes.
// This is a minimal subset — exactly the mnemonics the conformance
// scenarios exercise (S1/S2's jmp) plus enough of the register/EffAddr
// surface to show the shape a larger instruction table would fill in.
// Grounded directly on original_source/modules/arch/x86/X86Jmp.cpp's
// common/short-op/near-op/target layout, which internal/bytecode.jmpContents
// already implements; this package is the table that builds one from a
// parsed mnemonic and operand.
package arch

import (
	"fmt"

	"asmforge/internal/bytecode"
	"asmforge/internal/diag"
	"asmforge/internal/expr"
	"asmforge/internal/object"
)

// Register names this plugin recognizes, keyed the way a parser would
// look them up after stripping the leading '%'.
type Register struct {
	Name string
	Size int // bits
	Num  int // encoding number, unused by the mnemonics implemented so far
}

var registers = map[string]Register{
	"al": {"al", 8, 0}, "ax": {"ax", 16, 0}, "eax": {"eax", 32, 0}, "rax": {"rax", 64, 0},
	"bl": {"bl", 8, 3}, "bx": {"bx", 16, 3}, "ebx": {"ebx", 32, 3}, "rbx": {"rbx", 64, 3},
	"cl": {"cl", 8, 1}, "cx": {"cx", 16, 1}, "ecx": {"ecx", 32, 1}, "rcx": {"rcx", 64, 1},
	"dl": {"dl", 8, 2}, "dx": {"dx", 16, 2}, "edx": {"edx", 32, 2}, "rdx": {"rdx", 64, 2},
}

// LookupRegister answers the architecture module's register-by-name
// surface.
func LookupRegister(name string) (Register, bool) {
	r, ok := registers[name]
	return r, ok
}

// EffAddr is the architecture's view of a memory operand: a base/index
// register pair plus a displacement expression. Built by CreateEffAddr;
// none of the mnemonics implemented so far consume one, but it is part
// of the architecture-module interface.
type EffAddr struct {
	Base, Index Register
	HasBase     bool
	HasIndex    bool
	Scale       int
	Disp        *expr.Expr
}

// CreateEffAddr builds an EffAddr around a bare displacement expression
// (the `disp` addressing form; register-indexed forms are Non-goals for
// the mnemonic set implemented here).
func CreateEffAddr(disp *expr.Expr) *EffAddr {
	return &EffAddr{Disp: disp}
}

// Insn is one recognized instruction form: a mnemonic plus the operand
// shape CreateInsn matched it against. DoAppend emits the Bytecode(s)
// for one occurrence.
type Insn interface {
	DoAppend(obj *object.Object, line int) (*bytecode.Bytecode, *diag.Diagnostic)
}

// jmpInsn is `jmp target`, the one control-transfer mnemonic
// implemented: relative jump with short (rel8, opcode EB) and near
// (rel32, opcode E9) forms, matching X86Jmp.cpp exactly.
type jmpInsn struct {
	target *expr.Expr
	near   bool // true forces near-only (parser saw an explicit size suffix)
}

// CreateInsn resolves a mnemonic and its parsed operand into an Insn, or
// reports that the mnemonic is unrecognized.
func CreateInsn(mnemonic string, operands []*expr.Expr) (Insn, *diag.Diagnostic) {
	switch mnemonic {
	case "jmp":
		if len(operands) != 1 {
			return nil, &diag.Diagnostic{Kind: diag.KindTooComplex, Message: "jmp takes exactly one operand"}
		}
		return &jmpInsn{target: operands[0]}, nil
	default:
		return nil, &diag.Diagnostic{Kind: diag.KindTooComplex, Message: fmt.Sprintf("unrecognized mnemonic %q", mnemonic)}
	}
}

// CreateEmptyInsn builds a placeholder Insn with no operands yet, for a
// parser that discovers operand count only after seeing the mnemonic
// (the CreateEmptyInsn entry point). Architecture mnemonics implemented so
// far all require exactly one operand, so this just defers to CreateInsn
// once the operand is known; kept as a separate entry point for parity
// with the architecture-module interface.
func CreateEmptyInsn(mnemonic string) (Insn, *diag.Diagnostic) {
	return CreateInsn(mnemonic, nil)
}

func (j *jmpInsn) DoAppend(obj *object.Object, line int) (*bytecode.Bytecode, *diag.Diagnostic) {
	sel := bytecode.JmpUnspecified
	if j.near {
		sel = bytecode.JmpNear
	}
	c := bytecode.NewJmp(nil, []byte{0xEB}, []byte{0xE9}, 32, j.target, sel)
	return obj.AppendContents(c, line), nil
}

// Fill is the byte-emission callback for code-section padding: x86 pads
// with single-byte NOP (0x90).
func Fill(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = 0x90
	}
	return out
}
