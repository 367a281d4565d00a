// Package gasparse is the thin frontend that turns a minimal AT&T-syntax
// token stream into calls against internal/object and internal/arch: it
// builds no IR of its own, it only drives the core's public surface
// (a frontend is explicitly outside the core and owns
// none of its invariants). Grounded on a reference internal/parser
// (recursive-descent over a flat token slice, match/check/consume/advance
// helpers, an accumulating Errors slice rather than panicking on the
// first bad line).
package gasparse

import (
	"fmt"
	"strconv"
	"strings"

	"asmforge/internal/arch"
	"asmforge/internal/bytecode"
	"asmforge/internal/diag"
	"asmforge/internal/expr"
	"asmforge/internal/ionum"
	"asmforge/internal/lexer"
	"asmforge/internal/object"
	"asmforge/internal/symbol"
)

// Parser drives one translation unit's tokens against an *object.Object.
type Parser struct {
	tokens  []lexer.Token
	current int
	file    string

	Obj    *object.Object
	Errors []error
}

// New returns a parser that will append onto obj (already holding
// whatever default section the caller switched to).
func New(tokens []lexer.Token, file string, obj *object.Object) *Parser {
	return &Parser{tokens: tokens, file: file, Obj: obj}
}

// Parse consumes every line, reporting and skipping to the next newline
// on error rather than aborting the whole translation unit (the
// continue-past-one-bad-unit policy, mirrored at the frontend level).
func (p *Parser) Parse() {
	for !p.isAtEnd() {
		if p.check(lexer.TokenNewline) {
			p.advance()
			continue
		}
		if err := p.line(); err != nil {
			p.Errors = append(p.Errors, err)
			p.skipToNewline()
		}
	}
}

func (p *Parser) pos() symbol.Pos {
	return symbol.Pos{File: p.file, Line: p.peek().Line, Col: p.peek().Col}
}

// line parses one logical line: an optional `label:` prefix, then either
// a directive, a mnemonic, or nothing (a bare label line).
func (p *Parser) line() error {
	for p.check(lexer.TokenIdent) && p.checkNext(lexer.TokenColon) {
		name := p.advance().Lexeme
		p.advance() // ':'
		if _, err := p.Obj.DefineLabel(name, p.pos()); err != nil {
			return fmt.Errorf("%s: %w", p.pos(), err)
		}
	}
	switch {
	case p.check(lexer.TokenDirective):
		return p.directive()
	case p.check(lexer.TokenIdent):
		return p.instruction()
	case p.check(lexer.TokenNewline), p.check(lexer.TokenEOF):
		return nil
	default:
		return fmt.Errorf("%s: unexpected token %s", p.pos(), p.peek())
	}
}

func (p *Parser) directive() error {
	name := strings.ToLower(p.advance().Lexeme)
	line := p.peek().Line
	switch name {
	case ".equ":
		ident := p.consumeIdent()
		p.consume(lexer.TokenComma, "expected ',' after .equ name")
		e, err := p.expression()
		if err != nil {
			return err
		}
		_, d := p.Obj.DefineEqu(ident, e, p.pos())
		if d != nil {
			return fmt.Errorf("%s: %s", p.pos(), d.Message)
		}
		return nil
	case ".byte":
		return p.dataDirective(1, line)
	case ".word", ".short":
		return p.dataDirective(2, line)
	case ".long", ".int":
		return p.dataDirective(4, line)
	case ".quad":
		return p.dataDirective(8, line)
	case ".align", ".p2align":
		boundary, err := p.constExpr()
		if err != nil {
			return err
		}
		p.Obj.AppendAlign(boundary, []byte{0x00}, 0, line)
		return nil
	case ".skip", ".space":
		n, err := p.expression()
		if err != nil {
			return err
		}
		p.Obj.AppendSkip(n, 0x00, line)
		return nil
	case ".extern", ".global", ".globl":
		ident := p.consumeIdent()
		vis := symbol.VisGlobal
		if name == ".extern" {
			vis = symbol.VisExtern
		}
		_, d := p.Obj.Declare(ident, vis, p.pos())
		if d != nil {
			return fmt.Errorf("%s: %s", p.pos(), d.Message)
		}
		return nil
	case ".section", ".text", ".data", ".bss":
		sec := name // ".text"/".data"/".bss" name themselves
		if name == ".section" {
			sec = "." + p.consumeIdent()
		}
		p.Obj.SwitchSection(sec)
		return nil
	default:
		return fmt.Errorf("%s: unrecognized directive %q", p.pos(), name)
	}
}

// dataDirective parses a comma-separated list of unitSize-wide values.
func (p *Parser) dataDirective(unitSize, line int) error {
	for {
		e, err := p.expression()
		if err != nil {
			return err
		}
		e, d := p.Obj.ExpandEqu(e)
		if d != nil {
			return fmt.Errorf("%s: %s", p.pos(), d.Message)
		}
		abs := e.Clone()
		abs.Simplify(false)
		if n, ok := abs.GetIntNum(); ok {
			v, _ := n.ToInt64()
			p.Obj.AppendData(leBytes(v, unitSize), line)
		} else {
			// Symbolic value: defer to a Contents-less bytecode holding a
			// single fixup the size of one unit (Bytecode.AppendFixed),
			// appended as-is with AppendRaw.
			bc := bytecode.New()
			bc.AppendFixed(unitSize*8, true, e, false)
			p.Obj.AppendRaw(bc, line)
		}
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	return nil
}

func (p *Parser) instruction() error {
	mnemonic := strings.ToLower(p.advance().Lexeme)
	line := p.peek().Line
	var operands []*expr.Expr
	for !p.check(lexer.TokenNewline) && !p.isAtEnd() {
		e, err := p.expression()
		if err != nil {
			return err
		}
		operands = append(operands, e)
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	insn, d := arch.CreateInsn(mnemonic, operands)
	if d != nil {
		return fmt.Errorf("%s: %s", p.pos(), d.Message)
	}
	if _, d := insn.DoAppend(p.Obj, line); d != nil {
		return fmt.Errorf("%s: %s", p.pos(), d.Message)
	}
	return nil
}

func (p *Parser) consumeIdent() string {
	t := p.advance()
	return t.Lexeme
}

func (p *Parser) constExpr() (int64, *diag.Diagnostic) {
	e, err := p.expression()
	if err != nil {
		return 0, &diag.Diagnostic{Kind: diag.KindTooComplex, Message: err.Error()}
	}
	e.Simplify(false)
	n, ok := e.GetIntNum()
	if !ok {
		return 0, &diag.Diagnostic{Kind: diag.KindTooComplex, Message: "expected a constant expression"}
	}
	v, _ := n.ToInt64()
	return v, nil
}

func leBytes(v int64, size int) []byte {
	out := make([]byte, size)
	for i := 0; i < size; i++ {
		out[i] = byte(v >> (8 * uint(i)))
	}
	return out
}

// --- expression parsing (+ - | ^ as lowest, then * / & <</>>, then unary, then primary) ---

func (p *Parser) expression() (*expr.Expr, error) { return p.addSub() }

func (p *Parser) addSub() (*expr.Expr, error) {
	left, err := p.mulDiv()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokenPlus) || p.check(lexer.TokenMinus) || p.check(lexer.TokenPipe) || p.check(lexer.TokenCaret) {
		op := p.advance().Type
		right, err := p.mulDiv()
		if err != nil {
			return nil, err
		}
		left = expr.AppendOp(binOp(op), left, right)
	}
	return left, nil
}

func (p *Parser) mulDiv() (*expr.Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokenStar) || p.check(lexer.TokenSlash) || p.check(lexer.TokenAmp) || p.check(lexer.TokenShl) || p.check(lexer.TokenShr) {
		op := p.advance().Type
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = expr.AppendOp(binOp(op), left, right)
	}
	return left, nil
}

func binOp(t lexer.TokenType) expr.Op {
	switch t {
	case lexer.TokenPlus:
		return expr.OpAdd
	case lexer.TokenMinus:
		return expr.OpSub
	case lexer.TokenStar:
		return expr.OpMul
	case lexer.TokenSlash:
		return expr.OpDiv
	case lexer.TokenPipe:
		return expr.OpOr
	case lexer.TokenAmp:
		return expr.OpAnd
	case lexer.TokenCaret:
		return expr.OpXor
	case lexer.TokenShl:
		return expr.OpShl
	case lexer.TokenShr:
		return expr.OpShr
	}
	return expr.OpAdd
}

func (p *Parser) unary() (*expr.Expr, error) {
	if p.match(lexer.TokenMinus) {
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		return expr.AppendOp(expr.OpNeg, e), nil
	}
	if p.match(lexer.TokenTilde) {
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		return expr.AppendOp(expr.OpNot, e), nil
	}
	return p.primary()
}

func (p *Parser) primary() (*expr.Expr, error) {
	p.match(lexer.TokenDollar) // immediate marker, no semantic effect in this subset

	if p.match(lexer.TokenLParen) {
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		p.consume(lexer.TokenRParen, "expected ')'")
		return e, nil
	}
	if p.check(lexer.TokenDirective) && p.peek().Lexeme == "." {
		p.advance()
		return expr.Loc(p.Obj.Here(p.pos())), nil
	}
	if p.check(lexer.TokenNumber) {
		lit := p.advance().Lexeme
		n, err := parseIntLiteral(lit)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", p.pos(), err)
		}
		return expr.Int(n), nil
	}
	if p.check(lexer.TokenIdent) {
		name := p.advance().Lexeme
		sym := p.Obj.Use(name, p.pos())
		return expr.Sym(sym), nil
	}
	return nil, fmt.Errorf("%s: expected an expression, got %s", p.pos(), p.peek())
}

func parseIntLiteral(lit string) (*ionum.IntNum, error) {
	v, err := strconv.ParseInt(lit, 0, 64)
	if err != nil {
		uv, uerr := strconv.ParseUint(lit, 0, 64)
		if uerr != nil {
			return nil, err
		}
		return ionum.New(int64(uv)), nil
	}
	return ionum.New(v), nil
}

// --- token helpers ---

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	p.Errors = append(p.Errors, fmt.Errorf("%s: %s", p.pos(), msg))
	return p.peek()
}

func (p *Parser) check(t lexer.TokenType) bool {
	if p.isAtEnd() {
		return t == lexer.TokenEOF
	}
	return p.peek().Type == t
}

func (p *Parser) checkNext(t lexer.TokenType) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+1].Type == t
}

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.tokens[p.current-1]
}

func (p *Parser) peek() lexer.Token { return p.tokens[p.current] }

func (p *Parser) isAtEnd() bool { return p.peek().Type == lexer.TokenEOF }

func (p *Parser) skipToNewline() {
	for !p.check(lexer.TokenNewline) && !p.isAtEnd() {
		p.advance()
	}
	if p.check(lexer.TokenNewline) {
		p.advance()
	}
}
