// Package parser builds an ast.Block from block source.
package parser

import (
	"strconv"
	"strings"

	"github.com/monadgroup/axiom-sub000/internal/ast"
	"github.com/monadgroup/axiom-sub000/internal/diag"
	"github.com/monadgroup/axiom-sub000/internal/lexer"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

var assignOps = map[lexer.TokenType]*mir.MathOp{
	lexer.Assign:        nil,
	lexer.PlusAssign:    opPtr(mir.MathAdd),
	lexer.MinusAssign:   opPtr(mir.MathSubtract),
	lexer.StarAssign:    opPtr(mir.MathMultiply),
	lexer.SlashAssign:   opPtr(mir.MathDivide),
	lexer.PercentAssign: opPtr(mir.MathModulo),
	lexer.CaretAssign:   opPtr(mir.MathPower),
}

func opPtr(op mir.MathOp) *mir.MathOp { return &op }

// binary precedence levels, loosest first
var binaryLevels = []map[lexer.TokenType]mir.MathOp{
	{lexer.OrOr: mir.MathLogicalOr},
	{lexer.AndAnd: mir.MathLogicalAnd},
	{lexer.Or: mir.MathBitwiseOr},
	{lexer.And: mir.MathBitwiseAnd},
	{lexer.Eq: mir.MathEqual, lexer.NotEq: mir.MathNotEqual},
	{lexer.Lt: mir.MathLt, lexer.Gt: mir.MathGt, lexer.Lte: mir.MathLte, lexer.Gte: mir.MathGte},
	{lexer.Plus: mir.MathAdd, lexer.Minus: mir.MathSubtract},
	{lexer.Star: mir.MathMultiply, lexer.Slash: mir.MathDivide, lexer.Percent: mir.MathModulo},
}

type Parser struct {
	toks []lexer.Token
	i    int
}

// Parse parses a whole block.
func Parse(src string) (*ast.Block, error) {
	p := &Parser{toks: lexer.Tokenize(src)}
	b, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (p *Parser) peek() lexer.Token { return p.toks[p.i] }

func (p *Parser) next() lexer.Token {
	t := p.toks[p.i]
	if t.Type != lexer.EOF {
		p.i++
	}
	return t
}

func (p *Parser) unexpected(t lexer.Token, want string) *diag.Error {
	if t.Type == lexer.EOF {
		return diag.Errorf(diag.UnexpectedEnd, t.Range, "expected %s", want)
	}
	return diag.Errorf(diag.UnexpectedToken, t.Range, "expected %s, found %v", want, t)
}

func (p *Parser) expect(typ lexer.TokenType) (lexer.Token, error) {
	t := p.next()
	if t.Type != typ {
		return t, p.unexpected(t, typ.String())
	}
	return t, nil
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	b := &ast.Block{}
	for {
		for p.peek().Type == lexer.Newline {
			p.next()
		}
		if p.peek().Type == lexer.EOF {
			return b, nil
		}

		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		b.Exprs = append(b.Exprs, e)

		if t := p.peek(); t.Type != lexer.Newline && t.Type != lexer.EOF {
			return nil, p.unexpected(t, "end of statement")
		}
	}
}

func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseAssign()
}

func (p *Parser) parseAssign() (ast.Expr, error) {
	left, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}

	op, ok := assignOps[p.peek().Type]
	if !ok {
		return left, nil
	}
	p.next()

	right, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	return &ast.AssignExpr{
		Pos:   ast.Pos{Rng: left.Range().Join(right.Range())},
		Op:    op,
		Left:  left,
		Right: right,
	}, nil
}

func (p *Parser) parseBinary(level int) (ast.Expr, error) {
	if level == len(binaryLevels) {
		return p.parsePower()
	}

	lhs, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := binaryLevels[level][p.peek().Type]
		if !ok {
			return lhs, nil
		}
		p.next()
		rhs, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		lhs = &ast.BinaryExpr{Pos: ast.Pos{Rng: lhs.Range().Join(rhs.Range())}, Op: op, Lhs: lhs, Rhs: rhs}
	}
}

func (p *Parser) parsePower() (ast.Expr, error) {
	base, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != lexer.Caret {
		return base, nil
	}
	p.next()
	exp, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	return &ast.BinaryExpr{Pos: ast.Pos{Rng: base.Range().Join(exp.Range())}, Op: mir.MathPower, Lhs: base, Rhs: exp}, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	var op mir.UnaryOp
	switch p.peek().Type {
	case lexer.Minus:
		op = mir.UnaryNegative
	case lexer.Plus:
		op = mir.UnaryPositive
	case lexer.Not:
		op = mir.UnaryNot
	default:
		return p.parsePostfix()
	}
	t := p.next()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.UnaryExpr{Pos: ast.Pos{Rng: t.Range.Join(operand.Range())}, Op: op, Operand: operand}, nil
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.peek().Type {
		case lexer.Dot:
			p.next()
			t, err := p.expect(lexer.Number)
			if err != nil {
				return nil, err
			}
			idx, perr := strconv.Atoi(t.Text)
			if perr != nil {
				return nil, p.unexpected(t, "tuple index")
			}
			e = &ast.ExtractExpr{Pos: ast.Pos{Rng: e.Range().Join(t.Range)}, Tuple: e, Index: idx}
		case lexer.As, lexer.Arrow:
			convert := p.next().Type == lexer.Arrow
			t, err := p.expect(lexer.Ident)
			if err != nil {
				return nil, err
			}
			suffix, ok := mir.LookupFormSuffix(strings.ToLower(t.Text))
			if !ok {
				return nil, diag.Errorf(diag.UnknownForm, t.Range, "%q", t.Text)
			}
			e = &ast.CastExpr{Pos: ast.Pos{Rng: e.Range().Join(t.Range)}, Target: suffix.Form, Operand: e, Convert: convert}
		default:
			return e, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.next()
	switch t.Type {
	case lexer.Number:
		return p.parseNumber(t)
	case lexer.Colon:
		return p.parseNote(t)
	case lexer.Ident:
		switch p.peek().Type {
		case lexer.LParen:
			return p.parseCall(t)
		case lexer.Colon:
			return p.parseControl(t)
		}
		return &ast.VariableExpr{Pos: ast.Pos{Rng: t.Range}, Name: t.Text}, nil
	case lexer.LParen:
		return p.parseTuple(t)
	}
	return nil, p.unexpected(t, "expression")
}

func (p *Parser) parseNumber(t lexer.Token) (ast.Expr, error) {
	v, err := strconv.ParseFloat(t.Text, 64)
	if err != nil {
		return nil, diag.Errorf(diag.UnexpectedToken, t.Range, "bad number %q", t.Text)
	}
	e := &ast.NumberExpr{Pos: ast.Pos{Rng: t.Range}, Value: v}

	suffix := p.peek()
	if suffix.Type != lexer.Ident || suffix.Range.Start.Line != t.Range.End.Line {
		return e, nil
	}
	form, ok := mir.LookupFormSuffix(strings.ToLower(suffix.Text))
	if !ok {
		if suffix.Adjacent {
			return nil, diag.Errorf(diag.UnknownForm, suffix.Range, "%q", suffix.Text)
		}
		return e, nil
	}
	p.next()
	e.Value *= form.Scale
	e.Form = form.Form
	e.Rng = t.Range.Join(suffix.Range)
	return e, nil
}

func (p *Parser) parseNote(colon lexer.Token) (ast.Expr, error) {
	t, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	rng := colon.Range.Join(t.Range)
	note, ok := ParseNoteName(t.Text)
	if !ok {
		return nil, diag.Errorf(diag.UnknownNote, rng, "%q", t.Text)
	}
	return &ast.NoteExpr{Pos: ast.Pos{Rng: rng}, Note: note}, nil
}

// ParseNoteName converts names like c4, c#4 or eb3 to a MIDI note number,
// with c4 = 60.
func ParseNoteName(name string) (int, bool) {
	name = strings.ToLower(name)
	if name == "" {
		return 0, false
	}
	note, ok := noteOffsets[name[0]]
	if !ok {
		return 0, false
	}
	rest := name[1:]
	switch {
	case strings.HasPrefix(rest, "#"):
		note++
		rest = rest[1:]
	case strings.HasPrefix(rest, "b") && len(rest) > 1:
		note--
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil || octave < -1 || octave > 9 {
		return 0, false
	}
	note += (octave + 1) * 12
	if note < 0 || note > 127 {
		return 0, false
	}
	return note, true
}

func (p *Parser) parseCall(name lexer.Token) (ast.Expr, error) {
	p.next()
	call := &ast.CallExpr{Name: name.Text}
	if p.peek().Type != lexer.RParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if p.peek().Type != lexer.Comma {
				break
			}
			p.next()
		}
	}
	end, err := p.expect(lexer.RParen)
	if err != nil {
		return nil, err
	}
	call.Rng = name.Range.Join(end.Range)
	return call, nil
}

func (p *Parser) parseControl(name lexer.Token) (ast.Expr, error) {
	p.next()
	kind, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	rng := name.Range.Join(kind.Range)

	extract := false
	if p.peek().Type == lexer.LBracket {
		p.next()
		end, err := p.expect(lexer.RBracket)
		if err != nil {
			return nil, err
		}
		extract = true
		rng = rng.Join(end.Range)
	}
	typ, ok := mir.LookupControlType(kind.Text, extract)
	if !ok {
		return nil, diag.Errorf(diag.UnexpectedToken, kind.Range, "unknown control type %q", kind.Text)
	}

	e := &ast.ControlExpr{Name: name.Text, Type: typ}
	if p.peek().Type == lexer.Dot && p.toks[p.i+1].Type == lexer.Ident {
		p.next()
		field := p.next()
		e.Field = field.Text
		rng = rng.Join(field.Range)
	}
	e.Rng = rng
	return e, nil
}

func (p *Parser) parseTuple(open lexer.Token) (ast.Expr, error) {
	var items []ast.Expr
	for {
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.peek().Type != lexer.Comma {
			break
		}
		p.next()
	}
	end, err := p.expect(lexer.RParen)
	if err != nil {
		return nil, err
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return &ast.TupleExpr{Pos: ast.Pos{Rng: open.Range.Join(end.Range)}, Items: items}, nil
}
