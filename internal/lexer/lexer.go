// Package lexer splits block source into tokens.
package lexer

import (
	"fmt"

	"github.com/monadgroup/axiom-sub000/internal/diag"
)

type TokenType int

const (
	EOF TokenType = iota
	Newline
	Number
	Ident
	As
	Colon
	Dot
	Comma
	LParen
	RParen
	LBracket
	RBracket
	Plus
	Minus
	Star
	Slash
	Percent
	Caret
	Not
	Assign
	PlusAssign
	MinusAssign
	StarAssign
	SlashAssign
	PercentAssign
	CaretAssign
	AndAnd
	OrOr
	And
	Or
	Eq
	NotEq
	Lt
	Gt
	Lte
	Gte
	Arrow
	Unknown
)

var tokenNames = [...]string{
	EOF: "end of input", Newline: "newline", Number: "number", Ident: "identifier", As: "as",
	Colon: ":", Dot: ".", Comma: ",", LParen: "(", RParen: ")", LBracket: "[", RBracket: "]",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%", Caret: "^", Not: "!",
	Assign: "=", PlusAssign: "+=", MinusAssign: "-=", StarAssign: "*=", SlashAssign: "/=",
	PercentAssign: "%=", CaretAssign: "^=", AndAnd: "&&", OrOr: "||", And: "&", Or: "|",
	Eq: "==", NotEq: "!=", Lt: "<", Gt: ">", Lte: "<=", Gte: ">=", Arrow: "->", Unknown: "unknown",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

type Token struct {
	Type  TokenType
	Text  string
	Range diag.Range
	// Adjacent is set when no whitespace separates the token from the
	// previous one.
	Adjacent bool
}

func (t Token) String() string {
	if t.Text != "" && t.Type != Newline {
		return fmt.Sprintf("%v %q", t.Type, t.Text)
	}
	return t.Type.String()
}

var operators = []struct {
	text string
	typ  TokenType
}{
	{"->", Arrow}, {"+=", PlusAssign}, {"-=", MinusAssign}, {"*=", StarAssign},
	{"/=", SlashAssign}, {"%=", PercentAssign}, {"^=", CaretAssign}, {"&&", AndAnd},
	{"||", OrOr}, {"==", Eq}, {"!=", NotEq}, {"<=", Lte}, {">=", Gte},
	{"+", Plus}, {"-", Minus}, {"*", Star}, {"/", Slash}, {"%", Percent}, {"^", Caret},
	{"!", Not}, {"=", Assign}, {"&", And}, {"|", Or}, {"<", Lt}, {">", Gt},
	{":", Colon}, {".", Dot}, {",", Comma}, {"(", LParen}, {")", RParen},
	{"[", LBracket}, {"]", RBracket}, {";", Newline},
}

type Lexer struct {
	src       string
	i         int
	line, col int
	spaced    bool
	prev      TokenType
}

func New(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1, spaced: true, prev: Newline}
}

// Tokenize returns every token of src, ending with EOF.
func Tokenize(src string) []Token {
	l := New(src)
	var toks []Token
	for {
		t := l.Next()
		toks = append(toks, t)
		if t.Type == EOF {
			return toks
		}
	}
}

func (l *Lexer) pos() diag.Pos { return diag.Pos{Line: l.line, Col: l.col} }

func (l *Lexer) advance(n int) {
	for k := 0; k < n && l.i < len(l.src); k++ {
		if l.src[l.i] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.i++
	}
}

func (l *Lexer) skipSpace() {
	for l.i < len(l.src) {
		c := l.src[l.i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.advance(1)
		case c == '#':
			for l.i < len(l.src) && l.src[l.i] != '\n' {
				l.advance(1)
			}
		default:
			return
		}
		l.spaced = true
	}
}

func (l *Lexer) Next() Token {
	l.skipSpace()
	start := l.pos()
	from := l.i
	adjacent := !l.spaced
	l.spaced = false

	typ := l.scan()
	t := Token{
		Type:     typ,
		Text:     l.src[from:l.i],
		Range:    diag.Range{Start: start, End: l.pos()},
		Adjacent: adjacent,
	}
	l.prev = typ
	return t
}

func (l *Lexer) scan() TokenType {
	if l.i >= len(l.src) {
		return EOF
	}
	c := l.src[l.i]

	switch {
	case c == '\n':
		l.advance(1)
		l.spaced = true
		return Newline
	case isDigit(c):
		l.scanNumber()
		return Number
	case isLetter(c):
		start := l.i
		l.scanWord(l.prev == Colon)
		if l.src[start:l.i] == "as" {
			return As
		}
		return Ident
	}

	for _, op := range operators {
		if len(l.src)-l.i >= len(op.text) && l.src[l.i:l.i+len(op.text)] == op.text {
			l.advance(len(op.text))
			if op.typ == Newline {
				l.spaced = true
			}
			return op.typ
		}
	}

	l.advance(1)
	return Unknown
}

// scanWord reads an identifier. Words following a colon may contain '#'
// so that sharp note names like c#4 stay one token.
func (l *Lexer) scanWord(afterColon bool) {
	for l.i < len(l.src) && isWordByte(l.src[l.i], afterColon) {
		l.advance(1)
	}
}

func (l *Lexer) scanNumber() {
	for l.i < len(l.src) && isDigit(l.src[l.i]) {
		l.advance(1)
	}
	// tuple indexes like t.0.1 must not lex as a float
	if l.prev == Dot {
		return
	}
	if l.i+1 < len(l.src) && l.src[l.i] == '.' && isDigit(l.src[l.i+1]) {
		l.advance(1)
		for l.i < len(l.src) && isDigit(l.src[l.i]) {
			l.advance(1)
		}
	}
	if l.i < len(l.src) && (l.src[l.i] == 'e' || l.src[l.i] == 'E') {
		j := l.i + 1
		if j < len(l.src) && (l.src[j] == '+' || l.src[j] == '-') {
			j++
		}
		if j < len(l.src) && isDigit(l.src[j]) {
			l.advance(j - l.i)
			for l.i < len(l.src) && isDigit(l.src[l.i]) {
				l.advance(1)
			}
		}
	}
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' }

func isWordByte(c byte, sharp bool) bool {
	return isLetter(c) || isDigit(c) || sharp && c == '#'
}
