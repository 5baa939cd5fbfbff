// Package ast is the expression tree of a parsed block.
package ast

import (
	"github.com/monadgroup/axiom-sub000/internal/diag"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// Block is a parsed block: one expression per statement.
type Block struct {
	Exprs []Expr
}

type Expr interface {
	Range() diag.Range
}

type Pos struct {
	Rng diag.Range
}

func (p Pos) Range() diag.Range { return p.Rng }

type (
	NumberExpr struct {
		Pos
		Value float64
		Form  mir.FormType
	}

	// NoteExpr is a note literal; Note is the MIDI note number.
	NoteExpr struct {
		Pos
		Note int
	}

	VariableExpr struct {
		Pos
		Name string
	}

	ControlExpr struct {
		Pos
		Name  string
		Type  mir.ControlType
		Field string
	}

	CallExpr struct {
		Pos
		Name string
		Args []Expr
	}

	TupleExpr struct {
		Pos
		Items []Expr
	}

	UnaryExpr struct {
		Pos
		Op      mir.UnaryOp
		Operand Expr
	}

	BinaryExpr struct {
		Pos
		Op       mir.MathOp
		Lhs, Rhs Expr
	}

	// AssignExpr is a plain or compound assignment. Op is nil for "=".
	AssignExpr struct {
		Pos
		Op    *mir.MathOp
		Left  Expr
		Right Expr
	}

	ExtractExpr struct {
		Pos
		Tuple Expr
		Index int
	}

	// CastExpr is "x as f" when Convert is false and "x -> f" otherwise.
	CastExpr struct {
		Pos
		Target  mir.FormType
		Operand Expr
		Convert bool
	}
)
