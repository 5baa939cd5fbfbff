package mir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Statement is one SSA operation in a block. Inputs are indices of earlier
// statements in the same block.
type Statement interface {
	Inputs() []int
	// WithInputs returns a copy with every input index passed through f.
	WithInputs(f func(int) int) Statement
	HasSideEffect() bool
	String() string
}

type GlobalKind int

const (
	GlobalSampleRate GlobalKind = iota
	GlobalBPM
)

func (g GlobalKind) String() string {
	if g == GlobalBPM {
		return "BPM"
	}
	return "SAMPLERATE"
}

// Form returns the form tag the global is read with.
func (g GlobalKind) Form() FormType {
	if g == GlobalSampleRate {
		return FormFrequency
	}
	return FormNone
}

type UnaryOp int

const (
	UnaryPositive UnaryOp = iota
	UnaryNegative
	UnaryNot
)

var unaryNames = [...]string{"+", "-", "!"}

func (op UnaryOp) String() string { return unaryNames[op] }

// Eval applies the operator to a single lane.
func (op UnaryOp) Eval(x float64) float64 {
	switch op {
	case UnaryNegative:
		return -x
	case UnaryNot:
		return boolFloat(x == 0)
	}
	return x
}

type MathOp int

const (
	MathAdd MathOp = iota
	MathSubtract
	MathMultiply
	MathDivide
	MathModulo
	MathPower
	MathBitwiseAnd
	MathBitwiseOr
	MathLogicalAnd
	MathLogicalOr
	MathEqual
	MathNotEqual
	MathLt
	MathGt
	MathLte
	MathGte
)

var mathNames = [...]string{"+", "-", "*", "/", "%", "^", "&", "|", "&&", "||", "==", "!=", "<", ">", "<=", ">="}

func (op MathOp) String() string { return mathNames[op] }

// Eval applies the operator to a single lane.
func (op MathOp) Eval(a, b float64) float64 {
	switch op {
	case MathAdd:
		return a + b
	case MathSubtract:
		return a - b
	case MathMultiply:
		return a * b
	case MathDivide:
		return a / b
	case MathModulo:
		return math.Mod(a, b)
	case MathPower:
		return math.Pow(a, b)
	case MathBitwiseAnd:
		return float64(int64(a) & int64(b))
	case MathBitwiseOr:
		return float64(int64(a) | int64(b))
	case MathLogicalAnd:
		return boolFloat(a != 0 && b != 0)
	case MathLogicalOr:
		return boolFloat(a != 0 || b != 0)
	case MathEqual:
		return boolFloat(a == b)
	case MathNotEqual:
		return boolFloat(a != b)
	case MathLt:
		return boolFloat(a < b)
	case MathGt:
		return boolFloat(a > b)
	case MathLte:
		return boolFloat(a <= b)
	case MathGte:
		return boolFloat(a >= b)
	}
	return 0
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type (
	NumConstant struct {
		Value ConstantNum
	}

	TupleConstant struct {
		Value ConstantTuple
	}

	GlobalRead struct {
		Global GlobalKind
	}

	NumConvert struct {
		Target FormType
		Input  int
	}

	NumCast struct {
		Target FormType
		Input  int
	}

	NumUnaryOp struct {
		Op    UnaryOp
		Input int
	}

	NumMathOp struct {
		Op       MathOp
		Lhs, Rhs int
	}

	Extract struct {
		Tuple int
		Index int
	}

	Combine struct {
		Indexes []int
	}

	CallFunc struct {
		Function Function
		Args     []int
		VarArgs  []int
	}

	LoadControl struct {
		Control int
		Field   ControlField
	}

	StoreControl struct {
		Control int
		Field   ControlField
		Value   int
	}
)

func (s NumConstant) Inputs() []int                        { return nil }
func (s NumConstant) WithInputs(func(int) int) Statement   { return s }
func (s NumConstant) HasSideEffect() bool                  { return false }
func (s NumConstant) String() string                       { return "const " + exactNum(s.Value) }
func (s TupleConstant) Inputs() []int                      { return nil }
func (s TupleConstant) WithInputs(func(int) int) Statement { return s }
func (s TupleConstant) HasSideEffect() bool                { return false }
func (s TupleConstant) String() string                     { return "const " + exactConst(s.Value) }
func (s GlobalRead) Inputs() []int                         { return nil }
func (s GlobalRead) WithInputs(func(int) int) Statement    { return s }
func (s GlobalRead) HasSideEffect() bool                   { return false }
func (s GlobalRead) String() string                        { return "global " + s.Global.String() }

func (s NumConvert) Inputs() []int { return []int{s.Input} }
func (s NumConvert) WithInputs(f func(int) int) Statement {
	s.Input = f(s.Input)
	return s
}
func (s NumConvert) HasSideEffect() bool { return false }
func (s NumConvert) String() string      { return fmt.Sprintf("convert %%%d -> %v", s.Input, s.Target) }

func (s NumCast) Inputs() []int { return []int{s.Input} }
func (s NumCast) WithInputs(f func(int) int) Statement {
	s.Input = f(s.Input)
	return s
}
func (s NumCast) HasSideEffect() bool { return false }
func (s NumCast) String() string      { return fmt.Sprintf("cast %%%d as %v", s.Input, s.Target) }

func (s NumUnaryOp) Inputs() []int { return []int{s.Input} }
func (s NumUnaryOp) WithInputs(f func(int) int) Statement {
	s.Input = f(s.Input)
	return s
}
func (s NumUnaryOp) HasSideEffect() bool { return false }
func (s NumUnaryOp) String() string      { return fmt.Sprintf("unary %v %%%d", s.Op, s.Input) }

func (s NumMathOp) Inputs() []int { return []int{s.Lhs, s.Rhs} }
func (s NumMathOp) WithInputs(f func(int) int) Statement {
	s.Lhs, s.Rhs = f(s.Lhs), f(s.Rhs)
	return s
}
func (s NumMathOp) HasSideEffect() bool { return false }
func (s NumMathOp) String() string      { return fmt.Sprintf("math %%%d %v %%%d", s.Lhs, s.Op, s.Rhs) }

func (s Extract) Inputs() []int { return []int{s.Tuple} }
func (s Extract) WithInputs(f func(int) int) Statement {
	s.Tuple = f(s.Tuple)
	return s
}
func (s Extract) HasSideEffect() bool { return false }
func (s Extract) String() string      { return fmt.Sprintf("extract %%%d.%d", s.Tuple, s.Index) }

func (s Combine) Inputs() []int { return append([]int(nil), s.Indexes...) }
func (s Combine) WithInputs(f func(int) int) Statement {
	s.Indexes = mapIndexes(s.Indexes, f)
	return s
}
func (s Combine) HasSideEffect() bool { return false }
func (s Combine) String() string      { return "combine " + refList(s.Indexes) }

func (s CallFunc) Inputs() []int {
	in := make([]int, 0, len(s.Args)+len(s.VarArgs))
	in = append(in, s.Args...)
	return append(in, s.VarArgs...)
}
func (s CallFunc) WithInputs(f func(int) int) Statement {
	s.Args = mapIndexes(s.Args, f)
	s.VarArgs = mapIndexes(s.VarArgs, f)
	return s
}
func (s CallFunc) HasSideEffect() bool { return s.Function.HasSideEffects() }
func (s CallFunc) String() string {
	str := "call " + s.Function.String() + refList(s.Args)
	if len(s.VarArgs) != 0 {
		str += " ..." + refList(s.VarArgs)
	}
	return str
}

func (s LoadControl) Inputs() []int                      { return nil }
func (s LoadControl) WithInputs(func(int) int) Statement { return s }
func (s LoadControl) HasSideEffect() bool                { return false }
func (s LoadControl) String() string                     { return fmt.Sprintf("load $%d.%s", s.Control, s.Field.Name()) }

func (s StoreControl) Inputs() []int { return []int{s.Value} }
func (s StoreControl) WithInputs(f func(int) int) Statement {
	s.Value = f(s.Value)
	return s
}
func (s StoreControl) HasSideEffect() bool { return true }
func (s StoreControl) String() string {
	return fmt.Sprintf("store $%d.%s = %%%d", s.Control, s.Field.Name(), s.Value)
}

func mapIndexes(in []int, f func(int) int) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

func refList(in []int) string {
	parts := make([]string, len(in))
	for i, v := range in {
		parts[i] = "%" + strconv.Itoa(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// exactNum formats a constant so that distinct values never print equal.
func exactNum(c ConstantNum) string {
	l := strconv.FormatFloat(c.Left, 'g', -1, 64)
	r := strconv.FormatFloat(c.Right, 'g', -1, 64)
	return "<" + l + ", " + r + ">" + c.Form.String()
}

func exactConst(c ConstantValue) string {
	switch c := c.(type) {
	case ConstantNum:
		return exactNum(c)
	case ConstantTuple:
		parts := make([]string, len(c.Items))
		for i, item := range c.Items {
			parts[i] = exactConst(item)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return "?"
}
