package ir

import "math"

// VecOp is a lane-wise binary operator.
type VecOp int

const (
	VAdd VecOp = iota
	VSub
	VMul
	VDiv
	VMod
	VPow
	VAnd
	VOr
	VLogicalAnd
	VLogicalOr
	VEq
	VNe
	VLt
	VGt
	VLe
	VGe
	VMin
	VMax
	VAtan2
	VHypot
)

var vecOpNames = [...]string{"add", "sub", "mul", "div", "mod", "pow", "and", "or", "land", "lor",
	"eq", "ne", "lt", "gt", "le", "ge", "min", "max", "atan2", "hypot"}

func (op VecOp) String() string { return vecOpNames[op] }

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (op VecOp) Eval(a, b float64) float64 {
	switch op {
	case VAdd:
		return a + b
	case VSub:
		return a - b
	case VMul:
		return a * b
	case VDiv:
		return a / b
	case VMod:
		return math.Mod(a, b)
	case VPow:
		return math.Pow(a, b)
	case VAnd:
		return float64(int64(a) & int64(b))
	case VOr:
		return float64(int64(a) | int64(b))
	case VLogicalAnd:
		return b2f(a != 0 && b != 0)
	case VLogicalOr:
		return b2f(a != 0 || b != 0)
	case VEq:
		return b2f(a == b)
	case VNe:
		return b2f(a != b)
	case VLt:
		return b2f(a < b)
	case VGt:
		return b2f(a > b)
	case VLe:
		return b2f(a <= b)
	case VGe:
		return b2f(a >= b)
	case VMin:
		return math.Min(a, b)
	case VMax:
		return math.Max(a, b)
	case VAtan2:
		return math.Atan2(a, b)
	case VHypot:
		return math.Hypot(a, b)
	}
	return 0
}

// UnOp is a lane-wise unary operator.
type UnOp int

const (
	UNeg UnOp = iota
	UNot
	USin
	UCos
	UTan
	UAsin
	UAcos
	UAtan
	ULog
	ULog2
	ULog10
	USqrt
	UCeil
	UFloor
	UAbs
	UTanh
	UExp
	UFract
)

var unOpNames = [...]string{"neg", "not", "sin", "cos", "tan", "asin", "acos", "atan", "log", "log2",
	"log10", "sqrt", "ceil", "floor", "abs", "tanh", "exp", "fract"}

func (op UnOp) String() string { return unOpNames[op] }

func (op UnOp) Eval(x float64) float64 {
	switch op {
	case UNeg:
		return -x
	case UNot:
		return b2f(x == 0)
	case USin:
		return math.Sin(x)
	case UCos:
		return math.Cos(x)
	case UTan:
		return math.Tan(x)
	case UAsin:
		return math.Asin(x)
	case UAcos:
		return math.Acos(x)
	case UAtan:
		return math.Atan(x)
	case ULog:
		return math.Log(x)
	case ULog2:
		return math.Log2(x)
	case ULog10:
		return math.Log10(x)
	case USqrt:
		return math.Sqrt(x)
	case UCeil:
		return math.Ceil(x)
	case UFloor:
		return math.Floor(x)
	case UAbs:
		return math.Abs(x)
	case UTanh:
		return math.Tanh(x)
	case UExp:
		return math.Exp(x)
	case UFract:
		return x - math.Floor(x)
	}
	return x
}

// IntOp is a 64-bit integer operator. Comparisons yield 0 or 1.
type IntOp int

const (
	IAdd IntOp = iota
	ISub
	IMul
	IAnd
	IOr
	IXor
	IShl
	IShr
	IEq
	INe
	ILt
	IGt
	ILe
	IGe
)

var intOpNames = [...]string{"add", "sub", "mul", "and", "or", "xor", "shl", "shr", "eq", "ne", "lt", "gt", "le", "ge"}

func (op IntOp) String() string { return intOpNames[op] }

func i2b(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (op IntOp) Eval(a, b int64) int64 {
	switch op {
	case IAdd:
		return a + b
	case ISub:
		return a - b
	case IMul:
		return a * b
	case IAnd:
		return a & b
	case IOr:
		return a | b
	case IXor:
		return a ^ b
	case IShl:
		return int64(uint64(a) << uint64(b&63))
	case IShr:
		return int64(uint64(a) >> uint64(b&63))
	case IEq:
		return i2b(a == b)
	case INe:
		return i2b(a != b)
	case ILt:
		return i2b(a < b)
	case IGt:
		return i2b(a > b)
	case ILe:
		return i2b(a <= b)
	case IGe:
		return i2b(a >= b)
	}
	return 0
}

// Shuffle selects lanes l and r from the concatenation of x and y.
func Shuffle(x, y [2]float64, l, r int) [2]float64 {
	lanes := [4]float64{x[0], x[1], y[0], y[1]}
	return [2]float64{lanes[l&3], lanes[r&3]}
}
