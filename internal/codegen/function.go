package codegen

import (
	"math"

	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/ir"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

var unaryFuncs = map[mir.Function]ir.UnOp{
	mir.FuncCos:   ir.UCos,
	mir.FuncSin:   ir.USin,
	mir.FuncTan:   ir.UTan,
	mir.FuncAcos:  ir.UAcos,
	mir.FuncAsin:  ir.UAsin,
	mir.FuncAtan:  ir.UAtan,
	mir.FuncLog:   ir.ULog,
	mir.FuncLog2:  ir.ULog2,
	mir.FuncLog10: ir.ULog10,
	mir.FuncSqrt:  ir.USqrt,
	mir.FuncCeil:  ir.UCeil,
	mir.FuncFloor: ir.UFloor,
	mir.FuncAbs:   ir.UAbs,
	mir.FuncTanh:  ir.UTanh,
	mir.FuncExp:   ir.UExp,
	mir.FuncFract: ir.UFract,
}

var binaryFuncs = map[mir.Function]ir.VecOp{
	mir.FuncAtan2: ir.VAtan2,
	mir.FuncHypot: ir.VHypot,
	mir.FuncMin:   ir.VMin,
	mir.FuncMax:   ir.VMax,
}

// inline emits the value of a pure function over the argument vectors.
func inline(b *ir.Builder, f mir.Function, x []ir.Value) ir.Value {
	if op, ok := unaryFuncs[f]; ok {
		return b.VecUn(op, x[0])
	}
	if op, ok := binaryFuncs[f]; ok {
		return b.VecBin(op, x[0], x[1])
	}

	switch f {
	case mir.FuncToRad:
		return b.VecBin(ir.VMul, x[0], b.Splat(math.Pi/180))
	case mir.FuncToDeg:
		return b.VecBin(ir.VMul, x[0], b.Splat(180/math.Pi))
	case mir.FuncLogb:
		return b.VecBin(ir.VDiv, b.VecUn(ir.ULog, x[0]), b.VecUn(ir.ULog, x[1]))
	case mir.FuncClamp:
		return b.VecBin(ir.VMax, b.VecBin(ir.VMin, x[0], x[2]), x[1])
	case mir.FuncMix:
		return b.VecBin(ir.VAdd, x[0], b.VecBin(ir.VMul, b.VecBin(ir.VSub, x[1], x[0]), x[2]))
	case mir.FuncLeft:
		return b.Shuffle(x[0], x[0], 0, 0)
	case mir.FuncRight:
		return b.Shuffle(x[0], x[0], 1, 1)
	case mir.FuncSwap:
		return b.Shuffle(x[0], x[0], 1, 0)
	case mir.FuncCombine:
		return b.Shuffle(x[0], x[1], 0, 3)
	case mir.FuncPan:
		// gain (1-p, 1+p) clamped to [0, 1], p taken from the left lane
		p := b.Shuffle(x[1], x[1], 0, 0)
		g := b.VecBin(ir.VAdd, b.Splat(1), b.VecBin(ir.VMul, p, b.ConstVec(-1, 1)))
		g = b.VecBin(ir.VMin, b.VecBin(ir.VMax, g, b.Splat(0)), b.Splat(1))
		return b.VecBin(ir.VMul, x[0], g)
	}
	panic("codegen: no inline form for " + f.String())
}

// callFunc emits statement i, a function call owning call data j.
func (g *blockGen) callFunc(i, j int, s mir.CallFunc) {
	b := g.b
	out := g.slots[i]
	args := make([]ir.Value, 0, len(s.Args)+len(s.VarArgs))
	for _, a := range s.Args {
		args = append(args, g.slots[a])
	}
	for _, a := range s.VarArgs {
		args = append(args, g.slots[a])
	}

	if dsp.IsNative(s.Function) {
		regs := append([]ir.Value{g.env, g.callData(j), out}, args...)
		b.Call(dsp.FunctionSymbol(s.Function), ir.Void, regs...)
		return
	}

	x := make([]ir.Value, len(args))
	for k, a := range args {
		x[k] = b.LoadVec(b.FieldPtr(a, numType, dsp.NumValue))
	}
	var form ir.Value
	if info := s.Function.Info(); info.FormRule == mir.FormFixed || len(args) == 0 {
		form = b.ConstInt(int64(info.Form))
	} else {
		form = loadForm(b, args[0])
	}
	storeNum(b, out, inline(b, s.Function, x), form)
}

// destructCall releases the data of call j, if its function keeps any
// resources.
func (g *blockGen) destructCall(j int, f mir.Function) {
	if sym := dsp.FunctionDestructSymbol(f); sym != "" {
		g.b.Call(sym, ir.Void, g.env, g.callData(j))
	}
}
