package codegen

import (
	"github.com/monadgroup/axiom-sub000/internal/analyze"
	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/ir"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

type blockGen struct {
	b *ir.Builder
	l *analyze.BlockLayout

	ptrs     ir.Value
	ptrsType *datatype.Type
	env      ir.Value

	types []mir.VarType
	// slots holds the stack slot of each statement.
	slots []ir.Value
}

func (g *blockGen) callData(j int) ir.Value {
	return g.b.LoadPtr(g.b.FieldPtr(g.ptrs, g.ptrsType, g.l.CallPointersIndex(j)))
}

// Block emits the module of a laid out block.
func Block(l *analyze.BlockLayout) *ir.Module {
	name := BlockModule(l.Block.ID)
	m := ir.NewModule(name)
	types := l.Block.Types()

	lifecycles(m, name, func(b *ir.Builder, lc lifecycle, ptrs ir.Value) {
		g := &blockGen{
			b:        b,
			l:        l,
			ptrs:     ptrs,
			ptrsType: l.PointersType(),
			env:      b.GlobalAddr(SymEnv),
			types:    types,
		}
		// Construct is empty: the state global is allocated zeroed and
		// natives treat zeroed call data as their initial state.
		switch lc {
		case update:
			g.update()
		case destruct:
			g.destruct()
		}
	})
	return m
}

// destruct releases call data in reverse call order. Controls hold no
// resources.
func (g *blockGen) destruct() {
	for j := len(g.l.CallSlots) - 1; j >= 0; j-- {
		call := g.l.Block.Statements[g.l.CallSlots[j]].(mir.CallFunc)
		g.destructCall(j, call.Function)
	}
}

func (g *blockGen) update() {
	b := g.b
	for i, c := range g.l.Block.Controls {
		g.updateControl(i, c)
	}

	g.slots = make([]ir.Value, len(g.l.Block.Statements))
	for i, t := range g.types {
		g.slots[i] = b.Alloca(dsp.ValueType(t))
	}

	call := 0
	for i, s := range g.l.Block.Statements {
		out := g.slots[i]

		switch s := s.(type) {
		case mir.NumConstant:
			storeConst(b, out, numType, s.Value)

		case mir.TupleConstant:
			storeConst(b, out, dsp.ValueType(g.types[i]), s.Value)

		case mir.GlobalRead:
			f := dsp.EnvSampleRate
			if s.Global == mir.GlobalBPM {
				f = dsp.EnvBPM
			}
			v := b.LoadVec(b.FieldPtr(g.env, dsp.EnvType(), f))
			storeNum(b, out, v, b.ConstInt(int64(s.Global.Form())))

		case mir.NumConvert:
			emitConvert(b, g.env, s.Target, g.slots[s.Input], out)

		case mir.NumCast:
			b.StoreVec(b.FieldPtr(out, numType, dsp.NumValue), b.LoadVec(g.slots[s.Input]))
			storeForm(b, out, b.ConstInt(int64(s.Target)))

		case mir.NumUnaryOp:
			in := g.slots[s.Input]
			v := b.LoadVec(in)
			switch s.Op {
			case mir.UnaryNegative:
				v = b.VecUn(ir.UNeg, v)
			case mir.UnaryNot:
				v = b.VecUn(ir.UNot, v)
			}
			storeNum(b, out, v, loadForm(b, in))

		case mir.NumMathOp:
			lhs, rhs := g.slots[s.Lhs], g.slots[s.Rhs]
			v := b.VecBin(mathOps[s.Op], b.LoadVec(lhs), b.LoadVec(rhs))
			storeNum(b, out, v, loadForm(b, lhs))

		case mir.Extract:
			t := dsp.ValueType(g.types[s.Tuple])
			b.Copy(out, b.FieldPtr(g.slots[s.Tuple], t, s.Index), t.Child(s.Index).Size())

		case mir.Combine:
			t := dsp.ValueType(g.types[i])
			for k, idx := range s.Indexes {
				b.Copy(b.FieldPtr(out, t, k), g.slots[idx], t.Child(k).Size())
			}

		case mir.CallFunc:
			g.callFunc(i, call, s)
			call++

		case mir.LoadControl:
			g.loadControl(i, s)

		case mir.StoreControl:
			g.storeControl(i, s)
		}
	}
}

var mathOps = map[mir.MathOp]ir.VecOp{
	mir.MathAdd:        ir.VAdd,
	mir.MathSubtract:   ir.VSub,
	mir.MathMultiply:   ir.VMul,
	mir.MathDivide:     ir.VDiv,
	mir.MathModulo:     ir.VMod,
	mir.MathPower:      ir.VPow,
	mir.MathBitwiseAnd: ir.VAnd,
	mir.MathBitwiseOr:  ir.VOr,
	mir.MathLogicalAnd: ir.VLogicalAnd,
	mir.MathLogicalOr:  ir.VLogicalOr,
	mir.MathEqual:      ir.VEq,
	mir.MathNotEqual:   ir.VNe,
	mir.MathLt:         ir.VLt,
	mir.MathGt:         ir.VGt,
	mir.MathLte:        ir.VLe,
	mir.MathGte:        ir.VGe,
}
