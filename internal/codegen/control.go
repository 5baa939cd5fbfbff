package codegen

import (
	"github.com/monadgroup/axiom-sub000/internal/analyze"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/ir"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// controlPtr loads pointer field f (analyze.ControlValue and friends) of
// control i. The UI pointer is null when the layout keeps no UI data.
func (g *blockGen) controlPtr(i, f int) ir.Value {
	if f == analyze.ControlUI && !g.l.IncludeUI {
		return g.b.Null()
	}
	return g.b.LoadPtr(g.b.FieldPtr(g.ptrs, g.ptrsType, g.l.ControlPointersIndex(i), f))
}

// updateControl runs the per-update routine of control i, if its kind has
// one.
func (g *blockGen) updateControl(i int, c mir.Control) {
	sym := dsp.ControlUpdateSymbol(c.Type)
	if sym == "" {
		return
	}
	g.b.Call(sym, ir.Void, g.env,
		g.controlPtr(i, analyze.ControlValue),
		g.controlPtr(i, analyze.ControlData),
		g.controlPtr(i, analyze.ControlShared),
		g.controlPtr(i, analyze.ControlUI),
	)
}

// playhead addresses field f of a graph or roll control's data.
func (g *blockGen) playhead(i, f int) ir.Value {
	c := g.l.Block.Controls[i]
	return g.b.FieldPtr(g.controlPtr(i, analyze.ControlData), dsp.ControlData(c.Type), f)
}

// loadControl emits statement i reading a control field.
func (g *blockGen) loadControl(i int, s mir.LoadControl) {
	b := g.b
	out := g.slots[i]
	switch {
	case s.Field.IsValue():
		size := dsp.ValueType(s.Field.VarType()).Size()
		b.Copy(out, g.controlPtr(s.Control, analyze.ControlValue), size)
	case s.Field.Name() == "speed":
		storeNum(b, out, b.LoadVec(g.playhead(s.Control, dsp.PlaySpeed)), b.ConstInt(int64(mir.FormNone)))
	case s.Field.Name() == "paused":
		paused := b.IntToVec(b.LoadInt(g.playhead(s.Control, dsp.PlayPaused), 1))
		storeNum(b, out, paused, b.ConstInt(int64(mir.FormNone)))
	}
}

// storeControl emits statement i writing a control field. The statement's
// own slot receives the stored value too.
func (g *blockGen) storeControl(i int, s mir.StoreControl) {
	b := g.b
	in := g.slots[s.Value]
	size := dsp.ValueType(s.Field.VarType()).Size()
	b.Copy(g.slots[i], in, size)

	switch {
	case s.Field.IsValue():
		b.Copy(g.controlPtr(s.Control, analyze.ControlValue), in, size)
	case s.Field.Name() == "speed":
		b.StoreVec(g.playhead(s.Control, dsp.PlaySpeed), b.LoadVec(in))
	case s.Field.Name() == "paused":
		set := b.VecToInt(b.VecBin(ir.VNe, b.LoadVec(in), b.Splat(0)))
		b.StoreInt(g.playhead(s.Control, dsp.PlayPaused), set, 1)
	}
}
