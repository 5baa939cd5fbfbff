// Package optimize simplifies lowered blocks.
package optimize

import "github.com/monadgroup/axiom-sub000/internal/mir"

// Block folds constants and then removes dead statements.
func Block(b *mir.Block) *mir.Block {
	return EliminateDeadCode(FoldConstants(b))
}

// FoldConstants replaces statements whose inputs are all constant with the
// constant they evaluate to. Statement indices do not change. Conversions
// that read the sample rate or BPM are left for run time.
func FoldConstants(b *mir.Block) *mir.Block {
	out := b.Clone()
	consts := make([]mir.ConstantValue, len(out.Statements))

	num := func(i int) (mir.ConstantNum, bool) {
		c, ok := consts[i].(mir.ConstantNum)
		return c, ok
	}

	for i, s := range out.Statements {
		var folded mir.ConstantValue

		switch s := s.(type) {
		case mir.NumConstant:
			folded = s.Value
		case mir.TupleConstant:
			folded = s.Value
		case mir.NumCast:
			if c, ok := num(s.Input); ok {
				c.Form = s.Target
				folded = c
			}
		case mir.NumConvert:
			if c, ok := num(s.Input); ok && !mir.ConvertUsesTiming(c.Form, s.Target) {
				folded = mir.ConvertNum(c, s.Target, mir.Timing{})
			}
		case mir.NumUnaryOp:
			if c, ok := num(s.Input); ok {
				folded = mir.ConstantNum{Left: s.Op.Eval(c.Left), Right: s.Op.Eval(c.Right), Form: c.Form}
			}
		case mir.NumMathOp:
			l, lok := num(s.Lhs)
			r, rok := num(s.Rhs)
			if lok && rok {
				folded = mir.ConstantNum{Left: s.Op.Eval(l.Left, r.Left), Right: s.Op.Eval(l.Right, r.Right), Form: l.Form}
			}
		case mir.Extract:
			if t, ok := consts[s.Tuple].(mir.ConstantTuple); ok {
				folded = t.Items[s.Index]
			}
		case mir.Combine:
			items := make([]mir.ConstantValue, len(s.Indexes))
			folded = mir.ConstantTuple{Items: items}
			for k, idx := range s.Indexes {
				if items[k] = consts[idx]; items[k] == nil {
					folded = nil
					break
				}
			}
		}

		if folded == nil {
			continue
		}
		consts[i] = folded
		switch c := folded.(type) {
		case mir.ConstantNum:
			out.Statements[i] = mir.NumConstant{Value: c}
		case mir.ConstantTuple:
			out.Statements[i] = mir.TupleConstant{Value: c}
		}
	}

	return out
}

// EliminateDeadCode drops statements nobody reads and that have no side
// effect, repeating until nothing changes. Remaining inputs are renumbered.
func EliminateDeadCode(b *mir.Block) *mir.Block {
	out := b.Clone()
	for {
		refs := make([]int, len(out.Statements))
		for _, s := range out.Statements {
			for _, in := range s.Inputs() {
				refs[in]++
			}
		}

		remap := make([]int, len(out.Statements))
		kept := out.Statements[:0:0]
		for i, s := range out.Statements {
			if refs[i] == 0 && !s.HasSideEffect() {
				remap[i] = -1
				continue
			}
			remap[i] = len(kept)
			kept = append(kept, s)
		}
		if len(kept) == len(out.Statements) {
			return out
		}

		for i, s := range kept {
			kept[i] = s.WithInputs(func(in int) int { return remap[in] })
		}
		out.Statements = kept
	}
}
