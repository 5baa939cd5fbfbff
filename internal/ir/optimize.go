package ir

// Optimize rewrites m in place. Level 0 leaves it alone, level 1 folds
// constant arithmetic and drops unused pure instructions, level 2 also
// merges chained pointer offsets.
func Optimize(m *Module, level int) {
	if level <= 0 {
		return
	}
	for _, fn := range m.Funcs {
		consts := make(map[Value]*Instr)
		offsets := make(map[Value]*Instr)
		foldBlock(fn.Body, consts, offsets, level)
		for removeDead(fn) {
		}
	}
}

func foldBlock(b *Block, consts, offsets map[Value]*Instr, level int) {
	for _, in := range b.Instrs {
		for _, sub := range nestedBlocks(in) {
			foldBlock(sub, consts, offsets, level)
		}

		switch in.Op {
		case OpConstInt, OpConstVec:
			consts[in.Dst] = in
			continue
		case OpOffset:
			if level >= 2 {
				if base, ok := offsets[in.Args[0]]; ok {
					in.Args = []Value{base.Args[0]}
					in.Imm += base.Imm
				}
			}
			offsets[in.Dst] = in
			continue
		}

		args := make([]*Instr, len(in.Args))
		for i, a := range in.Args {
			c, ok := consts[a]
			if !ok {
				args = nil
				break
			}
			args[i] = c
		}
		if args == nil {
			continue
		}

		switch in.Op {
		case OpVecBin:
			op := VecOp(in.Imm)
			x, y := args[0].Vec, args[1].Vec
			setConstVec(in, op.Eval(x[0], y[0]), op.Eval(x[1], y[1]))
		case OpVecUn:
			op := UnOp(in.Imm)
			x := args[0].Vec
			setConstVec(in, op.Eval(x[0]), op.Eval(x[1]))
		case OpShuffle:
			v := Shuffle(args[0].Vec, args[1].Vec, int(in.Imm), int(in.Imm2))
			setConstVec(in, v[0], v[1])
		case OpIntBin:
			setConstInt(in, IntOp(in.Imm).Eval(args[0].Imm, args[1].Imm))
		case OpVecToInt:
			setConstInt(in, int64(args[0].Vec[0]))
		case OpIntToVec:
			f := float64(args[0].Imm)
			setConstVec(in, f, f)
		default:
			continue
		}
		consts[in.Dst] = in
	}
}

func setConstVec(in *Instr, l, r float64) {
	*in = Instr{Op: OpConstVec, Dst: in.Dst, Vec: [2]float64{l, r}}
}

func setConstInt(in *Instr, v int64) {
	*in = Instr{Op: OpConstInt, Dst: in.Dst, Imm: v}
}

// removeDead drops pure instructions whose result is never read and
// reports whether it removed anything.
func removeDead(fn *Function) bool {
	used := make([]bool, len(fn.Regs))
	fn.Walk(func(in *Instr) {
		for _, a := range in.Args {
			used[a] = true
		}
	})

	removed := false
	var sweep func(b *Block)
	sweep = func(b *Block) {
		if b == nil {
			return
		}
		kept := b.Instrs[:0]
		for _, in := range b.Instrs {
			if !in.Op.HasEffect() && in.Dst != NoValue && !used[in.Dst] {
				removed = true
				continue
			}
			for _, sub := range nestedBlocks(in) {
				sweep(sub)
			}
			kept = append(kept, in)
		}
		b.Instrs = kept
	}
	sweep(fn.Body)
	return removed
}
