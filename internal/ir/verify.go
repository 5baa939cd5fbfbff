package ir

import "github.com/nikandfor/errors"

var argKinds = map[Op][]Kind{
	OpOffset:     {Ptr},
	OpIndex:      {Ptr, Int},
	OpLoadPtr:    {Ptr},
	OpStorePtr:   {Ptr, Ptr},
	OpLoadInt:    {Ptr},
	OpStoreInt:   {Ptr, Int},
	OpLoadVec:    {Ptr},
	OpStoreVec:   {Ptr, Vec},
	OpLoadFloat:  {Ptr},
	OpStoreFloat: {Ptr, Vec},
	OpCopy:       {Ptr, Ptr},
	OpZero:       {Ptr},
	OpVecBin:     {Vec, Vec},
	OpVecUn:      {Vec},
	OpShuffle:    {Vec, Vec},
	OpIntBin:     {Int, Int},
	OpVecToInt:   {Vec},
	OpIntToVec:   {Int},
	OpIf:         {Int},
	OpLoop:       {Int},
	OpSwitch:     {Int},
}

// Verify checks register kinds and that every register is defined before
// it is used on every path.
func Verify(m *Module) error {
	for _, fn := range m.Funcs {
		if err := verifyFunc(fn); err != nil {
			return errors.Wrap(err, "module %v: func %v", m.Name, fn.Name)
		}
	}
	return nil
}

func verifyFunc(fn *Function) error {
	defined := make([]bool, len(fn.Regs))
	return verifyBlock(fn, fn.Body, defined)
}

func verifyBlock(fn *Function, b *Block, defined []bool) error {
	for i, in := range b.Instrs {
		for _, a := range in.Args {
			if a < 0 || int(a) >= len(fn.Regs) || !defined[a] {
				return errors.New("instr %d (%v): register %d used before definition", i, in.Op, a)
			}
		}
		if want, ok := argKinds[in.Op]; ok {
			for k, a := range in.Args {
				if fn.Regs[a] != want[k] {
					return errors.New("instr %d (%v): argument %d is %v, want %v", i, in.Op, k, fn.Regs[a], want[k])
				}
			}
		}
		switch in.Op {
		case OpParam:
			if int(in.Imm) >= len(fn.Params) {
				return errors.New("instr %d: parameter %d of %d", i, in.Imm, len(fn.Params))
			}
		case OpReturn:
			if (len(in.Args) == 0) != (fn.Result == Void) {
				return errors.New("instr %d: return does not match result %v", i, fn.Result)
			}
		}

		for _, sub := range nestedBlocks(in) {
			inner := append([]bool(nil), defined...)
			if in.Op == OpLoop {
				inner[in.Imm] = true
			}
			if err := verifyBlock(fn, sub, inner); err != nil {
				return err
			}
		}
		if in.Dst != NoValue {
			defined[in.Dst] = true
		}
	}
	return nil
}

func nestedBlocks(in *Instr) []*Block {
	var bs []*Block
	for _, b := range []*Block{in.Then, in.Else, in.Body} {
		if b != nil {
			bs = append(bs, b)
		}
	}
	return append(bs, in.Cases...)
}
