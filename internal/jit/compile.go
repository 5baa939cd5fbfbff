package jit

import (
	"math"
	"sync"

	"github.com/nikandfor/errors"

	"github.com/monadgroup/axiom-sub000/internal/ir"
)

type frame struct {
	regs []Reg
	args []Reg
	sp   Addr
	ret  Reg
	done bool
}

type step func(f *frame)

type program struct {
	name      string
	nregs     int
	frameSize int
	body      []step
	pool      sync.Pool
}

func run(body []step, f *frame) {
	for _, s := range body {
		s(f)
		if f.done {
			return
		}
	}
}

func (p *program) call(e *Engine, args []Reg) Reg {
	f, _ := p.pool.Get().(*frame)
	if f == nil {
		f = &frame{regs: make([]Reg, p.nregs)}
	}
	top := e.stackTop
	f.args = args
	f.sp = e.pushFrame(p.frameSize)
	f.done = false
	f.ret = Reg{}

	run(p.body, f)

	ret := f.ret
	e.stackTop = top
	f.args = nil
	p.pool.Put(f)
	return ret
}

type compiler struct {
	e       *Engine
	fn      *ir.Function
	resolve func(string) (Addr, bool)
	frame   int
}

func (e *Engine) compile(fn *ir.Function, resolve func(string) (Addr, bool)) (callable, error) {
	c := &compiler{e: e, fn: fn, resolve: resolve}
	body, err := c.block(fn.Body)
	if err != nil {
		return nil, errors.Wrap(err, "func %v", fn.Name)
	}
	p := &program{name: fn.Name, nregs: len(fn.Regs), frameSize: c.frame, body: body}
	return p.call, nil
}

func (c *compiler) block(b *ir.Block) ([]step, error) {
	if b == nil {
		return nil, nil
	}
	steps := make([]step, 0, len(b.Instrs))
	for _, in := range b.Instrs {
		s, err := c.instr(in)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func (c *compiler) instr(in *ir.Instr) (step, error) {
	mem := c.e.mem
	d := in.Dst
	var a, b ir.Value
	if len(in.Args) > 0 {
		a = in.Args[0]
	}
	if len(in.Args) > 1 {
		b = in.Args[1]
	}

	switch in.Op {
	case ir.OpParam:
		i := int(in.Imm)
		return func(f *frame) {
			if i < len(f.args) {
				f.regs[d] = f.args[i]
			} else {
				f.regs[d] = Reg{}
			}
		}, nil
	case ir.OpGlobalAddr:
		if _, ok := c.resolve(in.Sym); !ok {
			return nil, errors.New("undefined global %v", in.Sym)
		}
		cl := c.e.cell(in.Sym)
		return func(f *frame) { f.regs[d] = PtrReg(cl.load()) }, nil
	case ir.OpConstInt:
		v := IntReg(in.Imm)
		return func(f *frame) { f.regs[d] = v }, nil
	case ir.OpConstVec:
		v := Reg{V: in.Vec}
		return func(f *frame) { f.regs[d] = v }, nil
	case ir.OpAlloca:
		size := (in.Type.Size() + 15) &^ 15
		off := c.frame
		c.frame += size
		return func(f *frame) { f.regs[d] = PtrReg(f.sp.Add(off)) }, nil
	case ir.OpOffset:
		off := int(in.Imm)
		return func(f *frame) { f.regs[d] = PtrReg(f.regs[a].Addr().Add(off)) }, nil
	case ir.OpIndex:
		stride := in.Imm
		return func(f *frame) {
			f.regs[d] = PtrReg(f.regs[a].Addr() + Addr(f.regs[b].Int()*stride))
		}, nil
	case ir.OpLoadPtr:
		return func(f *frame) { f.regs[d] = PtrReg(mem.ReadPtr(f.regs[a].Addr())) }, nil
	case ir.OpStorePtr:
		return func(f *frame) { mem.WritePtr(f.regs[a].Addr(), f.regs[b].Addr()) }, nil
	case ir.OpLoadInt:
		switch in.Imm {
		case 1:
			return func(f *frame) { f.regs[d] = Reg{I: uint64(mem.ReadU8(f.regs[a].Addr()))} }, nil
		case 4:
			return func(f *frame) { f.regs[d] = Reg{I: uint64(mem.ReadU32(f.regs[a].Addr()))} }, nil
		case 8:
			return func(f *frame) { f.regs[d] = Reg{I: mem.ReadU64(f.regs[a].Addr())} }, nil
		}
	case ir.OpStoreInt:
		switch in.Imm {
		case 1:
			return func(f *frame) { mem.WriteU8(f.regs[a].Addr(), uint8(f.regs[b].I)) }, nil
		case 4:
			return func(f *frame) { mem.WriteU32(f.regs[a].Addr(), uint32(f.regs[b].I)) }, nil
		case 8:
			return func(f *frame) { mem.WriteU64(f.regs[a].Addr(), f.regs[b].I) }, nil
		}
	case ir.OpLoadVec:
		return func(f *frame) { f.regs[d] = Reg{V: mem.ReadVec(f.regs[a].Addr())} }, nil
	case ir.OpStoreVec:
		return func(f *frame) { mem.WriteVec(f.regs[a].Addr(), f.regs[b].V) }, nil
	case ir.OpLoadFloat:
		switch in.Imm {
		case 4:
			return func(f *frame) {
				v := float64(mem.ReadF32(f.regs[a].Addr()))
				f.regs[d] = VecReg(v, v)
			}, nil
		case 8:
			return func(f *frame) {
				v := mem.ReadF64(f.regs[a].Addr())
				f.regs[d] = VecReg(v, v)
			}, nil
		}
	case ir.OpStoreFloat:
		switch in.Imm {
		case 4:
			return func(f *frame) { mem.WriteF32(f.regs[a].Addr(), float32(f.regs[b].V[0])) }, nil
		case 8:
			return func(f *frame) { mem.WriteF64(f.regs[a].Addr(), f.regs[b].V[0]) }, nil
		}
	case ir.OpCopy:
		n := int(in.Imm)
		return func(f *frame) { mem.Copy(f.regs[a].Addr(), f.regs[b].Addr(), n) }, nil
	case ir.OpZero:
		n := int(in.Imm)
		return func(f *frame) { mem.Zero(f.regs[a].Addr(), n) }, nil
	case ir.OpVecBin:
		op := ir.VecOp(in.Imm)
		return func(f *frame) {
			x, y := f.regs[a].V, f.regs[b].V
			f.regs[d] = VecReg(op.Eval(x[0], y[0]), op.Eval(x[1], y[1]))
		}, nil
	case ir.OpVecUn:
		op := ir.UnOp(in.Imm)
		return func(f *frame) {
			x := f.regs[a].V
			f.regs[d] = VecReg(op.Eval(x[0]), op.Eval(x[1]))
		}, nil
	case ir.OpShuffle:
		l, r := int(in.Imm), int(in.Imm2)
		return func(f *frame) { f.regs[d] = Reg{V: ir.Shuffle(f.regs[a].V, f.regs[b].V, l, r)} }, nil
	case ir.OpIntBin:
		op := ir.IntOp(in.Imm)
		return func(f *frame) { f.regs[d] = IntReg(op.Eval(f.regs[a].Int(), f.regs[b].Int())) }, nil
	case ir.OpVecToInt:
		return func(f *frame) {
			v := f.regs[a].V[0]
			if math.IsNaN(v) {
				v = 0
			}
			f.regs[d] = IntReg(int64(v))
		}, nil
	case ir.OpIntToVec:
		return func(f *frame) {
			v := float64(f.regs[a].Int())
			f.regs[d] = VecReg(v, v)
		}, nil
	case ir.OpCall:
		return c.call(in), nil
	case ir.OpIf:
		then, err := c.block(in.Then)
		if err != nil {
			return nil, err
		}
		els, err := c.block(in.Else)
		if err != nil {
			return nil, err
		}
		return func(f *frame) {
			if f.regs[a].I != 0 {
				run(then, f)
			} else {
				run(els, f)
			}
		}, nil
	case ir.OpLoop:
		body, err := c.block(in.Body)
		if err != nil {
			return nil, err
		}
		ind := ir.Value(in.Imm)
		return func(f *frame) {
			n := f.regs[a].Int()
			for i := int64(0); i < n && !f.done; i++ {
				f.regs[ind] = IntReg(i)
				run(body, f)
			}
		}, nil
	case ir.OpSwitch:
		cases := make([][]step, len(in.Cases))
		for i, cb := range in.Cases {
			s, err := c.block(cb)
			if err != nil {
				return nil, err
			}
			cases[i] = s
		}
		def, err := c.block(in.Else)
		if err != nil {
			return nil, err
		}
		return func(f *frame) {
			v := f.regs[a].Int()
			if v >= 0 && v < int64(len(cases)) {
				run(cases[v], f)
			} else {
				run(def, f)
			}
		}, nil
	case ir.OpReturn:
		if len(in.Args) == 0 {
			return func(f *frame) { f.done = true }, nil
		}
		return func(f *frame) {
			f.ret = f.regs[a]
			f.done = true
		}, nil
	default:
		return nil, errors.New("unsupported op %v", in.Op)
	}

	return nil, errors.New("%v: unsupported width %d", in.Op, in.Imm)
}

func (c *compiler) call(in *ir.Instr) step {
	s := c.e.slot(in.Sym)
	d := in.Dst
	argRegs := append([]ir.Value(nil), in.Args...)
	e := c.e

	return func(f *frame) {
		impl := s.impl.Load()
		if impl == nil {
			panic(&UnresolvedError{Symbol: s.name})
		}
		args := make([]Reg, len(argRegs))
		for i, r := range argRegs {
			args[i] = f.regs[r]
		}
		ret := (*impl)(e, args)
		if d != ir.NoValue {
			f.regs[d] = ret
		}
	}
}
