package ir

import "github.com/monadgroup/axiom-sub000/internal/datatype"

// Builder appends instructions to a function. Nested control flow is built
// with callbacks: instructions emitted inside a callback land in the
// corresponding branch or loop body.
type Builder struct {
	fn  *Function
	cur *Block
}

// NewFunction adds a function to the module and returns a builder
// positioned at its entry.
func (m *Module) NewFunction(name string, result Kind, params ...Kind) *Builder {
	fn := &Function{Name: name, Params: params, Result: result, Body: &Block{}}
	m.Funcs = append(m.Funcs, fn)
	return &Builder{fn: fn, cur: fn.Body}
}

func (b *Builder) Func() *Function { return b.fn }

func (b *Builder) reg(k Kind) Value {
	b.fn.Regs = append(b.fn.Regs, k)
	return Value(len(b.fn.Regs) - 1)
}

func (b *Builder) emit(in *Instr, result Kind) Value {
	in.Dst = NoValue
	if result != Void {
		in.Dst = b.reg(result)
	}
	b.cur.Instrs = append(b.cur.Instrs, in)
	return in.Dst
}

func (b *Builder) Param(i int) Value {
	return b.emit(&Instr{Op: OpParam, Imm: int64(i)}, b.fn.Params[i])
}

func (b *Builder) GlobalAddr(sym string) Value {
	return b.emit(&Instr{Op: OpGlobalAddr, Sym: sym}, Ptr)
}

func (b *Builder) ConstInt(v int64) Value {
	return b.emit(&Instr{Op: OpConstInt, Imm: v}, Int)
}

func (b *Builder) ConstVec(l, r float64) Value {
	return b.emit(&Instr{Op: OpConstVec, Vec: [2]float64{l, r}}, Vec)
}

// Splat is a vector with both lanes set to v.
func (b *Builder) Splat(v float64) Value { return b.ConstVec(v, v) }

// Null is the null pointer.
func (b *Builder) Null() Value {
	return b.emit(&Instr{Op: OpConstInt}, Ptr)
}

// Alloca reserves zeroed stack memory for t for the current call.
func (b *Builder) Alloca(t *datatype.Type) Value {
	return b.emit(&Instr{Op: OpAlloca, Type: t}, Ptr)
}

func (b *Builder) Offset(p Value, bytes int) Value {
	if bytes == 0 {
		return p
	}
	return b.emit(&Instr{Op: OpOffset, Args: []Value{p}, Imm: int64(bytes)}, Ptr)
}

// FieldPtr addresses the element of t at path inside the value at p.
func (b *Builder) FieldPtr(p Value, t *datatype.Type, path ...int) Value {
	off, _ := t.Offset(path...)
	return b.Offset(p, off)
}

// Index returns p + idx*stride.
func (b *Builder) Index(p, idx Value, stride int) Value {
	return b.emit(&Instr{Op: OpIndex, Args: []Value{p, idx}, Imm: int64(stride)}, Ptr)
}

func (b *Builder) LoadPtr(p Value) Value {
	return b.emit(&Instr{Op: OpLoadPtr, Args: []Value{p}}, Ptr)
}

func (b *Builder) StorePtr(p, v Value) {
	b.emit(&Instr{Op: OpStorePtr, Args: []Value{p, v}}, Void)
}

// LoadInt zero-extends a width-byte integer.
func (b *Builder) LoadInt(p Value, width int) Value {
	return b.emit(&Instr{Op: OpLoadInt, Args: []Value{p}, Imm: int64(width)}, Int)
}

func (b *Builder) StoreInt(p, v Value, width int) {
	b.emit(&Instr{Op: OpStoreInt, Args: []Value{p, v}, Imm: int64(width)}, Void)
}

func (b *Builder) LoadVec(p Value) Value {
	return b.emit(&Instr{Op: OpLoadVec, Args: []Value{p}}, Vec)
}

func (b *Builder) StoreVec(p, v Value) {
	b.emit(&Instr{Op: OpStoreVec, Args: []Value{p, v}}, Void)
}

// LoadFloat reads a float32 or float64 into both lanes.
func (b *Builder) LoadFloat(p Value, width int) Value {
	return b.emit(&Instr{Op: OpLoadFloat, Args: []Value{p}, Imm: int64(width)}, Vec)
}

// StoreFloat writes the left lane as a float32 or float64.
func (b *Builder) StoreFloat(p, v Value, width int) {
	b.emit(&Instr{Op: OpStoreFloat, Args: []Value{p, v}, Imm: int64(width)}, Void)
}

func (b *Builder) Copy(dst, src Value, size int) {
	if size == 0 {
		return
	}
	b.emit(&Instr{Op: OpCopy, Args: []Value{dst, src}, Imm: int64(size)}, Void)
}

func (b *Builder) Zero(dst Value, size int) {
	if size == 0 {
		return
	}
	b.emit(&Instr{Op: OpZero, Args: []Value{dst}, Imm: int64(size)}, Void)
}

func (b *Builder) VecBin(op VecOp, x, y Value) Value {
	return b.emit(&Instr{Op: OpVecBin, Args: []Value{x, y}, Imm: int64(op)}, Vec)
}

func (b *Builder) VecUn(op UnOp, x Value) Value {
	return b.emit(&Instr{Op: OpVecUn, Args: []Value{x}, Imm: int64(op)}, Vec)
}

// Shuffle picks lanes from the concatenation of x and y: 0 and 1 are x's
// lanes, 2 and 3 are y's.
func (b *Builder) Shuffle(x, y Value, left, right int) Value {
	return b.emit(&Instr{Op: OpShuffle, Args: []Value{x, y}, Imm: int64(left), Imm2: int64(right)}, Vec)
}

func (b *Builder) IntBin(op IntOp, x, y Value) Value {
	return b.emit(&Instr{Op: OpIntBin, Args: []Value{x, y}, Imm: int64(op)}, Int)
}

// VecToInt truncates the left lane.
func (b *Builder) VecToInt(v Value) Value {
	return b.emit(&Instr{Op: OpVecToInt, Args: []Value{v}}, Int)
}

func (b *Builder) IntToVec(v Value) Value {
	return b.emit(&Instr{Op: OpIntToVec, Args: []Value{v}}, Vec)
}

// Call calls a function or native by symbol name.
func (b *Builder) Call(sym string, result Kind, args ...Value) Value {
	return b.emit(&Instr{Op: OpCall, Sym: sym, Args: args}, result)
}

func (b *Builder) nested(body func()) *Block {
	blk := &Block{}
	if body == nil {
		return blk
	}
	saved := b.cur
	b.cur = blk
	body()
	b.cur = saved
	return blk
}

// If runs then when cond is non-zero and els otherwise. Either may be nil.
func (b *Builder) If(cond Value, then, els func()) {
	in := &Instr{Op: OpIf, Args: []Value{cond}}
	in.Then = b.nested(then)
	in.Else = b.nested(els)
	b.emit(in, Void)
}

// Loop runs body count times with the induction variable counting from 0.
func (b *Builder) Loop(count Value, body func(i Value)) {
	in := &Instr{Op: OpLoop, Args: []Value{count}}
	i := b.reg(Int)
	in.Imm = int64(i)
	in.Body = b.nested(func() { body(i) })
	b.emit(in, Void)
}

// Switch runs case v for v in [0, n) and def otherwise.
func (b *Builder) Switch(v Value, n int, cas func(i int), def func()) {
	in := &Instr{Op: OpSwitch, Args: []Value{v}}
	for i := 0; i < n; i++ {
		in.Cases = append(in.Cases, b.nested(func() { cas(i) }))
	}
	in.Else = b.nested(def)
	b.emit(in, Void)
}

// Return leaves the function. v is NoValue for void functions.
func (b *Builder) Return(v Value) {
	in := &Instr{Op: OpReturn}
	if v != NoValue {
		in.Args = []Value{v}
	}
	b.emit(in, Void)
}
