// Package ir is the code representation emitted by codegen and executed by
// the jit. Functions use virtual registers and structured control flow;
// memory is addressed through pointer registers.
package ir

import (
	"encoding/gob"

	"github.com/monadgroup/axiom-sub000/internal/datatype"
)

// Kind is the kind of a register.
type Kind uint8

const (
	Void Kind = iota
	Ptr
	Int
	// Vec is a pair of float64 lanes.
	Vec
)

var kindNames = [...]string{"void", "ptr", "int", "vec"}

func (k Kind) String() string { return kindNames[k] }

// Value is a register number. NoValue marks instructions without a result.
type Value int32

const NoValue Value = -1

type Op uint8

const (
	OpParam Op = iota
	OpGlobalAddr
	OpConstInt
	OpConstVec
	OpAlloca
	OpOffset
	OpIndex
	OpLoadPtr
	OpStorePtr
	OpLoadInt
	OpStoreInt
	OpLoadVec
	OpStoreVec
	OpLoadFloat
	OpStoreFloat
	OpCopy
	OpZero
	OpVecBin
	OpVecUn
	OpShuffle
	OpIntBin
	OpVecToInt
	OpIntToVec
	OpCall
	OpIf
	OpLoop
	OpSwitch
	OpReturn
)

var opNames = [...]string{
	"param", "global", "int", "vec", "alloca", "offset", "index",
	"load.ptr", "store.ptr", "load.int", "store.int", "load.vec", "store.vec",
	"load.float", "store.float", "copy", "zero", "vbin", "vun", "shuffle", "ibin",
	"vec2int", "int2vec", "call", "if", "loop", "switch", "return",
}

func (o Op) String() string { return opNames[o] }

// HasEffect reports whether the instruction does anything besides
// producing its result.
func (o Op) HasEffect() bool {
	switch o {
	case OpStorePtr, OpStoreInt, OpStoreVec, OpStoreFloat, OpCopy, OpZero,
		OpCall, OpIf, OpLoop, OpSwitch, OpReturn:
		return true
	}
	return false
}

// Instr is one instruction. The meaning of Imm and Imm2 depends on Op:
// parameter index, integer constant, byte offset, stride, access width,
// copy size, operator, or shuffle lanes.
type Instr struct {
	Op   Op
	Dst  Value
	Args []Value
	Imm  int64
	Imm2 int64
	Vec  [2]float64
	Sym  string
	Type *datatype.Type

	Then  *Block
	Else  *Block
	Body  *Block
	Cases []*Block
}

type Block struct {
	Instrs []*Instr
}

type Function struct {
	Name   string
	Params []Kind
	Result Kind
	Regs   []Kind
	Body   *Block
}

// Global is a module-level memory object. A nil Init zero-fills it.
type Global struct {
	Name     string
	Type     *datatype.Type
	Init     datatype.Constant
	ReadOnly bool
}

// Module is the unit the jit adds, replaces and removes by name.
type Module struct {
	Name    string
	Globals []*Global
	Funcs   []*Function
}

func NewModule(name string) *Module {
	return &Module{Name: name}
}

func (m *Module) AddGlobal(name string, t *datatype.Type, init datatype.Constant) *Global {
	g := &Global{Name: name, Type: t, Init: init}
	m.Globals = append(m.Globals, g)
	return g
}

func (m *Module) Func(name string) *Function {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (m *Module) Global(name string) *Global {
	for _, g := range m.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// walk calls f for every instruction in b, nested blocks included.
func walk(b *Block, f func(in *Instr)) {
	if b == nil {
		return
	}
	for _, in := range b.Instrs {
		f(in)
		walk(in.Then, f)
		walk(in.Else, f)
		walk(in.Body, f)
		for _, c := range in.Cases {
			walk(c, f)
		}
	}
}

// Walk calls f for every instruction of fn.
func (fn *Function) Walk(f func(in *Instr)) {
	walk(fn.Body, f)
}

func init() {
	gob.Register(datatype.ConstInt{})
	gob.Register(datatype.ConstFloat{})
	gob.Register(datatype.ConstVec2{})
	gob.Register(datatype.ConstStruct{})
	gob.Register(datatype.ConstArray{})
	gob.Register(datatype.ConstZero{})
	gob.Register(datatype.ConstPointer{})
}
