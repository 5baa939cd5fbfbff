package analyze

import (
	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// Fields of a control's pointer struct.
const (
	ControlValue = iota
	ControlData
	ControlShared
	ControlUI
)

type Options struct {
	// IncludeUI keeps display data (scope history) in shared storage.
	IncludeUI bool
}

// BlockLayout is the storage of one block instance and the pointers its
// code receives: one pointer struct per control, then one data pointer
// per function call.
type BlockLayout struct {
	Block *mir.Block

	Scratch  *datatype.Type
	Shared   *datatype.Type
	Constant *datatype.Type

	ConstantValue datatype.Constant
	Pointers      PointerSource

	// SharedIndex is the shared field of each control; its UI data, when
	// kept, is the field after it.
	SharedIndex []int
	// CallSlots is the statement index of each function call; call j's
	// data is scratch field len(Controls)+j.
	CallSlots []int
	IncludeUI bool
}

// AnalyzeBlock lays out b.
func AnalyzeBlock(b *mir.Block, opts Options) *BlockLayout {
	l := &BlockLayout{Block: b, IncludeUI: opts.IncludeUI, CallSlots: b.CallSlots()}

	var scratch, shared, constant []*datatype.Type
	var ptrs []PointerSource
	var consts []datatype.Constant

	for i, c := range b.Controls {
		scratch = append(scratch, dsp.ControlData(c.Type))

		sh := len(shared)
		l.SharedIndex = append(l.SharedIndex, sh)
		shared = append(shared, dsp.ControlShared(c.Type))

		fields := []PointerSource{Socket(i), Scratch(i), Shared(sh)}
		if opts.IncludeUI {
			shared = append(shared, dsp.ControlUI(c.Type))
			fields = append(fields, Shared(sh+1))
		}
		ptrs = append(ptrs, Aggregate(AggregateStruct, fields...))

		ct := datatype.Struct()
		constant = append(constant, ct)
		consts = append(consts, datatype.ConstZero{T: ct})
	}

	for _, idx := range l.CallSlots {
		call := b.Statements[idx].(mir.CallFunc)
		ptrs = append(ptrs, Scratch(len(scratch)))
		scratch = append(scratch, dsp.FunctionData(call.Function))
	}

	l.Scratch = datatype.Struct(scratch...)
	l.Shared = datatype.Struct(shared...)
	l.Constant = datatype.Struct(constant...)
	l.ConstantValue = datatype.ConstStruct{T: l.Constant, Fields: consts}
	l.Pointers = Aggregate(AggregateStruct, ptrs...)
	return l
}

// PointersType is the struct the block's code receives a pointer to.
func (l *BlockLayout) PointersType() *datatype.Type { return l.Pointers.Type() }

// ControlPointersIndex is the pointers field of control i.
func (l *BlockLayout) ControlPointersIndex(i int) int { return i }

// CallPointersIndex is the pointers field of the j-th function call.
func (l *BlockLayout) CallPointersIndex(j int) int { return len(l.Block.Controls) + j }
