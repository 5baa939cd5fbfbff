package analyze

import (
	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// ValueConstant encodes a MIR constant as an initializer of its memory
// type.
func ValueConstant(c mir.ConstantValue) datatype.Constant {
	switch c := c.(type) {
	case mir.ConstantNum:
		return datatype.ConstStruct{T: dsp.NumType(), Fields: []datatype.Constant{
			datatype.ConstVec2{L: c.Left, R: c.Right},
			datatype.ConstInt{T: datatype.Int8(), V: int64(c.Form)},
		}}
	case mir.ConstantTuple:
		fields := make([]datatype.Constant, len(c.Items))
		for i, item := range c.Items {
			fields[i] = ValueConstant(item)
		}
		return datatype.ConstStruct{T: dsp.ValueType(c.VarType()), Fields: fields}
	}
	panic("analyze: unknown constant")
}

// groupInitializer is the initial value of a default-sourced group of type t.
func groupInitializer(t mir.VarType, c mir.ConstantValue) datatype.Constant {
	if c == nil || !c.VarType().Equal(t) {
		return datatype.ConstZero{T: dsp.ValueType(t)}
	}
	return ValueConstant(c)
}
