package datatype

import (
	"encoding/binary"
	"math"

	"github.com/nikandfor/errors"
)

// Constant is a compile-time initializer for a value of some Type.
type Constant interface {
	Type() *Type
}

type ConstInt struct {
	T *Type
	V int64
}

type ConstFloat struct {
	T *Type
	V float64
}

type ConstVec2 struct {
	L, R float64
}

type ConstStruct struct {
	T      *Type
	Fields []Constant
}

type ConstArray struct {
	T     *Type
	Elems []Constant
}

// ConstZero zero-fills a value of type T.
type ConstZero struct {
	T *Type
}

// ConstPointer is the address of Symbol plus Offset, patched at link time.
type ConstPointer struct {
	Symbol string
	Offset int
}

func (c ConstInt) Type() *Type     { return c.T }
func (c ConstFloat) Type() *Type   { return c.T }
func (c ConstVec2) Type() *Type    { return Vec2() }
func (c ConstStruct) Type() *Type  { return c.T }
func (c ConstArray) Type() *Type   { return c.T }
func (c ConstZero) Type() *Type    { return c.T }
func (c ConstPointer) Type() *Type { return Pointer() }

// Reloc asks the linker to store the address of Symbol+Addend at Offset.
type Reloc struct {
	Offset int
	Symbol string
	Addend int
}

// Encode lays c out into a fresh little-endian buffer and returns the
// pointer relocations it needs.
func Encode(c Constant) ([]byte, []Reloc, error) {
	buf := make([]byte, c.Type().Size())
	var relocs []Reloc
	if err := encodeAt(c, buf, 0, &relocs); err != nil {
		return nil, nil, err
	}
	return buf, relocs, nil
}

func encodeAt(c Constant, buf []byte, off int, relocs *[]Reloc) error {
	switch v := c.(type) {
	case ConstZero:
		return nil
	case ConstInt:
		switch v.T.Kind {
		case KindInt8:
			buf[off] = byte(v.V)
		case KindInt32:
			binary.LittleEndian.PutUint32(buf[off:], uint32(v.V))
		case KindInt64:
			binary.LittleEndian.PutUint64(buf[off:], uint64(v.V))
		default:
			return errors.New("int constant of type %v", v.T)
		}
	case ConstFloat:
		switch v.T.Kind {
		case KindFloat32:
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v.V)))
		case KindFloat64:
			binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v.V))
		default:
			return errors.New("float constant of type %v", v.T)
		}
	case ConstVec2:
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v.L))
		binary.LittleEndian.PutUint64(buf[off+8:], math.Float64bits(v.R))
	case ConstPointer:
		*relocs = append(*relocs, Reloc{Offset: off, Symbol: v.Symbol, Addend: v.Offset})
	case ConstStruct:
		if len(v.Fields) != len(v.T.Fields) {
			return errors.New("struct constant has %d fields, type %v wants %d", len(v.Fields), v.T, len(v.T.Fields))
		}
		for i, f := range v.Fields {
			if err := encodeAt(f, buf, off+v.T.FieldOffset(i), relocs); err != nil {
				return err
			}
		}
	case ConstArray:
		if len(v.Elems) > v.T.Len {
			return errors.New("array constant has %d elements, type %v holds %d", len(v.Elems), v.T, v.T.Len)
		}
		for i, e := range v.Elems {
			if err := encodeAt(e, buf, off+v.T.FieldOffset(i), relocs); err != nil {
				return err
			}
		}
	default:
		return errors.New("unknown constant %T", c)
	}
	return nil
}
