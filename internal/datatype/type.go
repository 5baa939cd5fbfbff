package datatype

import (
	"fmt"
	"strings"
)

// PointerSize is the size in bytes of every pointer in generated images.
const PointerSize = 8

type Kind int

const (
	KindInt8 Kind = iota
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindVec2
	KindPointer
	KindStruct
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindInt8:
		return "i8"
	case KindInt32:
		return "i32"
	case KindInt64:
		return "i64"
	case KindFloat32:
		return "f32"
	case KindFloat64:
		return "f64"
	case KindVec2:
		return "<2 x f64>"
	case KindPointer:
		return "ptr"
	case KindStruct:
		return "struct"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Type is a low-level memory type. Types are immutable once built; size,
// alignment and field offsets are computed on first use and cached.
type Type struct {
	Kind   Kind
	Fields []*Type
	Elem   *Type
	Len    int

	laidOut bool
	size    int
	align   int
	offsets []int
}

var (
	int8Type    = &Type{Kind: KindInt8}
	int32Type   = &Type{Kind: KindInt32}
	int64Type   = &Type{Kind: KindInt64}
	float32Type = &Type{Kind: KindFloat32}
	float64Type = &Type{Kind: KindFloat64}
	vec2Type    = &Type{Kind: KindVec2}
	pointerType = &Type{Kind: KindPointer}
	emptyStruct = &Type{Kind: KindStruct}
)

func Int8() *Type    { return int8Type }
func Int32() *Type   { return int32Type }
func Int64() *Type   { return int64Type }
func Float32() *Type { return float32Type }
func Float64() *Type { return float64Type }
func Vec2() *Type    { return vec2Type }
func Pointer() *Type { return pointerType }

// Struct builds a struct type. A struct with no fields has size zero.
func Struct(fields ...*Type) *Type {
	if len(fields) == 0 {
		return emptyStruct
	}
	return &Type{Kind: KindStruct, Fields: fields}
}

func Array(elem *Type, n int) *Type {
	return &Type{Kind: KindArray, Elem: elem, Len: n}
}

// Bytes is an opaque byte blob of n bytes, aligned to 8.
func Bytes(n int) *Type {
	words := (n + 7) / 8
	return Array(int64Type, words)
}

func (t *Type) IsScalar() bool {
	return t.Kind != KindStruct && t.Kind != KindArray
}

// NumChildren is the number of fields of a struct or elements of an array.
func (t *Type) NumChildren() int {
	switch t.Kind {
	case KindStruct:
		return len(t.Fields)
	case KindArray:
		return t.Len
	}
	return 0
}

// Child returns the type at index i of a struct or array.
func (t *Type) Child(i int) *Type {
	switch t.Kind {
	case KindStruct:
		if i < 0 || i >= len(t.Fields) {
			panic(fmt.Sprintf("datatype: field %d out of range for %v", i, t))
		}
		return t.Fields[i]
	case KindArray:
		if i < 0 || i >= t.Len {
			panic(fmt.Sprintf("datatype: element %d out of range for %v", i, t))
		}
		return t.Elem
	}
	panic(fmt.Sprintf("datatype: %v has no children", t))
}

// Equal reports structural equality.
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindStruct:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Equal(o.Fields[i]) {
				return false
			}
		}
		return true
	case KindArray:
		return t.Len == o.Len && t.Elem.Equal(o.Elem)
	}
	return true
}

func (t *Type) String() string {
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t *Type) write(sb *strings.Builder) {
	if t == nil {
		sb.WriteString("<nil>")
		return
	}
	switch t.Kind {
	case KindStruct:
		sb.WriteString("{")
		for i, f := range t.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			f.write(sb)
		}
		sb.WriteString("}")
	case KindArray:
		fmt.Fprintf(sb, "[%d x ", t.Len)
		t.Elem.write(sb)
		sb.WriteString("]")
	default:
		sb.WriteString(t.Kind.String())
	}
}
