package datatype

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestStructLayoutPadsToAlignment(t *testing.T) {
	num := Struct(Vec2(), Int8())
	if got := num.Size(); got != 32 {
		t.Fatalf("num size = %d, want 32", got)
	}
	if got := num.Align(); got != 16 {
		t.Fatalf("num align = %d, want 16", got)
	}
	event := Struct(Int8(), Int8(), Int8(), Float32())
	if got := event.Size(); got != 8 {
		t.Fatalf("event size = %d, want 8", got)
	}
	if off := event.FieldOffset(3); off != 4 {
		t.Fatalf("param offset = %d, want 4", off)
	}
}

func TestOffsetWalksNestedPath(t *testing.T) {
	num := Struct(Vec2(), Int8())
	arr := Struct(Int32(), Array(num, 32))
	off, typ := arr.Offset(1, 3, 1)
	want := 16 + 3*32 + 16
	if off != want {
		t.Fatalf("offset = %d, want %d", off, want)
	}
	if typ.Kind != KindInt8 {
		t.Fatalf("type = %v, want i8", typ)
	}
}

func TestEmptyStructHasZeroSize(t *testing.T) {
	s := Struct()
	if s.Size() != 0 {
		t.Fatalf("empty struct size = %d", s.Size())
	}
	outer := Struct(Int64(), s, Int8())
	if outer.FieldOffset(2) != 8 {
		t.Fatalf("field after empty struct at %d, want 8", outer.FieldOffset(2))
	}
}

func TestEqualIsStructural(t *testing.T) {
	a := Struct(Vec2(), Array(Int8(), 4))
	b := Struct(Vec2(), Array(Int8(), 4))
	c := Struct(Vec2(), Array(Int8(), 5))
	if !a.Equal(b) {
		t.Fatalf("expected %v == %v", a, b)
	}
	if a.Equal(c) {
		t.Fatalf("expected %v != %v", a, c)
	}
}

func TestEncodeWritesFieldsAndRelocations(t *testing.T) {
	typ := Struct(Vec2(), Int8(), Pointer())
	buf, relocs, err := Encode(ConstStruct{T: typ, Fields: []Constant{
		ConstVec2{L: 1.5, R: -2},
		ConstInt{T: Int8(), V: 4},
		ConstPointer{Symbol: "scratch", Offset: 48},
	}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(buf) != typ.Size() {
		t.Fatalf("buffer size = %d, want %d", len(buf), typ.Size())
	}
	if l := math.Float64frombits(binary.LittleEndian.Uint64(buf)); l != 1.5 {
		t.Fatalf("left = %v", l)
	}
	if r := math.Float64frombits(binary.LittleEndian.Uint64(buf[8:])); r != -2 {
		t.Fatalf("right = %v", r)
	}
	if buf[16] != 4 {
		t.Fatalf("form byte = %d", buf[16])
	}
	if len(relocs) != 1 || relocs[0].Offset != 24 || relocs[0].Symbol != "scratch" || relocs[0].Addend != 48 {
		t.Fatalf("relocs = %+v", relocs)
	}
}
