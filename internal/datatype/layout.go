package datatype

// Size returns the size in bytes of t, including tail padding.
func (t *Type) Size() int {
	t.layout()
	return t.size
}

// Align returns the alignment in bytes of t.
func (t *Type) Align() int {
	t.layout()
	return t.align
}

// FieldOffset returns the byte offset of child i.
func (t *Type) FieldOffset(i int) int {
	t.layout()
	switch t.Kind {
	case KindStruct:
		return t.offsets[i]
	case KindArray:
		return i * t.Elem.Size()
	}
	panic("datatype: offset of scalar child")
}

// Offset walks path from t and returns the byte offset and type it ends at.
func (t *Type) Offset(path ...int) (int, *Type) {
	off := 0
	cur := t
	for _, idx := range path {
		child := cur.Child(idx)
		off += cur.FieldOffset(idx)
		cur = child
	}
	return off, cur
}

func (t *Type) layout() {
	if t.laidOut {
		return
	}
	switch t.Kind {
	case KindInt8:
		t.size, t.align = 1, 1
	case KindInt32, KindFloat32:
		t.size, t.align = 4, 4
	case KindInt64, KindFloat64, KindPointer:
		t.size, t.align = 8, 8
	case KindVec2:
		t.size, t.align = 16, 16
	case KindArray:
		t.size = t.Elem.Size() * t.Len
		t.align = t.Elem.Align()
	case KindStruct:
		t.offsets = make([]int, len(t.Fields))
		off, align := 0, 1
		for i, f := range t.Fields {
			a := f.Align()
			off = alignTo(off, a)
			t.offsets[i] = off
			off += f.Size()
			if a > align {
				align = a
			}
		}
		t.size = alignTo(off, align)
		t.align = align
	}
	t.laidOut = true
}

func alignTo(v, a int) int {
	if a <= 1 {
		return v
	}
	return (v + a - 1) / a * a
}
