package mir

import "strings"

type VarKind int

const (
	VarNum VarKind = iota
	VarMidi
	VarTuple
	VarArray
)

// ArrayCapacity is the fixed number of slots in every array value.
const ArrayCapacity = 32

// MidiCapacity is the maximum number of events in a MIDI value.
const MidiCapacity = 16

// VarType is the type of a statement, control field or value group.
type VarType struct {
	Kind  VarKind
	Items []VarType
	Elem  *VarType
}

func Num() VarType  { return VarType{Kind: VarNum} }
func Midi() VarType { return VarType{Kind: VarMidi} }

func Tuple(items ...VarType) VarType {
	return VarType{Kind: VarTuple, Items: items}
}

func ArrayOf(elem VarType) VarType {
	return VarType{Kind: VarArray, Elem: &elem}
}

func (t VarType) Equal(o VarType) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case VarTuple:
		if len(t.Items) != len(o.Items) {
			return false
		}
		for i := range t.Items {
			if !t.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
	case VarArray:
		return t.Elem.Equal(*o.Elem)
	}
	return true
}

// Base returns the element type for arrays and t otherwise.
func (t VarType) Base() VarType {
	if t.Kind == VarArray {
		return *t.Elem
	}
	return t
}

func (t VarType) String() string {
	switch t.Kind {
	case VarNum:
		return "num"
	case VarMidi:
		return "midi"
	case VarArray:
		return t.Elem.String() + "[]"
	case VarTuple:
		parts := make([]string, len(t.Items))
		for i, item := range t.Items {
			parts[i] = item.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return "invalid"
}
