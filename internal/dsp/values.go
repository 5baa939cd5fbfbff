// Package dsp holds the in-memory value representations shared by the
// layout analyzer and generated code, and the stateful routines generated
// code calls into.
package dsp

import (
	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// Field indexes of the value structs.
const (
	NumValue = 0
	NumForm  = 1

	MidiCount  = 0
	MidiEvents = 1

	EventKind    = 0
	EventChannel = 1
	EventNote    = 2
	EventParam   = 3

	ArrayBitmap = 0
	ArrayItems  = 1
)

var (
	numType   = datatype.Struct(datatype.Vec2(), datatype.Int8())
	eventType = datatype.Struct(datatype.Int8(), datatype.Int8(), datatype.Int8(), datatype.Float32())
	midiType  = datatype.Struct(datatype.Int8(), datatype.Array(eventType, mir.MidiCapacity))
)

func NumType() *datatype.Type       { return numType }
func MidiEventType() *datatype.Type { return eventType }
func MidiType() *datatype.Type      { return midiType }

// ArrayType is the fixed-capacity array of elem with its activity bitmap.
func ArrayType(elem *datatype.Type) *datatype.Type {
	return datatype.Struct(datatype.Int32(), datatype.Array(elem, mir.ArrayCapacity))
}

// ValueType maps a MIR type to its memory type.
func ValueType(t mir.VarType) *datatype.Type {
	switch t.Kind {
	case mir.VarNum:
		return numType
	case mir.VarMidi:
		return midiType
	case mir.VarArray:
		return ArrayType(ValueType(*t.Elem))
	case mir.VarTuple:
		items := make([]*datatype.Type, len(t.Items))
		for i, item := range t.Items {
			items[i] = ValueType(item)
		}
		return datatype.Struct(items...)
	}
	panic("dsp: unknown var type")
}

// Num is a decoded numeric value.
type Num struct {
	Left, Right float64
	Form        mir.FormType
}

func NumOf(v float64, form mir.FormType) Num { return Num{Left: v, Right: v, Form: form} }

func (n Num) Constant() mir.ConstantNum {
	return mir.ConstantNum{Left: n.Left, Right: n.Right, Form: n.Form}
}

func (n Num) Vec() [2]float64 { return [2]float64{n.Left, n.Right} }

func ReadNum(m *jit.Memory, a jit.Addr) Num {
	v := m.ReadVec(a)
	return Num{Left: v[0], Right: v[1], Form: mir.FormType(m.ReadU8(a.Add(numType.FieldOffset(NumForm))))}
}

func WriteNum(m *jit.Memory, a jit.Addr, n Num) {
	m.WriteVec(a, n.Vec())
	m.WriteU8(a.Add(numType.FieldOffset(NumForm)), uint8(n.Form))
}

// MidiEventKind is the kind of a MIDI event.
type MidiEventKind uint8

const (
	NoteOn MidiEventKind = iota
	NoteOff
	PolyAftertouch
	ChannelAftertouch
	PitchWheel
)

var eventNames = [...]string{"note-on", "note-off", "poly-aftertouch", "channel-aftertouch", "pitch-wheel"}

func (k MidiEventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

type MidiEvent struct {
	Kind    MidiEventKind
	Channel uint8
	Note    uint8
	Param   float32
}

func eventAddr(a jit.Addr, i int) jit.Addr {
	off, _ := midiType.Offset(MidiEvents, i)
	return a.Add(off)
}

func ReadEvent(m *jit.Memory, a jit.Addr) MidiEvent {
	return MidiEvent{
		Kind:    MidiEventKind(m.ReadU8(a)),
		Channel: m.ReadU8(a.Add(eventType.FieldOffset(EventChannel))),
		Note:    m.ReadU8(a.Add(eventType.FieldOffset(EventNote))),
		Param:   m.ReadF32(a.Add(eventType.FieldOffset(EventParam))),
	}
}

func WriteEvent(m *jit.Memory, a jit.Addr, ev MidiEvent) {
	m.WriteU8(a, uint8(ev.Kind))
	m.WriteU8(a.Add(eventType.FieldOffset(EventChannel)), ev.Channel)
	m.WriteU8(a.Add(eventType.FieldOffset(EventNote)), ev.Note)
	m.WriteF32(a.Add(eventType.FieldOffset(EventParam)), ev.Param)
}

// ReadMidi returns the events held by the MIDI value at a.
func ReadMidi(m *jit.Memory, a jit.Addr) []MidiEvent {
	n := min(int(m.ReadU8(a)), mir.MidiCapacity)
	events := make([]MidiEvent, n)
	for i := range events {
		events[i] = ReadEvent(m, eventAddr(a, i))
	}
	return events
}

// PushMidi appends ev to the MIDI value at a. Once the value is full the
// event is dropped and false is returned.
func PushMidi(m *jit.Memory, a jit.Addr, ev MidiEvent) bool {
	n := int(m.ReadU8(a))
	if n >= mir.MidiCapacity {
		return false
	}
	WriteEvent(m, eventAddr(a, n), ev)
	m.WriteU8(a, uint8(n+1))
	return true
}

func ClearMidi(m *jit.Memory, a jit.Addr) { m.WriteU8(a, 0) }

// ArrayItem returns the address of item i of an array of elem at a.
func ArrayItem(a jit.Addr, elem *datatype.Type, i int) jit.Addr {
	off, _ := ArrayType(elem).Offset(ArrayItems, i)
	return a.Add(off)
}

func ReadBitmap(m *jit.Memory, a jit.Addr) uint32     { return m.ReadU32(a) }
func WriteBitmap(m *jit.Memory, a jit.Addr, v uint32) { m.WriteU32(a, v) }
