package dsp

import (
	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// Playhead fields of graph and roll control data.
const (
	PlayTime = iota
	PlaySpeed
	PlayPaused
	playInitialized
)

// Capacities of the editable control contents.
const (
	GraphPoints = 32
	RollNotes   = 32
	ScopeLength = 512
)

var (
	emptyType    = datatype.Struct()
	playheadType = datatype.Struct(datatype.Vec2(), datatype.Vec2(), datatype.Int8(), datatype.Int8())

	graphCurveType = datatype.Struct(
		datatype.Int32(),
		datatype.Array(datatype.Float32(), GraphPoints),
		datatype.Array(datatype.Float32(), GraphPoints),
	)

	rollNoteType  = datatype.Struct(datatype.Float32(), datatype.Float32(), datatype.Int8(), datatype.Float32())
	rollNotesType = datatype.Struct(datatype.Int32(), datatype.Array(rollNoteType, RollNotes))

	scopeType = datatype.Struct(
		datatype.Int32(),
		datatype.Array(datatype.Float32(), ScopeLength),
		datatype.Array(datatype.Float32(), ScopeLength),
	)
)

// ControlData is the per-instance scratch type of a control.
func ControlData(t mir.ControlType) *datatype.Type {
	switch t {
	case mir.ControlGraph, mir.ControlRoll:
		return playheadType
	}
	return emptyType
}

// ControlShared is the type shared by every instance of a control.
func ControlShared(t mir.ControlType) *datatype.Type {
	switch t {
	case mir.ControlGraph:
		return graphCurveType
	case mir.ControlRoll:
		return rollNotesType
	}
	return emptyType
}

// ControlUI is the display data of a control, kept only when the image
// includes UI state.
func ControlUI(t mir.ControlType) *datatype.Type {
	if t == mir.ControlScope {
		return scopeType
	}
	return emptyType
}

// ControlUpdateSymbol names the native run on every update for controls
// of kind t, or "" if there is none. Natives take the environment and the
// control's value, data, shared and ui pointers.
func ControlUpdateSymbol(t mir.ControlType) string {
	switch t {
	case mir.ControlGraph:
		return "ctrl.graph.update"
	case mir.ControlRoll:
		return "ctrl.roll.update"
	case mir.ControlScope:
		return "ctrl.scope.update"
	}
	return ""
}

const (
	ctrlEnv = iota
	ctrlValue
	ctrlData
	ctrlShared
	ctrlUI
)

// advance initialises the playhead on first use and moves it by one
// sample worth of beats. It returns the time before and after.
func advance(m *jit.Memory, env Env, data jit.Addr) (from, to float64, paused bool) {
	st := state{m: m, a: data, t: playheadType}
	if st.i8(playInitialized) == 0 {
		st.setVec(PlaySpeed, [2]float64{1, 1})
		st.setI8(playInitialized, 1)
	}
	t := st.vec(PlayTime)
	if st.i8(PlayPaused) != 0 {
		return t[0], t[0], true
	}
	step := 0.0
	if sr := env.SampleRate(); sr > 0 {
		step = st.vec(PlaySpeed)[0] * env.BPM() / (60 * sr)
	}
	st.setVec(PlayTime, [2]float64{t[0] + step, t[1] + step})
	return t[0], t[0] + step, false
}

// GraphPoint is a breakpoint of a graph curve at a time in beats.
type GraphPoint struct {
	Time  float32
	Value float32
}

func SetGraphCurve(m *jit.Memory, shared jit.Addr, points []GraphPoint) {
	points = points[:min(len(points), GraphPoints)]
	m.WriteU32(shared, uint32(len(points)))
	for i, p := range points {
		t, _ := graphCurveType.Offset(1, i)
		v, _ := graphCurveType.Offset(2, i)
		m.WriteF32(shared.Add(t), p.Time)
		m.WriteF32(shared.Add(v), p.Value)
	}
}

func evalCurve(m *jit.Memory, shared jit.Addr, at float64) float64 {
	n := min(int(m.ReadU32(shared)), GraphPoints)
	if n == 0 {
		return 0
	}
	point := func(i int) (float64, float64) {
		t, _ := graphCurveType.Offset(1, i)
		v, _ := graphCurveType.Offset(2, i)
		return float64(m.ReadF32(shared.Add(t))), float64(m.ReadF32(shared.Add(v)))
	}
	pt, pv := point(0)
	if at <= pt {
		return pv
	}
	for i := 1; i < n; i++ {
		t, v := point(i)
		if at < t {
			return pv + (v-pv)*(at-pt)/(t-pt)
		}
		pt, pv = t, v
	}
	return pv
}

func graphUpdate(m *jit.Memory, args []jit.Reg) jit.Reg {
	env := NewEnv(m, args[ctrlEnv].Addr())
	from, _, _ := advance(m, env, args[ctrlData].Addr())
	v := evalCurve(m, args[ctrlShared].Addr(), from)
	WriteNum(m, args[ctrlValue].Addr(), NumOf(v, mir.FormControl))
	return jit.Reg{}
}

// RollNote is a note of a roll control, timed in beats.
type RollNote struct {
	Start    float32
	Length   float32
	Note     uint8
	Velocity float32
}

func SetRollNotes(m *jit.Memory, shared jit.Addr, notes []RollNote) {
	notes = notes[:min(len(notes), RollNotes)]
	m.WriteU32(shared, uint32(len(notes)))
	for i, n := range notes {
		off, _ := rollNotesType.Offset(1, i)
		st := state{m: m, a: shared.Add(off), t: rollNoteType}
		m.WriteF32(st.field(0), n.Start)
		m.WriteF32(st.field(1), n.Length)
		st.setI8(2, n.Note)
		m.WriteF32(st.field(3), n.Velocity)
	}
}

func rollUpdate(m *jit.Memory, args []jit.Reg) jit.Reg {
	env := NewEnv(m, args[ctrlEnv].Addr())
	out := args[ctrlValue].Addr()
	shared := args[ctrlShared].Addr()
	ClearMidi(m, out)

	from, to, paused := advance(m, env, args[ctrlData].Addr())
	if paused {
		return jit.Reg{}
	}
	within := func(t float64) bool { return t >= from && t < to }
	n := min(int(m.ReadU32(shared)), RollNotes)
	for i := range n {
		off, _ := rollNotesType.Offset(1, i)
		st := state{m: m, a: shared.Add(off), t: rollNoteType}
		start := float64(st.f32(0))
		end := start + float64(st.f32(1))
		if within(start) {
			PushMidi(m, out, MidiEvent{Kind: NoteOn, Note: st.i8(2), Param: st.f32(3)})
		}
		if within(end) {
			PushMidi(m, out, MidiEvent{Kind: NoteOff, Note: st.i8(2)})
		}
	}
	return jit.Reg{}
}

func scopeUpdate(m *jit.Memory, args []jit.Reg) jit.Reg {
	ui := args[ctrlUI].Addr()
	if ui.IsNull() {
		return jit.Reg{}
	}
	v := ReadNum(m, args[ctrlValue].Addr())
	pos := int(m.ReadU32(ui)) % ScopeLength
	l, _ := scopeType.Offset(1, pos)
	r, _ := scopeType.Offset(2, pos)
	m.WriteF32(ui.Add(l), float32(v.Left))
	m.WriteF32(ui.Add(r), float32(v.Right))
	m.WriteU32(ui, uint32((pos+1)%ScopeLength))
	return jit.Reg{}
}

// ReadScope returns the scope history oldest first.
func ReadScope(m *jit.Memory, ui jit.Addr) (left, right []float32) {
	pos := int(m.ReadU32(ui)) % ScopeLength
	left = make([]float32, ScopeLength)
	right = make([]float32, ScopeLength)
	for i := range ScopeLength {
		j := (pos + i) % ScopeLength
		l, _ := scopeType.Offset(1, j)
		r, _ := scopeType.Offset(2, j)
		left[i] = m.ReadF32(ui.Add(l))
		right[i] = m.ReadF32(ui.Add(r))
	}
	return left, right
}
