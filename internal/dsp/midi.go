package dsp

import (
	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

func channel(c *call) {
	ch := uint8(max(int(c.num(1).Left), 0))
	events := ReadMidi(c.m, c.args[0])
	ClearMidi(c.m, c.out)
	for _, ev := range events {
		if ev.Channel == ch {
			PushMidi(c.m, c.out, ev)
		}
	}
}

const (
	noteValue = iota
	noteGate
	noteVelocity
	noteAftertouch
)

var noteType = datatype.Struct(datatype.Float64(), datatype.Float64(), datatype.Float64(), datatype.Float64())

// note tracks the most recent note: its number, whether it is held, its
// velocity and aftertouch.
func note(c *call) {
	st := c.state(noteType)
	n, gate := st.f64(noteValue), st.f64(noteGate)
	vel, after := st.f64(noteVelocity), st.f64(noteAftertouch)

	for _, ev := range ReadMidi(c.m, c.args[0]) {
		switch ev.Kind {
		case NoteOn:
			n, gate, vel = float64(ev.Note), 1, float64(ev.Param)
		case NoteOff:
			if float64(ev.Note) == n {
				gate = 0
			}
		case PolyAftertouch:
			if float64(ev.Note) == n {
				after = float64(ev.Param)
			}
		case ChannelAftertouch:
			after = float64(ev.Param)
		}
	}

	st.setF64(noteValue, n)
	st.setF64(noteGate, gate)
	st.setF64(noteVelocity, vel)
	st.setF64(noteAftertouch, after)

	out := ValueType(mir.FuncNote.ReturnType())
	WriteNum(c.m, c.out.Add(out.FieldOffset(0)), NumOf(n, mir.FormNote))
	WriteNum(c.m, c.out.Add(out.FieldOffset(1)), NumOf(gate, mir.FormNone))
	WriteNum(c.m, c.out.Add(out.FieldOffset(2)), NumOf(vel, mir.FormControl))
	WriteNum(c.m, c.out.Add(out.FieldOffset(3)), NumOf(after, mir.FormControl))
}

const (
	voiceNotes = iota
	voiceHeld
	voiceTail
	voiceUsed
	voiceNext
)

// VoiceReleaseTime is how long, in seconds, a voice stays active after its
// note is released.
const VoiceReleaseTime = 5.0

var voicesType = datatype.Struct(
	datatype.Array(datatype.Int8(), mir.ArrayCapacity),
	datatype.Array(datatype.Int8(), mir.ArrayCapacity),
	datatype.Array(datatype.Int32(), mir.ArrayCapacity),
	datatype.Int32(),
	datatype.Int32(),
)

// voices spreads incoming notes over the array slots. A released slot
// stays active for VoiceReleaseTime so its release can finish, then drops
// out of the bitmap until it plays again.
func voices(c *call) {
	st := c.state(voicesType)
	notes := func(v int) jit.Addr { return st.field(voiceNotes).Add(v) }
	held := func(v int) jit.Addr { return st.field(voiceHeld).Add(v) }
	tail := func(v int) jit.Addr { return st.field(voiceTail).Add(4 * v) }
	used := c.m.ReadU32(st.field(voiceUsed))
	nextVoice := int(c.m.ReadU32(st.field(voiceNext))) % mir.ArrayCapacity

	voice := func(v int) jit.Addr { return ArrayItem(c.out, midiType, v) }
	for v := range mir.ArrayCapacity {
		ClearMidi(c.m, voice(v))
	}
	find := func(n uint8) int {
		for v := range mir.ArrayCapacity {
			if c.m.ReadU8(held(v)) != 0 && c.m.ReadU8(notes(v)) == n {
				return v
			}
		}
		return -1
	}

	for _, ev := range ReadMidi(c.m, c.args[0]) {
		switch ev.Kind {
		case NoteOn:
			v := nextVoice
			for i := range mir.ArrayCapacity {
				cand := (nextVoice + i) % mir.ArrayCapacity
				if c.m.ReadU8(held(cand)) == 0 {
					v = cand
					break
				}
			}
			c.m.WriteU8(notes(v), ev.Note)
			c.m.WriteU8(held(v), 1)
			c.m.WriteU32(tail(v), 0)
			used |= 1 << v
			nextVoice = (v + 1) % mir.ArrayCapacity
			PushMidi(c.m, voice(v), ev)
		case NoteOff, PolyAftertouch:
			v := find(ev.Note)
			if v < 0 {
				continue
			}
			if ev.Kind == NoteOff {
				c.m.WriteU8(held(v), 0)
				c.m.WriteU32(tail(v), uint32(max(VoiceReleaseTime*c.env.SampleRate(), 1)))
			}
			PushMidi(c.m, voice(v), ev)
		default:
			for v := range mir.ArrayCapacity {
				if used&(1<<v) != 0 {
					PushMidi(c.m, voice(v), ev)
				}
			}
		}
	}

	for v := range mir.ArrayCapacity {
		if used&(1<<v) == 0 || c.m.ReadU8(held(v)) != 0 {
			continue
		}
		left := c.m.ReadU32(tail(v))
		if left <= 1 {
			used &^= 1 << v
			left = 1
		}
		c.m.WriteU32(tail(v), left-1)
	}

	c.m.WriteU32(st.field(voiceUsed), used)
	c.m.WriteU32(st.field(voiceNext), uint32(nextVoice))
	WriteBitmap(c.m, c.out, used)
}
