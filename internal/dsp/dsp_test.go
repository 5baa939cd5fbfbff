package dsp

import (
	"math"
	"testing"

	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

type rig struct {
	m   *jit.Memory
	env jit.Addr
}

func newRig(t *testing.T, sampleRate float64) *rig {
	t.Helper()
	m := jit.NewMemory(false)
	env := m.Alloc(envType.Size(), "env")
	buf, _, err := datatype.Encode(EnvInit())
	if err != nil {
		t.Fatalf("encode env: %v", err)
	}
	copy(m.Slice(env, len(buf)), buf)
	NewEnv(m, env).SetSampleRate(sampleRate)
	return &rig{m: m, env: env}
}

func (r *rig) alloc(t *datatype.Type) jit.Addr { return r.m.Alloc(t.Size(), "test") }

func (r *rig) num(v float64, form mir.FormType) jit.Addr {
	a := r.alloc(numType)
	WriteNum(r.m, a, NumOf(v, form))
	return a
}

func (r *rig) set(a jit.Addr, v float64, form mir.FormType) { WriteNum(r.m, a, NumOf(v, form)) }

func (r *rig) call(f mir.Function, data, out jit.Addr, args ...jit.Addr) {
	regs := []jit.Reg{jit.PtrReg(r.env), jit.PtrReg(data), jit.PtrReg(out)}
	for _, a := range args {
		regs = append(regs, jit.PtrReg(a))
	}
	wrap(f, natives[f].update)(r.m, regs)
}

func TestPushMidiSaturates(t *testing.T) {
	r := newRig(t, 48000)
	a := r.alloc(midiType)
	for i := range 20 {
		ok := PushMidi(r.m, a, MidiEvent{Kind: NoteOn, Note: uint8(i)})
		if want := i < mir.MidiCapacity; ok != want {
			t.Fatalf("push %d = %v, want %v", i, ok, want)
		}
	}
	events := ReadMidi(r.m, a)
	if len(events) != mir.MidiCapacity {
		t.Fatalf("count = %d, want %d", len(events), mir.MidiCapacity)
	}
	for i, ev := range events {
		if int(ev.Note) != i {
			t.Fatalf("event %d note = %d, want %d", i, ev.Note, i)
		}
	}
}

func TestDelayGrowsToPowerOfTwo(t *testing.T) {
	r := newRig(t, 48000)
	data := r.alloc(delayType)
	out := r.alloc(numType)
	x := r.num(0.5, mir.FormNone)
	tm := r.num(1.0, mir.FormNone)
	reserve := r.num(2.0, mir.FormNone)

	r.call(mir.FuncDelay, data, out, x, tm, reserve)
	chans := ReadDelay(r.m, data)
	for l, ch := range chans {
		if ch.Size != 131072 {
			t.Fatalf("lane %d size = %d, want 131072", l, ch.Size)
		}
		if got := r.m.RegionSize(ch.Buffer); got != 131072*8 {
			t.Fatalf("lane %d buffer = %d bytes", l, got)
		}
		if v := r.m.ReadF64(ch.Buffer.Add(100000 * 8)); v != 0 {
			t.Fatalf("lane %d not zero-filled: %v", l, v)
		}
	}

	r.set(reserve, 1.0, mir.FormNone)
	r.call(mir.FuncDelay, data, out, x, tm, reserve)
	for l, ch := range ReadDelay(r.m, data) {
		if ch.Size != 131072 {
			t.Fatalf("lane %d shrank to %d", l, ch.Size)
		}
		if ch.Pos != 2 {
			t.Fatalf("lane %d pos = %d, want 2", l, ch.Pos)
		}
	}

	live := r.m.Live()
	wrap(mir.FuncDelay, natives[mir.FuncDelay].destruct)(r.m, []jit.Reg{jit.PtrReg(r.env), jit.PtrReg(data)})
	if r.m.Live() != live-2 {
		t.Fatalf("destruct freed %d buffers, want 2", live-r.m.Live())
	}
}

func TestDelayOutputsPastInput(t *testing.T) {
	r := newRig(t, 1000)
	data := r.alloc(delayType)
	out := r.alloc(numType)
	x := r.num(0, mir.FormNone)
	tm := r.num(3, mir.FormSamples)

	var got []float64
	for i := range 6 {
		r.set(x, float64(i+1), mir.FormNone)
		r.call(mir.FuncDelay, data, out, x, tm, tm)
		got = append(got, ReadNum(r.m, out).Left)
	}
	want := []float64{0, 0, 0, 1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("outputs = %v, want %v", got, want)
		}
	}
}

func TestBiquadCachesCoefficients(t *testing.T) {
	r := newRig(t, 48000)
	data := r.alloc(biquadType)
	out := r.alloc(numType)
	x := r.num(1, mir.FormNone)
	freq := r.num(1000, mir.FormFrequency)
	q := r.num(0.707, mir.FormNone)

	r.call(mir.FuncLowBqFilter, data, out, x, freq, q)
	first := ReadBiquad(r.m, data)
	if !first.Primed || first.Freq != [2]float64{1000, 1000} {
		t.Fatalf("cache not filled: %+v", first)
	}

	// overwrite b0: an unchanged cache must keep it
	st := state{m: r.m, a: data, t: biquadType}
	st.setVec(bqB0, [2]float64{42, 42})
	r.call(mir.FuncLowBqFilter, data, out, x, freq, q)
	if got := ReadBiquad(r.m, data).Coeffs[0]; got != [2]float64{42, 42} {
		t.Fatalf("coefficients recomputed with identical inputs: %v", got)
	}

	r.set(freq, 2000, mir.FormFrequency)
	r.call(mir.FuncLowBqFilter, data, out, x, freq, q)
	third := ReadBiquad(r.m, data)
	if third.Coeffs[0] == [2]float64{42, 42} {
		t.Fatalf("coefficients not recomputed after frequency change")
	}
	want := biquadCoeffs(BiquadLow, 2000, 0.707, 0, 48000)
	if math.Abs(third.Coeffs[0][0]-want[0]) > 1e-12 {
		t.Fatalf("b0 = %v, want %v", third.Coeffs[0][0], want[0])
	}
}

func TestLowpassPassesDC(t *testing.T) {
	for _, kind := range []BiquadKind{BiquadLow, BiquadLowShelf} {
		k := biquadCoeffs(kind, 500, 0.707, 0, 48000)
		gain := (k[0] + k[1] + k[2]) / (1 + k[3] + k[4])
		if math.Abs(gain-1) > 1e-9 {
			t.Fatalf("kind %d DC gain = %v, want 1", kind, gain)
		}
	}
}

func TestOscillatorAdvancesPhase(t *testing.T) {
	r := newRig(t, 48000)
	data := r.alloc(oscType)
	out := r.alloc(numType)
	freq := r.num(1000, mir.FormFrequency)
	phase := r.num(0, mir.FormNone)

	var last Num
	for range 13 {
		r.call(mir.FuncSinOsc, data, out, freq, phase)
		last = ReadNum(r.m, out)
	}
	// the 13th sample is taken at phase 12/48 = 0.25
	if math.Abs(last.Left-1) > 1e-9 {
		t.Fatalf("sin at quarter phase = %v, want 1", last.Left)
	}
	if last.Form != mir.FormOscillator {
		t.Fatalf("form = %v, want osc", last.Form)
	}
}

func TestOscillatorConvertsNoteInput(t *testing.T) {
	r := newRig(t, 44000)
	data := r.alloc(oscType)
	out := r.alloc(numType)
	r.call(mir.FuncSawOsc, data, out, r.num(69, mir.FormNote), r.num(0, mir.FormNone))
	if got := state{m: r.m, a: data, t: oscType}.vec(0)[0]; math.Abs(got-0.01) > 1e-12 {
		t.Fatalf("phase after one sample = %v, want 0.01", got)
	}
}

func TestAdsrStages(t *testing.T) {
	r := newRig(t, 10)
	data := r.alloc(adsrType)
	out := r.alloc(numType)
	gate := r.num(1, mir.FormNone)
	a := r.num(0.2, mir.FormSeconds)
	d := r.num(0.2, mir.FormSeconds)
	s := r.num(0.5, mir.FormNone)
	rel := r.num(0.2, mir.FormSeconds)

	step := func() float64 {
		r.call(mir.FuncAdsr, data, out, gate, a, d, s, rel)
		return ReadNum(r.m, out).Left
	}
	var got []float64
	for range 6 {
		got = append(got, step())
	}
	want := []float64{0, 0.5, 1, 0.75, 0.5, 0.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("attack/decay = %v, want %v", got, want)
		}
	}

	r.set(gate, 0, mir.FormNone)
	got = got[:0]
	for range 3 {
		got = append(got, step())
	}
	want = []float64{0.5, 0.25, 0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("release = %v, want %v", got, want)
		}
	}
	if st := ReadAdsr(r.m, data)[0].Stage; st != AdsrNotActive {
		t.Fatalf("stage = %v, want not active", st)
	}
}

func TestVoicesAllocateAndRelease(t *testing.T) {
	r := newRig(t, 48000)
	data := r.alloc(voicesType)
	arr := ArrayType(midiType)
	out := r.alloc(arr)
	in := r.alloc(midiType)

	PushMidi(r.m, in, MidiEvent{Kind: NoteOn, Note: 60, Param: 1})
	PushMidi(r.m, in, MidiEvent{Kind: NoteOn, Note: 64, Param: 1})
	r.call(mir.FuncVoices, data, out, in)
	if bm := ReadBitmap(r.m, out); bm != 0b11 {
		t.Fatalf("bitmap = %b, want 11", bm)
	}
	if ev := ReadMidi(r.m, ArrayItem(out, midiType, 1)); len(ev) != 1 || ev[0].Note != 64 {
		t.Fatalf("voice 1 events = %+v", ev)
	}

	ClearMidi(r.m, in)
	PushMidi(r.m, in, MidiEvent{Kind: NoteOff, Note: 60})
	r.call(mir.FuncVoices, data, out, in)
	if ev := ReadMidi(r.m, ArrayItem(out, midiType, 0)); len(ev) != 1 || ev[0].Kind != NoteOff {
		t.Fatalf("voice 0 events = %+v", ev)
	}
	if ev := ReadMidi(r.m, ArrayItem(out, midiType, 1)); len(ev) != 0 {
		t.Fatalf("voice 1 should be quiet, got %+v", ev)
	}
	if bm := ReadBitmap(r.m, out); bm != 0b11 {
		t.Fatalf("released voice bit cleared: %b", bm)
	}

	ClearMidi(r.m, in)
	PushMidi(r.m, in, MidiEvent{Kind: NoteOn, Note: 67, Param: 1})
	r.call(mir.FuncVoices, data, out, in)
	if ev := ReadMidi(r.m, ArrayItem(out, midiType, 2)); len(ev) != 1 || ev[0].Note != 67 {
		t.Fatalf("new note should take the next free voice, got %+v", ev)
	}
}

func TestVoicesGoQuietAfterReleaseTime(t *testing.T) {
	const sampleRate = 10
	r := newRig(t, sampleRate)
	data := r.alloc(voicesType)
	out := r.alloc(ArrayType(midiType))
	in := r.alloc(midiType)

	PushMidi(r.m, in, MidiEvent{Kind: NoteOn, Note: 60, Param: 1})
	PushMidi(r.m, in, MidiEvent{Kind: NoteOn, Note: 64, Param: 1})
	r.call(mir.FuncVoices, data, out, in)
	ClearMidi(r.m, in)
	PushMidi(r.m, in, MidiEvent{Kind: NoteOff, Note: 60})
	r.call(mir.FuncVoices, data, out, in)
	ClearMidi(r.m, in)

	tail := int(VoiceReleaseTime * sampleRate)
	for range tail - 10 {
		r.call(mir.FuncVoices, data, out, in)
	}
	if bm := ReadBitmap(r.m, out); bm != 0b11 {
		t.Fatalf("bitmap during release = %b, want 11", bm)
	}
	for range 20 {
		r.call(mir.FuncVoices, data, out, in)
	}
	if bm := ReadBitmap(r.m, out); bm != 0b10 {
		t.Fatalf("bitmap after release = %b, want 10", bm)
	}

	PushMidi(r.m, in, MidiEvent{Kind: NoteOn, Note: 67, Param: 1})
	r.call(mir.FuncVoices, data, out, in)
	if bm := ReadBitmap(r.m, out); bm != 0b110 {
		t.Fatalf("bitmap after new note = %b, want 110", bm)
	}
}

func TestIndexedClampsCount(t *testing.T) {
	r := newRig(t, 48000)
	out := r.alloc(ArrayType(numType))
	for _, tc := range []struct {
		n    float64
		want uint32
	}{
		{-3, 0},
		{3, 0b111},
		{100, 0xffffffff},
	} {
		r.call(mir.FuncIndexed, 0, out, r.num(tc.n, mir.FormNone))
		if bm := ReadBitmap(r.m, out); bm != tc.want {
			t.Fatalf("indexed(%v) bitmap = %b, want %b", tc.n, bm, tc.want)
		}
	}

	sum := r.alloc(numType)
	r.call(mir.FuncMixdown, 0, sum, out)
	if got := ReadNum(r.m, sum).Left; got != 31*32/2 {
		t.Fatalf("mixdown = %v, want %v", got, 31*32/2)
	}
}

func TestNoteTracksLatestNote(t *testing.T) {
	r := newRig(t, 48000)
	data := r.alloc(noteType)
	outType := ValueType(mir.FuncNote.ReturnType())
	out := r.alloc(outType)
	in := r.alloc(midiType)

	PushMidi(r.m, in, MidiEvent{Kind: NoteOn, Note: 62, Param: 0.5})
	r.call(mir.FuncNote, data, out, in)
	if n := ReadNum(r.m, out); n.Left != 62 || n.Form != mir.FormNote {
		t.Fatalf("note = %+v", n)
	}
	if g := ReadNum(r.m, out.Add(outType.FieldOffset(1))); g.Left != 1 {
		t.Fatalf("gate = %v, want 1", g.Left)
	}

	ClearMidi(r.m, in)
	PushMidi(r.m, in, MidiEvent{Kind: NoteOff, Note: 62})
	r.call(mir.FuncNote, data, out, in)
	if g := ReadNum(r.m, out.Add(outType.FieldOffset(1))); g.Left != 0 {
		t.Fatalf("gate after note off = %v, want 0", g.Left)
	}
}

func TestRollEmitsNotesOnce(t *testing.T) {
	r := newRig(t, 4)
	NewEnv(r.m, r.env).SetBPM(60)
	data := r.alloc(playheadType)
	shared := r.alloc(rollNotesType)
	out := r.alloc(midiType)
	SetRollNotes(r.m, shared, []RollNote{{Start: 0.5, Length: 0.5, Note: 60, Velocity: 1}})

	var kinds []MidiEventKind
	for range 8 {
		rollUpdate(r.m, []jit.Reg{jit.PtrReg(r.env), jit.PtrReg(out), jit.PtrReg(data), jit.PtrReg(shared), {}})
		for _, ev := range ReadMidi(r.m, out) {
			kinds = append(kinds, ev.Kind)
		}
	}
	if len(kinds) != 2 || kinds[0] != NoteOn || kinds[1] != NoteOff {
		t.Fatalf("events = %v, want [note-on note-off]", kinds)
	}
}
