package dsp

import (
	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// Library globals: sample rate and BPM as two-lane vectors, and the noise
// generator state.
const (
	EnvSampleRate = 0
	EnvBPM        = 1
	EnvRNG        = 2
)

const (
	DefaultSampleRate = 44100
	DefaultBPM        = 60
	defaultSeed       = 0x2545f4914f6cdd1d
)

var envType = datatype.Struct(datatype.Vec2(), datatype.Vec2(), datatype.Int64())

func EnvType() *datatype.Type { return envType }

// EnvInit is the initial value of the library environment.
func EnvInit() datatype.Constant {
	return datatype.ConstStruct{T: envType, Fields: []datatype.Constant{
		datatype.ConstVec2{L: DefaultSampleRate, R: DefaultSampleRate},
		datatype.ConstVec2{L: DefaultBPM, R: DefaultBPM},
		datatype.ConstInt{T: datatype.Int64(), V: defaultSeed},
	}}
}

// Env is a view of the library environment.
type Env struct {
	m *jit.Memory
	a jit.Addr
}

func NewEnv(m *jit.Memory, a jit.Addr) Env { return Env{m: m, a: a} }

func (e Env) SampleRate() float64 { return e.m.ReadVec(e.a.Add(envType.FieldOffset(EnvSampleRate)))[0] }
func (e Env) BPM() float64        { return e.m.ReadVec(e.a.Add(envType.FieldOffset(EnvBPM)))[0] }

func (e Env) SetSampleRate(v float64) {
	e.m.WriteVec(e.a.Add(envType.FieldOffset(EnvSampleRate)), [2]float64{v, v})
}

func (e Env) SetBPM(v float64) {
	e.m.WriteVec(e.a.Add(envType.FieldOffset(EnvBPM)), [2]float64{v, v})
}

func (e Env) Timing() mir.Timing {
	return mir.Timing{SampleRate: e.SampleRate(), BPM: e.BPM()}
}

// Random returns a uniform value in [-1, 1) and advances the generator.
func (e Env) Random() float64 {
	p := e.a.Add(envType.FieldOffset(EnvRNG))
	x := e.m.ReadU64(p)
	if x == 0 {
		x = defaultSeed
	}
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	e.m.WriteU64(p, x)
	return float64(x>>11)/float64(1<<52) - 1
}

// state is a view of a struct of type t at a.
type state struct {
	m *jit.Memory
	a jit.Addr
	t *datatype.Type
}

func (s state) field(i int) jit.Addr { return s.a.Add(s.t.FieldOffset(i)) }

func (s state) vec(i int) [2]float64       { return s.m.ReadVec(s.field(i)) }
func (s state) setVec(i int, v [2]float64) { s.m.WriteVec(s.field(i), v) }
func (s state) i64(i int) int64            { return int64(s.m.ReadU64(s.field(i))) }
func (s state) setI64(i int, v int64)      { s.m.WriteU64(s.field(i), uint64(v)) }
func (s state) i8(i int) uint8             { return s.m.ReadU8(s.field(i)) }
func (s state) setI8(i int, v uint8)       { s.m.WriteU8(s.field(i), v) }
func (s state) f64(i int) float64          { return s.m.ReadF64(s.field(i)) }
func (s state) setF64(i int, v float64)    { s.m.WriteF64(s.field(i), v) }
func (s state) f32(i int) float32          { return s.m.ReadF32(s.field(i)) }
func (s state) ptr(i int) jit.Addr         { return s.m.ReadPtr(s.field(i)) }
func (s state) setPtr(i int, v jit.Addr)   { s.m.WritePtr(s.field(i), v) }

// sub is the view of child i, which must be a struct.
func (s state) sub(i int) state {
	return state{m: s.m, a: s.field(i), t: s.t.Child(i)}
}
