package dsp

import (
	"math"

	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

type BiquadKind int

const (
	BiquadLow BiquadKind = iota
	BiquadHigh
	BiquadBand
	BiquadNotch
	BiquadAllpass
	BiquadPeak
	BiquadLowShelf
	BiquadHighShelf
)

// Biquad state fields.
const (
	bqB0 = iota
	bqB1
	bqB2
	bqA1
	bqA2
	bqX1
	bqX2
	bqY1
	bqY2
	bqFreq
	bqQ
	bqGain
	bqPrimed
)

var biquadType = func() *datatype.Type {
	fields := make([]*datatype.Type, bqPrimed+1)
	for i := range bqPrimed {
		fields[i] = datatype.Vec2()
	}
	fields[bqPrimed] = datatype.Int8()
	return datatype.Struct(fields...)
}()

// Biquad is a decoded biquad state.
type Biquad struct {
	Coeffs  [5][2]float64
	Freq    [2]float64
	Q       [2]float64
	Gain    [2]float64
	Primed  bool
	History [4][2]float64
}

func ReadBiquad(m *jit.Memory, a jit.Addr) Biquad {
	st := state{m: m, a: a, t: biquadType}
	var b Biquad
	for i := range b.Coeffs {
		b.Coeffs[i] = st.vec(bqB0 + i)
	}
	for i := range b.History {
		b.History[i] = st.vec(bqX1 + i)
	}
	b.Freq, b.Q, b.Gain = st.vec(bqFreq), st.vec(bqQ), st.vec(bqGain)
	b.Primed = st.i8(bqPrimed) != 0
	return b
}

// biquadCoeffs returns b0, b1, b2, a1, a2 normalised by a0.
func biquadCoeffs(kind BiquadKind, freq, q, gain, sr float64) [5]float64 {
	freq = math.Max(1e-3, math.Min(freq, sr/2*0.999))
	if q <= 0 {
		q = 1e-3
	}
	w0 := 2 * math.Pi * freq / sr
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / (2 * q)
	A := math.Pow(10, gain/40)

	var b0, b1, b2, a0, a1, a2 float64
	switch kind {
	case BiquadLow:
		b0, b1, b2 = (1-cosw)/2, 1-cosw, (1-cosw)/2
		a0, a1, a2 = 1+alpha, -2*cosw, 1-alpha
	case BiquadHigh:
		b0, b1, b2 = (1+cosw)/2, -(1 + cosw), (1+cosw)/2
		a0, a1, a2 = 1+alpha, -2*cosw, 1-alpha
	case BiquadBand:
		b0, b1, b2 = alpha, 0, -alpha
		a0, a1, a2 = 1+alpha, -2*cosw, 1-alpha
	case BiquadNotch:
		b0, b1, b2 = 1, -2*cosw, 1
		a0, a1, a2 = 1+alpha, -2*cosw, 1-alpha
	case BiquadAllpass:
		b0, b1, b2 = 1-alpha, -2*cosw, 1+alpha
		a0, a1, a2 = 1+alpha, -2*cosw, 1-alpha
	case BiquadPeak:
		b0, b1, b2 = 1+alpha*A, -2*cosw, 1-alpha*A
		a0, a1, a2 = 1+alpha/A, -2*cosw, 1-alpha/A
	case BiquadLowShelf:
		sq := 2 * math.Sqrt(A) * alpha
		b0 = A * ((A + 1) - (A-1)*cosw + sq)
		b1 = 2 * A * ((A - 1) - (A+1)*cosw)
		b2 = A * ((A + 1) - (A-1)*cosw - sq)
		a0 = (A + 1) + (A-1)*cosw + sq
		a1 = -2 * ((A - 1) + (A+1)*cosw)
		a2 = (A + 1) + (A-1)*cosw - sq
	case BiquadHighShelf:
		sq := 2 * math.Sqrt(A) * alpha
		b0 = A * ((A + 1) + (A-1)*cosw + sq)
		b1 = -2 * A * ((A - 1) + (A+1)*cosw)
		b2 = A * ((A + 1) + (A-1)*cosw - sq)
		a0 = (A + 1) - (A-1)*cosw + sq
		a1 = 2 * ((A - 1) - (A+1)*cosw)
		a2 = (A + 1) - (A-1)*cosw - sq
	}
	return [5]float64{b0 / a0, b1 / a0, b2 / a0, a1 / a0, a2 / a0}
}

func biquad(kind BiquadKind, hasGain bool) func(c *call) {
	return func(c *call) {
		st := c.state(biquadType)
		x := c.num(0)
		freq := c.as(1, mir.FormFrequency)
		q := c.num(2).Vec()
		var gain [2]float64
		if hasGain {
			gain = c.as(3, mir.FormDb)
		}

		primed := st.i8(bqPrimed) != 0
		if !primed || freq != st.vec(bqFreq) || q != st.vec(bqQ) || gain != st.vec(bqGain) {
			sr := c.env.SampleRate()
			var k [5][2]float64
			for l := range 2 {
				lane := biquadCoeffs(kind, freq[l], q[l], gain[l], sr)
				for i := range lane {
					k[i][l] = lane[i]
				}
			}
			for i := range k {
				st.setVec(bqB0+i, k[i])
			}
			st.setVec(bqFreq, freq)
			st.setVec(bqQ, q)
			st.setVec(bqGain, gain)
			st.setI8(bqPrimed, 1)
		}

		b0, b1, b2 := st.vec(bqB0), st.vec(bqB1), st.vec(bqB2)
		a1, a2 := st.vec(bqA1), st.vec(bqA2)
		x1, x2, y1, y2 := st.vec(bqX1), st.vec(bqX2), st.vec(bqY1), st.vec(bqY2)
		in := x.Vec()
		var y [2]float64
		for l := range y {
			y[l] = b0[l]*in[l] + b1[l]*x1[l] + b2[l]*x2[l] - a1[l]*y1[l] - a2[l]*y2[l]
		}
		st.setVec(bqX2, x1)
		st.setVec(bqX1, in)
		st.setVec(bqY2, y1)
		st.setVec(bqY1, y)
		c.set(y, c.form)
	}
}

// One-pole filter state is the low-passed value of each lane.
var onePoleType = datatype.Struct(datatype.Vec2())

func onePole(high bool) func(c *call) {
	return func(c *call) {
		st := c.state(onePoleType)
		x := c.num(0)
		freq := c.as(1, mir.FormFrequency)
		sr := c.env.SampleRate()

		y := st.vec(0)
		in := x.Vec()
		var out [2]float64
		for l := range y {
			a := 1.0
			if sr > 0 {
				a = 1 - math.Exp(-2*math.Pi*freq[l]/sr)
			}
			y[l] += a * (in[l] - y[l])
			out[l] = y[l]
			if high {
				out[l] = in[l] - y[l]
			}
		}
		st.setVec(0, y)
		c.set(out, c.form)
	}
}
