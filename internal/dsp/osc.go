package dsp

import (
	"math"

	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// Oscillator state is the phase of each lane in [0, 1).
var oscType = datatype.Struct(datatype.Vec2())

type waveform func(phase, param float64) float64

func sineWave(phase, offset float64) float64 {
	return math.Sin(2 * math.Pi * wrap(phase+offset))
}

func squareWave(phase, pulse float64) float64 {
	if phase < pulse {
		return 1
	}
	return -1
}

func sawWave(phase, offset float64) float64 {
	return 2*wrap(phase+offset) - 1
}

func rampWave(phase, offset float64) float64 {
	return 1 - 2*wrap(phase+offset)
}

func triangleWave(phase, offset float64) float64 {
	p := wrap(phase + offset)
	if p < 0.5 {
		return 4*p - 1
	}
	return 3 - 4*p
}

func wrap(p float64) float64 {
	return p - math.Floor(p)
}

func oscillator(wave waveform) func(c *call) {
	return func(c *call) {
		st := c.state(oscType)
		phase := st.vec(0)
		freq := c.as(0, mir.FormFrequency)
		param := c.num(1).Vec()
		sr := c.env.SampleRate()

		out := lanes(func(l int) float64 { return wave(phase[l], param[l]) })
		if sr > 0 {
			for l := range phase {
				phase[l] = wrap(phase[l] + freq[l]/sr)
			}
		}
		st.setVec(0, phase)
		c.set(out, c.form)
	}
}

func noise(c *call) {
	c.set([2]float64{c.env.Random(), c.env.Random()}, c.form)
}
