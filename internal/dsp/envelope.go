package dsp

import (
	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/jit"
)

// AdsrStage is the phase an envelope lane is in.
type AdsrStage uint8

const (
	AdsrNotActive AdsrStage = iota
	AdsrAttack
	AdsrDecay
	AdsrSustain
	AdsrRelease
)

const (
	adsrLastTrigger = iota
	adsrPosition
	adsrReleaseValue
	adsrLastValue
	adsrStage
)

var (
	adsrChannelType = datatype.Struct(datatype.Float64(), datatype.Float64(), datatype.Float64(), datatype.Float64(), datatype.Int8())
	adsrType        = datatype.Struct(adsrChannelType, adsrChannelType)
)

type AdsrChannel struct {
	LastTrigger  float64
	Position     float64
	ReleaseValue float64
	LastValue    float64
	Stage        AdsrStage
}

func ReadAdsr(m *jit.Memory, a jit.Addr) [2]AdsrChannel {
	var out [2]AdsrChannel
	st := state{m: m, a: a, t: adsrType}
	for l := range out {
		ch := st.sub(l)
		out[l] = AdsrChannel{
			LastTrigger:  ch.f64(adsrLastTrigger),
			Position:     ch.f64(adsrPosition),
			ReleaseValue: ch.f64(adsrReleaseValue),
			LastValue:    ch.f64(adsrLastValue),
			Stage:        AdsrStage(ch.i8(adsrStage)),
		}
	}
	return out
}

func (e *AdsrChannel) step(gate, attack, decay, sustain, release float64) float64 {
	switch {
	case gate > 0 && e.LastTrigger <= 0:
		e.Stage = AdsrAttack
		e.Position = 0
	case gate <= 0 && e.LastTrigger > 0 && e.Stage != AdsrNotActive:
		e.Stage = AdsrRelease
		e.Position = 0
		e.ReleaseValue = e.LastValue
	}
	e.LastTrigger = gate

	var v float64
	switch e.Stage {
	case AdsrAttack:
		if e.Position >= attack {
			e.Stage = AdsrDecay
			e.Position = 0
			return e.step(gate, attack, decay, sustain, release)
		}
		v = e.Position / attack
	case AdsrDecay:
		if e.Position >= decay {
			e.Stage = AdsrSustain
			v = sustain
			break
		}
		v = 1 - (1-sustain)*e.Position/decay
	case AdsrSustain:
		v = sustain
	case AdsrRelease:
		if e.Position >= release {
			e.Stage = AdsrNotActive
			v = 0
			break
		}
		v = e.ReleaseValue * (1 - e.Position/release)
	}
	e.Position++
	e.LastValue = v
	return v
}

func adsr(c *call) {
	st := c.state(adsrType)
	gate := c.num(0).Vec()
	attack := c.asSamples(1)
	decay := c.asSamples(2)
	sustain := c.num(3).Vec()
	release := c.asSamples(4)

	var out [2]float64
	for l := range out {
		ch := st.sub(l)
		e := AdsrChannel{
			LastTrigger:  ch.f64(adsrLastTrigger),
			Position:     ch.f64(adsrPosition),
			ReleaseValue: ch.f64(adsrReleaseValue),
			LastValue:    ch.f64(adsrLastValue),
			Stage:        AdsrStage(ch.i8(adsrStage)),
		}
		out[l] = e.step(gate[l], attack[l], decay[l], sustain[l], release[l])
		ch.setF64(adsrLastTrigger, e.LastTrigger)
		ch.setF64(adsrPosition, e.Position)
		ch.setF64(adsrReleaseValue, e.ReleaseValue)
		ch.setF64(adsrLastValue, e.LastValue)
		ch.setI8(adsrStage, uint8(e.Stage))
	}
	c.set(out, c.form)
}
