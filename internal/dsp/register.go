package dsp

import (
	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

type native struct {
	data     *datatype.Type
	update   func(c *call)
	destruct func(c *call)
}

var natives = map[mir.Function]native{
	mir.FuncSequence: {update: sequence},
	mir.FuncNoise:    {update: noise},

	mir.FuncSinOsc: {data: oscType, update: oscillator(sineWave)},
	mir.FuncSqrOsc: {data: oscType, update: oscillator(squareWave)},
	mir.FuncSawOsc: {data: oscType, update: oscillator(sawWave)},
	mir.FuncTriOsc: {data: oscType, update: oscillator(triangleWave)},
	mir.FuncRmpOsc: {data: oscType, update: oscillator(rampWave)},

	mir.FuncNext:  {data: laneType, update: next},
	mir.FuncHold:  {data: laneType, update: hold},
	mir.FuncAccum: {data: laneType, update: accum},
	mir.FuncDelay: {data: delayType, update: delay, destruct: delayDestruct},
	mir.FuncAdsr:  {data: adsrType, update: adsr},

	mir.FuncLowBqFilter:       {data: biquadType, update: biquad(BiquadLow, false)},
	mir.FuncHighBqFilter:      {data: biquadType, update: biquad(BiquadHigh, false)},
	mir.FuncBandBqFilter:      {data: biquadType, update: biquad(BiquadBand, false)},
	mir.FuncNotchBqFilter:     {data: biquadType, update: biquad(BiquadNotch, false)},
	mir.FuncAllpassBqFilter:   {data: biquadType, update: biquad(BiquadAllpass, false)},
	mir.FuncPeakBqFilter:      {data: biquadType, update: biquad(BiquadPeak, true)},
	mir.FuncLowShelfBqFilter:  {data: biquadType, update: biquad(BiquadLowShelf, true)},
	mir.FuncHighShelfBqFilter: {data: biquadType, update: biquad(BiquadHighShelf, true)},
	mir.FuncLowFilter:         {data: onePoleType, update: onePole(false)},
	mir.FuncHighFilter:        {data: onePoleType, update: onePole(true)},

	mir.FuncChannel: {update: channel},
	mir.FuncNote:    {data: noteType, update: note},
	mir.FuncVoices:  {data: voicesType, update: voices},
	mir.FuncIndexed: {update: indexed},
	mir.FuncMixdown: {update: mixdown},
}

// IsNative reports whether calls to f go through a registered native
// rather than inline code.
func IsNative(f mir.Function) bool {
	_, ok := natives[f]
	return ok
}

// FunctionData is the scratch type of one call to f.
func FunctionData(f mir.Function) *datatype.Type {
	if n, ok := natives[f]; ok && n.data != nil {
		return n.data
	}
	return emptyType
}

func FunctionSymbol(f mir.Function) string { return "fn." + f.String() }

// FunctionDestructSymbol names the routine releasing a call's data, or ""
// if its data needs no cleanup.
func FunctionDestructSymbol(f mir.Function) string {
	if n, ok := natives[f]; ok && n.destruct != nil {
		return FunctionSymbol(f) + ".destruct"
	}
	return ""
}

func wrap(f mir.Function, impl func(c *call)) jit.NativeFunc {
	info := f.Info()
	return func(m *jit.Memory, regs []jit.Reg) jit.Reg {
		c := newCall(m, regs)
		switch {
		case info.FormRule == mir.FormFixed:
			c.form = info.Form
		case len(c.args) > 0 && len(info.Params) > 0 && info.Params[0].Type.Kind == mir.VarNum:
			c.form = c.num(0).Form
		}
		impl(c)
		return jit.Reg{}
	}
}

// Register installs every native generated code may call.
func Register(e *jit.Engine) {
	for f, n := range natives {
		e.RegisterNative(FunctionSymbol(f), wrap(f, n.update))
		if n.destruct != nil {
			e.RegisterNative(FunctionDestructSymbol(f), wrap(f, n.destruct))
		}
	}
	e.RegisterNative(ControlUpdateSymbol(mir.ControlGraph), graphUpdate)
	e.RegisterNative(ControlUpdateSymbol(mir.ControlRoll), rollUpdate)
	e.RegisterNative(ControlUpdateSymbol(mir.ControlScope), scopeUpdate)
}
