package codegen

import (
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/ir"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// conv emits the arithmetic of one conversion. Timing values are loaded
// from the environment on demand.
type conv struct {
	b   *ir.Builder
	env ir.Value
}

func (c conv) k(v float64) ir.Value       { return c.b.Splat(v) }
func (c conv) add(x, y ir.Value) ir.Value { return c.b.VecBin(ir.VAdd, x, y) }
func (c conv) sub(x, y ir.Value) ir.Value { return c.b.VecBin(ir.VSub, x, y) }
func (c conv) mul(x, y ir.Value) ir.Value { return c.b.VecBin(ir.VMul, x, y) }
func (c conv) div(x, y ir.Value) ir.Value { return c.b.VecBin(ir.VDiv, x, y) }
func (c conv) pow(x, y ir.Value) ir.Value { return c.b.VecBin(ir.VPow, x, y) }

func (c conv) sr() ir.Value  { return c.b.LoadVec(c.b.FieldPtr(c.env, dsp.EnvType(), dsp.EnvSampleRate)) }
func (c conv) bpm() ir.Value { return c.b.LoadVec(c.b.FieldPtr(c.env, dsp.EnvType(), dsp.EnvBPM)) }

type convFunc func(c conv, x ir.Value) ir.Value

func noteToFreq(c conv, n ir.Value) ir.Value {
	return c.mul(c.k(440), c.pow(c.k(2), c.div(c.sub(n, c.k(69)), c.k(12))))
}

func freqToNote(c conv, f ir.Value) ir.Value {
	return c.add(c.k(69), c.mul(c.k(12), c.b.VecUn(ir.ULog2, c.div(f, c.k(440)))))
}

func beatsToFreq(c conv, b ir.Value) ir.Value   { return c.div(c.bpm(), c.mul(c.k(60), b)) }
func secondsToFreq(c conv, s ir.Value) ir.Value { return c.div(c.k(1), s) }
func samplesToFreq(c conv, n ir.Value) ir.Value { return c.div(c.sr(), n) }
func freqToBeats(c conv, f ir.Value) ir.Value   { return c.div(c.bpm(), c.mul(c.k(60), f)) }

func via(first, second convFunc) convFunc {
	return func(c conv, x ir.Value) ir.Value { return second(c, first(c, x)) }
}

// conversions[target][input], matching mir.ConvertNum.
var conversions = map[mir.FormType]map[mir.FormType]convFunc{
	mir.FormFrequency: {
		mir.FormNote:    noteToFreq,
		mir.FormBeats:   beatsToFreq,
		mir.FormSeconds: secondsToFreq,
		mir.FormSamples: samplesToFreq,
	},
	mir.FormNote: {
		mir.FormFrequency: freqToNote,
		mir.FormBeats:     via(beatsToFreq, freqToNote),
		mir.FormSeconds:   via(secondsToFreq, freqToNote),
		mir.FormSamples:   via(samplesToFreq, freqToNote),
	},
	mir.FormBeats: {
		mir.FormSeconds:   func(c conv, s ir.Value) ir.Value { return c.div(c.mul(s, c.bpm()), c.k(60)) },
		mir.FormSamples:   func(c conv, n ir.Value) ir.Value { return c.div(c.mul(n, c.bpm()), c.mul(c.k(60), c.sr())) },
		mir.FormFrequency: freqToBeats,
		mir.FormNote:      via(noteToFreq, freqToBeats),
	},
	mir.FormSeconds: {
		mir.FormBeats:     func(c conv, b ir.Value) ir.Value { return c.div(c.mul(c.k(60), b), c.bpm()) },
		mir.FormSamples:   func(c conv, n ir.Value) ir.Value { return c.div(n, c.sr()) },
		mir.FormFrequency: secondsToFreq,
		mir.FormNote:      via(noteToFreq, secondsToFreq),
	},
	mir.FormSamples: {
		mir.FormBeats:     func(c conv, b ir.Value) ir.Value { return c.div(c.mul(c.mul(c.k(60), c.sr()), b), c.bpm()) },
		mir.FormSeconds:   func(c conv, s ir.Value) ir.Value { return c.mul(s, c.sr()) },
		mir.FormFrequency: samplesToFreq,
		mir.FormNote:      via(noteToFreq, samplesToFreq),
	},
	mir.FormDb: {
		mir.FormAmplitude: func(c conv, a ir.Value) ir.Value { return c.mul(c.k(20), c.b.VecUn(ir.ULog10, a)) },
	},
	mir.FormAmplitude: {
		mir.FormDb: func(c conv, db ir.Value) ir.Value { return c.pow(c.k(10), c.div(db, c.k(20))) },
	},
	mir.FormControl: {
		mir.FormOscillator: func(c conv, o ir.Value) ir.Value { return c.div(c.add(o, c.k(1)), c.k(2)) },
	},
	mir.FormOscillator: {
		mir.FormControl: func(c conv, x ir.Value) ir.Value { return c.sub(c.mul(c.k(2), x), c.k(1)) },
	},
}

// emitConvert writes the number at in, converted to target, into out. It
// switches on the input form; forms without a formula copy through.
func emitConvert(b *ir.Builder, env ir.Value, target mir.FormType, in, out ir.Value) {
	x := b.LoadVec(b.FieldPtr(in, numType, dsp.NumValue))
	form := loadForm(b, in)
	dst := b.FieldPtr(out, numType, dsp.NumValue)
	b.StoreVec(dst, x)

	if table := conversions[target]; len(table) > 0 {
		c := conv{b: b, env: env}
		b.Switch(form, mir.FormCount, func(i int) {
			if f, ok := table[mir.FormType(i)]; ok {
				b.StoreVec(dst, f(c, x))
			}
		}, nil)
	}
	storeForm(b, out, b.ConstInt(int64(target)))
}

// Library emits the module every image links against: the environment
// global and library.convert(result, target form, num).
func Library() *ir.Module {
	m := ir.NewModule(LibraryModule)
	m.AddGlobal(SymEnv, dsp.EnvType(), dsp.EnvInit())

	b := m.NewFunction(SymConvert, ir.Void, ir.Ptr, ir.Int, ir.Ptr)
	out, target, in := b.Param(0), b.Param(1), b.Param(2)
	env := b.GlobalAddr(SymEnv)
	b.Switch(target, mir.FormCount, func(i int) {
		emitConvert(b, env, mir.FormType(i), in, out)
	}, func() {
		b.Copy(out, in, numType.Size())
	})
	b.Return(ir.NoValue)
	return m
}
