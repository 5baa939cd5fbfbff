package mir

import "math"

// Timing carries the global values some conversions depend on.
type Timing struct {
	SampleRate float64
	BPM        float64
}

type convFunc func(x float64, t Timing) float64

func noteToFreq(n float64, _ Timing) float64    { return 440 * math.Pow(2, (n-69)/12) }
func freqToNote(f float64, _ Timing) float64    { return 69 + 12*math.Log2(f/440) }
func beatsToFreq(b float64, t Timing) float64   { return t.BPM / (60 * b) }
func secondsToFreq(s float64, _ Timing) float64 { return 1 / s }
func samplesToFreq(n float64, t Timing) float64 { return t.SampleRate / n }
func freqToBeats(f float64, t Timing) float64   { return t.BPM / (60 * f) }
func freqToSeconds(f float64, _ Timing) float64 { return 1 / f }
func freqToSamples(f float64, t Timing) float64 { return t.SampleRate / f }

func via(first, second convFunc) convFunc {
	return func(x float64, t Timing) float64 { return second(first(x, t), t) }
}

type convEntry struct {
	fn     convFunc
	timing bool
}

// conversions[target][input]
var conversions = map[FormType]map[FormType]convEntry{
	FormFrequency: {
		FormNote:    {noteToFreq, false},
		FormBeats:   {beatsToFreq, true},
		FormSeconds: {secondsToFreq, false},
		FormSamples: {samplesToFreq, true},
	},
	FormNote: {
		FormFrequency: {freqToNote, false},
		FormBeats:     {via(beatsToFreq, freqToNote), true},
		FormSeconds:   {via(secondsToFreq, freqToNote), false},
		FormSamples:   {via(samplesToFreq, freqToNote), true},
	},
	FormBeats: {
		FormSeconds:   {func(s float64, t Timing) float64 { return s * t.BPM / 60 }, true},
		FormSamples:   {func(n float64, t Timing) float64 { return n * t.BPM / (60 * t.SampleRate) }, true},
		FormFrequency: {freqToBeats, true},
		FormNote:      {via(noteToFreq, freqToBeats), true},
	},
	FormSeconds: {
		FormBeats:     {func(b float64, t Timing) float64 { return 60 * b / t.BPM }, true},
		FormSamples:   {func(n float64, t Timing) float64 { return n / t.SampleRate }, true},
		FormFrequency: {freqToSeconds, false},
		FormNote:      {via(noteToFreq, freqToSeconds), false},
	},
	FormSamples: {
		FormBeats:     {func(b float64, t Timing) float64 { return 60 * t.SampleRate * b / t.BPM }, true},
		FormSeconds:   {func(s float64, t Timing) float64 { return s * t.SampleRate }, true},
		FormFrequency: {freqToSamples, true},
		FormNote:      {via(noteToFreq, freqToSamples), true},
	},
	FormDb: {
		FormAmplitude: {func(a float64, _ Timing) float64 { return 20 * math.Log10(a) }, false},
	},
	FormAmplitude: {
		FormDb: {func(db float64, _ Timing) float64 { return math.Pow(10, db/20) }, false},
	},
	FormControl: {
		FormOscillator: {func(o float64, _ Timing) float64 { return (o + 1) / 2 }, false},
	},
	FormOscillator: {
		FormControl: {func(c float64, _ Timing) float64 { return 2*c - 1 }, false},
	},
}

// ConvertUsesTiming reports whether converting from one form to another
// reads the sample rate or BPM.
func ConvertUsesTiming(from, to FormType) bool {
	return conversions[to][from].timing
}

// HasConversion reports whether the pair has a formula; all other pairs
// copy the value and retag it.
func HasConversion(from, to FormType) bool {
	_, ok := conversions[to][from]
	return ok
}

// ConvertNum converts c to the target form.
func ConvertNum(c ConstantNum, target FormType, t Timing) ConstantNum {
	out := ConstantNum{Left: c.Left, Right: c.Right, Form: target}
	if e, ok := conversions[target][c.Form]; ok {
		out.Left = e.fn(c.Left, t)
		out.Right = e.fn(c.Right, t)
	}
	return out
}
