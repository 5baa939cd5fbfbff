package mir

// Function is an entry in the closed table of callable functions.
type Function int

const (
	FuncCos Function = iota
	FuncSin
	FuncTan
	FuncAcos
	FuncAsin
	FuncAtan
	FuncLog
	FuncLog2
	FuncLog10
	FuncSqrt
	FuncCeil
	FuncFloor
	FuncAbs
	FuncTanh
	FuncExp
	FuncFract
	FuncToRad
	FuncToDeg
	FuncLogb
	FuncAtan2
	FuncHypot
	FuncMin
	FuncMax
	FuncClamp
	FuncMix
	FuncLeft
	FuncRight
	FuncSwap
	FuncCombine
	FuncPan
	FuncSequence
	FuncNoise
	FuncSinOsc
	FuncSqrOsc
	FuncSawOsc
	FuncTriOsc
	FuncRmpOsc
	FuncNext
	FuncHold
	FuncAccum
	FuncDelay
	FuncAdsr
	FuncLowBqFilter
	FuncHighBqFilter
	FuncBandBqFilter
	FuncNotchBqFilter
	FuncAllpassBqFilter
	FuncPeakBqFilter
	FuncLowShelfBqFilter
	FuncHighShelfBqFilter
	FuncLowFilter
	FuncHighFilter
	FuncChannel
	FuncNote
	FuncVoices
	FuncIndexed
	FuncMixdown

	funcCount
)

// DefaultKind says how an omitted trailing argument is filled in.
type DefaultKind int

const (
	NoDefault DefaultKind = iota
	DefaultConst
	// DefaultArg repeats an earlier argument.
	DefaultArg
)

type Param struct {
	Type     VarType
	Default  DefaultKind
	Value    ConstantNum
	ArgIndex int
}

// FormRule says which form tag a function's numeric result carries.
type FormRule int

const (
	FormOfFirstArg FormRule = iota
	FormFixed
)

type FunctionInfo struct {
	Name       string
	Params     []Param
	VarArg     *VarType
	Return     VarType
	FormRule   FormRule
	Form       FormType
	Stateful   bool
	SideEffect bool
}

func num() Param { return Param{Type: Num()} }

func numDefault(v float64) Param {
	return Param{Type: Num(), Default: DefaultConst, Value: NewConstantNum(v, FormNone)}
}

func nums(n int) []Param {
	ps := make([]Param, n)
	for i := range ps {
		ps[i] = num()
	}
	return ps
}

func pure(name string, n int) FunctionInfo {
	return FunctionInfo{Name: name, Params: nums(n), Return: Num()}
}

func fixed(info FunctionInfo, form FormType) FunctionInfo {
	info.FormRule = FormFixed
	info.Form = form
	return info
}

func stateful(info FunctionInfo) FunctionInfo {
	info.Stateful = true
	return info
}

var numType = Num()

var functions = [funcCount]FunctionInfo{
	FuncCos:   pure("cos", 1),
	FuncSin:   pure("sin", 1),
	FuncTan:   pure("tan", 1),
	FuncAcos:  pure("acos", 1),
	FuncAsin:  pure("asin", 1),
	FuncAtan:  pure("atan", 1),
	FuncLog:   pure("log", 1),
	FuncLog2:  pure("log2", 1),
	FuncLog10: pure("log10", 1),
	FuncSqrt:  pure("sqrt", 1),
	FuncCeil:  pure("ceil", 1),
	FuncFloor: pure("floor", 1),
	FuncAbs:   pure("abs", 1),
	FuncTanh:  pure("tanh", 1),
	FuncExp:   pure("exp", 1),
	FuncFract: pure("fract", 1),
	FuncToRad: pure("toRad", 1),
	FuncToDeg: pure("toDeg", 1),
	FuncLogb:  pure("logb", 2),
	FuncAtan2: pure("atan2", 2),
	FuncHypot: pure("hypot", 2),
	FuncMin:   pure("min", 2),
	FuncMax:   pure("max", 2),
	FuncClamp: pure("clamp", 3),
	FuncMix:   pure("mix", 3),
	FuncLeft:  pure("left", 1),
	FuncRight: pure("right", 1),
	FuncSwap:  pure("swap", 1),

	FuncCombine:  pure("combine", 2),
	FuncPan:      pure("pan", 2),
	FuncSequence: {Name: "sequence", Params: nums(1), VarArg: &numType, Return: Num(), FormRule: FormFixed},
	FuncNoise:    stateful(fixed(pure("noise", 0), FormOscillator)),

	FuncSinOsc: stateful(fixed(FunctionInfo{Name: "sinOsc", Params: []Param{num(), numDefault(0)}, Return: Num()}, FormOscillator)),
	FuncSqrOsc: stateful(fixed(FunctionInfo{Name: "sqrOsc", Params: []Param{num(), numDefault(0.5)}, Return: Num()}, FormOscillator)),
	FuncSawOsc: stateful(fixed(FunctionInfo{Name: "sawOsc", Params: []Param{num(), numDefault(0)}, Return: Num()}, FormOscillator)),
	FuncTriOsc: stateful(fixed(FunctionInfo{Name: "triOsc", Params: []Param{num(), numDefault(0)}, Return: Num()}, FormOscillator)),
	FuncRmpOsc: stateful(fixed(FunctionInfo{Name: "rmpOsc", Params: []Param{num(), numDefault(0)}, Return: Num()}, FormOscillator)),

	FuncNext:  stateful(pure("next", 1)),
	FuncHold:  stateful(pure("hold", 2)),
	FuncAccum: stateful(FunctionInfo{Name: "accum", Params: []Param{num(), numDefault(0)}, Return: Num()}),
	FuncDelay: stateful(FunctionInfo{Name: "delay", Params: []Param{num(), num(), {Type: Num(), Default: DefaultArg, ArgIndex: 1}}, Return: Num()}),
	FuncAdsr:  stateful(fixed(pure("adsr", 5), FormAmplitude)),

	FuncLowBqFilter:       stateful(FunctionInfo{Name: "lowBqFilter", Params: []Param{num(), num(), numDefault(0.707)}, Return: Num()}),
	FuncHighBqFilter:      stateful(FunctionInfo{Name: "highBqFilter", Params: []Param{num(), num(), numDefault(0.707)}, Return: Num()}),
	FuncBandBqFilter:      stateful(FunctionInfo{Name: "bandBqFilter", Params: []Param{num(), num(), numDefault(0.707)}, Return: Num()}),
	FuncNotchBqFilter:     stateful(FunctionInfo{Name: "notchBqFilter", Params: []Param{num(), num(), numDefault(0.707)}, Return: Num()}),
	FuncAllpassBqFilter:   stateful(FunctionInfo{Name: "allpassBqFilter", Params: []Param{num(), num(), numDefault(0.707)}, Return: Num()}),
	FuncPeakBqFilter:      stateful(pure("peakBqFilter", 4)),
	FuncLowShelfBqFilter:  stateful(pure("lowShelfBqFilter", 4)),
	FuncHighShelfBqFilter: stateful(pure("highShelfBqFilter", 4)),
	FuncLowFilter:         stateful(pure("lowFilter", 2)),
	FuncHighFilter:        stateful(pure("highFilter", 2)),

	FuncChannel: {Name: "channel", Params: []Param{{Type: Midi()}, num()}, Return: Midi()},
	FuncNote: stateful(FunctionInfo{
		Name:     "note",
		Params:   []Param{{Type: Midi()}},
		Return:   Tuple(Num(), Num(), Num(), Num()),
		FormRule: FormFixed,
		Form:     FormNote,
	}),
	FuncVoices:  stateful(FunctionInfo{Name: "voices", Params: []Param{{Type: Midi()}}, Return: ArrayOf(Midi())}),
	FuncIndexed: fixed(FunctionInfo{Name: "indexed", Params: nums(1), Return: ArrayOf(Num())}, FormNone),
	FuncMixdown: {Name: "mixdown", Params: []Param{{Type: ArrayOf(Num())}}, Return: Num()},
}

var functionsByName = func() map[string]Function {
	m := make(map[string]Function, funcCount)
	for i := Function(0); i < funcCount; i++ {
		m[functions[i].Name] = i
	}
	return m
}()

// LookupFunction resolves a function by its source name.
func LookupFunction(name string) (Function, bool) {
	f, ok := functionsByName[name]
	return f, ok
}

func (f Function) Info() *FunctionInfo { return &functions[f] }
func (f Function) String() string      { return functions[f].Name }

func (f Function) HasSideEffects() bool { return functions[f].SideEffect }

// IsStateful reports whether calls to f own a scratch slot.
func (f Function) IsStateful() bool { return functions[f].Stateful }

func (f Function) ReturnType() VarType { return functions[f].Return }

// ArgRange returns the accepted argument count range. max is -1 when the
// function takes varargs.
func (f Function) ArgRange() (min, max int) {
	info := &functions[f]
	for _, p := range info.Params {
		if p.Default == NoDefault {
			min++
		}
	}
	max = len(info.Params)
	if info.VarArg != nil {
		max = -1
	}
	return min, max
}

// Functions lists every function in table order.
func Functions() []Function {
	fs := make([]Function, funcCount)
	for i := range fs {
		fs[i] = Function(i)
	}
	return fs
}
