package mir

// ControlType is the kind of a block-level I/O port.
type ControlType int

const (
	ControlAudio ControlType = iota
	ControlMidi
	ControlAudioExtract
	ControlMidiExtract
	ControlGraph
	ControlRoll
	ControlScope
)

var controlTypeNames = map[ControlType]string{
	ControlAudio:        "audio",
	ControlMidi:         "midi",
	ControlAudioExtract: "audio[]",
	ControlMidiExtract:  "midi[]",
	ControlGraph:        "graph",
	ControlRoll:         "roll",
	ControlScope:        "scope",
}

func (c ControlType) String() string {
	if n, ok := controlTypeNames[c]; ok {
		return n
	}
	return "invalid"
}

// LookupControlType maps the source keyword (without any "[]" suffix) to a
// control type.
func LookupControlType(name string, extract bool) (ControlType, bool) {
	switch name {
	case "audio":
		if extract {
			return ControlAudioExtract, true
		}
		return ControlAudio, true
	case "midi":
		if extract {
			return ControlMidiExtract, true
		}
		return ControlMidi, true
	case "graph":
		return ControlGraph, !extract
	case "roll":
		return ControlRoll, !extract
	case "scope":
		return ControlScope, !extract
	}
	return 0, false
}

// ValueType is the type of the value a control exchanges through its socket.
func (c ControlType) ValueType() VarType {
	switch c {
	case ControlMidi, ControlRoll:
		return Midi()
	case ControlAudioExtract:
		return ArrayOf(Num())
	case ControlMidiExtract:
		return ArrayOf(Midi())
	}
	return Num()
}

// IsExtract reports whether the control exchanges an array of voices.
func (c ControlType) IsExtract() bool {
	return c == ControlAudioExtract || c == ControlMidiExtract
}

type ControlField int

const (
	FieldAudioValue ControlField = iota
	FieldMidiValue
	FieldAudioExtractValue
	FieldMidiExtractValue
	FieldGraphValue
	FieldGraphSpeed
	FieldGraphPaused
	FieldRollValue
	FieldRollSpeed
	FieldRollPaused
	FieldScopeValue
)

type fieldInfo struct {
	control  ControlType
	name     string
	writable bool
}

var fieldInfos = map[ControlField]fieldInfo{
	FieldAudioValue:        {ControlAudio, "value", true},
	FieldMidiValue:         {ControlMidi, "value", true},
	FieldAudioExtractValue: {ControlAudioExtract, "value", true},
	FieldMidiExtractValue:  {ControlMidiExtract, "value", true},
	FieldGraphValue:        {ControlGraph, "value", false},
	FieldGraphSpeed:        {ControlGraph, "speed", true},
	FieldGraphPaused:       {ControlGraph, "paused", true},
	FieldRollValue:         {ControlRoll, "value", false},
	FieldRollSpeed:         {ControlRoll, "speed", true},
	FieldRollPaused:        {ControlRoll, "paused", true},
	FieldScopeValue:        {ControlScope, "value", true},
}

// LookupField resolves a field name on a control type. An empty name
// selects the value field.
func LookupField(c ControlType, name string) (ControlField, bool) {
	if name == "" {
		name = "value"
	}
	for f, info := range fieldInfos {
		if info.control == c && info.name == name {
			return f, true
		}
	}
	return 0, false
}

func (f ControlField) Control() ControlType { return fieldInfos[f].control }
func (f ControlField) Name() string         { return fieldInfos[f].name }
func (f ControlField) Writable() bool       { return fieldInfos[f].writable }

// IsValue reports whether the field is the control's socket value.
func (f ControlField) IsValue() bool { return fieldInfos[f].name == "value" }

func (f ControlField) VarType() VarType {
	if f.IsValue() {
		return f.Control().ValueType()
	}
	return Num()
}

func (f ControlField) String() string {
	return f.Control().String() + "." + f.Name()
}

// Control is a block-level I/O port.
type Control struct {
	Name         string
	Type         ControlType
	ValueWritten bool
	ValueRead    bool
}
