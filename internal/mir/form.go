package mir

// FormType is the physical-units tag carried by every numeric value.
type FormType uint8

const (
	FormNone FormType = iota
	FormControl
	FormOscillator
	FormNote
	FormFrequency
	FormBeats
	FormSeconds
	FormSamples
	FormDb
	FormAmplitude
	FormQ
)

// FormCount is the number of forms, including FormNone.
const FormCount = 11

var formNames = [FormCount]string{
	FormNone:       "none",
	FormControl:    "control",
	FormOscillator: "osc",
	FormNote:       "note",
	FormFrequency:  "hz",
	FormBeats:      "beats",
	FormSeconds:    "s",
	FormSamples:    "samples",
	FormDb:         "db",
	FormAmplitude:  "amp",
	FormQ:          "q",
}

func (f FormType) String() string {
	if int(f) < len(formNames) {
		return formNames[f]
	}
	return "invalid"
}

// FormSuffix describes a literal suffix: the form it produces and a
// multiplier applied to the literal value.
type FormSuffix struct {
	Form  FormType
	Scale float64
}

var formSuffixes = map[string]FormSuffix{
	"none":    {FormNone, 1},
	"control": {FormControl, 1},
	"osc":     {FormOscillator, 1},
	"note":    {FormNote, 1},
	"hz":      {FormFrequency, 1},
	"khz":     {FormFrequency, 1000},
	"beats":   {FormBeats, 1},
	"s":       {FormSeconds, 1},
	"ms":      {FormSeconds, 0.001},
	"samples": {FormSamples, 1},
	"db":      {FormDb, 1},
	"amp":     {FormAmplitude, 1},
	"q":       {FormQ, 1},
}

// LookupFormSuffix resolves a literal suffix or conversion target.
func LookupFormSuffix(name string) (FormSuffix, bool) {
	s, ok := formSuffixes[name]
	return s, ok
}
