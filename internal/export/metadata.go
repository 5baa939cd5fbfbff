package export

import (
	"encoding/json"
	"io"
	"strings"
	"text/template"

	"github.com/nikandfor/errors"
)

type Format string

const (
	FormatC    Format = "c"
	FormatGo   Format = "go"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatC, FormatGo, FormatJSON:
		return f, nil
	}
	return "", errors.New("unknown metadata format %q (expected c|go|json)", s)
}

// Ext is the file extension used for metadata of this format.
func (f Format) Ext() string {
	switch f {
	case FormatC:
		return ".h"
	case FormatGo:
		return ".go"
	}
	return ".json"
}

var funcs = template.FuncMap{
	"ident": PortalIdent,
	"upper": strings.ToUpper,
}

var cHeader = template.Must(template.New("c").Funcs(funcs).Parse(`/* Generated by axiom-export. Target {{.Target}} ({{.InstructionSet}}), opt level {{.OptLevel}}. */
#ifndef {{upper (ident .Guard)}}
#define {{upper (ident .Guard)}}

#define {{upper .Prefix}}SAMPLE_RATE {{.SampleRate}}
#define {{upper .Prefix}}BPM {{.BPM}}
{{range .Portals}}#define {{upper $.Prefix}}PORTAL_{{upper (ident .Name)}} {{.ID}} /* {{.Kind}} {{.Type}} */
{{end}}
#ifdef __cplusplus
extern "C" {
#endif

void {{.Symbols.Init}}(void);
void {{.Symbols.Update}}(void);
void {{.Symbols.Cleanup}}(void);
void *{{.Symbols.Portal}}(long long id);

#ifdef __cplusplus
}
#endif

#endif
`))

var goBindings = template.Must(template.New("go").Funcs(funcs).Parse(`// Code generated by axiom-export. DO NOT EDIT.

package {{.Package}}

// Target {{.Target}} ({{.InstructionSet}}), opt level {{.OptLevel}}.

const (
	SampleRate = {{.SampleRate}}
	BPM        = {{.BPM}}
)

// Portal ids.
const (
{{- range .Portals}}
	Portal{{ident .Name}} = {{.ID}} // {{.Kind}} {{.Type}}
{{- end}}
)

// Exported symbols.
const (
	SymInit    = "{{.Symbols.Init}}"
	SymUpdate  = "{{.Symbols.Update}}"
	SymCleanup = "{{.Symbols.Cleanup}}"
	SymPortal  = "{{.Symbols.Portal}}"
)
`))

type templateData struct {
	*Metadata
	Prefix  string
	Guard   string
	Package string
}

// WriteMetadata writes md in format f. name is used for the include
// guard and the Go package.
func WriteMetadata(w io.Writer, f Format, md *Metadata, name string) error {
	data := templateData{
		Metadata: md,
		Prefix:   strings.TrimSuffix(md.Symbols.Init, "init"),
		Guard:    name + "_h",
		Package:  strings.ToLower(PortalIdent(name)),
	}

	var err error
	switch f {
	case FormatC:
		err = cHeader.Execute(w, data)
	case FormatGo:
		err = goBindings.Execute(w, data)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(md)
	default:
		return errors.New("unknown metadata format %q", f)
	}
	if err != nil {
		return errors.Wrap(err, "write %v metadata", f)
	}
	return nil
}
