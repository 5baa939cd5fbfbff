// Package export writes a deployed image as a standalone object plus the
// metadata a host needs to drive it.
package export

import (
	"context"
	"runtime"
	"strings"

	"github.com/nikandfor/errors"
	"github.com/nikandfor/tlog"

	"github.com/monadgroup/axiom-sub000/internal/codegen"
	"github.com/monadgroup/axiom-sub000/internal/ir"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	axruntime "github.com/monadgroup/axiom-sub000/internal/runtime"
)

type Options struct {
	// Target and InstructionSet are recorded in the object header. Empty
	// values mean the host's GOOS/GOARCH.
	Target         string
	InstructionSet string
	OptLevel       int
	// Prefix is prepended to every exported symbol.
	Prefix string
}

type Portal struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	Type string `json:"type"`
}

// Metadata describes an exported image.
type Metadata struct {
	Target         string                `json:"target"`
	InstructionSet string                `json:"instruction_set"`
	OptLevel       int                   `json:"opt_level"`
	SampleRate     float64               `json:"sample_rate"`
	BPM            float64               `json:"bpm"`
	Symbols        codegen.ExportSymbols `json:"symbols"`
	Portals        []Portal              `json:"portals"`
}

type Result struct {
	Object   *jit.Object
	Metadata *Metadata
}

// Export snapshots the image deployed in r together with the entry point
// module. The runtime is left as it was.
func Export(ctx context.Context, r *axruntime.Runtime, opts Options) (res *Result, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "export", "prefix", opts.Prefix)
	defer tr.Finish("err", &err)

	rl := r.Root()
	if rl == nil || !r.IsBuilt() {
		return nil, errors.New("no image deployed")
	}
	if opts.Target == "" {
		opts.Target = runtime.GOOS
	}
	if opts.InstructionSet == "" {
		opts.InstructionSet = runtime.GOARCH
	}
	if !validPrefix(opts.Prefix) {
		return nil, errors.New("invalid symbol prefix %q", opts.Prefix)
	}

	sockets := r.Project().Root.Sockets
	syms := codegen.NewExportSymbols(opts.Prefix)
	mod := codegen.Export(rl, len(sockets), syms)
	ir.Optimize(mod, opts.OptLevel)
	if err = ir.Verify(mod); err != nil {
		return nil, errors.Wrap(err, "verify export module")
	}

	e := r.Engine()
	for _, s := range []string{syms.Init, syms.Update, syms.Cleanup, syms.Portal} {
		if e.HasFunction(s) {
			return nil, errors.New("symbol %v already defined", s)
		}
	}
	if err = e.AddModule(mod); err != nil {
		return nil, errors.Wrap(err, "link export module")
	}
	defer e.RemoveModule(codegen.ExportModule)

	obj := e.Snapshot(jit.Header{
		Target:         opts.Target,
		InstructionSet: opts.InstructionSet,
		OptLevel:       opts.OptLevel,
		Prefix:         opts.Prefix,
	})

	md := &Metadata{
		Target:         opts.Target,
		InstructionSet: opts.InstructionSet,
		OptLevel:       opts.OptLevel,
		SampleRate:     r.SampleRate(),
		BPM:            r.BPM(),
		Symbols:        syms,
	}
	for i, s := range sockets {
		md.Portals = append(md.Portals, Portal{ID: i, Name: s.Name, Kind: s.Kind.String(), Type: s.Type.String()})
	}

	tr.Printw("exported", "modules", len(obj.Modules), "portals", len(md.Portals))

	return &Result{Object: obj, Metadata: md}, nil
}

// validPrefix accepts prefixes that keep the symbols valid C identifiers.
func validPrefix(p string) bool {
	for i, c := range p {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// PortalIdent turns a portal name into an identifier for generated
// headers and bindings.
func PortalIdent(name string) string {
	var sb strings.Builder
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
			sb.WriteRune(c)
		case c >= '0' && c <= '9':
			if i == 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(c)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}
