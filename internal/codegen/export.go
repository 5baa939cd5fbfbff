package codegen

import (
	"github.com/monadgroup/axiom-sub000/internal/analyze"
	"github.com/monadgroup/axiom-sub000/internal/ir"
)

const ExportModule = "export"

// ExportSymbols are the entry points of an exported image.
type ExportSymbols struct {
	Init    string `json:"init"`
	Update  string `json:"update"`
	Cleanup string `json:"cleanup"`
	Portal  string `json:"portal"`
}

func NewExportSymbols(prefix string) ExportSymbols {
	return ExportSymbols{
		Init:    prefix + "init",
		Update:  prefix + "update",
		Cleanup: prefix + "cleanup",
		Portal:  prefix + "portal",
	}
}

// Export emits the module wrapping the root lifecycle under the exported
// names. portal(id) returns the value storage of portal id, or null when id
// is not below portals.
func Export(rl *analyze.RootLayout, portals int, syms ExportSymbols) *ir.Module {
	m := ir.NewModule(ExportModule)

	for _, e := range []struct {
		name   string
		target string
	}{
		{syms.Init, Construct(RootModule)},
		{syms.Update, Update(RootModule)},
		{syms.Cleanup, Destruct(RootModule)},
	} {
		b := m.NewFunction(e.name, ir.Void)
		b.Call(e.target, ir.Void)
		b.Return(ir.NoValue)
	}

	b := m.NewFunction(syms.Portal, ir.Ptr, ir.Int)
	sockets := b.GlobalAddr(analyze.SymSockets)
	b.Switch(b.Param(0), portals, func(i int) {
		b.Return(b.Offset(sockets, rl.PortalOffset(i)))
	}, nil)
	b.Return(b.Null())

	return m
}
