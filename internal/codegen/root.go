package codegen

import (
	"github.com/monadgroup/axiom-sub000/internal/analyze"
	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/ir"
)

// State emits the module holding the image's mutable storage: the root
// surface's scratch and shared data and the portal values. It is kept
// across commits while its types do not change.
func State(rl *analyze.RootLayout) *ir.Module {
	m := ir.NewModule(StateModule)
	m.AddGlobal(analyze.SymScratch, rl.State, datatype.ConstZero{T: rl.State})
	m.AddGlobal(analyze.SymSockets, rl.Sockets, datatype.ConstZero{T: rl.Sockets})
	return m
}

// Root emits the root module: the initialized values, the folded pointers
// struct and the top level lifecycle routines, each a single call into the
// root surface.
func Root(rl *analyze.RootLayout) *ir.Module {
	m := ir.NewModule(RootModule)
	m.AddGlobal(analyze.SymInitialized, rl.Surface.Initialized, rl.Surface.InitializedValue)
	m.AddGlobal(analyze.SymPointers, rl.PointersType(), rl.Pointers).ReadOnly = true

	surface := SurfaceModule(rl.Surface.Surface.ID)
	for _, lc := range []lifecycle{construct, update, destruct} {
		b := m.NewFunction(lc.symbol(RootModule), ir.Void)
		b.Call(lc.symbol(surface), ir.Void, b.GlobalAddr(analyze.SymPointers))
		b.Return(ir.NoValue)
	}
	return m
}
