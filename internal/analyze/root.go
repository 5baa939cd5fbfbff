package analyze

import (
	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// Globals of the assembled image.
const (
	SymInitialized = "root.initialized"
	SymPointers    = "root.pointers"
	SymScratch     = "state.scratch"
	SymSockets     = "state.sockets"
)

// Fields of the state scratch global.
const (
	StateScratch = iota
	StateShared
)

// RootLayout places the root surface's storage in globals and folds its
// pointer sources into the pointers initializer.
type RootLayout struct {
	Surface *SurfaceLayout

	// State holds root scratch and shared storage; Sockets holds one value
	// per portal.
	State   *datatype.Type
	Sockets *datatype.Type

	Pointers datatype.Constant
}

func AnalyzeRoot(root *mir.Root, l *SurfaceLayout) *RootLayout {
	portals := make([]*datatype.Type, len(root.Sockets))
	for i, s := range root.Sockets {
		portals[i] = dsp.ValueType(s.Type)
	}
	r := &RootLayout{
		Surface: l,
		State:   datatype.Struct(l.Scratch, l.Shared),
		Sockets: datatype.Struct(portals...),
	}
	r.Pointers = l.Pointers.Fold(r.Bases())
	return r
}

func (r *RootLayout) Bases() Bases {
	return Bases{
		Initialized: Base{Symbol: SymInitialized, Type: r.Surface.Initialized},
		Scratch:     Base{Symbol: SymScratch, Type: r.State, Prefix: []int{StateScratch}},
		Shared:      Base{Symbol: SymScratch, Type: r.State, Prefix: []int{StateShared}},
		Sockets:     Base{Symbol: SymSockets, Type: r.Sockets},
	}
}

func (r *RootLayout) PointersType() *datatype.Type { return r.Surface.PointersType() }

// PortalOffset is the offset of portal i in the sockets global.
func (r *RootLayout) PortalOffset(i int) int { return r.Sockets.FieldOffset(i) }
