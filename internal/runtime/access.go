package runtime

import (
	"github.com/nikandfor/errors"

	"github.com/monadgroup/axiom-sub000/internal/analyze"
	"github.com/monadgroup/axiom-sub000/internal/codegen"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// ControlPointers are the addresses a control's code receives.
type ControlPointers struct {
	Value  jit.Addr
	Data   jit.Addr
	Shared jit.Addr
	// UI is null unless the runtime keeps display data.
	UI jit.Addr
}

// RootPtr returns the root surface's pointer struct.
func (r *Runtime) RootPtr() (jit.Addr, error) {
	a, ok := r.engine.GlobalAddr(analyze.SymPointers)
	if !ok {
		return 0, errors.New("no image deployed")
	}
	return a, nil
}

// PortalPtr returns the value storage of portal i.
func (r *Runtime) PortalPtr(i int) (jit.Addr, error) {
	if r.root == nil {
		return 0, errors.New("no image deployed")
	}
	if i < 0 || i >= len(r.project.Root.Sockets) {
		return 0, errors.New("portal %d out of range", i)
	}
	a, ok := r.engine.GlobalAddr(analyze.SymSockets)
	if !ok {
		return 0, errors.New("no state linked")
	}
	return a.Add(r.root.PortalOffset(i)), nil
}

// NodePtr returns the pointers of a host node, given the pointers of the
// host surface holding it. Nodes moved into an extracted surface resolve to
// the first voice's copy.
func (r *Runtime) NodePtr(surface mir.SurfaceID, surfacePtr jit.Addr, node int) (jit.Addr, error) {
	path, ok := r.sm.Path(surface, node)
	if !ok {
		return 0, errors.New("surface %d has no node %d", surface, node)
	}

	a := surfacePtr
	for k, ref := range path {
		if ref.Node < 0 {
			continue
		}
		l, ok := r.layouts.surfaces[r.sm.Canonical(ref.Surface)]
		if !ok {
			return 0, errors.New("surface %d is not deployed", ref.Surface)
		}
		a = a.Add(l.PointersType().FieldOffset(ref.Node))

		if k < len(path)-1 {
			off, _ := l.Nodes[ref.Node].Pointers.Type().Offset(analyze.ExtractVoices, 0)
			a = a.Add(off)
		}
	}
	return a, nil
}

// ControlPtrs reads the pointers of one control from a block's pointer
// struct.
func (r *Runtime) ControlPtrs(block mir.BlockID, blockPtr jit.Addr, control int) (ControlPointers, error) {
	b, ok := r.source.Blocks[block]
	if !ok {
		return ControlPointers{}, errors.New("unknown block %d", block)
	}
	if control < 0 || control >= len(b.Controls) {
		return ControlPointers{}, errors.New("block %d has no control %d", block, control)
	}

	l := analyze.AnalyzeBlock(b, analyze.Options{IncludeUI: r.opts.IncludeUI})
	t := l.PointersType()
	m := r.engine.Memory()
	field := func(f int) jit.Addr {
		off, _ := t.Offset(l.ControlPointersIndex(control), f)
		return m.ReadPtr(blockPtr.Add(off))
	}

	cp := ControlPointers{
		Value:  field(analyze.ControlValue),
		Data:   field(analyze.ControlData),
		Shared: field(analyze.ControlShared),
	}
	if l.IncludeUI {
		cp.UI = field(analyze.ControlUI)
	}
	return cp, nil
}

// ConvertNum converts the Num at num to target form at the image's timing
// and writes it to result.
func (r *Runtime) ConvertNum(result jit.Addr, target mir.FormType, num jit.Addr) error {
	_, err := r.engine.Call(codegen.SymConvert, jit.PtrReg(result), jit.IntReg(int64(target)), jit.PtrReg(num))
	return err
}

// IsNodeExtracted reports whether a host node runs once per voice.
func (r *Runtime) IsNodeExtracted(surface mir.SurfaceID, node int) bool {
	return r.sm.IsExtracted(surface, node)
}
