// Package codegen emits the IR modules of an image: one per block, one per
// surface, the root and state modules, and the library module holding the
// environment and the numeric converter.
//
// Every block, surface and root module exports construct, update and
// destruct functions taking the address of its pointers struct.
package codegen

import (
	"fmt"

	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/ir"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// Module and symbol names.
const (
	LibraryModule = "library"
	RootModule    = "root"
	StateModule   = "state"

	SymEnv     = "library.env"
	SymConvert = "library.convert"
)

func BlockModule(id mir.BlockID) string     { return fmt.Sprintf("block.%d", id) }
func SurfaceModule(id mir.SurfaceID) string { return fmt.Sprintf("surface.%d", id) }

func Construct(module string) string { return module + ".construct" }
func Update(module string) string    { return module + ".update" }
func Destruct(module string) string  { return module + ".destruct" }

// lifecycle is one of the three exported routines.
type lifecycle int

const (
	construct lifecycle = iota
	update
	destruct
)

func (lc lifecycle) symbol(module string) string {
	switch lc {
	case construct:
		return Construct(module)
	case destruct:
		return Destruct(module)
	}
	return Update(module)
}

var numType = dsp.NumType()

func loadForm(b *ir.Builder, num ir.Value) ir.Value {
	return b.LoadInt(b.FieldPtr(num, numType, dsp.NumForm), 1)
}

func storeForm(b *ir.Builder, num, form ir.Value) {
	b.StoreInt(b.FieldPtr(num, numType, dsp.NumForm), form, 1)
}

func storeNum(b *ir.Builder, num, v, form ir.Value) {
	b.StoreVec(b.FieldPtr(num, numType, dsp.NumValue), v)
	storeForm(b, num, form)
}

// storeConst writes c into the value of type t at p.
func storeConst(b *ir.Builder, p ir.Value, t *datatype.Type, c mir.ConstantValue) {
	switch c := c.(type) {
	case mir.ConstantNum:
		storeNum(b, p, b.ConstVec(c.Left, c.Right), b.ConstInt(int64(c.Form)))
	case mir.ConstantTuple:
		for i, item := range c.Items {
			storeConst(b, b.FieldPtr(p, t, i), t.Child(i), item)
		}
	}
}

// lifecycles emits construct, update and destruct, each taking the pointers
// struct address.
func lifecycles(m *ir.Module, name string, body func(b *ir.Builder, lc lifecycle, ptrs ir.Value)) {
	for _, lc := range []lifecycle{construct, update, destruct} {
		b := m.NewFunction(lc.symbol(name), ir.Void, ir.Ptr)
		body(b, lc, b.Param(0))
		b.Return(ir.NoValue)
	}
}
