package codegen

import (
	"github.com/monadgroup/axiom-sub000/internal/analyze"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/ir"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// Surface emits the module of a laid out surface. Nodes run in surface
// order; destruct walks them in reverse.
func Surface(l *analyze.SurfaceLayout) *ir.Module {
	name := SurfaceModule(l.Surface.ID)
	m := ir.NewModule(name)
	ptrsType := l.PointersType()

	lifecycles(m, name, func(b *ir.Builder, lc lifecycle, ptrs ir.Value) {
		node := func(i int) {
			nl := l.Nodes[i]
			np := b.FieldPtr(ptrs, ptrsType, i)
			switch nl.Kind {
			case mir.NodeCustom:
				b.Call(lc.symbol(BlockModule(nl.Block.Block.ID)), ir.Void, np)
			case mir.NodeGroup:
				b.Call(lc.symbol(SurfaceModule(nl.Sub.Surface.ID)), ir.Void, np)
			case mir.NodeExtractGroup:
				extractNode(b, lc, l.Surface, i, nl, np)
			}
		}

		if lc == destruct {
			for i := len(l.Nodes) - 1; i >= 0; i-- {
				node(i)
			}
			return
		}
		for i := range l.Nodes {
			node(i)
		}
	})
	return m
}

// extractNode runs one lifecycle of an extract group node. Construct and
// destruct cover all voices. Update runs the voices set in every source
// array and marks the same voices active in the destination arrays.
func extractNode(b *ir.Builder, lc lifecycle, s *mir.Surface, i int, nl analyze.NodeLayout, np ir.Value) {
	n := s.Nodes[i]
	t := nl.Pointers.Type()
	sym := lc.symbol(SurfaceModule(nl.Sub.Surface.ID))
	voices := b.FieldPtr(np, t, analyze.ExtractVoices)
	stride := nl.Sub.PointersType().Size()
	count := b.ConstInt(mir.ArrayCapacity)

	if lc != update {
		b.Loop(count, func(v ir.Value) {
			b.Call(sym, ir.Void, b.Index(voices, v, stride))
		})
		return
	}

	// bitmap addresses the activity bitmap of the array behind pointer
	// field f, k of the node's pointers.
	bitmap := func(sock, f, k int) ir.Value {
		vt := dsp.ValueType(s.Groups[n.Sockets[sock].GroupID].ValueType)
		arr := b.LoadPtr(b.FieldPtr(np, t, f, k))
		return b.FieldPtr(arr, vt, dsp.ArrayBitmap)
	}

	mask := b.ConstInt(1<<mir.ArrayCapacity - 1)
	for k, sock := range n.Data.SourceSockets {
		mask = b.IntBin(ir.IAnd, mask, b.LoadInt(bitmap(sock, analyze.ExtractSources, k), 4))
	}
	b.StoreInt(b.LoadPtr(b.FieldPtr(np, t, analyze.ExtractBitmap)), mask, 4)

	one := b.ConstInt(1)
	b.Loop(count, func(v ir.Value) {
		active := b.IntBin(ir.IAnd, b.IntBin(ir.IShr, mask, v), one)
		b.If(active, func() {
			b.Call(sym, ir.Void, b.Index(voices, v, stride))
		}, nil)
	})

	for k, sock := range n.Data.DestSockets {
		b.StoreInt(bitmap(sock, analyze.ExtractDests, k), mask, 4)
	}
}
