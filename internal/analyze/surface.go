package analyze

import (
	"github.com/nikandfor/errors"

	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// Fields of an extract group node's scratch.
const (
	ExtractScratchVoices = iota
	ExtractScratchBitmap
)

// Fields of an extract group node's pointer struct.
const (
	ExtractVoices = iota
	ExtractSources
	ExtractDests
	ExtractBitmap
)

// Fields of a group node's scratch.
const (
	GroupScratch = iota
	GroupShared
)

type NodeLayout struct {
	Kind  mir.NodeKind
	Block *BlockLayout
	Sub   *SurfaceLayout

	// Storage fields owned by the node, -1 when it has none.
	ScratchIndex int
	SharedIndex  int
	InitIndex    int

	Pointers PointerSource
}

// SurfaceLayout is the storage of one surface instance. Scratch holds the
// unsourced groups followed by node scratch; Initialized holds default
// group values followed by node constants.
type SurfaceLayout struct {
	Surface *mir.Surface

	Scratch     *datatype.Type
	Shared      *datatype.Type
	Initialized *datatype.Type

	InitializedValue datatype.Constant

	// Groups is the group pointer table, indexed by group id.
	Groups   []PointerSource
	Nodes    []NodeLayout
	Pointers PointerSource
}

// Resolver provides the layouts of the blocks and surfaces a surface
// refers to.
type Resolver interface {
	BlockLayout(id mir.BlockID) (*BlockLayout, bool)
	SurfaceLayout(id mir.SurfaceID) (*SurfaceLayout, bool)
}

func (l *SurfaceLayout) PointersType() *datatype.Type { return l.Pointers.Type() }

type surfaceBuilder struct {
	scratch, shared, init []*datatype.Type
	initValues            []datatype.Constant
}

func (b *surfaceBuilder) addScratch(t *datatype.Type) int {
	b.scratch = append(b.scratch, t)
	return len(b.scratch) - 1
}

func (b *surfaceBuilder) addShared(t *datatype.Type) int {
	b.shared = append(b.shared, t)
	return len(b.shared) - 1
}

func (b *surfaceBuilder) addInit(t *datatype.Type, v datatype.Constant) int {
	b.init = append(b.init, t)
	b.initValues = append(b.initValues, v)
	return len(b.init) - 1
}

// AnalyzeSurface lays out s. Every block and subsurface s refers to must
// already be laid out.
func AnalyzeSurface(s *mir.Surface, r Resolver) (*SurfaceLayout, error) {
	l := &SurfaceLayout{Surface: s}
	var b surfaceBuilder

	for _, g := range s.Groups {
		var src PointerSource
		switch g.Source.Kind {
		case mir.SourceSocket:
			src = Socket(g.Source.Socket)
		case mir.SourceDefault:
			k := b.addInit(dsp.ValueType(g.ValueType), groupInitializer(g.ValueType, g.Source.Default))
			src = Initialized(k)
		default:
			src = Scratch(b.addScratch(dsp.ValueType(g.ValueType)))
		}
		l.Groups = append(l.Groups, src)
	}

	for i, n := range s.Nodes {
		nl := NodeLayout{Kind: n.Data.Kind, ScratchIndex: -1, SharedIndex: -1, InitIndex: -1}
		socket := func(k int) PointerSource {
			return l.Groups[n.Sockets[k].GroupID]
		}

		switch n.Data.Kind {
		case mir.NodeDummy:
			nl.Pointers = Aggregate(AggregateStruct)

		case mir.NodeCustom:
			bl, ok := r.BlockLayout(n.Data.Block)
			if !ok {
				return nil, errors.New("surface %v: node %d: no layout for block %v", s.ID, i, n.Data.Block)
			}
			nl.Block = bl
			nl.ScratchIndex = b.addScratch(bl.Scratch)
			nl.SharedIndex = b.addShared(bl.Shared)
			nl.InitIndex = b.addInit(bl.Constant, bl.ConstantValue)

			m := prefix([]int{nl.InitIndex}, []int{nl.ScratchIndex}, []int{nl.SharedIndex})
			m.Socket = func(k int, p []int) PointerSource { return socket(k).Append(p...) }
			nl.Pointers = bl.Pointers.Map(m)

		case mir.NodeGroup:
			sub, ok := r.SurfaceLayout(n.Data.Surface)
			if !ok {
				return nil, errors.New("surface %v: node %d: no layout for surface %v", s.ID, i, n.Data.Surface)
			}
			nl.Sub = sub
			nl.ScratchIndex = b.addScratch(datatype.Struct(sub.Scratch, sub.Shared))
			nl.InitIndex = b.addInit(sub.Initialized, sub.InitializedValue)

			m := prefix([]int{nl.InitIndex}, []int{nl.ScratchIndex, GroupScratch}, nil)
			m.Shared = func(p []int) PointerSource { return Scratch(concat([]int{nl.ScratchIndex, GroupShared}, p...)...) }
			m.Socket = func(k int, p []int) PointerSource { return socket(k).Append(p...) }
			nl.Pointers = sub.Pointers.Map(m)

		case mir.NodeExtractGroup:
			sub, ok := r.SurfaceLayout(n.Data.Surface)
			if !ok {
				return nil, errors.New("surface %v: node %d: no layout for surface %v", s.ID, i, n.Data.Surface)
			}
			nl.Sub = sub
			nl.ScratchIndex = b.addScratch(datatype.Struct(
				datatype.Array(sub.Scratch, mir.ArrayCapacity),
				datatype.Int32(),
			))
			nl.SharedIndex = b.addShared(sub.Shared)
			nl.InitIndex = b.addInit(sub.Initialized, sub.InitializedValue)
			nl.Pointers = extractPointers(n, nl, sub, socket)

		default:
			return nil, errors.New("surface %v: node %d: unknown kind %v", s.ID, i, n.Data.Kind)
		}
		l.Nodes = append(l.Nodes, nl)
	}

	l.Scratch = datatype.Struct(b.scratch...)
	l.Shared = datatype.Struct(b.shared...)
	l.Initialized = datatype.Struct(b.init...)
	l.InitializedValue = datatype.ConstStruct{T: l.Initialized, Fields: b.initValues}

	ptrs := make([]PointerSource, len(l.Nodes))
	for i, nl := range l.Nodes {
		ptrs[i] = nl.Pointers
	}
	l.Pointers = Aggregate(AggregateStruct, ptrs...)
	return l, nil
}

func extractPointers(n mir.Node, nl NodeLayout, sub *SurfaceLayout, socket func(int) PointerSource) PointerSource {
	perVoice := make(map[int]bool)
	for _, k := range n.Data.SourceSockets {
		perVoice[k] = true
	}
	for _, k := range n.Data.DestSockets {
		perVoice[k] = true
	}

	voices := make([]PointerSource, mir.ArrayCapacity)
	for v := range voices {
		m := prefix([]int{nl.InitIndex}, []int{nl.ScratchIndex, ExtractScratchVoices, v}, []int{nl.SharedIndex})
		m.Socket = func(k int, p []int) PointerSource {
			if perVoice[k] {
				return socket(k).Append(concat([]int{dsp.ArrayItems, v}, p...)...)
			}
			return socket(k).Append(p...)
		}
		voices[v] = sub.Pointers.Map(m)
	}

	arrays := func(ks []int) PointerSource {
		ptrs := make([]PointerSource, len(ks))
		for i, k := range ks {
			ptrs[i] = socket(k)
		}
		return Aggregate(AggregateStruct, ptrs...)
	}

	return Aggregate(AggregateStruct,
		Aggregate(AggregateArray, voices...),
		arrays(n.Data.SourceSockets),
		arrays(n.Data.DestSockets),
		Scratch(nl.ScratchIndex, ExtractScratchBitmap),
	)
}
