package analyze

import (
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/mir"
	"github.com/monadgroup/axiom-sub000/internal/pass"
)

type layouts struct {
	blocks   map[mir.BlockID]*BlockLayout
	surfaces map[mir.SurfaceID]*SurfaceLayout
}

func (l *layouts) BlockLayout(id mir.BlockID) (*BlockLayout, bool) {
	b, ok := l.blocks[id]
	return b, ok
}

func (l *layouts) SurfaceLayout(id mir.SurfaceID) (*SurfaceLayout, bool) {
	s, ok := l.surfaces[id]
	return s, ok
}

// analyzeProject lays out every surface of p, children first.
func analyzeProject(t *testing.T, p *mir.Project) *layouts {
	t.Helper()
	l := &layouts{blocks: map[mir.BlockID]*BlockLayout{}, surfaces: map[mir.SurfaceID]*SurfaceLayout{}}
	for id, b := range p.Blocks {
		l.blocks[id] = AnalyzeBlock(b, Options{})
	}
	var visit func(id mir.SurfaceID)
	visit = func(id mir.SurfaceID) {
		if _, ok := l.surfaces[id]; ok {
			return
		}
		s := p.Surfaces[id]
		for _, n := range s.Nodes {
			if sub, ok := n.Data.References(); ok {
				visit(sub)
			}
		}
		sl, err := AnalyzeSurface(s, l)
		if err != nil {
			t.Fatalf("analyze surface %v: %v", id, err)
		}
		l.surfaces[id] = sl
	}
	for _, id := range p.SurfaceIDs() {
		visit(id)
	}
	return l
}

func audioBlock(id mir.BlockID, controls ...string) *mir.Block {
	b := &mir.Block{ID: id, Name: fmt.Sprint("b", id)}
	for _, c := range controls {
		b.Controls = append(b.Controls, mir.Control{Name: c, Type: mir.ControlAudio, ValueRead: true, ValueWritten: true})
	}
	return b
}

func TestBlockLayoutPointerStruct(t *testing.T) {
	b := audioBlock(1, "in", "out")
	b.Controls = append(b.Controls, mir.Control{Name: "g", Type: mir.ControlGraph})
	b.Statements = []mir.Statement{
		mir.LoadControl{Control: 0, Field: mir.FieldAudioValue},
		mir.CallFunc{Function: mir.FuncSinOsc, Args: []int{0, 0}},
		mir.CallFunc{Function: mir.FuncCos, Args: []int{1}},
	}

	l := AnalyzeBlock(b, Options{IncludeUI: true})
	want := "{{socket(0)[], scratch[0], shared[0], shared[1]}, " +
		"{socket(1)[], scratch[1], shared[2], shared[3]}, " +
		"{socket(2)[], scratch[2], shared[4], shared[5]}, scratch[3], scratch[4]}"
	if got := l.Pointers.String(); got != want {
		t.Fatalf("pointers =\n%s\nwant\n%s", got, want)
	}
	if got := l.Scratch.Child(2); got != dsp.ControlData(mir.ControlGraph) {
		t.Fatalf("graph scratch = %v", got)
	}
	if got := l.PointersType().Size(); got != 3*4*datatype.PointerSize+2*datatype.PointerSize {
		t.Fatalf("pointers size = %d", got)
	}
}

func TestSurfaceLayoutBindsSocketsToGroups(t *testing.T) {
	blk := audioBlock(1, "in", "out")
	s := &mir.Surface{
		ID: 0,
		Groups: []mir.ValueGroup{
			{ValueType: mir.Num(), Source: mir.DefaultSource(mir.NewConstantNum(0.5, mir.FormFrequency))},
			{ValueType: mir.Num(), Source: mir.NoneSource()},
			{ValueType: mir.Num(), Source: mir.SocketSource(0)},
		},
		Nodes: []mir.Node{
			{Data: mir.CustomData(1), Sockets: []mir.ValueSocket{{GroupID: 0, ValueRead: true}, {GroupID: 1, ValueWritten: true}}},
			{Data: mir.CustomData(1), Sockets: []mir.ValueSocket{{GroupID: 1, ValueRead: true}, {GroupID: 2, ValueWritten: true}}},
		},
	}
	p := mir.NewProject()
	p.Blocks[1] = blk
	p.Surfaces[0] = s
	l := analyzeProject(t, p).surfaces[0]

	want := "{{{init[0], scratch[1 0], shared[0 0]}, {scratch[0], scratch[1 1], shared[0 1]}}, " +
		"{{scratch[0], scratch[2 0], shared[1 0]}, {socket(0)[], scratch[2 1], shared[1 1]}}}"
	if got := l.Pointers.String(); got != want {
		t.Fatalf("pointers =\n%s\nwant\n%s", got, want)
	}

	root := AnalyzeRoot(&mir.Root{Sockets: []mir.RootSocket{{Name: "out", Kind: mir.PortalOutput, Type: mir.Num()}}}, l)
	buf, relocs, err := datatype.Encode(root.Pointers)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != l.PointersType().Size() || len(relocs) != 12 {
		t.Fatalf("folded %d bytes, %d relocs", len(buf), len(relocs))
	}
	init, _, err := datatype.Encode(l.InitializedValue)
	if err != nil {
		t.Fatal(err)
	}
	if got := math.Float64frombits(binary.LittleEndian.Uint64(init)); got != 0.5 {
		t.Fatalf("default group value = %v, want 0.5", got)
	}
}

// describe reduces a leaf to what it points at: its storage class and, for
// initialized storage, the initial bytes.
func describe(l *SurfaceLayout, init []byte, leaf PointerSource) string {
	switch leaf.Kind {
	case SourceInitialized:
		off, typ := l.Initialized.Offset(leaf.Path...)
		return fmt.Sprintf("init %x", init[off:off+typ.Size()])
	case SourceScratch:
		_, typ := l.Scratch.Offset(leaf.Path...)
		return "scratch " + typ.String()
	case SourceSocket:
		return fmt.Sprintf("socket %d", leaf.Socket)
	}
	return leaf.Kind.String()
}

// controlValues lists what each control value pointer of each custom node
// points at, and which nodes share a location.
func controlValues(t *testing.T, l *SurfaceLayout) []string {
	t.Helper()
	init, _, err := datatype.Encode(l.InitializedValue)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]int{}
	var out []string
	var walk func(p PointerSource, depth int)
	walk = func(p PointerSource, depth int) {
		if p.IsLeaf() || len(p.Children) == 0 {
			return
		}
		if first := p.Children[0]; first.IsLeaf() && len(p.Children) >= 3 {
			key := first.String()
			if _, ok := seen[key]; !ok {
				seen[key] = len(seen)
			}
			out = append(out, fmt.Sprintf("%s #%d", describe(l, init, first), seen[key]))
			return
		}
		for _, c := range p.Children {
			walk(c, depth+1)
		}
	}
	walk(l.Pointers, 0)
	return out
}

func TestFlattenKeepsControlStorage(t *testing.T) {
	p := mir.NewProject()
	p.Blocks[1] = audioBlock(1, "in", "out")
	p.Blocks[2] = audioBlock(2, "in")
	p.Surfaces[5] = &mir.Surface{
		ID: 5,
		Groups: []mir.ValueGroup{
			{ValueType: mir.Num(), Source: mir.DefaultSource(mir.NewConstantNum(0.5, mir.FormFrequency))},
			{ValueType: mir.Num(), Source: mir.NoneSource()},
		},
		Nodes: []mir.Node{
			{Data: mir.CustomData(1), Sockets: []mir.ValueSocket{{GroupID: 0, ValueRead: true}, {GroupID: 1, ValueWritten: true}}},
			{Data: mir.CustomData(2), Sockets: []mir.ValueSocket{{GroupID: 1, ValueRead: true}}},
		},
	}
	p.Surfaces[0] = &mir.Surface{ID: 0, Nodes: []mir.Node{{Data: mir.GroupData(5)}}}

	before := controlValues(t, analyzeProject(t, p).surfaces[0])

	flat := p.Clone()
	if got := pass.FlattenGroups(flat, nil); len(got) != 1 {
		t.Fatalf("flattened %v", got)
	}
	if len(flat.Surfaces[0].Nodes) != 2 || len(flat.Surfaces[0].Groups) != 2 {
		t.Fatalf("flattened surface = %v", flat.Surfaces[0])
	}
	after := controlValues(t, analyzeProject(t, flat).surfaces[0])

	if fmt.Sprint(before) != fmt.Sprint(after) {
		t.Fatalf("control storage changed:\nbefore %v\nafter  %v", before, after)
	}
	if len(after) != 3 {
		t.Fatalf("controls = %v", after)
	}
}

func TestExtractGroupPerVoicePointers(t *testing.T) {
	p := mir.NewProject()
	p.Blocks[1] = audioBlock(1, "in", "out")
	p.Surfaces[7] = &mir.Surface{
		ID: 7,
		Groups: []mir.ValueGroup{
			{ValueType: mir.Num(), Source: mir.SocketSource(0)},
			{ValueType: mir.Num(), Source: mir.SocketSource(1)},
		},
		Nodes: []mir.Node{
			{Data: mir.CustomData(1), Sockets: []mir.ValueSocket{{GroupID: 0, ValueRead: true}, {GroupID: 1, ValueWritten: true}}},
		},
	}
	arr := mir.ArrayOf(mir.Num())
	p.Surfaces[0] = &mir.Surface{
		ID: 0,
		Groups: []mir.ValueGroup{
			{ValueType: arr, Source: mir.NoneSource()},
			{ValueType: arr, Source: mir.NoneSource()},
		},
		Nodes: []mir.Node{{
			Data:    mir.ExtractGroupData(7, []int{0}, []int{1}),
			Sockets: []mir.ValueSocket{{GroupID: 0, ValueRead: true, IsExtractor: true}, {GroupID: 1, ValueWritten: true, IsExtractor: true}},
		}},
	}
	l := analyzeProject(t, p).surfaces[0]
	eg := l.Nodes[0].Pointers

	voice3 := eg.Children[ExtractVoices].Children[3]
	want := "{{{scratch[0 1 3], scratch[2 0 3 0 0], shared[0 0 0]}, {scratch[1 1 3], scratch[2 0 3 0 1], shared[0 0 1]}}}"
	if got := voice3.String(); got != want {
		t.Fatalf("voice 3 =\n%s\nwant\n%s", got, want)
	}
	if got := eg.Children[ExtractSources].String(); got != "{scratch[0]}" {
		t.Fatalf("sources = %s", got)
	}
	if got := eg.Children[ExtractBitmap].String(); got != "scratch[2 1]" {
		t.Fatalf("bitmap = %s", got)
	}
}
