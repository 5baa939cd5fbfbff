package pass

import (
	"context"
	"math/rand"
	"testing"

	"github.com/monadgroup/axiom-sub000/internal/mir"
)

func sock(group int, read, written bool) mir.ValueSocket {
	return mir.ValueSocket{GroupID: group, ValueRead: read, ValueWritten: written}
}

func extractor(group int, read, written bool) mir.ValueSocket {
	s := sock(group, read, written)
	s.IsExtractor = true
	return s
}

func node(data mir.NodeData, sockets ...mir.ValueSocket) mir.Node {
	return mir.Node{Data: data, Sockets: sockets}
}

func block(id mir.BlockID, stmts ...mir.Statement) *mir.Block {
	return &mir.Block{ID: id, Name: "b", Statements: stmts}
}

func constNum(v float64) mir.Statement {
	return mir.NumConstant{Value: mir.NewConstantNum(v, mir.FormNone)}
}

func counter() SurfaceAllocator {
	next := mir.SurfaceID(100)
	ids := make(map[[2]uint64]mir.SurfaceID)
	return func(parent mir.SurfaceID, n int) mir.SurfaceID {
		k := [2]uint64{uint64(parent), uint64(n)}
		if id, ok := ids[k]; ok {
			return id
		}
		ids[k] = next
		next++
		return ids[k]
	}
}

// writesBefore checks that every node reading a group comes after every
// node writing it.
func writesBefore(t *testing.T, s *mir.Surface) {
	t.Helper()
	writer := make(map[int][]int)
	for ni, n := range s.Nodes {
		for _, so := range n.Sockets {
			if so.ValueWritten {
				writer[so.GroupID] = append(writer[so.GroupID], ni)
			}
		}
	}
	for ni, n := range s.Nodes {
		for _, so := range n.Sockets {
			if !so.ValueRead {
				continue
			}
			for _, w := range writer[so.GroupID] {
				if w > ni {
					t.Fatalf("node %d reads group %d before writer %d runs", ni, so.GroupID, w)
				}
			}
		}
	}
}

func TestOrderNodesWritersFirst(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for iter := 0; iter < 50; iter++ {
		n := 2 + rnd.Intn(10)

		// node i writes group i and reads a few groups of lower nodes
		s := &mir.Surface{ID: 1}
		for i := 0; i < n; i++ {
			src := mir.NoneSource()
			if i == n-1 {
				src = mir.SocketSource(0)
			}
			s.Groups = append(s.Groups, mir.ValueGroup{ValueType: mir.Num(), Source: src})
			nd := node(mir.CustomData(1), sock(i, false, true))
			for j := 0; j < i; j++ {
				if rnd.Intn(3) == 0 {
					nd.Sockets = append(nd.Sockets, sock(j, true, false))
				}
			}
			s.Nodes = append(s.Nodes, nd)
		}
		rnd.Shuffle(len(s.Nodes), func(i, j int) { s.Nodes[i], s.Nodes[j] = s.Nodes[j], s.Nodes[i] })

		p := mir.NewProject()
		p.Surfaces[1] = s
		sm := NewSourceMap(p)
		before := s.Clone()

		OrderNodes(s, sm)
		writesBefore(t, s)

		// the source map follows every node to its new index
		for i, nd := range before.Nodes {
			ref, ok := sm.Resolve(1, i)
			if !ok || ref.Surface != 1 {
				t.Fatalf("node %d not tracked", i)
			}
			if s.Nodes[ref.Node].Sockets[0] != nd.Sockets[0] {
				t.Fatalf("node %d resolved to %d, which writes group %d", i, ref.Node, s.Nodes[ref.Node].Sockets[0].GroupID)
			}
		}
	}
}

func TestOrderNodesOutputsFirst(t *testing.T) {
	s := &mir.Surface{ID: 1, Groups: []mir.ValueGroup{
		{ValueType: mir.Num()},
		{ValueType: mir.Num(), Source: mir.SocketSource(0)},
	}}
	s.Nodes = []mir.Node{
		node(mir.CustomData(9)),
		node(mir.CustomData(2), sock(0, true, false), sock(1, false, true)),
		node(mir.CustomData(1), sock(0, false, true)),
	}
	OrderNodes(s, nil)

	want := []mir.BlockID{1, 2, 9}
	for i, n := range s.Nodes {
		if n.Data.Block != want[i] {
			t.Fatalf("order %v at %d, want %v", n.Data.Block, i, want)
		}
	}
}

func TestGroupExtracted(t *testing.T) {
	const (
		notes = iota
		osc
		vca
		out
	)
	voices := mir.ArrayOf(mir.Num())
	s := &mir.Surface{ID: 1, Name: "synth", Groups: []mir.ValueGroup{
		{ValueType: voices},
		{ValueType: mir.Num()},
		{ValueType: voices},
		{ValueType: mir.Num(), Source: mir.SocketSource(0)},
	}}
	s.Nodes = []mir.Node{
		notes: node(mir.CustomData(10), extractor(0, false, true)),
		osc:   node(mir.CustomData(11), sock(0, true, false), sock(1, false, true)),
		vca:   node(mir.CustomData(12), sock(1, true, false), sock(2, false, true)),
		out:   node(mir.CustomData(13), extractor(2, true, false), sock(3, false, true)),
	}
	p := mir.NewProject()
	p.Surfaces[1] = s
	sm := NewSourceMap(p)

	children := GroupExtracted(s, counter(), sm)
	if len(children) != 1 {
		t.Fatalf("%d extracted surfaces", len(children))
	}
	child := children[0]
	if child.ID != 100 || len(child.Nodes) != 2 {
		t.Fatalf("child = %v", child)
	}
	if child.Nodes[0].Data.Block != 11 || child.Nodes[1].Data.Block != 12 {
		t.Fatalf("child nodes = %v", child)
	}

	if len(s.Nodes) != 3 {
		t.Fatalf("parent = %v", s)
	}
	if s.Nodes[0].Data.Block != 10 || s.Nodes[1].Data.Block != 13 {
		t.Fatalf("parent kept %v", s)
	}
	eg := s.Nodes[2]
	if eg.Data.Kind != mir.NodeExtractGroup || eg.Data.Surface != child.ID {
		t.Fatalf("extract node = %+v", eg.Data)
	}
	if len(eg.Data.SourceSockets) != 1 || len(eg.Data.DestSockets) != 1 {
		t.Fatalf("extract sockets = %+v", eg.Data)
	}
	if g := eg.Sockets[eg.Data.SourceSockets[0]].GroupID; g != 0 {
		t.Fatalf("source socket on group %d", g)
	}
	if g := eg.Sockets[eg.Data.DestSockets[0]].GroupID; g != 2 {
		t.Fatalf("dest socket on group %d", g)
	}

	// the group between osc and vca moved into the child
	internal := 0
	for _, g := range child.Groups {
		switch g.Source.Kind {
		case mir.SourceSocket:
			if !g.ValueType.Equal(mir.Num()) {
				t.Fatalf("per-voice group is %v", g.ValueType)
			}
		default:
			internal++
		}
	}
	if internal != 1 || len(child.Groups) != 3 {
		t.Fatalf("child groups = %+v", child.Groups)
	}

	for host, want := range map[int]bool{notes: false, osc: true, vca: true, out: false} {
		if got := sm.IsExtracted(1, host); got != want {
			t.Fatalf("node %d extracted = %v", host, got)
		}
	}
	if parent, ok := sm.Parent(child.ID); !ok || parent != (NodeRef{Surface: 1, Node: 2}) {
		t.Fatalf("parent = %v %v", parent, ok)
	}
	if ref, _ := sm.Resolve(1, out); ref != (NodeRef{Surface: 1, Node: 1}) {
		t.Fatalf("out node resolves to %v", ref)
	}
}

func TestGroupExtractedMixesOutputs(t *testing.T) {
	const (
		notes = iota
		osc
		vca
	)
	s := &mir.Surface{ID: 1, Name: "synth", Groups: []mir.ValueGroup{
		{ValueType: mir.ArrayOf(mir.Num())},
		{ValueType: mir.Num()},
		{ValueType: mir.Num(), Source: mir.SocketSource(0)},
	}}
	s.Nodes = []mir.Node{
		notes: node(mir.CustomData(10), extractor(0, false, true)),
		osc:   node(mir.CustomData(11), sock(0, true, false), sock(1, false, true)),
		vca:   node(mir.CustomData(12), sock(1, true, false), sock(2, false, true)),
	}

	children := GroupExtracted(s, counter(), nil)
	if len(children) != 1 {
		t.Fatalf("%d extracted surfaces", len(children))
	}
	child := children[0]
	if len(s.Nodes) != 3 {
		t.Fatalf("parent = %v", s)
	}

	eg := s.Nodes[1]
	if eg.Data.Kind != mir.NodeExtractGroup || len(eg.Data.DestSockets) != 1 {
		t.Fatalf("extract node = %+v", eg)
	}
	dest := eg.Sockets[eg.Data.DestSockets[0]]
	if !dest.IsExtractor || !dest.ValueWritten || dest.GroupID == 2 {
		t.Fatalf("dest socket = %+v", dest)
	}
	if typ := s.Groups[dest.GroupID].ValueType; !typ.Equal(mir.ArrayOf(mir.Num())) {
		t.Fatalf("voices collected into %v", typ)
	}
	for _, g := range child.Groups {
		if g.Source.Kind == mir.SourceSocket && g.Source.Socket == eg.Data.DestSockets[0] && !g.ValueType.Equal(mir.Num()) {
			t.Fatalf("per-voice output is %v", g.ValueType)
		}
	}

	mix := s.Nodes[2]
	if mix.Data.Kind != mir.NodeCustom || mix.Data.Block != mir.MixdownBlockID {
		t.Fatalf("mixdown node = %+v", mix)
	}
	if mix.Sockets[0].GroupID != dest.GroupID || !mix.Sockets[0].ValueRead {
		t.Fatalf("mixdown reads %+v", mix.Sockets[0])
	}
	if mix.Sockets[1].GroupID != 2 || !mix.Sockets[1].ValueWritten {
		t.Fatalf("mixdown writes %+v", mix.Sockets[1])
	}
	for ni, n := range s.Nodes[:2] {
		for _, so := range n.Sockets {
			if so.GroupID == 2 {
				t.Fatalf("node %d still uses the output group: %+v", ni, n)
			}
		}
	}

	if again := GroupExtracted(s, counter(), nil); len(again) != 0 {
		t.Fatalf("second run extracted %v", again)
	}
}

func TestOptimizeAddsMixdownBlockOnlyWhenUsed(t *testing.T) {
	p := mir.NewProject()
	p.Blocks[5] = block(5, constNum(1))
	p.Surfaces[mir.RootSurfaceID] = &mir.Surface{Groups: []mir.ValueGroup{{ValueType: mir.Num()}}, Nodes: []mir.Node{
		node(mir.CustomData(5), sock(0, false, true)),
	}}
	out, _ := Optimize(context.Background(), p, counter())
	if _, ok := out.Blocks[mir.MixdownBlockID]; ok {
		t.Fatalf("mixdown block kept without extraction")
	}

	p.Blocks[6] = block(6, constNum(2))
	p.Surfaces[mir.RootSurfaceID] = &mir.Surface{Groups: []mir.ValueGroup{
		{ValueType: mir.ArrayOf(mir.Num())},
		{ValueType: mir.Num(), Source: mir.SocketSource(0)},
	}, Nodes: []mir.Node{
		node(mir.CustomData(5), extractor(0, false, true)),
		node(mir.CustomData(6), sock(0, true, false), sock(1, false, true)),
	}}
	out, _ = Optimize(context.Background(), p, counter())
	if _, ok := out.Blocks[mir.MixdownBlockID]; !ok {
		t.Fatalf("mixdown block missing: %v", out.BlockIDs())
	}
}

func TestGroupExtractedLeavesPlainSurfaces(t *testing.T) {
	s := &mir.Surface{ID: 1, Groups: []mir.ValueGroup{{ValueType: mir.Num()}}}
	s.Nodes = []mir.Node{
		node(mir.CustomData(1), sock(0, false, true)),
		node(mir.CustomData(2), sock(0, true, false)),
	}
	if children := GroupExtracted(s, counter(), nil); len(children) != 0 || len(s.Nodes) != 2 {
		t.Fatalf("extracted %v from %v", children, s)
	}
}

// pair returns a project whose root runs surfaces 1 and 2, which differ
// only in the order of their value groups.
func pair() *mir.Project {
	p := mir.NewProject()
	p.Blocks[5] = block(5, constNum(1))
	p.Blocks[6] = block(6, constNum(1))
	p.Blocks[7] = block(7, constNum(2))

	def := mir.DefaultSource(mir.NewConstantNum(0.5, mir.FormFrequency))
	p.Surfaces[1] = &mir.Surface{ID: 1, Groups: []mir.ValueGroup{
		{ValueType: mir.Num()},
		{ValueType: mir.Num(), Source: def},
	}, Nodes: []mir.Node{
		node(mir.CustomData(5), sock(0, false, true), sock(1, true, false)),
		node(mir.CustomData(7), sock(0, true, false)),
	}}
	p.Surfaces[2] = &mir.Surface{ID: 2, Groups: []mir.ValueGroup{
		{ValueType: mir.Num(), Source: def},
		{ValueType: mir.Num()},
	}, Nodes: []mir.Node{
		node(mir.CustomData(6), sock(1, false, true), sock(0, true, false)),
		node(mir.CustomData(7), sock(1, true, false)),
	}}
	p.Surfaces[mir.RootSurfaceID] = &mir.Surface{ID: mir.RootSurfaceID, Nodes: []mir.Node{
		node(mir.GroupData(1)),
		node(mir.GroupData(2)),
	}}
	return p
}

func TestDedupAfterGroupSort(t *testing.T) {
	p := pair()
	sm := NewSourceMap(p)
	SortGroupSockets(p)

	if n := DedupBlocks(p); n != 1 {
		t.Fatalf("dedup blocks removed %d", n)
	}
	if _, ok := p.Blocks[6]; ok {
		t.Fatalf("block 6 kept over 5")
	}
	if n := DedupSurfaces(p, sm); n != 1 {
		t.Fatalf("dedup surfaces removed %d", n)
	}
	root := p.Surfaces[mir.RootSurfaceID]
	if root.Nodes[0].Data.Surface != 1 || root.Nodes[1].Data.Surface != 1 {
		t.Fatalf("root = %v", root)
	}
	if got := sm.Canonical(2); got != 1 {
		t.Fatalf("canonical(2) = %d", got)
	}
}

func TestDedupIdempotent(t *testing.T) {
	p := pair()
	sm := NewSourceMap(p)
	SortGroupSockets(p)
	DedupBlocks(p)
	DedupSurfaces(p, sm)

	keys := func() map[mir.SurfaceID]string {
		m := make(map[mir.SurfaceID]string)
		for id, s := range p.Surfaces {
			m[id] = s.String()
		}
		return m
	}
	before := keys()
	blocks := len(p.Blocks)

	if n := DedupBlocks(p); n != 0 || len(p.Blocks) != blocks {
		t.Fatalf("second block dedup removed %d", n)
	}
	if n := DedupSurfaces(p, sm); n != 0 {
		t.Fatalf("second surface dedup removed %d", n)
	}
	after := keys()
	if len(before) != len(after) {
		t.Fatalf("surfaces %d -> %d", len(before), len(after))
	}
	for id, s := range before {
		if after[id] != s {
			t.Fatalf("surface %d changed:\n%s\n%s", id, s, after[id])
		}
	}
}

func TestFlattenSingleGroup(t *testing.T) {
	p := mir.NewProject()
	p.Blocks[5] = block(5, constNum(1))
	p.Blocks[6] = block(6, constNum(2))

	def := mir.DefaultSource(mir.NewConstantNum(0.5, mir.FormFrequency))
	p.Surfaces[3] = &mir.Surface{ID: 3, Groups: []mir.ValueGroup{
		{ValueType: mir.Num(), Source: mir.SocketSource(0)},
		{ValueType: mir.Num(), Source: def},
	}, Nodes: []mir.Node{
		node(mir.CustomData(5), sock(1, true, false), sock(0, false, true)),
		node(mir.CustomData(6), sock(0, true, false)),
	}}
	p.Surfaces[mir.RootSurfaceID] = &mir.Surface{ID: mir.RootSurfaceID, Groups: []mir.ValueGroup{
		{ValueType: mir.Num(), Source: mir.SocketSource(0)},
	}, Nodes: []mir.Node{
		node(mir.CustomData(6), sock(0, true, false)),
		node(mir.GroupData(3), sock(0, false, true)),
	}}
	sm := NewSourceMap(p)

	changed := FlattenGroups(p, sm)
	if len(changed) != 1 || changed[0] != mir.RootSurfaceID {
		t.Fatalf("changed = %v", changed)
	}
	if _, ok := p.Surfaces[3]; ok {
		t.Fatalf("flattened surface kept")
	}

	root := p.Surfaces[mir.RootSurfaceID]
	if len(root.Nodes) != 3 {
		t.Fatalf("root nodes = %d, want 2 - 1 + 2", len(root.Nodes))
	}
	if len(root.Groups) != 2 || root.Groups[1].Source.Kind != mir.SourceDefault {
		t.Fatalf("root groups = %+v", root.Groups)
	}
	// the child's socket group is the placeholder's group
	if g := root.Nodes[1].Sockets[1].GroupID; g != 0 {
		t.Fatalf("child output bound to group %d", g)
	}
	if g := root.Nodes[1].Sockets[0].GroupID; g != 1 {
		t.Fatalf("child default input bound to group %d", g)
	}

	if ref, _ := sm.Resolve(3, 1); ref != (NodeRef{Surface: mir.RootSurfaceID, Node: 2}) {
		t.Fatalf("child node 1 resolves to %v", ref)
	}
	if ref, _ := sm.Resolve(mir.RootSurfaceID, 1); ref.Node != -1 {
		t.Fatalf("placeholder resolves to %v", ref)
	}
	if got := sm.Canonical(3); got != mir.RootSurfaceID {
		t.Fatalf("canonical(3) = %d", got)
	}
}

func TestFlattenSkipsSharedAndExtracted(t *testing.T) {
	p := pair()
	delete(p.Surfaces, 2)
	p.Surfaces[mir.RootSurfaceID].Nodes[1].Data.Surface = 1
	if changed := FlattenGroups(p, nil); len(changed) != 0 {
		t.Fatalf("flattened a shared surface into %v", changed)
	}

	p = mir.NewProject()
	p.Surfaces[4] = &mir.Surface{ID: 4}
	p.Surfaces[mir.RootSurfaceID] = &mir.Surface{ID: mir.RootSurfaceID, Nodes: []mir.Node{
		node(mir.ExtractGroupData(4, nil, nil)),
	}}
	if changed := FlattenGroups(p, nil); len(changed) != 0 {
		t.Fatalf("flattened an extract group")
	}
}

func TestRemoveDeadGroups(t *testing.T) {
	s := &mir.Surface{ID: 1, Groups: []mir.ValueGroup{
		{ValueType: mir.Num()},
		{ValueType: mir.Midi()},
		{ValueType: mir.Num(), Source: mir.SocketSource(0)},
	}, Nodes: []mir.Node{
		node(mir.CustomData(1), sock(2, true, false), sock(0, false, true)),
	}}
	if !RemoveDeadGroups(s) {
		t.Fatalf("nothing removed")
	}
	if len(s.Groups) != 2 || s.Groups[1].Source.Kind != mir.SourceSocket {
		t.Fatalf("groups = %+v", s.Groups)
	}
	if s.Nodes[0].Sockets[0].GroupID != 1 || s.Nodes[0].Sockets[1].GroupID != 0 {
		t.Fatalf("sockets = %+v", s.Nodes[0].Sockets)
	}
	if RemoveDeadGroups(s) {
		t.Fatalf("second pass removed groups")
	}

	SortValueGroups(s)
	if s.Groups[0].Source.Kind != mir.SourceSocket || s.Nodes[0].Sockets[0].GroupID != 0 {
		t.Fatalf("sorted groups = %+v", s.Groups)
	}
}

func TestOptimizeLeavesSourceAlone(t *testing.T) {
	src := pair()
	src.Surfaces[9] = &mir.Surface{ID: 9}
	src.Blocks[8] = block(8, constNum(3))
	before := make(map[mir.SurfaceID]string)
	for id, s := range src.Surfaces {
		before[id] = s.String()
	}

	p, sm := Optimize(context.Background(), src, counter())
	if _, ok := p.Surfaces[9]; ok {
		t.Fatalf("unreachable surface kept")
	}
	if _, ok := p.Blocks[8]; ok {
		t.Fatalf("unused block kept")
	}
	if _, ok := p.Surfaces[2]; ok {
		t.Fatalf("duplicate surface kept")
	}
	if sm.Canonical(2) != 1 {
		t.Fatalf("duplicate not aliased")
	}

	for id, s := range src.Surfaces {
		if s.String() != before[id] {
			t.Fatalf("source surface %d changed", id)
		}
	}
	if len(src.Blocks) != 4 {
		t.Fatalf("source blocks = %d", len(src.Blocks))
	}
}
