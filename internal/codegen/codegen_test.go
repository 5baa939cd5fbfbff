package codegen

import (
	"math"
	"testing"

	"github.com/monadgroup/axiom-sub000/internal/analyze"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/ir"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

type layouts struct {
	blocks   map[mir.BlockID]*analyze.BlockLayout
	surfaces map[mir.SurfaceID]*analyze.SurfaceLayout
}

func (l *layouts) BlockLayout(id mir.BlockID) (*analyze.BlockLayout, bool) {
	b, ok := l.blocks[id]
	return b, ok
}

func (l *layouts) SurfaceLayout(id mir.SurfaceID) (*analyze.SurfaceLayout, bool) {
	s, ok := l.surfaces[id]
	return s, ok
}

type image struct {
	e    *jit.Engine
	root *analyze.RootLayout
	l    *layouts
}

// deploy lays out and emits every object of p, links the image and runs
// its construct.
func deploy(t *testing.T, p *mir.Project) *image {
	t.Helper()
	l := &layouts{blocks: map[mir.BlockID]*analyze.BlockLayout{}, surfaces: map[mir.SurfaceID]*analyze.SurfaceLayout{}}
	mods := []*ir.Module{Library()}
	for _, id := range p.BlockIDs() {
		bl := analyze.AnalyzeBlock(p.Blocks[id], analyze.Options{})
		l.blocks[id] = bl
		mods = append(mods, Block(bl))
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
		sl, err := analyze.AnalyzeSurface(s, l)
		if err != nil {
			t.Fatalf("analyze surface %v: %v", id, err)
		}
		l.surfaces[id] = sl
		mods = append(mods, Surface(sl))
	}
	visit(mir.RootSurfaceID)

	root := analyze.AnalyzeRoot(p.Root, l.surfaces[mir.RootSurfaceID])
	mods = append(mods, State(root), Root(root))

	e := jit.New()
	dsp.Register(e)
	for _, m := range mods {
		ir.Optimize(m, 2)
		if err := ir.Verify(m); err != nil {
			t.Fatalf("verify: %v", err)
		}
	}
	if err := e.ReplaceModules(mods...); err != nil {
		t.Fatalf("link: %v", err)
	}
	img := &image{e: e, root: root, l: l}
	img.call(t, Construct(RootModule))
	return img
}

func (img *image) call(t *testing.T, sym string, args ...jit.Reg) {
	t.Helper()
	if _, err := img.e.Call(sym, args...); err != nil {
		t.Fatalf("%v: %v", sym, err)
	}
}

func (img *image) portal(t *testing.T, i int) jit.Addr {
	t.Helper()
	a, ok := img.e.GlobalAddr(analyze.SymSockets)
	if !ok {
		t.Fatalf("no sockets global")
	}
	return a.Add(img.root.PortalOffset(i))
}

func (img *image) env(t *testing.T) dsp.Env {
	t.Helper()
	a, ok := img.e.GlobalAddr(SymEnv)
	if !ok {
		t.Fatalf("no env global")
	}
	return dsp.NewEnv(img.e.Memory(), a)
}

// oneNode builds a project whose root surface runs b with control i bound
// to portal i.
func oneNode(b *mir.Block, portals ...mir.RootSocket) *mir.Project {
	p := mir.NewProject()
	p.Root.Sockets = portals
	s := &mir.Surface{ID: mir.RootSurfaceID, Nodes: []mir.Node{{Data: mir.CustomData(b.ID)}}}
	for i, c := range b.Controls {
		s.Groups = append(s.Groups, mir.ValueGroup{ValueType: c.Type.ValueType(), Source: mir.SocketSource(i)})
		s.Nodes[0].Sockets = append(s.Nodes[0].Sockets, mir.ValueSocket{GroupID: i, ValueRead: c.ValueRead, ValueWritten: c.ValueWritten})
	}
	p.Surfaces[s.ID] = s
	p.Blocks[b.ID] = b
	return p
}

func constNum(v float64, form mir.FormType) mir.Statement {
	return mir.NumConstant{Value: mir.NewConstantNum(v, form)}
}

func TestBlockStatements(t *testing.T) {
	tests := []struct {
		name  string
		stmts []mir.Statement
		want  dsp.Num
	}{
		{"math", []mir.Statement{
			constNum(3, mir.FormSeconds), constNum(2, mir.FormNone),
			mir.NumMathOp{Op: mir.MathMultiply, Lhs: 0, Rhs: 1},
			constNum(1, mir.FormNone),
			mir.NumMathOp{Op: mir.MathAdd, Lhs: 2, Rhs: 3},
		}, dsp.NumOf(7, mir.FormSeconds)},
		{"convert", []mir.Statement{
			constNum(69, mir.FormNote),
			mir.NumConvert{Target: mir.FormFrequency, Input: 0},
		}, dsp.NumOf(440, mir.FormFrequency)},
		{"cast", []mir.Statement{
			constNum(0.5, mir.FormNote),
			mir.NumCast{Target: mir.FormSeconds, Input: 0},
		}, dsp.NumOf(0.5, mir.FormSeconds)},
		{"not", []mir.Statement{
			constNum(0, mir.FormNone),
			mir.NumUnaryOp{Op: mir.UnaryNot, Input: 0},
		}, dsp.NumOf(1, mir.FormNone)},
		{"tuple", []mir.Statement{
			mir.TupleConstant{Value: mir.ConstantTuple{Items: []mir.ConstantValue{
				mir.NewConstantNum(1, mir.FormNone), mir.NewConstantNum(2, mir.FormDb),
			}}},
			mir.Extract{Tuple: 0, Index: 1},
		}, dsp.NumOf(2, mir.FormDb)},
		{"combine", []mir.Statement{
			constNum(4, mir.FormNone), constNum(5, mir.FormNone),
			mir.Combine{Indexes: []int{0, 1}},
			mir.Extract{Tuple: 2, Index: 0},
		}, dsp.NumOf(4, mir.FormNone)},
		{"clamp", []mir.Statement{
			constNum(5, mir.FormControl), constNum(0, mir.FormNone), constNum(1, mir.FormNone),
			mir.CallFunc{Function: mir.FuncClamp, Args: []int{0, 1, 2}},
		}, dsp.NumOf(1, mir.FormControl)},
		{"stereo", []mir.Statement{
			constNum(1, mir.FormNone), constNum(2, mir.FormNone),
			mir.CallFunc{Function: mir.FuncCombine, Args: []int{0, 1}},
			mir.CallFunc{Function: mir.FuncSwap, Args: []int{2}},
		}, dsp.Num{Left: 2, Right: 1}},
		{"pan", []mir.Statement{
			constNum(1, mir.FormNone), constNum(-0.5, mir.FormNone),
			mir.CallFunc{Function: mir.FuncPan, Args: []int{0, 1}},
		}, dsp.Num{Left: 1, Right: 0.5}},
		{"global", []mir.Statement{
			mir.GlobalRead{Global: mir.GlobalSampleRate},
		}, dsp.NumOf(dsp.DefaultSampleRate, mir.FormFrequency)},
		{"sequence", []mir.Statement{
			constNum(1, mir.FormNone),
			constNum(10, mir.FormNone), constNum(20, mir.FormNone), constNum(30, mir.FormNone),
			mir.CallFunc{Function: mir.FuncSequence, Args: []int{0}, VarArgs: []int{1, 2, 3}},
		}, dsp.NumOf(20, mir.FormNone)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := &mir.Block{ID: 1, Controls: []mir.Control{{Name: "out", Type: mir.ControlAudio, ValueWritten: true}}}
			b.Statements = append(append(b.Statements, tc.stmts...),
				mir.StoreControl{Control: 0, Field: mir.FieldAudioValue, Value: len(tc.stmts) - 1})

			img := deploy(t, oneNode(b, mir.RootSocket{Name: "out", Kind: mir.PortalOutput, Type: mir.Num()}))
			img.call(t, Update(RootModule))

			got := dsp.ReadNum(img.e.Memory(), img.portal(t, 0))
			if math.Abs(got.Left-tc.want.Left) > 1e-9 || math.Abs(got.Right-tc.want.Right) > 1e-9 || got.Form != tc.want.Form {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestBlockReadsInputPortal(t *testing.T) {
	b := &mir.Block{ID: 4, Controls: []mir.Control{
		{Name: "in", Type: mir.ControlAudio, ValueRead: true},
		{Name: "out", Type: mir.ControlAudio, ValueWritten: true},
	}}
	b.Statements = []mir.Statement{
		mir.LoadControl{Control: 0, Field: mir.FieldAudioValue},
		constNum(2, mir.FormNone),
		mir.NumMathOp{Op: mir.MathMultiply, Lhs: 0, Rhs: 1},
		mir.StoreControl{Control: 1, Field: mir.FieldAudioValue, Value: 2},
	}
	img := deploy(t, oneNode(b,
		mir.RootSocket{Name: "in", Kind: mir.PortalInput, Type: mir.Num()},
		mir.RootSocket{Name: "out", Kind: mir.PortalOutput, Type: mir.Num()},
	))

	m := img.e.Memory()
	dsp.WriteNum(m, img.portal(t, 0), dsp.Num{Left: 3, Right: 4, Form: mir.FormAmplitude})
	img.call(t, Update(RootModule))
	got := dsp.ReadNum(m, img.portal(t, 1))
	if got != (dsp.Num{Left: 6, Right: 8, Form: mir.FormAmplitude}) {
		t.Fatalf("out = %+v", got)
	}
}

func TestGraphControlSpeed(t *testing.T) {
	b := &mir.Block{ID: 2, Controls: []mir.Control{
		{Name: "g", Type: mir.ControlGraph},
		{Name: "out", Type: mir.ControlAudio, ValueWritten: true},
	}}
	b.Statements = []mir.Statement{
		constNum(0, mir.FormNone),
		mir.StoreControl{Control: 0, Field: mir.FieldGraphSpeed, Value: 0},
		mir.LoadControl{Control: 0, Field: mir.FieldGraphSpeed},
		constNum(10, mir.FormNone),
		mir.NumMathOp{Op: mir.MathAdd, Lhs: 2, Rhs: 3},
		mir.StoreControl{Control: 1, Field: mir.FieldAudioValue, Value: 4},
	}
	p := oneNode(b)
	p.Surfaces[mir.RootSurfaceID].Groups[0].Source = mir.NoneSource()
	p.Root.Sockets = []mir.RootSocket{{}, {Name: "out", Kind: mir.PortalOutput, Type: mir.Num()}}

	img := deploy(t, p)
	img.call(t, Update(RootModule))
	if got := dsp.ReadNum(img.e.Memory(), img.portal(t, 1)); got.Left != 10 {
		t.Fatalf("out = %+v, want speed 0 read back", got)
	}
}

func TestConvertMatchesTable(t *testing.T) {
	img := deploy(t, oneNode(&mir.Block{ID: 1}))
	env := img.env(t)
	env.SetSampleRate(48000)
	env.SetBPM(120)
	timing := mir.Timing{SampleRate: 48000, BPM: 120}

	m := img.e.Memory()
	in := m.Alloc(numType.Size(), "in")
	out := m.Alloc(numType.Size(), "out")
	convert := func(n dsp.Num, target mir.FormType) dsp.Num {
		dsp.WriteNum(m, in, n)
		img.call(t, SymConvert, jit.PtrReg(out), jit.IntReg(int64(target)), jit.PtrReg(in))
		return dsp.ReadNum(m, out)
	}
	near := func(a, b float64) bool { return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b)) }

	for from := mir.FormType(0); from < mir.FormCount; from++ {
		for to := mir.FormType(0); to < mir.FormCount; to++ {
			x := dsp.Num{Left: 2.5, Right: 0.75, Form: from}
			got := convert(x, to)
			want := dsp.Num{Form: to}
			c := mir.ConvertNum(x.Constant(), to, timing)
			want.Left, want.Right = c.Left, c.Right
			if !near(got.Left, want.Left) || !near(got.Right, want.Right) || got.Form != to {
				t.Fatalf("%v -> %v: got %+v, want %+v", from, to, got, want)
			}

			// converting back restores x for every pair with a formula
			if mir.HasConversion(from, to) && mir.HasConversion(to, from) {
				back := convert(got, from)
				if !near(back.Left, x.Left) || !near(back.Right, x.Right) || back.Form != from {
					t.Fatalf("%v -> %v -> %v: got %+v, want %+v", from, to, from, back, x)
				}
			}
		}

		x := dsp.Num{Left: -1.25, Right: 3, Form: from}
		if got := convert(x, from); got != x {
			t.Fatalf("identity %v: got %+v", from, got)
		}
	}
}

// extractProject runs block 3 per voice: out = accum(in).
func extractProject() *mir.Project {
	b := &mir.Block{ID: 3, Controls: []mir.Control{
		{Name: "in", Type: mir.ControlAudio, ValueRead: true},
		{Name: "out", Type: mir.ControlAudio, ValueWritten: true},
	}}
	b.Statements = []mir.Statement{
		mir.LoadControl{Control: 0, Field: mir.FieldAudioValue},
		constNum(0, mir.FormNone),
		mir.CallFunc{Function: mir.FuncAccum, Args: []int{0, 1}},
		mir.StoreControl{Control: 1, Field: mir.FieldAudioValue, Value: 2},
	}

	voices := mir.ArrayOf(mir.Num())
	p := mir.NewProject()
	p.Blocks[b.ID] = b
	p.Root.Sockets = []mir.RootSocket{
		{Name: "in", Kind: mir.PortalInput, Type: voices},
		{Name: "out", Kind: mir.PortalOutput, Type: voices},
	}
	p.Surfaces[mir.RootSurfaceID] = &mir.Surface{
		ID: mir.RootSurfaceID,
		Groups: []mir.ValueGroup{
			{ValueType: voices, Source: mir.SocketSource(0)},
			{ValueType: voices, Source: mir.SocketSource(1)},
		},
		Nodes: []mir.Node{{
			Sockets: []mir.ValueSocket{{GroupID: 0, ValueRead: true, IsExtractor: true}, {GroupID: 1, ValueWritten: true}},
			Data:    mir.ExtractGroupData(2, []int{0}, []int{1}),
		}},
	}
	p.Surfaces[2] = &mir.Surface{
		ID: 2,
		Groups: []mir.ValueGroup{
			{ValueType: mir.Num(), Source: mir.SocketSource(0)},
			{ValueType: mir.Num(), Source: mir.SocketSource(1)},
		},
		Nodes: []mir.Node{{
			Sockets: []mir.ValueSocket{{GroupID: 0, ValueRead: true}, {GroupID: 1, ValueWritten: true}},
			Data:    mir.CustomData(b.ID),
		}},
	}
	return p
}

func TestExtractGroupRunsActiveVoices(t *testing.T) {
	img := deploy(t, extractProject())
	m := img.e.Memory()
	in, out := img.portal(t, 0), img.portal(t, 1)
	items := func(a jit.Addr, v int) jit.Addr {
		return dsp.ArrayItem(a, numType, v)
	}

	dsp.WriteBitmap(m, in, 0b101)
	dsp.WriteNum(m, items(in, 0), dsp.NumOf(1, mir.FormNone))
	dsp.WriteNum(m, items(in, 1), dsp.NumOf(100, mir.FormNone))
	dsp.WriteNum(m, items(in, 2), dsp.NumOf(10, mir.FormNone))

	scratch, _ := img.e.GlobalAddr(analyze.SymScratch)
	sl := img.root.Surface
	nl := sl.Nodes[0]
	voiceScratch := func(v int) []byte {
		off, typ := img.root.State.Offset(analyze.StateScratch, nl.ScratchIndex, analyze.ExtractScratchVoices, v)
		return append([]byte(nil), m.Slice(scratch.Add(off), typ.Size())...)
	}
	before := voiceScratch(1)

	img.call(t, Update(RootModule))
	img.call(t, Update(RootModule))

	if got := dsp.ReadBitmap(m, out); got != 0b101 {
		t.Fatalf("out bitmap = %b", got)
	}
	for v, want := range map[int]float64{0: 2, 1: 0, 2: 20} {
		if got := dsp.ReadNum(m, items(out, v)); got.Left != want {
			t.Fatalf("voice %d = %+v, want %v", v, got, want)
		}
	}
	if after := voiceScratch(1); string(after) != string(before) {
		t.Fatalf("inactive voice scratch changed: %v -> %v", before, after)
	}
}

func TestDestructFreesDelayBuffers(t *testing.T) {
	b := &mir.Block{ID: 5, Controls: []mir.Control{{Name: "out", Type: mir.ControlAudio, ValueWritten: true}}}
	b.Statements = []mir.Statement{
		constNum(1, mir.FormNone),
		constNum(0.01, mir.FormSeconds),
		mir.CallFunc{Function: mir.FuncDelay, Args: []int{0, 1, 1}},
		mir.StoreControl{Control: 0, Field: mir.FieldAudioValue, Value: 2},
	}
	img := deploy(t, oneNode(b, mir.RootSocket{Name: "out", Kind: mir.PortalOutput, Type: mir.Num()}))

	base := img.e.Live()
	img.call(t, Update(RootModule))
	if got := img.e.Live(); got != base+2 {
		t.Fatalf("live after update = %d, want %d", got, base+2)
	}
	img.call(t, Destruct(RootModule))
	if got := img.e.Live(); got != base {
		t.Fatalf("live after destruct = %d, want %d", got, base)
	}
}

func TestConstructLeavesCallDataZeroed(t *testing.T) {
	b := &mir.Block{ID: 6, Controls: []mir.Control{{Name: "out", Type: mir.ControlAudio, ValueWritten: true}}}
	b.Statements = []mir.Statement{
		constNum(440, mir.FormFrequency),
		constNum(0, mir.FormNone),
		mir.CallFunc{Function: mir.FuncSinOsc, Args: []int{0, 1}},
		constNum(0.01, mir.FormSeconds),
		mir.CallFunc{Function: mir.FuncDelay, Args: []int{2, 3, 3}},
		mir.StoreControl{Control: 0, Field: mir.FieldAudioValue, Value: 4},
	}
	img := deploy(t, oneNode(b, mir.RootSocket{Name: "out", Kind: mir.PortalOutput, Type: mir.Num()}))

	body := Block(img.l.blocks[6]).Func(Construct(BlockModule(6))).Body.Instrs
	if len(body) != 1 || body[0].Op != ir.OpReturn {
		t.Fatalf("block construct has %d instructions, want a bare return", len(body))
	}

	scratch, ok := img.e.GlobalAddr(analyze.SymScratch)
	if !ok {
		t.Fatalf("no scratch global")
	}
	zero := func() bool {
		for _, v := range img.e.Memory().Slice(scratch, img.root.State.Size()) {
			if v != 0 {
				return false
			}
		}
		return true
	}
	if !zero() {
		t.Fatalf("scratch not zero after construct")
	}
	img.call(t, Update(RootModule))
	if zero() {
		t.Fatalf("scratch still zero after update")
	}
}
