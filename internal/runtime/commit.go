package runtime

import (
	"context"
	"sort"

	"github.com/nikandfor/errors"
	"github.com/nikandfor/tlog"

	"github.com/monadgroup/axiom-sub000/internal/analyze"
	"github.com/monadgroup/axiom-sub000/internal/codegen"
	"github.com/monadgroup/axiom-sub000/internal/ir"
	"github.com/monadgroup/axiom-sub000/internal/mir"
	"github.com/monadgroup/axiom-sub000/internal/pass"
)

// diff is what a commit changed in the optimized project.
type diff struct {
	blocks   []mir.BlockID
	surfaces []mir.SurfaceID

	removedBlocks   []mir.BlockID
	removedSurfaces []mir.SurfaceID

	// relayout lists the surfaces to lay out again, dependencies first.
	relayout []mir.SurfaceID
}

// Commit applies tx and redeploys the image. The prior image is destructed
// first; if any later step fails the prior project and image are restored
// and constructed again.
func (r *Runtime) Commit(ctx context.Context, tx *mir.Transaction) (err error) {
	if tx.IsEmpty() {
		return nil
	}

	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "commit", "blocks", len(tx.Blocks), "surfaces", len(tx.Surfaces), "root", tx.Root != nil)
	defer tr.Finish("err", &err)

	source := r.source.Clone()
	source.Apply(tx)
	if _, ok := source.Surfaces[mir.RootSurfaceID]; !ok {
		source.Surfaces[mir.RootSurfaceID] = &mir.Surface{ID: mir.RootSurfaceID}
	}
	if err := validate(source); err != nil {
		return err
	}
	for _, b := range tx.Blocks {
		r.ids.Reserve(uint64(b.ID))
	}
	for _, s := range tx.Surfaces {
		r.ids.Reserve(uint64(s.ID))
	}

	prev := r.save()

	if r.built {
		r.built = false
		if _, err := r.engine.Call(codegen.Destruct(codegen.RootModule)); err != nil {
			return errors.Wrap(err, "destruct")
		}
		tr.Printw("destructed prior image")
	}

	var d *diff
	var mods []*ir.Module

	d, err = r.patch(ctx, source)
	if err == nil {
		mods, err = r.emit(ctx, d, prev.root)
	}
	if err == nil {
		err = r.deploy(ctx, d, mods)
	}
	if err == nil {
		return nil
	}

	r.restore(prev)
	if prev.built {
		if _, cerr := r.engine.Call(codegen.Construct(codegen.RootModule)); cerr != nil {
			return errors.Wrap(err, "construct prior image: %v", cerr)
		}
		r.built = true
	}
	tr.Printw("rolled back", "err", err)
	return err
}

func validate(p *mir.Project) error {
	if _, ok := p.Blocks[mir.MixdownBlockID]; ok {
		return errors.New("block id %d is reserved", mir.MixdownBlockID)
	}
	for _, id := range p.SurfaceIDs() {
		if err := p.Surfaces[id].Validate(p.Block, p.Surface); err != nil {
			return err
		}
	}

	root := p.Surfaces[mir.RootSurfaceID]
	for gi, g := range root.Groups {
		if g.Source.Kind != mir.SourceSocket {
			continue
		}
		i := g.Source.Socket
		if i < 0 || i >= len(p.Root.Sockets) {
			return errors.New("root group %d: portal %d out of range", gi, i)
		}
		if t := p.Root.Sockets[i].Type; !t.Equal(g.ValueType) {
			return errors.New("root group %d: portal %d is %v, group is %v", gi, i, t, g.ValueType)
		}
	}
	return nil
}

func (r *Runtime) allocExtract(parent mir.SurfaceID, n int) mir.SurfaceID {
	k := extractKey{parent: parent, n: n}
	if id, ok := r.extracts[k]; ok {
		return id
	}
	id := mir.SurfaceID(r.ids.AllocID())
	r.extracts[k] = id
	return id
}

// patch runs the surface passes over source, updates the dependency graph
// and lays out everything that changed.
func (r *Runtime) patch(ctx context.Context, source *mir.Project) (*diff, error) {
	tr := tlog.SpanFromContext(ctx)

	project, sm := pass.Optimize(ctx, source, r.allocExtract)
	d := &diff{}

	for _, id := range project.BlockIDs() {
		old, ok := r.project.Blocks[id]
		if !ok {
			r.graph.AddBlock(id)
		}
		if !ok || old.Key() != project.Blocks[id].Key() {
			d.blocks = append(d.blocks, id)
		}
	}
	for _, id := range project.SurfaceIDs() {
		if _, ok := r.project.Surfaces[id]; !ok {
			r.graph.AddSurface(id)
		}
	}
	for _, id := range project.SurfaceIDs() {
		s := project.Surfaces[id]
		if old, ok := r.project.Surfaces[id]; !ok || old.Key() != s.Key() {
			d.surfaces = append(d.surfaces, id)
			r.graph.GenerateSurface(s)
		}
	}
	for _, id := range r.project.BlockIDs() {
		if _, ok := project.Blocks[id]; !ok {
			d.removedBlocks = append(d.removedBlocks, id)
		}
	}
	for _, id := range r.project.SurfaceIDs() {
		if _, ok := project.Surfaces[id]; !ok {
			d.removedSurfaces = append(d.removedSurfaces, id)
		}
	}

	gcSurfaces, gcBlocks := r.graph.GarbageCollect()
	d.removedSurfaces = unionSurfaces(d.removedSurfaces, gcSurfaces)
	d.removedBlocks = unionBlocks(d.removedBlocks, gcBlocks)
	for _, id := range d.removedSurfaces {
		delete(r.layouts.surfaces, id)
	}
	for _, id := range d.removedBlocks {
		delete(r.layouts.blocks, id)
	}

	dirty := make(map[mir.SurfaceID]bool)
	mark := func(id mir.SurfaceID) {
		dirty[id] = true
		for _, a := range r.graph.Ancestors(id) {
			dirty[a] = true
		}
	}
	for _, id := range d.surfaces {
		mark(id)
	}
	for _, id := range d.blocks {
		r.layouts.blocks[id] = analyze.AnalyzeBlock(project.Blocks[id], analyze.Options{IncludeUI: r.opts.IncludeUI})
		for _, s := range r.graph.BlockDependedBy(id) {
			mark(s)
		}
	}
	ids := make([]mir.SurfaceID, 0, len(dirty))
	for id := range dirty {
		if _, ok := project.Surfaces[id]; ok {
			ids = append(ids, id)
		}
	}
	d.relayout = r.graph.DepsFirst(ids)

	for _, id := range d.relayout {
		l, err := analyze.AnalyzeSurface(project.Surfaces[id], r.layouts)
		if err != nil {
			return nil, errors.Wrap(err, "layout")
		}
		r.layouts.surfaces[id] = l
	}
	rootSurface, ok := r.layouts.surfaces[mir.RootSurfaceID]
	if !ok {
		return nil, errors.New("root surface has no layout")
	}

	r.source, r.project, r.sm = source, project, sm
	r.root = analyze.AnalyzeRoot(project.Root, rootSurface)

	tr.Printw("patched", "changed_blocks", d.blocks, "changed_surfaces", d.surfaces,
		"removed_blocks", d.removedBlocks, "removed_surfaces", d.removedSurfaces, "relayout", d.relayout)
	return d, nil
}

// emit generates and optimizes the modules of everything patch rebuilt.
func (r *Runtime) emit(ctx context.Context, d *diff, prevRoot *analyze.RootLayout) ([]*ir.Module, error) {
	tr := tlog.SpanFromContext(ctx)

	var mods []*ir.Module
	for _, id := range d.blocks {
		mods = append(mods, codegen.Block(r.layouts.blocks[id]))
	}
	for _, id := range d.relayout {
		mods = append(mods, codegen.Surface(r.layouts.surfaces[id]))
	}
	if stateChanged(prevRoot, r.root) || !r.engine.HasModule(codegen.StateModule) {
		mods = append(mods, codegen.State(r.root))
	}
	mods = append(mods, codegen.Root(r.root))

	for _, m := range mods {
		ir.Optimize(m, r.opts.OptLevel)
		if err := ir.Verify(m); err != nil {
			return nil, errors.Wrap(err, "codegen")
		}
		if tr.If("dump_ir") {
			tr.Printw("module", "name", m.Name, "ir", ir.Format(m))
		}
	}
	if r.failCodegen != nil {
		if err := r.failCodegen(); err != nil {
			return nil, errors.Wrap(err, "codegen")
		}
	}

	tr.Printw("emitted", "modules", len(mods))
	return mods, nil
}

func stateChanged(prev, next *analyze.RootLayout) bool {
	return prev == nil || !prev.State.Equal(next.State) || !prev.Sockets.Equal(next.Sockets)
}

// deploy links the new modules in one step, drops the modules of removed
// objects and constructs the image. If construction fails the modules it
// replaced or dropped are linked again, so the prior image can be rebuilt.
func (r *Runtime) deploy(ctx context.Context, d *diff, mods []*ir.Module) (err error) {
	tr := tlog.SpanFromContext(ctx)

	var prior []*ir.Module
	var added []string
	for _, m := range mods {
		if old := r.engine.Module(m.Name); old != nil {
			prior = append(prior, old)
		} else {
			added = append(added, m.Name)
		}
	}
	var removed []string
	for _, id := range d.removedBlocks {
		removed = append(removed, codegen.BlockModule(id))
	}
	for _, id := range d.removedSurfaces {
		removed = append(removed, codegen.SurfaceModule(id))
	}
	for _, name := range removed {
		if old := r.engine.Module(name); old != nil {
			prior = append(prior, old)
		}
	}

	if err := r.engine.ReplaceModules(mods...); err != nil {
		return errors.Wrap(err, "deploy")
	}
	defer func() {
		if err == nil {
			return
		}
		for _, name := range added {
			r.engine.RemoveModule(name)
		}
		if rerr := r.engine.ReplaceModules(prior...); rerr != nil {
			err = errors.Wrap(err, "relink prior modules: %v", rerr)
		}
	}()

	for _, m := range mods {
		if m.Name != codegen.RootModule && m.Name != codegen.StateModule {
			r.modules[m.Name] = true
		}
	}
	for _, name := range removed {
		r.unlink(name)
	}

	r.writeEnv()
	if r.failConstruct != nil {
		if err := r.failConstruct(); err != nil {
			return errors.Wrap(err, "construct")
		}
	}
	if _, err := r.engine.Call(codegen.Construct(codegen.RootModule)); err != nil {
		return errors.Wrap(err, "construct")
	}
	r.built = true

	tr.Printw("deployed", "modules", len(r.modules), "live_regions", r.engine.Live())
	return nil
}

func (r *Runtime) unlink(name string) {
	r.engine.RemoveModule(name)
	delete(r.modules, name)
}

func (r *Runtime) save() snapshot {
	s := snapshot{
		source:   r.source,
		project:  r.project,
		sm:       r.sm,
		graph:    r.graph.Clone(),
		layouts:  r.layouts.clone(),
		root:     r.root,
		modules:  make(map[string]bool, len(r.modules)),
		extracts: make(map[extractKey]mir.SurfaceID, len(r.extracts)),
		built:    r.built,
	}
	for k, v := range r.modules {
		s.modules[k] = v
	}
	for k, v := range r.extracts {
		s.extracts[k] = v
	}
	return s
}

func (r *Runtime) restore(s snapshot) {
	r.source, r.project, r.sm = s.source, s.project, s.sm
	r.graph, r.layouts, r.root = s.graph, s.layouts, s.root
	r.modules, r.extracts = s.modules, s.extracts
}

func unionSurfaces(a, b []mir.SurfaceID) []mir.SurfaceID {
	seen := make(map[mir.SurfaceID]bool)
	var out []mir.SurfaceID
	for _, id := range append(a, b...) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func unionBlocks(a, b []mir.BlockID) []mir.BlockID {
	seen := make(map[mir.BlockID]bool)
	var out []mir.BlockID
	for _, id := range append(a, b...) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Timing returns the sample rate and BPM the image currently runs at.
func (r *Runtime) Timing() mir.Timing { return r.env().Timing() }
