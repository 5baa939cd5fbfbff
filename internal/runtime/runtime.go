// Package runtime deploys a patch incrementally: every commit recompiles
// the changed blocks and surfaces, relinks the image and keeps the live
// state of the root while its layout does not change.
package runtime

import (
	"github.com/nikandfor/errors"

	"github.com/monadgroup/axiom-sub000/internal/analyze"
	"github.com/monadgroup/axiom-sub000/internal/codegen"
	"github.com/monadgroup/axiom-sub000/internal/depgraph"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/ir"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	"github.com/monadgroup/axiom-sub000/internal/mir"
	"github.com/monadgroup/axiom-sub000/internal/pass"
)

type Options struct {
	SampleRate float64
	BPM        float64
	// OptLevel is passed to ir.Optimize for every emitted module.
	OptLevel  int
	IncludeUI bool
	// LockMemory pins large memory regions.
	LockMemory bool
}

func DefaultOptions() Options {
	return Options{
		SampleRate: dsp.DefaultSampleRate,
		BPM:        dsp.DefaultBPM,
		OptLevel:   2,
	}
}

type extractKey struct {
	parent mir.SurfaceID
	n      int
}

// snapshot is everything a failed commit restores.
type snapshot struct {
	source   *mir.Project
	project  *mir.Project
	sm       *pass.SourceMap
	graph    *depgraph.Graph
	layouts  *layouts
	root     *analyze.RootLayout
	modules  map[string]bool
	extracts map[extractKey]mir.SurfaceID
	built    bool
}

type Runtime struct {
	opts   Options
	ids    *mir.Context
	engine *jit.Engine

	// source is the project as the host built it; project is the
	// optimized copy the image runs.
	source  *mir.Project
	project *mir.Project
	sm      *pass.SourceMap
	graph   *depgraph.Graph
	layouts *layouts
	root    *analyze.RootLayout

	// modules are the deployed block and surface module names.
	modules  map[string]bool
	extracts map[extractKey]mir.SurfaceID
	built    bool

	// failCodegen, when set, fails the commit after code emission.
	failCodegen func() error
	// failConstruct, when set, fails the commit after the new modules
	// are linked.
	failConstruct func() error
}

// New creates a runtime with an empty image and the library module linked.
func New(opts Options) (*Runtime, error) {
	var jopts []jit.Option
	if opts.LockMemory {
		jopts = append(jopts, jit.WithLockedMemory())
	}
	r := &Runtime{
		opts:     opts,
		ids:      mir.NewContext(),
		engine:   jit.New(jopts...),
		source:   mir.NewProject(),
		project:  mir.NewProject(),
		graph:    depgraph.New(),
		layouts:  newLayouts(),
		modules:  make(map[string]bool),
		extracts: make(map[extractKey]mir.SurfaceID),
	}
	r.sm = pass.NewSourceMap(r.project)
	dsp.Register(r.engine)

	lib := codegen.Library()
	ir.Optimize(lib, opts.OptLevel)
	if err := r.engine.AddModule(lib); err != nil {
		return nil, errors.Wrap(err, "link library")
	}
	r.writeEnv()
	return r, nil
}

func (r *Runtime) Engine() *jit.Engine   { return r.engine }
func (r *Runtime) Memory() *jit.Memory   { return r.engine.Memory() }
func (r *Runtime) Options() Options      { return r.opts }
func (r *Runtime) AllocID() uint64       { return r.ids.AllocID() }
func (r *Runtime) Context() *mir.Context { return r.ids }

// Source returns the project as built by committed transactions.
func (r *Runtime) Source() *mir.Project { return r.source }

// Project returns the optimized project the image runs.
func (r *Runtime) Project() *mir.Project { return r.project }

func (r *Runtime) SourceMap() *pass.SourceMap { return r.sm }

// Root returns the layout of the deployed root, nil before the first
// commit.
func (r *Runtime) Root() *analyze.RootLayout { return r.root }

// IsBuilt reports whether an image is deployed and constructed.
func (r *Runtime) IsBuilt() bool { return r.built }

func (r *Runtime) env() dsp.Env {
	a, _ := r.engine.GlobalAddr(codegen.SymEnv)
	return dsp.NewEnv(r.engine.Memory(), a)
}

func (r *Runtime) writeEnv() {
	env := r.env()
	env.SetSampleRate(r.opts.SampleRate)
	env.SetBPM(r.opts.BPM)
}

func (r *Runtime) BPM() float64        { return r.opts.BPM }
func (r *Runtime) SampleRate() float64 { return r.opts.SampleRate }

// SetBPM writes both lanes of the environment's BPM. It must not be called
// while an update is running.
func (r *Runtime) SetBPM(v float64) {
	r.opts.BPM = v
	r.env().SetBPM(v)
}

func (r *Runtime) SetSampleRate(v float64) {
	r.opts.SampleRate = v
	r.env().SetSampleRate(v)
}

// RunUpdate advances the image by one sample frame. MIDI input portals are
// emptied afterwards so each event is seen by exactly one update.
func (r *Runtime) RunUpdate() error {
	if !r.built {
		return nil
	}
	if _, err := r.engine.Call(codegen.Update(codegen.RootModule)); err != nil {
		return errors.Wrap(err, "update")
	}
	m := r.engine.Memory()
	for i, s := range r.project.Root.Sockets {
		if s.Kind == mir.PortalInput && s.Type.Kind == mir.VarMidi {
			if a, err := r.PortalPtr(i); err == nil {
				dsp.ClearMidi(m, a)
			}
		}
	}
	return nil
}

// Close runs the image's destruct and unlinks it.
func (r *Runtime) Close() error {
	var err error
	if r.built {
		_, err = r.engine.Call(codegen.Destruct(codegen.RootModule))
		r.built = false
	}
	for name := range r.modules {
		r.engine.RemoveModule(name)
	}
	r.engine.RemoveModule(codegen.RootModule)
	r.engine.RemoveModule(codegen.StateModule)
	r.modules = make(map[string]bool)
	return err
}
