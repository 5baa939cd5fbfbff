// Package axiom compiles visual patches into native-speed audio code and
// runs them. A host builds a Transaction describing blocks, surfaces and
// portals, commits it to a Runtime and drives the image one sample frame
// at a time.
package axiom

import (
	"context"
	"sync"

	"github.com/nikandfor/errors"

	"github.com/monadgroup/axiom-sub000/internal/config"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/export"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	"github.com/monadgroup/axiom-sub000/internal/mir"
	axruntime "github.com/monadgroup/axiom-sub000/internal/runtime"
)

type (
	BlockID    = mir.BlockID
	SurfaceID  = mir.SurfaceID
	Block      = mir.Block
	VarType    = mir.VarType
	FormType   = mir.FormType
	PortalKind = mir.PortalKind
	RootSocket = mir.RootSocket

	Addr            = jit.Addr
	Memory          = jit.Memory
	ControlPointers = axruntime.ControlPointers

	Num       = dsp.Num
	MidiEvent = dsp.MidiEvent

	ExportOptions = export.Options
	ExportResult  = export.Result
)

const RootSurfaceID = mir.RootSurfaceID

const (
	PortalInput      = mir.PortalInput
	PortalOutput     = mir.PortalOutput
	PortalAutomation = mir.PortalAutomation
)

const (
	NoteOn            = dsp.NoteOn
	NoteOff           = dsp.NoteOff
	PolyAftertouch    = dsp.PolyAftertouch
	ChannelAftertouch = dsp.ChannelAftertouch
	PitchWheel        = dsp.PitchWheel
)

func NumType() VarType               { return mir.Num() }
func MidiType() VarType              { return mir.Midi() }
func ArrayType(elem VarType) VarType { return mir.ArrayOf(elem) }

type Option func(*axruntime.Options)

func WithSampleRate(v float64) Option {
	return func(o *axruntime.Options) {
		o.SampleRate = v
	}
}

func WithBPM(v float64) Option {
	return func(o *axruntime.Options) {
		o.BPM = v
	}
}

func WithOptLevel(level int) Option {
	return func(o *axruntime.Options) {
		o.OptLevel = level
	}
}

// WithUI keeps per-control display data in the image.
func WithUI(enabled bool) Option {
	return func(o *axruntime.Options) {
		o.IncludeUI = enabled
	}
}

func WithLockedMemory(enabled bool) Option {
	return func(o *axruntime.Options) {
		o.LockMemory = enabled
	}
}

// Runtime is safe for concurrent use. Pointer accessors return addresses
// into Memory which stay valid until the next Commit.
type Runtime struct {
	mu sync.Mutex
	rt *axruntime.Runtime
}

// New creates a runtime. Options default to the AXIOM_* environment.
func New(opts ...Option) (*Runtime, error) {
	o := config.Load().Runtime
	for _, opt := range opts {
		opt(&o)
	}
	if o.SampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if o.BPM <= 0 {
		return nil, errors.New("bpm must be positive")
	}

	rt, err := axruntime.New(o)
	if err != nil {
		return nil, err
	}
	return &Runtime{rt: rt}, nil
}

// CompileBlock compiles block source code. Compile failures are
// *diag.Error values carrying the offending source range.
func CompileBlock(id BlockID, name, src string) (*Block, error) {
	return axruntime.CompileBlock(id, name, src)
}

// AllocID returns a fresh id for a block or surface.
func (r *Runtime) AllocID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt.AllocID()
}

func (r *Runtime) CreateTransaction() *Transaction { return &Transaction{} }

// CompileBlock compiles src as block id with an id taken from the
// runtime when id is zero.
func (r *Runtime) CompileBlock(id BlockID, name, src string) (*Block, error) {
	if id == 0 {
		id = BlockID(r.AllocID())
	}
	return axruntime.CompileBlock(id, name, src)
}

// Commit applies tx and redeploys the image. On failure the runtime keeps
// running the previous image.
func (r *Runtime) Commit(ctx context.Context, tx *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt.Commit(ctx, &tx.tx)
}

func (r *Runtime) BPM() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt.BPM()
}

func (r *Runtime) SetBPM(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rt.SetBPM(v)
}

func (r *Runtime) SampleRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt.SampleRate()
}

func (r *Runtime) SetSampleRate(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rt.SetSampleRate(v)
}

// RunUpdate advances the image by one sample frame.
func (r *Runtime) RunUpdate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt.RunUpdate()
}

// Run calls fn while holding the runtime lock, so portal reads and writes
// inside it do not interleave with updates or commits.
func (r *Runtime) Run(fn func(m *Memory) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.rt.Memory())
}

func (r *Runtime) Memory() *Memory { return r.rt.Memory() }

func (r *Runtime) IsBuilt() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt.IsBuilt()
}

func (r *Runtime) RootPtr() (Addr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt.RootPtr()
}

// PortalPtr returns the value storage of portal i.
func (r *Runtime) PortalPtr(i int) (Addr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt.PortalPtr(i)
}

// NodePtr returns the pointers of node on surface, given the surface's
// own pointers.
func (r *Runtime) NodePtr(surface SurfaceID, surfacePtr Addr, node int) (Addr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt.NodePtr(surface, surfacePtr, node)
}

func (r *Runtime) ControlPtrs(block BlockID, blockPtr Addr, control int) (ControlPointers, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt.ControlPtrs(block, blockPtr, control)
}

// ConvertNum converts the number at num to form target and stores it at
// result.
func (r *Runtime) ConvertNum(result Addr, target FormType, num Addr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt.ConvertNum(result, target, num)
}

func (r *Runtime) IsNodeExtracted(surface SurfaceID, node int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt.IsNodeExtracted(surface, node)
}

// Portals returns the portals of the committed root.
func (r *Runtime) Portals() []RootSocket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RootSocket(nil), r.rt.Source().Root.Sockets...)
}

// Export snapshots the deployed image into a standalone object.
func (r *Runtime) Export(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return export.Export(ctx, r.rt, opts)
}

func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rt.Close()
}
