package jit

import (
	"sync/atomic"

	"github.com/nikandfor/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/ir"
)

// Reg is a register value: I holds pointers and integers, V holds vectors.
type Reg struct {
	I uint64
	V [2]float64
}

func PtrReg(a Addr) Reg       { return Reg{I: uint64(a)} }
func IntReg(v int64) Reg      { return Reg{I: uint64(v)} }
func VecReg(l, r float64) Reg { return Reg{V: [2]float64{l, r}} }
func (r Reg) Addr() Addr      { return Addr(r.I) }
func (r Reg) Int() int64      { return int64(r.I) }

// NativeFunc is a host function callable from generated code.
type NativeFunc func(m *Memory, args []Reg) Reg

type callable func(e *Engine, args []Reg) Reg

// slot is a call target. Generated code binds to slots by name so a
// function can be replaced without relinking its callers.
type slot struct {
	name string
	impl atomic.Pointer[callable]
}

// cell holds the current address of a global. Code binds to cells so a
// global can move when its module is replaced.
type cell struct {
	addr atomic.Uint64
}

func (c *cell) load() Addr { return Addr(c.addr.Load()) }

type linked struct {
	mod     *ir.Module
	globals map[string]Addr
	funcs   []string
}

// UnresolvedError is raised when generated code calls a symbol nothing
// defines.
type UnresolvedError struct {
	Symbol string
}

func (e *UnresolvedError) Error() string { return "call to unresolved symbol " + e.Symbol }

// Engine holds linked modules and the memory they run in. Modules and
// natives are looked up by name; a module replaced under the same name
// takes over every call site bound to its functions.
type Engine struct {
	mem *Memory

	globals *xsync.MapOf[string, *cell]
	slots   *xsync.MapOf[string, *slot]
	natives map[string]NativeFunc

	modules map[string]*linked

	stack    Addr
	stackTop int
	stackCap int
}

const defaultStack = 1 << 20

type Option func(*Engine)

// WithLockedMemory pins large allocations in RAM.
func WithLockedMemory() Option {
	return func(e *Engine) { e.mem.lock = true }
}

func WithStackSize(n int) Option {
	return func(e *Engine) { e.stackCap = n }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		mem:      NewMemory(false),
		globals:  xsync.NewMapOf[string, *cell](),
		slots:    xsync.NewMapOf[string, *slot](),
		natives:  make(map[string]NativeFunc),
		modules:  make(map[string]*linked),
		stackCap: defaultStack,
	}
	for _, o := range opts {
		o(e)
	}
	e.stack = e.mem.Alloc(e.stackCap, "stack")
	return e
}

func (e *Engine) Memory() *Memory { return e.mem }

// Live is the number of allocated regions, the stack excluded.
func (e *Engine) Live() int { return e.mem.Live() - 1 }

func (e *Engine) slot(name string) *slot {
	s, _ := e.slots.LoadOrCompute(name, func() *slot { return &slot{name: name} })
	return s
}

// RegisterNative makes fn callable from generated code as name.
func (e *Engine) RegisterNative(name string, fn NativeFunc) {
	e.natives[name] = fn
	c := callable(func(e *Engine, args []Reg) Reg { return fn(e.mem, args) })
	e.slot(name).impl.Store(&c)
}

// Natives lists the registered native names.
func (e *Engine) Natives() []string {
	names := make([]string, 0, len(e.natives))
	for n := range e.natives {
		names = append(names, n)
	}
	return names
}

func (e *Engine) HasModule(name string) bool {
	_, ok := e.modules[name]
	return ok
}

func (e *Engine) Module(name string) *ir.Module {
	if l, ok := e.modules[name]; ok {
		return l.mod
	}
	return nil
}

// ModuleNames lists linked modules in no particular order.
func (e *Engine) ModuleNames() []string {
	names := make([]string, 0, len(e.modules))
	for n := range e.modules {
		names = append(names, n)
	}
	return names
}

func (e *Engine) cell(name string) *cell {
	c, _ := e.globals.LoadOrCompute(name, func() *cell { return &cell{} })
	return c
}

// GlobalAddr returns the address of a linked global.
func (e *Engine) GlobalAddr(name string) (Addr, bool) {
	c, ok := e.globals.Load(name)
	if !ok || c.load() == 0 {
		return 0, false
	}
	return c.load(), true
}

// AddModule links m. It fails if a module with the same name exists.
func (e *Engine) AddModule(m *ir.Module) error {
	if e.HasModule(m.Name) {
		return errors.New("module %v already linked", m.Name)
	}
	return e.ReplaceModules(m)
}

// ReplaceModules links mods as one unit. Every global and function is
// resolved before anything is swapped in; on error the engine is left as
// it was.
func (e *Engine) ReplaceModules(mods ...*ir.Module) (err error) {
	pending := make(map[string]Addr)
	var allocated []Addr
	defer func() {
		if err != nil {
			for _, a := range allocated {
				e.mem.Free(a)
			}
		}
	}()

	type relocAt struct {
		base Addr
		r    datatype.Reloc
	}
	var relocs []relocAt
	images := make([]*linked, len(mods))

	for i, m := range mods {
		l := &linked{mod: m, globals: make(map[string]Addr)}
		images[i] = l
		for _, g := range m.Globals {
			if _, dup := pending[g.Name]; dup {
				return errors.New("module %v: duplicate global %v", m.Name, g.Name)
			}
			a := e.mem.Alloc(g.Type.Size(), g.Name)
			allocated = append(allocated, a)
			if g.Init != nil {
				buf, rs, err := datatype.Encode(g.Init)
				if err != nil {
					return errors.Wrap(err, "module %v: global %v", m.Name, g.Name)
				}
				copy(e.mem.Slice(a, len(buf)), buf)
				for _, r := range rs {
					relocs = append(relocs, relocAt{base: a, r: r})
				}
			}
			pending[g.Name] = a
			l.globals[g.Name] = a
		}
	}

	resolve := func(sym string) (Addr, bool) {
		if a, ok := pending[sym]; ok {
			return a, true
		}
		if e.replacedGlobal(sym, mods) {
			return 0, false
		}
		return e.GlobalAddr(sym)
	}

	for _, r := range relocs {
		a, ok := resolve(r.r.Symbol)
		if !ok {
			return errors.New("relocation against undefined global %v", r.r.Symbol)
		}
		e.mem.WritePtr(r.base.Add(r.r.Offset), a.Add(r.r.Addend))
	}

	compiled := make(map[string]*callable)
	for i, m := range mods {
		for _, fn := range m.Funcs {
			if _, dup := compiled[fn.Name]; dup {
				return errors.New("module %v: duplicate function %v", m.Name, fn.Name)
			}
			c, err := e.compile(fn, resolve)
			if err != nil {
				return errors.Wrap(err, "module %v", m.Name)
			}
			compiled[fn.Name] = &c
			images[i].funcs = append(images[i].funcs, fn.Name)
		}
	}

	for _, l := range images {
		e.unlink(l.mod.Name, compiled)
		e.modules[l.mod.Name] = l
		for name, a := range l.globals {
			e.cell(name).addr.Store(uint64(a))
		}
	}
	for name, c := range compiled {
		e.slot(name).impl.Store(c)
	}

	return nil
}

// replacedGlobal reports whether sym belongs to a module that mods is
// about to replace.
func (e *Engine) replacedGlobal(sym string, mods []*ir.Module) bool {
	for _, m := range mods {
		if l, ok := e.modules[m.Name]; ok {
			if _, ok := l.globals[sym]; ok {
				return true
			}
		}
	}
	return false
}

// RemoveModule unlinks a module and frees its globals.
func (e *Engine) RemoveModule(name string) bool {
	if !e.HasModule(name) {
		return false
	}
	e.unlink(name, nil)
	return true
}

func (e *Engine) unlink(name string, keep map[string]*callable) {
	l, ok := e.modules[name]
	if !ok {
		return
	}
	for g, a := range l.globals {
		if c, ok := e.globals.Load(g); ok {
			c.addr.Store(0)
		}
		e.mem.Free(a)
	}
	for _, f := range l.funcs {
		if _, ok := keep[f]; ok {
			continue
		}
		if s, ok := e.slots.Load(f); ok {
			s.impl.Store(nil)
		}
	}
	delete(e.modules, name)
}

// HasFunction reports whether name resolves to a linked function or a
// native.
func (e *Engine) HasFunction(name string) bool {
	s, ok := e.slots.Load(name)
	return ok && s.impl.Load() != nil
}

// Call runs a function by name. Memory faults and unresolved calls raised
// while it runs are returned as errors.
func (e *Engine) Call(name string, args ...Reg) (ret Reg, err error) {
	s, ok := e.slots.Load(name)
	if !ok || s.impl.Load() == nil {
		return Reg{}, &UnresolvedError{Symbol: name}
	}

	top := e.stackTop
	defer func() {
		e.stackTop = top
		p := recover()
		if p == nil {
			return
		}
		switch v := p.(type) {
		case *Fault:
			err = errors.Wrap(v, "call %v", name)
		case *UnresolvedError:
			err = errors.Wrap(v, "call %v", name)
		default:
			panic(p)
		}
	}()

	return (*s.impl.Load())(e, args), nil
}

func (e *Engine) pushFrame(size int) Addr {
	if size == 0 {
		return 0
	}
	if e.stackTop+size > e.stackCap {
		panic(&Fault{Addr: e.stack.Add(e.stackTop), Size: size, Msg: "stack overflow"})
	}
	a := e.stack.Add(e.stackTop)
	e.mem.Zero(a, size)
	e.stackTop += size
	return a
}
