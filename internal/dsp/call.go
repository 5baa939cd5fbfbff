package dsp

import (
	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// Natives called for a function statement receive the library environment,
// the call's scratch data, the result slot and one pointer per argument.
const (
	argEnv = iota
	argData
	argResult
	argFirst
)

type call struct {
	m    *jit.Memory
	env  Env
	data jit.Addr
	out  jit.Addr
	args []jit.Addr
	// form is the tag of a numeric result
	form mir.FormType
}

func newCall(m *jit.Memory, regs []jit.Reg) *call {
	c := &call{
		m:    m,
		env:  NewEnv(m, regs[argEnv].Addr()),
		data: regs[argData].Addr(),
	}
	// destructors only take the environment and data
	if len(regs) <= argResult {
		return c
	}
	c.out = regs[argResult].Addr()
	c.args = make([]jit.Addr, len(regs)-argFirst)
	for i := range c.args {
		c.args[i] = regs[argFirst+i].Addr()
	}
	return c
}

func (c *call) num(i int) Num { return ReadNum(c.m, c.args[i]) }

// as reads argument i converted to form.
func (c *call) as(i int, form mir.FormType) [2]float64 {
	n := c.num(i)
	if n.Form == mir.FormNone || n.Form == form {
		return n.Vec()
	}
	conv := mir.ConvertNum(n.Constant(), form, c.env.Timing())
	return [2]float64{conv.Left, conv.Right}
}

func (c *call) setNum(n Num) { WriteNum(c.m, c.out, n) }

func (c *call) set(v [2]float64, form mir.FormType) {
	c.setNum(Num{Left: v[0], Right: v[1], Form: form})
}

func (c *call) state(t *datatype.Type) state { return state{m: c.m, a: c.data, t: t} }

// lanes applies f to both lanes.
func lanes(f func(lane int) float64) [2]float64 { return [2]float64{f(0), f(1)} }
