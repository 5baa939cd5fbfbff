package dsp

import (
	"math"
	"math/bits"

	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/jit"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

const (
	dlPos = iota
	dlSize
	dlBuffer
)

var (
	delayChannelType = datatype.Struct(datatype.Int64(), datatype.Int64(), datatype.Pointer())
	delayType        = datatype.Struct(delayChannelType, delayChannelType)
)

// DelayChannel is the decoded state of one delay lane.
type DelayChannel struct {
	Pos    int
	Size   int
	Buffer jit.Addr
}

func ReadDelay(m *jit.Memory, a jit.Addr) [2]DelayChannel {
	var out [2]DelayChannel
	st := state{m: m, a: a, t: delayType}
	for l := range out {
		ch := st.sub(l)
		out[l] = DelayChannel{Pos: int(ch.i64(dlPos)), Size: int(ch.i64(dlSize)), Buffer: ch.ptr(dlBuffer)}
	}
	return out
}

// bufferSize is the power-of-two capacity holding n samples.
func bufferSize(n int) int {
	if n <= 1 {
		return n
	}
	return 1 << bits.Len(uint(n-1))
}

// asSamples reads argument i as a sample count; plain numbers are seconds.
func (c *call) asSamples(i int) [2]float64 {
	n := c.num(i)
	if n.Form == mir.FormNone {
		n.Form = mir.FormSeconds
	}
	if n.Form == mir.FormSamples {
		return n.Vec()
	}
	conv := mir.ConvertNum(n.Constant(), mir.FormSamples, c.env.Timing())
	return [2]float64{conv.Left, conv.Right}
}

func delay(c *call) {
	st := c.state(delayType)
	x := c.num(0)
	in := x.Vec()
	delaySamples := c.asSamples(1)
	reserve := c.asSamples(2)

	var out [2]float64
	for l := range out {
		ch := st.sub(l)
		size := int(ch.i64(dlSize))
		buf := ch.ptr(dlBuffer)

		need := int(math.Ceil(math.Max(reserve[l], delaySamples[l])))
		if need > size {
			size = bufferSize(need)
			buf = c.m.Realloc(buf, size*8, "delay")
			ch.setI64(dlSize, int64(size))
			ch.setPtr(dlBuffer, buf)
			ch.setI64(dlPos, ch.i64(dlPos)&int64(size-1))
		}
		if size == 0 {
			out[l] = in[l]
			continue
		}

		mask := size - 1
		pos := int(ch.i64(dlPos))
		d := min(max(int(delaySamples[l]), 0), mask)
		c.m.WriteF64(buf.Add(pos*8), in[l])
		out[l] = c.m.ReadF64(buf.Add(((pos - d) & mask) * 8))
		ch.setI64(dlPos, int64((pos+1)&mask))
	}
	c.set(out, c.form)
}

func delayDestruct(c *call) {
	st := c.state(delayType)
	for l := range 2 {
		ch := st.sub(l)
		c.m.Free(ch.ptr(dlBuffer))
		ch.setPtr(dlBuffer, 0)
		ch.setI64(dlSize, 0)
		ch.setI64(dlPos, 0)
	}
}
