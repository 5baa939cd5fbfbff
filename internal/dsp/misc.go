package dsp

import (
	"math"

	"github.com/monadgroup/axiom-sub000/internal/datatype"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

var laneType = datatype.Struct(datatype.Vec2())

// next outputs its input from the previous sample.
func next(c *call) {
	st := c.state(laneType)
	out := st.vec(0)
	st.setVec(0, c.num(0).Vec())
	c.set(out, c.form)
}

// hold follows x while the gate is set and keeps the last value otherwise.
func hold(c *call) {
	st := c.state(laneType)
	x, gate := c.num(0).Vec(), c.num(1).Vec()
	held := st.vec(0)
	for l := range held {
		if gate[l] != 0 {
			held[l] = x[l]
		}
	}
	st.setVec(0, held)
	c.set(held, c.form)
}

func accum(c *call) {
	st := c.state(laneType)
	x, reset := c.num(0).Vec(), c.num(1).Vec()
	sum := st.vec(0)
	for l := range sum {
		if reset[l] != 0 {
			sum[l] = 0
		}
		sum[l] += x[l]
	}
	st.setVec(0, sum)
	c.set(sum, c.form)
}

// sequence picks one of its trailing arguments by the wrapped index.
func sequence(c *call) {
	n := len(c.args) - 1
	if n <= 0 {
		c.set([2]float64{}, c.form)
		return
	}
	idx := c.num(0).Vec()
	out := lanes(func(l int) float64 {
		i := int(math.Floor(idx[l])) % n
		if i < 0 {
			i += n
		}
		return c.num(1 + i).Vec()[l]
	})
	c.set(out, c.form)
}

// indexed yields an array of count numbers 0..count-1.
func indexed(c *call) {
	count := min(max(int(c.num(0).Left), 0), mir.ArrayCapacity)
	var bitmap uint32
	for i := range mir.ArrayCapacity {
		item := ArrayItem(c.out, numType, i)
		if i < count {
			bitmap |= 1 << i
			WriteNum(c.m, item, NumOf(float64(i), c.form))
		} else {
			WriteNum(c.m, item, Num{})
		}
	}
	WriteBitmap(c.m, c.out, bitmap)
}

// mixdown sums the active items of a number array.
func mixdown(c *call) {
	arr := c.args[0]
	bitmap := ReadBitmap(c.m, arr)
	var sum [2]float64
	form := mir.FormNone
	first := true
	for i := range mir.ArrayCapacity {
		if bitmap&(1<<i) == 0 {
			continue
		}
		n := ReadNum(c.m, ArrayItem(arr, numType, i))
		if first {
			form = n.Form
			first = false
		}
		sum[0] += n.Left
		sum[1] += n.Right
	}
	c.set(sum, form)
}
