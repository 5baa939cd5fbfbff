// Package jit links ir modules into a running image and executes them.
package jit

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Addr is a pointer into Memory: the region number in the high 32 bits and
// the byte offset in the low 32. The zero Addr is null.
type Addr uint64

func makeAddr(region uint32, off int) Addr { return Addr(uint64(region)<<32 | uint64(uint32(off))) }

func (a Addr) Region() uint32 { return uint32(a >> 32) }
func (a Addr) Offset() int    { return int(uint32(a)) }
func (a Addr) Add(n int) Addr { return a + Addr(int64(n)) }
func (a Addr) IsNull() bool   { return a == 0 }

func (a Addr) String() string { return fmt.Sprintf("%d:%#x", a.Region(), a.Offset()) }

// Fault is raised when generated code touches memory it does not own.
type Fault struct {
	Addr Addr
	Size int
	Msg  string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("memory fault at %v (+%d): %s", f.Addr, f.Size, f.Msg)
}

type region struct {
	buf     []byte
	name    string
	release func()
}

// Memory owns every byte the image can address.
type Memory struct {
	regions []*region
	free    []uint32
	lock    bool
	live    int
}

// NewMemory creates an empty address space. With lock set, large regions
// are pinned in RAM where the platform allows it.
func NewMemory(lock bool) *Memory {
	return &Memory{regions: []*region{nil}, lock: lock}
}

// Alloc returns zeroed memory of the given size.
func (m *Memory) Alloc(size int, name string) Addr {
	buf, release := allocBytes(size, m.lock)
	r := &region{buf: buf, name: name, release: release}

	var idx uint32
	if n := len(m.free); n > 0 {
		idx = m.free[n-1]
		m.free = m.free[:n-1]
		m.regions[idx] = r
	} else {
		idx = uint32(len(m.regions))
		m.regions = append(m.regions, r)
	}
	m.live++
	return makeAddr(idx, 0)
}

// Free releases the region a points into. Freeing null is a no-op.
func (m *Memory) Free(a Addr) {
	if a.IsNull() {
		return
	}
	idx := a.Region()
	if int(idx) >= len(m.regions) || m.regions[idx] == nil {
		panic(&Fault{Addr: a, Msg: "double free"})
	}
	if r := m.regions[idx]; r.release != nil {
		r.release()
	}
	m.regions[idx] = nil
	m.free = append(m.free, idx)
	m.live--
}

// Realloc resizes the region a points into, keeping its contents up to the
// smaller size. Reallocating null allocates.
func (m *Memory) Realloc(a Addr, size int, name string) Addr {
	if a.IsNull() {
		return m.Alloc(size, name)
	}
	n := m.Alloc(size, name)
	old := m.regions[a.Region()]
	copy(m.regions[n.Region()].buf, old.buf)
	m.Free(a)
	return n
}

// Live is the number of allocated regions.
func (m *Memory) Live() int { return m.live }

// RegionSize returns the size of the region a points into.
func (m *Memory) RegionSize(a Addr) int {
	if int(a.Region()) >= len(m.regions) || m.regions[a.Region()] == nil {
		return 0
	}
	return len(m.regions[a.Region()].buf)
}

// Slice returns n bytes at a. It panics with a *Fault when out of bounds.
func (m *Memory) Slice(a Addr, n int) []byte {
	idx := a.Region()
	if idx == 0 || int(idx) >= len(m.regions) || m.regions[idx] == nil {
		panic(&Fault{Addr: a, Size: n, Msg: "unmapped"})
	}
	buf := m.regions[idx].buf
	off := a.Offset()
	if off+n > len(buf) {
		panic(&Fault{Addr: a, Size: n, Msg: "out of bounds of " + m.regions[idx].name})
	}
	return buf[off : off+n]
}

func (m *Memory) ReadU8(a Addr) uint8     { return m.Slice(a, 1)[0] }
func (m *Memory) WriteU8(a Addr, v uint8) { m.Slice(a, 1)[0] = v }

func (m *Memory) ReadU32(a Addr) uint32     { return binary.LittleEndian.Uint32(m.Slice(a, 4)) }
func (m *Memory) WriteU32(a Addr, v uint32) { binary.LittleEndian.PutUint32(m.Slice(a, 4), v) }

func (m *Memory) ReadU64(a Addr) uint64     { return binary.LittleEndian.Uint64(m.Slice(a, 8)) }
func (m *Memory) WriteU64(a Addr, v uint64) { binary.LittleEndian.PutUint64(m.Slice(a, 8), v) }

func (m *Memory) ReadF32(a Addr) float32     { return math.Float32frombits(m.ReadU32(a)) }
func (m *Memory) WriteF32(a Addr, v float32) { m.WriteU32(a, math.Float32bits(v)) }

func (m *Memory) ReadF64(a Addr) float64     { return math.Float64frombits(m.ReadU64(a)) }
func (m *Memory) WriteF64(a Addr, v float64) { m.WriteU64(a, math.Float64bits(v)) }

func (m *Memory) ReadPtr(a Addr) Addr     { return Addr(m.ReadU64(a)) }
func (m *Memory) WritePtr(a Addr, v Addr) { m.WriteU64(a, uint64(v)) }

func (m *Memory) ReadVec(a Addr) [2]float64 {
	b := m.Slice(a, 16)
	return [2]float64{
		math.Float64frombits(binary.LittleEndian.Uint64(b)),
		math.Float64frombits(binary.LittleEndian.Uint64(b[8:])),
	}
}

func (m *Memory) WriteVec(a Addr, v [2]float64) {
	b := m.Slice(a, 16)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v[0]))
	binary.LittleEndian.PutUint64(b[8:], math.Float64bits(v[1]))
}

func (m *Memory) Copy(dst, src Addr, n int) {
	if n == 0 {
		return
	}
	copy(m.Slice(dst, n), m.Slice(src, n))
}

func (m *Memory) Zero(a Addr, n int) {
	if n == 0 {
		return
	}
	clear(m.Slice(a, n))
}
