// Package analyze decides the memory layout of blocks and surfaces and
// describes, as pointer sources, where every pointer handed to generated
// code points.
package analyze

import (
	"fmt"
	"strings"

	"github.com/monadgroup/axiom-sub000/internal/datatype"
)

type SourceKind int

const (
	SourceInitialized SourceKind = iota
	SourceScratch
	SourceShared
	SourceSocket
	SourceAggregate
)

var sourceKindNames = [...]string{"init", "scratch", "shared", "socket", "aggregate"}

func (k SourceKind) String() string { return sourceKindNames[k] }

type AggregateKind int

const (
	AggregateStruct AggregateKind = iota
	AggregateArray
)

// PointerSource names a location in one of the storage classes by path,
// or groups pointer sources into a struct or array of pointers. Paths are
// field and element indexes.
type PointerSource struct {
	Kind     SourceKind
	Path     []int
	Socket   int
	Agg      AggregateKind
	Children []PointerSource
}

func Initialized(path ...int) PointerSource { return PointerSource{Kind: SourceInitialized, Path: path} }
func Scratch(path ...int) PointerSource     { return PointerSource{Kind: SourceScratch, Path: path} }
func Shared(path ...int) PointerSource      { return PointerSource{Kind: SourceShared, Path: path} }

func Socket(i int, path ...int) PointerSource {
	return PointerSource{Kind: SourceSocket, Socket: i, Path: path}
}

func Aggregate(kind AggregateKind, children ...PointerSource) PointerSource {
	return PointerSource{Kind: SourceAggregate, Agg: kind, Children: children}
}

func (p PointerSource) IsLeaf() bool { return p.Kind != SourceAggregate }

func concat(a []int, b ...int) []int {
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// Append extends the path of every leaf.
func (p PointerSource) Append(path ...int) PointerSource {
	if len(path) == 0 {
		return p
	}
	if p.IsLeaf() {
		p.Path = concat(p.Path, path...)
		return p
	}
	children := make([]PointerSource, len(p.Children))
	for i, c := range p.Children {
		children[i] = c.Append(path...)
	}
	p.Children = children
	return p
}

// Mapper rewrites leaves by kind. A nil func keeps leaves of that kind.
type Mapper struct {
	Initialized func(path []int) PointerSource
	Scratch     func(path []int) PointerSource
	Shared      func(path []int) PointerSource
	Socket      func(i int, path []int) PointerSource
}

// Map rewrites every leaf through m.
func (p PointerSource) Map(m Mapper) PointerSource {
	switch p.Kind {
	case SourceInitialized:
		if m.Initialized != nil {
			return m.Initialized(p.Path)
		}
	case SourceScratch:
		if m.Scratch != nil {
			return m.Scratch(p.Path)
		}
	case SourceShared:
		if m.Shared != nil {
			return m.Shared(p.Path)
		}
	case SourceSocket:
		if m.Socket != nil {
			return m.Socket(p.Socket, p.Path)
		}
	case SourceAggregate:
		children := make([]PointerSource, len(p.Children))
		for i, c := range p.Children {
			children[i] = c.Map(m)
		}
		p.Children = children
	}
	return p
}

// prefix returns a Mapper that prepends path to leaves of the storage
// classes with a non-nil prefix.
func prefix(init, scratch, shared []int) Mapper {
	var m Mapper
	if init != nil {
		m.Initialized = func(p []int) PointerSource { return Initialized(concat(init, p...)...) }
	}
	if scratch != nil {
		m.Scratch = func(p []int) PointerSource { return Scratch(concat(scratch, p...)...) }
	}
	if shared != nil {
		m.Shared = func(p []int) PointerSource { return Shared(concat(shared, p...)...) }
	}
	return m
}

// Type is the pointer struct p folds into: a pointer per leaf.
func (p PointerSource) Type() *datatype.Type {
	if p.IsLeaf() {
		return datatype.Pointer()
	}
	if p.Agg == AggregateArray {
		if len(p.Children) == 0 {
			return datatype.Array(datatype.Pointer(), 0)
		}
		return datatype.Array(p.Children[0].Type(), len(p.Children))
	}
	fields := make([]*datatype.Type, len(p.Children))
	for i, c := range p.Children {
		fields[i] = c.Type()
	}
	return datatype.Struct(fields...)
}

// Base is a global a storage class lives in. Leaves resolve to
// Symbol + offset of Prefix ++ path within Type.
type Base struct {
	Symbol string
	Type   *datatype.Type
	Prefix []int
}

func (b Base) pointer(path []int) datatype.Constant {
	off, _ := b.Type.Offset(concat(b.Prefix, path...)...)
	return datatype.ConstPointer{Symbol: b.Symbol, Offset: off}
}

// Bases places each storage class; Sockets indexes root sockets.
type Bases struct {
	Initialized Base
	Scratch     Base
	Shared      Base
	Sockets     Base
}

// Fold turns p into a constant initializer for its pointer struct.
func (p PointerSource) Fold(b Bases) datatype.Constant {
	switch p.Kind {
	case SourceInitialized:
		return b.Initialized.pointer(p.Path)
	case SourceScratch:
		return b.Scratch.pointer(p.Path)
	case SourceShared:
		return b.Shared.pointer(p.Path)
	case SourceSocket:
		return b.Sockets.pointer(concat([]int{p.Socket}, p.Path...))
	}
	fields := make([]datatype.Constant, len(p.Children))
	for i, c := range p.Children {
		fields[i] = c.Fold(b)
	}
	if p.Agg == AggregateArray {
		return datatype.ConstArray{T: p.Type(), Elems: fields}
	}
	return datatype.ConstStruct{T: p.Type(), Fields: fields}
}

// Leaves calls f for every leaf with its position in the folded struct.
func (p PointerSource) Leaves(f func(at []int, leaf PointerSource)) {
	p.leaves(nil, f)
}

func (p PointerSource) leaves(at []int, f func([]int, PointerSource)) {
	if p.IsLeaf() {
		f(at, p)
		return
	}
	for i, c := range p.Children {
		c.leaves(concat(at, i), f)
	}
}

func (p PointerSource) Equal(o PointerSource) bool { return p.String() == o.String() }

func (p PointerSource) String() string {
	var sb strings.Builder
	p.write(&sb)
	return sb.String()
}

func (p PointerSource) write(sb *strings.Builder) {
	switch p.Kind {
	case SourceAggregate:
		l, r := "{", "}"
		if p.Agg == AggregateArray {
			l, r = "[", "]"
		}
		sb.WriteString(l)
		for i, c := range p.Children {
			if i > 0 {
				sb.WriteString(", ")
			}
			c.write(sb)
		}
		sb.WriteString(r)
		return
	case SourceSocket:
		fmt.Fprintf(sb, "socket(%d)", p.Socket)
	default:
		sb.WriteString(p.Kind.String())
	}
	fmt.Fprintf(sb, "%v", p.Path)
}
