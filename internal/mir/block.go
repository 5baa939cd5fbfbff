package mir

import (
	"fmt"
	"strings"
)

type BlockID uint64

// MixdownBlockID is reserved for the block that sums the voices of an
// extracted output back into one number.
const MixdownBlockID = ^BlockID(0)

// Block is the lowered form of one node's source code.
type Block struct {
	ID         BlockID
	Name       string
	Controls   []Control
	Statements []Statement
}

func (b *Block) Clone() *Block {
	c := *b
	c.Controls = append([]Control(nil), b.Controls...)
	c.Statements = append([]Statement(nil), b.Statements...)
	return &c
}

// MixdownBlock is "out:audio = mixdown(in:audio[])".
func MixdownBlock() *Block {
	return &Block{
		ID:   MixdownBlockID,
		Name: "mixdown",
		Controls: []Control{
			{Name: "in", Type: ControlAudioExtract, ValueRead: true},
			{Name: "out", Type: ControlAudio, ValueWritten: true},
		},
		Statements: []Statement{
			LoadControl{Control: 0, Field: FieldAudioExtractValue},
			CallFunc{Function: FuncMixdown, Args: []int{0}},
			StoreControl{Control: 1, Field: FieldAudioValue, Value: 1},
		},
	}
}

// Types derives the type produced by each statement.
func (b *Block) Types() []VarType {
	types := make([]VarType, len(b.Statements))
	for i, s := range b.Statements {
		types[i] = StatementType(s, types[:i])
	}
	return types
}

// StatementType derives the type of s given the types of all earlier
// statements.
func StatementType(s Statement, prev []VarType) VarType {
	switch s := s.(type) {
	case TupleConstant:
		return s.Value.VarType()
	case Extract:
		return prev[s.Tuple].Items[s.Index]
	case Combine:
		items := make([]VarType, len(s.Indexes))
		for i, idx := range s.Indexes {
			items[i] = prev[idx]
		}
		return Tuple(items...)
	case CallFunc:
		return s.Function.ReturnType()
	case LoadControl:
		return s.Field.VarType()
	case StoreControl:
		return s.Field.VarType()
	}
	return Num()
}

// CallSlots returns the statement index of every function call, in order.
// Each call owns one function data slot.
func (b *Block) CallSlots() []int {
	var slots []int
	for i, s := range b.Statements {
		if _, ok := s.(CallFunc); ok {
			slots = append(slots, i)
		}
	}
	return slots
}

// Key identifies a block up to equivalence: control kinds in order and the
// statement list. Names and ids are ignored.
func (b *Block) Key() string {
	var sb strings.Builder
	for _, c := range b.Controls {
		sb.WriteString(c.Type.String())
		sb.WriteByte(';')
	}
	sb.WriteByte('|')
	for _, s := range b.Statements {
		sb.WriteString(s.String())
		sb.WriteByte(';')
	}
	return sb.String()
}

func (b *Block) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "block %d %q\n", b.ID, b.Name)
	for i, c := range b.Controls {
		fmt.Fprintf(&sb, "  $%d %s:%v", i, c.Name, c.Type)
		if c.ValueRead {
			sb.WriteString(" read")
		}
		if c.ValueWritten {
			sb.WriteString(" written")
		}
		sb.WriteByte('\n')
	}
	for i, s := range b.Statements {
		fmt.Fprintf(&sb, "  %%%d = %v\n", i, s)
	}
	return sb.String()
}
