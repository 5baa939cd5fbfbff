package mir

import (
	"fmt"
	"strings"
)

// ConstantValue is either a ConstantNum or a ConstantTuple.
type ConstantValue interface {
	VarType() VarType
	String() string
}

type ConstantNum struct {
	Left, Right float64
	Form        FormType
}

type ConstantTuple struct {
	Items []ConstantValue
}

func NewConstantNum(v float64, form FormType) ConstantNum {
	return ConstantNum{Left: v, Right: v, Form: form}
}

func (c ConstantNum) VarType() VarType { return Num() }

func (c ConstantNum) String() string {
	if c.Left == c.Right {
		return fmt.Sprintf("%g%s", c.Left, formLabel(c.Form))
	}
	return fmt.Sprintf("<%g, %g>%s", c.Left, c.Right, formLabel(c.Form))
}

func (c ConstantTuple) VarType() VarType {
	items := make([]VarType, len(c.Items))
	for i, item := range c.Items {
		items[i] = item.VarType()
	}
	return Tuple(items...)
}

func (c ConstantTuple) String() string {
	parts := make([]string, len(c.Items))
	for i, item := range c.Items {
		parts[i] = item.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formLabel(f FormType) string {
	if f == FormNone {
		return ""
	}
	return " " + f.String()
}

// ZeroValue returns the default constant for a value of type t, or nil
// when t has no constant representation (MIDI and arrays).
func ZeroValue(t VarType) ConstantValue {
	switch t.Kind {
	case VarNum:
		return ConstantNum{}
	case VarTuple:
		items := make([]ConstantValue, len(t.Items))
		for i, item := range t.Items {
			if items[i] = ZeroValue(item); items[i] == nil {
				return nil
			}
		}
		return ConstantTuple{Items: items}
	}
	return nil
}
