// Package lower turns a parsed block into MIR statements, checking types on
// the way.
package lower

import (
	"strconv"

	"github.com/monadgroup/axiom-sub000/internal/ast"
	"github.com/monadgroup/axiom-sub000/internal/diag"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

var globals = map[string]mir.GlobalKind{
	"SAMPLERATE": mir.GlobalSampleRate,
	"BPM":        mir.GlobalBPM,
}

type controlKey struct {
	name string
	typ  mir.ControlType
}

type lowerer struct {
	block    *mir.Block
	types    []mir.VarType
	vars     map[string]int
	controls map[controlKey]int
}

// Lower builds the MIR block for b. The result is not optimized.
func Lower(id mir.BlockID, name string, b *ast.Block) (*mir.Block, error) {
	l := &lowerer{
		block:    &mir.Block{ID: id, Name: name},
		vars:     make(map[string]int),
		controls: make(map[controlKey]int),
	}
	for _, e := range b.Exprs {
		if _, err := l.expr(e); err != nil {
			return nil, err
		}
	}
	return l.block, nil
}

func (l *lowerer) push(s mir.Statement) int {
	l.types = append(l.types, mir.StatementType(s, l.types))
	l.block.Statements = append(l.block.Statements, s)
	return len(l.block.Statements) - 1
}

func (l *lowerer) expectNum(idx int, e ast.Expr) error {
	if t := l.types[idx]; t.Kind != mir.VarNum {
		return diag.Errorf(diag.MismatchedType, e.Range(), "expected num, found %v", t)
	}
	return nil
}

func (l *lowerer) expr(e ast.Expr) (int, error) {
	switch e := e.(type) {
	case *ast.NumberExpr:
		return l.push(mir.NumConstant{Value: mir.NewConstantNum(e.Value, e.Form)}), nil
	case *ast.NoteExpr:
		return l.push(mir.NumConstant{Value: mir.NewConstantNum(float64(e.Note), mir.FormNote)}), nil
	case *ast.VariableExpr:
		return l.variable(e), nil
	case *ast.ControlExpr:
		return l.loadControl(e)
	case *ast.CallExpr:
		return l.call(e)
	case *ast.TupleExpr:
		return l.tuple(e)
	case *ast.UnaryExpr:
		in, err := l.expr(e.Operand)
		if err != nil {
			return 0, err
		}
		if err := l.expectNum(in, e.Operand); err != nil {
			return 0, err
		}
		return l.push(mir.NumUnaryOp{Op: e.Op, Input: in}), nil
	case *ast.BinaryExpr:
		return l.binary(e.Op, e.Lhs, e.Rhs)
	case *ast.AssignExpr:
		return l.assign(e)
	case *ast.ExtractExpr:
		in, err := l.expr(e.Tuple)
		if err != nil {
			return 0, err
		}
		return l.extract(in, e.Index, e)
	case *ast.CastExpr:
		in, err := l.expr(e.Operand)
		if err != nil {
			return 0, err
		}
		if err := l.expectNum(in, e.Operand); err != nil {
			return 0, err
		}
		if e.Convert {
			return l.push(mir.NumConvert{Target: e.Target, Input: in}), nil
		}
		return l.push(mir.NumCast{Target: e.Target, Input: in}), nil
	}
	return 0, diag.Errorf(diag.UnexpectedToken, e.Range(), "unsupported expression")
}

func (l *lowerer) variable(e *ast.VariableExpr) int {
	if g, ok := globals[e.Name]; ok {
		return l.push(mir.GlobalRead{Global: g})
	}
	if idx, ok := l.vars[e.Name]; ok {
		return idx
	}
	// unassigned variables read as zero
	return l.push(mir.NumConstant{})
}

func (l *lowerer) binary(op mir.MathOp, lhs, rhs ast.Expr) (int, error) {
	a, err := l.expr(lhs)
	if err != nil {
		return 0, err
	}
	if err := l.expectNum(a, lhs); err != nil {
		return 0, err
	}
	b, err := l.expr(rhs)
	if err != nil {
		return 0, err
	}
	if err := l.expectNum(b, rhs); err != nil {
		return 0, err
	}
	return l.push(mir.NumMathOp{Op: op, Lhs: a, Rhs: b}), nil
}

func (l *lowerer) extract(in, index int, e ast.Expr) (int, error) {
	t := l.types[in]
	if t.Kind != mir.VarTuple {
		return 0, diag.Errorf(diag.MismatchedType, e.Range(), "expected tuple, found %v", t)
	}
	if index < 0 || index >= len(t.Items) {
		return 0, diag.Errorf(diag.AccessOutOfBounds, e.Range(), "index %d of %v", index, t)
	}
	return l.push(mir.Extract{Tuple: in, Index: index}), nil
}

func (l *lowerer) tuple(e *ast.TupleExpr) (int, error) {
	idx := make([]int, len(e.Items))
	for i, item := range e.Items {
		v, err := l.expr(item)
		if err != nil {
			return 0, err
		}
		idx[i] = v
	}
	return l.push(mir.Combine{Indexes: idx}), nil
}

func (l *lowerer) control(e *ast.ControlExpr) (int, mir.ControlField, error) {
	field, ok := mir.LookupField(e.Type, e.Field)
	if !ok {
		return 0, 0, diag.Errorf(diag.UnexpectedToken, e.Range(), "%v has no field %q", e.Type, e.Field)
	}

	key := controlKey{name: e.Name, typ: e.Type}
	idx, ok := l.controls[key]
	if !ok {
		idx = len(l.block.Controls)
		c := mir.Control{Name: e.Name, Type: e.Type}
		if e.Type == mir.ControlGraph || e.Type == mir.ControlRoll {
			// the control produces its own value
			c.ValueWritten = true
		}
		l.block.Controls = append(l.block.Controls, c)
		l.controls[key] = idx
	}
	return idx, field, nil
}

func (l *lowerer) loadControl(e *ast.ControlExpr) (int, error) {
	idx, field, err := l.control(e)
	if err != nil {
		return 0, err
	}
	if field.IsValue() {
		l.block.Controls[idx].ValueRead = true
	}
	return l.push(mir.LoadControl{Control: idx, Field: field}), nil
}

func (l *lowerer) call(e *ast.CallExpr) (int, error) {
	fn, ok := mir.LookupFunction(e.Name)
	if !ok {
		return 0, diag.Errorf(diag.UnknownFunction, e.Range(), "%q", e.Name)
	}
	info := fn.Info()
	min, max := fn.ArgRange()
	if len(e.Args) < min || max >= 0 && len(e.Args) > max {
		return 0, diag.Errorf(diag.WrongArgCount, e.Range(), "%s takes %s arguments, got %d", e.Name, rangeText(min, max), len(e.Args))
	}

	args := make([]int, len(e.Args))
	for i, a := range e.Args {
		v, err := l.expr(a)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}

	call := mir.CallFunc{Function: fn, Args: make([]int, len(info.Params))}
	for i, param := range info.Params {
		if i < len(args) {
			if t := l.types[args[i]]; !t.Equal(param.Type) {
				return 0, diag.Errorf(diag.MismatchedType, e.Args[i].Range(), "argument %d of %s: expected %v, found %v", i+1, e.Name, param.Type, t)
			}
			call.Args[i] = args[i]
			continue
		}
		switch param.Default {
		case mir.DefaultConst:
			call.Args[i] = l.push(mir.NumConstant{Value: param.Value})
		case mir.DefaultArg:
			call.Args[i] = call.Args[param.ArgIndex]
		}
	}
	for i := len(info.Params); i < len(args); i++ {
		if t := l.types[args[i]]; !t.Equal(*info.VarArg) {
			return 0, diag.Errorf(diag.MismatchedType, e.Args[i].Range(), "argument %d of %s: expected %v, found %v", i+1, e.Name, *info.VarArg, t)
		}
		call.VarArgs = append(call.VarArgs, args[i])
	}

	return l.push(call), nil
}

func rangeText(min, max int) string {
	switch {
	case max < 0:
		return strconv.Itoa(min) + " or more"
	case min == max:
		return strconv.Itoa(min)
	}
	return strconv.Itoa(min) + " to " + strconv.Itoa(max)
}

func (l *lowerer) assign(e *ast.AssignExpr) (int, error) {
	var value int
	var err error
	if e.Op != nil {
		value, err = l.binary(*e.Op, e.Left, e.Right)
	} else {
		value, err = l.expr(e.Right)
	}
	if err != nil {
		return 0, err
	}
	if err := l.assignTo(e.Left, value); err != nil {
		return 0, err
	}
	return value, nil
}

func (l *lowerer) assignTo(target ast.Expr, value int) error {
	switch t := target.(type) {
	case *ast.VariableExpr:
		if _, ok := globals[t.Name]; ok {
			return diag.Errorf(diag.NotAssignable, t.Range(), "%s is read-only", t.Name)
		}
		l.vars[t.Name] = value
		return nil

	case *ast.ControlExpr:
		idx, field, err := l.control(t)
		if err != nil {
			return err
		}
		if !field.Writable() {
			return diag.Errorf(diag.NotAssignable, t.Range(), "%v is read-only", field)
		}
		if vt := l.types[value]; !vt.Equal(field.VarType()) {
			return diag.Errorf(diag.MismatchedType, t.Range(), "cannot store %v in %v", vt, field)
		}
		if field.IsValue() {
			l.block.Controls[idx].ValueWritten = true
		}
		l.push(mir.StoreControl{Control: idx, Field: field, Value: value})
		return nil

	case *ast.TupleExpr:
		vt := l.types[value]
		if vt.Kind != mir.VarTuple {
			for _, item := range t.Items {
				if err := l.assignTo(item, value); err != nil {
					return err
				}
			}
			return nil
		}
		if len(vt.Items) != len(t.Items) {
			return diag.Errorf(diag.UnmatchedTuples, t.Range(), "assigning %d values to %d targets", len(vt.Items), len(t.Items))
		}
		for i, item := range t.Items {
			v := l.push(mir.Extract{Tuple: value, Index: i})
			if err := l.assignTo(item, v); err != nil {
				return err
			}
		}
		return nil
	}

	return diag.Errorf(diag.NotAssignable, target.Range(), "cannot assign to expression")
}
