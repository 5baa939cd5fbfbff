// Package diag holds the errors reported while compiling block source.
package diag

import "fmt"

type Kind int

const (
	UnexpectedToken Kind = iota
	UnexpectedEnd
	MismatchedType
	UnmatchedTuples
	AccessOutOfBounds
	UnknownForm
	UnknownNote
	UnknownFunction
	WrongArgCount
	NotAssignable
)

var kindNames = [...]string{
	UnexpectedToken:   "unexpected token",
	UnexpectedEnd:     "unexpected end of input",
	MismatchedType:    "mismatched type",
	UnmatchedTuples:   "unmatched tuples",
	AccessOutOfBounds: "access out of bounds",
	UnknownForm:       "unknown form",
	UnknownNote:       "unknown note",
	UnknownFunction:   "unknown function",
	WrongArgCount:     "wrong argument count",
	NotAssignable:     "not assignable",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Pos is a 1-based line and column.
type Pos struct {
	Line, Col int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Before reports whether p comes strictly before o.
func (p Pos) Before(o Pos) bool {
	return p.Line < o.Line || (p.Line == o.Line && p.Col < o.Col)
}

// Range is a half-open source range.
type Range struct {
	Start, End Pos
}

func (r Range) String() string { return r.Start.String() + "-" + r.End.String() }

// Join returns the smallest range covering both r and o.
func (r Range) Join(o Range) Range {
	if o.Start.Before(r.Start) {
		r.Start = o.Start
	}
	if r.End.Before(o.End) {
		r.End = o.End
	}
	return r
}

type Error struct {
	Kind    Kind
	Range   Range
	Message string
}

func Errorf(kind Kind, r Range, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Range: r, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v: %v", e.Range.Start, e.Kind)
	}
	return fmt.Sprintf("%v: %v: %s", e.Range.Start, e.Kind, e.Message)
}
