package diag

import (
	"errors"
	"fmt"

	"modelc/internal/graph"
)

// Kind classifies compilation errors.
type Kind string

const (
	UnmatchedFunction   Kind = "UnmatchedFunction"
	TooManyMatches      Kind = "TooManyMatches"
	UnresolvedReference Kind = "UnresolvedReference"
	InferenceConflict   Kind = "InferenceConflict"
	TypeMismatch        Kind = "TypeMismatch"
	Structural          Kind = "Structural"
)

// Error is a compilation error located at the offending call site or
// reference.
type Error struct {
	Kind    Kind
	Message string
	Pos     *graph.SourceInformation
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Pos == nil:
		return fmt.Sprintf("Compilation error, \"%s\"", e.Message)
	case e.Pos.Line == 0:
		return fmt.Sprintf("Compilation error at (resource:%s), \"%s\"", e.Pos.Source, e.Message)
	}
	return fmt.Sprintf("Compilation error at (resource:%s line:%d column:%d), \"%s\"",
		e.Pos.Source, e.Pos.Line, e.Pos.Column, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, pos *graph.SourceInformation, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Pos: pos}
}

func Newf(kind Kind, pos *graph.SourceInformation, format string, a ...any) *Error {
	return New(kind, pos, fmt.Sprintf(format, a...))
}

// Wrap attaches a position and kind to an underlying error.
func Wrap(kind Kind, pos *graph.SourceInformation, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Pos: pos, Err: err}
}

// As returns the compilation error in err's chain, if any.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsKind reports whether err is a compilation error of the given kind.
func IsKind(err error, kind Kind) bool {
	de, ok := As(err)
	return ok && de.Kind == kind
}
