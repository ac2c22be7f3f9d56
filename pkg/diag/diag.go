// Package diag implements the interpreter's single diagnostic shape
// (spec.md §7): every error carries a category, a source position, and a
// message. There is no local recovery anywhere in the interpreter; every
// diag.Error eventually reaches the top-level driver's non-local escape.
package diag

import "fmt"

// Category classifies an error for tests and for the driver's exit
// status (spec.md §7).
type Category string

const (
	Syntax  Category = "syntax"
	Type    Category = "type"
	Name    Category = "name"
	Memory  Category = "memory"
	Runtime Category = "runtime"
	Link    Category = "link"
)

// Error is the interpreter's one error shape: every fallible operation
// that fails fatally returns one of these (spec.md §7 "All errors carry
// file, line, and column").
type Error struct {
	Category Category
	File     string
	Line     int
	Col      int
	Msg      string
}

func (e *Error) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s error: %s", e.Category, e.Msg)
	}
	return fmt.Sprintf("%s:%d:%d: %s error: %s", e.File, e.Line, e.Col, e.Category, e.Msg)
}

// Errorf builds a positioned diagnostic.
func Errorf(cat Category, file string, line, col int, format string, args ...any) error {
	return &Error{Category: cat, File: file, Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

// As reports whether err is a *Error, returning it if so — a thin wrapper
// over errors.As for call sites that want the category.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
