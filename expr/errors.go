package expr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUndefined   = errors.New("undefined name")
	ErrNotCallable = errors.New("not a function")
	ErrNotValue    = errors.New("function used as a value")
	ErrArity       = errors.New("wrong number of arguments")
	ErrRecursion   = errors.New("maximum recursion depth exceeded")
	ErrReadOnly    = errors.New("cannot assign to a builtin")
)

type (
	// ParseError is a syntax error. Offset is the byte offset into Src.
	ParseError struct {
		Offset int
		Msg    string
		Src    string
	}

	// EvalError is an error raised while evaluating a well-formed program.
	EvalError struct {
		Name string
		Err  error
	}
)

func (e *ParseError) Error() string {
	line, col := 1, 1
	for _, r := range e.Src[:min(e.Offset, len(e.Src))] {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	if strings.Contains(e.Src, "\n") {
		return fmt.Sprintf("parse error at %d:%d: %s", line, col, e.Msg)
	}
	return fmt.Sprintf("parse error at column %d: %s", col, e.Msg)
}

func (e *EvalError) Error() string {
	if e.Name == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

func evalErrorf(name string, sentinel error, format string, args ...any) *EvalError {
	return &EvalError{Name: name, Err: fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)}
}
