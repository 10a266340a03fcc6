package holysaw

import (
	"fmt"
)

type (
	// PreambleError is fatal to a run: a preamble that does not evaluate
	// cannot produce meaningful audio, so no samples are produced.
	PreambleError struct {
		Err error
	}

	// CellEvalError records a cell whose content failed to evaluate at one
	// sample. The run continues.
	CellEvalError struct {
		Pos     CellPos
		Sample  int
		Content string
		Err     error
	}

	// MalformedCellError records a cell with a missing, non-positive or
	// non-finite duration. Such a cell is treated as zero length.
	MalformedCellError struct {
		Pos        CellPos
		MsDuration float64
	}

	// OutputEvalError records a sample whose output call failed or yielded a
	// value that is not finite; the sample is replaced with 0.
	OutputEvalError struct {
		Sample int
		Value  float64 // the offending value, when the call itself succeeded
		Err    error   // nil when the call succeeded but the value was not finite
	}
)

func (e *PreambleError) Error() string {
	return fmt.Sprintf("preamble: %v", e.Err)
}

func (e *PreambleError) Unwrap() error { return e.Err }

func (e *CellEvalError) Error() string {
	return fmt.Sprintf("%v at sample %d: %q: %v", e.Pos, e.Sample, e.Content, e.Err)
}

func (e *CellEvalError) Unwrap() error { return e.Err }

func (e *MalformedCellError) Error() string {
	return fmt.Sprintf("%v: invalid duration %v ms, cell treated as zero length", e.Pos, e.MsDuration)
}

func (e *OutputEvalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("output at sample %d: %v", e.Sample, e.Err)
	}
	return fmt.Sprintf("output at sample %d: non-finite value %v", e.Sample, e.Value)
}

func (e *OutputEvalError) Unwrap() error { return e.Err }
