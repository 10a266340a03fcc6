package holysaw

import (
	"context"
	"fmt"
	"math"
	"strings"
)

type (
	// Evaluator is a numeric expression language with one persistent, mutable
	// environment of variables and functions. The synthesis engine only talks
	// to the language through this interface.
	Evaluator interface {
		// Reset discards every variable and function binding.
		Reset()
		// Evaluate runs one or more statements against the environment and
		// returns the value of the last one. Assignments bind into the
		// environment.
		Evaluate(src string) (float64, error)
		// Variable reads back a numeric variable.
		Variable(name string) (float64, bool)
		// SetVariable binds a numeric variable, overwriting any previous
		// binding of the name.
		SetVariable(name string, value float64)
	}

	// EvaluatorService creates evaluators. Every synthesis run gets its own
	// evaluator, so concurrent runs never share an environment.
	EvaluatorService interface {
		NewEvaluator() Evaluator
	}

	// SynthesizeOptions tune a synthesis run. The zero value renders the
	// whole timeline with a full trace, reading the output from y().
	SynthesizeOptions struct {
		// StopMs caps the run, for "preview up to here" playback.
		StopMs *float64
		// Output is the name of the zero-argument function (or variable)
		// read after all channels ran at a sample. Defaults to "y".
		Output string
		// TraceMode selects how much of the run is traced.
		TraceMode TraceMode
		// Progress, if not nil, is called periodically with the fraction of
		// samples rendered so far.
		Progress func(float32)
	}

	// Result is the output of a synthesis run.
	Result struct {
		Samples   AudioBuffer
		Trace     Trace
		Malformed []*MalformedCellError
		// Errors holds the first MaxRecordedErrors recovered per-sample
		// errors (*CellEvalError and *OutputEvalError); Recovered counts all
		// of them.
		Errors    []error
		Recovered int
	}

	TraceMode int
)

const (
	TraceFull   TraceMode = iota // one line per sample
	TraceErrors                  // only lines that carry a recovered error
	TraceOff                     // no trace at all
)

// Names bound by the engine before the channels run at each sample.
const (
	SampleVar  = "x"  // the current sample index
	SecondsVar = "t"  // the current position in seconds
	RateVar    = "sr" // the sample rate
)

// DefaultOutput is the output function read at every sample.
const DefaultOutput = "y"

// MaxRecordedErrors caps Result.Errors; a broken cell fails at every sample
// it is active and would otherwise keep one error per sample.
const MaxRecordedErrors = 256

const checkInterval = 4096

// longer renders grow the sample buffer as they go
const maxPrealloc = 1 << 22

var traceModeNames = map[string]TraceMode{"full": TraceFull, "errors": TraceErrors, "off": TraceOff}

// ParseTraceMode converts "full", "errors" or "off" to a TraceMode.
func ParseTraceMode(s string) (TraceMode, error) {
	if m, ok := traceModeNames[strings.ToLower(s)]; ok {
		return m, nil
	}
	return TraceFull, fmt.Errorf("unknown trace mode %q (want full, errors or off)", s)
}

func (m TraceMode) String() string {
	for n, v := range traceModeNames {
		if v == m {
			return n
		}
	}
	return fmt.Sprintf("TraceMode(%d)", int(m))
}

// Synthesize evaluates the song sample by sample and returns the rendered
// samples together with the trace of the run.
//
// The evaluator environment is reset and the preamble evaluated once; a
// failing preamble aborts the run with a *PreambleError. Then, for every
// sample from 0 to TotalSamples inclusive, the sample index is bound to x,
// the active cell of each channel is evaluated in channel order, and finally
// the output function is called once to get the sample value. Errors in
// cells or in the output call are recovered: they are recorded in the trace
// and the sample count is always the same as in a run without errors.
//
// The song is treated as a read-only snapshot. ctx is checked periodically,
// so long renders can be cancelled.
func Synthesize(ctx context.Context, service EvaluatorService, song Song, opts SynthesizeOptions) (*Result, error) {
	song = song.Copy()
	ev := service.NewEvaluator()
	ev.Reset()
	if strings.TrimSpace(song.Preamble) != "" {
		if _, err := ev.Evaluate(song.Preamble); err != nil {
			return nil, &PreambleError{Err: err}
		}
	}
	output := opts.Output
	if output == "" {
		output = DefaultOutput
	}
	outputCall := output + "()"
	timeline := song.Timeline
	total := timeline.TotalSamples(opts.StopMs)
	bounds := make([][]int, len(timeline))
	for i, c := range timeline {
		bounds[i] = c.Boundaries()
	}
	// per-channel progress through the cells; owned by this run only
	cursors := make([]int, len(timeline))
	res := &Result{
		Samples:   make(AudioBuffer, 0, min(total+1, maxPrealloc)),
		Malformed: timeline.MalformedCells(),
	}
	if opts.TraceMode != TraceOff {
		for _, m := range res.Malformed {
			res.Trace = append(res.Trace, TraceLine{Sample: -1, Note: "malformed cell", Error: m.Error()})
		}
	}
	recordError := func(err error) {
		res.Recovered++
		if len(res.Errors) < MaxRecordedErrors {
			res.Errors = append(res.Errors, err)
		}
	}
	ev.SetVariable(RateVar, SampleRate)
	for sample := 0; sample <= total; sample++ {
		if sample%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("synthesis interrupted at sample %d: %w", sample, err)
			}
			if opts.Progress != nil {
				opts.Progress(float32(sample) / float32(total+1))
			}
		}
		ev.SetVariable(SampleVar, float64(sample))
		ev.SetVariable(SecondsVar, float64(sample)/SampleRate)
		var steps []TraceStep
		if opts.TraceMode != TraceOff {
			steps = make([]TraceStep, 0, len(timeline))
		}
		failed := false
		for ch, channel := range timeline {
			b := bounds[ch]
			for cursors[ch] < len(b) && b[cursors[ch]] <= sample {
				cursors[ch]++
			}
			step := TraceStep{Channel: ch, Cell: cursors[ch]}
			switch {
			case cursors[ch] >= len(b):
				step.State, step.Cell = StepEnded, -1
			case strings.TrimSpace(channel.Cells[cursors[ch]].Content) == "":
				step.State = StepEmpty
			default:
				content := channel.Cells[cursors[ch]].Content
				step.Content = content
				if _, err := ev.Evaluate(content); err != nil {
					step.State, step.Error = StepFailed, err.Error()
					failed = true
					recordError(&CellEvalError{Pos: CellPos{Channel: ch, Cell: cursors[ch]}, Sample: sample, Content: content, Err: err})
				}
			}
			if steps != nil {
				steps = append(steps, step)
			}
		}
		line := TraceLine{Sample: sample, Steps: steps}
		value, err := readOutput(ev, output, outputCall)
		value32 := float32(value)
		switch {
		case err != nil:
			oerr := &OutputEvalError{Sample: sample, Err: err}
			line.Error = oerr.Error()
			recordError(oerr)
			value32 = 0
		case !finite(value) || !finite(float64(value32)):
			oerr := &OutputEvalError{Sample: sample, Value: value}
			line.Error = oerr.Error()
			recordError(oerr)
			value32 = 0
		}
		line.Value = value32
		res.Samples = append(res.Samples, value32)
		if opts.TraceMode == TraceFull || (opts.TraceMode == TraceErrors && (failed || line.Error != "")) {
			res.Trace = append(res.Trace, line)
		}
	}
	if opts.Progress != nil {
		opts.Progress(1)
	}
	return res, nil
}

// readOutput reads the sample value: a numeric variable named output if one
// is bound, otherwise the value of calling output().
func readOutput(ev Evaluator, output, outputCall string) (float64, error) {
	if v, ok := ev.Variable(output); ok {
		return v, nil
	}
	return ev.Evaluate(outputCall)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
