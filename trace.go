package holysaw

import (
	"fmt"
	"io"
	"strings"
)

type (
	// Trace is the execution log of one synthesis run: what ran at each
	// sample and which value came out. Recovered errors are reported here.
	Trace []TraceLine

	// TraceLine describes one step of a run. Sample is -1 for lines that are
	// not tied to a sample, e.g. malformed cell reports emitted before the
	// sample loop starts.
	TraceLine struct {
		Sample int         `json:"sample"`
		Steps  []TraceStep `json:"steps,omitempty"`
		Value  float32     `json:"value"`
		Note   string      `json:"note,omitempty"`  // free-form remark for non-sample lines
		Error  string      `json:"error,omitempty"` // output failure, if any
	}

	// TraceStep is what one channel did during a sample.
	TraceStep struct {
		Channel int       `json:"channel"`
		Cell    int       `json:"cell"`
		State   StepState `json:"state"`
		Content string    `json:"content,omitempty"`
		Error   string    `json:"error,omitempty"`
	}

	StepState int
)

const (
	StepExecuted StepState = iota // the cell content was evaluated
	StepEmpty                     // the active cell has no content
	StepEnded                     // the channel has no cell left at this sample
	StepFailed                    // evaluating the cell content failed
)

var stepStateNames = [...]string{"executed", "empty", "ended", "failed"}

func (s StepState) String() string {
	if s < 0 || int(s) >= len(stepStateNames) {
		return fmt.Sprintf("StepState(%d)", int(s))
	}
	return stepStateNames[s]
}

func (s StepState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StepState) UnmarshalText(b []byte) error {
	for i, n := range stepStateNames {
		if n == string(b) {
			*s = StepState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown step state %q", b)
}

// Failed reports whether the line carries a recovered error, either in a
// channel step or in the output call.
func (l TraceLine) Failed() bool {
	if l.Error != "" {
		return true
	}
	for _, s := range l.Steps {
		if s.State == StepFailed {
			return true
		}
	}
	return false
}

func (l TraceLine) String() string {
	var b strings.Builder
	if l.Sample < 0 {
		b.WriteString("--")
		if l.Note != "" {
			b.WriteString(" ")
			b.WriteString(l.Note)
		}
		if l.Error != "" {
			fmt.Fprintf(&b, " !! %s", l.Error)
		}
		return b.String()
	}
	fmt.Fprintf(&b, "%d:", l.Sample)
	for _, s := range l.Steps {
		b.WriteString(" ")
		b.WriteString(s.String())
		b.WriteString(";")
	}
	fmt.Fprintf(&b, " -> %g", l.Value)
	if l.Error != "" {
		fmt.Fprintf(&b, " !! %s", l.Error)
	}
	return b.String()
}

func (s TraceStep) String() string {
	switch s.State {
	case StepEnded:
		return fmt.Sprintf("ch%d ended", s.Channel)
	case StepEmpty:
		return fmt.Sprintf("ch%d[%d] skipped", s.Channel, s.Cell)
	case StepFailed:
		return fmt.Sprintf("ch%d[%d] %s !! %s", s.Channel, s.Cell, s.Content, s.Error)
	default:
		return fmt.Sprintf("ch%d[%d] %s", s.Channel, s.Cell, s.Content)
	}
}

// Lines returns the trace as human-readable text lines.
func (t Trace) Lines() []string {
	ret := make([]string, len(t))
	for i, l := range t {
		ret[i] = l.String()
	}
	return ret
}

// WriteTo writes the trace as text, one line per entry.
func (t Trace) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, l := range t {
		n, err := io.WriteString(w, l.String()+"\n")
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("could not write trace: %w", err)
		}
	}
	return total, nil
}
