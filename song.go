package holysaw

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// SampleRate is the fixed rate of every synthesized waveform, in Hz.
const SampleRate = 44100

// SamplesPerMs is SampleRate expressed per millisecond. It is not an integer,
// so millisecond positions are converted with MsToSamples, which rounds.
const SamplesPerMs = SampleRate / 1000.0

type (
	// Song is the document the user edits: a preamble that seeds the shared
	// environment, the timeline of channels and a name. It round-trips
	// through the project file format (see ReadSong and WriteSong) with the
	// same keys as .ihs project files.
	Song struct {
		Preamble string   `json:"preamble" yaml:"preamble"`
		Timeline Timeline `json:"grid" yaml:"grid"`
		Name     string   `json:"songName" yaml:"songName"`
	}

	// Timeline is the ordered list of channels. All channels run against the
	// same sample clock; their order is the order in which they are evaluated
	// at each sample, and it matters, as later channels see the variables and
	// functions the earlier channels just bound.
	Timeline []Channel

	// Channel is one synthesis lane: a sequence of cells played back to back.
	Channel struct {
		Cells []Cell `json:"cells" yaml:"cells"`
	}

	// Cell holds an expression and how long, in milliseconds, it stays
	// active. Content may be empty, in which case nothing is evaluated while
	// the cell is active.
	Cell struct {
		MsDuration float64 `json:"msDuration" yaml:"msDuration"`
		Content    string  `json:"content" yaml:"content"`
	}

	// CellPos addresses a cell in a timeline.
	CellPos struct {
		Channel int
		Cell    int
	}
)

// ErrNoChannels is returned when a song has an empty timeline.
var ErrNoChannels = errors.New("song contains no channels")

// MaxSamples is the latest sample index a timeline can address, a little
// over 13.5 hours. Later positions saturate to it.
const MaxSamples = math.MaxInt32

// MsToSamples converts a position in milliseconds to a sample index, rounding
// half away from zero. Negative positions map to zero, positions past
// MaxSamples (including +Inf) map to MaxSamples.
func MsToSamples(ms float64) int {
	if !(ms > 0) {
		return 0
	}
	s := math.Round(ms * SamplesPerMs)
	if s >= MaxSamples {
		return MaxSamples
	}
	return int(s)
}

// Valid reports whether the cell has a usable duration: a finite number
// greater than zero.
func (c Cell) Valid() bool {
	return c.MsDuration > 0 && !math.IsInf(c.MsDuration, 0)
}

// Boundaries returns, for every cell, the sample index one past its last
// sample. The boundaries are computed from the cumulative millisecond
// durations, rounding only the cumulative sums, so rounding errors never add
// up over many cells. Cells with an invalid duration contribute zero length:
// their boundary equals the previous one and they are never active.
func (c Channel) Boundaries() []int {
	ret := make([]int, len(c.Cells))
	cumMs := 0.0
	for i, cell := range c.Cells {
		if cell.Valid() {
			cumMs += cell.MsDuration
		}
		ret[i] = MsToSamples(cumMs)
	}
	return ret
}

// LengthMs returns the total duration of the channel in milliseconds,
// ignoring cells with invalid durations.
func (c Channel) LengthMs() float64 {
	ret := 0.0
	for _, cell := range c.Cells {
		if cell.Valid() {
			ret += cell.MsDuration
		}
	}
	return ret
}

// LengthInSamples returns the number of samples the channel lasts.
func (c Channel) LengthInSamples() int {
	return MsToSamples(c.LengthMs())
}

// ActiveCellIndex returns the index of the cell whose half-open sample range
// [start, end) contains sample. ok is false when sample lies before zero or
// past the last cell of the channel.
func (c Channel) ActiveCellIndex(sample int) (index int, ok bool) {
	if sample < 0 {
		return -1, false
	}
	bounds := c.Boundaries()
	// first cell whose end boundary is past the sample; zero-length cells
	// have end == start and are skipped automatically
	i := sort.Search(len(bounds), func(i int) bool { return bounds[i] > sample })
	if i >= len(bounds) {
		return -1, false
	}
	return i, true
}

// CellRange returns the half-open sample range [start, end) of cell i.
func (c Channel) CellRange(i int) (start, end int) {
	if i < 0 || i >= len(c.Cells) {
		return 0, 0
	}
	bounds := c.Boundaries()
	if i > 0 {
		start = bounds[i-1]
	}
	return start, bounds[i]
}

// ActiveCellIndex returns the active cell of the given channel at sample.
func (t Timeline) ActiveCellIndex(channel, sample int) (index int, ok bool) {
	if channel < 0 || channel >= len(t) {
		return -1, false
	}
	return t[channel].ActiveCellIndex(sample)
}

// TotalSamples returns the length of the longest channel in samples. If
// stopMs is given and ends earlier, the result is capped to it; this is how
// "preview up to here" playback is bounded. A NaN stopMs caps nothing.
func (t Timeline) TotalSamples(stopMs *float64) int {
	ret := 0
	for _, c := range t {
		if l := c.LengthInSamples(); l > ret {
			ret = l
		}
	}
	if stopMs != nil && !math.IsNaN(*stopMs) {
		if s := MsToSamples(*stopMs); s < ret {
			ret = s
		}
	}
	return ret
}

// LengthMs returns the duration of the longest channel in milliseconds.
func (t Timeline) LengthMs() float64 {
	ret := 0.0
	for _, c := range t {
		ret = max(ret, c.LengthMs())
	}
	return ret
}

// MalformedCells lists every cell with an invalid duration, in channel and
// cell order.
func (t Timeline) MalformedCells() []*MalformedCellError {
	var ret []*MalformedCellError
	for ch, c := range t {
		for i, cell := range c.Cells {
			if !cell.Valid() {
				ret = append(ret, &MalformedCellError{Pos: CellPos{Channel: ch, Cell: i}, MsDuration: cell.MsDuration})
			}
		}
	}
	return ret
}

// Cell returns the cell at pos, or false if pos is out of range.
func (t Timeline) Cell(pos CellPos) (Cell, bool) {
	if pos.Channel < 0 || pos.Channel >= len(t) {
		return Cell{}, false
	}
	cells := t[pos.Channel].Cells
	if pos.Cell < 0 || pos.Cell >= len(cells) {
		return Cell{}, false
	}
	return cells[pos.Cell], true
}

// Copy makes a deep copy of a Channel.
func (c Channel) Copy() Channel {
	return Channel{Cells: append([]Cell(nil), c.Cells...)}
}

// Copy makes a deep copy of a Timeline.
func (t Timeline) Copy() Timeline {
	if t == nil {
		return nil
	}
	ret := make(Timeline, len(t))
	for i, c := range t {
		ret[i] = c.Copy()
	}
	return ret
}

// Copy makes a deep copy of a Song; the synthesis engine works on such
// snapshots so that the editor can keep mutating the original.
func (s *Song) Copy() Song {
	return Song{Preamble: s.Preamble, Timeline: s.Timeline.Copy(), Name: s.Name}
}

// Validate checks that the song can be synthesized at all. Malformed cells
// are not an error here: they are recovered from during synthesis and
// reported with MalformedCells.
func (s *Song) Validate() error {
	if len(s.Timeline) == 0 {
		return ErrNoChannels
	}
	return nil
}

func (p CellPos) String() string {
	return fmt.Sprintf("ch%d[%d]", p.Channel, p.Cell)
}
