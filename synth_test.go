package holysaw_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/holysaw/holysaw"
	"github.com/holysaw/holysaw/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func synthesize(t *testing.T, song holysaw.Song, opts holysaw.SynthesizeOptions) *holysaw.Result {
	t.Helper()
	res, err := holysaw.Synthesize(context.Background(), expr.EvaluatorService{}, song, opts)
	require.NoError(t, err)
	return res
}

func twoCellSong() holysaw.Song {
	return holysaw.Song{
		Preamble: "level = 0.25\ny() = level",
		Timeline: holysaw.Timeline{
			{Cells: []holysaw.Cell{
				{MsDuration: 10, Content: "level = 0.5"},
				{MsDuration: 20, Content: "level = -0.5"},
			}},
		},
	}
}

func TestSynthesizeSampleCount(t *testing.T) {
	res := synthesize(t, twoCellSong(), holysaw.SynthesizeOptions{})
	// boundaries at 441 and 1323 samples; the last boundary is included
	require.Len(t, res.Samples, 1324)
	assert.Equal(t, float32(0.5), res.Samples[0])
	assert.Equal(t, float32(0.5), res.Samples[440])
	assert.Equal(t, float32(-0.5), res.Samples[441])
	assert.Equal(t, float32(-0.5), res.Samples[1322])
	// no cell is active at the end boundary, the last value persists
	assert.Equal(t, float32(-0.5), res.Samples[1323])
	assert.Zero(t, res.Recovered)
	require.Len(t, res.Trace, 1324)
	assert.Equal(t, holysaw.StepEnded, res.Trace[1323].Steps[0].State)
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	song := twoCellSong()
	song.Timeline[0].Cells[1].Content = "level = noise()"
	a := synthesize(t, song, holysaw.SynthesizeOptions{})
	b := synthesize(t, song, holysaw.SynthesizeOptions{})
	if diff := cmp.Diff(a.Samples, b.Samples); diff != "" {
		t.Errorf("two runs differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(a.Trace.Lines(), b.Trace.Lines()); diff != "" {
		t.Errorf("two traces differ (-first +second):\n%s", diff)
	}
}

func TestSynthesizeChannelOrder(t *testing.T) {
	song := holysaw.Song{
		Preamble: "y() = a",
		Timeline: holysaw.Timeline{
			{Cells: []holysaw.Cell{{MsDuration: 1, Content: "a = 1"}}},
			{Cells: []holysaw.Cell{{MsDuration: 1, Content: "a = 2"}}},
		},
	}
	res := synthesize(t, song, holysaw.SynthesizeOptions{})
	assert.Equal(t, float32(2), res.Samples[0])
	song.Timeline[0], song.Timeline[1] = song.Timeline[1], song.Timeline[0]
	res = synthesize(t, song, holysaw.SynthesizeOptions{})
	assert.Equal(t, float32(1), res.Samples[0])
}

func TestSynthesizeLaterChannelsSeeEarlierBindings(t *testing.T) {
	song := holysaw.Song{
		Timeline: holysaw.Timeline{
			{Cells: []holysaw.Cell{{MsDuration: 1, Content: "f() = x * 2"}}},
			{Cells: []holysaw.Cell{{MsDuration: 1, Content: "y = f()"}}},
		},
	}
	res := synthesize(t, song, holysaw.SynthesizeOptions{})
	require.Len(t, res.Samples, 45)
	for i, v := range res.Samples[:44] {
		assert.Equal(t, float32(2*i), v)
	}
}

func TestSynthesizeRecoversFromBadCell(t *testing.T) {
	good := twoCellSong()
	bad := twoCellSong()
	bad.Timeline[0].Cells[0].Content = "level = )("
	want := synthesize(t, good, holysaw.SynthesizeOptions{})
	res := synthesize(t, bad, holysaw.SynthesizeOptions{})
	require.Len(t, res.Samples, len(want.Samples))
	// the preamble value is used while the broken cell is active
	assert.Equal(t, float32(0.25), res.Samples[0])
	assert.Equal(t, float32(-0.5), res.Samples[441])
	assert.Equal(t, 441, res.Recovered)
	assert.Len(t, res.Errors, holysaw.MaxRecordedErrors)
	var cellErr *holysaw.CellEvalError
	require.True(t, errors.As(res.Errors[0], &cellErr))
	assert.Equal(t, holysaw.CellPos{Channel: 0, Cell: 0}, cellErr.Pos)
	var parseErr *expr.ParseError
	assert.True(t, errors.As(cellErr, &parseErr))
	assert.True(t, res.Trace[0].Failed())
	assert.Equal(t, holysaw.StepFailed, res.Trace[0].Steps[0].State)
	assert.False(t, res.Trace[441].Failed())
}

func TestSynthesizeOutputFallback(t *testing.T) {
	song := holysaw.Song{
		Timeline: holysaw.Timeline{
			{Cells: []holysaw.Cell{{MsDuration: 1, Content: "y = 0.125"}}},
		},
	}
	res := synthesize(t, song, holysaw.SynthesizeOptions{})
	assert.Equal(t, float32(0.125), res.Samples[0])
	// the output named by the options is used instead of y
	song.Timeline[0].Cells[0].Content = "out() = -0.125"
	res = synthesize(t, song, holysaw.SynthesizeOptions{Output: "out"})
	assert.Equal(t, float32(-0.125), res.Samples[0])
	assert.Zero(t, res.Recovered)
}

func TestSynthesizeMissingOutput(t *testing.T) {
	song := holysaw.Song{
		Timeline: holysaw.Timeline{{Cells: []holysaw.Cell{{MsDuration: 1, Content: "a = 1"}}}},
	}
	res := synthesize(t, song, holysaw.SynthesizeOptions{})
	require.Len(t, res.Samples, 45)
	for _, v := range res.Samples {
		assert.Zero(t, v)
	}
	assert.Equal(t, 45, res.Recovered)
	var outErr *holysaw.OutputEvalError
	require.True(t, errors.As(res.Errors[0], &outErr))
	assert.ErrorIs(t, outErr, expr.ErrUndefined)
}

func TestSynthesizeNonFiniteOutput(t *testing.T) {
	for _, src := range []string{"y() = 0 / 0", "y() = 1 / 0", "y() = 1e300"} {
		t.Run(src, func(t *testing.T) {
			song := holysaw.Song{
				Preamble: src,
				Timeline: holysaw.Timeline{{Cells: []holysaw.Cell{{MsDuration: 1}}}},
			}
			res := synthesize(t, song, holysaw.SynthesizeOptions{TraceMode: holysaw.TraceErrors})
			require.Len(t, res.Samples, 45)
			for _, v := range res.Samples {
				assert.Zero(t, v)
			}
			assert.Equal(t, 45, res.Recovered)
			assert.Len(t, res.Trace, 45)
		})
	}
}

func TestSynthesizeStopMs(t *testing.T) {
	song := twoCellSong()
	full := synthesize(t, song, holysaw.SynthesizeOptions{})
	stop := 10.0
	partial := synthesize(t, song, holysaw.SynthesizeOptions{StopMs: &stop})
	require.Len(t, partial.Samples, 442)
	if diff := cmp.Diff(full.Samples[:442], partial.Samples); diff != "" {
		t.Errorf("stopped run is not a prefix of the full run (-full +partial):\n%s", diff)
	}
}

func TestSynthesizeStopMsPastTheEnd(t *testing.T) {
	song := twoCellSong()
	for _, stop := range []float64{1e6, 1e20, math.Inf(1), math.NaN()} {
		res := synthesize(t, song, holysaw.SynthesizeOptions{StopMs: &stop})
		assert.Len(t, res.Samples, 1324, "stopMs %v", stop)
	}
}

func TestSynthesizeMalformedCell(t *testing.T) {
	song := twoCellSong()
	song.Timeline[0].Cells = append([]holysaw.Cell{{MsDuration: 0, Content: "level = 9"}}, song.Timeline[0].Cells...)
	res := synthesize(t, song, holysaw.SynthesizeOptions{})
	require.Len(t, res.Malformed, 1)
	assert.Equal(t, holysaw.CellPos{Channel: 0, Cell: 0}, res.Malformed[0].Pos)
	require.Len(t, res.Samples, 1324)
	assert.Equal(t, float32(0.5), res.Samples[0])
	assert.Equal(t, -1, res.Trace[0].Sample)
	assert.Equal(t, 0, res.Trace[1].Sample)
}

func TestTraceWriteTo(t *testing.T) {
	stop := 0.0
	res := synthesize(t, twoCellSong(), holysaw.SynthesizeOptions{StopMs: &stop})
	var b strings.Builder
	n, err := res.Trace.WriteTo(&b)
	require.NoError(t, err)
	assert.Equal(t, "0: ch0[0] level = 0.5; -> 0.5\n", b.String())
	assert.Equal(t, int64(b.Len()), n)
}

func TestSynthesizeTraceModes(t *testing.T) {
	song := twoCellSong()
	song.Timeline[0].Cells[1].Content = "level = nope"
	res := synthesize(t, song, holysaw.SynthesizeOptions{TraceMode: holysaw.TraceErrors})
	require.Len(t, res.Trace, 882)
	assert.Equal(t, 441, res.Trace[0].Sample)
	for _, l := range res.Trace {
		assert.True(t, l.Failed())
	}
	res = synthesize(t, song, holysaw.SynthesizeOptions{TraceMode: holysaw.TraceOff})
	assert.Empty(t, res.Trace)
	assert.Equal(t, 882, res.Recovered)
}

func TestSynthesizePreambleError(t *testing.T) {
	song := twoCellSong()
	song.Preamble = "level = "
	_, err := holysaw.Synthesize(context.Background(), expr.EvaluatorService{}, song, holysaw.SynthesizeOptions{})
	var preambleErr *holysaw.PreambleError
	require.True(t, errors.As(err, &preambleErr))
}

func TestSynthesizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := holysaw.Synthesize(ctx, expr.EvaluatorService{}, twoCellSong(), holysaw.SynthesizeOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSynthesizeProgress(t *testing.T) {
	var calls []float32
	opts := holysaw.SynthesizeOptions{Progress: func(p float32) { calls = append(calls, p) }}
	synthesize(t, twoCellSong(), opts)
	require.NotEmpty(t, calls)
	assert.Equal(t, float32(0), calls[0])
	assert.Equal(t, float32(1), calls[len(calls)-1])
}

func TestSynthesizeDefaultSong(t *testing.T) {
	res := synthesize(t, holysaw.DefaultSong(), holysaw.SynthesizeOptions{TraceMode: holysaw.TraceOff})
	require.Len(t, res.Samples, 44101)
	assert.Zero(t, res.Recovered)
	for _, v := range res.Samples {
		assert.LessOrEqual(t, v, float32(0.5))
		assert.GreaterOrEqual(t, v, float32(-0.5))
	}
}
