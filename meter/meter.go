// Package meter measures the level of rendered audio: peak and RMS levels
// per block, a gated loudness over the whole buffer and the 4x oversampled
// true peak.
package meter

import (
	"fmt"
	"math"
	"strings"

	"github.com/holysaw/holysaw"
	"github.com/viterin/vek/vek32"
)

type (
	// Decibel is a level relative to full scale. Silence is reported as
	// Floor rather than -Inf, so levels can be encoded as JSON.
	Decibel float32

	// Level is the level of one block of samples.
	Level struct {
		Peak   float32 `json:"peak"`
		RMS    float32 `json:"rms"`
		PeakDB Decibel `json:"peakDb"`
		RMSDB  Decibel `json:"rmsDb"`
	}

	Weighting int

	biquadState struct {
		x1, x2, y1, y2 float32
	}

	biquadCoeff struct {
		b0, b1, b2, a1, a2 float32
	}

	weighting struct {
		coeffs []biquadCoeff
		offset float32
	}
)

// Floor is the lowest level reported.
const Floor Decibel = -120

const (
	KWeighting Weighting = iota
	AWeighting
	CWeighting
	NoWeighting
)

// gating block of 400 ms, advanced in steps of 100 ms
const (
	stepSamples  = holysaw.SampleRate / 10
	blockSteps   = 4
	absoluteGate = Decibel(-70)
)

var weightingNames = map[string]Weighting{"k": KWeighting, "a": AWeighting, "c": CWeighting, "none": NoWeighting}

// ParseWeighting converts "k", "a", "c" or "none" to a Weighting.
func ParseWeighting(s string) (Weighting, error) {
	if w, ok := weightingNames[strings.ToLower(s)]; ok {
		return w, nil
	}
	return KWeighting, fmt.Errorf("unknown weighting %q (want k, a, c or none)", s)
}

// biquad sections at 44100 Hz
var weightings = map[Weighting]weighting{
	AWeighting: {coeffs: []biquadCoeff{
		{b0: 1, b1: 2, b2: 1, a1: -0.1405360824207108, a2: 0.0049375976155402},
		{b0: 1, b1: -2, b2: 1, a1: -1.8849012174287920, a2: 0.8864214718161675},
		{b0: 1, b1: -2, b2: 1, a1: -1.9941388812663283, a2: 0.9941474694445309},
	}},
	CWeighting: {coeffs: []biquadCoeff{
		{b0: 1, b1: 2, b2: 1, a1: -0.1405360824207108, a2: 0.0049375976155402},
		{b0: 1, b1: -2, b2: 1, a1: -1.9941388812663283, a2: 0.9941474694445309},
	}},
	KWeighting: {coeffs: []biquadCoeff{
		{b0: 1.5308412300503476, b1: -2.6509799951547293, b2: 1.1690790799215869, a1: -1.6636551132560204, a2: 0.7125954280732254},
		{b0: 0.9995600645425144, b1: -1.9991201290850289, b2: 0.9995600645425144, a1: -1.9891696736297957, a2: 0.9891990357870394},
	}, offset: -0.691}, // K-weighting has slightly above unity gain at 1 kHz
	NoWeighting: {},
}

// Measure splits buf into blocks of blockSize samples (the last block may be
// shorter) and returns the level of each.
func Measure(buf holysaw.AudioBuffer, blockSize int) []Level {
	if blockSize <= 0 || len(buf) == 0 {
		return nil
	}
	ret := make([]Level, 0, (len(buf)+blockSize-1)/blockSize)
	tmp := make([]float32, min(blockSize, len(buf)))
	for start := 0; start < len(buf); start += blockSize {
		block := buf[start:min(start+blockSize, len(buf))]
		ret = append(ret, level(block, tmp[:len(block)]))
	}
	return ret
}

// Summary returns the level of the whole buffer.
func Summary(buf holysaw.AudioBuffer) Level {
	if len(buf) == 0 {
		return Level{PeakDB: Floor, RMSDB: Floor}
	}
	return level(buf, make([]float32, len(buf)))
}

func level(block []float32, tmp []float32) Level {
	abs := vek32.Abs_Into(tmp, block)
	peak := vek32.Max(abs)
	sq := vek32.Mul_Into(tmp, block, block)
	rms := float32(math.Sqrt(float64(vek32.Mean(sq))))
	return Level{Peak: peak, RMS: rms, PeakDB: amplitudeToDecibel(peak), RMSDB: amplitudeToDecibel(rms)}
}

// Loudness returns the integrated loudness of buf: the signal is filtered
// with the weighting, its power measured in overlapping 400 ms blocks, and
// the blocks gated first at -70 dB and then 10 dB below the mean of the
// remaining blocks. Buffers shorter than one block are measured as a whole.
func Loudness(buf holysaw.AudioBuffer, w Weighting) Decibel {
	wt := weightings[w]
	if len(buf) == 0 {
		return Floor
	}
	filtered := append([]float32(nil), buf...)
	for _, c := range wt.coeffs {
		var s biquadState
		s.filter(filtered, c)
	}
	vek32.Mul_Inplace(filtered, filtered)
	sq := filtered
	var steps []float32
	for start := 0; start < len(sq); start += stepSamples {
		steps = append(steps, vek32.Mean(sq[start:min(start+stepSamples, len(sq))]))
	}
	var blocks []float32
	if len(steps) < blockSteps {
		blocks = []float32{vek32.Mean(sq)}
	} else {
		for i := 0; i+blockSteps <= len(steps); i++ {
			blocks = append(blocks, vek32.Mean(steps[i:i+blockSteps]))
		}
	}
	absThreshold := loudnessToPower(absoluteGate, wt.offset)
	gated := vek32.Select(blocks, vek32.GtNumber(blocks, absThreshold))
	if len(gated) == 0 {
		return Floor
	}
	relThreshold := vek32.Mean(gated) / 10
	gated = vek32.Select(gated, vek32.GtNumber(gated, relThreshold))
	if len(gated) == 0 {
		return Floor
	}
	return powerToLoudness(vek32.Mean(gated), wt.offset)
}

func (state *biquadState) filter(buffer []float32, coeff biquadCoeff) {
	s := *state
	for i, x := range buffer {
		y := coeff.b0*x + coeff.b1*s.x1 + coeff.b2*s.x2 - coeff.a1*s.y1 - coeff.a2*s.y2
		s.x2, s.x1 = s.x1, x
		s.y2, s.y1 = s.y1, y
		buffer[i] = y
	}
	*state = s
}

func amplitudeToDecibel(a float32) Decibel {
	if a <= 0 {
		return Floor
	}
	return max(Decibel(20*math.Log10(float64(a))), Floor)
}

func powerToLoudness(power, offset float32) Decibel {
	if power <= 0 {
		return Floor
	}
	return max(Decibel(float32(10*math.Log10(float64(power)))+offset), Floor)
}

func loudnessToPower(loudness Decibel, offset float32) float32 {
	return float32(math.Pow(10, (float64(loudness)-float64(offset))/10))
}

func (d Decibel) String() string {
	if d <= Floor {
		return "-inf dB"
	}
	return fmt.Sprintf("%.1f dB", float32(d))
}
