package expr

import (
	"fmt"
	"math"
	"sort"
)

type builtin struct {
	minArgs, maxArgs int // maxArgs < 0: variadic
	fn               func(e *Evaluator, args []float64) float64
}

func (b builtin) arity() string {
	switch {
	case b.maxArgs < 0:
		return fmt.Sprintf("at least %d arguments", b.minArgs)
	case b.minArgs == b.maxArgs:
		return fmt.Sprintf("%d arguments", b.minArgs)
	}
	return fmt.Sprintf("%d to %d arguments", b.minArgs, b.maxArgs)
}

var constants = map[string]float64{
	"pi":       math.Pi,
	"e":        math.E,
	"tau":      2 * math.Pi,
	"phi":      math.Phi,
	"SQRT2":    math.Sqrt2,
	"LN2":      math.Ln2,
	"LN10":     math.Ln10,
	"Infinity": math.Inf(1),
	"NaN":      math.NaN(),
	"true":     1,
	"false":    0,
}

func unary(f func(float64) float64) builtin {
	return builtin{1, 1, func(_ *Evaluator, a []float64) float64 { return f(a[0]) }}
}

func binary(f func(float64, float64) float64) builtin {
	return builtin{2, 2, func(_ *Evaluator, a []float64) float64 { return f(a[0], a[1]) }}
}

var builtins = map[string]builtin{
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"asin":  unary(math.Asin),
	"acos":  unary(math.Acos),
	"atan":  unary(math.Atan),
	"atan2": binary(math.Atan2),
	"sinh":  unary(math.Sinh),
	"cosh":  unary(math.Cosh),
	"tanh":  unary(math.Tanh),
	"sqrt":  unary(math.Sqrt),
	"cbrt":  unary(math.Cbrt),
	"abs":   unary(math.Abs),
	"sign":  unary(sign),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"fix":   unary(math.Trunc),
	"exp":   unary(math.Exp),
	"log2":  unary(math.Log2),
	"log10": unary(math.Log10),
	"pow":   binary(math.Pow),
	"mod":   binary(floorMod),
	"hypot": binary(math.Hypot),
	"saw":   unary(saw),
	"tri":   unary(tri),
	"cents": unary(func(c float64) float64 { return math.Pow(2, c/1200) }),
	// note(semitones from A4, cents): frequency ratio to A4
	"note": {1, 2, func(_ *Evaluator, a []float64) float64 {
		n := a[0]
		if len(a) == 2 {
			n += a[1] / 100
		}
		return math.Pow(2, n/12)
	}},
	// fm(carrier, modulator, depth): sine carrier phase modulated by a sine
	"fm": {2, 3, func(_ *Evaluator, a []float64) float64 {
		depth := 1.0
		if len(a) == 3 {
			depth = a[2]
		}
		return math.Sin(2 * math.Pi * (a[0] + depth*math.Sin(2*math.Pi*a[1])))
	}},
	"mix": {1, -1, func(_ *Evaluator, a []float64) float64 {
		sum := 0.0
		for _, v := range a {
			sum += v
		}
		return sum / float64(len(a))
	}},
	"get_phase": {1, 1, func(e *Evaluator, a []float64) float64 {
		return e.phases[a[0]]
	}},
	// set_phase(id, value) stores value wrapped to [0, 1) and returns it
	"set_phase": {2, 2, func(e *Evaluator, a []float64) float64 {
		p := frac(a[1])
		e.phases[a[0]] = p
		return p
	}},
	"round": {1, 2, func(_ *Evaluator, a []float64) float64 {
		if len(a) == 1 {
			return math.Round(a[0])
		}
		p := math.Pow(10, math.Trunc(a[1]))
		return math.Round(a[0]*p) / p
	}},
	"log": {1, 2, func(_ *Evaluator, a []float64) float64 {
		if len(a) == 1 {
			return math.Log(a[0])
		}
		return math.Log(a[0]) / math.Log(a[1])
	}},
	"min": {1, -1, func(_ *Evaluator, a []float64) float64 {
		ret := a[0]
		for _, v := range a[1:] {
			ret = math.Min(ret, v)
		}
		return ret
	}},
	"max": {1, -1, func(_ *Evaluator, a []float64) float64 {
		ret := a[0]
		for _, v := range a[1:] {
			ret = math.Max(ret, v)
		}
		return ret
	}},
	"median": {1, -1, func(_ *Evaluator, a []float64) float64 {
		s := append([]float64(nil), a...)
		sort.Float64s(s)
		if len(s)%2 == 1 {
			return s[len(s)/2]
		}
		return (s[len(s)/2-1] + s[len(s)/2]) / 2
	}},
	"clamp": {3, 3, func(_ *Evaluator, a []float64) float64 {
		return math.Max(a[1], math.Min(a[2], a[0]))
	}},
	"lerp": {3, 3, func(_ *Evaluator, a []float64) float64 {
		return a[0] + (a[1]-a[0])*a[2]
	}},
	"square": {1, 2, func(_ *Evaluator, a []float64) float64 {
		duty := 0.5
		if len(a) == 2 {
			duty = a[1]
		}
		if frac(a[0]) < duty {
			return 1
		}
		return -1
	}},
	"random": {0, 2, func(e *Evaluator, a []float64) float64 {
		r := e.random()
		switch len(a) {
		case 1:
			return r * a[0]
		case 2:
			return a[0] + r*(a[1]-a[0])
		}
		return r
	}},
	"noise": {0, 0, func(e *Evaluator, _ []float64) float64 {
		return e.random()*2 - 1
	}},
	// adsr(t, attack, decay, sustain, release, gate): envelope level at t
	// seconds for a note held until gate.
	"adsr": {1, 6, func(_ *Evaluator, a []float64) float64 {
		p := [6]float64{0, 0.1, 0.1, 0.7, 0.2, 1}
		copy(p[:], a)
		return adsr(p[0], p[1], p[2], p[3], p[4], p[5])
	}},
}

// frac returns the fractional part of x in [0, 1), also for negative x.
func frac(x float64) float64 {
	return x - math.Floor(x)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return x // keeps 0, -0 and NaN
}

// saw rises from -1 to 1 over each period, crossing zero at integer phases.
func saw(p float64) float64 {
	return 2*frac(p+0.5) - 1
}

// tri is a triangle wave with period 1, 0 at p = 0 and 1 at p = 0.25.
func tri(p float64) float64 {
	return 1 - 4*math.Abs(frac(p+0.25)-0.5)
}

func adsr(t, a, d, s, r, gate float64) float64 {
	switch {
	case t < 0:
		return 0
	case t < a:
		return t / a
	case t < a+d:
		return 1 - (1-s)*(t-a)/d
	case t < gate:
		return s
	case t < gate+r:
		return s * (1 - (t-gate)/r)
	}
	return 0
}
