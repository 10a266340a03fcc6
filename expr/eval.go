package expr

import (
	"math/rand/v2"

	"github.com/holysaw/holysaw"
)

type (
	// Evaluator holds one mutable environment of variables and user
	// functions. Builtins live outside the environment and survive Reset.
	//
	// An Evaluator is not safe for concurrent use; create one per
	// synthesis run.
	Evaluator struct {
		vars  map[string]float64
		funcs map[string]*userFunc
		frame map[string]float64 // parameters of the function being called
		depth int
		rng   *rand.Rand
		cache map[string]*Program
		// phase accumulators of get_phase and set_phase, by numeric id
		phases map[float64]float64
	}

	// EvaluatorService creates fresh evaluators for the synthesis engine.
	EvaluatorService struct{}

	userFunc struct {
		params []string
		body   node
	}
)

// MaxDepth is the deepest nesting of user function calls.
const MaxDepth = 256

const (
	maxCached = 4096
	seed1     = 0x4f4c_5953_4157
	seed2     = 0x6578_7072
)

var _ holysaw.EvaluatorService = EvaluatorService{}

func (EvaluatorService) NewEvaluator() holysaw.Evaluator {
	return New()
}

// New returns an evaluator with an empty environment.
func New() *Evaluator {
	e := &Evaluator{cache: map[string]*Program{}}
	e.Reset()
	return e
}

// Reset discards all variables, user functions and phase accumulators and
// reseeds the random number generator.
func (e *Evaluator) Reset() {
	e.vars = map[string]float64{}
	e.funcs = map[string]*userFunc{}
	e.frame = nil
	e.depth = 0
	e.phases = map[float64]float64{}
	e.rng = rand.New(rand.NewPCG(seed1, seed2))
}

// Evaluate parses src, runs its statements in order against the environment
// and returns the value of the last one. An empty source evaluates to 0.
func (e *Evaluator) Evaluate(src string) (float64, error) {
	prog, err := e.parse(src)
	if err != nil {
		return 0, err
	}
	return e.Run(prog)
}

// Run evaluates an already parsed program.
func (e *Evaluator) Run(prog *Program) (float64, error) {
	var ret float64
	for _, s := range prog.stmts {
		v, err := s.eval(e)
		if err != nil {
			return 0, err
		}
		ret = v
	}
	return ret, nil
}

// Variable returns the value of a numeric variable in the environment.
// Builtin constants and functions are not reported.
func (e *Evaluator) Variable(name string) (float64, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// SetVariable binds name to value, replacing a user function of the same
// name. Builtin names are left untouched.
func (e *Evaluator) SetVariable(name string, value float64) {
	_ = e.bindVariable(name, value)
}

// Function reports whether a user function is bound under name, and its
// number of parameters.
func (e *Evaluator) Function(name string) (int, bool) {
	f, ok := e.funcs[name]
	if !ok {
		return 0, false
	}
	return len(f.params), true
}

func (e *Evaluator) parse(src string) (*Program, error) {
	if p, ok := e.cache[src]; ok {
		return p, nil
	}
	p, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(e.cache) >= maxCached {
		clear(e.cache)
	}
	e.cache[src] = p
	return p, nil
}

func (e *Evaluator) bindVariable(name string, v float64) error {
	if isBuiltin(name) {
		return evalErrorf(name, ErrReadOnly, "%s is a builtin", name)
	}
	delete(e.funcs, name)
	e.vars[name] = v
	return nil
}

func (e *Evaluator) bindFunction(name string, f *userFunc) error {
	if isBuiltin(name) {
		return evalErrorf(name, ErrReadOnly, "%s is a builtin", name)
	}
	delete(e.vars, name)
	e.funcs[name] = f
	return nil
}

func (e *Evaluator) lookup(name string) (float64, error) {
	if v, ok := e.frame[name]; ok {
		return v, nil
	}
	if v, ok := constants[name]; ok {
		return v, nil
	}
	if v, ok := e.vars[name]; ok {
		return v, nil
	}
	if _, ok := e.funcs[name]; ok {
		return 0, evalErrorf(name, ErrNotValue, "call it as %s()", name)
	}
	if _, ok := builtins[name]; ok {
		return 0, evalErrorf(name, ErrNotValue, "call it as %s()", name)
	}
	return 0, evalErrorf(name, ErrUndefined, "%s is not defined", name)
}

func (e *Evaluator) call(name string, argNodes []node) (float64, error) {
	args := make([]float64, len(argNodes))
	for i, a := range argNodes {
		v, err := a.eval(e)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	if b, ok := builtins[name]; ok {
		if len(args) < b.minArgs || (b.maxArgs >= 0 && len(args) > b.maxArgs) {
			return 0, evalErrorf(name, ErrArity, "%s takes %s, got %d", name, b.arity(), len(args))
		}
		return b.fn(e, args), nil
	}
	f, ok := e.funcs[name]
	if !ok {
		if _, isVar := e.frame[name]; isVar {
			return 0, evalErrorf(name, ErrNotCallable, "%s is a parameter", name)
		}
		if _, isVar := e.vars[name]; isVar {
			return 0, evalErrorf(name, ErrNotCallable, "%s is a variable", name)
		}
		if _, isConst := constants[name]; isConst {
			return 0, evalErrorf(name, ErrNotCallable, "%s is a constant", name)
		}
		return 0, evalErrorf(name, ErrUndefined, "function %s is not defined", name)
	}
	if len(args) != len(f.params) {
		return 0, evalErrorf(name, ErrArity, "%s takes %d arguments, got %d", name, len(f.params), len(args))
	}
	if e.depth >= MaxDepth {
		return 0, evalErrorf(name, ErrRecursion, "in %s", name)
	}
	frame := make(map[string]float64, len(args))
	for i, p := range f.params {
		frame[p] = args[i]
	}
	saved := e.frame
	e.frame = frame
	e.depth++
	v, err := f.body.eval(e)
	e.depth--
	e.frame = saved
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (e *Evaluator) random() float64 {
	return e.rng.Float64()
}

func isBuiltin(name string) bool {
	if _, ok := constants[name]; ok {
		return true
	}
	_, ok := builtins[name]
	return ok
}
