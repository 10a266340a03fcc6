package expr_test

import (
	"errors"
	"math"
	"testing"

	"github.com/holysaw/holysaw/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"-2^2", -4},
		{"2^3^2", 512},
		{"2^-1", 0.5},
		{"7 % 3", 1},
		{"-7 % 3", 2},
		{"5 % 0", 5},
		{"1e3 / 4", 250},
		{"0x10", 16},
		{"3 > 2", 1},
		{"3 <= 2", 0},
		{"1 == 1 && 2 != 2", 0},
		{"0 || 5", 1},
		{"not 0", 1},
		{"!3", 0},
		{"1 ? 2 : 3", 2},
		{"0 ? 2 : 0 ? 3 : 4", 4},
		{"1 and 0 or 1", 1},
		{"a = 3; a * 2", 6},
		{"a = b = 4; a + b", 8},
		{"f(p) = p + 1\nf(2)", 3},
		{"min(3, 1, 2) + max(4, 9)", 10},
		{"round(3.14159, 2)", 3.14},
		{"log(8, 2)", 3},
		{"mod(-1, 4)", 3},
		{"clamp(5, -1, 1)", 1},
		{"note(12)", 2},
		{"saw(0)", 0},
		{"tri(0.25)", 1},
		{"square(0.1)", 1},
		{"square(0.6)", -1},
		{"square(0.6, 0.75)", 1},
		{"adsr(0.05, 0.1, 0.1, 0.5, 0.2, 1)", 0.5},
		{"adsr(0.5, 0.1, 0.1, 0.5, 0.2, 1)", 0.5},
		{"adsr(2)", 0},
		{"median(5, 1, 3, 2)", 2.5},
		{"true + false", 1},
		{"# comment only\n1 // trailing\n", 1},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			v, err := expr.New().Evaluate(tt.src)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, v, 1e-12)
		})
	}
}

func TestEvaluateDivisionByZero(t *testing.T) {
	e := expr.New()
	v, err := e.Evaluate("1 / 0")
	require.NoError(t, err)
	assert.True(t, math.IsInf(v, 1))
	v, err = e.Evaluate("0 / 0")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
}

func TestFunctionDefinitionReturnsNaN(t *testing.T) {
	e := expr.New()
	v, err := e.Evaluate("y(x) = x * 2")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
	n, ok := e.Function("y")
	assert.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestFunctionsSeeEnvironmentAtCallTime(t *testing.T) {
	e := expr.New()
	_, err := e.Evaluate("y() = tone * 2")
	require.NoError(t, err)
	e.SetVariable("tone", 440)
	v, err := e.Evaluate("y()")
	require.NoError(t, err)
	assert.Equal(t, 880.0, v)
	_, err = e.Evaluate("tone = 660")
	require.NoError(t, err)
	v, err = e.Evaluate("y()")
	require.NoError(t, err)
	assert.Equal(t, 1320.0, v)
}

func TestParametersShadowGlobals(t *testing.T) {
	e := expr.New()
	_, err := e.Evaluate("x = 100; f(x) = x + 1")
	require.NoError(t, err)
	v, err := e.Evaluate("f(1)")
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
	v, ok := e.Variable("x")
	assert.True(t, ok)
	assert.Equal(t, 100.0, v)
}

func TestSingleNamespace(t *testing.T) {
	e := expr.New()
	_, err := e.Evaluate("y = 0.25")
	require.NoError(t, err)
	_, err = e.Evaluate("y() = 0.5")
	require.NoError(t, err)
	_, ok := e.Variable("y")
	assert.False(t, ok, "defining y() must unbind the variable y")
	_, err = e.Evaluate("y = 1")
	require.NoError(t, err)
	_, ok = e.Function("y")
	assert.False(t, ok, "assigning y must unbind the function y")
	_, err = e.Evaluate("y()")
	assert.ErrorIs(t, err, expr.ErrNotCallable)
}

func TestReset(t *testing.T) {
	e := expr.New()
	_, err := e.Evaluate("a = 1; f() = 2")
	require.NoError(t, err)
	e.Reset()
	_, ok := e.Variable("a")
	assert.False(t, ok)
	_, err = e.Evaluate("f()")
	assert.ErrorIs(t, err, expr.ErrUndefined)
	v, err := e.Evaluate("pi")
	require.NoError(t, err)
	assert.Equal(t, math.Pi, v)
}

func TestRandomIsDeterministicAfterReset(t *testing.T) {
	e := expr.New()
	first := make([]float64, 5)
	for i := range first {
		v, err := e.Evaluate("noise()")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, -1.0)
		assert.Less(t, v, 1.0)
		first[i] = v
	}
	e.Reset()
	for i := range first {
		v, err := e.Evaluate("noise()")
		require.NoError(t, err)
		assert.Equal(t, first[i], v)
	}
	v, err := e.Evaluate("random(10, 20)")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, 10.0)
	assert.Less(t, v, 20.0)
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		src  string
		want error
	}{
		{"nope + 1", expr.ErrUndefined},
		{"nope()", expr.ErrUndefined},
		{"a = 1; a(2)", expr.ErrNotCallable},
		{"pi()", expr.ErrNotCallable},
		{"f() = 1; f + 1", expr.ErrNotValue},
		{"sin + 1", expr.ErrNotValue},
		{"sin(1, 2)", expr.ErrArity},
		{"f(a) = a; f()", expr.ErrArity},
		{"f(n) = f(n + 1); f(0)", expr.ErrRecursion},
		{"pi = 3", expr.ErrReadOnly},
		{"sin(x) = x", expr.ErrReadOnly},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := expr.New().Evaluate(tt.src)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var evalErr *expr.EvalError
			assert.True(t, errors.As(err, &evalErr))
		})
	}
}

func TestRecursionWithBaseCase(t *testing.T) {
	e := expr.New()
	v, err := e.Evaluate("fact(n) = n <= 1 ? 1 : n * fact(n - 1)\nfact(10)")
	require.NoError(t, err)
	assert.Equal(t, 3628800.0, v)
}

func TestStatementsBeforeErrorStayBound(t *testing.T) {
	e := expr.New()
	_, err := e.Evaluate("a = 1; b = nope; c = 3")
	require.Error(t, err)
	v, ok := e.Variable("a")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
	_, ok = e.Variable("c")
	assert.False(t, ok)
}

func TestPitchAndMixHelpers(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"note(12)", 2},
		{"note(-12)", 0.5},
		{"note(11, 100)", 2},
		{"cents(1200)", 2},
		{"cents(-2400)", 0.25},
		{"mix(1, 0)", 0.5},
		{"mix(0.3, 0.3, 0.3)", 0.3},
		{"fm(0.25, 0)", 1},
		{"fm(0, 0.25, 0.25)", 1},
		{"fm(0.25, 0.25, 0)", 1},
	}
	for _, tt := range tests {
		e := expr.New()
		got, err := e.Evaluate(tt.src)
		require.NoError(t, err, tt.src)
		assert.InDelta(t, tt.want, got, 1e-9, tt.src)
	}
}

func TestPhaseAccumulators(t *testing.T) {
	e := expr.New()
	v, err := e.Evaluate("get_phase(1)")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	for i := 0; i < 3; i++ {
		v, err = e.Evaluate("set_phase(1, get_phase(1) + 0.4)")
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.2, v, 1e-9, "phases wrap to [0, 1)")
	v, err = e.Evaluate("get_phase(2)")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v, "accumulators are independent")

	e.Reset()
	v, err = e.Evaluate("get_phase(1)")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	_, err = e.Evaluate("set_phase(1)")
	assert.ErrorIs(t, err, expr.ErrArity)
}
