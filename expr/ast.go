package expr

import (
	"fmt"
	"math"
)

type (
	node interface {
		eval(e *Evaluator) (float64, error)
	}

	numberNode struct {
		value float64
	}

	identNode struct {
		name string
	}

	unaryNode struct {
		op string
		x  node
	}

	binaryNode struct {
		op   string
		l, r node
	}

	// logicalNode short-circuits: the right operand is only evaluated when
	// the left one does not decide the result.
	logicalNode struct {
		and  bool
		l, r node
	}

	condNode struct {
		cond, then, els node
	}

	callNode struct {
		name string
		args []node
	}

	assignNode struct {
		name  string
		value node
	}

	funcDefNode struct {
		name   string
		params []string
		body   node
	}
)

func (n *numberNode) eval(*Evaluator) (float64, error) {
	return n.value, nil
}

func (n *identNode) eval(e *Evaluator) (float64, error) {
	return e.lookup(n.name)
}

func (n *unaryNode) eval(e *Evaluator) (float64, error) {
	x, err := n.x.eval(e)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "-":
		return -x, nil
	case "!":
		return boolean(!truthy(x)), nil
	}
	return x, nil
}

func (n *binaryNode) eval(e *Evaluator) (float64, error) {
	l, err := n.l.eval(e)
	if err != nil {
		return 0, err
	}
	r, err := n.r.eval(e)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		return l / r, nil
	case "%":
		return floorMod(l, r), nil
	case "^":
		return math.Pow(l, r), nil
	case "==":
		return boolean(l == r), nil
	case "!=":
		return boolean(l != r), nil
	case "<":
		return boolean(l < r), nil
	case "<=":
		return boolean(l <= r), nil
	case ">":
		return boolean(l > r), nil
	case ">=":
		return boolean(l >= r), nil
	}
	return 0, &EvalError{Err: fmt.Errorf("unknown operator %q", n.op)}
}

func (n *logicalNode) eval(e *Evaluator) (float64, error) {
	l, err := n.l.eval(e)
	if err != nil {
		return 0, err
	}
	if n.and != truthy(l) {
		// false and _, true or _
		return boolean(!n.and), nil
	}
	r, err := n.r.eval(e)
	if err != nil {
		return 0, err
	}
	return boolean(truthy(r)), nil
}

func (n *condNode) eval(e *Evaluator) (float64, error) {
	c, err := n.cond.eval(e)
	if err != nil {
		return 0, err
	}
	if truthy(c) {
		return n.then.eval(e)
	}
	return n.els.eval(e)
}

func (n *callNode) eval(e *Evaluator) (float64, error) {
	return e.call(n.name, n.args)
}

func (n *assignNode) eval(e *Evaluator) (float64, error) {
	v, err := n.value.eval(e)
	if err != nil {
		return 0, err
	}
	if err := e.bindVariable(n.name, v); err != nil {
		return 0, err
	}
	return v, nil
}

func (n *funcDefNode) eval(e *Evaluator) (float64, error) {
	if err := e.bindFunction(n.name, &userFunc{params: n.params, body: n.body}); err != nil {
		return 0, err
	}
	return math.NaN(), nil
}

// truthy treats zero and NaN as false.
func truthy(v float64) bool {
	return v != 0 && !math.IsNaN(v)
}

func boolean(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// floorMod is the modulo with the sign of the divisor; x mod 0 is x.
func floorMod(x, y float64) float64 {
	if y == 0 {
		return x
	}
	return x - y*math.Floor(x/y)
}
