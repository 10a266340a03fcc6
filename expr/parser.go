package expr

import (
	"fmt"
)

type (
	// Program is a parsed source: a list of statements evaluated in order.
	Program struct {
		stmts []node
	}

	parser struct {
		src  string
		toks []token
		pos  int
	}
)

// binding powers
const (
	bpNone    = 0
	bpCond    = 10
	bpOr      = 20
	bpAnd     = 30
	bpCompare = 40
	bpSum     = 50
	bpProduct = 60
	bpUnary   = 70
	bpPower   = 80
)

var infixBP = map[string]int{
	"?":  bpCond,
	"||": bpOr, "or": bpOr,
	"&&": bpAnd, "and": bpAnd,
	"==": bpCompare, "!=": bpCompare, "<": bpCompare, "<=": bpCompare, ">": bpCompare, ">=": bpCompare,
	"+": bpSum, "-": bpSum,
	"*": bpProduct, "/": bpProduct, "%": bpProduct,
	"^": bpPower,
}

// Parse parses src into a Program without evaluating it.
func Parse(src string) (*Program, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	prog := &Program{}
	for {
		p.skipSeparators()
		if p.peek().kind == tokEOF {
			return prog, nil
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog.stmts = append(prog.stmts, stmt)
		if t := p.peek(); t.kind != tokSep && t.kind != tokEOF {
			return nil, p.errorf(t, "unexpected %s after statement", describe(t))
		}
	}
}

// Len returns the number of statements in the program.
func (p *Program) Len() int {
	return len(p.stmts)
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) skipSeparators() {
	for p.peek().kind == tokSep {
		p.pos++
	}
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) expect(text string) error {
	if !p.isOp(text) {
		return p.errorf(p.peek(), "expected %q, found %s", text, describe(p.peek()))
	}
	p.next()
	return nil
}

func (p *parser) errorf(t token, format string, args ...any) *ParseError {
	return &ParseError{Offset: t.pos, Msg: fmt.Sprintf(format, args...), Src: p.src}
}

// statement parses an expression, or an assignment when the expression is
// followed by '='. Assignments are right associative: a = b = 1.
func (p *parser) statement() (node, error) {
	start := p.peek()
	lhs, err := p.expression(bpNone)
	if err != nil {
		return nil, err
	}
	if !p.isOp("=") {
		return lhs, nil
	}
	eq := p.next()
	rhs, err := p.statement()
	if err != nil {
		return nil, err
	}
	switch target := lhs.(type) {
	case *identNode:
		return &assignNode{name: target.name, value: rhs}, nil
	case *callNode:
		params := make([]string, len(target.args))
		seen := map[string]bool{}
		for i, a := range target.args {
			id, ok := a.(*identNode)
			if !ok {
				return nil, p.errorf(eq, "parameters of %s must be plain names", target.name)
			}
			if seen[id.name] {
				return nil, p.errorf(eq, "duplicate parameter %s in definition of %s", id.name, target.name)
			}
			seen[id.name] = true
			params[i] = id.name
		}
		return &funcDefNode{name: target.name, params: params, body: rhs}, nil
	}
	return nil, p.errorf(start, "invalid assignment target")
}

func (p *parser) expression(minBP int) (node, error) {
	lhs, err := p.prefix()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		op, ok := infixOp(t)
		if !ok {
			return lhs, nil
		}
		bp := infixBP[op]
		if bp <= minBP {
			return lhs, nil
		}
		p.next()
		switch op {
		case "?":
			then, err := p.expression(bpNone)
			if err != nil {
				return nil, err
			}
			if err := p.expect(":"); err != nil {
				return nil, err
			}
			els, err := p.expression(bpCond - 1) // right associative
			if err != nil {
				return nil, err
			}
			lhs = &condNode{cond: lhs, then: then, els: els}
		case "^":
			rhs, err := p.expression(bpPower - 1) // right associative
			if err != nil {
				return nil, err
			}
			lhs = &binaryNode{op: op, l: lhs, r: rhs}
		case "||", "or", "&&", "and":
			rhs, err := p.expression(bp)
			if err != nil {
				return nil, err
			}
			lhs = &logicalNode{and: op == "&&" || op == "and", l: lhs, r: rhs}
		default:
			rhs, err := p.expression(bp)
			if err != nil {
				return nil, err
			}
			lhs = &binaryNode{op: op, l: lhs, r: rhs}
		}
	}
}

func infixOp(t token) (string, bool) {
	switch t.kind {
	case tokOp:
		_, ok := infixBP[t.text]
		return t.text, ok
	case tokIdent:
		if t.text == "and" || t.text == "or" {
			return t.text, true
		}
	}
	return "", false
}

func (p *parser) prefix() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &numberNode{value: t.num}, nil
	case tokIdent:
		switch t.text {
		case "not":
			x, err := p.expression(bpUnary)
			if err != nil {
				return nil, err
			}
			return &unaryNode{op: "!", x: x}, nil
		case "and", "or":
			return nil, p.errorf(t, "unexpected operator %s", t.text)
		}
		if !p.isOp("(") {
			return &identNode{name: t.text}, nil
		}
		p.next()
		var args []node
		if !p.isOp(")") {
			for {
				a, err := p.expression(bpNone)
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if !p.isOp(",") {
					break
				}
				p.next()
			}
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return &callNode{name: t.text, args: args}, nil
	case tokOp:
		switch t.text {
		case "(":
			x, err := p.expression(bpNone)
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		case "-", "+", "!":
			x, err := p.expression(bpUnary)
			if err != nil {
				return nil, err
			}
			return &unaryNode{op: t.text, x: x}, nil
		}
	}
	return nil, p.errorf(t, "unexpected %s", describe(t))
}

func describe(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokSep:
		if t.text == "\n" {
			return "newline"
		}
		return "';'"
	case tokNumber:
		return "number " + t.text
	case tokIdent:
		return "name " + t.text
	}
	return fmt.Sprintf("%q", t.text)
}
