package expr

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokSep // ';' or newline
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int // byte offset in the source
}

// two-character operators, keyed by their first character
var twoCharOps = map[rune]rune{
	'=': '=',
	'!': '=',
	'<': '=',
	'>': '=',
	'&': '&',
	'|': '|',
}

const singleOps = "+-*/%^()=,?:<>!"

// tokenize splits src into tokens. Newlines are kept as statement
// separators; '#' starts a comment running to the end of the line, as do
// '//' comments, and '/* */' blocks are skipped.
func tokenize(src string) ([]token, error) {
	var s scanner.Scanner
	s.Init(strings.NewReader(src))
	s.Mode = scanner.ScanIdents | scanner.ScanFloats | scanner.ScanComments | scanner.SkipComments
	s.Whitespace = 1<<'\t' | 1<<'\r' | 1<<' '
	var scanErr *ParseError
	s.Error = func(s *scanner.Scanner, msg string) {
		if scanErr == nil {
			scanErr = &ParseError{Offset: s.Pos().Offset, Msg: msg, Src: src}
		}
	}
	var ret []token
	for tok := s.Scan(); tok != scanner.EOF; tok = s.Scan() {
		if scanErr != nil {
			return nil, scanErr
		}
		pos := s.Position.Offset
		switch tok {
		case scanner.Ident:
			ret = append(ret, token{kind: tokIdent, text: s.TokenText(), pos: pos})
		case scanner.Int, scanner.Float:
			text := s.TokenText()
			n, err := parseNumber(text)
			if err != nil {
				return nil, &ParseError{Offset: pos, Msg: fmt.Sprintf("malformed number %q", text), Src: src}
			}
			ret = append(ret, token{kind: tokNumber, text: text, num: n, pos: pos})
		case '\n', ';':
			ret = append(ret, token{kind: tokSep, text: string(tok), pos: pos})
		case '#':
			for ch := s.Peek(); ch != '\n' && ch != scanner.EOF; ch = s.Peek() {
				s.Next()
			}
		default:
			if second, ok := twoCharOps[tok]; ok && s.Peek() == second {
				s.Next()
				ret = append(ret, token{kind: tokOp, text: string([]rune{tok, second}), pos: pos})
				continue
			}
			if !strings.ContainsRune(singleOps, tok) {
				return nil, &ParseError{Offset: pos, Msg: fmt.Sprintf("unexpected character %q", tok), Src: src}
			}
			ret = append(ret, token{kind: tokOp, text: string(tok), pos: pos})
		}
	}
	if scanErr != nil {
		return nil, scanErr
	}
	ret = append(ret, token{kind: tokEOF, pos: len(src)})
	return ret, nil
}

func parseNumber(text string) (float64, error) {
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return n, nil
	}
	// hexadecimal, octal and binary integer literals
	i, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return 0, err
	}
	return float64(i), nil
}
