// Package parse turns boolean infix expressions into term trees.
//
// Supported syntax:
//   - boolean composition: `a && b`, `a || b`, `!a`, parentheses
//   - comparisons: `status == "active"`, `count != 3`, `owner == null`
//   - calls: `max(a, b)`, `lower(name) == "x"`
//   - literals: double or single quoted strings, numbers, true/false, null/nil
//
// `&&` binds tighter than `||`. Chains of the same operator collapse into one
// node, so `a && b && c` is a single `and` with three children.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-exprender/pkg/term"
)

// ErrEmpty is returned for blank input.
var ErrEmpty = errors.New("parse: empty expression")

// Parse parses input into a tree whose root is always a composite. Inputs
// whose top level is a single operand, a call, or a comparison are wrapped in
// a term.TypeExpr node with one child.
func Parse(input string) (*term.Node, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, ErrEmpty
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, ErrEmpty
	}

	stream := &tokenStream{tokens: tokens}
	node, err := parseOr(stream)
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("parse: unexpected token %q", stream.tokens[stream.pos].raw)
	}

	switch node.Kind {
	case term.TypeAnd, term.TypeOr, term.TypeNot, term.TypeGroup:
		return node, nil
	default:
		return term.New(term.TypeExpr, node), nil
	}
}

// MustParse is Parse for static inputs; it panics on error.
func MustParse(input string) *term.Node {
	node, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return node
}

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
	tokenComma
)

type token struct {
	kind tokenKind
	raw  string
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '!', '=', '&', '|', ',', '"', '\'':
		return true
	}
	return false
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	peek := func() byte {
		if i >= len(input) {
			return 0
		}
		return input[i]
	}

	for i < len(input) {
		ch := input[i]
		switch ch {
		case ' ', '\t', '\n', '\r':
			i++
		case '(':
			i++
			tokens = append(tokens, token{kind: tokenLParen, raw: "("})
		case ')':
			i++
			tokens = append(tokens, token{kind: tokenRParen, raw: ")"})
		case ',':
			i++
			tokens = append(tokens, token{kind: tokenComma, raw: ","})
		case '!':
			i++
			if peek() == '=' {
				i++
				tokens = append(tokens, token{kind: tokenNeq, raw: "!="})
				continue
			}
			tokens = append(tokens, token{kind: tokenNot, raw: "!"})
		case '=':
			i++
			if peek() != '=' {
				return nil, fmt.Errorf("parse: unexpected '=' at %d; use '=='", i-1)
			}
			i++
			tokens = append(tokens, token{kind: tokenEq, raw: "=="})
		case '&':
			i++
			if peek() != '&' {
				return nil, fmt.Errorf("parse: unexpected '&' at %d; use '&&'", i-1)
			}
			i++
			tokens = append(tokens, token{kind: tokenAnd, raw: "&&"})
		case '|':
			i++
			if peek() != '|' {
				return nil, fmt.Errorf("parse: unexpected '|' at %d; use '||'", i-1)
			}
			i++
			tokens = append(tokens, token{kind: tokenOr, raw: "||"})
		case '"', '\'':
			value, next, err := scanString(input, i)
			if err != nil {
				return nil, err
			}
			i = next
			tokens = append(tokens, token{kind: tokenString, raw: value})
		default:
			start := i
			for i < len(input) && !isDelimiter(input[i]) {
				i++
			}
			raw := input[start:i]
			switch strings.ToLower(raw) {
			case "true", "false":
				tokens = append(tokens, token{kind: tokenBool, raw: strings.ToLower(raw)})
			case "null", "nil":
				tokens = append(tokens, token{kind: tokenNull, raw: raw})
			default:
				if looksLikeNumber(raw) {
					if _, err := strconv.ParseFloat(raw, 64); err != nil {
						return nil, fmt.Errorf("parse: invalid number literal %q", raw)
					}
					tokens = append(tokens, token{kind: tokenNumber, raw: raw})
				} else {
					if !term.ValidName(raw) {
						return nil, fmt.Errorf("parse: invalid identifier %q at %d", raw, start)
					}
					tokens = append(tokens, token{kind: tokenIdentifier, raw: raw})
				}
			}
		}
	}

	return tokens, nil
}

// scanString reads a quoted literal starting at input[start] and returns the
// unquoted value plus the index after the closing quote.
func scanString(input string, start int) (string, int, error) {
	quote := input[start]
	escaped := false
	for i := start + 1; i < len(input); i++ {
		c := input[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c != quote {
			continue
		}
		body := input[start+1 : i]
		if quote == '\'' {
			body = singleToDouble(body)
		}
		value, err := strconv.Unquote(`"` + body + `"`)
		if err != nil {
			return "", 0, fmt.Errorf("parse: invalid string literal: %w", err)
		}
		return value, i + 1, nil
	}
	return "", 0, errors.New("parse: unterminated string literal")
}

// singleToDouble rewrites the body of a single-quoted literal so strconv can
// unquote it as a double-quoted one: `\'` loses its backslash and bare `"`
// gains one. Other escapes are kept as written.
func singleToDouble(body string) string {
	var b strings.Builder
	b.Grow(len(body))
	escaped := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case escaped:
			escaped = false
			if c != '\'' {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		case c == '\\':
			escaped = true
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	if escaped {
		b.WriteByte('\\')
	}
	return b.String()
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	ch := raw[0]
	return (ch >= '0' && ch <= '9') || ch == '-' || ch == '+' || ch == '.'
}

type tokenStream struct {
	tokens []token
	pos    int
}

func parseOr(stream *tokenStream) (*term.Node, error) {
	return parseChain(stream, tokenOr, term.TypeOr, parseAnd)
}

func parseAnd(stream *tokenStream) (*term.Node, error) {
	return parseChain(stream, tokenAnd, term.TypeAnd, parseUnary)
}

func parseChain(stream *tokenStream, op tokenKind, kind string, next func(*tokenStream) (*term.Node, error)) (*term.Node, error) {
	first, err := next(stream)
	if err != nil {
		return nil, err
	}
	operands := []*term.Node{first}
	for stream.match(op) {
		operand, err := next(stream)
		if err != nil {
			return nil, err
		}
		operands = append(operands, operand)
	}
	if len(operands) == 1 {
		return first, nil
	}
	return term.New(kind, operands...), nil
}

func parseUnary(stream *tokenStream) (*term.Node, error) {
	if stream.match(tokenNot) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return term.New(term.TypeNot, inner), nil
	}
	return parseComparison(stream)
}

func parseComparison(stream *tokenStream) (*term.Node, error) {
	left, err := parsePrimary(stream)
	if err != nil {
		return nil, err
	}

	var kind string
	switch {
	case stream.match(tokenEq):
		kind = term.TypeEq
	case stream.match(tokenNeq):
		kind = term.TypeNeq
	default:
		return left, nil
	}

	right, err := parsePrimary(stream)
	if err != nil {
		return nil, err
	}
	return term.New(kind, left, right), nil
}

func parsePrimary(stream *tokenStream) (*term.Node, error) {
	if stream.match(tokenLParen) {
		inner, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		if !stream.match(tokenRParen) {
			return nil, errors.New("parse: missing closing ')'")
		}
		return term.New(term.TypeGroup, inner), nil
	}

	tok, ok := stream.next()
	if !ok {
		return nil, errors.New("parse: unexpected end of expression")
	}

	switch tok.kind {
	case tokenIdentifier:
		if stream.match(tokenLParen) {
			return parseCall(stream, tok.raw)
		}
		return term.Var(tok.raw), nil
	case tokenString:
		return term.String(tok.raw), nil
	case tokenNumber:
		return term.Leaf(term.TypeNumber, json.Number(tok.raw)), nil
	case tokenBool:
		return term.Leaf(term.TypeBool, tok.raw == "true"), nil
	case tokenNull:
		return term.Leaf(term.TypeNull, nil), nil
	default:
		return nil, fmt.Errorf("parse: expected operand, got %q", tok.raw)
	}
}

// parseCall reads the argument list after `name(`.
func parseCall(stream *tokenStream, name string) (*term.Node, error) {
	call := &term.Node{Kind: term.TypeCall, Payload: name}
	if stream.match(tokenRParen) {
		return call, nil
	}
	for {
		arg, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		call.Children = append(call.Children, arg)
		if stream.match(tokenComma) {
			continue
		}
		if stream.match(tokenRParen) {
			return call, nil
		}
		return nil, fmt.Errorf("parse: expected ',' or ')' in call to %s", name)
	}
}

func (s *tokenStream) match(kind tokenKind) bool {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return false
	}
	s.pos++
	return true
}

func (s *tokenStream) next() (token, bool) {
	if s.pos >= len(s.tokens) {
		return token{}, false
	}
	out := s.tokens[s.pos]
	s.pos++
	return out, true
}
