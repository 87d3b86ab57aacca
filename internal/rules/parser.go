package rules

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse compiles a rule body into an Expr.
//
// Grammar:
//
//	expr       := or
//	or         := and { "or" and }
//	and        := unary { "and" unary }
//	unary      := [ "not" ] primary
//	primary    := "(" expr ")" | condition
//	condition  := column op literal
//	            | column "in" "(" literal { "," literal } ")"
//	            | column "between" number "and" number
//	op         := "==" | "!=" | "<" | "<=" | ">" | ">="
//	literal    := number | 'string' | "string"
func Parse(body string) (Expr, error) {
	toks, err := lex(body)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("unexpected %q after expression", p.peek().text)
	}
	return expr, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokOp // comparison operators
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func lex(body string) ([]token, error) {
	var toks []token
	runes := []rune(body)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case r == ',':
			toks = append(toks, token{kind: tokComma, text: ","})
			i++
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string starting at position %d", i)
			}
			toks = append(toks, token{kind: tokString, text: string(runes[i+1 : j])})
			i = j + 1
		case strings.ContainsRune("=!<>", r):
			op := string(r)
			if i+1 < len(runes) && runes[i+1] == '=' {
				op += "="
				i++
			}
			i++
			switch op {
			case "=":
				op = "==" // accept single = as equality
			case "!", ">", "<", "==", "!=", ">=", "<=":
			}
			if op == "!" {
				return nil, fmt.Errorf("stray '!' at position %d", i-1)
			}
			toks = append(toks, token{kind: tokOp, text: op})
		case unicode.IsDigit(r) || r == '-' || r == '.':
			j := i
			if runes[j] == '-' {
				j++
			}
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			text := string(runes[i:j])
			num, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q", text)
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: num})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", r, i)
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

// keywordIs reports whether the current token is the given keyword
// (case-insensitive identifier).
func (p *parser) keywordIs(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keywordIs("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.keywordIs("and") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.keywordIs("not") {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	if p.peek().kind == tokLParen {
		p.next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("missing ')'")
		}
		p.next()
		return expr, nil
	}
	return p.parseCondition()
}

func (p *parser) parseCondition() (Expr, error) {
	t := p.next()
	if t.kind != tokIdent {
		return nil, fmt.Errorf("expected column name, got %q", t.text)
	}
	column := t.text

	switch {
	case p.keywordIs("in"):
		p.next()
		return p.parseIn(column)
	case p.keywordIs("between"):
		p.next()
		return p.parseBetween(column)
	}

	op := p.next()
	if op.kind != tokOp {
		return nil, fmt.Errorf("expected operator after %q, got %q", column, op.text)
	}
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if lit.IsStr && op.text != "==" && op.text != "!=" {
		return nil, fmt.Errorf("operator %q not allowed for string literal in condition on %q", op.text, column)
	}
	return &compareExpr{column: column, op: op.text, lit: lit}, nil
}

func (p *parser) parseIn(column string) (Expr, error) {
	if p.peek().kind != tokLParen {
		return nil, fmt.Errorf("expected '(' after 'in' for %q", column)
	}
	p.next()
	var items []Value
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		items = append(items, lit)
		t := p.next()
		if t.kind == tokRParen {
			break
		}
		if t.kind != tokComma {
			return nil, fmt.Errorf("expected ',' or ')' in membership list for %q, got %q", column, t.text)
		}
	}
	return &inExpr{column: column, items: items}, nil
}

func (p *parser) parseBetween(column string) (Expr, error) {
	lo := p.next()
	if lo.kind != tokNumber {
		return nil, fmt.Errorf("expected number after 'between' for %q", column)
	}
	if !p.keywordIs("and") {
		return nil, fmt.Errorf("expected 'and' in range condition on %q", column)
	}
	p.next()
	hi := p.next()
	if hi.kind != tokNumber {
		return nil, fmt.Errorf("expected upper bound number in range condition on %q", column)
	}
	if hi.num < lo.num {
		return nil, fmt.Errorf("empty range %g..%g on %q", lo.num, hi.num, column)
	}
	return &betweenExpr{column: column, lo: lo.num, hi: hi.num}, nil
}

func (p *parser) parseLiteral() (Value, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return Value{Num: t.num}, nil
	case tokString:
		return Value{Str: t.text, IsStr: true}, nil
	default:
		return Value{}, fmt.Errorf("expected literal, got %q", t.text)
	}
}
