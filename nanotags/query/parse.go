package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/arthur-debert/nanotags/internal/validation"
)

// ParseError reports a malformed filter expression
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid filter at offset %d: %s (in %q)", e.Pos, e.Msg, e.Input)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokField
	tokString
	tokWord
	tokOp
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var (
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?$`)
	timeRe     = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}(\.\d+)?$`)
)

func lex(input string) ([]token, error) {
	var tokens []token
	fail := func(pos int, format string, args ...interface{}) error {
		return &ParseError{Input: input, Pos: pos, Msg: fmt.Sprintf(format, args...)}
	}

	for i := 0; i < len(input); {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case c == '[':
			tokens = append(tokens, token{tokLBracket, "[", i})
			i++
		case c == ']':
			tokens = append(tokens, token{tokRBracket, "]", i})
			i++
		case c == ',':
			tokens = append(tokens, token{tokComma, ",", i})
			i++
		case c == '{':
			end := strings.IndexByte(input[i+1:], '}')
			if end < 0 {
				return nil, fail(i, "unterminated field reference")
			}
			name := input[i+1 : i+1+end]
			if name == "" {
				return nil, fail(i, "empty field reference")
			}
			tokens = append(tokens, token{tokField, name, i})
			i += end + 2
		case c == '"':
			var b strings.Builder
			j := i + 1
			closed := false
			for j < len(input) {
				if input[j] == '\\' && j+1 < len(input) {
					b.WriteByte(input[j+1])
					j += 2
					continue
				}
				if input[j] == '"' {
					closed = true
					break
				}
				b.WriteByte(input[j])
				j++
			}
			if !closed {
				return nil, fail(i, "unterminated string literal")
			}
			tokens = append(tokens, token{tokString, b.String(), i})
			i = j + 1
		case c == '=' || c == '!' || c == '<' || c == '>':
			op := string(c)
			if i+1 < len(input) && input[i+1] == '=' {
				op += "="
			}
			if _, ok := ParseOp(op); !ok {
				return nil, fail(i, "unknown operator %q", op)
			}
			tokens = append(tokens, token{tokOp, op, i})
			i += len(op)
		case isWordByte(c):
			j := i
			for j < len(input) && isWordByte(input[j]) {
				j++
			}
			tokens = append(tokens, token{tokWord, input[i:j], i})
			i = j
		default:
			return nil, fail(i, "unexpected character %q", c)
		}
	}
	tokens = append(tokens, token{tokEOF, "", len(input)})
	return tokens, nil
}

func isWordByte(c byte) bool {
	return c < unicode.MaxASCII && (unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)) ||
		c == '_' || c == '.' || c == ':' || c == '-' || c == '+')
}

type parser struct {
	input  string
	tokens []token
	pos    int
}

// Parse parses a filter expression. An empty or blank input yields a nil
// expression, which matches every document.
func Parse(input string) (Expr, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
	return expr, nil
}

// MustParse is Parse for expressions known to be valid, such as test fixtures
func MustParse(input string) Expr {
	e, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return e
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok token, format string, args ...interface{}) error {
	return &ParseError{Input: p.input, Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) keyword(word string) bool {
	tok := p.peek()
	if tok.kind == tokWord && strings.EqualFold(tok.text, word) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Expr{left}
	for p.keyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	return OrOf(terms...), nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	terms := []Expr{left}
	for p.keyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	return AndOf(terms...), nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.keyword("NOT") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{Expr: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.next()
	switch tok.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ')'")
		}
		return inner, nil
	case tokField:
		return p.parseCondition(tok.text)
	case tokEOF:
		return nil, p.errorf(tok, "unexpected end of expression")
	default:
		return nil, p.errorf(tok, "expected a condition, got %q", tok.text)
	}
}

func (p *parser) parseCondition(field string) (Expr, error) {
	tok := p.next()
	switch {
	case tok.kind == tokOp:
		op, _ := ParseOp(tok.text)
		value, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if value.IsNull() {
			switch op {
			case OpEq:
				return &IsNull{Field: field}, nil
			case OpNe:
				return &NotNull{Field: field}, nil
			}
		}
		return &Compare{Field: field, Op: op, Value: value}, nil
	case tok.kind == tokWord && strings.EqualFold(tok.text, "LIKE"):
		pattern := p.next()
		if pattern.kind != tokString {
			return nil, p.errorf(pattern, "LIKE expects a string pattern")
		}
		return &Like{Field: field, Pattern: pattern.text}, nil
	case tok.kind == tokWord && strings.EqualFold(tok.text, "IN"):
		list, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if list.Kind != KindList {
			return nil, p.errorf(tok, "IN expects a list")
		}
		return &In{Field: field, Values: list.List}, nil
	case tok.kind == tokWord && strings.EqualFold(tok.text, "BETWEEN"):
		list, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if list.Kind != KindList || len(list.List) != 2 {
			return nil, p.errorf(tok, "BETWEEN expects a list of two bounds")
		}
		return &Between{Field: field, Low: list.List[0], High: list.List[1]}, nil
	default:
		return nil, p.errorf(tok, "expected an operator after {%s}, got %q", field, tok.text)
	}
}

func (p *parser) parseLiteral() (Value, error) {
	tok := p.next()
	switch tok.kind {
	case tokString:
		return String(tok.text), nil
	case tokLBracket:
		var items []Value
		if p.peek().kind == tokRBracket {
			p.next()
			return List(items...), nil
		}
		for {
			item, err := p.parseLiteral()
			if err != nil {
				return Null(), err
			}
			items = append(items, item)
			sep := p.next()
			if sep.kind == tokRBracket {
				return List(items...), nil
			}
			if sep.kind != tokComma {
				return Null(), p.errorf(sep, "expected ',' or ']' in list")
			}
		}
	case tokWord:
		v, ok := parseBareWord(tok.text)
		if !ok {
			return Null(), p.errorf(tok, "invalid literal %q", tok.text)
		}
		return v, nil
	default:
		return Null(), p.errorf(tok, "expected a literal, got %q", tok.text)
	}
}

func parseBareWord(word string) (Value, bool) {
	switch strings.ToLower(word) {
	case "null":
		return Null(), true
	case "true":
		return Bool(true), true
	case "false":
		return Bool(false), true
	}
	switch {
	case dateRe.MatchString(word):
		t, err := time.Parse(validation.DateLayout, word)
		return Date(t), err == nil
	case dateTimeRe.MatchString(word):
		t, err := time.Parse(validation.DateTimeLayout, word)
		return DateTime(t), err == nil
	case timeRe.MatchString(word):
		t, err := time.Parse(validation.TimeLayout, word)
		return Time(t), err == nil
	}
	if i, err := strconv.ParseInt(word, 10, 64); err == nil {
		return Int(i), true
	}
	if f, err := strconv.ParseFloat(word, 64); err == nil {
		return Float(f), true
	}
	return Null(), false
}
