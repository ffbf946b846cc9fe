// Package mathexpr evaluates arithmetic expressions over a fixed whitelist of
// operators, functions and constants. Nothing in an expression can reach
// code outside this package.
package mathexpr

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// MaxLength bounds the accepted expression size.
const MaxLength = 512

// maxDepth bounds nesting so hostile input cannot exhaust the stack.
const maxDepth = 64

// ErrSyntax is wrapped by every parse failure.
var ErrSyntax = errors.New("syntax error")

type function struct {
	minArgs, maxArgs int
	fn               func(args []float64) float64
}

func unary(f func(float64) float64) function {
	return function{1, 1, func(a []float64) float64 { return f(a[0]) }}
}

var functions = map[string]function{
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"round": unary(math.Round),
	"exp":   unary(math.Exp),
	"ln":    unary(math.Log),
	"log":   {1, 2, logN},
	"log10": unary(math.Log10),
	"log2":  unary(math.Log2),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"pow":   {2, 2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"min":   {1, -1, minOf},
	"max":   {1, -1, maxOf},
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// log(x) is the natural log; log(x, b) uses base b.
func logN(a []float64) float64 {
	if len(a) == 2 {
		return math.Log(a[0]) / math.Log(a[1])
	}
	return math.Log(a[0])
}

func minOf(a []float64) float64 {
	m := a[0]
	for _, v := range a[1:] {
		m = math.Min(m, v)
	}
	return m
}

func maxOf(a []float64) float64 {
	m := a[0]
	for _, v := range a[1:] {
		m = math.Max(m, v)
	}
	return m
}

// Functions lists the whitelisted function names.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Eval parses and evaluates expr.
//
// Grammar, loosest binding first:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/" | "%") unary }
//	unary   = ("+" | "-") unary | power
//	power   = primary [ ("^" | "**") unary ]
//	primary = number | constant | name "(" expr { "," expr } ")" | "(" expr ")"
//
// Power is right-associative and binds tighter than a leading minus, so
// -2^2 is -4.
func Eval(expr string) (float64, error) {
	if strings.TrimSpace(expr) == "" {
		return 0, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	if len(expr) > MaxLength {
		return 0, fmt.Errorf("%w: expression longer than %d characters", ErrSyntax, MaxLength)
	}

	toks, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	p := &parser{toks: toks}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return 0, fmt.Errorf("%w: unexpected %q at position %d", ErrSyntax, tok.text, tok.pos)
	}
	if math.IsNaN(v) {
		return 0, errors.New("result is not a number")
	}
	if math.IsInf(v, 0) {
		return 0, errors.New("result is infinite")
	}
	return v, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case unicode.IsDigit(c) || c == '.':
			start := i
			for i < len(s) && (unicode.IsDigit(rune(s[i])) || s[i] == '.') {
				i++
			}
			// Exponent part, e.g. 1e-3.
			if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
				j := i + 1
				if j < len(s) && (s[j] == '+' || s[j] == '-') {
					j++
				}
				if j < len(s) && unicode.IsDigit(rune(s[j])) {
					i = j
					for i < len(s) && unicode.IsDigit(rune(s[i])) {
						i++
					}
				}
			}
			text := s[start:i]
			n, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q at position %d", ErrSyntax, text, start)
			}
			toks = append(toks, token{kind: tokNum, text: text, num: n, pos: start})
		case unicode.IsLetter(c) || c == '_':
			start := i
			for i < len(s) && (unicode.IsLetter(rune(s[i])) || unicode.IsDigit(rune(s[i])) || s[i] == '_') {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: strings.ToLower(s[start:i]), pos: start})
		case c == '*' && i+1 < len(s) && s[i+1] == '*':
			toks = append(toks, token{kind: tokOp, text: "^", pos: i})
			i += 2
		case strings.ContainsRune("+-*/%^", c):
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		default:
			return nil, fmt.Errorf("%w: unsupported character %q at position %d", ErrSyntax, c, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(s)}), nil
}

type parser struct {
	toks  []token
	pos   int
	depth int
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

func (p *parser) isOp(ops ...string) bool {
	t := p.peek()
	if t.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if t.text == op {
			return true
		}
	}
	return false
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return fmt.Errorf("%w: expression nested too deeply", ErrSyntax)
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) expr() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for p.isOp("+", "-") {
		op := p.next().text
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
	return left, nil
}

func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for p.isOp("*", "/", "%") {
		op := p.next()
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op.text {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, errors.New("division by zero")
			}
			left /= right
		case "%":
			if right == 0 {
				return 0, errors.New("modulo by zero")
			}
			left = math.Mod(left, right)
		}
	}
	return left, nil
}

func (p *parser) unary() (float64, error) {
	if p.isOp("+", "-") {
		if err := p.enter(); err != nil {
			return 0, err
		}
		defer p.leave()

		op := p.next().text
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == "-" {
			return -v, nil
		}
		return v, nil
	}
	return p.power()
}

func (p *parser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if !p.isOp("^") {
		return base, nil
	}
	p.next()
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *parser) primary() (float64, error) {
	tok := p.next()
	switch tok.kind {
	case tokNum:
		return tok.num, nil
	case tokLParen:
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.next().kind != tokRParen {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrSyntax)
		}
		return v, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.call(tok)
		}
		if v, ok := constants[tok.text]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("%w: unknown name %q", ErrSyntax, tok.text)
	case tokEOF:
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	default:
		return 0, fmt.Errorf("%w: unexpected %q at position %d", ErrSyntax, tok.text, tok.pos)
	}
}

func (p *parser) call(name token) (float64, error) {
	fn, ok := functions[name.text]
	if !ok {
		return 0, fmt.Errorf("%w: function %q is not allowed", ErrSyntax, name.text)
	}
	p.next() // (

	var args []float64
	if p.peek().kind != tokRParen {
		for {
			v, err := p.expr()
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if p.next().kind != tokRParen {
		return 0, fmt.Errorf("%w: missing closing parenthesis after %s arguments", ErrSyntax, name.text)
	}

	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return 0, fmt.Errorf("%s: wrong number of arguments (%d)", name.text, len(args))
	}
	return fn.fn(args), nil
}
