package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// node is a compiled AST node.
type node interface {
	eval(env Env) (Value, error)
	walk(fn func(node))
}

type numberNode struct{ val float64 }

func (n *numberNode) eval(Env) (Value, error) { return Number(n.val), nil }
func (n *numberNode) walk(fn func(node))      { fn(n) }

type boolNode struct{ val bool }

func (n *boolNode) eval(Env) (Value, error) { return Bool(n.val), nil }
func (n *boolNode) walk(fn func(node))      { fn(n) }

type stringNode struct{ val string }

func (n *stringNode) eval(Env) (Value, error) { return String(n.val), nil }
func (n *stringNode) walk(fn func(node))      { fn(n) }

type identNode struct{ name string }

func (n *identNode) eval(env Env) (Value, error) {
	v, ok := env.Lookup(n.name)
	if !ok {
		return Value{}, fmt.Errorf("unknown variable %q", n.name)
	}
	return v, nil
}
func (n *identNode) walk(fn func(node)) { fn(n) }

type unaryNode struct {
	op    string // "!" or "-"
	child node
}

func (n *unaryNode) eval(env Env) (Value, error) {
	v, err := n.child.eval(env)
	if err != nil {
		return Value{}, err
	}
	switch n.op {
	case "!":
		if v.Kind != KindBool {
			return Value{}, fmt.Errorf("operator ! requires a bool, got %s", v.Kind)
		}
		return Bool(!v.Bool), nil
	default: // "-"
		if v.Kind != KindNumber {
			return Value{}, fmt.Errorf("unary - requires a number, got %s", v.Kind)
		}
		return Number(-v.Num), nil
	}
}
func (n *unaryNode) walk(fn func(node)) { fn(n); n.child.walk(fn) }

type binaryNode struct {
	op          string
	left, right node
}

func (n *binaryNode) eval(env Env) (Value, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return Value{}, err
	}

	// Short-circuit boolean connectives.
	switch n.op {
	case "&&", "||":
		if l.Kind != KindBool {
			return Value{}, fmt.Errorf("operator %s requires bools", n.op)
		}
		if n.op == "&&" && !l.Bool {
			return Bool(false), nil
		}
		if n.op == "||" && l.Bool {
			return Bool(true), nil
		}
		r, err := n.right.eval(env)
		if err != nil {
			return Value{}, err
		}
		if r.Kind != KindBool {
			return Value{}, fmt.Errorf("operator %s requires bools", n.op)
		}
		return Bool(r.Bool), nil
	}

	r, err := n.right.eval(env)
	if err != nil {
		return Value{}, err
	}

	switch n.op {
	case "==", "!=":
		if l.Kind != r.Kind {
			return Value{}, fmt.Errorf("operator %s on mismatched types %s and %s", n.op, l.Kind, r.Kind)
		}
		eq := l == r
		if n.op == "!=" {
			eq = !eq
		}
		return Bool(eq), nil
	}

	if l.Kind != KindNumber || r.Kind != KindNumber {
		return Value{}, fmt.Errorf("operator %s requires numbers, got %s and %s", n.op, l.Kind, r.Kind)
	}
	switch n.op {
	case "+":
		return Number(l.Num + r.Num), nil
	case "-":
		return Number(l.Num - r.Num), nil
	case "*":
		return Number(l.Num * r.Num), nil
	case "/":
		if r.Num == 0 {
			return Value{}, fmt.Errorf("division by zero")
		}
		return Number(l.Num / r.Num), nil
	case "<":
		return Bool(l.Num < r.Num), nil
	case "<=":
		return Bool(l.Num <= r.Num), nil
	case ">":
		return Bool(l.Num > r.Num), nil
	case ">=":
		return Bool(l.Num >= r.Num), nil
	}
	return Value{}, fmt.Errorf("unsupported operator %q", n.op)
}
func (n *binaryNode) walk(fn func(node)) { fn(n); n.left.walk(fn); n.right.walk(fn) }

type ternaryNode struct {
	cond, then, els node
}

func (n *ternaryNode) eval(env Env) (Value, error) {
	c, err := n.cond.eval(env)
	if err != nil {
		return Value{}, err
	}
	if c.Kind != KindBool {
		return Value{}, fmt.Errorf("ternary condition must be a bool, got %s", c.Kind)
	}
	if c.Bool {
		return n.then.eval(env)
	}
	return n.els.eval(env)
}
func (n *ternaryNode) walk(fn func(node)) { fn(n); n.cond.walk(fn); n.then.walk(fn); n.els.walk(fn) }

type callNode struct {
	name string
	args []node
}

func (n *callNode) eval(env Env) (Value, error) {
	vals := make([]float64, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(env)
		if err != nil {
			return Value{}, err
		}
		if v.Kind != KindNumber {
			return Value{}, fmt.Errorf("%s() requires numeric arguments", n.name)
		}
		vals[i] = v.Num
	}
	return builtins[n.name].apply(vals), nil
}
func (n *callNode) walk(fn func(node)) {
	fn(n)
	for _, a := range n.args {
		a.walk(fn)
	}
}

// builtin describes a callable function of the expression language.
type builtin struct {
	minArgs int
	maxArgs int // -1 = unbounded
	apply   func(args []float64) Value
}

var builtins = map[string]builtin{
	"ceil":  {1, 1, func(a []float64) Value { return Number(math.Ceil(a[0])) }},
	"floor": {1, 1, func(a []float64) Value { return Number(math.Floor(a[0])) }},
	"round": {1, 1, func(a []float64) Value { return Number(math.Round(a[0])) }},
	"abs":   {1, 1, func(a []float64) Value { return Number(math.Abs(a[0])) }},
	"min": {2, -1, func(a []float64) Value {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return Number(m)
	}},
	"max": {2, -1, func(a []float64) Value {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return Number(m)
	}},
}

// token kinds for the lexer.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokString
	tokOp    // + - * / < <= > >= == != && || ! ? :
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

type parser struct {
	src    string
	tokens []token
	idx    int
}

func newParser(src string) *parser {
	return &parser{src: src}
}

func (p *parser) parse() (node, error) {
	if err := p.lex(); err != nil {
		return nil, err
	}
	n, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at offset %d", t.text, t.pos)
	}
	return n, nil
}

// lex tokenizes the whole source up front.
func (p *parser) lex() error {
	src := p.src
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			num, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return fmt.Errorf("invalid number %q at offset %d", src[start:i], start)
			}
			p.tokens = append(p.tokens, token{kind: tokNumber, text: src[start:i], num: num, pos: start})
		case isIdentStart(rune(c)):
			start := i
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			p.tokens = append(p.tokens, token{kind: tokIdent, text: src[start:i], pos: start})
		case c == '\'' || c == '"':
			quote := c
			i++
			start := i
			for i < len(src) && src[i] != quote {
				i++
			}
			if i >= len(src) {
				return fmt.Errorf("unterminated string at offset %d", start-1)
			}
			p.tokens = append(p.tokens, token{kind: tokString, text: src[start:i], pos: start})
			i++
		case c == '(':
			p.tokens = append(p.tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			p.tokens = append(p.tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			p.tokens = append(p.tokens, token{kind: tokComma, text: ",", pos: i})
			i++
		default:
			op, width := scanOperator(src[i:])
			if op == "" {
				return fmt.Errorf("unexpected character %q at offset %d", string(c), i)
			}
			p.tokens = append(p.tokens, token{kind: tokOp, text: op, pos: i})
			i += width
		}
	}
	p.tokens = append(p.tokens, token{kind: tokEOF, pos: len(src)})
	return nil
}

// scanOperator matches the longest operator at the start of s.
func scanOperator(s string) (string, int) {
	for _, op := range []string{"<=", ">=", "==", "!=", "&&", "||"} {
		if strings.HasPrefix(s, op) {
			return op, 2
		}
	}
	if strings.ContainsAny(s[:1], "+-*/<>!?:") {
		return s[:1], 1
	}
	return "", 0
}

func isIdentStart(r rune) bool { return unicode.IsLetter(r) || r == '_' }
func isIdentPart(r rune) bool  { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }

func (p *parser) peek() token { return p.tokens[p.idx] }

func (p *parser) next() token {
	t := p.tokens[p.idx]
	if t.kind != tokEOF {
		p.idx++
	}
	return t
}

func (p *parser) acceptOp(op string) bool {
	if t := p.peek(); t.kind == tokOp && t.text == op {
		p.idx++
		return true
	}
	return false
}

// Grammar, lowest precedence first:
//
//	ternary    = or [ "?" ternary ":" ternary ]
//	or         = and { "||" and }
//	and        = equality { "&&" equality }
//	equality   = comparison { ("=="|"!=") comparison }
//	comparison = term { ("<"|"<="|">"|">=") term }
//	term       = factor { ("+"|"-") factor }
//	factor     = unary { ("*"|"/") unary }
//	unary      = ("!"|"-") unary | primary
//	primary    = number | string | "true" | "false" | ident | ident "(" args ")" | "(" ternary ")"
func (p *parser) parseTernary() (node, error) {
	cond, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if !p.acceptOp("?") {
		return cond, nil
	}
	then, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if !p.acceptOp(":") {
		return nil, fmt.Errorf("expected ':' in ternary at offset %d", p.peek().pos)
	}
	els, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return &ternaryNode{cond: cond, then: then, els: els}, nil
}

// binaryLevels orders binary operators from lowest to highest precedence.
var binaryLevels = [][]string{
	{"||"},
	{"&&"},
	{"==", "!="},
	{"<", "<=", ">", ">="},
	{"+", "-"},
	{"*", "/"},
}

func (p *parser) parseBinary(level int) (node, error) {
	if level >= len(binaryLevels) {
		return p.parseUnary()
	}
	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		matched := false
		for _, op := range binaryLevels[level] {
			if p.acceptOp(op) {
				right, err := p.parseBinary(level + 1)
				if err != nil {
					return nil, err
				}
				left = &binaryNode{op: op, left: left, right: right}
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.acceptOp("!") {
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: "!", child: child}, nil
	}
	if p.acceptOp("-") {
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: "-", child: child}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &numberNode{val: t.num}, nil
	case tokString:
		return &stringNode{val: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return &boolNode{val: true}, nil
		case "false":
			return &boolNode{val: false}, nil
		}
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		return &identNode{name: t.text}, nil
	case tokLParen:
		inner, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, fmt.Errorf("missing ')' at offset %d", t.pos)
		}
		return inner, nil
	default:
		return nil, fmt.Errorf("unexpected %q at offset %d", t.text, t.pos)
	}
}

func (p *parser) parseCall(name token) (node, error) {
	fn, ok := builtins[name.text]
	if !ok {
		return nil, fmt.Errorf("unknown function %q at offset %d", name.text, name.pos)
	}
	p.next() // consume '('
	var args []node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind == tokComma {
				p.next()
				continue
			}
			break
		}
	}
	if p.next().kind != tokRParen {
		return nil, fmt.Errorf("missing ')' after %s arguments", name.text)
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, fmt.Errorf("%s() called with %d argument(s)", name.text, len(args))
	}
	return &callNode{name: name.text, args: args}, nil
}
