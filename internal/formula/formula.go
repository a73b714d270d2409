// Package formula implements the small expression language used by material
// quantity formulas, selection-rule predicates, and attribute override rules.
//
// Expressions are parsed once at configuration load time into an AST and then
// evaluated per piece against a fixed variable table. Unknown variables are a
// load-time error, not an evaluation-time one.
package formula

import (
	"fmt"
	"math"
	"sort"
)

// Kind identifies the type of a Value.
type Kind int

const (
	KindNumber Kind = iota
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "number"
	}
}

// Value is the result of evaluating an expression.
type Value struct {
	Kind Kind
	Num  float64
	Bool bool
	Str  string
}

// Number wraps a float64 as a Value.
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Bool wraps a bool as a Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// String wraps a string as a Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Env supplies variable values during evaluation.
type Env interface {
	Lookup(name string) (Value, bool)
}

// MapEnv is a simple map-backed Env.
type MapEnv map[string]Value

// Lookup implements Env.
func (m MapEnv) Lookup(name string) (Value, bool) {
	v, ok := m[name]
	return v, ok
}

// Error reports a malformed expression or an invalid runtime result. Both are
// configuration defects: planning for the whole order must abort rather than
// silently skip a material.
type Error struct {
	Src    string // the offending expression source
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("formula %q: %s", e.Src, e.Detail)
}

// Expr is a compiled expression. The zero value is not usable; obtain one via
// Parse or MustParse.
type Expr struct {
	Src  string
	root node
}

// Parse compiles an expression source into an Expr.
func Parse(src string) (*Expr, error) {
	p := newParser(src)
	root, err := p.parse()
	if err != nil {
		return nil, &Error{Src: src, Detail: err.Error()}
	}
	return &Expr{Src: src, root: root}, nil
}

// MustParse is Parse for known-good sources, such as the built-in catalog.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Validate checks that every identifier the expression references is accepted
// by known. It is intended to run at configuration load so that a typo in a
// formula fails the load, not a planning run months later.
func (e *Expr) Validate(known func(name string) bool) error {
	var unknown []string
	seen := map[string]bool{}
	e.root.walk(func(n node) {
		if id, ok := n.(*identNode); ok && !known(id.name) && !seen[id.name] {
			seen[id.name] = true
			unknown = append(unknown, id.name)
		}
	})
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return &Error{Src: e.Src, Detail: fmt.Sprintf("unknown variable(s): %v", unknown)}
}

// Vars returns the sorted set of variable names the expression references.
func (e *Expr) Vars() []string {
	seen := map[string]bool{}
	e.root.walk(func(n node) {
		if id, ok := n.(*identNode); ok {
			seen[id.name] = true
		}
	})
	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// Eval evaluates the expression against env.
func (e *Expr) Eval(env Env) (Value, error) {
	v, err := e.root.eval(env)
	if err != nil {
		return Value{}, &Error{Src: e.Src, Detail: err.Error()}
	}
	return v, nil
}

// EvalBool evaluates a predicate expression. A non-boolean result is an error.
func (e *Expr) EvalBool(env Env) (bool, error) {
	v, err := e.Eval(env)
	if err != nil {
		return false, err
	}
	if v.Kind != KindBool {
		return false, &Error{Src: e.Src, Detail: fmt.Sprintf("expected bool result, got %s", v.Kind)}
	}
	return v.Bool, nil
}

// EvalQuantity evaluates a quantity formula. The result must be a finite,
// non-negative number; anything else is a configuration defect.
func (e *Expr) EvalQuantity(env Env) (float64, error) {
	v, err := e.Eval(env)
	if err != nil {
		return 0, err
	}
	if v.Kind != KindNumber {
		return 0, &Error{Src: e.Src, Detail: fmt.Sprintf("expected numeric result, got %s", v.Kind)}
	}
	if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
		return 0, &Error{Src: e.Src, Detail: "result is not finite"}
	}
	if v.Num < 0 {
		return 0, &Error{Src: e.Src, Detail: fmt.Sprintf("result is negative (%g)", v.Num)}
	}
	return v.Num, nil
}
