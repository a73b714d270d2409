// Package model defines the planning data model: pieces, product families,
// selection rules, material lines, requirements, and the production order
// plan with its consolidated pick list.
package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/atelier-stores/matplan/internal/formula"
)

// AttrValue is one technical attribute of a piece: a bool (motorized,
// rotated, has_gallery...), a number, or an enumerated string (control side,
// installation type).
type AttrValue struct {
	val formula.Value
}

// BoolAttr wraps a bool attribute value.
func BoolAttr(b bool) AttrValue { return AttrValue{val: formula.Bool(b)} }

// NumberAttr wraps a numeric attribute value.
func NumberAttr(f float64) AttrValue { return AttrValue{val: formula.Number(f)} }

// StringAttr wraps an enumerated string attribute value.
func StringAttr(s string) AttrValue { return AttrValue{val: formula.String(s)} }

// Value returns the attribute as a formula value.
func (a AttrValue) Value() formula.Value { return a.val }

// MarshalJSON encodes the attribute as its plain JSON value.
func (a AttrValue) MarshalJSON() ([]byte, error) {
	switch a.val.Kind {
	case formula.KindBool:
		return json.Marshal(a.val.Bool)
	case formula.KindString:
		return json.Marshal(a.val.Str)
	default:
		return json.Marshal(a.val.Num)
	}
}

// UnmarshalJSON decodes a plain JSON bool, number, or string.
func (a *AttrValue) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		a.val = formula.Bool(b)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		a.val = formula.Number(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.val = formula.String(s)
		return nil
	}
	return fmt.Errorf("attribute value %s is not a bool, number, or string", string(data))
}

// Attrs is the attribute set of a piece, keyed by attribute name.
type Attrs map[string]AttrValue

// Clone returns an independent copy of the attribute set.
func (at Attrs) Clone() Attrs {
	out := make(Attrs, len(at))
	for k, v := range at {
		out[k] = v
	}
	return out
}

// Piece is one physical opening to be covered. Dimensions are in metres.
// A piece is immutable once it enters the pipeline; the attribute normalizer
// returns a derived copy rather than mutating it.
type Piece struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Family string  `json:"family"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Attrs  Attrs   `json:"attrs"`
}

// NewPiece creates a piece with a generated ID.
func NewPiece(family string, width, height float64) Piece {
	return Piece{
		ID:     uuid.New().String()[:8],
		Family: family,
		Width:  width,
		Height: height,
		Attrs:  Attrs{},
	}
}

// WithAttr returns a copy of the piece with one attribute set.
func (p Piece) WithAttr(name string, v AttrValue) Piece {
	attrs := p.Attrs.Clone()
	attrs[name] = v
	cp := p
	cp.Attrs = attrs
	return cp
}

// Area returns the piece area in square metres.
func (p Piece) Area() float64 { return p.Width * p.Height }

// Bool reports a boolean attribute; absent or non-bool attributes are false.
func (p Piece) Bool(name string) bool {
	v, ok := p.Attrs[name]
	return ok && v.val.Kind == formula.KindBool && v.val.Bool
}

// pieceEnv exposes a piece to the formula evaluator: width, height, area,
// plus every attribute by name.
type pieceEnv struct {
	piece Piece
}

// Env returns the formula environment for the piece.
func (p Piece) Env() formula.Env { return pieceEnv{piece: p} }

// Lookup implements formula.Env.
func (e pieceEnv) Lookup(name string) (formula.Value, bool) {
	switch name {
	case "width":
		return formula.Number(e.piece.Width), true
	case "height":
		return formula.Number(e.piece.Height), true
	case "area":
		return formula.Number(e.piece.Area()), true
	}
	if v, ok := e.piece.Attrs[name]; ok {
		return v.val, true
	}
	return formula.Value{}, false
}
