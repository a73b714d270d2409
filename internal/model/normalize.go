package model

import (
	"github.com/atelier-stores/matplan/internal/formula"
)

// NormalizePiece resolves a piece's attribute set for downstream evaluation:
// declared defaults are filled in, required attributes are checked, and the
// family's override rules are applied in declaration order.
//
// Application is sequential, not simultaneous: each override evaluates
// against the piece as modified by the overrides before it. A predicate that
// does not match is a no-op. The input piece is never mutated; the returned
// copy is what the formula evaluator and BOM aggregation must use.
func NormalizePiece(f *ProductFamily, p Piece) (Piece, error) {
	out := p
	out.Attrs = p.Attrs.Clone()

	for _, spec := range f.Attributes {
		if _, ok := out.Attrs[spec.Name]; ok {
			continue
		}
		if spec.Default != nil {
			out.Attrs[spec.Name] = *spec.Default
			continue
		}
		if spec.Required {
			return Piece{}, &MissingAttributeError{Family: f.ID, PieceID: p.ID, Attr: spec.Name}
		}
	}

	for _, rule := range f.Overrides {
		match, err := rule.When.EvalBool(out.Env())
		if err != nil {
			return Piece{}, err
		}
		if !match {
			continue
		}
		v, err := rule.To.Eval(out.Env())
		if err != nil {
			return Piece{}, err
		}
		out.Attrs[rule.Set] = AttrValue{val: v}
	}

	return out, nil
}

// AttrOf adapts a raw formula value into an AttrValue. Used by loaders that
// compile default values from configuration sources.
func AttrOf(v formula.Value) AttrValue { return AttrValue{val: v} }
