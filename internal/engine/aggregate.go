// Package engine runs a planning request end to end: BOM aggregation over
// the rule catalog, cutting-stock optimization against stock and remnants,
// and the production order pipeline tying both to the inventory ledger.
package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atelier-stores/matplan/internal/formula"
	"github.com/atelier-stores/matplan/internal/model"
)

// lineEnv wraps a normalized piece's environment with the variables the
// engine injects per material line. cut_across is true when the piece is
// rotated and short enough to be cut across the roll width.
type lineEnv struct {
	piece formula.Env
	line  model.MaterialLine
	rotOK bool
}

func newLineEnv(piece model.Piece, line model.MaterialLine) lineEnv {
	return lineEnv{
		piece: piece.Env(),
		line:  line,
		rotOK: piece.Bool("rotated") && line.MaxRotationHeight > 0 && piece.Height <= line.MaxRotationHeight,
	}
}

// Lookup implements formula.Env.
func (e lineEnv) Lookup(name string) (formula.Value, bool) {
	if name == "cut_across" {
		return formula.Bool(e.rotOK), true
	}
	return e.piece.Lookup(name)
}

// evaluateLine computes the quantity a material line requires for one
// normalized piece. The first alternate whose condition holds wins; with no
// match the default formula applies; with no default either, the line does
// not apply to this piece (applies=false) — e.g. a manual-only chain on a
// motorized piece.
func evaluateLine(line model.MaterialLine, piece model.Piece) (qty float64, applies bool, err error) {
	env := newLineEnv(piece, line)
	for _, alt := range line.Alternates {
		match, err := alt.When.EvalBool(env)
		if err != nil {
			return 0, false, err
		}
		if match {
			q, err := alt.Formula.EvalQuantity(env)
			return q, true, err
		}
	}
	if line.Default == nil {
		return 0, false, nil
	}
	q, err := line.Default.EvalQuantity(env)
	return q, true, err
}

// AggregateBOM derives the material requirements for an order: every piece
// is normalized, component codes are resolved through the family's selection
// tables, every material line is evaluated, and the results are grouped by
// material code.
//
// Optimizable materials keep the full multiset of cut lengths (sorted
// descending); non-optimizable ones sum to a single quantity. The output is
// sorted by code and independent of piece order.
//
// Any formula error aborts the whole order: a silently skipped material
// would mean an unbuildable piece.
func AggregateBOM(cat *model.Catalog, pieces []model.Piece) ([]model.MaterialRequirement, error) {
	byCode := map[string]*model.MaterialRequirement{}

	for _, piece := range pieces {
		family, err := cat.Family(piece.Family)
		if err != nil {
			return nil, err
		}
		norm, err := model.NormalizePiece(family, piece)
		if err != nil {
			return nil, err
		}

		for _, line := range family.Lines {
			code, desc := line.Code, line.Description
			if line.SelectionGroup != "" {
				rule, err := family.ResolveComponent(line.SelectionGroup, norm)
				if err != nil {
					return nil, err
				}
				code, desc = rule.Code, rule.Description
			}

			qty, applies, err := evaluateLine(line, norm)
			if err != nil {
				return nil, err
			}
			if !applies {
				continue
			}

			req, ok := byCode[code]
			if !ok {
				req = &model.MaterialRequirement{
					Code:        code,
					Description: desc,
					Type:        line.Type,
					Unit:        line.Unit,
					StockLength: line.StockLength,
					Kerf:        line.Kerf,
					MinRemnant:  line.MinRemnant,
				}
				byCode[code] = req
			}
			req.TotalQty = req.TotalQty.Add(decimal.NewFromFloat(qty))
			if line.Optimizable() {
				if qty+line.Kerf > line.StockLength {
					return nil, &CutTooLongError{Code: code, PieceID: piece.ID, Cut: qty, StockLength: line.StockLength}
				}
				req.CutLengths = append(req.CutLengths, qty)
			}
		}
	}

	reqs := make([]model.MaterialRequirement, 0, len(byCode))
	for _, req := range byCode {
		if req.Optimizable() {
			sort.Sort(sort.Reverse(sort.Float64Slice(req.CutLengths)))
			// Reservation estimate: a remnant-free packing of the multiset.
			req.StockUnits = len(packStandard(req.CutLengths, req.StockLength, req.Kerf))
		}
		reqs = append(reqs, *req)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].Code < reqs[j].Code })
	return reqs, nil
}
