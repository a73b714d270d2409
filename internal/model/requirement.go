package model

import (
	"github.com/shopspring/decimal"
)

// MaterialRequirement is the aggregated need for one material code across
// every piece of an order.
//
// For optimizable materials the individual cut lengths are retained as a
// multiset (sorted descending): the cutting optimizer needs the lengths, not
// their sum. Non-optimizable materials carry only the total quantity.
type MaterialRequirement struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Type        MaterialType    `json:"type"`
	Unit        Unit            `json:"unit"`
	TotalQty    decimal.Decimal `json:"total_qty"`
	CutLengths  []float64       `json:"cut_lengths,omitempty"`

	// Optimizer parameters carried over from the material line.
	StockLength float64 `json:"stock_length,omitempty"`
	Kerf        float64 `json:"kerf,omitempty"`
	MinRemnant  float64 `json:"min_remnant,omitempty"`

	// StockUnits is the number of standard bars/rolls a remnant-free packing
	// of the cut multiset needs. It is what gets reserved for optimizable
	// materials; the remnant-aware optimization can only use less.
	StockUnits int `json:"stock_units,omitempty"`
}

// Optimizable reports whether the requirement goes through the optimizer.
func (r MaterialRequirement) Optimizable() bool { return r.StockLength > 0 }

// ReserveUnit is the unit reservations are held in: whole bars/rolls for
// optimizable materials, the line's own unit otherwise.
func (r MaterialRequirement) ReserveUnit() Unit {
	if r.Optimizable() {
		return UnitBar
	}
	return r.Unit
}

// ReserveQty is the quantity to verify and reserve against the ledger.
func (r MaterialRequirement) ReserveQty() decimal.Decimal {
	if r.Optimizable() {
		return decimal.NewFromInt(int64(r.StockUnits))
	}
	return r.TotalQty
}
