package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/atelier-stores/matplan/internal/ledger"
	"github.com/atelier-stores/matplan/internal/model"
)

// CutTooLongError reports a required cut no standard unit can yield. A
// configuration or order-entry defect; planning aborts.
type CutTooLongError struct {
	Code        string
	PieceID     string
	Cut         float64
	StockLength float64
}

func (e *CutTooLongError) Error() string {
	return fmt.Sprintf("material %s: piece %s needs a %.3f m cut, longer than the %.2f m standard unit",
		e.Code, e.PieceID, e.Cut, e.StockLength)
}

// Optimizer computes cutting plans for optimizable material requirements.
//
// Cutting stock is NP-hard; this is deliberately a heuristic, not an exact
// solver. Remnants are tried first via best-fit, then the remaining cuts are
// packed into standard units with first-fit-decreasing, which stays within a
// small, well-understood factor of optimal.
type Optimizer struct {
	remnants *ledger.RemnantStore
	log      *zap.Logger
}

// NewOptimizer creates an optimizer drawing remnants from the given store.
// A nil logger disables logging.
func NewOptimizer(remnants *ledger.RemnantStore, log *zap.Logger) *Optimizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Optimizer{remnants: remnants, log: log}
}

// Outcome is the optimizer result for one material requirement. Reserved
// remnants and new remnants are not committed to the store here; the
// pipeline commits them at consumption time (or releases them on failure).
type Outcome struct {
	Plan            model.CuttingPlan
	NewRemnants     []model.CreatedRemnant
	ReservedRemnant []string // remnant IDs held for this plan
	UnitsConsumed   int      // standard units to book against the ledger
}

// Plan packs a requirement's cut multiset, reusing remnants first.
func (o *Optimizer) Plan(orderID string, req model.MaterialRequirement) Outcome {
	// CutLengths arrive sorted descending from aggregation; keep a copy so
	// the requirement stays untouched.
	cuts := make([]float64, len(req.CutLengths))
	copy(cuts, req.CutLengths)

	out := Outcome{Plan: model.CuttingPlan{Code: req.Code, StockLength: req.StockLength}}

	// Remnant pass: serve individual cuts from the smallest sufficient
	// leftover, largest cuts first so big cuts get first pick of the pool.
	remaining := cuts[:0]
	for _, cut := range cuts {
		r, ok := o.remnants.ReserveBestFit(req.Code, cut+req.Kerf)
		if !ok {
			remaining = append(remaining, cut)
			continue
		}
		out.ReservedRemnant = append(out.ReservedRemnant, r.ID)
		unit := model.CutUnit{
			Source:    model.SourceRemnant,
			RemnantID: r.ID,
			Length:    r.Length,
			Cuts:      []float64{cut},
		}
		o.closeUnit(&unit, r.Length-cut-req.Kerf, req, orderID, &out)
		out.Plan.Units = append(out.Plan.Units, unit)
		out.Plan.RemnantsUsed++
	}

	// Standard pass: first-fit-decreasing into nominal-length units.
	for _, bin := range packStandard(remaining, req.StockLength, req.Kerf) {
		unit := model.CutUnit{
			Source: model.SourceStandard,
			Length: req.StockLength,
			Cuts:   bin.cuts,
		}
		o.closeUnit(&unit, req.StockLength-bin.used, req, orderID, &out)
		out.Plan.Units = append(out.Plan.Units, unit)
		out.Plan.UnitsOpened++
	}

	out.UnitsConsumed = out.Plan.UnitsOpened
	o.log.Debug("cutting plan computed",
		zap.String("code", req.Code),
		zap.Int("cuts", len(cuts)),
		zap.Int("units_opened", out.Plan.UnitsOpened),
		zap.Int("remnants_used", out.Plan.RemnantsUsed),
		zap.Float64("waste", out.Plan.Waste))
	return out
}

// closeUnit settles a unit's residual: above the reusable threshold it
// becomes a new remnant, otherwise waste.
func (o *Optimizer) closeUnit(unit *model.CutUnit, residual float64, req model.MaterialRequirement, orderID string, out *Outcome) {
	if residual < 0 {
		residual = 0
	}
	unit.Residual = residual
	if residual > req.MinRemnant {
		unit.Disposition = model.ResidueRemnant
		out.NewRemnants = append(out.NewRemnants, model.CreatedRemnant{
			Code:   req.Code,
			Length: residual,
			Origin: orderID,
		})
		return
	}
	unit.Disposition = model.ResidueWaste
	out.Plan.Waste += residual
}

// bin is one standard unit being filled.
type bin struct {
	cuts []float64
	used float64
}

// packStandard packs cuts (sorted descending) into standard units of length
// stock using first-fit-decreasing. Every cut consumes its length plus the
// kerf margin.
func packStandard(cuts []float64, stock, kerf float64) []*bin {
	var bins []*bin
	for _, cut := range cuts {
		need := cut + kerf
		placed := false
		for _, b := range bins {
			if b.used+need <= stock {
				b.cuts = append(b.cuts, cut)
				b.used += need
				placed = true
				break
			}
		}
		if !placed {
			bins = append(bins, &bin{cuts: []float64{cut}, used: need})
		}
	}
	return bins
}
