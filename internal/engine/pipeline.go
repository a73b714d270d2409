package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atelier-stores/matplan/internal/ledger"
	"github.com/atelier-stores/matplan/internal/model"
)

// Pipeline drives a planning run through its state machine:
//
//	Draft -> Verified -> Reserved -> Optimized -> Consumed -> Completed
//
// with a terminal Failed reachable from Draft (configuration or formula
// error) and Verified (insufficient stock). Any failure after Reserved
// releases the reservation and any held remnants before failing, so a
// half-processed order never leaves stock permanently reserved.
type Pipeline struct {
	catalog  *model.Catalog
	inv      *ledger.Ledger
	remnants *ledger.RemnantStore
	log      *zap.Logger
}

// NewPipeline wires a pipeline over a catalog snapshot and the shared
// stores. A nil logger disables logging.
func NewPipeline(catalog *model.Catalog, inv *ledger.Ledger, remnants *ledger.RemnantStore, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{catalog: catalog, inv: inv, remnants: remnants, log: log}
}

// Run executes one planning request synchronously and returns the plan in a
// terminal state. The input pieces are never mutated; a retry after failure
// creates a fresh plan. Cancellation via ctx is honored between stages;
// after the reservation stage it triggers the compensating release.
func (pl *Pipeline) Run(ctx context.Context, orderID string, pieces []model.Piece) *model.ProductionOrderPlan {
	plan := &model.ProductionOrderPlan{
		ID:             uuid.New().String(),
		OrderID:        orderID,
		CatalogVersion: pl.catalog.Version,
		State:          model.StateDraft,
	}
	pl.log.Info("planning started",
		zap.String("order_id", orderID),
		zap.String("plan_id", plan.ID),
		zap.Int("pieces", len(pieces)))

	// Draft -> Verified: derive requirements, then check stock. Shortages
	// abort with the complete list; no reservation is attempted.
	reqs, err := AggregateBOM(pl.catalog, pieces)
	if err != nil {
		return pl.fail(plan, err.Error())
	}
	plan.Requirements = reqs

	if shortages := pl.inv.Verify(reqs); len(shortages) > 0 {
		plan.Shortages = shortages
		return pl.fail(plan, (&ledger.InsufficientStockError{Shortages: shortages}).Error())
	}
	pl.transition(plan, model.StateVerified)

	if err := ctx.Err(); err != nil {
		// Nothing reserved yet: cancellation is a plain stop.
		return pl.fail(plan, err.Error())
	}

	// Verified -> Reserved: all-or-nothing hold across every code.
	reservationID, err := pl.inv.Reserve(reqs)
	if err != nil {
		if ins, ok := err.(*ledger.InsufficientStockError); ok {
			plan.Shortages = ins.Shortages
		}
		return pl.fail(plan, err.Error())
	}
	plan.ReservationID = reservationID
	pl.transition(plan, model.StateReserved)

	// Reserved -> Optimized: cutting plans per optimizable material;
	// non-optimizable requirements pass straight through.
	opt := NewOptimizer(pl.remnants, pl.log)
	actual := make(map[string]decimal.Decimal, len(reqs))
	var heldRemnants []string
	var newRemnants []model.CreatedRemnant

	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return pl.compensate(plan, reservationID, heldRemnants, err.Error())
		}
		if !req.Optimizable() {
			actual[req.Code] = req.TotalQty
			continue
		}
		outcome := opt.Plan(orderID, req)
		plan.CuttingPlans = append(plan.CuttingPlans, outcome.Plan)
		heldRemnants = append(heldRemnants, outcome.ReservedRemnant...)
		newRemnants = append(newRemnants, outcome.NewRemnants...)
		actual[req.Code] = decimal.NewFromInt(int64(outcome.UnitsConsumed))
	}
	plan.NewRemnants = newRemnants
	pl.transition(plan, model.StateOptimized)

	if err := ctx.Err(); err != nil {
		return pl.compensate(plan, reservationID, heldRemnants, err.Error())
	}

	// Optimized -> Consumed: book actual usage (possibly below the hold when
	// remnants covered part of the need), then commit the remnant movements.
	record, err := pl.inv.Consume(reservationID, actual)
	if err != nil {
		return pl.compensate(plan, reservationID, heldRemnants, err.Error())
	}
	plan.Consumption = record.Lines

	for _, id := range heldRemnants {
		if err := pl.remnants.ConsumeRemnant(id); err != nil {
			pl.log.Error("remnant consumption failed after ledger consume",
				zap.String("remnant_id", id), zap.Error(err))
		}
	}
	minByCode := make(map[string]float64, len(reqs))
	for _, req := range reqs {
		minByCode[req.Code] = req.MinRemnant
	}
	for _, r := range newRemnants {
		pl.remnants.Add(r.Code, r.Length, r.Origin, minByCode[r.Code])
	}
	for _, cp := range plan.CuttingPlans {
		for _, unit := range cp.Units {
			if unit.Disposition == model.ResidueWaste && unit.Residual > 0 {
				pl.remnants.Add(cp.Code, unit.Residual, orderID, minByCode[cp.Code])
			}
		}
	}
	pl.transition(plan, model.StateConsumed)

	// Consumed -> Completed: consolidated pick list for the reporting layer.
	plan.PickList = model.BuildPickList(orderID, reqs, plan.CuttingPlans, newRemnants)
	pl.transition(plan, model.StateCompleted)

	pl.log.Info("planning completed",
		zap.String("order_id", orderID),
		zap.String("plan_id", plan.ID),
		zap.Int("materials", len(reqs)))
	return plan
}

func (pl *Pipeline) transition(plan *model.ProductionOrderPlan, to model.PlanState) {
	pl.log.Debug("state transition",
		zap.String("plan_id", plan.ID),
		zap.String("from", string(plan.State)),
		zap.String("to", string(to)))
	plan.State = to
}

func (pl *Pipeline) fail(plan *model.ProductionOrderPlan, reason string) *model.ProductionOrderPlan {
	pl.log.Warn("planning failed",
		zap.String("plan_id", plan.ID),
		zap.String("state", string(plan.State)),
		zap.String("reason", reason))
	plan.State = model.StateFailed
	plan.FailureReason = reason
	return plan
}

// compensate releases the ledger reservation and every held remnant before
// failing a plan that got past the reservation stage.
func (pl *Pipeline) compensate(plan *model.ProductionOrderPlan, reservationID string, heldRemnants []string, reason string) *model.ProductionOrderPlan {
	if err := pl.inv.Release(reservationID); err != nil {
		pl.log.Error("compensating release failed",
			zap.String("reservation_id", reservationID), zap.Error(err))
	}
	for _, id := range heldRemnants {
		if err := pl.remnants.ReleaseRemnant(id); err != nil {
			pl.log.Error("compensating remnant release failed",
				zap.String("remnant_id", id), zap.Error(err))
		}
	}
	return pl.fail(plan, reason)
}
