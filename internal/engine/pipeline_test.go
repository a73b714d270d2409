package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-stores/matplan/internal/ledger"
	"github.com/atelier-stores/matplan/internal/model"
)

// stockedForRollerShades fills the ledger with comfortable stock for every
// material the roller shade family can resolve to.
func stockedForRollerShades(inv *ledger.Ledger) {
	ten := decimal.NewFromInt(10)
	hundred := decimal.NewFromInt(100)
	inv.SetStock("RS-TUBE-38", model.UnitBar, ten, decimal.Zero)
	inv.SetStock("RS-TUBE-45", model.UnitBar, ten, decimal.Zero)
	inv.SetStock("RS-TUBE-65", model.UnitBar, ten, decimal.Zero)
	inv.SetStock("RS-FAB-SCREEN", model.UnitBar, ten, decimal.Zero)
	inv.SetStock("RS-CW-BAR", model.UnitBar, ten, decimal.Zero)
	inv.SetStock("RS-CHAIN", model.UnitLinearMeter, hundred, decimal.Zero)
	inv.SetStock("RS-MEC-STD", model.UnitKit, ten, decimal.Zero)
	inv.SetStock("RS-MEC-HD", model.UnitKit, ten, decimal.Zero)
	inv.SetStock("RS-MOT-45", model.UnitKit, ten, decimal.Zero)
	inv.SetStock("RS-BRACKET", model.UnitPiece, hundred, decimal.Zero)
}

func TestPipelineRunCompletes(t *testing.T) {
	inv := ledger.NewLedger(nil)
	stockedForRollerShades(inv)
	remnants := ledger.NewRemnantStore(nil)
	pl := NewPipeline(model.DefaultCatalog(), inv, remnants, nil)

	pieces := []model.Piece{
		model.NewPiece("roller-shade", 2.80, 2.00),
		model.NewPiece("roller-shade", 2.20, 1.80),
	}
	plan := pl.Run(context.Background(), "ORD-100", pieces)

	require.Equal(t, model.StateCompleted, plan.State, "reason: %s", plan.FailureReason)
	assert.Equal(t, "ORD-100", plan.OrderID)
	assert.Equal(t, "builtin-1", plan.CatalogVersion)
	assert.NotEmpty(t, plan.ReservationID)
	assert.Empty(t, plan.Shortages)

	// Both tube cuts share one 5.80 m bar: 2.795 + 2.195 + two kerfs uses
	// exactly 5.00 m and the 0.80 m residue is reusable.
	var tubePlan *model.CuttingPlan
	for i := range plan.CuttingPlans {
		if plan.CuttingPlans[i].Code == "RS-TUBE-45" {
			tubePlan = &plan.CuttingPlans[i]
		}
	}
	require.NotNil(t, tubePlan)
	assert.Equal(t, 1, tubePlan.UnitsOpened)
	require.Len(t, tubePlan.Units, 1)
	assert.InDelta(t, 0.80, tubePlan.Units[0].Residual, 1e-9)
	assert.Equal(t, model.ResidueRemnant, tubePlan.Units[0].Disposition)

	// The residue was committed to the remnant store.
	tubeRemnants := remnants.Available("RS-TUBE-45")
	require.Len(t, tubeRemnants, 1)
	assert.InDelta(t, 0.80, tubeRemnants[0].Length, 1e-9)
	assert.Equal(t, "ORD-100", tubeRemnants[0].Origin)

	// Consumption booked one tube bar; nothing stays reserved.
	item, ok := inv.Item("RS-TUBE-45")
	require.True(t, ok)
	assert.True(t, item.OnHand.Equal(decimal.NewFromInt(9)), "on hand %s", item.OnHand)
	assert.True(t, item.Reserved.IsZero())

	require.NotNil(t, plan.PickList)
	assert.Equal(t, "ORD-100", plan.PickList.OrderID)
	assert.NotEmpty(t, plan.PickList.Sections)
}

func TestPipelineRunReusesRemnants(t *testing.T) {
	inv := ledger.NewLedger(nil)
	stockedForRollerShades(inv)
	remnants := ledger.NewRemnantStore(nil)
	remnants.Add("RS-TUBE-45", 2.50, "ORD-99", 0.50)
	pl := NewPipeline(model.DefaultCatalog(), inv, remnants, nil)

	piece := model.NewPiece("roller-shade", 2.40, 2.00)
	plan := pl.Run(context.Background(), "ORD-101", []model.Piece{piece})

	require.Equal(t, model.StateCompleted, plan.State, "reason: %s", plan.FailureReason)

	// The tube cut came off the remnant: no bar consumed for it.
	item, ok := inv.Item("RS-TUBE-45")
	require.True(t, ok)
	assert.True(t, item.OnHand.Equal(decimal.NewFromInt(10)), "on hand %s", item.OnHand)
	assert.True(t, item.Reserved.IsZero())

	// The remnant moved to used and left the pool.
	assert.Empty(t, remnants.Available("RS-TUBE-45"))
	for _, line := range plan.Consumption {
		if line.Code == "RS-TUBE-45" {
			assert.True(t, line.Quantity.IsZero())
			assert.True(t, line.Released.Equal(decimal.NewFromInt(1)), "hold returned")
		}
	}
}

func TestPipelineRunFailsOnShortageWithFullList(t *testing.T) {
	inv := ledger.NewLedger(nil) // nothing stocked
	pl := NewPipeline(model.DefaultCatalog(), inv, ledger.NewRemnantStore(nil), nil)

	piece := model.NewPiece("roller-shade", 2.40, 2.00)
	plan := pl.Run(context.Background(), "ORD-102", []model.Piece{piece})

	require.Equal(t, model.StateFailed, plan.State)
	assert.Empty(t, plan.ReservationID, "no reservation on shortage")
	// One shortage per missing material, not just the first.
	require.Len(t, plan.Shortages, 6)
	for i := 1; i < len(plan.Shortages); i++ {
		assert.Less(t, plan.Shortages[i-1].Code, plan.Shortages[i].Code)
	}
}

func TestPipelineRunFailsOnFormulaError(t *testing.T) {
	inv := ledger.NewLedger(nil)
	stockedForRollerShades(inv)
	pl := NewPipeline(model.DefaultCatalog(), inv, ledger.NewRemnantStore(nil), nil)

	piece := model.NewPiece("awning", 3.00, 2.50) // projection missing
	plan := pl.Run(context.Background(), "ORD-103", []model.Piece{piece})

	require.Equal(t, model.StateFailed, plan.State)
	assert.Contains(t, plan.FailureReason, "projection")
	assert.Empty(t, plan.ReservationID)
}

// cancelAfter yields nil from Err for a fixed number of calls, then reports
// cancellation. It lets a test land the cancel between specific stages.
type cancelAfter struct {
	context.Context
	remaining int
}

func (c *cancelAfter) Err() error {
	if c.remaining > 0 {
		c.remaining--
		return nil
	}
	return context.Canceled
}

func TestPipelineRunCancelBeforeReserveLeavesNoHold(t *testing.T) {
	inv := ledger.NewLedger(nil)
	stockedForRollerShades(inv)
	pl := NewPipeline(model.DefaultCatalog(), inv, ledger.NewRemnantStore(nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	piece := model.NewPiece("roller-shade", 2.40, 2.00)
	plan := pl.Run(ctx, "ORD-104", []model.Piece{piece})

	require.Equal(t, model.StateFailed, plan.State)
	assert.Empty(t, plan.ReservationID)
	item, _ := inv.Item("RS-TUBE-45")
	assert.True(t, item.Reserved.IsZero())
}

func TestPipelineRunCancelAfterReserveReleasesEverything(t *testing.T) {
	inv := ledger.NewLedger(nil)
	stockedForRollerShades(inv)
	remnants := ledger.NewRemnantStore(nil)
	remnants.Add("RS-TUBE-45", 2.50, "ORD-99", 0.50)
	pl := NewPipeline(model.DefaultCatalog(), inv, remnants, nil)

	// First Err check passes (post-verify); the next one, inside the
	// optimization loop, reports the cancel.
	ctx := &cancelAfter{Context: context.Background(), remaining: 1}
	piece := model.NewPiece("roller-shade", 2.40, 2.00)
	plan := pl.Run(ctx, "ORD-105", []model.Piece{piece})

	require.Equal(t, model.StateFailed, plan.State)
	assert.Contains(t, plan.FailureReason, "canceled")

	// The compensating release returned the hold and any reserved remnants.
	for _, item := range inv.Items() {
		assert.True(t, item.Reserved.IsZero(), "%s still reserved", item.Code)
		assert.True(t, item.OnHand.Equal(decimal.NewFromInt(10)) ||
			item.OnHand.Equal(decimal.NewFromInt(100)), "%s on hand changed", item.Code)
	}
	assert.Len(t, remnants.Available("RS-TUBE-45"), 1)
}

func TestPipelineRunSkipsManualOnlyLinesForMotorized(t *testing.T) {
	inv := ledger.NewLedger(nil)
	stockedForRollerShades(inv)
	pl := NewPipeline(model.DefaultCatalog(), inv, ledger.NewRemnantStore(nil), nil)

	piece := model.NewPiece("roller-shade", 2.40, 2.00).
		WithAttr("motorized", model.BoolAttr(true))
	plan := pl.Run(context.Background(), "ORD-106", []model.Piece{piece})

	require.Equal(t, model.StateCompleted, plan.State, "reason: %s", plan.FailureReason)
	for _, line := range plan.Consumption {
		assert.NotEqual(t, "RS-CHAIN", line.Code)
	}
	chain, _ := inv.Item("RS-CHAIN")
	assert.True(t, chain.OnHand.Equal(decimal.NewFromInt(100)))
}
