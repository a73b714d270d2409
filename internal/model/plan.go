package model

import (
	"github.com/shopspring/decimal"
)

// PlanState is a production order plan's position in the pipeline.
type PlanState string

const (
	StateDraft     PlanState = "draft"
	StateVerified  PlanState = "verified"
	StateReserved  PlanState = "reserved"
	StateOptimized PlanState = "optimized"
	StateConsumed  PlanState = "consumed"
	StateCompleted PlanState = "completed"
	StateFailed    PlanState = "failed"
)

// CutSource says where a cutting unit's material came from.
type CutSource string

const (
	SourceStandard CutSource = "standard" // a new standard-length bar/roll
	SourceRemnant  CutSource = "remnant"  // a reused leftover segment
)

// ResidueDisposition classifies the leftover of a cutting unit.
type ResidueDisposition string

const (
	ResidueRemnant ResidueDisposition = "remnant" // above threshold, kept as stock
	ResidueWaste   ResidueDisposition = "waste"   // at/below threshold, discarded
)

// CutUnit is one physical bar/roll (or remnant) with its assigned cuts.
type CutUnit struct {
	Source      CutSource          `json:"source"`
	RemnantID   string             `json:"remnant_id,omitempty"`
	Length      float64            `json:"length"` // usable length of this unit
	Cuts        []float64          `json:"cuts"`
	Residual    float64            `json:"residual"`
	Disposition ResidueDisposition `json:"disposition"`
}

// CuttingPlan is the optimizer output for one material code.
type CuttingPlan struct {
	Code         string    `json:"code"`
	StockLength  float64   `json:"stock_length"`
	Units        []CutUnit `json:"units"`
	UnitsOpened  int       `json:"units_opened"`  // new standard units consumed
	RemnantsUsed int       `json:"remnants_used"` // reused remnant records
	Waste        float64   `json:"waste"`         // total discarded length, metres
}

// WastePercent is the waste share of the standard material consumed.
func (cp CuttingPlan) WastePercent() float64 {
	consumed := float64(cp.UnitsOpened) * cp.StockLength
	if consumed == 0 {
		return 0
	}
	return cp.Waste / consumed * 100.0
}

// CreatedRemnant is a reusable leftover produced by this order's cutting.
type CreatedRemnant struct {
	Code   string  `json:"code"`
	Length float64 `json:"length"`
	Origin string  `json:"origin"` // order that produced it
}

// ConsumptionLine is one material's actual consumption booked to the ledger.
type ConsumptionLine struct {
	Code     string          `json:"code"`
	Unit     Unit            `json:"unit"`
	Quantity decimal.Decimal `json:"quantity"`
	Released decimal.Decimal `json:"released"` // excess reservation returned
}

// Shortage is one material the ledger cannot cover.
type Shortage struct {
	Code      string          `json:"code"`
	Needed    decimal.Decimal `json:"needed"`
	Available decimal.Decimal `json:"available"`
	Missing   decimal.Decimal `json:"missing"`
}

// PickItem is one material on the consolidated pick list.
type PickItem struct {
	Code         string          `json:"code"`
	Description  string          `json:"description"`
	Unit         Unit            `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitsToCut   int             `json:"units_to_cut,omitempty"`
	CuttingPlan  *CuttingPlan    `json:"cutting_plan,omitempty"`
	WastePercent float64         `json:"waste_percent,omitempty"`
	Remnants     []CreatedRemnant `json:"remnants,omitempty"`
}

// PickSection groups pick items of one material type.
type PickSection struct {
	Type  MaterialType `json:"type"`
	Items []PickItem   `json:"items"`
}

// PickList is the consolidated output handed to the reporting collaborator.
type PickList struct {
	OrderID  string        `json:"order_id"`
	Sections []PickSection `json:"sections"`
}

// ProductionOrderPlan is the aggregate result of one planning run. It is
// never mutated after reaching a terminal state; a retry creates a new plan.
type ProductionOrderPlan struct {
	ID             string                `json:"id"`
	OrderID        string                `json:"order_id"`
	CatalogVersion string                `json:"catalog_version"`
	State          PlanState             `json:"state"`
	Requirements   []MaterialRequirement `json:"requirements,omitempty"`
	ReservationID  string                `json:"reservation_id,omitempty"`
	CuttingPlans   []CuttingPlan         `json:"cutting_plans,omitempty"`
	Consumption    []ConsumptionLine     `json:"consumption,omitempty"`
	NewRemnants    []CreatedRemnant      `json:"new_remnants,omitempty"`
	Shortages      []Shortage            `json:"shortages,omitempty"`
	PickList       *PickList             `json:"pick_list,omitempty"`
	FailureReason  string                `json:"failure_reason,omitempty"`
}

// BuildPickList assembles the consolidated pick list: one section per
// material type (fixed order), items sorted the way requirements are (by
// code), each with its cutting instructions and generated remnants.
func BuildPickList(orderID string, reqs []MaterialRequirement, plans []CuttingPlan, remnants []CreatedRemnant) *PickList {
	planByCode := make(map[string]*CuttingPlan, len(plans))
	for i := range plans {
		planByCode[plans[i].Code] = &plans[i]
	}
	remnantsByCode := make(map[string][]CreatedRemnant)
	for _, r := range remnants {
		remnantsByCode[r.Code] = append(remnantsByCode[r.Code], r)
	}

	byType := make(map[MaterialType][]PickItem)
	for _, req := range reqs {
		item := PickItem{
			Code:        req.Code,
			Description: req.Description,
			Unit:        req.Unit,
			Quantity:    req.TotalQty,
			Remnants:    remnantsByCode[req.Code],
		}
		if cp, ok := planByCode[req.Code]; ok {
			item.CuttingPlan = cp
			item.UnitsToCut = cp.UnitsOpened
			item.WastePercent = cp.WastePercent()
		}
		byType[req.Type] = append(byType[req.Type], item)
	}

	list := &PickList{OrderID: orderID}
	for _, mt := range materialTypeOrder {
		if items, ok := byType[mt]; ok {
			list.Sections = append(list.Sections, PickSection{Type: mt, Items: items})
		}
	}
	return list
}
