// Package ledger holds the two shared mutable stores of the planning engine:
// the inventory ledger (on-hand and reserved quantities per material code)
// and the remnant store (reusable leftover cut segments). All access goes
// through their atomic operations; no other component touches the counters.
package ledger

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atelier-stores/matplan/internal/model"
)

// Item is the ledger state for one material code.
type Item struct {
	Code     string          `json:"code"`
	Unit     model.Unit      `json:"unit"`
	OnHand   decimal.Decimal `json:"on_hand"`
	Reserved decimal.Decimal `json:"reserved"`
	Reorder  decimal.Decimal `json:"reorder"` // reorder threshold on available qty
}

// Available is the quantity free for new reservations.
func (it Item) Available() decimal.Decimal { return it.OnHand.Sub(it.Reserved) }

type reservationState int

const (
	reservationHeld reservationState = iota
	reservationConsumed
	reservationReleased
)

type reservation struct {
	id    string
	holds map[string]decimal.Decimal // code -> reserved quantity
	state reservationState
}

// Ledger tracks inventory per material code. Safe for concurrent planning
// runs: every operation is a single critical section, so a multi-code
// reservation is all-or-nothing and two orders reserving overlapping code
// sets cannot interleave or deadlock.
type Ledger struct {
	mu           sync.Mutex
	items        map[string]*Item
	reservations map[string]*reservation
	log          *zap.Logger
}

// NewLedger creates an empty ledger. A nil logger disables logging.
func NewLedger(log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		items:        map[string]*Item{},
		reservations: map[string]*reservation{},
		log:          log,
	}
}

// SetStock sets the on-hand quantity and reorder threshold for a code,
// creating the item if needed. Intended for loading snapshots and receiving
// goods, not for consumption (use Reserve/Consume).
func (l *Ledger) SetStock(code string, unit model.Unit, onHand, reorder decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	it, ok := l.items[code]
	if !ok {
		it = &Item{Code: code, Unit: unit}
		l.items[code] = it
	}
	it.Unit = unit
	it.OnHand = onHand
	it.Reorder = reorder
}

// Item returns a copy of the ledger state for a code.
func (l *Ledger) Item(code string) (Item, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	it, ok := l.items[code]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// Items returns a copy of every ledger item, sorted by code.
func (l *Ledger) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Item, 0, len(l.items))
	for _, it := range l.items {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Verify compares available stock against a requirement set and returns the
// complete shortage list, not just the first shortage, so the caller can
// report the full picture. Read-only.
func (l *Ledger) Verify(reqs []model.MaterialRequirement) []model.Shortage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shortagesLocked(reqs)
}

// shortagesLocked computes shortages in sorted code order. Caller holds mu.
func (l *Ledger) shortagesLocked(reqs []model.MaterialRequirement) []model.Shortage {
	sorted := make([]model.MaterialRequirement, len(reqs))
	copy(sorted, reqs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	var shortages []model.Shortage
	for _, req := range sorted {
		needed := req.ReserveQty()
		var available decimal.Decimal
		if it, ok := l.items[req.Code]; ok {
			available = it.Available()
		}
		if available.LessThan(needed) {
			shortages = append(shortages, model.Shortage{
				Code:      req.Code,
				Needed:    needed,
				Available: available,
				Missing:   needed.Sub(available),
			})
		}
	}
	return shortages
}

// Reserve places an all-or-nothing hold across every code in the requirement
// set. On any shortage it returns InsufficientStockError with the complete
// shortage list and leaves every counter untouched. Unknown codes count as
// zero stock; a reservation never creates an item.
func (l *Ledger) Reserve(reqs []model.MaterialRequirement) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if shortages := l.shortagesLocked(reqs); len(shortages) > 0 {
		return "", &InsufficientStockError{Shortages: shortages}
	}

	res := &reservation{
		id:    uuid.New().String(),
		holds: make(map[string]decimal.Decimal, len(reqs)),
	}
	for _, req := range reqs {
		qty := req.ReserveQty()
		l.items[req.Code].Reserved = l.items[req.Code].Reserved.Add(qty)
		res.holds[req.Code] = res.holds[req.Code].Add(qty)
	}
	l.reservations[res.id] = res

	l.log.Debug("reservation placed",
		zap.String("reservation_id", res.id),
		zap.Int("codes", len(res.holds)))
	return res.id, nil
}

// Consume settles a reservation with the actual usage per code, which may be
// below the hold when remnants covered part of the need. On-hand and reserved
// both drop by the actual amount; the excess hold is released back to
// available. Consumption is one-shot.
func (l *Ledger) Consume(reservationID string, actual map[string]decimal.Decimal) (ConsumptionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.reservations[reservationID]
	if !ok || res.state != reservationHeld {
		return ConsumptionRecord{}, ErrUnknownReservation
	}

	// Validate before mutating anything: consumption is atomic too.
	codes := make([]string, 0, len(res.holds))
	for code := range res.holds {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for code, qty := range actual {
		held, ok := res.holds[code]
		if !ok || qty.GreaterThan(held) {
			l.log.Error("consumption exceeds reservation",
				zap.String("reservation_id", reservationID),
				zap.String("code", code),
				zap.String("held", held.String()),
				zap.String("requested", qty.String()))
			return ConsumptionRecord{}, &ReservationConflictError{Code: code, Held: held, Requested: qty}
		}
	}

	record := ConsumptionRecord{ReservationID: reservationID}
	for _, code := range codes {
		held := res.holds[code]
		used := actual[code] // zero when absent: nothing consumed, all released
		it := l.items[code]
		it.OnHand = it.OnHand.Sub(used)
		it.Reserved = it.Reserved.Sub(held)
		if it.OnHand.IsNegative() || it.Reserved.IsNegative() {
			// Unreachable if the locking discipline holds.
			l.log.Error("inventory invariant violated",
				zap.String("code", code),
				zap.String("on_hand", it.OnHand.String()),
				zap.String("reserved", it.Reserved.String()))
		}
		record.Lines = append(record.Lines, model.ConsumptionLine{
			Code:     code,
			Unit:     it.Unit,
			Quantity: used,
			Released: held.Sub(used),
		})
		if it.Available().LessThanOrEqual(it.Reorder) && it.Reorder.IsPositive() {
			record.LowStock = append(record.LowStock, *it)
		}
	}
	res.state = reservationConsumed

	l.log.Info("reservation consumed",
		zap.String("reservation_id", reservationID),
		zap.Int("codes", len(record.Lines)))
	return record, nil
}

// Release cancels a held reservation without consuming, returning every hold
// to available stock. The compensating action for late pipeline failures.
func (l *Ledger) Release(reservationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.reservations[reservationID]
	if !ok || res.state != reservationHeld {
		return ErrUnknownReservation
	}
	for code, qty := range res.holds {
		l.items[code].Reserved = l.items[code].Reserved.Sub(qty)
	}
	res.state = reservationReleased

	l.log.Info("reservation released", zap.String("reservation_id", reservationID))
	return nil
}

// LowStock returns items whose available quantity is at or below their
// reorder threshold, sorted by code.
func (l *Ledger) LowStock() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Item
	for _, it := range l.items {
		if it.Reorder.IsPositive() && it.Available().LessThanOrEqual(it.Reorder) {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ConsumptionRecord documents a settled reservation.
type ConsumptionRecord struct {
	ReservationID string                  `json:"reservation_id"`
	Lines         []model.ConsumptionLine `json:"lines"`
	LowStock      []Item                  `json:"low_stock,omitempty"`
}
