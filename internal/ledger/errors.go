package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atelier-stores/matplan/internal/model"
)

// ErrUnknownReservation reports a reservation ID that does not exist or was
// already consumed or released. A programming defect, not a business
// condition: settlement is one-shot.
var ErrUnknownReservation = errors.New("unknown or already settled reservation")

// ErrUnknownRemnant is the remnant-store counterpart of ErrUnknownReservation.
var ErrUnknownRemnant = errors.New("unknown remnant or invalid state transition")

// InsufficientStockError is the expected, recoverable business failure: the
// requirement set cannot be covered. It carries the complete shortage list so
// the caller can decide to back-order, partially fulfill, or abort.
type InsufficientStockError struct {
	Shortages []model.Shortage
}

func (e *InsufficientStockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "insufficient stock for %d material(s):", len(e.Shortages))
	for _, s := range e.Shortages {
		fmt.Fprintf(&b, " %s (need %s, have %s)", s.Code, s.Needed, s.Available)
	}
	return b.String()
}

// ReservationConflictError reports an attempt to consume more than was held.
// Should never occur while the reservation discipline is respected; logged as
// an invariant violation.
type ReservationConflictError struct {
	Code      string
	Held      decimal.Decimal
	Requested decimal.Decimal
}

func (e *ReservationConflictError) Error() string {
	return fmt.Sprintf("reservation conflict on %s: held %s, requested %s", e.Code, e.Held, e.Requested)
}
