package ledger

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RemnantState is the lifecycle of a remnant record.
type RemnantState string

const (
	RemnantAvailable RemnantState = "available"
	RemnantReserved  RemnantState = "reserved"
	RemnantUsed      RemnantState = "used"
)

// Remnant is one reusable leftover segment of a bar or roll.
type Remnant struct {
	ID     string       `json:"id"`
	Code   string       `json:"code"`
	Length float64      `json:"length"` // metres
	State  RemnantState `json:"state"`
	Origin string       `json:"origin"` // order that produced it
}

// RemnantStore tracks leftover segments per material code. Reservation and
// consumption mirror the inventory ledger's semantics but act on individual
// records rather than aggregate quantities.
type RemnantStore struct {
	mu    sync.Mutex
	byID  map[string]*Remnant
	waste map[string]float64 // discarded length per code, metres
	log   *zap.Logger
}

// NewRemnantStore creates an empty store. A nil logger disables logging.
func NewRemnantStore(log *zap.Logger) *RemnantStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &RemnantStore{
		byID:  map[string]*Remnant{},
		waste: map[string]float64{},
		log:   log,
	}
}

// Add records a leftover segment. Lengths above minReuse become available
// remnants; lengths at or below it are waste, counted in the waste metric
// and never persisted as stock. Returns the stored remnant, or nil for waste.
func (s *RemnantStore) Add(code string, length float64, origin string, minReuse float64) *Remnant {
	s.mu.Lock()
	defer s.mu.Unlock()

	if length <= minReuse {
		s.waste[code] += length
		return nil
	}
	r := &Remnant{
		ID:     uuid.New().String()[:8],
		Code:   code,
		Length: length,
		State:  RemnantAvailable,
		Origin: origin,
	}
	s.byID[r.ID] = r
	s.log.Debug("remnant recorded",
		zap.String("code", code),
		zap.Float64("length", length),
		zap.String("origin", origin))
	cp := *r
	return &cp
}

// Restore inserts an existing remnant record, e.g. from a snapshot.
func (s *RemnantStore) Restore(r Remnant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	s.byID[r.ID] = &cp
}

// FindBestFit returns a copy of the smallest available remnant of the code
// with length >= need, preserving larger remnants for larger future cuts.
// Returns false when no remnant fits. Read-only; pair with ReserveBestFit
// when the remnant is to be taken.
func (s *RemnantStore) FindBestFit(code string, need float64) (Remnant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.bestFitLocked(code, need)
	if r == nil {
		return Remnant{}, false
	}
	return *r, true
}

// ReserveBestFit atomically finds and reserves the best-fit remnant.
func (s *RemnantStore) ReserveBestFit(code string, need float64) (Remnant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.bestFitLocked(code, need)
	if r == nil {
		return Remnant{}, false
	}
	r.State = RemnantReserved
	return *r, true
}

// bestFitLocked scans for the smallest sufficient available remnant, breaking
// length ties by ID for determinism. Caller holds mu.
func (s *RemnantStore) bestFitLocked(code string, need float64) *Remnant {
	var best *Remnant
	for _, r := range s.byID {
		if r.Code != code || r.State != RemnantAvailable || r.Length < need {
			continue
		}
		if best == nil || r.Length < best.Length || (r.Length == best.Length && r.ID < best.ID) {
			best = r
		}
	}
	return best
}

// ReserveRemnant places a hold on a specific available remnant.
func (s *RemnantStore) ReserveRemnant(id string) error {
	return s.transition(id, RemnantAvailable, RemnantReserved)
}

// ConsumeRemnant marks a reserved remnant as used. One-shot.
func (s *RemnantStore) ConsumeRemnant(id string) error {
	return s.transition(id, RemnantReserved, RemnantUsed)
}

// ReleaseRemnant returns a reserved remnant to the available pool, the
// compensating action when a pipeline fails after reserving remnants.
func (s *RemnantStore) ReleaseRemnant(id string) error {
	return s.transition(id, RemnantReserved, RemnantAvailable)
}

func (s *RemnantStore) transition(id string, from, to RemnantState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok || r.State != from {
		s.log.Error("invalid remnant transition",
			zap.String("remnant_id", id),
			zap.String("to", string(to)))
		return ErrUnknownRemnant
	}
	r.State = to
	return nil
}

// Available returns copies of the available remnants for a code, sorted by
// length ascending.
func (s *RemnantStore) Available(code string) []Remnant {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Remnant
	for _, r := range s.byID {
		if r.Code == code && r.State == RemnantAvailable {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Length != out[j].Length {
			return out[i].Length < out[j].Length
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// All returns a copy of every remnant record, sorted by code then ID. Used
// for snapshots and reporting.
func (s *RemnantStore) All() []Remnant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Remnant, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Waste returns the accumulated discarded length for a code, metres.
func (s *RemnantStore) Waste(code string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waste[code]
}
