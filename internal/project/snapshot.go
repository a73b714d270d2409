package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atelier-stores/matplan/internal/ledger"
)

// DefaultStockPath returns the default path for the stock snapshot file.
func DefaultStockPath() string {
	return filepath.Join(DefaultConfigDir(), "stock.json")
}

// StockSnapshot is the on-disk shape of the inventory state: ledger items
// and available remnants. Snapshots are taken between planning runs, so no
// reservations are in flight and reserved quantities are not persisted.
type StockSnapshot struct {
	SavedAt  string          `json:"saved_at"`
	Items    []ledger.Item   `json:"items"`
	Remnants []ledger.Remnant `json:"remnants,omitempty"`
}

// SaveStock writes the ledger and remnant store state to the specified JSON
// file. It creates parent directories if they do not exist.
func SaveStock(path string, inv *ledger.Ledger, remnants *ledger.RemnantStore) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(buildSnapshot(inv, remnants), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func buildSnapshot(inv *ledger.Ledger, remnants *ledger.RemnantStore) StockSnapshot {
	snap := StockSnapshot{
		SavedAt: time.Now().UTC().Format(time.RFC3339),
		Items:   inv.Items(),
	}
	for _, r := range remnants.All() {
		if r.State == ledger.RemnantAvailable {
			snap.Remnants = append(snap.Remnants, r)
		}
	}
	return snap
}

// LoadStock reads a stock snapshot and fills the given ledger and remnant
// store. If the file does not exist, both stay empty and no error is
// returned; a fresh installation starts with nothing on hand.
func LoadStock(path string, inv *ledger.Ledger, remnants *ledger.RemnantStore) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var snap StockSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse stock snapshot %s: %w", path, err)
	}
	for _, it := range snap.Items {
		inv.SetStock(it.Code, it.Unit, it.OnHand, it.Reorder)
	}
	for _, r := range snap.Remnants {
		r.State = ledger.RemnantAvailable
		remnants.Restore(r)
	}
	return nil
}
