package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atelier-stores/matplan/internal/ledger"
	"github.com/atelier-stores/matplan/internal/model"
)

func TestSaveAndLoadStock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.json")

	inv := ledger.NewLedger(nil)
	inv.SetStock("RS-TUBE-45", model.UnitBar, decimal.NewFromInt(12), decimal.NewFromInt(3))
	inv.SetStock("RS-CHAIN", model.UnitLinearMeter, decimal.NewFromInt(80), decimal.Zero)
	remnants := ledger.NewRemnantStore(nil)
	remnants.Add("RS-TUBE-45", 1.25, "ORD-7", 0.50)

	if err := SaveStock(path, inv, remnants); err != nil {
		t.Fatalf("SaveStock failed: %v", err)
	}

	inv2 := ledger.NewLedger(nil)
	remnants2 := ledger.NewRemnantStore(nil)
	if err := LoadStock(path, inv2, remnants2); err != nil {
		t.Fatalf("LoadStock failed: %v", err)
	}

	item, ok := inv2.Item("RS-TUBE-45")
	if !ok {
		t.Fatal("RS-TUBE-45 missing after reload")
	}
	if !item.OnHand.Equal(decimal.NewFromInt(12)) {
		t.Errorf("expected on hand 12, got %s", item.OnHand)
	}
	if !item.Reorder.Equal(decimal.NewFromInt(3)) {
		t.Errorf("expected reorder 3, got %s", item.Reorder)
	}

	avail := remnants2.Available("RS-TUBE-45")
	if len(avail) != 1 {
		t.Fatalf("expected 1 remnant, got %d", len(avail))
	}
	if avail[0].Length != 1.25 {
		t.Errorf("expected length 1.25, got %f", avail[0].Length)
	}
	if avail[0].Origin != "ORD-7" {
		t.Errorf("expected origin ORD-7, got %s", avail[0].Origin)
	}
}

func TestSaveStockSkipsNonAvailableRemnants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.json")

	inv := ledger.NewLedger(nil)
	remnants := ledger.NewRemnantStore(nil)
	remnants.Add("RS-TUBE-45", 2.00, "ORD-1", 0.50)
	if _, ok := remnants.ReserveBestFit("RS-TUBE-45", 1.0); !ok {
		t.Fatal("reserve should succeed")
	}

	if err := SaveStock(path, inv, remnants); err != nil {
		t.Fatalf("SaveStock failed: %v", err)
	}

	remnants2 := ledger.NewRemnantStore(nil)
	if err := LoadStock(path, ledger.NewLedger(nil), remnants2); err != nil {
		t.Fatalf("LoadStock failed: %v", err)
	}
	if len(remnants2.All()) != 0 {
		t.Errorf("reserved remnant should not be persisted, got %d", len(remnants2.All()))
	}
}

func TestLoadStockMissingFile(t *testing.T) {
	inv := ledger.NewLedger(nil)
	remnants := ledger.NewRemnantStore(nil)
	if err := LoadStock(filepath.Join(t.TempDir(), "none.json"), inv, remnants); err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if len(inv.Items()) != 0 {
		t.Error("ledger should stay empty")
	}
}

func TestLoadStockInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.json")
	if err := os.WriteFile(path, []byte("{{{"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadStock(path, ledger.NewLedger(nil), ledger.NewRemnantStore(nil)); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}
