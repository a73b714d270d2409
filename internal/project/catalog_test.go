package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/atelier-stores/matplan/internal/model"
)

func TestSaveAndLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")

	if err := SaveCatalog(path, model.DefaultCatalog()); err != nil {
		t.Fatalf("SaveCatalog failed: %v", err)
	}

	cat, warnings, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	if cat.Version != "builtin-1" {
		t.Errorf("expected version builtin-1, got %s", cat.Version)
	}
	if len(cat.Families()) != 3 {
		t.Errorf("expected 3 families, got %d", len(cat.Families()))
	}

	f, err := cat.Family("roller-shade")
	if err != nil {
		t.Fatalf("roller-shade family missing: %v", err)
	}
	if len(f.Groups) != 2 {
		t.Errorf("expected 2 selection groups, got %d", len(f.Groups))
	}

	// Formulas survive the round trip compiled and evaluable.
	piece := model.NewPiece("roller-shade", 2.40, 2.00)
	norm, err := model.NormalizePiece(f, piece)
	if err != nil {
		t.Fatalf("NormalizePiece failed: %v", err)
	}
	rule, err := f.ResolveComponent("tube", norm)
	if err != nil {
		t.Fatalf("ResolveComponent failed: %v", err)
	}
	if rule.Code != "RS-TUBE-45" {
		t.Errorf("expected RS-TUBE-45, got %s", rule.Code)
	}
}

func TestLoadCatalogMissingFileWritesBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "catalog.json")

	cat, _, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cat.Version != "builtin-1" {
		t.Errorf("expected builtin catalog, got version %s", cat.Version)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("catalog file was not created")
	}
}

func TestLoadCatalogInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte("not valid json{{{"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestLoadCatalogMissingVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(`{"families":[]}`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected error for missing version, got nil")
	}
}

func TestLoadCatalogBadFormula(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	data := []byte(`{
  "version": "v1",
  "families": [{
    "id": "test",
    "lines": [{"type": "tube", "unit": "m", "default": "width +"}]
  }]
}`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected error for malformed formula, got nil")
	}
}

func TestLoadCatalogUnknownVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	data := []byte(`{
  "version": "v1",
  "families": [{
    "id": "test",
    "lines": [{"type": "tube", "unit": "m", "default": "widht - 0.005"}]
  }]
}`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected error for unknown variable, got nil")
	}
}

func TestLoadCatalogBadAttributeKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	data := []byte(`{
  "version": "v1",
  "families": [{
    "id": "test",
    "attributes": [{"name": "motorized", "kind": "boolean"}],
    "lines": [{"type": "tube", "unit": "m", "default": "width"}]
  }]
}`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected error for unknown attribute kind, got nil")
	}
}
