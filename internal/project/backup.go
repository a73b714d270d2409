package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/atelier-stores/matplan/internal/ledger"
	"github.com/atelier-stores/matplan/internal/model"
)

// BackupData is the top-level structure for export/import of all workshop
// data: the compiled catalog (as source text) and the stock snapshot.
type BackupData struct {
	Version   string        `json:"version"`
	CreatedAt string        `json:"created_at"`
	Catalog   catalogFile   `json:"catalog"`
	Stock     StockSnapshot `json:"stock"`
}

// ExportAllData exports the catalog and inventory state to a single JSON
// file at the specified path.
func ExportAllData(exportPath string, cat *model.Catalog, inv *ledger.Ledger, remnants *ledger.RemnantStore) error {
	backup := BackupData{
		Version:   "1",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Catalog:   catalogToFile(cat),
		Stock:     buildSnapshot(inv, remnants),
	}
	out, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal backup data: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(exportPath), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(exportPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write backup file: %w", err)
	}
	return nil
}

// ImportAllData reads a backup JSON file and writes its catalog and stock
// back to the given paths. The caller reloads them afterwards.
func ImportAllData(importPath, catalogPath, stockPath string) error {
	data, err := os.ReadFile(importPath)
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}
	var backup BackupData
	if err := json.Unmarshal(data, &backup); err != nil {
		return fmt.Errorf("failed to parse backup file: %w", err)
	}
	if backup.Version == "" {
		return fmt.Errorf("invalid backup file: missing version field")
	}

	for _, path := range []string{catalogPath, stockPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
	}
	catData, err := json.MarshalIndent(backup.Catalog, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(catalogPath, catData, 0644); err != nil {
		return err
	}
	stockData, err := json.MarshalIndent(backup.Stock, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(stockPath, stockData, 0644)
}

// RotateBackups writes a timestamped copy of the given file into dir and
// prunes the oldest copies beyond keep. Missing source files are skipped.
func RotateBackups(dir, sourcePath string, keep int) error {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	base := filepath.Base(sourcePath)
	stamp := time.Now().UTC().Format("20060102-150405")
	name := fmt.Sprintf("%s.%s.bak", base, stamp)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return err
	}

	pattern := filepath.Join(dir, base+".*.bak")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	if len(matches) <= keep {
		return nil
	}
	sort.Strings(matches) // timestamp format sorts chronologically
	for _, old := range matches[:len(matches)-keep] {
		if err := os.Remove(old); err != nil {
			return err
		}
	}
	return nil
}
