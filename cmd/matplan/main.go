package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atelier-stores/matplan/internal/engine"
	"github.com/atelier-stores/matplan/internal/ledger"
	"github.com/atelier-stores/matplan/internal/model"
	"github.com/atelier-stores/matplan/internal/project"
)

// orderFile is the JSON input describing one production order.
type orderFile struct {
	ID     string        `json:"id"`
	Pieces []model.Piece `json:"pieces"`
}

func main() {
	var (
		catalogPath = flag.String("catalog", project.DefaultCatalogPath(), "Path to the rule catalog JSON file")
		stockPath   = flag.String("stock", project.DefaultStockPath(), "Path to the stock snapshot JSON file")
		orderPath   = flag.String("order", "", "Path to the production order JSON file (required)")
		format      = flag.String("format", "text", "Output format: text, json")
		save        = flag.Bool("save", false, "Persist the updated stock snapshot after a completed run")
		backups     = flag.Int("backups", 5, "Stock snapshot backups to keep when saving")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if *orderPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -order is required")
		flag.Usage()
		os.Exit(2)
	}

	log := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		log = l
	}
	defer log.Sync()

	if err := run(*catalogPath, *stockPath, *orderPath, *format, *save, *backups, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(catalogPath, stockPath, orderPath, format string, save bool, backups int, log *zap.Logger) error {
	cat, warnings, err := project.LoadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	inv := ledger.NewLedger(log)
	remnants := ledger.NewRemnantStore(log)
	if err := project.LoadStock(stockPath, inv, remnants); err != nil {
		return fmt.Errorf("load stock: %w", err)
	}

	order, err := readOrder(orderPath)
	if err != nil {
		return err
	}

	pipeline := engine.NewPipeline(cat, inv, remnants, log)
	plan := pipeline.Run(context.Background(), order.ID, order.Pieces)

	switch format {
	case "text":
		writePlanText(os.Stdout, plan)
	case "json":
		if err := writePlanJSON(os.Stdout, plan); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}

	if plan.State != model.StateCompleted {
		return fmt.Errorf("planning failed: %s", plan.FailureReason)
	}

	if save {
		dir := filepath.Join(filepath.Dir(stockPath), "backups")
		if err := project.RotateBackups(dir, stockPath, backups); err != nil {
			return fmt.Errorf("rotate backups: %w", err)
		}
		if err := project.SaveStock(stockPath, inv, remnants); err != nil {
			return fmt.Errorf("save stock: %w", err)
		}
		log.Info("stock snapshot saved", zap.String("path", stockPath))
	}
	return nil
}

func readOrder(path string) (orderFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return orderFile{}, fmt.Errorf("read order: %w", err)
	}
	var order orderFile
	if err := json.Unmarshal(data, &order); err != nil {
		return orderFile{}, fmt.Errorf("parse order %s: %w", path, err)
	}
	if order.ID == "" {
		order.ID = "ORD-" + uuid.New().String()[:8]
	}
	for i := range order.Pieces {
		if order.Pieces[i].ID == "" {
			order.Pieces[i].ID = uuid.New().String()[:8]
		}
		if order.Pieces[i].Attrs == nil {
			order.Pieces[i].Attrs = model.Attrs{}
		}
	}
	return order, nil
}
