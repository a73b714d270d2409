package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/atelier-stores/matplan/internal/model"
)

const separator = "----------------------------------------------------------------"

// writePlanText renders a human-readable plan for the workshop floor.
func writePlanText(w io.Writer, plan *model.ProductionOrderPlan) {
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "PRODUCTION ORDER %s  (plan %s)\n", plan.OrderID, plan.ID)
	fmt.Fprintf(w, "Catalog: %s   State: %s\n", plan.CatalogVersion, plan.State)
	fmt.Fprintln(w, separator)

	if plan.State == model.StateFailed {
		fmt.Fprintf(w, "\nFAILED: %s\n", plan.FailureReason)
		if len(plan.Shortages) > 0 {
			fmt.Fprintln(w, "\nSHORTAGES")
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tNEEDED\tAVAILABLE\tMISSING")
			for _, s := range plan.Shortages {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					s.Code, s.Needed, s.Available, s.Missing)
			}
			tw.Flush()
		}
		return
	}

	if plan.PickList != nil {
		fmt.Fprintln(w, "\nPICK LIST")
		for _, section := range plan.PickList.Sections {
			fmt.Fprintf(w, "\n  %s\n", strings.ToUpper(string(section.Type)))
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "  CODE\tDESCRIPTION\tQTY\tUNIT\tCUT FROM\tWASTE")
			for _, item := range section.Items {
				cutFrom, waste := "-", "-"
				if item.CuttingPlan != nil {
					cutFrom = fmt.Sprintf("%d x %.2f m", item.UnitsToCut, item.CuttingPlan.StockLength)
					if item.CuttingPlan.RemnantsUsed > 0 {
						cutFrom += fmt.Sprintf(" + %d remnant(s)", item.CuttingPlan.RemnantsUsed)
					}
					waste = fmt.Sprintf("%.1f%%", item.WastePercent)
				}
				fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n",
					item.Code, item.Description, item.Quantity, item.Unit, cutFrom, waste)
			}
			tw.Flush()
		}
	}

	if len(plan.CuttingPlans) > 0 {
		fmt.Fprintln(w, "\nCUTTING INSTRUCTIONS")
		for _, cp := range plan.CuttingPlans {
			fmt.Fprintf(w, "\n  %s (stock %.2f m)\n", cp.Code, cp.StockLength)
			for i, unit := range cp.Units {
				src := "new bar"
				if unit.Source == model.SourceRemnant {
					src = fmt.Sprintf("remnant %s (%.3f m)", unit.RemnantID, unit.Length)
				}
				fmt.Fprintf(w, "    %d. %s: cuts %s", i+1, src, formatCuts(unit.Cuts))
				if unit.Residual > 0 {
					fmt.Fprintf(w, "  -> %.3f m %s", unit.Residual, unit.Disposition)
				}
				fmt.Fprintln(w)
			}
		}
	}

	if len(plan.NewRemnants) > 0 {
		fmt.Fprintln(w, "\nNEW REMNANTS")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  CODE\tLENGTH")
		for _, r := range plan.NewRemnants {
			fmt.Fprintf(tw, "  %s\t%.3f m\n", r.Code, r.Length)
		}
		tw.Flush()
	}
}

func formatCuts(cuts []float64) string {
	parts := make([]string, len(cuts))
	for i, c := range cuts {
		parts[i] = fmt.Sprintf("%.3f", c)
	}
	return strings.Join(parts, " + ")
}

// writePlanJSON emits the full plan for downstream tooling.
func writePlanJSON(w io.Writer, plan *model.ProductionOrderPlan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}
