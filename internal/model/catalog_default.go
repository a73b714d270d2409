package model

import (
	"github.com/atelier-stores/matplan/internal/formula"
)

func boolAttr(name string, def bool) AttributeSpec {
	d := BoolAttr(def)
	return AttributeSpec{Name: name, Kind: formula.KindBool, Default: &d}
}

func stringAttr(name, def string) AttributeSpec {
	d := StringAttr(def)
	return AttributeSpec{Name: name, Kind: formula.KindString, Default: &d}
}

func requiredNumberAttr(name string) AttributeSpec {
	return AttributeSpec{Name: name, Kind: formula.KindNumber, Required: true}
}

// DefaultCatalog returns the built-in rule configuration for the standard
// product families. Workshops with custom rule sets load their own catalog
// file instead; this one carries the house defaults.
func DefaultCatalog() *Catalog {
	return NewCatalog("builtin-1", rollerShadeFamily(), sheerFamily(), awningFamily())
}

func rollerShadeFamily() *ProductFamily {
	return &ProductFamily{
		ID:          "roller-shade",
		Description: "Interior roller shade",
		Attributes: []AttributeSpec{
			boolAttr("motorized", false),
			boolAttr("rotated", false),
			boolAttr("has_gallery", false),
			boolAttr("requires_heat_seam", false),
			stringAttr("control_side", "right"),
			stringAttr("installation", "wall"),
		},
		Overrides: []OverrideRule{
			// Chain drives are not rated for wide shades.
			{When: formula.MustParse("width > 3.00"), Set: "motorized", To: formula.MustParse("true")},
			// Railroaded fabric taller than the roll is seamed.
			{When: formula.MustParse("rotated && height > 2.80"), Set: "requires_heat_seam", To: formula.MustParse("true")},
		},
		Groups: []SelectionGroup{
			{
				Name: "tube",
				Rules: []SelectionRule{
					{When: formula.MustParse("width <= 2.00"), Code: "RS-TUBE-38", Description: "Aluminium tube D38"},
					{When: formula.MustParse("width <= 3.00"), Code: "RS-TUBE-45", Description: "Aluminium tube D45"},
					{When: formula.MustParse("true"), Code: "RS-TUBE-65", Description: "Aluminium tube D65"},
				},
			},
			{
				Name: "mechanism",
				Rules: []SelectionRule{
					{When: formula.MustParse("!motorized && width <= 2.50"), Code: "RS-MEC-STD", Description: "Chain mechanism, standard"},
					{When: formula.MustParse("!motorized"), Code: "RS-MEC-HD", Description: "Chain mechanism, reinforced"},
					{When: formula.MustParse("motorized"), Code: "RS-MOT-45", Description: "Tubular motor kit 45 Nm"},
				},
			},
		},
		Lines: []MaterialLine{
			{
				SelectionGroup: "tube",
				Type:           MaterialTube,
				Unit:           UnitLinearMeter,
				Default:        formula.MustParse("width - 0.005"),
				StockLength:    5.80,
				Kerf:           0.005,
				MinRemnant:     0.50,
			},
			{
				Code:              "RS-FAB-SCREEN",
				Description:       "Screen fabric, 2.50 m roll width",
				Type:              MaterialFabric,
				Unit:              UnitLinearMeter,
				Default:           formula.MustParse("height + 0.25"),
				Alternates:        []ConditionalFormula{{When: formula.MustParse("cut_across"), Formula: formula.MustParse("width + 0.25")}},
				StockLength:       30.0,
				Kerf:              0.01,
				MinRemnant:        1.00,
				MaxRotationHeight: 2.80,
			},
			{
				Code:        "RS-CHAIN",
				Description: "Endless control chain",
				Type:        MaterialChain,
				Unit:        UnitLinearMeter,
				// Manual control only; motorized pieces skip the line.
				Alternates: []ConditionalFormula{{When: formula.MustParse("!motorized"), Formula: formula.MustParse("height * 2 + 0.5")}},
			},
			{
				Code:        "RS-CW-BAR",
				Description: "Counterweight bottom bar",
				Type:        MaterialCounterweight,
				Unit:        UnitLinearMeter,
				Default:     formula.MustParse("width - 0.010"),
				StockLength: 5.80,
				Kerf:        0.005,
				MinRemnant:  0.50,
			},
			{
				SelectionGroup: "mechanism",
				Type:           MaterialMechanism,
				Unit:           UnitKit,
				Default:        formula.MustParse("1"),
			},
			{
				Code:        "RS-BRACKET",
				Description: "Mounting bracket",
				Type:        MaterialAccessory,
				Unit:        UnitPiece,
				Default:     formula.MustParse("width > 2.5 ? 3 : 2"),
			},
			{
				Code:        "RS-HEATSEAM",
				Description: "Heat seam, per metre of join",
				Type:        MaterialAccessory,
				Unit:        UnitLinearMeter,
				Alternates:  []ConditionalFormula{{When: formula.MustParse("requires_heat_seam"), Formula: formula.MustParse("width")}},
			},
		},
	}
}

func sheerFamily() *ProductFamily {
	return &ProductFamily{
		ID:          "sheer",
		Description: "Sheer curtain on track",
		Attributes: []AttributeSpec{
			boolAttr("motorized", false),
			boolAttr("has_gallery", false),
			stringAttr("control_side", "right"),
		},
		Overrides: []OverrideRule{
			{When: formula.MustParse("width > 4.50"), Set: "motorized", To: formula.MustParse("true")},
		},
		Groups: []SelectionGroup{
			{
				Name: "track",
				Rules: []SelectionRule{
					{When: formula.MustParse("width <= 3.00"), Code: "SH-TRACK-U20", Description: "U20 curtain track"},
					{When: formula.MustParse("true"), Code: "SH-TRACK-U30", Description: "U30 reinforced track"},
				},
			},
			{
				Name: "drive",
				Rules: []SelectionRule{
					{When: formula.MustParse("!motorized"), Code: "SH-WAND", Description: "Draw wand"},
					{When: formula.MustParse("motorized"), Code: "SH-MOT-KIT", Description: "Track motor kit"},
				},
			},
		},
		Lines: []MaterialLine{
			{
				SelectionGroup: "track",
				Type:           MaterialTube,
				Unit:           UnitLinearMeter,
				Default:        formula.MustParse("width - 0.002"),
				StockLength:    5.80,
				Kerf:           0.005,
				MinRemnant:     0.40,
			},
			{
				Code:        "SH-VOILE",
				Description: "Voile, double fullness",
				Type:        MaterialFabric,
				Unit:        UnitLinearMeter,
				Default:     formula.MustParse("width * 2 + 0.3"),
				StockLength: 60.0,
				Kerf:        0.01,
				MinRemnant:  1.50,
			},
			{
				Code:        "SH-GALLERY",
				Description: "Gallery pelmet profile",
				Type:        MaterialAccessory,
				Unit:        UnitLinearMeter,
				Alternates:  []ConditionalFormula{{When: formula.MustParse("has_gallery"), Formula: formula.MustParse("width + 0.04")}},
				StockLength: 6.00,
				Kerf:        0.005,
				MinRemnant:  0.50,
			},
			{
				Code:        "SH-GLIDER",
				Description: "Glider, one per 8 cm",
				Type:        MaterialAccessory,
				Unit:        UnitPiece,
				Default:     formula.MustParse("ceil(width / 0.08)"),
			},
			{
				SelectionGroup: "drive",
				Type:           MaterialMechanism,
				Unit:           UnitKit,
				Default:        formula.MustParse("1"),
			},
		},
	}
}

func awningFamily() *ProductFamily {
	return &ProductFamily{
		ID:          "awning",
		Description: "Folding-arm awning",
		Attributes: []AttributeSpec{
			boolAttr("motorized", false),
			requiredNumberAttr("projection"),
		},
		Overrides: []OverrideRule{
			{When: formula.MustParse("width > 4.50"), Set: "motorized", To: formula.MustParse("true")},
		},
		Groups: []SelectionGroup{
			{
				Name: "arms",
				Rules: []SelectionRule{
					{When: formula.MustParse("projection <= 2.00"), Code: "AW-ARM-20", Description: "Folding arm 2.0 m"},
					{When: formula.MustParse("projection <= 3.00"), Code: "AW-ARM-30", Description: "Folding arm 3.0 m"},
					{When: formula.MustParse("true"), Code: "AW-ARM-35", Description: "Folding arm 3.5 m"},
				},
			},
			{
				Name: "drive",
				Rules: []SelectionRule{
					{When: formula.MustParse("!motorized"), Code: "AW-CRANK", Description: "Detachable crank handle"},
					{When: formula.MustParse("motorized"), Code: "AW-MOT-80", Description: "Tubular motor kit 80 Nm"},
				},
			},
		},
		Lines: []MaterialLine{
			{
				Code:        "AW-BAR-FRONT",
				Description: "Front profile bar",
				Type:        MaterialTube,
				Unit:        UnitLinearMeter,
				Default:     formula.MustParse("width - 0.020"),
				StockLength: 6.50,
				Kerf:        0.005,
				MinRemnant:  0.60,
			},
			{
				Code:        "AW-TUBE-78",
				Description: "Roller tube D78",
				Type:        MaterialTube,
				Unit:        UnitLinearMeter,
				Default:     formula.MustParse("width - 0.040"),
				StockLength: 6.50,
				Kerf:        0.005,
				MinRemnant:  0.60,
			},
			{
				Code:        "AW-ACRYLIC",
				Description: "Acrylic canvas, per panel",
				Type:        MaterialFabric,
				Unit:        UnitLinearMeter,
				Default:     formula.MustParse("ceil(width / 1.20) * (projection + 0.30)"),
			},
			{
				SelectionGroup: "arms",
				Type:           MaterialMechanism,
				Unit:           UnitPiece,
				Default:        formula.MustParse("width > 4.00 ? 3 : 2"),
			},
			{
				SelectionGroup: "drive",
				Type:           MaterialMechanism,
				Unit:           UnitKit,
				Default:        formula.MustParse("1"),
			},
		},
	}
}
