package model

import (
	"fmt"
	"sort"

	"github.com/atelier-stores/matplan/internal/formula"
)

// Unit is the stock-keeping unit of a material line.
type Unit string

const (
	UnitLinearMeter Unit = "m"    // sold/stocked by length
	UnitPiece       Unit = "pc"   // fixed-count accessories
	UnitKit         Unit = "kit"  // assembled mechanism kits
	UnitBar         Unit = "bar"  // standard-length bars/rolls held as whole units
)

// MaterialType groups material lines on the pick list.
type MaterialType string

const (
	MaterialTube          MaterialType = "tube"
	MaterialFabric        MaterialType = "fabric"
	MaterialChain         MaterialType = "chain"
	MaterialCounterweight MaterialType = "counterweight"
	MaterialMechanism     MaterialType = "mechanism"
	MaterialAccessory     MaterialType = "accessory"
)

// materialTypeOrder fixes the section order of the pick list.
var materialTypeOrder = []MaterialType{
	MaterialTube,
	MaterialFabric,
	MaterialChain,
	MaterialCounterweight,
	MaterialMechanism,
	MaterialAccessory,
}

// AttributeSpec declares an attribute a family's rules may reference.
// Pieces missing a required attribute with no default fail normalization
// instead of being silently defaulted.
type AttributeSpec struct {
	Name     string
	Kind     formula.Kind
	Required bool
	Default  *AttrValue
}

// OverrideRule is one business override applied by the attribute normalizer,
// e.g. "width > 3.00 => motorized = true". Rules apply in declaration order
// and later rules see the effects of earlier ones.
type OverrideRule struct {
	When *formula.Expr // predicate over piece attributes
	Set  string        // attribute to assign
	To   *formula.Expr // value expression
}

// SelectionRule resolves a concrete component for a piece. Rules are ordered;
// the first matching rule wins.
type SelectionRule struct {
	When        *formula.Expr
	Code        string
	Description string
}

// SelectionGroup is an ordered component-selection table (tubes, mechanisms).
type SelectionGroup struct {
	Name  string
	Rules []SelectionRule
}

// ConditionalFormula is an alternate quantity formula guarded by a condition.
type ConditionalFormula struct {
	When    *formula.Expr
	Formula *formula.Expr
}

// MaterialLine is one row of a family's bill-of-materials definition.
//
// A line with a StockLength > 0 is optimizable: per-piece evaluations are kept
// as individual cut lengths and fed through the cutting-stock optimizer. Other
// lines aggregate to a plain quantity.
type MaterialLine struct {
	Code        string // fixed material code; empty when SelectionGroup resolves it
	Description string
	Type        MaterialType
	Unit        Unit

	// SelectionGroup names the selection table that resolves the component
	// code per piece. Empty for lines with a fixed code.
	SelectionGroup string

	Default    *formula.Expr        // used when no alternate condition matches
	Alternates []ConditionalFormula // ordered, first match wins

	StockLength float64 // nominal bar/roll length in metres; 0 = not optimizable
	Kerf        float64 // cutting margin consumed per cut, metres
	MinRemnant  float64 // leftovers above this length are reusable remnants

	// MaxRotationHeight is the tallest piece that may be cut across the roll
	// width instead of along its length. 0 = rotation never allowed.
	MaxRotationHeight float64
}

// Optimizable reports whether the line goes through the cutting optimizer.
func (l MaterialLine) Optimizable() bool { return l.StockLength > 0 }

// ProductFamily is the immutable per-family rule configuration: attribute
// declarations, normalizer overrides, component selection tables, and
// material lines. Edited out-of-band; never mutated during a planning run.
type ProductFamily struct {
	ID          string
	Description string
	Attributes  []AttributeSpec
	Overrides   []OverrideRule
	Groups      []SelectionGroup
	Lines       []MaterialLine
}

// Group returns the selection group with the given name.
func (f *ProductFamily) Group(name string) (*SelectionGroup, bool) {
	for i := range f.Groups {
		if f.Groups[i].Name == name {
			return &f.Groups[i], true
		}
	}
	return nil, false
}

// ResolveComponent runs a selection table against a piece, first match wins.
func (f *ProductFamily) ResolveComponent(group string, piece Piece) (SelectionRule, error) {
	g, ok := f.Group(group)
	if !ok {
		return SelectionRule{}, fmt.Errorf("family %q: %w %q", f.ID, ErrUnknownSelectionGroup, group)
	}
	env := piece.Env()
	for _, rule := range g.Rules {
		match, err := rule.When.EvalBool(env)
		if err != nil {
			return SelectionRule{}, err
		}
		if match {
			return rule, nil
		}
	}
	return SelectionRule{}, &NoComponentError{Family: f.ID, Group: group, PieceID: piece.ID}
}

// Catalog is a versioned, immutable snapshot of every product family's rule
// configuration. A reload produces a new Catalog value; in-flight planning
// runs keep reading the snapshot they started with.
type Catalog struct {
	Version  string
	families map[string]*ProductFamily
}

// NewCatalog builds a catalog snapshot from a set of families.
func NewCatalog(version string, families ...*ProductFamily) *Catalog {
	m := make(map[string]*ProductFamily, len(families))
	for _, f := range families {
		m[f.ID] = f
	}
	return &Catalog{Version: version, families: m}
}

// Family returns the rule configuration for a product family.
func (c *Catalog) Family(id string) (*ProductFamily, error) {
	f, ok := c.families[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q (catalog %s)", ErrFamilyNotFound, id, c.Version)
	}
	return f, nil
}

// Families returns every family in the catalog, sorted by ID.
func (c *Catalog) Families() []*ProductFamily {
	out := make([]*ProductFamily, 0, len(c.families))
	for _, f := range c.families {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
