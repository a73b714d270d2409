package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-stores/matplan/internal/formula"
)

func TestAttrValue_JSONRoundTrip(t *testing.T) {
	p := NewPiece("roller-shade", 2.40, 2.00)
	p.Attrs["motorized"] = BoolAttr(true)
	p.Attrs["control_side"] = StringAttr("left")
	p.Attrs["projection"] = NumberAttr(2.5)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"motorized":true`)
	assert.Contains(t, string(data), `"control_side":"left"`)

	var back Piece
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p.Attrs, back.Attrs)
	assert.Equal(t, 2.40, back.Width)
}

func TestPiece_EnvExposesDimensionsAndAttrs(t *testing.T) {
	p := NewPiece("roller-shade", 2.40, 2.00)
	p.Attrs["motorized"] = BoolAttr(true)

	env := p.Env()
	v, ok := env.Lookup("area")
	require.True(t, ok)
	assert.InDelta(t, 4.80, v.Num, 1e-9)

	v, ok = env.Lookup("motorized")
	require.True(t, ok)
	assert.True(t, v.Bool)

	_, ok = env.Lookup("no_such_attr")
	assert.False(t, ok)
}

func TestCatalog_Family_NotFound(t *testing.T) {
	cat := DefaultCatalog()

	f, err := cat.Family("roller-shade")
	require.NoError(t, err)
	assert.Equal(t, "roller-shade", f.ID)

	_, err = cat.Family("venetian")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFamilyNotFound)
}

func TestNormalizePiece_FillsDefaults(t *testing.T) {
	cat := DefaultCatalog()
	f, err := cat.Family("roller-shade")
	require.NoError(t, err)

	p := NewPiece("roller-shade", 2.40, 2.00)
	norm, err := NormalizePiece(f, p)
	require.NoError(t, err)

	assert.False(t, norm.Bool("motorized"))
	assert.False(t, norm.Bool("rotated"))
	v, ok := norm.Attrs["control_side"]
	require.True(t, ok)
	assert.Equal(t, "right", v.Value().Str)

	// The input piece is untouched.
	_, ok = p.Attrs["motorized"]
	assert.False(t, ok)
}

func TestNormalizePiece_WideShadeForcedMotorized(t *testing.T) {
	cat := DefaultCatalog()
	f, err := cat.Family("roller-shade")
	require.NoError(t, err)

	p := NewPiece("roller-shade", 3.20, 2.00)
	norm, err := NormalizePiece(f, p)
	require.NoError(t, err)
	assert.True(t, norm.Bool("motorized"), "width > 3.00 must force motorization")
}

func TestNormalizePiece_RotatedTallFabricNeedsHeatSeam(t *testing.T) {
	cat := DefaultCatalog()
	f, err := cat.Family("roller-shade")
	require.NoError(t, err)

	p := NewPiece("roller-shade", 2.40, 3.00).WithAttr("rotated", BoolAttr(true))
	norm, err := NormalizePiece(f, p)
	require.NoError(t, err)
	assert.True(t, norm.Bool("requires_heat_seam"))

	short, err := NormalizePiece(f, NewPiece("roller-shade", 2.40, 2.00).WithAttr("rotated", BoolAttr(true)))
	require.NoError(t, err)
	assert.False(t, short.Bool("requires_heat_seam"))
}

func TestNormalizePiece_SequentialOverrides(t *testing.T) {
	// The second override reads an attribute set by the first: a single
	// ordered pass, not simultaneous application.
	f := &ProductFamily{
		ID: "test",
		Attributes: []AttributeSpec{
			boolAttr("a", false),
			boolAttr("b", false),
		},
		Overrides: []OverrideRule{
			{When: formula.MustParse("width > 1.0"), Set: "a", To: formula.MustParse("true")},
			{When: formula.MustParse("a"), Set: "b", To: formula.MustParse("true")},
		},
	}
	norm, err := NormalizePiece(f, NewPiece("test", 2.0, 1.0))
	require.NoError(t, err)
	assert.True(t, norm.Bool("a"))
	assert.True(t, norm.Bool("b"), "later overrides must see earlier effects")
}

func TestNormalizePiece_MissingRequiredAttribute(t *testing.T) {
	cat := DefaultCatalog()
	f, err := cat.Family("awning")
	require.NoError(t, err)

	_, err = NormalizePiece(f, NewPiece("awning", 4.00, 2.50))
	require.Error(t, err)
	var missing *MissingAttributeError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "projection", missing.Attr)

	_, err = NormalizePiece(f, NewPiece("awning", 4.00, 2.50).WithAttr("projection", NumberAttr(2.5)))
	assert.NoError(t, err)
}

func TestResolveComponent_MechanismSelection(t *testing.T) {
	cat := DefaultCatalog()
	f, err := cat.Family("roller-shade")
	require.NoError(t, err)

	tests := []struct {
		width     float64
		motorized bool
		want      string
	}{
		{2.40, false, "RS-MEC-STD"}, // manual, <= 2.50 m
		{2.80, false, "RS-MEC-HD"},
		{2.40, true, "RS-MOT-45"},
	}
	for _, tc := range tests {
		p := NewPiece("roller-shade", tc.width, 2.00)
		p.Attrs["motorized"] = BoolAttr(tc.motorized)
		rule, err := f.ResolveComponent("mechanism", p)
		require.NoError(t, err)
		assert.Equal(t, tc.want, rule.Code)
	}
}

func TestResolveComponent_NoMatchingRule(t *testing.T) {
	f := &ProductFamily{
		ID: "test",
		Groups: []SelectionGroup{{
			Name: "g",
			Rules: []SelectionRule{
				{When: formula.MustParse("width <= 1.0"), Code: "A"},
			},
		}},
	}
	_, err := f.ResolveComponent("g", NewPiece("test", 2.0, 1.0))
	require.Error(t, err)
	var noMatch *NoComponentError
	assert.ErrorAs(t, err, &noMatch)

	_, err = f.ResolveComponent("missing-group", NewPiece("test", 2.0, 1.0))
	assert.ErrorIs(t, err, ErrUnknownSelectionGroup)
}

func TestValidateCatalog_DefaultIsClean(t *testing.T) {
	warnings, err := ValidateCatalog(DefaultCatalog())
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidateFamily_UnknownVariableFailsLoad(t *testing.T) {
	f := &ProductFamily{
		ID: "test",
		Lines: []MaterialLine{{
			Code:    "X",
			Type:    MaterialAccessory,
			Unit:    UnitPiece,
			Default: formula.MustParse("widht * 2"),
		}},
	}
	_, err := ValidateFamily(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widht")
}

func TestValidateFamily_UnknownSelectionGroup(t *testing.T) {
	f := &ProductFamily{
		ID:    "test",
		Lines: []MaterialLine{{SelectionGroup: "nope", Type: MaterialTube, Unit: UnitLinearMeter}},
	}
	_, err := ValidateFamily(f)
	assert.ErrorIs(t, err, ErrUnknownSelectionGroup)
}

func TestValidateFamily_FlagsPartialOverlap(t *testing.T) {
	// "rotated" and "has_gallery" each match pieces the other does not, and
	// both match a rotated+gallery piece: the winner depends on declaration
	// order, which is exactly what should be flagged.
	f := &ProductFamily{
		ID: "test",
		Attributes: []AttributeSpec{
			boolAttr("rotated", false),
			boolAttr("has_gallery", false),
		},
		Groups: []SelectionGroup{{
			Name: "finish",
			Rules: []SelectionRule{
				{When: formula.MustParse("rotated"), Code: "FIN-ROT"},
				{When: formula.MustParse("has_gallery"), Code: "FIN-GAL"},
			},
		}},
	}
	warnings, err := ValidateFamily(f)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Detail, "partially overlap")
}

func TestValidateFamily_FlagsShadowedRule(t *testing.T) {
	f := &ProductFamily{
		ID: "test",
		Groups: []SelectionGroup{{
			Name: "g",
			Rules: []SelectionRule{
				{When: formula.MustParse("true"), Code: "A"},
				{When: formula.MustParse("width <= 2.0"), Code: "B"},
			},
		}},
	}
	warnings, err := ValidateFamily(f)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Detail, "shadowed")
}

func TestValidateFamily_LadderedRangesAreClean(t *testing.T) {
	// Ordered widening ranges are the intended idiom, not a configuration bug.
	f := &ProductFamily{
		ID: "test",
		Groups: []SelectionGroup{{
			Name: "tube",
			Rules: []SelectionRule{
				{When: formula.MustParse("width <= 2.0"), Code: "T38"},
				{When: formula.MustParse("width <= 3.0"), Code: "T45"},
				{When: formula.MustParse("true"), Code: "T65"},
			},
		}},
	}
	warnings, err := ValidateFamily(f)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}
