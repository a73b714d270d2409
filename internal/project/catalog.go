// Package project handles on-disk persistence: the rule catalog, the
// inventory snapshot, and timestamped backups of both.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atelier-stores/matplan/internal/formula"
	"github.com/atelier-stores/matplan/internal/model"
)

// DefaultConfigDir returns the default directory for application data.
// On all platforms this is ~/.matplan/
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".matplan")
}

// DefaultCatalogPath returns the default path for the catalog file.
func DefaultCatalogPath() string {
	return filepath.Join(DefaultConfigDir(), "catalog.json")
}

// catalogFile is the on-disk shape of a catalog. Formulas are stored as
// their source text and compiled on load.
type catalogFile struct {
	Version  string       `json:"version"`
	Families []familyFile `json:"families"`
}

type familyFile struct {
	ID          string          `json:"id"`
	Description string          `json:"description,omitempty"`
	Attributes  []attributeFile `json:"attributes,omitempty"`
	Overrides   []overrideFile  `json:"overrides,omitempty"`
	Groups      []groupFile     `json:"groups,omitempty"`
	Lines       []lineFile      `json:"lines"`
}

type attributeFile struct {
	Name     string           `json:"name"`
	Kind     string           `json:"kind"`
	Required bool             `json:"required,omitempty"`
	Default  *model.AttrValue `json:"default,omitempty"`
}

type overrideFile struct {
	When string `json:"when"`
	Set  string `json:"set"`
	To   string `json:"to"`
}

type groupFile struct {
	Name  string     `json:"name"`
	Rules []ruleFile `json:"rules"`
}

type ruleFile struct {
	When        string `json:"when"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

type conditionalFile struct {
	When    string `json:"when"`
	Formula string `json:"formula"`
}

type lineFile struct {
	Code              string            `json:"code,omitempty"`
	Description       string            `json:"description,omitempty"`
	Type              string            `json:"type"`
	Unit              string            `json:"unit"`
	SelectionGroup    string            `json:"selection_group,omitempty"`
	Default           string            `json:"default,omitempty"`
	Alternates        []conditionalFile `json:"alternates,omitempty"`
	StockLength       float64           `json:"stock_length,omitempty"`
	Kerf              float64           `json:"kerf,omitempty"`
	MinRemnant        float64           `json:"min_remnant,omitempty"`
	MaxRotationHeight float64           `json:"max_rotation_height,omitempty"`
}

func parseKind(s string) (formula.Kind, error) {
	switch s {
	case "number":
		return formula.KindNumber, nil
	case "bool":
		return formula.KindBool, nil
	case "string":
		return formula.KindString, nil
	}
	return 0, fmt.Errorf("unknown attribute kind %q", s)
}

func compileOptional(src, where string) (*formula.Expr, error) {
	if src == "" {
		return nil, nil
	}
	e, err := formula.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", where, err)
	}
	return e, nil
}

func compileRequired(src, where string) (*formula.Expr, error) {
	if src == "" {
		return nil, fmt.Errorf("%s: formula is empty", where)
	}
	return compileOptional(src, where)
}

func buildFamily(ff familyFile) (*model.ProductFamily, error) {
	f := &model.ProductFamily{ID: ff.ID, Description: ff.Description}

	for _, a := range ff.Attributes {
		kind, err := parseKind(a.Kind)
		if err != nil {
			return nil, fmt.Errorf("family %s, attribute %s: %w", ff.ID, a.Name, err)
		}
		f.Attributes = append(f.Attributes, model.AttributeSpec{
			Name:     a.Name,
			Kind:     kind,
			Required: a.Required,
			Default:  a.Default,
		})
	}

	for i, o := range ff.Overrides {
		where := fmt.Sprintf("family %s, override %d", ff.ID, i)
		when, err := compileRequired(o.When, where)
		if err != nil {
			return nil, err
		}
		to, err := compileRequired(o.To, where)
		if err != nil {
			return nil, err
		}
		f.Overrides = append(f.Overrides, model.OverrideRule{When: when, Set: o.Set, To: to})
	}

	for _, g := range ff.Groups {
		group := model.SelectionGroup{Name: g.Name}
		for i, r := range g.Rules {
			where := fmt.Sprintf("family %s, group %s, rule %d", ff.ID, g.Name, i)
			when, err := compileRequired(r.When, where)
			if err != nil {
				return nil, err
			}
			group.Rules = append(group.Rules, model.SelectionRule{
				When:        when,
				Code:        r.Code,
				Description: r.Description,
			})
		}
		f.Groups = append(f.Groups, group)
	}

	for i, lf := range ff.Lines {
		where := fmt.Sprintf("family %s, line %d", ff.ID, i)
		def, err := compileOptional(lf.Default, where)
		if err != nil {
			return nil, err
		}
		line := model.MaterialLine{
			Code:              lf.Code,
			Description:       lf.Description,
			Type:              model.MaterialType(lf.Type),
			Unit:              model.Unit(lf.Unit),
			SelectionGroup:    lf.SelectionGroup,
			Default:           def,
			StockLength:       lf.StockLength,
			Kerf:              lf.Kerf,
			MinRemnant:        lf.MinRemnant,
			MaxRotationHeight: lf.MaxRotationHeight,
		}
		for j, alt := range lf.Alternates {
			altWhere := fmt.Sprintf("%s, alternate %d", where, j)
			when, err := compileRequired(alt.When, altWhere)
			if err != nil {
				return nil, err
			}
			form, err := compileRequired(alt.Formula, altWhere)
			if err != nil {
				return nil, err
			}
			line.Alternates = append(line.Alternates, model.ConditionalFormula{When: when, Formula: form})
		}
		f.Lines = append(f.Lines, line)
	}
	return f, nil
}

// LoadCatalog reads and compiles a catalog from the specified JSON file.
// Every formula is parsed and every family validated; a malformed or
// inconsistent catalog fails the load with the first hard error, and
// configuration smells come back as warnings. If the file does not exist,
// the built-in catalog is returned and saved to the path.
func LoadCatalog(path string) (*model.Catalog, []model.Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cat := model.DefaultCatalog()
			if saveErr := SaveCatalog(path, cat); saveErr != nil {
				return cat, nil, saveErr
			}
			warnings, _ := model.ValidateCatalog(cat)
			return cat, warnings, nil
		}
		return nil, nil, err
	}

	var cf catalogFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if cf.Version == "" {
		return nil, nil, fmt.Errorf("catalog %s: missing version field", path)
	}

	families := make([]*model.ProductFamily, 0, len(cf.Families))
	for _, ff := range cf.Families {
		f, err := buildFamily(ff)
		if err != nil {
			return nil, nil, err
		}
		families = append(families, f)
	}

	cat := model.NewCatalog(cf.Version, families...)
	warnings, err := model.ValidateCatalog(cat)
	if err != nil {
		return nil, warnings, err
	}
	return cat, warnings, nil
}

func exprSrc(e *formula.Expr) string {
	if e == nil {
		return ""
	}
	return e.Src
}

// SaveCatalog writes the catalog to the specified JSON file, storing every
// formula as its source text. It creates parent directories if needed.
func SaveCatalog(path string, cat *model.Catalog) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(catalogToFile(cat), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func catalogToFile(cat *model.Catalog) catalogFile {
	cf := catalogFile{Version: cat.Version}
	for _, f := range cat.Families() {
		ff := familyFile{ID: f.ID, Description: f.Description}
		for _, a := range f.Attributes {
			ff.Attributes = append(ff.Attributes, attributeFile{
				Name:     a.Name,
				Kind:     a.Kind.String(),
				Required: a.Required,
				Default:  a.Default,
			})
		}
		for _, o := range f.Overrides {
			ff.Overrides = append(ff.Overrides, overrideFile{
				When: exprSrc(o.When),
				Set:  o.Set,
				To:   exprSrc(o.To),
			})
		}
		for _, g := range f.Groups {
			gf := groupFile{Name: g.Name}
			for _, r := range g.Rules {
				gf.Rules = append(gf.Rules, ruleFile{
					When:        exprSrc(r.When),
					Code:        r.Code,
					Description: r.Description,
				})
			}
			ff.Groups = append(ff.Groups, gf)
		}
		for _, l := range f.Lines {
			lf := lineFile{
				Code:              l.Code,
				Description:       l.Description,
				Type:              string(l.Type),
				Unit:              string(l.Unit),
				SelectionGroup:    l.SelectionGroup,
				Default:           exprSrc(l.Default),
				StockLength:       l.StockLength,
				Kerf:              l.Kerf,
				MinRemnant:        l.MinRemnant,
				MaxRotationHeight: l.MaxRotationHeight,
			}
			for _, alt := range l.Alternates {
				lf.Alternates = append(lf.Alternates, conditionalFile{
					When:    exprSrc(alt.When),
					Formula: exprSrc(alt.Formula),
				})
			}
			ff.Lines = append(ff.Lines, lf)
		}
		cf.Families = append(cf.Families, ff)
	}
	return cf
}
