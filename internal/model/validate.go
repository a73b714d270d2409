package model

import (
	"fmt"
	"sort"

	"github.com/atelier-stores/matplan/internal/formula"
)

// Warning is a non-fatal configuration finding. Warnings are surfaced at
// catalog load; planning runs proceed with first-match-wins resolution.
type Warning struct {
	Family string
	Detail string
}

func (w Warning) String() string {
	return fmt.Sprintf("family %s: %s", w.Family, w.Detail)
}

// extraLineVars are variables the engine injects when evaluating material
// line conditions, beyond the piece's own attributes.
var extraLineVars = map[string]bool{"cut_across": true}

// ValidateFamily checks a family's rule configuration at load time.
//
// Hard errors: any formula or predicate referencing a variable the family
// does not declare, or a material line naming an unknown selection group.
// Warnings: selection rules or alternate formula conditions whose ranges
// overlap, detected by probing a dimension grid across the family's boolean
// attribute combinations. Overlaps resolve first-match-wins at runtime, but
// relying on declaration order is a configuration smell worth flagging.
func ValidateFamily(f *ProductFamily) ([]Warning, error) {
	known := knownVars(f)
	allowed := func(name string) bool { return known[name] }

	check := func(e *formula.Expr, what string) error {
		if e == nil {
			return nil
		}
		if err := e.Validate(allowed); err != nil {
			return fmt.Errorf("family %s, %s: %w", f.ID, what, err)
		}
		return nil
	}

	for i, ov := range f.Overrides {
		if err := check(ov.When, fmt.Sprintf("override %d condition", i)); err != nil {
			return nil, err
		}
		if err := check(ov.To, fmt.Sprintf("override %d value", i)); err != nil {
			return nil, err
		}
	}
	for _, g := range f.Groups {
		for i, r := range g.Rules {
			if err := check(r.When, fmt.Sprintf("group %q rule %d", g.Name, i)); err != nil {
				return nil, err
			}
		}
	}
	for _, l := range f.Lines {
		what := l.Code
		if what == "" {
			what = "group:" + l.SelectionGroup
		}
		if l.SelectionGroup != "" {
			if _, ok := f.Group(l.SelectionGroup); !ok {
				return nil, fmt.Errorf("family %s, line %s: %w %q", f.ID, what, ErrUnknownSelectionGroup, l.SelectionGroup)
			}
		}
		if err := check(l.Default, fmt.Sprintf("line %s default formula", what)); err != nil {
			return nil, err
		}
		for i, alt := range l.Alternates {
			if err := check(alt.When, fmt.Sprintf("line %s alternate %d condition", what, i)); err != nil {
				return nil, err
			}
			if err := check(alt.Formula, fmt.Sprintf("line %s alternate %d formula", what, i)); err != nil {
				return nil, err
			}
		}
	}

	var warnings []Warning
	for _, g := range f.Groups {
		preds := make([]*formula.Expr, len(g.Rules))
		for i, r := range g.Rules {
			preds[i] = r.When
		}
		ambiguous, shadowed := probeRules(f, preds)
		for _, pair := range ambiguous {
			if g.Rules[pair[0]].Code == g.Rules[pair[1]].Code {
				continue
			}
			warnings = append(warnings, Warning{
				Family: f.ID,
				Detail: fmt.Sprintf("selection group %q: rules %d (%s) and %d (%s) partially overlap; rule %d wins by declaration order where both match",
					g.Name, pair[0], g.Rules[pair[0]].Code, pair[1], g.Rules[pair[1]].Code, pair[0]),
			})
		}
		for _, i := range shadowed {
			warnings = append(warnings, Warning{
				Family: f.ID,
				Detail: fmt.Sprintf("selection group %q: rule %d (%s) is shadowed by earlier rules and can never match first",
					g.Name, i, g.Rules[i].Code),
			})
		}
	}
	for _, l := range f.Lines {
		if len(l.Alternates) < 2 {
			continue
		}
		preds := make([]*formula.Expr, len(l.Alternates))
		for i, alt := range l.Alternates {
			preds[i] = alt.When
		}
		what := l.Code
		if what == "" {
			what = "group:" + l.SelectionGroup
		}
		ambiguous, _ := probeRules(f, preds)
		for _, pair := range ambiguous {
			warnings = append(warnings, Warning{
				Family: f.ID,
				Detail: fmt.Sprintf("line %s: alternate formula conditions %d and %d partially overlap; condition %d wins by declaration order where both match",
					what, pair[0], pair[1], pair[0]),
			})
		}
	}
	return warnings, nil
}

// ValidateCatalog validates every family and returns all warnings.
func ValidateCatalog(c *Catalog) ([]Warning, error) {
	var all []Warning
	for _, f := range c.Families() {
		w, err := ValidateFamily(f)
		if err != nil {
			return nil, err
		}
		all = append(all, w...)
	}
	return all, nil
}

func knownVars(f *ProductFamily) map[string]bool {
	known := map[string]bool{"width": true, "height": true, "area": true}
	for v := range extraLineVars {
		known[v] = true
	}
	for _, a := range f.Attributes {
		known[a.Name] = true
	}
	// Attributes introduced by overrides are visible to later rules.
	for _, ov := range f.Overrides {
		known[ov.Set] = true
	}
	return known
}

// probeRules evaluates a list of ordered predicates over a grid of
// dimensions and boolean attribute combinations.
//
// An ordered rule table where each rule widens the previous one ("width <=
// 2", "width <= 3", "true") is the intended first-match-wins idiom and is not
// flagged. What gets flagged as ambiguous is a partial overlap: a pair of
// rules where each matches points the other does not, yet both match some
// common point (the rotated-vs-gallery shape of conflict), so the winner
// depends on incidental declaration order. Rules that never match first at
// any probe point are reported as shadowed.
//
// Probing is a heuristic: it cannot prove disjointness, but it catches the
// overlapping numeric ranges that loosely-ordered rule tables accumulate.
func probeRules(f *ProductFamily, preds []*formula.Expr) (ambiguous [][2]int, shadowed []int) {
	boolVars := probedBoolVars(f, preds)
	if len(boolVars) > 5 {
		boolVars = boolVars[:5] // keep the combination space bounded
	}
	numVars := probedNumberVars(f, preds)
	if len(numVars) > 2 {
		numVars = numVars[:2]
	}
	numGrid := []float64{0.5, 1.5, 2.5, 3.5, 4.5}

	type overlap struct{ both, firstOnly, secondOnly bool }
	overlaps := map[[2]int]*overlap{}
	wins := make([]bool, len(preds))
	matched := make([]bool, len(preds))

	numCombos := 1
	for range numVars {
		numCombos *= len(numGrid)
	}

	for combo := 0; combo < 1<<len(boolVars); combo++ {
		env := probeEnv(f)
		for i, name := range boolVars {
			env[name] = formula.Bool(combo&(1<<i) != 0)
		}
		for nc := 0; nc < numCombos; nc++ {
			idx := nc
			for _, name := range numVars {
				env[name] = formula.Number(numGrid[idx%len(numGrid)])
				idx /= len(numGrid)
			}
			for w := 0.2; w <= 6.0; w += 0.1 {
				for _, h := range []float64{0.8, 1.6, 2.4, 3.2} {
					env["width"] = formula.Number(w)
					env["height"] = formula.Number(h)
					env["area"] = formula.Number(w * h)

					for i := range matched {
						m, err := preds[i].EvalBool(env)
						matched[i] = err == nil && m
					}
					for i := 0; i < len(preds); i++ {
						if matched[i] {
							wins[i] = true
							break
						}
					}
					for i := 0; i < len(preds); i++ {
						for j := i + 1; j < len(preds); j++ {
							if !matched[i] && !matched[j] {
								continue
							}
							key := [2]int{i, j}
							o := overlaps[key]
							if o == nil {
								o = &overlap{}
								overlaps[key] = o
							}
							switch {
							case matched[i] && matched[j]:
								o.both = true
							case matched[i]:
								o.firstOnly = true
							default:
								o.secondOnly = true
							}
						}
					}
				}
			}
		}
	}

	for key, o := range overlaps {
		if o.both && o.firstOnly && o.secondOnly {
			ambiguous = append(ambiguous, key)
		}
	}
	sort.Slice(ambiguous, func(i, j int) bool {
		if ambiguous[i][0] != ambiguous[j][0] {
			return ambiguous[i][0] < ambiguous[j][0]
		}
		return ambiguous[i][1] < ambiguous[j][1]
	})
	for i, won := range wins {
		if !won {
			shadowed = append(shadowed, i)
		}
	}
	return ambiguous, shadowed
}

// probedBoolVars lists the boolean variables the predicates reference,
// in sorted order.
func probedBoolVars(f *ProductFamily, preds []*formula.Expr) []string {
	boolKind := map[string]bool{"cut_across": true}
	for _, a := range f.Attributes {
		if a.Kind == formula.KindBool {
			boolKind[a.Name] = true
		}
	}
	// Attributes set by overrides are probed as booleans; overrides that
	// assign non-bool values simply never satisfy a bool predicate.
	for _, ov := range f.Overrides {
		if _, declared := boolKind[ov.Set]; !declared {
			boolKind[ov.Set] = true
		}
	}
	set := map[string]bool{}
	for _, p := range preds {
		for _, v := range p.Vars() {
			if boolKind[v] {
				set[v] = true
			}
		}
	}
	vars := make([]string, 0, len(set))
	for v := range set {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// probedNumberVars lists the declared numeric attributes the predicates
// reference, in sorted order. Width, height, and area are always varied.
func probedNumberVars(f *ProductFamily, preds []*formula.Expr) []string {
	numKind := map[string]bool{}
	for _, a := range f.Attributes {
		if a.Kind == formula.KindNumber {
			numKind[a.Name] = true
		}
	}
	set := map[string]bool{}
	for _, p := range preds {
		for _, v := range p.Vars() {
			if numKind[v] {
				set[v] = true
			}
		}
	}
	vars := make([]string, 0, len(set))
	for v := range set {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// probeEnv seeds a probe environment with every declared attribute's default
// (or its kind's zero value).
func probeEnv(f *ProductFamily) formula.MapEnv {
	env := formula.MapEnv{}
	for _, a := range f.Attributes {
		if a.Default != nil {
			env[a.Name] = a.Default.Value()
			continue
		}
		switch a.Kind {
		case formula.KindBool:
			env[a.Name] = formula.Bool(false)
		case formula.KindString:
			env[a.Name] = formula.String("")
		default:
			env[a.Name] = formula.Number(0)
		}
	}
	for _, ov := range f.Overrides {
		if _, ok := env[ov.Set]; !ok {
			env[ov.Set] = formula.Bool(false)
		}
	}
	env["cut_across"] = formula.Bool(false)
	return env
}
