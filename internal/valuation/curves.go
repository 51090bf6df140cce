package valuation

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
)

// Curve maps an integer plant age in years to a per-hectare value
// (kg/ha for yield curves, COP/ha for cost curves).
type Curve map[int]float64

// At returns the value recorded for age. NaN entries count as absent.
func (c Curve) At(age int) (float64, bool) {
	v, ok := c[age]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Ages returns the curve's ages in ascending order
func (c Curve) Ages() []int {
	ages := make([]int, 0, len(c))
	for age := range c {
		ages = append(ages, age)
	}
	sort.Ints(ages)
	return ages
}

// MaxAge returns the largest age in the curve
func (c Curve) MaxAge() (int, bool) {
	if len(c) == 0 {
		return 0, false
	}
	ages := c.Ages()
	return ages[len(ages)-1], true
}

// EarliestPositiveAge returns the smallest age whose value is strictly positive
func (c Curve) EarliestPositiveAge() (int, bool) {
	for _, age := range c.Ages() {
		if v, ok := c.At(age); ok && v > 0 {
			return age, true
		}
	}
	return 0, false
}

// NearestAge returns the age in the ascending list closest to target.
// Equidistant candidates resolve to the lower age.
func NearestAge(sortedAges []int, target int) (int, bool) {
	if len(sortedAges) == 0 {
		return 0, false
	}
	nearest := sortedAges[0]
	for _, age := range sortedAges[1:] {
		if absInt(age-target) < absInt(nearest-target) {
			nearest = age
		}
	}
	return nearest, true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Cost curve aliases for oil palm references
const (
	aliasOxG               = "oil_palm_cost_oxg"
	aliasPalmaeGuinensis   = "oil_palm_cost_palmaeguinensis"
	aliasGuinensisTest     = "eguinensis_prueba"
	aliasGuinensisTestCost = "eguinensis_prueba_cost"
)

// NormalizeCurveID replaces hyphens and whitespace with underscores
func NormalizeCurveID(id string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, id)
}

// CostCurveCandidates lists the cost curve ids to try for a block, in
// priority order and without duplicates.
func CostCurveCandidates(yieldCurveID, costTemplateID string) []string {
	seen := make(map[string]struct{})
	var candidates []string
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		candidates = append(candidates, id)
	}

	if yieldCurveID != "" {
		add(yieldCurveID)
		add(NormalizeCurveID(yieldCurveID))

		lower := strings.ToLower(yieldCurveID)
		if strings.Contains(lower, "oxg") {
			add(aliasOxG)
		}
		if strings.Contains(lower, "eguinensis") || strings.Contains(lower, "eguine") || strings.Contains(lower, "palma") {
			add(aliasPalmaeGuinensis)
			add(aliasGuinensisTest)
			add(aliasGuinensisTestCost)
		}
	}
	if costTemplateID != "" {
		add(costTemplateID)
		add(NormalizeCurveID(costTemplateID))
	}
	return candidates
}

// ResolveCostCurve finds the first candidate present in curves, trying an
// exact key and then a case-insensitive match. It returns the matched key.
func ResolveCostCurve(curves map[string]Curve, yieldCurveID, costTemplateID string) (string, Curve, bool) {
	if len(curves) == 0 {
		return "", nil, false
	}

	keys := make([]string, 0, len(curves))
	for key := range curves {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, candidate := range CostCurveCandidates(yieldCurveID, costTemplateID) {
		if curve, ok := curves[candidate]; ok && curve != nil {
			return candidate, curve, true
		}
		lower := strings.ToLower(candidate)
		for _, key := range keys {
			if strings.ToLower(key) == lower && curves[key] != nil {
				return key, curves[key], true
			}
		}
	}
	return "", nil, false
}

// costQuote is a per-hectare cost together with a label for the trace
type costQuote struct {
	value  float64
	source string
}

// costResolver prices a block's direct costs at any age. It raises the
// missing cost flag at most once per block.
type costResolver struct {
	source        CostSource
	curveID       string
	curve         Curve
	curveAges     []int
	templateID    string
	templateTotal float64
	hasTemplate   bool
	customTotal   float64
	trace         *trace
	flagged       bool
}

func newCostResolver(block BlockData, lookups *Lookups, t *trace) *costResolver {
	r := &costResolver{
		source:      block.CostSource,
		templateID:  block.CostTemplateID,
		customTotal: block.CostBreakdown.Total(),
		trace:       t,
	}

	if lookups != nil {
		if id, curve, ok := ResolveCostCurve(lookups.CostCurves, block.AgeYieldCurveID, block.CostTemplateID); ok {
			r.curveID = id
			r.curve = curve
			r.curveAges = curve.Ages()
		}
	}
	if tmpl, ok := lookups.costTemplate(block.CostTemplateID); ok {
		r.templateTotal = tmpl.Total()
		r.hasTemplate = !math.IsNaN(r.templateTotal)
	}
	return r
}

// costForAge resolves the direct cost per hectare at the given age
func (r *costResolver) costForAge(age int) costQuote {
	if r.source != CostSourceStandardTemplate {
		return costQuote{value: r.customTotal, source: "custom costs"}
	}

	if r.curve != nil {
		if v, ok := r.curve.At(age); ok {
			return costQuote{value: v, source: fmt.Sprintf("cost curve %s (age %d)", r.curveID, age)}
		}
		if nearest, ok := NearestAge(r.curveAges, age); ok {
			if v, ok := r.curve.At(nearest); ok {
				return costQuote{value: v, source: fmt.Sprintf("cost curve %s (nearest age %d)", r.curveID, nearest)}
			}
		}
	}

	if r.hasTemplate {
		return costQuote{value: r.templateTotal, source: fmt.Sprintf("template %s", r.templateID)}
	}

	if !r.flagged {
		r.trace.flag(FlagMissingCostData)
		r.flagged = true
	}
	return costQuote{value: 0, source: "no cost data"}
}
