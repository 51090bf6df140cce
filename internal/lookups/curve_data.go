package lookups

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
)

// curvePoint is one element of the array form of curve_data
type curvePoint struct {
	Age          *float64 `json:"age"`
	Value        *float64 `json:"value"`
	YieldKgPerHa *float64 `json:"yield_kg_per_ha"`
	COPPerHa     *float64 `json:"cop_per_ha"`
}

func (p curvePoint) value() (float64, bool) {
	for _, v := range []*float64{p.Value, p.YieldKgPerHa, p.COPPerHa} {
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}

// ParseCurveData decodes a curve_data JSON document. Two shapes are accepted:
//
//	{"0": 0, "3": 4500, "4": 9000}
//	[{"age": 0, "value": 0}, {"age": 3, "yield_kg_per_ha": 4500}]
func ParseCurveData(data []byte) (valuation.Curve, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("curve data is empty")
	}

	switch trimmed[0] {
	case '{':
		var raw map[string]float64
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode curve object: %w", err)
		}
		curve := make(valuation.Curve, len(raw))
		for key, v := range raw {
			age, err := parseAge(key)
			if err != nil {
				return nil, err
			}
			curve[age] = v
		}
		return curve, nil

	case '[':
		var points []curvePoint
		if err := json.Unmarshal(trimmed, &points); err != nil {
			return nil, fmt.Errorf("failed to decode curve points: %w", err)
		}
		curve := make(valuation.Curve, len(points))
		for i, p := range points {
			if p.Age == nil {
				return nil, fmt.Errorf("curve point %d has no age", i)
			}
			v, ok := p.value()
			if !ok {
				return nil, fmt.Errorf("curve point %d has no value", i)
			}
			age, err := wholeAge(*p.Age)
			if err != nil {
				return nil, err
			}
			curve[age] = v
		}
		return curve, nil
	}

	return nil, fmt.Errorf("unsupported curve data shape")
}

func parseAge(key string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(key), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid curve age %q", key)
	}
	return wholeAge(f)
}

func wholeAge(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("curve age %v is not a whole number", f)
	}
	return int(f), nil
}
