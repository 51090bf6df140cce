package valuation

import (
	"math"
	"time"
)

const yearDuration = 365 * 24 * time.Hour

// AgeYears returns the number of whole 365-day years between planting and
// valuation, never negative.
func AgeYears(planting, valuation time.Time) int {
	years := math.Floor(float64(valuation.Sub(planting)) / float64(yearDuration))
	if years < 0 || math.IsNaN(years) {
		return 0
	}
	return int(years)
}

// EffectiveDiscountRate clamps rates at or below -100% (and NaN) to zero
func EffectiveDiscountRate(rate float64) float64 {
	if rate > -1 {
		return rate
	}
	return 0
}

func realizationFactor(block BlockData) float64 {
	if block.RealizationFactor == nil {
		return 1.0
	}
	rf := *block.RealizationFactor
	if rf == 0 || math.IsNaN(rf) {
		return 1.0
	}
	return rf
}

func isMissing(v *float64) bool {
	return v == nil || *v == 0 || math.IsNaN(*v)
}

// ValueBlock computes the full valuation of a single block as of the given
// date. Data gaps never fail the calculation; they degrade to zero values and
// are reported through QA flags. lookups may be nil.
func ValueBlock(block BlockData, asOf Date, lookups *Lookups) BlockResult {
	t := newTrace()
	area := block.BlockAreaHa
	if math.IsNaN(area) {
		area = 0
	}

	// Age
	age := AgeYears(block.PlantingDate.Time, asOf.Time)
	t.step("Age calculation: %d years from planting date %s", age, block.PlantingDate.String())

	if !(area > 0) {
		t.flag(FlagNonPositiveArea)
	}

	// Yield
	rf := realizationFactor(block)
	yieldCurve, hasYieldCurve := lookups.yieldCurve(block.AgeYieldCurveID)

	var yieldPerHa float64
	switch block.YieldSource {
	case YieldSourceMeasured:
		if isMissing(block.ProductionTonsPeriod) || block.PeriodDays == nil || *block.PeriodDays == 0 || area == 0 {
			t.flag(FlagMissingProduction)
		} else {
			effectiveYears := float64(*block.PeriodDays) / 365
			if effectiveYears <= 0 {
				t.flag(FlagInvalidPeriodDays)
			} else {
				yieldPerHa = (*block.ProductionTonsPeriod * 1000) / (area * effectiveYears)
				t.step("Measured yield: %v tons over %d days = %.0f kg/ha",
					*block.ProductionTonsPeriod, *block.PeriodDays, yieldPerHa)
			}
		}
	default:
		if !hasYieldCurve {
			t.flag(FlagMissingYieldCurve)
		} else {
			base, _ := yieldCurve.At(age)
			yieldPerHa = base * rf
			t.step("Modeled yield: %v kg/ha x %v = %.0f kg/ha", base, rf, yieldPerHa)
		}
	}

	var modeledCurve Curve
	if block.YieldSource != YieldSourceMeasured && hasYieldCurve {
		modeledCurve = yieldCurve
	}

	// Earliest productive age
	threshold, hasThreshold := modeledCurve.EarliestPositiveAge()
	if block.ImproductiveYears != nil {
		threshold, hasThreshold = *block.ImproductiveYears, true
		t.step("Productive threshold: age %d (improductive years override)", threshold)
	} else if hasThreshold {
		t.step("Productive threshold: age %d (first positive yield on curve)", threshold)
	}

	projectedYield := func(projectedAge int) float64 {
		if block.YieldSource == YieldSourceMeasured {
			return yieldPerHa
		}
		v, ok := modeledCurve.At(projectedAge)
		if !ok {
			return 0
		}
		return v * rf
	}

	// Direct costs
	costs := newCostResolver(block, lookups, t)
	current := costs.costForAge(age)
	directCostPerHa := current.value
	t.step("Cost reference: %s = %.0f COP/ha", current.source, directCostPerHa)

	// Income
	price := block.PriceFarmgateCOPPerKg
	grossIncome := yieldPerHa * price * area
	finCost := block.FinancedAmountCOP * block.EARate
	totalInvest := directCostPerHa*area + finCost
	netIncome := grossIncome - totalInvest

	t.step("Gross income: %.0f kg/ha x %v COP/kg x %v ha = %.0f COP", yieldPerHa, price, area, grossIncome)
	t.step("Financial cost: %.0f COP x %.1f%% = %.0f COP", block.FinancedAmountCOP, block.EARate*100, finCost)
	t.step("Total investment: %.0f COP", totalInvest)
	t.step("Net income: %.0f - %.0f = %.0f COP", grossIncome, totalInvest, netIncome)

	// Break-even uses the current period only; prior periods enter through outlays
	priorOutlays := 0.0
	if block.CumulativeOutlaysToDateCOP != nil && !math.IsNaN(*block.CumulativeOutlaysToDateCOP) {
		priorOutlays = *block.CumulativeOutlaysToDateCOP
	}
	cumInflows := grossIncome
	cumOutflows := totalInvest + priorOutlays
	breakeven := cumInflows >= cumOutflows

	// Phase
	var productive bool
	if hasThreshold {
		productive = age >= threshold
	} else {
		productive = yieldPerHa > 0 || netIncome > 0
	}
	phase := PhaseImproductive
	if productive {
		phase = PhaseProductive
	}
	peFlag := PEFlagNotReached
	if breakeven {
		peFlag = PEFlagReached
	}

	t.step("Phase: %s (age %d years, yield %.0f kg/ha)", phase, age, yieldPerHa)
	t.step("Break-even: %s (cumulative inflows %.0f vs outflows %.0f)", peFlag, cumInflows, cumOutflows)

	// Value
	rate := EffectiveDiscountRate(block.DNPDiscountRate)
	cycleEnd := age
	projectionYears := 0
	var value float64

	if phase == PhaseImproductive {
		value = totalInvest
		if block.CumulativeOutlaysToDateCOP != nil {
			value = priorOutlays
		}
		t.step("Improductive valuation: accumulated investment %.0f COP", value)
		if block.INPFactor == nil {
			t.step("INP factor: %.2f (default)", block.EffectiveINPFactor())
		} else {
			t.step("INP factor: %.2f", block.EffectiveINPFactor())
		}
	} else {
		if maxAge, ok := modeledCurve.MaxAge(); ok && maxAge > cycleEnd {
			cycleEnd = maxAge
		}
		if maxAge, ok := costs.curve.MaxAge(); ok && maxAge > cycleEnd {
			cycleEnd = maxAge
		}
		projectionYears = cycleEnd - age

		discountedFuture := 0.0
		for offset := 1; offset <= projectionYears; offset++ {
			projectedAge := age + offset
			revenue := projectedYield(projectedAge) * price * area
			cost := costs.costForAge(projectedAge).value * area
			netCash := revenue - cost
			discountedFuture += netCash / math.Pow(1+rate, float64(offset+1))
			t.step("Cash flow year %d (age %d): revenue %.0f - costs %.0f = %.0f COP",
				offset, projectedAge, revenue, cost, netCash)
		}
		if projectionYears == 0 {
			t.step("No remaining productive years found; future flows omitted.")
		}

		discountedCurrent := netIncome / (1 + rate)
		t.step("Discounted future flows (%d years) at %.2f%% = %.0f COP", projectionYears, rate*100, discountedFuture)
		value = discountedCurrent + discountedFuture
		t.step("Productive valuation: discounted net %.0f + discounted future flows %.0f = %.0f COP",
			discountedCurrent, discountedFuture, value)
	}

	valuePerHa := 0.0
	if area > 0 {
		valuePerHa = value / area
	}

	// Tier
	var tier Tier
	var explanation string
	switch {
	case block.YieldSource == YieldSourceMeasured && len(block.EvidenceUploads) > 0:
		tier = TierA
		explanation = "Measured yield supported by uploaded evidence"
	case price == 0 || math.IsNaN(price):
		tier = TierC
		explanation = "Farmgate price is missing"
		t.flag(FlagMissingCriticalInput)
	case directCostPerHa == 0:
		tier = TierC
		explanation = "Direct costs resolved to zero"
		t.flag(FlagMissingCriticalInput)
	case block.YieldSource == YieldSourceMeasured:
		tier = TierB
		explanation = "Measured yield without supporting evidence"
	default:
		tier = TierB
		explanation = "Modeled yield from age-yield curve"
	}
	t.step("Confidence tier: %s (%s)", tier, explanation)

	return BlockResult{
		BlockID:             block.BlockID,
		BlockAreaHa:         block.BlockAreaHa,
		AgeYears:            age,
		YieldKgPerHa:        yieldPerHa,
		DirectCostsCOPPerHa: directCostPerHa,
		GrossIncomeCOP:      grossIncome,
		FinCostCOP:          finCost,
		TotalInvestCOP:      totalInvest,
		NetIncomeCOP:        netIncome,
		CumInflowsCOP:       cumInflows,
		CumOutflowsCOP:      cumOutflows,
		BreakevenReached:    breakeven,
		Phase:               phase,
		PEFlag:              peFlag,
		ValueBlockCOP:       value,
		ValueBlockCOPPerHa:  valuePerHa,
		NPV:                 value,
		Tier:                tier,
		TierExplanation:     explanation,
		QAFlags:             t.flags,
		CostSourceDetail:    current.source,
		ResolvedCostCurveID: costs.curveID,
		CycleEndAge:         cycleEnd,
		ProjectionYears:     projectionYears,
		CalculationSteps:    t.steps,
	}
}
