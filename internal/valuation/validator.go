package valuation

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidInput is wrapped by validation failures
var ErrInvalidInput = errors.New("invalid valuation input")

// Typical range for the improductive phase factor
const (
	MinTypicalINPFactor = 0.30
	MaxTypicalINPFactor = 0.50
)

// ValidationResults contains validation outcomes. Errors reject the input;
// warnings are informational because the engine degrades gracefully.
type ValidationResults struct {
	IsValid       bool                `json:"is_valid"`
	Errors        []ValidationError   `json:"errors"`
	Warnings      []ValidationWarning `json:"warnings"`
	MissingFields []string            `json:"missing_fields"`
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationWarning represents a validation warning
type ValidationWarning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Err returns nil when the input is valid, otherwise an error wrapping ErrInvalidInput
func (r *ValidationResults) Err() error {
	if r == nil || r.IsValid {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func (r *ValidationResults) addError(field, code, msg string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: msg, Code: code})
	if code == "required" {
		r.MissingFields = append(r.MissingFields, field)
	}
}

func (r *ValidationResults) addWarning(field, code, msg string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: msg, Code: code})
}

// Validator checks that parcel input is well-formed before it reaches the engine
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateParcel validates a parcel and all of its blocks
func (v *Validator) ValidateParcel(parcel ParcelData) *ValidationResults {
	res := &ValidationResults{
		Errors:        []ValidationError{},
		Warnings:      []ValidationWarning{},
		MissingFields: []string{},
	}

	if strings.TrimSpace(parcel.ParcelID) == "" {
		res.addError("parcel_id", "required", "parcel_id is required")
	}
	if parcel.ValuationAsOfDate.IsZero() {
		res.addError("valuation_asof_date", "required", "valuation_asof_date is required")
	}
	if len(parcel.Blocks) == 0 {
		res.addError("blocks", "required", "at least one block is required")
	}
	if parcel.TotalParcelAreaHa < 0 {
		res.addWarning("total_parcel_area_ha", "negative", "total_parcel_area_ha is negative")
	}

	seen := make(map[string]int, len(parcel.Blocks))
	blockArea := 0.0
	for i, block := range parcel.Blocks {
		prefix := fmt.Sprintf("blocks[%d]", i)
		v.validateBlock(res, prefix, block, parcel.ValuationAsOfDate)

		if block.BlockID != "" {
			if first, dup := seen[block.BlockID]; dup {
				res.addWarning(prefix+".block_id", "duplicate",
					fmt.Sprintf("block_id %q duplicates blocks[%d]", block.BlockID, first))
			} else {
				seen[block.BlockID] = i
			}
		}
		if block.BlockAreaHa > 0 {
			blockArea += block.BlockAreaHa
		}
	}

	if parcel.TotalParcelAreaHa > 0 && blockArea > parcel.TotalParcelAreaHa {
		res.addWarning("total_parcel_area_ha", "area_mismatch",
			fmt.Sprintf("block areas sum to %.2f ha, exceeding parcel area %.2f ha", blockArea, parcel.TotalParcelAreaHa))
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

func (v *Validator) validateBlock(res *ValidationResults, prefix string, block BlockData, asOf Date) {
	if strings.TrimSpace(block.BlockID) == "" {
		res.addError(prefix+".block_id", "required", "block_id is required")
	}
	if block.PlantingDate.IsZero() {
		res.addError(prefix+".planting_date", "required", "planting_date is required")
	} else if !asOf.IsZero() && block.PlantingDate.After(asOf.Time) {
		res.addWarning(prefix+".planting_date", "future_planting", "planting_date is after the valuation date; age will be 0")
	}
	if !block.YieldSource.IsValid() {
		res.addError(prefix+".yield_source", "invalid",
			fmt.Sprintf("yield_source must be %q or %q", YieldSourceMeasured, YieldSourceModeled))
	}
	if !block.CostSource.IsValid() {
		res.addError(prefix+".cost_source", "invalid",
			fmt.Sprintf("cost_source must be %q or %q", CostSourceStandardTemplate, CostSourceCustomEntered))
	}

	if !(block.BlockAreaHa > 0) {
		res.addWarning(prefix+".block_area_ha", "non_positive", "block_area_ha should be greater than zero")
	}
	if !(block.PriceFarmgateCOPPerKg > 0) {
		res.addWarning(prefix+".price_farmgate_cop_per_kg", "missing_price", "price_farmgate_cop_per_kg is missing; tier will be C")
	}

	switch block.YieldSource {
	case YieldSourceMeasured:
		if isMissing(block.ProductionTonsPeriod) || block.PeriodDays == nil {
			res.addWarning(prefix+".production_tons_period", "missing_production", "measured blocks need production_tons_period and period_days")
		}
		if len(block.EvidenceUploads) == 0 {
			res.addWarning(prefix+".evidence_uploads", "no_evidence", "measured yield without evidence cannot reach tier A")
		}
	case YieldSourceModeled:
		if block.AgeYieldCurveID == "" {
			res.addWarning(prefix+".age_yield_curve_id", "missing_curve", "modeled blocks need age_yield_curve_id")
		}
		if block.RealizationFactor != nil && *block.RealizationFactor < 0 {
			res.addWarning(prefix+".realization_factor", "negative", "realization_factor is negative")
		}
	}

	if block.CostSource == CostSourceStandardTemplate && block.CostTemplateID == "" && block.AgeYieldCurveID == "" {
		res.addWarning(prefix+".cost_template_id", "missing_template", "standard_template blocks need cost_template_id or a curve reference")
	}

	if block.INPFactor != nil {
		inp := *block.INPFactor
		if inp < MinTypicalINPFactor || inp > MaxTypicalINPFactor {
			res.addWarning(prefix+".inp_factor", "atypical",
				fmt.Sprintf("inp_factor %.2f is outside the typical %.2f-%.2f range", inp, MinTypicalINPFactor, MaxTypicalINPFactor))
		}
	}
	if block.ImproductiveYears != nil && *block.ImproductiveYears < 0 {
		res.addWarning(prefix+".improductive_years", "negative", "improductive_years is negative")
	}
	if block.DNPDiscountRate <= -1 || math.IsNaN(block.DNPDiscountRate) {
		res.addWarning(prefix+".dnp_discount_rate", "clamped", "dnp_discount_rate at or below -100% is treated as 0")
	}
}
