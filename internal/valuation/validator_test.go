package valuation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func warningCodes(res *ValidationResults) []string {
	codes := make([]string, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		codes = append(codes, w.Code)
	}
	return codes
}

func TestValidator_ValidParcel(t *testing.T) {
	v := NewValidator()
	parcel := twoBlockParcel()
	parcel.Blocks[1].PriceFarmgateCOPPerKg = 900

	res := v.ValidateParcel(parcel)

	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.NoError(t, res.Err())
}

func TestValidator_RequiredFields(t *testing.T) {
	v := NewValidator()

	res := v.ValidateParcel(ParcelData{})

	assert.False(t, res.IsValid)
	assert.ElementsMatch(t, []string{"parcel_id", "valuation_asof_date", "blocks"}, res.MissingFields)

	err := res.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "parcel_id")
}

func TestValidator_BlockErrors(t *testing.T) {
	v := NewValidator()
	parcel := ParcelData{
		ParcelID:          "p",
		ValuationAsOfDate: asOf2020,
		Blocks: []BlockData{
			{YieldSource: "guessed", CostSource: "free"},
		},
	}

	res := v.ValidateParcel(parcel)

	require.False(t, res.IsValid)
	fields := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"blocks[0].block_id",
		"blocks[0].planting_date",
		"blocks[0].yield_source",
		"blocks[0].cost_source",
	}, fields)
}

func TestValidator_Warnings(t *testing.T) {
	v := NewValidator()

	dup := measuredBlock()
	dup.BlockAreaHa = 0
	dup.PriceFarmgateCOPPerKg = 0
	dup.INPFactor = f64(0.7)
	dup.DNPDiscountRate = -1
	dup.PlantingDate = NewDate(2021, time.January, 1)

	parcel := ParcelData{
		ParcelID:          "p",
		ValuationAsOfDate: asOf2020,
		TotalParcelAreaHa: 5,
		Blocks:            []BlockData{measuredBlock(), dup},
	}

	res := v.ValidateParcel(parcel)

	assert.True(t, res.IsValid, "warnings never reject input")
	codes := warningCodes(res)
	for _, code := range []string{"duplicate", "non_positive", "missing_price", "atypical", "clamped", "future_planting", "no_evidence", "area_mismatch"} {
		assert.Contains(t, codes, code)
	}
}

func TestValidator_INPFactorInRange(t *testing.T) {
	v := NewValidator()
	block := modeledBlock()
	block.INPFactor = f64(0.35)

	res := v.ValidateParcel(ParcelData{ParcelID: "p", ValuationAsOfDate: asOf2020, Blocks: []BlockData{block}})

	assert.NotContains(t, warningCodes(res), "atypical")
	assert.Equal(t, 0.35, block.EffectiveINPFactor())
	assert.Equal(t, DefaultINPFactor, modeledBlock().EffectiveINPFactor())
}
