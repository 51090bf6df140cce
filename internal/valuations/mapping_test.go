package valuations

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int { return &v }

func testParcel() valuation.ParcelData {
	return valuation.ParcelData{
		ValuationAsOfDate: valuation.NewDate(2024, 6, 30),
		ParcelID:          "P-100",
		OperatorName:      "Hacienda La Esperanza",
		Region:            "Meta",
		TotalParcelAreaHa: 10,
		Blocks: []valuation.BlockData{
			{
				BlockID:               "B1",
				BlockAreaHa:           4,
				Crop:                  "oil_palm",
				PlantingDate:          valuation.NewDate(2015, 1, 1),
				YieldSource:           valuation.YieldSourceModeled,
				AgeYieldCurveID:       "palm-curve",
				PriceFarmgateCOPPerKg: 700,
				CostSource:            valuation.CostSourceStandardTemplate,
				CostTemplateID:        "palm-basic",
				FinancedAmountCOP:     5000000,
				EARate:                0.12,
				DNPDiscountRate:       0.1,
			},
			{
				BlockID:               "B2",
				BlockAreaHa:           2,
				Crop:                  "oil_palm",
				PlantingDate:          valuation.NewDate(2023, 1, 1),
				YieldSource:           valuation.YieldSourceMeasured,
				ProductionTonsPeriod:  f64(30),
				PeriodDays:            intp(365),
				EvidenceUploads:       []string{"scale-tickets-2024.pdf"},
				PriceFarmgateCOPPerKg: 700,
				CostSource:            valuation.CostSourceCustomEntered,
				CostBreakdown:         valuation.CostBreakdown{LaborCOPPerHa: 1000000, FertilizersCOPPerHa: 500000},
				INPFactor:             f64(0.35),
				DNPDiscountRate:       0.1,
			},
		},
	}
}

func testLookups() *valuation.Lookups {
	return &valuation.Lookups{
		YieldCurves: map[string]valuation.Curve{
			"palm-curve": {0: 0, 1: 0, 2: 0, 3: 5000, 4: 10000, 5: 15000, 6: 18000, 7: 20000, 8: 20000, 9: 20000, 10: 20000, 12: 18000},
		},
		CostTemplates: map[string]valuation.CostBreakdown{
			"palm-basic": {LaborCOPPerHa: 2000000, HarvestCOPPerHa: 800000},
		},
	}
}

func testResult() *valuation.ParcelResult {
	result := valuation.CalculateParcel(testParcel(), testLookups())
	return &result
}

func TestFlattenRebuild_RoundTrip(t *testing.T) {
	parcel := testParcel()
	lookups := testLookups()
	result := valuation.CalculateParcel(parcel, lookups)
	id := uuid.New()

	record, err := Flatten(id, parcel, lookups, &result, time.Date(2024, 7, 1, 15, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, id, record.ID)
	assert.Equal(t, StatusDraft, record.Status)
	assert.Equal(t, "Meta", record.Region)
	require.Len(t, record.Results, 2)
	for i, row := range record.Results {
		assert.Equal(t, id, row.ValuationID)
		assert.Equal(t, i, row.Position)
		assert.NotEqual(t, uuid.Nil, row.ID)
		assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), row.CalculationDate)
		assert.Equal(t, valuation.CurrentCalculationVersion, row.CalculationVersion)
	}

	rebuilt, err := Rebuild(record)
	require.NoError(t, err)
	if diff := cmp.Diff(&result, rebuilt); diff != "" {
		t.Errorf("Rebuild(Flatten(x)) mismatch (-want +got):\n%s", diff)
	}

	input, err := DecodeInput(record)
	require.NoError(t, err)
	if diff := cmp.Diff(parcel, input); diff != "" {
		t.Errorf("input snapshot mismatch (-want +got):\n%s", diff)
	}

	snapshot, err := DecodeLookups(record)
	require.NoError(t, err)
	if diff := cmp.Diff(lookups, snapshot); diff != "" {
		t.Errorf("lookups snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestRebuild_OrdersByPosition(t *testing.T) {
	record := &ParcelRecord{
		ParcelID: "P",
		Results: []BlockResultRecord{
			{BlockID: "second", Position: 1},
			{BlockID: "first", Position: 0},
		},
	}

	result, err := Rebuild(record)
	require.NoError(t, err)

	require.Len(t, result.Blocks, 2)
	assert.Equal(t, "first", result.Blocks[0].BlockID)
	assert.Equal(t, "second", result.Blocks[1].BlockID)
	assert.Equal(t, []string{}, result.Blocks[0].QAFlags)
	assert.Equal(t, []string{}, result.SummaryFlags)
	assert.True(t, result.ValuationAsOfDate.IsZero())
}

func TestRebuild_NormalizesDriverDates(t *testing.T) {
	bogota := time.FixedZone("COT", -5*60*60)
	record := &ParcelRecord{ValuationAsOfDate: time.Date(2024, 6, 30, 0, 0, 0, 0, bogota)}

	result, err := Rebuild(record)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-30", result.ValuationAsOfDate.String())
}

func TestRebuild_CorruptJSON(t *testing.T) {
	_, err := Rebuild(&ParcelRecord{SummaryFlags: datatypes.JSON(`{"not": "a list"}`)})
	assert.Error(t, err)

	_, err = Rebuild(&ParcelRecord{Results: []BlockResultRecord{{CalculationSteps: datatypes.JSON(`[1, 2]`)}}})
	assert.Error(t, err)

	_, err = DecodeInput(&ParcelRecord{})
	assert.Error(t, err)
}

func TestFlatten_NilResult(t *testing.T) {
	_, err := Flatten(uuid.New(), testParcel(), nil, nil, time.Now())
	assert.Error(t, err)
}
