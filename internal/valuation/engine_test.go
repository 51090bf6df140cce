package valuation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func twoBlockParcel() ParcelData {
	tierB := modeledBlock()
	tierB.BlockID = "north"

	tierC := modeledBlock()
	tierC.BlockID = "south"
	tierC.BlockAreaHa = 3
	tierC.PriceFarmgateCOPPerKg = 0

	return ParcelData{
		ValuationAsOfDate: asOf2020,
		ParcelID:          "parcel-1",
		Region:            "Meta",
		TotalParcelAreaHa: 5,
		Blocks:            []BlockData{tierB, tierC},
	}
}

func TestCalculateParcel_WorstTierWins(t *testing.T) {
	result := CalculateParcel(twoBlockParcel(), modeledLookups())

	require.Len(t, result.Blocks, 2)
	assert.Equal(t, TierB, result.Blocks[0].Tier)
	assert.Equal(t, TierC, result.Blocks[1].Tier)
	assert.Equal(t, TierC, result.OverallTier)
}

func TestCalculateParcel_Aggregates(t *testing.T) {
	result := CalculateParcel(twoBlockParcel(), modeledLookups())

	sum := 0.0
	for _, b := range result.Blocks {
		sum += b.ValueBlockCOP
	}
	assert.Equal(t, "parcel-1", result.ParcelID)
	assert.Equal(t, asOf2020, result.ValuationAsOfDate)
	assert.InDelta(t, sum, result.ParcelValueCOP, 1e-6)
	assert.InDelta(t, 5, result.TotalAreaHa, 1e-9)
	assert.InDelta(t, sum/5, result.ParcelValueCOPPerHa, 1e-6)
	assert.Equal(t, []string{FlagMissingCriticalInput}, result.SummaryFlags)
	assert.Equal(t, CurrentCalculationVersion, result.CalculationVersion)
}

func TestCalculateParcel_FlagsKeepBlockOrderAndDuplicates(t *testing.T) {
	first := modeledBlock()
	first.BlockID = "a"
	first.BlockAreaHa = 0
	second := first
	second.BlockID = "b"

	parcel := ParcelData{ParcelID: "p", ValuationAsOfDate: asOf2020, Blocks: []BlockData{first, second}}
	result := CalculateParcel(parcel, modeledLookups())

	want := append(append([]string{}, result.Blocks[0].QAFlags...), result.Blocks[1].QAFlags...)
	assert.Equal(t, want, result.SummaryFlags)
	assert.Equal(t, 2, countExact(result.SummaryFlags, FlagNonPositiveArea))
	assert.Zero(t, result.ParcelValueCOPPerHa, "zero total area yields zero per-ha value")
}

func TestCalculateParcel_Empty(t *testing.T) {
	result := CalculateParcel(ParcelData{ParcelID: "empty", ValuationAsOfDate: asOf2020}, nil)

	assert.Equal(t, TierA, result.OverallTier)
	assert.Zero(t, result.ParcelValueCOP)
	assert.Zero(t, result.ParcelValueCOPPerHa)
	assert.Empty(t, result.Blocks)
	assert.NotNil(t, result.SummaryFlags)
}

func TestCalculateParcel_Deterministic(t *testing.T) {
	lookups := modeledLookups()
	lookups.CostCurves = map[string]Curve{
		"Palm_Curve": {3: 400_000, 4: 450_000},
		"PALM_CURVE": {3: 1, 4: 1},
	}
	parcel := twoBlockParcel()
	for i := range parcel.Blocks {
		parcel.Blocks[i].CostSource = CostSourceStandardTemplate
	}

	first := CalculateParcel(parcel, lookups)
	for i := 0; i < 20; i++ {
		if diff := cmp.Diff(first, CalculateParcel(parcel, lookups)); diff != "" {
			t.Fatalf("run %d differs (-first +next):\n%s", i, diff)
		}
	}
	assert.Equal(t, "PALM_CURVE", first.Blocks[0].ResolvedCostCurveID)
}

func TestEngine_ValueParcelMatchesSequential(t *testing.T) {
	parcel := ParcelData{ParcelID: "big", ValuationAsOfDate: asOf2020}
	for i := 0; i < 25; i++ {
		block := modeledBlock()
		block.BlockID = fmt.Sprintf("blk-%02d", i)
		block.BlockAreaHa = float64(i + 1)
		block.PlantingDate = NewDate(2020-i%8, time.February, 1)
		parcel.Blocks = append(parcel.Blocks, block)
	}

	engine := NewEngine(zap.NewNop(), EngineConfig{MaxConcurrentBlocks: 3})
	got, err := engine.ValueParcel(context.Background(), parcel, modeledLookups())
	require.NoError(t, err)

	want := CalculateParcel(parcel, modeledLookups())
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("concurrent result differs (-want +got):\n%s", diff)
	}
	for i, block := range got.Blocks {
		assert.Equal(t, parcel.Blocks[i].BlockID, block.BlockID)
	}
}

func TestEngine_ValueParcelCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(nil, DefaultEngineConfig())
	_, err := engine.ValueParcel(ctx, twoBlockParcel(), modeledLookups())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_CalculationVersion(t *testing.T) {
	engine := NewEngine(zap.NewNop(), EngineConfig{CalculationVersion: "2024.1"})

	result, err := engine.ValueParcel(context.Background(), twoBlockParcel(), modeledLookups())
	require.NoError(t, err)
	assert.Equal(t, "2024.1", result.CalculationVersion)
}

func TestEngine_DoesNotMutateLookups(t *testing.T) {
	lookups := modeledLookups()
	before := cmp.Diff(Lookups{}, *lookups)

	engine := NewEngine(zap.NewNop(), DefaultEngineConfig())
	_, err := engine.ValueParcel(context.Background(), twoBlockParcel(), lookups)
	require.NoError(t, err)

	assert.Equal(t, before, cmp.Diff(Lookups{}, *lookups))
}
