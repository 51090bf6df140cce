package valuations

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
)

// Flatten converts an engine result into a parcel record with one result row
// per block. The input and lookups are stored as JSON snapshots so the
// valuation can be recalculated later.
func Flatten(id uuid.UUID, parcel valuation.ParcelData, lookups *valuation.Lookups, result *valuation.ParcelResult, calculatedAt time.Time) (*ParcelRecord, error) {
	if result == nil {
		return nil, fmt.Errorf("nil valuation result")
	}

	input, err := json.Marshal(parcel)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot parcel input: %w", err)
	}
	if lookups == nil {
		lookups = &valuation.Lookups{}
	}
	lookupsJSON, err := json.Marshal(lookups)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot lookups: %w", err)
	}
	summaryFlags, err := marshalStrings(result.SummaryFlags)
	if err != nil {
		return nil, err
	}

	record := &ParcelRecord{
		ID:                  id,
		ParcelID:            result.ParcelID,
		OperatorName:        parcel.OperatorName,
		Region:              parcel.Region,
		ValuationAsOfDate:   result.ValuationAsOfDate.Time,
		TotalParcelAreaHa:   parcel.TotalParcelAreaHa,
		TotalAreaHa:         result.TotalAreaHa,
		ParcelValueCOP:      result.ParcelValueCOP,
		ParcelValueCOPPerHa: result.ParcelValueCOPPerHa,
		OverallTier:         string(result.OverallTier),
		SummaryFlags:        summaryFlags,
		InputSnapshot:       datatypes.JSON(input),
		LookupsSnapshot:     datatypes.JSON(lookupsJSON),
		Status:              StatusDraft,
		CalculationVersion:  result.CalculationVersion,
		Results:             make([]BlockResultRecord, 0, len(result.Blocks)),
	}

	calcDate := calculatedAt.UTC().Truncate(24 * time.Hour)
	for i, b := range result.Blocks {
		row, err := flattenBlock(b)
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", b.BlockID, err)
		}
		row.ID = uuid.New()
		row.ValuationID = id
		row.Position = i
		row.CalculationDate = calcDate
		row.CalculationVersion = result.CalculationVersion
		record.Results = append(record.Results, row)
	}

	return record, nil
}

func flattenBlock(b valuation.BlockResult) (BlockResultRecord, error) {
	flags, err := marshalStrings(b.QAFlags)
	if err != nil {
		return BlockResultRecord{}, err
	}
	steps, err := marshalStrings(b.CalculationSteps)
	if err != nil {
		return BlockResultRecord{}, err
	}

	return BlockResultRecord{
		BlockID:             b.BlockID,
		BlockAreaHa:         b.BlockAreaHa,
		AgeYears:            b.AgeYears,
		YieldKgPerHa:        b.YieldKgPerHa,
		DirectCostsCOPPerHa: b.DirectCostsCOPPerHa,
		GrossIncomeCOP:      b.GrossIncomeCOP,
		FinCostCOP:          b.FinCostCOP,
		TotalInvestCOP:      b.TotalInvestCOP,
		NetIncomeCOP:        b.NetIncomeCOP,
		CumInflowsCOP:       b.CumInflowsCOP,
		CumOutflowsCOP:      b.CumOutflowsCOP,
		BreakevenReached:    b.BreakevenReached,
		Phase:               string(b.Phase),
		PEFlag:              string(b.PEFlag),
		ValueBlockCOP:       b.ValueBlockCOP,
		ValueBlockCOPPerHa:  b.ValueBlockCOPPerHa,
		NPV:                 b.NPV,
		Tier:                string(b.Tier),
		TierExplanation:     b.TierExplanation,
		QAFlags:             flags,
		CostSourceDetail:    b.CostSourceDetail,
		ResolvedCostCurveID: b.ResolvedCostCurveID,
		CycleEndAge:         b.CycleEndAge,
		ProjectionYears:     b.ProjectionYears,
		CalculationSteps:    steps,
	}, nil
}

// Rebuild reconstructs the engine result stored in record
func Rebuild(record *ParcelRecord) (*valuation.ParcelResult, error) {
	summaryFlags, err := unmarshalStrings(record.SummaryFlags)
	if err != nil {
		return nil, fmt.Errorf("failed to decode summary flags: %w", err)
	}

	rows := append([]BlockResultRecord(nil), record.Results...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })

	blocks := make([]valuation.BlockResult, 0, len(rows))
	for _, row := range rows {
		flags, err := unmarshalStrings(row.QAFlags)
		if err != nil {
			return nil, fmt.Errorf("failed to decode qa flags of block %q: %w", row.BlockID, err)
		}
		steps, err := unmarshalStrings(row.CalculationSteps)
		if err != nil {
			return nil, fmt.Errorf("failed to decode calculation steps of block %q: %w", row.BlockID, err)
		}

		blocks = append(blocks, valuation.BlockResult{
			BlockID:             row.BlockID,
			BlockAreaHa:         row.BlockAreaHa,
			AgeYears:            row.AgeYears,
			YieldKgPerHa:        row.YieldKgPerHa,
			DirectCostsCOPPerHa: row.DirectCostsCOPPerHa,
			GrossIncomeCOP:      row.GrossIncomeCOP,
			FinCostCOP:          row.FinCostCOP,
			TotalInvestCOP:      row.TotalInvestCOP,
			NetIncomeCOP:        row.NetIncomeCOP,
			CumInflowsCOP:       row.CumInflowsCOP,
			CumOutflowsCOP:      row.CumOutflowsCOP,
			BreakevenReached:    row.BreakevenReached,
			Phase:               valuation.Phase(row.Phase),
			PEFlag:              valuation.PEFlag(row.PEFlag),
			ValueBlockCOP:       row.ValueBlockCOP,
			ValueBlockCOPPerHa:  row.ValueBlockCOPPerHa,
			NPV:                 row.NPV,
			Tier:                valuation.Tier(row.Tier),
			TierExplanation:     row.TierExplanation,
			QAFlags:             flags,
			CostSourceDetail:    row.CostSourceDetail,
			ResolvedCostCurveID: row.ResolvedCostCurveID,
			CycleEndAge:         row.CycleEndAge,
			ProjectionYears:     row.ProjectionYears,
			CalculationSteps:    steps,
		})
	}

	return &valuation.ParcelResult{
		ParcelID:            record.ParcelID,
		ValuationAsOfDate:   toDate(record.ValuationAsOfDate),
		ParcelValueCOP:      record.ParcelValueCOP,
		ParcelValueCOPPerHa: record.ParcelValueCOPPerHa,
		TotalAreaHa:         record.TotalAreaHa,
		Blocks:              blocks,
		OverallTier:         valuation.Tier(record.OverallTier),
		SummaryFlags:        summaryFlags,
		CalculationVersion:  record.CalculationVersion,
	}, nil
}

// DecodeInput returns the parcel input the record was calculated from
func DecodeInput(record *ParcelRecord) (valuation.ParcelData, error) {
	var parcel valuation.ParcelData
	if len(record.InputSnapshot) == 0 {
		return parcel, fmt.Errorf("valuation %s has no input snapshot", record.ID)
	}
	if err := json.Unmarshal(record.InputSnapshot, &parcel); err != nil {
		return parcel, fmt.Errorf("failed to decode input snapshot: %w", err)
	}
	return parcel, nil
}

// DecodeLookups returns the lookups the record was calculated with
func DecodeLookups(record *ParcelRecord) (*valuation.Lookups, error) {
	lookups := &valuation.Lookups{}
	if len(record.LookupsSnapshot) == 0 {
		return lookups, nil
	}
	if err := json.Unmarshal(record.LookupsSnapshot, lookups); err != nil {
		return nil, fmt.Errorf("failed to decode lookups snapshot: %w", err)
	}
	return lookups, nil
}

func toSummary(record *ParcelRecord) Summary {
	return Summary{
		ID:                  record.ID,
		ParcelID:            record.ParcelID,
		OperatorName:        record.OperatorName,
		Region:              record.Region,
		ValuationAsOfDate:   toDate(record.ValuationAsOfDate),
		TotalAreaHa:         record.TotalAreaHa,
		ParcelValueCOP:      record.ParcelValueCOP,
		ParcelValueCOPPerHa: record.ParcelValueCOPPerHa,
		OverallTier:         record.OverallTier,
		Status:              record.Status,
		CalculationVersion:  record.CalculationVersion,
		CreatedAt:           record.CreatedAt,
		UpdatedAt:           record.UpdatedAt,
	}
}

// toDate drops any time-of-day or zone a driver attached to a date column
func toDate(t time.Time) valuation.Date {
	if t.IsZero() {
		return valuation.Date{}
	}
	return valuation.NewDate(t.Year(), t.Month(), t.Day())
}

func marshalStrings(values []string) (datatypes.JSON, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode list: %w", err)
	}
	return datatypes.JSON(data), nil
}

func unmarshalStrings(data datatypes.JSON) ([]string, error) {
	out := []string{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
