package valuation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CurrentCalculationVersion identifies the valuation rules implemented here
const CurrentCalculationVersion = "1.0"

// EngineConfig configures the parcel engine
type EngineConfig struct {
	// MaxConcurrentBlocks bounds how many blocks are valued at once; 0 means unbounded
	MaxConcurrentBlocks int    `json:"max_concurrent_blocks"`
	CalculationVersion  string `json:"calculation_version"`
}

// DefaultEngineConfig returns default engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxConcurrentBlocks: 4,
		CalculationVersion:  CurrentCalculationVersion,
	}
}

// Engine values parcels block by block and aggregates the results.
// It holds no per-valuation state and is safe for concurrent use.
type Engine struct {
	logger *zap.Logger
	config EngineConfig
}

// NewEngine creates a new valuation engine
func NewEngine(logger *zap.Logger, config EngineConfig) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CalculationVersion == "" {
		config.CalculationVersion = CurrentCalculationVersion
	}
	return &Engine{
		logger: logger,
		config: config,
	}
}

// ValueParcel values every block of the parcel, fanning out across blocks
// up to the configured limit. Results keep the input block order. The only
// error it returns is the context's.
func (e *Engine) ValueParcel(ctx context.Context, parcel ParcelData, lookups *Lookups) (*ParcelResult, error) {
	blocks := make([]BlockResult, len(parcel.Blocks))

	g, gctx := errgroup.WithContext(ctx)
	if e.config.MaxConcurrentBlocks > 0 {
		g.SetLimit(e.config.MaxConcurrentBlocks)
	}

	for i := range parcel.Blocks {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			blocks[i] = ValueBlock(parcel.Blocks[i], parcel.ValuationAsOfDate, lookups)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parcel valuation interrupted: %w", err)
	}

	result := aggregate(parcel, blocks)
	result.CalculationVersion = e.config.CalculationVersion

	e.logger.Debug("Parcel valued",
		zap.String("parcel_id", parcel.ParcelID),
		zap.Int("blocks", len(blocks)),
		zap.Float64("parcel_value_cop", result.ParcelValueCOP),
		zap.String("overall_tier", string(result.OverallTier)),
		zap.Int("summary_flags", len(result.SummaryFlags)))

	return result, nil
}

// CalculateParcel values a parcel sequentially. It is the pure form of
// Engine.ValueParcel and never fails.
func CalculateParcel(parcel ParcelData, lookups *Lookups) ParcelResult {
	blocks := make([]BlockResult, len(parcel.Blocks))
	for i, block := range parcel.Blocks {
		blocks[i] = ValueBlock(block, parcel.ValuationAsOfDate, lookups)
	}
	result := aggregate(parcel, blocks)
	result.CalculationVersion = CurrentCalculationVersion
	return *result
}

// aggregate rolls block results up to the parcel
func aggregate(parcel ParcelData, blocks []BlockResult) *ParcelResult {
	totalValue := 0.0
	totalArea := 0.0
	tiers := make([]Tier, 0, len(blocks))
	flags := []string{}

	for _, block := range blocks {
		totalValue += block.ValueBlockCOP
		totalArea += block.BlockAreaHa
		tiers = append(tiers, block.Tier)
		flags = append(flags, block.QAFlags...)
	}

	perHa := 0.0
	if totalArea > 0 {
		perHa = totalValue / totalArea
	}

	return &ParcelResult{
		ParcelID:            parcel.ParcelID,
		ValuationAsOfDate:   parcel.ValuationAsOfDate,
		ParcelValueCOP:      totalValue,
		ParcelValueCOPPerHa: perHa,
		TotalAreaHa:         totalArea,
		Blocks:              blocks,
		OverallTier:         WorstTier(tiers...),
		SummaryFlags:        flags,
	}
}
