package lookups

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
)

// Provider supplies the reference tables for a valuation
type Provider interface {
	Lookups(ctx context.Context, filter Filter) (*valuation.Lookups, error)
}

// RepositoryProvider assembles lookups from a Repository
type RepositoryProvider struct {
	repo   Repository
	logger *zap.Logger
}

// NewProvider creates a provider backed by the given repository
func NewProvider(repo Repository, logger *zap.Logger) *RepositoryProvider {
	return &RepositoryProvider{
		repo:   repo,
		logger: logger,
	}
}

// Lookups loads yield curves, cost templates and cost curves. Curves whose
// data cannot be decoded are logged and skipped; the engine then flags the
// gap on the blocks that reference them.
func (p *RepositoryProvider) Lookups(ctx context.Context, filter Filter) (*valuation.Lookups, error) {
	yieldRows, err := p.repo.ListYieldCurves(ctx, filter)
	if err != nil {
		return nil, err
	}
	templateRows, err := p.repo.ListCostTemplates(ctx, filter)
	if err != nil {
		return nil, err
	}
	costRows, err := p.repo.ListCostCurves(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &valuation.Lookups{
		YieldCurves:   p.decodeCurves("age_yield_curves", yieldRows),
		CostTemplates: make(map[string]valuation.CostBreakdown, len(templateRows)),
		CostCurves:    p.decodeCurves("cost_curves", costRows),
	}
	for _, row := range templateRows {
		result.CostTemplates[row.ID] = row.Breakdown()
	}

	p.logger.Debug("Loaded valuation lookups",
		zap.String("region", filter.Region),
		zap.Strings("crops", filter.CropIDs),
		zap.Int("yield_curves", len(result.YieldCurves)),
		zap.Int("cost_templates", len(result.CostTemplates)),
		zap.Int("cost_curves", len(result.CostCurves)))

	return result, nil
}

func (p *RepositoryProvider) decodeCurves(table string, rows []CurveRow) map[string]valuation.Curve {
	curves := make(map[string]valuation.Curve, len(rows))
	for _, row := range rows {
		curve, err := ParseCurveData(row.CurveData)
		if err != nil {
			p.logger.Warn("Skipping curve with invalid data",
				zap.String("table", table),
				zap.String("curve_id", row.ID),
				zap.Error(err))
			continue
		}
		curves[row.ID] = curve
	}
	return curves
}

// StaticProvider serves a fixed set of lookups, e.g. loaded from a file
type StaticProvider struct {
	lookups *valuation.Lookups
}

// NewStaticProvider creates a provider that always returns lookups
func NewStaticProvider(lookups *valuation.Lookups) *StaticProvider {
	return &StaticProvider{lookups: lookups}
}

// Lookups returns the fixed lookups regardless of filter
func (p *StaticProvider) Lookups(ctx context.Context, _ Filter) (*valuation.Lookups, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("lookups unavailable: %w", err)
	}
	if p.lookups == nil {
		return &valuation.Lookups{}, nil
	}
	return p.lookups, nil
}
