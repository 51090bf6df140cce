package lookups

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository defines read access to valuation reference data
type Repository interface {
	ListYieldCurves(ctx context.Context, filter Filter) ([]CurveRow, error)
	ListCostTemplates(ctx context.Context, filter Filter) ([]CostTemplateRow, error)
	ListCostCurves(ctx context.Context, filter Filter) ([]CurveRow, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const curveColumns = `id, crop_id, variety_id, region_id, name, description, curve_data`

const templateColumns = `id, crop_id, region_id, name, description,
			land_rent_cop_per_ha, fertilizers_cop_per_ha, crop_protection_cop_per_ha,
			propagation_material_cop_per_ha, labor_cop_per_ha, irrigation_energy_cop_per_ha,
			maintenance_upkeep_cop_per_ha, harvest_cop_per_ha, transport_logistics_cop_per_ha,
			services_contracts_cop_per_ha, admin_overheads_cop_per_ha`

// ListYieldCurves returns active age-yield curves matching the filter
func (r *PostgresRepository) ListYieldCurves(ctx context.Context, filter Filter) ([]CurveRow, error) {
	rows, err := r.listCurves(ctx, "age_yield_curves", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list yield curves: %w", err)
	}
	return rows, nil
}

// ListCostCurves returns active age-indexed cost curves matching the filter
func (r *PostgresRepository) ListCostCurves(ctx context.Context, filter Filter) ([]CurveRow, error) {
	rows, err := r.listCurves(ctx, "cost_curves", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list cost curves: %w", err)
	}
	return rows, nil
}

// ListCostTemplates returns active cost templates matching the filter
func (r *PostgresRepository) ListCostTemplates(ctx context.Context, filter Filter) ([]CostTemplateRow, error) {
	query, args := filteredQuery(`SELECT `+templateColumns+` FROM cost_templates`, filter)

	var rows []CostTemplateRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list cost templates: %w", err)
	}
	return rows, nil
}

func (r *PostgresRepository) listCurves(ctx context.Context, table string, filter Filter) ([]CurveRow, error) {
	query, args := filteredQuery(`SELECT `+curveColumns+` FROM `+table, filter)

	var rows []CurveRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// filteredQuery appends the active, crop and region conditions to a select
func filteredQuery(base string, filter Filter) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString(" WHERE COALESCE(active, TRUE)")

	var args []interface{}
	if len(filter.CropIDs) > 0 {
		args = append(args, pq.Array(filter.CropIDs))
		sb.WriteString(fmt.Sprintf(" AND crop_id = ANY($%d)", len(args)))
	}
	if filter.Region != "" {
		args = append(args, filter.Region)
		sb.WriteString(fmt.Sprintf(" AND (region_id IS NULL OR region_id = $%d)", len(args)))
	}
	sb.WriteString(" ORDER BY id")
	return sb.String(), args
}
