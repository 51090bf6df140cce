package lookups

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestFilteredQuery(t *testing.T) {
	query, args := filteredQuery("SELECT id FROM cost_curves", Filter{})
	assert.Equal(t, "SELECT id FROM cost_curves WHERE COALESCE(active, TRUE) ORDER BY id", query)
	assert.Empty(t, args)

	query, args = filteredQuery("SELECT id FROM cost_curves", Filter{CropIDs: []string{"cacao"}, Region: "Meta"})
	assert.Equal(t, "SELECT id FROM cost_curves WHERE COALESCE(active, TRUE) AND crop_id = ANY($1) AND (region_id IS NULL OR region_id = $2) ORDER BY id", query)
	assert.Len(t, args, 2)

	_, args = filteredQuery("SELECT id FROM cost_curves", Filter{Region: "Huila"})
	assert.Equal(t, []interface{}{"Huila"}, args)
}

func TestPostgresRepository_ListYieldCurves(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := sqlmock.NewRows([]string{"id", "crop_id", "variety_id", "region_id", "name", "description", "curve_data"}).
		AddRow("palm-oxg", "oil_palm", nil, "Meta", "OxG hybrid", nil, []byte(`{"3": 4500}`)).
		AddRow("cacao-std", "cacao", "ccn51", nil, "Cacao", "national average", `[{"age": 2, "value": 300}]`)

	mock.ExpectQuery(regexp.QuoteMeta("FROM age_yield_curves WHERE COALESCE(active, TRUE) AND crop_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	got, err := repo.ListYieldCurves(context.Background(), Filter{CropIDs: []string{"oil_palm", "cacao"}})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "palm-oxg", got[0].ID)
	assert.Equal(t, "Meta", got[0].RegionID.String)
	assert.False(t, got[0].VarietyID.Valid)
	assert.JSONEq(t, `{"3": 4500}`, string(got[0].CurveData))
	assert.Equal(t, "ccn51", got[1].VarietyID.String)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListCostTemplates(t *testing.T) {
	repo, mock := newMockRepository(t)

	columns := []string{
		"id", "crop_id", "region_id", "name", "description",
		"land_rent_cop_per_ha", "fertilizers_cop_per_ha", "crop_protection_cop_per_ha",
		"propagation_material_cop_per_ha", "labor_cop_per_ha", "irrigation_energy_cop_per_ha",
		"maintenance_upkeep_cop_per_ha", "harvest_cop_per_ha", "transport_logistics_cop_per_ha",
		"services_contracts_cop_per_ha", "admin_overheads_cop_per_ha",
	}
	rows := sqlmock.NewRows(columns).
		AddRow("palm-basic", "oil_palm", "Meta", "Basic", nil,
			1000.0, 2000.0, nil, nil, 3000.0, nil, nil, 500.0, nil, nil, 250.0)

	mock.ExpectQuery(regexp.QuoteMeta("FROM cost_templates WHERE COALESCE(active, TRUE) AND (region_id IS NULL OR region_id = $1)")).
		WithArgs("Meta").
		WillReturnRows(rows)

	got, err := repo.ListCostTemplates(context.Background(), Filter{Region: "Meta"})
	require.NoError(t, err)

	require.Len(t, got, 1)
	breakdown := got[0].Breakdown()
	assert.Equal(t, 6750.0, breakdown.Total())
	assert.Zero(t, breakdown.CropProtectionCOPPerHa)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListCostCurvesError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM cost_curves")).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.ListCostCurves(context.Background(), Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list cost curves")
	assert.NoError(t, mock.ExpectationsWereMet())
}
