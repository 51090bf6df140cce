package v1

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/config"
	"agro-valuation/valuation-portal/valuation-portal-backend/internal/lookups"
)

func newMockDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres")
}

func TestSetupValuationsAPI_RegistersRoutes(t *testing.T) {
	api, err := SetupValuationsAPI(context.Background(), newMockDB(t), *config.Default(), zap.NewNop())
	require.NoError(t, err)
	defer api.Close()

	_, cached := api.Lookups.(*lookups.CachedProvider)
	assert.True(t, cached)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterValuationsRoutes(router.Group("/api/v1"), api)

	paths := make(map[string]bool)
	for _, route := range router.Routes() {
		paths[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{
		"POST /api/v1/valuations/calculate",
		"POST /api/v1/valuations",
		"GET /api/v1/valuations",
		"GET /api/v1/valuations/:id",
		"POST /api/v1/valuations/:id/recalculate",
		"PUT /api/v1/valuations/:id/status",
		"GET /api/v1/valuations/:id/export",
		"POST /api/v1/valuations/:id/archive",
	} {
		assert.True(t, paths[want], want)
	}
}

func TestSetupValuationsAPI_WithoutCache(t *testing.T) {
	cfg := config.Default()
	cfg.Valuation.LookupCacheTTLSeconds = 0

	api, err := SetupValuationsAPI(context.Background(), newMockDB(t), *cfg, zap.NewNop())
	require.NoError(t, err)

	_, direct := api.Lookups.(*lookups.RepositoryProvider)
	assert.True(t, direct)
	api.Close()
}

func TestSetupValuationsAPI_WithArchive(t *testing.T) {
	cfg := config.Default()
	cfg.Archive.Enabled = true
	cfg.Archive.Bucket = "valuation-reports"

	api, err := SetupValuationsAPI(context.Background(), newMockDB(t), *cfg, zap.NewNop())
	require.NoError(t, err)
	defer api.Close()
	assert.NotNil(t, api.Service)
}
